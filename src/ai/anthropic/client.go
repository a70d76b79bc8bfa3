package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zhenghchen/calhacks2025/src/ai/core"
	"github.com/zhenghchen/calhacks2025/src/webclient"
)

const (
	defaultEndpoint  = "https://api.anthropic.com/v1/messages"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 1024
)

func init() {
	core.RegisterProvider("anthropic", func(cfg core.FactoryConfig) (core.Client, error) {
		return NewClient(cfg, core.DefaultModelForProvider("anthropic"))
	}, "claude")
	for _, key := range []string{"sonnet45", "sonnet4", "haiku45", "opus41"} {
		model := core.DefaultModelForProvider(key)
		core.RegisterProvider(key, func(cfg core.FactoryConfig) (core.Client, error) {
			return NewClient(cfg, model)
		})
	}
}

type client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	retries    int
	defaults   core.Options
}

// NewClient constructs an Anthropic Messages API implementation of
// core.Client with the provided default model name.
func NewClient(cfg core.FactoryConfig, defaultModel string) (core.Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("anthropic: API key not configured")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = webclient.NewDefault(orDuration(cfg.Timeout, 120*time.Second))
	}

	return &client{
		apiKey:     cfg.APIKey,
		endpoint:   valueOrDefault(cfg.BaseURL, defaultEndpoint),
		httpClient: httpClient,
		retries:    orInt(cfg.Retries, 1),
		defaults: core.Options{
			Model:     valueOrDefault(cfg.Model, defaultModel),
			MaxTokens: orInt(cfg.MaxTokens, defaultMaxTokens),
		},
	}, nil
}

func (c *client) CreateMessage(ctx context.Context, req core.Request) (*core.Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anthropic: request has no messages")
	}

	body := messagesRequest{
		Model:     valueOrDefault(req.Model, c.defaults.Model),
		MaxTokens: orInt(req.MaxTokens, c.defaults.MaxTokens),
		System:    req.System,
		Messages:  req.Messages,
		Tools:     req.Tools,
	}
	if req.Temperature != 0 {
		t := req.Temperature
		body.Temperature = &t
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: encode request: %w", err)
	}

	headers := map[string]string{
		"Content-Type":      "application/json",
		"x-api-key":         c.apiKey,
		"anthropic-version": apiVersion,
	}
	status, respBody, err := webclient.DoWithRetry(ctx, orInt(req.MaxAttempts, c.retries), 2*time.Second, func() (int, []byte, error) {
		return webclient.Send(ctx, c.httpClient, http.MethodPost, c.endpoint, headers, payload)
	})
	if err != nil {
		var statusErr *webclient.StatusError
		if errors.As(err, &statusErr) {
			return nil, decodeAPIError(status, respBody)
		}
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	var out core.Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}
	return &out, nil
}

type messagesRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Messages    []core.Turn     `json:"messages"`
	Tools       []core.ToolSpec `json:"tools,omitempty"`
}

type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeAPIError(status int, body []byte) error {
	apiErr := &core.APIError{Provider: "anthropic", StatusCode: status}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		apiErr.Type = env.Error.Type
		apiErr.Message = env.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

func valueOrDefault(val, def string) string {
	if strings.TrimSpace(val) != "" {
		return val
	}
	return def
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orDuration(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}
