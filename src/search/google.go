// Package search implements the web_search tool served to the verifier.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zhenghchen/calhacks2025/src/webclient"
)

const (
	defaultEndpoint = "https://www.googleapis.com/customsearch/v1"
	// MaxResults caps how many hits reach the model per query.
	MaxResults = 5
)

// ErrMissingCredentials is returned when the search API key or engine id is unset.
var ErrMissingCredentials = errors.New("search: missing credentials")

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Searcher runs a web query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// GoogleConfig configures the Custom Search JSON API client.
type GoogleConfig struct {
	APIKey   string
	EngineID string
	BaseURL  string
	Timeout  time.Duration
	Retries  int

	HTTPClient *http.Client
}

// GoogleSearcher queries Google Programmable Search.
type GoogleSearcher struct {
	apiKey     string
	engineID   string
	endpoint   string
	retries    int
	httpClient *http.Client
	sanitizer  *Sanitizer
}

func NewGoogleSearcher(cfg GoogleConfig) *GoogleSearcher {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = webclient.NewDefault(cfg.Timeout)
	}
	endpoint := strings.TrimSpace(cfg.BaseURL)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 2
	}
	return &GoogleSearcher{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		engineID:   strings.TrimSpace(cfg.EngineID),
		endpoint:   endpoint,
		retries:    retries,
		httpClient: httpClient,
		sanitizer:  NewSanitizer(),
	}
}

type cseResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"items"`
}

func (g *GoogleSearcher) Search(ctx context.Context, query string) ([]Result, error) {
	if g.apiKey == "" || g.engineID == "" {
		return nil, ErrMissingCredentials
	}

	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.engineID)
	params.Set("q", query)
	target := g.endpoint + "?" + params.Encode()

	status, body, err := webclient.DoWithRetry(ctx, g.retries, time.Second, func() (int, []byte, error) {
		return webclient.Send(ctx, g.httpClient, http.MethodGet, target, nil, nil)
	})
	if err != nil {
		var statusErr *webclient.StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("Google API error: %d %s", status, http.StatusText(status))
		}
		return nil, err
	}

	var parsed cseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]Result, 0, MaxResults)
	for _, item := range parsed.Items {
		if len(results) == MaxResults {
			break
		}
		results = append(results, Result{
			Title:   g.sanitizer.Clean(item.Title),
			Snippet: g.sanitizer.Clean(item.Snippet),
			URL:     strings.TrimSpace(item.Link),
		})
	}
	return results, nil
}
