// Package extraction turns one reasoning-model round trip into a typed value.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/zhenghchen/calhacks2025/src/ai/core"
)

// ErrUnsupportedResponseKind is returned when the model answers with anything
// other than text blocks.
var ErrUnsupportedResponseKind = errors.New("extraction: unsupported response kind")

// MalformedOutputError carries the raw model text that failed to parse.
type MalformedOutputError struct {
	Prompt string
	Raw    string
	Err    error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("extraction: %s returned malformed output: %v", e.Prompt, e.Err)
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

// Validator is implemented by result types with constraints beyond their JSON shape.
type Validator interface {
	Validate() error
}

// Prompt is a named extraction template. The template receives a value with
// a single Transcript field.
type Prompt struct {
	Name      string
	MaxTokens int
	tmpl      *template.Template
}

// NewPrompt parses text as a template. It panics on a bad template since
// prompts are package-level constants.
func NewPrompt(name string, maxTokens int, text string) Prompt {
	return Prompt{
		Name:      name,
		MaxTokens: maxTokens,
		tmpl:      template.Must(template.New(name).Option("missingkey=error").Parse(text)),
	}
}

// Render substitutes the transcript into the prompt.
func (p Prompt) Render(transcript string) (string, error) {
	if p.tmpl == nil {
		return "", fmt.Errorf("extraction: prompt %q has no template", p.Name)
	}
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, struct{ Transcript string }{transcript}); err != nil {
		return "", fmt.Errorf("extraction: render %s: %w", p.Name, err)
	}
	return buf.String(), nil
}

// Client sends extraction prompts to a reasoning model.
type Client struct {
	model   core.Client
	name    string
	timeout time.Duration
}

// NewClient wraps a model client. timeout bounds each call; zero means the
// caller's context alone applies.
func NewClient(model core.Client, modelName string, timeout time.Duration) *Client {
	return &Client{model: model, name: modelName, timeout: timeout}
}

// Extract renders prompt with transcript, sends exactly one request and
// decodes the text answer into T. There is no retry.
func Extract[T any](ctx context.Context, c *Client, prompt Prompt, transcript string) (T, error) {
	var zero T
	if c == nil || c.model == nil {
		return zero, errors.New("extraction: client not configured")
	}

	rendered, err := prompt.Render(transcript)
	if err != nil {
		return zero, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.model.CreateMessage(ctx, core.Request{
		Model:       c.name,
		MaxTokens:   prompt.MaxTokens,
		Messages:    []core.Turn{core.UserText(rendered)},
		MaxAttempts: 1,
	})
	if err != nil {
		return zero, fmt.Errorf("extraction: %s: %w", prompt.Name, err)
	}

	text, err := textOnly(resp)
	if err != nil {
		return zero, fmt.Errorf("%w: %s", err, prompt.Name)
	}

	return Decode[T](prompt.Name, text)
}

// Decode strips any code fence from text and unmarshals the remainder into T,
// running Validate when T implements Validator.
func Decode[T any](name, text string) (T, error) {
	var out T
	cleaned := StripCodeFence(text)
	dec := json.NewDecoder(strings.NewReader(cleaned))
	if err := dec.Decode(&out); err != nil {
		var zero T
		return zero, &MalformedOutputError{Prompt: name, Raw: text, Err: err}
	}
	if dec.More() {
		var zero T
		return zero, &MalformedOutputError{Prompt: name, Raw: text, Err: errors.New("trailing data after JSON value")}
	}
	if v, ok := any(out).(Validator); ok {
		if err := v.Validate(); err != nil {
			var zero T
			return zero, &MalformedOutputError{Prompt: name, Raw: text, Err: err}
		}
	}
	return out, nil
}

func textOnly(resp *core.Response) (string, error) {
	if resp == nil || len(resp.Content) == 0 {
		return "", ErrUnsupportedResponseKind
	}
	parts := make([]string, 0, len(resp.Content))
	for _, block := range resp.Content {
		if block.Type != core.BlockText {
			return "", ErrUnsupportedResponseKind
		}
		parts = append(parts, block.Text)
	}
	return strings.Join(parts, "\n"), nil
}
