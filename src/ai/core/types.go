package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Block types understood by the conversation model.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// StopReason explains why the model stopped producing output.
type StopReason string

const (
	StopToolUse      StopReason = "tool_use"
	StopEndTurn      StopReason = "end_turn"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
)

// ContentBlock is one piece of a turn: text, a tool invocation requested by
// the model, or the result of such an invocation.
type ContentBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// TextBlock builds a text block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ToolResultBlock builds a tool_result block correlated to a tool_use id.
func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// Turn is one entry of the conversation history.
type Turn struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// UserText is a convenience for a single-block user turn.
func UserText(text string) Turn {
	return Turn{Role: RoleUser, Content: []ContentBlock{TextBlock(text)}}
}

// ToolSpec advertises a callable tool to the model.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// Request is a single model call.
type Request struct {
	Model       string
	MaxTokens   int
	System      string
	Temperature float64
	Messages    []Turn
	Tools       []ToolSpec
	// MaxAttempts caps HTTP attempts for this call. Zero uses the client's
	// configured retries.
	MaxAttempts int
}

// Usage reports token accounting when the provider returns it.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the model's reply to a Request.
type Response struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason StopReason     `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// Text joins every text block with newlines.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, block := range r.Content {
		if block.Type != BlockText {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(block.Text)
	}
	return b.String()
}

// ToolUses returns the tool_use blocks in the order the model emitted them.
func (r *Response) ToolUses() []ContentBlock {
	if r == nil {
		return nil
	}
	var out []ContentBlock
	for _, block := range r.Content {
		if block.Type == BlockToolUse {
			out = append(out, block)
		}
	}
	return out
}

// AssistantTurn replays the response as a history entry. Empty text blocks
// are dropped; the API rejects them on input.
func (r *Response) AssistantTurn() Turn {
	blocks := make([]ContentBlock, 0, len(r.Content))
	for _, block := range r.Content {
		switch {
		case block.Type == BlockText && block.Text == "":
			continue
		case block.Type == BlockToolUse && len(block.Input) == 0:
			block.Input = json.RawMessage(`{}`)
		}
		blocks = append(blocks, block)
	}
	return Turn{Role: RoleAssistant, Content: blocks}
}

// APIError is a non-2xx reply from the model provider.
type APIError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: status %d %s: %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Options are per-call defaults a caller may override.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	System      string
}

// Client sends one request to a reasoning model.
type Client interface {
	CreateMessage(ctx context.Context, req Request) (*Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (*Response, error)

// CreateMessage calls f.
func (f ClientFunc) CreateMessage(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
