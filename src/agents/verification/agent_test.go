package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhenghchen/calhacks2025/src/ai/core"
	"github.com/zhenghchen/calhacks2025/src/mcp"
	"github.com/zhenghchen/calhacks2025/src/types"
)

var claim = types.FounderClaim{
	FounderName: "Dana Reyes",
	Company:     "Logistics",
	School:      "Stanford University",
	Pedigree:    "Stanford CS, ex-Flexport",
}

const passJSON = `{"verified": true, "confidence": "high", "reasoning": "Three profiles agree.", "sources_found": 3, "details": "LinkedIn, Crunchbase, Stanford news", "verdict": "PASS"}`

type scriptedModel struct {
	mu       sync.Mutex
	requests []core.Request
	respond  func(call int, req core.Request) (*core.Response, error)
}

func (m *scriptedModel) CreateMessage(ctx context.Context, req core.Request) (*core.Response, error) {
	m.mu.Lock()
	copied := req
	copied.Messages = append([]core.Turn(nil), req.Messages...)
	m.requests = append(m.requests, copied)
	call := len(m.requests)
	m.mu.Unlock()
	return m.respond(call, req)
}

func toolUse(ids ...string) *core.Response {
	resp := &core.Response{StopReason: core.StopToolUse}
	for _, id := range ids {
		resp.Content = append(resp.Content, core.ContentBlock{
			Type:  core.BlockToolUse,
			ID:    id,
			Name:  "web_search",
			Input: json.RawMessage(fmt.Sprintf(`{"query":"Dana Reyes %s"}`, id)),
		})
	}
	return resp
}

func endTurn(text string) *core.Response {
	return &core.Response{StopReason: core.StopEndTurn, Content: []core.ContentBlock{core.TextBlock(text)}}
}

type countingSession struct {
	Session
	closes *int32
}

func (c countingSession) Close() error {
	atomic.AddInt32(c.closes, 1)
	return c.Session.Close()
}

func searchServer(handler mcp.ToolHandler) *mcp.Server {
	s := mcp.NewServer(mcp.Implementation{Name: "fake-search", Version: "test"}, nil)
	_ = s.AddTool(mcp.Tool{Name: "web_search", Description: "search"}, handler)
	return s
}

func foundHandler(ctx context.Context, raw json.RawMessage) (*mcp.CallToolResult, error) {
	var args struct {
		Query string `json:"query"`
	}
	_ = json.Unmarshal(raw, &args)
	return mcp.TextResult(`{"query":"` + args.Query + `","found_results":true,"result_count":1}`), nil
}

func newAgent(model core.Client, server *mcp.Server, cfg Config, closes *int32) *Agent {
	base := MCPSessions(&mcp.InProcessTransport{Server: server}, nil)
	return New(model, func() Session {
		return countingSession{Session: base(), closes: closes}
	}, cfg, nil)
}

func TestLoopRunsNRoundsThenFinishes(t *testing.T) {
	const rounds = 3
	model := &scriptedModel{respond: func(call int, req core.Request) (*core.Response, error) {
		if call <= rounds {
			return toolUse(fmt.Sprintf("tu_%d", call)), nil
		}
		return endTurn("Here is my assessment:\n```json\n" + passJSON + "\n```"), nil
	}}
	var closes int32
	agent := newAgent(model, searchServer(foundHandler), Config{}, &closes)

	result, trace := agent.VerifyWithTrace(context.Background(), claim)

	require.NoError(t, trace.Err)
	assert.Equal(t, rounds+1, trace.ModelCalls)
	assert.Equal(t, rounds, trace.ToolTurns)
	assert.Equal(t, StateTerminalSuccess, trace.Final())
	assert.Equal(t, types.VerdictPass, result.Verdict)
	assert.Equal(t, types.ConfidenceHigh, result.Confidence)
	assert.Equal(t, 3, result.SourcesFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&closes))

	require.Len(t, model.requests, rounds+1)
	last := model.requests[rounds]
	assert.Len(t, last.Messages, 1+2*rounds)
	require.Len(t, last.Tools, 1)
	assert.Equal(t, "web_search", last.Tools[0].Name)
	assert.Contains(t, model.requests[0].Messages[0].Content[0].Text, `Search for: "Dana Reyes Logistics Stanford University"`)

	toolTurn := last.Messages[2]
	assert.Equal(t, core.RoleUser, toolTurn.Role)
	require.Len(t, toolTurn.Content, 1)
	assert.Equal(t, "tu_1", toolTurn.Content[0].ToolUseID)
	assert.Contains(t, toolTurn.Content[0].Content, "Dana Reyes tu_1")
}

func TestToolErrorsAreFedBackToTheModel(t *testing.T) {
	model := &scriptedModel{respond: func(call int, req core.Request) (*core.Response, error) {
		if call == 1 {
			resp := toolUse("tu_a")
			resp.Content = append(resp.Content, core.ContentBlock{Type: core.BlockToolUse, ID: "tu_b", Name: "no_such_tool", Input: json.RawMessage(`{}`)})
			return resp, nil
		}
		return endTurn(`{"verified": false, "confidence": "low", "reasoning": "Search unavailable.", "sources_found": 0, "details": "none", "verdict": "FAIL"}`), nil
	}}
	failing := func(ctx context.Context, raw json.RawMessage) (*mcp.CallToolResult, error) {
		return mcp.ErrorResult("quota exceeded"), nil
	}
	var closes int32
	agent := newAgent(model, searchServer(failing), Config{}, &closes)

	result, trace := agent.VerifyWithTrace(context.Background(), claim)

	require.NoError(t, trace.Err)
	assert.Equal(t, 2, trace.ModelCalls)
	assert.Equal(t, 2, trace.ToolErrors)
	assert.Equal(t, types.VerdictFail, result.Verdict)
	assert.Equal(t, types.ConfidenceLow, result.Confidence)

	results := model.requests[1].Messages[2].Content
	require.Len(t, results, 2)
	assert.Equal(t, "tu_a", results[0].ToolUseID)
	assert.True(t, results[0].IsError)
	assert.Equal(t, "quota exceeded", results[0].Content)
	assert.Equal(t, "tu_b", results[1].ToolUseID)
	assert.True(t, results[1].IsError)
	assert.Contains(t, results[1].Content, "Error: ")
}

func TestToolCallsInOneTurnRunConcurrently(t *testing.T) {
	var inFlight, peak int32
	slow := func(ctx context.Context, raw json.RawMessage) (*mcp.CallToolResult, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return foundHandler(ctx, raw)
	}
	model := &scriptedModel{respond: func(call int, req core.Request) (*core.Response, error) {
		if call == 1 {
			return toolUse("a", "b", "c"), nil
		}
		return endTurn(passJSON), nil
	}}
	var closes int32
	result, trace := newAgent(model, searchServer(slow), Config{}, &closes).VerifyWithTrace(context.Background(), claim)

	require.NoError(t, trace.Err)
	assert.Equal(t, types.VerdictPass, result.Verdict)
	assert.Equal(t, 3, trace.ToolCalls)
	assert.Greater(t, atomic.LoadInt32(&peak), int32(1))

	ids := []string{}
	for _, block := range model.requests[1].Messages[2].Content {
		ids = append(ids, block.ToolUseID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func assertFailSafe(t *testing.T, result types.VerificationResult) {
	t.Helper()
	assert.False(t, result.Verified)
	assert.Equal(t, types.ConfidenceVeryLow, result.Confidence)
	assert.Equal(t, 0, result.SourcesFound)
	assert.Equal(t, types.VerdictFail, result.Verdict)
	assert.Equal(t, "Unable to complete verification", result.Details)
}

func TestUnknownStopReasonIsTerminal(t *testing.T) {
	model := &scriptedModel{respond: func(call int, req core.Request) (*core.Response, error) {
		return &core.Response{StopReason: core.StopMaxTokens, Content: []core.ContentBlock{core.TextBlock(`{"verified": true`)}}, nil
	}}
	var closes int32
	result, trace := newAgent(model, searchServer(foundHandler), Config{}, &closes).VerifyWithTrace(context.Background(), claim)

	assert.ErrorIs(t, trace.Err, ErrUnexpectedStopReason)
	assert.Equal(t, StateTerminalError, trace.Final())
	assertFailSafe(t, result)
	assert.Equal(t, int32(1), atomic.LoadInt32(&closes))
}

func TestRoundLimitIsTerminal(t *testing.T) {
	model := &scriptedModel{respond: func(call int, req core.Request) (*core.Response, error) {
		return toolUse(fmt.Sprintf("tu_%d", call)), nil
	}}
	var closes int32
	result, trace := newAgent(model, searchServer(foundHandler), Config{MaxToolRounds: 3}, &closes).VerifyWithTrace(context.Background(), claim)

	assert.ErrorIs(t, trace.Err, ErrRoundLimit)
	assert.Equal(t, 3, trace.ModelCalls)
	assert.Equal(t, 3, trace.ToolTurns)
	assertFailSafe(t, result)
	assert.Equal(t, int32(1), atomic.LoadInt32(&closes))
}

func TestToolUseWithoutCallsIsTerminal(t *testing.T) {
	model := &scriptedModel{respond: func(call int, req core.Request) (*core.Response, error) {
		return &core.Response{StopReason: core.StopToolUse, Content: []core.ContentBlock{core.TextBlock("hmm")}}, nil
	}}
	var closes int32
	result, trace := newAgent(model, searchServer(foundHandler), Config{}, &closes).VerifyWithTrace(context.Background(), claim)

	assert.ErrorIs(t, trace.Err, ErrNoToolCalls)
	assertFailSafe(t, result)
}

func TestMalformedFinalAnswerIsTerminal(t *testing.T) {
	model := &scriptedModel{respond: func(call int, req core.Request) (*core.Response, error) {
		return endTurn("I could not find anything conclusive."), nil
	}}
	var closes int32
	result, trace := newAgent(model, searchServer(foundHandler), Config{}, &closes).VerifyWithTrace(context.Background(), claim)

	assert.ErrorIs(t, trace.Err, ErrNoJSON)
	assert.Equal(t, StateTerminalError, trace.Final())
	assert.NotContains(t, trace.States, StateTerminalSuccess)
	assertFailSafe(t, result)
	assert.Contains(t, result.Reasoning, "Verification failed due to error:")
}

func TestInvalidVerdictInFinalAnswerIsTerminal(t *testing.T) {
	model := &scriptedModel{respond: func(call int, req core.Request) (*core.Response, error) {
		return endTurn(`Result: {"verified": true, "confidence": "certain", "reasoning": "", "sources_found": 2, "details": "", "verdict": "PASS"} done`), nil
	}}
	var closes int32
	result, _ := newAgent(model, searchServer(foundHandler), Config{}, &closes).VerifyWithTrace(context.Background(), claim)
	assertFailSafe(t, result)
}

func TestPanicIsRecoveredAndSessionClosedOnce(t *testing.T) {
	model := &scriptedModel{respond: func(call int, req core.Request) (*core.Response, error) {
		panic("model client bug")
	}}
	var closes int32
	result, trace := newAgent(model, searchServer(foundHandler), Config{}, &closes).VerifyWithTrace(context.Background(), claim)

	require.Error(t, trace.Err)
	assert.Contains(t, trace.Err.Error(), "model client bug")
	assertFailSafe(t, result)
	assert.Equal(t, int32(1), atomic.LoadInt32(&closes))
}

func TestHangingToolTimesOut(t *testing.T) {
	hang := func(ctx context.Context, raw json.RawMessage) (*mcp.CallToolResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	model := &scriptedModel{respond: func(call int, req core.Request) (*core.Response, error) {
		return toolUse("tu_1"), nil
	}}
	var closes int32
	start := time.Now()
	result, trace := newAgent(model, searchServer(hang), Config{PerCallTimeout: 200 * time.Millisecond}, &closes).VerifyWithTrace(context.Background(), claim)

	assert.ErrorIs(t, trace.Err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assertFailSafe(t, result)
	assert.Equal(t, int32(1), atomic.LoadInt32(&closes))
}

func TestModelErrorIsTerminal(t *testing.T) {
	model := &scriptedModel{respond: func(call int, req core.Request) (*core.Response, error) {
		return nil, &core.APIError{Provider: "anthropic", StatusCode: 529, Message: "overloaded"}
	}}
	var closes int32
	result, trace := newAgent(model, searchServer(foundHandler), Config{}, &closes).VerifyWithTrace(context.Background(), claim)

	var apiErr *core.APIError
	assert.True(t, errors.As(trace.Err, &apiErr))
	assertFailSafe(t, result)
}

func TestEmptyClaimSkipsProvider(t *testing.T) {
	var created int32
	agent := New(&scriptedModel{}, func() Session {
		atomic.AddInt32(&created, 1)
		return nil
	}, Config{}, nil)

	result := agent.Verify(context.Background(), types.FounderClaim{})
	assertFailSafe(t, result)
	assert.Equal(t, int32(0), atomic.LoadInt32(&created))
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "AWAITING_MODEL", StateAwaitingModel.String())
	assert.Equal(t, "TERMINAL_ERROR", StateTerminalError.String())
	assert.True(t, StateTerminalSuccess.Terminal())
	assert.False(t, StateExecutingTools.Terminal())
}
