// Package verification checks founder claims against the web through a
// bounded model/tool loop. Verify never fails: every fault becomes a
// conservative FAIL result.
package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zhenghchen/calhacks2025/src/ai/core"
	"github.com/zhenghchen/calhacks2025/src/extraction"
	"github.com/zhenghchen/calhacks2025/src/logging"
	"github.com/zhenghchen/calhacks2025/src/mcp"
	"github.com/zhenghchen/calhacks2025/src/types"
)

var (
	ErrRoundLimit           = errors.New("verification: model call limit reached")
	ErrUnexpectedStopReason = errors.New("verification: unexpected stop reason")
	ErrNoToolCalls          = errors.New("verification: tool use requested without tool calls")
	ErrNoClaims             = errors.New("verification: no founder claims to verify")
	ErrNoJSON               = errors.New("verification: final answer has no JSON object")
)

const (
	defaultMaxTokens      = 4096
	defaultMaxToolRounds  = 8
	defaultPerCallTimeout = 60 * time.Second
	defaultDeadline       = 4 * time.Minute
)

// Session is one exclusive connection to a tool provider. *mcp.Client
// implements it.
type Session interface {
	Connect(ctx context.Context) error
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args json.RawMessage) (*mcp.CallToolResult, error)
	Close() error
}

// SessionFactory yields a fresh, unconnected session per verification.
type SessionFactory func() Session

// MCPSessions opens a new protocol client over t for every verification.
func MCPSessions(t mcp.Transport, log logging.Logger) SessionFactory {
	return func() Session {
		return mcp.NewClient(t, mcp.Implementation{Name: "verification-client", Version: "1.0.0"}, log)
	}
}

// Config bounds the loop.
type Config struct {
	Model     string
	MaxTokens int
	// MaxToolRounds caps model calls per verification.
	MaxToolRounds  int
	PerCallTimeout time.Duration
	Deadline       time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.MaxToolRounds <= 0 {
		c.MaxToolRounds = defaultMaxToolRounds
	}
	if c.PerCallTimeout <= 0 {
		c.PerCallTimeout = defaultPerCallTimeout
	}
	if c.Deadline <= 0 {
		c.Deadline = defaultDeadline
	}
	return c
}

// Agent runs verifications.
type Agent struct {
	model    core.Client
	sessions SessionFactory
	cfg      Config
	log      logging.Logger
}

func New(model core.Client, sessions SessionFactory, cfg Config, log logging.Logger) *Agent {
	return &Agent{model: model, sessions: sessions, cfg: cfg.withDefaults(), log: logging.OrNop(log)}
}

// Verify checks claim and always returns a structured result.
func (a *Agent) Verify(ctx context.Context, claim types.FounderClaim) types.VerificationResult {
	res, _ := a.VerifyWithTrace(ctx, claim)
	return res
}

// VerifyWithTrace is Verify plus a record of the loop.
func (a *Agent) VerifyWithTrace(ctx context.Context, claim types.FounderClaim) (types.VerificationResult, *Trace) {
	trace := &Trace{}
	start := time.Now()

	result, err := a.run(ctx, claim, trace)
	trace.Elapsed = time.Since(start)
	if err != nil {
		trace.Err = err
		if trace.Final() != StateTerminalError {
			trace.enter(StateTerminalError)
		}
		a.log.Warnf("verification: failed after %d model calls: %v (%s)", trace.ModelCalls, err, logging.Classify(err))
		return types.FailSafeVerification(err), trace
	}
	a.log.Infof("verification: %s (%s confidence) after %d model calls, %d tool turns", result.Verdict, result.Confidence, trace.ModelCalls, trace.ToolTurns)
	return result, trace
}

func (a *Agent) run(ctx context.Context, claim types.FounderClaim, trace *Trace) (result types.VerificationResult, err error) {
	if claim.Empty() {
		return result, ErrNoClaims
	}
	if a.model == nil || a.sessions == nil {
		return result, errors.New("verification: agent not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Deadline)
	defer cancel()

	session := a.sessions()
	defer func() {
		if cerr := session.Close(); cerr != nil {
			a.log.Debugf("verification: close session: %v", cerr)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("verification: panic: %v", r)
		}
	}()

	if err := a.withTimeout(ctx, session.Connect); err != nil {
		return result, fmt.Errorf("connect tool provider: %w", err)
	}

	var tools []mcp.Tool
	err = a.withTimeout(ctx, func(ctx context.Context) error {
		var lerr error
		tools, lerr = session.ListTools(ctx)
		return lerr
	})
	if err != nil {
		return result, fmt.Errorf("list tools: %w", err)
	}
	specs := make([]core.ToolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, core.ToolSpec{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
		trace.Tools = append(trace.Tools, t.Name)
	}

	prompt, err := renderInstructions(claim)
	if err != nil {
		return result, fmt.Errorf("render instructions: %w", err)
	}
	history := []core.Turn{core.UserText(prompt)}

	var (
		resp  *core.Response
		calls []core.ContentBlock
		final string
	)
	state := StateAwaitingModel
	for !state.Terminal() {
		trace.enter(state)
		switch state {
		case StateAwaitingModel:
			if trace.ModelCalls >= a.cfg.MaxToolRounds {
				return result, fmt.Errorf("%w (%d)", ErrRoundLimit, a.cfg.MaxToolRounds)
			}
			resp, err = a.callModel(ctx, history, specs)
			trace.ModelCalls++
			if err != nil {
				return result, fmt.Errorf("model call %d: %w", trace.ModelCalls, err)
			}
			switch resp.StopReason {
			case core.StopToolUse:
				state = StateModelRequestedTools
			case core.StopEndTurn:
				final = resp.Text()
				state = StateTerminalSuccess
			default:
				return result, fmt.Errorf("%w: %q", ErrUnexpectedStopReason, resp.StopReason)
			}

		case StateModelRequestedTools:
			calls = resp.ToolUses()
			if len(calls) == 0 {
				return result, ErrNoToolCalls
			}
			history = append(history, resp.AssistantTurn())
			state = StateExecutingTools

		case StateExecutingTools:
			results, err := a.executeTools(ctx, session, calls, trace)
			if err != nil {
				return result, err
			}
			history = append(history, core.Turn{Role: core.RoleUser, Content: results})
			trace.ToolTurns++
			state = StateAwaitingModel
		}
	}
	result, err = parseFinal(final)
	if err != nil {
		return result, err
	}
	trace.enter(StateTerminalSuccess)
	return result, nil
}

func (a *Agent) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.PerCallTimeout)
	defer cancel()
	return fn(callCtx)
}

func (a *Agent) callModel(ctx context.Context, history []core.Turn, tools []core.ToolSpec) (*core.Response, error) {
	var resp *core.Response
	err := a.withTimeout(ctx, func(ctx context.Context) error {
		var cerr error
		resp, cerr = a.model.CreateMessage(ctx, core.Request{
			Model:     a.cfg.Model,
			MaxTokens: a.cfg.MaxTokens,
			Messages:  history,
			Tools:     tools,
		})
		return cerr
	})
	if err == nil && resp == nil {
		err = errors.New("empty model response")
	}
	return resp, err
}

// executeTools runs one turn's calls concurrently and returns their results
// in request order. Only transport loss or a timeout ends the loop.
func (a *Agent) executeTools(ctx context.Context, session Session, calls []core.ContentBlock, trace *Trace) ([]core.ContentBlock, error) {
	results := make([]core.ContentBlock, len(calls))
	errs := make([]error, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call core.ContentBlock) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic: %v", r)
				}
			}()
			results[i], errs[i] = a.executeTool(ctx, session, call)
		}(i, call)
	}
	wg.Wait()

	trace.ToolCalls += len(calls)
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", calls[i].Name, err)
		}
		if results[i].IsError {
			trace.ToolErrors++
		}
	}
	return results, nil
}

func (a *Agent) executeTool(ctx context.Context, session Session, call core.ContentBlock) (core.ContentBlock, error) {
	a.log.Infof("verification: calling %s %s", call.Name, string(call.Input))

	args := call.Input
	if len(args) > 0 && !json.Valid(args) {
		return core.ToolResultBlock(call.ID, "Error: tool arguments are not valid JSON", true), nil
	}

	var res *mcp.CallToolResult
	err := a.withTimeout(ctx, func(ctx context.Context) error {
		var cerr error
		res, cerr = session.CallTool(ctx, call.Name, args)
		return cerr
	})
	switch {
	case err == nil:
		return core.ToolResultBlock(call.ID, res.Text(), res.IsError), nil
	case errors.Is(err, mcp.ErrToolNotFound), errors.Is(err, mcp.ErrToolExecutionFailed):
		a.log.Warnf("verification: %s returned error: %v", call.Name, err)
		return core.ToolResultBlock(call.ID, "Error: "+err.Error(), true), nil
	default:
		return core.ContentBlock{}, err
	}
}

func parseFinal(text string) (types.VerificationResult, error) {
	cleaned := extraction.StripCodeFence(text)
	obj, ok := extraction.FirstJSONObject(cleaned)
	if !ok {
		return types.VerificationResult{}, fmt.Errorf("%w: %q", ErrNoJSON, truncate(text, 200))
	}
	return extraction.Decode[types.VerificationResult]("verification", obj)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
