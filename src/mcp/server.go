package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/zhenghchen/calhacks2025/src/logging"
)

// ToolHandler executes a tool. Returning an error produces a protocol-level
// execution failure; tool-level problems belong in an ErrorResult instead.
type ToolHandler func(ctx context.Context, args json.RawMessage) (*CallToolResult, error)

type registeredTool struct {
	tool    Tool
	handler ToolHandler
}

// Server exposes registered tools over newline-delimited JSON-RPC.
type Server struct {
	info Implementation
	log  logging.Logger

	mu    sync.RWMutex
	tools map[string]registeredTool
}

// NewServer constructs an empty tool server.
func NewServer(info Implementation, log logging.Logger) *Server {
	return &Server{
		info:  info,
		log:   logging.OrNop(log),
		tools: make(map[string]registeredTool),
	}
}

// AddTool registers a tool under its name.
func (s *Server) AddTool(tool Tool, handler ToolHandler) error {
	name := strings.TrimSpace(tool.Name)
	if name == "" {
		return fmt.Errorf("mcp: tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("mcp: tool %s has no handler", name)
	}
	if tool.InputSchema == nil {
		tool.InputSchema = map[string]any{"type": "object"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tools[name]; exists {
		return fmt.Errorf("mcp: tool %s already registered", name)
	}
	s.tools[name] = registeredTool{tool: tool, handler: handler}
	return nil
}

// Tools lists registered tools sorted by name.
func (s *Server) Tools() []Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Tool, 0, len(s.tools))
	for _, rt := range s.tools {
		out = append(out, rt.tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Serve reads requests from r and writes responses to w until r reaches EOF
// or ctx is cancelled. Requests are handled concurrently.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		writeMu sync.Mutex
		wg      sync.WaitGroup
	)
	write := func(resp response) {
		line, err := json.Marshal(resp)
		if err != nil {
			s.log.Errorf("mcp: encode response: %v", err)
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if _, err := w.Write(append(line, '\n')); err != nil {
			s.log.Debugf("mcp: write response: %v", err)
		}
	}

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxMessageBytes)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if len(strings.TrimSpace(string(line))) == 0 {
				continue
			}
			var req request
			if err := json.Unmarshal(line, &req); err != nil {
				write(response{JSONRPC: jsonRPCVersion, ID: json.RawMessage("null"), Error: &RPCError{Code: CodeParseError, Message: "parse error"}})
				continue
			}
			if req.isNotification() {
				s.handleNotification(req)
				continue
			}
			wg.Add(1)
			go func(req request) {
				defer wg.Done()
				write(s.handle(ctx, req))
			}(req)
		}
	}
}

func (s *Server) handleNotification(req request) {
	switch req.Method {
	case MethodInitialized:
		s.log.Debugf("mcp: client initialized")
	default:
		s.log.Debugf("mcp: ignoring notification %s", req.Method)
	}
}

func (s *Server) handle(ctx context.Context, req request) (resp response) {
	resp = response{JSONRPC: jsonRPCVersion, ID: req.ID}
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("mcp: panic in %s: %v", req.Method, r)
			resp.Result = nil
			resp.Error = &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	var (
		result any
		rpcErr *RPCError
	)
	switch req.Method {
	case MethodInitialize:
		result = InitializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      s.info,
		}
	case MethodPing:
		result = struct{}{}
	case MethodListTools:
		result = listToolsResult{Tools: s.Tools()}
	case MethodCallTool:
		result, rpcErr = s.callTool(ctx, req.Params)
	default:
		rpcErr = &RPCError{Code: CodeMethodNotFound, Message: "method not found: " + req.Method}
	}

	if rpcErr != nil {
		resp.Error = rpcErr
		return resp
	}
	raw, err := json.Marshal(result)
	if err != nil {
		resp.Error = &RPCError{Code: CodeInternalError, Message: err.Error()}
		return resp
	}
	resp.Result = raw
	return resp
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (*CallToolResult, *RPCError) {
	var p callToolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid params: " + err.Error()}
	}

	s.mu.RLock()
	rt, ok := s.tools[p.Name]
	s.mu.RUnlock()
	if !ok {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "Unknown tool: " + p.Name}
	}

	res, err := rt.handler(ctx, p.Arguments)
	if err != nil {
		s.log.Warnf("mcp: tool %s failed: %v", p.Name, err)
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	if res == nil {
		return nil, &RPCError{Code: CodeInternalError, Message: "tool returned no result"}
	}
	return res, nil
}
