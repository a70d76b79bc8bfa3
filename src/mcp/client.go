package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/zhenghchen/calhacks2025/src/logging"
)

const maxMessageBytes = 8 << 20

// Client is the caller side of the tool protocol. Requests are correlated by
// id, so any number of calls may be in flight at once.
type Client struct {
	transport Transport
	info      Implementation
	log       logging.Logger

	mu      sync.Mutex
	conn    Conn
	pending map[string]chan *response
	server  InitializeResult

	writeMu sync.Mutex
	nextID  atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient prepares a client; nothing is started until Connect.
func NewClient(t Transport, info Implementation, log logging.Logger) *Client {
	return &Client{
		transport: t,
		info:      info,
		log:       logging.OrNop(log),
		pending:   make(map[string]chan *response),
		done:      make(chan struct{}),
	}
}

// Connect opens the transport and performs the initialize handshake.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return errors.New("mcp: already connected")
	}
	select {
	case <-c.done:
		c.mu.Unlock()
		return ErrTransportClosed
	default:
	}
	conn, err := c.transport.Open(ctx)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("mcp: open transport: %w", err)
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)

	var res InitializeResult
	err = c.call(ctx, MethodInitialize, initializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      c.info,
	}, &res)
	if err != nil {
		return fmt.Errorf("mcp: initialize: %w", err)
	}
	c.mu.Lock()
	c.server = res
	c.mu.Unlock()

	if err := c.notify(MethodInitialized, nil); err != nil {
		return fmt.Errorf("mcp: initialized notification: %w", err)
	}
	c.log.Debugf("mcp: connected to %s %s", res.ServerInfo.Name, res.ServerInfo.Version)
	return nil
}

// ServerInfo returns the provider's handshake answer.
func (c *Client) ServerInfo() InitializeResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

// ListTools asks the provider which tools it exposes.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	var res listToolsResult
	if err := c.call(ctx, MethodListTools, struct{}{}, &res); err != nil {
		return nil, err
	}
	return res.Tools, nil
}

// CallTool invokes a tool. A result with IsError set is returned without an
// error; ErrToolNotFound and ErrToolExecutionFailed signal protocol-level
// failures of the call itself.
func (c *Client) CallTool(ctx context.Context, name string, args json.RawMessage) (*CallToolResult, error) {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	var res CallToolResult
	err := c.call(ctx, MethodCallTool, callToolParams{Name: name, Arguments: args}, &res)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			switch rpcErr.Code {
			case CodeInvalidParams:
				return nil, fmt.Errorf("%w: %s: %w", ErrToolNotFound, name, rpcErr)
			case CodeInternalError:
				return nil, fmt.Errorf("%w: %s: %w", ErrToolExecutionFailed, name, rpcErr)
			}
		}
		return nil, err
	}
	return &res, nil
}

// Close ends the session and the provider's lifecycle. Pending and later
// calls fail with ErrTransportClosed. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.shutdown()
	return err
}

// Done is closed once the transport is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	c.mu.Lock()
	connected := c.conn != nil
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	id := strconv.FormatInt(c.nextID.Add(1), 10)
	ch := make(chan *response, 1)

	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return ErrTransportClosed
	default:
	}
	c.pending[id] = ch
	c.mu.Unlock()

	raw, err := json.Marshal(params)
	if err != nil {
		c.forget(id)
		return fmt.Errorf("mcp: encode %s params: %w", method, err)
	}
	if err := c.send(request{JSONRPC: jsonRPCVersion, ID: json.RawMessage(id), Method: method, Params: raw}); err != nil {
		c.forget(id)
		return err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("mcp: decode %s result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	case <-c.done:
		return ErrTransportClosed
	}
}

func (c *Client) notify(method string, params any) error {
	msg := request{JSONRPC: jsonRPCVersion, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return err
		}
		msg.Params = raw
	}
	return c.send(msg)
}

func (c *Client) send(msg request) error {
	line, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mcp: encode %s: %w", msg.Method, err)
	}
	line = append(line, '\n')

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return ErrTransportClosed
	default:
	}
	if _, err := conn.Write(line); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	return nil
}

func (c *Client) readLoop(conn Conn) {
	defer c.shutdown()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			c.log.Warnf("mcp: dropping undecodable message: %v", err)
			continue
		}
		if len(resp.ID) == 0 || string(resp.ID) == "null" {
			// Server-initiated notifications and id-less errors have no waiter.
			if resp.Error != nil {
				c.log.Warnf("mcp: provider error without id: %v", resp.Error)
			}
			continue
		}
		c.deliver(&resp)
	}
	if err := scanner.Err(); err != nil {
		c.log.Debugf("mcp: read loop ended: %v", err)
	}
}

func (c *Client) deliver(resp *response) {
	id := string(resp.ID)
	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if ok {
		ch <- resp
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.done)
		c.pending = make(map[string]chan *response)
		c.mu.Unlock()
	})
}
