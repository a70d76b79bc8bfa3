package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

const defaultGrace = 2 * time.Second

// Conn is an open byte stream to a tool provider. Close ends the provider's
// lifecycle and must be safe to call more than once.
type Conn interface {
	io.Reader
	io.Writer
	Close() error
}

// Transport opens a Conn to a tool provider.
type Transport interface {
	Open(ctx context.Context) (Conn, error)
}

// CommandTransport launches the provider as a child process and speaks to it
// over stdin/stdout. Stderr is passed through for diagnostics.
type CommandTransport struct {
	Command string
	Args    []string
	// Env is appended to the parent's environment.
	Env    []string
	Dir    string
	Stderr io.Writer
	// Grace is how long Close waits for a voluntary exit before killing.
	Grace time.Duration
}

func (t *CommandTransport) Open(ctx context.Context) (Conn, error) {
	if t.Command == "" {
		return nil, errors.New("mcp: tool command not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(t.Command, t.Args...)
	cmd.Env = append(os.Environ(), t.Env...)
	cmd.Dir = t.Dir
	cmd.Stderr = t.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	grace := t.Grace
	if grace <= 0 {
		grace = defaultGrace
	}
	cmd.WaitDelay = grace

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: stdin pipe: %w", err)
	}
	// Stdout goes through an io.Pipe so Wait never closes it before the
	// reader has drained everything the process wrote.
	pr, pw := io.Pipe()
	cmd.Stdout = pw

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("mcp: start %s: %w", t.Command, err)
	}

	pc := &processConn{
		cmd:    cmd,
		stdin:  stdin,
		stdout: pr,
		grace:  grace,
		exited: make(chan struct{}),
	}
	go func() {
		pc.waitErr = cmd.Wait()
		_ = pw.Close()
		close(pc.exited)
	}()
	return pc, nil
}

type processConn struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *io.PipeReader
	grace  time.Duration

	exited  chan struct{}
	waitErr error

	closeOnce sync.Once
	closeErr  error
}

func (c *processConn) Read(p []byte) (int, error)  { return c.stdout.Read(p) }
func (c *processConn) Write(p []byte) (int, error) { return c.stdin.Write(p) }

// Close closes stdin, waits for the grace period, kills the process if it is
// still alive and reaps it. It reports a forced kill or an unclean exit.
func (c *processConn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.stdin.Close()
		t := time.NewTimer(c.grace)
		defer t.Stop()
		killed := false
		select {
		case <-c.exited:
		case <-t.C:
			_ = c.cmd.Process.Kill()
			killed = true
			<-c.exited
		}
		_ = c.stdout.Close()
		switch {
		case killed:
			c.closeErr = fmt.Errorf("mcp: provider killed after %s grace: %w", c.grace, c.waitErr)
		case c.waitErr != nil:
			c.closeErr = fmt.Errorf("mcp: provider exit: %w", c.waitErr)
		}
	})
	return c.closeErr
}

// ProcessState reports the reaped state, or nil while the process runs.
func (c *processConn) ProcessState() *os.ProcessState {
	select {
	case <-c.exited:
		return c.cmd.ProcessState
	default:
		return nil
	}
}

// InProcessTransport serves a Server over in-memory pipes.
type InProcessTransport struct {
	Server *Server
}

func (t *InProcessTransport) Open(ctx context.Context) (Conn, error) {
	if t.Server == nil {
		return nil, errors.New("mcp: in-process server is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	toServerR, toServerW := io.Pipe()
	fromServerR, fromServerW := io.Pipe()
	serveCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = t.Server.Serve(serveCtx, toServerR, fromServerW)
		_ = fromServerW.Close()
		_ = toServerR.Close()
	}()

	return &pipeConn{
		r:      fromServerR,
		w:      toServerW,
		cancel: cancel,
		done:   done,
	}, nil
}

type pipeConn struct {
	r      *io.PipeReader
	w      *io.PipeWriter
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

func (c *pipeConn) Read(p []byte) (int, error)  { return c.r.Read(p) }
func (c *pipeConn) Write(p []byte) (int, error) { return c.w.Write(p) }

func (c *pipeConn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.w.Close()
		c.cancel()
		t := time.NewTimer(defaultGrace)
		defer t.Stop()
		select {
		case <-c.done:
		case <-t.C:
		}
		_ = c.r.Close()
	})
	return nil
}
