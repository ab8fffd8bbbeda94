package toolserver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Nohyunjin/omni-secretary/internal/async"
	apperrors "github.com/Nohyunjin/omni-secretary/internal/errors"
	"github.com/Nohyunjin/omni-secretary/internal/logging"
)

// Session is one live connection to one tool server.
type Session interface {
	// Name returns the server name the session belongs to.
	Name() string

	// Tools returns the current tool catalog snapshot.
	Tools() []Tool

	// Call executes a tool and reports (success, result-or-error text). It
	// never panics or returns a Go error past this boundary.
	Call(ctx context.Context, tool string, args map[string]any) (bool, string)

	// Close releases the transport and resolves all pending requests so no
	// caller hangs.
	Close()
}

// transport is the byte-stream surface a stdio session drives. Process is the
// production implementation; tests substitute in-memory pipes.
type transport interface {
	Write(data []byte) error
	Stdout() io.Reader
	Stderr() io.Reader
	Running() bool
	Stop(grace, kill time.Duration) error
}

const (
	// scannerBuffer bounds one inbound protocol line.
	scannerBuffer = 1024 * 1024

	defaultCallTimeout      = 30 * time.Second
	defaultHandshakeTimeout = 5 * time.Second
	stopGraceTimeout        = 5 * time.Second
	stopKillTimeout         = time.Second
)

type callResult struct {
	ok   bool
	text string
}

// stdioSession speaks the line-JSON protocol with a spawned tool server and
// correlates responses to pending requests by id.
type stdioSession struct {
	name        string
	tr          transport
	logger      logging.Logger
	callTimeout time.Duration

	mu      sync.Mutex
	pending map[string]chan callResult
	tools   []Tool
	closed  bool

	closeOnce sync.Once
	onExit    func() // invoked once when the inbound stream ends
}

// newStdioSession wraps a started transport and begins both output monitors.
// onExit fires when the server's stdout reaches end-of-stream.
func newStdioSession(name string, tr transport, callTimeout time.Duration, onExit func()) *stdioSession {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	s := &stdioSession{
		name:        name,
		tr:          tr,
		logger:      logging.NewComponentLogger(fmt.Sprintf("ToolSession[%s]", name)),
		callTimeout: callTimeout,
		pending:     make(map[string]chan callResult),
		onExit:      onExit,
	}

	async.Go(s.logger, "toolserver.session.readLoop", s.readLoop)
	async.Go(s.logger, "toolserver.session.stderrLoop", s.stderrLoop)

	return s
}

func (s *stdioSession) Name() string { return s.name }

func (s *stdioSession) Tools() []Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

// handshake performs the initialize exchange. Failure is reported, not fatal:
// servers predating the handshake still answer tool calls.
func (s *stdioSession) handshake(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := s.roundTrip(ctx, MethodInitialize, map[string]any{
		"clientInfo": map[string]any{"name": "omni-secretary", "version": "1.0.0"},
	})
	if err != nil {
		return fmt.Errorf("initialize handshake: %w", err)
	}
	return nil
}

// discover requests the catalog and replaces the session's tool list
// wholesale. Servers that push their catalog instead of answering the request
// are also handled: the push path in readLoop updates the list directly.
func (s *stdioSession) discover(ctx context.Context, timeout time.Duration) []Tool {
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := s.roundTrip(ctx, MethodListTools, nil)
	if err != nil {
		s.logger.Warn("tool discovery request failed: %v", err)
		return s.Tools()
	}

	if tools := DecodeCatalogResult(raw); tools != nil {
		s.setTools(tools)
	}
	return s.Tools()
}

func (s *stdioSession) setTools(tools []Tool) {
	s.mu.Lock()
	s.tools = tools
	s.mu.Unlock()
	s.logger.Info("loaded %d tools", len(tools))
}

func (s *stdioSession) Call(ctx context.Context, tool string, args map[string]any) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	raw, err := s.roundTrip(ctx, MethodCallTool, map[string]any{
		"name":      tool,
		"arguments": args,
	})
	if err != nil {
		s.logger.Warn("tool call %q failed: %v", tool, err)
		return false, err.Error()
	}
	return true, ResultText(raw)
}

// roundTrip registers a pending request, sends it, and suspends until the
// correlated response arrives, the transport fails, or ctx expires. The
// pending entry is fulfilled exactly once and removed atomically.
func (s *stdioSession) roundTrip(ctx context.Context, method string, params map[string]any) ([]byte, error) {
	id := uuid.NewString()

	ch := make(chan callResult, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("session closed")
	}
	s.pending[id] = ch
	s.mu.Unlock()

	data, err := EncodeRequest(NewRequest(id, method, params))
	if err != nil {
		s.takePending(id)
		return nil, err
	}

	if err := s.tr.Write(data); err != nil {
		s.takePending(id)
		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case res := <-ch:
		if !res.ok {
			return nil, fmt.Errorf("%s", res.text)
		}
		return []byte(res.text), nil
	case <-ctx.Done():
		// Remove the slot so a late response is dropped, not delivered.
		s.takePending(id)
		return nil, fmt.Errorf("request %s timed out: %w", method, ctx.Err())
	}
}

// takePending removes and returns the completion slot for id, if any.
func (s *stdioSession) takePending(id string) (chan callResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	return ch, ok
}

// readLoop consumes stdout line by line. Malformed lines and unknown
// correlation ids are logged and skipped; only end-of-stream terminates the
// loop, which then marks the server stopped and cancels remaining requests.
func (s *stdioSession) readLoop() {
	scanner := bufio.NewScanner(s.tr.Stdout())
	scanner.Buffer(make([]byte, 0, 64*1024), scannerBuffer)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		msg, err := DecodeMessage(line)
		if err != nil {
			s.logger.Warn("skipping line: %v", &apperrors.ProtocolError{Server: s.name, Detail: err.Error()})
			continue
		}

		switch {
		case msg.IsCatalog():
			s.setTools(msg.Tools)
		case msg.IsResponse():
			s.dispatch(msg)
		default:
			s.logger.Debug("ignoring non-protocol line")
		}
	}

	if err := scanner.Err(); err != nil {
		s.logger.Warn("stdout reader error: %v", err)
	}
	s.logger.Info("stdout closed, marking server stopped")

	s.cancelPending("session closed")
	if s.onExit != nil {
		s.onExit()
	}
}

// dispatch fulfills the pending request matching the message id. Responses
// with unknown or already-resolved ids are dropped.
func (s *stdioSession) dispatch(msg *Message) {
	ch, ok := s.takePending(msg.ID)
	if !ok {
		s.logger.Warn("dropping response with unknown correlation id: %s", msg.ID)
		return
	}

	if msg.Error != "" {
		ch <- callResult{ok: false, text: msg.Error}
		return
	}
	ch <- callResult{ok: true, text: string(msg.Result)}
}

// stderrLoop drains standard error. Output is only ever logged, never parsed
// for protocol content.
func (s *stdioSession) stderrLoop() {
	scanner := bufio.NewScanner(s.tr.Stderr())
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			s.logger.Debug("[stderr] %s", line)
		}
	}
}

// cancelPending resolves every outstanding request with a failure so no
// caller hangs indefinitely.
func (s *stdioSession) cancelPending(reason string) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]chan callResult)
	s.closed = true
	s.mu.Unlock()

	for id, ch := range pending {
		ch <- callResult{ok: false, text: reason}
		s.logger.Debug("cancelled pending request %s: %s", id, reason)
	}
}

func (s *stdioSession) Close() {
	s.closeOnce.Do(func() {
		s.cancelPending("session closed")
		if err := s.tr.Stop(stopGraceTimeout, stopKillTimeout); err != nil {
			s.logger.Warn("transport stop: %v", err)
		}
	})
}
