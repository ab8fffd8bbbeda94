package toolserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Nohyunjin/omni-secretary/internal/config"
	apperrors "github.com/Nohyunjin/omni-secretary/internal/errors"
	"github.com/Nohyunjin/omni-secretary/internal/logging"
)

// sessionHandle is what the supervisor needs from a running session,
// regardless of transport.
type sessionHandle interface {
	Session
	discover(ctx context.Context, timeout time.Duration) []Tool
}

type entry struct {
	state   ServerState
	session sessionHandle
}

// Status is the externally visible snapshot of one server.
type Status struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Transport string `json:"transport"`
	ToolCount int    `json:"tool_count"`
}

// spawnFunc starts a stdio transport for a server config. Tests inject
// in-memory replacements.
type spawnFunc func(cfg config.ServerConfig) (transport, error)

// Supervisor owns the lifecycle of every configured tool server: starting,
// health transitions, and orderly shutdown. All methods are safe for
// concurrent use.
type Supervisor struct {
	cfg    *config.Config
	logger logging.Logger
	spawn  spawnFunc

	handshakeTimeout time.Duration
	callTimeout      time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	order   []string // registration order, drives tool name resolution
}

// Option configures a Supervisor.
type Option func(*Supervisor)

func WithLogger(l logging.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.handshakeTimeout = d }
}

func WithCallTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.callTimeout = d }
}

// withSpawn overrides process creation. Test hook.
func withSpawn(fn spawnFunc) Option {
	return func(s *Supervisor) { s.spawn = fn }
}

func NewSupervisor(cfg *config.Config, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:              cfg,
		logger:           logging.NewComponentLogger("ToolServerSupervisor"),
		handshakeTimeout: defaultHandshakeTimeout,
		callTimeout:      defaultCallTimeout,
		entries:          make(map[string]*entry),
	}
	s.spawn = func(sc config.ServerConfig) (transport, error) {
		p := NewProcess(sc.Command, sc.Args, sc.Env)
		if err := p.Start(); err != nil {
			return nil, err
		}
		return p, nil
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start brings the named server up. Starting an already Starting or Connected
// server is a no-op success; any other prior state is replaced by a fresh
// attempt.
func (s *Supervisor) Start(ctx context.Context, name string) error {
	sc, ok := s.cfg.Server(name)
	if !ok {
		return fmt.Errorf("unknown server: %s", name)
	}

	s.mu.Lock()
	if e, exists := s.entries[name]; exists {
		if e.state == StateStarting || e.state == StateConnected {
			s.mu.Unlock()
			s.logger.Debug("server %s already %s, skipping start", name, e.state)
			return nil
		}
	}
	s.entries[name] = &entry{state: StateStarting}
	s.register(name)
	s.mu.Unlock()

	if sc.Transport == config.TransportHTTP {
		sess, err := s.connectRemote(ctx, name, sc)
		if err != nil {
			s.setState(name, StateError)
			return err
		}
		s.attach(name, sess)
		s.logger.Info("server %s connected with %d tools", name, len(sess.Tools()))
		return nil
	}
	return s.spawnStdio(ctx, name, sc)
}

// spawnStdio launches the child process. The session is connected as soon as
// the process is up; handshake and discovery are best effort afterwards.
func (s *Supervisor) spawnStdio(ctx context.Context, name string, sc config.ServerConfig) error {
	tr, err := s.spawn(sc)
	if err != nil {
		s.setState(name, StateError)
		return apperrors.NewConnectionError(name, err)
	}

	sess := newStdioSession(name, tr, s.callTimeout, func() {
		s.markStopped(name)
	})
	s.attach(name, sess)

	if err := sess.handshake(ctx, s.handshakeTimeout); err != nil {
		s.logger.Warn("server %s: %v (continuing without handshake)", name, err)
	}
	sess.discover(ctx, s.handshakeTimeout)

	s.logger.Info("server %s connected with %d tools", name, len(sess.Tools()))
	return nil
}

// attach records a live session and marks the server connected. A session
// whose process already exited keeps the state the exit handler set. When the
// entry is gone, a Stop raced the startup and the orphan session is closed.
func (s *Supervisor) attach(name string, sess sessionHandle) {
	s.mu.Lock()
	e, ok := s.entries[name]
	if ok {
		e.session = sess
		if e.state == StateStarting {
			e.state = StateConnected
		}
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Warn("server %s was stopped during startup, closing orphan session", name)
		sess.Close()
	}
}

// connectRemote probes the remote endpoint a fixed number of times with a
// fixed delay between attempts. Exhausting the attempts is a connection
// failure.
func (s *Supervisor) connectRemote(ctx context.Context, name string, sc config.ServerConfig) (sessionHandle, error) {
	sess := newHTTPSession(name, sc.URL, s.cfg.HTTPTimeout())

	attempts := s.cfg.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(s.cfg.RetryInterval()):
			case <-ctx.Done():
				return nil, apperrors.NewConnectionError(name, ctx.Err())
			}
		}
		if lastErr = sess.probe(ctx); lastErr == nil {
			sess.discover(ctx, s.handshakeTimeout)
			return sess, nil
		}
		s.logger.Warn("server %s probe attempt %d/%d failed: %v", name, i+1, attempts, lastErr)
	}
	return nil, apperrors.NewConnectionError(name, fmt.Errorf("unreachable after %d attempts: %w", attempts, lastErr))
}

// Stop shuts the named server down. Stopping a server that is not running is
// a success, matching the idempotence callers expect from cleanup paths.
func (s *Supervisor) Stop(name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("server %s not active, nothing to stop", name)
		return nil
	}
	delete(s.entries, name)
	s.unregister(name)
	s.mu.Unlock()

	if e.session != nil {
		e.session.Close()
	}
	s.logger.Info("server %s stopped", name)
	return nil
}

// StartAll starts every enabled server. Failures are logged per server and do
// not stop the remaining starts.
func (s *Supervisor) StartAll(ctx context.Context) {
	for _, name := range s.cfg.ServerNames() {
		sc, _ := s.cfg.Server(name)
		if !sc.Enabled {
			continue
		}
		if err := s.Start(ctx, name); err != nil {
			s.logger.Error("failed to start server %s: %v", name, err)
		}
	}
}

// StopAll stops every active server concurrently.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	names := make([]string, len(s.order))
	copy(names, s.order)
	s.mu.Unlock()

	var g errgroup.Group
	for _, name := range names {
		name := name
		g.Go(func() error {
			return s.Stop(name)
		})
	}
	g.Wait()
}

// Status reports the snapshot of one server. Configured servers that were
// never started report as not running.
func (s *Supervisor) Status(name string) (Status, error) {
	sc, ok := s.cfg.Server(name)
	if !ok {
		return Status{}, fmt.Errorf("unknown server: %s", name)
	}
	return s.snapshot(name, sc), nil
}

// StatusAll reports every configured server in configuration order.
func (s *Supervisor) StatusAll() []Status {
	names := s.cfg.ServerNames()
	out := make([]Status, 0, len(names))
	for _, name := range names {
		sc, _ := s.cfg.Server(name)
		out = append(out, s.snapshot(name, sc))
	}
	return out
}

func (s *Supervisor) snapshot(name string, sc config.ServerConfig) Status {
	transportName := sc.Transport
	if transportName == "" {
		transportName = config.TransportStdio
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Name: name, State: StateNotRunning.String(), Transport: transportName}
	if e, ok := s.entries[name]; ok {
		st.State = e.state.String()
		if e.session != nil {
			st.ToolCount = len(e.session.Tools())
		}
	}
	return st
}

// session returns the connected session for name, if any.
func (s *Supervisor) session(name string) (sessionHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok || e.state != StateConnected || e.session == nil {
		return nil, false
	}
	return e.session, true
}

// activeNames returns connected server names in start order.
func (s *Supervisor) activeNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.order))
	for _, name := range s.order {
		if e, ok := s.entries[name]; ok && e.state == StateConnected {
			out = append(out, name)
		}
	}
	return out
}

func (s *Supervisor) setState(name string, state ServerState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[name]; ok {
		e.state = state
	}
}

// markStopped records that a server's process exited on its own. The entry is
// kept so status reflects the exit rather than pretending the server never
// ran.
func (s *Supervisor) markStopped(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[name]; ok && e.state != StateError {
		e.state = StateStopped
	}
}

// register appends name to the resolution order if absent. Caller holds mu.
func (s *Supervisor) register(name string) {
	for _, n := range s.order {
		if n == name {
			return
		}
	}
	s.order = append(s.order, name)
}

// unregister removes name from the resolution order. Caller holds mu.
func (s *Supervisor) unregister(name string) {
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
