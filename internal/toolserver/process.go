package toolserver

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Nohyunjin/omni-secretary/internal/logging"
)

// Process owns one spawned tool-server child and its standard streams. It is
// the single process-spawning implementation; everything above it sees only
// the transport interface.
type Process struct {
	command string
	args    []string
	env     []string

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   io.ReadCloser
	stderr   io.ReadCloser
	running  bool
	waitDone chan error

	logger logging.Logger
}

// NewProcess prepares a process for the given command. Env overrides are
// merged over the parent environment.
func NewProcess(command string, args []string, env map[string]string) *Process {
	merged := os.Environ()
	for k, v := range env {
		merged = append(merged, fmt.Sprintf("%s=%s", k, v))
	}
	return &Process{
		command: command,
		args:    args,
		env:     merged,
		logger:  logging.NewComponentLogger(fmt.Sprintf("Process[%s]", command)),
	}
}

// Start spawns the child and wires its pipes.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("process already running")
	}

	resolved, err := resolveExecutable(p.command)
	if err != nil {
		return err
	}

	cmd := exec.Command(resolved, p.args...)
	cmd.Env = p.env

	if p.stdin, err = cmd.StdinPipe(); err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	if p.stdout, err = cmd.StdoutPipe(); err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if p.stderr, err = cmd.StderrPipe(); err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start process: %w", err)
	}

	p.cmd = cmd
	p.running = true
	p.waitDone = make(chan error, 1)
	waitDone := p.waitDone
	go func() {
		err := cmd.Wait()
		waitDone <- err

		p.mu.Lock()
		wasRunning := p.running
		p.running = false
		p.mu.Unlock()

		if wasRunning {
			p.logger.Warn("process exited on its own: %v", err)
		}
	}()

	p.logger.Info("tool server process started: pid=%d", cmd.Process.Pid)
	return nil
}

func resolveExecutable(command string) (string, error) {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return "", fmt.Errorf("command is required")
	}
	if strings.Contains(trimmed, "\x00") {
		return "", fmt.Errorf("command contains invalid characters")
	}

	resolved, err := exec.LookPath(trimmed)
	if err != nil {
		return "", fmt.Errorf("command not found: %w", err)
	}

	return resolved, nil
}

// Write sends data to the child's stdin.
func (p *Process) Write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || p.stdin == nil {
		return fmt.Errorf("process not running")
	}

	n, err := p.stdin.Write(data)
	if err != nil {
		return fmt.Errorf("write to stdin: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(data))
	}
	return nil
}

// Stdout returns the child's standard output stream.
func (p *Process) Stdout() io.Reader { return p.stdout }

// Stderr returns the child's standard error stream.
func (p *Process) Stderr() io.Reader { return p.stderr }

// Running reports whether the child has been started and has not been reaped.
func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stop terminates the child with the two-stage protocol: close stdin and send
// the graceful-termination signal, wait up to grace; if still alive, force
// kill and wait up to kill. A child that survives both is logged as a fault
// and abandoned so shutdown of the rest of the system is never blocked.
func (p *Process) Stop(grace, kill time.Duration) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	cmd := p.cmd
	stdin := p.stdin
	waitDone := p.waitDone
	p.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}
	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			p.logger.Debug("SIGTERM delivery failed (process may be gone): %v", err)
		}
	}

	select {
	case err := <-waitDone:
		p.logger.Info("process exited gracefully: %v", err)
		return nil
	case <-time.After(grace):
	}

	p.logger.Warn("graceful shutdown timed out after %v, killing process", grace)
	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil {
			p.logger.Debug("kill failed (process may be gone): %v", err)
		}
	}

	select {
	case err := <-waitDone:
		p.logger.Info("process exited after kill: %v", err)
		return nil
	case <-time.After(kill):
		p.logger.Error("process survived SIGKILL wait, abandoning")
		return fmt.Errorf("process did not exit after kill")
	}
}

// ExitNotify returns a channel that receives the child's wait result once.
func (p *Process) ExitNotify() <-chan error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitDone
}
