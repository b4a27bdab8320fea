package gateway

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status represents the state of the supervised gateway.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusBackoff Status = "backoff"
	StatusFailed  Status = "failed"
)

const (
	defaultName   = "gateway"
	maxOutputLine = 64 * 1024
)

var (
	// ErrAlreadyRunning is returned by Start on a running supervisor.
	ErrAlreadyRunning = errors.New("gateway: already running")

	errStopping = errors.New("gateway: stopping")
)

// Config holds the supervised command and its restart policy.
type Config struct {
	// Name labels log lines. Defaults to "gateway".
	Name string

	Binary string
	Args   []string

	// Env is appended to the parent environment.
	Env     []string
	WorkDir string

	// RestartOnFailure restarts the gateway after an unexpected exit.
	RestartOnFailure bool

	// RestartDelay is the first backoff; each further failure doubles it
	// up to MaxRestartDelay.
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration

	// StableThreshold is how long a run must last for the backoff and
	// attempt counter to reset.
	StableThreshold time.Duration

	// MaxRestartAttempts limits consecutive restarts. 0 means unlimited.
	MaxRestartAttempts int

	// GracefulTimeout is how long Stop waits after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = defaultName
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = 5 * time.Second
	}
	if c.MaxRestartDelay <= 0 {
		c.MaxRestartDelay = 5 * time.Minute
	}
	if c.MaxRestartDelay < c.RestartDelay {
		c.MaxRestartDelay = c.RestartDelay
	}
	if c.StableThreshold <= 0 {
		c.StableThreshold = 2 * time.Minute
	}
	if c.GracefulTimeout <= 0 {
		c.GracefulTimeout = 10 * time.Second
	}
	return c
}

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Supervisor runs one gateway process and restarts it on failure.
type Supervisor struct {
	cfg    Config
	logger Logger

	mu        sync.RWMutex
	cmd       *exec.Cmd
	status    Status
	restarts  int
	attempt   int
	lastError error
	startedAt time.Time
	stopping  bool
	done      chan struct{}
	cancel    context.CancelFunc
}

// NewSupervisor creates a stopped supervisor.
func NewSupervisor(cfg Config) *Supervisor {
	return &Supervisor{
		cfg:    cfg.withDefaults(),
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

func (s *Supervisor) log() Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}

// Start launches the gateway and the goroutine that watches it.
// A failure to launch the first run is returned; later failures are
// handled by the restart policy.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.stopping = false
	s.attempt = 0
	s.mu.Unlock()

	cmd, err := s.launch()
	if err != nil {
		s.setFailed(err)
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.done = done
	s.cancel = cancel
	s.mu.Unlock()

	go s.watch(ctx, cmd, done)
	return nil
}

// launch starts one run of the gateway in its own process group.
func (s *Supervisor) launch() (*exec.Cmd, error) {
	cmd := exec.Command(s.cfg.Binary, s.cfg.Args...) //nolint:gosec // binary comes from the operator's config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if len(s.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), s.cfg.Env...)
	}
	cmd.Dir = s.cfg.WorkDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil, errStopping
	}
	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("starting %s: %w", s.cfg.Name, err)
	}
	s.cmd = cmd
	s.status = StatusRunning
	s.startedAt = time.Now()
	s.mu.Unlock()

	go s.forward("stdout", stdout)
	go s.forward("stderr", stderr)

	s.log().Info("gateway started", "name", s.cfg.Name, "pid", cmd.Process.Pid)
	return cmd, nil
}

// forward logs each output line of the gateway.
func (s *Supervisor) forward(stream string, r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 4096), maxOutputLine)
	for sc.Scan() {
		s.log().Debug("gateway output", "name", s.cfg.Name, "stream", stream, "line", sc.Text())
	}
}

// watch waits for each run to end and applies the restart policy.
func (s *Supervisor) watch(ctx context.Context, cmd *exec.Cmd, done chan struct{}) {
	defer close(done)

	for {
		err := cmd.Wait()

		s.mu.Lock()
		stopping := s.stopping
		ranFor := time.Since(s.startedAt)
		s.mu.Unlock()

		if stopping || ctx.Err() != nil {
			s.markStopped()
			s.log().Info("gateway stopped", "name", s.cfg.Name)
			return
		}

		if err == nil {
			err = errors.New("exited with status 0")
		}
		s.log().Warn("gateway exited unexpectedly", "name", s.cfg.Name, "error", err, "ran_for", ranFor)

		if !s.cfg.RestartOnFailure {
			s.setFailed(err)
			return
		}

		delay, ok := s.nextBackoff(ranFor, err)
		if !ok {
			s.log().Error("gateway restart attempts exhausted", "name", s.cfg.Name, "attempts", s.cfg.MaxRestartAttempts)
			return
		}

		s.log().Info("restarting gateway", "name", s.cfg.Name, "delay", delay)
		select {
		case <-ctx.Done():
			s.markStopped()
			return
		case <-time.After(delay):
		}

		next, launchErr := s.launch()
		for launchErr != nil {
			if errors.Is(launchErr, errStopping) {
				s.markStopped()
				return
			}
			s.log().Error("gateway restart failed", "name", s.cfg.Name, "error", launchErr)
			delay, ok = s.nextBackoff(0, launchErr)
			if !ok {
				return
			}
			select {
			case <-ctx.Done():
				s.markStopped()
				return
			case <-time.After(delay):
			}
			next, launchErr = s.launch()
		}
		cmd = next

		s.mu.Lock()
		s.restarts++
		s.mu.Unlock()
	}
}

// nextBackoff records a failure and returns the delay before the next
// attempt, or false when attempts are exhausted.
func (s *Supervisor) nextBackoff(ranFor time.Duration, cause error) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastError = cause
	if ranFor >= s.cfg.StableThreshold {
		s.attempt = 0
	}
	s.attempt++
	if s.cfg.MaxRestartAttempts > 0 && s.attempt > s.cfg.MaxRestartAttempts {
		s.status = StatusFailed
		return 0, false
	}
	s.status = StatusBackoff
	return backoff(s.cfg.RestartDelay, s.cfg.MaxRestartDelay, s.attempt), true
}

// backoff doubles base for each attempt after the first, capped at limit.
func backoff(base, limit time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return d
}

func (s *Supervisor) markStopped() {
	s.mu.Lock()
	s.status = StatusStopped
	s.mu.Unlock()
}

func (s *Supervisor) setFailed(err error) {
	s.mu.Lock()
	s.status = StatusFailed
	s.lastError = err
	s.mu.Unlock()
}

// Stop terminates the gateway process group and waits for the watcher
// to exit. It is safe to call on a stopped supervisor.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	done := s.done
	if done == nil {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	cmd := s.cmd
	cancel := s.cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.done = nil
		s.mu.Unlock()
	}()

	// Ends any backoff wait; a running process still needs the signal.
	cancel()

	pid := cmd.Process.Pid
	s.log().Info("stopping gateway", "name", s.cfg.Name, "pid", pid)

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.log().Warn("failed to signal gateway", "name", s.cfg.Name, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(s.cfg.GracefulTimeout):
		s.log().Warn("gateway ignored SIGTERM, killing", "name", s.cfg.Name, "timeout", s.cfg.GracefulTimeout)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing gateway %s: %w", s.cfg.Name, err)
	}
	<-done
	return nil
}

// Stats is a snapshot of the supervisor.
type Stats struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	PID       int           `json:"pid,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	Restarts  int           `json:"restarts"`
	LastError string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the gateway.
func (s *Supervisor) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Name:     s.cfg.Name,
		Status:   s.status,
		Restarts: s.restarts,
	}
	if s.status == StatusRunning && s.cmd != nil && s.cmd.Process != nil {
		st.PID = s.cmd.Process.Pid
		st.Uptime = time.Since(s.startedAt)
	}
	if s.lastError != nil {
		st.LastError = s.lastError.Error()
	}
	return st
}
