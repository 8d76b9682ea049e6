package process

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

// Status represents the current state of the supervised command.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

// maxLineBytes caps a single relayed output line. Bundlers print long
// single-line progress bars; the rest of such a line is dropped.
const maxLineBytes = 64 << 10

// readyCheckTimeout bounds a single Ready probe.
const readyCheckTimeout = 5 * time.Second

// Config holds configuration for a supervised command.
type Config struct {
	// Name identifies the command in log entries and Stats.
	Name string

	// Command is the executable followed by its arguments.
	Command []string

	// Env are additional KEY=value pairs appended to the console's environment.
	Env []string

	// WorkDir is the working directory. Empty inherits the console's.
	WorkDir string

	// RestartOnFailure restarts the command when it exits without Stop.
	RestartOnFailure bool

	// RestartDelay is the first backoff step; each further attempt doubles it
	// up to MaxRestartDelay.
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration

	// MaxRestartAttempts limits consecutive restarts. 0 means unlimited.
	MaxRestartAttempts int

	// StableThreshold resets the restart counter once the command has stayed
	// up this long.
	StableThreshold time.Duration

	// GracefulTimeout is how long Stop waits after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// Ready reports whether the command's output is usable (for the bundler:
	// the index document exists). Nil means running is ready.
	Ready         func(ctx context.Context) error
	ReadyInterval time.Duration

	// OnExit is called after every exit with the exit error (nil after Stop).
	OnExit func(err error)
}

// DefaultConfig returns a Config for a restartable watch command.
func DefaultConfig(name string, command []string) Config {
	return Config{
		Name:               name,
		Command:            command,
		RestartOnFailure:   true,
		RestartDelay:       time.Second,
		MaxRestartDelay:    time.Minute,
		MaxRestartAttempts: 10,
		StableThreshold:    2 * time.Minute,
		GracefulTimeout:    5 * time.Second,
		ReadyInterval:      2 * time.Second,
	}
}

// Logger is the subset of *logging.Logger the supervisor writes to.
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

// Supervisor runs one command and keeps it running until Stop.
type Supervisor struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	exited        chan error // receives the Wait result of cmd
	status        Status
	restarts      int
	ready         bool
	lastError     error
	startTime     time.Time
	stopRequested bool
	stopCh        chan struct{} // closed by Stop
	done          chan struct{} // closed when the monitor returns
}

// NewSupervisor validates cfg and fills zero durations with defaults.
func NewSupervisor(cfg Config) (*Supervisor, error) {
	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		return nil, ErrNoCommand
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Command[0]
	}

	defaults := DefaultConfig(cfg.Name, cfg.Command)
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = defaults.RestartDelay
	}
	if cfg.MaxRestartDelay < cfg.RestartDelay {
		cfg.MaxRestartDelay = max(defaults.MaxRestartDelay, cfg.RestartDelay)
	}
	if cfg.StableThreshold <= 0 {
		cfg.StableThreshold = defaults.StableThreshold
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaults.GracefulTimeout
	}
	if cfg.ReadyInterval <= 0 {
		cfg.ReadyInterval = defaults.ReadyInterval
	}

	return &Supervisor{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}, nil
}

// SetLogger sets the logger. Call before Start.
func (s *Supervisor) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// Start launches the command and monitors it in the background.
// Cancelling ctx kills the command and ends supervision.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusRunning || s.status == StatusStarting {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, s.config.Name)
	}
	s.status = StatusStarting
	s.stopRequested = false
	s.restarts = 0
	s.lastError = nil
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	if err := s.launch(ctx); err != nil {
		s.mu.Lock()
		s.status = StatusFailed
		s.lastError = err
		close(s.done)
		s.mu.Unlock()
		return err
	}

	go s.monitor(ctx)
	return nil
}

// launch starts one instance of the command.
func (s *Supervisor) launch(ctx context.Context) error {
	s.logger.Info("starting watch command",
		"name", s.config.Name,
		"command", s.config.Command,
		"dir", s.config.WorkDir,
	)

	cmd := exec.CommandContext(ctx, s.config.Command[0], s.config.Command[1:]...) //nolint:gosec // Command comes from the operator's config file
	// Own process group so Stop reaches the bundler's children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.Dir = s.config.WorkDir
	if len(s.config.Env) > 0 {
		cmd.Env = append(os.Environ(), s.config.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", s.config.Name, err)
	}

	// Wait must not run before the pipes are drained.
	var readers sync.WaitGroup
	readers.Add(2)
	go s.relay(&readers, "stdout", stdout)
	go s.relay(&readers, "stderr", stderr)

	exited := make(chan error, 1)
	go func() {
		readers.Wait()
		exited <- cmd.Wait()
	}()

	s.mu.Lock()
	s.cmd = cmd
	s.exited = exited
	s.status = StatusRunning
	s.ready = s.config.Ready == nil
	s.startTime = time.Now()
	stopping := s.stopRequested
	s.mu.Unlock()

	if stopping {
		// Stop raced with a restart; the monitor collects the exit.
		syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL) //nolint:errcheck // Best effort
		return nil
	}

	s.logger.Info("watch command started", "name", s.config.Name, "pid", cmd.Process.Pid)
	return nil
}

// relay logs the stream one line at a time. Lines longer than
// maxLineBytes are logged truncated and relaying continues.
func (s *Supervisor) relay(wg *sync.WaitGroup, stream string, r io.Reader) {
	defer wg.Done()

	reader := bufio.NewReaderSize(r, 4096)
	var line []byte
	truncated := false
	for {
		chunk, isPrefix, err := reader.ReadLine()
		if room := maxLineBytes - len(line); len(chunk) > room {
			chunk, truncated = chunk[:room], true
		}
		line = append(line, chunk...)
		if isPrefix && err == nil {
			continue
		}
		if len(line) > 0 {
			s.logLine(stream, line, truncated)
		}
		line, truncated = line[:0], false
		if err != nil {
			if err != io.EOF {
				s.logger.Debug("watch output stream closed", "name", s.config.Name, "stream", stream, "error", err)
			}
			return
		}
	}
}

func (s *Supervisor) logLine(stream string, line []byte, truncated bool) {
	if truncated {
		s.logger.Info("watch output", "name", s.config.Name, "stream", stream, "line", string(line), "truncated", true)
		return
	}
	s.logger.Info("watch output", "name", s.config.Name, "stream", stream, "line", string(line))
}

// waitForExit blocks until the command exits or ctx ends, probing Ready
// on every tick while it runs.
func (s *Supervisor) waitForExit(ctx context.Context, exited <-chan error) error {
	if s.config.Ready == nil {
		select {
		case err := <-exited:
			return err
		case <-ctx.Done():
			return <-exited
		}
	}

	ticker := time.NewTicker(s.config.ReadyInterval)
	defer ticker.Stop()

	s.probe(ctx)
	for {
		select {
		case err := <-exited:
			return err
		case <-ctx.Done():
			// CommandContext kills the process; collect its exit.
			return <-exited
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

// probe runs the Ready check and logs transitions.
func (s *Supervisor) probe(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, readyCheckTimeout)
	err := s.config.Ready(checkCtx)
	cancel()

	s.mu.Lock()
	was := s.ready
	s.ready = err == nil
	s.mu.Unlock()

	switch {
	case err == nil && !was:
		s.logger.Info("watch output ready", "name", s.config.Name)
	case err != nil && was:
		s.logger.Warn("watch output no longer ready", "name", s.config.Name, "error", err)
	}
}

// monitor waits on each instance and restarts it with backoff.
func (s *Supervisor) monitor(ctx context.Context) {
	defer close(s.done)

	for {
		s.mu.RLock()
		exited := s.exited
		s.mu.RUnlock()

		err := s.waitForExit(ctx, exited)

		s.mu.Lock()
		stopRequested := s.stopRequested || ctx.Err() != nil
		uptime := time.Since(s.startTime)
		s.ready = false
		if stopRequested {
			s.status = StatusStopped
		} else {
			s.status = StatusFailed
			s.lastError = exitError(err)
			if uptime >= s.config.StableThreshold {
				s.restarts = 0
			}
		}
		lastError := s.lastError
		s.mu.Unlock()

		if stopRequested {
			s.logger.Info("watch command stopped", "name", s.config.Name)
			s.notifyExit(nil)
			return
		}

		s.logger.Warn("watch command exited", "name", s.config.Name, "error", lastError, "uptime", uptime)
		s.notifyExit(lastError)

		if !s.config.RestartOnFailure || !s.restart(ctx) {
			return
		}
	}
}

// restart relaunches the command after backoff, retrying failed launches.
// It returns false when supervision should end.
func (s *Supervisor) restart(ctx context.Context) bool {
	for {
		s.mu.Lock()
		s.restarts++
		attempt := s.restarts
		s.mu.Unlock()

		if s.config.MaxRestartAttempts > 0 && attempt > s.config.MaxRestartAttempts {
			s.logger.Error("watch command restart limit reached",
				"name", s.config.Name,
				"attempts", s.config.MaxRestartAttempts,
			)
			return false
		}

		delay := s.backoff(attempt)
		s.logger.Info("restarting watch command", "name", s.config.Name, "attempt", attempt, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.setStopped()
			return false
		case <-s.stopCh:
			timer.Stop()
			s.setStopped()
			return false
		case <-timer.C:
		}

		err := s.launch(ctx)
		if err == nil {
			return true
		}
		s.logger.Error("failed to restart watch command", "name", s.config.Name, "error", err)
		s.mu.Lock()
		s.lastError = err
		s.mu.Unlock()
	}
}

func (s *Supervisor) setStopped() {
	s.mu.Lock()
	s.status = StatusStopped
	s.mu.Unlock()
}

func (s *Supervisor) notifyExit(err error) {
	if s.config.OnExit != nil {
		s.config.OnExit(err)
	}
}

// backoff returns RestartDelay doubled per attempt, capped at MaxRestartDelay.
func (s *Supervisor) backoff(attempt int) time.Duration {
	delay := s.config.RestartDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.config.MaxRestartDelay {
			return s.config.MaxRestartDelay
		}
	}
	return delay
}

// exitError turns a clean exit into a reportable error; a watch command
// is never expected to finish on its own.
func exitError(err error) error {
	if err == nil {
		return ErrExited
	}
	return err
}

// Stop sends SIGTERM to the command's process group, then SIGKILL after
// GracefulTimeout, and waits for supervision to end.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	done := s.done
	if done == nil {
		s.mu.Unlock()
		return nil
	}
	if !s.stopRequested {
		s.stopRequested = true
		close(s.stopCh)
	}
	cmd := s.cmd
	running := s.status == StatusRunning
	s.mu.Unlock()

	if !running || cmd == nil || cmd.Process == nil {
		// Between restarts or already given up; the monitor sees stopRequested.
		<-done
		return nil
	}

	pid := cmd.Process.Pid
	s.logger.Info("stopping watch command", "name", s.config.Name, "pid", pid)

	// Negative PID addresses the process group created via Setpgid.
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.logger.Warn("failed to send SIGTERM", "name", s.config.Name, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(s.config.GracefulTimeout):
		s.logger.Warn("watch command ignored SIGTERM, sending SIGKILL",
			"name", s.config.Name,
			"timeout", s.config.GracefulTimeout,
		)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing %s: %w", s.config.Name, err)
	}
	<-done
	return nil
}

// Status returns the current status.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// IsRunning reports whether the command is currently running.
func (s *Supervisor) IsRunning() bool {
	return s.Status() == StatusRunning
}

// Stats describes the supervised command for the health endpoint.
type Stats struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	PID       int    `json:"pid,omitempty"`
	Uptime    string `json:"uptime,omitempty"`
	Restarts  int    `json:"restarts"`
	Ready     bool   `json:"ready"`
	LastError string `json:"last_error,omitempty"`
}

// Stats returns a snapshot of the supervisor state.
func (s *Supervisor) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Name:     s.config.Name,
		Status:   s.status,
		Restarts: s.restarts,
		Ready:    s.ready && s.status == StatusRunning,
	}
	if s.status == StatusRunning && s.cmd != nil && s.cmd.Process != nil {
		stats.PID = s.cmd.Process.Pid
		stats.Uptime = time.Since(s.startTime).Truncate(time.Second).String()
	}
	if s.lastError != nil {
		stats.LastError = s.lastError.Error()
	}
	return stats
}

// FileReady returns a Ready check that passes once path exists and is
// not empty.
func FileReady(path string) func(context.Context) error {
	return func(context.Context) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() == 0 {
			return fmt.Errorf("%s is empty", path)
		}
		return nil
	}
}
