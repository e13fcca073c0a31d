package process

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultStartWindow is how long a fresh process must survive to count as started.
	DefaultStartWindow = 500 * time.Millisecond
	// DefaultGracePeriod is how long Terminate waits before killing.
	DefaultGracePeriod = 5 * time.Second
	stderrTailLines    = 50
	// killTimeout bounds the launcher kill of an escalated termination.
	killTimeout = 10 * time.Second
)

// Supervisor starts and owns subprocesses.
type Supervisor struct {
	launcher    Launcher
	startWindow time.Duration
	grace       time.Duration
	logger      *zap.SugaredLogger
}

// Option configures a Supervisor.
type Option func(s *Supervisor)

// WithLauncher sets the command launcher.
func WithLauncher(launcher Launcher) Option {
	return func(s *Supervisor) {
		s.launcher = launcher
	}
}

// WithStartWindow sets the start window; zero disables the check.
func WithStartWindow(window time.Duration) Option {
	return func(s *Supervisor) {
		s.startWindow = window
	}
}

// WithGracePeriod sets the termination grace period.
func WithGracePeriod(grace time.Duration) Option {
	return func(s *Supervisor) {
		s.grace = grace
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Supervisor) {
		s.logger = logger.Named("process")
	}
}

// Start launches tag and waits out the start window. A process exiting
// within the window is reported as *StartError carrying its stderr tail.
func (s *Supervisor) Start(ctx context.Context, tag string, args []string, env map[string]string) (*Process, error) {
	cmd := s.launcher.Command(tag, args, env)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &StartError{Tag: tag, ExitCode: -1, Err: err}
	}
	outReader, outWriter, err := os.Pipe()
	if err != nil {
		return nil, &StartError{Tag: tag, ExitCode: -1, Err: err}
	}
	cmd.Stdout = outWriter
	stderr := &stderrLog{logger: s.logger.Named("stderr"), limit: stderrTailLines}
	cmd.Stderr = stderr
	ret := &Process{
		Tag:      tag,
		Env:      env,
		cmd:      cmd,
		stdin:    stdin,
		stdout:   outReader,
		stderr:   stderr,
		grace:    s.grace,
		logger:   s.logger,
		state:    Starting,
		exitCode: -1,
		done:     make(chan struct{}),
	}
	s.logger.Infow("starting process", "tag", tag, "args", args)
	err = cmd.Start()
	_ = outWriter.Close()
	if err != nil {
		_ = outReader.Close()
		return nil, &StartError{Tag: tag, ExitCode: -1, Err: err}
	}
	if killer, ok := s.launcher.(Killer); ok {
		ret.killer = killer
	}
	go ret.wait()

	if s.startWindow > 0 {
		timer := time.NewTimer(s.startWindow)
		defer timer.Stop()
		select {
		case <-ret.done:
			_ = outReader.Close()
			return nil, &StartError{Tag: tag, ExitCode: ret.ExitCode(), Stderr: ret.Stderr()}
		case <-ctx.Done():
			_ = ret.Terminate(context.Background())
			_ = outReader.Close()
			return nil, &StartError{Tag: tag, ExitCode: ret.ExitCode(), Stderr: ret.Stderr(), Err: ctx.Err()}
		case <-timer.C:
		}
	}
	ret.mux.Lock()
	if ret.state == Starting {
		ret.state = Running
	}
	ret.mux.Unlock()
	s.logger.Infow("process running", "tag", tag, "pid", ret.Pid())
	return ret, nil
}

// NewSupervisor creates a Supervisor using docker run by default.
func NewSupervisor(options ...Option) *Supervisor {
	ret := &Supervisor{
		launcher:    &DockerLauncher{},
		startWindow: DefaultStartWindow,
		grace:       DefaultGracePeriod,
		logger:      zap.NewNop().Sugar(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}
