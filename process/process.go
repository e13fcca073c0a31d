package process

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Process is a supervised subprocess.
type Process struct {
	Tag    string
	Env    map[string]string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr *stderrLog
	grace  time.Duration
	killer Killer
	logger *zap.SugaredLogger

	mux         sync.Mutex
	state       State
	exitCode    int
	claimed     bool
	terminating bool
	err         error
	done        chan struct{}
}

// Pid returns the operating system process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.state
}

// ExitCode returns the exit code, or -1 while the process is alive.
func (p *Process) ExitCode() int {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.exitCode
}

// Err returns the wait error of an exited process.
func (p *Process) Err() error {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.err
}

// Stderr returns the retained tail of the process stderr.
func (p *Process) Stderr() string {
	return p.stderr.Tail()
}

// Done is closed once the process has exited and its state is final.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Streams hands out stdin and stdout. Only the first call succeeds.
func (p *Process) Streams() (io.WriteCloser, io.ReadCloser, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.claimed {
		return nil, nil, ErrStreamsClaimed
	}
	p.claimed = true
	return p.stdin, p.stdout, nil
}

// Wait blocks until the process exits or ctx is done and returns the exit code.
func (p *Process) Wait(ctx context.Context) (int, error) {
	select {
	case <-p.done:
		return p.ExitCode(), nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// Terminate asks the process to stop, escalating to kill after the grace
// period or when ctx is done. Terminating an exited process is a no-op.
func (p *Process) Terminate(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	default:
	}
	p.mux.Lock()
	p.terminating = true
	p.mux.Unlock()
	p.logger.Infow("terminating process", "pid", p.Pid(), "grace", p.grace)
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warnw("failed to signal process", "pid", p.Pid(), "error", err)
	}
	timer := time.NewTimer(p.grace)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}
	p.logger.Warnw("killing process", "pid", p.Pid())
	var killErr error
	if p.killer != nil {
		killCtx, cancel := context.WithTimeout(context.Background(), killTimeout)
		killErr = p.killer.Kill(killCtx, p.Tag)
		cancel()
		if killErr != nil {
			p.logger.Errorw("failed to kill workload", "tag", p.Tag, "error", killErr)
		}
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.Join(killErr, err)
	}
	<-p.done
	return killErr
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.stderr.flush()
	p.mux.Lock()
	p.exitCode = p.cmd.ProcessState.ExitCode()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		p.err = err
	}
	if p.terminating {
		p.state = Killed
	} else {
		p.state = Exited
	}
	state, code := p.state, p.exitCode
	p.mux.Unlock()
	p.logger.Infow("process exited", "tag", p.Tag, "state", state.String(), "code", code)
	close(p.done)
}
