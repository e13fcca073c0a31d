package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultQueueSize = 64
	// DefaultDeliveryTimeout bounds how long a broadcast session may block delivery.
	DefaultDeliveryTimeout = 10 * time.Second
	// drainTimeout bounds how long stdout is read after the subprocess exited.
	drainTimeout = 2 * time.Second
)

// Subprocess is the process side of the bridge.
type Subprocess interface {
	Streams() (io.WriteCloser, io.ReadCloser, error)
	Done() <-chan struct{}
	ExitCode() int
}

// Bridge connects one subprocess to its sessions.
type Bridge struct {
	policy          Policy
	maxFrameSize    int
	queueSize       int
	deliveryTimeout time.Duration
	logger          *zap.SugaredLogger

	proc   Subprocess
	stdin  io.WriteCloser
	stdout io.ReadCloser

	mux      sync.Mutex
	sessions map[string]*Session
	exited   bool

	mailbox  chan *writeRequest
	readDone chan struct{}
	finished chan struct{}
}

type writeRequest struct {
	data   []byte
	result chan error
}

// Policy returns the session policy.
func (b *Bridge) Policy() Policy {
	return b.policy
}

// Attach creates a session receiving subsequent subprocess frames.
func (b *Bridge) Attach() (*Session, error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	if b.exited {
		return nil, ErrProcessExited
	}
	if b.policy == Exclusive && len(b.sessions) > 0 {
		return nil, ErrSessionBusy
	}
	ret := &Session{
		ID:       uuid.NewString(),
		bridge:   b,
		outbound: make(chan []byte, b.queueSize),
		done:     make(chan struct{}),
	}
	b.sessions[ret.ID] = ret
	b.logger.Infow("session attached", "session", ret.ID, "policy", b.policy)
	return ret, nil
}

// Sessions returns the number of attached sessions.
func (b *Bridge) Sessions() int {
	b.mux.Lock()
	defer b.mux.Unlock()
	return len(b.sessions)
}

// Done is closed after the subprocess exited and every session was closed.
func (b *Bridge) Done() <-chan struct{} {
	return b.finished
}

// Wait blocks until Done or ctx is done.
func (b *Bridge) Wait(ctx context.Context) error {
	select {
	case <-b.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) detach(session *Session) {
	b.mux.Lock()
	_, ok := b.sessions[session.ID]
	delete(b.sessions, session.ID)
	b.mux.Unlock()
	if ok {
		b.logger.Infow("session detached", "session", session.ID)
	}
}

func (b *Bridge) snapshot() []*Session {
	b.mux.Lock()
	defer b.mux.Unlock()
	ret := make([]*Session, 0, len(b.sessions))
	for _, session := range b.sessions {
		ret = append(ret, session)
	}
	return ret
}

func (b *Bridge) read() {
	defer b.finish()
	defer close(b.readDone)
	reader := bufio.NewReaderSize(b.stdout, 64*1024)
	for {
		line, err := readFrame(reader, b.maxFrameSize)
		if errors.Is(err, errFrameTooLarge) {
			b.logger.Warnw("skipping oversized frame", "limit", b.maxFrameSize)
			continue
		}
		if len(line) > 0 {
			if isFrame(line) {
				b.fanout(line)
			} else {
				b.logger.Warnw("skipping non JSON output", "line", string(line))
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				b.logger.Warnw("stopped reading process output", "error", err)
			}
			return
		}
	}
}

func (b *Bridge) fanout(data []byte) {
	sessions := b.snapshot()
	if len(sessions) == 0 {
		b.logger.Debugw("no session attached, frame discarded", "size", len(data))
		return
	}
	for _, session := range sessions {
		if b.policy != Broadcast || b.deliveryTimeout <= 0 {
			session.deliver(data)
			continue
		}
		if !session.deliverWithin(data, b.deliveryTimeout) && !session.ended() {
			b.logger.Warnw("evicting stalled session", "session", session.ID, "timeout", b.deliveryTimeout)
			b.detach(session)
			session.close(ErrSessionStalled)
		}
	}
}

// watch unblocks the reader when the subprocess exited but its stdout is
// still held open.
func (b *Bridge) watch() {
	select {
	case <-b.readDone:
		return
	case <-b.proc.Done():
	}
	timer := time.NewTimer(drainTimeout)
	defer timer.Stop()
	select {
	case <-b.readDone:
	case <-timer.C:
		_ = b.stdout.Close()
	}
}

func (b *Bridge) finish() {
	<-b.proc.Done()
	code := b.proc.ExitCode()
	b.mux.Lock()
	b.exited = true
	b.mux.Unlock()
	notification, err := exitNotification(code)
	if err != nil {
		b.logger.Errorw("failed to build exit notification", "error", err)
	}
	for _, session := range b.snapshot() {
		if notification != nil && !session.deliverWithin(notification, drainTimeout) {
			b.logger.Warnw("exit notification not delivered", "session", session.ID)
		}
		b.detach(session)
		session.close(ErrProcessExited)
	}
	b.logger.Infow("process exited, sessions closed", "code", code)
	close(b.finished)
}

func (b *Bridge) writeLoop() {
	for {
		select {
		case request := <-b.mailbox:
			line := make([]byte, 0, len(request.data)+1)
			line = append(append(line, request.data...), '\n')
			_, err := b.stdin.Write(line)
			request.result <- err
		case <-b.finished:
			return
		}
	}
}

func (b *Bridge) write(ctx context.Context, session *Session, data []byte) error {
	request := &writeRequest{data: data, result: make(chan error, 1)}
	select {
	case b.mailbox <- request:
	case <-b.finished:
		return ErrProcessExited
	case <-session.done:
		return session.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-request.result:
		if err != nil {
			return fmt.Errorf("failed to write to process: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// New claims the subprocess stdio and starts moving frames.
func New(proc Subprocess, options ...Option) (*Bridge, error) {
	stdin, stdout, err := proc.Streams()
	if err != nil {
		return nil, err
	}
	ret := &Bridge{
		policy:          Exclusive,
		maxFrameSize:    DefaultMaxFrameSize,
		queueSize:       defaultQueueSize,
		deliveryTimeout: DefaultDeliveryTimeout,
		logger:          zap.NewNop().Sugar(),
		proc:            proc,
		stdin:           stdin,
		stdout:          stdout,
		sessions:        map[string]*Session{},
		mailbox:         make(chan *writeRequest),
		readDone:        make(chan struct{}),
		finished:        make(chan struct{}),
	}
	for _, option := range options {
		option(ret)
	}
	go ret.read()
	go ret.watch()
	go ret.writeLoop()
	return ret, nil
}
