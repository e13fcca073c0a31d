package bridge

import (
	"context"
	"sync"
	"time"
)

// Session is a caller attached to the bridge.
type Session struct {
	ID       string
	bridge   *Bridge
	outbound chan []byte
	done     chan struct{}
	once     sync.Once
	mux      sync.Mutex
	err      error
}

// Messages returns frames produced by the subprocess, in order.
func (s *Session) Messages() <-chan []byte {
	return s.outbound
}

// Done is closed when the session is detached or the subprocess exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns why the session ended: ErrSessionClosed, ErrSessionStalled or
// ErrProcessExited.
func (s *Session) Err() error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.err
}

// Next returns the next frame. Frames queued before the session ended are
// still returned; afterwards Next returns Err().
func (s *Session) Next(ctx context.Context) ([]byte, error) {
	select {
	case data := <-s.outbound:
		return data, nil
	default:
	}
	select {
	case data := <-s.outbound:
		return data, nil
	case <-s.done:
		select {
		case data := <-s.outbound:
			return data, nil
		default:
			return nil, s.Err()
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Submit writes one JSON object to the subprocess stdin. Frames of a
// session are written in submission order.
func (s *Session) Submit(ctx context.Context, data []byte) error {
	frame, err := normalize(data)
	if err != nil {
		return err
	}
	select {
	case <-s.done:
		return s.Err()
	default:
	}
	return s.bridge.write(ctx, s, frame)
}

// Close detaches the session; the subprocess is not affected.
func (s *Session) Close() error {
	s.bridge.detach(s)
	s.close(ErrSessionClosed)
	return nil
}

func (s *Session) close(reason error) {
	s.once.Do(func() {
		s.mux.Lock()
		s.err = reason
		s.mux.Unlock()
		close(s.done)
	})
}

// deliver hands data to the session, blocking until it is queued or the
// session ends.
func (s *Session) deliver(data []byte) bool {
	select {
	case s.outbound <- data:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) ended() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) deliverWithin(data []byte, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s.outbound <- data:
		return true
	case <-s.done:
		return false
	case <-timer.C:
		return false
	}
}
