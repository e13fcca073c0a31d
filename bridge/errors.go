package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionBusy is returned by Attach when the exclusive session is taken.
	ErrSessionBusy = errors.New("session busy: another session is attached")
	// ErrProcessExited is returned once the subprocess has exited.
	ErrProcessExited = errors.New("tool server process has exited")
	// ErrSessionClosed is returned when using a detached session.
	ErrSessionClosed = errors.New("session closed")
	// ErrSessionStalled ends a broadcast session that stopped taking frames.
	ErrSessionStalled = errors.New("session stalled: frames were not consumed in time")
)

// MalformedMessageError reports a submitted payload that is not exactly one
// JSON object. Only the offending message is rejected.
type MalformedMessageError struct {
	Err error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed message: %v", e.Err)
}

func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}
