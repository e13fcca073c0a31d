package process

import (
	"errors"
	"fmt"
)

// ErrStreamsClaimed is returned when stdio has already been handed out.
var ErrStreamsClaimed = errors.New("process streams already claimed")

// StartError reports a subprocess that failed to spawn or exited within the
// start window.
type StartError struct {
	Tag      string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *StartError) Error() string {
	message := fmt.Sprintf("failed to start %v", e.Tag)
	if e.Err != nil {
		message += ": " + e.Err.Error()
	} else {
		message += fmt.Sprintf(": exited with code %d", e.ExitCode)
	}
	if e.Stderr != "" {
		message += "\n" + e.Stderr
	}
	return message
}

func (e *StartError) Unwrap() error {
	return e.Err
}
