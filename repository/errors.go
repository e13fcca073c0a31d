package repository

import (
	"errors"
	"fmt"
)

// ErrOutsideRepository is returned when a subdirectory escapes the repository root.
var ErrOutsideRepository = errors.New("path escapes repository root")

// CloneError reports a failed clone together with the version control diagnostics.
type CloneError struct {
	URL    string
	Branch string
	Output string
	Err    error
}

func (e *CloneError) Error() string {
	msg := fmt.Sprintf("failed to clone %v", e.URL)
	if e.Branch != "" {
		msg += " (branch " + e.Branch + ")"
	}
	msg += fmt.Sprintf(": %v", e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *CloneError) Unwrap() error {
	return e.Err
}

// RecipeNotFoundError is returned when no recognized build file exists in Dir.
type RecipeNotFoundError struct {
	Dir string
}

func (e *RecipeNotFoundError) Error() string {
	return fmt.Sprintf("no %v found in %v", BuildFileName, e.Dir)
}
