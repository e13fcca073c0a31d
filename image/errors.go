package image

import "fmt"

// LoginError reports a failed registry login; no build is attempted after it.
type LoginError struct {
	Registry string
	Err      error
}

func (e *LoginError) Error() string {
	registry := e.Registry
	if registry == "" {
		registry = "default registry"
	}
	return fmt.Sprintf("failed to log in to %v: %v", registry, e.Err)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// BuildError reports a failed image build with the engine diagnostics.
type BuildError struct {
	Tag    string
	Output string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("failed to build image %v: %v", e.Tag, e.Err)
	}
	return fmt.Sprintf("failed to build image %v: %v\n%v", e.Tag, e.Err, e.Output)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}
