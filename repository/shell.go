package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/gosh"
	"github.com/viant/gosh/runner/local"
)

// ShellCloner clones repositories with the git command line tool, run
// through a local gosh shell session. It supports whatever transport and
// credential helpers the host git is configured with.
type ShellCloner struct {
	service *gosh.Service
}

func (s *ShellCloner) Clone(ctx context.Context, URL, branch, dest string) (string, error) {
	args := []string{"git", "clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", quote(branch))
	}
	args = append(args, quote(URL), quote(dest), "2>&1")
	output, code, err := s.service.Run(ctx, strings.Join(args, " "))
	if err != nil {
		return output, err
	}
	if code != 0 {
		return output, fmt.Errorf("git clone exited with code %d", code)
	}
	return output, nil
}

func quote(arg string) string {
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

// NewShellCloner starts a local shell session used for clones.
func NewShellCloner(ctx context.Context) (*ShellCloner, error) {
	service, err := gosh.New(ctx, local.New())
	if err != nil {
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}
	return &ShellCloner{service: service}, nil
}
