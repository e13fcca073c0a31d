package repository

import (
	"bytes"
	"context"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
)

// GitCloner clones repositories in process with go-git.
type GitCloner struct {
	// Depth limits fetched history; zero fetches everything.
	Depth int
}

func (g *GitCloner) Clone(ctx context.Context, URL, branch, dest string) (string, error) {
	progress := &bytes.Buffer{}
	options := g.cloneOptions(URL, branch)
	options.Progress = progress
	_, err := git.PlainCloneContext(ctx, dest, options)
	return progress.String(), err
}

func (g *GitCloner) cloneOptions(URL, branch string) *git.CloneOptions {
	ret := &git.CloneOptions{
		URL:   URL,
		Depth: g.Depth,
	}
	if branch != "" {
		ret.ReferenceName = plumbing.NewBranchReferenceName(branch)
		ret.SingleBranch = true
	}
	return ret
}
