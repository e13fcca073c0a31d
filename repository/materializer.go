package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"go.uber.org/zap"
)

// Recognized file names, looked up only in the resolved directory.
const (
	SmitheryRecipeName = "smithery.yaml"
	OmniRecipeName     = "omnimcp.yaml"
	BuildFileName      = "Dockerfile"
)

// RecipeNames lists recipe file names in lookup order.
var RecipeNames = []string{SmitheryRecipeName, OmniRecipeName}

// Cloner clones URL (optionally at branch) into dest. The returned output
// carries diagnostics of the underlying version control tool.
type Cloner interface {
	Clone(ctx context.Context, URL, branch, dest string) (string, error)
}

// Repository is a materialized repository owned by the Materializer.
type Repository struct {
	ID   string
	Path string
}

// Recipe is a discovered recipe file and the directory it applies to.
type Recipe struct {
	Path string
	Dir  string
}

// Materializer clones repositories into private, uniquely named directories.
type Materializer struct {
	baseDir  string
	registry *Registry
	cloner   Cloner
	fs       afs.Service
	logger   *zap.SugaredLogger
}

// Option configures a Materializer.
type Option func(m *Materializer)

// WithRegistry sets the registry tracking materialized repositories.
func WithRegistry(registry *Registry) Option {
	return func(m *Materializer) {
		m.registry = registry
	}
}

// WithCloner sets the version control collaborator.
func WithCloner(cloner Cloner) Option {
	return func(m *Materializer) {
		m.cloner = cloner
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(m *Materializer) {
		m.logger = logger.Named("repository")
	}
}

// Registry returns the registry used by the materializer.
func (m *Materializer) Registry() *Registry {
	return m.registry
}

// BaseDir returns the directory holding materialized repositories.
func (m *Materializer) BaseDir() string {
	return m.baseDir
}

// Clone materializes URL into a fresh directory. On failure nothing is left on disk.
func (m *Materializer) Clone(ctx context.Context, URL, branch string) (*Repository, error) {
	id := uuid.NewString()
	dest := filepath.Join(m.baseDir, id)
	m.logger.Infow("cloning repository", "url", URL, "branch", branch, "id", id)
	output, err := m.cloner.Clone(ctx, URL, branch, dest)
	if err != nil {
		if rmErr := m.remove(ctx, dest); rmErr != nil {
			m.logger.Warnw("failed to remove partial clone", "path", dest, "error", rmErr)
		}
		return nil, &CloneError{URL: URL, Branch: branch, Output: strings.TrimSpace(output), Err: err}
	}
	m.registry.Register(id, dest)
	return &Repository{ID: id, Path: dest}, nil
}

// Dir resolves subdirectory within repo; an empty subdirectory means the root.
func (m *Materializer) Dir(repo *Repository, subdirectory string) (string, error) {
	if subdirectory == "" {
		return repo.Path, nil
	}
	dir := filepath.Join(repo.Path, filepath.FromSlash(subdirectory))
	rel, err := filepath.Rel(repo.Path, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %v", ErrOutsideRepository, subdirectory)
	}
	return dir, nil
}

// FindRecipe returns the first recognized recipe file in the resolved
// directory, or nil when there is none.
func (m *Materializer) FindRecipe(ctx context.Context, repo *Repository, subdirectory string) (*Recipe, error) {
	dir, err := m.Dir(repo, subdirectory)
	if err != nil {
		return nil, err
	}
	for _, name := range RecipeNames {
		candidate := filepath.Join(dir, name)
		if m.isFile(ctx, candidate) {
			return &Recipe{Path: candidate, Dir: dir}, nil
		}
	}
	return nil, nil
}

// FindBuildFile returns the build definition located at the resolved
// directory root, or an empty string. The search is never recursive.
func (m *Materializer) FindBuildFile(ctx context.Context, repo *Repository, subdirectory string) (string, error) {
	dir, err := m.Dir(repo, subdirectory)
	if err != nil {
		return "", err
	}
	candidate := filepath.Join(dir, BuildFileName)
	if m.isFile(ctx, candidate) {
		return candidate, nil
	}
	return "", nil
}

// Contains reports whether location is a file inside repo.
func (m *Materializer) Contains(ctx context.Context, repo *Repository, location string) bool {
	rel, err := filepath.Rel(repo.Path, location)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return m.isFile(ctx, location)
}

// Cleanup removes repository id. Unknown or already removed ids are ignored.
// The registration is dropped even when removal fails.
func (m *Materializer) Cleanup(ctx context.Context, id string) error {
	path, ok := m.registry.Unregister(id)
	if !ok {
		return nil
	}
	if err := m.remove(ctx, path); err != nil {
		m.logger.Errorw("failed to clean up repository", "id", id, "error", err)
		return fmt.Errorf("failed to clean up repository %v: %w", id, err)
	}
	m.logger.Infow("cleaned up repository", "id", id)
	return nil
}

// CleanupAll removes every registered repository.
func (m *Materializer) CleanupAll(ctx context.Context) error {
	var errs []error
	for _, id := range m.registry.IDs() {
		if err := m.Cleanup(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Materializer) isFile(ctx context.Context, location string) bool {
	object, err := m.fs.Object(ctx, location)
	if err != nil || object == nil {
		return false
	}
	return !object.IsDir()
}

func (m *Materializer) remove(ctx context.Context, location string) error {
	exists, err := m.fs.Exists(ctx, location)
	if err != nil || !exists {
		return err
	}
	return m.fs.Delete(ctx, location)
}

// New creates a Materializer storing clones under baseDir; an empty baseDir
// selects a directory in the system temp location.
func New(baseDir string, options ...Option) (*Materializer, error) {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "mcpgate", "repos")
	}
	baseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, err
	}
	if err = os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create repository dir %v: %w", baseDir, err)
	}
	ret := &Materializer{
		baseDir: baseDir,
		fs:      afs.New(),
		logger:  zap.NewNop().Sugar(),
	}
	for _, option := range options {
		option(ret)
	}
	if ret.registry == nil {
		ret.registry = NewRegistry()
	}
	if ret.cloner == nil {
		ret.cloner = &GitCloner{Depth: 1}
	}
	return ret, nil
}
