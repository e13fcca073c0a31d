package image

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TagPrefix prefixes generated image tags.
const TagPrefix = "mcpgate-"

// Artifact is a built image.
type Artifact struct {
	Tag string
}

// Builder builds runtime images through an Engine.
type Builder struct {
	engine      Engine
	credentials *Credentials
	logger      *zap.SugaredLogger
}

// Option configures a Builder.
type Option func(b *Builder)

// WithCredentials sets registry credentials; login happens before every build.
func WithCredentials(credentials *Credentials) Option {
	return func(b *Builder) {
		b.credentials = credentials
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(b *Builder) {
		b.logger = logger.Named("image")
	}
}

// Build builds the image defined by recipePath using contextDir as the build
// context. Every call produces a new image; nothing is cached.
func (b *Builder) Build(ctx context.Context, contextDir, recipePath, tag string) (*Artifact, error) {
	if tag == "" {
		tag = NewTag()
	}
	if !b.credentials.IsEmpty() {
		if err := b.engine.Login(ctx, b.credentials); err != nil {
			return nil, &LoginError{Registry: b.credentials.Registry, Err: err}
		}
	}
	if info, err := os.Stat(contextDir); err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("not a directory")
		}
		return nil, &BuildError{Tag: tag, Err: fmt.Errorf("invalid build context %v: %w", contextDir, err)}
	}
	if rel, err := filepath.Rel(contextDir, recipePath); err != nil || !filepath.IsLocal(rel) {
		return nil, &BuildError{Tag: tag, Err: fmt.Errorf("build file %v is outside of build context %v", recipePath, contextDir)}
	}
	b.logger.Infow("building image", "tag", tag, "context", contextDir, "dockerfile", recipePath)
	output, err := b.engine.Build(ctx, &BuildRequest{ContextDir: contextDir, Dockerfile: recipePath, Tag: tag})
	if err != nil {
		b.logger.Errorw("image build failed", "tag", tag, "error", err)
		return nil, &BuildError{Tag: tag, Output: output, Err: err}
	}
	b.logger.Infow("image built", "tag", tag)
	return &Artifact{Tag: tag}, nil
}

// NewTag returns a fresh image tag.
func NewTag() string {
	return TagPrefix + uuid.NewString()
}

// NewBuilder creates a Builder.
func NewBuilder(engine Engine, options ...Option) *Builder {
	ret := &Builder{engine: engine, logger: zap.NewNop().Sugar()}
	for _, option := range options {
		option(ret)
	}
	return ret
}
