package image

import "context"

// Credentials authenticate against an image registry.
type Credentials struct {
	Registry string `yaml:"registry,omitempty" json:"registry,omitempty" toml:"registry"`
	Username string `yaml:"username,omitempty" json:"username,omitempty" toml:"username"`
	Password string `yaml:"password,omitempty" json:"password,omitempty" toml:"password"`
}

// IsEmpty reports whether no login should be performed.
func (c *Credentials) IsEmpty() bool {
	return c == nil || (c.Username == "" && c.Password == "")
}

// BuildRequest describes a single image build.
type BuildRequest struct {
	// ContextDir is the directory sent as the build context.
	ContextDir string
	// Dockerfile is the build definition; it must be located inside ContextDir.
	Dockerfile string
	Tag        string
}

// Engine is the image build collaborator.
type Engine interface {
	Login(ctx context.Context, credentials *Credentials) error
	// Build builds the request and returns the engine output.
	Build(ctx context.Context, request *BuildRequest) (string, error)
}
