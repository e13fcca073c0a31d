package recipe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// StdioType is the only supported start command transport.
const StdioType = "stdio"

// ErrUnsupportedTransport is returned for start commands other than stdio.
var ErrUnsupportedTransport = errors.New("unsupported start command type")

// Recipe represents a parsed recipe file.
type Recipe struct {
	StartCommand *StartCommand `yaml:"startCommand,omitempty"`
	Build        *Build        `yaml:"build,omitempty"`
}

// StartCommand describes how the tool server is started.
type StartCommand struct {
	Type         string                 `yaml:"type"`
	ConfigSchema map[string]interface{} `yaml:"configSchema,omitempty"`
}

// Build overrides the build definition and context, relative to the recipe dir.
type Build struct {
	Dockerfile      string `yaml:"dockerfile,omitempty"`
	DockerBuildPath string `yaml:"dockerBuildPath,omitempty"`
}

// Validate checks the recipe is usable by the gateway.
func (r *Recipe) Validate() error {
	if r.StartCommand != nil && r.StartCommand.Type != "" && r.StartCommand.Type != StdioType {
		return fmt.Errorf("%w: %v", ErrUnsupportedTransport, r.StartCommand.Type)
	}
	if r.Build != nil {
		for _, candidate := range []string{r.Build.Dockerfile, r.Build.DockerBuildPath} {
			if filepath.IsAbs(candidate) {
				return fmt.Errorf("build path must be relative: %v", candidate)
			}
		}
	}
	return nil
}

// Dockerfile returns the declared build file resolved against dir, or an
// empty string when the recipe does not declare one.
func (r *Recipe) Dockerfile(dir string) string {
	if r.Build == nil || strings.TrimSpace(r.Build.Dockerfile) == "" {
		return ""
	}
	return filepath.Join(dir, filepath.FromSlash(r.Build.Dockerfile))
}

// BuildPath returns the declared build context resolved against dir; dir
// itself when none is declared.
func (r *Recipe) BuildPath(dir string) string {
	if r.Build == nil || strings.TrimSpace(r.Build.DockerBuildPath) == "" {
		return dir
	}
	return filepath.Join(dir, filepath.FromSlash(r.Build.DockerBuildPath))
}

// Parse decodes and validates recipe data.
func Parse(data []byte) (*Recipe, error) {
	ret := &Recipe{}
	if err := yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to decode recipe: %w", err)
	}
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Load reads the recipe at URL.
func Load(ctx context.Context, fs afs.Service, URL string) (*Recipe, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe %v: %w", URL, err)
	}
	ret, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid recipe %v: %w", URL, err)
	}
	return ret, nil
}
