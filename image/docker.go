package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
)

// DefaultRegistry is the auth key used when credentials name no registry.
const DefaultRegistry = "https://index.docker.io/v1/"

// DockerEngine builds images with the local Docker daemon.
type DockerEngine struct {
	client *client.Client
	mux    sync.Mutex
	auths  map[string]types.AuthConfig
}

// Login validates credentials with the daemon and keeps them for the base
// image pulls of subsequent builds.
func (d *DockerEngine) Login(ctx context.Context, credentials *Credentials) error {
	registry := credentials.Registry
	if registry == "" {
		registry = DefaultRegistry
	}
	auth := types.AuthConfig{
		ServerAddress: registry,
		Username:      credentials.Username,
		Password:      credentials.Password,
	}
	response, err := d.client.RegistryLogin(ctx, auth)
	if err != nil {
		return err
	}
	if response.IdentityToken != "" {
		auth.Password = ""
		auth.IdentityToken = response.IdentityToken
	}
	d.mux.Lock()
	defer d.mux.Unlock()
	if d.auths == nil {
		d.auths = map[string]types.AuthConfig{}
	}
	d.auths[registry] = auth
	return nil
}

func (d *DockerEngine) authConfigs() map[string]types.AuthConfig {
	d.mux.Lock()
	defer d.mux.Unlock()
	if len(d.auths) == 0 {
		return nil
	}
	ret := make(map[string]types.AuthConfig, len(d.auths))
	for registry, auth := range d.auths {
		ret[registry] = auth
	}
	return ret
}

func (d *DockerEngine) Build(ctx context.Context, request *BuildRequest) (string, error) {
	dockerfile, err := filepath.Rel(request.ContextDir, request.Dockerfile)
	if err != nil {
		return "", err
	}
	files, err := contextFiles(request.ContextDir, dockerfile)
	if err != nil {
		return "", fmt.Errorf("failed to list build context: %w", err)
	}
	tar, err := archive.TarWithOptions(request.ContextDir, &archive.TarOptions{IncludeFiles: files})
	if err != nil {
		return "", fmt.Errorf("failed to pack build context: %w", err)
	}
	defer tar.Close()
	response, err := d.client.ImageBuild(ctx, tar, types.ImageBuildOptions{
		Tags:        []string{request.Tag},
		Dockerfile:  filepath.ToSlash(dockerfile),
		Remove:      true,
		ForceRemove: true,
		AuthConfigs: d.authConfigs(),
	})
	if err != nil {
		return "", err
	}
	defer response.Body.Close()
	return decodeBuildOutput(response.Body)
}

// decodeBuildOutput collects the streamed build log; an error message in
// the stream fails the build.
func decodeBuildOutput(reader io.Reader) (string, error) {
	output := &bytes.Buffer{}
	decoder := json.NewDecoder(reader)
	for {
		message := &jsonmessage.JSONMessage{}
		if err := decoder.Decode(message); err != nil {
			if errors.Is(err, io.EOF) {
				return strings.TrimSpace(output.String()), nil
			}
			return strings.TrimSpace(output.String()), fmt.Errorf("failed to decode build output: %w", err)
		}
		if message.Error != nil {
			return strings.TrimSpace(output.String()), errors.New(message.Error.Message)
		}
		if message.ErrorMessage != "" {
			return strings.TrimSpace(output.String()), errors.New(message.ErrorMessage)
		}
		output.WriteString(message.Stream)
	}
}

// NewDockerEngine connects to the daemon configured by the DOCKER_* environment.
func NewDockerEngine() (*DockerEngine, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("building Docker client: %w", err)
	}
	return &DockerEngine{client: dockerClient}, nil
}
