package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"
)

// Launcher builds the command running an image.
type Launcher interface {
	Command(tag string, args []string, env map[string]string) *exec.Cmd
}

// Killer is implemented by launchers whose workload survives killing the
// launched command, such as a container behind the docker client.
type Killer interface {
	Kill(ctx context.Context, tag string) error
}

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// DockerLauncher runs images with the docker command line client in
// interactive mode, removing the container on exit.
type DockerLauncher struct {
	// Binary defaults to docker.
	Binary string
	// Name sets the container name; it defaults to one derived from the tag.
	Name string
	// Options are extra docker run flags placed before the image.
	Options []string
}

// Args returns the docker arguments for tag.
func (d *DockerLauncher) Args(tag string, args []string, env map[string]string) []string {
	ret := []string{"run", "--rm", "-i", "--name", d.ContainerName(tag)}
	for _, pair := range envPairs(env) {
		ret = append(ret, "-e", pair)
	}
	ret = append(ret, d.Options...)
	ret = append(ret, tag)
	return append(ret, args...)
}

// ContainerName returns the name of the container running tag.
func (d *DockerLauncher) ContainerName(tag string) string {
	if d.Name != "" {
		return d.Name
	}
	return strings.TrimLeft(invalidNameChars.ReplaceAllString(tag, "-"), "-_.")
}

func (d *DockerLauncher) Command(tag string, args []string, env map[string]string) *exec.Cmd {
	cmd := exec.Command(d.binary(), d.Args(tag, args, env)...)
	cmd.Env = append(os.Environ(), envPairs(env)...)
	return cmd
}

// Kill kills the container running tag; the docker client being killed
// does not stop it.
func (d *DockerLauncher) Kill(ctx context.Context, tag string) error {
	name := d.ContainerName(tag)
	output, err := exec.CommandContext(ctx, d.binary(), "kill", name).CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to kill container %v: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (d *DockerLauncher) binary() string {
	if d.Binary == "" {
		return "docker"
	}
	return d.Binary
}

// envPairs returns K=V pairs ordered by key.
func envPairs(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	ret := make([]string, 0, len(keys))
	for _, key := range keys {
		ret = append(ret, key+"="+env[key])
	}
	return ret
}
