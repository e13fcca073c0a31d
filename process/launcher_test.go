package process

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDockerLauncher_Args(t *testing.T) {
	var testCases = []struct {
		description string
		launcher    *DockerLauncher
		args        []string
		env         map[string]string
		expect      []string
	}{
		{
			description: "bare run",
			launcher:    &DockerLauncher{},
			expect:      []string{"run", "--rm", "-i", "--name", "mcpgate-1", "mcpgate-1"},
		},
		{
			description: "named container with sorted env and args",
			launcher:    &DockerLauncher{Name: "duckduckgo"},
			args:        []string{"--verbose"},
			env:         map[string]string{"TOKEN": "t", "API_KEY": "k=v"},
			expect:      []string{"run", "--rm", "-i", "--name", "duckduckgo", "-e", "API_KEY=k=v", "-e", "TOKEN=t", "mcpgate-1", "--verbose"},
		},
		{
			description: "extra options precede image",
			launcher:    &DockerLauncher{Options: []string{"--network", "none"}},
			expect:      []string{"run", "--rm", "-i", "--name", "mcpgate-1", "--network", "none", "mcpgate-1"},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			assert.Equal(t, testCase.expect, testCase.launcher.Args("mcpgate-1", testCase.args, testCase.env))
		})
	}
}

func TestDockerLauncher_Command(t *testing.T) {
	cmd := (&DockerLauncher{Binary: "/usr/local/bin/docker"}).Command("img", nil, map[string]string{"FOO": "bar"})
	assert.Equal(t, "/usr/local/bin/docker", cmd.Path)
	assert.Equal(t, []string{"/usr/local/bin/docker", "run", "--rm", "-i", "--name", "img", "-e", "FOO=bar", "img"}, cmd.Args)
	assert.Contains(t, cmd.Env, "FOO=bar")
}

func TestDockerLauncher_ContainerName(t *testing.T) {
	assert.Equal(t, "mcpgate-1", (&DockerLauncher{}).ContainerName("mcpgate-1"))
	assert.Equal(t, "ghcr.io-acme-tools-1.2", (&DockerLauncher{}).ContainerName("ghcr.io/acme/tools:1.2"))
	assert.Equal(t, "search", (&DockerLauncher{Name: "search"}).ContainerName("mcpgate-1"))
}

func TestDockerLauncher_Kill(t *testing.T) {
	dir := t.TempDir()
	record := filepath.Join(dir, "calls")
	binary := filepath.Join(dir, "docker")
	script := "#!/bin/sh\necho \"$@\" >> " + record + "\nif [ \"$2\" = missing ]; then echo 'Error: No such container: missing' >&2; exit 1; fi\n"
	require.NoError(t, os.WriteFile(binary, []byte(script), 0o755))
	ctx := context.Background()

	require.NoError(t, (&DockerLauncher{Binary: binary}).Kill(ctx, "mcpgate-1"))
	err := (&DockerLauncher{Binary: binary, Name: "missing"}).Kill(ctx, "mcpgate-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No such container")

	data, err := os.ReadFile(record)
	require.NoError(t, err)
	assert.Equal(t, []string{"kill mcpgate-1", "kill missing"}, strings.Split(strings.TrimSpace(string(data)), "\n"))
}
