package gateway

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Config(t *testing.T) {
	ctx := context.Background()
	location := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(location, []byte(`repository: https://github.com/acme/tools
addr: 0.0.0.0:8080
env:
  API_KEY: file
  REGION: us
`), 0o644))

	options := &Options{}
	_, err := flags.ParseArgs(options, []string{
		"-c", location,
		"-r", "git@github.com:acme/other.git",
		"-e", "API_KEY=cli",
		"-e", "TOKEN=a=b",
		"--policy", "broadcast",
		"--registry", "ghcr.io",
		"--registry-secret", "mem://localhost/secret.json",
		"--registry-key", "blowfish://default",
	})
	require.NoError(t, err)
	config, err := options.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, "git@github.com:acme/other.git", config.Repository)
	assert.Equal(t, "0.0.0.0:8080", config.Addr)
	assert.Equal(t, "broadcast", config.Policy)
	assert.Equal(t, map[string]string{"API_KEY": "cli", "REGION": "us", "TOKEN": "a=b"}, config.Env)
	require.NotNil(t, config.Registry)
	assert.Equal(t, "ghcr.io", config.Registry.Server)
	assert.Equal(t, "mem://localhost/secret.json", config.Registry.CredentialsURL)
	assert.Equal(t, "blowfish://default", config.Registry.EncryptionKey)
}

func TestOptions_InvalidChoice(t *testing.T) {
	options := &Options{}
	_, err := flags.ParseArgs(options, []string{"-r", "https://github.com/acme/tools", "--policy", "roundrobin"})
	assert.Error(t, err)
}

func TestParseEnv(t *testing.T) {
	var testCases = []struct {
		description string
		pairs       []string
		expect      map[string]string
		expectErr   bool
	}{
		{
			description: "pairs",
			pairs:       []string{"A=1", "B=", "C=x=y"},
			expect:      map[string]string{"A": "1", "B": "", "C": "x=y"},
		},
		{
			description: "duplicate key",
			pairs:       []string{"A=1", "A=2"},
			expectErr:   true,
		},
		{
			description: "missing separator",
			pairs:       []string{"A"},
			expectErr:   true,
		},
		{
			description: "empty key",
			pairs:       []string{"=1"},
			expectErr:   true,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			actual, err := parseEnv(testCase.pairs)
			if testCase.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.expect, actual)
		})
	}
}
