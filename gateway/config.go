package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/viant/afs"
	"github.com/viant/mcpgate/bridge"
	"github.com/viant/mcpgate/image"
	"github.com/viant/mcpgate/reference"
	"github.com/viant/mcpgate/server"
	"gopkg.in/yaml.v3"
)

// Provisioning policies.
const (
	ProvisionOnStartup = "startup"
	ProvisionOnDemand  = "on-demand"
)

// Cloner implementations.
const (
	ClonerGoGit = "go-git"
	ClonerShell = "git"
)

// Config represents gateway configuration.
type Config struct {
	Repository        string            `yaml:"repository" json:"repository" toml:"repository"`
	Env               map[string]string `yaml:"env,omitempty" json:"env,omitempty" toml:"env"`
	Args              []string          `yaml:"args,omitempty" json:"args,omitempty" toml:"args"`
	Addr              string            `yaml:"addr,omitempty" json:"addr,omitempty" toml:"addr"`
	SSEURI            string            `yaml:"sseURI,omitempty" json:"sseURI,omitempty" toml:"sseURI"`
	MessageURI        string            `yaml:"messageURI,omitempty" json:"messageURI,omitempty" toml:"messageURI"`
	WebSocketURI      string            `yaml:"webSocketURI,omitempty" json:"webSocketURI,omitempty" toml:"webSocketURI"`
	Policy            string            `yaml:"policy,omitempty" json:"policy,omitempty" toml:"policy"`
	Provisioning      string            `yaml:"provisioning,omitempty" json:"provisioning,omitempty" toml:"provisioning"`
	WorkDir           string            `yaml:"workDir,omitempty" json:"workDir,omitempty" toml:"workDir"`
	Cloner            string            `yaml:"cloner,omitempty" json:"cloner,omitempty" toml:"cloner"`
	ContainerName     string            `yaml:"containerName,omitempty" json:"containerName,omitempty" toml:"containerName"`
	DockerOptions     []string          `yaml:"dockerOptions,omitempty" json:"dockerOptions,omitempty" toml:"dockerOptions"`
	StartWindowMs     int               `yaml:"startWindowMs,omitempty" json:"startWindowMs,omitempty" toml:"startWindowMs"`
	GracePeriodMs     int               `yaml:"gracePeriodMs,omitempty" json:"gracePeriodMs,omitempty" toml:"gracePeriodMs"`
	KeepAliveMs       int               `yaml:"keepAliveMs,omitempty" json:"keepAliveMs,omitempty" toml:"keepAliveMs"`
	MaxFrameSize      int               `yaml:"maxFrameSize,omitempty" json:"maxFrameSize,omitempty" toml:"maxFrameSize"`
	QueueSize         int               `yaml:"queueSize,omitempty" json:"queueSize,omitempty" toml:"queueSize"`
	DeliveryTimeoutMs int               `yaml:"deliveryTimeoutMs,omitempty" json:"deliveryTimeoutMs,omitempty" toml:"deliveryTimeoutMs"`
	Registry          *Registry         `yaml:"registry,omitempty" json:"registry,omitempty" toml:"registry"`
	Cors              *server.Cors      `yaml:"cors,omitempty" json:"cors,omitempty" toml:"cors"`
	BearerKey         string            `yaml:"bearerKey,omitempty" json:"bearerKey,omitempty" toml:"bearerKey"`
	Debug             bool              `yaml:"debug,omitempty" json:"debug,omitempty" toml:"debug"`

	reference *reference.Reference
}

// Registry holds image registry access. Credentials are given either in
// plain form or as a scy secret (CredentialsURL decrypted with EncryptionKey).
type Registry struct {
	Server         string `yaml:"server,omitempty" json:"server,omitempty" toml:"server"`
	Username       string `yaml:"username,omitempty" json:"username,omitempty" toml:"username"`
	Password       string `yaml:"password,omitempty" json:"password,omitempty" toml:"password"`
	CredentialsURL string `yaml:"credentialsURL,omitempty" json:"credentialsURL,omitempty" toml:"credentialsURL"`
	EncryptionKey  string `yaml:"encryptionKey,omitempty" json:"encryptionKey,omitempty" toml:"encryptionKey"`
}

// Credentials returns registry credentials, or nil when none are configured.
func (r *Registry) Credentials(ctx context.Context) (*image.Credentials, error) {
	if r == nil {
		return nil, nil
	}
	if r.CredentialsURL != "" {
		return image.LoadCredentials(ctx, r.Server, r.CredentialsURL, r.EncryptionKey)
	}
	if r.Username == "" && r.Password == "" {
		return nil, nil
	}
	return &image.Credentials{Registry: r.Server, Username: r.Username, Password: r.Password}, nil
}

// Reference returns the resolved repository reference; valid after Validate.
func (c *Config) Reference() *reference.Reference {
	return c.reference
}

// Init applies defaults.
func (c *Config) Init() {
	if c.Addr == "" {
		c.Addr = server.DefaultAddr
	}
	if c.SSEURI == "" {
		c.SSEURI = server.DefaultSSEURI
	}
	if c.MessageURI == "" {
		c.MessageURI = server.DefaultMessageURI
	}
	if c.WebSocketURI == "" {
		c.WebSocketURI = server.DefaultWebSocketURI
	}
	if c.Policy == "" {
		c.Policy = string(bridge.Exclusive)
	}
	if c.Provisioning == "" {
		c.Provisioning = ProvisionOnStartup
	}
	if c.Cloner == "" {
		c.Cloner = ClonerGoGit
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = bridge.DefaultMaxFrameSize
	}
}

// Validate checks the configuration and resolves the repository reference.
func (c *Config) Validate() error {
	if c.Repository == "" {
		return fmt.Errorf("repository was empty")
	}
	ref, err := reference.Resolve(c.Repository)
	if err != nil {
		return err
	}
	c.reference = ref
	for key := range c.Env {
		if strings.TrimSpace(key) == "" || strings.ContainsAny(key, "= ") {
			return fmt.Errorf("invalid env key: %q", key)
		}
	}
	if _, err = bridge.ParsePolicy(c.Policy); err != nil {
		return err
	}
	switch c.Provisioning {
	case ProvisionOnStartup, ProvisionOnDemand:
	default:
		return fmt.Errorf("unsupported provisioning policy: %v", c.Provisioning)
	}
	switch c.Cloner {
	case ClonerGoGit, ClonerShell:
	default:
		return fmt.Errorf("unsupported cloner: %v", c.Cloner)
	}
	for _, URI := range []string{c.SSEURI, c.MessageURI, c.WebSocketURI} {
		if !strings.HasPrefix(URI, "/") {
			return fmt.Errorf("URI must start with '/': %v", URI)
		}
	}
	if c.SSEURI == c.MessageURI || c.SSEURI == c.WebSocketURI || c.MessageURI == c.WebSocketURI {
		return fmt.Errorf("sse, message and websocket URIs must differ")
	}
	if c.StartWindowMs < 0 || c.GracePeriodMs < 0 || c.KeepAliveMs < 0 || c.DeliveryTimeoutMs < 0 || c.MaxFrameSize < 0 || c.QueueSize < 0 {
		return fmt.Errorf("timeouts and sizes must not be negative")
	}
	if r := c.Registry; r != nil && r.CredentialsURL != "" && (r.Username != "" || r.Password != "") {
		return fmt.Errorf("registry credentials must come either from credentialsURL or username/password")
	}
	return nil
}

func milliseconds(value int) time.Duration {
	return time.Duration(value) * time.Millisecond
}

// LoadConfig reads a YAML, JSON or TOML (by extension) config from any afs URL.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	ret := &Config{}
	switch strings.ToLower(path.Ext(URL)) {
	case ".toml":
		err = toml.Unmarshal(data, ret)
	case ".json":
		err = json.Unmarshal(data, ret)
	default:
		err = yaml.Unmarshal(data, ret)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config %v: %w", URL, err)
	}
	return ret, nil
}
