package gateway

import (
	"context"
	"fmt"
	"strings"
)

// Options represents command line options.
type Options struct {
	ConfigURL      string   `short:"c" long:"config" description:"config file URL (yaml, json or toml)"`
	Repository     string   `short:"r" long:"repo" description:"github repository reference"`
	Addr           string   `short:"l" long:"listen" description:"listen address, 127.0.0.1:3333 by default"`
	Env            []string `short:"e" long:"env" description:"KEY=VALUE forwarded to the tool server, repeatable"`
	Policy         string   `long:"policy" description:"session policy" choice:"exclusive" choice:"broadcast"`
	Provisioning   string   `long:"provisioning" description:"when to provision the tool server" choice:"startup" choice:"on-demand"`
	SSEURI         string   `long:"sse-uri" description:"SSE stream path"`
	MessageURI     string   `long:"message-uri" description:"message post path"`
	WorkDir        string   `short:"w" long:"work-dir" description:"directory holding cloned repositories"`
	Cloner         string   `long:"cloner" description:"clone implementation" choice:"go-git" choice:"git"`
	Name           string   `short:"n" long:"name" description:"container name"`
	RegistryServer string   `long:"registry" description:"image registry server"`
	RegistrySecret string   `long:"registry-secret" description:"scy encrypted registry credentials URL"`
	RegistryKey    string   `long:"registry-key" description:"registry credentials encryption key, e.g. blowfish://default"`
	Debug          bool     `short:"d" long:"debug" description:"development logging"`
}

// Config loads the config file (if any) and applies command line overrides.
func (o *Options) Config(ctx context.Context) (*Config, error) {
	ret := &Config{}
	if o.ConfigURL != "" {
		var err error
		if ret, err = LoadConfig(ctx, o.ConfigURL); err != nil {
			return nil, err
		}
	}
	override(&ret.Repository, o.Repository)
	override(&ret.Addr, o.Addr)
	override(&ret.Policy, o.Policy)
	override(&ret.Provisioning, o.Provisioning)
	override(&ret.SSEURI, o.SSEURI)
	override(&ret.MessageURI, o.MessageURI)
	override(&ret.WorkDir, o.WorkDir)
	override(&ret.Cloner, o.Cloner)
	override(&ret.ContainerName, o.Name)
	if o.Debug {
		ret.Debug = true
	}
	if o.RegistryServer != "" || o.RegistrySecret != "" {
		if ret.Registry == nil {
			ret.Registry = &Registry{}
		}
		override(&ret.Registry.Server, o.RegistryServer)
		override(&ret.Registry.CredentialsURL, o.RegistrySecret)
		override(&ret.Registry.EncryptionKey, o.RegistryKey)
	}
	env, err := parseEnv(o.Env)
	if err != nil {
		return nil, err
	}
	if len(env) > 0 && ret.Env == nil {
		ret.Env = map[string]string{}
	}
	for key, value := range env {
		ret.Env[key] = value
	}
	return ret, nil
}

func override(target *string, value string) {
	if value != "" {
		*target = value
	}
}

// parseEnv parses KEY=VALUE pairs; keys must be unique.
func parseEnv(pairs []string) (map[string]string, error) {
	ret := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid env %q, expected KEY=VALUE", pair)
		}
		if _, exists := ret[key]; exists {
			return nil, fmt.Errorf("duplicate env key: %v", key)
		}
		ret[key] = value
	}
	return ret, nil
}
