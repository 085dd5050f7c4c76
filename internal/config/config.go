package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Upstream UpstreamConfig `koanf:"upstream"`
	Agent    AgentConfig    `koanf:"agent"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type UpstreamConfig struct {
	BaseURL       string        `koanf:"base_url"`
	HealthTimeout time.Duration `koanf:"health_timeout"`
}

// AgentConfig names the backend agent stamped onto events the gateway
// synthesizes itself. Events replayed from upstream keep their own identity.
type AgentConfig struct {
	ID   string `koanf:"id"`
	Name string `koanf:"name"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads config.yaml when present, then layers BRIDGE_* environment
// variables on top (BRIDGE_SERVER__PORT=9090 sets server.port).
func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// Missing file is fine, env vars take over.
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("BRIDGE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "BRIDGE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("upstream.base_url") {
		k.Set("upstream.base_url", "http://localhost:8000")
	}
	if !k.Exists("upstream.health_timeout") {
		k.Set("upstream.health_timeout", "5s")
	}
	if !k.Exists("agent.id") {
		k.Set("agent.id", "agent")
	}
	if !k.Exists("agent.name") {
		k.Set("agent.name", "Agent")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Upstream.BaseURL = substituteEnvVars(cfg.Upstream.BaseURL)
	cfg.Upstream.BaseURL = strings.TrimSuffix(cfg.Upstream.BaseURL, "/")

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
