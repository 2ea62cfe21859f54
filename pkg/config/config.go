package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// EnvProfileName is the name given to the connection assembled from SNOWFLAKE_* variables.
const EnvProfileName = "env"

// Config holds all configuration for snowflake-catalog.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, tokens) must only come from environment variables or the OS keychain.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"`

	Log LogConfig `yaml:"log"`

	// DefaultConnection selects the profile used when a command names none.
	DefaultConnection string `yaml:"default_connection" env:"SNOWFLAKE_CATALOG_CONNECTION" env-default:""`

	// Connections are named warehouse connection profiles.
	Connections []ConnectionProfile `yaml:"connections"`

	// EnvProfile is populated from SNOWFLAKE_ACCOUNT, SNOWFLAKE_WAREHOUSE, ...
	// It is appended to Connections as "env" when SNOWFLAKE_ACCOUNT is set.
	EnvProfile ConnectionProfile `yaml:"-" env-prefix:"SNOWFLAKE_"`

	Datasource DatasourceConfig `yaml:"datasource"`
	MCP        MCPConfig        `yaml:"mcp"`
	Metrics    MetricsConfig    `yaml:"metrics"`

	Password string `yaml:"-" env:"SNOWFLAKE_PASSWORD"` // Secret - not in YAML
	Token    string `yaml:"-" env:"SNOWFLAKE_TOKEN"`    // Secret - not in YAML
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// ConnectionProfile describes one warehouse connection.
// Options is the vendor options bag; its keys override the computed fields.
type ConnectionProfile struct {
	Name           string         `yaml:"name" env:"NAME"`
	Account        string         `yaml:"account" env:"ACCOUNT"`
	Database       string         `yaml:"database" env:"DATABASE"`
	Warehouse      string         `yaml:"warehouse" env:"WAREHOUSE"`
	Schema         string         `yaml:"schema" env:"SCHEMA"`
	Role           string         `yaml:"role" env:"ROLE"`
	Username       string         `yaml:"username" env:"USER"`
	Authenticator  string         `yaml:"authenticator" env:"AUTHENTICATOR"`
	PrivateKeyPath string         `yaml:"private_key_path" env:"PRIVATE_KEY_PATH"`
	UseKeychain    bool           `yaml:"use_keychain" env:"USE_KEYCHAIN"`
	Options        map[string]any `yaml:"options"`
}

// DatasourceConfig holds session management settings.
type DatasourceConfig struct {
	// ConnectionTTLMinutes is how long an idle named connection stays open.
	ConnectionTTLMinutes int `yaml:"connection_ttl_minutes" env:"DATASOURCE_CONNECTION_TTL_MINUTES" env-default:"5"`
	// OpenRetries is how many times callers retry a transient open failure.
	OpenRetries int `yaml:"open_retries" env:"DATASOURCE_OPEN_RETRIES" env-default:"0"`
}

// MCPConfig configures the MCP host surface.
type MCPConfig struct {
	ServerName string `yaml:"server_name" env:"MCP_SERVER_NAME" env-default:"snowflake-catalog"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	// ListenAddr is the host:port for /metrics; empty disables the endpoint.
	ListenAddr string `yaml:"listen_addr" env:"METRICS_LISTEN_ADDR" env-default:""`
}

// Load reads configuration from path with environment variable overrides.
// An empty path means DefaultPath; a missing DefaultPath falls back to
// environment variables only, while a missing explicit path is an error.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case errors.Is(statErr, fs.ErrNotExist) && !explicit:
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, statErr)
	}

	if cfg.EnvProfile.Account != "" {
		envProfile := cfg.EnvProfile
		if envProfile.Name == "" {
			envProfile.Name = EnvProfileName
		}
		cfg.Connections = append(cfg.Connections, envProfile)
	}

	if err := cfg.validateConnections(); err != nil {
		return nil, fmt.Errorf("invalid connections: %w", err)
	}

	return cfg, nil
}

// validateConnections ensures profile names are present and unique.
func (c *Config) validateConnections() error {
	seen := make(map[string]bool, len(c.Connections))
	for i, conn := range c.Connections {
		name := strings.TrimSpace(conn.Name)
		if name == "" {
			return fmt.Errorf("connection #%d has no name", i+1)
		}
		if seen[name] {
			return fmt.Errorf("duplicate connection name %q", name)
		}
		seen[name] = true
	}
	return nil
}

// Connection returns the named profile. An empty name resolves to
// DefaultConnection, or to the only profile when exactly one exists.
func (c *Config) Connection(name string) (ConnectionProfile, error) {
	if name == "" {
		name = c.DefaultConnection
	}
	if name == "" {
		if len(c.Connections) == 1 {
			return c.Connections[0], nil
		}
		return ConnectionProfile{}, fmt.Errorf("no connection selected and %d are configured", len(c.Connections))
	}

	for _, conn := range c.Connections {
		if conn.Name == name {
			return conn, nil
		}
	}
	return ConnectionProfile{}, fmt.Errorf("connection %q is not configured", name)
}

// AdapterConfig converts the profile into the generic adapter config map.
// Secrets from the environment fill in only what the caller did not supply.
func (c *Config) AdapterConfig(p ConnectionProfile, password string) map[string]any {
	if password == "" {
		password = c.Password
	}

	m := map[string]any{
		"name":          p.Name,
		"account":       p.Account,
		"database":      p.Database,
		"warehouse":     p.Warehouse,
		"schema":        p.Schema,
		"role":          p.Role,
		"username":      p.Username,
		"authenticator": p.Authenticator,
		"password":      password,
		"token":         c.Token,
	}
	if p.PrivateKeyPath != "" {
		m["private_key_path"] = p.PrivateKeyPath
	}
	if len(p.Options) > 0 {
		options := make(map[string]any, len(p.Options))
		for k, v := range p.Options {
			if k == "host" {
				if host, ok := v.(string); ok {
					v = ResolveHostForDocker(host)
				}
			}
			options[k] = v
		}
		m["options"] = options
	}
	return m
}

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether /.dockerenv exists. Cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps a loopback "host" option (a local warehouse emulator)
// to host.docker.internal when running inside a container.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}
	return host
}
