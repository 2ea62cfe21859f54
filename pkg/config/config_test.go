package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func clearSnowflakeEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SNOWFLAKE_ACCOUNT", "SNOWFLAKE_DATABASE", "SNOWFLAKE_WAREHOUSE", "SNOWFLAKE_USER",
		"SNOWFLAKE_NAME", "SNOWFLAKE_PASSWORD", "SNOWFLAKE_TOKEN", "SNOWFLAKE_CATALOG_CONNECTION",
		"LOG_LEVEL", "LOG_FORMAT", "DATASOURCE_OPEN_RETRIES",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_ConnectionsFromYAML(t *testing.T) {
	clearSnowflakeEnv(t)
	path := writeConfig(t, `
env: "test"
default_connection: "prod"
log:
  level: "debug"
connections:
  - name: "prod"
    account: "myorg-prod"
    database: "ANALYTICS"
    warehouse: "COMPUTE_WH"
    username: "analyst"
    options:
      role: "REPORTER"
      loginTimeout: "30s"
  - name: "dev"
    account: "myorg-dev"
    authenticator: "externalbrowser"
`)

	cfg, err := Load(path, "test-version")
	require.NoError(t, err)

	assert.Equal(t, "test-version", cfg.Version)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 5, cfg.Datasource.ConnectionTTLMinutes)
	assert.Equal(t, "snowflake-catalog", cfg.MCP.ServerName)
	require.Len(t, cfg.Connections, 2)

	prod, err := cfg.Connection("")
	require.NoError(t, err)
	assert.Equal(t, "myorg-prod", prod.Account)
	assert.Equal(t, "REPORTER", prod.Options["role"])

	dev, err := cfg.Connection("dev")
	require.NoError(t, err)
	assert.Equal(t, "externalbrowser", dev.Authenticator)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearSnowflakeEnv(t)
	path := writeConfig(t, `
log:
  level: "info"
datasource:
  open_retries: 1
`)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DATASOURCE_OPEN_RETRIES", "3")

	cfg, err := Load(path, "v")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Datasource.OpenRetries)
}

func TestLoad_EnvProfile(t *testing.T) {
	clearSnowflakeEnv(t)
	path := writeConfig(t, "env: test\n")
	t.Setenv("SNOWFLAKE_ACCOUNT", "myorg-acct")
	t.Setenv("SNOWFLAKE_WAREHOUSE", "WH")
	t.Setenv("SNOWFLAKE_PASSWORD", "hunter2")

	cfg, err := Load(path, "v")
	require.NoError(t, err)

	profile, err := cfg.Connection("")
	require.NoError(t, err)
	assert.Equal(t, EnvProfileName, profile.Name)
	assert.Equal(t, "myorg-acct", profile.Account)
	assert.Equal(t, "WH", profile.Warehouse)

	adapterCfg := cfg.AdapterConfig(profile, "")
	assert.Equal(t, "hunter2", adapterCfg["password"])
	assert.Equal(t, "myorg-acct", adapterCfg["account"])
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearSnowflakeEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "v")
	assert.Error(t, err)
}

func TestLoad_DuplicateConnectionNames(t *testing.T) {
	clearSnowflakeEnv(t)
	path := writeConfig(t, `
connections:
  - name: "a"
    account: "x"
  - name: "a"
    account: "y"
`)
	_, err := Load(path, "v")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate connection name")
}

func TestConnection_Ambiguous(t *testing.T) {
	cfg := &Config{Connections: []ConnectionProfile{{Name: "a"}, {Name: "b"}}}

	_, err := cfg.Connection("")
	assert.Error(t, err)

	_, err = cfg.Connection("c")
	assert.Error(t, err)
}

func TestAdapterConfig_ExplicitPasswordWins(t *testing.T) {
	cfg := &Config{Password: "from-env"}
	m := cfg.AdapterConfig(ConnectionProfile{Name: "a", Account: "acct", Options: map[string]any{"warehouse": "OTHER"}}, "from-keychain")

	assert.Equal(t, "from-keychain", m["password"])
	assert.Equal(t, map[string]any{"warehouse": "OTHER"}, m["options"])
	_, hasKey := m["private_key_path"]
	assert.False(t, hasKey)
}
