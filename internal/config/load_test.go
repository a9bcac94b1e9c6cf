package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[auth]
client_id = "cid"
client_secret = "secret"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "cid", cfg.Auth.ClientID)
	assert.Equal(t, "https://api.box.com", cfg.Auth.APIBaseURL)
	assert.Equal(t, 5, cfg.Network.MaxRetries)
	assert.Equal(t, "info", cfg.Logging.LogLevel)
	assert.Equal(t, "file", cfg.Storage.TokenStore)
	assert.Equal(t, 10*time.Minute, cfg.Auth.ExpiredBufferDuration())
	assert.Equal(t, 2*time.Second, cfg.Network.RetryIntervalDuration())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[auth]
client_id = "cid"
api_base_url = "https://box.example.test"
expired_buffer = "5m"

[network]
max_retries = 2
retry_interval = "500ms"

[logging]
log_level = "debug"
log_format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://box.example.test", cfg.Auth.APIBaseURL)
	assert.Equal(t, 5*time.Minute, cfg.Auth.ExpiredBufferDuration())
	assert.Equal(t, 2, cfg.Network.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Network.RetryIntervalDuration())
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
	assert.Equal(t, "json", cfg.Logging.LogFormat)
}

func TestLoad_UnknownKeySuggestion(t *testing.T) {
	path := writeConfig(t, `
[network]
max_retrys = 3
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_retrys")
	assert.Contains(t, err.Error(), "did you mean")
	assert.Contains(t, err.Error(), "max_retries")
}

func TestLoad_UnknownKeyNoSuggestion(t *testing.T) {
	path := writeConfig(t, `
totally_unrelated_key_xyz = 1
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLoad_MalformedTOML(t *testing.T) {
	path := writeConfig(t, `client_id = `)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestResolve_PrecedenceChain(t *testing.T) {
	path := writeConfig(t, `
[auth]
client_id = "from-file"
client_secret = "file-secret"
`)

	cliID := "from-cli"
	cfg, err := Resolve(
		EnvOverrides{ConfigPath: path, ClientID: "from-env", LogLevel: "debug"},
		CLIOverrides{ClientID: &cliID},
	)
	require.NoError(t, err)

	// CLI beats env beats file.
	assert.Equal(t, "from-cli", cfg.Auth.ClientID)
	// Env beats file default.
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
	// File value survives when nothing overrides it.
	assert.Equal(t, "file-secret", cfg.Auth.ClientSecret)
}

func TestResolve_CLIConfigPathWins(t *testing.T) {
	envPath := writeConfig(t, `
[auth]
client_id = "env-file"
`)
	cliPath := writeConfig(t, `
[auth]
client_id = "cli-file"
`)

	cfg, err := Resolve(
		EnvOverrides{ConfigPath: envPath},
		CLIOverrides{ConfigPath: cliPath},
	)
	require.NoError(t, err)
	assert.Equal(t, "cli-file", cfg.Auth.ClientID)
}

func TestResolve_TokenStorePathDefaulted(t *testing.T) {
	path := writeConfig(t, `
[auth]
client_id = "cid"
`)

	cfg, err := Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{})
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Storage.TokenStorePath)
}

func TestResolve_StorePathOverride(t *testing.T) {
	path := writeConfig(t, `
[auth]
client_id = "cid"
`)

	cliStore := "/tmp/cli-tokens.json"
	cfg, err := Resolve(
		EnvOverrides{ConfigPath: path, StorePath: "/tmp/env-tokens.json"},
		CLIOverrides{StorePath: &cliStore},
	)
	require.NoError(t, err)
	assert.Equal(t, cliStore, cfg.Storage.TokenStorePath)
}

func TestResolve_ValidatesMergedResult(t *testing.T) {
	path := writeConfig(t, `
[auth]
client_id = "cid"
`)

	badLevel := "loud"
	_, err := Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{LogLevel: &badLevel})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}
