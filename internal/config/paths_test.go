package config

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigDir_XDGOverride(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG paths are Linux-specific")
	}

	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/box-go", DefaultConfigDir())
}

func TestDefaultDataDir_XDGOverride(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG paths are Linux-specific")
	}

	t.Setenv("XDG_DATA_HOME", "/custom/data")
	assert.Equal(t, "/custom/data/box-go", DefaultDataDir())
}

func TestDefaultPaths_Filenames(t *testing.T) {
	require.NotEmpty(t, DefaultConfigPath())
	assert.Equal(t, "config.toml", filepath.Base(DefaultConfigPath()))

	require.NotEmpty(t, DefaultTokenStorePath())
	assert.Equal(t, "tokens.json", filepath.Base(DefaultTokenStorePath()))
}

func TestReadEnvOverrides(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/box-go/config.toml")
	t.Setenv(EnvClientID, "env-cid")
	t.Setenv(EnvClientSecret, "env-secret")
	t.Setenv(EnvStorePath, "/var/lib/box-go/tokens.json")
	t.Setenv(EnvLogLevel, "warn")

	env := ReadEnvOverrides()
	assert.Equal(t, "/etc/box-go/config.toml", env.ConfigPath)
	assert.Equal(t, "env-cid", env.ClientID)
	assert.Equal(t, "env-secret", env.ClientSecret)
	assert.Equal(t, "/var/lib/box-go/tokens.json", env.StorePath)
	assert.Equal(t, "warn", env.LogLevel)
}
