package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// configFilePermissions keeps the config file owner-only because it can
// contain the client secret and key passphrase.
const configFilePermissions = 0o600

// configDirPermissions is the standard permission mode for config directories.
const configDirPermissions = 0o755

// configTemplate is the default config file content written by "config init".
// All settings are present as commented-out defaults so users can discover
// every option without reading docs. This template is written once and never
// regenerated.
const configTemplate = `# box-go configuration
# Docs: https://github.com/tonimelisma/box-go

[auth]
# OAuth2 application credentials from the developer console.
client_id = ""
client_secret = ""

# api_base_url = "https://api.box.com"

# Treat tokens as expired this long before their actual expiry.
# expired_buffer = "10m"

[network]
# max_retries = 5
# retry_interval = "2s"
# request_timeout = "60s"

[logging]
# Verbosity: debug, info, warn, error
# log_level = "info"

# Output format: auto, text, json
# log_format = "auto"

[storage]
# Where refreshed tokens are persisted: file, sqlite, none
# token_store = "file"
# token_store_path = ""

# [app_auth]
# Server authentication (JWT) key material.
# key_id = ""
# private_key_file = ""
# passphrase = ""
# algorithm = "RS256"
# enterprise_id = ""
`

// Init creates a new config file from the default template. Fails if the
// file already exists so user edits are never clobbered. The write is atomic
// (temp file + rename) and parent directories are created as needed.
func Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	return atomicWriteFile(path, []byte(configTemplate))
}

// atomicWriteFile writes data to a temporary file in the same directory as
// path, then renames it to the target path. This prevents partial writes
// from corrupting the config file on crash. Parent directories are created
// as needed.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	// Clean up the temp file on any error path.
	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
