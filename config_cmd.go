package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/box-go/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		RunE:  runConfigShow,
	}
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file with commented defaults",
		RunE:  runConfigInit,
	}
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	if resolvedCfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	if flagJSON {
		// Redact secrets before the struct hits stdout.
		redacted := *resolvedCfg
		if redacted.Auth.ClientSecret != "" {
			redacted.Auth.ClientSecret = "[REDACTED]"
		}

		if redacted.AppAuth.PrivateKey != "" {
			redacted.AppAuth.PrivateKey = "[REDACTED]"
		}

		if redacted.AppAuth.Passphrase != "" {
			redacted.AppAuth.Passphrase = "[REDACTED]"
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(redacted)
	}

	return config.RenderEffective(resolvedCfg, os.Stdout)
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path := flagConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if path == "" {
		return fmt.Errorf("cannot determine config path")
	}

	if err := config.Init(path); err != nil {
		return err
	}

	statusf("Wrote %s\n", path)

	return nil
}
