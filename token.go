package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a currently-valid access token",
		Long: "Prints an access token to stdout, refreshing it first if the " +
			"cached one is near expiry. Useful for curl and scripts.",
		RunE: runToken,
	}
}

func runToken(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	session, closer, err := buildSession(ctx, logger)
	if err != nil {
		return err
	}
	defer closer()

	token, err := session.GetAccessToken(ctx, nil)
	if err != nil {
		return fmt.Errorf("obtaining access token: %w", err)
	}

	fmt.Println(token)

	return nil
}

// Local flags for the exchange command.
var (
	flagExchangeScopes   []string
	flagExchangeResource string
)

func newExchangeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exchange",
		Short: "Exchange the current token for a downscoped one",
		Long: "Trades the session's access token for a token restricted to " +
			"the given scopes, optionally bound to a single file or folder URL.",
		RunE: runExchange,
	}

	cmd.Flags().StringSliceVar(&flagExchangeScopes, "scope", nil, "scope to grant (repeatable)")
	cmd.Flags().StringVar(&flagExchangeResource, "resource", "", "resource URL the token is restricted to")
	_ = cmd.MarkFlagRequired("scope")

	return cmd
}

// exchangeOutput is the JSON schema for `exchange --json`.
type exchangeOutput struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func runExchange(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	session, closer, err := buildSession(ctx, logger)
	if err != nil {
		return err
	}
	defer closer()

	info, err := session.ExchangeToken(ctx, flagExchangeScopes, flagExchangeResource, nil)
	if err != nil {
		return fmt.Errorf("exchanging token: %w", err)
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(exchangeOutput{
			AccessToken: info.AccessToken,
			ExpiresIn:   int64(info.TTL.Seconds()),
		})
	}

	fmt.Println(info.AccessToken)

	return nil
}
