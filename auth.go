package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/box-go/internal/boxapi"
)

// authorizeURL is the OAuth2 authorization endpoint users visit to grant
// access. It lives on the account host, not the API host.
const authorizeURL = "https://account.box.com/api/oauth2/authorize"

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate with an authorization code",
		Long: "Prints the authorization URL, then exchanges the pasted " +
			"authorization code for tokens and saves them to the token store.",
		RunE: runLogin,
	}
}

func newRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke",
		Short: "Revoke saved tokens and clear the token store",
		RunE:  runRevoke,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the authenticated user",
		RunE:  runWhoami,
	}
}

func runLogin(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	if resolvedCfg.AppAuth.Configured() {
		return errors.New("app auth is configured — tokens are fetched automatically, no login needed")
	}

	if resolvedCfg.Auth.ClientID == "" {
		return errors.New("client_id is not configured — set it in the config file or BOX_GO_CLIENT_ID")
	}

	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", resolvedCfg.Auth.ClientID)

	// Auth prompts must always be visible — not suppressed by --quiet.
	fmt.Fprintf(os.Stderr, "To sign in, visit:\n  %s?%s\n", authorizeURL, query.Encode())
	fmt.Fprintf(os.Stderr, "Paste the authorization code: ")

	code, err := readLine(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading authorization code: %w", err)
	}

	if code == "" {
		return errors.New("no authorization code entered")
	}

	exec := buildExecutor(logger)

	manager, err := buildManager(exec, logger)
	if err != nil {
		return err
	}

	info, err := manager.GetTokensAuthorizationCodeGrant(ctx, code, nil)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	store, closer, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer closer()

	if store == nil {
		return errors.New("token_store is \"none\" — nowhere to save tokens")
	}

	if err := store.Write(ctx, info); err != nil {
		return fmt.Errorf("saving tokens: %w", err)
	}

	logger.Info("login successful")
	statusf("Login successful.\n")

	return nil
}

// readLine reads one trimmed line from r.
func readLine(r *os.File) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}

	return strings.TrimSpace(line), nil
}

func runRevoke(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	session, closer, err := buildSession(ctx, logger)
	if err != nil {
		return err
	}
	defer closer()

	if err := session.RevokeTokens(ctx, nil); err != nil {
		return fmt.Errorf("revoking tokens: %w", err)
	}

	logger.Info("tokens revoked")
	statusf("Tokens revoked.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Login          string `json:"login"`
	Status         string `json:"status,omitempty"`
	EnterpriseID   string `json:"enterprise_id,omitempty"`
	EnterpriseName string `json:"enterprise_name,omitempty"`
}

func runWhoami(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	session, closer, err := buildSession(ctx, logger)
	if err != nil {
		return err
	}
	defer closer()

	client := boxapi.NewClient(buildExecutor(logger), session, resolvedCfg.Auth.APIBaseURL, logger)

	user, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("fetching user profile: %w", err)
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(whoamiOutput{
			ID:             user.ID,
			Name:           user.Name,
			Login:          user.Login,
			Status:         user.Status,
			EnterpriseID:   user.EnterpriseID,
			EnterpriseName: user.EnterpriseName,
		})
	}

	fmt.Printf("%s <%s> (id %s)\n", user.Name, user.Login, user.ID)

	if user.EnterpriseName != "" {
		fmt.Printf("Enterprise: %s (id %s)\n", user.EnterpriseName, user.EnterpriseID)
	}

	return nil
}
