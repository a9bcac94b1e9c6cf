package boxapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// User is the normalized profile of an API user.
type User struct {
	ID             string
	Name           string
	Login          string
	Status         string
	EnterpriseID   string
	EnterpriseName string
}

// userResponse mirrors the API user JSON. Unexported — callers use User via
// toUser() normalization.
type userResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Login      string `json:"login"`
	Status     string `json:"status"`
	Enterprise *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"enterprise"`
}

// toUser normalizes an API user response. Nil-safe for the optional
// enterprise block (absent for free accounts).
func (u *userResponse) toUser() User {
	user := User{
		ID:     u.ID,
		Name:   u.Name,
		Login:  u.Login,
		Status: u.Status,
	}

	if u.Enterprise != nil {
		user.EnterpriseID = u.Enterprise.ID
		user.EnterpriseName = u.Enterprise.Name
	}

	return user
}

// Me returns the user the current access token belongs to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	c.logger.Info("fetching authenticated user profile")

	resp, err := c.Do(ctx, http.MethodGet, "/users/me", nil)
	if err != nil {
		return nil, err
	}

	var ur userResponse
	if err := json.Unmarshal(resp.Body, &ur); err != nil {
		return nil, fmt.Errorf("boxapi: decoding user response: %w", err)
	}

	user := ur.toUser()

	c.logger.Debug("fetched user profile",
		slog.String("id", user.ID),
		slog.String("login", user.Login),
	)

	return &user, nil
}
