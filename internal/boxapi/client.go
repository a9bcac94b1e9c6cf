// Package boxapi provides typed wrappers over a small set of Box API
// resources. It authenticates every call through a boxauth.Session, so token
// refresh, retry, and credential redaction are handled below it.
package boxapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/tonimelisma/box-go/internal/boxauth"
	"github.com/tonimelisma/box-go/internal/boxhttp"
)

// apiVersionPath is prepended to every resource path.
const apiVersionPath = "/2.0"

// Client is a typed client for the Box API. It is cheap to copy; AsUser
// returns scoped copies sharing the same executor and session.
type Client struct {
	exec    *boxhttp.Executor
	session boxauth.Session
	baseURL string
	asUser  string
	logger  *slog.Logger
}

// NewClient creates a Box API client. baseURL is typically
// "https://api.box.com".
func NewClient(exec *boxhttp.Executor, session boxauth.Session, baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		exec:    exec,
		session: session,
		baseURL: baseURL,
		logger:  logger,
	}
}

// AsUser returns a copy of the client that issues calls on behalf of the
// given managed user via the As-User header. Requires a service account
// token with the "make calls on behalf of users" scope.
func (c *Client) AsUser(userID string) *Client {
	scoped := *c
	scoped.asUser = userID

	return &scoped
}

// Do executes an authenticated request against the API. The path is
// appended to the versioned base URL. For non-nil bodies, Content-Type is
// set to application/json. Token refresh happens inside the session when
// the cached token is near expiry.
func (c *Client) Do(ctx context.Context, method, path string, body io.ReadSeeker) (*boxhttp.Response, error) {
	token, err := c.session.GetAccessToken(ctx, nil)
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	header.Set("Authorization", "Bearer "+token)

	if c.asUser != "" {
		header.Set("As-User", c.asUser)
	}

	if body != nil {
		header.Set("Content-Type", "application/json")
	}

	return c.exec.Do(ctx, &boxhttp.Request{
		Method: method,
		URL:    c.baseURL + apiVersionPath + path,
		Header: header,
		Body:   body,
	})
}
