package boxapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
)

// RootFolderID is the well-known identifier of the account's root folder.
const RootFolderID = "0"

// defaultPageLimit is used when ListOptions.Limit is zero.
const defaultPageLimit = 100

// Item is a normalized entry of a folder listing.
type Item struct {
	Type string
	ID   string
	Name string
	Size int64
}

// ItemPage is one page of a folder listing. TotalCount spans all pages.
type ItemPage struct {
	TotalCount int
	Offset     int
	Limit      int
	Entries    []Item
}

// ListOptions controls offset pagination for folder listings.
type ListOptions struct {
	Limit  int
	Offset int
}

// itemResponse mirrors an entry in the API items JSON.
type itemResponse struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// itemsResponse mirrors the API folder items JSON.
type itemsResponse struct {
	TotalCount int            `json:"total_count"`
	Offset     int            `json:"offset"`
	Limit      int            `json:"limit"`
	Entries    []itemResponse `json:"entries"`
}

// FolderItems returns one page of a folder's contents.
func (c *Client) FolderItems(ctx context.Context, folderID string, opts ListOptions) (*ItemPage, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultPageLimit
	}

	c.logger.Info("listing folder items",
		slog.String("folder_id", folderID),
		slog.Int("limit", opts.Limit),
		slog.Int("offset", opts.Offset),
	)

	query := url.Values{}
	query.Set("limit", strconv.Itoa(opts.Limit))
	query.Set("offset", strconv.Itoa(opts.Offset))

	path := fmt.Sprintf("/folders/%s/items?%s", url.PathEscape(folderID), query.Encode())

	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var ir itemsResponse
	if err := json.Unmarshal(resp.Body, &ir); err != nil {
		return nil, fmt.Errorf("boxapi: decoding items response: %w", err)
	}

	page := &ItemPage{
		TotalCount: ir.TotalCount,
		Offset:     ir.Offset,
		Limit:      ir.Limit,
		Entries:    make([]Item, 0, len(ir.Entries)),
	}

	for _, e := range ir.Entries {
		page.Entries = append(page.Entries, Item{
			Type: e.Type,
			ID:   e.ID,
			Name: e.Name,
			Size: e.Size,
		})
	}

	c.logger.Debug("listed folder items",
		slog.String("folder_id", folderID),
		slog.Int("count", len(page.Entries)),
		slog.Int("total", page.TotalCount),
	)

	return page, nil
}
