package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// ListBins returns every bin, optionally filtered by status.
func (c *Client) ListBins(ctx context.Context, status string) ([]Bin, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	var bins []Bin
	if err := c.list(ctx, "/api/bins/list/", query, &bins); err != nil {
		return nil, err
	}
	return bins, nil
}

// GetBin fetches a bin by ID.
func (c *Client) GetBin(ctx context.Context, id string) (*Bin, error) {
	var bin Bin
	if err := c.do(ctx, http.MethodGet, binPath(id), nil, nil, &bin); err != nil {
		return nil, err
	}
	return &bin, nil
}

// BinByQRCode fetches the bin whose sticker carries code.
func (c *Client) BinByQRCode(ctx context.Context, code string) (*Bin, error) {
	var bin Bin
	if err := c.do(ctx, http.MethodGet, "/api/bins/qr/"+url.PathEscape(code)+"/", nil, nil, &bin); err != nil {
		return nil, err
	}
	return &bin, nil
}

// CreateBin registers a new bin (admin).
func (c *Client) CreateBin(ctx context.Context, in BinInput) (*Bin, error) {
	var bin Bin
	if err := c.do(ctx, http.MethodPost, "/api/bins/list/", nil, in, &bin); err != nil {
		return nil, err
	}
	return &bin, nil
}

// UpdateBin replaces a bin's writable fields (admin).
func (c *Client) UpdateBin(ctx context.Context, id string, in BinInput) (*Bin, error) {
	var bin Bin
	if err := c.do(ctx, http.MethodPut, binPath(id), nil, in, &bin); err != nil {
		return nil, err
	}
	return &bin, nil
}

// DeleteBin removes a bin (admin).
func (c *Client) DeleteBin(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, binPath(id), nil, nil, nil)
}

// OpenBin asks the bin service to unlock the lid for the user identified by userCode.
func (c *Client) OpenBin(ctx context.Context, id, userCode string) error {
	body := map[string]string{"user_qr_code": userCode}
	return c.do(ctx, http.MethodPost, binPath(id, "open"), nil, body, nil)
}

// CloseBin asks the bin service to lock the lid.
func (c *Client) CloseBin(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, binPath(id, "close"), nil, struct{}{}, nil)
}

// UpdateFillLevel reports a new fill percentage. The bin service flips the
// status to full at 90% and back to active below 80%.
func (c *Client) UpdateFillLevel(ctx context.Context, id string, level int) (*Bin, error) {
	var resp struct {
		Bin Bin `json:"bin"`
	}
	body := map[string]int{"fill_level": level}
	if err := c.do(ctx, http.MethodPost, binPath(id, "update-fill-level"), nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp.Bin, nil
}
