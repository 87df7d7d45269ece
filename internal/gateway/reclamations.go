package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// ListReclamations returns reclamations matching filter.
func (c *Client) ListReclamations(ctx context.Context, filter ReclamationFilter) ([]Reclamation, error) {
	query := url.Values{}
	if filter.UserNFCCode != "" {
		query.Set("user_nfc_code", filter.UserNFCCode)
	}
	if filter.BinID != "" {
		query.Set("bin_id", filter.BinID)
	}
	if filter.Status != "" {
		query.Set("status", filter.Status)
	}
	if filter.Type != "" {
		query.Set("type", filter.Type)
	}
	var out []Reclamation
	if err := c.list(ctx, "/api/reclamations/list/", query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateReclamation files a new reclamation.
func (c *Client) CreateReclamation(ctx context.Context, in ReclamationInput) (*Reclamation, error) {
	var out Reclamation
	if err := c.do(ctx, http.MethodPost, "/api/reclamations/list/", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResolveReclamation marks a reclamation resolved (admin).
func (c *Client) ResolveReclamation(ctx context.Context, id string) (*Reclamation, error) {
	return c.reclamationAction(ctx, id, "resolve")
}

// MarkReclamationInProgress marks a reclamation as being handled (admin).
func (c *Client) MarkReclamationInProgress(ctx context.Context, id string) (*Reclamation, error) {
	return c.reclamationAction(ctx, id, "in-progress")
}

func (c *Client) reclamationAction(ctx context.Context, id, action string) (*Reclamation, error) {
	var resp struct {
		Reclamation Reclamation `json:"reclamation"`
	}
	path := "/api/reclamations/list/" + url.PathEscape(id) + "/" + action + "/"
	if err := c.do(ctx, http.MethodPost, path, nil, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp.Reclamation, nil
}
