package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// UserByClerkID fetches the auth service account linked to a Clerk user.
func (c *Client) UserByClerkID(ctx context.Context, clerkID string) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/api/auth/users/clerk/"+url.PathEscape(clerkID)+"/", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// PointsHistory lists the caller's point transactions. The bearer token on ctx
// identifies the caller.
func (c *Client) PointsHistory(ctx context.Context) ([]PointsTransaction, error) {
	var history []PointsTransaction
	if err := c.list(ctx, "/api/auth/points/history/", nil, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// SyncClerkUser creates or updates the auth service account for a Clerk user.
func (c *Client) SyncClerkUser(ctx context.Context, req ClerkSyncRequest) error {
	return c.do(ctx, http.MethodPost, "/api/auth/clerk-sync/", nil, req, nil)
}
