package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// ListDetections returns detections logged for a bin, newest first.
func (c *Client) ListDetections(ctx context.Context, binID string) ([]Detection, error) {
	query := url.Values{}
	if binID != "" {
		query.Set("bin_id", binID)
	}
	var detections []Detection
	if err := c.list(ctx, "/api/detections/list/", query, &detections); err != nil {
		return nil, err
	}
	return detections, nil
}

// TodayStats returns today's aggregated detection counters.
func (c *Client) TodayStats(ctx context.Context) (*DetectionStats, error) {
	var stats DetectionStats
	if err := c.do(ctx, http.MethodGet, "/api/detections/stats/today/", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// SimulateDetection records a fake detection and awards its points.
func (c *Client) SimulateDetection(ctx context.Context, in SimulateDetectionInput) (*Detection, error) {
	var resp struct {
		Detection Detection `json:"detection"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/detections/simulate/", nil, in, &resp); err != nil {
		return nil, err
	}
	return &resp.Detection, nil
}
