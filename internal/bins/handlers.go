package bins

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
	"github.com/SmartBin/SmartBin-Backend/internal/geocoding"
	"github.com/SmartBin/SmartBin-Backend/internal/utils"
	"github.com/go-chi/chi/v5"
)

var validStatuses = map[string]struct{}{
	gateway.BinStatusActive:      {},
	gateway.BinStatusInactive:    {},
	gateway.BinStatusMaintenance: {},
	gateway.BinStatusFull:        {},
}

// Gateway is the slice of the gateway client the bin routes need.
type Gateway interface {
	ListBins(ctx context.Context, status string) ([]gateway.Bin, error)
	GetBin(ctx context.Context, id string) (*gateway.Bin, error)
	BinByQRCode(ctx context.Context, code string) (*gateway.Bin, error)
	CreateBin(ctx context.Context, in gateway.BinInput) (*gateway.Bin, error)
	UpdateBin(ctx context.Context, id string, in gateway.BinInput) (*gateway.Bin, error)
	DeleteBin(ctx context.Context, id string) error
	UpdateFillLevel(ctx context.Context, id string, level int) (*gateway.Bin, error)
	TodayStats(ctx context.Context) (*gateway.DetectionStats, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (*geocoding.Result, error)
}

type handlers struct {
	gw  Gateway
	geo Geocoder // nil when no Maps key is configured
}

// ListBins returns bins, optionally only the available ones, nearest first
// when the caller's position is given.
func (h *handlers) ListBins(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := q.Get("status")
	if status != "" {
		if _, ok := validStatuses[status]; !ok {
			utils.WriteError(w, http.StatusBadRequest, "Invalid status filter")
			return
		}
	}

	all, err := h.gw.ListBins(utils.UpstreamContext(r), status)
	if err != nil {
		log.Printf("[bins] list error: %v", err)
		utils.WriteUpstreamError(w, err, "Failed to fetch bins")
		return
	}
	if available, _ := strconv.ParseBool(q.Get("available")); available {
		all = Available(all)
	}

	views := Views(all)
	if lat, lng, ok := parsePosition(q.Get("lat"), q.Get("lng")); ok {
		SortByDistance(views, lat, lng)
	}

	utils.WriteJSON(w, http.StatusOK, views)
}

// GetBin returns one bin with its open verdict.
func (h *handlers) GetBin(w http.ResponseWriter, r *http.Request) {
	bin, err := h.gw.GetBin(utils.UpstreamContext(r), chi.URLParam(r, "bin_id"))
	if err != nil {
		utils.WriteUpstreamError(w, err, "Failed to fetch bin")
		return
	}
	utils.WriteJSON(w, http.StatusOK, NewView(*bin))
}

// GetBinByQRCode resolves a scanned bin sticker.
func (h *handlers) GetBinByQRCode(w http.ResponseWriter, r *http.Request) {
	bin, err := h.gw.BinByQRCode(utils.UpstreamContext(r), chi.URLParam(r, "code"))
	if err != nil {
		utils.WriteUpstreamError(w, err, "Failed to fetch bin")
		return
	}
	utils.WriteJSON(w, http.StatusOK, NewView(*bin))
}

// CreateBin registers a bin (admin only). A location without coordinates is
// geocoded when possible.
func (h *handlers) CreateBin(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeBinInput(w, r)
	if !ok {
		return
	}
	h.locate(r.Context(), &in)

	bin, err := h.gw.CreateBin(utils.UpstreamContext(r), in)
	if err != nil {
		log.Printf("[bins] create error: %v", err)
		utils.WriteUpstreamError(w, err, "Failed to create bin")
		return
	}
	log.Printf("[bins] created bin %s (%s)", bin.ID, bin.Name)
	utils.WriteJSON(w, http.StatusCreated, NewView(*bin))
}

// UpdateBin replaces a bin's fields (admin only).
func (h *handlers) UpdateBin(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeBinInput(w, r)
	if !ok {
		return
	}
	h.locate(r.Context(), &in)

	bin, err := h.gw.UpdateBin(utils.UpstreamContext(r), chi.URLParam(r, "bin_id"), in)
	if err != nil {
		utils.WriteUpstreamError(w, err, "Failed to update bin")
		return
	}
	utils.WriteJSON(w, http.StatusOK, NewView(*bin))
}

// DeleteBin removes a bin (admin only).
func (h *handlers) DeleteBin(w http.ResponseWriter, r *http.Request) {
	binID := chi.URLParam(r, "bin_id")
	if err := h.gw.DeleteBin(utils.UpstreamContext(r), binID); err != nil {
		utils.WriteUpstreamError(w, err, "Failed to delete bin")
		return
	}
	log.Printf("[bins] deleted bin %s", binID)
	w.WriteHeader(http.StatusNoContent)
}

// UpdateFillLevel records a manual fill reading (admin only).
func (h *handlers) UpdateFillLevel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FillLevel *int `json:"fill_level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.FillLevel == nil {
		utils.WriteError(w, http.StatusBadRequest, "fill_level is required")
		return
	}
	if *body.FillLevel < 0 || *body.FillLevel > 100 {
		utils.WriteError(w, http.StatusBadRequest, "fill_level must be between 0 and 100")
		return
	}

	bin, err := h.gw.UpdateFillLevel(utils.UpstreamContext(r), chi.URLParam(r, "bin_id"), *body.FillLevel)
	if err != nil {
		utils.WriteUpstreamError(w, err, "Failed to update fill level")
		return
	}
	utils.WriteJSON(w, http.StatusOK, NewView(*bin))
}

// GetStats summarizes the inventory and today's detections (admin only).
func (h *handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := utils.UpstreamContext(r)

	all, err := h.gw.ListBins(ctx, "")
	if err != nil {
		utils.WriteUpstreamError(w, err, "Failed to fetch bins")
		return
	}
	stats := Summarize(all)

	// Detection counters are optional on the dashboard
	if today, err := h.gw.TodayStats(ctx); err != nil {
		log.Printf("[bins] detection stats unavailable: %v", err)
	} else {
		stats.Detections = today
	}

	utils.WriteJSON(w, http.StatusOK, stats)
}

func (h *handlers) locate(ctx context.Context, in *gateway.BinInput) {
	if h.geo == nil || in.Latitude.Valid || in.Longitude.Valid {
		return
	}
	res, err := h.geo.Geocode(ctx, in.Location)
	if err != nil {
		log.Printf("[bins] geocoding %q failed: %v", in.Location, err)
		return
	}
	in.Latitude = gateway.NewCoordinate(res.Lat)
	in.Longitude = gateway.NewCoordinate(res.Lng)
}

func decodeBinInput(w http.ResponseWriter, r *http.Request) (gateway.BinInput, bool) {
	var in gateway.BinInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return in, false
	}
	if err := validateBinInput(&in); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return in, false
	}
	return in, true
}

func validateBinInput(in *gateway.BinInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.QRCode = strings.TrimSpace(in.QRCode)
	in.Location = strings.TrimSpace(in.Location)
	if in.Status == "" {
		in.Status = gateway.BinStatusActive
	}
	if in.Capacity == 0 {
		in.Capacity = 100
	}

	switch {
	case in.Name == "" || in.QRCode == "" || in.Location == "":
		return errors.New("name, qr_code and location are required")
	case in.Capacity < 0:
		return errors.New("capacity must be positive")
	case in.Latitude.Valid && (in.Latitude.Value < -90 || in.Latitude.Value > 90):
		return errors.New("latitude out of range")
	case in.Longitude.Valid && (in.Longitude.Value < -180 || in.Longitude.Value > 180):
		return errors.New("longitude out of range")
	}
	if _, ok := validStatuses[in.Status]; !ok {
		return errors.New("status must be one of active, inactive, maintenance, full")
	}
	return nil
}

func parsePosition(latStr, lngStr string) (float64, float64, bool) {
	if latStr == "" || lngStr == "" {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(latStr, 64)
	lng, err2 := strconv.ParseFloat(lngStr, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lng, true
}
