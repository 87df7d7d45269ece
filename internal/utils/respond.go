package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
)

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError answers with {"error": message}.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteUpstreamError maps a gateway failure onto the response. Client errors
// reported by a service pass through, everything else is a bad gateway.
func WriteUpstreamError(w http.ResponseWriter, err error, fallback string) {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusNotFound:
			WriteError(w, http.StatusNotFound, firstNonEmpty(apiErr.Message, "Not found"))
			return
		case apiErr.Status >= 400 && apiErr.Status < 500:
			WriteError(w, apiErr.Status, firstNonEmpty(apiErr.Message, fallback))
			return
		}
	}
	WriteError(w, http.StatusBadGateway, fallback)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
