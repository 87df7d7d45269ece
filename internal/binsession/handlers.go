package binsession

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/SmartBin/SmartBin-Backend/internal/account"
	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
	"github.com/SmartBin/SmartBin-Backend/internal/middleware"
	"github.com/SmartBin/SmartBin-Backend/internal/utils"
	"github.com/go-chi/chi/v5"
)

type UserFetcher interface {
	UserByClerkID(ctx context.Context, clerkID string) (*gateway.User, error)
}

type handlers struct {
	sessions *Manager
	users    UserFetcher
	origins  []string
}

type openRequest struct {
	BinID string `json:"bin_id"`
}

// OpenSession opens a bin for the caller and starts the interaction.
func (h *handlers) OpenSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var body openRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	body.BinID = strings.TrimSpace(body.BinID)
	if body.BinID == "" {
		utils.WriteError(w, http.StatusBadRequest, "bin_id is required")
		return
	}

	ctx := utils.UpstreamContext(r)
	user, err := h.users.UserByClerkID(ctx, userID)
	if err != nil {
		log.Printf("[session] user lookup for %s failed: %v", userID, err)
		utils.WriteUpstreamError(w, err, "Failed to load your account")
		return
	}
	before := account.Balance(user)

	snap, err := h.sessions.Open(r.Context(), OpenRequest{
		BinID:        body.BinID,
		UserID:       userID,
		NFCCode:      user.NFCCode,
		Token:        utils.GetTokenFromContext(r.Context()),
		PointsBefore: &before,
	})
	if err != nil {
		writeOpenError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, snap)
}

func writeOpenError(w http.ResponseWriter, err error) {
	var unavailable *UnavailableError
	switch {
	case errors.As(err, &unavailable):
		utils.WriteJSON(w, http.StatusConflict, map[string]string{
			"error":  unavailable.Verdict.Message,
			"reason": unavailable.Verdict.Reason,
		})
	case errors.Is(err, ErrBinBusy):
		utils.WriteError(w, http.StatusConflict, "This bin is already in use. Please wait a moment.")
	case errors.Is(err, ErrShuttingDown):
		utils.WriteError(w, http.StatusServiceUnavailable, "Service is restarting, please try again")
	case errors.Is(err, ErrInvalidRequest):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[session] open failed: %v", err)
		utils.WriteUpstreamError(w, err, "Failed to open bin")
	}
}

// GetSession returns the caller's session.
func (h *handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.ownedSnapshot(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, snap)
}

// CloseSession is the close button.
func (h *handlers) CloseSession(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.ownedSnapshot(w, r)
	if !ok {
		return
	}

	snap, err := h.sessions.Close(r.Context(), snap.ID)
	switch {
	case errors.Is(err, ErrInvalidTransition):
		utils.WriteError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		utils.WriteError(w, http.StatusInternalServerError, "Failed to close bin")
		return
	}
	utils.WriteJSON(w, http.StatusOK, snap)
}

// ListHistory returns the caller's past sessions, newest first.
func (h *handlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := h.sessions.History(r.Context(), userID, limit)
	if err != nil {
		log.Printf("[session] history for %s: %v", userID, err)
		utils.WriteError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	utils.WriteJSON(w, http.StatusOK, records)
}

// ownedSnapshot loads the session in the URL. Other users' sessions are
// reported as missing unless the caller is an admin.
func (h *handlers) ownedSnapshot(w http.ResponseWriter, r *http.Request) (Snapshot, bool) {
	snap, err := h.sessions.Get(chi.URLParam(r, "session_id"))
	if err != nil {
		utils.WriteError(w, http.StatusNotFound, "Session not found")
		return Snapshot{}, false
	}
	userID, _ := utils.GetUserIDFromContext(r.Context())
	claims, _ := middleware.ClaimsFromContext(r.Context())
	if snap.UserID != userID && !claims.IsAdmin() {
		utils.WriteError(w, http.StatusNotFound, "Session not found")
		return Snapshot{}, false
	}
	return snap, true
}
