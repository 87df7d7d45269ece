package reclamations

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
	"github.com/SmartBin/SmartBin-Backend/internal/middleware"
	"github.com/SmartBin/SmartBin-Backend/internal/utils"
	"github.com/go-chi/chi/v5"
)

var (
	validTypes      = []string{"full", "broken", "missing", "overflow", "odor", "other"}
	validPriorities = []string{"low", "medium", "high", "urgent"}
	validStatuses   = []string{"pending", "in_progress", "resolved", "rejected"}
)

const (
	maxTitleLength   = 200
	maxMessageLength = 5000
)

type Gateway interface {
	UserByClerkID(ctx context.Context, clerkID string) (*gateway.User, error)
	ListReclamations(ctx context.Context, filter gateway.ReclamationFilter) ([]gateway.Reclamation, error)
	CreateReclamation(ctx context.Context, in gateway.ReclamationInput) (*gateway.Reclamation, error)
	ResolveReclamation(ctx context.Context, id string) (*gateway.Reclamation, error)
	MarkReclamationInProgress(ctx context.Context, id string) (*gateway.Reclamation, error)
}

type handlers struct {
	gw Gateway
}

// currentUser loads the caller's auth service account.
func (h *handlers) currentUser(w http.ResponseWriter, r *http.Request) (*gateway.User, bool) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	user, err := h.gw.UserByClerkID(utils.UpstreamContext(r), userID)
	if err != nil {
		log.Printf("[reclamations] user lookup %s: %v", userID, err)
		utils.WriteUpstreamError(w, err, "Failed to load your account")
		return nil, false
	}
	return user, true
}

// ListReclamations returns the caller's reclamations. Admins see everything
// and may filter by status, type and bin_id.
func (h *handlers) ListReclamations(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	claims, _ := middleware.ClaimsFromContext(r.Context())
	isAdmin := claims.IsAdmin() || user.IsStaff || user.IsSuperuser

	var filter gateway.ReclamationFilter
	if isAdmin && q.Get("mine") != "true" {
		filter = gateway.ReclamationFilter{
			Status: q.Get("status"),
			Type:   q.Get("type"),
			BinID:  q.Get("bin_id"),
		}
		if filter.Status != "" && !slices.Contains(validStatuses, filter.Status) {
			utils.WriteError(w, http.StatusBadRequest, "Invalid status filter")
			return
		}
		if filter.Type != "" && !slices.Contains(validTypes, filter.Type) {
			utils.WriteError(w, http.StatusBadRequest, "Invalid type filter")
			return
		}
	} else {
		if user.NFCCode == "" {
			utils.WriteJSON(w, http.StatusOK, []gateway.Reclamation{})
			return
		}
		filter.UserNFCCode = user.NFCCode
	}

	list, err := h.gw.ListReclamations(utils.UpstreamContext(r), filter)
	if err != nil {
		utils.WriteUpstreamError(w, err, "Failed to fetch reclamations")
		return
	}
	if list == nil {
		list = []gateway.Reclamation{}
	}
	utils.WriteJSON(w, http.StatusOK, list)
}

// CreateReclamation files a complaint in the caller's name.
func (h *handlers) CreateReclamation(w http.ResponseWriter, r *http.Request) {
	var in gateway.ReclamationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validateInput(&in); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if user.NFCCode == "" {
		utils.WriteError(w, http.StatusConflict, "Your account has no NFC code yet")
		return
	}
	in.UserNFCCode = user.NFCCode

	created, err := h.gw.CreateReclamation(utils.UpstreamContext(r), in)
	if err != nil {
		log.Printf("[reclamations] create failed: %v", err)
		utils.WriteUpstreamError(w, err, "Failed to submit reclamation")
		return
	}
	utils.WriteJSON(w, http.StatusCreated, created)
}

// Resolve marks a reclamation resolved (admin only).
func (h *handlers) Resolve(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.gw.ResolveReclamation)
}

// MarkInProgress marks a reclamation as being handled (admin only).
func (h *handlers) MarkInProgress(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.gw.MarkReclamationInProgress)
}

func (h *handlers) act(w http.ResponseWriter, r *http.Request, action func(context.Context, string) (*gateway.Reclamation, error)) {
	id := chi.URLParam(r, "reclamation_id")
	rec, err := action(utils.UpstreamContext(r), id)
	if err != nil {
		utils.WriteUpstreamError(w, err, "Failed to update reclamation")
		return
	}
	log.Printf("[reclamations] %s is now %s", id, rec.Status)
	utils.WriteJSON(w, http.StatusOK, rec)
}

func validateInput(in *gateway.ReclamationInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	in.Location = strings.TrimSpace(in.Location)
	if in.ReclamationType == "" {
		in.ReclamationType = "other"
	}
	if in.Priority == "" {
		in.Priority = "medium"
	}
	if in.BinID != nil && strings.TrimSpace(*in.BinID) == "" {
		in.BinID = nil
	}

	switch {
	case in.Title == "" || in.Message == "":
		return errors.New("title and message are required")
	case utf8.RuneCountInString(in.Title) > maxTitleLength:
		return errors.New("title is too long")
	case utf8.RuneCountInString(in.Message) > maxMessageLength:
		return errors.New("message is too long")
	case !slices.Contains(validTypes, in.ReclamationType):
		return errors.New("reclamation_type must be one of " + strings.Join(validTypes, ", "))
	case !slices.Contains(validPriorities, in.Priority):
		return errors.New("priority must be one of " + strings.Join(validPriorities, ", "))
	}
	return nil
}
