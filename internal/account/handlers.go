package account

import (
	"log"
	"net/http"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
	"github.com/SmartBin/SmartBin-Backend/internal/middleware"
	"github.com/SmartBin/SmartBin-Backend/internal/utils"
)

// Profile is the signed in user as the dashboard sees it.
type Profile struct {
	ClerkID   string `json:"clerk_id"`
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Points    int    `json:"points"`
	NFCCode   string `json:"nfc_code"`
	IsAdmin   bool   `json:"is_admin"`
	HasNFCTag bool   `json:"has_nfc_tag"`
}

type handlers struct {
	gw Gateway
}

func (h *handlers) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	user, err := h.gw.UserByClerkID(utils.UpstreamContext(r), userID)
	if err != nil {
		log.Printf("[account] lookup %s: %v", userID, err)
		utils.WriteUpstreamError(w, err, "Failed to load your account")
		return
	}

	claims, _ := middleware.ClaimsFromContext(r.Context())
	utils.WriteJSON(w, http.StatusOK, Profile{
		ClerkID:   userID,
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Points:    Balance(user),
		NFCCode:   user.NFCCode,
		IsAdmin:   claims.IsAdmin() || user.IsStaff || user.IsSuperuser,
		HasNFCTag: user.NFCCode != "",
	})
}

func (h *handlers) GetPointsHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.gw.PointsHistory(utils.UpstreamContext(r))
	if err != nil {
		utils.WriteUpstreamError(w, err, "Failed to load points history")
		return
	}
	if history == nil {
		history = []gateway.PointsTransaction{}
	}
	utils.WriteJSON(w, http.StatusOK, history)
}
