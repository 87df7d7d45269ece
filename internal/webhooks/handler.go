package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
)

type Syncer interface {
	SyncClerkUser(ctx context.Context, req gateway.ClerkSyncRequest) error
}

type Handler struct {
	verifier *Verifier
	syncer   Syncer
	store    DeliveryStore // nil disables replay detection
}

func NewHandler(verifier *Verifier, syncer Syncer, store DeliveryStore) *Handler {
	return &Handler{verifier: verifier, syncer: syncer, store: store}
}

// ClerkWebhook syncs Clerk user changes into the auth service. Once the
// signature checks out the answer is 200, even when the sync fails.
func (h *Handler) ClerkWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "payload too large or unreadable", http.StatusRequestEntityTooLarge)
		return
	}
	defer r.Body.Close()

	svixID := r.Header.Get("svix-id")
	timestamp := r.Header.Get("svix-timestamp")
	signature := r.Header.Get("svix-signature")
	if svixID == "" || timestamp == "" || signature == "" {
		http.Error(w, "Error occurred -- no svix headers", http.StatusBadRequest)
		return
	}
	if err := h.verifier.Verify(svixID, timestamp, signature, raw); err != nil {
		log.Printf("[webhooks] rejected %s: %v", svixID, err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var evt ClerkEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	log.Printf("[webhooks] clerk event %s (%s)", evt.Type, svixID)

	if evt.Type != "user.created" && evt.Type != "user.updated" {
		w.WriteHeader(http.StatusOK)
		return
	}

	var user ClerkUser
	if err := json.Unmarshal(evt.Data, &user); err != nil || user.ID == "" {
		http.Error(w, "bad user payload", http.StatusBadRequest)
		return
	}

	if h.store != nil {
		fresh, err := h.store.Claim(r.Context(), svixID, evt.Type, user.ID)
		if err != nil {
			log.Printf("[webhooks] recording %s: %v", svixID, err)
			http.Error(w, "db insert failed", http.StatusInternalServerError)
			return
		}
		if !fresh {
			log.Printf("[webhooks] %s already processed", svixID)
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	req := SyncRequest(evt.Type, user)
	syncErr := h.syncer.SyncClerkUser(r.Context(), req)
	if syncErr != nil {
		log.Printf("[webhooks] sync of %s failed: %v", user.ID, syncErr)
	} else {
		log.Printf("[webhooks] synced %s as %s", user.ID, req.Username)
	}

	if h.store != nil {
		if err := h.store.Finish(r.Context(), svixID, syncErr); err != nil {
			log.Printf("[webhooks] updating %s: %v", svixID, err)
		}
	}

	w.WriteHeader(http.StatusOK)
}
