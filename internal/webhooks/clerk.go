package webhooks

import (
	"encoding/json"
	"strings"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
)

// ClerkEvent is the envelope of a Clerk webhook.
type ClerkEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ClerkUser is the user object of user.created and user.updated events.
type ClerkUser struct {
	ID                    string `json:"id"`
	Username              string `json:"username"`
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	PrimaryEmailAddressID string `json:"primary_email_address_id"`
	EmailAddresses        []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

// primaryEmail prefers the address flagged primary, then the first one.
func (u ClerkUser) primaryEmail() string {
	for _, e := range u.EmailAddresses {
		if e.ID != "" && e.ID == u.PrimaryEmailAddressID && e.EmailAddress != "" {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

// shortID is "user_" plus the last eight characters of the Clerk id.
func shortID(id string) string {
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return "user_" + id
}

// SyncRequest builds the auth service payload. Clerk accounts may lack an
// email or a username, so both get placeholders.
func SyncRequest(eventType string, u ClerkUser) gateway.ClerkSyncRequest {
	email := u.primaryEmail()
	if email == "" {
		if u.Username != "" {
			email = u.Username + "@clerk.local"
		} else {
			email = shortID(u.ID) + "@clerk.local"
		}
	}

	username := u.Username
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}
	if username == "" {
		username = shortID(u.ID)
	}

	return gateway.ClerkSyncRequest{
		ClerkID:   u.ID,
		Email:     email,
		Username:  username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		EventType: eventType,
	}
}
