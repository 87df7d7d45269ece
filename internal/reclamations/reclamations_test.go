package reclamations

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
	"github.com/SmartBin/SmartBin-Backend/internal/utils"
)

type mockGateway struct {
	user    gateway.User
	filter  *gateway.ReclamationFilter
	created *gateway.ReclamationInput
}

func (m *mockGateway) UserByClerkID(ctx context.Context, clerkID string) (*gateway.User, error) {
	u := m.user
	return &u, nil
}

func (m *mockGateway) ListReclamations(ctx context.Context, filter gateway.ReclamationFilter) ([]gateway.Reclamation, error) {
	m.filter = &filter
	return nil, nil
}

func (m *mockGateway) CreateReclamation(ctx context.Context, in gateway.ReclamationInput) (*gateway.Reclamation, error) {
	m.created = &in
	return &gateway.Reclamation{ID: "r1", Title: in.Title, Status: "pending"}, nil
}

func (m *mockGateway) ResolveReclamation(ctx context.Context, id string) (*gateway.Reclamation, error) {
	return &gateway.Reclamation{ID: id, Status: "resolved"}, nil
}

func (m *mockGateway) MarkReclamationInProgress(ctx context.Context, id string) (*gateway.Reclamation, error) {
	return nil, &gateway.APIError{Status: http.StatusNotFound, Message: "Reclamation not found"}
}

func passthrough(next http.Handler) http.Handler { return next }

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req = req.WithContext(context.WithValue(req.Context(), utils.ContextUserIDKey, "user_1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestList_UserSeesOwn(t *testing.T) {
	gw := &mockGateway{user: gateway.User{NFCCode: "NFC-9"}}
	h := SetupRoutes(gw, passthrough, passthrough)

	rec := serve(h, http.MethodGet, "/?status=resolved", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gw.filter == nil || gw.filter.UserNFCCode != "NFC-9" || gw.filter.Status != "" {
		t.Errorf("expected only the user's NFC filter, got %+v", gw.filter)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestList_AdminFilters(t *testing.T) {
	gw := &mockGateway{user: gateway.User{IsStaff: true, NFCCode: "NFC-1"}}
	h := SetupRoutes(gw, passthrough, passthrough)

	rec := serve(h, http.MethodGet, "/?status=pending&type=odor&bin_id=b7", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	want := gateway.ReclamationFilter{Status: "pending", Type: "odor", BinID: "b7"}
	if gw.filter == nil || *gw.filter != want {
		t.Errorf("expected %+v, got %+v", want, gw.filter)
	}

	rec = serve(h, http.MethodGet, "/?type=smelly", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown type, got %d", rec.Code)
	}
}

func TestCreate(t *testing.T) {
	cases := []struct {
		name string
		user gateway.User
		body string
		want int
	}{
		{"valid", gateway.User{NFCCode: "NFC-9"}, `{"title":"Lid stuck","message":"Will not open","reclamation_type":"broken"}`, http.StatusCreated},
		{"defaults", gateway.User{NFCCode: "NFC-9"}, `{"title":"Hmm","message":"Something"}`, http.StatusCreated},
		{"missing message", gateway.User{NFCCode: "NFC-9"}, `{"title":"Lid stuck"}`, http.StatusBadRequest},
		{"bad type", gateway.User{NFCCode: "NFC-9"}, `{"title":"t","message":"m","reclamation_type":"noise"}`, http.StatusBadRequest},
		{"bad priority", gateway.User{NFCCode: "NFC-9"}, `{"title":"t","message":"m","priority":"asap"}`, http.StatusBadRequest},
		{"no nfc code", gateway.User{}, `{"title":"t","message":"m"}`, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := &mockGateway{user: tc.user}
			rec := serve(SetupRoutes(gw, passthrough, passthrough), http.MethodPost, "/", tc.body)

			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d; body: %s", tc.want, rec.Code, rec.Body.String())
			}
			if tc.want == http.StatusCreated {
				if gw.created.UserNFCCode != "NFC-9" {
					t.Errorf("expected the caller's NFC code, got %q", gw.created.UserNFCCode)
				}
				if gw.created.Priority == "" || gw.created.ReclamationType == "" {
					t.Errorf("expected defaults to be filled, got %+v", gw.created)
				}
			}
		})
	}
}

func TestAdminActions(t *testing.T) {
	h := SetupRoutes(&mockGateway{}, passthrough, passthrough)

	rec := serve(h, http.MethodPost, "/r1/resolve", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"resolved"`) {
		t.Errorf("expected resolved reclamation, got %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(h, http.MethodPost, "/r404/in-progress", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
