package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
)

var testKey = []byte("smartbin-webhook-test-key")

func testSecret() string {
	return "whsec_" + base64.StdEncoding.EncodeToString(testKey)
}

func sign(id string, ts time.Time, body []byte) (string, string) {
	stamp := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, testKey)
	mac.Write([]byte(id + "." + stamp + "."))
	mac.Write(body)
	return stamp, "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type mockSyncer struct {
	mu    sync.Mutex
	calls []gateway.ClerkSyncRequest
	err   error
}

func (m *mockSyncer) SyncClerkUser(ctx context.Context, req gateway.ClerkSyncRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	return m.err
}

// memoryStore mimics the insert-on-conflict-do-nothing claim.
type memoryStore struct {
	seen     map[string]bool
	finished map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{seen: map[string]bool{}, finished: map[string]error{}}
}

func (s *memoryStore) Claim(ctx context.Context, svixID, eventType, clerkID string) (bool, error) {
	if s.seen[svixID] {
		return false, nil
	}
	s.seen[svixID] = true
	return true, nil
}

func (s *memoryStore) Finish(ctx context.Context, svixID string, syncErr error) error {
	s.finished[svixID] = syncErr
	return nil
}

const userCreated = `{"type":"user.created","data":{"id":"user_2abcdefgh12345678","username":"",
	"first_name":"Amal","last_name":"Ben Salah","primary_email_address_id":"idn_2",
	"email_addresses":[{"id":"idn_1","email_address":"old@example.com"},{"id":"idn_2","email_address":"amal@example.com"}]}}`

func post(h http.Handler, id string, ts time.Time, body string, tamper bool) *httptest.ResponseRecorder {
	stamp, sig := sign(id, ts, []byte(body))
	if tamper {
		body += " "
	}
	req := httptest.NewRequest(http.MethodPost, "/clerk", bytes.NewBufferString(body))
	req.Header.Set("svix-id", id)
	req.Header.Set("svix-timestamp", stamp)
	req.Header.Set("svix-signature", "v1,bm90LXRoaXMtb25l "+sig)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newTestHandler(t *testing.T, syncer Syncer, store DeliveryStore) http.Handler {
	t.Helper()
	v, err := NewVerifier(testSecret())
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return SetupRoutes(NewHandler(v, syncer, store))
}

func TestVerifier(t *testing.T) {
	v, err := NewVerifier(testSecret())
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	now := time.Now()
	body := []byte(`{"type":"user.updated"}`)
	stamp, sig := sign("msg_1", now, body)

	if err := v.Verify("msg_1", stamp, sig, body); err != nil {
		t.Errorf("expected valid signature, got %v", err)
	}
	if err := v.Verify("msg_2", stamp, sig, body); !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch for another id, got %v", err)
	}
	if err := v.Verify("msg_1", stamp, "v2,"+sig[3:], body); !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch for unknown version, got %v", err)
	}
	old, oldSig := sign("msg_1", now.Add(-10*time.Minute), body)
	if err := v.Verify("msg_1", old, oldSig, body); !errors.Is(err, ErrTimestampSkew) {
		t.Errorf("expected ErrTimestampSkew, got %v", err)
	}
	if err := v.Verify("msg_1", "yesterday", sig, body); !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("expected ErrInvalidTimestamp, got %v", err)
	}
	if err := v.Verify("", stamp, sig, body); !errors.Is(err, ErrMissingHeaders) {
		t.Errorf("expected ErrMissingHeaders, got %v", err)
	}

	// Signatures produced by the svix library itself are accepted too
	libSig, err := v.wh.Sign("msg_3", now, body)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := v.Verify("msg_3", stamp, "v1,bm90LXRoaXMtb25l "+libSig, body); err != nil {
		t.Errorf("expected library signature to verify, got %v", err)
	}
}

func TestNewVerifier_EmptySecret(t *testing.T) {
	for _, secret := range []string{"", "whsec_", "  "} {
		if _, err := NewVerifier(secret); err == nil {
			t.Errorf("expected an error for secret %q", secret)
		}
	}
}

func TestNewVerifier_BadSecret(t *testing.T) {
	if _, err := NewVerifier("whsec_%%%"); err == nil {
		t.Error("expected an error for a secret that is not base64")
	}
}

func TestClerkWebhook_SyncsUser(t *testing.T) {
	syncer := &mockSyncer{}
	store := newMemoryStore()
	h := newTestHandler(t, syncer, store)

	rec := post(h, "msg_1", time.Now(), userCreated, false)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(syncer.calls) != 1 {
		t.Fatalf("expected one sync, got %d", len(syncer.calls))
	}
	want := gateway.ClerkSyncRequest{
		ClerkID:   "user_2abcdefgh12345678",
		Email:     "amal@example.com",
		Username:  "amal",
		FirstName: "Amal",
		LastName:  "Ben Salah",
		EventType: "user.created",
	}
	if syncer.calls[0] != want {
		t.Errorf("expected %+v, got %+v", want, syncer.calls[0])
	}
	if err, ok := store.finished["msg_1"]; !ok || err != nil {
		t.Errorf("expected delivery marked synced, got %v (recorded %v)", err, ok)
	}
}

func TestClerkWebhook_ReplayIsIgnored(t *testing.T) {
	syncer := &mockSyncer{}
	h := newTestHandler(t, syncer, newMemoryStore())

	post(h, "msg_1", time.Now(), userCreated, false)
	rec := post(h, "msg_1", time.Now(), userCreated, false)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for a replay, got %d", rec.Code)
	}
	if len(syncer.calls) != 1 {
		t.Errorf("expected a single sync, got %d", len(syncer.calls))
	}
}

func TestClerkWebhook_Rejections(t *testing.T) {
	h := newTestHandler(t, &mockSyncer{}, nil)

	if rec := post(h, "msg_1", time.Now(), userCreated, true); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a tampered body, got %d", rec.Code)
	}
	if rec := post(h, "msg_1", time.Now().Add(-time.Hour), userCreated, false); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a stale timestamp, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/clerk", bytes.NewBufferString(userCreated))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without svix headers, got %d", rec.Code)
	}
}

func TestClerkWebhook_SyncFailureStillAcknowledged(t *testing.T) {
	syncer := &mockSyncer{err: errors.New("gateway down")}
	store := newMemoryStore()
	h := newTestHandler(t, syncer, store)

	rec := post(h, "msg_9", time.Now(), userCreated, false)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if store.finished["msg_9"] == nil {
		t.Error("expected the sync error to be recorded")
	}
}

func TestClerkWebhook_OtherEventsIgnored(t *testing.T) {
	syncer := &mockSyncer{}
	h := newTestHandler(t, syncer, nil)

	rec := post(h, "msg_3", time.Now(), `{"type":"session.created","data":{"id":"sess_1"}}`, false)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if len(syncer.calls) != 0 {
		t.Errorf("expected no sync, got %d", len(syncer.calls))
	}
}

func TestSyncRequest_Fallbacks(t *testing.T) {
	cases := []struct {
		name     string
		user     ClerkUser
		email    string
		username string
	}{
		{"username only", ClerkUser{ID: "user_2xyz98765432", Username: "recycler"}, "recycler@clerk.local", "recycler"},
		{"nothing", ClerkUser{ID: "user_2xyz98765432"}, "user_98765432@clerk.local", "user_98765432"},
		{"short id", ClerkUser{ID: "u1"}, "user_u1@clerk.local", "user_u1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SyncRequest("user.updated", tc.user)
			if got.Email != tc.email || got.Username != tc.username {
				t.Errorf("expected %s / %s, got %s / %s", tc.email, tc.username, got.Email, got.Username)
			}
		})
	}
}
