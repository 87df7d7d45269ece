package account

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
	"github.com/SmartBin/SmartBin-Backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

// scriptedUsers answers each lookup with the next scripted response.
type scriptedUsers struct {
	mu      sync.Mutex
	replies []reply
	calls   int
	history []gateway.PointsTransaction
}

type reply struct {
	points *int
	err    error
}

func (s *scriptedUsers) UserByClerkID(ctx context.Context, clerkID string) (*gateway.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	r := s.replies[i]
	if r.err != nil {
		return nil, r.err
	}
	return &gateway.User{ID: "42", Username: "sami", Points: r.points, NFCCode: "NFC-1"}, nil
}

func (s *scriptedUsers) PointsHistory(ctx context.Context) ([]gateway.PointsTransaction, error) {
	return s.history, nil
}

func TestBalance(t *testing.T) {
	assert.Equal(t, DefaultPoints, Balance(nil))
	assert.Equal(t, DefaultPoints, Balance(&gateway.User{}))
	assert.Equal(t, 0, Balance(&gateway.User{Points: intPtr(0)}))
	assert.Equal(t, 120, Balance(&gateway.User{Points: intPtr(120)}))
}

func TestRefresh_StopsWhenBalanceChanges(t *testing.T) {
	users := &scriptedUsers{replies: []reply{{points: intPtr(10)}, {points: intPtr(20)}, {points: intPtr(30)}}}
	r := NewRefresher(users, 3, time.Millisecond)

	got, err := r.Refresh(context.Background(), "user_1", 10)

	require.NoError(t, err)
	assert.Equal(t, 20, got)
	assert.Equal(t, 2, users.calls)
}

func TestRefresh_GivesUpAfterAttempts(t *testing.T) {
	users := &scriptedUsers{replies: []reply{{points: intPtr(10)}}}
	r := NewRefresher(users, 3, time.Millisecond)

	got, err := r.Refresh(context.Background(), "user_1", 10)

	require.NoError(t, err)
	assert.Equal(t, 10, got)
	assert.Equal(t, 3, users.calls)
}

func TestRefresh_ErrorsAreRetried(t *testing.T) {
	users := &scriptedUsers{replies: []reply{{err: errors.New("boom")}, {points: intPtr(15)}}}
	r := NewRefresher(users, 3, time.Millisecond)

	got, err := r.Refresh(context.Background(), "user_1", 10)

	require.NoError(t, err)
	assert.Equal(t, 15, got)
}

func TestRefresh_AllAttemptsFail(t *testing.T) {
	users := &scriptedUsers{replies: []reply{{err: gateway.ErrNotFound}}}
	r := NewRefresher(users, 2, time.Millisecond)

	got, err := r.Refresh(context.Background(), "user_1", 10)

	require.ErrorIs(t, err, gateway.ErrNotFound)
	assert.Equal(t, 10, got)
	assert.Equal(t, 2, users.calls)
}

func TestRefresh_Canceled(t *testing.T) {
	users := &scriptedUsers{replies: []reply{{points: intPtr(10)}}}
	r := NewRefresher(users, 3, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Refresh(ctx, "user_1", 10)

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, users.calls)
}

func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), utils.ContextUserIDKey, userID))
}

func TestGetMe_DefaultsPoints(t *testing.T) {
	users := &scriptedUsers{replies: []reply{{points: nil}}}
	h := SetupRoutes(users, func(next http.Handler) http.Handler { return next })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/", nil), "user_1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"clerk_id":"user_1","id":"42","username":"sami","email":"","points":5,
		"nfc_code":"NFC-1","is_admin":false,"has_nfc_tag":true}`, rec.Body.String())
}

func TestGetPointsHistory_EmptyIsArray(t *testing.T) {
	h := SetupRoutes(&scriptedUsers{}, func(next http.Handler) http.Handler { return next })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/points/history", nil), "user_1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
