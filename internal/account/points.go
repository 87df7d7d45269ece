package account

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
)

// DefaultPoints is shown for accounts whose balance was never set.
const DefaultPoints = 5

// Balance returns the user's points, DefaultPoints when unset. Only a null
// balance takes the default: an account that spent everything reads 0, not 5.
func Balance(u *gateway.User) int {
	if u == nil || u.Points == nil {
		return DefaultPoints
	}
	return *u.Points
}

type UserSource interface {
	UserByClerkID(ctx context.Context, clerkID string) (*gateway.User, error)
}

// Refresher re-reads a balance after a deposit, giving the detection service
// time to credit the points.
type Refresher struct {
	users    UserSource
	attempts int
	delay    time.Duration
}

func NewRefresher(users UserSource, attempts int, delay time.Duration) *Refresher {
	if attempts < 1 {
		attempts = 1
	}
	return &Refresher{users: users, attempts: attempts, delay: delay}
}

// Refresh makes up to the configured number of attempts, sleeping before
// each one, and stops at the first balance that differs from previous.
// It returns the last balance read, or previous with an error when no
// attempt succeeded.
func (r *Refresher) Refresh(ctx context.Context, clerkID string, previous int) (int, error) {
	latest, fetched := previous, false
	var lastErr error

	for attempt := 1; attempt <= r.attempts; attempt++ {
		t := time.NewTimer(r.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return latest, errors.Join(ctx.Err(), lastErr)
		case <-t.C:
		}

		user, err := r.users.UserByClerkID(ctx, clerkID)
		if err != nil {
			log.Printf("[points] refresh attempt %d/%d for %s failed: %v", attempt, r.attempts, clerkID, err)
			lastErr = err
			continue
		}
		latest, fetched = Balance(user), true
		if latest != previous {
			log.Printf("[points] balance for %s updated %d -> %d", clerkID, previous, latest)
			return latest, nil
		}
	}

	if !fetched {
		return previous, fmt.Errorf("refresh points for %s: %w", clerkID, lastErr)
	}
	return latest, nil
}
