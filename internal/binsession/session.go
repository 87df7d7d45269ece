package binsession

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
)

// Snapshot is the client-facing view of a session.
type Snapshot struct {
	ID       string     `json:"id"`
	BinID    string     `json:"bin_id"`
	BinName  string     `json:"bin_name"`
	UserID   string     `json:"user_id"`
	State    State      `json:"state"`
	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`

	// Seconds left on the on-screen countdown. Display only, the bin is
	// never closed when it reaches zero.
	CountdownRemaining int `json:"countdown_remaining"`

	Detection    *gateway.Detection `json:"detection,omitempty"`
	PointsBefore *int               `json:"points_before,omitempty"`
	PointsAfter  *int               `json:"points_after,omitempty"`

	Warnings    []string `json:"warnings,omitempty"`
	Transitions []State  `json:"transitions"`
	CloseReason string   `json:"close_reason,omitempty"`
	// Done is set once the session has closed and the balance refresh finished.
	Done bool `json:"done"`
}

type session struct {
	id      string
	binID   string
	binName string
	userID  string
	nfcCode string

	openedAt  time.Time
	countdown time.Duration
	now       func() time.Time

	ctx    context.Context // carries the caller's bearer token
	stop   chan string     // close requests, by reason
	closed chan struct{}   // closed on reaching StateClosed

	mu           sync.Mutex
	state        State
	history      []State
	detection    *gateway.Detection
	pointsBefore *int
	pointsAfter  *int
	warnings     []string
	warned       map[string]bool
	closeReason  string
	closedAt     *time.Time
	finished     bool
	finishedAt   time.Time
	subs         map[chan Snapshot]struct{}
}

func (s *session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:           s.id,
		BinID:        s.binID,
		BinName:      s.binName,
		UserID:       s.userID,
		State:        s.state,
		OpenedAt:     s.openedAt,
		ClosedAt:     s.closedAt,
		Detection:    s.detection,
		PointsBefore: s.pointsBefore,
		PointsAfter:  s.pointsAfter,
		Warnings:     append([]string(nil), s.warnings...),
		Transitions:  append([]State(nil), s.history...),
		CloseReason:  s.closeReason,
		Done:         s.finished,
	}
	if s.state == StateOpen {
		left := s.countdown - s.now().Sub(s.openedAt)
		if left > 0 {
			snap.CountdownRemaining = int(math.Ceil(left.Seconds()))
		}
	}
	return snap
}

// setState moves the session and notifies subscribers.
func (s *session) setState(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := Transition(s.state, to)
	if err != nil {
		return err
	}
	s.state = next
	s.history = append(s.history, next)
	s.publishLocked()
	return nil
}

func (s *session) currentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// warn records a failure once per key. The flow carries on regardless.
func (s *session) warn(key, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.warned[key] {
		return
	}
	s.warned[key] = true
	s.warnings = append(s.warnings, message)
	s.publishLocked()
}

func (s *session) detected(d gateway.Detection) error {
	s.mu.Lock()
	s.detection = &d
	s.mu.Unlock()
	return s.setState(StateDetecting)
}

func (s *session) markClosed(reason string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	s.history = append(s.history, StateClosed)
	s.closeReason = reason
	s.closedAt = &at
	close(s.closed)
	s.publishLocked()
}

func (s *session) setPointsAfter(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointsAfter = &v
	s.publishLocked()
}

func (s *session) finish(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	s.finishedAt = at
	s.publishLocked()
	for ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}

func (s *session) publish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked()
}

// publishLocked hands the latest snapshot to every subscriber, replacing any
// snapshot a slow reader has not picked up yet.
func (s *session) publishLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (s *session) subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	ch <- s.snapshotLocked()
	if s.finished {
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}
