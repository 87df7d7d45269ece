package binsession

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/SmartBin/SmartBin-Backend/internal/bins"
	"github.com/SmartBin/SmartBin-Backend/internal/config"
	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
	"github.com/google/uuid"
)

// Common errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrBinUnavailable  = errors.New("bin cannot be opened")
	ErrBinBusy         = errors.New("bin already has an active session")
	ErrShuttingDown    = errors.New("session manager is shutting down")
	ErrInvalidRequest  = errors.New("bin_id and user_id are required")
)

// UnavailableError carries the guard verdict that refused an open.
type UnavailableError struct {
	Verdict bins.Verdict
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s", ErrBinUnavailable, e.Verdict.Message)
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrBinUnavailable
}

const (
	// finishedRetention is how long a finished session stays readable.
	finishedRetention = 5 * time.Minute
	upstreamTimeout   = 10 * time.Second
)

// Gateway is what the session engine needs from the platform services.
type Gateway interface {
	GetBin(ctx context.Context, id string) (*gateway.Bin, error)
	OpenBin(ctx context.Context, id, userCode string) error
	CloseBin(ctx context.Context, id string) error
	ListDetections(ctx context.Context, binID string) ([]gateway.Detection, error)
}

// Points refreshes a user's balance once a deposit was detected.
type Points interface {
	Refresh(ctx context.Context, clerkID string, previous int) (int, error)
}

// OpenRequest asks to open a bin on behalf of a signed in user.
type OpenRequest struct {
	BinID   string
	UserID  string // Clerk user id
	NFCCode string // sent to the bin service as the opener's code
	Token   string // forwarded to the gateway
	// Balance before opening, when known
	PointsBefore *int
}

// Manager runs one goroutine per open bin.
type Manager struct {
	gw       Gateway
	points   Points
	recorder Recorder
	timings  config.SessionTimings
	now      func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu           sync.Mutex
	sessions     map[string]*session
	active       map[string]string // bin id -> session id, "" while opening
	shuttingDown bool
}

// NewManager builds a manager. points and recorder may be nil.
func NewManager(gw Gateway, points Points, recorder Recorder, timings config.SessionTimings) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		gw:       gw,
		points:   points,
		recorder: recorder,
		timings:  timings,
		now:      time.Now,
		baseCtx:  ctx,
		cancel:   cancel,
		sessions: make(map[string]*session),
		active:   make(map[string]string),
	}
}

// Open checks the bin, opens it and starts watching for a deposit.
// A failed open_bin call is recorded as a warning and the session proceeds.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (Snapshot, error) {
	if req.BinID == "" || req.UserID == "" {
		return Snapshot{}, ErrInvalidRequest
	}

	m.mu.Lock()
	if m.shuttingDown {
		m.mu.Unlock()
		return Snapshot{}, ErrShuttingDown
	}
	if _, busy := m.active[req.BinID]; busy {
		m.mu.Unlock()
		return Snapshot{}, ErrBinBusy
	}
	m.active[req.BinID] = ""
	m.pruneLocked()
	m.mu.Unlock()

	upstream := gateway.WithBearer(ctx, req.Token)
	bin, err := m.gw.GetBin(upstream, req.BinID)
	if err != nil {
		m.release(req.BinID, "")
		return Snapshot{}, fmt.Errorf("fetch bin %s: %w", req.BinID, err)
	}
	if verdict := bins.CanOpen(*bin); !verdict.Allowed {
		m.release(req.BinID, "")
		return Snapshot{}, &UnavailableError{Verdict: verdict}
	}

	s := &session{
		id:           uuid.NewString(),
		binID:        req.BinID,
		binName:      bin.Name,
		userID:       req.UserID,
		nfcCode:      req.NFCCode,
		openedAt:     m.now(),
		countdown:    m.timings.Countdown,
		now:          m.now,
		ctx:          gateway.WithBearer(m.baseCtx, req.Token),
		stop:         make(chan string, 1),
		closed:       make(chan struct{}),
		state:        StateOpen,
		history:      []State{StateClosed, StateOpen},
		pointsBefore: req.PointsBefore,
		warned:       make(map[string]bool),
		subs:         make(map[chan Snapshot]struct{}),
	}

	// Shutdown may have started while the bin was being fetched. Once
	// registered, the session is stopped and awaited like any other.
	m.mu.Lock()
	if m.shuttingDown {
		delete(m.active, req.BinID)
		m.mu.Unlock()
		return Snapshot{}, ErrShuttingDown
	}
	m.sessions[s.id] = s
	m.active[s.binID] = s.id
	m.wg.Add(1)
	m.mu.Unlock()

	if err := m.gw.OpenBin(upstream, s.binID, s.nfcCode); err != nil {
		log.Printf("[session] open_bin failed for bin %s: %v", s.binID, err)
		s.warn("open_bin", "Opening the bin could not be confirmed: "+err.Error())
	}

	log.Printf("[session] %s opened bin %s for user %s", s.id, s.binID, s.userID)
	go m.run(s)

	return s.Snapshot(), nil
}

// Get returns the current snapshot of a session.
func (m *Manager) Get(id string) (Snapshot, error) {
	s, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// Close is the user closing the bin. It returns once the session reached
// closed, which may follow an in-flight award.
func (m *Manager) Close(ctx context.Context, id string) (Snapshot, error) {
	s, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	switch state := s.currentState(); state {
	case StateClosed:
		return s.Snapshot(), nil
	case StateAwarded:
		// Already on its way to closed
	default:
		if !CanTransition(state, StateClosed) {
			return Snapshot{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, state, StateClosed)
		}
		select {
		case s.stop <- ReasonUser:
		default:
		}
	}

	select {
	case <-s.closed:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Subscribe streams snapshots of a session. The first value is the current
// snapshot; the channel is closed when the session is done or cancel is called.
func (m *Manager) Subscribe(id string) (<-chan Snapshot, func(), error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.subscribe()
	return ch, cancel, nil
}

// Shutdown closes every active session and waits for them to finish. When ctx
// expires first, in-flight upstream calls are abandoned.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.shuttingDown = true
	for _, s := range m.sessions {
		select {
		case s.stop <- ReasonShutdown:
		default:
		}
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		return ctx.Err()
	}
}

// Active returns the number of bins currently held open.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Manager) lookup(id string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) release(binID, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[binID] == sessionID {
		delete(m.active, binID)
	}
}

func (m *Manager) pruneLocked() {
	cutoff := m.now().Add(-finishedRetention)
	for id, s := range m.sessions {
		s.mu.Lock()
		stale := s.finished && s.finishedAt.Before(cutoff)
		s.mu.Unlock()
		if stale {
			delete(m.sessions, id)
		}
	}
}

// run drives one session from open to done.
func (m *Manager) run(s *session) {
	defer m.wg.Done()

	reason := m.awaitDetection(s)
	if reason == "" {
		reason = m.pause(s, m.timings.DisplayDelay, true)
		if reason == "" {
			if err := s.setState(StateAwarded); err != nil {
				log.Printf("[session] %s: %v", s.id, err)
			}
			// Awarded always runs into closed
			if r := m.pause(s, m.timings.CloseDelay, false); r != "" {
				reason = r
			} else {
				reason = ReasonCompleted
			}
		}
	}

	m.closeBin(s, reason)

	s.mu.Lock()
	awarded := s.detection != nil
	s.mu.Unlock()
	if awarded && reason != ReasonShutdown {
		m.refreshPoints(s)
	}

	m.record(s)
	s.finish(m.now())
	log.Printf("[session] %s finished (%s)", s.id, reason)
}

// awaitDetection polls for the first detection on the bin since it was
// opened. It returns "" once one is found, otherwise the close reason.
func (m *Manager) awaitDetection(s *session) string {
	poll := time.NewTicker(m.timings.PollInterval)
	defer poll.Stop()
	expire := time.NewTimer(m.timings.MaxOpen)
	defer expire.Stop()

	var countdown <-chan time.Time
	if m.timings.Countdown > 0 {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		countdown = t.C
	}

	for {
		select {
		case <-s.ctx.Done():
			return ReasonShutdown
		case reason := <-s.stop:
			return reason
		case <-expire.C:
			log.Printf("[session] %s expired after %s without a deposit", s.id, m.timings.MaxOpen)
			return ReasonExpired
		case <-countdown:
			s.publish()
			if s.Snapshot().CountdownRemaining == 0 {
				countdown = nil
			}
		case <-poll.C:
			det, err := m.findDetection(s)
			if err != nil {
				log.Printf("[session] %s polling detections: %v", s.id, err)
				s.warn("poll", "Detections could not be checked: "+err.Error())
				continue
			}
			if det == nil {
				continue
			}
			if err := s.detected(*det); err != nil {
				log.Printf("[session] %s: %v", s.id, err)
				continue
			}
			log.Printf("[session] %s detected %s on bin %s", s.id, det.MaterialType, s.binID)
			return ""
		}
	}
}

func (m *Manager) findDetection(s *session) (*gateway.Detection, error) {
	ctx, cancel := context.WithTimeout(s.ctx, upstreamTimeout)
	defer cancel()

	list, err := m.gw.ListDetections(ctx, s.binID)
	if err != nil {
		return nil, err
	}
	var first *gateway.Detection
	for i := range list {
		d := list[i]
		if d.BinID != s.binID || d.CreatedAt.Before(s.openedAt) {
			continue
		}
		if first == nil || d.CreatedAt.Before(first.CreatedAt) {
			first = &d
		}
	}
	return first, nil
}

// pause waits d. An interruptible pause gives way to a close request.
func (m *Manager) pause(s *session, d time.Duration, interruptible bool) string {
	t := time.NewTimer(d)
	defer t.Stop()

	var stop <-chan string
	if interruptible {
		stop = s.stop
	}
	select {
	case <-t.C:
		return ""
	case reason := <-stop:
		return reason
	case <-s.ctx.Done():
		return ReasonShutdown
	}
}

// closeBin calls close_bin and moves the session to closed whatever the outcome.
func (m *Manager) closeBin(s *session, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), upstreamTimeout)
	defer cancel()

	if err := m.gw.CloseBin(ctx, s.binID); err != nil {
		log.Printf("[session] close_bin failed for bin %s: %v", s.binID, err)
		s.warn("close_bin", "Closing the bin could not be confirmed: "+err.Error())
	}
	s.markClosed(reason, m.now())
	m.release(s.binID, s.id)
}

func (m *Manager) refreshPoints(s *session) {
	if m.points == nil {
		return
	}
	previous := -1 // unknown, any balance counts as fresh
	s.mu.Lock()
	if s.pointsBefore != nil {
		previous = *s.pointsBefore
	}
	s.mu.Unlock()

	balance, err := m.points.Refresh(s.ctx, s.userID, previous)
	if err != nil {
		log.Printf("[session] %s refreshing points: %v", s.id, err)
		s.warn("points", "Your balance could not be refreshed")
		return
	}
	s.setPointsAfter(balance)
}

func (m *Manager) record(s *session) {
	if m.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), upstreamTimeout)
	defer cancel()

	if err := m.recorder.Record(ctx, newRecord(s)); err != nil {
		log.Printf("[session] %s recording history: %v", s.id, err)
	}
}

// History lists a user's recent sessions, newest first.
func (m *Manager) History(ctx context.Context, userID string, limit int) ([]Record, error) {
	if m.recorder == nil {
		return []Record{}, nil
	}
	return m.recorder.History(ctx, userID, limit)
}
