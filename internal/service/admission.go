package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"hornbill/internal/apperrors"
	"hornbill/internal/config"
	"hornbill/internal/logger"
	"hornbill/internal/metrics"
	"hornbill/internal/models"
	"hornbill/internal/push"
)

// AdmissionService is the virtual waiting room. One worker per
// (event, showtime) slot owns its FIFO: joins, exits, heartbeat evictions
// and promotions all run under that queue's lock, so promotion order equals
// join order for any interleaving.
//
// The client-side silence watchdog is the fail-open half of the contract
// and lives on the client; the server side is fail-closed and evicts after
// the (longer) heartbeat grace period.
type AdmissionService struct {
	catalog  CatalogStore
	ledger   InventoryLedger
	sessions SessionStore
	pusher   push.Publisher
	cfg      config.AdmissionConfig
	now      func() time.Time

	mu       sync.Mutex
	queues   map[string]*showQueue
	bySessID map[string]*showQueue

	stopOnce sync.Once
	stop     chan struct{}
}

type showQueue struct {
	mu       sync.Mutex
	key      string
	eventID  int64
	showtime time.Time

	entries  []*models.WaitingSession
	byAcct   map[int64]*models.WaitingSession
	admitted map[string]time.Time // sessionID -> admission deadline
}

func NewAdmissionService(catalog CatalogStore, ledger InventoryLedger, sessions SessionStore, pusher push.Publisher, cfg config.AdmissionConfig) *AdmissionService {
	return &AdmissionService{
		catalog:  catalog,
		ledger:   ledger,
		sessions: sessions,
		pusher:   pusher,
		cfg:      cfg,
		now:      time.Now,
		queues:   make(map[string]*showQueue),
		bySessID: make(map[string]*showQueue),
		stop:     make(chan struct{}),
	}
}

// SilenceContract exposes the client watchdog policy delivered with each
// join response.
func (s *AdmissionService) SilenceContract() config.AdmissionConfig {
	return s.cfg
}

// Stop halts every queue worker.
func (s *AdmissionService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Join adds the account to the slot's queue and returns the session ID and
// initial position. Fails with ErrAlreadyQueued when an active session
// exists for the same (account, event, showtime), and with ErrEventNotOpen
// outside the sale window.
func (s *AdmissionService) Join(ctx context.Context, eventID int64, showtime time.Time, accountID int64) (*models.WaitingSession, int, error) {
	event, err := s.catalog.GetByID(ctx, eventID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, 0, apperrors.ErrNotFound
	}

	now := s.now()
	if now.Before(event.SalesOpenAt) || now.After(event.SalesCloseAt) {
		return nil, 0, apperrors.ErrEventNotOpen
	}

	q := s.queue(eventID, showtime)

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.byAcct[accountID]; exists {
		return nil, 0, apperrors.ErrAlreadyQueued
	}

	session := &models.WaitingSession{
		SessionID:       uuid.New().String(),
		AccountID:       accountID,
		EventID:         eventID,
		Showtime:        showtime.UTC(),
		JoinedAt:        now,
		LastHeartbeatAt: now,
	}

	if err := s.sessions.SaveSession(ctx, session, s.registryTTL()); err != nil {
		return nil, 0, fmt.Errorf("failed to save session: %w", err)
	}

	q.entries = append(q.entries, session)
	q.byAcct[accountID] = session

	s.mu.Lock()
	s.bySessID[session.SessionID] = q
	s.mu.Unlock()

	position := len(q.entries) - 1
	s.pushPosition(ctx, q, session.SessionID, position)
	metrics.QueueDepth.WithLabelValues(q.key).Set(float64(len(q.entries)))

	// The new head may be promotable immediately.
	s.promoteLocked(ctx, q)

	pos := s.positionOf(q, session.SessionID)
	if pos < 0 {
		// Promoted straight away; nobody is ahead.
		pos = 0
	}
	return session, pos, nil
}

// Heartbeat refreshes the session's liveness window.
func (s *AdmissionService) Heartbeat(ctx context.Context, sessionID string) error {
	q := s.queueOf(sessionID)
	if q == nil {
		return apperrors.ErrSessionUnknown
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	found := false
	now := s.now()
	for _, e := range q.entries {
		if e.SessionID == sessionID {
			e.LastHeartbeatAt = now
			found = true
			break
		}
	}
	if !found {
		return apperrors.ErrSessionUnknown
	}

	return s.sessions.TouchHeartbeat(ctx, sessionID, now, s.registryTTL())
}

// Exit removes the session explicitly; everyone behind it shifts forward
// by one.
func (s *AdmissionService) Exit(ctx context.Context, sessionID string) error {
	q := s.queueOf(sessionID)
	if q == nil {
		return apperrors.ErrSessionUnknown
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !s.removeLocked(ctx, q, sessionID) {
		return apperrors.ErrSessionUnknown
	}

	s.pushPositions(ctx, q)
	s.promoteLocked(ctx, q)
	metrics.QueueDepth.WithLabelValues(q.key).Set(float64(len(q.entries)))
	return nil
}

// Position serves the poll fallback that runs alongside push.
func (s *AdmissionService) Position(ctx context.Context, sessionID string) (*models.QueuePositionResponse, error) {
	promoted, err := s.sessions.IsPromoted(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if promoted {
		return &models.QueuePositionResponse{SessionID: sessionID, Promoted: true}, nil
	}

	ahead, found, err := s.sessions.GetPosition(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !found {
		q := s.queueOf(sessionID)
		if q == nil {
			return nil, apperrors.ErrSessionUnknown
		}
		q.mu.Lock()
		ahead = s.positionOf(q, sessionID)
		q.mu.Unlock()
		if ahead < 0 {
			return nil, apperrors.ErrSessionUnknown
		}
	}

	return &models.QueuePositionResponse{SessionID: sessionID, PeopleAhead: ahead}, nil
}

// Promoted reports whether the session has been admitted into booking.
func (s *AdmissionService) Promoted(ctx context.Context, sessionID string) (bool, error) {
	return s.sessions.IsPromoted(ctx, sessionID)
}

// Complete consumes the session's admission headroom once its hold has
// claimed capacity on the ledger.
func (s *AdmissionService) Complete(sessionID string) {
	s.mu.Lock()
	q := s.bySessID[sessionID]
	delete(s.bySessID, sessionID)
	s.mu.Unlock()

	if q == nil {
		return
	}
	q.mu.Lock()
	delete(q.admitted, sessionID)
	q.mu.Unlock()
}

// queue returns the worker-owned queue for a slot, creating it (and its
// sweep worker) on first use.
func (s *AdmissionService) queue(eventID int64, showtime time.Time) *showQueue {
	key := models.ShowKey(eventID, showtime)

	s.mu.Lock()
	defer s.mu.Unlock()

	if q, ok := s.queues[key]; ok {
		return q
	}

	q := &showQueue{
		key:      key,
		eventID:  eventID,
		showtime: showtime.UTC(),
		byAcct:   make(map[int64]*models.WaitingSession),
		admitted: make(map[string]time.Time),
	}
	s.queues[key] = q

	go s.runSweeper(q)
	return q
}

func (s *AdmissionService) queueOf(sessionID string) *showQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bySessID[sessionID]
}

// runSweeper is the per-slot worker: it evicts silent sessions after the
// grace period, lapses stale admissions, and retries promotion.
func (s *AdmissionService) runSweeper(q *showQueue) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(q)
		case <-s.stop:
			return
		}
	}
}

func (s *AdmissionService) sweep(q *showQueue) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q.mu.Lock()
	defer q.mu.Unlock()

	now := s.now()
	deadline := now.Add(-s.cfg.HeartbeatGrace)

	var evicted []string
	for _, e := range q.entries {
		if e.LastHeartbeatAt.Before(deadline) {
			evicted = append(evicted, e.SessionID)
		}
	}
	for _, sessionID := range evicted {
		s.removeLocked(ctx, q, sessionID)
		s.pushBoth(ctx, q, sessionID, models.PushMessage{
			Type:      models.PushTypeEvicted,
			SessionID: sessionID,
		})
		metrics.Evictions.WithLabelValues(q.key).Inc()
		logger.Get().Info("Evicted silent session",
			"session_id", sessionID, "show", q.key)
	}

	for sessionID, admitDeadline := range q.admitted {
		if now.After(admitDeadline) {
			delete(q.admitted, sessionID)
		}
	}

	if len(evicted) > 0 {
		s.pushPositions(ctx, q)
	}
	s.promoteLocked(ctx, q)
	metrics.QueueDepth.WithLabelValues(q.key).Set(float64(len(q.entries)))
}

// removeLocked takes a session out of the queue and the registry. Caller
// holds q.mu.
func (s *AdmissionService) removeLocked(ctx context.Context, q *showQueue, sessionID string) bool {
	idx := -1
	for i, e := range q.entries {
		if e.SessionID == sessionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	entry := q.entries[idx]
	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	delete(q.byAcct, entry.AccountID)

	s.mu.Lock()
	delete(s.bySessID, sessionID)
	s.mu.Unlock()

	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		logger.Get().Error("Failed to delete session from registry",
			"error", err, "session_id", sessionID)
	}
	return true
}

// promoteLocked admits heads of the queue while free inventory exists
// beyond what already-admitted sessions may still claim. Caller holds q.mu.
func (s *AdmissionService) promoteLocked(ctx context.Context, q *showQueue) {
	for len(q.entries) > 0 {
		available, err := s.ledger.Available(ctx, q.eventID, q.showtime)
		if err != nil {
			logger.Get().Error("Failed to read ledger availability",
				"error", err, "show", q.key)
			return
		}

		if available-len(q.admitted) <= 0 {
			return
		}

		head := q.entries[0]
		q.entries = q.entries[1:]
		delete(q.byAcct, head.AccountID)
		q.admitted[head.SessionID] = s.now().Add(s.cfg.AdmitTTL)

		if err := s.sessions.MarkPromoted(ctx, head.SessionID, s.cfg.AdmitTTL); err != nil {
			logger.Get().Error("Failed to mark session promoted",
				"error", err, "session_id", head.SessionID)
		}
		// The waiting session is done; the promoted marker takes over.
		if err := s.sessions.DeleteSession(ctx, head.SessionID); err != nil {
			logger.Get().Error("Failed to delete promoted session",
				"error", err, "session_id", head.SessionID)
		}

		s.pushBoth(ctx, q, head.SessionID, models.PushMessage{
			Type:      models.PushTypeProceed,
			SessionID: head.SessionID,
			Event:     models.PushEventProceed,
		})
		metrics.Promotions.WithLabelValues(q.key).Inc()

		s.pushPositions(ctx, q)
	}
}

// pushPositions re-announces every remaining position. Caller holds q.mu.
func (s *AdmissionService) pushPositions(ctx context.Context, q *showQueue) {
	for i, e := range q.entries {
		s.pushPosition(ctx, q, e.SessionID, i)
	}
}

func (s *AdmissionService) pushPosition(ctx context.Context, q *showQueue, sessionID string, ahead int) {
	if err := s.sessions.SetPosition(ctx, sessionID, ahead); err != nil {
		logger.Get().Error("Failed to store position snapshot",
			"error", err, "session_id", sessionID)
	}

	msg := models.PushMessage{
		Type:      models.PushTypePosition,
		SessionID: sessionID,
		Ahead:     &ahead,
	}
	s.pushBoth(ctx, q, sessionID, msg)
}

// pushBoth delivers to the personal channel and the slot broadcast channel.
// The broadcast is a redundancy path for clients that missed their personal
// message; consumers de-duplicate by session ID.
func (s *AdmissionService) pushBoth(ctx context.Context, q *showQueue, sessionID string, msg models.PushMessage) {
	if err := s.pusher.Publish(ctx, push.PersonalChannel(sessionID), msg); err != nil {
		logger.Get().Error("Failed to publish personal push",
			"error", err, "session_id", sessionID)
	}
	if err := s.pusher.Publish(ctx, push.BroadcastChannel(q.key), msg); err != nil {
		logger.Get().Error("Failed to publish broadcast push",
			"error", err, "show", q.key)
	}
}

func (s *AdmissionService) positionOf(q *showQueue, sessionID string) int {
	for i, e := range q.entries {
		if e.SessionID == sessionID {
			return i
		}
	}
	return -1
}

func (s *AdmissionService) registryTTL() time.Duration {
	return 2 * s.cfg.HeartbeatGrace
}
