package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hornbill/internal/apperrors"
	"hornbill/internal/external"
	"hornbill/internal/models"
)

// In-memory fakes for the service ports. Everything is mutex-guarded so
// concurrency tests can hammer them.

type memCatalog struct {
	mu       sync.Mutex
	events   map[int64]*models.Event
	explicit map[int64][]time.Time
	weekly   map[int64][]models.WeeklySlot
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		events:   make(map[int64]*models.Event),
		explicit: make(map[int64][]time.Time),
		weekly:   make(map[int64][]models.WeeklySlot),
	}
}

func (m *memCatalog) GetByID(_ context.Context, id int64) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[id], nil
}

func (m *memCatalog) ExplicitShowtimes(_ context.Context, eventID int64) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.explicit[eventID], nil
}

func (m *memCatalog) WeeklySlots(_ context.Context, eventID int64) ([]models.WeeklySlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.weekly[eventID], nil
}

type memLedger struct {
	mu        sync.Mutex
	available map[string]int
}

func newMemLedger() *memLedger {
	return &memLedger{available: make(map[string]int)}
}

func (m *memLedger) set(eventID int64, showtime time.Time, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available[models.ShowKey(eventID, showtime)] = n
}

func (m *memLedger) Decrement(_ context.Context, eventID int64, showtime time.Time, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := models.ShowKey(eventID, showtime)
	avail, ok := m.available[key]
	if !ok {
		return apperrors.ErrNotFound
	}
	if avail < n {
		return apperrors.ErrSoldOut
	}
	m.available[key] = avail - n
	return nil
}

func (m *memLedger) Release(_ context.Context, eventID int64, showtime time.Time, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available[models.ShowKey(eventID, showtime)] += n
	return nil
}

func (m *memLedger) Available(_ context.Context, eventID int64, showtime time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available[models.ShowKey(eventID, showtime)], nil
}

type memHolds struct {
	mu      sync.Mutex
	holds   map[string]*models.ReservationHold
	tickets map[string][]models.Ticket
}

func newMemHolds() *memHolds {
	return &memHolds{
		holds:   make(map[string]*models.ReservationHold),
		tickets: make(map[string][]models.Ticket),
	}
}

func (m *memHolds) Create(_ context.Context, hold *models.ReservationHold) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.holds {
		if h.AccountID == hold.AccountID && h.EventID == hold.EventID &&
			h.Showtime.Equal(hold.Showtime) && h.Active(time.Now()) {
			return apperrors.ErrHoldExists
		}
	}
	cp := *hold
	m.holds[hold.ReservationNumber] = &cp
	return nil
}

func (m *memHolds) GetByNumber(_ context.Context, reservationNumber string) (*models.ReservationHold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[reservationNumber]
	if !ok {
		return nil, nil
	}
	cp := *h
	return &cp, nil
}

func (m *memHolds) SaveDelivery(_ context.Context, reservationNumber, method string, address *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[reservationNumber]
	if !ok {
		return false, nil
	}
	if h.Phase != models.PhaseSlotSelected && h.Phase != models.PhaseDeliverySelected {
		return false, nil
	}
	if !time.Now().Before(h.ExpiresAt) {
		return false, nil
	}
	h.Phase = models.PhaseDeliverySelected
	h.DeliveryMethod = &method
	h.DeliveryAddress = address
	return true, nil
}

func (m *memHolds) MarkPaymentPending(_ context.Context, reservationNumber string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[reservationNumber]
	if !ok || h.Phase != models.PhaseDeliverySelected {
		return false, nil
	}
	h.Phase = models.PhasePaymentPending
	return true, nil
}

func (m *memHolds) Finalize(_ context.Context, reservationNumber, idempotencyKey string) ([]models.Ticket, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[reservationNumber]
	if !ok {
		return nil, false, apperrors.ErrNotFound
	}
	if h.Phase == models.PhaseIssued {
		if h.IdempotencyKey != nil && *h.IdempotencyKey == idempotencyKey {
			return m.tickets[reservationNumber], true, nil
		}
		return nil, false, apperrors.ErrInvalidPhase
	}
	if h.Phase != models.PhasePaymentPending {
		return nil, false, apperrors.ErrInvalidPhase
	}
	if !time.Now().Before(h.ExpiresAt) {
		return nil, false, apperrors.ErrHoldExpired
	}
	h.Phase = models.PhaseIssued
	h.IdempotencyKey = &idempotencyKey
	tickets := make([]models.Ticket, 0, h.TicketCount)
	for i := 0; i < h.TicketCount; i++ {
		tickets = append(tickets, models.Ticket{
			ID:                uuid.New().String(),
			ReservationNumber: reservationNumber,
			EventID:           h.EventID,
			Showtime:          h.Showtime,
			OwnerID:           h.AccountID,
			Token:             uuid.New().String(),
			IssuedAt:          time.Now(),
		})
	}
	m.tickets[reservationNumber] = tickets
	return tickets, false, nil
}

func (m *memHolds) Release(_ context.Context, reservationNumber, toPhase string) (*models.ReservationHold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[reservationNumber]
	if !ok {
		return nil, nil
	}
	switch h.Phase {
	case models.PhaseIssued, models.PhaseExpired, models.PhaseCanceled:
		return nil, nil
	}
	h.Phase = toPhase
	cp := *h
	return &cp, nil
}

func (m *memHolds) ExpireDue(_ context.Context, now time.Time) ([]models.ReservationHold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []models.ReservationHold
	for _, h := range m.holds {
		switch h.Phase {
		case models.PhaseIssued, models.PhaseExpired, models.PhaseCanceled:
			continue
		}
		if !now.Before(h.ExpiresAt) {
			h.Phase = models.PhaseExpired
			due = append(due, *h)
		}
	}
	return due, nil
}

type memSessions struct {
	mu        sync.Mutex
	sessions  map[string]*models.WaitingSession
	positions map[string]int
	promoted  map[string]bool
}

func newMemSessions() *memSessions {
	return &memSessions{
		sessions:  make(map[string]*models.WaitingSession),
		positions: make(map[string]int),
		promoted:  make(map[string]bool),
	}
}

func (m *memSessions) SaveSession(_ context.Context, s *models.WaitingSession, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.SessionID] = &cp
	return nil
}

func (m *memSessions) GetSession(_ context.Context, sessionID string) (*models.WaitingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *memSessions) TouchHeartbeat(_ context.Context, sessionID string, now time.Time, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.LastHeartbeatAt = now
	}
	return nil
}

func (m *memSessions) SetPosition(_ context.Context, sessionID string, ahead int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[sessionID] = ahead
	return nil
}

func (m *memSessions) GetPosition(_ context.Context, sessionID string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ahead, ok := m.positions[sessionID]
	return ahead, ok, nil
}

func (m *memSessions) MarkPromoted(_ context.Context, sessionID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promoted[sessionID] = true
	return nil
}

func (m *memSessions) IsPromoted(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.promoted[sessionID], nil
}

type memChallenge struct {
	mu         sync.Mutex
	challenges map[string]string
	passed     map[string]bool
}

func newMemChallenge() *memChallenge {
	return &memChallenge{
		challenges: make(map[string]string),
		passed:     make(map[string]bool),
	}
}

func (m *memChallenge) SetChallenge(_ context.Context, sessionID, answer string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[sessionID] = answer
	return nil
}

func (m *memChallenge) TakeChallenge(_ context.Context, sessionID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	answer, ok := m.challenges[sessionID]
	delete(m.challenges, sessionID)
	return answer, ok, nil
}

func (m *memChallenge) MarkChallengePassed(_ context.Context, sessionID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passed[sessionID] = true
	return nil
}

func (m *memChallenge) ConsumeChallengePassed(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok := m.passed[sessionID]
	delete(m.passed, sessionID)
	return ok, nil
}

type publishedEvent struct {
	subject string
	data    interface{}
}

type memPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (m *memPublisher) Publish(subject string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{subject: subject, data: data})
	return nil
}

func (m *memPublisher) bySubject(subject string) []publishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []publishedEvent
	for _, e := range m.events {
		if e.subject == subject {
			out = append(out, e)
		}
	}
	return out
}

type pushedMessage struct {
	channel string
	message any
}

type memPusher struct {
	mu       sync.Mutex
	messages []pushedMessage
}

func (m *memPusher) Publish(_ context.Context, channel string, message any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, pushedMessage{channel: channel, message: message})
	return nil
}

func (m *memPusher) onChannel(channel string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []any
	for _, p := range m.messages {
		if p.channel == channel {
			out = append(out, p.message)
		}
	}
	return out
}

type memPayments struct {
	mu     sync.Mutex
	orders map[string]*models.PaymentOrder
}

func newMemPayments() *memPayments {
	return &memPayments{orders: make(map[string]*models.PaymentOrder)}
}

func (m *memPayments) Create(_ context.Context, order *models.PaymentOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// payment_orders.reservation_number is NOT NULL and references a hold.
	if order.ReservationNumber == "" {
		return errors.New("payment order without reservation number")
	}
	if _, exists := m.orders[order.PaymentID]; exists {
		return nil
	}
	cp := *order
	m.orders[order.PaymentID] = &cp
	return nil
}

func (m *memPayments) GetByID(_ context.Context, paymentID string) (*models.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[paymentID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *memPayments) SetStatus(_ context.Context, paymentID, status string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[paymentID]
	if !ok || o.Status != models.PaymentRequested {
		return false, nil
	}
	o.Status = status
	return true, nil
}

type memTransfers struct {
	mu        sync.Mutex
	transfers map[string]*models.TransferRequest
	intents   map[string]*models.TransferIntent
	owners    map[string]int64 // reservation number -> new owner on approve
}

func newMemTransfers() *memTransfers {
	return &memTransfers{
		transfers: make(map[string]*models.TransferRequest),
		intents:   make(map[string]*models.TransferIntent),
		owners:    make(map[string]int64),
	}
}

func (m *memTransfers) Create(_ context.Context, transfer *models.TransferRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *transfer
	m.transfers[transfer.TransferID] = &cp
	return nil
}

func (m *memTransfers) GetByID(_ context.Context, transferID string) (*models.TransferRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[transferID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memTransfers) Reject(_ context.Context, transferID string, recipientID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[transferID]
	if !ok || t.RecipientID != recipientID || t.Status != models.TransferRequested {
		return false, nil
	}
	now := time.Now()
	t.Status = models.TransferRejected
	t.ResolvedAt = &now
	return true, nil
}

func (m *memTransfers) Approve(_ context.Context, transferID string, recipientID int64, feePaymentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[transferID]
	if !ok || t.RecipientID != recipientID || t.Status != models.TransferRequested {
		return false, nil
	}
	now := time.Now()
	t.Status = models.TransferApproved
	t.ResolvedAt = &now
	t.FeePaymentID = &feePaymentID
	m.owners[t.ReservationNumber] = recipientID
	return true, nil
}

func (m *memTransfers) ListByRecipient(_ context.Context, recipientID int64) ([]models.TransferRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TransferRequest
	for _, t := range m.transfers {
		if t.RecipientID == recipientID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memTransfers) CreateIntent(_ context.Context, intent *models.TransferIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *intent
	m.intents[intent.IntentID] = &cp
	return nil
}

func (m *memTransfers) OpenIntents(_ context.Context, recipientID *int64) ([]models.TransferIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TransferIntent
	for _, i := range m.intents {
		if i.ResolvedAt != nil {
			continue
		}
		if recipientID != nil && i.RecipientID != *recipientID {
			continue
		}
		out = append(out, *i)
	}
	return out, nil
}

func (m *memTransfers) ResolveIntent(_ context.Context, intentID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.intents[intentID]
	if !ok || i.ResolvedAt != nil {
		return false, nil
	}
	i.ResolvedAt = &at
	return true, nil
}

type memTickets struct {
	mu      sync.Mutex
	tickets []models.Ticket
}

func (m *memTickets) add(t models.Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets = append(m.tickets, t)
}

func (m *memTickets) ListByOwner(_ context.Context, ownerID int64) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ticket
	for _, t := range m.tickets {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTickets) ListByReservation(_ context.Context, reservationNumber string) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ticket
	for _, t := range m.tickets {
		if t.ReservationNumber == reservationNumber {
			out = append(out, t)
		}
	}
	return out, nil
}

type memAccounts struct {
	accounts map[int64]*models.Account
}

func (m *memAccounts) GetByID(_ context.Context, id int64) (*models.Account, error) {
	return m.accounts[id], nil
}

// fakeGateway scripts a sequence of check statuses.
type fakeGateway struct {
	mu       sync.Mutex
	statuses []string
	checks   int
	initErr  error
}

func (f *fakeGateway) Init(_ context.Context, _, orderID, _, _ string) (*external.GatewayInitResponse, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &external.GatewayInitResponse{
		Success:    true,
		PaymentID:  orderID,
		OrderID:    orderID,
		Status:     external.GatewayStatusPending,
		PaymentURL: "https://gateway.example.com/pay/" + orderID,
	}, nil
}

func (f *fakeGateway) Check(_ context.Context, _ string) (*external.GatewayCheckResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := external.GatewayStatusPending
	if f.checks < len(f.statuses) {
		status = f.statuses[f.checks]
	} else if len(f.statuses) > 0 {
		status = f.statuses[len(f.statuses)-1]
	}
	f.checks++
	return &external.GatewayCheckResponse{Success: true, Status: status}, nil
}

func (f *fakeGateway) Cancel(_ context.Context, _, _ string) error { return nil }

// fakeWallet scripts debit outcomes per attempt and tracks account
// existence.
type fakeWallet struct {
	mu        sync.Mutex
	debitErrs []error
	debits    int
	accounts  map[int64]bool
	orders    int
}

func (f *fakeWallet) CreateOrder(_ context.Context, _ string, _, _ int64, _ decimal.Decimal, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders++
	return nil
}

func (f *fakeWallet) Debit(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if f.debits < len(f.debitErrs) {
		err = f.debitErrs[f.debits]
	}
	f.debits++
	return err
}

func (f *fakeWallet) HasAccount(_ context.Context, accountID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[accountID], nil
}

type fakeVerifier struct {
	records []external.PersonRecord
	err     error
}

func (f *fakeVerifier) Extract(_ context.Context, _ string) ([]external.PersonRecord, error) {
	return f.records, f.err
}

// openGate admits everyone; used where admission is not under test.
type openGate struct{}

func (openGate) Promoted(context.Context, string) (bool, error) { return true, nil }
func (openGate) Complete(string)                                {}
