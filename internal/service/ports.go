package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"hornbill/internal/external"
	"hornbill/internal/models"
)

// The services depend on narrow interfaces so the repository, cache and
// external clients stay swappable; the concrete implementations live in
// internal/repository, internal/cache and internal/external.

// CatalogStore is the event catalog read model.
type CatalogStore interface {
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	ExplicitShowtimes(ctx context.Context, eventID int64) ([]time.Time, error)
	WeeklySlots(ctx context.Context, eventID int64) ([]models.WeeklySlot, error)
}

// InventoryLedger is the serialized capacity counter per slot. Decrement is
// compare-and-decrement: it either claims all n units or fails.
type InventoryLedger interface {
	Decrement(ctx context.Context, eventID int64, showtime time.Time, n int) error
	Release(ctx context.Context, eventID int64, showtime time.Time, n int) error
	Available(ctx context.Context, eventID int64, showtime time.Time) (int, error)
}

// HoldStore persists reservation holds and their phase transitions.
type HoldStore interface {
	Create(ctx context.Context, hold *models.ReservationHold) error
	GetByNumber(ctx context.Context, reservationNumber string) (*models.ReservationHold, error)
	SaveDelivery(ctx context.Context, reservationNumber, method string, address *string) (bool, error)
	MarkPaymentPending(ctx context.Context, reservationNumber string) (bool, error)
	Finalize(ctx context.Context, reservationNumber, idempotencyKey string) ([]models.Ticket, bool, error)
	Release(ctx context.Context, reservationNumber, toPhase string) (*models.ReservationHold, error)
	ExpireDue(ctx context.Context, now time.Time) ([]models.ReservationHold, error)
}

// SessionStore is the waiting-session registry plus the poll-fallback
// position snapshots.
type SessionStore interface {
	SaveSession(ctx context.Context, s *models.WaitingSession, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (*models.WaitingSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
	TouchHeartbeat(ctx context.Context, sessionID string, now time.Time, ttl time.Duration) error
	SetPosition(ctx context.Context, sessionID string, ahead int) error
	GetPosition(ctx context.Context, sessionID string) (int, bool, error)
	MarkPromoted(ctx context.Context, sessionID string, ttl time.Duration) error
	IsPromoted(ctx context.Context, sessionID string) (bool, error)
}

// ChallengeStore keeps the time-boxed anti-automation state.
type ChallengeStore interface {
	SetChallenge(ctx context.Context, sessionID, answer string, ttl time.Duration) error
	TakeChallenge(ctx context.Context, sessionID string) (string, bool, error)
	MarkChallengePassed(ctx context.Context, sessionID string, ttl time.Duration) error
	ConsumeChallengePassed(ctx context.Context, sessionID string) (bool, error)
}

// PaymentStore persists payment orders.
type PaymentStore interface {
	Create(ctx context.Context, order *models.PaymentOrder) error
	GetByID(ctx context.Context, paymentID string) (*models.PaymentOrder, error)
	SetStatus(ctx context.Context, paymentID, status string) (bool, error)
}

// TransferStore persists transfer handshakes and deferred intents.
type TransferStore interface {
	Create(ctx context.Context, transfer *models.TransferRequest) error
	GetByID(ctx context.Context, transferID string) (*models.TransferRequest, error)
	Reject(ctx context.Context, transferID string, recipientID int64) (bool, error)
	Approve(ctx context.Context, transferID string, recipientID int64, feePaymentID string) (bool, error)
	ListByRecipient(ctx context.Context, recipientID int64) ([]models.TransferRequest, error)
	CreateIntent(ctx context.Context, intent *models.TransferIntent) error
	OpenIntents(ctx context.Context, recipientID *int64) ([]models.TransferIntent, error)
	ResolveIntent(ctx context.Context, intentID string, at time.Time) (bool, error)
}

// TicketStore reads issued tickets.
type TicketStore interface {
	ListByOwner(ctx context.Context, ownerID int64) ([]models.Ticket, error)
	ListByReservation(ctx context.Context, reservationNumber string) ([]models.Ticket, error)
}

// AccountStore is the identity read model.
type AccountStore interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
}

// EventPublisher publishes domain events; the NATS client implements it.
type EventPublisher interface {
	Publish(subject string, data interface{}) error
}

// CardGateway is the external redirect-based card rail.
type CardGateway interface {
	Init(ctx context.Context, amount, orderID, currency, description string) (*external.GatewayInitResponse, error)
	Check(ctx context.Context, paymentID string) (*external.GatewayCheckResponse, error)
	Cancel(ctx context.Context, paymentID, reason string) error
}

// WalletLedger is the internal wallet rail.
type WalletLedger interface {
	CreateOrder(ctx context.Context, paymentID string, buyerID, sellerID int64, amount decimal.Decimal, currency string) error
	Debit(ctx context.Context, paymentID, pin string) error
	HasAccount(ctx context.Context, accountID int64) (bool, error)
}

// DocumentVerifier extracts identity records from transfer evidence.
type DocumentVerifier interface {
	Extract(ctx context.Context, evidenceRef string) ([]external.PersonRecord, error)
}

// AdmissionGate is what the reservation layer sees of the waiting room:
// whether a session was promoted, and the signal that its admission has
// been consumed by a successful slot claim.
type AdmissionGate interface {
	Promoted(ctx context.Context, sessionID string) (bool, error)
	Complete(sessionID string)
}
