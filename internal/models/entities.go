package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Reservation hold phases
const (
	PhaseSlotSelected     = "SLOT_SELECTED"
	PhaseDeliverySelected = "DELIVERY_SELECTED"
	PhasePaymentPending   = "PAYMENT_PENDING"
	PhaseIssued           = "ISSUED"
	PhaseExpired          = "EXPIRED"
	PhaseCanceled         = "CANCELED"
)

// Delivery methods
const (
	DeliveryDigital  = "DIGITAL"
	DeliveryPhysical = "PHYSICAL"
)

// Payment rails and statuses
const (
	RailCard   = "CARD"
	RailWallet = "WALLET"

	PaymentRequested = "REQUESTED"
	PaymentConfirmed = "CONFIRMED"
	PaymentFailed    = "FAILED"
)

// Transfer relations and statuses
const (
	RelationFamily = "FAMILY"
	RelationFriend = "FRIEND"

	TransferRequested = "REQUESTED"
	TransferApproved  = "APPROVED"
	TransferRejected  = "REJECTED"
)

// ShowKey builds the canonical key for one (event, showtime) slot. Queues,
// push broadcast channels and metrics labels all use this form.
func ShowKey(eventID int64, showtime time.Time) string {
	return fmt.Sprintf("%d|%s", eventID, showtime.UTC().Format(time.RFC3339))
}

// WaitingSession is one client's attempt to enter booking for a slot.
type WaitingSession struct {
	SessionID       string    `json:"session_id"`
	AccountID       int64     `json:"account_id"`
	EventID         int64     `json:"event_id"`
	Showtime        time.Time `json:"showtime"`
	JoinedAt        time.Time `json:"joined_at"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at"`
}

// ReservationHold is an exclusive claim on inventory while a client
// completes checkout. The hold decrements available capacity for its
// lifetime and returns it on expiry or cancellation.
type ReservationHold struct {
	ReservationNumber string
	EventID           int64
	Showtime          time.Time
	AccountID         int64
	TicketCount       int
	Phase             string
	DeliveryMethod    *string
	DeliveryAddress   *string
	TotalAmount       decimal.Decimal
	IdempotencyKey    *string
	CreatedAt         time.Time
	ExpiresAt         time.Time
	UpdatedAt         time.Time
}

// Active reports whether the hold still claims capacity at the given instant.
func (h *ReservationHold) Active(now time.Time) bool {
	switch h.Phase {
	case PhaseIssued, PhaseExpired, PhaseCanceled:
		return false
	}
	return now.Before(h.ExpiresAt)
}

// Ticket is a redeemable unit issued when a hold is finalized. Token is the
// QR-equivalent value presented at the gate.
type Ticket struct {
	ID                string
	ReservationNumber string
	EventID           int64
	Showtime          time.Time
	OwnerID           int64
	Token             string
	IssuedAt          time.Time
}

// PaymentOrder is created before a payment rail is invoked. PaymentID is a
// client-generated idempotency token; status transitions are the only
// mutations.
type PaymentOrder struct {
	PaymentID         string
	ReservationNumber string
	BuyerID           int64
	SellerID          int64
	Amount            decimal.Decimal
	Currency          string
	Method            string
	Status            string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TransferRequest re-assigns an issued ticket between two accounts. Created
// by the sender, mutated only by the recipient's accept/reject action.
type TransferRequest struct {
	TransferID        string
	SenderID          int64
	RecipientID       int64
	ReservationNumber string
	Relation          string
	Status            string
	EvidenceRef       *string
	FeePaymentID      *string
	CreatedAt         time.Time
	ResolvedAt        *time.Time
}

// TransferIntent records a FRIEND transfer that is deferred until the
// recipient's wallet account exists.
type TransferIntent struct {
	IntentID          string
	SenderID          int64
	RecipientID       int64
	ReservationNumber string
	CreatedAt         time.Time
	ResolvedAt        *time.Time
}

// Event is the catalog read model: sale window, pricing and the slot
// sources used by slot derivation.
type Event struct {
	ID           int64
	Title        string
	UnitPrice    decimal.Decimal
	MaxPurchase  int
	SalesOpenAt  time.Time
	SalesCloseAt time.Time
	RangeFrom    time.Time
	RangeTo      time.Time
	CreatedAt    time.Time
}

// WeeklySlot is one recurring weekday+time entry of an event's template.
type WeeklySlot struct {
	Weekday     time.Weekday
	MinuteOfDay int
}

// Account is the identity read model used by transfers and auth.
type Account struct {
	AccountID   int64
	Email       string
	FullName    string
	BirthPrefix string // YYMMDD, compared against OCR-extracted evidence
	IsActive    bool
}
