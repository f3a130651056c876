package models

import "time"

// Request/response models for the public API. Showtimes travel as RFC3339.

// JoinQueueRequest - POST /api/queue/join
type JoinQueueRequest struct {
	EventID  int64     `json:"event_id" binding:"required"`
	Showtime time.Time `json:"showtime" binding:"required"`
}

// JoinQueueResponse carries the queue position plus the client-side push
// contract: channels to subscribe and the silence watchdog policy.
type JoinQueueResponse struct {
	SessionID        string `json:"session_id"`
	PeopleAhead      int    `json:"people_ahead"`
	PersonalChannel  string `json:"personal_channel"`
	BroadcastChannel string `json:"broadcast_channel"`
	SilenceTimeoutMS int    `json:"silence_timeout_ms"`
	SilencePolicy    string `json:"silence_policy"`
}

// HeartbeatRequest - POST /api/queue/heartbeat
type HeartbeatRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// ExitQueueRequest - POST /api/queue/exit
type ExitQueueRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// QueuePositionResponse - GET /api/queue/position (poll fallback)
type QueuePositionResponse struct {
	SessionID   string `json:"session_id"`
	PeopleAhead int    `json:"people_ahead"`
	Promoted    bool   `json:"promoted"`
}

// SlotQueryResponse - GET /api/slots
type SlotQueryResponse struct {
	AvailableDates []string            `json:"available_dates"`
	TimesByDate    map[string][]string `json:"times_by_date"`
	UnitPrice      string              `json:"unit_price"`
	MaxPurchase    int                 `json:"max_purchase"`
}

// ChallengeRequest - POST /api/challenge
type ChallengeRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// ChallengeResponse carries the time-boxed anti-automation prompt.
type ChallengeResponse struct {
	ChallengeID string    `json:"challenge_id"`
	Prompt      string    `json:"prompt"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SolveChallengeRequest - POST /api/challenge/solve
type SolveChallengeRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Answer    string `json:"answer" binding:"required"`
}

// SelectSlotRequest - POST /api/reservations
type SelectSlotRequest struct {
	SessionID   string    `json:"session_id" binding:"required"`
	EventID     int64     `json:"event_id" binding:"required"`
	Showtime    time.Time `json:"showtime" binding:"required"`
	TicketCount int       `json:"ticket_count" binding:"required,min=1"`
}

// SelectSlotResponse - reservation number plus the hold deadline
type SelectSlotResponse struct {
	ReservationNumber string    `json:"reservation_number"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// SelectDeliveryRequest - PATCH /api/reservations/delivery
type SelectDeliveryRequest struct {
	ReservationNumber string `json:"reservation_number" binding:"required"`
	Method            string `json:"method" binding:"required,oneof=DIGITAL PHYSICAL"`
	Address           string `json:"address,omitempty"`
}

// FinalizeRequest - POST /api/reservations/finalize
// The idempotency key arrives in the Idempotency-Key header.
type FinalizeRequest struct {
	ReservationNumber string `json:"reservation_number" binding:"required"`
}

// FinalizeResponse returns the issued ticket tokens.
type FinalizeResponse struct {
	ReservationNumber string   `json:"reservation_number"`
	Tickets           []string `json:"tickets"`
}

// ReleaseHoldRequest - PATCH /api/reservations/release
type ReleaseHoldRequest struct {
	ReservationNumber string `json:"reservation_number" binding:"required"`
}

// RequestPaymentRequest - POST /api/payments/request
type RequestPaymentRequest struct {
	PaymentID         string `json:"payment_id" binding:"required"`
	ReservationNumber string `json:"reservation_number" binding:"required"`
	Method            string `json:"method" binding:"required,oneof=CARD WALLET"`
}

// RequestPaymentResponse - redirect URL is set for the CARD rail only.
type RequestPaymentResponse struct {
	PaymentID  string `json:"payment_id"`
	PaymentURL string `json:"payment_url,omitempty"`
}

// ConfirmPaymentRequest - POST /api/payments/confirm
type ConfirmPaymentRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
}

// DebitWalletRequest - POST /api/payments/wallet/debit
type DebitWalletRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
	PIN       string `json:"pin" binding:"required"`
}

// RequestTransferRequest - POST /api/transfers
type RequestTransferRequest struct {
	ReservationNumber string `json:"reservation_number" binding:"required"`
	RecipientID       int64  `json:"recipient_id" binding:"required"`
	Relation          string `json:"relation" binding:"required,oneof=FAMILY FRIEND"`
	EvidenceRef       string `json:"evidence_ref,omitempty"`
}

// RequestTransferResponse
type RequestTransferResponse struct {
	TransferID string `json:"transfer_id"`
}

// RespondTransferRequest - PATCH /api/transfers/respond
// PIN authorizes the wallet fee debit and is required for APPROVED.
type RespondTransferRequest struct {
	TransferID string `json:"transfer_id" binding:"required"`
	Decision   string `json:"decision" binding:"required,oneof=APPROVED REJECTED"`
	PIN        string `json:"pin,omitempty"`
}

// TransferInboxItem - GET /api/transfers/inbox, terminal items included
type TransferInboxItem struct {
	TransferID        string     `json:"transfer_id"`
	SenderID          int64      `json:"sender_id"`
	ReservationNumber string     `json:"reservation_number"`
	Relation          string     `json:"relation"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
}

// TicketItem - GET /api/tickets
type TicketItem struct {
	ID       string    `json:"id"`
	EventID  int64     `json:"event_id"`
	Showtime time.Time `json:"showtime"`
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issued_at"`
}

// PushMessage is the shape delivered on both the personal and the broadcast
// channel. Consumers de-duplicate by SessionID.
type PushMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Ahead     *int   `json:"ahead,omitempty"`
	Event     string `json:"event,omitempty"`
}

// Push message types
const (
	PushTypePosition = "queue_position"
	PushTypeProceed  = "queue_proceed"
	PushTypeEvicted  = "queue_evicted"
	PushTypeExpired  = "hold_expired"
	PushTypeTransfer = "transfer_update"
)

// PushEventProceed is the Event value signalling promotion into booking.
const PushEventProceed = "PROCEED"
