package models

import "time"

// NATS subjects for domain events
const (
	EventHoldCreated         = "hold.created"
	EventHoldExpired         = "hold.expired"
	EventTicketsIssued       = "tickets.issued"
	EventPaymentCompleted    = "payment.completed"
	EventPaymentFailed       = "payment.failed"
	EventTransferRequested   = "transfer.requested"
	EventTransferResolved    = "transfer.resolved"
	EventWalletAccountOpened = "wallet.account.opened"
)

// HoldCreatedEvent is published when capacity is claimed for a new hold.
type HoldCreatedEvent struct {
	ReservationNumber string    `json:"reservation_number"`
	EventID           int64     `json:"event_id"`
	Showtime          time.Time `json:"showtime"`
	AccountID         int64     `json:"account_id"`
	TicketCount       int       `json:"ticket_count"`
	ExpiresAt         time.Time `json:"expires_at"`
	Timestamp         time.Time `json:"timestamp"`
}

// HoldExpiredEvent is published when an unfinalized hold returns its
// capacity to the ledger.
type HoldExpiredEvent struct {
	ReservationNumber string    `json:"reservation_number"`
	EventID           int64     `json:"event_id"`
	Showtime          time.Time `json:"showtime"`
	TicketCount       int       `json:"ticket_count"`
	Reason            string    `json:"reason"`
	Timestamp         time.Time `json:"timestamp"`
}

// TicketsIssuedEvent is published once per successful finalize.
type TicketsIssuedEvent struct {
	ReservationNumber string    `json:"reservation_number"`
	AccountID         int64     `json:"account_id"`
	TicketCount       int       `json:"ticket_count"`
	Timestamp         time.Time `json:"timestamp"`
}

// PaymentCompletedEvent is published when either rail confirms.
type PaymentCompletedEvent struct {
	PaymentID         string    `json:"payment_id"`
	ReservationNumber string    `json:"reservation_number"`
	Method            string    `json:"method"`
	Timestamp         time.Time `json:"timestamp"`
}

// PaymentFailedEvent is published after the retry budget is exhausted.
type PaymentFailedEvent struct {
	PaymentID string    `json:"payment_id"`
	Method    string    `json:"method"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// TransferRequestedEvent notifies the recipient side of a new handshake.
type TransferRequestedEvent struct {
	TransferID  string    `json:"transfer_id"`
	SenderID    int64     `json:"sender_id"`
	RecipientID int64     `json:"recipient_id"`
	Relation    string    `json:"relation"`
	Timestamp   time.Time `json:"timestamp"`
}

// TransferResolvedEvent is published when a handshake reaches a terminal
// status.
type TransferResolvedEvent struct {
	TransferID string    `json:"transfer_id"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// WalletAccountOpenedEvent is the inbound notification consumed to resolve
// deferred FRIEND transfers.
type WalletAccountOpenedEvent struct {
	AccountID int64     `json:"account_id"`
	Timestamp time.Time `json:"timestamp"`
}
