package repository

import (
	"hornbill/internal/database"
)

type Repositories struct {
	Events       *EventRepository
	Accounts     *AccountRepository
	Inventory    *InventoryRepository
	Reservations *ReservationRepository
	Tickets      *TicketRepository
	Payments     *PaymentRepository
	Transfers    *TransferRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Events:       NewEventRepository(db),
		Accounts:     NewAccountRepository(db),
		Inventory:    NewInventoryRepository(db),
		Reservations: NewReservationRepository(db),
		Tickets:      NewTicketRepository(db),
		Payments:     NewPaymentRepository(db),
		Transfers:    NewTransferRepository(db),
	}
}
