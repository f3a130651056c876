package service

import (
	"hornbill/internal/config"
	"hornbill/internal/push"
	"hornbill/internal/repository"
)

// Services bundles the application services behind one wiring point.
type Services struct {
	Slots        *SlotService
	Challenges   *ChallengeService
	Admission    *AdmissionService
	Reservations *ReservationService
	Payments     *PaymentService
	Transfers    *TransferService
	Tickets      *TicketService
}

// Deps carries the infrastructure the services are built on.
type Deps struct {
	Repos     *repository.Repositories
	Sessions  SessionStore
	Challenge ChallengeStore
	Publisher EventPublisher
	Pusher    push.Publisher
	Gateway   CardGateway
	Wallet    WalletLedger
	Verifier  DocumentVerifier
}

func NewServices(cfg *config.Config, d Deps) *Services {
	slots := NewSlotService(d.Repos.Events, d.Repos.Inventory)
	challenges := NewChallengeService(d.Challenge, cfg.Reservation.ChallengeTTL, cfg.Reservation.ChallengeTTL)
	admission := NewAdmissionService(d.Repos.Events, d.Repos.Inventory, d.Sessions, d.Pusher, cfg.Admission)

	reservations := NewReservationService(
		d.Repos.Events,
		d.Repos.Inventory,
		d.Repos.Reservations,
		admission,
		challenges,
		slots,
		d.Publisher,
		d.Pusher,
		cfg.Reservation,
	)

	payments := NewPaymentService(
		d.Repos.Payments,
		d.Repos.Reservations,
		reservations,
		d.Gateway,
		d.Wallet,
		d.Publisher,
		cfg.Reservation,
	)

	transfers := NewTransferService(
		d.Repos.Transfers,
		d.Repos.Tickets,
		d.Repos.Accounts,
		d.Wallet,
		d.Verifier,
		payments,
		d.Publisher,
		d.Pusher,
		cfg.Transfer,
		cfg.Reservation.SellerID,
	)

	return &Services{
		Slots:        slots,
		Challenges:   challenges,
		Admission:    admission,
		Reservations: reservations,
		Payments:     payments,
		Transfers:    transfers,
		Tickets:      NewTicketService(d.Repos.Tickets),
	}
}
