package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hornbill/internal/apperrors"
	"hornbill/internal/config"
	"hornbill/internal/logger"
	"hornbill/internal/metrics"
	"hornbill/internal/models"
	"hornbill/internal/push"
)

// ReservationService drives the hold lifecycle from slot claim to ticket
// issuance. Capacity accounting is delegated to the ledger's atomic
// compare-and-decrement; the service composes it with the hold row and
// compensates on partial failure.
type ReservationService struct {
	catalog    CatalogStore
	ledger     InventoryLedger
	holds      HoldStore
	gate       AdmissionGate
	challenges *ChallengeService
	slots      *SlotService
	publisher  EventPublisher
	pusher     push.Publisher
	cfg        config.ReservationConfig
	now        func() time.Time
}

func NewReservationService(
	catalog CatalogStore,
	ledger InventoryLedger,
	holds HoldStore,
	gate AdmissionGate,
	challenges *ChallengeService,
	slots *SlotService,
	publisher EventPublisher,
	pusher push.Publisher,
	cfg config.ReservationConfig,
) *ReservationService {
	return &ReservationService{
		catalog:    catalog,
		ledger:     ledger,
		holds:      holds,
		gate:       gate,
		challenges: challenges,
		slots:      slots,
		publisher:  publisher,
		pusher:     pusher,
		cfg:        cfg,
		now:        time.Now,
	}
}

// SelectSlot claims n units of a slot's capacity for the account. The
// caller must hold a live admission and a solved challenge; both are
// consumed here. On success the hold enters SLOT_SELECTED with its expiry
// clock running.
func (s *ReservationService) SelectSlot(ctx context.Context, accountID int64, req *models.SelectSlotRequest) (*models.SelectSlotResponse, error) {
	promoted, err := s.gate.Promoted(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check admission: %w", err)
	}
	if !promoted {
		return nil, apperrors.ErrSessionUnknown
	}

	if err := s.challenges.Consume(ctx, req.SessionID); err != nil {
		return nil, err
	}

	event, err := s.catalog.GetByID(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, apperrors.ErrNotFound
	}

	ok, err := s.slots.Contains(ctx, req.EventID, req.Showtime)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	if req.TicketCount < 1 || req.TicketCount > event.MaxPurchase {
		return nil, apperrors.ErrLimitExceeded
	}

	showtime := req.Showtime.UTC()
	if err := s.ledger.Decrement(ctx, req.EventID, showtime, req.TicketCount); err != nil {
		return nil, err
	}

	now := s.now()
	hold := &models.ReservationHold{
		ReservationNumber: newReservationNumber(),
		EventID:           req.EventID,
		Showtime:          showtime,
		AccountID:         accountID,
		TicketCount:       req.TicketCount,
		Phase:             models.PhaseSlotSelected,
		TotalAmount:       event.UnitPrice.Mul(decimal.NewFromInt(int64(req.TicketCount))),
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.cfg.HoldTTL),
	}

	if err := s.holds.Create(ctx, hold); err != nil {
		// The decrement already happened; give the units back before
		// surfacing the error.
		if relErr := s.ledger.Release(ctx, req.EventID, showtime, req.TicketCount); relErr != nil {
			logger.Get().Error("Failed to compensate ledger after hold create failure",
				"error", relErr, "reservation_number", hold.ReservationNumber)
		}
		return nil, err
	}

	s.gate.Complete(req.SessionID)

	show := models.ShowKey(req.EventID, showtime)
	metrics.HoldsCreated.WithLabelValues(show).Inc()

	if err := s.publisher.Publish(models.EventHoldCreated, models.HoldCreatedEvent{
		ReservationNumber: hold.ReservationNumber,
		EventID:           hold.EventID,
		Showtime:          hold.Showtime,
		AccountID:         hold.AccountID,
		TicketCount:       hold.TicketCount,
		ExpiresAt:         hold.ExpiresAt,
		Timestamp:         now,
	}); err != nil {
		logger.Get().Error("Failed to publish hold created event",
			"error", err, "reservation_number", hold.ReservationNumber)
	}

	logger.Get().Info("Hold created",
		"reservation_number", hold.ReservationNumber,
		"account_id", accountID,
		"show", show,
		"ticket_count", hold.TicketCount)

	return &models.SelectSlotResponse{
		ReservationNumber: hold.ReservationNumber,
		ExpiresAt:         hold.ExpiresAt,
	}, nil
}

// SelectDelivery records the delivery choice. Re-selection before payment
// overwrites the previous choice; an expired or paid hold refuses the
// update.
func (s *ReservationService) SelectDelivery(ctx context.Context, accountID int64, req *models.SelectDeliveryRequest) error {
	hold, err := s.ownedHold(ctx, accountID, req.ReservationNumber)
	if err != nil {
		return err
	}

	var address *string
	if req.Method == models.DeliveryPhysical {
		addr := strings.TrimSpace(req.Address)
		if addr == "" {
			return apperrors.ErrInvalidPhase
		}
		address = &addr
	}

	ok, err := s.holds.SaveDelivery(ctx, hold.ReservationNumber, req.Method, address)
	if err != nil {
		return fmt.Errorf("failed to save delivery: %w", err)
	}
	if !ok {
		if !hold.Active(s.now()) {
			return apperrors.ErrHoldExpired
		}
		return apperrors.ErrInvalidPhase
	}
	return nil
}

// Finalize issues tickets for a fully paid hold. Replays with the same
// idempotency key return the original tickets without re-issuing.
func (s *ReservationService) Finalize(ctx context.Context, accountID int64, reservationNumber, idempotencyKey string) (*models.FinalizeResponse, error) {
	hold, err := s.ownedHold(ctx, accountID, reservationNumber)
	if err != nil {
		return nil, err
	}

	tickets, already, err := s.holds.Finalize(ctx, reservationNumber, idempotencyKey)
	if err != nil {
		return nil, err
	}

	tokens := make([]string, 0, len(tickets))
	for _, t := range tickets {
		tokens = append(tokens, t.Token)
	}

	if !already {
		show := models.ShowKey(hold.EventID, hold.Showtime)
		metrics.TicketsIssued.WithLabelValues(show).Add(float64(len(tickets)))

		if err := s.publisher.Publish(models.EventTicketsIssued, models.TicketsIssuedEvent{
			ReservationNumber: reservationNumber,
			AccountID:         accountID,
			TicketCount:       len(tickets),
			Timestamp:         s.now(),
		}); err != nil {
			logger.Get().Error("Failed to publish tickets issued event",
				"error", err, "reservation_number", reservationNumber)
		}

		logger.Get().Info("Tickets issued",
			"reservation_number", reservationNumber,
			"account_id", accountID,
			"ticket_count", len(tickets))
	}

	return &models.FinalizeResponse{
		ReservationNumber: reservationNumber,
		Tickets:           tokens,
	}, nil
}

// Release cancels an unfinalized hold and returns its units to the ledger.
// Terminal holds are a no-op, so repeated releases give back capacity once.
func (s *ReservationService) Release(ctx context.Context, accountID int64, reservationNumber string) error {
	if _, err := s.ownedHold(ctx, accountID, reservationNumber); err != nil {
		return err
	}
	return s.release(ctx, reservationNumber, models.PhaseCanceled, "canceled")
}

// ExpireSweep transitions every overdue hold to EXPIRED and returns the
// capacity. Run periodically by the worker binary; the claiming update in
// the store keeps concurrent sweeps from double-releasing.
func (s *ReservationService) ExpireSweep(ctx context.Context) (int, error) {
	expired, err := s.holds.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire holds: %w", err)
	}

	for _, hold := range expired {
		s.settleReleased(ctx, &hold, "expired")

		// Tell the waiting client its checkout window closed.
		msg := models.PushMessage{Type: models.PushTypeExpired}
		if err := s.pusher.Publish(ctx, push.AccountChannel(hold.AccountID), msg); err != nil {
			logger.Get().Error("Failed to push hold expiry",
				"error", err, "reservation_number", hold.ReservationNumber)
		}
	}
	return len(expired), nil
}

// release runs the claiming phase transition and, when this call won the
// claim, settles the ledger and side effects exactly once.
func (s *ReservationService) release(ctx context.Context, reservationNumber, toPhase, reason string) error {
	hold, err := s.holds.Release(ctx, reservationNumber, toPhase)
	if err != nil {
		return fmt.Errorf("failed to release hold: %w", err)
	}
	if hold == nil {
		// Already terminal; nothing left to give back.
		return nil
	}

	s.settleReleased(ctx, hold, reason)
	return nil
}

func (s *ReservationService) settleReleased(ctx context.Context, hold *models.ReservationHold, reason string) {
	if err := s.ledger.Release(ctx, hold.EventID, hold.Showtime, hold.TicketCount); err != nil {
		logger.Get().Error("Failed to return capacity to ledger",
			"error", err, "reservation_number", hold.ReservationNumber)
	}

	show := models.ShowKey(hold.EventID, hold.Showtime)
	metrics.HoldsReleased.WithLabelValues(show, reason).Inc()

	if err := s.publisher.Publish(models.EventHoldExpired, models.HoldExpiredEvent{
		ReservationNumber: hold.ReservationNumber,
		EventID:           hold.EventID,
		Showtime:          hold.Showtime,
		TicketCount:       hold.TicketCount,
		Reason:            reason,
		Timestamp:         s.now(),
	}); err != nil {
		logger.Get().Error("Failed to publish hold release event",
			"error", err, "reservation_number", hold.ReservationNumber)
	}

	logger.Get().Info("Hold released",
		"reservation_number", hold.ReservationNumber,
		"show", show,
		"reason", reason)
}

// ownedHold loads the hold and checks ownership.
func (s *ReservationService) ownedHold(ctx context.Context, accountID int64, reservationNumber string) (*models.ReservationHold, error) {
	hold, err := s.holds.GetByNumber(ctx, reservationNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get hold: %w", err)
	}
	if hold == nil {
		return nil, apperrors.ErrNotFound
	}
	if hold.AccountID != accountID {
		return nil, apperrors.ErrForbidden
	}
	return hold, nil
}

func newReservationNumber() string {
	return "R-" + strings.ToUpper(uuid.New().String()[:13])
}
