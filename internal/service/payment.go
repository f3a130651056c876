package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hornbill/internal/apperrors"
	"hornbill/internal/config"
	"hornbill/internal/external"
	"hornbill/internal/logger"
	"hornbill/internal/metrics"
	"hornbill/internal/models"
)

// RetryPolicy bounds a confirmation loop: how many attempts, and the delay
// before each retry. Policies are data so the two rails can differ without
// branching inside the loop.
type RetryPolicy struct {
	Attempts int
	Delay    func(attempt int) time.Duration
}

// CardConfirmPolicy paces the gateway status poll. The gateway settles in
// seconds, so every check waits first, on a widening 2s/4s/6s ladder.
var CardConfirmPolicy = RetryPolicy{
	Attempts: 3,
	Delay: func(attempt int) time.Duration {
		return time.Duration(attempt+1) * 2 * time.Second
	},
}

// WalletDebitPolicy covers the ledger's replication lag: debits can race
// order creation, so it retries often but only on the not-yet-visible
// error, backing off linearly in 500ms steps.
var WalletDebitPolicy = RetryPolicy{
	Attempts: 10,
	Delay: func(attempt int) time.Duration {
		return time.Duration(attempt+1) * 500 * time.Millisecond
	},
}

// PaymentService orchestrates both payment rails against one hold. The
// payment ID doubles as the idempotency key for ticket issuance, so a
// confirmed payment replayed through Finalize cannot issue twice.
type PaymentService struct {
	payments     PaymentStore
	holds        HoldStore
	reservations *ReservationService
	gateway      CardGateway
	wallet       WalletLedger
	publisher    EventPublisher
	cfg          config.ReservationConfig
	cardPolicy   RetryPolicy
	walletPolicy RetryPolicy
	wait         func(ctx context.Context, d time.Duration) error
	now          func() time.Time
}

func NewPaymentService(
	payments PaymentStore,
	holds HoldStore,
	reservations *ReservationService,
	gateway CardGateway,
	wallet WalletLedger,
	publisher EventPublisher,
	cfg config.ReservationConfig,
) *PaymentService {
	return &PaymentService{
		payments:     payments,
		holds:        holds,
		reservations: reservations,
		gateway:      gateway,
		wallet:       wallet,
		publisher:    publisher,
		cfg:          cfg,
		cardPolicy:   CardConfirmPolicy,
		walletPolicy: WalletDebitPolicy,
		wait:         sleepCtx,
		now:          time.Now,
	}
}

// Request creates the payment order and engages the chosen rail. The hold
// moves to PAYMENT_PENDING; for CARD the response carries the redirect URL.
func (s *PaymentService) Request(ctx context.Context, accountID int64, req *models.RequestPaymentRequest) (*models.RequestPaymentResponse, error) {
	hold, err := s.holds.GetByNumber(ctx, req.ReservationNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get hold: %w", err)
	}
	if hold == nil {
		return nil, apperrors.ErrNotFound
	}
	if hold.AccountID != accountID {
		return nil, apperrors.ErrForbidden
	}
	if !hold.Active(s.now()) {
		return nil, apperrors.ErrHoldExpired
	}
	if hold.DeliveryMethod == nil {
		return nil, apperrors.ErrInvalidPhase
	}

	order := &models.PaymentOrder{
		PaymentID:         req.PaymentID,
		ReservationNumber: hold.ReservationNumber,
		BuyerID:           accountID,
		SellerID:          s.cfg.SellerID,
		Amount:            hold.TotalAmount,
		Currency:          s.cfg.Currency,
		Method:            req.Method,
		Status:            models.PaymentRequested,
		CreatedAt:         s.now(),
	}
	if err := s.payments.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create payment order: %w", err)
	}

	if ok, err := s.holds.MarkPaymentPending(ctx, hold.ReservationNumber); err != nil {
		return nil, fmt.Errorf("failed to mark payment pending: %w", err)
	} else if !ok {
		return nil, apperrors.ErrInvalidPhase
	}

	resp := &models.RequestPaymentResponse{PaymentID: order.PaymentID}

	switch req.Method {
	case models.RailCard:
		init, err := s.gateway.Init(ctx,
			order.Amount.StringFixed(2),
			order.PaymentID,
			order.Currency,
			"Ticket reservation "+order.ReservationNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to init card payment: %w", err)
		}
		resp.PaymentURL = init.PaymentURL
	case models.RailWallet:
		if err := s.wallet.CreateOrder(ctx, order.PaymentID, order.BuyerID, order.SellerID, order.Amount, order.Currency); err != nil {
			return nil, fmt.Errorf("failed to create wallet order: %w", err)
		}
	default:
		return nil, apperrors.ErrInvalidPhase
	}

	logger.Get().Info("Payment requested",
		"payment_id", order.PaymentID,
		"reservation_number", order.ReservationNumber,
		"method", order.Method)
	return resp, nil
}

// Confirm drives the CARD rail to a terminal state: it polls the gateway
// under the card policy and, on confirmation, issues the tickets. A
// rejected or never-confirmed payment marks the order FAILED; the hold
// stays open for another attempt until it expires.
func (s *PaymentService) Confirm(ctx context.Context, accountID int64, paymentID string) (*models.FinalizeResponse, error) {
	order, err := s.order(ctx, accountID, paymentID)
	if err != nil {
		return nil, err
	}
	if order.Method != models.RailCard {
		return nil, apperrors.ErrInvalidPhase
	}
	if order.Status == models.PaymentFailed {
		return nil, apperrors.ErrPaymentFailed
	}

	confirmed := order.Status == models.PaymentConfirmed
	for attempt := 0; !confirmed && attempt < s.cardPolicy.Attempts; attempt++ {
		if attempt > 0 {
			metrics.PaymentRetries.WithLabelValues(models.RailCard).Inc()
		}
		// The gateway needs time to settle, so the delay precedes every
		// check, the first included.
		if err := s.wait(ctx, s.cardPolicy.Delay(attempt)); err != nil {
			return nil, err
		}

		check, err := s.gateway.Check(ctx, paymentID)
		if err != nil {
			logger.Get().Error("Gateway check failed",
				"error", err, "payment_id", paymentID, "attempt", attempt+1)
			continue
		}

		switch check.Status {
		case external.GatewayStatusConfirmed:
			confirmed = true
		case external.GatewayStatusRejected:
			return nil, s.fail(ctx, order, "rejected by gateway")
		}
	}

	if !confirmed {
		if _, err := s.payments.SetStatus(ctx, paymentID, models.PaymentFailed); err != nil {
			logger.Get().Error("Failed to mark payment failed",
				"error", err, "payment_id", paymentID)
		}
		metrics.PaymentOutcomes.WithLabelValues(models.RailCard, "unconfirmed").Inc()
		return nil, apperrors.ErrPaymentUnconfirmed
	}

	return s.settle(ctx, order)
}

// DebitWallet drives the WALLET rail: it retries the debit under the
// wallet policy while the order is not yet visible on the ledger side, and
// issues the tickets once the debit lands. Hard failures stop immediately.
func (s *PaymentService) DebitWallet(ctx context.Context, accountID int64, req *models.DebitWalletRequest) (*models.FinalizeResponse, error) {
	order, err := s.order(ctx, accountID, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if order.Method != models.RailWallet {
		return nil, apperrors.ErrInvalidPhase
	}
	if order.Status == models.PaymentFailed {
		return nil, apperrors.ErrPaymentFailed
	}

	if order.Status != models.PaymentConfirmed {
		if err := s.debitWithRetry(ctx, order, req.PIN); err != nil {
			return nil, err
		}
	}

	return s.settle(ctx, order)
}

func (s *PaymentService) debitWithRetry(ctx context.Context, order *models.PaymentOrder, pin string) error {
	var lastErr error
	for attempt := 0; attempt < s.walletPolicy.Attempts; attempt++ {
		if attempt > 0 {
			metrics.PaymentRetries.WithLabelValues(models.RailWallet).Inc()
			// Retry n waits n*500ms; the first attempt goes straight out.
			if err := s.wait(ctx, s.walletPolicy.Delay(attempt-1)); err != nil {
				return err
			}
		}

		lastErr = s.wallet.Debit(ctx, order.PaymentID, pin)
		if lastErr == nil {
			return nil
		}
		if !apperrors.IsTransient(lastErr) {
			if errors.Is(lastErr, apperrors.ErrPaymentFailed) {
				return s.fail(ctx, order, lastErr.Error())
			}
			return lastErr
		}
	}

	// The order never became visible within the budget.
	if _, err := s.payments.SetStatus(ctx, order.PaymentID, models.PaymentFailed); err != nil {
		logger.Get().Error("Failed to mark payment failed",
			"error", err, "payment_id", order.PaymentID)
	}
	metrics.PaymentOutcomes.WithLabelValues(models.RailWallet, "not_visible").Inc()
	return fmt.Errorf("%w: %s", apperrors.ErrPaymentUnconfirmed, lastErr)
}

// settle confirms the order and finalizes the hold. The claiming status
// update makes the confirmed transition happen once; the finalize replay
// path covers the rest.
func (s *PaymentService) settle(ctx context.Context, order *models.PaymentOrder) (*models.FinalizeResponse, error) {
	won, err := s.payments.SetStatus(ctx, order.PaymentID, models.PaymentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm payment: %w", err)
	}

	resp, err := s.reservations.Finalize(ctx, order.BuyerID, order.ReservationNumber, order.PaymentID)
	if err != nil {
		return nil, err
	}

	if won {
		metrics.PaymentOutcomes.WithLabelValues(order.Method, "confirmed").Inc()
		if err := s.publisher.Publish(models.EventPaymentCompleted, models.PaymentCompletedEvent{
			PaymentID:         order.PaymentID,
			ReservationNumber: order.ReservationNumber,
			Method:            order.Method,
			Timestamp:         s.now(),
		}); err != nil {
			logger.Get().Error("Failed to publish payment completed event",
				"error", err, "payment_id", order.PaymentID)
		}
		logger.Get().Info("Payment confirmed",
			"payment_id", order.PaymentID,
			"reservation_number", order.ReservationNumber,
			"method", order.Method)
	}

	return resp, nil
}

func (s *PaymentService) fail(ctx context.Context, order *models.PaymentOrder, reason string) error {
	if _, err := s.payments.SetStatus(ctx, order.PaymentID, models.PaymentFailed); err != nil {
		logger.Get().Error("Failed to mark payment failed",
			"error", err, "payment_id", order.PaymentID)
	}

	metrics.PaymentOutcomes.WithLabelValues(order.Method, "failed").Inc()
	if err := s.publisher.Publish(models.EventPaymentFailed, models.PaymentFailedEvent{
		PaymentID: order.PaymentID,
		Method:    order.Method,
		Reason:    reason,
		Timestamp: s.now(),
	}); err != nil {
		logger.Get().Error("Failed to publish payment failed event",
			"error", err, "payment_id", order.PaymentID)
	}

	return apperrors.ErrPaymentFailed
}

// ChargeWallet runs a standalone wallet charge end to end: order row,
// ledger order, debit under the wallet policy, confirmed status. Used for
// sub-payments such as the transfer fee, where no reservation finalize
// follows.
func (s *PaymentService) ChargeWallet(ctx context.Context, order *models.PaymentOrder, pin string) error {
	order.Method = models.RailWallet
	order.Status = models.PaymentRequested
	order.CreatedAt = s.now()

	if err := s.payments.Create(ctx, order); err != nil {
		return fmt.Errorf("failed to create payment order: %w", err)
	}
	if err := s.wallet.CreateOrder(ctx, order.PaymentID, order.BuyerID, order.SellerID, order.Amount, order.Currency); err != nil {
		return fmt.Errorf("failed to create wallet order: %w", err)
	}
	if err := s.debitWithRetry(ctx, order, pin); err != nil {
		return err
	}

	if _, err := s.payments.SetStatus(ctx, order.PaymentID, models.PaymentConfirmed); err != nil {
		return fmt.Errorf("failed to confirm payment: %w", err)
	}
	metrics.PaymentOutcomes.WithLabelValues(models.RailWallet, "confirmed").Inc()
	return nil
}

func (s *PaymentService) order(ctx context.Context, accountID int64, paymentID string) (*models.PaymentOrder, error) {
	order, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment order: %w", err)
	}
	if order == nil {
		return nil, apperrors.ErrNotFound
	}
	if order.BuyerID != accountID {
		return nil, apperrors.ErrForbidden
	}
	return order, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
