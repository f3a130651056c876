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

// TransferService runs the two-party ticket re-assignment handshake. A
// transfer row exists only once its preconditions hold: FAMILY identity
// evidence is verified before the row is created, and a FRIEND transfer to
// a wallet-less recipient is parked as an intent instead of a row.
// Ownership moves only on the recipient's APPROVED decision, gated on the
// fee debit.
type TransferService struct {
	transfers TransferStore
	tickets   TicketStore
	accounts  AccountStore
	wallet    WalletLedger
	verifier  DocumentVerifier
	payments  *PaymentService
	publisher EventPublisher
	pusher    push.Publisher
	cfg       config.TransferConfig
	sellerID  int64
	fee       decimal.Decimal
	now       func() time.Time
}

func NewTransferService(
	transfers TransferStore,
	tickets TicketStore,
	accounts AccountStore,
	wallet WalletLedger,
	verifier DocumentVerifier,
	payments *PaymentService,
	publisher EventPublisher,
	pusher push.Publisher,
	cfg config.TransferConfig,
	sellerID int64,
) *TransferService {
	fee, err := decimal.NewFromString(cfg.FeeAmount)
	if err != nil {
		logger.Fatal("Invalid transfer fee amount", "error", err, "value", cfg.FeeAmount)
	}

	return &TransferService{
		transfers: transfers,
		tickets:   tickets,
		accounts:  accounts,
		wallet:    wallet,
		verifier:  verifier,
		payments:  payments,
		publisher: publisher,
		pusher:    pusher,
		cfg:       cfg,
		sellerID:  sellerID,
		fee:       fee,
		now:       time.Now,
	}
}

// Request opens a handshake for the tickets of one reservation. FAMILY
// requires document evidence matching both parties; FRIEND requires the
// recipient to hold a funded wallet, otherwise the request is deferred as
// an intent and ErrNoWalletAccount is returned.
func (s *TransferService) Request(ctx context.Context, senderID int64, req *models.RequestTransferRequest) (*models.RequestTransferResponse, error) {
	owned, err := s.tickets.ListByReservation(ctx, req.ReservationNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	if len(owned) == 0 {
		return nil, apperrors.ErrNotFound
	}
	for _, t := range owned {
		if t.OwnerID != senderID {
			return nil, apperrors.ErrForbidden
		}
	}

	if req.RecipientID == senderID {
		return nil, apperrors.ErrForbidden
	}

	sender, err := s.accounts.GetByID(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sender: %w", err)
	}
	recipient, err := s.accounts.GetByID(ctx, req.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}
	if sender == nil || recipient == nil {
		return nil, apperrors.ErrNotFound
	}

	var evidenceRef *string
	switch req.Relation {
	case models.RelationFamily:
		if strings.TrimSpace(req.EvidenceRef) == "" {
			return nil, apperrors.ErrFamilyMatchFailed
		}
		if err := s.verifyFamily(ctx, sender, recipient, req.EvidenceRef); err != nil {
			return nil, err
		}
		ref := req.EvidenceRef
		evidenceRef = &ref

	case models.RelationFriend:
		hasWallet, err := s.wallet.HasAccount(ctx, req.RecipientID)
		if err != nil {
			return nil, fmt.Errorf("failed to check wallet account: %w", err)
		}
		if !hasWallet {
			intent := &models.TransferIntent{
				IntentID:          uuid.New().String(),
				SenderID:          senderID,
				RecipientID:       req.RecipientID,
				ReservationNumber: req.ReservationNumber,
				CreatedAt:         s.now(),
			}
			if err := s.transfers.CreateIntent(ctx, intent); err != nil {
				return nil, fmt.Errorf("failed to create transfer intent: %w", err)
			}
			logger.Get().Info("Transfer deferred until wallet account exists",
				"intent_id", intent.IntentID, "recipient_id", req.RecipientID)
			return nil, apperrors.ErrNoWalletAccount
		}

	default:
		return nil, apperrors.ErrInvalidPhase
	}

	transfer := &models.TransferRequest{
		TransferID:        uuid.New().String(),
		SenderID:          senderID,
		RecipientID:       req.RecipientID,
		ReservationNumber: req.ReservationNumber,
		Relation:          req.Relation,
		Status:            models.TransferRequested,
		EvidenceRef:       evidenceRef,
		CreatedAt:         s.now(),
	}
	if err := s.transfers.Create(ctx, transfer); err != nil {
		return nil, fmt.Errorf("failed to create transfer: %w", err)
	}

	s.notify(ctx, transfer, req.RecipientID)

	if err := s.publisher.Publish(models.EventTransferRequested, models.TransferRequestedEvent{
		TransferID:  transfer.TransferID,
		SenderID:    senderID,
		RecipientID: req.RecipientID,
		Relation:    req.Relation,
		Timestamp:   s.now(),
	}); err != nil {
		logger.Get().Error("Failed to publish transfer requested event",
			"error", err, "transfer_id", transfer.TransferID)
	}

	logger.Get().Info("Transfer requested",
		"transfer_id", transfer.TransferID,
		"sender_id", senderID,
		"recipient_id", req.RecipientID,
		"relation", req.Relation)

	return &models.RequestTransferResponse{TransferID: transfer.TransferID}, nil
}

// Respond applies the recipient's decision. A rejection is a single
// claiming update; an approval charges the fee first and moves ticket
// ownership only after the debit lands. A failed fee debit leaves the
// handshake open for another attempt.
func (s *TransferService) Respond(ctx context.Context, recipientID int64, req *models.RespondTransferRequest) error {
	transfer, err := s.transfers.GetByID(ctx, req.TransferID)
	if err != nil {
		return fmt.Errorf("failed to get transfer: %w", err)
	}
	if transfer == nil {
		return apperrors.ErrNotFound
	}
	if transfer.RecipientID != recipientID {
		return apperrors.ErrForbidden
	}

	switch req.Decision {
	case models.TransferRejected:
		ok, err := s.transfers.Reject(ctx, req.TransferID, recipientID)
		if err != nil {
			return fmt.Errorf("failed to reject transfer: %w", err)
		}
		if !ok {
			return apperrors.ErrAlreadyResolved
		}
		s.resolved(ctx, transfer, models.TransferRejected)
		return nil

	case models.TransferApproved:
		if transfer.Status != models.TransferRequested {
			return apperrors.ErrAlreadyResolved
		}

		feeOrder := &models.PaymentOrder{
			PaymentID:         uuid.New().String(),
			ReservationNumber: transfer.ReservationNumber,
			BuyerID:           recipientID,
			SellerID:          s.sellerID,
			Amount:            s.fee,
			Currency:          s.cfg.Currency,
		}
		if err := s.payments.ChargeWallet(ctx, feeOrder, req.PIN); err != nil {
			logger.Get().Error("Transfer fee debit failed",
				"error", err, "transfer_id", transfer.TransferID)
			return err
		}

		ok, err := s.transfers.Approve(ctx, req.TransferID, recipientID, feeOrder.PaymentID)
		if err != nil {
			return fmt.Errorf("failed to approve transfer: %w", err)
		}
		if !ok {
			return apperrors.ErrAlreadyResolved
		}
		s.resolved(ctx, transfer, models.TransferApproved)
		return nil

	default:
		return apperrors.ErrInvalidPhase
	}
}

// Inbox lists the recipient's handshakes, terminal ones included.
func (s *TransferService) Inbox(ctx context.Context, recipientID int64) ([]models.TransferInboxItem, error) {
	transfers, err := s.transfers.ListByRecipient(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}

	items := make([]models.TransferInboxItem, 0, len(transfers))
	for _, t := range transfers {
		items = append(items, models.TransferInboxItem{
			TransferID:        t.TransferID,
			SenderID:          t.SenderID,
			ReservationNumber: t.ReservationNumber,
			Relation:          t.Relation,
			Status:            t.Status,
			CreatedAt:         t.CreatedAt,
			ResolvedAt:        t.ResolvedAt,
		})
	}
	return items, nil
}

// ResolveIntentsFor promotes the deferred intents of one recipient into
// live handshakes. Called when a wallet account opened notification
// arrives for that account.
func (s *TransferService) ResolveIntentsFor(ctx context.Context, recipientID int64) error {
	return s.resolveIntents(ctx, &recipientID, false)
}

// ResolveOpenIntents is the poll fallback covering missed notifications:
// it re-checks the wallet for every open intent.
func (s *TransferService) ResolveOpenIntents(ctx context.Context) error {
	return s.resolveIntents(ctx, nil, true)
}

func (s *TransferService) resolveIntents(ctx context.Context, recipientID *int64, checkWallet bool) error {
	intents, err := s.transfers.OpenIntents(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("failed to list intents: %w", err)
	}

	for _, intent := range intents {
		if checkWallet {
			hasWallet, err := s.wallet.HasAccount(ctx, intent.RecipientID)
			if err != nil {
				logger.Get().Error("Failed to check wallet account",
					"error", err, "intent_id", intent.IntentID)
				continue
			}
			if !hasWallet {
				continue
			}
		}

		claimed, err := s.transfers.ResolveIntent(ctx, intent.IntentID, s.now())
		if err != nil {
			logger.Get().Error("Failed to resolve intent",
				"error", err, "intent_id", intent.IntentID)
			continue
		}
		if !claimed {
			continue
		}

		transfer := &models.TransferRequest{
			TransferID:        uuid.New().String(),
			SenderID:          intent.SenderID,
			RecipientID:       intent.RecipientID,
			ReservationNumber: intent.ReservationNumber,
			Relation:          models.RelationFriend,
			Status:            models.TransferRequested,
			CreatedAt:         s.now(),
		}
		if err := s.transfers.Create(ctx, transfer); err != nil {
			logger.Get().Error("Failed to create transfer from intent",
				"error", err, "intent_id", intent.IntentID)
			continue
		}

		s.notify(ctx, transfer, intent.RecipientID)
		logger.Get().Info("Deferred transfer activated",
			"intent_id", intent.IntentID, "transfer_id", transfer.TransferID)
	}
	return nil
}

// verifyFamily matches the evidence's extracted identities against both
// accounts: full name plus the YYMMDD birth prefix for each party.
func (s *TransferService) verifyFamily(ctx context.Context, sender, recipient *models.Account, evidenceRef string) error {
	records, err := s.verifier.Extract(ctx, evidenceRef)
	if err != nil {
		return fmt.Errorf("failed to extract evidence: %w", err)
	}

	matched := func(account *models.Account) bool {
		for _, r := range records {
			if strings.EqualFold(strings.TrimSpace(r.Name), account.FullName) && r.BirthPrefix == account.BirthPrefix {
				return true
			}
		}
		return false
	}

	if !matched(sender) || !matched(recipient) {
		return apperrors.ErrFamilyMatchFailed
	}
	return nil
}

func (s *TransferService) notify(ctx context.Context, transfer *models.TransferRequest, recipientID int64) {
	msg := models.PushMessage{
		Type:  models.PushTypeTransfer,
		Event: transfer.Status,
	}
	if err := s.pusher.Publish(ctx, push.AccountChannel(recipientID), msg); err != nil {
		logger.Get().Error("Failed to push transfer notification",
			"error", err, "transfer_id", transfer.TransferID)
	}
}

func (s *TransferService) resolved(ctx context.Context, transfer *models.TransferRequest, status string) {
	metrics.TransferOutcomes.WithLabelValues(status).Inc()

	msg := models.PushMessage{
		Type:  models.PushTypeTransfer,
		Event: status,
	}
	if err := s.pusher.Publish(ctx, push.AccountChannel(transfer.SenderID), msg); err != nil {
		logger.Get().Error("Failed to push transfer resolution",
			"error", err, "transfer_id", transfer.TransferID)
	}

	if err := s.publisher.Publish(models.EventTransferResolved, models.TransferResolvedEvent{
		TransferID: transfer.TransferID,
		Status:     status,
		Timestamp:  s.now(),
	}); err != nil {
		logger.Get().Error("Failed to publish transfer resolved event",
			"error", err, "transfer_id", transfer.TransferID)
	}

	logger.Get().Info("Transfer resolved",
		"transfer_id", transfer.TransferID, "status", status)
}
