package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hornbill/internal/apperrors"
	"hornbill/internal/config"
	"hornbill/internal/external"
	"hornbill/internal/models"
	"hornbill/internal/push"
)

type transferEnv struct {
	svc       *TransferService
	transfers *memTransfers
	tickets   *memTickets
	wallet    *fakeWallet
	verifier  *fakeVerifier
	payments  *memPayments
	publisher *memPublisher
	pusher    *memPusher
}

func newTransferEnv(t *testing.T) *transferEnv {
	t.Helper()

	transfers := newMemTransfers()
	tickets := &memTickets{}
	wallet := &fakeWallet{accounts: map[int64]bool{}}
	verifier := &fakeVerifier{}
	payments := newMemPayments()
	publisher := &memPublisher{}
	pusher := &memPusher{}

	accounts := &memAccounts{accounts: map[int64]*models.Account{
		1: {AccountID: 1, FullName: "Somchai Vongsa", BirthPrefix: "900412"},
		2: {AccountID: 2, FullName: "Khamla Vongsa", BirthPrefix: "920725"},
		3: {AccountID: 3, FullName: "Bounmy Keo", BirthPrefix: "880101"},
	}}

	res := newReservationEnv(t, 10, 7*time.Minute)
	pay := NewPaymentService(
		payments, res.holds, res.svc, &fakeGateway{}, wallet, publisher,
		config.ReservationConfig{HoldTTL: 7 * time.Minute, Currency: "LAK", SellerID: 99},
	)
	pay.wait = func(context.Context, time.Duration) error { return nil }

	svc := NewTransferService(
		transfers, tickets, accounts, wallet, verifier, pay, publisher, pusher,
		config.TransferConfig{FeeAmount: "5000", Currency: "LAK", IntentPollInterval: time.Minute},
		99,
	)

	// Sender 1 owns the tickets of reservation R-1.
	tickets.add(models.Ticket{ID: "t1", ReservationNumber: "R-1", EventID: 1, OwnerID: 1, Token: "tok-1"})
	tickets.add(models.Ticket{ID: "t2", ReservationNumber: "R-1", EventID: 1, OwnerID: 1, Token: "tok-2"})

	return &transferEnv{
		svc:       svc,
		transfers: transfers,
		tickets:   tickets,
		wallet:    wallet,
		verifier:  verifier,
		payments:  payments,
		publisher: publisher,
		pusher:    pusher,
	}
}

func (e *transferEnv) familyEvidence() {
	e.verifier.records = []external.PersonRecord{
		{Name: "Somchai Vongsa", BirthPrefix: "900412"},
		{Name: "Khamla Vongsa", BirthPrefix: "920725"},
	}
}

func TestFamilyTransferRequiresMatchingEvidence(t *testing.T) {
	env := newTransferEnv(t)
	env.verifier.records = []external.PersonRecord{
		{Name: "Somchai Vongsa", BirthPrefix: "900412"},
		// The recipient is missing from the document.
	}

	_, err := env.svc.Request(context.Background(), 1, &models.RequestTransferRequest{
		ReservationNumber: "R-1",
		RecipientID:       2,
		Relation:          models.RelationFamily,
		EvidenceRef:       "doc-1",
	})
	assert.ErrorIs(t, err, apperrors.ErrFamilyMatchFailed)

	// No handshake row exists after a failed match.
	assert.Empty(t, env.transfers.transfers)
}

func TestFamilyTransferCreated(t *testing.T) {
	env := newTransferEnv(t)
	env.familyEvidence()

	resp, err := env.svc.Request(context.Background(), 1, &models.RequestTransferRequest{
		ReservationNumber: "R-1",
		RecipientID:       2,
		Relation:          models.RelationFamily,
		EvidenceRef:       "doc-1",
	})
	require.NoError(t, err)

	transfer, _ := env.transfers.GetByID(context.Background(), resp.TransferID)
	require.NotNil(t, transfer)
	assert.Equal(t, models.TransferRequested, transfer.Status)

	assert.NotEmpty(t, env.pusher.onChannel(push.AccountChannel(2)))
	assert.Len(t, env.publisher.bySubject(models.EventTransferRequested), 1)
}

func TestFriendTransferDeferredWithoutWallet(t *testing.T) {
	env := newTransferEnv(t)

	_, err := env.svc.Request(context.Background(), 1, &models.RequestTransferRequest{
		ReservationNumber: "R-1",
		RecipientID:       3,
		Relation:          models.RelationFriend,
	})
	assert.ErrorIs(t, err, apperrors.ErrNoWalletAccount)

	assert.Empty(t, env.transfers.transfers)
	intents, _ := env.transfers.OpenIntents(context.Background(), nil)
	assert.Len(t, intents, 1)
}

func TestFriendTransferWithWallet(t *testing.T) {
	env := newTransferEnv(t)
	env.wallet.accounts[3] = true

	resp, err := env.svc.Request(context.Background(), 1, &models.RequestTransferRequest{
		ReservationNumber: "R-1",
		RecipientID:       3,
		Relation:          models.RelationFriend,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.TransferID)
}

func TestRequestTransferNotOwner(t *testing.T) {
	env := newTransferEnv(t)

	_, err := env.svc.Request(context.Background(), 2, &models.RequestTransferRequest{
		ReservationNumber: "R-1",
		RecipientID:       3,
		Relation:          models.RelationFriend,
	})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestRejectIsFinal(t *testing.T) {
	env := newTransferEnv(t)
	env.familyEvidence()

	resp, err := env.svc.Request(context.Background(), 1, &models.RequestTransferRequest{
		ReservationNumber: "R-1",
		RecipientID:       2,
		Relation:          models.RelationFamily,
		EvidenceRef:       "doc-1",
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.Respond(context.Background(), 2, &models.RespondTransferRequest{
		TransferID: resp.TransferID,
		Decision:   models.TransferRejected,
	}))

	err = env.svc.Respond(context.Background(), 2, &models.RespondTransferRequest{
		TransferID: resp.TransferID,
		Decision:   models.TransferRejected,
	})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyResolved)

	// No fee was ever charged.
	assert.Equal(t, 0, env.wallet.debits)
}

func TestApproveChargesFeeThenMovesOwnership(t *testing.T) {
	env := newTransferEnv(t)
	env.familyEvidence()

	resp, err := env.svc.Request(context.Background(), 1, &models.RequestTransferRequest{
		ReservationNumber: "R-1",
		RecipientID:       2,
		Relation:          models.RelationFamily,
		EvidenceRef:       "doc-1",
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.Respond(context.Background(), 2, &models.RespondTransferRequest{
		TransferID: resp.TransferID,
		Decision:   models.TransferApproved,
		PIN:        "1234",
	}))

	assert.Equal(t, 1, env.wallet.orders)
	assert.Equal(t, 1, env.wallet.debits)

	transfer, _ := env.transfers.GetByID(context.Background(), resp.TransferID)
	assert.Equal(t, models.TransferApproved, transfer.Status)
	require.NotNil(t, transfer.FeePaymentID)

	order, _ := env.payments.GetByID(context.Background(), *transfer.FeePaymentID)
	require.NotNil(t, order)
	assert.Equal(t, models.PaymentConfirmed, order.Status)
	assert.Equal(t, "5000.00", order.Amount.StringFixed(2))
	assert.Equal(t, "R-1", order.ReservationNumber)

	assert.Equal(t, int64(2), env.transfers.owners["R-1"])
	assert.Len(t, env.publisher.bySubject(models.EventTransferResolved), 1)
}

func TestApproveFeeFailureLeavesTransferOpen(t *testing.T) {
	env := newTransferEnv(t)
	env.familyEvidence()
	env.wallet.debitErrs = []error{apperrors.ErrPaymentFailed}

	resp, err := env.svc.Request(context.Background(), 1, &models.RequestTransferRequest{
		ReservationNumber: "R-1",
		RecipientID:       2,
		Relation:          models.RelationFamily,
		EvidenceRef:       "doc-1",
	})
	require.NoError(t, err)

	err = env.svc.Respond(context.Background(), 2, &models.RespondTransferRequest{
		TransferID: resp.TransferID,
		Decision:   models.TransferApproved,
		PIN:        "0000",
	})
	assert.ErrorIs(t, err, apperrors.ErrPaymentFailed)

	// Still open for another attempt.
	transfer, _ := env.transfers.GetByID(context.Background(), resp.TransferID)
	assert.Equal(t, models.TransferRequested, transfer.Status)
	assert.Empty(t, env.transfers.owners)
}

func TestRespondWrongRecipient(t *testing.T) {
	env := newTransferEnv(t)
	env.familyEvidence()

	resp, err := env.svc.Request(context.Background(), 1, &models.RequestTransferRequest{
		ReservationNumber: "R-1",
		RecipientID:       2,
		Relation:          models.RelationFamily,
		EvidenceRef:       "doc-1",
	})
	require.NoError(t, err)

	err = env.svc.Respond(context.Background(), 3, &models.RespondTransferRequest{
		TransferID: resp.TransferID,
		Decision:   models.TransferRejected,
	})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestResolveIntentsForOpensHandshake(t *testing.T) {
	env := newTransferEnv(t)

	_, err := env.svc.Request(context.Background(), 1, &models.RequestTransferRequest{
		ReservationNumber: "R-1",
		RecipientID:       3,
		Relation:          models.RelationFriend,
	})
	require.ErrorIs(t, err, apperrors.ErrNoWalletAccount)

	env.wallet.accounts[3] = true
	require.NoError(t, env.svc.ResolveIntentsFor(context.Background(), 3))

	inbox, err := env.svc.Inbox(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.RelationFriend, inbox[0].Relation)
	assert.Equal(t, models.TransferRequested, inbox[0].Status)

	// The intent is claimed; a poll pass does not duplicate the handshake.
	require.NoError(t, env.svc.ResolveOpenIntents(context.Background()))
	inbox, _ = env.svc.Inbox(context.Background(), 3)
	assert.Len(t, inbox, 1)
}
