package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hornbill/internal/apperrors"
	"hornbill/internal/config"
	"hornbill/internal/models"
)

var reservationShow = time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC)

type reservationEnv struct {
	svc       *ReservationService
	catalog   *memCatalog
	ledger    *memLedger
	holds     *memHolds
	challenge *memChallenge
	publisher *memPublisher
	pusher    *memPusher
}

func newReservationEnv(t *testing.T, capacity int, holdTTL time.Duration) *reservationEnv {
	t.Helper()

	catalog := newMemCatalog()
	catalog.events[1] = &models.Event{
		ID:           1,
		UnitPrice:    decimal.NewFromInt(100000),
		MaxPurchase:  4,
		SalesOpenAt:  fixedNow().Add(-time.Hour),
		SalesCloseAt: fixedNow().Add(24 * time.Hour),
	}
	catalog.explicit[1] = []time.Time{reservationShow}

	ledger := newMemLedger()
	ledger.set(1, reservationShow, capacity)

	holds := newMemHolds()
	challenge := newMemChallenge()
	publisher := &memPublisher{}
	pusher := &memPusher{}

	slots := NewSlotService(catalog, ledger)
	slots.now = fixedNow

	challenges := NewChallengeService(challenge, 3*time.Minute, 3*time.Minute)

	svc := NewReservationService(
		catalog, ledger, holds, openGate{}, challenges, slots,
		publisher, pusher,
		config.ReservationConfig{HoldTTL: holdTTL, Currency: "LAK", SellerID: 1},
	)

	return &reservationEnv{
		svc:       svc,
		catalog:   catalog,
		ledger:    ledger,
		holds:     holds,
		challenge: challenge,
		publisher: publisher,
		pusher:    pusher,
	}
}

// passChallenge marks the session's challenge as solved.
func (e *reservationEnv) passChallenge(sessionID string) {
	e.challenge.mu.Lock()
	defer e.challenge.mu.Unlock()
	e.challenge.passed[sessionID] = true
}

func (e *reservationEnv) selectSlot(t *testing.T, accountID int64, count int) *models.SelectSlotResponse {
	t.Helper()
	sessionID := fmt.Sprintf("sess-%d", accountID)
	e.passChallenge(sessionID)

	resp, err := e.svc.SelectSlot(context.Background(), accountID, &models.SelectSlotRequest{
		SessionID:   sessionID,
		EventID:     1,
		Showtime:    reservationShow,
		TicketCount: count,
	})
	require.NoError(t, err)
	return resp
}

func TestSelectSlotCreatesHold(t *testing.T) {
	env := newReservationEnv(t, 10, 7*time.Minute)

	resp := env.selectSlot(t, 1, 2)
	assert.NotEmpty(t, resp.ReservationNumber)

	avail, _ := env.ledger.Available(context.Background(), 1, reservationShow)
	assert.Equal(t, 8, avail)

	hold, err := env.holds.GetByNumber(context.Background(), resp.ReservationNumber)
	require.NoError(t, err)
	require.NotNil(t, hold)
	assert.Equal(t, models.PhaseSlotSelected, hold.Phase)
	assert.True(t, decimal.NewFromInt(200000).Equal(hold.TotalAmount))

	assert.Len(t, env.publisher.bySubject(models.EventHoldCreated), 1)
}

func TestSelectSlotRequiresChallenge(t *testing.T) {
	env := newReservationEnv(t, 10, 7*time.Minute)

	_, err := env.svc.SelectSlot(context.Background(), 1, &models.SelectSlotRequest{
		SessionID:   "sess-unsolved",
		EventID:     1,
		Showtime:    reservationShow,
		TicketCount: 1,
	})
	assert.ErrorIs(t, err, apperrors.ErrChallengeRequired)
}

func TestSelectSlotOverPurchaseLimit(t *testing.T) {
	env := newReservationEnv(t, 10, 7*time.Minute)
	env.passChallenge("sess-1")

	_, err := env.svc.SelectSlot(context.Background(), 1, &models.SelectSlotRequest{
		SessionID:   "sess-1",
		EventID:     1,
		Showtime:    reservationShow,
		TicketCount: 5,
	})
	assert.ErrorIs(t, err, apperrors.ErrLimitExceeded)

	avail, _ := env.ledger.Available(context.Background(), 1, reservationShow)
	assert.Equal(t, 10, avail)
}

func TestSelectSlotUnknownShowtime(t *testing.T) {
	env := newReservationEnv(t, 10, 7*time.Minute)
	env.passChallenge("sess-1")

	_, err := env.svc.SelectSlot(context.Background(), 1, &models.SelectSlotRequest{
		SessionID:   "sess-1",
		EventID:     1,
		Showtime:    reservationShow.Add(time.Hour),
		TicketCount: 1,
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConcurrentSelectSlotNeverOversells(t *testing.T) {
	const capacity = 5
	env := newReservationEnv(t, capacity, 7*time.Minute)

	var wg sync.WaitGroup
	results := make([]error, 20)
	for i := 0; i < 20; i++ {
		accountID := int64(i + 1)
		sessionID := fmt.Sprintf("sess-%d", accountID)
		env.passChallenge(sessionID)

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.svc.SelectSlot(context.Background(), int64(i+1), &models.SelectSlotRequest{
				SessionID:   fmt.Sprintf("sess-%d", i+1),
				EventID:     1,
				Showtime:    reservationShow,
				TicketCount: 1,
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	var succeeded, soldOut int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperrors.ErrSoldOut):
			soldOut++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, capacity, succeeded)
	assert.Equal(t, 20-capacity, soldOut)

	avail, _ := env.ledger.Available(context.Background(), 1, reservationShow)
	assert.Equal(t, 0, avail)
}

func TestSelectDeliveryOverwrites(t *testing.T) {
	env := newReservationEnv(t, 10, 7*time.Minute)
	resp := env.selectSlot(t, 1, 1)

	require.NoError(t, env.svc.SelectDelivery(context.Background(), 1, &models.SelectDeliveryRequest{
		ReservationNumber: resp.ReservationNumber,
		Method:            models.DeliveryPhysical,
		Address:           "12 Lane Xang Ave, Vientiane",
	}))

	require.NoError(t, env.svc.SelectDelivery(context.Background(), 1, &models.SelectDeliveryRequest{
		ReservationNumber: resp.ReservationNumber,
		Method:            models.DeliveryDigital,
	}))

	hold, _ := env.holds.GetByNumber(context.Background(), resp.ReservationNumber)
	require.NotNil(t, hold.DeliveryMethod)
	assert.Equal(t, models.DeliveryDigital, *hold.DeliveryMethod)
}

func TestSelectDeliveryPhysicalNeedsAddress(t *testing.T) {
	env := newReservationEnv(t, 10, 7*time.Minute)
	resp := env.selectSlot(t, 1, 1)

	err := env.svc.SelectDelivery(context.Background(), 1, &models.SelectDeliveryRequest{
		ReservationNumber: resp.ReservationNumber,
		Method:            models.DeliveryPhysical,
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidPhase)
}

func TestSelectDeliveryOnExpiredHold(t *testing.T) {
	env := newReservationEnv(t, 10, -time.Minute)
	resp := env.selectSlot(t, 1, 1)

	err := env.svc.SelectDelivery(context.Background(), 1, &models.SelectDeliveryRequest{
		ReservationNumber: resp.ReservationNumber,
		Method:            models.DeliveryDigital,
	})
	assert.ErrorIs(t, err, apperrors.ErrHoldExpired)
}

func TestSelectDeliveryWrongOwner(t *testing.T) {
	env := newReservationEnv(t, 10, 7*time.Minute)
	resp := env.selectSlot(t, 1, 1)

	err := env.svc.SelectDelivery(context.Background(), 2, &models.SelectDeliveryRequest{
		ReservationNumber: resp.ReservationNumber,
		Method:            models.DeliveryDigital,
	})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestFinalizeIdempotentReplay(t *testing.T) {
	env := newReservationEnv(t, 10, 7*time.Minute)
	resp := env.selectSlot(t, 1, 2)

	require.NoError(t, env.svc.SelectDelivery(context.Background(), 1, &models.SelectDeliveryRequest{
		ReservationNumber: resp.ReservationNumber,
		Method:            models.DeliveryDigital,
	}))
	ok, err := env.holds.MarkPaymentPending(context.Background(), resp.ReservationNumber)
	require.NoError(t, err)
	require.True(t, ok)

	first, err := env.svc.Finalize(context.Background(), 1, resp.ReservationNumber, "key-1")
	require.NoError(t, err)
	assert.Len(t, first.Tickets, 2)

	replay, err := env.svc.Finalize(context.Background(), 1, resp.ReservationNumber, "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.Tickets, replay.Tickets)

	// One issuance event despite two calls.
	assert.Len(t, env.publisher.bySubject(models.EventTicketsIssued), 1)
}

func TestFinalizeWithDifferentKey(t *testing.T) {
	env := newReservationEnv(t, 10, 7*time.Minute)
	resp := env.selectSlot(t, 1, 1)

	require.NoError(t, env.svc.SelectDelivery(context.Background(), 1, &models.SelectDeliveryRequest{
		ReservationNumber: resp.ReservationNumber,
		Method:            models.DeliveryDigital,
	}))
	ok, _ := env.holds.MarkPaymentPending(context.Background(), resp.ReservationNumber)
	require.True(t, ok)

	_, err := env.svc.Finalize(context.Background(), 1, resp.ReservationNumber, "key-1")
	require.NoError(t, err)

	_, err = env.svc.Finalize(context.Background(), 1, resp.ReservationNumber, "key-2")
	assert.ErrorIs(t, err, apperrors.ErrInvalidPhase)
}

func TestFinalizeBeforePayment(t *testing.T) {
	env := newReservationEnv(t, 10, 7*time.Minute)
	resp := env.selectSlot(t, 1, 1)

	_, err := env.svc.Finalize(context.Background(), 1, resp.ReservationNumber, "key-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidPhase)
}

func TestReleaseReturnsCapacityOnce(t *testing.T) {
	env := newReservationEnv(t, 10, 7*time.Minute)
	resp := env.selectSlot(t, 1, 3)

	avail, _ := env.ledger.Available(context.Background(), 1, reservationShow)
	require.Equal(t, 7, avail)

	require.NoError(t, env.svc.Release(context.Background(), 1, resp.ReservationNumber))
	require.NoError(t, env.svc.Release(context.Background(), 1, resp.ReservationNumber))

	avail, _ = env.ledger.Available(context.Background(), 1, reservationShow)
	assert.Equal(t, 10, avail)
}

func TestExpireSweepReleasesOverdueHolds(t *testing.T) {
	env := newReservationEnv(t, 10, -time.Minute)
	resp := env.selectSlot(t, 1, 2)

	n, err := env.svc.ExpireSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	avail, _ := env.ledger.Available(context.Background(), 1, reservationShow)
	assert.Equal(t, 10, avail)

	hold, _ := env.holds.GetByNumber(context.Background(), resp.ReservationNumber)
	assert.Equal(t, models.PhaseExpired, hold.Phase)

	assert.Len(t, env.publisher.bySubject(models.EventHoldExpired), 1)

	// A second sweep finds nothing.
	n, err = env.svc.ExpireSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// Reservation numbers are short prefixed strings, not UUIDs; the
// reservation_holds column is VARCHAR(20).
func TestReservationNumberFitsColumn(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		num := newReservationNumber()
		assert.Regexp(t, `^R-[0-9A-F]{8}-[0-9A-F]{4}$`, num)
		assert.LessOrEqual(t, len(num), 20)
		assert.False(t, seen[num], "reservation numbers must not repeat")
		seen[num] = true
	}
}
