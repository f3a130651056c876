package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hornbill/internal/apperrors"
	"hornbill/internal/models"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) // a Monday
}

func newSlotEnv() (*SlotService, *memCatalog) {
	catalog := newMemCatalog()
	svc := NewSlotService(catalog, newMemLedger())
	svc.now = fixedNow
	return svc, catalog
}

func TestQuerySlotsExplicitTakesPrecedence(t *testing.T) {
	svc, catalog := newSlotEnv()

	catalog.events[1] = &models.Event{
		ID:          1,
		UnitPrice:   decimal.NewFromInt(150000),
		MaxPurchase: 4,
		RangeFrom:   fixedNow(),
		RangeTo:     fixedNow().AddDate(0, 0, 14),
	}
	catalog.explicit[1] = []time.Time{
		time.Date(2026, 3, 5, 19, 30, 0, 0, time.UTC),
		time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC),
	}
	// A weekly template exists too; explicit instants must win outright.
	catalog.weekly[1] = []models.WeeklySlot{
		{Weekday: time.Saturday, MinuteOfDay: 20 * 60},
	}

	resp, err := svc.Query(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-03-04", "2026-03-05"}, resp.AvailableDates)
	assert.Equal(t, []string{"18:00"}, resp.TimesByDate["2026-03-04"])
	assert.Equal(t, []string{"19:30"}, resp.TimesByDate["2026-03-05"])
	assert.NotContains(t, resp.TimesByDate, "2026-03-07")
	assert.Equal(t, "150000.00", resp.UnitPrice)
	assert.Equal(t, 4, resp.MaxPurchase)
}

func TestQuerySlotsWeeklyTemplateExpansion(t *testing.T) {
	svc, catalog := newSlotEnv()

	catalog.events[2] = &models.Event{
		ID:        2,
		UnitPrice: decimal.NewFromInt(90000),
		RangeFrom: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		RangeTo:   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
	}
	catalog.weekly[2] = []models.WeeklySlot{
		{Weekday: time.Friday, MinuteOfDay: 19 * 60},
		{Weekday: time.Saturday, MinuteOfDay: 14 * 60},
	}

	resp, err := svc.Query(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-03-06", "2026-03-07", "2026-03-13", "2026-03-14"}, resp.AvailableDates)
	assert.Equal(t, []string{"19:00"}, resp.TimesByDate["2026-03-06"])
	assert.Equal(t, []string{"14:00"}, resp.TimesByDate["2026-03-07"])
}

func TestQuerySlotsDropsPastAndDuplicates(t *testing.T) {
	svc, catalog := newSlotEnv()

	future := time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC)
	catalog.events[3] = &models.Event{ID: 3, UnitPrice: decimal.NewFromInt(1000)}
	catalog.explicit[3] = []time.Time{
		time.Date(2026, 2, 20, 19, 0, 0, 0, time.UTC), // already past
		future,
		future, // duplicate
	}

	resp, err := svc.Query(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-03-10"}, resp.AvailableDates)
	assert.Equal(t, []string{"19:00"}, resp.TimesByDate["2026-03-10"])
}

func TestQuerySlotsUnknownEvent(t *testing.T) {
	svc, _ := newSlotEnv()

	_, err := svc.Query(context.Background(), 99)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestContains(t *testing.T) {
	svc, catalog := newSlotEnv()

	show := time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC)
	catalog.events[4] = &models.Event{ID: 4, UnitPrice: decimal.NewFromInt(1000)}
	catalog.explicit[4] = []time.Time{show}

	ok, err := svc.Contains(context.Background(), 4, show)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Contains(context.Background(), 4, show.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}
