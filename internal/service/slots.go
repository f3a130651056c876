package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"hornbill/internal/apperrors"
	"hornbill/internal/models"
)

// SlotService derives the bookable (date, time) pairs for an event and
// serves the slot query consumed before joining the queue.
type SlotService struct {
	catalog CatalogStore
	ledger  InventoryLedger
	now     func() time.Time
}

func NewSlotService(catalog CatalogStore, ledger InventoryLedger) *SlotService {
	return &SlotService{
		catalog: catalog,
		ledger:  ledger,
		now:     time.Now,
	}
}

// Query returns the available dates and times plus pricing for an event.
func (s *SlotService) Query(ctx context.Context, eventID int64) (*models.SlotQueryResponse, error) {
	event, err := s.catalog.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, apperrors.ErrNotFound
	}

	slots, err := s.derive(ctx, event)
	if err != nil {
		return nil, err
	}

	timesByDate := make(map[string][]string)
	var dates []string
	for _, slot := range slots {
		date := slot.Format("2006-01-02")
		if _, seen := timesByDate[date]; !seen {
			dates = append(dates, date)
		}
		timesByDate[date] = append(timesByDate[date], slot.Format("15:04"))
	}
	sort.Strings(dates)

	return &models.SlotQueryResponse{
		AvailableDates: dates,
		TimesByDate:    timesByDate,
		UnitPrice:      event.UnitPrice.StringFixed(2),
		MaxPurchase:    event.MaxPurchase,
	}, nil
}

// Contains reports whether showtime is one of the event's derived slots.
// SelectSlot refuses anything outside this set.
func (s *SlotService) Contains(ctx context.Context, eventID int64, showtime time.Time) (bool, error) {
	event, err := s.catalog.GetByID(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return false, apperrors.ErrNotFound
	}

	slots, err := s.derive(ctx, event)
	if err != nil {
		return false, err
	}

	target := showtime.UTC()
	for _, slot := range slots {
		if slot.Equal(target) {
			return true, nil
		}
	}
	return false, nil
}

// derive computes the slot set from one of two sources. Explicit instants,
// when any exist, take precedence over the recurring weekly template
// entirely; the two sources are never merged. Past slots are dropped,
// duplicates collapsed, times sorted ascending by minute-of-day.
func (s *SlotService) derive(ctx context.Context, event *models.Event) ([]time.Time, error) {
	today := s.today()

	explicit, err := s.catalog.ExplicitShowtimes(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get showtimes: %w", err)
	}

	var raw []time.Time
	if len(explicit) > 0 {
		raw = explicit
	} else {
		weekly, err := s.catalog.WeeklySlots(ctx, event.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get weekly slots: %w", err)
		}
		raw = expandWeekly(weekly, event.RangeFrom, event.RangeTo)
	}

	seen := make(map[int64]struct{})
	var slots []time.Time
	for _, t := range raw {
		t = t.UTC()
		if t.Before(today) {
			continue
		}
		if _, dup := seen[t.Unix()]; dup {
			continue
		}
		seen[t.Unix()] = struct{}{}
		slots = append(slots, t)
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots, nil
}

func (s *SlotService) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// expandWeekly walks the inclusive [from, to] calendar range and emits one
// instant per day matching a template entry.
func expandWeekly(template []models.WeeklySlot, from, to time.Time) []time.Time {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)

	var out []time.Time
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		for _, slot := range template {
			if day.Weekday() != slot.Weekday {
				continue
			}
			out = append(out, day.Add(time.Duration(slot.MinuteOfDay)*time.Minute))
		}
	}
	return out
}
