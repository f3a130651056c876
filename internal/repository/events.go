package repository

import (
	"context"
	"database/sql"
	"time"

	"hornbill/internal/database"
	"hornbill/internal/models"
)

type EventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	event := &models.Event{}
	query := `
		SELECT id, title, unit_price, max_purchase, sales_open_at, sales_close_at,
		       range_from, range_to, created_at
		FROM events
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.Title,
		&event.UnitPrice,
		&event.MaxPurchase,
		&event.SalesOpenAt,
		&event.SalesCloseAt,
		&event.RangeFrom,
		&event.RangeTo,
		&event.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return event, err
}

// ExplicitShowtimes returns the event's explicit showtime instants, sorted
// ascending. When any exist they take precedence over the weekly template.
func (r *EventRepository) ExplicitShowtimes(ctx context.Context, eventID int64) ([]time.Time, error) {
	query := `
		SELECT showtime
		FROM event_showtimes
		WHERE event_id = $1
		ORDER BY showtime`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var showtimes []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		showtimes = append(showtimes, t)
	}

	return showtimes, rows.Err()
}

// WeeklySlots returns the recurring weekday+time template entries.
func (r *EventRepository) WeeklySlots(ctx context.Context, eventID int64) ([]models.WeeklySlot, error) {
	query := `
		SELECT weekday, minute_of_day
		FROM event_weekly_slots
		WHERE event_id = $1
		ORDER BY weekday, minute_of_day`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []models.WeeklySlot
	for rows.Next() {
		var weekday int
		var minute int
		if err := rows.Scan(&weekday, &minute); err != nil {
			return nil, err
		}
		slots = append(slots, models.WeeklySlot{
			Weekday:     time.Weekday(weekday),
			MinuteOfDay: minute,
		})
	}

	return slots, rows.Err()
}
