package repository

import (
	"context"
	"database/sql"
	"time"

	"hornbill/internal/apperrors"
	"hornbill/internal/database"
)

// InventoryRepository is the single serialized mutation path for the
// remaining-capacity counter. Every claim is an atomic compare-and-decrement:
// two concurrent claims for the last unit cannot both succeed.
type InventoryRepository struct {
	db *database.DB
}

func NewInventoryRepository(db *database.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// Decrement claims n units for one slot. Returns apperrors.ErrSoldOut when
// fewer than n units remain, apperrors.ErrNotFound when the slot has no
// inventory row at all.
func (r *InventoryRepository) Decrement(ctx context.Context, eventID int64, showtime time.Time, n int) error {
	query := `
		UPDATE slot_inventory
		SET available = available - $3
		WHERE event_id = $1 AND showtime = $2 AND available >= $3`

	result, err := r.db.ExecContext(ctx, query, eventID, showtime, n)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx,
		`SELECT 1 FROM slot_inventory WHERE event_id = $1 AND showtime = $2`,
		eventID, showtime).Scan(&exists)
	if err == sql.ErrNoRows {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return err
	}
	return apperrors.ErrSoldOut
}

// Release returns n units to the slot, clamped at capacity.
func (r *InventoryRepository) Release(ctx context.Context, eventID int64, showtime time.Time, n int) error {
	query := `
		UPDATE slot_inventory
		SET available = LEAST(capacity, available + $3)
		WHERE event_id = $1 AND showtime = $2`

	_, err := r.db.ExecContext(ctx, query, eventID, showtime, n)
	return err
}

// Available reads the remaining capacity. This read path does not take the
// writer lock and may be served from a replica.
func (r *InventoryRepository) Available(ctx context.Context, eventID int64, showtime time.Time) (int, error) {
	var available int
	err := r.db.QueryRowContext(ctx,
		`SELECT available FROM slot_inventory WHERE event_id = $1 AND showtime = $2`,
		eventID, showtime).Scan(&available)

	if err == sql.ErrNoRows {
		return 0, apperrors.ErrNotFound
	}
	return available, err
}
