package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"hornbill/internal/apperrors"
	"hornbill/internal/database"
	"hornbill/internal/models"
)

type ReservationRepository struct {
	db *database.DB
}

func NewReservationRepository(db *database.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Create inserts a new hold. A partial unique index guarantees at most one
// active hold per (account, event, showtime); a violation maps to
// apperrors.ErrHoldExists.
func (r *ReservationRepository) Create(ctx context.Context, hold *models.ReservationHold) error {
	query := `
		INSERT INTO reservation_holds
			(reservation_number, event_id, showtime, account_id, ticket_count,
			 phase, total_amount, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		hold.ReservationNumber,
		hold.EventID,
		hold.Showtime,
		hold.AccountID,
		hold.TicketCount,
		hold.Phase,
		hold.TotalAmount,
		hold.ExpiresAt,
	).Scan(&hold.CreatedAt, &hold.UpdatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return apperrors.ErrHoldExists
	}
	return err
}

func (r *ReservationRepository) GetByNumber(ctx context.Context, reservationNumber string) (*models.ReservationHold, error) {
	hold := &models.ReservationHold{}
	query := `
		SELECT reservation_number, event_id, showtime, account_id, ticket_count,
		       phase, delivery_method, delivery_address, total_amount,
		       idempotency_key, created_at, expires_at, updated_at
		FROM reservation_holds
		WHERE reservation_number = $1`

	err := r.db.QueryRowContext(ctx, query, reservationNumber).Scan(
		&hold.ReservationNumber,
		&hold.EventID,
		&hold.Showtime,
		&hold.AccountID,
		&hold.TicketCount,
		&hold.Phase,
		&hold.DeliveryMethod,
		&hold.DeliveryAddress,
		&hold.TotalAmount,
		&hold.IdempotencyKey,
		&hold.CreatedAt,
		&hold.ExpiresAt,
		&hold.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return hold, err
}

// SaveDelivery persists the delivery selection immediately and moves the
// hold to DELIVERY_SELECTED. Overwrites are allowed while the hold has not
// gone past delivery selection.
func (r *ReservationRepository) SaveDelivery(ctx context.Context, reservationNumber, method string, address *string) (bool, error) {
	query := `
		UPDATE reservation_holds
		SET delivery_method = $2, delivery_address = $3,
		    phase = $4, updated_at = NOW()
		WHERE reservation_number = $1
		  AND phase IN ($5, $4)
		  AND expires_at > NOW()`

	result, err := r.db.ExecContext(ctx, query,
		reservationNumber, method, address,
		models.PhaseDeliverySelected, models.PhaseSlotSelected)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	return affected > 0, err
}

// MarkPaymentPending moves the hold into its terminal-pending phase when a
// payment order is registered.
func (r *ReservationRepository) MarkPaymentPending(ctx context.Context, reservationNumber string) (bool, error) {
	query := `
		UPDATE reservation_holds
		SET phase = $2, updated_at = NOW()
		WHERE reservation_number = $1
		  AND phase IN ($2, $3)
		  AND expires_at > NOW()`

	result, err := r.db.ExecContext(ctx, query,
		reservationNumber, models.PhasePaymentPending, models.PhaseDeliverySelected)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	return affected > 0, err
}

// Finalize transitions the hold to ISSUED and creates its tickets in one
// transaction. Retrying with the same idempotency key returns the tickets
// issued by the first call and does not issue again.
func (r *ReservationRepository) Finalize(ctx context.Context, reservationNumber, idempotencyKey string) ([]models.Ticket, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	hold := &models.ReservationHold{}
	query := `
		SELECT reservation_number, event_id, showtime, account_id, ticket_count,
		       phase, idempotency_key, expires_at
		FROM reservation_holds
		WHERE reservation_number = $1
		FOR UPDATE`

	err = tx.QueryRowContext(ctx, query, reservationNumber).Scan(
		&hold.ReservationNumber,
		&hold.EventID,
		&hold.Showtime,
		&hold.AccountID,
		&hold.TicketCount,
		&hold.Phase,
		&hold.IdempotencyKey,
		&hold.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, false, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, false, err
	}

	if hold.Phase == models.PhaseIssued {
		if hold.IdempotencyKey != nil && *hold.IdempotencyKey == idempotencyKey {
			tickets, err := ticketsByReservationTx(ctx, tx, reservationNumber)
			if err != nil {
				return nil, false, err
			}
			return tickets, true, tx.Commit()
		}
		return nil, false, apperrors.ErrInvalidPhase
	}

	if hold.Phase != models.PhasePaymentPending {
		return nil, false, apperrors.ErrInvalidPhase
	}
	if time.Now().After(hold.ExpiresAt) {
		return nil, false, apperrors.ErrHoldExpired
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE reservation_holds
		SET phase = $2, idempotency_key = $3, updated_at = NOW()
		WHERE reservation_number = $1`,
		reservationNumber, models.PhaseIssued, idempotencyKey)
	if err != nil {
		return nil, false, err
	}

	tickets := make([]models.Ticket, 0, hold.TicketCount)
	for i := 0; i < hold.TicketCount; i++ {
		ticket := models.Ticket{
			ID:                uuid.New().String(),
			ReservationNumber: reservationNumber,
			EventID:           hold.EventID,
			Showtime:          hold.Showtime,
			OwnerID:           hold.AccountID,
			Token:             uuid.New().String(),
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO tickets (id, reservation_number, event_id, showtime, owner_id, token)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING issued_at`,
			ticket.ID, ticket.ReservationNumber, ticket.EventID,
			ticket.Showtime, ticket.OwnerID, ticket.Token,
		).Scan(&ticket.IssuedAt)
		if err != nil {
			return nil, false, err
		}

		tickets = append(tickets, ticket)
	}

	return tickets, false, tx.Commit()
}

// Release moves an active hold to the given terminal phase. Returns the
// hold when this call performed the transition; nil when the hold was
// already terminal, so capacity is returned exactly once.
func (r *ReservationRepository) Release(ctx context.Context, reservationNumber, toPhase string) (*models.ReservationHold, error) {
	hold := &models.ReservationHold{}
	query := `
		UPDATE reservation_holds
		SET phase = $2, updated_at = NOW()
		WHERE reservation_number = $1
		  AND phase IN ($3, $4, $5)
		RETURNING reservation_number, event_id, showtime, account_id, ticket_count, phase`

	err := r.db.QueryRowContext(ctx, query,
		reservationNumber, toPhase,
		models.PhaseSlotSelected, models.PhaseDeliverySelected, models.PhasePaymentPending,
	).Scan(
		&hold.ReservationNumber,
		&hold.EventID,
		&hold.Showtime,
		&hold.AccountID,
		&hold.TicketCount,
		&hold.Phase,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// ExpireDue claims every hold whose deadline has passed. The UPDATE is the
// claim: a hold appears in the result of exactly one sweep.
func (r *ReservationRepository) ExpireDue(ctx context.Context, now time.Time) ([]models.ReservationHold, error) {
	query := `
		UPDATE reservation_holds
		SET phase = $2, updated_at = NOW()
		WHERE expires_at < $1
		  AND phase IN ($3, $4, $5)
		RETURNING reservation_number, event_id, showtime, account_id, ticket_count, phase`

	rows, err := r.db.QueryContext(ctx, query,
		now, models.PhaseExpired,
		models.PhaseSlotSelected, models.PhaseDeliverySelected, models.PhasePaymentPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holds []models.ReservationHold
	for rows.Next() {
		var hold models.ReservationHold
		err := rows.Scan(
			&hold.ReservationNumber,
			&hold.EventID,
			&hold.Showtime,
			&hold.AccountID,
			&hold.TicketCount,
			&hold.Phase,
		)
		if err != nil {
			return nil, err
		}
		holds = append(holds, hold)
	}

	return holds, rows.Err()
}

func ticketsByReservationTx(ctx context.Context, tx *sql.Tx, reservationNumber string) ([]models.Ticket, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, reservation_number, event_id, showtime, owner_id, token, issued_at
		FROM tickets
		WHERE reservation_number = $1
		ORDER BY issued_at`,
		reservationNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		var t models.Ticket
		err := rows.Scan(&t.ID, &t.ReservationNumber, &t.EventID, &t.Showtime,
			&t.OwnerID, &t.Token, &t.IssuedAt)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}

	return tickets, rows.Err()
}
