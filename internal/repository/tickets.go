package repository

import (
	"context"

	"hornbill/internal/database"
	"hornbill/internal/models"
)

type TicketRepository struct {
	db *database.DB
}

func NewTicketRepository(db *database.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

func (r *TicketRepository) ListByOwner(ctx context.Context, ownerID int64) ([]models.Ticket, error) {
	query := `
		SELECT id, reservation_number, event_id, showtime, owner_id, token, issued_at
		FROM tickets
		WHERE owner_id = $1
		ORDER BY issued_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
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

func (r *TicketRepository) ListByReservation(ctx context.Context, reservationNumber string) ([]models.Ticket, error) {
	query := `
		SELECT id, reservation_number, event_id, showtime, owner_id, token, issued_at
		FROM tickets
		WHERE reservation_number = $1
		ORDER BY issued_at`

	rows, err := r.db.QueryContext(ctx, query, reservationNumber)
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
