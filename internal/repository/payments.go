package repository

import (
	"context"
	"database/sql"

	"hornbill/internal/database"
	"hornbill/internal/models"
)

type PaymentRepository struct {
	db *database.DB
}

func NewPaymentRepository(db *database.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create registers a payment order before any rail is invoked. PaymentID is
// the client-generated idempotency token: re-sending the same order is a
// no-op and the stored row wins.
func (r *PaymentRepository) Create(ctx context.Context, order *models.PaymentOrder) error {
	query := `
		INSERT INTO payment_orders
			(payment_id, reservation_number, buyer_id, seller_id, amount, currency, method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (payment_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		order.PaymentID,
		order.ReservationNumber,
		order.BuyerID,
		order.SellerID,
		order.Amount,
		order.Currency,
		order.Method,
		order.Status,
	)
	return err
}

func (r *PaymentRepository) GetByID(ctx context.Context, paymentID string) (*models.PaymentOrder, error) {
	order := &models.PaymentOrder{}
	query := `
		SELECT payment_id, reservation_number, buyer_id, seller_id, amount,
		       currency, method, status, created_at, updated_at
		FROM payment_orders
		WHERE payment_id = $1`

	err := r.db.QueryRowContext(ctx, query, paymentID).Scan(
		&order.PaymentID,
		&order.ReservationNumber,
		&order.BuyerID,
		&order.SellerID,
		&order.Amount,
		&order.Currency,
		&order.Method,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return order, err
}

// SetStatus moves an order out of REQUESTED. Status transitions are the
// only mutations a payment order sees.
func (r *PaymentRepository) SetStatus(ctx context.Context, paymentID, status string) (bool, error) {
	query := `
		UPDATE payment_orders
		SET status = $2, updated_at = NOW()
		WHERE payment_id = $1 AND status = $3`

	result, err := r.db.ExecContext(ctx, query, paymentID, status, models.PaymentRequested)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	return affected > 0, err
}
