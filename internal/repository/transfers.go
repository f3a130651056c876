package repository

import (
	"context"
	"database/sql"
	"time"

	"hornbill/internal/database"
	"hornbill/internal/models"
)

type TransferRepository struct {
	db *database.DB
}

func NewTransferRepository(db *database.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) Create(ctx context.Context, transfer *models.TransferRequest) error {
	query := `
		INSERT INTO transfers
			(transfer_id, sender_id, recipient_id, reservation_number, relation, status, evidence_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	return r.db.QueryRowContext(ctx, query,
		transfer.TransferID,
		transfer.SenderID,
		transfer.RecipientID,
		transfer.ReservationNumber,
		transfer.Relation,
		transfer.Status,
		transfer.EvidenceRef,
	).Scan(&transfer.CreatedAt)
}

func (r *TransferRepository) GetByID(ctx context.Context, transferID string) (*models.TransferRequest, error) {
	transfer := &models.TransferRequest{}
	query := `
		SELECT transfer_id, sender_id, recipient_id, reservation_number, relation,
		       status, evidence_ref, fee_payment_id, created_at, resolved_at
		FROM transfers
		WHERE transfer_id = $1`

	err := r.db.QueryRowContext(ctx, query, transferID).Scan(
		&transfer.TransferID,
		&transfer.SenderID,
		&transfer.RecipientID,
		&transfer.ReservationNumber,
		&transfer.Relation,
		&transfer.Status,
		&transfer.EvidenceRef,
		&transfer.FeePaymentID,
		&transfer.CreatedAt,
		&transfer.ResolvedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return transfer, err
}

// Reject resolves a pending request. Returns false when the request was
// already terminal; each handshake resolves exactly once.
func (r *TransferRepository) Reject(ctx context.Context, transferID string, recipientID int64) (bool, error) {
	query := `
		UPDATE transfers
		SET status = $3, resolved_at = NOW()
		WHERE transfer_id = $1 AND recipient_id = $2 AND status = $4`

	result, err := r.db.ExecContext(ctx, query,
		transferID, recipientID, models.TransferRejected, models.TransferRequested)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	return affected > 0, err
}

// Approve resolves a pending request and moves ticket ownership in one
// transaction. The caller has already collected the fee sub-payment;
// feePaymentID records it on the row.
func (r *TransferRepository) Approve(ctx context.Context, transferID string, recipientID int64, feePaymentID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var reservationNumber string
	err = tx.QueryRowContext(ctx, `
		UPDATE transfers
		SET status = $3, fee_payment_id = $4, resolved_at = NOW()
		WHERE transfer_id = $1 AND recipient_id = $2 AND status = $5
		RETURNING reservation_number`,
		transferID, recipientID, models.TransferApproved, feePaymentID,
		models.TransferRequested,
	).Scan(&reservationNumber)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tickets
		SET owner_id = $2
		WHERE reservation_number = $1`,
		reservationNumber, recipientID)
	if err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// ListByRecipient returns the recipient's inbox including terminal items,
// newest first.
func (r *TransferRepository) ListByRecipient(ctx context.Context, recipientID int64) ([]models.TransferRequest, error) {
	query := `
		SELECT transfer_id, sender_id, recipient_id, reservation_number, relation,
		       status, evidence_ref, fee_payment_id, created_at, resolved_at
		FROM transfers
		WHERE recipient_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []models.TransferRequest
	for rows.Next() {
		var t models.TransferRequest
		err := rows.Scan(
			&t.TransferID,
			&t.SenderID,
			&t.RecipientID,
			&t.ReservationNumber,
			&t.Relation,
			&t.Status,
			&t.EvidenceRef,
			&t.FeePaymentID,
			&t.CreatedAt,
			&t.ResolvedAt,
		)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}

	return transfers, rows.Err()
}

// CreateIntent records a deferred FRIEND transfer waiting for the
// recipient's wallet account to exist.
func (r *TransferRepository) CreateIntent(ctx context.Context, intent *models.TransferIntent) error {
	query := `
		INSERT INTO transfer_intents
			(intent_id, sender_id, recipient_id, reservation_number)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	return r.db.QueryRowContext(ctx, query,
		intent.IntentID,
		intent.SenderID,
		intent.RecipientID,
		intent.ReservationNumber,
	).Scan(&intent.CreatedAt)
}

// OpenIntents returns unresolved intents, optionally filtered by recipient.
func (r *TransferRepository) OpenIntents(ctx context.Context, recipientID *int64) ([]models.TransferIntent, error) {
	query := `
		SELECT intent_id, sender_id, recipient_id, reservation_number, created_at, resolved_at
		FROM transfer_intents
		WHERE resolved_at IS NULL`
	args := []interface{}{}

	if recipientID != nil {
		query += ` AND recipient_id = $1`
		args = append(args, *recipientID)
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intents []models.TransferIntent
	for rows.Next() {
		var intent models.TransferIntent
		err := rows.Scan(
			&intent.IntentID,
			&intent.SenderID,
			&intent.RecipientID,
			&intent.ReservationNumber,
			&intent.CreatedAt,
			&intent.ResolvedAt,
		)
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}

	return intents, rows.Err()
}

// ResolveIntent marks an intent handled. Returns false when another worker
// resolved it first.
func (r *TransferRepository) ResolveIntent(ctx context.Context, intentID string, at time.Time) (bool, error) {
	query := `
		UPDATE transfer_intents
		SET resolved_at = $2
		WHERE intent_id = $1 AND resolved_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, intentID, at)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	return affected > 0, err
}
