package repository

import (
	"context"
	"database/sql"

	"hornbill/internal/database"
	"hornbill/internal/models"
)

type AccountRepository struct {
	db *database.DB
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	account := &models.Account{}
	query := `
		SELECT account_id, email, full_name, birth_prefix, is_active
		FROM accounts
		WHERE account_id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&account.AccountID,
		&account.Email,
		&account.FullName,
		&account.BirthPrefix,
		&account.IsActive,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return account, err
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	account := &models.Account{}
	query := `
		SELECT account_id, email, full_name, birth_prefix, is_active
		FROM accounts
		WHERE email = $1`

	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&account.AccountID,
		&account.Email,
		&account.FullName,
		&account.BirthPrefix,
		&account.IsActive,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return account, err
}
