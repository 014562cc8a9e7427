package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/riteshkumar/peer-transfers/internal/errors"
	"github.com/riteshkumar/peer-transfers/internal/models"
)

type AccountRepository interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	GetAccountByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*models.Account, error)
	UpdateAccountBalance(ctx context.Context, tx *sql.Tx, id string, newBalance decimal.Decimal) error
	UpdateRefreshTokenHash(ctx context.Context, id, tokenHash string) error
	RotateRefreshTokenHash(ctx context.Context, id, oldHash, newHash string) error
	AccountExists(ctx context.Context, id string) (bool, error)
}

type PostgresAccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

const accountColumns = `user_id, name, password_hash, COALESCE(refresh_token_hash, ''), is_admin, balance, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.PasswordHash,
		&account.RefreshTokenHash,
		&account.IsAdmin,
		&account.Balance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	return account, err
}

func (r *PostgresAccountRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `INSERT INTO accounts (user_id, name, password_hash, is_admin, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		account.ID,
		account.Name,
		account.PasswordHash,
		account.IsAdmin,
		account.Balance,
	).Scan(&account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errors.ErrAccountAlreadyExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by ID: %w", err)
	}
	return account, nil
}

func (r *PostgresAccountRepository) GetAccountByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 FOR UPDATE`

	account, err := scanAccount(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by ID for update: %w", err)
	}

	return account, nil
}

func (r *PostgresAccountRepository) UpdateAccountBalance(ctx context.Context, tx *sql.Tx, id string, newBalance decimal.Decimal) error {
	query := `UPDATE accounts SET balance = $1, updated_at = CURRENT_TIMESTAMP WHERE user_id = $2`

	result, err := tx.ExecContext(ctx, query, newBalance, id)
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating account balance: %w", err)
	}

	if rowsAffected == 0 {
		return errors.ErrAccountNotFound
	}

	return nil
}

// UpdateRefreshTokenHash stores the hash of the active refresh token. An
// empty hash clears it.
func (r *PostgresAccountRepository) UpdateRefreshTokenHash(ctx context.Context, id, tokenHash string) error {
	query := `UPDATE accounts SET refresh_token_hash = NULLIF($1, ''), updated_at = CURRENT_TIMESTAMP WHERE user_id = $2`

	result, err := r.db.ExecContext(ctx, query, tokenHash, id)
	if err != nil {
		return fmt.Errorf("failed to update refresh token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating refresh token: %w", err)
	}
	if rowsAffected == 0 {
		return errors.ErrAccountNotFound
	}
	return nil
}

// RotateRefreshTokenHash replaces oldHash with newHash only if oldHash is
// still the active one. Of two concurrent rotations of the same token, the
// second gets ErrInvalidToken.
func (r *PostgresAccountRepository) RotateRefreshTokenHash(ctx context.Context, id, oldHash, newHash string) error {
	query := `UPDATE accounts SET refresh_token_hash = $1, updated_at = CURRENT_TIMESTAMP WHERE user_id = $2 AND refresh_token_hash = $3`

	result, err := r.db.ExecContext(ctx, query, newHash, id, oldHash)
	if err != nil {
		return fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after rotating refresh token: %w", err)
	}
	if rowsAffected == 0 {
		return errors.ErrInvalidToken
	}
	return nil
}

func (r *PostgresAccountRepository) AccountExists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE user_id = $1)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check if account exists: %w", err)
	}

	return exists, nil
}
