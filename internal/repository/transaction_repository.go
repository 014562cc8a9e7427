package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/riteshkumar/peer-transfers/internal/errors"
	"github.com/riteshkumar/peer-transfers/internal/models"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx *sql.Tx, transaction *models.Transaction) error
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*models.Transaction, error)
	MarkProcessed(ctx context.Context, tx *sql.Tx, transaction *models.Transaction) error
	List(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, int, error)
}

type PostgresTransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

const transactionColumns = `id, from_id, to_id, amount, type, is_international, commission, status, description,
	processed_by, processed_at, created_at, updated_at`

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	transaction := &models.Transaction{}
	var processedBy sql.NullString
	var processedAt sql.NullTime

	err := row.Scan(
		&transaction.ID,
		&transaction.FromID,
		&transaction.ToID,
		&transaction.Amount,
		&transaction.Type,
		&transaction.IsInternational,
		&transaction.Commission,
		&transaction.Status,
		&transaction.Description,
		&processedBy,
		&processedAt,
		&transaction.CreatedAt,
		&transaction.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if processedBy.Valid {
		transaction.ProcessedBy = &processedBy.String
	}
	if processedAt.Valid {
		transaction.ProcessedAt = &processedAt.Time
	}
	return transaction, nil
}

func (r *PostgresTransactionRepository) Create(ctx context.Context, tx *sql.Tx, transaction *models.Transaction) error {
	// Generate UUID if not set
	if transaction.ID == "" {
		transaction.ID = uuid.New().String()
	}

	query := `INSERT INTO transactions (id, from_id, to_id, amount, type, is_international, commission, status, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := tx.QueryRowContext(ctx, query,
		transaction.ID,
		transaction.FromID,
		transaction.ToID,
		transaction.Amount,
		transaction.Type,
		transaction.IsInternational,
		transaction.Commission,
		transaction.Status,
		transaction.Description,
	).Scan(&transaction.CreatedAt, &transaction.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *PostgresTransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.ErrTransactionNotFound
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	transaction, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction by ID: %w", err)
	}
	return transaction, nil
}

// GetByIDForUpdate locks the transaction row until tx ends. Concurrent
// settlements of the same transaction queue here.
func (r *PostgresTransactionRepository) GetByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*models.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.ErrTransactionNotFound
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`

	transaction, err := scanTransaction(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction by ID for update: %w", err)
	}
	return transaction, nil
}

// MarkProcessed moves a pending transaction to its final status. The update
// only matches a row that is still pending; zero affected rows means another
// settlement got there first.
func (r *PostgresTransactionRepository) MarkProcessed(ctx context.Context, tx *sql.Tx, transaction *models.Transaction) error {
	query := `UPDATE transactions
		SET status = $1, processed_by = $2, processed_at = $3, updated_at = $3
		WHERE id = $4 AND status = 'pending'`

	var processedAt time.Time
	if transaction.ProcessedAt != nil {
		processedAt = *transaction.ProcessedAt
	}

	result, err := tx.ExecContext(ctx, query,
		transaction.Status,
		transaction.ProcessedBy,
		processedAt,
		transaction.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark transaction processed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after marking transaction processed: %w", err)
	}
	if rowsAffected == 0 {
		return errors.ErrAlreadyProcessed
	}

	transaction.UpdatedAt = processedAt
	return nil
}

// List returns one page of transactions, newest first, and the total number
// of rows matching the filter.
func (r *PostgresTransactionRepository) List(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, int, error) {
	var conditions []string
	var args []interface{}

	if filter.AccountID != "" {
		args = append(args, filter.AccountID)
		conditions = append(conditions, fmt.Sprintf("(from_id = $%d OR to_id = $%d)", len(args), len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		transactionColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]*models.Transaction, 0, filter.Limit)
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, transaction)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating over transactions: %w", err)
	}
	return transactions, total, nil
}
