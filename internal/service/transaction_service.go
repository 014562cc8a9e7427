package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riteshkumar/peer-transfers/internal/commission"
	"github.com/riteshkumar/peer-transfers/internal/errors"
	"github.com/riteshkumar/peer-transfers/internal/models"
	"github.com/riteshkumar/peer-transfers/internal/repository"
)

const (
	DefaultPageLimit     = 10
	MaxPageLimit         = 100
	maxDescriptionLength = 500
)

type TransactionService interface {
	RequestTransaction(ctx context.Context, fromID string, req *models.CreateTransactionRequest) (*models.Transaction, error)
	ProcessTransaction(ctx context.Context, id, decision, processedBy string) (*models.Transaction, error)
	GetTransaction(ctx context.Context, id string, caller models.Principal) (*models.Transaction, error)
	GetTransactionAudit(ctx context.Context, id string) ([]*models.AuditLog, error)
	ListUserTransactions(ctx context.Context, accountID string, query models.TransactionListQuery) (*models.TransactionListResponse, error)
	ListAllTransactions(ctx context.Context, query models.TransactionListQuery) (*models.TransactionListResponse, error)
}

// AccountCache is the read-through cache in front of account reads.
// Generation is read before the database so that Set can refuse a value
// that an Invalidate has overtaken in the meantime.
type AccountCache interface {
	Get(ctx context.Context, id string) (*models.Account, bool)
	Generation(ctx context.Context, id string) (int64, bool)
	Set(ctx context.Context, account *models.Account, generation int64)
	Invalidate(ctx context.Context, ids ...string)
}

// Locker serialises work on one key across service instances.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

type TransactionServiceConfig struct {
	// CommissionAccountID receives the commission of every settled transfer.
	CommissionAccountID string
	SettlementTimeout   time.Duration
}

type TransactionServiceImpl struct {
	transactor      repository.Transactor
	accountRepo     repository.AccountRepository
	transactionRepo repository.TransactionRepository
	auditRepo       repository.AuditRepository
	cache           AccountCache
	locker          Locker
	cfg             TransactionServiceConfig
	logger          *slog.Logger
	now             func() time.Time
}

func NewTransactionService(
	transactor repository.Transactor,
	accountRepo repository.AccountRepository,
	transactionRepo repository.TransactionRepository,
	auditRepo repository.AuditRepository,
	cache AccountCache,
	locker Locker,
	cfg TransactionServiceConfig,
	logger *slog.Logger,
) *TransactionServiceImpl {
	return &TransactionServiceImpl{
		transactor:      transactor,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		auditRepo:       auditRepo,
		cache:           cache,
		locker:          locker,
		cfg:             cfg,
		logger:          logger,
		now:             time.Now,
	}
}

// RequestTransaction validates a transfer, deposit, withdrawal or payment and
// records it as pending. Balances are only read here, never written.
func (s *TransactionServiceImpl) RequestTransaction(ctx context.Context, fromID string, req *models.CreateTransactionRequest) (*models.Transaction, error) {
	transaction, err := s.buildTransaction(ctx, fromID, req)
	if err != nil {
		if errors.KindOf(err) == errors.KindInternal {
			s.logger.Error("failed to validate transaction request",
				"from_id", fromID,
				"error", err.Error(),
			)
		} else {
			s.logger.Warn("invalid transaction request",
				"from_id", fromID,
				"to_id", req.ToID,
				"type", req.Type,
				"error", err.Error(),
			)
		}
		return nil, err
	}

	err = s.transactor.WithinTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
			return errors.NewTransactionError("create transaction record", err)
		}

		newValue, _ := json.Marshal(transaction)
		auditLog := &models.AuditLog{
			EntityType: models.EntityTypeTransaction,
			EntityID:   transaction.ID,
			Action:     models.AuditActionCreate,
			NewValue:   newValue,
		}
		if err := s.auditRepo.Create(ctx, tx, auditLog); err != nil {
			return errors.NewTransactionError("create transaction audit log", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to persist transaction request",
			"from_id", transaction.FromID,
			"to_id", transaction.ToID,
			"amount", transaction.Amount.String(),
			"error", err.Error(),
		)
		return nil, err
	}

	s.logger.Info("transaction requested",
		"transaction_id", transaction.ID,
		"type", transaction.Type,
		"from_id", transaction.FromID,
		"to_id", transaction.ToID,
		"amount", transaction.Amount.String(),
		"commission", transaction.Commission.String(),
	)
	return transaction, nil
}

func (s *TransactionServiceImpl) buildTransaction(ctx context.Context, fromID string, req *models.CreateTransactionRequest) (*models.Transaction, error) {
	if fromID == "" {
		return nil, errors.ErrInvalidAccountID
	}
	if !req.Amount.Valid {
		return nil, errors.NewValidationError("amount", "is required")
	}
	if req.Type == "" {
		return nil, errors.NewValidationError("type", "is required")
	}
	txnType, err := models.ParseTransactionType(req.Type)
	if err != nil {
		return nil, errors.NewValidationError("type", "must be one of transfer, deposit, withdrawal, payment")
	}
	toID := strings.TrimSpace(req.ToID)
	if txnType.MovesFundsBetweenAccounts() && toID == "" {
		return nil, errors.NewValidationError("toId", "is required for transfer and payment")
	}

	amount := req.Amount.Decimal
	if !amount.IsPositive() {
		return nil, errors.ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, errors.NewValidationError("amount", "must have at most 2 decimal places")
	}
	if len(req.Description) > maxDescriptionLength {
		return nil, errors.NewValidationError("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLength))
	}

	transaction := &models.Transaction{
		Amount:          amount,
		Type:            txnType,
		IsInternational: req.IsInternational,
		Commission:      commission.Calculate(amount, txnType, req.IsInternational),
		Status:          models.TransactionStatusPending,
		Description:     req.Description,
	}

	switch txnType {
	case models.TransactionTypeDeposit:
		if toID == "" {
			toID = fromID
		}
		if toID == models.ExternalAccountID {
			return nil, errors.NewValidationError("toId", "must name an account")
		}
		if err := s.requireAccount(ctx, toID, "recipient"); err != nil {
			return nil, err
		}
		transaction.FromID = models.ExternalAccountID
		transaction.ToID = toID

	case models.TransactionTypeWithdrawal:
		if toID != "" && toID != models.ExternalAccountID {
			return nil, errors.NewValidationError("toId", "must be empty for a withdrawal")
		}
		if err := s.requireFunds(ctx, fromID, amount); err != nil {
			return nil, err
		}
		transaction.FromID = fromID
		transaction.ToID = models.ExternalAccountID

	default:
		if toID == fromID {
			return nil, errors.ErrSameAccount
		}
		if toID == models.ExternalAccountID {
			return nil, errors.NewValidationError("toId", "must name an account")
		}
		if err := s.requireAccount(ctx, toID, "recipient"); err != nil {
			return nil, err
		}
		if err := s.requireFunds(ctx, fromID, amount.Add(transaction.Commission)); err != nil {
			return nil, err
		}
		transaction.FromID = fromID
		transaction.ToID = toID
	}

	return transaction, nil
}

func (s *TransactionServiceImpl) requireAccount(ctx context.Context, id, role string) error {
	exists, err := s.accountRepo.AccountExists(ctx, id)
	if err != nil {
		return errors.NewTransactionError("check "+role+" account", err)
	}
	if !exists {
		return fmt.Errorf("%s account: %w", role, errors.ErrAccountNotFound)
	}
	return nil
}

func (s *TransactionServiceImpl) requireFunds(ctx context.Context, accountID string, required decimal.Decimal) error {
	account, err := s.accountRepo.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.IsNotFound(err) {
			return fmt.Errorf("sender account: %w", err)
		}
		return errors.NewTransactionError("get sender account", err)
	}
	if account.Balance.LessThan(required) {
		return errors.ErrInsufficientBalance
	}
	return nil
}

// ProcessTransaction approves or rejects a pending transaction. On approval
// every balance change and the status transition commit together or not at
// all; a failure or timeout leaves the transaction pending.
func (s *TransactionServiceImpl) ProcessTransaction(ctx context.Context, id, decision, processedBy string) (*models.Transaction, error) {
	status, err := models.ParseTransactionStatus(decision)
	if err != nil || !status.IsDecision() {
		return nil, errors.NewValidationError("status", "must be 'approved' or 'rejected'")
	}
	if id == "" {
		return nil, errors.ErrTransactionNotFound
	}

	if s.cfg.SettlementTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SettlementTimeout)
		defer cancel()
	}

	var processed *models.Transaction
	var touched []string

	err = s.locker.WithLock(ctx, settlementLockKey(id), func(ctx context.Context) error {
		return s.transactor.WithinTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
			transaction, err := s.transactionRepo.GetByIDForUpdate(ctx, tx, id)
			if err != nil {
				if errors.IsNotFound(err) {
					return err
				}
				return errors.NewTransactionError("get transaction for update", err)
			}
			if transaction.Status != models.TransactionStatusPending {
				return errors.ErrAlreadyProcessed
			}

			oldValue, _ := json.Marshal(models.TransactionStatusSnapshot{ID: transaction.ID, Status: transaction.Status})

			if status == models.TransactionStatusApproved {
				touched, err = s.settle(ctx, tx, transaction)
				if err != nil {
					return err
				}
			}

			processedAt := s.now().UTC()
			transaction.Status = status
			transaction.ProcessedBy = &processedBy
			transaction.ProcessedAt = &processedAt

			if err := s.transactionRepo.MarkProcessed(ctx, tx, transaction); err != nil {
				if errors.IsAlreadyProcessed(err) {
					return err
				}
				return errors.NewTransactionError("mark transaction processed", err)
			}

			newValue, _ := json.Marshal(models.TransactionStatusSnapshot{
				ID:          transaction.ID,
				Status:      transaction.Status,
				ProcessedBy: transaction.ProcessedBy,
			})
			action := models.AuditActionReject
			if status == models.TransactionStatusApproved {
				action = models.AuditActionApprove
			}
			if err := s.auditRepo.Create(ctx, tx, &models.AuditLog{
				EntityType: models.EntityTypeTransaction,
				EntityID:   transaction.ID,
				Action:     action,
				OldValue:   oldValue,
				NewValue:   newValue,
			}); err != nil {
				return errors.NewTransactionError("create transaction audit log", err)
			}

			processed = transaction
			return nil
		})
	})
	if err != nil {
		switch errors.KindOf(err) {
		case errors.KindInternal:
			s.logger.Error("failed to process transaction",
				"transaction_id", id,
				"decision", decision,
				"error", err.Error(),
			)
		default:
			s.logger.Warn("transaction not processed",
				"transaction_id", id,
				"decision", decision,
				"error", err.Error(),
			)
		}
		return nil, err
	}

	// Committed; stale balances must not be served from cache.
	s.cache.Invalidate(context.WithoutCancel(ctx), touched...)

	s.logger.Info("transaction processed",
		"transaction_id", processed.ID,
		"status", processed.Status,
		"processed_by", processedBy,
	)
	return processed, nil
}

func settlementLockKey(transactionID string) string {
	return "lock:settlement:" + transactionID
}

// settle applies the balance changes of an approved transaction. Accounts
// are locked in ID order so that concurrent settlements sharing accounts
// cannot deadlock.
func (s *TransactionServiceImpl) settle(ctx context.Context, tx *sql.Tx, transaction *models.Transaction) ([]string, error) {
	deltas, err := settlementDeltas(transaction, s.cfg.CommissionAccountID)
	if err != nil {
		return nil, errors.NewTransactionError("compute settlement", err)
	}

	ids := sortedAccountIDs(deltas)
	for _, id := range ids {
		account, err := s.accountRepo.GetAccountByIDForUpdate(ctx, tx, id)
		if err != nil {
			if errors.IsNotFound(err) {
				return nil, errors.NewTransactionError("lock account", fmt.Errorf("account %q does not exist", id))
			}
			return nil, errors.NewTransactionError("lock account", err)
		}

		delta := deltas[id]
		newBalance := account.Balance.Add(delta)
		if newBalance.IsNegative() {
			s.logger.Warn("insufficient balance at settlement",
				"transaction_id", transaction.ID,
				"account_id", id,
				"available_balance", account.Balance.String(),
				"required", delta.Neg().String(),
			)
			return nil, errors.ErrInsufficientBalance
		}

		if err := s.accountRepo.UpdateAccountBalance(ctx, tx, id, newBalance); err != nil {
			return nil, errors.NewTransactionError("update account balance", err)
		}

		oldValue, _ := json.Marshal(models.AccountBalanceSnapshot{ID: id, Balance: account.Balance})
		newValue, _ := json.Marshal(models.AccountBalanceSnapshot{ID: id, Balance: newBalance})
		action := models.AuditActionCredit
		if delta.IsNegative() {
			action = models.AuditActionDebit
		}
		if err := s.auditRepo.Create(ctx, tx, &models.AuditLog{
			EntityType: models.EntityTypeAccount,
			EntityID:   id,
			Action:     action,
			OldValue:   oldValue,
			NewValue:   newValue,
		}); err != nil {
			return nil, errors.NewTransactionError("create account audit log", err)
		}
	}
	return ids, nil
}

func (s *TransactionServiceImpl) GetTransaction(ctx context.Context, id string, caller models.Principal) (*models.Transaction, error) {
	transaction, err := s.transactionRepo.GetByID(ctx, id)
	if err != nil {
		if !errors.IsNotFound(err) {
			s.logger.Error("failed to get transaction",
				"transaction_id", id,
				"error", err.Error(),
			)
		}
		return nil, err
	}

	if !caller.IsAdmin && !transaction.Involves(caller.UserID) {
		s.logger.Warn("transaction access denied",
			"transaction_id", id,
			"account_id", caller.UserID,
		)
		return nil, errors.ErrForbidden
	}
	return transaction, nil
}

func (s *TransactionServiceImpl) GetTransactionAudit(ctx context.Context, id string) ([]*models.AuditLog, error) {
	if _, err := s.transactionRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	logs, err := s.auditRepo.GetByEntityID(ctx, models.EntityTypeTransaction, id)
	if err != nil {
		s.logger.Error("failed to get transaction audit logs",
			"transaction_id", id,
			"error", err.Error(),
		)
		return nil, err
	}
	return logs, nil
}

func (s *TransactionServiceImpl) ListUserTransactions(ctx context.Context, accountID string, query models.TransactionListQuery) (*models.TransactionListResponse, error) {
	if accountID == "" {
		return nil, errors.ErrInvalidAccountID
	}
	return s.list(ctx, accountID, query)
}

func (s *TransactionServiceImpl) ListAllTransactions(ctx context.Context, query models.TransactionListQuery) (*models.TransactionListResponse, error) {
	return s.list(ctx, "", query)
}

func (s *TransactionServiceImpl) list(ctx context.Context, accountID string, query models.TransactionListQuery) (*models.TransactionListResponse, error) {
	filter, page, err := buildFilter(accountID, query)
	if err != nil {
		return nil, err
	}

	transactions, total, err := s.transactionRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list transactions",
			"account_id", accountID,
			"error", err.Error(),
		)
		return nil, err
	}

	return &models.TransactionListResponse{
		Transactions: transactions,
		Total:        total,
		TotalPages:   int(math.Ceil(float64(total) / float64(filter.Limit))),
		CurrentPage:  page,
		Limit:        filter.Limit,
	}, nil
}

func buildFilter(accountID string, query models.TransactionListQuery) (models.TransactionFilter, int, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	switch {
	case limit < 1:
		limit = DefaultPageLimit
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}

	if page-1 > math.MaxInt/limit {
		return models.TransactionFilter{}, 0, errors.NewValidationError("page", "is too large")
	}

	filter := models.TransactionFilter{
		AccountID: accountID,
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}

	if query.Status != "" {
		status, err := models.ParseTransactionStatus(query.Status)
		if err != nil {
			return filter, 0, errors.NewValidationError("status", "must be one of pending, approved, rejected")
		}
		filter.Status = status
	}
	if query.Type != "" {
		txnType, err := models.ParseTransactionType(query.Type)
		if err != nil {
			return filter, 0, errors.NewValidationError("type", "must be one of transfer, deposit, withdrawal, payment")
		}
		filter.Type = txnType
	}
	return filter, page, nil
}
