package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/riteshkumar/peer-transfers/internal/auth"
	"github.com/riteshkumar/peer-transfers/internal/errors"
	"github.com/riteshkumar/peer-transfers/internal/models"
	"github.com/riteshkumar/peer-transfers/internal/repository"
)

const (
	maxUserIDLength   = 64
	minPasswordLength = 6
)

type AccountService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.Account, error)
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	EnsureCommissionAccount(ctx context.Context, name, password string) (*models.Account, error)
}

type AccountServiceImpl struct {
	accountRepo         repository.AccountRepository
	auditRepo           repository.AuditRepository
	cache               AccountCache
	commissionAccountID string
	logger              *slog.Logger
}

func NewAccountService(accountRepo repository.AccountRepository, auditRepo repository.AuditRepository, cache AccountCache, commissionAccountID string, logger *slog.Logger) *AccountServiceImpl {
	return &AccountServiceImpl{
		accountRepo:         accountRepo,
		auditRepo:           auditRepo,
		cache:               cache,
		commissionAccountID: commissionAccountID,
		logger:              logger,
	}
}

// Register creates a regular account with a zero balance. Funds arrive only
// through approved deposits. The commission account ID is never available.
func (s *AccountServiceImpl) Register(ctx context.Context, req *models.RegisterRequest) (*models.Account, error) {
	if req.UserID != "" && req.UserID == s.commissionAccountID {
		s.logger.Warn("registration of reserved account rejected", "account_id", req.UserID)
		return nil, errors.NewValidationError("userID", "is reserved")
	}
	return s.create(ctx, req, false)
}

// EnsureCommissionAccount makes sure the account that collects commission
// exists and is an admin. A missing account is created when a password is
// given; otherwise it is an error, as is an existing non-admin account.
func (s *AccountServiceImpl) EnsureCommissionAccount(ctx context.Context, name, password string) (*models.Account, error) {
	id := s.commissionAccountID

	account, err := s.accountRepo.GetAccountByID(ctx, id)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	if err != nil {
		if password == "" {
			return nil, fmt.Errorf("commission account %q does not exist and no admin password is configured", id)
		}
		account, err = s.create(ctx, &models.RegisterRequest{UserID: id, Name: name, Password: password}, true)
		if errors.IsAlreadyExists(err) {
			account, err = s.accountRepo.GetAccountByID(ctx, id)
		}
		if err != nil {
			return nil, err
		}
	}

	if !account.IsAdmin {
		s.logger.Error("commission account is not an admin", "account_id", id)
		return nil, fmt.Errorf("commission account %q exists but is not an admin", id)
	}
	return account, nil
}

func (s *AccountServiceImpl) create(ctx context.Context, req *models.RegisterRequest, isAdmin bool) (*models.Account, error) {
	if err := s.validateRegisterRequest(req); err != nil {
		s.logger.Warn("invalid register request",
			"account_id", req.UserID,
			"error", err.Error(),
		)
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		ID:           req.UserID,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		IsAdmin:      isAdmin,
		Balance:      decimal.Zero,
	}

	if err := s.accountRepo.CreateAccount(ctx, account); err != nil {
		if errors.IsAlreadyExists(err) {
			s.logger.Warn("account already exists",
				"account_id", req.UserID,
			)
			return nil, err
		}

		s.logger.Error("failed to create account",
			"account_id", req.UserID,
			"error", err.Error(),
		)
		return nil, err
	}

	// Log audit entry for account creation
	if err := s.createAccountAuditLog(ctx, account); err != nil {
		s.logger.Error("failed to create audit log for account creation",
			"account_id", req.UserID,
			"error", err.Error(),
		)
	}
	s.logger.Info("account created successfully",
		"account_id", req.UserID,
		"is_admin", isAdmin,
	)
	return account, nil
}

func (s *AccountServiceImpl) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	if id == "" {
		return nil, errors.ErrInvalidAccountID
	}

	if account, ok := s.cache.Get(ctx, id); ok {
		return account, nil
	}
	generation, cacheable := s.cache.Generation(ctx, id)

	account, err := s.accountRepo.GetAccountByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			s.logger.Warn("account not found",
				"account_id", id,
			)
			return nil, err
		}
		s.logger.Error("failed to get account",
			"account_id", id,
			"error", err.Error(),
		)
		return nil, err
	}

	if cacheable {
		s.cache.Set(ctx, account, generation)
	}
	return account, nil
}

func (s *AccountServiceImpl) validateRegisterRequest(req *models.RegisterRequest) error {
	if req.UserID == "" {
		return errors.NewValidationError("userID", "is required")
	}
	if len(req.UserID) > maxUserIDLength {
		return errors.NewValidationError("userID", "is too long")
	}
	if strings.IndexFunc(req.UserID, unicode.IsSpace) >= 0 {
		return errors.NewValidationError("userID", "must not contain whitespace")
	}
	if req.UserID == models.ExternalAccountID {
		return errors.NewValidationError("userID", "is reserved")
	}
	if strings.TrimSpace(req.Name) == "" {
		return errors.NewValidationError("name", "is required")
	}
	if len(req.Password) < minPasswordLength {
		return errors.NewValidationError("password", "must be at least 6 characters")
	}
	return nil
}

func (s *AccountServiceImpl) createAccountAuditLog(ctx context.Context, account *models.Account) error {
	snapshot := models.AccountBalanceSnapshot{
		ID:      account.ID,
		Balance: account.Balance,
	}

	newValue, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	auditLog := &models.AuditLog{
		EntityType: models.EntityTypeAccount,
		EntityID:   account.ID,
		Action:     models.AuditActionCreate,
		NewValue:   newValue,
	}

	return s.auditRepo.CreateWithDB(ctx, auditLog)
}
