package service

import (
	"context"
	"crypto/subtle"
	"log/slog"

	"github.com/riteshkumar/peer-transfers/internal/auth"
	"github.com/riteshkumar/peer-transfers/internal/errors"
	"github.com/riteshkumar/peer-transfers/internal/models"
	"github.com/riteshkumar/peer-transfers/internal/repository"
)

type AuthService interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*models.Session, error)
	Logout(ctx context.Context, accountID string) error
}

type AuthServiceImpl struct {
	accountRepo repository.AccountRepository
	tokens      *auth.TokenManager
	logger      *slog.Logger
}

func NewAuthService(accountRepo repository.AccountRepository, tokens *auth.TokenManager, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		accountRepo: accountRepo,
		tokens:      tokens,
		logger:      logger,
	}
}

func (s *AuthServiceImpl) Login(ctx context.Context, req *models.LoginRequest) (*models.Session, error) {
	if req.UserID == "" || req.Password == "" {
		return nil, errors.NewValidationError("userID", "userID and password are required")
	}

	account, err := s.accountRepo.GetAccountByID(ctx, req.UserID)
	if err != nil {
		if errors.IsNotFound(err) {
			s.logger.Warn("login for unknown account", "account_id", req.UserID)
			return nil, errors.ErrInvalidCredentials
		}
		s.logger.Error("failed to load account for login",
			"account_id", req.UserID,
			"error", err.Error(),
		)
		return nil, err
	}

	ok, err := auth.CheckPassword(account.PasswordHash, req.Password)
	if err != nil {
		s.logger.Error("failed to verify password",
			"account_id", req.UserID,
			"error", err.Error(),
		)
		return nil, err
	}
	if !ok {
		s.logger.Warn("login with wrong password", "account_id", req.UserID)
		return nil, errors.ErrInvalidCredentials
	}

	session, err := s.issue(ctx, account, "")
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", "account_id", account.ID)
	return session, nil
}

// Refresh exchanges a valid refresh token for a new pair. The presented token
// must be the one most recently issued; it is rotated out.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	accountID, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	account, err := s.accountRepo.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.ErrInvalidToken
		}
		s.logger.Error("failed to load account for refresh",
			"account_id", accountID,
			"error", err.Error(),
		)
		return nil, err
	}

	presented := auth.HashToken(refreshToken)
	if account.RefreshTokenHash == "" ||
		subtle.ConstantTimeCompare([]byte(account.RefreshTokenHash), []byte(presented)) != 1 {
		s.logger.Warn("refresh token does not match the active session", "account_id", accountID)
		return nil, errors.ErrInvalidToken
	}

	session, err := s.issue(ctx, account, presented)
	if errors.IsUnauthorized(err) {
		s.logger.Warn("refresh token was rotated concurrently", "account_id", accountID)
	}
	return session, err
}

func (s *AuthServiceImpl) Logout(ctx context.Context, accountID string) error {
	if err := s.accountRepo.UpdateRefreshTokenHash(ctx, accountID, ""); err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		s.logger.Error("failed to clear refresh token",
			"account_id", accountID,
			"error", err.Error(),
		)
		return err
	}
	s.logger.Info("user logged out", "account_id", accountID)
	return nil
}

// issue signs a new token pair. With a previousHash the stored refresh token
// is swapped only while it still equals previousHash.
func (s *AuthServiceImpl) issue(ctx context.Context, account *models.Account, previousHash string) (*models.Session, error) {
	accessToken, err := s.tokens.GenerateAccessToken(account)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.GenerateRefreshToken(account)
	if err != nil {
		return nil, err
	}

	refreshHash := auth.HashToken(refreshToken)
	if previousHash == "" {
		err = s.accountRepo.UpdateRefreshTokenHash(ctx, account.ID, refreshHash)
	} else {
		err = s.accountRepo.RotateRefreshTokenHash(ctx, account.ID, previousHash, refreshHash)
	}
	if err != nil {
		if !errors.IsUnauthorized(err) {
			s.logger.Error("failed to store refresh token",
				"account_id", account.ID,
				"error", err.Error(),
			)
		}
		return nil, err
	}
	account.RefreshTokenHash = refreshHash

	return &models.Session{
		Account:      account,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
