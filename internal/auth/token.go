package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/riteshkumar/peer-transfers/internal/errors"
	"github.com/riteshkumar/peer-transfers/internal/models"
)

type Claims struct {
	IsAdmin bool `json:"isAdmin,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies access and refresh tokens. The two kinds
// are signed with different secrets so neither can stand in for the other.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

func (m *TokenManager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

func (m *TokenManager) GenerateAccessToken(account *models.Account) (string, error) {
	return m.sign(account.ID, account.IsAdmin, m.accessTTL, m.accessSecret)
}

func (m *TokenManager) GenerateRefreshToken(account *models.Account) (string, error) {
	return m.sign(account.ID, false, m.refreshTTL, m.refreshSecret)
}

// ParseAccessToken validates an access token and returns the caller it names.
func (m *TokenManager) ParseAccessToken(token string) (models.Principal, error) {
	claims, err := m.parse(token, m.accessSecret)
	if err != nil {
		return models.Principal{}, err
	}
	return models.Principal{UserID: claims.Subject, IsAdmin: claims.IsAdmin}, nil
}

// ParseRefreshToken validates a refresh token and returns its account ID.
func (m *TokenManager) ParseRefreshToken(token string) (string, error) {
	claims, err := m.parse(token, m.refreshSecret)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (m *TokenManager) sign(subject string, isAdmin bool, ttl time.Duration, secret []byte) (string, error) {
	now := m.now()
	claims := Claims{
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (m *TokenManager) parse(token string, secret []byte) (*Claims, error) {
	if token == "" {
		return nil, errors.ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid {
		return nil, errors.ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}

// HashToken is the form in which a refresh token is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
