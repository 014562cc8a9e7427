package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ExternalAccountID stands in for funds entering or leaving the system
// through deposits and withdrawals. It is never a row in accounts.
const ExternalAccountID = "external"

type Account struct {
	ID               string          `json:"userID"`
	Name             string          `json:"name"`
	PasswordHash     string          `json:"-"`
	RefreshTokenHash string          `json:"-"`
	IsAdmin          bool            `json:"isAdmin"`
	Balance          decimal.Decimal `json:"balance"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

type Transaction struct {
	ID              string            `json:"id"`
	FromID          string            `json:"fromId"`
	ToID            string            `json:"toId"`
	Amount          decimal.Decimal   `json:"amount"`
	Type            TransactionType   `json:"type"`
	IsInternational bool              `json:"isInternational"`
	Commission      decimal.Decimal   `json:"commission"`
	Status          TransactionStatus `json:"status"`
	Description     string            `json:"description"`
	ProcessedBy     *string           `json:"processedBy"`
	ProcessedAt     *time.Time        `json:"processedAt"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Involves reports whether accountID is the sender or the recipient.
func (t *Transaction) Involves(accountID string) bool {
	return t.FromID == accountID || t.ToID == accountID
}

type AuditLog struct {
	ID         string          `json:"id"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Action     string          `json:"action"`
	OldValue   json.RawMessage `json:"oldValue"`
	NewValue   json.RawMessage `json:"newValue"`
	CreatedAt  time.Time       `json:"createdAt"`
}

const (
	AuditActionCreate  = "CREATE"
	AuditActionApprove = "APPROVE"
	AuditActionReject  = "REJECT"
	AuditActionDebit   = "DEBIT"
	AuditActionCredit  = "CREDIT"
)

const (
	EntityTypeAccount     = "ACCOUNT"
	EntityTypeTransaction = "TRANSACTION"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// TransactionFilter narrows a transaction listing. An empty AccountID lists
// every account's transactions.
type TransactionFilter struct {
	AccountID string
	Status    TransactionStatus
	Type      TransactionType
	Limit     int
	Offset    int
}

type RegisterRequest struct {
	UserID   string `json:"userID"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	UserID   string `json:"userID"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type CreateTransactionRequest struct {
	ToID            string              `json:"toId"`
	Amount          decimal.NullDecimal `json:"amount"`
	Type            string              `json:"type"`
	IsInternational bool                `json:"isInternational"`
	Description     string              `json:"description"`
}

// TransactionListQuery is a listing request as received from a client,
// before paging defaults and enum validation are applied.
type TransactionListQuery struct {
	Page   int
	Limit  int
	Status string
	Type   string
}

type ProcessTransactionRequest struct {
	Status string `json:"status"`
}

// Session is the token pair issued at login and on refresh.
type Session struct {
	Account      *Account
	AccessToken  string
	RefreshToken string
}

type SessionResponse struct {
	User        *Account `json:"user"`
	AccessToken string   `json:"accessToken"`
}

type TransactionListResponse struct {
	Transactions []*Transaction `json:"transactions"`
	Total        int            `json:"total"`
	TotalPages   int            `json:"totalPages"`
	CurrentPage  int            `json:"currentPage"`
	Limit        int            `json:"limit"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type AccountBalanceSnapshot struct {
	ID      string          `json:"userID"`
	Balance decimal.Decimal `json:"balance"`
}

type TransactionStatusSnapshot struct {
	ID          string            `json:"id"`
	Status      TransactionStatus `json:"status"`
	ProcessedBy *string           `json:"processedBy,omitempty"`
}
