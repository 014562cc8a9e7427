package models

import "fmt"

type TransactionType string

const (
	TransactionTypeTransfer   TransactionType = "transfer"
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypePayment    TransactionType = "payment"
)

// ParseTransactionType accepts only the canonical spellings.
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(s); t {
	case TransactionTypeTransfer, TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypePayment:
		return t, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

// MovesFundsBetweenAccounts is true for types that debit one account and
// credit another, and therefore carry a commission.
func (t TransactionType) MovesFundsBetweenAccounts() bool {
	return t == TransactionTypeTransfer || t == TransactionTypePayment
}

type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusApproved TransactionStatus = "approved"
	TransactionStatusRejected TransactionStatus = "rejected"
)

func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch st := TransactionStatus(s); st {
	case TransactionStatusPending, TransactionStatusApproved, TransactionStatusRejected:
		return st, nil
	default:
		return "", fmt.Errorf("unknown transaction status %q", s)
	}
}

// IsDecision reports whether s is a legal target of processing.
func (s TransactionStatus) IsDecision() bool {
	return s == TransactionStatusApproved || s == TransactionStatusRejected
}
