// Package commission computes the platform fee charged on transfers.
package commission

import (
	"github.com/shopspring/decimal"

	"github.com/riteshkumar/peer-transfers/internal/models"
)

var (
	DomesticRate      = decimal.RequireFromString("0.02")
	InternationalRate = decimal.RequireFromString("0.10")
)

// Calculate returns the commission for a transaction of the given amount.
// Deposits and withdrawals are free; transfers and payments pay the domestic
// or international rate. The result is exact.
func Calculate(amount decimal.Decimal, txnType models.TransactionType, isInternational bool) decimal.Decimal {
	if !txnType.MovesFundsBetweenAccounts() {
		return decimal.Zero
	}
	if isInternational {
		return amount.Mul(InternationalRate)
	}
	return amount.Mul(DomesticRate)
}

// TotalDebit is what the sender pays: the amount plus its commission.
func TotalDebit(amount decimal.Decimal, txnType models.TransactionType, isInternational bool) decimal.Decimal {
	return amount.Add(Calculate(amount, txnType, isInternational))
}
