package service

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/riteshkumar/peer-transfers/internal/models"
)

// settlementDeltas returns the signed balance change per account for an
// approved transaction. The deltas of a transfer or payment sum to zero.
func settlementDeltas(transaction *models.Transaction, commissionAccountID string) (map[string]decimal.Decimal, error) {
	deltas := make(map[string]decimal.Decimal, 3)
	add := func(accountID string, amount decimal.Decimal) error {
		if accountID == "" || accountID == models.ExternalAccountID {
			return fmt.Errorf("transaction %s cannot settle against account %q", transaction.ID, accountID)
		}
		deltas[accountID] = deltas[accountID].Add(amount)
		return nil
	}

	switch transaction.Type {
	case models.TransactionTypeDeposit:
		if err := add(transaction.ToID, transaction.Amount); err != nil {
			return nil, err
		}

	case models.TransactionTypeWithdrawal:
		if err := add(transaction.FromID, transaction.Amount.Neg()); err != nil {
			return nil, err
		}

	case models.TransactionTypeTransfer, models.TransactionTypePayment:
		if err := add(transaction.FromID, transaction.Amount.Add(transaction.Commission).Neg()); err != nil {
			return nil, err
		}
		if err := add(transaction.ToID, transaction.Amount); err != nil {
			return nil, err
		}
		if transaction.Commission.IsPositive() {
			if err := add(commissionAccountID, transaction.Commission); err != nil {
				return nil, err
			}
		}

	default:
		return nil, fmt.Errorf("unknown transaction type %q", transaction.Type)
	}

	return deltas, nil
}

func sortedAccountIDs(deltas map[string]decimal.Decimal) []string {
	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
