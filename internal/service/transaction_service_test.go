package service

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/riteshkumar/peer-transfers/internal/errors"
	"github.com/riteshkumar/peer-transfers/internal/models"
)

type transactionFixture struct {
	store  *memStore
	cache  *recordingCache
	locker *recordingLocker
	svc    *TransactionServiceImpl
}

func newTransactionFixture(t *testing.T) *transactionFixture {
	t.Helper()
	store := newMemStore()
	store.addAccount("admin", "0", true)
	store.addAccount("u1", "1000", false)
	store.addAccount("u2", "500", false)
	store.addAccount("u3", "0", false)

	cache := newRecordingCache()
	locker := &recordingLocker{}
	svc := NewTransactionService(
		store,
		memAccountRepo{store},
		memTransactionRepo{store},
		memAuditRepo{store},
		cache,
		locker,
		TransactionServiceConfig{CommissionAccountID: "admin", SettlementTimeout: 5 * time.Second},
		discardLogger(),
	)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return &transactionFixture{store: store, cache: cache, locker: locker, svc: svc}
}

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func assertBalance(t *testing.T, store *memStore, id, want string) {
	t.Helper()
	got := store.balance(id)
	assert.Truef(t, got.Equal(decimal.RequireFromString(want)), "balance of %s: got %s, want %s", id, got, want)
}

func totalBalance(store *memStore) decimal.Decimal {
	store.mu.Lock()
	defer store.mu.Unlock()
	sum := decimal.Zero
	for _, a := range store.accounts {
		sum = sum.Add(a.Balance)
	}
	return sum
}

func TestDomesticTransferSettlesWithCommission(t *testing.T) {
	f := newTransactionFixture(t)
	ctx := context.Background()

	txn, err := f.svc.RequestTransaction(ctx, "u1", &models.CreateTransactionRequest{
		ToID:   "u2",
		Amount: amount("100"),
		Type:   "transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)
	assert.True(t, txn.Commission.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, "u1", txn.FromID)
	assert.Equal(t, "u2", txn.ToID)

	// Requesting never moves money.
	assertBalance(t, f.store, "u1", "1000")
	assertBalance(t, f.store, "u2", "500")
	assertBalance(t, f.store, "admin", "0")

	before := totalBalance(f.store)
	processed, err := f.svc.ProcessTransaction(ctx, txn.ID, "approved", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusApproved, processed.Status)
	require.NotNil(t, processed.ProcessedBy)
	assert.Equal(t, "admin", *processed.ProcessedBy)
	require.NotNil(t, processed.ProcessedAt)

	assertBalance(t, f.store, "u1", "898")
	assertBalance(t, f.store, "u2", "600")
	assertBalance(t, f.store, "admin", "2")
	assert.True(t, before.Equal(totalBalance(f.store)), "transfer must conserve total balance")

	assert.ElementsMatch(t, []string{"admin", "u1", "u2"}, f.cache.invalidated)
	assert.Equal(t, []string{"lock:settlement:" + txn.ID}, f.locker.keys)
}

func TestInternationalTransferInsufficientFundsIsNotPersisted(t *testing.T) {
	f := newTransactionFixture(t)
	f.store.setBalance("u1", "50")

	_, err := f.svc.RequestTransaction(context.Background(), "u1", &models.CreateTransactionRequest{
		ToID:            "u2",
		Amount:          amount("100"),
		Type:            "transfer",
		IsInternational: true,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsInsufficientBalance(err))
	assert.Equal(t, 0, f.store.transactionCount())
	assertBalance(t, f.store, "u1", "50")
	assertBalance(t, f.store, "u2", "500")
}

func TestTransferNeedsAmountPlusCommission(t *testing.T) {
	f := newTransactionFixture(t)
	f.store.setBalance("u1", "101")

	// 100 + 2 commission exceeds 101.
	_, err := f.svc.RequestTransaction(context.Background(), "u1", &models.CreateTransactionRequest{
		ToID:   "u2",
		Amount: amount("100"),
		Type:   "transfer",
	})
	assert.True(t, apperrors.IsInsufficientBalance(err))
}

func TestDepositApprovedOnce(t *testing.T) {
	f := newTransactionFixture(t)
	ctx := context.Background()

	txn, err := f.svc.RequestTransaction(ctx, "u2", &models.CreateTransactionRequest{
		Amount: amount("200"),
		Type:   "deposit",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExternalAccountID, txn.FromID)
	assert.Equal(t, "u2", txn.ToID)
	assert.True(t, txn.Commission.IsZero())

	_, err = f.svc.ProcessTransaction(ctx, txn.ID, "approved", "admin")
	require.NoError(t, err)
	assertBalance(t, f.store, "u2", "700")
	assertBalance(t, f.store, "admin", "0")

	_, err = f.svc.ProcessTransaction(ctx, txn.ID, "approved", "admin")
	assert.True(t, apperrors.IsAlreadyProcessed(err))
	assertBalance(t, f.store, "u2", "700")
}

func TestDepositToAnotherAccount(t *testing.T) {
	f := newTransactionFixture(t)

	txn, err := f.svc.RequestTransaction(context.Background(), "u1", &models.CreateTransactionRequest{
		ToID:   "u3",
		Amount: amount("25.50"),
		Type:   "deposit",
	})
	require.NoError(t, err)
	assert.Equal(t, "u3", txn.ToID)

	_, err = f.svc.RequestTransaction(context.Background(), "u1", &models.CreateTransactionRequest{
		ToID:   "ghost",
		Amount: amount("10"),
		Type:   "deposit",
	})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestWithdrawalDebitsSenderOnly(t *testing.T) {
	f := newTransactionFixture(t)
	ctx := context.Background()

	txn, err := f.svc.RequestTransaction(ctx, "u1", &models.CreateTransactionRequest{
		Amount: amount("300"),
		Type:   "withdrawal",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExternalAccountID, txn.ToID)
	assert.True(t, txn.Commission.IsZero())

	_, err = f.svc.ProcessTransaction(ctx, txn.ID, "approved", "admin")
	require.NoError(t, err)
	assertBalance(t, f.store, "u1", "700")
	assertBalance(t, f.store, "admin", "0")
	assert.Equal(t, []string{"u1"}, f.cache.invalidated)

	_, err = f.svc.RequestTransaction(ctx, "u1", &models.CreateTransactionRequest{
		Amount: amount("700.01"),
		Type:   "withdrawal",
	})
	assert.True(t, apperrors.IsInsufficientBalance(err))
}

func TestPaymentChargesCommission(t *testing.T) {
	f := newTransactionFixture(t)
	ctx := context.Background()

	txn, err := f.svc.RequestTransaction(ctx, "u1", &models.CreateTransactionRequest{
		ToID:            "u2",
		Amount:          amount("12.34"),
		Type:            "payment",
		IsInternational: true,
	})
	require.NoError(t, err)
	assert.True(t, txn.Commission.Equal(decimal.RequireFromString("1.234")))

	_, err = f.svc.ProcessTransaction(ctx, txn.ID, "approved", "admin")
	require.NoError(t, err)
	assertBalance(t, f.store, "u1", "986.426")
	assertBalance(t, f.store, "u2", "512.34")
	assertBalance(t, f.store, "admin", "1.234")
}

func TestTransferToCommissionAccountCombinesDeltas(t *testing.T) {
	f := newTransactionFixture(t)
	ctx := context.Background()

	txn, err := f.svc.RequestTransaction(ctx, "u1", &models.CreateTransactionRequest{
		ToID:   "admin",
		Amount: amount("100"),
		Type:   "transfer",
	})
	require.NoError(t, err)

	_, err = f.svc.ProcessTransaction(ctx, txn.ID, "approved", "admin")
	require.NoError(t, err)
	assertBalance(t, f.store, "u1", "898")
	assertBalance(t, f.store, "admin", "102")
}

func TestRequestTransactionValidation(t *testing.T) {
	tests := []struct {
		name    string
		fromID  string
		req     models.CreateTransactionRequest
		checkFn func(error) bool
	}{
		{"zero amount", "u1", models.CreateTransactionRequest{ToID: "u2", Amount: amount("0"), Type: "transfer"}, apperrors.IsValidationError},
		{"negative amount", "u1", models.CreateTransactionRequest{ToID: "u2", Amount: amount("-5"), Type: "transfer"}, apperrors.IsValidationError},
		{"missing amount", "u1", models.CreateTransactionRequest{ToID: "u2", Type: "transfer"}, apperrors.IsValidationError},
		{"missing type", "u1", models.CreateTransactionRequest{ToID: "u2", Amount: amount("5")}, apperrors.IsValidationError},
		{"unknown type", "u1", models.CreateTransactionRequest{ToID: "u2", Amount: amount("5"), Type: "withdraw"}, apperrors.IsValidationError},
		{"transfer without recipient", "u1", models.CreateTransactionRequest{Amount: amount("5"), Type: "transfer"}, apperrors.IsValidationError},
		{"transfer to self", "u1", models.CreateTransactionRequest{ToID: "u1", Amount: amount("5"), Type: "transfer"}, apperrors.IsValidationError},
		{"transfer to external", "u1", models.CreateTransactionRequest{ToID: "external", Amount: amount("5"), Type: "payment"}, apperrors.IsValidationError},
		{"too many decimals", "u1", models.CreateTransactionRequest{ToID: "u2", Amount: amount("1.005"), Type: "transfer"}, apperrors.IsValidationError},
		{"withdrawal with recipient", "u1", models.CreateTransactionRequest{ToID: "u2", Amount: amount("5"), Type: "withdrawal"}, apperrors.IsValidationError},
		{"unknown recipient", "u1", models.CreateTransactionRequest{ToID: "ghost", Amount: amount("5"), Type: "transfer"}, apperrors.IsNotFound},
		{"unknown sender", "ghost", models.CreateTransactionRequest{ToID: "u2", Amount: amount("5"), Type: "transfer"}, apperrors.IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTransactionFixture(t)
			req := tt.req
			_, err := f.svc.RequestTransaction(context.Background(), tt.fromID, &req)
			require.Error(t, err)
			assert.True(t, tt.checkFn(err), "unexpected error: %v", err)
			assert.Equal(t, 0, f.store.transactionCount())
		})
	}
}

func TestRequestTransactionWritesCreateAudit(t *testing.T) {
	f := newTransactionFixture(t)
	ctx := context.Background()

	txn, err := f.svc.RequestTransaction(ctx, "u1", &models.CreateTransactionRequest{
		ToID:        "u2",
		Amount:      amount("10"),
		Type:        "transfer",
		Description: "lunch",
	})
	require.NoError(t, err)

	_, err = f.svc.ProcessTransaction(ctx, txn.ID, "rejected", "admin")
	require.NoError(t, err)

	logs, err := f.svc.GetTransactionAudit(ctx, txn.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.AuditActionReject, logs[0].Action)
	assert.Equal(t, models.AuditActionCreate, logs[1].Action)

	var snapshot models.TransactionStatusSnapshot
	require.NoError(t, json.Unmarshal(logs[0].NewValue, &snapshot))
	assert.Equal(t, models.TransactionStatusRejected, snapshot.Status)

	_, err = f.svc.GetTransactionAudit(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRejectLeavesBalancesAlone(t *testing.T) {
	f := newTransactionFixture(t)
	ctx := context.Background()

	txn, err := f.svc.RequestTransaction(ctx, "u1", &models.CreateTransactionRequest{
		ToID:   "u2",
		Amount: amount("100"),
		Type:   "transfer",
	})
	require.NoError(t, err)

	processed, err := f.svc.ProcessTransaction(ctx, txn.ID, "rejected", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusRejected, processed.Status)
	assertBalance(t, f.store, "u1", "1000")
	assertBalance(t, f.store, "u2", "500")
	assertBalance(t, f.store, "admin", "0")
	assert.Empty(t, f.cache.invalidated)

	for _, decision := range []string{"approved", "rejected"} {
		_, err = f.svc.ProcessTransaction(ctx, txn.ID, decision, "admin")
		assert.True(t, apperrors.IsAlreadyProcessed(err), decision)
	}
	assertBalance(t, f.store, "u1", "1000")
}

func TestProcessTransactionRejectsBadInput(t *testing.T) {
	f := newTransactionFixture(t)
	ctx := context.Background()

	txn, err := f.svc.RequestTransaction(ctx, "u1", &models.CreateTransactionRequest{
		ToID:   "u2",
		Amount: amount("1"),
		Type:   "transfer",
	})
	require.NoError(t, err)

	for _, decision := range []string{"pending", "approve", ""} {
		_, err = f.svc.ProcessTransaction(ctx, txn.ID, decision, "admin")
		assert.True(t, apperrors.IsValidationError(err), decision)
	}

	_, err = f.svc.ProcessTransaction(ctx, "does-not-exist", "approved", "admin")
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, models.TransactionStatusPending, f.store.transaction(txn.ID).Status)
}

func TestApprovalRechecksBalance(t *testing.T) {
	f := newTransactionFixture(t)
	ctx := context.Background()

	txn, err := f.svc.RequestTransaction(ctx, "u1", &models.CreateTransactionRequest{
		ToID:   "u2",
		Amount: amount("500"),
		Type:   "transfer",
	})
	require.NoError(t, err)

	// Funds left the account between request and approval.
	f.store.setBalance("u1", "100")

	_, err = f.svc.ProcessTransaction(ctx, txn.ID, "approved", "admin")
	assert.True(t, apperrors.IsInsufficientBalance(err))
	assert.Equal(t, models.TransactionStatusPending, f.store.transaction(txn.ID).Status)
	assertBalance(t, f.store, "u1", "100")
	assertBalance(t, f.store, "u2", "500")
	assertBalance(t, f.store, "admin", "0")
}

func TestFailedSettlementRollsBackEverything(t *testing.T) {
	f := newTransactionFixture(t)
	ctx := context.Background()

	txn, err := f.svc.RequestTransaction(ctx, "u1", &models.CreateTransactionRequest{
		ToID:   "u2",
		Amount: amount("100"),
		Type:   "transfer",
	})
	require.NoError(t, err)
	auditBefore, err := f.svc.GetTransactionAudit(ctx, txn.ID)
	require.NoError(t, err)

	// u2 is written last, after admin and u1 were already updated.
	f.store.failBalanceUpdate("u2")
	_, err = f.svc.ProcessTransaction(ctx, txn.ID, "approved", "admin")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))

	assert.Equal(t, models.TransactionStatusPending, f.store.transaction(txn.ID).Status)
	assertBalance(t, f.store, "u1", "1000")
	assertBalance(t, f.store, "u2", "500")
	assertBalance(t, f.store, "admin", "0")
	auditAfter, err := f.svc.GetTransactionAudit(ctx, txn.ID)
	require.NoError(t, err)
	assert.Len(t, auditAfter, len(auditBefore))
	assert.Empty(t, f.cache.invalidated)

	f.store.failBalanceUpdate("")
	_, err = f.svc.ProcessTransaction(ctx, txn.ID, "approved", "admin")
	require.NoError(t, err)
	assertBalance(t, f.store, "u1", "898")
}

func TestCancelledSettlementLeavesTransactionPending(t *testing.T) {
	f := newTransactionFixture(t)

	txn, err := f.svc.RequestTransaction(context.Background(), "u1", &models.CreateTransactionRequest{
		ToID:   "u2",
		Amount: amount("100"),
		Type:   "transfer",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.svc.ProcessTransaction(ctx, txn.ID, "approved", "admin")
	require.Error(t, err)
	assert.Equal(t, models.TransactionStatusPending, f.store.transaction(txn.ID).Status)
	assertBalance(t, f.store, "u1", "1000")
}

func TestConcurrentApprovalsSettleOnce(t *testing.T) {
	f := newTransactionFixture(t)
	ctx := context.Background()

	txn, err := f.svc.RequestTransaction(ctx, "u1", &models.CreateTransactionRequest{
		ToID:   "u2",
		Amount: amount("100"),
		Type:   "transfer",
	})
	require.NoError(t, err)

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ProcessTransaction(ctx, txn.ID, "approved", "admin")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, alreadyProcessed int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperrors.IsAlreadyProcessed(err):
			alreadyProcessed++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, alreadyProcessed)
	assertBalance(t, f.store, "u1", "898")
	assertBalance(t, f.store, "u2", "600")
	assertBalance(t, f.store, "admin", "2")
}

func TestConcurrentTransfersConserveBalance(t *testing.T) {
	f := newTransactionFixture(t)
	ctx := context.Background()

	var ids []string
	pairs := [][2]string{{"u1", "u2"}, {"u2", "u1"}, {"u1", "u2"}, {"u2", "u1"}, {"u1", "u2"}}
	for _, p := range pairs {
		txn, err := f.svc.RequestTransaction(ctx, p[0], &models.CreateTransactionRequest{
			ToID:   p[1],
			Amount: amount("10.55"),
			Type:   "transfer",
		})
		require.NoError(t, err)
		ids = append(ids, txn.ID)
	}

	before := totalBalance(f.store)
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.svc.ProcessTransaction(ctx, id, "approved", "admin")
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.True(t, before.Equal(totalBalance(f.store)))
	assertBalance(t, f.store, "admin", "1.055")
}

func TestGetTransactionAccessControl(t *testing.T) {
	f := newTransactionFixture(t)
	ctx := context.Background()

	txn, err := f.svc.RequestTransaction(ctx, "u1", &models.CreateTransactionRequest{
		ToID:   "u2",
		Amount: amount("10"),
		Type:   "transfer",
	})
	require.NoError(t, err)

	for _, caller := range []models.Principal{
		{UserID: "u1"},
		{UserID: "u2"},
		{UserID: "admin", IsAdmin: true},
	} {
		got, err := f.svc.GetTransaction(ctx, txn.ID, caller)
		require.NoError(t, err, caller.UserID)
		assert.Equal(t, txn.ID, got.ID)
	}

	_, err = f.svc.GetTransaction(ctx, txn.ID, models.Principal{UserID: "u3"})
	assert.True(t, apperrors.IsForbidden(err))

	_, err = f.svc.GetTransaction(ctx, "missing", models.Principal{UserID: "u1"})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListTransactionsPagingAndFilters(t *testing.T) {
	f := newTransactionFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.RequestTransaction(ctx, "u1", &models.CreateTransactionRequest{ToID: "u2", Amount: amount("1"), Type: "transfer"})
		require.NoError(t, err)
	}
	deposit, err := f.svc.RequestTransaction(ctx, "u3", &models.CreateTransactionRequest{Amount: amount("5"), Type: "deposit"})
	require.NoError(t, err)
	_, err = f.svc.ProcessTransaction(ctx, deposit.ID, "approved", "admin")
	require.NoError(t, err)

	page, err := f.svc.ListUserTransactions(ctx, "u1", models.TransactionListQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 2, page.Limit)
	assert.Len(t, page.Transactions, 2)
	assert.False(t, page.Transactions[0].CreatedAt.Before(page.Transactions[1].CreatedAt), "newest first")

	page, err = f.svc.ListUserTransactions(ctx, "u1", models.TransactionListQuery{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 1)

	page, err = f.svc.ListUserTransactions(ctx, "u3", models.TransactionListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, DefaultPageLimit, page.Limit)

	page, err = f.svc.ListAllTransactions(ctx, models.TransactionListQuery{Status: "approved"})
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, deposit.ID, page.Transactions[0].ID)

	page, err = f.svc.ListAllTransactions(ctx, models.TransactionListQuery{Type: "transfer", Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, MaxPageLimit, page.Limit)

	page, err = f.svc.ListUserTransactions(ctx, "nobody", models.TransactionListQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Transactions)
	assert.Equal(t, 0, page.TotalPages)

	_, err = f.svc.ListAllTransactions(ctx, models.TransactionListQuery{Status: "done"})
	assert.True(t, apperrors.IsValidationError(err))
	_, err = f.svc.ListAllTransactions(ctx, models.TransactionListQuery{Type: "withdraw"})
	assert.True(t, apperrors.IsValidationError(err))
}

func TestSettlementDeltas(t *testing.T) {
	dec := decimal.RequireFromString
	tests := []struct {
		name string
		txn  models.Transaction
		want map[string]string
	}{
		{
			name: "transfer",
			txn:  models.Transaction{FromID: "a", ToID: "b", Amount: dec("100"), Commission: dec("2"), Type: models.TransactionTypeTransfer},
			want: map[string]string{"a": "-102", "b": "100", "fee": "2"},
		},
		{
			name: "payment to commission account",
			txn:  models.Transaction{FromID: "a", ToID: "fee", Amount: dec("10"), Commission: dec("1"), Type: models.TransactionTypePayment},
			want: map[string]string{"a": "-11", "fee": "11"},
		},
		{
			name: "deposit",
			txn:  models.Transaction{FromID: "external", ToID: "b", Amount: dec("5"), Type: models.TransactionTypeDeposit},
			want: map[string]string{"b": "5"},
		},
		{
			name: "withdrawal",
			txn:  models.Transaction{FromID: "a", ToID: "external", Amount: dec("5"), Type: models.TransactionTypeWithdrawal},
			want: map[string]string{"a": "-5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deltas, err := settlementDeltas(&tt.txn, "fee")
			require.NoError(t, err)
			require.Len(t, deltas, len(tt.want))
			for id, want := range tt.want {
				assert.True(t, deltas[id].Equal(dec(want)), "%s: got %s want %s", id, deltas[id], want)
			}
		})
	}

	_, err := settlementDeltas(&models.Transaction{FromID: "external", ToID: "b", Amount: dec("1"), Type: models.TransactionTypeTransfer}, "fee")
	assert.Error(t, err)
	_, err = settlementDeltas(&models.Transaction{FromID: "a", ToID: "b", Amount: dec("1"), Type: "refund"}, "fee")
	assert.Error(t, err)
}

func TestSortedAccountIDs(t *testing.T) {
	ids := sortedAccountIDs(map[string]decimal.Decimal{"u2": decimal.Zero, "admin": decimal.Zero, "u1": decimal.Zero})
	assert.Equal(t, []string{"admin", "u1", "u2"}, ids)
}

func TestBuildFilterRejectsOverflowingPage(t *testing.T) {
	_, _, err := buildFilter("", models.TransactionListQuery{Page: math.MaxInt, Limit: 10})
	assert.True(t, apperrors.IsValidationError(err))

	lastPage := math.MaxInt/10 + 1
	filter, page, err := buildFilter("", models.TransactionListQuery{Page: lastPage, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, lastPage, page)
	assert.GreaterOrEqual(t, filter.Offset, 0)

	f := newTransactionFixture(t)
	_, err = f.svc.ListAllTransactions(context.Background(), models.TransactionListQuery{Page: math.MaxInt})
	assert.True(t, apperrors.IsValidationError(err))
}
