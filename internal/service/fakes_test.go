package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/riteshkumar/peer-transfers/internal/errors"
	"github.com/riteshkumar/peer-transfers/internal/models"
)

// memStore is an in-memory stand-in for Postgres. WithinTransaction runs one
// transaction at a time and restores a snapshot when fn fails, which gives
// the all-or-nothing behaviour the services rely on.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	accounts     map[string]*models.Account
	transactions map[string]*models.Transaction
	audit        []*models.AuditLog
	clock        time.Time

	failBalanceUpdateFor string
	accountReads         int
	// afterAccountRead runs outside the lock once GetAccountByID has read.
	afterAccountRead func(id string)
}

func newMemStore() *memStore {
	return &memStore{
		accounts:     make(map[string]*models.Account),
		transactions: make(map[string]*models.Transaction),
		clock:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) addAccount(id string, balance string, isAdmin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[id] = &models.Account{
		ID:      id,
		Name:    id,
		IsAdmin: isAdmin,
		Balance: decimal.RequireFromString(balance),
	}
}

func (s *memStore) balance(id string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id].Balance
}

func (s *memStore) setBalance(id string, balance string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[id].Balance = decimal.RequireFromString(balance)
}

func (s *memStore) transaction(id string) *models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return nil
	}
	c := *t
	return &c
}

func (s *memStore) transactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

func (s *memStore) failBalanceUpdate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failBalanceUpdateFor = id
}

type memSnapshot struct {
	accounts     map[string]models.Account
	transactions map[string]models.Transaction
	auditLen     int
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		accounts:     make(map[string]models.Account, len(s.accounts)),
		transactions: make(map[string]models.Transaction, len(s.transactions)),
		auditLen:     len(s.audit),
	}
	for id, a := range s.accounts {
		snap.accounts[id] = *a
	}
	for id, t := range s.transactions {
		snap.transactions[id] = *t
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = make(map[string]*models.Account, len(snap.accounts))
	for id, a := range snap.accounts {
		a := a
		s.accounts[id] = &a
	}
	s.transactions = make(map[string]*models.Transaction, len(snap.transactions))
	for id, t := range snap.transactions {
		t := t
		s.transactions[id] = &t
	}
	s.audit = s.audit[:snap.auditLen]
}

func (s *memStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, nil); err != nil {
		s.restore(snap)
		return err
	}
	if err := ctx.Err(); err != nil {
		s.restore(snap)
		return errors.NewTransactionError("commit", err)
	}
	return nil
}

type memAccountRepo struct{ s *memStore }

func (r memAccountRepo) CreateAccount(ctx context.Context, account *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[account.ID]; ok {
		return errors.ErrAccountAlreadyExists
	}
	account.CreatedAt = r.s.clock
	account.UpdatedAt = r.s.clock
	c := *account
	r.s.accounts[account.ID] = &c
	return nil
}

func (r memAccountRepo) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	account, err := r.read(id)
	if hook := r.s.afterAccountRead; hook != nil && err == nil {
		hook(id)
	}
	return account, err
}

func (r memAccountRepo) GetAccountByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.read(id)
}

func (r memAccountRepo) read(id string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.accountReads++
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	c := *a
	return &c, nil
}

func (r memAccountRepo) UpdateAccountBalance(ctx context.Context, tx *sql.Tx, id string, newBalance decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failBalanceUpdateFor == id {
		return fmt.Errorf("simulated write failure for %s", id)
	}
	a, ok := r.s.accounts[id]
	if !ok {
		return errors.ErrAccountNotFound
	}
	a.Balance = newBalance
	return nil
}

func (r memAccountRepo) UpdateRefreshTokenHash(ctx context.Context, id, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return errors.ErrAccountNotFound
	}
	a.RefreshTokenHash = tokenHash
	return nil
}

func (r memAccountRepo) RotateRefreshTokenHash(ctx context.Context, id, oldHash, newHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok || a.RefreshTokenHash == "" || a.RefreshTokenHash != oldHash {
		return errors.ErrInvalidToken
	}
	a.RefreshTokenHash = newHash
	return nil
}

func (r memAccountRepo) AccountExists(ctx context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.accounts[id]
	return ok, nil
}

type memTransactionRepo struct{ s *memStore }

func (r memTransactionRepo) Create(ctx context.Context, tx *sql.Tx, transaction *models.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if transaction.ID == "" {
		transaction.ID = uuid.New().String()
	}
	r.s.clock = r.s.clock.Add(time.Second)
	transaction.CreatedAt = r.s.clock
	transaction.UpdatedAt = r.s.clock
	c := *transaction
	r.s.transactions[transaction.ID] = &c
	return nil
}

func (r memTransactionRepo) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok {
		return nil, errors.ErrTransactionNotFound
	}
	c := *t
	return &c, nil
}

func (r memTransactionRepo) GetByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r memTransactionRepo) MarkProcessed(ctx context.Context, tx *sql.Tx, transaction *models.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[transaction.ID]
	if !ok || t.Status != models.TransactionStatusPending {
		return errors.ErrAlreadyProcessed
	}
	t.Status = transaction.Status
	t.ProcessedBy = transaction.ProcessedBy
	t.ProcessedAt = transaction.ProcessedAt
	t.UpdatedAt = *transaction.ProcessedAt
	transaction.UpdatedAt = t.UpdatedAt
	return nil
}

func (r memTransactionRepo) List(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []*models.Transaction
	for _, t := range r.s.transactions {
		if filter.AccountID != "" && !t.Involves(filter.AccountID) {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		c := *t
		matched = append(matched, &c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	page := []*models.Transaction{}
	for i := filter.Offset; i < len(matched) && i < filter.Offset+filter.Limit; i++ {
		page = append(page, matched[i])
	}
	return page, len(matched), nil
}

type memAuditRepo struct{ s *memStore }

func (r memAuditRepo) Create(ctx context.Context, tx *sql.Tx, log *models.AuditLog) error {
	return r.CreateWithDB(ctx, log)
}

func (r memAuditRepo) CreateWithDB(ctx context.Context, log *models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	log.ID = strconv.Itoa(len(r.s.audit) + 1)
	log.CreatedAt = r.s.clock
	c := *log
	r.s.audit = append(r.s.audit, &c)
	return nil
}

func (r memAuditRepo) GetByEntityID(ctx context.Context, entityType, entityID string) ([]*models.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	logs := []*models.AuditLog{}
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		l := r.s.audit[i]
		if l.EntityType == entityType && l.EntityID == entityID {
			c := *l
			logs = append(logs, &c)
		}
	}
	return logs, nil
}

// recordingCache is an in-memory AccountCache that remembers invalidations.
type recordingCache struct {
	mu          sync.Mutex
	entries     map[string]models.Account
	generations map[string]int64
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{
		entries:     make(map[string]models.Account),
		generations: make(map[string]int64),
	}
}

func (c *recordingCache) Get(ctx context.Context, id string) (*models.Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return &a, true
}

func (c *recordingCache) Generation(ctx context.Context, id string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[id], true
}

func (c *recordingCache) Set(ctx context.Context, account *models.Account, generation int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[account.ID] != generation {
		return
	}
	c.entries[account.ID] = *account
}

func (c *recordingCache) Invalidate(ctx context.Context, ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.entries, id)
		c.generations[id]++
	}
	c.invalidated = append(c.invalidated, ids...)
}

type recordingLocker struct {
	mu   sync.Mutex
	keys []string
}

func (l *recordingLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return fn(ctx)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
