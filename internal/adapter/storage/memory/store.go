// Package memory is an in-process transactional store implementing the
// repository ports. It mirrors the PostgreSQL adapter's semantics: staged
// writes become visible on commit, unique constraints are enforced on insert
// and again at commit, and wallet mutations take a per-user row lock held until
// the transaction ends.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"hero-mint-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store holds committed state. All maps are guarded by mu.
type Store struct {
	mu sync.Mutex

	wallets      map[string]domain.Wallet
	ledger       []domain.LedgerEntry
	ledgerByKey  map[string]int
	requests     map[uuid.UUID]domain.MintRequest
	requestByKey map[string]uuid.UUID // user|idempotency key
	requestNonce map[string]uuid.UUID // user|nonce
	assets       map[string]domain.NftAsset
	receipts     map[string]domain.MintReceipt // user|idempotency key
	receiptToken map[string]string             // token -> user|idempotency key
	audit        []domain.AuditEvent

	rowLocks map[string]chan struct{}
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		wallets:      make(map[string]domain.Wallet),
		ledgerByKey:  make(map[string]int),
		requests:     make(map[uuid.UUID]domain.MintRequest),
		requestByKey: make(map[string]uuid.UUID),
		requestNonce: make(map[string]uuid.UUID),
		assets:       make(map[string]domain.NftAsset),
		receipts:     make(map[string]domain.MintReceipt),
		receiptToken: make(map[string]string),
		rowLocks:     make(map[string]chan struct{}),
		now:          func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Begin implements ports.DBTransactor.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.begin(), nil
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return "memory"
}

func (s *Store) begin() *Tx {
	return &Tx{
		store:    s,
		wallets:  make(map[string]domain.Wallet),
		requests: make(map[uuid.UUID]domain.MintRequest),
		assets:   make(map[string]domain.NftAsset),
		held:     make(map[string]chan struct{}),
	}
}

// write runs fn inside tx, or inside a single-statement transaction when tx is
// nil.
func (s *Store) write(ctx context.Context, tx pgx.Tx, fn func(t *Tx) error) error {
	if tx == nil {
		t := s.begin()
		if err := fn(t); err != nil {
			_ = t.Rollback(ctx)
			return err
		}
		return t.Commit(ctx)
	}
	t, err := s.own(tx)
	if err != nil {
		return err
	}
	return fn(t)
}

// read returns the caller's transaction, or nil for reads of committed state.
func (s *Store) read(tx pgx.Tx) (*Tx, error) {
	if tx == nil {
		return nil, nil
	}
	return s.own(tx)
}

func (s *Store) own(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t.store != s {
		return nil, errForeignTx
	}
	if t.done {
		return nil, pgx.ErrTxClosed
	}
	return t, nil
}

// rowLock returns the lock channel of a row, creating it on first use.
func (s *Store) rowLock(key string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.rowLocks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.rowLocks[key] = ch
	}
	return ch
}

func (s *Store) sortedWalletIDs() []string {
	ids := make([]string, 0, len(s.wallets))
	for id := range s.wallets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func compositeKey(userID, key string) string {
	return userID + "|" + key
}
