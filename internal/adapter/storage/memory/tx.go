package memory

import (
	"context"
	"errors"
	"fmt"

	"hero-mint-service/internal/core/domain"
	"hero-mint-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	errForeignTx = errors.New("memory store: transaction was not started by this store")
	errNoSQL     = errors.New("memory store: raw SQL is not supported")
)

// Tx is a pgx.Tx whose writes are staged until Commit. A Tx must not be used
// from more than one goroutine.
type Tx struct {
	store *Store
	done  bool

	wallets  map[string]domain.Wallet
	ledger   []domain.LedgerEntry
	requests map[uuid.UUID]domain.MintRequest
	assets   map[string]domain.NftAsset
	receipts []domain.MintReceipt
	audit    []domain.AuditEvent

	held map[string]chan struct{}
}

var _ pgx.Tx = (*Tx)(nil)

// lockRow blocks until the row lock is held by t or ctx is done.
func (t *Tx) lockRow(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	ch := t.store.rowLock(key)
	select {
	case ch <- struct{}{}:
		t.held[key] = ch
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for row lock %s: %w", key, ctx.Err())
	}
}

func (t *Tx) release() {
	for key, ch := range t.held {
		<-ch
		delete(t.held, key)
	}
	t.done = true
}

// Commit validates unique constraints against committed state and applies the
// staged writes atomically.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	defer t.release()

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := t.validate(); err != nil {
		return err
	}

	for id, w := range t.wallets {
		s.wallets[id] = w
	}
	for _, e := range t.ledger {
		s.ledgerByKey[e.IdempotencyKey] = len(s.ledger)
		s.ledger = append(s.ledger, e)
	}
	for id, r := range t.requests {
		s.requests[id] = r
		s.requestByKey[compositeKey(r.UserID, r.IdempotencyKey)] = id
		s.requestNonce[compositeKey(r.UserID, r.Nonce)] = id
	}
	for token, a := range t.assets {
		s.assets[token] = a
	}
	for _, rc := range t.receipts {
		k := compositeKey(rc.UserID, rc.IdempotencyKey)
		s.receipts[k] = rc
		s.receiptToken[rc.TokenID] = k
	}
	s.audit = append(s.audit, t.audit...)
	return nil
}

// validate rechecks constraints a concurrent transaction may have claimed
// since the insert. Caller holds s.mu.
func (t *Tx) validate() error {
	s := t.store
	for _, e := range t.ledger {
		if _, ok := s.ledgerByKey[e.IdempotencyKey]; ok {
			return uniqueViolation("uq_ledger_idempotency_key")
		}
	}
	for id, r := range t.requests {
		if other, ok := s.requestByKey[compositeKey(r.UserID, r.IdempotencyKey)]; ok && other != id {
			return uniqueViolation("uq_mint_requests_key")
		}
		if other, ok := s.requestNonce[compositeKey(r.UserID, r.Nonce)]; ok && other != id {
			return uniqueViolation("uq_mint_requests_nonce")
		}
	}
	for _, rc := range t.receipts {
		if _, ok := s.receipts[compositeKey(rc.UserID, rc.IdempotencyKey)]; ok {
			return uniqueViolation("uq_mint_receipts_key")
		}
		if _, ok := s.receiptToken[rc.TokenID]; ok {
			return uniqueViolation("uq_mint_receipts_token")
		}
	}
	return nil
}

// Rollback discards staged writes. Rolling back a finished transaction returns
// pgx.ErrTxClosed, like pgx.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.release()
	return nil
}

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("memory store: nested transactions are not supported")
}

func (t *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errNoSQL
}

func (t *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return errBatch{}
}

func (t *Tx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errNoSQL
}

func (t *Tx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNoSQL
}

func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errNoSQL
}

func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{}
}

func (t *Tx) Conn() *pgx.Conn { return nil }

type errRow struct{}

func (errRow) Scan(dest ...any) error { return errNoSQL }

type errBatch struct{}

func (errBatch) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, errNoSQL }
func (errBatch) Query() (pgx.Rows, error)         { return nil, errNoSQL }
func (errBatch) QueryRow() pgx.Row                { return errRow{} }
func (errBatch) Close() error                     { return nil }

func uniqueViolation(constraint string) error {
	return fmt.Errorf("%w (%s)", ports.ErrUniqueViolation, constraint)
}
