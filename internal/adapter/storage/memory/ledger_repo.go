package memory

import (
	"context"
	"fmt"

	"hero-mint-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	s *Store
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(s *Store) *LedgerRepo {
	return &LedgerRepo{s: s}
}

func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	err := r.s.write(ctx, tx, func(t *Tx) error {
		r.s.mu.Lock()
		_, committed := r.s.ledgerByKey[e.IdempotencyKey]
		r.s.mu.Unlock()
		if committed {
			return uniqueViolation("uq_ledger_idempotency_key")
		}
		for _, staged := range t.ledger {
			if staged.IdempotencyKey == e.IdempotencyKey {
				return uniqueViolation("uq_ledger_idempotency_key")
			}
		}
		t.ledger = append(t.ledger, *e)
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i, ok := r.s.ledgerByKey[key]
	if !ok {
		return nil, nil
	}
	e := r.s.ledger[i]
	return &e, nil
}

// ListByUser returns the newest entries first.
func (r *LedgerRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var entries []domain.LedgerEntry
	for i := len(r.s.ledger) - 1; i >= 0 && len(entries) < limit; i-- {
		if r.s.ledger[i].UserID == userID {
			entries = append(entries, r.s.ledger[i])
		}
	}
	return entries, nil
}

func (r *LedgerRepo) SumByType(ctx context.Context, userID string) (domain.LedgerTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	totals := domain.LedgerTotals{}
	for _, e := range r.s.ledger {
		if e.UserID == userID {
			totals[e.Type] += e.Amount
		}
	}
	return totals, nil
}
