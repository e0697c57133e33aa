package memory

import (
	"context"
	"fmt"

	"hero-mint-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// ReceiptRepo implements ports.ReceiptRepository.
type ReceiptRepo struct {
	s *Store
}

// NewReceiptRepo creates a new ReceiptRepo.
func NewReceiptRepo(s *Store) *ReceiptRepo {
	return &ReceiptRepo{s: s}
}

func (r *ReceiptRepo) Create(ctx context.Context, tx pgx.Tx, rc *domain.MintReceipt) error {
	err := r.s.write(ctx, tx, func(t *Tx) error {
		for _, staged := range t.receipts {
			if staged.UserID == rc.UserID && staged.IdempotencyKey == rc.IdempotencyKey {
				return uniqueViolation("uq_mint_receipts_key")
			}
			if staged.TokenID == rc.TokenID {
				return uniqueViolation("uq_mint_receipts_token")
			}
		}
		r.s.mu.Lock()
		_, keyTaken := r.s.receipts[compositeKey(rc.UserID, rc.IdempotencyKey)]
		_, tokenTaken := r.s.receiptToken[rc.TokenID]
		r.s.mu.Unlock()
		switch {
		case keyTaken:
			return uniqueViolation("uq_mint_receipts_key")
		case tokenTaken:
			return uniqueViolation("uq_mint_receipts_token")
		}
		t.receipts = append(t.receipts, *rc)
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func (r *ReceiptRepo) GetByIdempotencyKey(ctx context.Context, tx pgx.Tx, userID, key string) (*domain.MintReceipt, error) {
	t, err := r.s.read(tx)
	if err != nil {
		return nil, fmt.Errorf("get receipt by key: %w", err)
	}
	if t != nil {
		for _, rc := range t.receipts {
			if rc.UserID == userID && rc.IdempotencyKey == key {
				return &rc, nil
			}
		}
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rc, ok := r.s.receipts[compositeKey(userID, key)]
	if !ok {
		return nil, nil
	}
	return &rc, nil
}

func (r *ReceiptRepo) GetByTokenID(ctx context.Context, tokenID string) (*domain.MintReceipt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k, ok := r.s.receiptToken[tokenID]
	if !ok {
		return nil, nil
	}
	rc := r.s.receipts[k]
	return &rc, nil
}
