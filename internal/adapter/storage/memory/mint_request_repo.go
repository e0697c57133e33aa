package memory

import (
	"context"
	"fmt"

	"hero-mint-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MintRequestRepo implements ports.MintRequestRepository.
type MintRequestRepo struct {
	s *Store
}

// NewMintRequestRepo creates a new MintRequestRepo.
func NewMintRequestRepo(s *Store) *MintRequestRepo {
	return &MintRequestRepo{s: s}
}

// Upsert follows INSERT ... ON CONFLICT (user_id, idempotency_key) DO UPDATE:
// a retried key resets status and error on the stored row, a nonce already
// used by another request is a unique violation.
func (r *MintRequestRepo) Upsert(ctx context.Context, tx pgx.Tx, m *domain.MintRequest) error {
	err := r.s.write(ctx, tx, func(t *Tx) error {
		if existing, ok := t.requestByKey(m.UserID, m.IdempotencyKey); ok {
			existing.Status = m.Status
			existing.Error = m.Error
			existing.UpdatedAt = m.UpdatedAt
			t.requests[existing.ID] = existing
			m.ID = existing.ID
			m.CreatedAt = existing.CreatedAt
			return nil
		}
		if t.nonceTaken(m.UserID, m.Nonce) {
			return uniqueViolation("uq_mint_requests_nonce")
		}
		t.requests[m.ID] = *m
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert mint request: %w", err)
	}
	return nil
}

func (r *MintRequestRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.MintStatus, errMsg *string) error {
	return r.s.write(ctx, tx, func(t *Tx) error {
		m, ok := t.requests[id]
		if !ok {
			r.s.mu.Lock()
			m, ok = r.s.requests[id]
			r.s.mu.Unlock()
		}
		if !ok {
			return fmt.Errorf("mint request not found: %s", id)
		}
		m.Status = status
		m.Error = errMsg
		m.UpdatedAt = r.s.now()
		t.requests[id] = m
		return nil
	})
}

func (r *MintRequestRepo) GetByIdempotencyKey(ctx context.Context, userID, key string) (*domain.MintRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.requestByKey[compositeKey(userID, key)]
	if !ok {
		return nil, nil
	}
	m := r.s.requests[id]
	return &m, nil
}

func (t *Tx) requestByKey(userID, key string) (domain.MintRequest, bool) {
	for _, m := range t.requests {
		if m.UserID == userID && m.IdempotencyKey == key {
			return m, true
		}
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	id, ok := t.store.requestByKey[compositeKey(userID, key)]
	if !ok {
		return domain.MintRequest{}, false
	}
	return t.store.requests[id], true
}

func (t *Tx) nonceTaken(userID, nonce string) bool {
	for _, m := range t.requests {
		if m.UserID == userID && m.Nonce == nonce {
			return true
		}
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	_, ok := t.store.requestNonce[compositeKey(userID, nonce)]
	return ok
}
