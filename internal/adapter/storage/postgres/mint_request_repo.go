package postgres

import (
	"context"
	"errors"
	"fmt"

	"hero-mint-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MintRequestRepo implements ports.MintRequestRepository.
type MintRequestRepo struct {
	pool Pool
}

// NewMintRequestRepo creates a new MintRequestRepo.
func NewMintRequestRepo(pool Pool) *MintRequestRepo {
	return &MintRequestRepo{pool: pool}
}

// Upsert inserts the request or, for a retried idempotency key, resets the
// stored attempt's status. Only the (user_id, idempotency_key) constraint is an
// arbiter; a reused nonce still fails with ports.ErrUniqueViolation.
func (r *MintRequestRepo) Upsert(ctx context.Context, tx pgx.Tx, m *domain.MintRequest) error {
	query := `INSERT INTO mint_requests (id, user_id, asset_draft_id, collection_id, prompt, theme, category,
			price_credits, idempotency_key, nonce, client_timestamp, status, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id, idempotency_key)
		DO UPDATE SET status = EXCLUDED.status, error = EXCLUDED.error, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	err := on(r.pool, tx).QueryRow(ctx, query,
		m.ID, m.UserID, m.AssetDraftID, m.CollectionID, m.Prompt, m.Theme, m.Category,
		m.PriceCredits, m.IdempotencyKey, m.Nonce, m.Timestamp, string(m.Status), m.Error,
		m.CreatedAt, m.UpdatedAt,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return wrapErr("upsert mint request", err)
	}
	return nil
}

// UpdateStatus sets the status and error message of a request.
func (r *MintRequestRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.MintStatus, errMsg *string) error {
	query := `UPDATE mint_requests SET status = $2, error = $3, updated_at = NOW() WHERE id = $1`

	tag, err := on(r.pool, tx).Exec(ctx, query, id, string(status), errMsg)
	if err != nil {
		return wrapErr("update mint request status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mint request not found: %s", id)
	}
	return nil
}

// GetByIdempotencyKey fetches a request. Returns nil, nil if missing.
func (r *MintRequestRepo) GetByIdempotencyKey(ctx context.Context, userID, key string) (*domain.MintRequest, error) {
	query := `SELECT id, user_id, asset_draft_id, collection_id, prompt, theme, category, price_credits,
			idempotency_key, nonce, client_timestamp, status, error, created_at, updated_at
		FROM mint_requests WHERE user_id = $1 AND idempotency_key = $2`

	var (
		m      domain.MintRequest
		status string
	)
	err := r.pool.QueryRow(ctx, query, userID, key).Scan(
		&m.ID, &m.UserID, &m.AssetDraftID, &m.CollectionID, &m.Prompt, &m.Theme, &m.Category,
		&m.PriceCredits, &m.IdempotencyKey, &m.Nonce, &m.Timestamp, &status, &m.Error,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get mint request: %w", err)
	}
	m.Status = domain.MintStatus(status)
	return &m, nil
}
