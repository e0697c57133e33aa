package postgres

import (
	"context"
	"testing"
	"time"

	"hero-mint-service/internal/core/domain"
	"hero-mint-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMintRequest() *domain.MintRequest {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.MintRequest{
		ID:             uuid.New(),
		UserID:         "hero-1",
		AssetDraftID:   "draft-7",
		CollectionID:   "hero-badges",
		Prompt:         "a lighthouse guarding the bay",
		Theme:          "watercolor",
		Category:       "coastal",
		PriceCredits:   300,
		IdempotencyKey: "K1",
		Nonce:          "n-1",
		Timestamp:      now,
		Status:         domain.MintStatusProcessing,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestMintRequestRepo_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMintRequestRepo(mock)
	m := newTestMintRequest()
	storedID := uuid.New()
	storedAt := m.CreatedAt.Add(-time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO mint_requests .+ ON CONFLICT \\(user_id, idempotency_key\\) DO UPDATE").
		WithArgs(m.ID, m.UserID, m.AssetDraftID, m.CollectionID, m.Prompt, m.Theme, m.Category,
			m.PriceCredits, m.IdempotencyKey, m.Nonce, m.Timestamp, "PROCESSING", (*string)(nil),
			m.CreatedAt, m.UpdatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(storedID, storedAt))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(context.Background(), tx, m))
	assert.Equal(t, storedID, m.ID, "a retried key keeps the original row id")
	assert.Equal(t, storedAt, m.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMintRequestRepo_Upsert_NonceReused(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMintRequestRepo(mock)
	m := newTestMintRequest()

	mock.ExpectQuery("INSERT INTO mint_requests").
		WithArgs(m.ID, m.UserID, m.AssetDraftID, m.CollectionID, m.Prompt, m.Theme, m.Category,
			m.PriceCredits, m.IdempotencyKey, m.Nonce, m.Timestamp, "PROCESSING", (*string)(nil),
			m.CreatedAt, m.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_mint_requests_nonce"})

	err = repo.Upsert(context.Background(), nil, m)
	assert.ErrorIs(t, err, ports.ErrUniqueViolation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMintRequestRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMintRequestRepo(mock)
	id := uuid.New()
	msg := "artwork generation failed"

	mock.ExpectExec("UPDATE mint_requests SET status").
		WithArgs(id, "FAILED", &msg).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE mint_requests SET status").
		WithArgs(id, "COMPLETED", (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.UpdateStatus(context.Background(), nil, id, domain.MintStatusFailed, &msg))

	err = repo.UpdateStatus(context.Background(), nil, id, domain.MintStatusCompleted, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mint request not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMintRequestRepo_GetByIdempotencyKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMintRequestRepo(mock)
	m := newTestMintRequest()
	cols := []string{"id", "user_id", "asset_draft_id", "collection_id", "prompt", "theme", "category",
		"price_credits", "idempotency_key", "nonce", "client_timestamp", "status", "error", "created_at", "updated_at"}

	mock.ExpectQuery("SELECT .+ FROM mint_requests WHERE user_id = \\$1 AND idempotency_key = \\$2").
		WithArgs("hero-1", "K1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			m.ID, m.UserID, m.AssetDraftID, m.CollectionID, m.Prompt, m.Theme, m.Category,
			m.PriceCredits, m.IdempotencyKey, m.Nonce, m.Timestamp, "COMPLETED", nil, m.CreatedAt, m.UpdatedAt,
		))
	mock.ExpectQuery("SELECT .+ FROM mint_requests").
		WithArgs("hero-1", "K2").
		WillReturnRows(pgxmock.NewRows(cols))

	got, err := repo.GetByIdempotencyKey(context.Background(), "hero-1", "K1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.MintStatusCompleted, got.Status)
	assert.Nil(t, got.Error)

	missing, err := repo.GetByIdempotencyKey(context.Background(), "hero-1", "K2")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.NoError(t, mock.ExpectationsWereMet())
}
