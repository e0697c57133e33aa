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

func receiptCols() []string {
	return []string{"id", "mint_request_id", "user_id", "idempotency_key", "token_id", "tx_hash",
		"price_credits", "ledger_entry_id", "image_uri", "created_at"}
}

func newTestReceipt() *domain.MintReceipt {
	return &domain.MintReceipt{
		ID:             uuid.New(),
		MintRequestID:  uuid.New(),
		UserID:         "hero-1",
		IdempotencyKey: "K1",
		TokenID:        domain.NewTokenID(),
		TxHash:         "0x" + "ab12",
		PriceCredits:   300,
		LedgerEntryID:  uuid.New(),
		ImageURI:       "http://localhost:8080/api/v1/assets/t/image",
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

func receiptRow(rc *domain.MintReceipt) *pgxmock.Rows {
	return pgxmock.NewRows(receiptCols()).AddRow(
		rc.ID, rc.MintRequestID, rc.UserID, rc.IdempotencyKey, rc.TokenID, rc.TxHash,
		rc.PriceCredits, rc.LedgerEntryID, rc.ImageURI, rc.CreatedAt,
	)
}

func TestReceiptRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReceiptRepo(mock)
	rc := newTestReceipt()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mint_receipts").
		WithArgs(rc.ID, rc.MintRequestID, rc.UserID, rc.IdempotencyKey, rc.TokenID, rc.TxHash,
			rc.PriceCredits, rc.LedgerEntryID, rc.ImageURI, rc.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.Create(context.Background(), tx, rc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptRepo_Create_Duplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReceiptRepo(mock)
	rc := newTestReceipt()

	mock.ExpectExec("INSERT INTO mint_receipts").
		WithArgs(rc.ID, rc.MintRequestID, rc.UserID, rc.IdempotencyKey, rc.TokenID, rc.TxHash,
			rc.PriceCredits, rc.LedgerEntryID, rc.ImageURI, rc.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_mint_receipts_key"})

	err = repo.Create(context.Background(), nil, rc)
	assert.ErrorIs(t, err, ports.ErrUniqueViolation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptRepo_GetByIdempotencyKey_InsideTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReceiptRepo(mock)
	rc := newTestReceipt()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM mint_receipts WHERE user_id = \\$1 AND idempotency_key = \\$2").
		WithArgs("hero-1", "K1").
		WillReturnRows(receiptRow(rc))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	got, err := repo.GetByIdempotencyKey(context.Background(), tx, "hero-1", "K1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rc.TokenID, got.TokenID)
	assert.Equal(t, rc.LedgerEntryID, got.LedgerEntryID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptRepo_GetByTokenID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReceiptRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM mint_receipts WHERE token_id").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(receiptCols()))

	got, err := repo.GetByTokenID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
