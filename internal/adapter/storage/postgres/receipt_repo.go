package postgres

import (
	"context"
	"errors"
	"fmt"

	"hero-mint-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const receiptColumns = `id, mint_request_id, user_id, idempotency_key, token_id, tx_hash,
	price_credits, ledger_entry_id, image_uri, created_at`

// ReceiptRepo implements ports.ReceiptRepository.
type ReceiptRepo struct {
	pool Pool
}

// NewReceiptRepo creates a new ReceiptRepo.
func NewReceiptRepo(pool Pool) *ReceiptRepo {
	return &ReceiptRepo{pool: pool}
}

// Create inserts a receipt. A second receipt for the same (user_id,
// idempotency_key) yields ports.ErrUniqueViolation.
func (r *ReceiptRepo) Create(ctx context.Context, tx pgx.Tx, rc *domain.MintReceipt) error {
	query := `INSERT INTO mint_receipts (` + receiptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := on(r.pool, tx).Exec(ctx, query,
		rc.ID, rc.MintRequestID, rc.UserID, rc.IdempotencyKey, rc.TokenID, rc.TxHash,
		rc.PriceCredits, rc.LedgerEntryID, rc.ImageURI, rc.CreatedAt,
	)
	if err != nil {
		return wrapErr("insert receipt", err)
	}
	return nil
}

// GetByIdempotencyKey fetches the receipt of a mint. Returns nil, nil if none.
func (r *ReceiptRepo) GetByIdempotencyKey(ctx context.Context, tx pgx.Tx, userID, key string) (*domain.MintReceipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM mint_receipts WHERE user_id = $1 AND idempotency_key = $2`

	rc, err := scanReceipt(on(r.pool, tx).QueryRow(ctx, query, userID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get receipt by key: %w", err)
	}
	return rc, nil
}

// GetByTokenID fetches the receipt of an asset. Returns nil, nil if none.
func (r *ReceiptRepo) GetByTokenID(ctx context.Context, tokenID string) (*domain.MintReceipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM mint_receipts WHERE token_id = $1`

	rc, err := scanReceipt(r.pool.QueryRow(ctx, query, tokenID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get receipt by token: %w", err)
	}
	return rc, nil
}

func scanReceipt(row pgx.Row) (*domain.MintReceipt, error) {
	rc := &domain.MintReceipt{}
	err := row.Scan(&rc.ID, &rc.MintRequestID, &rc.UserID, &rc.IdempotencyKey, &rc.TokenID, &rc.TxHash,
		&rc.PriceCredits, &rc.LedgerEntryID, &rc.ImageURI, &rc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rc, nil
}
