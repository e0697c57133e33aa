package ports

import (
	"context"
	"errors"

	"hero-mint-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Storage-level sentinel errors. Adapters translate driver errors into these so
// services never inspect SQLSTATE codes.
var (
	// ErrUniqueViolation is returned when an insert hits a unique constraint.
	ErrUniqueViolation = errors.New("unique constraint violation")
	// ErrConditionNotMet is returned when a conditional update matched no rows.
	ErrConditionNotMet = errors.New("conditional update matched no rows")
)

// WalletRepository defines persistence operations for wallets.
// Mutations run inside the caller's transaction; the conditional UPDATE is the
// serialization point for concurrent mints of the same user.
type WalletRepository interface {
	// Create inserts w unless a wallet already exists. Returns true if inserted.
	Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) (bool, error)
	GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error)
	// Lock moves amount from balance to locked_balance if balance >= amount.
	Lock(ctx context.Context, tx pgx.Tx, userID string, amount int64) (*domain.Wallet, error)
	// Settle removes amount from locked_balance if locked_balance >= amount.
	Settle(ctx context.Context, tx pgx.Tx, userID string, amount int64) (*domain.Wallet, error)
	// Unlock moves amount back from locked_balance to balance.
	Unlock(ctx context.Context, tx pgx.Tx, userID string, amount int64) (*domain.Wallet, error)
	Credit(ctx context.Context, tx pgx.Tx, userID string, amount int64) (*domain.Wallet, error)
	// List returns wallets ordered by user_id, starting after afterUserID.
	List(ctx context.Context, afterUserID string, limit int) ([]domain.Wallet, error)
}

// LedgerRepository defines the append-only ledger journal.
type LedgerRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error)
	SumByType(ctx context.Context, userID string) (domain.LedgerTotals, error)
}

// MintRequestRepository persists mint attempts.
type MintRequestRepository interface {
	// Upsert inserts req, or resets an earlier attempt with the same
	// (user_id, idempotency_key) to req.Status. req.ID and req.CreatedAt are
	// replaced with the stored values. A nil tx writes outside a transaction.
	Upsert(ctx context.Context, tx pgx.Tx, req *domain.MintRequest) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.MintStatus, errMsg *string) error
	GetByIdempotencyKey(ctx context.Context, userID, key string) (*domain.MintRequest, error)
}

// AssetRepository persists minted artifacts.
type AssetRepository interface {
	Create(ctx context.Context, tx pgx.Tx, asset *domain.NftAsset) error
	// GetByTokenID returns the asset without its image bytes.
	GetByTokenID(ctx context.Context, tokenID string) (*domain.NftAsset, error)
	// GetImage returns the image bytes and media type, or nil data if unknown.
	GetImage(ctx context.Context, tokenID string) ([]byte, string, error)
	// UpdateStatus moves the asset from one status to another, failing with
	// ErrConditionNotMet if it is not currently in from.
	UpdateStatus(ctx context.Context, tx pgx.Tx, tokenID string, from, to domain.AssetStatus) error
}

// ReceiptRepository persists mint receipts, unique per (user_id, idempotency_key).
type ReceiptRepository interface {
	Create(ctx context.Context, tx pgx.Tx, receipt *domain.MintReceipt) error
	// GetByIdempotencyKey reads through tx when it is non-nil.
	GetByIdempotencyKey(ctx context.Context, tx pgx.Tx, userID, key string) (*domain.MintReceipt, error)
	GetByTokenID(ctx context.Context, tokenID string) (*domain.MintReceipt, error)
}

// AuditRepository persists audit events.
type AuditRepository interface {
	Create(ctx context.Context, tx pgx.Tx, event *domain.AuditEvent) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]domain.AuditEvent, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
