package ports

import (
	"context"
	"time"

	"hero-mint-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// --- Infrastructure Ports ---

// TokenService handles JWT bearer tokens issued by the identity service.
type TokenService interface {
	Generate(userID string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID string
}

// IdempotencyCache is the Redis-layer outcome cache (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached outcome JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// Claim binds (userID, nonce) to owner. Returns true if the nonce was free
	// or is already bound to the same owner, false if another owner holds it.
	Claim(ctx context.Context, userID, nonce, owner string, ttl time.Duration) (bool, error)
}

// JobLock is a cluster-wide mutual exclusion lock for scheduled jobs.
type JobLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// GenerationRequest describes the artwork to render.
type GenerationRequest struct {
	Prompt   string
	Theme    string
	Category string
}

// AssetGenerator renders artwork. Implementations make a single attempt and
// never retry; the orchestrator owns rollback.
type AssetGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) ([]byte, error)
	Name() string
}

// MintCompletedEvent is published after a mint commits.
type MintCompletedEvent struct {
	UserID         string    `json:"user_id"`
	IdempotencyKey string    `json:"idempotency_key"`
	TokenID        string    `json:"token_id"`
	CollectionID   string    `json:"collection_id"`
	TxHash         string    `json:"tx_hash"`
	PriceCredits   int64     `json:"price_credits"`
	ImageURL       string    `json:"image_url"`
	MintedAt       time.Time `json:"minted_at"`
}

// EventPublisher delivers domain events. Delivery is best effort.
type EventPublisher interface {
	PublishMintCompleted(ctx context.Context, event MintCompletedEvent) error
	Close() error
}

// --- Service Ports (Business Logic) ---

// LedgerService owns wallet balances and the ledger journal.
// Lock, Settle and Unlock run in the caller's transaction and append their
// ledger entry there.
type LedgerService interface {
	EnsureWallet(ctx context.Context, userID string) (*domain.Wallet, error)
	Lock(ctx context.Context, tx pgx.Tx, userID string, amount int64, referenceID, idempotencyKey string) (*domain.LedgerEntry, error)
	Settle(ctx context.Context, tx pgx.Tx, userID string, amount int64, referenceID, idempotencyKey string) (*domain.LedgerEntry, error)
	Unlock(ctx context.Context, tx pgx.Tx, userID string, amount int64, referenceID string) (*domain.LedgerEntry, error)
	RecordMovement(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	Deposit(ctx context.Context, req DepositRequest) (*domain.Wallet, error)
	GetWallet(ctx context.Context, userID string) (*domain.Wallet, error)
	History(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error)
}

// DepositRequest holds validated input for a credit deposit.
type DepositRequest struct {
	UserID         string
	Amount         int64
	IdempotencyKey string
	Reason         string
	Client         domain.RequestContext
}

// Deduplicator answers whether an idempotency key already produced an outcome.
type Deduplicator interface {
	FindExistingOutcome(ctx context.Context, userID, idempotencyKey string) (*domain.MintOutcome, error)
	Remember(ctx context.Context, userID, idempotencyKey string, outcome *domain.MintOutcome)
}

// MintService defines the mint transaction.
type MintService interface {
	Mint(ctx context.Context, req MintRequest) (*domain.MintOutcome, error)
}

// MintRequest holds input for a mint.
type MintRequest struct {
	UserID         string
	AssetDraftID   string
	CollectionID   string
	Prompt         string
	Theme          string
	Category       string
	PriceCredits   int64
	IdempotencyKey string
	Nonce          string
	Timestamp      time.Time
	Client         domain.RequestContext
}

// AssetService serves and manages minted assets.
type AssetService interface {
	GetImage(ctx context.Context, tokenID string) (*AssetImage, error)
	GetMetadata(ctx context.Context, tokenID string) (*AssetMetadata, error)
	Burn(ctx context.Context, req BurnRequest) (*domain.NftAsset, error)
}

// AssetImage is the binary payload of an asset.
type AssetImage struct {
	Data      []byte
	MediaType string
}

// AssetMetadata is the ERC-721 style metadata document of an asset.
type AssetMetadata struct {
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	Image        string             `json:"image"`
	TokenID      string             `json:"token_id"`
	CollectionID string             `json:"collection_id"`
	Status       domain.AssetStatus `json:"status"`
	Attributes   []domain.Attribute `json:"attributes"`
}

// BurnRequest holds input for burning an asset.
type BurnRequest struct {
	UserID  string
	TokenID string
	Client  domain.RequestContext
}

// AuditService records audit events inside the caller's transaction.
type AuditService interface {
	Record(ctx context.Context, tx pgx.Tx, event *domain.AuditEvent) error
	Trail(ctx context.Context, entityType, entityID string) ([]domain.AuditEvent, error)
}

// Reconciler verifies every wallet against its ledger journal.
type Reconciler interface {
	Run(ctx context.Context) (*ReconcileReport, error)
}

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	Checked int           `json:"checked"`
	Drifted []WalletDrift `json:"drifted"`
}

// WalletDrift describes a wallet whose balances disagree with its journal.
type WalletDrift struct {
	UserID         string `json:"user_id"`
	Balance        int64  `json:"balance"`
	ExpectedBal    int64  `json:"expected_balance"`
	LockedBalance  int64  `json:"locked_balance"`
	ExpectedLocked int64  `json:"expected_locked"`
}
