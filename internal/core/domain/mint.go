package domain

import (
	"time"

	"github.com/google/uuid"
)

// MintStatus is the persisted lifecycle state of a MintRequest.
type MintStatus string

const (
	MintStatusPending    MintStatus = "PENDING"
	MintStatusProcessing MintStatus = "PROCESSING"
	MintStatusCompleted  MintStatus = "COMPLETED"
	MintStatusFailed     MintStatus = "FAILED"
)

// Valid reports whether s is a known status.
func (s MintStatus) Valid() bool {
	switch s {
	case MintStatusPending, MintStatusProcessing, MintStatusCompleted, MintStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true for COMPLETED and FAILED.
func (s MintStatus) IsTerminal() bool {
	return s == MintStatusCompleted || s == MintStatusFailed
}

// MintRequest records one mint attempt.
type MintRequest struct {
	ID             uuid.UUID  `json:"id"`
	UserID         string     `json:"user_id"`
	AssetDraftID   string     `json:"asset_draft_id"`
	CollectionID   string     `json:"collection_id"`
	Prompt         string     `json:"prompt"`
	Theme          string     `json:"theme"`
	Category       string     `json:"category"`
	PriceCredits   int64      `json:"price_credits"`
	IdempotencyKey string     `json:"idempotency_key"`
	Nonce          string     `json:"nonce"`
	Timestamp      time.Time  `json:"timestamp"` // Client-supplied request time
	Status         MintStatus `json:"status"`
	Error          *string    `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// MintState is a step of the mint orchestration. It is never persisted; it
// tells logs and metrics how far a rolled-back attempt got.
type MintState string

const (
	MintStateInitiated         MintState = "INITIATED"
	MintStateFundsLocked       MintState = "FUNDS_LOCKED"
	MintStateArtifactGenerated MintState = "ARTIFACT_GENERATED"
	MintStatePersisted         MintState = "PERSISTED"
	MintStateSettled           MintState = "SETTLED"
	MintStateReceiptIssued     MintState = "RECEIPT_ISSUED"
	MintStateRolledBack        MintState = "ROLLED_BACK"
)

// IsTerminal returns true for RECEIPT_ISSUED and ROLLED_BACK.
func (s MintState) IsTerminal() bool {
	return s == MintStateReceiptIssued || s == MintStateRolledBack
}

// MintReceipt is the durable proof that an idempotency key resolved to one
// asset and one settled ledger movement. Its existence is the replay check.
type MintReceipt struct {
	ID             uuid.UUID `json:"id"`
	MintRequestID  uuid.UUID `json:"mint_request_id"`
	UserID         string    `json:"user_id"`
	IdempotencyKey string    `json:"idempotency_key"`
	TokenID        string    `json:"token_id"`
	TxHash         string    `json:"tx_hash"`
	PriceCredits   int64     `json:"price_credits"`
	LedgerEntryID  uuid.UUID `json:"ledger_entry_id"`
	ImageURI       string    `json:"image_uri"`
	CreatedAt      time.Time `json:"created_at"`
}

// Outcome returns the public fields handed back to callers.
func (r *MintReceipt) Outcome() *MintOutcome {
	return &MintOutcome{
		TokenID:      r.TokenID,
		ImageURL:     r.ImageURI,
		TxHash:       r.TxHash,
		PriceCredits: r.PriceCredits,
		MintedAt:     r.CreatedAt,
	}
}

// MintOutcome is the caller-visible result of a mint, identical on replay.
type MintOutcome struct {
	TokenID      string    `json:"token_id"`
	ImageURL     string    `json:"image_url"`
	TxHash       string    `json:"tx_hash"`
	PriceCredits int64     `json:"price_credits"`
	MintedAt     time.Time `json:"minted_at"`
	Replayed     bool      `json:"-"`
}
