package dto

import (
	"time"

	"hero-mint-service/internal/core/domain"
)

// MintRequest is the request body for a mint. The user comes from the bearer
// token; the idempotency key may be sent in the Idempotency-Key header instead.
type MintRequest struct {
	IdempotencyKey string     `json:"idempotency_key" binding:"omitempty,max=128,safe_id"`
	AssetDraftID   string     `json:"asset_draft_id" binding:"omitempty,max=64,safe_id"`
	CollectionID   string     `json:"collection_id" binding:"omitempty,max=64,safe_id"`
	Prompt         string     `json:"prompt" binding:"required,max=2000" sanitize:"trim"`
	Theme          string     `json:"theme" binding:"omitempty,max=64"`
	Category       string     `json:"category" binding:"omitempty,max=64"`
	PriceCredits   int64      `json:"price_credits" binding:"required,gt=0"`
	Nonce          string     `json:"nonce" binding:"omitempty,max=128,safe_id"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
}

// MintResponse is the success body of a mint, identical on replay.
type MintResponse struct {
	OK           bool   `json:"ok"`
	TokenID      string `json:"token_id"`
	ImageURL     string `json:"image_url"`
	TxHash       string `json:"tx_hash"`
	PriceCredits int64  `json:"price_credits"`
	MintedAt     string `json:"minted_at"`
}

// NewMintResponse converts a mint outcome.
func NewMintResponse(o *domain.MintOutcome) MintResponse {
	return MintResponse{
		OK:           true,
		TokenID:      o.TokenID,
		ImageURL:     o.ImageURL,
		TxHash:       o.TxHash,
		PriceCredits: o.PriceCredits,
		MintedAt:     o.MintedAt.UTC().Format(time.RFC3339Nano),
	}
}

// DepositRequest is the request body for crediting the caller's wallet.
type DepositRequest struct {
	Amount         int64  `json:"amount" binding:"required,gt=0"`
	IdempotencyKey string `json:"idempotency_key" binding:"omitempty,max=128,safe_id"`
	Reason         string `json:"reason" binding:"omitempty,max=200"`
}

// WalletResponse is the response for a balance query.
type WalletResponse struct {
	UserID        string `json:"user_id"`
	Balance       int64  `json:"balance"`
	LockedBalance int64  `json:"locked_balance"`
	UpdatedAt     string `json:"updated_at"`
}

// NewWalletResponse converts a wallet.
func NewWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		UserID:        w.UserID,
		Balance:       w.Balance,
		LockedBalance: w.LockedBalance,
		UpdatedAt:     w.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// LedgerEntryResponse is one line of the wallet history.
type LedgerEntryResponse struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Direction   string `json:"direction"`
	Amount      int64  `json:"amount"`
	ReferenceID string `json:"reference_id"`
	CreatedAt   string `json:"created_at"`
}

// LedgerListResponse wraps the wallet history.
type LedgerListResponse struct {
	Items []LedgerEntryResponse `json:"items"`
	Count int                   `json:"count"`
}

// NewLedgerListResponse converts ledger entries, newest first.
func NewLedgerListResponse(entries []domain.LedgerEntry) LedgerListResponse {
	items := make([]LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, LedgerEntryResponse{
			ID:          e.ID.String(),
			Type:        string(e.Type),
			Direction:   string(e.Direction),
			Amount:      e.Amount,
			ReferenceID: e.ReferenceID,
			CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return LedgerListResponse{Items: items, Count: len(items)}
}

// AssetResponse is the response body for asset state changes.
type AssetResponse struct {
	TokenID      string `json:"token_id"`
	CollectionID string `json:"collection_id"`
	Status       string `json:"status"`
	ImageURL     string `json:"image_url"`
	MetadataURL  string `json:"metadata_url"`
}

// NewAssetResponse converts an asset.
func NewAssetResponse(a *domain.NftAsset) AssetResponse {
	return AssetResponse{
		TokenID:      a.TokenID,
		CollectionID: a.CollectionID,
		Status:       string(a.Status),
		ImageURL:     a.ImageURI,
		MetadataURL:  a.MetadataURI,
	}
}
