package domain

import (
	"time"

	"github.com/google/uuid"
)

// AssetStatus is the lifecycle state of a minted artifact.
type AssetStatus string

const (
	AssetStatusDraft  AssetStatus = "DRAFT"
	AssetStatusMinted AssetStatus = "MINTED"
	AssetStatusBurned AssetStatus = "BURNED"
)

// Valid reports whether s is a known status.
func (s AssetStatus) Valid() bool {
	switch s {
	case AssetStatusDraft, AssetStatusMinted, AssetStatusBurned:
		return true
	}
	return false
}

// CanTransitionTo allows DRAFT->MINTED and MINTED->BURNED only.
func (s AssetStatus) CanTransitionTo(next AssetStatus) bool {
	switch s {
	case AssetStatusDraft:
		return next == AssetStatusMinted
	case AssetStatusMinted:
		return next == AssetStatusBurned
	}
	return false
}

// Attribute is one trait/value pair, kept in mint order.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// NftAsset is a minted artwork badge. ImageData is only loaded when the image
// itself is requested.
type NftAsset struct {
	ID              uuid.UUID   `json:"id"`
	TokenID         string      `json:"token_id"`
	CollectionID    string      `json:"collection_id"`
	MetadataURI     string      `json:"metadata_uri"`
	ImageURI        string      `json:"image_uri"`
	Attributes      []Attribute `json:"attributes"`
	CreatedByUserID string      `json:"created_by_user_id"`
	Status          AssetStatus `json:"status"`
	ImageData       []byte      `json:"-"`
	ImageMimeType   string      `json:"image_mime_type"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// NewTokenID returns a globally unique, time-ordered token identifier.
func NewTokenID() string {
	return uuid.Must(uuid.NewV7()).String()
}
