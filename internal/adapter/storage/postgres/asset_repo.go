package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"hero-mint-service/internal/core/domain"
	"hero-mint-service/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// AssetRepo implements ports.AssetRepository.
type AssetRepo struct {
	pool Pool
}

// NewAssetRepo creates a new AssetRepo.
func NewAssetRepo(pool Pool) *AssetRepo {
	return &AssetRepo{pool: pool}
}

// Create inserts an asset together with its image bytes.
func (r *AssetRepo) Create(ctx context.Context, tx pgx.Tx, a *domain.NftAsset) error {
	attrs, err := json.Marshal(a.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	query := `INSERT INTO nft_assets (id, token_id, collection_id, metadata_uri, image_uri, attributes,
			created_by_user_id, status, image_data, image_mime_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = on(r.pool, tx).Exec(ctx, query,
		a.ID, a.TokenID, a.CollectionID, a.MetadataURI, a.ImageURI, attrs,
		a.CreatedByUserID, string(a.Status), a.ImageData, a.ImageMimeType, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return wrapErr("insert asset", err)
	}
	return nil
}

// GetByTokenID fetches an asset without its image bytes.
func (r *AssetRepo) GetByTokenID(ctx context.Context, tokenID string) (*domain.NftAsset, error) {
	query := `SELECT id, token_id, collection_id, metadata_uri, image_uri, attributes,
			created_by_user_id, status, image_mime_type, created_at, updated_at
		FROM nft_assets WHERE token_id = $1`

	var (
		a      domain.NftAsset
		attrs  []byte
		status string
	)
	err := r.pool.QueryRow(ctx, query, tokenID).Scan(
		&a.ID, &a.TokenID, &a.CollectionID, &a.MetadataURI, &a.ImageURI, &attrs,
		&a.CreatedByUserID, &status, &a.ImageMimeType, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &a.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal attributes: %w", err)
		}
	}
	a.Status = domain.AssetStatus(status)
	return &a, nil
}

// GetImage returns the stored image. Returns nil data if the token is unknown.
func (r *AssetRepo) GetImage(ctx context.Context, tokenID string) ([]byte, string, error) {
	query := `SELECT image_data, image_mime_type FROM nft_assets WHERE token_id = $1`

	var (
		data     []byte
		mimeType string
	)
	err := r.pool.QueryRow(ctx, query, tokenID).Scan(&data, &mimeType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("get asset image: %w", err)
	}
	return data, mimeType, nil
}

// UpdateStatus performs a compare-and-set status transition.
func (r *AssetRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, tokenID string, from, to domain.AssetStatus) error {
	query := `UPDATE nft_assets SET status = $3, updated_at = NOW() WHERE token_id = $1 AND status = $2`

	tag, err := on(r.pool, tx).Exec(ctx, query, tokenID, string(from), string(to))
	if err != nil {
		return wrapErr("update asset status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update asset status: %w", ports.ErrConditionNotMet)
	}
	return nil
}
