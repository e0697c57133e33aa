package memory

import (
	"context"
	"fmt"
	"slices"

	"hero-mint-service/internal/core/domain"
	"hero-mint-service/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// AssetRepo implements ports.AssetRepository.
type AssetRepo struct {
	s *Store
}

// NewAssetRepo creates a new AssetRepo.
func NewAssetRepo(s *Store) *AssetRepo {
	return &AssetRepo{s: s}
}

func assetRowKey(tokenID string) string { return "asset:" + tokenID }

func (r *AssetRepo) Create(ctx context.Context, tx pgx.Tx, a *domain.NftAsset) error {
	err := r.s.write(ctx, tx, func(t *Tx) error {
		if err := t.lockRow(ctx, assetRowKey(a.TokenID)); err != nil {
			return err
		}
		if _, ok := t.asset(a.TokenID); ok {
			return uniqueViolation("uq_nft_assets_token")
		}
		stored := *a
		stored.Attributes = slices.Clone(a.Attributes)
		stored.ImageData = slices.Clone(a.ImageData)
		t.assets[a.TokenID] = stored
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func (r *AssetRepo) GetByTokenID(ctx context.Context, tokenID string) (*domain.NftAsset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assets[tokenID]
	if !ok {
		return nil, nil
	}
	a.Attributes = slices.Clone(a.Attributes)
	a.ImageData = nil
	return &a, nil
}

func (r *AssetRepo) GetImage(ctx context.Context, tokenID string) ([]byte, string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assets[tokenID]
	if !ok {
		return nil, "", nil
	}
	return slices.Clone(a.ImageData), a.ImageMimeType, nil
}

func (r *AssetRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, tokenID string, from, to domain.AssetStatus) error {
	err := r.s.write(ctx, tx, func(t *Tx) error {
		if err := t.lockRow(ctx, assetRowKey(tokenID)); err != nil {
			return err
		}
		a, ok := t.asset(tokenID)
		if !ok || a.Status != from {
			return ports.ErrConditionNotMet
		}
		a.Status = to
		a.UpdatedAt = r.s.now()
		t.assets[tokenID] = a
		return nil
	})
	if err != nil {
		return fmt.Errorf("update asset status: %w", err)
	}
	return nil
}

func (t *Tx) asset(tokenID string) (domain.NftAsset, bool) {
	if a, ok := t.assets[tokenID]; ok {
		return a, true
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	a, ok := t.store.assets[tokenID]
	return a, ok
}
