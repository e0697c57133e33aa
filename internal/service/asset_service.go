package service

import (
	"context"
	"errors"
	"fmt"

	"hero-mint-service/internal/core/domain"
	"hero-mint-service/internal/core/ports"
	"hero-mint-service/pkg/apperror"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// AssetServiceImpl implements ports.AssetService.
type AssetServiceImpl struct {
	assets     ports.AssetRepository
	auditSvc   ports.AuditService
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewAssetService creates a new AssetServiceImpl.
func NewAssetService(assets ports.AssetRepository, auditSvc ports.AuditService, transactor ports.DBTransactor, log zerolog.Logger) *AssetServiceImpl {
	return &AssetServiceImpl{
		assets:     assets,
		auditSvc:   auditSvc,
		transactor: transactor,
		log:        log.With().Str("component", "assets").Logger(),
	}
}

// GetImage returns the stored image bytes and media type of tokenID.
func (s *AssetServiceImpl) GetImage(ctx context.Context, tokenID string) (*ports.AssetImage, error) {
	if tokenID == "" {
		return nil, apperror.ErrNotFound("Asset")
	}
	data, mediaType, err := s.assets.GetImage(ctx, tokenID)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("get asset image: %w", err))
	}
	if len(data) == 0 {
		return nil, apperror.ErrNotFound("Asset")
	}
	if mediaType == "" {
		mediaType = mimetype.Detect(data).String()
	}
	return &ports.AssetImage{Data: data, MediaType: mediaType}, nil
}

// GetMetadata returns the ERC-721 style metadata document of tokenID.
func (s *AssetServiceImpl) GetMetadata(ctx context.Context, tokenID string) (*ports.AssetMetadata, error) {
	asset, err := s.find(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	attrs := asset.Attributes
	if attrs == nil {
		attrs = []domain.Attribute{}
	}
	return &ports.AssetMetadata{
		Name:         fmt.Sprintf("Hero Badge %s", shortToken(asset.TokenID)),
		Description:  fmt.Sprintf("Civic hero badge from collection %s.", asset.CollectionID),
		Image:        asset.ImageURI,
		TokenID:      asset.TokenID,
		CollectionID: asset.CollectionID,
		Status:       asset.Status,
		Attributes:   attrs,
	}, nil
}

// Burn retires an asset. Only its creator may burn it, and only once.
func (s *AssetServiceImpl) Burn(ctx context.Context, req ports.BurnRequest) (*domain.NftAsset, error) {
	asset, err := s.find(ctx, req.TokenID)
	if err != nil {
		return nil, err
	}
	if asset.CreatedByUserID != req.UserID {
		return nil, apperror.ErrForbidden("Only the creator can burn this asset")
	}
	if !asset.Status.CanTransitionTo(domain.AssetStatusBurned) {
		return nil, apperror.ErrInvalidRequest(fmt.Sprintf("asset is %s and cannot be burned", asset.Status))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.assets.UpdateStatus(ctx, dbTx, asset.TokenID, asset.Status, domain.AssetStatusBurned); err != nil {
		if errors.Is(err, ports.ErrConditionNotMet) {
			return nil, apperror.ErrInvalidRequest("asset was burned concurrently")
		}
		return nil, apperror.ErrPersistence(err)
	}

	ip, ua := clientFields(req.Client)
	if err := s.auditSvc.Record(ctx, dbTx, &domain.AuditEvent{
		ActorUserID: req.UserID,
		Action:      domain.AuditActionBurn,
		EntityType:  "asset",
		EntityID:    asset.TokenID,
		IP:          ip,
		UserAgent:   ua,
		Meta:        auditMeta(map[string]any{"previous_status": asset.Status}),
	}); err != nil {
		return nil, apperror.ErrPersistence(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("token_id", asset.TokenID).
		Str("user_id", req.UserID).
		Msg("asset burned")

	asset.Status = domain.AssetStatusBurned
	return asset, nil
}

func (s *AssetServiceImpl) find(ctx context.Context, tokenID string) (*domain.NftAsset, error) {
	if tokenID == "" {
		return nil, apperror.ErrNotFound("Asset")
	}
	asset, err := s.assets.GetByTokenID(ctx, tokenID)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("get asset: %w", err))
	}
	if asset == nil {
		return nil, apperror.ErrNotFound("Asset")
	}
	return asset, nil
}

func shortToken(tokenID string) string {
	if len(tokenID) > 8 {
		return "#" + tokenID[len(tokenID)-8:]
	}
	return "#" + tokenID
}
