package handler

import (
	"net/http"

	"hero-mint-service/internal/adapter/http/dto"
	"hero-mint-service/internal/adapter/http/middleware"
	"hero-mint-service/internal/core/ports"
	"hero-mint-service/pkg/apperror"
	"hero-mint-service/pkg/response"

	"github.com/gin-gonic/gin"
)

const maxTokenIDLength = 128

// AssetHandler serves minted assets.
type AssetHandler struct {
	assetSvc ports.AssetService
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assetSvc ports.AssetService) *AssetHandler {
	return &AssetHandler{assetSvc: assetSvc}
}

func tokenIDParam(c *gin.Context) (string, bool) {
	tokenID := c.Param("tokenId")
	if tokenID == "" || len(tokenID) > maxTokenIDLength {
		response.Error(c, apperror.ErrInvalidRequest("invalid token id"))
		return "", false
	}
	return tokenID, true
}

// GetImage handles GET /api/v1/assets/:tokenId/image.
func (h *AssetHandler) GetImage(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	img, err := h.assetSvc.GetImage(c.Request.Context(), tokenID)
	if err != nil {
		response.Error(c, err)
		return
	}

	// Artwork never changes once minted.
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, img.MediaType, img.Data)
}

// GetMetadata handles GET /api/v1/assets/:tokenId/metadata.
// The document is served bare, the way marketplaces expect it.
func (h *AssetHandler) GetMetadata(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	meta, err := h.assetSvc.GetMetadata(c.Request.Context(), tokenID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Cache-Control", "public, max-age=60")
	c.JSON(http.StatusOK, meta)
}

// Burn handles POST /api/v1/assets/:tokenId/burn.
func (h *AssetHandler) Burn(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return
	}
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	asset, err := h.assetSvc.Burn(c.Request.Context(), ports.BurnRequest{
		UserID:  userID,
		TokenID: tokenID,
		Client:  middleware.ClientContext(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewAssetResponse(asset))
}
