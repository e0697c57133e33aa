package handler

import (
	"net/http"
	"time"

	"hero-mint-service/internal/adapter/http/dto"
	"hero-mint-service/internal/adapter/http/middleware"
	"hero-mint-service/internal/core/ports"
	"hero-mint-service/pkg/apperror"
	"hero-mint-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// MintHandler handles the mint endpoint.
type MintHandler struct {
	mintSvc ports.MintService
}

// NewMintHandler creates a new MintHandler.
func NewMintHandler(mintSvc ports.MintService) *MintHandler {
	return &MintHandler{mintSvc: mintSvc}
}

// Mint handles POST /api/v1/mints.
// The first execution answers 201; a replay of the same idempotency key
// answers 200 with the identical body and Idempotent-Replayed: true.
func (h *MintHandler) Mint(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return
	}

	var req dto.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrInvalidRequest(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	key, err := resolveIdempotencyKey(c.GetHeader(HeaderIdempotencyKey), req.IdempotencyKey)
	if err != nil {
		response.Error(c, err)
		return
	}

	var ts time.Time
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	outcome, err := h.mintSvc.Mint(c.Request.Context(), ports.MintRequest{
		UserID:         userID,
		AssetDraftID:   req.AssetDraftID,
		CollectionID:   req.CollectionID,
		Prompt:         req.Prompt,
		Theme:          req.Theme,
		Category:       req.Category,
		PriceCredits:   req.PriceCredits,
		IdempotencyKey: key,
		Nonce:          req.Nonce,
		Timestamp:      ts,
		Client:         middleware.ClientContext(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if outcome.Replayed {
		status = http.StatusOK
		c.Header(HeaderReplayed, "true")
	}
	response.JSON(c, status, dto.NewMintResponse(outcome))
}
