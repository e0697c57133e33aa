package handler

import (
	"strconv"

	"hero-mint-service/internal/adapter/http/dto"
	"hero-mint-service/internal/adapter/http/middleware"
	"hero-mint-service/internal/core/ports"
	"hero-mint-service/pkg/apperror"
	"hero-mint-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet-related endpoints.
type WalletHandler struct {
	ledgerSvc ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService) *WalletHandler {
	return &WalletHandler{ledgerSvc: ledgerSvc}
}

// GetBalance handles GET /api/v1/wallet. A first call provisions the wallet.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return
	}

	wallet, err := h.ledgerSvc.EnsureWallet(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWalletResponse(wallet))
}

// Deposit handles POST /api/v1/wallet/deposits.
func (h *WalletHandler) Deposit(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return
	}

	var req dto.DepositRequest
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

	wallet, err := h.ledgerSvc.Deposit(c.Request.Context(), ports.DepositRequest{
		UserID:         userID,
		Amount:         req.Amount,
		IdempotencyKey: key,
		Reason:         req.Reason,
		Client:         middleware.ClientContext(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewWalletResponse(wallet))
}

// GetLedger handles GET /api/v1/wallet/ledger?limit=N.
func (h *WalletHandler) GetLedger(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, apperror.ErrInvalidRequest("limit must be an integer"))
			return
		}
		limit = n
	}

	entries, err := h.ledgerSvc.History(c.Request.Context(), userID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewLedgerListResponse(entries))
}
