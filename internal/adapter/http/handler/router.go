package handler

import (
	"hero-mint-service/internal/adapter/http/middleware"
	redisStore "hero-mint-service/internal/adapter/storage/redis"
	"hero-mint-service/internal/core/ports"
	"hero-mint-service/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	MintSvc        ports.MintService
	AssetSvc       ports.AssetService
	LedgerSvc      ports.LedgerService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Metrics        *metrics.Metrics // nil = no /metrics endpoint
	OpenAPISpec    []byte
	Mode           string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger, deps.Metrics))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec(deps.OpenAPISpec))
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	mintHandler := NewMintHandler(deps.MintSvc)
	v1.POST("/mints", jwtAuth, rl("mints"), mintHandler.Mint)

	// --- Public asset routes (image and metadata are fetched by wallets and marketplaces) ---
	assetHandler := NewAssetHandler(deps.AssetSvc)
	assets := v1.Group("/assets/:tokenId")
	{
		assets.GET("/image", rl("assets"), assetHandler.GetImage)
		assets.GET("/metadata", rl("assets"), assetHandler.GetMetadata)
		assets.POST("/burn", jwtAuth, rl("assets_burn"), assetHandler.Burn)
	}

	walletHandler := NewWalletHandler(deps.LedgerSvc)
	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("", rl("wallet"), walletHandler.GetBalance)
		wallet.POST("/deposits", rl("wallet_deposits"), walletHandler.Deposit)
		wallet.GET("/ledger", rl("wallet"), walletHandler.GetLedger)
	}

	return r
}
