package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hero-mint-service/internal/core/domain"
	"hero-mint-service/internal/core/ports"
	"hero-mint-service/internal/core/ports/mocks"
	"hero-mint-service/pkg/apperror"
	"hero-mint-service/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testToken = "test-token"

type handlerMocks struct {
	mint   *mocks.MockMintService
	asset  *mocks.MockAssetService
	ledger *mocks.MockLedgerService
	health *mocks.MockHealthChecker
}

func setupRouter(t *testing.T) (*gin.Engine, handlerMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)

	m := handlerMocks{
		mint:   mocks.NewMockMintService(ctrl),
		asset:  mocks.NewMockAssetService(ctrl),
		ledger: mocks.NewMockLedgerService(ctrl),
		health: mocks.NewMockHealthChecker(ctrl),
	}
	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate(testToken).Return(&ports.TokenClaims{UserID: "hero-1"}, nil).AnyTimes()
	tokenSvc.EXPECT().Validate(gomock.Not(testToken)).Return(nil, errors.New("token is malformed")).AnyTimes()

	r := SetupRouter(RouterDeps{
		MintSvc:        m.mint,
		AssetSvc:       m.asset,
		LedgerSvc:      m.ledger,
		TokenSvc:       tokenSvc,
		HealthCheckers: []ports.HealthChecker{m.health},
		Metrics:        metrics.New(),
		OpenAPISpec:    []byte("openapi: 3.0.3\n"),
		Mode:           gin.TestMode,
		Logger:         zerolog.Nop(),
	})
	return r, m
}

func doRequest(r *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func authed(extra map[string]string) map[string]string {
	h := map[string]string{"Authorization": "Bearer " + testToken}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "missing data envelope: %s", w.Body.String())
	return data
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func mintBody() map[string]interface{} {
	return map[string]interface{}{
		"prompt":        "  a knight with a lantern  ",
		"theme":         "medieval",
		"price_credits": 300,
		"nonce":         "n-1",
	}
}

func sampleOutcome() *domain.MintOutcome {
	return &domain.MintOutcome{
		TokenID:      "tok-1",
		ImageURL:     "https://mint.example/api/v1/assets/tok-1/image",
		TxHash:       "0xabc",
		PriceCredits: 300,
		MintedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// --- Mint ---

func TestMint_Created(t *testing.T) {
	r, m := setupRouter(t)

	m.mint.EXPECT().Mint(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.MintRequest) (*domain.MintOutcome, error) {
			assert.Equal(t, "hero-1", req.UserID)
			assert.Equal(t, "K1", req.IdempotencyKey)
			assert.Equal(t, "a knight with a lantern", req.Prompt)
			assert.Equal(t, int64(300), req.PriceCredits)
			assert.Equal(t, "n-1", req.Nonce)
			assert.True(t, req.Timestamp.IsZero())
			assert.NotEmpty(t, req.Client.IP)
			return sampleOutcome(), nil
		})

	w := doRequest(r, http.MethodPost, "/api/v1/mints", mintBody(), authed(map[string]string{HeaderIdempotencyKey: "K1"}))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Empty(t, w.Header().Get(HeaderReplayed))
	data := decodeData(t, w)
	assert.Equal(t, true, data["ok"])
	assert.Equal(t, "tok-1", data["token_id"])
	assert.Equal(t, "0xabc", data["tx_hash"])
	assert.Equal(t, float64(300), data["price_credits"])
	assert.Equal(t, "2026-03-01T12:00:00Z", data["minted_at"])
}

func TestMint_ReplayReturns200WithSameBody(t *testing.T) {
	r, m := setupRouter(t)

	first := sampleOutcome()
	replay := sampleOutcome()
	replay.Replayed = true
	gomock.InOrder(
		m.mint.EXPECT().Mint(gomock.Any(), gomock.Any()).Return(first, nil),
		m.mint.EXPECT().Mint(gomock.Any(), gomock.Any()).Return(replay, nil),
	)

	body := mintBody()
	body["idempotency_key"] = "K1"
	w1 := doRequest(r, http.MethodPost, "/api/v1/mints", body, authed(nil))
	w2 := doRequest(r, http.MethodPost, "/api/v1/mints", body, authed(nil))

	assert.Equal(t, http.StatusCreated, w1.Code)
	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, "true", w2.Header().Get(HeaderReplayed))
	assert.Equal(t, decodeData(t, w1), decodeData(t, w2))
}

func TestMint_PassesClientTimestamp(t *testing.T) {
	r, m := setupRouter(t)

	m.mint.EXPECT().Mint(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.MintRequest) (*domain.MintOutcome, error) {
			assert.True(t, req.Timestamp.Equal(time.Date(2026, 3, 1, 11, 59, 0, 0, time.UTC)))
			return sampleOutcome(), nil
		})

	body := mintBody()
	body["timestamp"] = "2026-03-01T11:59:00Z"
	w := doRequest(r, http.MethodPost, "/api/v1/mints", body, authed(map[string]string{HeaderIdempotencyKey: "K1"}))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestMint_RequestValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]interface{}
		headers map[string]string
	}{
		{"missing key", mintBody(), nil},
		{"key with colon", mintBody(), map[string]string{HeaderIdempotencyKey: "a:b"}},
		{"header and body disagree", func() map[string]interface{} {
			b := mintBody()
			b["idempotency_key"] = "K2"
			return b
		}(), map[string]string{HeaderIdempotencyKey: "K1"}},
		{"zero price", func() map[string]interface{} {
			b := mintBody()
			b["price_credits"] = 0
			return b
		}(), map[string]string{HeaderIdempotencyKey: "K1"}},
		{"missing prompt", func() map[string]interface{} {
			b := mintBody()
			delete(b, "prompt")
			return b
		}(), map[string]string{HeaderIdempotencyKey: "K1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := setupRouter(t)
			w := doRequest(r, http.MethodPost, "/api/v1/mints", tt.body, authed(tt.headers))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, apperror.CodeInvalidRequest, decodeErrorCode(t, w))
		})
	}
}

func TestMint_Unauthorized(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodPost, "/api/v1/mints", mintBody(), map[string]string{"Authorization": "Bearer forged"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeUnauthorized, decodeErrorCode(t, w))
}

func TestMint_ServiceErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
	}{
		{"insufficient funds", apperror.ErrInsufficientFunds(), http.StatusPaymentRequired, apperror.CodeInsufficientFunds, false},
		{"generation failed", apperror.ErrGenerationFailed(errors.New("timeout")), http.StatusBadGateway, apperror.CodeGenerationFailed, true},
		{"nonce reused", apperror.ErrNonceReused(), http.StatusConflict, apperror.CodeNonceReused, false},
		{"persistence", apperror.ErrPersistence(errors.New("conn reset")), http.StatusInternalServerError, apperror.CodePersistence, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := setupRouter(t)
			m.mint.EXPECT().Mint(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			w := doRequest(r, http.MethodPost, "/api/v1/mints", mintBody(), authed(map[string]string{HeaderIdempotencyKey: "K1"}))

			assert.Equal(t, tt.status, w.Code)
			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp["error_code"])
			assert.Equal(t, tt.retryable, resp["retryable"])
			assert.NotContains(t, w.Body.String(), "conn reset")
		})
	}
}

// --- Assets ---

func TestGetImage_ServesBytes(t *testing.T) {
	r, m := setupRouter(t)
	png := []byte("\x89PNG\r\n\x1a\nrest")
	m.asset.EXPECT().GetImage(gomock.Any(), "tok-1").Return(&ports.AssetImage{Data: png, MediaType: "image/png"}, nil)

	w := doRequest(r, http.MethodGet, "/api/v1/assets/tok-1/image", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Cache-Control"), "immutable")
	assert.Equal(t, png, w.Body.Bytes())
}

func TestGetImage_NotFound(t *testing.T) {
	r, m := setupRouter(t)
	m.asset.EXPECT().GetImage(gomock.Any(), "missing").Return(nil, apperror.ErrNotFound("Asset"))

	w := doRequest(r, http.MethodGet, "/api/v1/assets/missing/image", nil, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, decodeErrorCode(t, w))
}

func TestGetMetadata_BareDocument(t *testing.T) {
	r, m := setupRouter(t)
	m.asset.EXPECT().GetMetadata(gomock.Any(), "tok-1").Return(&ports.AssetMetadata{
		Name:       "Hero Badge #tok-1",
		Image:      "https://mint.example/api/v1/assets/tok-1/image",
		TokenID:    "tok-1",
		Status:     domain.AssetStatusMinted,
		Attributes: []domain.Attribute{{TraitType: "theme", Value: "medieval"}},
	}, nil)

	w := doRequest(r, http.MethodGet, "/api/v1/assets/tok-1/metadata", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Equal(t, "Hero Badge #tok-1", meta["name"])
	assert.NotContains(t, meta, "data")
	attrs := meta["attributes"].([]interface{})
	assert.Len(t, attrs, 1)
}

func TestBurn_Success(t *testing.T) {
	r, m := setupRouter(t)
	m.asset.EXPECT().Burn(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.BurnRequest) (*domain.NftAsset, error) {
			assert.Equal(t, "hero-1", req.UserID)
			assert.Equal(t, "tok-1", req.TokenID)
			return &domain.NftAsset{TokenID: "tok-1", CollectionID: "hero-badges", Status: domain.AssetStatusBurned}, nil
		})

	w := doRequest(r, http.MethodPost, "/api/v1/assets/tok-1/burn", nil, authed(nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "BURNED", decodeData(t, w)["status"])
}

func TestBurn_RequiresAuth(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodPost, "/api/v1/assets/tok-1/burn", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBurn_Forbidden(t *testing.T) {
	r, m := setupRouter(t)
	m.asset.EXPECT().Burn(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrForbidden("only the creator can burn this asset"))

	w := doRequest(r, http.MethodPost, "/api/v1/assets/tok-1/burn", nil, authed(nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperror.CodeForbidden, decodeErrorCode(t, w))
}

// --- Wallet ---

func TestGetBalance(t *testing.T) {
	r, m := setupRouter(t)
	m.ledger.EXPECT().EnsureWallet(gomock.Any(), "hero-1").Return(&domain.Wallet{
		UserID: "hero-1", Balance: 700, LockedBalance: 0, UpdatedAt: time.Now(),
	}, nil)

	w := doRequest(r, http.MethodGet, "/api/v1/wallet", nil, authed(nil))

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(700), data["balance"])
	assert.Equal(t, float64(0), data["locked_balance"])
}

func TestDeposit_HeaderKey(t *testing.T) {
	r, m := setupRouter(t)
	m.ledger.EXPECT().Deposit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.DepositRequest) (*domain.Wallet, error) {
			assert.Equal(t, "hero-1", req.UserID)
			assert.Equal(t, int64(500), req.Amount)
			assert.Equal(t, "dep-1", req.IdempotencyKey)
			assert.Equal(t, "season reward", req.Reason)
			return &domain.Wallet{UserID: "hero-1", Balance: 1500, UpdatedAt: time.Now()}, nil
		})

	w := doRequest(r, http.MethodPost, "/api/v1/wallet/deposits",
		map[string]interface{}{"amount": 500, "reason": "season reward"},
		authed(map[string]string{HeaderIdempotencyKey: "dep-1"}))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, float64(1500), decodeData(t, w)["balance"])
}

func TestDeposit_Validation(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodPost, "/api/v1/wallet/deposits",
		map[string]interface{}{"amount": -5, "idempotency_key": "dep-1"}, authed(nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/api/v1/wallet/deposits",
		map[string]interface{}{"amount": 5}, authed(nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetLedger(t *testing.T) {
	r, m := setupRouter(t)
	m.ledger.EXPECT().History(gomock.Any(), "hero-1", 20).Return([]domain.LedgerEntry{
		{ID: uuid.New(), Type: domain.LedgerEntrySpend, Direction: domain.DirectionDebit, Amount: 300, ReferenceID: "req-1", CreatedAt: time.Now()},
		{ID: uuid.New(), Type: domain.LedgerEntryLock, Direction: domain.DirectionDebit, Amount: 300, ReferenceID: "req-1", CreatedAt: time.Now()},
	}, nil)

	w := doRequest(r, http.MethodGet, "/api/v1/wallet/ledger?limit=20", nil, authed(nil))

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(2), data["count"])
	first := data["items"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "SPEND", first["type"])
}

func TestGetLedger_BadLimit(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodGet, "/api/v1/wallet/ledger?limit=lots", nil, authed(nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Health, metrics, docs ---

func TestHealthCheck(t *testing.T) {
	r, m := setupRouter(t)
	m.health.EXPECT().Name().Return("postgres").AnyTimes()

	m.health.EXPECT().Ping(gomock.Any()).Return(nil)
	w := doRequest(r, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)

	m.health.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))
	w = doRequest(r, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	r, m := setupRouter(t)
	m.asset.EXPECT().GetImage(gomock.Any(), "missing").Return(nil, apperror.ErrNotFound("Asset"))
	doRequest(r, http.MethodGet, "/api/v1/assets/missing/image", nil, nil)

	w := doRequest(r, http.MethodGet, "/metrics", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `hero_mint_http_requests_total{method="GET",route="/api/v1/assets/:tokenId/image",status="404"} 1`)
}

func TestSwagger(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodGet, "/swagger/spec", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi")

	w = doRequest(r, http.MethodGet, "/swagger", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hero Mint Service")
}

func TestResolveIdempotencyKey(t *testing.T) {
	key, err := resolveIdempotencyKey("K1", "")
	require.NoError(t, err)
	assert.Equal(t, "K1", key)

	key, err = resolveIdempotencyKey("", "K2")
	require.NoError(t, err)
	assert.Equal(t, "K2", key)

	key, err = resolveIdempotencyKey("K3", "K3")
	require.NoError(t, err)
	assert.Equal(t, "K3", key)

	_, err = resolveIdempotencyKey("K1", "K2")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidRequest))
}
