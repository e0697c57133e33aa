package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hero-mint-service/internal/core/domain"
	"hero-mint-service/internal/core/ports"
	"hero-mint-service/pkg/apperror"
	"hero-mint-service/pkg/metrics"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/sha3"
)

const (
	maxPromptLength     = 2000
	eventPublishTimeout = 5 * time.Second
)

// MintOptions holds the mint settings taken from config.
type MintOptions struct {
	PublicBaseURL       string
	DefaultCollectionID string
	NonceTTL            time.Duration
	MaxPriceCredits     int64
}

// MintDeps bundles the collaborators of the mint orchestrator. Nonces may be
// nil when Redis is disabled; the storage constraint still rejects reuse.
type MintDeps struct {
	Ledger     ports.LedgerService
	Dedup      ports.Deduplicator
	Requests   ports.MintRequestRepository
	Assets     ports.AssetRepository
	Receipts   ports.ReceiptRepository
	Audit      ports.AuditService
	Generator  ports.AssetGenerator
	Nonces     ports.NonceStore
	Events     ports.EventPublisher
	Transactor ports.DBTransactor
	Metrics    *metrics.Metrics
}

// MintServiceImpl implements ports.MintService.
type MintServiceImpl struct {
	MintDeps
	opts MintOptions
	log  zerolog.Logger
	now  func() time.Time
}

// NewMintService creates a new MintServiceImpl.
func NewMintService(deps MintDeps, opts MintOptions, log zerolog.Logger) *MintServiceImpl {
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &MintServiceImpl{
		MintDeps: deps,
		opts:     opts,
		log:      log.With().Str("component", "mint").Logger(),
		now:      utcNow,
	}
}

// Mint charges the user's wallet and creates one asset per idempotency key.
// Steps from the funds lock to the receipt run in one transaction; any error
// rolls all of them back. A key that already produced a receipt returns the
// original outcome with Replayed set.
func (s *MintServiceImpl) Mint(ctx context.Context, req ports.MintRequest) (*domain.MintOutcome, error) {
	start := time.Now()

	if err := s.validate(&req); err != nil {
		s.Metrics.MintsTotal.WithLabelValues(metrics.ResultRejected).Inc()
		return nil, err
	}

	// Deduplication before any funds are touched
	outcome, err := s.Dedup.FindExistingOutcome(ctx, req.UserID, req.IdempotencyKey)
	if err != nil {
		s.Metrics.MintsTotal.WithLabelValues(metrics.ResultFailed).Inc()
		return nil, err
	}
	if outcome != nil {
		s.Metrics.MintsTotal.WithLabelValues(metrics.ResultReplayed).Inc()
		return outcome, nil
	}

	if _, err := s.Ledger.EnsureWallet(ctx, req.UserID); err != nil {
		s.Metrics.MintsTotal.WithLabelValues(metrics.ResultFailed).Inc()
		return nil, err
	}

	outcome, state, err := s.execute(ctx, req)
	if err != nil {
		return s.recover(ctx, req, state, err)
	}
	if outcome.Replayed {
		s.Dedup.Remember(ctx, req.UserID, req.IdempotencyKey, outcome)
		s.Metrics.MintsTotal.WithLabelValues(metrics.ResultReplayed).Inc()
		return outcome, nil
	}

	s.afterCommit(ctx, req, outcome, start)
	return outcome, nil
}

func (s *MintServiceImpl) validate(req *ports.MintRequest) error {
	req.UserID = strings.TrimSpace(req.UserID)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)

	switch {
	case req.UserID == "":
		return apperror.ErrInvalidRequest("user_id is required")
	case req.IdempotencyKey == "":
		return apperror.ErrInvalidRequest("idempotency_key is required")
	case len(req.IdempotencyKey) > domain.MaxIdempotencyKeyLength:
		return apperror.ErrInvalidRequest(fmt.Sprintf("idempotency_key must be at most %d characters", domain.MaxIdempotencyKeyLength))
	case !domain.ValidIdempotencyKey(req.IdempotencyKey):
		return apperror.ErrInvalidRequest("idempotency_key may only contain letters, digits, '_', '-' and '.'")
	case req.PriceCredits <= 0:
		return apperror.ErrInvalidRequest("price_credits must be positive")
	case s.opts.MaxPriceCredits > 0 && req.PriceCredits > s.opts.MaxPriceCredits:
		return apperror.ErrInvalidRequest(fmt.Sprintf("price_credits must not exceed %d", s.opts.MaxPriceCredits))
	case strings.TrimSpace(req.Prompt) == "":
		return apperror.ErrInvalidRequest("prompt is required")
	case len(req.Prompt) > maxPromptLength:
		return apperror.ErrInvalidRequest(fmt.Sprintf("prompt must be at most %d characters", maxPromptLength))
	}

	if req.Nonce == "" {
		req.Nonce = req.IdempotencyKey
	}
	if req.CollectionID == "" {
		req.CollectionID = s.opts.DefaultCollectionID
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = s.now()
	}
	return nil
}

// claimNonce binds the nonce to this idempotency key. It runs only after the
// funds lock succeeded, so a declined request leaves the nonce unbound. A
// Redis failure is not fatal: the unique (user_id, nonce) constraint still
// applies.
func (s *MintServiceImpl) claimNonce(ctx context.Context, req ports.MintRequest) error {
	if s.Nonces == nil {
		return nil
	}
	ok, err := s.Nonces.Claim(ctx, req.UserID, req.Nonce, req.IdempotencyKey, s.opts.NonceTTL)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", req.UserID).Msg("nonce claim failed, relying on storage constraint")
		return nil
	}
	if !ok {
		return apperror.ErrNonceReused()
	}
	return nil
}

// execute runs the transactional part of the mint. It returns the last state
// reached so a failure can be attributed.
func (s *MintServiceImpl) execute(ctx context.Context, req ports.MintRequest) (*domain.MintOutcome, domain.MintState, error) {
	state := domain.MintStateInitiated
	now := s.now()

	dbTx, err := s.Transactor.Begin(ctx)
	if err != nil {
		return nil, state, apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock funds first so a declined request never reaches the generator
	if _, err := s.Ledger.Lock(ctx, dbTx, req.UserID, req.PriceCredits, req.IdempotencyKey,
		domain.BuildLockKey(req.UserID, req.IdempotencyKey)); err != nil {
		return nil, state, err
	}
	state = domain.MintStateFundsLocked

	// A concurrent request with the same key may have committed while we
	// waited for the wallet row.
	existing, err := s.Receipts.GetByIdempotencyKey(ctx, dbTx, req.UserID, req.IdempotencyKey)
	if err != nil {
		return nil, state, apperror.ErrPersistence(fmt.Errorf("receipt recheck: %w", err))
	}
	if existing != nil {
		outcome := existing.Outcome()
		outcome.Replayed = true
		return outcome, state, nil
	}

	if err := s.claimNonce(ctx, req); err != nil {
		return nil, state, err
	}

	mintReq := &domain.MintRequest{
		ID:             uuid.New(),
		UserID:         req.UserID,
		AssetDraftID:   req.AssetDraftID,
		CollectionID:   req.CollectionID,
		Prompt:         req.Prompt,
		Theme:          req.Theme,
		Category:       req.Category,
		PriceCredits:   req.PriceCredits,
		IdempotencyKey: req.IdempotencyKey,
		Nonce:          req.Nonce,
		Timestamp:      req.Timestamp,
		Status:         domain.MintStatusProcessing, // a PENDING row would never be visible outside this tx
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Requests.Upsert(ctx, dbTx, mintReq); err != nil {
		if errors.Is(err, ports.ErrUniqueViolation) {
			return nil, state, apperror.ErrNonceReused()
		}
		return nil, state, apperror.ErrPersistence(fmt.Errorf("persist mint request: %w", err))
	}

	image, err := s.generate(ctx, req)
	if err != nil {
		return nil, state, apperror.ErrGenerationFailed(err)
	}
	state = domain.MintStateArtifactGenerated

	tokenID := domain.NewTokenID()
	imageURL := s.opts.PublicBaseURL + "/api/v1/assets/" + tokenID + "/image"
	asset := &domain.NftAsset{
		ID:              uuid.New(),
		TokenID:         tokenID,
		CollectionID:    req.CollectionID,
		MetadataURI:     s.opts.PublicBaseURL + "/api/v1/assets/" + tokenID + "/metadata",
		ImageURI:        imageURL,
		Attributes:      mintAttributes(req),
		CreatedByUserID: req.UserID,
		Status:          domain.AssetStatusMinted,
		ImageData:       image,
		ImageMimeType:   mimetype.Detect(image).String(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Assets.Create(ctx, dbTx, asset); err != nil {
		return nil, state, apperror.ErrPersistence(fmt.Errorf("persist asset: %w", err))
	}
	state = domain.MintStatePersisted

	spend, err := s.Ledger.Settle(ctx, dbTx, req.UserID, req.PriceCredits, tokenID,
		domain.BuildSpendKey(req.UserID, req.IdempotencyKey))
	if err != nil {
		return nil, state, err
	}
	state = domain.MintStateSettled

	receipt := &domain.MintReceipt{
		ID:             uuid.New(),
		MintRequestID:  mintReq.ID,
		UserID:         req.UserID,
		IdempotencyKey: req.IdempotencyKey,
		TokenID:        tokenID,
		TxHash:         mintTxHash(req.UserID, req.IdempotencyKey, tokenID, req.PriceCredits),
		PriceCredits:   req.PriceCredits,
		LedgerEntryID:  spend.ID,
		ImageURI:       imageURL,
		CreatedAt:      now,
	}
	if err := s.Receipts.Create(ctx, dbTx, receipt); err != nil {
		return nil, state, uniqueAsDuplicate("persist receipt", err)
	}
	if err := s.Requests.UpdateStatus(ctx, dbTx, mintReq.ID, domain.MintStatusCompleted, nil); err != nil {
		return nil, state, apperror.ErrPersistence(fmt.Errorf("complete mint request: %w", err))
	}

	contentHash := sha3.Sum256(image)
	ip, ua := clientFields(req.Client)
	if err := s.Audit.Record(ctx, dbTx, &domain.AuditEvent{
		ActorUserID: req.UserID,
		Action:      domain.AuditActionMint,
		EntityType:  "asset",
		EntityID:    tokenID,
		IP:          ip,
		UserAgent:   ua,
		Meta: auditMeta(map[string]any{
			"idempotency_key": req.IdempotencyKey,
			"price_credits":   req.PriceCredits,
			"tx_hash":         receipt.TxHash,
			"content_hash":    hex.EncodeToString(contentHash[:]),
			"media_type":      asset.ImageMimeType,
			"receipt_id":      receipt.ID.String(),
		}),
		CreatedAt: now,
	}); err != nil {
		return nil, state, apperror.ErrPersistence(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, state, uniqueAsDuplicate("commit tx", err)
	}
	return receipt.Outcome(), domain.MintStateReceiptIssued, nil
}

func (s *MintServiceImpl) generate(ctx context.Context, req ports.MintRequest) ([]byte, error) {
	start := time.Now()
	image, err := s.Generator.Generate(ctx, ports.GenerationRequest{
		Prompt:   req.Prompt,
		Theme:    req.Theme,
		Category: req.Category,
	})
	result := "ok"
	if err == nil && len(image) == 0 {
		err = errors.New("generator returned no image data")
	}
	if err != nil {
		result = "error"
	}
	s.Metrics.GeneratorLatency.WithLabelValues(s.Generator.Name(), result).Observe(time.Since(start).Seconds())
	return image, err
}

// recover runs after the transaction rolled back. A lost race on the same
// idempotency key becomes a replay of the winner's receipt.
func (s *MintServiceImpl) recover(ctx context.Context, req ports.MintRequest, state domain.MintState, cause error) (*domain.MintOutcome, error) {
	if apperror.HasCode(cause, apperror.CodeDuplicateKey) || apperror.HasCode(cause, apperror.CodeInsufficientFunds) {
		receipt, err := s.Receipts.GetByIdempotencyKey(ctx, nil, req.UserID, req.IdempotencyKey)
		if err == nil && receipt != nil {
			outcome := receipt.Outcome()
			s.Dedup.Remember(ctx, req.UserID, req.IdempotencyKey, outcome)
			outcome.Replayed = true
			s.Metrics.MintsTotal.WithLabelValues(metrics.ResultReplayed).Inc()
			return outcome, nil
		}
		if apperror.HasCode(cause, apperror.CodeDuplicateKey) {
			// The competing attempt rolled back; a retry will run cleanly.
			cause = apperror.ErrPersistence(cause)
		}
	}

	s.log.Warn().Err(cause).
		Str("user_id", req.UserID).
		Str("idempotency_key", req.IdempotencyKey).
		Str("state", string(state)).
		Msg("mint rolled back")

	if state != domain.MintStateInitiated {
		s.Metrics.MintRollbacks.WithLabelValues(string(state)).Inc()
		if !apperror.HasCode(cause, apperror.CodeNonceReused) {
			s.recordFailure(ctx, req, cause)
		}
	}

	result := metrics.ResultFailed
	if apperror.HasCode(cause, apperror.CodeInsufficientFunds) || apperror.HasCode(cause, apperror.CodeNonceReused) {
		result = metrics.ResultRejected
	}
	s.Metrics.MintsTotal.WithLabelValues(result).Inc()
	return nil, cause
}

// recordFailure stores the request as FAILED outside the aborted transaction.
func (s *MintServiceImpl) recordFailure(ctx context.Context, req ports.MintRequest, cause error) {
	msg := cause.Error()
	now := s.now()
	failed := &domain.MintRequest{
		ID:             uuid.New(),
		UserID:         req.UserID,
		AssetDraftID:   req.AssetDraftID,
		CollectionID:   req.CollectionID,
		Prompt:         req.Prompt,
		Theme:          req.Theme,
		Category:       req.Category,
		PriceCredits:   req.PriceCredits,
		IdempotencyKey: req.IdempotencyKey,
		Nonce:          req.Nonce,
		Timestamp:      req.Timestamp,
		Status:         domain.MintStatusFailed,
		Error:          &msg,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Requests.Upsert(context.WithoutCancel(ctx), nil, failed); err != nil {
		s.log.Warn().Err(err).
			Str("user_id", req.UserID).
			Str("idempotency_key", req.IdempotencyKey).
			Msg("failed to record failed mint request")
	}
}

// afterCommit runs the best-effort side effects of a first-time mint.
func (s *MintServiceImpl) afterCommit(ctx context.Context, req ports.MintRequest, outcome *domain.MintOutcome, start time.Time) {
	s.Dedup.Remember(ctx, req.UserID, req.IdempotencyKey, outcome)

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if err := s.Events.PublishMintCompleted(pubCtx, ports.MintCompletedEvent{
		UserID:         req.UserID,
		IdempotencyKey: req.IdempotencyKey,
		TokenID:        outcome.TokenID,
		CollectionID:   req.CollectionID,
		TxHash:         outcome.TxHash,
		PriceCredits:   outcome.PriceCredits,
		ImageURL:       outcome.ImageURL,
		MintedAt:       outcome.MintedAt,
	}); err != nil {
		s.log.Warn().Err(err).Str("token_id", outcome.TokenID).Msg("failed to publish mint event")
	}

	s.Metrics.MintsTotal.WithLabelValues(metrics.ResultMinted).Inc()
	s.Metrics.CreditsSpent.Add(float64(outcome.PriceCredits))
	s.Metrics.MintDuration.Observe(time.Since(start).Seconds())

	s.log.Info().
		Str("user_id", req.UserID).
		Str("token_id", outcome.TokenID).
		Str("tx_hash", outcome.TxHash).
		Int64("price_credits", outcome.PriceCredits).
		Msg("mint completed")
}

func mintAttributes(req ports.MintRequest) []domain.Attribute {
	attrs := make([]domain.Attribute, 0, 3)
	if req.Theme != "" {
		attrs = append(attrs, domain.Attribute{TraitType: "theme", Value: req.Theme})
	}
	if req.Category != "" {
		attrs = append(attrs, domain.Attribute{TraitType: "category", Value: req.Category})
	}
	if req.AssetDraftID != "" {
		attrs = append(attrs, domain.Attribute{TraitType: "draft", Value: req.AssetDraftID})
	}
	return attrs
}

// mintTxHash derives the receipt's transaction hash: keccak-256 over the
// fields that identify the mint, hex encoded with a 0x prefix.
func mintTxHash(userID, idempotencyKey, tokenID string, price int64) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(userID + "|" + idempotencyKey + "|" + tokenID + "|" + strconv.FormatInt(price, 10)))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

func uniqueAsDuplicate(op string, err error) error {
	if errors.Is(err, ports.ErrUniqueViolation) {
		return apperror.ErrDuplicateIdempotencyKey()
	}
	return apperror.ErrPersistence(fmt.Errorf("%s: %w", op, err))
}
