package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hero-mint-service/internal/core/domain"
	"hero-mint-service/internal/core/ports"
	"hero-mint-service/pkg/apperror"
	"hero-mint-service/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// LedgerServiceImpl implements ports.LedgerService. Every balance change is
// paired with a ledger entry in the same transaction.
type LedgerServiceImpl struct {
	walletRepo       ports.WalletRepository
	ledgerRepo       ports.LedgerRepository
	auditSvc         ports.AuditService
	transactor       ports.DBTransactor
	provisionBalance int64
	metrics          *metrics.Metrics
	log              zerolog.Logger
	now              func() time.Time
}

// NewLedgerService creates a new LedgerServiceImpl. New wallets are
// provisioned with provisionBalance credits.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	auditSvc ports.AuditService,
	transactor ports.DBTransactor,
	provisionBalance int64,
	m *metrics.Metrics,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo:       walletRepo,
		ledgerRepo:       ledgerRepo,
		auditSvc:         auditSvc,
		transactor:       transactor,
		provisionBalance: provisionBalance,
		metrics:          m,
		log:              log.With().Str("component", "ledger").Logger(),
		now:              utcNow,
	}
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// EnsureWallet returns the user's wallet, creating and provisioning it on
// first use. Concurrent first calls create exactly one wallet.
func (s *LedgerServiceImpl) EnsureWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	if userID == "" {
		return nil, apperror.ErrInvalidRequest("user_id is required")
	}

	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("get wallet: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := s.now()
	wallet = domain.NewWallet(userID, s.provisionBalance, now)
	created, err := s.walletRepo.Create(ctx, dbTx, wallet)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("create wallet: %w", err))
	}
	if !created {
		// Lost the race to a concurrent first call.
		_ = dbTx.Rollback(ctx)
		return s.GetWallet(ctx, userID)
	}

	if s.provisionBalance > 0 {
		entry := domain.NewLedgerEntry(userID, domain.LedgerEntryDeposit, s.provisionBalance,
			"provision", domain.BuildProvisionKey(userID), now)
		if err := s.RecordMovement(ctx, dbTx, entry); err != nil {
			return nil, err
		}
	}

	if err := s.auditSvc.Record(ctx, dbTx, &domain.AuditEvent{
		ActorUserID: userID,
		Action:      domain.AuditActionWalletProvisioned,
		EntityType:  "wallet",
		EntityID:    userID,
		Meta:        auditMeta(map[string]any{"balance": s.provisionBalance}),
		CreatedAt:   now,
	}); err != nil {
		return nil, apperror.ErrPersistence(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("commit tx: %w", err))
	}

	s.metrics.CreditsDeposited.Add(float64(s.provisionBalance))
	s.log.Info().
		Str("user_id", userID).
		Int64("balance", s.provisionBalance).
		Msg("wallet provisioned")

	return wallet, nil
}

// Lock moves amount from available to locked funds. It fails with
// InsufficientFunds when the available balance is short; the check and the
// update are one conditional statement.
func (s *LedgerServiceImpl) Lock(ctx context.Context, tx pgx.Tx, userID string, amount int64, referenceID, idempotencyKey string) (*domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidRequest("amount must be positive")
	}
	if _, err := s.walletRepo.Lock(ctx, tx, userID, amount); err != nil {
		if errors.Is(err, ports.ErrConditionNotMet) {
			return nil, apperror.ErrInsufficientFunds()
		}
		return nil, apperror.ErrPersistence(err)
	}
	return s.appendEntry(ctx, tx, userID, domain.LedgerEntryLock, amount, referenceID, idempotencyKey)
}

// Settle converts amount of locked funds into a permanent spend.
func (s *LedgerServiceImpl) Settle(ctx context.Context, tx pgx.Tx, userID string, amount int64, referenceID, idempotencyKey string) (*domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidRequest("amount must be positive")
	}
	if _, err := s.walletRepo.Settle(ctx, tx, userID, amount); err != nil {
		// Only reachable if a lock went missing, which is a storage fault.
		return nil, apperror.ErrPersistence(err)
	}
	return s.appendEntry(ctx, tx, userID, domain.LedgerEntrySpend, amount, referenceID, idempotencyKey)
}

// Unlock returns amount of locked funds to the available balance.
func (s *LedgerServiceImpl) Unlock(ctx context.Context, tx pgx.Tx, userID string, amount int64, referenceID string) (*domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidRequest("amount must be positive")
	}
	if _, err := s.walletRepo.Unlock(ctx, tx, userID, amount); err != nil {
		return nil, apperror.ErrPersistence(err)
	}
	return s.appendEntry(ctx, tx, userID, domain.LedgerEntryUnlock, amount, referenceID, domain.BuildUnlockKey(userID, referenceID))
}

func (s *LedgerServiceImpl) appendEntry(ctx context.Context, tx pgx.Tx, userID string, t domain.LedgerEntryType, amount int64, referenceID, key string) (*domain.LedgerEntry, error) {
	entry := domain.NewLedgerEntry(userID, t, amount, referenceID, key, s.now())
	if err := s.RecordMovement(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordMovement appends entry to the journal. A reused idempotency key is
// reported as DuplicateIdempotencyKey.
func (s *LedgerServiceImpl) RecordMovement(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	switch {
	case !entry.Type.Valid():
		return apperror.ErrInvalidRequest(fmt.Sprintf("unknown ledger entry type %q", entry.Type))
	case entry.Direction != entry.Type.Direction():
		return apperror.ErrInvalidRequest(fmt.Sprintf("%s entries must be %s", entry.Type, entry.Type.Direction()))
	case entry.Amount <= 0:
		return apperror.ErrInvalidRequest("ledger amount must be positive")
	case entry.IdempotencyKey == "":
		return apperror.ErrInvalidRequest("ledger idempotency key is required")
	}

	if err := s.ledgerRepo.Append(ctx, tx, entry); err != nil {
		if errors.Is(err, ports.ErrUniqueViolation) {
			return apperror.ErrDuplicateIdempotencyKey()
		}
		return apperror.ErrPersistence(err)
	}
	return nil
}

// Deposit credits the wallet once per idempotency key. Repeating a key returns
// the current wallet without crediting again.
func (s *LedgerServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (*domain.Wallet, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidRequest("amount must be positive")
	}
	if req.IdempotencyKey == "" {
		return nil, apperror.ErrInvalidRequest("idempotency key is required")
	}
	if !domain.ValidIdempotencyKey(req.IdempotencyKey) {
		return nil, apperror.ErrInvalidRequest("idempotency key has invalid characters or length")
	}
	if _, err := s.EnsureWallet(ctx, req.UserID); err != nil {
		return nil, err
	}

	ledgerKey := domain.BuildDepositKey(req.UserID, req.IdempotencyKey)
	existing, err := s.ledgerRepo.GetByIdempotencyKey(ctx, ledgerKey)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("deposit idempotency check: %w", err))
	}
	if existing != nil {
		return s.GetWallet(ctx, req.UserID)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := s.now()
	wallet, err := s.walletRepo.Credit(ctx, dbTx, req.UserID, req.Amount)
	if err != nil {
		return nil, apperror.ErrPersistence(err)
	}

	entry := domain.NewLedgerEntry(req.UserID, domain.LedgerEntryDeposit, req.Amount, req.IdempotencyKey, ledgerKey, now)
	if err := s.RecordMovement(ctx, dbTx, entry); err != nil {
		if apperror.HasCode(err, apperror.CodeDuplicateKey) {
			_ = dbTx.Rollback(ctx)
			return s.GetWallet(ctx, req.UserID)
		}
		return nil, err
	}

	ip, ua := clientFields(req.Client)
	if err := s.auditSvc.Record(ctx, dbTx, &domain.AuditEvent{
		ActorUserID: req.UserID,
		Action:      domain.AuditActionDeposit,
		EntityType:  "wallet",
		EntityID:    req.UserID,
		IP:          ip,
		UserAgent:   ua,
		Meta: auditMeta(map[string]any{
			"amount":          req.Amount,
			"idempotency_key": req.IdempotencyKey,
			"reason":          req.Reason,
			"ledger_entry_id": entry.ID.String(),
		}),
		CreatedAt: now,
	}); err != nil {
		return nil, apperror.ErrPersistence(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		if errors.Is(err, ports.ErrUniqueViolation) {
			return s.GetWallet(ctx, req.UserID)
		}
		return nil, apperror.ErrPersistence(fmt.Errorf("commit tx: %w", err))
	}

	s.metrics.CreditsDeposited.Add(float64(req.Amount))
	s.log.Info().
		Str("user_id", req.UserID).
		Int64("amount", req.Amount).
		Str("idempotency_key", req.IdempotencyKey).
		Msg("deposit recorded")

	return wallet, nil
}

func (s *LedgerServiceImpl) GetWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}
	return wallet, nil
}

// History returns the newest ledger entries first.
func (s *LedgerServiceImpl) History(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	entries, err := s.ledgerRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("list ledger: %w", err))
	}
	return entries, nil
}
