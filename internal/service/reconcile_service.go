package service

import (
	"context"
	"fmt"

	"hero-mint-service/internal/core/domain"
	"hero-mint-service/internal/core/ports"
	"hero-mint-service/pkg/metrics"

	"github.com/rs/zerolog"
)

const defaultReconcilePageSize = 500

// ReconcileServiceImpl implements ports.Reconciler. It compares every wallet
// with the totals of its ledger journal:
//
//	balance = DEPOSIT - LOCK + UNLOCK
//	locked  = LOCK - UNLOCK - SPEND
type ReconcileServiceImpl struct {
	walletRepo ports.WalletRepository
	ledgerRepo ports.LedgerRepository
	pageSize   int
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// NewReconcileService creates a new ReconcileServiceImpl.
func NewReconcileService(walletRepo ports.WalletRepository, ledgerRepo ports.LedgerRepository, pageSize int, m *metrics.Metrics, log zerolog.Logger) *ReconcileServiceImpl {
	if pageSize <= 0 {
		pageSize = defaultReconcilePageSize
	}
	return &ReconcileServiceImpl{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		pageSize:   pageSize,
		metrics:    m,
		log:        log.With().Str("component", "reconciler").Logger(),
	}
}

// Run checks all wallets once. A wallet that looks drifted is read again
// before it is reported, since a mint may commit between the two reads.
func (s *ReconcileServiceImpl) Run(ctx context.Context) (*ports.ReconcileReport, error) {
	report := &ports.ReconcileReport{Drifted: []ports.WalletDrift{}}

	after := ""
	for {
		wallets, err := s.walletRepo.List(ctx, after, s.pageSize)
		if err != nil {
			s.metrics.ReconcileRuns.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("list wallets after %q: %w", after, err)
		}

		for i := range wallets {
			drift, err := s.check(ctx, &wallets[i])
			if err == nil && drift != nil {
				drift, err = s.recheck(ctx, wallets[i].UserID)
			}
			if err != nil {
				s.metrics.ReconcileRuns.WithLabelValues("error").Inc()
				return nil, err
			}
			report.Checked++
			if drift != nil {
				report.Drifted = append(report.Drifted, *drift)
				s.log.Error().
					Str("user_id", drift.UserID).
					Int64("balance", drift.Balance).
					Int64("expected_balance", drift.ExpectedBal).
					Int64("locked_balance", drift.LockedBalance).
					Int64("expected_locked", drift.ExpectedLocked).
					Msg("ledger drift detected")
			}
		}

		if len(wallets) < s.pageSize {
			break
		}
		after = wallets[len(wallets)-1].UserID
	}

	s.metrics.ReconcileDrift.Set(float64(len(report.Drifted)))
	result := "clean"
	if len(report.Drifted) > 0 {
		result = "drift"
	}
	s.metrics.ReconcileRuns.WithLabelValues(result).Inc()

	s.log.Info().
		Int("checked", report.Checked).
		Int("drifted", len(report.Drifted)).
		Msg("reconciliation finished")
	return report, nil
}

func (s *ReconcileServiceImpl) recheck(ctx context.Context, userID string) (*ports.WalletDrift, error) {
	w, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reread wallet %s: %w", userID, err)
	}
	if w == nil {
		return nil, nil
	}
	return s.check(ctx, w)
}

func (s *ReconcileServiceImpl) check(ctx context.Context, w *domain.Wallet) (*ports.WalletDrift, error) {
	totals, err := s.ledgerRepo.SumByType(ctx, w.UserID)
	if err != nil {
		return nil, fmt.Errorf("sum ledger for %s: %w", w.UserID, err)
	}
	expectedBal, expectedLocked := totals.ExpectedBalance(), totals.ExpectedLocked()
	if w.Balance == expectedBal && w.LockedBalance == expectedLocked {
		return nil, nil
	}
	return &ports.WalletDrift{
		UserID:         w.UserID,
		Balance:        w.Balance,
		ExpectedBal:    expectedBal,
		LockedBalance:  w.LockedBalance,
		ExpectedLocked: expectedLocked,
	}, nil
}
