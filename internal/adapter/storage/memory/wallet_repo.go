package memory

import (
	"context"
	"fmt"

	"hero-mint-service/internal/core/domain"
	"hero-mint-service/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	s *Store
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(s *Store) *WalletRepo {
	return &WalletRepo{s: s}
}

func walletRowKey(userID string) string { return "wallet:" + userID }

// Create inserts w unless a wallet exists. Like an insert on a unique index, a
// concurrent creator waits for the first one to finish.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) (bool, error) {
	var created bool
	err := r.s.write(ctx, tx, func(t *Tx) error {
		if err := t.lockRow(ctx, walletRowKey(w.UserID)); err != nil {
			return err
		}
		if _, ok := t.wallet(w.UserID); ok {
			return nil
		}
		t.wallets[w.UserID] = *w
		created = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("insert wallet: %w", err)
	}
	return created, nil
}

func (r *WalletRepo) GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[userID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WalletRepo) Lock(ctx context.Context, tx pgx.Tx, userID string, amount int64) (*domain.Wallet, error) {
	return r.update(ctx, tx, "lock funds", userID, func(w *domain.Wallet) bool {
		if w.Balance < amount {
			return false
		}
		w.Balance -= amount
		w.LockedBalance += amount
		return true
	})
}

func (r *WalletRepo) Settle(ctx context.Context, tx pgx.Tx, userID string, amount int64) (*domain.Wallet, error) {
	return r.update(ctx, tx, "settle funds", userID, func(w *domain.Wallet) bool {
		if w.LockedBalance < amount {
			return false
		}
		w.LockedBalance -= amount
		return true
	})
}

func (r *WalletRepo) Unlock(ctx context.Context, tx pgx.Tx, userID string, amount int64) (*domain.Wallet, error) {
	return r.update(ctx, tx, "unlock funds", userID, func(w *domain.Wallet) bool {
		if w.LockedBalance < amount {
			return false
		}
		w.LockedBalance -= amount
		w.Balance += amount
		return true
	})
}

func (r *WalletRepo) Credit(ctx context.Context, tx pgx.Tx, userID string, amount int64) (*domain.Wallet, error) {
	return r.update(ctx, tx, "credit wallet", userID, func(w *domain.Wallet) bool {
		w.Balance += amount
		return true
	})
}

func (r *WalletRepo) List(ctx context.Context, afterUserID string, limit int) ([]domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var wallets []domain.Wallet
	for _, id := range r.s.sortedWalletIDs() {
		if id <= afterUserID {
			continue
		}
		wallets = append(wallets, r.s.wallets[id])
		if len(wallets) == limit {
			break
		}
	}
	return wallets, nil
}

// update applies a conditional mutation under the wallet's row lock.
func (r *WalletRepo) update(ctx context.Context, tx pgx.Tx, op, userID string, apply func(w *domain.Wallet) bool) (*domain.Wallet, error) {
	var out domain.Wallet
	err := r.s.write(ctx, tx, func(t *Tx) error {
		if err := t.lockRow(ctx, walletRowKey(userID)); err != nil {
			return err
		}
		w, ok := t.wallet(userID)
		if !ok || !apply(&w) {
			return ports.ErrConditionNotMet
		}
		w.Version++
		w.UpdatedAt = r.s.now()
		t.wallets[userID] = w
		out = w
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

// wallet returns the row as seen by t.
func (t *Tx) wallet(userID string) (domain.Wallet, bool) {
	if w, ok := t.wallets[userID]; ok {
		return w, true
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	w, ok := t.store.wallets[userID]
	return w, ok
}
