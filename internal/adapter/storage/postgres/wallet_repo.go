package postgres

import (
	"context"
	"errors"
	"fmt"

	"hero-mint-service/internal/core/domain"
	"hero-mint-service/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const walletColumns = `user_id, balance, locked_balance, version, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a wallet unless one already exists for the user.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) (bool, error) {
	query := `INSERT INTO wallets (user_id, balance, locked_balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING`

	tag, err := on(r.pool, tx).Exec(ctx, query,
		w.UserID, w.Balance, w.LockedBalance, w.Version, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return false, wrapErr("insert wallet", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByUserID fetches a wallet without locking. Returns nil, nil if missing.
func (r *WalletRepo) GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

// Lock reserves amount. The balance check and the update are one statement,
// so concurrent locks can never drive the balance negative.
func (r *WalletRepo) Lock(ctx context.Context, tx pgx.Tx, userID string, amount int64) (*domain.Wallet, error) {
	query := `UPDATE wallets
		SET balance = balance - $2, locked_balance = locked_balance + $2, version = version + 1, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING ` + walletColumns

	return r.conditionalUpdate(ctx, tx, "lock funds", query, userID, amount)
}

// Settle consumes previously locked funds.
func (r *WalletRepo) Settle(ctx context.Context, tx pgx.Tx, userID string, amount int64) (*domain.Wallet, error) {
	query := `UPDATE wallets
		SET locked_balance = locked_balance - $2, version = version + 1, updated_at = NOW()
		WHERE user_id = $1 AND locked_balance >= $2
		RETURNING ` + walletColumns

	return r.conditionalUpdate(ctx, tx, "settle funds", query, userID, amount)
}

// Unlock releases previously locked funds back to the available balance.
func (r *WalletRepo) Unlock(ctx context.Context, tx pgx.Tx, userID string, amount int64) (*domain.Wallet, error) {
	query := `UPDATE wallets
		SET balance = balance + $2, locked_balance = locked_balance - $2, version = version + 1, updated_at = NOW()
		WHERE user_id = $1 AND locked_balance >= $2
		RETURNING ` + walletColumns

	return r.conditionalUpdate(ctx, tx, "unlock funds", query, userID, amount)
}

// Credit adds amount to the available balance.
func (r *WalletRepo) Credit(ctx context.Context, tx pgx.Tx, userID string, amount int64) (*domain.Wallet, error) {
	query := `UPDATE wallets
		SET balance = balance + $2, version = version + 1, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + walletColumns

	return r.conditionalUpdate(ctx, tx, "credit wallet", query, userID, amount)
}

// List pages through wallets in user_id order.
func (r *WalletRepo) List(ctx context.Context, afterUserID string, limit int) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id > $1 ORDER BY user_id LIMIT $2`

	rows, err := r.pool.Query(ctx, query, afterUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		wallets = append(wallets, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallets: %w", err)
	}
	return wallets, nil
}

func (r *WalletRepo) conditionalUpdate(ctx context.Context, tx pgx.Tx, op, query string, userID string, amount int64) (*domain.Wallet, error) {
	w, err := scanWallet(on(r.pool, tx).QueryRow(ctx, query, userID, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ports.ErrConditionNotMet)
		}
		return nil, wrapErr(op, err)
	}
	return w, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.UserID, &w.Balance, &w.LockedBalance, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return w, nil
}
