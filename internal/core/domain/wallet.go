package domain

import "time"

// Wallet holds a hero's credit balances. Available funds live in Balance;
// funds reserved by an in-flight mint live in LockedBalance.
type Wallet struct {
	UserID        string    `json:"user_id"`
	Balance       int64     `json:"balance"`
	LockedBalance int64     `json:"locked_balance"`
	Version       int64     `json:"version"` // Bumped on every mutation
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Total returns available plus locked funds. Only settle and deposit change it.
func (w *Wallet) Total() int64 {
	return w.Balance + w.LockedBalance
}

// CanLock reports whether amount can be reserved from the available balance.
func (w *Wallet) CanLock(amount int64) bool {
	return amount > 0 && w.Balance >= amount
}

// NewWallet returns a freshly provisioned wallet.
func NewWallet(userID string, provisionBalance int64, now time.Time) *Wallet {
	return &Wallet{
		UserID:    userID,
		Balance:   provisionBalance,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
