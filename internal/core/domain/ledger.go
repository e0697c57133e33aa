package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntryType is the kind of funds movement.
type LedgerEntryType string

const (
	LedgerEntryLock    LedgerEntryType = "LOCK"
	LedgerEntrySpend   LedgerEntryType = "SPEND"
	LedgerEntryUnlock  LedgerEntryType = "UNLOCK"
	LedgerEntryDeposit LedgerEntryType = "DEPOSIT"
)

// Valid reports whether t is a known entry type.
func (t LedgerEntryType) Valid() bool {
	switch t {
	case LedgerEntryLock, LedgerEntrySpend, LedgerEntryUnlock, LedgerEntryDeposit:
		return true
	}
	return false
}

// Direction returns the side of the available balance the movement hits.
func (t LedgerEntryType) Direction() Direction {
	switch t {
	case LedgerEntryUnlock, LedgerEntryDeposit:
		return DirectionCredit
	default:
		return DirectionDebit
	}
}

// Direction is CREDIT or DEBIT.
type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// LedgerEntry is an immutable, append-only record of one funds movement.
type LedgerEntry struct {
	ID             uuid.UUID       `json:"id"`
	UserID         string          `json:"user_id"`
	Type           LedgerEntryType `json:"type"`
	Amount         int64           `json:"amount"`
	Direction      Direction       `json:"direction"`
	ReferenceID    string          `json:"reference_id"`
	IdempotencyKey string          `json:"idempotency_key"` // Globally unique
	CreatedAt      time.Time       `json:"created_at"`
}

// NewLedgerEntry builds an entry whose direction follows from its type.
func NewLedgerEntry(userID string, t LedgerEntryType, amount int64, referenceID, idempotencyKey string, now time.Time) *LedgerEntry {
	return &LedgerEntry{
		ID:             uuid.New(),
		UserID:         userID,
		Type:           t,
		Amount:         amount,
		Direction:      t.Direction(),
		ReferenceID:    referenceID,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
	}
}

// LedgerTotals aggregates a user's journal per entry type.
type LedgerTotals map[LedgerEntryType]int64

// ExpectedBalance is what the available balance must be if the journal is complete.
func (t LedgerTotals) ExpectedBalance() int64 {
	return t[LedgerEntryDeposit] - t[LedgerEntryLock] + t[LedgerEntryUnlock]
}

// ExpectedLocked is what the locked balance must be if the journal is complete.
func (t LedgerTotals) ExpectedLocked() int64 {
	return t[LedgerEntryLock] - t[LedgerEntryUnlock] - t[LedgerEntrySpend]
}
