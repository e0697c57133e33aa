package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionMint              AuditAction = "MINT"
	AuditActionDeposit           AuditAction = "DEPOSIT"
	AuditActionBurn              AuditAction = "BURN"
	AuditActionWalletProvisioned AuditAction = "WALLET_PROVISIONED"
)

// Valid reports whether a is a known action.
func (a AuditAction) Valid() bool {
	switch a {
	case AuditActionMint, AuditActionDeposit, AuditActionBurn, AuditActionWalletProvisioned:
		return true
	}
	return false
}

// AuditEvent is an append-only record of one state-changing action.
type AuditEvent struct {
	ID          uuid.UUID       `json:"id"`
	ActorUserID string          `json:"actor_user_id"`
	Action      AuditAction     `json:"action"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	Hash        string          `json:"hash"` // SHA3-256 of the canonical event
	IP          *string         `json:"ip,omitempty"`
	UserAgent   *string         `json:"user_agent,omitempty"`
	Meta        json.RawMessage `json:"meta,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RequestContext carries client details for audit records.
type RequestContext struct {
	IP        string
	UserAgent string
}
