package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"hero-mint-service/internal/core/domain"
	"hero-mint-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/sha3"
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService creates a new audit service.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Record hashes and persists event in tx. A failure here must abort the
// caller's transaction.
func (s *auditService) Record(ctx context.Context, tx pgx.Tx, event *domain.AuditEvent) error {
	if !event.Action.Valid() {
		return fmt.Errorf("unknown audit action %q", event.Action)
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	hash, err := hashAuditEvent(event)
	if err != nil {
		return err
	}
	event.Hash = hash

	if err := s.repo.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("persist audit event: %w", err)
	}

	s.log.Info().
		Str("action", string(event.Action)).
		Str("entity_type", event.EntityType).
		Str("entity_id", event.EntityID).
		Str("actor_user_id", event.ActorUserID).
		Msg("audit")
	return nil
}

func (s *auditService) Trail(ctx context.Context, entityType, entityID string) ([]domain.AuditEvent, error) {
	events, err := s.repo.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

// canonicalAuditEvent fixes the field order of the hashed representation.
type canonicalAuditEvent struct {
	ID          string          `json:"id"`
	ActorUserID string          `json:"actor_user_id"`
	Action      string          `json:"action"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	Meta        json.RawMessage `json:"meta,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

// hashAuditEvent returns the hex SHA3-256 of the canonical event.
func hashAuditEvent(e *domain.AuditEvent) (string, error) {
	b, err := json.Marshal(canonicalAuditEvent{
		ID:          e.ID.String(),
		ActorUserID: e.ActorUserID,
		Action:      string(e.Action),
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		Meta:        e.Meta,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", fmt.Errorf("encode audit event: %w", err)
	}
	sum := sha3.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// clientFields converts request details into the nullable audit columns.
func clientFields(c domain.RequestContext) (ip, userAgent *string) {
	if c.IP != "" {
		ip = &c.IP
	}
	if c.UserAgent != "" {
		userAgent = &c.UserAgent
	}
	return ip, userAgent
}

// auditMeta encodes meta, which only ever holds plain values.
func auditMeta(meta map[string]any) json.RawMessage {
	b, _ := json.Marshal(meta)
	return b
}
