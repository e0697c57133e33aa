package postgres

import (
	"context"
	"fmt"

	"hero-mint-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a PostgreSQL-backed audit repository.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.AuditEvent) error {
	query := `INSERT INTO audit_events (id, actor_user_id, action, entity_type, entity_id, hash, ip, user_agent, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	var meta []byte
	if len(e.Meta) > 0 {
		meta = []byte(e.Meta)
	}
	_, err := on(r.pool, tx).Exec(ctx, query,
		e.ID, e.ActorUserID, string(e.Action), e.EntityType, e.EntityID,
		e.Hash, e.IP, e.UserAgent, meta, e.CreatedAt,
	)
	if err != nil {
		return wrapErr("insert audit event", err)
	}
	return nil
}

// ListByEntity returns the trail of one entity, oldest first.
func (r *AuditRepo) ListByEntity(ctx context.Context, entityType, entityID string) ([]domain.AuditEvent, error) {
	query := `SELECT id, actor_user_id, action, entity_type, entity_id, hash, ip, user_agent, meta, created_at
		FROM audit_events WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var (
			e      domain.AuditEvent
			action string
			meta   []byte
		)
		if err := rows.Scan(&e.ID, &e.ActorUserID, &action, &e.EntityType, &e.EntityID,
			&e.Hash, &e.IP, &e.UserAgent, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = domain.AuditAction(action)
		e.Meta = meta
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
