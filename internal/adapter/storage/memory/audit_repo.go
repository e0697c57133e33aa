package memory

import (
	"context"
	"slices"

	"hero-mint-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	s *Store
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(s *Store) *AuditRepo {
	return &AuditRepo{s: s}
}

func (r *AuditRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.AuditEvent) error {
	return r.s.write(ctx, tx, func(t *Tx) error {
		stored := *e
		stored.Meta = slices.Clone(e.Meta)
		t.audit = append(t.audit, stored)
		return nil
	})
}

func (r *AuditRepo) ListByEntity(ctx context.Context, entityType, entityID string) ([]domain.AuditEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var events []domain.AuditEvent
	for _, e := range r.s.audit {
		if e.EntityType == entityType && e.EntityID == entityID {
			events = append(events, e)
		}
	}
	return events, nil
}
