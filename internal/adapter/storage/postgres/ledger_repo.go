package postgres

import (
	"context"
	"errors"
	"fmt"

	"hero-mint-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `id, user_id, entry_type, amount, direction, reference_id, idempotency_key, created_at`

// LedgerRepo implements ports.LedgerRepository. The table is insert-only.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append inserts a ledger entry. A reused idempotency key yields
// ports.ErrUniqueViolation.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := on(r.pool, tx).Exec(ctx, query,
		e.ID, e.UserID, string(e.Type), e.Amount, string(e.Direction),
		e.ReferenceID, e.IdempotencyKey, e.CreatedAt,
	)
	if err != nil {
		return wrapErr("insert ledger entry", err)
	}
	return nil
}

// GetByIdempotencyKey fetches an entry by its global idempotency key.
func (r *LedgerRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE idempotency_key = $1`

	e, err := scanLedgerEntry(r.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}

// ListByUser returns the newest entries first.
func (r *LedgerRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}

// SumByType aggregates the user's journal per entry type.
func (r *LedgerRepo) SumByType(ctx context.Context, userID string) (domain.LedgerTotals, error) {
	query := `SELECT entry_type, COALESCE(SUM(amount), 0)::BIGINT
		FROM ledger_entries WHERE user_id = $1
		GROUP BY entry_type`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("sum ledger entries: %w", err)
	}
	defer rows.Close()

	totals := domain.LedgerTotals{}
	for rows.Next() {
		var (
			entryType string
			sum       int64
		)
		if err := rows.Scan(&entryType, &sum); err != nil {
			return nil, fmt.Errorf("scan ledger sum: %w", err)
		}
		totals[domain.LedgerEntryType(entryType)] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger sums: %w", err)
	}
	return totals, nil
}

func scanLedgerEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var (
		e         domain.LedgerEntry
		entryType string
		direction string
	)
	err := row.Scan(&e.ID, &e.UserID, &entryType, &e.Amount, &direction,
		&e.ReferenceID, &e.IdempotencyKey, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Type = domain.LedgerEntryType(entryType)
	e.Direction = domain.Direction(direction)
	return &e, nil
}
