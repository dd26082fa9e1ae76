package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meracare/frontdesk/internal/shared/errors"
	"github.com/meracare/frontdesk/internal/shared/types"
)

// Repository stores the operator action trail in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record appends one entry. ID and timestamp are filled in when absent.
func (r *Repository) Record(ctx context.Context, e Entry) error {
	if e.ID.IsZero() {
		e.ID = types.NewID()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	var detailJSON []byte
	if e.Detail != nil {
		var err error
		detailJSON, err = json.Marshal(e.Detail)
		if err != nil {
			return errors.Wrap(err, "failed to marshal audit detail")
		}
	}

	query := `
		INSERT INTO frontdesk.action_audit (
			id, occurred_at, actor_id, actor_name, actor_role,
			action, resource_type, resource_id, idempotency_key,
			outcome, detail
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.OccurredAt, e.ActorID, e.ActorName, e.ActorRole,
		e.Action, e.ResourceType, e.ResourceID, e.IdempotencyKey,
		e.Outcome, detailJSON,
	)
	if err != nil {
		return errors.Wrap(err, "failed to record audit entry")
	}
	return nil
}

// List returns entries matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	query := `
		SELECT id, occurred_at, actor_id, actor_name, actor_role,
			action, resource_type, resource_id, idempotency_key,
			outcome, detail
		FROM frontdesk.action_audit
		WHERE ($1 = '' OR resource_type = $1)
		  AND ($2 = '' OR resource_id = $2)
		  AND ($3 = '' OR actor_id = $3)
		ORDER BY occurred_at DESC
		LIMIT $4`

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, query,
		filter.ResourceType, filter.ResourceID, filter.ActorID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list audit entries")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read audit entries")
	}
	return entries, nil
}

// FindByID returns one entry.
func (r *Repository) FindByID(ctx context.Context, id types.ID) (*Entry, error) {
	query := `
		SELECT id, occurred_at, actor_id, actor_name, actor_role,
			action, resource_type, resource_id, idempotency_key,
			outcome, detail
		FROM frontdesk.action_audit
		WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	e, err := scanEntry(row)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("audit entry", id.String())
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var detailJSON []byte

	err := row.Scan(
		&e.ID, &e.OccurredAt, &e.ActorID, &e.ActorName, &e.ActorRole,
		&e.Action, &e.ResourceType, &e.ResourceID, &e.IdempotencyKey,
		&e.Outcome, &detailJSON,
	)
	if err == pgx.ErrNoRows {
		return Entry{}, err
	}
	if err != nil {
		return Entry{}, errors.Wrap(err, "failed to scan audit entry")
	}

	if len(detailJSON) > 0 {
		if err := json.Unmarshal(detailJSON, &e.Detail); err != nil {
			return Entry{}, errors.Wrap(err, "failed to unmarshal audit detail")
		}
	}
	return e, nil
}
