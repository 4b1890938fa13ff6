package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ExtractionRun is one row of extraction_runs.
type ExtractionRun struct {
	ID         uuid.UUID       `json:"id"`
	CartURL    string          `json:"cartUrl"`
	Tier       string          `json:"provenanceTier"`
	Source     string          `json:"source"`
	Descriptor string          `json:"descriptor"`
	ItemCount  int             `json:"itemCount"`
	Status     string          `json:"status"`
	Error      *string         `json:"error,omitempty"`
	DurationMS int64           `json:"durationMs"`
	Metadata   json.RawMessage `json:"metadata"`
	Items      json.RawMessage `json:"items,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type ExtractionRunRepository struct {
	db *DB
}

func NewExtractionRunRepository(db *DB) *ExtractionRunRepository {
	return &ExtractionRunRepository{db: db}
}

func (r *ExtractionRunRepository) InsertWithTx(ctx context.Context, tx pgx.Tx, run *ExtractionRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if len(run.Metadata) == 0 {
		run.Metadata = json.RawMessage(`{}`)
	}
	if len(run.Items) == 0 {
		run.Items = json.RawMessage(`[]`)
	}

	query := `
		INSERT INTO extraction_runs (
			id, cart_url, tier, source, descriptor, item_count,
			status, error, duration_ms, metadata, items, started_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		RETURNING created_at`

	err := tx.QueryRow(ctx, query,
		run.ID, run.CartURL, run.Tier, run.Source, run.Descriptor, run.ItemCount,
		run.Status, run.Error, run.DurationMS, run.Metadata, run.Items, run.StartedAt,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert extraction run: %w", err)
	}

	return nil
}

// List returns the most recent runs without their item payloads.
func (r *ExtractionRunRepository) List(ctx context.Context, limit, offset int) ([]ExtractionRun, error) {
	query := `
		SELECT
			id, cart_url, tier, source, descriptor, item_count,
			status, error, duration_ms, metadata, started_at, created_at
		FROM extraction_runs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list extraction runs: %w", err)
	}
	defer rows.Close()

	runs := []ExtractionRun{}
	for rows.Next() {
		var run ExtractionRun
		if err := rows.Scan(
			&run.ID, &run.CartURL, &run.Tier, &run.Source, &run.Descriptor, &run.ItemCount,
			&run.Status, &run.Error, &run.DurationMS, &run.Metadata, &run.StartedAt, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan extraction run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return runs, nil
}
