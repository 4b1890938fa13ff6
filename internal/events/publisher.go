package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mohmed402/wasel/internal/cart"
	"github.com/mohmed402/wasel/internal/database"
)

type EventType string

const (
	// EventTypeCartExtracted is published for every run that returned items.
	EventTypeCartExtracted EventType = "CART_EXTRACTED"
)

// CartExtractedPayload is the body of a CART_EXTRACTED event.
type CartExtractedPayload struct {
	EventID        string                `json:"event_id"`
	EventType      string                `json:"event_type"`
	Timestamp      time.Time             `json:"timestamp"`
	RunID          string                `json:"runId"`
	CartURL        string                `json:"cartUrl"`
	ProvenanceTier string                `json:"provenanceTier"`
	Source         string                `json:"source"`
	Descriptor     string                `json:"descriptor,omitempty"`
	ItemCount      int                   `json:"itemCount"`
	Items          []cart.NormalizedItem `json:"items"`
	Metadata       cart.Metadata         `json:"metadata"`
}

type transactor interface {
	Transaction(ctx context.Context, fn func(pgx.Tx) error) error
}

type runInserter interface {
	InsertWithTx(ctx context.Context, tx pgx.Tx, run *database.ExtractionRun) error
}

type outboxInserter interface {
	InsertWithTx(ctx context.Context, tx pgx.Tx, event *database.OutboxEvent) error
}

// Publisher stores extraction runs and, when emitting is enabled, queues a
// CART_EXTRACTED outbox event in the same transaction.
type Publisher struct {
	db     transactor
	runs   runInserter
	outbox outboxInserter
	emit   bool
	logger *slog.Logger
}

type Options struct {
	Stream string
	Emit   bool
}

func NewPublisher(db *database.DB, logger *slog.Logger, opts Options) *Publisher {
	return &Publisher{
		db:     db,
		runs:   database.NewExtractionRunRepository(db),
		outbox: database.NewOutboxRepository(db, opts.Stream),
		emit:   opts.Emit,
		logger: logger.With("component", "event_publisher"),
	}
}

// RecordExtraction implements cart.Recorder.
func (p *Publisher) RecordExtraction(ctx context.Context, run cart.Run) error {
	row, err := runRow(run)
	if err != nil {
		return err
	}

	var event *database.OutboxEvent
	if p.emit && run.Status == cart.RunSucceeded {
		if event, err = cartExtractedEvent(row.ID, run); err != nil {
			return err
		}
	}

	err = p.db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := p.runs.InsertWithTx(ctx, tx, row); err != nil {
			return err
		}
		if event != nil {
			if err := p.outbox.InsertWithTx(ctx, tx, event); err != nil {
				return fmt.Errorf("failed to insert outbox event: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record extraction: %w", err)
	}

	attrs := []any{
		"run_id", row.ID,
		"status", row.Status,
		"tier", row.Tier,
		"item_count", row.ItemCount,
	}
	if event != nil {
		attrs = append(attrs, "outbox_id", event.ID)
	}
	p.logger.Info("extraction recorded", attrs...)

	return nil
}

func runRow(run cart.Run) (*database.ExtractionRun, error) {
	meta, err := json.Marshal(run.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	items := run.Items
	if items == nil {
		items = []cart.NormalizedItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal items: %w", err)
	}

	row := &database.ExtractionRun{
		ID:         uuid.New(),
		CartURL:    run.CartURL,
		Tier:       string(run.Tier),
		Source:     run.Source,
		Descriptor: run.Descriptor,
		ItemCount:  run.ItemCount,
		Status:     run.Status,
		DurationMS: run.Duration.Milliseconds(),
		Metadata:   meta,
		Items:      itemsJSON,
		StartedAt:  run.StartedAt,
	}
	if run.Error != "" {
		msg := run.Error
		row.Error = &msg
	}
	return row, nil
}

func cartExtractedEvent(runID uuid.UUID, run cart.Run) (*database.OutboxEvent, error) {
	payload := CartExtractedPayload{
		EventID:        uuid.New().String(),
		EventType:      string(EventTypeCartExtracted),
		Timestamp:      time.Now().UTC(),
		RunID:          runID.String(),
		CartURL:        run.CartURL,
		ProvenanceTier: string(run.Tier),
		Source:         run.Source,
		Descriptor:     run.Descriptor,
		ItemCount:      run.ItemCount,
		Items:          run.Items,
		Metadata:       run.Metadata,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return &database.OutboxEvent{
		AggregateType: database.AggregateExtractionRun,
		AggregateID:   runID.String(),
		EventType:     string(EventTypeCartExtracted),
		Payload:       data,
	}, nil
}
