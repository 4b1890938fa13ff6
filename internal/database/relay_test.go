package database

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mohmed402/wasel/internal/metrics"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1234567890-0")
	}
	return cmd
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, err error) error {
	args := m.Called(ctx, id, err)
	return args.Error(0)
}

func (m *MockOutboxRepository) Counts(ctx context.Context) (int64, int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func extractionEvent(runID string) *OutboxEvent {
	return &OutboxEvent{
		ID:            uuid.New(),
		AggregateType: "extraction_run",
		AggregateID:   runID,
		EventType:     "CART_EXTRACTED",
		Payload:       json.RawMessage(`{"runId":"` + runID + `","itemCount":3,"provenanceTier":"network"}`),
		TargetStream:  DefaultStream,
		CreatedAt:     time.Now(),
	}
}

func newTestRelay(r *MockRedisClient, o *MockOutboxRepository) *Relay {
	return NewRelay(o, r, testLogger(), metrics.New(), RelayConfig{PollInterval: 50 * time.Millisecond, BatchSize: 10})
}

func TestRelay_ProcessEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes and marks each event", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := newTestRelay(mockRedis, mockOutbox)

		events := []*OutboxEvent{extractionEvent("run-1"), extractionEvent("run-2")}
		mockOutbox.On("GetPending", ctx, 10).Return(events, nil)

		for _, event := range events {
			event := event
			mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
				return args.Stream == DefaultStream &&
					args.Values.(map[string]any)["event_type"] == "CART_EXTRACTED" &&
					args.Values.(map[string]any)["aggregate_id"] == event.AggregateID
			})).Return(nil)
			mockOutbox.On("MarkProcessed", ctx, event.ID).Return(nil)
		}

		require.NoError(t, relay.processEvents(ctx))

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("marks failed when redis rejects", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := newTestRelay(mockRedis, mockOutbox)

		event := extractionEvent("run-1")
		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{event}, nil)
		mockRedis.On("XAdd", ctx, mock.Anything).Return(errors.New("redis connection failed"))
		mockOutbox.On("MarkFailed", ctx, event.ID, mock.MatchedBy(func(err error) bool {
			return err.Error() == "failed to publish to redis: redis connection failed"
		})).Return(nil)

		assert.NoError(t, relay.processEvents(ctx))

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("empty batch publishes nothing", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := newTestRelay(mockRedis, mockOutbox)

		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{}, nil)

		require.NoError(t, relay.processEvents(ctx))
		mockRedis.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
	})

	t.Run("continues after an individual failure", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := newTestRelay(mockRedis, mockOutbox)

		events := []*OutboxEvent{extractionEvent("run-1"), extractionEvent("run-2")}
		mockOutbox.On("GetPending", ctx, 10).Return(events, nil)

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return args.Values.(map[string]any)["aggregate_id"] == "run-1"
		})).Return(errors.New("redis error"))
		mockOutbox.On("MarkFailed", ctx, events[0].ID, mock.Anything).Return(nil)

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return args.Values.(map[string]any)["aggregate_id"] == "run-2"
		})).Return(nil)
		mockOutbox.On("MarkProcessed", ctx, events[1].ID).Return(nil)

		require.NoError(t, relay.processEvents(ctx))

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("pending lookup failure", func(t *testing.T) {
		mockOutbox := new(MockOutboxRepository)
		relay := newTestRelay(new(MockRedisClient), mockOutbox)

		mockOutbox.On("GetPending", ctx, 10).Return(nil, errors.New("db down"))

		assert.Error(t, relay.processEvents(ctx))
	})
}

func TestRelay_PublishToRedis(t *testing.T) {
	ctx := context.Background()
	mockRedis := new(MockRedisClient)
	relay := newTestRelay(mockRedis, new(MockOutboxRepository))

	event := extractionEvent("run-7")
	mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
		val, ok := args.Values.(map[string]any)["data"].(string)
		if !ok {
			return false
		}

		var data map[string]any
		if err := json.Unmarshal([]byte(val), &data); err != nil {
			return false
		}
		metadata, ok := data["metadata"].(map[string]any)
		if !ok {
			return false
		}
		payload, ok := data["payload"].(map[string]any)
		if !ok {
			return false
		}

		return data["type"] == "CART_EXTRACTED" &&
			data["aggregate_type"] == "extraction_run" &&
			data["aggregate_id"] == "run-7" &&
			payload["provenanceTier"] == "network" &&
			metadata["source"] == "wasel"
	})).Return(nil)

	require.NoError(t, relay.publishToRedis(ctx, event))
	mockRedis.AssertExpectations(t)
}

func TestRelay_PublishAddsExtractionFields(t *testing.T) {
	ctx := context.Background()
	mockRedis := new(MockRedisClient)
	relay := NewRelay(new(MockOutboxRepository), mockRedis, testLogger(), metrics.New(),
		RelayConfig{PollInterval: time.Minute, BatchSize: 10, StreamMaxLen: 500})

	event := extractionEvent("run-9")
	event.Payload = json.RawMessage(`{"runId":"run-9","cartUrl":"https://api-shein.shein.com/h5/sharejump/appjump?link=x","itemCount":3,"provenanceTier":"dom"}`)

	mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
		return args.Stream == DefaultStream &&
			args.MaxLen == 500 && args.Approx &&
			args.Values.(map[string]any)["run_id"] == "run-9" &&
			args.Values.(map[string]any)["provenance_tier"] == "dom" &&
			args.Values.(map[string]any)["item_count"] == "3" &&
			args.Values.(map[string]any)["cart_url"] == "https://api-shein.shein.com/h5/sharejump/appjump?link=x" &&
			args.Values.(map[string]any)["event_type"] == "CART_EXTRACTED"
	})).Return(nil)

	require.NoError(t, relay.publishToRedis(ctx, event))
	mockRedis.AssertExpectations(t)
}

func TestRelay_PublishOtherAggregateSkipsExtractionFields(t *testing.T) {
	ctx := context.Background()
	mockRedis := new(MockRedisClient)
	relay := newTestRelay(mockRedis, new(MockOutboxRepository))

	event := extractionEvent("order-1")
	event.AggregateType = "order"
	event.EventType = "ORDER_CREATED"

	mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
		_, hasRun := args.Values.(map[string]any)["run_id"]
		return !hasRun && args.MaxLen == 0 && args.Values.(map[string]any)["aggregate_type"] == "order"
	})).Return(nil)

	require.NoError(t, relay.publishToRedis(ctx, event))
	mockRedis.AssertExpectations(t)
}

func TestRelay_PublishRejectsBadPayload(t *testing.T) {
	relay := newTestRelay(new(MockRedisClient), new(MockOutboxRepository))

	event := extractionEvent("run-1")
	event.Payload = json.RawMessage(`not json`)

	err := relay.publishToRedis(context.Background(), event)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "failed to unmarshal payload"))
}

func TestRelay_Stats(t *testing.T) {
	mockOutbox := new(MockOutboxRepository)
	relay := newTestRelay(new(MockRedisClient), mockOutbox)
	mockOutbox.On("Counts", mock.Anything).Return(int64(3), int64(1), nil)

	pending, dead, err := relay.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), pending)
	assert.Equal(t, int64(1), dead)
}

func TestRelay_Start(t *testing.T) {
	mockOutbox := new(MockOutboxRepository)
	relay := newTestRelay(new(MockRedisClient), mockOutbox)

	mockOutbox.On("GetPending", mock.Anything, 10).Return([]*OutboxEvent{}, nil).Maybe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- relay.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop on context cancellation")
	}
}
