package cart

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mohmed402/wasel/internal/metrics"
)

// Gate bounds concurrent browser launches.
type Gate interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// ResultCache holds recent results keyed by canonical cart URL.
type ResultCache interface {
	Get(key string) (*Result, bool)
	Add(key string, result *Result)
}

// Run is the record of one extraction attempt.
type Run struct {
	CartURL    string
	Tier       Tier
	Source     string
	Descriptor string
	ItemCount  int
	Items      []NormalizedItem
	Metadata   Metadata
	Status     string
	Error      string
	Duration   time.Duration
	StartedAt  time.Time
}

// Run statuses.
const (
	RunSucceeded = "succeeded"
	RunEmpty     = "empty"
	RunFailed    = "failed"
)

// Recorder persists extraction runs.
type Recorder interface {
	RecordExtraction(ctx context.Context, run Run) error
}

// Service is the entry point used by the HTTP and CLI surfaces.
type Service struct {
	pipeline *Pipeline
	gate     Gate
	cache    ResultCache
	recorder Recorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// ServiceOption configures optional collaborators.
type ServiceOption func(*Service)

func WithGate(g Gate) ServiceOption {
	return func(s *Service) { s.gate = g }
}

func WithCache(c ResultCache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

func NewService(pipeline *Pipeline, logger *slog.Logger, m *metrics.Metrics, opts ...ServiceOption) *Service {
	s := &Service{
		pipeline: pipeline,
		logger:   logger.With("component", "extract_service"),
		metrics:  m,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extract validates rawURL and returns the cart behind it. Only non-empty
// results are cached.
func (s *Service) Extract(ctx context.Context, rawURL string) (*Result, error) {
	req, err := s.pipeline.site.ParseRequest(rawURL)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(req.CartURL); ok {
			s.metrics.IncCache("hit")
			s.logger.Debug("serving cached result", "cart_url", req.CartURL)
			return cached, nil
		}
		s.metrics.IncCache("miss")
	}

	if s.gate != nil {
		release, err := s.gate.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	started := time.Now().UTC()
	result, err := s.pipeline.run(ctx, req)
	s.record(ctx, req, started, result, err)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && !result.Empty() {
		s.cache.Add(req.CartURL, result)
	}
	return result, nil
}

func (s *Service) record(ctx context.Context, req *Request, started time.Time, result *Result, runErr error) {
	if s.recorder == nil {
		return
	}

	run := Run{
		CartURL:   req.CartURL,
		Metadata:  req.Metadata,
		Tier:      TierNone,
		StartedAt: started,
		Duration:  time.Since(started),
	}
	switch {
	case runErr != nil:
		run.Status = RunFailed
		run.Error = runErr.Error()
	case result.Empty():
		run.Status = RunEmpty
	default:
		run.Status = RunSucceeded
		run.Tier = result.Tier
		run.Source = result.Source
		run.Descriptor = result.SourceDescriptor
		run.ItemCount = len(result.Items)
		run.Items = result.Items
		run.Duration = result.Duration
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.recorder.RecordExtraction(recordCtx, run); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("failed to record extraction run", "cart_url", req.CartURL, "error", err)
	}
}
