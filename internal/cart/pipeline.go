package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohmed402/wasel/internal/metrics"
)

// LaunchOptions carries per-request browser context settings.
type LaunchOptions struct {
	Headers map[string]string
	Locale  string
}

// MaterializeOptions drives the in-page script that makes lazy content real
// before the DOM tier reads the markup.
type MaterializeOptions struct {
	Steps     int
	Delay     time.Duration
	LazyAttrs []string
}

// Launcher starts isolated browser sessions.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Session, error)
}

// Session is one browser with a single page. Close releases everything and
// is safe to call more than once.
type Session interface {
	Page() Page
	Close() error
}

// Page is the subset of page automation the pipeline needs.
type Page interface {
	OnResponse(handler func(Response))
	Goto(ctx context.Context, url string, timeout time.Duration) error
	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error
	Scroll(ctx context.Context) error
	Materialize(ctx context.Context, opts MaterializeOptions) error
	Content(ctx context.Context) (string, error)
	URL() string
}

// Response is a network response observed by the page.
type Response interface {
	URL() string
	ContentType() string
	Body() ([]byte, error)
}

// Pipeline runs one extraction: launch, navigate, settle, then try the
// network, inline and DOM tiers in that order.
type Pipeline struct {
	site     *Site
	launcher Launcher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewPipeline(site *Site, launcher Launcher, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		site:     site,
		launcher: launcher,
		logger:   logger.With("component", "pipeline"),
		metrics:  m,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Site returns the compiled profile the pipeline runs against.
func (p *Pipeline) Site() *Site {
	return p.site
}

// Run extracts the cart behind rawURL. A run that finds nothing returns a
// Result with no items and diagnostics, not an error.
func (p *Pipeline) Run(ctx context.Context, rawURL string) (*Result, error) {
	req, err := p.site.ParseRequest(rawURL)
	if err != nil {
		return nil, err
	}
	return p.run(ctx, req)
}

func (p *Pipeline) run(ctx context.Context, req *Request) (*Result, error) {
	start := p.now()
	tuning := p.site.Tuning
	logger := p.logger.With("cart_url", req.CartURL, "group_id", req.Metadata.GroupID)

	session, err := p.launcher.Launch(ctx, LaunchOptions{Headers: req.Headers(), Locale: req.Locale()})
	if err != nil {
		p.metrics.IncFailure("launch")
		return nil, err
	}
	p.metrics.SessionOpened()
	defer func() {
		p.metrics.SessionClosed()
		if cerr := session.Close(); cerr != nil {
			logger.Warn("failed to close browser session", "error", cerr)
		}
	}()

	page := session.Page()
	interceptor := NewInterceptor(p.site, p.logger, p.metrics)
	page.OnResponse(interceptor.Observe)

	logger.Info("navigating to cart")
	if err := page.Goto(ctx, req.CartURL, tuning.NavigationTimeout); err != nil {
		p.metrics.IncFailure("navigation")
		if errors.Is(err, ErrNavigationFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrNavigationFailure, err)
	}

	if err := p.settle(ctx, page, logger); err != nil {
		p.metrics.IncFailure("cancelled")
		return nil, err
	}

	drainCtx := ctx
	if tuning.DrainTimeout > 0 {
		var cancel context.CancelFunc
		drainCtx, cancel = context.WithTimeout(ctx, tuning.DrainTimeout)
		defer cancel()
	}
	if err := interceptor.Wait(drainCtx); err != nil {
		logger.Warn("response bodies still pending after drain", "error", err)
	}

	result := &Result{
		CartURL:     req.CartURL,
		Items:       []NormalizedItem{},
		Tier:        TierNone,
		CapturedAt:  p.now().UTC(),
		Metadata:    req.Metadata,
		Diagnostics: interceptor.Diagnostics(),
	}

	if best := SelectBest(interceptor.Candidates()); best != nil {
		result.Items = NormalizeAll(best.Items, p.site.Fields, TierDefaults{Currency: p.site.APICurrency})
		if len(result.Items) > 0 {
			result.Tier = TierNetwork
			result.Source = SourceAPIResponse
			result.SourceDescriptor = best.SourceURL
			return p.finish(result, start, logger), nil
		}
	}

	content, err := page.Content(ctx)
	if err != nil {
		logger.Warn("failed to read page content", "error", err)
	} else if m, ok := NewInlineParser(p.site, p.logger).Parse(content); ok {
		result.Items = NormalizeAll(m.Items, p.site.Fields, TierDefaults{Currency: p.site.APICurrency})
		if len(result.Items) > 0 {
			result.Tier = TierInline
			result.Source = SourcePageContent
			result.SourceDescriptor = m.Pattern
			return p.finish(result, start, logger), nil
		}
	}

	if err := page.Materialize(ctx, MaterializeOptions{
		Steps:     tuning.MaterializeSteps,
		Delay:     tuning.MaterializeDelay,
		LazyAttrs: p.site.DOM.LazyAttrs,
	}); err != nil {
		logger.Warn("failed to materialize lazy content", "error", err)
	}

	content, err = page.Content(ctx)
	if err != nil {
		logger.Warn("failed to read materialized content", "error", err)
		return p.finish(result, start, logger), nil
	}

	m, err := NewDOMExtractor(p.site, p.logger).Extract(content, page.URL())
	if err != nil {
		logger.Warn("dom extraction failed", "error", err)
		return p.finish(result, start, logger), nil
	}

	raw := make([]any, len(m.Items))
	for i, item := range m.Items {
		raw[i] = item
	}
	result.Items = NormalizeAll(raw, p.site.Fields, TierDefaults{Currency: p.site.DOMCurrency})
	if len(result.Items) > 0 {
		result.Tier = TierDOM
		result.Source = SourceDOMExtraction
		result.SourceDescriptor = m.Strategy
		if m.Selector != "" {
			result.SourceDescriptor = m.Strategy + ":" + m.Selector
		}
	}
	return p.finish(result, start, logger), nil
}

// settle waits for the page to go quiet, then scrolls to trigger lazy
// requests. Only context cancellation is fatal.
func (p *Pipeline) settle(ctx context.Context, page Page, logger *slog.Logger) error {
	tuning := p.site.Tuning

	if err := page.WaitForNetworkIdle(ctx, tuning.NetworkIdleTimeout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Debug("network did not go idle", "error", err)
	}
	if err := p.sleep(ctx, tuning.SettleDelay); err != nil {
		return err
	}

	for cycle := 0; cycle < tuning.ScrollCycles; cycle++ {
		if err := page.Scroll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Debug("scroll failed", "cycle", cycle, "error", err)
		}
		if err := p.sleep(ctx, tuning.ScrollDelay); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) finish(result *Result, start time.Time, logger *slog.Logger) *Result {
	result.Duration = p.now().Sub(start)
	if result.Empty() {
		p.metrics.IncFailure("no_items")
		logger.Warn("no cart items found",
			"captured", result.Diagnostics.CapturedCount,
			"accepted", result.Diagnostics.AcceptedCount,
			"duration", result.Duration)
		return result
	}
	p.metrics.ObserveExtraction(string(result.Tier), len(result.Items), result.Duration)
	logger.Info("cart extracted",
		"tier", result.Tier,
		"source", result.SourceDescriptor,
		"items", len(result.Items),
		"duration", result.Duration)
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
