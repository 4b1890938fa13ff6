package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/mohmed402/wasel/internal/cart"
)

type Options struct {
	Headless           bool
	UserAgent          string
	ViewportWidth      int
	ViewportHeight     int
	TimezoneID         string
	Locale             string
	ProxyServer        string
	ExtraHeaders       map[string]string
	NavigationAttempts int
	AvailabilityTTL    time.Duration
}

func DefaultOptions() *Options {
	return &Options{
		Headless:           true,
		UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		ViewportWidth:      1366,
		ViewportHeight:     900,
		TimezoneID:         "UTC",
		Locale:             "en-US",
		NavigationAttempts: 1,
		AvailabilityTTL:    time.Minute,
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"DNT":    "1",
		},
	}
}

// Launcher starts one isolated Chromium per extraction.
type Launcher struct {
	opts   *Options
	logger *slog.Logger

	mu        sync.Mutex
	checkedAt time.Time
	checkErr  error
}

func NewLauncher(opts *Options, logger *slog.Logger) *Launcher {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Launcher{opts: opts, logger: logger.With("component", "browser")}
}

// Launch starts playwright, a browser, a context and a page. Everything
// started so far is torn down when a later step fails.
func (l *Launcher) Launch(ctx context.Context, lo cart.LaunchOptions) (cart.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to start playwright: %w", cart.ErrBrowserUnavailable, err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			fmt.Sprintf("--window-size=%d,%d", l.opts.ViewportWidth, l.opts.ViewportHeight),
		},
	}
	if l.opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: l.opts.ProxyServer}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		l.stop(pw)
		return nil, fmt.Errorf("%w: %w", cart.ErrLaunchFailure, err)
	}

	headers := make(map[string]string, len(l.opts.ExtraHeaders)+len(lo.Headers))
	for k, v := range l.opts.ExtraHeaders {
		headers[k] = v
	}
	for k, v := range lo.Headers {
		headers[k] = v
	}
	locale := l.opts.Locale
	if lo.Locale != "" {
		locale = lo.Locale
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(l.opts.UserAgent),
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            playwright.String(locale),
		TimezoneId:        playwright.String(l.opts.TimezoneID),
		Viewport: &playwright.Size{
			Width:  l.opts.ViewportWidth,
			Height: l.opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	})
	if err != nil {
		_ = browser.Close()
		l.stop(pw)
		return nil, fmt.Errorf("%w: failed to create browser context: %w", cart.ErrLaunchFailure, err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		l.stop(pw)
		return nil, fmt.Errorf("%w: failed to create page: %w", cart.ErrLaunchFailure, err)
	}

	l.logger.Debug("browser session started", "locale", locale)
	return &Session{
		pw:      pw,
		browser: browser,
		context: bctx,
		page:    &Page{page: page, attempts: l.opts.NavigationAttempts, logger: l.logger},
		logger:  l.logger,
	}, nil
}

// Available reports whether the playwright driver can start. The answer is
// cached for AvailabilityTTL.
func (l *Launcher) Available(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.checkedAt.IsZero() && time.Since(l.checkedAt) < l.opts.AvailabilityTTL {
		return l.checkErr
	}

	pw, err := playwright.Run()
	if err != nil {
		err = fmt.Errorf("%w: %w", cart.ErrBrowserUnavailable, err)
	} else {
		l.stop(pw)
	}
	l.checkedAt = time.Now()
	l.checkErr = err
	return err
}

// Install downloads the Chromium build playwright drives.
func Install() error {
	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}, Verbose: true}); err != nil {
		return fmt.Errorf("failed to install playwright browsers: %w", err)
	}
	return nil
}

func (l *Launcher) stop(pw *playwright.Playwright) {
	if err := pw.Stop(); err != nil {
		l.logger.Warn("failed to stop playwright", "error", err)
	}
}

// Session owns one browser and its single page.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    *Page
	logger  *slog.Logger

	once     sync.Once
	closeErr error
}

func (s *Session) Page() cart.Page {
	return s.page
}

// Close releases the context, browser and driver in that order. Later calls
// return the first result.
func (s *Session) Close() error {
	s.once.Do(func() {
		var errs []error

		if s.context != nil {
			if err := s.context.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close context: %w", err))
			}
		}

		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
			}
		}

		if s.pw != nil {
			if err := s.pw.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
			}
		}

		if len(errs) > 0 {
			s.closeErr = fmt.Errorf("errors during close: %v", errs)
		}
	})
	return s.closeErr
}
