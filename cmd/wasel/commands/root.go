package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohmed402/wasel/internal/browser"
	"github.com/mohmed402/wasel/internal/cart"
	"github.com/mohmed402/wasel/internal/config"
	"github.com/mohmed402/wasel/internal/logger"
	"github.com/mohmed402/wasel/internal/metrics"
)

var rootCmd = &cobra.Command{
	Use:           "wasel",
	Short:         "wasel extracts SHEIN shared carts and serves the order backend.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads and validates configuration and builds the process logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)
	return cfg, log, nil
}

// loadSite returns the compiled site profile, with overrides from path when
// set.
func loadSite(path string) (*cart.Site, error) {
	profile, err := cart.LoadProfile(path)
	if err != nil {
		return nil, err
	}
	return profile.Compile()
}

func browserOptions(cfg config.BrowserConfig) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Headless
	if cfg.UserAgent != "" {
		opts.UserAgent = cfg.UserAgent
	}
	opts.ViewportWidth = cfg.ViewportWidth
	opts.ViewportHeight = cfg.ViewportHeight
	opts.TimezoneID = cfg.TimezoneID
	opts.Locale = cfg.Locale
	opts.ProxyServer = cfg.Proxy
	opts.NavigationAttempts = cfg.NavigationAttempts
	return opts
}

// newPipeline wires the site profile to a real browser launcher.
func newPipeline(cfg *config.Config, log *slog.Logger, m *metrics.Metrics, profilePath string) (*cart.Pipeline, *browser.Launcher, error) {
	if profilePath == "" {
		profilePath = cfg.Scraper.ProfileFile
	}
	site, err := loadSite(profilePath)
	if err != nil {
		return nil, nil, err
	}

	launcher := browser.NewLauncher(browserOptions(cfg.Browser), log)
	return cart.NewPipeline(site, launcher, log, m), launcher, nil
}
