package browser

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohmed402/wasel/internal/cart"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Headless)
	assert.Equal(t, 1366, opts.ViewportWidth)
	assert.Equal(t, 900, opts.ViewportHeight)
	assert.Equal(t, "en-US", opts.Locale)
	assert.Equal(t, 1, opts.NavigationAttempts)
	assert.NotEmpty(t, opts.UserAgent)
}

func TestTimeoutMillis(t *testing.T) {
	assert.Equal(t, 30000.0, timeoutMillis(context.Background(), 30*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.LessOrEqual(t, timeoutMillis(ctx, time.Minute), 2000.0)

	expired, cancel2 := context.WithTimeout(context.Background(), -time.Second)
	defer cancel2()
	assert.Equal(t, 1.0, timeoutMillis(expired, time.Minute))
}

func TestLaunchRespectsCancelledContext(t *testing.T) {
	l := NewLauncher(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Launch(ctx, cart.LaunchOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

// Requires an installed Chromium; run with BROWSER_TEST=true.
func TestLaunchAndClose(t *testing.T) {
	if os.Getenv("BROWSER_TEST") != "true" {
		t.Skip("Skipping browser test. Set BROWSER_TEST=true to run")
	}

	l := NewLauncher(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	session, err := l.Launch(context.Background(), cart.LaunchOptions{
		Headers: map[string]string{"Accept-Language": "en-US,en;q=0.9"},
	})
	require.NoError(t, err)

	page := session.Page()
	require.NoError(t, page.Goto(context.Background(), "data:text/html,<p data-src='x.jpg'>hi</p>", 10*time.Second))
	content, err := page.Content(context.Background())
	require.NoError(t, err)
	assert.Contains(t, content, "hi")

	require.NoError(t, session.Close())
	assert.NoError(t, session.Close())
}
