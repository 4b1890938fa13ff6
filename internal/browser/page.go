package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/mohmed402/wasel/internal/cart"
)

const materializeScript = `async ({steps, delay, lazyAttrs}) => {
	const sleep = (ms) => new Promise((resolve) => setTimeout(resolve, ms));
	for (let i = 0; i < steps; i++) {
		window.scrollBy(0, Math.max(window.innerHeight, 400));
		await sleep(delay);
	}
	window.scrollTo(0, 0);

	let touched = 0;
	document.querySelectorAll('img, source').forEach((el) => {
		const src = el.getAttribute('src');
		if (!src || src.startsWith('data:')) {
			for (const attr of lazyAttrs) {
				const v = el.getAttribute(attr);
				if (v) {
					el.setAttribute('src', v);
					break;
				}
			}
		}
		const lazySet = el.getAttribute('data-srcset');
		if (lazySet && !el.getAttribute('srcset')) {
			el.setAttribute('srcset', lazySet);
		}
		if (el.currentSrc) {
			el.setAttribute('data-wasel-current-src', el.currentSrc);
			touched++;
		}
	});
	document.querySelectorAll('body *').forEach((el) => {
		const bg = window.getComputedStyle(el).backgroundImage;
		if (bg && bg !== 'none' && bg.includes('url(')) {
			el.setAttribute('data-wasel-bg', bg);
			touched++;
		}
	});
	return touched;
}`

// Page adapts a playwright page to the pipeline.
type Page struct {
	page     playwright.Page
	attempts int
	logger   *slog.Logger
}

func (p *Page) OnResponse(handler func(cart.Response)) {
	p.page.OnResponse(func(r playwright.Response) {
		handler(&response{resp: r})
	})
}

// Goto navigates until DOMContentLoaded, retrying up to the configured
// number of attempts.
func (p *Page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	attempts := p.attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			p.logger.Info("retrying navigation", "attempt", i+1, "url", url)
		}

		_, err := p.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(timeoutMillis(ctx, timeout)),
		})
		if err == nil {
			return nil
		}
		lastErr = err
		p.logger.Warn("navigation failed", "error", err, "attempt", i+1)
	}

	return fmt.Errorf("%w: failed after %d attempts: %w", cart.ErrNavigationFailure, attempts, lastErr)
}

func (p *Page) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		return nil
	}
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(timeoutMillis(ctx, timeout)),
	})
}

func (p *Page) Scroll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Evaluate(`() => window.scrollBy(0, Math.max(window.innerHeight, 600))`)
	return err
}

func (p *Page) Materialize(ctx context.Context, opts cart.MaterializeOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	touched, err := p.page.Evaluate(materializeScript, map[string]any{
		"steps":     opts.Steps,
		"delay":     opts.Delay.Milliseconds(),
		"lazyAttrs": opts.LazyAttrs,
	})
	if err != nil {
		return fmt.Errorf("materialize script failed: %w", err)
	}
	p.logger.Debug("materialized lazy content", "elements", touched)
	return nil
}

func (p *Page) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Content()
}

func (p *Page) URL() string {
	return p.page.URL()
}

type response struct {
	resp playwright.Response
}

func (r *response) URL() string {
	return r.resp.URL()
}

func (r *response) ContentType() string {
	return r.resp.Headers()["content-type"]
}

func (r *response) Body() ([]byte, error) {
	return r.resp.Body()
}

// timeoutMillis clamps d to the time left on ctx.
func timeoutMillis(ctx context.Context, d time.Duration) float64 {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			d = left
		}
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return float64(d.Milliseconds())
}
