// Package carttest provides scripted browser fakes for exercising the
// extraction pipeline without a real browser.
package carttest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mohmed402/wasel/internal/cart"
)

// Response is a canned network response.
type Response struct {
	RawURL string
	Type   string
	Data   []byte
	Err    error
}

func (r *Response) URL() string           { return r.RawURL }
func (r *Response) ContentType() string   { return r.Type }
func (r *Response) Body() ([]byte, error) { return r.Data, r.Err }

// JSON builds a JSON response for url.
func JSON(url, body string) *Response {
	return &Response{RawURL: url, Type: "application/json; charset=utf-8", Data: []byte(body)}
}

// Page replays Responses during Goto and serves HTML from Content. After
// Materialize, MaterializedHTML is served when set.
type Page struct {
	Responses        []*Response
	HTML             string
	MaterializedHTML string
	PageURL          string
	GotoErr          error
	ContentErr       error

	mu           sync.Mutex
	handlers     []func(cart.Response)
	materialized bool
	calls        []string
	headers      map[string]string
}

func (p *Page) OnResponse(handler func(cart.Response)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, handler)
}

func (p *Page) Goto(_ context.Context, url string, _ time.Duration) error {
	p.record("goto")
	if p.GotoErr != nil {
		return p.GotoErr
	}
	if p.PageURL == "" {
		p.PageURL = url
	}

	p.mu.Lock()
	handlers := append([]func(cart.Response){}, p.handlers...)
	p.mu.Unlock()

	for _, r := range p.Responses {
		for _, h := range handlers {
			h(r)
		}
	}
	return nil
}

func (p *Page) WaitForNetworkIdle(ctx context.Context, _ time.Duration) error {
	p.record("network_idle")
	return ctx.Err()
}

func (p *Page) Scroll(ctx context.Context) error {
	p.record("scroll")
	return ctx.Err()
}

func (p *Page) Materialize(ctx context.Context, _ cart.MaterializeOptions) error {
	p.record("materialize")
	p.mu.Lock()
	p.materialized = true
	p.mu.Unlock()
	return ctx.Err()
}

func (p *Page) Content(_ context.Context) (string, error) {
	p.record("content")
	if p.ContentErr != nil {
		return "", p.ContentErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.materialized && p.MaterializedHTML != "" {
		return p.MaterializedHTML, nil
	}
	return p.HTML, nil
}

func (p *Page) URL() string {
	return p.PageURL
}

// Calls returns the page operations in the order they were made.
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.calls...)
}

func (p *Page) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

// Session wraps a Page and counts Close calls.
type Session struct {
	P *Page

	mu     sync.Mutex
	closes int
}

func (s *Session) Page() cart.Page { return s.P }

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// Closes reports how many times Close was called.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Launcher hands out sessions built by NewPage, one per launch.
type Launcher struct {
	NewPage func() *Page
	Err     error

	mu       sync.Mutex
	sessions []*Session
	options  []cart.LaunchOptions
}

// NewLauncher returns a Launcher whose sessions all serve copies of page's
// script.
func NewLauncher(page Page) *Launcher {
	return &Launcher{NewPage: func() *Page {
		return &Page{
			Responses:        page.Responses,
			HTML:             page.HTML,
			MaterializedHTML: page.MaterializedHTML,
			PageURL:          page.PageURL,
			GotoErr:          page.GotoErr,
			ContentErr:       page.ContentErr,
		}
	}}
}

func (l *Launcher) Launch(ctx context.Context, opts cart.LaunchOptions) (cart.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Err != nil {
		return nil, l.Err
	}
	if l.NewPage == nil {
		return nil, errors.New("carttest: launcher has no page")
	}

	s := &Session{P: l.NewPage()}
	l.mu.Lock()
	l.sessions = append(l.sessions, s)
	l.options = append(l.options, opts)
	l.mu.Unlock()
	return s, nil
}

// Sessions returns every session launched so far.
func (l *Launcher) Sessions() []*Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Session{}, l.sessions...)
}

// Options returns the launch options of every launch so far.
func (l *Launcher) Options() []cart.LaunchOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]cart.LaunchOptions{}, l.options...)
}

// FastProfile returns the default profile with every wait set to zero.
func FastProfile() cart.Profile {
	p := cart.DefaultProfile()
	p.Tuning.NavigationTimeout = time.Second
	p.Tuning.NetworkIdleTimeout = 0
	p.Tuning.SettleDelay = 0
	p.Tuning.ScrollDelay = 0
	p.Tuning.MaterializeDelay = 0
	p.Tuning.DrainTimeout = time.Second
	return p
}
