package cart

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

const testCartURL = "https://m.shein.com/cart/share/landing?group_id=G123&local_country=LY&lang=en"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSite(t *testing.T) *Site {
	t.Helper()
	p := DefaultProfile()
	p.Tuning.SettleDelay = 0
	p.Tuning.ScrollDelay = 0
	p.Tuning.MaterializeDelay = 0
	site, err := p.Compile()
	require.NoError(t, err)
	return site
}

type stubResponse struct {
	url         string
	contentType string
	body        []byte
	err         error
}

func (r stubResponse) URL() string           { return r.url }
func (r stubResponse) ContentType() string   { return r.contentType }
func (r stubResponse) Body() ([]byte, error) { return r.body, r.err }

func jsonResponse(url, body string) stubResponse {
	return stubResponse{url: url, contentType: "application/json", body: []byte(body)}
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
