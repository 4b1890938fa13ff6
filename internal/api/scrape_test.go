package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohmed402/wasel/internal/cart"
	"github.com/mohmed402/wasel/internal/cart/carttest"
	"github.com/mohmed402/wasel/internal/metrics"
	"github.com/mohmed402/wasel/internal/ratelimit"
)

const shareURL = "https://m.shein.com/cart/share/landing?group_id=G123&local_country=LY&lang=en"

const (
	cartAPIURL  = "https://m.shein.com/api/cart/share/get?group_id=G123"
	cartAPIBody = `{"code":"0","info":{"carts":[
		{"goods_id":"101","goods_name":"Dress","sale_price":{"amount":"7.00","currency":"USD"},"quantity":1,"goods_img":"//img.ltwebstatic.com/d.jpg"},
		{"goods_id":"102","goods_name":"Skirt","sale_price":{"amount":"9.50","currency":"USD"},"quantity":2},
		{"goods_id":"103","goods_name":"Top","sale_price":{"amount":"4.25","currency":"USD"},"quantity":1}
	]}}`
	promoBody = `{"info":{"carts":[{"tinyUrl":"https://s.shein.com/p","identity":null}]}}`

	inlineHTML = `<html><head><script>
		window.gbCartSsrData = {"info":{"carts":[{"goods_id":"201","goods_name":"Scarf","sale_price":{"amount":"3.00"}}]}};
	</script></head><body></body></html>`

	domHTML = `<html><body>
		<div class="j-cart-item" data-goods-id="301"><div class="goods-name">Boots</div><div class="price">$25.00</div></div>
		<div class="j-cart-item" data-goods-id="302"><div class="goods-name">Socks</div><div class="price">$2.00</div></div>
	</body></html>`
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newScrapeRouter(t *testing.T, launcher cart.Launcher, opts ...cart.ServiceOption) http.Handler {
	t.Helper()
	site, err := carttest.FastProfile().Compile()
	require.NoError(t, err)

	m := metrics.New()
	pipeline := cart.NewPipeline(site, launcher, testLogger(), m)
	svc := cart.NewService(pipeline, testLogger(), m, opts...)

	h := NewHandlers(Deps{Extractor: svc}, testLogger())
	return NewRouter(h, m, RouterOptions{})
}

func postScrape(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/scrape", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func scrapeBody(url string) string {
	b, _ := json.Marshal(ScrapeRequest{CartShareURL: url})
	return string(b)
}

func TestScrapeNetworkTier(t *testing.T) {
	router := newScrapeRouter(t, carttest.NewLauncher(carttest.Page{
		Responses: []*carttest.Response{
			carttest.JSON("https://m.shein.com/api/cart/promo", promoBody),
			carttest.JSON(cartAPIURL, cartAPIBody),
		},
		HTML: "<html></html>",
	}))

	rec := postScrape(t, router, scrapeBody(shareURL))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, cart.SourceAPIResponse, resp.Source)
	assert.Equal(t, cartAPIURL, resp.SourceAPIURL)
	assert.Equal(t, cart.TierNetwork, resp.ProvenanceTier)
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Items, 3)
	assert.Equal(t, "101", *resp.Items[0].ProductID)
	assert.Equal(t, cart.Metadata{GroupID: "G123", Country: "LY", Language: "en"}, resp.Metadata)
	assert.False(t, resp.CapturedAt.IsZero())
}

func TestScrapeInlineTier(t *testing.T) {
	router := newScrapeRouter(t, carttest.NewLauncher(carttest.Page{
		Responses: []*carttest.Response{
			carttest.JSON("https://m.shein.com/api/cart/promo", promoBody),
		},
		HTML: inlineHTML,
	}))

	rec := postScrape(t, router, scrapeBody(shareURL))
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, cart.SourcePageContent, raw["source"])
	assert.Equal(t, string(cart.TierInline), raw["provenanceTier"])
	assert.NotContains(t, raw, "sourceApiUrl")
	assert.EqualValues(t, 1, raw["count"])
}

func TestScrapeDOMTier(t *testing.T) {
	router := newScrapeRouter(t, carttest.NewLauncher(carttest.Page{
		HTML:             "<html><body><div id=app></div></body></html>",
		MaterializedHTML: domHTML,
	}))

	rec := postScrape(t, router, scrapeBody(shareURL))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, cart.SourceDOMExtraction, resp.Source)
	assert.Equal(t, cart.TierDOM, resp.ProvenanceTier)
	assert.Empty(t, resp.SourceAPIURL)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "Boots", *resp.Items[0].Name)
}

func TestScrapeNothingFound(t *testing.T) {
	router := newScrapeRouter(t, carttest.NewLauncher(carttest.Page{
		Responses: []*carttest.Response{
			carttest.JSON("https://m.shein.com/api/cart/promo", promoBody),
		},
		HTML: "<html><body>empty</body></html>",
	}))

	rec := postScrape(t, router, scrapeBody(shareURL))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ScrapeNotFound
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "no cart items found", resp.Error)
	assert.GreaterOrEqual(t, resp.Debug.CapturedCount, 1)
	assert.NotNil(t, resp.Debug.CapturedURLs)
	assert.NotNil(t, resp.Debug.SampleKeys)
}

func TestScrapeBadRequests(t *testing.T) {
	router := newScrapeRouter(t, carttest.NewLauncher(carttest.Page{}))

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", "{"},
		{"missing url", `{}`},
		{"blank url", `{"cartShareUrl":"   "}`},
		{"foreign host", scrapeBody("https://example.com/cart/share/landing?group_id=1")},
		{"unsupported scheme", scrapeBody("ftp://m.shein.com/cart/share/landing")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postScrape(t, router, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestScrapeNavigationFailure(t *testing.T) {
	router := newScrapeRouter(t, carttest.NewLauncher(carttest.Page{
		GotoErr: errors.New("net::ERR_NAME_NOT_RESOLVED"),
	}))

	rec := postScrape(t, router, scrapeBody(shareURL))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "navigation failed")
}

func TestScrapeLaunchFailure(t *testing.T) {
	launcher := carttest.NewLauncher(carttest.Page{})
	launcher.Err = cart.ErrLaunchFailure

	rec := postScrape(t, newScrapeRouter(t, launcher), scrapeBody(shareURL))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "browser launch failed")
}

type busyGate struct{}

func (busyGate) Acquire(context.Context) (func(), error) {
	return nil, ratelimit.ErrBusy
}

func TestScrapeGateBusy(t *testing.T) {
	launcher := carttest.NewLauncher(carttest.Page{HTML: inlineHTML})
	router := newScrapeRouter(t, launcher, cart.WithGate(busyGate{}))

	rec := postScrape(t, router, scrapeBody(shareURL))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Empty(t, launcher.Sessions())
}

type stubBrowser struct{ err error }

func (s stubBrowser) Available(context.Context) error { return s.err }

func TestScrapeStatus(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		available bool
	}{
		{"available", nil, http.StatusOK, true},
		{"unavailable", cart.ErrBrowserUnavailable, http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlers(Deps{Browser: stubBrowser{err: tt.err}}, testLogger())
			router := NewRouter(h, nil, RouterOptions{})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scrape", nil))
			require.Equal(t, tt.wantCode, rec.Code)

			var status ScrapeStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
			assert.Equal(t, tt.available, status.Available)
			assert.Equal(t, "playwright", status.Engine)
			if tt.err != nil {
				assert.NotEmpty(t, status.Error)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newScrapeRouter(t, carttest.NewLauncher(carttest.Page{HTML: inlineHTML}))
	postScrape(t, router, scrapeBody(shareURL))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "extractions_total")
}

func TestScrapeScenarios(t *testing.T) {
	tests := []struct {
		name       string
		page       carttest.Page
		wantSource string
		wantQty    float64
		wantItem   func(t *testing.T, it cart.NormalizedItem)
	}{
		{
			name: "network tier",
			page: carttest.Page{
				Responses: []*carttest.Response{
					carttest.JSON("https://m.shein.com/api/cart/list.json",
						`{"data":{"cart":{"items":[{"goods_id":"123","goods_name":"Shirt","sale_price":{"amount":19.99,"currency":"USD"},"quantity":2}]}}}`),
				},
				HTML: "<html></html>",
			},
			wantSource: cart.SourceAPIResponse,
			wantQty:    2,
			wantItem: func(t *testing.T, it cart.NormalizedItem) {
				assert.Equal(t, "123", *it.ProductID)
				assert.Equal(t, "Shirt", *it.Name)
				assert.InDelta(t, 19.99, *it.Price, 0.0001)
				assert.Equal(t, "USD", it.Currency)
				assert.Equal(t, 2, it.Quantity)
			},
		},
		{
			name: "inline state",
			page: carttest.Page{
				HTML: `<html><head><script>window.cartData = {"items":[{"name":"Bag","price":"12.50"}]};</script></head></html>`,
			},
			wantSource: cart.SourcePageContent,
			wantItem: func(t *testing.T, it cart.NormalizedItem) {
				assert.Equal(t, "Bag", *it.Name)
				assert.InDelta(t, 12.5, *it.Price, 0.0001)
			},
		},
		{
			name: "dom extraction",
			page: carttest.Page{
				HTML:             "<html><body><div id=app></div></body></html>",
				MaterializedHTML: `<html><body><div data-goods-id="55"><span class="goods-name">Hat</span><span class="price">$7.00</span></div></body></html>`,
			},
			wantSource: cart.SourceDOMExtraction,
			wantItem: func(t *testing.T, it cart.NormalizedItem) {
				assert.Equal(t, "55", *it.ProductID)
				assert.Equal(t, "Hat", *it.Name)
				assert.InDelta(t, 7.0, *it.Price, 0.0001)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newScrapeRouter(t, carttest.NewLauncher(tt.page))

			rec := postScrape(t, router, scrapeBody(shareURL))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp ScrapeResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantSource, resp.Source)
			require.Equal(t, 1, resp.Count)
			require.Len(t, resp.Items, 1)
			tt.wantItem(t, resp.Items[0])
			assert.NotNil(t, resp.Items[0].Images)

			var raw struct {
				Items []map[string]any `json:"items"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
			require.Len(t, raw.Items, 1)
			for _, key := range []string{"productId", "sku", "name", "price", "currency", "qty", "image", "images", "variant", "raw"} {
				assert.Contains(t, raw.Items[0], key)
			}
			assert.NotContains(t, raw.Items[0], "quantity")
			if tt.wantQty > 0 {
				assert.Equal(t, tt.wantQty, raw.Items[0]["qty"])
			}
		})
	}
}
