package cart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBest(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		candidates []CapturedResponse
		wantURL    string
	}{
		{
			name: "highest score wins",
			candidates: []CapturedResponse{
				{SourceURL: "a", Score: 12, ItemCount: 2, CapturedAt: t0},
				{SourceURL: "b", Score: 15, ItemCount: 5, CapturedAt: t0.Add(time.Second)},
				{SourceURL: "c", Score: 11, ItemCount: 1, CapturedAt: t0},
			},
			wantURL: "b",
		},
		{
			name: "item count breaks score ties",
			candidates: []CapturedResponse{
				{SourceURL: "a", Score: 14, ItemCount: 4, CapturedAt: t0},
				{SourceURL: "b", Score: 14, ItemCount: 14, CapturedAt: t0.Add(time.Second)},
			},
			wantURL: "b",
		},
		{
			name: "earlier capture breaks remaining ties",
			candidates: []CapturedResponse{
				{SourceURL: "late", Score: 13, ItemCount: 3, CapturedAt: t0.Add(2 * time.Second)},
				{SourceURL: "early", Score: 13, ItemCount: 3, CapturedAt: t0},
			},
			wantURL: "early",
		},
		{
			name: "url is the final tie break",
			candidates: []CapturedResponse{
				{SourceURL: "z", Score: 13, ItemCount: 3, CapturedAt: t0},
				{SourceURL: "m", Score: 13, ItemCount: 3, CapturedAt: t0},
			},
			wantURL: "m",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best := SelectBest(tt.candidates)
			require.NotNil(t, best)
			assert.Equal(t, tt.wantURL, best.SourceURL)
		})
	}
}

func TestSelectBestEmpty(t *testing.T) {
	assert.Nil(t, SelectBest(nil))
	assert.Nil(t, SelectBest([]CapturedResponse{}))
	assert.Nil(t, SelectBest([]CapturedResponse{{SourceURL: "x", Score: 10, ItemCount: 0}}))
}

func TestSelectBestDoesNotReorderInput(t *testing.T) {
	in := []CapturedResponse{
		{SourceURL: "a", Score: 11, ItemCount: 1},
		{SourceURL: "b", Score: 20, ItemCount: 10},
	}
	SelectBest(in)
	assert.Equal(t, "a", in[0].SourceURL)
}

func TestSelectBestIsDeterministic(t *testing.T) {
	t0 := time.Now()
	in := []CapturedResponse{
		{SourceURL: "b", Score: 13, ItemCount: 3, CapturedAt: t0},
		{SourceURL: "a", Score: 13, ItemCount: 3, CapturedAt: t0},
		{SourceURL: "c", Score: 13, ItemCount: 3, CapturedAt: t0},
	}
	reversed := []CapturedResponse{in[2], in[1], in[0]}

	assert.Equal(t, SelectBest(in).SourceURL, SelectBest(reversed).SourceURL)
}

func TestSelectionStableAcrossPropertyWeights(t *testing.T) {
	bodies := map[string]string{
		"https://m.shein.com/api/cart/promo":     decoyBody,
		"https://m.shein.com/api/cart/share/get": realCartBody,
		"https://m.shein.com/api/cart/recommend": `{"info":{"carts":[{"goods_id":"9","goods_name":"Hat"}]}}`,
	}
	orders := [][]string{
		{"https://m.shein.com/api/cart/promo", "https://m.shein.com/api/cart/share/get", "https://m.shein.com/api/cart/recommend"},
		{"https://m.shein.com/api/cart/recommend", "https://m.shein.com/api/cart/share/get", "https://m.shein.com/api/cart/promo"},
		{"https://m.shein.com/api/cart/share/get", "https://m.shein.com/api/cart/promo", "https://m.shein.com/api/cart/recommend"},
	}

	for _, weight := range []int{1, 5, 10, 100} {
		p := DefaultProfile()
		p.Tuning.PropertyWeight = weight
		site, err := p.Compile()
		require.NoError(t, err)

		for _, order := range orders {
			i := NewInterceptor(site, testLogger(), nil)
			for _, u := range order {
				i.Observe(jsonResponse(u, bodies[u]))
			}
			drain(t, i)

			best := SelectBest(i.Candidates())
			require.NotNil(t, best, "weight %d", weight)
			assert.Equal(t, "https://m.shein.com/api/cart/share/get", best.SourceURL, "weight %d", weight)
			assert.Equal(t, weight+3, best.Score)
		}
	}
}
