package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mohmed402/wasel/internal/cart"
)

var _ cart.ResultCache = (*Results)(nil)

func TestResultsRoundTrip(t *testing.T) {
	c := NewResults(4, time.Minute)
	want := &cart.Result{CartURL: "https://m.shein.com/cart/share/landing?group_id=1", Tier: cart.TierNetwork}

	c.Add(want.CartURL, want)

	got, ok := c.Get(want.CartURL)
	assert.True(t, ok)
	assert.Same(t, want, got)

	_, ok = c.Get("https://m.shein.com/cart/share/landing?group_id=2")
	assert.False(t, ok)
}

func TestResultsExpire(t *testing.T) {
	c := NewResults(4, 20*time.Millisecond)
	c.Add("k", &cart.Result{})

	assert.Eventually(t, func() bool {
		_, ok := c.Get("k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestResultsEvictOldest(t *testing.T) {
	c := NewResults(2, time.Minute)
	c.Add("a", &cart.Result{})
	c.Add("b", &cart.Result{})
	c.Add("c", &cart.Result{})

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}
