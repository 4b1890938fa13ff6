package cart

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfileCompiles(t *testing.T) {
	site, err := DefaultProfile().Compile()
	require.NoError(t, err)

	assert.Equal(t, "shein.com", site.Domain)
	assert.Len(t, site.inline, 3)
	assert.GreaterOrEqual(t, len(site.ItemPaths), 12)
	assert.Equal(t, 60*time.Second, site.Tuning.NavigationTimeout)
	assert.Equal(t, 30*time.Second, site.Tuning.NetworkIdleTimeout)
	assert.Equal(t, 5*time.Second, site.Tuning.SettleDelay)
	assert.Equal(t, 3, site.Tuning.ScrollCycles)
	assert.Equal(t, 2*time.Second, site.Tuning.ScrollDelay)
	assert.Equal(t, 10, site.Tuning.PropertyWeight)
	assert.Equal(t, 20, site.Tuning.MaxCandidates)
}

func TestCompileRejectsBadProfiles(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Profile)
	}{
		{name: "no domain", mutate: func(p *Profile) { p.Domain = "" }},
		{name: "bad share pattern", mutate: func(p *Profile) { p.SharePathPattern = "(" }},
		{name: "bad product url pattern", mutate: func(p *Profile) { p.DOM.ProductURLPattern = "[" }},
		{name: "bad inline regex", mutate: func(p *Profile) {
			p.InlinePatterns = []InlinePattern{{Name: "x", Kind: PatternAssignment, Expr: "(?P<"}}
		}},
		{name: "unknown inline kind", mutate: func(p *Profile) {
			p.InlinePatterns = []InlinePattern{{Name: "x", Kind: "telepathy", Expr: "x"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProfile()
			tt.mutate(&p)
			_, err := p.Compile()
			assert.Error(t, err)
		})
	}
}

func TestLoadProfileMergesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// regional storefront
		version: 'shein-ar-test',
		domCurrency: 'LYD',
		denylist: ['/ads/'],
		tuning: {
			settleDelay: '1500ms',
			scrollCycles: 5,
			networkIdleTimeout: 10000,
		},
	}`), 0o600))

	p, err := LoadProfile(path)
	require.NoError(t, err)

	assert.Equal(t, "shein-ar-test", p.Version)
	assert.Equal(t, "LYD", p.DOMCurrency)
	assert.Equal(t, "USD", p.APICurrency)
	assert.Equal(t, []string{"/ads/"}, p.Denylist)
	assert.Equal(t, "shein.com", p.Domain)
	assert.NotEmpty(t, p.ItemPaths)

	assert.Equal(t, 1500*time.Millisecond, p.Tuning.SettleDelay)
	assert.Equal(t, 5, p.Tuning.ScrollCycles)
	assert.Equal(t, 10*time.Second, p.Tuning.NetworkIdleTimeout)
	assert.Equal(t, 60*time.Second, p.Tuning.NavigationTimeout)
	assert.Equal(t, 20, p.Tuning.MaxCandidates)
}

func TestLoadProfileErrors(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.json5"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json5")
	require.NoError(t, os.WriteFile(bad, []byte(`{tuning: {settleDelay: 'soon'}}`), 0o600))
	_, err = LoadProfile(bad)
	assert.Error(t, err)

	unknown := filepath.Join(t.TempDir(), "unknown.json5")
	require.NoError(t, os.WriteFile(unknown, []byte(`{tuning: {warpFactor: 9}}`), 0o600))
	_, err = LoadProfile(unknown)
	assert.Error(t, err)
}

func TestLoadProfileEmptyPath(t *testing.T) {
	p, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile().Version, p.Version)
}
