package cart

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParseSrcset(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "a.jpg 1x, b.jpg 2x", want: []string{"a.jpg", "b.jpg"}},
		{in: "  //cdn/x_405.jpg 405w,//cdn/x_900.jpg 900w ", want: []string{"//cdn/x_405.jpg", "//cdn/x_900.jpg"}},
		{in: "single.jpg", want: []string{"single.jpg"}},
		{in: "https://cdn/img,w_200.jpg 200w, https://cdn/img,w_400.jpg 400w", want: []string{"https://cdn/img,w_200.jpg", "https://cdn/img,w_400.jpg"}},
		{in: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseSrcset(tt.in))
		})
	}
}

func TestImageSetOrdering(t *testing.T) {
	base, _ := url.Parse("https://m.shein.com/cart/share")
	set := newImageSet(base, []string{"placeholder"})

	set.add("//img.ltwebstatic.com/a.jpg?w=200")
	set.add("https://img.ltwebstatic.com/a.jpg?w=900")
	set.add("https://img.ltwebstatic.com/b.jpg")
	set.add("//img.ltwebstatic.com/a.jpg?w=200")
	set.add("/images/c.png")
	set.add("data:image/png;base64,AAAA")
	set.add("https://img.ltwebstatic.com/placeholder.png")
	set.add("  ")

	assert.Equal(t, []string{
		"https://img.ltwebstatic.com/a.jpg?w=200",
		"https://img.ltwebstatic.com/b.jpg",
		"https://m.shein.com/images/c.png",
		"https://img.ltwebstatic.com/a.jpg?w=900",
	}, set.list())
}

func TestImageSetWithoutBaseDropsRelative(t *testing.T) {
	set := newImageSet(nil, nil)
	set.add("relative/path.jpg")
	set.add("https://img.ltwebstatic.com/x.jpg")

	assert.Equal(t, []string{"https://img.ltwebstatic.com/x.jpg"}, set.list())
}

func TestCSSURLs(t *testing.T) {
	assert.Equal(t, []string{"https://a/x.jpg"}, cssURLs(`background-image: url("https://a/x.jpg")`))
	assert.Equal(t, []string{"//a/y.jpg", "z.png"}, cssURLs(`background: url('//a/y.jpg') no-repeat, url(z.png)`))
	assert.Empty(t, cssURLs(`color: red`))
}

func TestHarvestImagesFromDataAttributes(t *testing.T) {
	site := testSite(t)
	x := NewDOMExtractor(site, testLogger())

	doc := mustDoc(t, `<html><body><div class="item"
		data-gallery='["//img.ltwebstatic.com/g1.webp", "//img.ltwebstatic.com/g2.webp", "not-an-image"]'
		data-meta="{skus: [{thumb: 'https://img.ltwebstatic.com/s1.jpg'}]}">
		<picture><source srcset="https://img.ltwebstatic.com/p.avif 1x"></picture>
		<div data-wasel-bg="url(&quot;https://img.ltwebstatic.com/bg.jpg&quot;)"></div>
	</div></body></html>`)

	base, _ := url.Parse("https://m.shein.com/")
	got := x.harvestImages(doc.Find(".item"), base)

	assert.ElementsMatch(t, []string{
		"https://img.ltwebstatic.com/p.avif",
		"https://img.ltwebstatic.com/bg.jpg",
		"https://img.ltwebstatic.com/g1.webp",
		"https://img.ltwebstatic.com/g2.webp",
		"https://img.ltwebstatic.com/s1.jpg",
	}, got)
}

func TestHarvestImagesSharedSrcKeepsSrcsetVariants(t *testing.T) {
	site := testSite(t)
	x := NewDOMExtractor(site, testLogger())

	doc := mustDoc(t, `<html><body><div class="item">
		<img src="//img.ltwebstatic.com/images3_pi/coat.jpg"
			srcset="//img.ltwebstatic.com/images3_pi/coat.jpg?w=405 405w, //img.ltwebstatic.com/images3_pi/coat.jpg 600w">
		<img src="//img.ltwebstatic.com/images3_pi/coat.jpg"
			srcset="//img.ltwebstatic.com/images3_pi/coat.jpg?w=900 900w">
	</div></body></html>`)

	base, _ := url.Parse("https://m.shein.com/")
	got := x.harvestImages(doc.Find(".item"), base)

	assert.Equal(t, []string{
		"https://img.ltwebstatic.com/images3_pi/coat.jpg",
		"https://img.ltwebstatic.com/images3_pi/coat.jpg?w=405",
		"https://img.ltwebstatic.com/images3_pi/coat.jpg?w=900",
	}, got)

	seen := make(map[string]int)
	for _, u := range got {
		seen[u]++
	}
	for u, n := range seen {
		assert.Equal(t, 1, n, u)
	}
}
