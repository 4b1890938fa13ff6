package cart

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Attributes written by the materialize script in the browser.
const (
	AttrCurrentSrc = "data-wasel-current-src"
	AttrBackground = "data-wasel-bg"
)

var (
	cssURL       = regexp.MustCompile(`url\(\s*['"]?([^'")]+?)['"]?\s*\)`)
	imageURLLike = regexp.MustCompile(`(?i)(\.(jpe?g|png|webp|gif|avif)(\?|#|$))|/images?/|img\.ltwebstatic|/pi/`)
)

// imageSet collects image URLs without duplicates. URLs whose base (without
// query) was already seen are kept but ordered after the primary ones.
type imageSet struct {
	base         *url.URL
	placeholders []string
	seen         map[string]struct{}
	bases        map[string]struct{}
	primary      []string
	variants     []string
}

func newImageSet(base *url.URL, placeholders []string) *imageSet {
	return &imageSet{
		base:         base,
		placeholders: placeholders,
		seen:         make(map[string]struct{}),
		bases:        make(map[string]struct{}),
	}
}

func (s *imageSet) add(raw string) {
	u, ok := s.resolve(raw)
	if !ok {
		return
	}
	if _, dup := s.seen[u]; dup {
		return
	}
	s.seen[u] = struct{}{}

	b := u
	if i := strings.IndexAny(b, "?#"); i >= 0 {
		b = b[:i]
	}
	if _, dup := s.bases[b]; dup {
		s.variants = append(s.variants, u)
		return
	}
	s.bases[b] = struct{}{}
	s.primary = append(s.primary, u)
}

func (s *imageSet) resolve(raw string) (string, bool) {
	raw = strings.Trim(strings.TrimSpace(raw), `"'`)
	if raw == "" {
		return "", false
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "about:") || strings.HasPrefix(lower, "blob:") {
		return "", false
	}
	for _, marker := range s.placeholders {
		if marker != "" && strings.Contains(lower, marker) {
			return "", false
		}
	}

	raw = fixScheme(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if !u.IsAbs() {
		if s.base == nil {
			return "", false
		}
		u = s.base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

func (s *imageSet) list() []string {
	out := make([]string, 0, len(s.primary)+len(s.variants))
	out = append(out, s.primary...)
	return append(out, s.variants...)
}

// parseSrcset returns the candidate URLs of a srcset value. Descriptors are
// dropped; commas inside a URL are kept.
func parseSrcset(v string) []string {
	var out []string
	i := 0
	for i < len(v) {
		for i < len(v) && (v[i] == ',' || isSpace(v[i])) {
			i++
		}
		start := i
		for i < len(v) && !isSpace(v[i]) {
			i++
		}
		candidate := strings.TrimRight(v[start:i], ",")
		if candidate != "" {
			out = append(out, candidate)
		}
		for i < len(v) && v[i] != ',' {
			i++
		}
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func cssURLs(style string) []string {
	var out []string
	for _, m := range cssURL.FindAllStringSubmatch(style, -1) {
		out = append(out, m[1])
	}
	return out
}

// harvestImages gathers every image reference under an item element.
func (x *DOMExtractor) harvestImages(sel *goquery.Selection, base *url.URL) []string {
	rules := x.site.DOM
	set := newImageSet(base, rules.PlaceholderMarkers)

	fromImg := func(img *goquery.Selection) {
		for _, attr := range append([]string{AttrCurrentSrc, "src"}, rules.LazyAttrs...) {
			if v, ok := img.Attr(attr); ok {
				set.add(v)
			}
		}
		for _, attr := range []string{"srcset", "data-srcset"} {
			if v, ok := img.Attr(attr); ok {
				for _, u := range parseSrcset(v) {
					set.add(u)
				}
			}
		}
	}
	fromBackground := func(el *goquery.Selection) {
		for _, attr := range []string{"style", AttrBackground, "data-bg", "data-background"} {
			v, ok := el.Attr(attr)
			if !ok {
				continue
			}
			if found := cssURLs(v); len(found) > 0 {
				for _, u := range found {
					set.add(u)
				}
			} else if attr != "style" {
				set.add(v)
			}
		}
	}

	if goquery.NodeName(sel) == "img" {
		fromImg(sel)
	}
	sel.Find("img").Each(func(_ int, img *goquery.Selection) { fromImg(img) })
	sel.Find("picture source").Each(func(_ int, src *goquery.Selection) {
		for _, attr := range []string{"srcset", "data-srcset"} {
			if v, ok := src.Attr(attr); ok {
				for _, u := range parseSrcset(v) {
					set.add(u)
				}
			}
		}
		if v, ok := src.Attr("src"); ok {
			set.add(v)
		}
	})

	fromBackground(sel)
	sel.Find("[style], [" + AttrBackground + "], [data-bg], [data-background]").Each(func(_ int, el *goquery.Selection) {
		fromBackground(el)
	})
	for _, g := range rules.GallerySelectors {
		sel.Find(g).Each(func(_ int, el *goquery.Selection) {
			fromBackground(el)
			el.Find("img").Each(func(_ int, img *goquery.Selection) { fromImg(img) })
		})
	}

	x.harvestDataAttrs(sel, set)
	sel.Find("*").Each(func(_ int, el *goquery.Selection) { x.harvestDataAttrs(el, set) })

	return set.list()
}

// harvestDataAttrs reads JSON-encoded data-* attributes and keeps the string
// values that look like image URLs.
func (x *DOMExtractor) harvestDataAttrs(el *goquery.Selection, set *imageSet) {
	if len(el.Nodes) == 0 {
		return
	}
	for _, a := range el.Nodes[0].Attr {
		if !strings.HasPrefix(a.Key, "data-") {
			continue
		}
		v := strings.TrimSpace(a.Val)
		if v == "" || (v[0] != '{' && v[0] != '[') {
			continue
		}
		parsed, err := decodeJSON([]byte(v))
		if err != nil {
			continue
		}
		walkStrings(parsed, func(s string) {
			if imageURLLike.MatchString(s) {
				set.add(s)
			}
		})
	}
}

func walkStrings(v any, fn func(string)) {
	switch val := v.(type) {
	case string:
		fn(val)
	case []any:
		for _, e := range val {
			walkStrings(e, fn)
		}
	case map[string]any:
		for _, k := range sortedKeys(val) {
			walkStrings(val[k], fn)
		}
	}
}
