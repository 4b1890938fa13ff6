package cart

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"golang.org/x/net/html"
)

const maxScanCandidates = 500

// Strategy names reported for DOM matches.
const (
	StrategySelector = "selector"
	StrategyScan     = "document_scan"
)

// DOMMatch is the set of records scraped from rendered markup.
type DOMMatch struct {
	Strategy   string
	Selector   string
	Confidence float64
	Items      []map[string]any
}

// DOMExtractor is the last-resort tier: it reads cart items straight out of
// the rendered page.
type DOMExtractor struct {
	site   *Site
	logger *slog.Logger
}

func NewDOMExtractor(site *Site, logger *slog.Logger) *DOMExtractor {
	return &DOMExtractor{site: site, logger: logger.With("component", "dom_extractor")}
}

// Extract parses html and returns the items of the first selector in the
// cascade that matches any element, falling back to a scan of the whole
// document when none do. A matching selector ends the cascade even when its
// elements carry no usable data.
func (x *DOMExtractor) Extract(page, pageURL string) (*DOMMatch, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page html: %w", err)
	}

	base, _ := url.Parse(pageURL)

	for _, rule := range x.site.DOM.Selectors {
		sel := doc.Find(rule.Selector)
		if sel.Length() == 0 {
			continue
		}
		items := x.collect(sel.Nodes, doc, base)
		x.logger.Debug("selector matched", "selector", rule.Selector, "elements", sel.Length(), "items", len(items))
		return &DOMMatch{Strategy: StrategySelector, Selector: rule.Selector, Confidence: rule.Confidence, Items: items}, nil
	}

	candidates := x.scan(doc)
	items := x.collect(candidates.Nodes, doc, base)
	x.logger.Debug("document scan finished", "elements", candidates.Length(), "items", len(items))
	return &DOMMatch{Strategy: StrategyScan, Confidence: 0.2, Items: items}, nil
}

func (x *DOMExtractor) collect(nodes []*html.Node, doc *goquery.Document, base *url.URL) []map[string]any {
	var items []map[string]any
	seen := make(map[string]struct{})

	for idx, n := range nodes {
		el := doc.FindNodes(n)
		item, ok := x.extractSafely(el, base, idx)
		if !ok {
			continue
		}
		key := itemKey(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, item)
	}
	return items
}

func (x *DOMExtractor) extractSafely(el *goquery.Selection, base *url.URL, idx int) (item map[string]any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			x.logger.Warn("element extraction failed", "index", idx, "panic", r)
			item, ok = nil, false
		}
	}()
	return x.extractElement(el, base)
}

// extractElement builds a raw record for one item element. Records without
// an id, a name and a price are dropped.
func (x *DOMExtractor) extractElement(el *goquery.Selection, base *url.URL) (map[string]any, bool) {
	rules := x.site.DOM
	item := map[string]any{}

	if id := x.findID(el); id != "" {
		item["goods_id"] = id
	}
	if name := x.findName(el); name != "" {
		item["goods_name"] = name
	}
	if text, price, ok := x.findPrice(el); ok {
		item["price"] = price
		item["price_text"] = text
	}
	if qty, ok := x.findQuantity(el); ok {
		item["quantity"] = qty
	}
	if variant := firstText(el, rules.VariantSelectors); variant != "" {
		item["variant"] = variant
	}

	if item["goods_id"] == nil && item["goods_name"] == nil && item["price"] == nil {
		return nil, false
	}

	images := x.harvestImages(el, base)
	if len(images) > 0 {
		item["goods_img"] = images[0]
		list := make([]any, len(images))
		for i, u := range images {
			list[i] = u
		}
		item["images"] = list
	}

	return item, true
}

func (x *DOMExtractor) findID(el *goquery.Selection) string {
	attrs := x.site.DOM.IDAttrs
	for _, attr := range attrs {
		if v := strings.TrimSpace(el.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	for _, attr := range attrs {
		if v := strings.TrimSpace(el.Find("["+attr+"]").First().AttrOr(attr, "")); v != "" {
			return v
		}
	}
	for _, attr := range attrs {
		if v := strings.TrimSpace(el.Closest("["+attr+"]").AttrOr(attr, "")); v != "" {
			return v
		}
	}
	if x.site.productURL != nil {
		var id string
		el.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if m := x.site.productURL.FindStringSubmatch(a.AttrOr("href", "")); len(m) > 1 {
				id = m[1]
				return false
			}
			return true
		})
		return id
	}
	return ""
}

func (x *DOMExtractor) findName(el *goquery.Selection) string {
	if name := firstText(el, x.site.DOM.NameSelectors); name != "" {
		return name
	}
	for _, attr := range x.site.DOM.NameAttrs {
		if v := collapseSpace(el.AttrOr(attr, "")); v != "" {
			return v
		}
		if v := collapseSpace(el.Find("["+attr+"]").First().AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return ""
}

func (x *DOMExtractor) findPrice(el *goquery.Selection) (string, float64, bool) {
	for _, s := range x.site.DOM.PriceSelectors {
		var text string
		var price float64
		found := false
		el.Find(s).EachWithBreak(func(_ int, p *goquery.Selection) bool {
			t := collapseSpace(p.Text())
			if f, ok := ParsePrice(t); ok {
				text, price, found = t, f, true
				return false
			}
			return true
		})
		if found {
			return text, price, true
		}
	}
	for _, attr := range x.site.DOM.PriceAttrs {
		for _, v := range []string{el.AttrOr(attr, ""), el.Find("["+attr+"]").First().AttrOr(attr, "")} {
			if f, ok := ParsePrice(v); ok {
				return v, f, true
			}
		}
	}
	return "", 0, false
}

func (x *DOMExtractor) findQuantity(el *goquery.Selection) (int, bool) {
	for _, attr := range x.site.DOM.QuantityAttrs {
		for _, v := range []string{el.AttrOr(attr, ""), el.Find("["+attr+"]").First().AttrOr(attr, "")} {
			if q, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && q > 0 {
				return q, true
			}
		}
	}
	if v, ok := el.Find(`input[type="number"]`).First().Attr("value"); ok {
		if q, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && q > 0 {
			return q, true
		}
	}
	for _, s := range x.site.DOM.QuantitySelectors {
		t := el.Find(s).First().Text()
		if m := digits.FindString(t); m != "" {
			if q, err := strconv.Atoi(m); err == nil && q > 0 {
				return q, true
			}
		}
	}
	return 0, false
}

// scan checks every element's class tokens and attribute names against the
// cart item vocabulary and keeps the innermost matches.
func (x *DOMExtractor) scan(doc *goquery.Document) *goquery.Selection {
	var matched []*html.Node
	doc.Find("body *").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if x.looksLikeItem(s) {
			matched = append(matched, s.Nodes[0])
		}
		return len(matched) < maxScanCandidates
	})

	var innermost []*html.Node
	for _, n := range matched {
		outer := doc.FindNodes(n)
		hasInner := false
		for _, m := range matched {
			if m != n && outer.Contains(m) {
				hasInner = true
				break
			}
		}
		if !hasInner {
			innermost = append(innermost, n)
		}
	}
	return doc.FindNodes(innermost...)
}

func (x *DOMExtractor) looksLikeItem(s *goquery.Selection) bool {
	rules := x.site.DOM
	for _, tok := range strings.Fields(strings.ToLower(s.AttrOr("class", ""))) {
		if isPartToken(tok, rules.ScanPartSuffixes) {
			continue
		}
		for _, kw := range rules.ScanTokens {
			if tok == kw || strings.TrimSuffix(tok, "s") == kw || strings.Contains(tok, kw) {
				return true
			}
			if rules.FuzzyThreshold > 0 && matchr.JaroWinkler(tok, kw, false) >= rules.FuzzyThreshold {
				return true
			}
		}
	}
	for _, a := range s.Nodes[0].Attr {
		name := strings.ToLower(a.Key)
		for _, kw := range rules.ScanAttrs {
			if strings.Contains(name, kw) {
				return true
			}
		}
	}
	return false
}

// isPartToken reports whether a class token names a piece of an item, such
// as cart-item-img, rather than the item container itself.
func isPartToken(tok string, suffixes []string) bool {
	i := strings.LastIndexAny(tok, "-_")
	if i < 0 || i == len(tok)-1 {
		return false
	}
	last := tok[i+1:]
	for _, s := range suffixes {
		if last == s {
			return true
		}
	}
	return false
}

func firstText(el *goquery.Selection, selectors []string) string {
	for _, s := range selectors {
		if t := collapseSpace(el.Find(s).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func itemKey(item map[string]any) string {
	if id, ok := item["goods_id"].(string); ok && id != "" {
		return "id:" + id
	}
	name, _ := item["goods_name"].(string)
	price, _ := item["price_text"].(string)
	return "np:" + name + "|" + price
}
