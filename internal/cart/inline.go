package cart

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// InlineMatch is embedded state recovered from rendered HTML.
type InlineMatch struct {
	Pattern string
	Path    string
	Items   []any
}

// InlineParser looks for cart state the page serialized into its HTML.
type InlineParser struct {
	site   *Site
	logger *slog.Logger
}

func NewInlineParser(site *Site, logger *slog.Logger) *InlineParser {
	return &InlineParser{site: site, logger: logger.With("component", "inline_parser")}
}

// Parse tries each pattern in order and returns the first that matches,
// parses and yields product-shaped items.
func (p *InlineParser) Parse(page string) (*InlineMatch, bool) {
	var doc *goquery.Document

	for _, pat := range p.site.inline {
		switch pat.Kind {
		case PatternAssignment:
			for _, loc := range pat.re.FindAllStringIndex(page, -1) {
				if m, ok := p.fromValue(pat.Name, page[loc[1]:]); ok {
					return m, true
				}
			}
		case PatternFragment:
			for _, loc := range pat.re.FindAllStringIndex(page, -1) {
				rest := page[loc[1]:]
				if !strings.HasPrefix(rest, "[") {
					continue
				}
				if m, ok := p.fromValue(pat.Name, rest); ok {
					return m, true
				}
			}
		case PatternIsland:
			if doc == nil {
				parsed, err := goquery.NewDocumentFromReader(strings.NewReader(page))
				if err != nil {
					p.logger.Debug("failed to parse html for data islands", "error", err)
					continue
				}
				doc = parsed
			}
			var found *InlineMatch
			doc.Find(pat.Expr).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				text := strings.TrimSpace(s.Text())
				if text == "" {
					return true
				}
				if m, ok := p.fromValue(pat.Name, text); ok {
					found = m
					return false
				}
				return true
			})
			if found != nil {
				return found, true
			}
		}
	}
	return nil, false
}

func (p *InlineParser) fromValue(pattern, text string) (*InlineMatch, bool) {
	limit := p.site.Tuning.MaxBodyBytes
	if limit > 0 && len(text) > limit {
		text = text[:limit]
	}

	literal, ok := cutBalanced(strings.TrimLeft(text, " \t\r\n"))
	if !ok {
		return nil, false
	}

	root, err := decodeJSON([]byte(literal))
	if err != nil {
		p.logger.Debug("inline literal did not parse", "pattern", pattern, "error", err)
		return nil, false
	}

	items, itemsPath, _, _ := p.site.locateItems(root)
	if items == nil {
		items, itemsPath = p.site.deepSearch(root)
		if len(items) == 0 {
			return nil, false
		}
	}

	p.logger.Debug("found inline cart state", "pattern", pattern, "path", itemsPath, "items", len(items))
	return &InlineMatch{Pattern: pattern, Path: itemsPath, Items: items}, true
}

// cutBalanced returns the object or array literal at the start of s. It
// tracks quoted strings so brackets inside them do not count.
func cutBalanced(s string) (string, bool) {
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return "", false
	}

	depth := 0
	var quote byte
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}
