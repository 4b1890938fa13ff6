package cart

import "strings"

const defaultCurrency = "USD"

// TierDefaults carries values a tier supplies when the raw record has none.
type TierDefaults struct {
	Currency string
}

var imageObjectKeys = []string{"url", "src", "origin_image", "image_url", "imageUrl", "img"}

// Normalize maps one raw record onto the uniform item shape. It never fails:
// missing or malformed fields become nil, quantity defaults to 1 and the
// original record is kept as Raw.
func Normalize(raw map[string]any, rules FieldRules, defaults TierDefaults) NormalizedItem {
	if raw == nil {
		raw = map[string]any{}
	}

	item := NormalizedItem{
		ProductID: firstString(raw, rules.ProductID),
		SKU:       firstString(raw, rules.SKU),
		Name:      firstString(raw, rules.Name),
		Variant:   normalizeVariant(raw, rules.Variant),
		Quantity:  1,
		Images:    []string{},
		Raw:       raw,
	}

	for _, p := range rules.Price {
		v, ok := lookup(raw, p)
		if !ok {
			continue
		}
		if f, ok := asFloat(v); ok && f >= 0 {
			item.Price = &f
			break
		}
	}

	if c := firstString(raw, rules.Currency); c != nil && len(*c) <= 4 {
		item.Currency = strings.ToUpper(*c)
	}
	if item.Currency == "" {
		item.Currency = defaults.Currency
	}
	if item.Currency == "" {
		item.Currency = defaultCurrency
	}

	for _, p := range rules.Quantity {
		v, ok := lookup(raw, p)
		if !ok {
			continue
		}
		if q, ok := asInt(v); ok {
			if q > 0 {
				item.Quantity = q
			}
			break
		}
	}

	seen := make(map[string]struct{})
	add := func(u string) {
		u = fixScheme(strings.TrimSpace(u))
		if u == "" {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		item.Images = append(item.Images, u)
	}

	if img := firstString(raw, rules.Image); img != nil {
		add(*img)
	}
	for _, p := range rules.Images {
		v, ok := lookup(raw, p)
		if !ok {
			continue
		}
		for _, u := range imageStrings(v) {
			add(u)
		}
	}
	if len(item.Images) > 0 {
		primary := item.Images[0]
		item.Image = &primary
	}

	return item
}

func normalizeVariant(raw map[string]any, paths []string) *string {
	for _, p := range paths {
		v, ok := lookup(raw, p)
		if !ok || isBlank(v) {
			continue
		}
		if s, ok := asString(v); ok {
			s = collapseSpace(s)
			return &s
		}
		if parts := variantParts(v); len(parts) > 0 {
			s := strings.Join(parts, " / ")
			return &s
		}
	}
	return nil
}

// variantParts flattens attribute lists such as
// [{"attr_name":"Size","attr_value":"M"}].
func variantParts(v any) []string {
	var parts []string
	switch val := v.(type) {
	case []any:
		for _, e := range val {
			parts = append(parts, variantParts(e)...)
		}
	case map[string]any:
		for _, k := range []string{"attr_value_en", "attr_value", "value", "name"} {
			if s, ok := asString(val[k]); ok {
				parts = append(parts, s)
				break
			}
		}
	default:
		if s, ok := asString(v); ok {
			parts = append(parts, s)
		}
	}
	return parts
}

func imageStrings(v any) []string {
	switch val := v.(type) {
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	case []any:
		var out []string
		for _, e := range val {
			out = append(out, imageStrings(e)...)
		}
		return out
	case map[string]any:
		for _, k := range imageObjectKeys {
			if s, ok := val[k].(string); ok && strings.TrimSpace(s) != "" {
				return []string{s}
			}
		}
	}
	return nil
}

// NormalizeAll normalizes every object element of items. Non-object
// elements are skipped.
func NormalizeAll(items []any, rules FieldRules, defaults TierDefaults) []NormalizedItem {
	out := make([]NormalizedItem, 0, len(items))
	for _, e := range items {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Normalize(obj, rules, defaults))
	}
	return out
}
