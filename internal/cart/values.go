package cart

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// decodeJSON parses strict JSON first and falls back to json5 for the
// relaxed object literals some pages inline.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	err := dec.Decode(&v)
	if err == nil {
		return v, nil
	}

	var relaxed any
	if err5 := json5.Unmarshal(data, &relaxed); err5 == nil {
		return relaxed, nil
	}
	return nil, err
}

// lookup walks a dotted path through nested objects. Numeric segments index
// into arrays.
func lookup(v any, path string) (any, bool) {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func isBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

// asString renders scalar values as strings. Objects and arrays are rejected.
func asString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		return s, s != ""
	case json.Number:
		return val.String(), true
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return "", false
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	}
	return "", false
}

var amountKeys = []string{"amount", "value", "usdAmount", "price"}

func asFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, false
		}
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		return ParsePrice(val)
	case map[string]any:
		for _, k := range amountKeys {
			if inner, ok := val[k]; ok {
				if _, nested := inner.(map[string]any); nested {
					continue
				}
				if f, ok := asFloat(inner); ok {
					return f, true
				}
			}
		}
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func firstString(obj map[string]any, paths []string) *string {
	for _, p := range paths {
		v, ok := lookup(obj, p)
		if !ok {
			continue
		}
		if s, ok := asString(v); ok {
			s = collapseSpace(s)
			return &s
		}
	}
	return nil
}

var (
	priceNumber = regexp.MustCompile(`\d[\d.,\s]*`)
	spaceRun    = regexp.MustCompile(`\s+`)
	digits      = regexp.MustCompile(`\d+`)
)

// ParsePrice reads a number out of display text such as "$7.00", "12,50 €"
// or "US$1,299.90". Both comma and dot decimal separators are accepted.
func ParsePrice(text string) (float64, bool) {
	m := priceNumber.FindString(text)
	if m == "" {
		return 0, false
	}
	m = strings.Join(strings.Fields(m), "")
	m = strings.TrimRight(m, ".,")

	lastDot := strings.LastIndex(m, ".")
	lastComma := strings.LastIndex(m, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			m = strings.ReplaceAll(m, ".", "")
			m = strings.Replace(m, ",", ".", 1)
		} else {
			m = strings.ReplaceAll(m, ",", "")
		}
	case lastComma >= 0:
		// A single comma followed by exactly three digits is a thousands separator.
		if strings.Count(m, ",") == 1 && len(m)-lastComma-1 != 3 {
			m = strings.Replace(m, ",", ".", 1)
		} else {
			m = strings.ReplaceAll(m, ",", "")
		}
	case strings.Count(m, ".") > 1:
		m = strings.ReplaceAll(m, ".", "")
	}

	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fixScheme(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}
