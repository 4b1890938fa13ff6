package cart

// locateItems tries the root array and then every configured path guess,
// returning the first array that passes the shape checks. When none pass it
// reports why the first non-empty array was refused, along with a sample
// object for diagnostics.
func (s *Site) locateItems(root any) (items []any, itemsPath, reason string, sample any) {
	reason, sample = "no_items", root

	try := func(arr []any, p string) bool {
		if len(arr) == 0 {
			return false
		}
		ok, why := s.acceptItems(arr)
		if ok {
			items, itemsPath = arr, p
			return true
		}
		if reason == "no_items" {
			reason, sample = why, arr[0]
		}
		return false
	}

	if arr, ok := root.([]any); ok && try(arr, "$") {
		return items, itemsPath, "", nil
	}
	for _, p := range s.ItemPaths {
		v, ok := lookup(root, p)
		if !ok {
			continue
		}
		if arr, ok := v.([]any); ok && try(arr, p) {
			return items, itemsPath, "", nil
		}
	}
	return nil, "", reason, sample
}

// looksLikeProduct reports whether v carries at least one product field,
// directly or under a nested "product" object.
func (s *Site) looksLikeProduct(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	if s.hasAnyKey(obj, s.productKeys) {
		return true
	}
	if nested, ok := obj["product"].(map[string]any); ok {
		return s.hasAnyKey(nested, s.productKeys)
	}
	return false
}

// isDecoy reports whether obj is a promotional object: it carries a decoy
// marker but no product identifier.
func (s *Site) isDecoy(obj map[string]any) bool {
	if !s.hasAnyKey(obj, s.decoyKeys) {
		return false
	}
	if s.hasAnyKey(obj, s.idKeys) {
		return false
	}
	if nested, ok := obj["product"].(map[string]any); ok && s.hasAnyKey(nested, s.idKeys) {
		return false
	}
	return true
}

func (s *Site) hasAnyKey(obj map[string]any, keys map[string]struct{}) bool {
	for k, v := range obj {
		if _, ok := keys[k]; ok && v != nil {
			return true
		}
	}
	return false
}

// acceptItems applies the shape checks to a candidate array. The first
// element decides for the whole array.
func (s *Site) acceptItems(items []any) (ok bool, reason string) {
	if len(items) == 0 {
		return false, "no_items"
	}
	if obj, isObj := items[0].(map[string]any); isObj && s.isDecoy(obj) {
		return false, "decoy"
	}
	if !s.looksLikeProduct(items[0]) {
		return false, "not_product"
	}
	return true, ""
}

// deepSearch walks root breadth-first, up to the configured depth, for the
// first array that passes acceptItems. Object keys are visited in sorted
// order so the result is deterministic.
func (s *Site) deepSearch(root any) ([]any, string) {
	type node struct {
		value any
		path  string
		depth int
	}

	maxDepth := s.Tuning.SearchDepth
	if maxDepth <= 0 {
		return nil, ""
	}

	queue := []node{{value: root, path: "$"}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		switch val := n.value.(type) {
		case []any:
			if ok, _ := s.acceptItems(val); ok {
				return val, n.path
			}
			if n.depth >= maxDepth {
				continue
			}
			for _, child := range val {
				if _, isObj := child.(map[string]any); isObj {
					queue = append(queue, node{value: child, path: n.path + "[]", depth: n.depth + 1})
				}
			}
		case map[string]any:
			if n.depth >= maxDepth {
				continue
			}
			for _, k := range sortedKeys(val) {
				switch val[k].(type) {
				case []any, map[string]any:
					queue = append(queue, node{value: val[k], path: n.path + "." + k, depth: n.depth + 1})
				}
			}
		}
	}
	return nil, ""
}

// Score ranks candidate payloads: a fixed bonus when items carry product
// fields, plus one point per item.
func Score(hasProperties bool, itemCount, propertyWeight int) int {
	score := itemCount
	if hasProperties {
		score += propertyWeight
	}
	return score
}
