package crawler

import (
	"sort"
	"strings"
)

// maxWalkDepth bounds the depth-first search over detail payloads; deeper
// nesting than this is either malformed or not worth chasing.
const maxWalkDepth = 12

// findByKey returns the first value stored under key anywhere in the tree.
// The walk is depth-first with map keys visited in sorted order, so the first
// match is deterministic. A direct hit on a node wins over matches in its
// children.
func findByKey(node any, key string, depth int) (any, bool) {
	if depth > maxWalkDepth {
		return nil, false
	}
	switch t := node.(type) {
	case map[string]any:
		if v, ok := t[key]; ok {
			return v, true
		}
		for _, k := range sortedKeys(t) {
			if v, ok := findByKey(t[k], key, depth+1); ok {
				return v, true
			}
		}
	case []any:
		for _, item := range t {
			if v, ok := findByKey(item, key, depth+1); ok {
				return v, true
			}
		}
	}
	return nil, false
}

// findString tries each key in order against the whole tree and returns the
// first non-empty string found. Key order is the priority order.
func findString(node any, keys ...string) string {
	for _, key := range keys {
		if v, ok := findByKey(node, key, 0); ok {
			if s := anyToString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// findObject returns the first object stored under any of the keys.
func findObject(node any, keys ...string) (map[string]any, bool) {
	for _, key := range keys {
		if v, ok := findByKey(node, key, 0); ok {
			if m, ok := v.(map[string]any); ok {
				return m, true
			}
		}
	}
	return nil, false
}

// findList returns the first list stored under any of the keys.
func findList(node any, keys ...string) ([]any, bool) {
	for _, key := range keys {
		if v, ok := findByKey(node, key, 0); ok {
			if l, ok := v.([]any); ok {
				return l, true
			}
		}
	}
	return nil, false
}

// anyToString flattens scalars and single-string lists to a trimmed string.
func anyToString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
