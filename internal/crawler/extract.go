package crawler

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StateMarker introduces the JSON payload embedded in every listing page.
const StateMarker = "window.__PRELOADED_STATE__ ="

// ExtractEmbeddedState locates the preloaded-state assignment in a page body
// and parses the JSON object that follows it. The object is delimited in
// layers: a string-aware balanced-brace scan first, then a cut at the
// enclosing </script> trimmed back to the last "};", then a non-greedy cut at
// the first ";". A missing marker returns ErrNoData; a marker whose payload
// never parses returns ErrParse.
func ExtractEmbeddedState(body []byte) (map[string]any, error) {
	page := string(body)
	idx := strings.Index(page, StateMarker)
	if idx < 0 {
		return nil, fmt.Errorf("marker %q not found: %w", StateMarker, ErrNoData)
	}
	rest := page[idx+len(StateMarker):]
	start := strings.IndexByte(rest, '{')
	if start < 0 {
		return nil, fmt.Errorf("no object after marker: %w", ErrNoData)
	}
	rest = rest[start:]

	for _, candidate := range stateCandidates(rest) {
		var payload map[string]any
		if err := json.Unmarshal([]byte(candidate), &payload); err == nil {
			return payload, nil
		}
	}
	return nil, fmt.Errorf("embedded state did not parse: %w", ErrParse)
}

// stateCandidates yields possible raw-JSON slices of rest, most precise first.
// rest starts at the opening brace.
func stateCandidates(rest string) []string {
	var out []string
	if obj, ok := scanBalancedObject(rest); ok {
		out = append(out, obj)
	}
	if cut := strings.Index(rest, "</script>"); cut >= 0 {
		frag := rest[:cut]
		if end := strings.LastIndex(frag, "};"); end >= 0 {
			out = append(out, frag[:end+1])
		}
	}
	if end := strings.Index(rest, ";"); end > 0 {
		out = append(out, strings.TrimSpace(rest[:end]))
	}
	return out
}

// scanBalancedObject returns the prefix of s that forms one balanced JSON
// object, tracking brace depth outside of string literals. s must start at
// '{'. Returns false when the object never closes (truncated payload).
func scanBalancedObject(s string) (string, bool) {
	if s == "" || s[0] != '{' {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// LocateSearchResult finds the searchResult object either at the payload's top
// level or nested exactly one level down.
func LocateSearchResult(payload map[string]any) (map[string]any, bool) {
	if sr, ok := payload["searchResult"].(map[string]any); ok {
		return sr, true
	}
	for _, v := range payload {
		child, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if sr, ok := child["searchResult"].(map[string]any); ok {
			return sr, true
		}
	}
	return nil, false
}

// ParseSearchPage pulls the result records and page count out of a listing
// payload. totalPages defaults to 1 when absent or malformed.
func ParseSearchPage(payload map[string]any) (SearchPage, error) {
	sr, ok := LocateSearchResult(payload)
	if !ok {
		return SearchPage{}, fmt.Errorf("searchResult missing from payload: %w", ErrNoData)
	}
	page := SearchPage{TotalPages: 1}
	if tp, ok := asInt(sr["totalPages"]); ok && tp > 0 {
		page.TotalPages = tp
	}
	raw, _ := sr["results"].([]any)
	for _, item := range raw {
		if rec, ok := item.(map[string]any); ok {
			page.Records = append(page.Records, rec)
		}
	}
	return page, nil
}

// asInt coerces the numeric shapes encoding/json produces.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
