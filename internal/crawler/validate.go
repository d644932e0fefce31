package crawler

import (
	"fmt"
	"strings"
)

// NormalizeRecord maps a raw search result onto a BusinessRecord. Unknown or
// mistyped fields normalize to empty strings; nothing here rejects.
func NormalizeRecord(raw map[string]any, baseURL string) BusinessRecord {
	rec := BusinessRecord{
		BusinessName:  StripMarkup(stringField(raw, "businessName")),
		StreetAddress: strings.TrimSpace(stringField(raw, "address")),
		City:          strings.TrimSpace(stringField(raw, "city")),
		State:         strings.ToUpper(strings.TrimSpace(stringField(raw, "state"))),
		PostalCode:    strings.TrimSpace(stringField(raw, "postalcode")),
	}
	rec.Phone = firstListString(raw["phone"])
	rec.BusinessCategories = joinCategoryNames(raw["categories"])
	if ref := strings.TrimSpace(stringField(raw, "reportUrl")); ref != "" {
		rec.SourceURL = AbsolutizeURL(baseURL, ref)
	}
	return rec
}

// MatchesKeywords is the cheap pre-enrichment gate on the cleaned name.
func MatchesKeywords(rec BusinessRecord, keywords []string) bool {
	return ContainsKeyword(rec.BusinessName, keywords)
}

// Acceptable is the final gate, applied after enrichment: the name must match
// a keyword and the record needs a street address or an email. Nothing else
// is checked.
func Acceptable(rec BusinessRecord, keywords []string) error {
	if !ContainsKeyword(rec.BusinessName, keywords) {
		return fmt.Errorf("name %q matches no keyword: %w", rec.BusinessName, ErrValidation)
	}
	if rec.StreetAddress == "" && rec.Email == "" {
		return fmt.Errorf("record %q has neither address nor email: %w", rec.BusinessName, ErrValidation)
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// firstListString returns the first string of a JSON list, or the value
// itself when the payload flattened it to a plain string.
func firstListString(v any) string {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	case string:
		return strings.TrimSpace(t)
	}
	return ""
}

// joinCategoryNames joins the name fields of a category list with "; ".
func joinCategoryNames(v any) string {
	list, ok := v.([]any)
	if !ok {
		return ""
	}
	var names []string
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if name := strings.TrimSpace(stringField(entry, "name")); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, "; ")
}
