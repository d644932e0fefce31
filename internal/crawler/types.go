// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"strings"
	"time"
)

// Target is a single search location, e.g. "Chicago, IL".
type Target struct {
	DisplayText string `json:"display_text"`
	City        string `json:"city"`
	State       string `json:"state"`
}

// Key returns the identifier recorded in the checkpoint for this target.
func (t Target) Key() string {
	return t.DisplayText
}

// ParseTarget splits a display string on its last ", " into city and state.
// The display text is kept verbatim; it is the checkpoint key.
func ParseTarget(displayText string) (Target, bool) {
	trimmed := strings.TrimSpace(displayText)
	idx := strings.LastIndex(trimmed, ", ")
	if idx <= 0 || idx+2 >= len(trimmed) {
		return Target{}, false
	}
	return Target{
		DisplayText: trimmed,
		City:        trimmed[:idx],
		State:       trimmed[idx+2:],
	}, true
}

// CSVColumns is the output schema, in order. The CSV header, the Postgres
// mirror, and the merge tool all derive from it.
var CSVColumns = []string{
	"business_name",
	"street_address",
	"city",
	"state",
	"postal_code",
	"phone",
	"email",
	"website",
	"entity_type",
	"business_started",
	"incorporated_date",
	"principal_contact",
	"business_categories",
	"source_url",
}

// BusinessRecord is one scraped listing, ready for persistence.
type BusinessRecord struct {
	BusinessName       string `json:"business_name"`
	StreetAddress      string `json:"street_address"`
	City               string `json:"city"`
	State              string `json:"state"`
	PostalCode         string `json:"postal_code"`
	Phone              string `json:"phone"`
	Email              string `json:"email"`
	Website            string `json:"website"`
	EntityType         string `json:"entity_type"`
	BusinessStarted    string `json:"business_started"`
	IncorporatedDate   string `json:"incorporated_date"`
	PrincipalContact   string `json:"principal_contact"`
	BusinessCategories string `json:"business_categories"`
	SourceURL          string `json:"source_url"`
}

// CSVRow returns the record's fields in CSVColumns order.
func (r BusinessRecord) CSVRow() []string {
	return []string{
		r.BusinessName,
		r.StreetAddress,
		r.City,
		r.State,
		r.PostalCode,
		r.Phone,
		r.Email,
		r.Website,
		r.EntityType,
		r.BusinessStarted,
		r.IncorporatedDate,
		r.PrincipalContact,
		r.BusinessCategories,
		r.SourceURL,
	}
}

// DedupKey is the lower-cased trimmed business name used by both registries.
func (r BusinessRecord) DedupKey() string {
	return DedupKey(r.BusinessName)
}

// DedupKey normalizes a business name into a registry key.
func DedupKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FetchRequest captures everything needed to fetch a page.
type FetchRequest struct {
	URL     string
	Referer string
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Rendered   bool
	Attempts   int
}

// SearchPage is the parsed content of one listing page.
type SearchPage struct {
	Records    []map[string]any
	TotalPages int
}

// TargetStatus is the terminal state of a processed target.
type TargetStatus string

// Target status values recorded in results and progress events.
const (
	TargetDone   TargetStatus = "done"
	TargetFailed TargetStatus = "failed"
)

// TargetResult summarizes one target's crawl.
type TargetResult struct {
	Target     Target
	Status     TargetStatus
	Pages      int
	Found      int
	Accepted   int
	Rejected   int
	Duplicates int
	Enriched   int
	Err        error
}

// WorkItem is one queued target together with its position in the run.
type WorkItem struct {
	Target Target
	Index  int
	Total  int
}
