package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Enricher fills secondary fields from a business's detail page. It shares
// the crawl's fetcher, so detail requests ride the same global rate limit.
// Enrich never fails the caller: on any error the record is left unchanged.
type Enricher struct {
	fetcher Fetcher
	baseURL string
	logger  *zap.Logger
}

// NewEnricher wires the shared fetcher.
func NewEnricher(fetcher Fetcher, baseURL string, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{fetcher: fetcher, baseURL: baseURL, logger: logger}
}

// Enrich fetches the record's detail page and merges what it finds,
// additively. Only report links on the origin host are followed.
func (e *Enricher) Enrich(ctx context.Context, rec *BusinessRecord) {
	if rec.SourceURL == "" || !SameHost(e.baseURL, rec.SourceURL) {
		return
	}
	resp, err := e.fetcher.Fetch(ctx, FetchRequest{URL: rec.SourceURL})
	if err != nil {
		e.logger.Debug("detail fetch failed",
			zap.String("business", rec.BusinessName),
			zap.String("url", rec.SourceURL),
			zap.Error(err))
		return
	}
	root, err := ParseDetailPayload(resp.Body)
	if err != nil {
		e.logger.Debug("detail payload unusable",
			zap.String("business", rec.BusinessName),
			zap.Error(err))
		return
	}
	mergeDetail(rec, ExtractDetailFields(root))
}

// ParseDetailPayload decodes the machine-readable data on a detail page.
// A structured-data (ld+json) block is preferred; a second inline
// preloaded-state assignment is the fallback.
func ParseDetailPayload(body []byte) (any, error) {
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		var parsed any
		doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			var v any
			if json.Unmarshal([]byte(sel.Text()), &v) == nil && v != nil {
				parsed = v
				return false
			}
			return true
		})
		if parsed != nil {
			return parsed, nil
		}
	}
	return ExtractEmbeddedState(body)
}

// DetailFields is everything the enricher can pull from a detail page.
type DetailFields struct {
	BusinessStarted  string
	IncorporatedDate string
	EntityType       string
	PrincipalContact string
	Email            string
	Website          string
	Phone            string
}

// ExtractDetailFields walks the parsed payload for the known field groups.
// Both the inline state's vocabulary and schema.org's are understood; each
// group takes its first match and missing groups stay empty.
func ExtractDetailFields(root any) DetailFields {
	var d DetailFields

	if dates, ok := findObject(root, "dates"); ok {
		d.BusinessStarted = findString(dates, "businessStarted", "startDate", "started")
		d.IncorporatedDate = findString(dates, "incorporated", "incorporatedDate")
	}
	if d.BusinessStarted == "" {
		d.BusinessStarted = findString(root, "foundingDate")
	}

	if entity, ok := findByKey(root, "entityType", 0); ok {
		switch t := entity.(type) {
		case string:
			d.EntityType = strings.TrimSpace(t)
		case map[string]any:
			d.EntityType = strings.TrimSpace(stringField(t, "name"))
		}
	}

	d.PrincipalContact = principalContact(root)
	d.Email = DeobfuscateEmail(contactEmail(root))
	d.Website = contactWebsites(root)
	d.Phone = findString(root, "phones", "phone", "telephone")

	return d
}

// principalContact locates the contact entry flagged as principal and
// assembles the display name from its ordered name parts.
func principalContact(root any) string {
	contacts, ok := findList(root, "contacts")
	if !ok {
		return ""
	}
	for _, item := range contacts {
		entry, ok := item.(map[string]any)
		if !ok || !isPrincipal(entry) {
			continue
		}
		if name := contactName(entry); name != "" {
			return name
		}
	}
	return ""
}

func isPrincipal(entry map[string]any) bool {
	if b, ok := entry["isPrincipal"].(bool); ok && b {
		return true
	}
	if roles, ok := entry["roles"].([]any); ok {
		for _, r := range roles {
			if s, ok := r.(string); ok && strings.Contains(strings.ToLower(s), "principal") {
				return true
			}
		}
	}
	return false
}

// contactName joins prefix/first/middle/last/suffix, skipping empties.
func contactName(entry map[string]any) string {
	name, ok := entry["name"].(map[string]any)
	if !ok {
		if s, ok := entry["name"].(string); ok {
			return CollapseSpaces(s)
		}
		return ""
	}
	var parts []string
	for _, key := range []string{"prefix", "first", "middle", "last", "suffix"} {
		if p := strings.TrimSpace(stringField(name, key)); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func contactEmail(root any) string {
	if list, ok := findList(root, "emails"); ok {
		for _, item := range list {
			switch t := item.(type) {
			case string:
				if strings.TrimSpace(t) != "" {
					return strings.TrimSpace(t)
				}
			case map[string]any:
				if s := strings.TrimSpace(stringField(t, "email")); s != "" {
					return s
				}
				if s := strings.TrimSpace(stringField(t, "address")); s != "" {
					return s
				}
			}
		}
	}
	return findString(root, "email", "emailAddress")
}

func contactWebsites(root any) string {
	if list, ok := findList(root, "websites"); ok {
		var sites []string
		for _, item := range list {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				sites = append(sites, strings.TrimSpace(s))
			}
		}
		if len(sites) > 0 {
			return strings.Join(sites, ", ")
		}
	}
	return findString(root, "website", "url")
}

// mergeDetail applies the additive merge: a fetched value lands only in an
// empty field. Phone is the documented fallback, used only when the search
// listing carried none.
func mergeDetail(rec *BusinessRecord, d DetailFields) {
	if rec.BusinessStarted == "" {
		rec.BusinessStarted = d.BusinessStarted
	}
	if rec.IncorporatedDate == "" {
		rec.IncorporatedDate = d.IncorporatedDate
	}
	if rec.EntityType == "" {
		rec.EntityType = d.EntityType
	}
	if rec.PrincipalContact == "" {
		rec.PrincipalContact = d.PrincipalContact
	}
	if rec.Email == "" {
		rec.Email = d.Email
	}
	if rec.Website == "" {
		rec.Website = d.Website
	}
	if rec.Phone == "" {
		rec.Phone = d.Phone
	}
}
