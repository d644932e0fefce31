package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildSearchURL returns the listing URL for a target and 1-based page. Page 1
// is the bare template; later pages append the page parameter.
func BuildSearchURL(base, searchText, country string, target Target, page int) string {
	u := fmt.Sprintf("%s/search?find_text=%s&find_entity=&find_type=&find_loc=%s&find_country=%s",
		strings.TrimRight(base, "/"),
		url.QueryEscape(searchText),
		url.QueryEscape(target.DisplayText),
		url.QueryEscape(country),
	)
	if page > 1 {
		u += fmt.Sprintf("&page=%d", page)
	}
	return u
}

// AbsolutizeURL prefixes relative report links with the site base.
func AbsolutizeURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "http") {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return strings.TrimRight(base, "/") + ref
}

// SameHost reports whether a candidate URL points at the configured base's
// host; enrichment only follows report links on the origin site.
func SameHost(base, candidate string) bool {
	bu, err := url.Parse(base)
	if err != nil {
		return false
	}
	cu, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return strings.EqualFold(bu.Hostname(), cu.Hostname())
}
