package crawler

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// obfuscationWrapper matches the "!~...!" envelopes BBB wraps around
// scrambled contact fields.
var obfuscationWrapper = regexp.MustCompile(`!~.*?!`)

// emailDecoder undoes the textual at/dot substitutions.
var emailDecoder = strings.NewReplacer(
	"__at__", "@",
	"__dot__", ".",
	"[at]", "@",
	"(at)", "@",
	"[dot]", ".",
	"(dot)", ".",
)

// CollapseSpaces squeezes whitespace runs to single spaces and trims.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StripMarkup removes HTML tags from a fragment (listing names arrive with
// highlight markup like <em>Roofing</em>) and collapses the whitespace left
// behind.
func StripMarkup(s string) string {
	if !strings.Contains(s, "<") {
		return CollapseSpaces(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return CollapseSpaces(s)
	}
	return CollapseSpaces(doc.Text())
}

// ContainsKeyword reports whether the name contains any keyword,
// case-insensitively.
func ContainsKeyword(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DeobfuscateEmail decodes the obfuscation patterns seen in detail payloads.
// Already-plain addresses pass through unchanged.
func DeobfuscateEmail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = obfuscationWrapper.ReplaceAllString(s, "")
	return strings.TrimSpace(emailDecoder.Replace(s))
}
