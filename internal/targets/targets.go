// Package targets loads the target list file and reports the entries a
// run could not serve.
package targets

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/crawler"
)

// Load reads a JSON array of "City, State" display strings and parses each
// entry into a Target, preserving file order. Entries that do not split
// into a city and state come back in invalid so the caller can report them
// instead of silently crawling a misshapen location.
func Load(path string) (list []crawler.Target, invalid []string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read targets file: %w", err)
	}
	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, nil, fmt.Errorf("parse targets file: %w", err)
	}
	for _, entry := range entries {
		target, ok := crawler.ParseTarget(entry)
		if !ok {
			invalid = append(invalid, entry)
			continue
		}
		list = append(list, target)
	}
	return list, invalid, nil
}

// Report accumulates the targets a run could not handle: entries the
// loader rejected plus targets whose crawl failed. Entries are deduped.
type Report struct {
	entries map[string]struct{}
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{entries: make(map[string]struct{})}
}

// Add records one unsupported display string. Blank strings are dropped.
func (r *Report) Add(displayText string) {
	if displayText == "" {
		return
	}
	r.entries[displayText] = struct{}{}
}

// AddAll records a batch of unsupported display strings.
func (r *Report) AddAll(displayTexts []string) {
	for _, text := range displayTexts {
		r.Add(text)
	}
}

// Count returns how many distinct entries the report holds.
func (r *Report) Count() int {
	return len(r.entries)
}

// Entries returns the unsupported display strings in sorted order.
func (r *Report) Entries() []string {
	out := make([]string, 0, len(r.entries))
	for entry := range r.entries {
		out = append(out, entry)
	}
	sort.Strings(out)
	return out
}

// Write renders the report as an indented JSON array at path. An empty
// report still writes "[]" so a fresh run overwrites a stale report.
func (r *Report) Write(path string) error {
	entries := r.Entries()
	if entries == nil {
		entries = []string{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode unsupported targets: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write unsupported targets: %w", err)
	}
	return nil
}
