package crawler

import "fmt"

// Defaults for the search itself. HTTP-level defaults (rate, retries,
// timeouts) live with the fetcher configuration.
const (
	DefaultBaseURL    = "https://www.bbb.org"
	DefaultSearchText = "Roofing Contractors"
	DefaultCountry    = "USA"
)

// DefaultKeywords gate business names; a record must contain at least one,
// case-insensitively, to survive validation.
var DefaultKeywords = []string{"roof", "roofing", "roofer", "exteriors"}

// Config holds the search-level knobs of a crawl.
type Config struct {
	BaseURL          string   `mapstructure:"base_url"`
	SearchText       string   `mapstructure:"search_text"`
	Country          string   `mapstructure:"country"`
	Keywords         []string `mapstructure:"keywords"`
	RecordsPerTarget int      `mapstructure:"records_per_target"`
	EnrichDetails    bool     `mapstructure:"enrich_details"`
}

// DefaultConfig returns a Config with the stock search parameters.
func DefaultConfig() Config {
	return Config{
		BaseURL:       DefaultBaseURL,
		SearchText:    DefaultSearchText,
		Country:       DefaultCountry,
		Keywords:      append([]string(nil), DefaultKeywords...),
		EnrichDetails: true,
	}
}

// Validate fails fast on unusable search parameters.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url must not be empty")
	}
	if c.SearchText == "" {
		return fmt.Errorf("search_text must not be empty")
	}
	if len(c.Keywords) == 0 {
		return fmt.Errorf("at least one keyword is required")
	}
	if c.RecordsPerTarget < 0 {
		return fmt.Errorf("records_per_target must be >= 0, got %d", c.RecordsPerTarget)
	}
	return nil
}
