package csvstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/crawler"
)

// CheckColumns reads the file's header and reports columns missing from and
// extra to the output schema. A clean file returns two empty slices.
func CheckColumns(path string) (missing, extra []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(skipBOM(f))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return append([]string(nil), crawler.CSVColumns...), nil, nil
		}
		return nil, nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	have := make(map[string]struct{}, len(header))
	for _, col := range header {
		have[strings.TrimSpace(col)] = struct{}{}
	}
	want := make(map[string]struct{}, len(crawler.CSVColumns))
	for _, col := range crawler.CSVColumns {
		want[col] = struct{}{}
		if _, ok := have[col]; !ok {
			missing = append(missing, col)
		}
	}
	for _, col := range header {
		if _, ok := want[strings.TrimSpace(col)]; !ok {
			extra = append(extra, strings.TrimSpace(col))
		}
	}
	return missing, extra, nil
}

// ReadRecords loads every record from a CSV output file, resolving fields by
// header name so a file with reordered or extra columns still reads cleanly.
func ReadRecords(path string) ([]crawler.BusinessRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(skipBOM(f))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(col)] = i
	}
	if _, ok := idx["business_name"]; !ok {
		return nil, fmt.Errorf("%s has no business_name column", path)
	}

	field := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []crawler.BusinessRecord
	for {
		row, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row of %s: %w", path, err)
		}
		records = append(records, crawler.BusinessRecord{
			BusinessName:       field(row, "business_name"),
			StreetAddress:      field(row, "street_address"),
			City:               field(row, "city"),
			State:              field(row, "state"),
			PostalCode:         field(row, "postal_code"),
			Phone:              field(row, "phone"),
			Email:              field(row, "email"),
			Website:            field(row, "website"),
			EntityType:         field(row, "entity_type"),
			BusinessStarted:    field(row, "business_started"),
			IncorporatedDate:   field(row, "incorporated_date"),
			PrincipalContact:   field(row, "principal_contact"),
			BusinessCategories: field(row, "business_categories"),
			SourceURL:          field(row, "source_url"),
		})
	}
	return records, nil
}
