package csvstore

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/crawler"
)

func sampleRecord(name string) crawler.BusinessRecord {
	return crawler.BusinessRecord{
		BusinessName:  name,
		StreetAddress: "123 Main St",
		City:          "Chicago",
		State:         "IL",
		PostalCode:    "60601",
		Phone:         "(312) 555-0100",
		EntityType:    "Corporation",
		SourceURL:     "https://www.bbb.org/us/il/chicago/profile/roofing-contractors/example-0654-1000",
	}
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestNewRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Path: "  "}, nil)
	require.Error(t, err)
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "businesses.csv")
	sink, err := New(Config{Path: path}, nil)
	require.NoError(t, err)

	require.NoError(t, sink.Append(context.Background(), sampleRecord("Acme Roofing")))
	require.NoError(t, sink.Append(context.Background(), sampleRecord("Peak Roofing")))
	require.NoError(t, sink.Close())

	// Reopening must append below the existing header, not rewrite it.
	sink2, err := New(Config{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, sink2.Append(context.Background(), sampleRecord("Summit Roofing")))
	require.NoError(t, sink2.Close())

	rows := readAll(t, path)
	require.Len(t, rows, 4)
	require.Equal(t, crawler.CSVColumns, rows[0])
	require.Equal(t, "Acme Roofing", rows[1][0])
	require.Equal(t, "Summit Roofing", rows[3][0])
}

func TestAppendFlushesEachRow(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "businesses.csv")
	sink, err := New(Config{Path: path}, nil)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Append(context.Background(), sampleRecord("Acme Roofing")))

	// The row is visible on disk before Close; a crash mid-run loses nothing.
	rows := readAll(t, path)
	require.Len(t, rows, 2)
	require.Equal(t, "Acme Roofing", rows[1][0])
}

func TestSeedRegistry(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "businesses.csv")
	sink, err := New(Config{Path: path}, nil)
	require.NoError(t, err)

	require.NoError(t, sink.Append(context.Background(), sampleRecord("Acme Roofing")))
	require.NoError(t, sink.Append(context.Background(), sampleRecord("ACME ROOFING")))
	require.NoError(t, sink.Append(context.Background(), sampleRecord("Peak Roofing")))
	require.NoError(t, sink.Close())

	registry := crawler.NewRegistry()
	seeded, err := sink.SeedRegistry(registry)
	require.NoError(t, err)
	require.Equal(t, 2, seeded)
	require.True(t, registry.Has(crawler.DedupKey("acme roofing")))
	require.True(t, registry.Has(crawler.DedupKey("Peak Roofing")))
}

func TestSeedRegistryMissingFile(t *testing.T) {
	t.Parallel()

	sink, err := New(Config{Path: filepath.Join(t.TempDir(), "absent.csv")}, nil)
	require.NoError(t, err)

	seeded, err := sink.SeedRegistry(crawler.NewRegistry())
	require.NoError(t, err)
	require.Zero(t, seeded)
}

func TestSeedRegistrySkipsBOM(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "businesses.csv")
	content := "\xEF\xBB\xBF" + strings.Join(crawler.CSVColumns, ",") + "\n" +
		"Acme Roofing,123 Main St,Chicago,IL,60601,,,,,,,,,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	sink, err := New(Config{Path: path}, nil)
	require.NoError(t, err)

	registry := crawler.NewRegistry()
	seeded, err := sink.SeedRegistry(registry)
	require.NoError(t, err)
	require.Equal(t, 1, seeded)
	require.True(t, registry.Has(crawler.DedupKey("Acme Roofing")))
}

func TestSeedRegistryRejectsForeignFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "other.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\n1,Acme\n"), 0o644))

	sink, err := New(Config{Path: path}, nil)
	require.NoError(t, err)

	_, err = sink.SeedRegistry(crawler.NewRegistry())
	require.ErrorContains(t, err, "business_name")
}

func TestArchive(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "businesses.csv")
	sink, err := New(Config{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, sink.Append(context.Background(), sampleRecord("Acme Roofing")))

	at := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	dest, err := sink.Archive(context.Background(), at)
	require.NoError(t, err)
	require.Equal(t, strings.TrimSuffix(path, ".csv")+".2025-06-01.csv", dest)
	require.Equal(t, dest, sink.LastArchive())

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
	rows := readAll(t, dest)
	require.Len(t, rows, 2)

	// A second archive on the same day keeps both files.
	require.NoError(t, sink.Append(context.Background(), sampleRecord("Peak Roofing")))
	dest2, err := sink.Archive(context.Background(), at)
	require.NoError(t, err)
	require.NotEqual(t, dest, dest2)
	require.Contains(t, dest2, "2025-06-01_103000")
}

func TestArchiveMissingFile(t *testing.T) {
	t.Parallel()

	sink, err := New(Config{Path: filepath.Join(t.TempDir(), "absent.csv")}, nil)
	require.NoError(t, err)

	dest, err := sink.Archive(context.Background(), time.Now())
	require.NoError(t, err)
	require.Empty(t, dest)
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	sink, err := New(Config{Path: filepath.Join(t.TempDir(), "businesses.csv")}, nil)
	require.NoError(t, err)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Append(context.Background(), sampleRecord("Acme Roofing")))
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
}

func TestReadRecordsRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "businesses.csv")
	sink, err := New(Config{Path: path}, nil)
	require.NoError(t, err)

	want := sampleRecord("Acme Roofing")
	want.Email = "info@acmeroofing.example"
	want.BusinessCategories = "Roofing Contractors|Gutters"
	require.NoError(t, sink.Append(context.Background(), want))
	require.NoError(t, sink.Close())

	records, err := ReadRecords(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, want, records[0])
}

func TestReadRecordsToleratesColumnOrder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reordered.csv")
	content := "phone,business_name,city\n(312) 555-0100,Acme Roofing,Chicago\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, err := ReadRecords(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Acme Roofing", records[0].BusinessName)
	require.Equal(t, "(312) 555-0100", records[0].Phone)
	require.Equal(t, "Chicago", records[0].City)
	require.Empty(t, records[0].State)
}

func TestReadRecordsMissingFile(t *testing.T) {
	t.Parallel()

	_, err := ReadRecords(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
}

func TestCheckColumnsCleanFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "businesses.csv")
	sink, err := New(Config{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, sink.Append(context.Background(), sampleRecord("Acme Roofing")))
	require.NoError(t, sink.Close())

	missing, extra, err := CheckColumns(path)
	require.NoError(t, err)
	require.Empty(t, missing)
	require.Empty(t, extra)
}

func TestCheckColumnsReportsDrift(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "drifted.csv")
	content := "business_name,city,rating\nAcme Roofing,Chicago,A+\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	missing, extra, err := CheckColumns(path)
	require.NoError(t, err)
	require.Contains(t, missing, "source_url")
	require.Contains(t, missing, "phone")
	require.NotContains(t, missing, "business_name")
	require.Equal(t, []string{"rating"}, extra)
}

func TestCheckColumnsEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	missing, extra, err := CheckColumns(path)
	require.NoError(t, err)
	require.Equal(t, crawler.CSVColumns, missing)
	require.Empty(t, extra)
}

func TestTouchCreatesHeaderOnlyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.csv")
	sink, err := New(Config{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, sink.Touch())
	require.NoError(t, sink.Close())

	rows := readAll(t, path)
	require.Len(t, rows, 1)
	require.Equal(t, crawler.CSVColumns, rows[0])
}
