package targets

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTargets(t *testing.T, entries []string) string {
	t.Helper()
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "targets.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadParsesEntriesInOrder(t *testing.T) {
	t.Parallel()

	path := writeTargets(t, []string{"Chicago, IL", "Aurora, IL", "Green Bay, WI"})

	list, invalid, err := Load(path)
	require.NoError(t, err)
	require.Empty(t, invalid)
	require.Len(t, list, 3)
	require.Equal(t, "Chicago", list[0].City)
	require.Equal(t, "IL", list[0].State)
	require.Equal(t, "Green Bay, WI", list[2].Key())
	require.Equal(t, "Green Bay", list[2].City)
}

func TestLoadCollectsInvalidEntries(t *testing.T) {
	t.Parallel()

	path := writeTargets(t, []string{"Chicago, IL", "Springfield", "", "Aurora, IL"})

	list, invalid, err := Load(path)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, []string{"Springfield", ""}, invalid)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, _, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.ErrorContains(t, err, "read targets file")
}

func TestLoadRejectsNonArray(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "targets.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"city": "Chicago"}`), 0o600))

	_, _, err := Load(path)
	require.ErrorContains(t, err, "parse targets file")
}

func TestReportDedupsAndSorts(t *testing.T) {
	t.Parallel()

	report := NewReport()
	report.Add("Springfield")
	report.Add("Naperville, IL")
	report.AddAll([]string{"Springfield", "", "Aurora, IL"})

	require.Equal(t, 3, report.Count())
	require.Equal(t, []string{"Aurora, IL", "Naperville, IL", "Springfield"}, report.Entries())
}

func TestReportWriteRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "unsupported_targets.json")
	report := NewReport()
	report.Add("Springfield")
	report.Add("Gotham")
	require.NoError(t, report.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []string
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Equal(t, []string{"Gotham", "Springfield"}, entries)
}

func TestReportWriteEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "unsupported_targets.json")
	require.NoError(t, NewReport().Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, "[]", string(data))
}
