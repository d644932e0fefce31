package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildSearchURL(t *testing.T) {
	t.Parallel()

	target := Target{DisplayText: "Chicago, IL", City: "Chicago", State: "IL"}

	got := BuildSearchURL("https://www.bbb.org", "Roofing Contractors", "USA", target, 1)
	require.Equal(t,
		"https://www.bbb.org/search?find_text=Roofing+Contractors&find_entity=&find_type=&find_loc=Chicago%2C+IL&find_country=USA",
		got)

	got = BuildSearchURL("https://www.bbb.org/", "Roofing Contractors", "USA", target, 3)
	require.Equal(t,
		"https://www.bbb.org/search?find_text=Roofing+Contractors&find_entity=&find_type=&find_loc=Chicago%2C+IL&find_country=USA&page=3",
		got)
}

func TestBuildSearchURLEncodesLocationOnly(t *testing.T) {
	t.Parallel()

	target := Target{DisplayText: "Coeur d'Alene, ID"}
	got := BuildSearchURL("https://www.bbb.org", "Roofing Contractors", "USA", target, 1)
	require.Contains(t, got, "find_loc=Coeur+d%27Alene%2C+ID")
	require.NotContains(t, got, "Coeur d'Alene")
}

func TestAbsolutizeURL(t *testing.T) {
	t.Parallel()

	base := "https://www.bbb.org"
	require.Equal(t, "https://www.bbb.org/us/il/chicago/profile/roofing/x-1", AbsolutizeURL(base, "/us/il/chicago/profile/roofing/x-1"))
	require.Equal(t, "https://www.bbb.org/us/il/x", AbsolutizeURL(base, "us/il/x"))
	require.Equal(t, "https://other.example.com/p", AbsolutizeURL(base, "https://other.example.com/p"))
	require.Equal(t, "", AbsolutizeURL(base, "  "))
}

func TestParseTarget(t *testing.T) {
	t.Parallel()

	tgt, ok := ParseTarget("Chicago, IL")
	require.True(t, ok)
	require.Equal(t, "Chicago", tgt.City)
	require.Equal(t, "IL", tgt.State)
	require.Equal(t, "Chicago, IL", tgt.Key())

	tgt, ok = ParseTarget("Winston-Salem, NC")
	require.True(t, ok)
	require.Equal(t, "Winston-Salem", tgt.City)
	require.Equal(t, "NC", tgt.State)

	// The split is on the LAST separator.
	tgt, ok = ParseTarget("Washington, D.C., DC")
	require.True(t, ok)
	require.Equal(t, "Washington, D.C.", tgt.City)
	require.Equal(t, "DC", tgt.State)

	_, ok = ParseTarget("Chicago")
	require.False(t, ok)
	_, ok = ParseTarget(", IL")
	require.False(t, ok)
	_, ok = ParseTarget("")
	require.False(t, ok)
}

func TestSameHost(t *testing.T) {
	t.Parallel()

	require.True(t, SameHost("https://www.bbb.org", "https://www.bbb.org/us/il/chicago/profile/x"))
	require.True(t, SameHost("https://WWW.BBB.ORG", "https://www.bbb.org/p"))
	require.False(t, SameHost("https://www.bbb.org", "https://evil.example.com/p"))
}
