package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	resp  FetchResponse
	err   error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, req FetchRequest) (FetchResponse, error) {
	f.calls = append(f.calls, req.URL)
	if f.err != nil {
		return FetchResponse{}, f.err
	}
	return f.resp, nil
}

const detailStateBody = `<html><body><script>window.__PRELOADED_STATE__ = {
  "businessProfile": {
    "dates": {"businessStarted": "1998-04-01", "incorporated": "1999-02-15"},
    "entityType": {"name": "Corporation"},
    "contactInformation": {
      "contacts": [
        {"isPrincipal": false, "name": {"first": "Pat", "last": "Intern"}},
        {"isPrincipal": true, "name": {"prefix": "Mr.", "first": "John", "last": "Doe", "suffix": "Jr."}}
      ],
      "emails": ["info__at__acmeroofing__dot__com"],
      "websites": ["https://acmeroofing.example", "https://acme-gutters.example"]
    },
    "phones": ["(312) 555-0100"]
  }
};</script></body></html>`

const detailLDBody = `<html><head>
<script type="application/ld+json">{
  "@context": "https://schema.org",
  "@type": "RoofingContractor",
  "name": "Acme Roofing Co",
  "telephone": "(312) 555-0199",
  "email": "sales[at]acme[dot]com",
  "url": "https://acmeroofing.example",
  "foundingDate": "2001-06-01"
}</script>
</head><body></body></html>`

func TestExtractDetailFieldsFromState(t *testing.T) {
	t.Parallel()

	root, err := ParseDetailPayload([]byte(detailStateBody))
	require.NoError(t, err)

	d := ExtractDetailFields(root)
	require.Equal(t, "1998-04-01", d.BusinessStarted)
	require.Equal(t, "1999-02-15", d.IncorporatedDate)
	require.Equal(t, "Corporation", d.EntityType)
	require.Equal(t, "Mr. John Doe Jr.", d.PrincipalContact)
	require.Equal(t, "info@acmeroofing.com", d.Email)
	require.Equal(t, "https://acmeroofing.example, https://acme-gutters.example", d.Website)
	require.Equal(t, "(312) 555-0100", d.Phone)
}

func TestExtractDetailFieldsFromStructuredData(t *testing.T) {
	t.Parallel()

	root, err := ParseDetailPayload([]byte(detailLDBody))
	require.NoError(t, err)

	d := ExtractDetailFields(root)
	require.Equal(t, "2001-06-01", d.BusinessStarted)
	require.Equal(t, "sales@acme.com", d.Email)
	require.Equal(t, "https://acmeroofing.example", d.Website)
	require.Equal(t, "(312) 555-0199", d.Phone)
	require.Equal(t, "", d.EntityType)
	require.Equal(t, "", d.PrincipalContact)
}

func TestParseDetailPayloadPrefersStructuredData(t *testing.T) {
	t.Parallel()

	// A page carrying both shapes resolves through the ld+json block.
	combined := detailLDBody + detailStateBody
	root, err := ParseDetailPayload([]byte(combined))
	require.NoError(t, err)
	d := ExtractDetailFields(root)
	require.Equal(t, "2001-06-01", d.BusinessStarted)

	_, err = ParseDetailPayload([]byte("<html><body>nothing</body></html>"))
	require.ErrorIs(t, err, ErrNoData)
}

func TestMergeDetailIsAdditive(t *testing.T) {
	t.Parallel()

	rec := BusinessRecord{
		BusinessName: "Acme Roofing Co",
		Phone:        "(312) 555-0100",
		Email:        "",
	}
	mergeDetail(&rec, DetailFields{
		Phone:           "(999) 999-9999",
		Email:           "info@acme.com",
		EntityType:      "Corporation",
		BusinessStarted: "1998-04-01",
	})
	require.Equal(t, "(312) 555-0100", rec.Phone, "populated phone must not be overwritten")
	require.Equal(t, "info@acme.com", rec.Email)
	require.Equal(t, "Corporation", rec.EntityType)
	require.Equal(t, "1998-04-01", rec.BusinessStarted)
}

func TestEnricherMergesDetailPage(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{resp: FetchResponse{StatusCode: 200, Body: []byte(detailStateBody)}}
	e := NewEnricher(f, "https://www.bbb.org", zap.NewNop())

	rec := BusinessRecord{
		BusinessName:  "Acme Roofing Co",
		StreetAddress: "123 Main St",
		SourceURL:     "https://www.bbb.org/us/il/chicago/profile/roofing/acme-1001",
	}
	e.Enrich(context.Background(), &rec)
	require.Equal(t, []string{"https://www.bbb.org/us/il/chicago/profile/roofing/acme-1001"}, f.calls)
	require.Equal(t, "Corporation", rec.EntityType)
	require.Equal(t, "info@acmeroofing.com", rec.Email)
	require.Equal(t, "Mr. John Doe Jr.", rec.PrincipalContact)
}

func TestEnricherNeverFailsCaller(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{err: errors.New("boom")}
	e := NewEnricher(f, "https://www.bbb.org", zap.NewNop())

	rec := BusinessRecord{BusinessName: "Acme Roofing Co", SourceURL: "https://www.bbb.org/p"}
	before := rec
	e.Enrich(context.Background(), &rec)
	require.Equal(t, before, rec)

	// Unparseable detail page: also a no-op.
	f2 := &fakeFetcher{resp: FetchResponse{StatusCode: 200, Body: []byte("<html></html>")}}
	e2 := NewEnricher(f2, "https://www.bbb.org", zap.NewNop())
	e2.Enrich(context.Background(), &rec)
	require.Equal(t, before, rec)
}

func TestEnricherSkipsOffHostAndEmptyURLs(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	e := NewEnricher(f, "https://www.bbb.org", zap.NewNop())

	rec := BusinessRecord{BusinessName: "Acme Roofing Co"}
	e.Enrich(context.Background(), &rec)

	rec.SourceURL = "https://evil.example.com/profile"
	e.Enrich(context.Background(), &rec)
	require.Empty(t, f.calls)
}
