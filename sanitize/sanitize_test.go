package sanitize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cleanReport = `{
  "current_role": "Professor of Microbiology",
  "previous_roles": ["Postdoc, MIT"],
  "organisms": [{"name": "E. coli K-12", "risk_level": "low"}],
  "biosafety_level": "BSL-1",
  "references": [
    {"source": "University site", "url": "https://example.edu/smith", "quote": "leads the microbiology lab"}
  ],
  "summary": "Established academic researcher, low risk.",
  "timestamp": "2026-08-24T10:00:00Z"
}`

func TestExtract_FencedWithProse(t *testing.T) {
	s := New("current_role", "summary")
	raw := "Here is my assessment of the customer:\n```json\n" + cleanReport + "\n```\nLet me know if you need more detail."

	rec, err := s.Extract(raw)
	require.NoError(t, err)

	var role string
	ok, err := rec.Field("current_role", &role)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Professor of Microbiology", role)
	assert.Empty(t, rec.MissingFields)
	require.Len(t, rec.References, 1)
	assert.Equal(t, "https://example.edu/smith", rec.References[0].URL)
}

func TestExtract_UnfencedWithProse(t *testing.T) {
	s := New()
	rec, err := s.Extract(`Here is the result: {"summary": "ok", "references": []} Thanks`)
	require.NoError(t, err)

	var sum string
	ok, err := rec.Field("summary", &sum)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ok", sum)
	assert.Empty(t, rec.References)
}

func TestExtract_DropsURLlessReferences(t *testing.T) {
	s := New()
	rec, err := s.Extract(`{
  "references": [
    {"source": "Hearsay", "url": "", "quote": "uncheckable"},
    {"source": "Real", "url": "https://real.example/x", "quote": "checkable"}
  ]
}`)
	require.NoError(t, err)
	require.Len(t, rec.References, 1)
	assert.Equal(t, "Real", rec.References[0].Source)
}

func TestExtract_RepairsLightDamage(t *testing.T) {
	s := New()
	raw := "```json\n" + `{
  "summary": "Looks fine",
  "organisms": [
    {"name": "yeast", "risk_level": "low"},
  ],
  "note": ` + "“quoted”" + `,
}` + "\n```"

	rec, err := s.Extract(raw)
	require.NoError(t, err)
	var note string
	ok, err := rec.Field("note", &note)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "quoted", note)
}

func TestExtract_NoPayload(t *testing.T) {
	s := New()
	_, err := s.Extract("I could not find any information about this customer.")
	require.Error(t, err)
	var xerr *ExtractionError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, KindNoPayload, xerr.Kind)
	assert.Contains(t, xerr.Raw, "could not find")
}

func TestExtract_MalformedBeyondRepair(t *testing.T) {
	s := New()
	_, err := s.Extract(`{"summary": "broken" "no_comma": true}`)
	require.Error(t, err)
	var xerr *ExtractionError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, KindMalformed, xerr.Kind)
	assert.NotEmpty(t, xerr.Raw)
}

func TestExtract_Idempotent(t *testing.T) {
	s := New("current_role", "summary")
	rec, err := s.Extract(cleanReport)
	require.NoError(t, err)

	// Serialize the extracted fields and run extraction again.
	again, err := json.Marshal(rec.Fields)
	require.NoError(t, err)
	rec2, err := s.Extract(string(again))
	require.NoError(t, err)

	assert.Equal(t, rec.MissingFields, rec2.MissingFields)
	assert.Equal(t, rec.References, rec2.References)
	for key := range rec.Fields {
		assert.JSONEq(t, string(rec.Fields[key]), string(rec2.Fields[key]), key)
	}
}

func TestExtract_MissingRequiredFields(t *testing.T) {
	s := New("current_role", "summary", "timestamp")
	rec, err := s.Extract(`{"summary": "partial answer", "timestamp": null}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"current_role", "timestamp"}, rec.MissingFields)
}

func TestExtract_NestedReferencesDeduped(t *testing.T) {
	s := New()
	raw := `{
  "references": [
    {"source": "A", "url": "https://a.example/1", "quote": "first"},
    {"source": "A-dup", "url": "https://a.example/1", "quote": "first again"}
  ],
  "findings": {
    "employment": {
      "evidence": [
        {"source": "B", "url": "https://b.example/2", "quote": "second"},
        {"source": "A-nested", "url": "https://a.example/1", "quote": "copied"}
      ]
    }
  }
}`
	rec, err := s.Extract(raw)
	require.NoError(t, err)
	require.Len(t, rec.References, 2)
	// Canonical references win the dedup; first-seen order is preserved.
	assert.Equal(t, "A", rec.References[0].Source)
	assert.Equal(t, "B", rec.References[1].Source)
}

func TestExtract_SiblingReferencesUnderObjectKeys(t *testing.T) {
	s := New()
	raw := `{
  "findings": {
    "employment": {"source": "A", "url": "https://one.example", "quote": "one"},
    "publications": {"source": "B", "url": "https://two.example", "quote": "two"},
    "affiliations": {"source": "C", "url": "https://three.example", "quote": "three"},
    "sanctions": {"source": "D", "url": "https://four.example", "quote": "four"}
  }
}`

	rec, err := s.Extract(raw)
	require.NoError(t, err)
	require.Len(t, rec.References, 4)

	urls := make([]string, len(rec.References))
	for i, ref := range rec.References {
		urls[i] = ref.URL
	}
	// Map-backed siblings are walked in sorted key order, so the order is
	// stable across runs.
	assert.Equal(t, []string{
		"https://three.example",
		"https://one.example",
		"https://two.example",
		"https://four.example",
	}, urls)

	for i := 0; i < 25; i++ {
		again, err := s.Extract(raw)
		require.NoError(t, err)
		assert.Equal(t, rec.References, again.References)
	}
}

func TestExtract_BracesInsideStrings(t *testing.T) {
	s := New()
	rec, err := s.Extract(`prefix {"summary": "uses {braces} and \"quotes\" inside"} suffix`)
	require.NoError(t, err)
	var sum string
	ok, err := rec.Field("summary", &sum)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `uses {braces} and "quotes" inside`, sum)
}

func TestVerifyQuotes(t *testing.T) {
	rec := &Record{
		References: []Reference{
			{Source: "A", URL: "https://a", Quote: "leads the   Microbiology lab"},
			{Source: "B", URL: "https://b", Quote: "never appeared anywhere"},
			{Source: "C", URL: "https://c", Quote: ""},
		},
	}
	outputs := []string{`{"content": "Dr. Smith leads the microbiology lab at the university."}`}
	VerifyQuotes(rec, outputs)

	assert.True(t, rec.References[0].Verified, "whitespace and case differences must not block a match")
	assert.False(t, rec.References[1].Verified)
	assert.False(t, rec.References[2].Verified)
}
