package fieldmap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newTestMapper(t *testing.T) Mapper {
	t.Helper()
	return NewMapper(DefaultConfig(), nil)
}

func dateEntity(label, iso, source string) docs.ExtractedEntity {
	d, _ := time.Parse("2006-01-02", iso)
	return docs.ExtractedEntity{
		Kind:         docs.KindDate,
		Value:        iso,
		Date:         &d,
		ContextLabel: label,
		SourceText:   source,
	}
}

func amountEntity(label, value string, amount float64) docs.ExtractedEntity {
	return docs.ExtractedEntity{
		Kind:         docs.KindAmount,
		Value:        value,
		Amount:       amount,
		ContextLabel: label,
		SourceText:   "$" + value,
	}
}

func partyEntity(label, name string) docs.ExtractedEntity {
	return docs.ExtractedEntity{
		Kind:         docs.KindParty,
		Value:        name,
		ContextLabel: label,
		SourceText:   name,
	}
}

// ---------------------------------------------------------------------------
// Arena shape
// ---------------------------------------------------------------------------

func TestMapFields_EveryRegistryFieldPresent(t *testing.T) {
	fe := newTestMapper(t).MapFields(nil, docs.Classification{}, "")

	require.Len(t, fe.Fields, len(fieldRegistry))
	for _, spec := range fieldRegistry {
		f, ok := fe.Fields[spec.name]
		require.True(t, ok, "missing field %q", spec.name)
		assert.Equal(t, docs.TierEmpty, f.Tier)
		assert.True(t, f.NeedsReview)
	}
	assert.Equal(t, fieldSetVersion, fe.FieldSetVersion)
	assert.Zero(t, fe.OverallConfidence)
	assert.Equal(t, len(fieldRegistry), fe.FieldsNeedingReview)
}

func TestMapFields_EmptyValueInvariant(t *testing.T) {
	entities := []docs.ExtractedEntity{
		dateEntity("Hearing Date", "2025-03-03", "03/03/2025"),
		amountEntity("Monthly Rent", "1200.00", 1200),
	}
	fe := newTestMapper(t).MapFields(entities, docs.Classification{}, "")

	for name, f := range fe.Fields {
		if f.Value == "" {
			assert.Equal(t, docs.TierEmpty, f.Tier, "field %q", name)
			assert.True(t, f.NeedsReview, "field %q", name)
		}
	}
}

func TestMapFields_Idempotent(t *testing.T) {
	entities := []docs.ExtractedEntity{
		partyEntity("Plaintiff", "ABC Properties LLC"),
		partyEntity("Defendant", "John Q. Tenant"),
		dateEntity("Summons Date", "2025-01-01", "01/01/2025"),
		amountEntity("Total Claimed", "3450.00", 3450),
		{Kind: docs.KindCaseNumber, Value: "27-CV-25-3456", ContextLabel: "Case Number", SourceText: "27-CV-25-3456"},
	}
	cls := docs.Classification{Type: docs.TypeSummons, Category: docs.CategoryCourt, Confidence: 0.9}

	m := newTestMapper(t)
	first := m.MapFields(entities, cls, "STATE OF MINNESOTA")
	second := m.MapFields(entities, cls, "STATE OF MINNESOTA")
	assert.Equal(t, first, second)
}

// ---------------------------------------------------------------------------
// Selection rules
// ---------------------------------------------------------------------------

func TestMapFields_FirstWinsRestBecomeAlternatives(t *testing.T) {
	entities := []docs.ExtractedEntity{
		amountEntity("Monthly Rent", "1200.00", 1200),
		amountEntity("Monthly Rent", "1350.00", 1350),
	}
	fe := newTestMapper(t).MapFields(entities, docs.Classification{}, "")

	rent := fe.Fields["monthly_rent"]
	assert.Equal(t, "1200.00", rent.Value)
	assert.Equal(t, []string{"1350.00"}, rent.Alternatives)
	assert.True(t, rent.NeedsReview)
	assert.Equal(t, "multiple candidates found", rent.ReviewReason)
}

func TestMapFields_LabelRuleOrderBeatsDocumentOrder(t *testing.T) {
	entities := []docs.ExtractedEntity{
		partyEntity("Defendant", "John Doe"),
		partyEntity("Tenant", "Jane Roe"),
	}
	fe := newTestMapper(t).MapFields(entities, docs.Classification{}, "")

	assert.Equal(t, "Jane Roe", fe.Fields["tenant_name"].Value)
	assert.Equal(t, "John Doe", fe.Fields["defendant_name"].Value)
}

func TestMapFields_CaseNumberIsHighAndClean(t *testing.T) {
	entities := []docs.ExtractedEntity{
		{Kind: docs.KindCaseNumber, Value: "27-CV-25-3456", ContextLabel: "Case Number", SourceText: "27-CV-25-3456"},
	}
	fe := newTestMapper(t).MapFields(entities, docs.Classification{}, "")

	num := fe.Fields["case_number"]
	assert.Equal(t, "27-CV-25-3456", num.Value)
	assert.Equal(t, docs.TierHigh, num.Tier)
	assert.False(t, num.NeedsReview)
}

func TestMapFields_AssumedStateAddressIsLow(t *testing.T) {
	entities := []docs.ExtractedEntity{
		{Kind: docs.KindAddress, Value: "789 Elm Street, Minneapolis, MN 55412", ContextLabel: "Address (state assumed)"},
	}
	fe := newTestMapper(t).MapFields(entities, docs.Classification{}, "")

	addr := fe.Fields["property_address"]
	assert.Equal(t, docs.TierLow, addr.Tier)
	assert.True(t, addr.NeedsReview)
}

func TestMapFields_IsoSourceDateIsHigh(t *testing.T) {
	entities := []docs.ExtractedEntity{
		dateEntity("Hearing Date", "2025-03-03", "2025-03-03"),
	}
	fe := newTestMapper(t).MapFields(entities, docs.Classification{}, "")

	hearing := fe.Fields["hearing_date"]
	assert.Equal(t, docs.TierHigh, hearing.Tier)
	assert.False(t, hearing.NeedsReview)
}

func TestMapFields_FallbackLabelsAreGuesses(t *testing.T) {
	entities := []docs.ExtractedEntity{
		dateEntity("Date", "2025-07-04", "07/04/2025"),
		amountEntity("Amount", "75.00", 75),
	}
	fe := newTestMapper(t).MapFields(entities, docs.Classification{}, "")

	assert.Equal(t, docs.TierGuess, fe.Fields["document_date"].Tier)
	assert.Equal(t, docs.TierGuess, fe.Fields["other_amount"].Tier)
}

func TestMapFields_StatutesCollectAlternatives(t *testing.T) {
	entities := []docs.ExtractedEntity{
		{Kind: docs.KindStatute, Value: "Minn. Stat. § 504B.291", ContextLabel: "Statute"},
		{Kind: docs.KindStatute, Value: "Minn. Stat. § 504B.135", ContextLabel: "Statute"},
	}
	fe := newTestMapper(t).MapFields(entities, docs.Classification{}, "")

	statutes := fe.Fields["statutes"]
	assert.Equal(t, "Minn. Stat. § 504B.291", statutes.Value)
	assert.Equal(t, []string{"Minn. Stat. § 504B.135"}, statutes.Alternatives)
}

// ---------------------------------------------------------------------------
// Derivation
// ---------------------------------------------------------------------------

func TestMapFields_DerivesAnswerDeadline(t *testing.T) {
	entities := []docs.ExtractedEntity{
		dateEntity("Summons Date", "2025-01-01", "01/01/2025"),
	}
	fe := newTestMapper(t).MapFields(entities, docs.Classification{Type: docs.TypeSummons}, "")

	deadline := fe.Fields["answer_deadline"]
	assert.Equal(t, "2025-01-08", deadline.Value)
	assert.Equal(t, docs.TierLow, deadline.Tier)
	assert.Equal(t, string(sourceDerived), deadline.Source)
	assert.True(t, deadline.NeedsReview)
	assert.Contains(t, deadline.ReviewReason, "derived from summons date")
}

func TestMapFields_DerivationNeverOverridesExplicitDeadline(t *testing.T) {
	entities := []docs.ExtractedEntity{
		dateEntity("Summons Date", "2025-01-01", "01/01/2025"),
		dateEntity("Deadline", "2025-01-21", "01/21/2025"),
	}
	fe := newTestMapper(t).MapFields(entities, docs.Classification{}, "")

	deadline := fe.Fields["answer_deadline"]
	assert.Equal(t, "2025-01-21", deadline.Value)
	assert.Equal(t, string(sourceEntity), deadline.Source)
}

// ---------------------------------------------------------------------------
// Text and classification sources
// ---------------------------------------------------------------------------

func TestMapFields_TextBackedFields(t *testing.T) {
	rawText := "STATE OF MINNESOTA\nHENNEPIN COUNTY DISTRICT COURT\n" +
		"Before Judge Marion Blake\n" +
		"Questions: call (612) 555-0192 or write to office@sunriseapts.com\n"
	fe := newTestMapper(t).MapFields(nil, docs.Classification{}, rawText)

	assert.Equal(t, "HENNEPIN COUNTY DISTRICT COURT", fe.Fields["court_name"].Value)
	assert.Equal(t, "HENNEPIN", fe.Fields["county"].Value)
	assert.Equal(t, "Marion Blake", fe.Fields["judge_name"].Value)
	assert.Equal(t, "(612) 555-0192", fe.Fields["contact_phone"].Value)
	assert.Equal(t, "office@sunriseapts.com", fe.Fields["contact_email"].Value)
}

func TestMapFields_DocumentTypeMirrorsClassification(t *testing.T) {
	m := newTestMapper(t)

	fe := m.MapFields(nil, docs.Classification{Type: docs.TypeSummons, Confidence: 0.85}, "")
	dt := fe.Fields["document_type"]
	assert.Equal(t, docs.TypeSummons.DisplayName(), dt.Value)
	assert.Equal(t, docs.TierHigh, dt.Tier)

	fe = m.MapFields(nil, docs.Classification{Type: docs.TypeLetter, Confidence: 0.45}, "")
	assert.Equal(t, docs.TierMedium, fe.Fields["document_type"].Tier)

	fe = m.MapFields(nil, docs.UnknownClassification(), "")
	assert.True(t, fe.Fields["document_type"].IsEmpty())
}

// ---------------------------------------------------------------------------
// Aggregate figures
// ---------------------------------------------------------------------------

func TestMapFields_OverallConfidenceIsMeanOverRegistry(t *testing.T) {
	entities := []docs.ExtractedEntity{
		{Kind: docs.KindCaseNumber, Value: "27-CV-25-3456", ContextLabel: "Case Number"},
	}
	fe := newTestMapper(t).MapFields(entities, docs.Classification{}, "")

	want := docs.TierHigh.Weight() / float64(len(fieldRegistry))
	assert.InDelta(t, want, fe.OverallConfidence, 1e-9)
	assert.Equal(t, len(fieldRegistry)-1, fe.FieldsNeedingReview)
}
