package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newTestExtractor(t *testing.T) *extractorImpl {
	t.Helper()
	ex := NewExtractor(DefaultConfig(), logging.NewNopLogger())
	impl, ok := ex.(*extractorImpl)
	require.True(t, ok)
	return impl
}

func ofKind(entities []docs.ExtractedEntity, kind docs.EntityKind) []docs.ExtractedEntity {
	var out []docs.ExtractedEntity
	for _, e := range entities {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func findEntity(entities []docs.ExtractedEntity, kind docs.EntityKind, value string) (docs.ExtractedEntity, bool) {
	for _, e := range entities {
		if e.Kind == kind && e.Value == value {
			return e, true
		}
	}
	return docs.ExtractedEntity{}, false
}

// ---------------------------------------------------------------------------
// Orchestration
// ---------------------------------------------------------------------------

func TestExtractEntities_EmptyInput(t *testing.T) {
	ex := newTestExtractor(t)

	assert.Empty(t, ex.ExtractEntities(""))
	assert.Empty(t, ex.ExtractEntities("   \n\t  "))
}

func TestExtractEntities_NeverPanics(t *testing.T) {
	ex := newTestExtractor(t)

	inputs := []string{
		"13/45/9999",
		"$$$$ ,,,, ----",
		"\x00\x01\x02 binary junk \xff",
		strings.Repeat("1/1/2025 $100 ", 5000),
		"Арендатор должен освободить помещение",
		"§§§ v. v. v. Case No: Case No:",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { ex.ExtractEntities(in) })
	}
}

func TestExtractEntities_OffsetsMatchSource(t *testing.T) {
	ex := newTestExtractor(t)

	text := "LANDLORD: Maplewood Properties LLC\n" +
		"TENANT: John Q. Tenant\n" +
		"PREMISES: 123 Main Street, Minneapolis, MN 55401\n" +
		"Monthly rent of $1,200.00 is due on 01/01/2025.\n" +
		"Deposit held per Minn. Stat. § 504B.178.\n" +
		"Court file 27-CV-25-3456.\n"

	entities := ex.ExtractEntities(text)
	require.NotEmpty(t, entities)
	for _, e := range entities {
		require.LessOrEqual(t, e.Start, e.End)
		require.LessOrEqual(t, e.End, len(text))
		assert.Equal(t, text[e.Start:e.End], e.SourceText, "entity %s %q", e.Kind, e.Value)
	}
}

func TestExtractEntities_AllKindsFromComposite(t *testing.T) {
	ex := newTestExtractor(t)

	text := "EVICTION ACTION\n" +
		"Sunrise Apartments LLC vs. Robert Miller\n" +
		"Case No: 27-CV-25-3456\n" +
		"Premises: 456 Oak Avenue, St. Paul, MN 55104\n" +
		"Unpaid rent of $1,450.00 claimed under Minn. Stat. § 504B.291.\n" +
		"Hearing scheduled for March 3, 2025.\n"

	entities := ex.ExtractEntities(text)

	assert.NotEmpty(t, ofKind(entities, docs.KindDate))
	assert.NotEmpty(t, ofKind(entities, docs.KindAmount))
	assert.NotEmpty(t, ofKind(entities, docs.KindParty))
	assert.NotEmpty(t, ofKind(entities, docs.KindAddress))
	assert.NotEmpty(t, ofKind(entities, docs.KindCaseNumber))
	assert.NotEmpty(t, ofKind(entities, docs.KindStatute))
}

func TestExtractEntities_Deterministic(t *testing.T) {
	ex := newTestExtractor(t)

	text := "Tenant: Alice Adams owes $900.00 by 02/01/2025 at 99 Lake Street, Minneapolis, MN 55408."
	first := ex.ExtractEntities(text)
	second := ex.ExtractEntities(text)
	assert.Equal(t, first, second)
}

func TestExtractEntities_DedupIsPerKind(t *testing.T) {
	ex := newTestExtractor(t)

	text := "Pay $504.10 by 01/15/2025. A second demand for $504.10 is due 01/15/2025."
	entities := ex.ExtractEntities(text)

	assert.Len(t, ofKind(entities, docs.KindAmount), 1)
	assert.Len(t, ofKind(entities, docs.KindDate), 1)
}

func TestExtractEntities_NFCNormalization(t *testing.T) {
	ex := newTestExtractor(t)

	// Decomposed e + combining acute in the input; values come back composed.
	text := "Tenant: José García"
	entities := ex.ExtractEntities(text)

	got, ok := findEntity(entities, docs.KindParty, "José García")
	require.True(t, ok, "expected composed party name, got %v", entities)
	assert.Equal(t, "Tenant", got.ContextLabel)
}

func TestNewExtractor_ZeroConfigFallsBackToDefaults(t *testing.T) {
	ex := NewExtractor(Config{}, nil)
	impl, ok := ex.(*extractorImpl)
	require.True(t, ok)

	assert.Equal(t, DefaultConfig().ContextWindow, impl.cfg.ContextWindow)
	assert.Equal(t, DefaultConfig().DefaultState, impl.cfg.DefaultState)
}
