package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentenancy/caseintel/pkg/types/docs"
)

func TestExtractCaseNumbers_MinnesotaFormat(t *testing.T) {
	ex := newTestExtractor(t)

	nums := ofKind(ex.ExtractEntities("Case No: 27-CV-25-3456"), docs.KindCaseNumber)
	require.Len(t, nums, 1)
	assert.Equal(t, "27-CV-25-3456", nums[0].Value)
	assert.Equal(t, "Case Number", nums[0].ContextLabel)
}

func TestExtractCaseNumbers_HousingCourtVariant(t *testing.T) {
	ex := newTestExtractor(t)

	nums := ofKind(ex.ExtractEntities("filed as 62-HG-CV-24-123 in Ramsey County"), docs.KindCaseNumber)
	require.Len(t, nums, 1)
	assert.Equal(t, "62-HG-CV-24-123", nums[0].Value)
}

func TestExtractCaseNumbers_LowercaseCanonicalized(t *testing.T) {
	ex := newTestExtractor(t)

	nums := ofKind(ex.ExtractEntities("case 27-cv-25-3456 remains open"), docs.KindCaseNumber)
	require.Len(t, nums, 1)
	assert.Equal(t, "27-CV-25-3456", nums[0].Value)
	assert.Equal(t, "27-cv-25-3456", nums[0].SourceText)
}

func TestExtractCaseNumbers_GenericFallback(t *testing.T) {
	ex := newTestExtractor(t)

	nums := ofKind(ex.ExtractEntities("Case Number: 2024-HC-0042"), docs.KindCaseNumber)
	require.Len(t, nums, 1)
	assert.Equal(t, "2024-HC-0042", nums[0].Value)
}

func TestExtractCaseNumbers_GenericNeverSupplements(t *testing.T) {
	ex := newTestExtractor(t)

	text := "Case No: 27-CV-25-3456\nFile No: ABC-99-XYZ"
	nums := ofKind(ex.ExtractEntities(text), docs.KindCaseNumber)
	require.Len(t, nums, 1)
	assert.Equal(t, "27-CV-25-3456", nums[0].Value)
}

func TestExtractStatutes_CanonicalForms(t *testing.T) {
	ex := newTestExtractor(t)

	cases := map[string]string{
		"pursuant to Minn. Stat. § 504B.291":        "Minn. Stat. § 504B.291",
		"under Minnesota Statutes section 504B.135": "Minn. Stat. § 504B.135",
		"see § 504B.285 for the remedy":             "Minn. Stat. § 504B.285",
		"cited as minn. stat. 504b.178":             "Minn. Stat. § 504B.178",
	}
	for text, want := range cases {
		statutes := ofKind(ex.ExtractEntities(text), docs.KindStatute)
		require.Len(t, statutes, 1, "text %q", text)
		assert.Equal(t, want, statutes[0].Value, "text %q", text)
		assert.Equal(t, "Statute", statutes[0].ContextLabel, "text %q", text)
	}
}

func TestExtractStatutes_RepeatCitationsCollapse(t *testing.T) {
	ex := newTestExtractor(t)

	text := "Minn. Stat. § 504B.291 governs; see also § 504B.291 and § 504B.135."
	statutes := ofKind(ex.ExtractEntities(text), docs.KindStatute)
	require.Len(t, statutes, 2)
	assert.Equal(t, "Minn. Stat. § 504B.291", statutes[0].Value)
	assert.Equal(t, "Minn. Stat. § 504B.135", statutes[1].Value)
}

func TestExtractStatutes_GenericChapterFallback(t *testing.T) {
	ex := newTestExtractor(t)

	statutes := ofKind(ex.ExtractEntities("rights arise under Chapter 504B"), docs.KindStatute)
	require.Len(t, statutes, 1)
	assert.Equal(t, "Chapter 504B", statutes[0].Value)
}

func TestExtractStatutes_ChapterSkippedWhenCitationPresent(t *testing.T) {
	ex := newTestExtractor(t)

	text := "Chapter 504B applies, specifically Minn. Stat. § 504B.321."
	statutes := ofKind(ex.ExtractEntities(text), docs.KindStatute)
	require.Len(t, statutes, 1)
	assert.Equal(t, "Minn. Stat. § 504B.321", statutes[0].Value)
}
