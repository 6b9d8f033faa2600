package extractor

import (
	"regexp"
	"sort"
	"strings"

	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// ---------------------------------------------------------------------------
// Case number patterns
// ---------------------------------------------------------------------------

var (
	// mnCaseNumberRe matches Minnesota district court numbering like
	// "27-CV-25-3456" or "62-HG-CV-24-123".
	mnCaseNumberRe = regexp.MustCompile(`(?i)\b(\d{2}-(?:[A-Z]{2}-)?[A-Z]{2}-\d{2}-\d{3,7})\b`)

	// genericCaseNumberRes fire only when no Minnesota-format number exists
	// anywhere in the document.
	genericCaseNumberRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bcase\s+(?:number|num|no)\.?\s*:?\s*([A-Za-z0-9][A-Za-z0-9-]{2,19})`),
		regexp.MustCompile(`(?i)\bfile\s+(?:number|no)\.?\s*:?\s*([A-Za-z0-9][A-Za-z0-9-]{2,19})`),
	}
)

// extractCaseNumbers prefers jurisdiction-format numbers. Generic "Case No:"
// captures are a fallback, never a supplement.
func (e *extractorImpl) extractCaseNumbers(t string) []docs.ExtractedEntity {
	var out []docs.ExtractedEntity
	for _, idx := range mnCaseNumberRe.FindAllStringSubmatchIndex(t, -1) {
		out = append(out, caseNumberEntity(t, idx[2], idx[3]))
	}
	if len(out) == 0 {
		for _, re := range genericCaseNumberRes {
			for _, idx := range re.FindAllStringSubmatchIndex(t, -1) {
				out = append(out, caseNumberEntity(t, idx[2], idx[3]))
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	}
	return dedupByValue(out)
}

func caseNumberEntity(t string, start, end int) docs.ExtractedEntity {
	return docs.ExtractedEntity{
		Kind:         docs.KindCaseNumber,
		Value:        strings.ToUpper(t[start:end]),
		ContextLabel: "Case Number",
		SourceText:   t[start:end],
		Start:        start,
		End:          end,
	}
}

// ---------------------------------------------------------------------------
// Statute patterns
// ---------------------------------------------------------------------------

var (
	// mnStatuteRes match Minnesota statute citations in their common
	// spellings, from "Minn. Stat. § 504B.291" down to a bare "§ 504B.135".
	mnStatuteRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bMinn(?:esota)?\.?\s*Stat(?:utes?)?\.?\s*(?:§+|sec(?:tion)?\.?)?\s*(\d{3}[A-Za-z]?\.\d+[a-z]?)`),
		regexp.MustCompile(`§+\s*(\d{3}[A-Za-z]?\.\d+[a-z]?)`),
	}

	// genericStatuteRe is the fallback when no Minnesota citation exists.
	genericStatuteRe = regexp.MustCompile(`(?i)\bChapter\s+(\d{3}[A-Za-z]?)\b`)
)

// extractStatutes canonicalizes every Minnesota citation to the
// "Minn. Stat. § 504B.291" form so repeat citations in different spellings
// collapse to one entity.
func (e *extractorImpl) extractStatutes(t string) []docs.ExtractedEntity {
	var out []docs.ExtractedEntity
	for _, re := range mnStatuteRes {
		for _, idx := range re.FindAllStringSubmatchIndex(t, -1) {
			section := canonicalSection(t[idx[2]:idx[3]])
			out = append(out, docs.ExtractedEntity{
				Kind:         docs.KindStatute,
				Value:        "Minn. Stat. § " + section,
				ContextLabel: "Statute",
				SourceText:   t[idx[0]:idx[1]],
				Start:        idx[0],
				End:          idx[1],
			})
		}
	}
	if len(out) == 0 {
		for _, idx := range genericStatuteRe.FindAllStringSubmatchIndex(t, -1) {
			out = append(out, docs.ExtractedEntity{
				Kind:         docs.KindStatute,
				Value:        "Chapter " + canonicalSection(t[idx[2]:idx[3]]),
				ContextLabel: "Statute",
				SourceText:   t[idx[0]:idx[1]],
				Start:        idx[0],
				End:          idx[1],
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return dedupByValue(out)
}

// canonicalSection upper-cases the chapter letter of a section reference,
// leaving subdivision letters alone: "504b.291" becomes "504B.291".
func canonicalSection(s string) string {
	b := []byte(s)
	for i := 0; i < len(b) && i < 4; i++ {
		if b[i] >= 'a' && b[i] <= 'z' {
			b[i] -= 'a' - 'A'
		}
	}
	return string(b)
}
