package extractor

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// ---------------------------------------------------------------------------
// Date patterns
// ---------------------------------------------------------------------------

// datePattern pairs a literal shape with its strict parser. parse returns
// false for calendar-invalid values, which are dropped without comment.
type datePattern struct {
	re    *regexp.Regexp
	parse func(m []string) (time.Time, bool)
}

// datePatterns is the fixed ordered shape set: numeric slash dates, written
// month names, ISO.
var datePatterns = []datePattern{
	{
		re: regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2,4})\b`),
		parse: func(m []string) (time.Time, bool) {
			var layout string
			switch len(m[3]) {
			case 4:
				layout = "1/2/2006"
			case 2:
				layout = "1/2/06"
			default:
				return time.Time{}, false
			}
			t, err := time.Parse(layout, m[0])
			return t, err == nil
		},
	},
	{
		re: regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`),
		parse: func(m []string) (time.Time, bool) {
			month := canonicalMonth(m[1])
			layout := "January 2, 2006"
			if len(month) == 3 {
				layout = "Jan 2, 2006"
			}
			t, err := time.Parse(layout, month+" "+m[2]+", "+m[3])
			return t, err == nil
		},
	},
	{
		re: regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`),
		parse: func(m []string) (time.Time, bool) {
			t, err := time.Parse("2006-01-02", m[0])
			return t, err == nil
		},
	},
}

// dateRoleRules is the deterministic precedence order for classifying what
// a date means from its context window. Earlier rules win.
var dateRoleRules = []roleRule{
	{label: "Hearing Date", keywords: []string{"hearing", "court", "appear", "courtroom", "trial"}},
	{label: "Summons Date", keywords: []string{"summons", "answer", "respond"}},
	{label: "Notice Date", keywords: []string{"notice", "quit", "vacate", "terminat"}},
	{label: "Deadline", keywords: []string{"deadline", "no later than", "on or before", "due"}},
	{label: "Service Date", keywords: []string{"service", "served", "mailed", "delivered"}},
	{label: "Lease Start", keywords: []string{"begins", "commence", "start"}},
	{label: "Lease End", keywords: []string{"ends", "expires", "expiration", "through"}},
}

// extractDates finds every calendar-valid date, labels it from its context
// window, and deduplicates identical days.
func (e *extractorImpl) extractDates(t string) []docs.ExtractedEntity {
	var out []docs.ExtractedEntity
	for _, p := range datePatterns {
		for _, idx := range p.re.FindAllStringSubmatchIndex(t, -1) {
			start, end := idx[0], idx[1]
			parsed, ok := p.parse(submatches(t, idx))
			if !ok {
				continue
			}
			day := parsed
			out = append(out, docs.ExtractedEntity{
				Kind:         docs.KindDate,
				Value:        parsed.Format("2006-01-02"),
				Date:         &day,
				ContextLabel: classifyRole(e.window(t, start, end), dateRoleRules, "Date"),
				SourceText:   t[start:end],
				Start:        start,
				End:          end,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return dedupByValue(out)
}

// canonicalMonth title-cases a month token, strips a trailing period, and
// folds "Sept" to the parseable "Sep".
func canonicalMonth(m string) string {
	m = strings.TrimSuffix(m, ".")
	if m == "" {
		return m
	}
	m = strings.ToUpper(m[:1]) + strings.ToLower(m[1:])
	if m == "Sept" {
		return "Sep"
	}
	return m
}

// submatches materializes FindAllStringSubmatchIndex pairs into strings;
// absent groups come back empty.
func submatches(t string, idx []int) []string {
	out := make([]string, 0, len(idx)/2)
	for i := 0; i+1 < len(idx); i += 2 {
		if idx[i] < 0 || idx[i+1] < 0 {
			out = append(out, "")
			continue
		}
		out = append(out, t[idx[i]:idx[i+1]])
	}
	return out
}
