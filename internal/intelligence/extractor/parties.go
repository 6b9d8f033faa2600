package extractor

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// ---------------------------------------------------------------------------
// Party patterns
// ---------------------------------------------------------------------------

var (
	// partyLabelRe matches explicit role labels at the start of a line, like
	// "TENANT: John Q. Tenant" or "Plaintiff - Maplewood Properties LLC".
	partyLabelRe = regexp.MustCompile(`(?im)^[^\S\n]*(tenant|defendant|landlord|plaintiff|petitioner|respondent)s?\s*[:\-]\s*(\S[^\n]*)$`)

	// inlineVersusRe matches one-line case captions. The versus token must be
	// lowercase, which keeps middle initials like "John V. Smith" from
	// splitting a single name in two.
	inlineVersusRe = regexp.MustCompile(`(?m)(?:^[^\S\n]*|[.;:!?]\s+)([A-Z][A-Za-z0-9&.' -]{1,59}?),?\s+(?:vs\.?|v\.?)\s+([A-Z][A-Za-z0-9&.' -]{1,59})`)

	// businessSuffixRe gates landlord-side names found without an explicit
	// label. Individuals appear on both sides of a caption; businesses
	// almost never appear as tenants.
	businessSuffixRe = regexp.MustCompile(`(?i)\b(llc|inc|corp|company|properties|management|apartments|realty|housing)\b`)

	// courtBoilerplateRe rejects caption furniture that the line scans would
	// otherwise mistake for a party name.
	courtBoilerplateRe = regexp.MustCompile(`(?i)\b(state of|county of|district court|judicial district|housing court|court file|case type)\b`)
)

// partyRoleNames canonicalizes a captured label token.
var partyRoleNames = map[string]string{
	"tenant":     "Tenant",
	"defendant":  "Defendant",
	"landlord":   "Landlord",
	"plaintiff":  "Plaintiff",
	"petitioner": "Petitioner",
	"respondent": "Respondent",
}

// landlordSideRoles lists the roles that need a business suffix when the
// name was inferred from caption layout rather than an explicit label.
var landlordSideRoles = map[string]bool{
	"Landlord":   true,
	"Plaintiff":  true,
	"Petitioner": true,
}

// extractParties runs the pattern tiers in precedence order. The first
// pattern to fill a role wins; later tiers only fill roles still open.
func (e *extractorImpl) extractParties(t string) []docs.ExtractedEntity {
	var out []docs.ExtractedEntity
	filled := make(map[string]bool)

	add := func(role, raw string, start, end int, labeled bool) {
		name := cleanPartyName(raw)
		if name == "" || filled[role] {
			return
		}
		if !labeled && landlordSideRoles[role] && !businessSuffixRe.MatchString(name) {
			return
		}
		filled[role] = true
		out = append(out, docs.ExtractedEntity{
			Kind:         docs.KindParty,
			Value:        name,
			ContextLabel: role,
			SourceText:   t[start:end],
			Start:        start,
			End:          end,
		})
	}

	// Tier 1: explicit labels win over anything inferred from layout.
	for _, idx := range partyLabelRe.FindAllStringSubmatchIndex(t, -1) {
		m := submatches(t, idx)
		add(partyRoleNames[strings.ToLower(m[1])], m[2], idx[4], idx[5], true)
	}

	// Tier 2: inline "A v. B" caption.
	if idx := inlineVersusRe.FindStringSubmatchIndex(t); idx != nil {
		m := submatches(t, idx)
		add("Plaintiff", m[1], idx[2], idx[3], false)
		add("Defendant", m[2], idx[4], idx[5], false)
	}

	// Tier 2, stacked form: names on their own lines around a bare "v." line.
	lines := lineSpans(t)
	for i, ln := range lines {
		if !isVersusLine(ln.text) {
			continue
		}
		if j := nearestNameLine(lines, i, -1); j >= 0 {
			start, end := trimmedSpan(lines[j])
			add("Plaintiff", lines[j].text, start, end, false)
		}
		if j := nearestNameLine(lines, i, +1); j >= 0 {
			start, end := trimmedSpan(lines[j])
			add("Defendant", lines[j].text, start, end, false)
		}
		break
	}

	// Tier 3: "Name,\nDefendant." caption style.
	for i := 0; i+1 < len(lines); i++ {
		role, ok := roleOnlyLine(lines[i+1].text)
		if !ok || !looksLikeNameLine(lines[i].text) {
			continue
		}
		start, end := trimmedSpan(lines[i])
		add(role, lines[i].text, start, end, false)
	}

	return dedupByValue(out)
}

// cleanPartyName collapses whitespace, strips quote and punctuation edges,
// and rejects strings that cannot be a party name. Returns "" on rejection.
func cleanPartyName(raw string) string {
	name := strings.Join(strings.Fields(raw), " ")
	name = strings.Trim(name, `"'`)
	name = strings.TrimRight(name, " .,;:")
	if n := len(name); n < 2 || n > 60 {
		return ""
	}
	if strings.IndexFunc(name, unicode.IsLetter) < 0 {
		return ""
	}
	if _, ok := partyRoleNames[strings.ToLower(name)]; ok {
		return ""
	}
	if courtBoilerplateRe.MatchString(name) {
		return ""
	}
	return name
}

// looksLikeNameLine reports whether a caption line plausibly holds a party
// name on its own.
func looksLikeNameLine(text string) bool {
	name := cleanPartyName(text)
	if name == "" {
		return false
	}
	return (name[0] >= 'A' && name[0] <= 'Z') || (name[0] >= '0' && name[0] <= '9')
}

// roleOnlyLine reports a line holding nothing but a role word, as caption
// blocks print under each party.
func roleOnlyLine(text string) (string, bool) {
	w := strings.ToLower(strings.Trim(strings.TrimSpace(text), " .,;:"))
	role, ok := partyRoleNames[w]
	return role, ok
}

// isVersusLine matches the bare separator line of a stacked caption.
func isVersusLine(text string) bool {
	w := strings.ToLower(strings.Trim(strings.TrimSpace(text), " .-"))
	return w == "v" || w == "vs"
}

// nearestNameLine walks from a versus line in direction dir, skipping blanks
// and role-only lines, and returns the first name-bearing line. Any other
// substantive line ends the caption.
func nearestNameLine(lines []lineSpan, from, dir int) int {
	steps := 0
	for j := from + dir; j >= 0 && j < len(lines) && steps < 4; j += dir {
		if strings.TrimSpace(lines[j].text) == "" {
			continue
		}
		steps++
		if _, ok := roleOnlyLine(lines[j].text); ok {
			continue
		}
		if looksLikeNameLine(lines[j].text) {
			return j
		}
		return -1
	}
	return -1
}

// trimmedSpan returns the byte offsets of a line's content with surrounding
// whitespace excluded.
func trimmedSpan(ln lineSpan) (int, int) {
	lead := len(ln.text) - len(strings.TrimLeft(ln.text, " \t\r"))
	trail := len(ln.text) - len(strings.TrimRight(ln.text, " \t\r"))
	return ln.start + lead, ln.end - trail
}
