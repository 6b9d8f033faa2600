package extractor

import (
	"regexp"
	"strings"

	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// ---------------------------------------------------------------------------
// Address patterns
// ---------------------------------------------------------------------------

var (
	// streetRe anchors every address on a house number and a street type,
	// with an optional compass direction.
	streetRe = regexp.MustCompile(`\b(\d{1,6})\s+([A-Z0-9][A-Za-z0-9.' ]{0,40}?)\s+(Street|Avenue|Boulevard|Drive|Lane|Road|Court|Circle|Place|Terrace|Trail|Parkway|Way|St|Ave|Blvd|Dr|Ln|Rd|Ct|Cir|Pl|Ter|Trl|Pkwy)\.?(?:\s+(?:North|South|East|West|N|S|E|W)\b\.?)?`)

	// unitRe extends a street match with an apartment or suite designator.
	unitRe = regexp.MustCompile(`(?i)^[,\s]*(?:(?:apt|apartment|unit|suite|ste)\b\.?|#)\s*([A-Za-z0-9-]{1,8})\b`)

	stateRe = regexp.MustCompile(`^[,\s]*(MN|Minnesota)\b`)
	zipRe   = regexp.MustCompile(`^[,\s]*(\d{5}(?:-\d{4})?)\b`)
)

// knownCities bounds how far an address extends past the street. A token
// that is not on this list ends the address instead of becoming its city.
var knownCities = []string{
	"Minneapolis", "St. Paul", "St Paul", "Saint Paul", "Bloomington",
	"Brooklyn Park", "Brooklyn Center", "Plymouth", "Maple Grove",
	"Woodbury", "Lakeville", "Blaine", "Eagan", "Burnsville", "Coon Rapids",
	"Apple Valley", "Eden Prairie", "Minnetonka", "Edina",
	"St. Louis Park", "St Louis Park", "Saint Louis Park", "Mankato",
	"Moorhead", "Shakopee", "Maplewood", "Richfield", "Roseville", "Duluth",
	"Rochester", "St. Cloud", "St Cloud", "Saint Cloud", "Hopkins",
	"Crystal", "New Hope", "Golden Valley", "Fridley", "Columbia Heights",
	"Robbinsdale",
}

// extractAddresses finds street anchors and extends each one over unit,
// city, state, and zip. A missing state falls back to the configured
// default and is flagged in the context label.
func (e *extractorImpl) extractAddresses(t string) []docs.ExtractedEntity {
	var out []docs.ExtractedEntity
	for _, idx := range streetRe.FindAllStringIndex(t, -1) {
		start := idx[0]
		cur := idx[1]
		parts := []string{collapseWS(t[start:cur])}

		if m := unitRe.FindStringSubmatchIndex(t[cur:]); m != nil {
			unit := strings.TrimLeft(t[cur+m[0]:cur+m[1]], ", \t\r\n")
			parts = append(parts, collapseWS(unit))
			cur += m[1]
		}

		rest := t[cur:]
		skip := len(rest) - len(strings.TrimLeft(rest, ", \t\r\n"))
		if city, n, ok := matchKnownCity(rest[skip:]); ok {
			parts = append(parts, city)
			cur += skip + n
		}

		state := ""
		if m := stateRe.FindStringSubmatchIndex(t[cur:]); m != nil {
			state = t[cur+m[2] : cur+m[3]]
			cur += m[1]
		}
		zip := ""
		if m := zipRe.FindStringSubmatchIndex(t[cur:]); m != nil {
			zip = t[cur+m[2] : cur+m[3]]
			cur += m[1]
		}

		label := "Address"
		if state == "" {
			state = e.cfg.DefaultState
			label = "Address (state assumed)"
		} else if strings.EqualFold(state, "Minnesota") {
			state = "MN"
		}

		value := strings.Join(parts, ", ") + ", " + state
		if zip != "" {
			value += " " + zip
		}
		out = append(out, docs.ExtractedEntity{
			Kind:         docs.KindAddress,
			Value:        value,
			ContextLabel: label,
			SourceText:   t[start:cur],
			Start:        start,
			End:          cur,
		})
	}
	return dedupByValue(out)
}

// matchKnownCity reports the longest known city at the head of s, returned
// in the document's own spelling.
func matchKnownCity(s string) (string, int, bool) {
	best := 0
	for _, city := range knownCities {
		n := len(city)
		if n <= best || len(s) < n || !strings.EqualFold(s[:n], city) {
			continue
		}
		if len(s) > n && isASCIILetter(s[n]) {
			continue
		}
		best = n
	}
	if best == 0 {
		return "", 0, false
	}
	return s[:best], best, true
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// collapseWS folds runs of whitespace into single spaces.
func collapseWS(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
