package extractor

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// ---------------------------------------------------------------------------
// Amount patterns
// ---------------------------------------------------------------------------

var (
	// currencyAmountRe matches "$1,200.00", "$ 850", "$2400.50".
	currencyAmountRe = regexp.MustCompile(`\$\s?(\d{1,3}(?:,\d{3})*|\d+)(\.\d{2})?\b`)

	// wordAmountRe matches spelled-out currency like "1,200 dollars".
	wordAmountRe = regexp.MustCompile(`(?i)\b(\d{1,3}(?:,\d{3})*|\d+)(\.\d{2})?[- ]dollars\b`)
)

// amountRoleRules orders money roles by how specific their context keywords
// are. Earlier rules win so "security deposit" never lands on the rent bucket
// just because the word "rent" also appears nearby.
var amountRoleRules = []roleRule{
	{label: "Security Deposit", keywords: []string{"security deposit", "deposit"}},
	{label: "Late Fee", keywords: []string{"late fee", "late charge"}},
	{label: "Damages", keywords: []string{"damages", "damage to"}},
	{label: "Total Claimed", keywords: []string{"total", "judgment of", "claimed"}},
	{label: "Monthly Rent", keywords: []string{"monthly rent", "rent"}},
	{label: "Amount Due", keywords: []string{"amount due", "due", "owed", "owing", "balance"}},
}

// extractAmounts finds dollar figures, labels them from context, and drops
// values outside the plausible range for their role.
func (e *extractorImpl) extractAmounts(t string) []docs.ExtractedEntity {
	var out []docs.ExtractedEntity
	for _, re := range []*regexp.Regexp{currencyAmountRe, wordAmountRe} {
		for _, idx := range re.FindAllStringSubmatchIndex(t, -1) {
			start, end := idx[0], idx[1]
			m := submatches(t, idx)
			value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "")+m[2], 64)
			if err != nil {
				continue
			}
			label := classifyRole(e.window(t, start, end), amountRoleRules, "Amount")
			if !plausibleAmount(label, value) {
				continue
			}
			out = append(out, docs.ExtractedEntity{
				Kind:         docs.KindAmount,
				Value:        strconv.FormatFloat(value, 'f', 2, 64),
				Amount:       value,
				ContextLabel: label,
				SourceText:   t[start:end],
				Start:        start,
				End:          end,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return dedupByValue(out)
}

// plausibleAmount bounds each role to a sane residential range so OCR noise
// like "$2" rent or "$8,000,000" deposits never reaches field mapping.
func plausibleAmount(label string, v float64) bool {
	switch label {
	case "Monthly Rent":
		return v >= 200 && v <= 10000
	case "Security Deposit":
		return v >= 100 && v <= 10000
	default:
		return v >= 1 && v <= 1000000
	}
}
