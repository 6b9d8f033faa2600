// Package casefile implements the case bounded context: folding every
// processed document of a tenant's case into one unified CaseData record.
// Aggregation is a pure fold over the caller-supplied document order;
// re-running it on the same ordered input yields a byte-identical record.
package casefile

import (
	"strings"

	"github.com/opentenancy/caseintel/pkg/types/common"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// ─────────────────────────────────────────────────────────────────────────────
// Monetary bucket rules
// ─────────────────────────────────────────────────────────────────────────────

// amountBucket names one monetary slot of CaseData.
type amountBucket string

const (
	bucketSecurityDeposit amountBucket = "security_deposit"
	bucketLateFees        amountBucket = "late_fees"
	bucketDamages         amountBucket = "damages"
	bucketTotalClaimed    amountBucket = "total_claimed"
	bucketMonthlyRent     amountBucket = "monthly_rent"
	bucketRentClaimed     amountBucket = "rent_claimed"
)

// bucketRule routes an amount into a bucket by keywords on its recorded
// context label. Rule order is precedence: the first rule whose keyword
// appears wins, so "security deposit" can never land in the rent slot.
type bucketRule struct {
	bucket   amountBucket
	keywords []string
}

var bucketRules = []bucketRule{
	{bucket: bucketSecurityDeposit, keywords: []string{"deposit"}},
	{bucket: bucketLateFees, keywords: []string{"late"}},
	{bucket: bucketDamages, keywords: []string{"damage"}},
	{bucket: bucketTotalClaimed, keywords: []string{"total", "claimed", "judgment"}},
	{bucket: bucketMonthlyRent, keywords: []string{"rent"}},
	{bucket: bucketRentClaimed, keywords: []string{"due", "owed", "owing", "balance"}},
}

// scalarFields lists the primary scalars filled first-non-empty-wins from
// each document's field arena, in registry naming.
var scalarFields = []string{
	"tenant_name",
	"landlord_name",
	"hearing_date",
	"answer_deadline",
	"property_address",
	"case_number",
	"court_name",
}

// ─────────────────────────────────────────────────────────────────────────────
// Aggregation
// ─────────────────────────────────────────────────────────────────────────────

// Aggregate folds the ordered document extracts into one CaseData. The case
// identity is caller-supplied; everything else derives from the documents.
//
// Primary scalars follow first-non-empty-wins over document order. Later
// conflicting values are never discarded: every date, party, and amount
// entity lands in the audit lists, and statutes and case numbers are
// set-deduplicated preserving first-seen order. Each monetary bucket fills
// independently, first match wins. Urgency is the maximum severity over the
// contributing documents.
func Aggregate(caseID common.CaseID, extracts []docs.DocumentExtract) docs.CaseData {
	cd := docs.CaseData{
		CaseID:        caseID,
		Urgency:       docs.UrgencyNormal,
		DocumentCount: len(extracts),
	}

	scalars := make(map[string]string, len(scalarFields))
	buckets := make(map[amountBucket]float64, len(bucketRules))
	seenStatutes := make(map[string]struct{})
	seenCaseNumbers := make(map[string]struct{})

	for _, ext := range extracts {
		for _, name := range scalarFields {
			if scalars[name] == "" {
				scalars[name] = ext.Extraction.Value(name)
			}
		}

		for _, ent := range ext.Entities {
			switch ent.Kind {
			case docs.KindDate:
				cd.AllDates = append(cd.AllDates, docs.CaseDate{
					Date:       ent.Value,
					Label:      ent.ContextLabel,
					DocumentID: ext.DocumentID,
				})
			case docs.KindParty:
				cd.AllParties = append(cd.AllParties, docs.CaseParty{
					Name:       ent.Value,
					Role:       ent.ContextLabel,
					DocumentID: ext.DocumentID,
				})
			case docs.KindAmount:
				cd.AllAmounts = append(cd.AllAmounts, docs.CaseAmount{
					Amount:     ent.Amount,
					Label:      ent.ContextLabel,
					DocumentID: ext.DocumentID,
				})
				if b, ok := bucketFor(ent.ContextLabel); ok {
					if _, filled := buckets[b]; !filled {
						buckets[b] = ent.Amount
					}
				}
			case docs.KindStatute:
				if _, dup := seenStatutes[ent.Value]; !dup {
					seenStatutes[ent.Value] = struct{}{}
					cd.Statutes = append(cd.Statutes, ent.Value)
				}
			case docs.KindCaseNumber:
				if _, dup := seenCaseNumbers[ent.Value]; !dup {
					seenCaseNumbers[ent.Value] = struct{}{}
					cd.CaseNumbers = append(cd.CaseNumbers, ent.Value)
				}
			}
		}

		cd.Urgency = docs.MaxUrgency(cd.Urgency, ext.Classification.Urgency)
	}

	cd.TenantName = scalars["tenant_name"]
	cd.LandlordName = scalars["landlord_name"]
	cd.HearingDate = scalars["hearing_date"]
	cd.AnswerDeadline = scalars["answer_deadline"]
	cd.PropertyAddress = scalars["property_address"]
	cd.CaseNumber = scalars["case_number"]
	cd.CourtName = scalars["court_name"]

	cd.MonthlyRent = buckets[bucketMonthlyRent]
	cd.RentClaimed = buckets[bucketRentClaimed]
	cd.SecurityDeposit = buckets[bucketSecurityDeposit]
	cd.LateFees = buckets[bucketLateFees]
	cd.Damages = buckets[bucketDamages]
	cd.TotalClaimed = buckets[bucketTotalClaimed]

	return cd
}

// bucketFor routes a context label to its monetary bucket.
func bucketFor(label string) (amountBucket, bool) {
	l := strings.ToLower(label)
	for _, rule := range bucketRules {
		for _, kw := range rule.keywords {
			if strings.Contains(l, kw) {
				return rule.bucket, true
			}
		}
	}
	return "", false
}
