package fieldmap

import (
	"regexp"

	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// ---------------------------------------------------------------------------
// Field registry
// ---------------------------------------------------------------------------

// fieldSetVersion pins the contributing-field list behind OverallConfidence.
// Bump it whenever fieldRegistry changes shape, so stored confidences from
// different registry generations are never compared as equals.
const fieldSetVersion = "v1"

type fieldSource string

const (
	sourceEntity         fieldSource = "entity"
	sourceText           fieldSource = "text"
	sourceClassification fieldSource = "classification"
	sourceDerived        fieldSource = "derived"
)

// labelRule accepts one entity context label at one confidence tier.
type labelRule struct {
	label string
	tier  docs.ConfidenceTier
}

// fieldSpec is one row of the registry. Exactly one of kind (entity-backed),
// textRe (raw-text backed), or the classification source is set. Selection
// is kind filter, then label rules in order, then first entity in document
// order; there is no cross-candidate scoring.
type fieldSpec struct {
	name     string
	display  string
	category docs.FieldCategory
	source   fieldSource

	kind   docs.EntityKind
	labels []labelRule // empty means any label, at baseTier

	textRe *regexp.Regexp

	baseTier docs.ConfidenceTier

	// isoBoost lifts a date to TierHigh when its source text was already an
	// unambiguous ISO form and a specific label matched.
	isoBoost bool
}

var (
	courtNameRe = regexp.MustCompile(`(?im)^[^\S\n]*([^\n]*\b(?:district|housing|conciliation)\s+court\b[^\n]*?)[^\S\n]*$`)
	countyRe    = regexp.MustCompile(`(?i)\bcounty of ([A-Za-z][A-Za-z .]{2,30}?)\b|\b([A-Za-z][A-Za-z.]{2,20})\s+county\b`)
	judgeRe     = regexp.MustCompile(`\bJudge\s+([A-Z][A-Za-z.'-]+(?:[ \t][A-Z][A-Za-z.'-]+){0,2})`)
	phoneRe     = regexp.MustCompile(`\(?\d{3}\)?[ .-]?\d{3}[.-]\d{4}\b`)
	emailRe     = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	isoSourceRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// fieldRegistry is the ordered field list. Registry order is the
// contributing-field list for OverallConfidence and the presentation order
// of the arena; append new fields at the end of their category block and
// bump fieldSetVersion.
var fieldRegistry = []fieldSpec{
	{
		name: "case_number", display: "Case Number",
		category: docs.FieldCategoryCase, source: sourceEntity,
		kind: docs.KindCaseNumber, baseTier: docs.TierHigh,
	},
	{
		name: "court_name", display: "Court",
		category: docs.FieldCategoryCase, source: sourceText,
		textRe: courtNameRe, baseTier: docs.TierMedium,
	},
	{
		name: "county", display: "County",
		category: docs.FieldCategoryCase, source: sourceText,
		textRe: countyRe, baseTier: docs.TierMedium,
	},
	{
		name: "judge_name", display: "Judge",
		category: docs.FieldCategoryCase, source: sourceText,
		textRe: judgeRe, baseTier: docs.TierLow,
	},
	{
		name: "document_type", display: "Document Type",
		category: docs.FieldCategoryCase, source: sourceClassification,
		baseTier: docs.TierMedium,
	},

	{
		name: "plaintiff_name", display: "Plaintiff",
		category: docs.FieldCategoryLandlord, source: sourceEntity,
		kind: docs.KindParty, baseTier: docs.TierMedium,
		labels: []labelRule{
			{label: "Plaintiff", tier: docs.TierMedium},
			{label: "Petitioner", tier: docs.TierMedium},
		},
	},
	{
		name: "defendant_name", display: "Defendant",
		category: docs.FieldCategoryTenant, source: sourceEntity,
		kind: docs.KindParty, baseTier: docs.TierMedium,
		labels: []labelRule{
			{label: "Defendant", tier: docs.TierMedium},
			{label: "Respondent", tier: docs.TierMedium},
		},
	},
	{
		name: "tenant_name", display: "Tenant",
		category: docs.FieldCategoryTenant, source: sourceEntity,
		kind: docs.KindParty, baseTier: docs.TierMedium,
		labels: []labelRule{
			{label: "Tenant", tier: docs.TierMedium},
			{label: "Defendant", tier: docs.TierMedium},
			{label: "Respondent", tier: docs.TierMedium},
		},
	},
	{
		name: "landlord_name", display: "Landlord",
		category: docs.FieldCategoryLandlord, source: sourceEntity,
		kind: docs.KindParty, baseTier: docs.TierMedium,
		labels: []labelRule{
			{label: "Landlord", tier: docs.TierMedium},
			{label: "Plaintiff", tier: docs.TierMedium},
			{label: "Petitioner", tier: docs.TierMedium},
		},
	},

	{
		name: "property_address", display: "Property Address",
		category: docs.FieldCategoryProperty, source: sourceEntity,
		kind: docs.KindAddress, baseTier: docs.TierMedium,
		labels: []labelRule{
			{label: "Address", tier: docs.TierMedium},
			{label: "Address (state assumed)", tier: docs.TierLow},
		},
	},

	{
		name: "hearing_date", display: "Hearing Date",
		category: docs.FieldCategoryDates, source: sourceEntity,
		kind: docs.KindDate, baseTier: docs.TierMedium, isoBoost: true,
		labels: []labelRule{{label: "Hearing Date", tier: docs.TierMedium}},
	},
	{
		name: "summons_date", display: "Summons Date",
		category: docs.FieldCategoryDates, source: sourceEntity,
		kind: docs.KindDate, baseTier: docs.TierMedium, isoBoost: true,
		labels: []labelRule{{label: "Summons Date", tier: docs.TierMedium}},
	},
	{
		name: "answer_deadline", display: "Answer Deadline",
		category: docs.FieldCategoryDates, source: sourceEntity,
		kind: docs.KindDate, baseTier: docs.TierMedium, isoBoost: true,
		labels: []labelRule{{label: "Deadline", tier: docs.TierMedium}},
	},
	{
		name: "service_date", display: "Service Date",
		category: docs.FieldCategoryDates, source: sourceEntity,
		kind: docs.KindDate, baseTier: docs.TierMedium, isoBoost: true,
		labels: []labelRule{{label: "Service Date", tier: docs.TierMedium}},
	},
	{
		name: "notice_date", display: "Notice Date",
		category: docs.FieldCategoryDates, source: sourceEntity,
		kind: docs.KindDate, baseTier: docs.TierMedium, isoBoost: true,
		labels: []labelRule{{label: "Notice Date", tier: docs.TierMedium}},
	},
	{
		name: "lease_start_date", display: "Lease Start",
		category: docs.FieldCategoryLease, source: sourceEntity,
		kind: docs.KindDate, baseTier: docs.TierMedium, isoBoost: true,
		labels: []labelRule{{label: "Lease Start", tier: docs.TierMedium}},
	},
	{
		name: "lease_end_date", display: "Lease End",
		category: docs.FieldCategoryLease, source: sourceEntity,
		kind: docs.KindDate, baseTier: docs.TierMedium, isoBoost: true,
		labels: []labelRule{{label: "Lease End", tier: docs.TierMedium}},
	},
	{
		name: "document_date", display: "Document Date",
		category: docs.FieldCategoryDates, source: sourceEntity,
		kind: docs.KindDate, baseTier: docs.TierGuess,
		labels: []labelRule{{label: "Date", tier: docs.TierGuess}},
	},

	{
		name: "monthly_rent", display: "Monthly Rent",
		category: docs.FieldCategoryAmounts, source: sourceEntity,
		kind: docs.KindAmount, baseTier: docs.TierMedium,
		labels: []labelRule{{label: "Monthly Rent", tier: docs.TierMedium}},
	},
	{
		name: "security_deposit", display: "Security Deposit",
		category: docs.FieldCategoryAmounts, source: sourceEntity,
		kind: docs.KindAmount, baseTier: docs.TierMedium,
		labels: []labelRule{{label: "Security Deposit", tier: docs.TierMedium}},
	},
	{
		name: "late_fees", display: "Late Fees",
		category: docs.FieldCategoryAmounts, source: sourceEntity,
		kind: docs.KindAmount, baseTier: docs.TierMedium,
		labels: []labelRule{{label: "Late Fee", tier: docs.TierMedium}},
	},
	{
		name: "damages", display: "Damages",
		category: docs.FieldCategoryAmounts, source: sourceEntity,
		kind: docs.KindAmount, baseTier: docs.TierMedium,
		labels: []labelRule{{label: "Damages", tier: docs.TierMedium}},
	},
	{
		name: "total_claimed", display: "Total Claimed",
		category: docs.FieldCategoryAmounts, source: sourceEntity,
		kind: docs.KindAmount, baseTier: docs.TierMedium,
		labels: []labelRule{{label: "Total Claimed", tier: docs.TierMedium}},
	},
	{
		name: "amount_due", display: "Amount Due",
		category: docs.FieldCategoryAmounts, source: sourceEntity,
		kind: docs.KindAmount, baseTier: docs.TierMedium,
		labels: []labelRule{{label: "Amount Due", tier: docs.TierMedium}},
	},
	{
		name: "other_amount", display: "Other Amount",
		category: docs.FieldCategoryAmounts, source: sourceEntity,
		kind: docs.KindAmount, baseTier: docs.TierGuess,
		labels: []labelRule{{label: "Amount", tier: docs.TierGuess}},
	},

	{
		name: "statutes", display: "Statutes Cited",
		category: docs.FieldCategoryLegal, source: sourceEntity,
		kind: docs.KindStatute, baseTier: docs.TierHigh,
	},

	{
		name: "contact_phone", display: "Contact Phone",
		category: docs.FieldCategoryContact, source: sourceText,
		textRe: phoneRe, baseTier: docs.TierLow,
	},
	{
		name: "contact_email", display: "Contact Email",
		category: docs.FieldCategoryContact, source: sourceText,
		textRe: emailRe, baseTier: docs.TierLow,
	},
}
