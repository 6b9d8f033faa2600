package recognizer

import (
	"regexp"

	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// ---------------------------------------------------------------------------
// Keyword tables
// ---------------------------------------------------------------------------

// keywordRule is one weighted phrase owned by a document type. Phrases are
// matched case-insensitively against a whitespace-collapsed view of the
// text; each distinct phrase contributes its weight at most once.
type keywordRule struct {
	phrase string
	weight float64
}

// keywordTable maps every classifiable type to its ordered phrase table.
// Order within a type is strongest-first so reasoning chains and key terms
// surface the most specific phrase.
var keywordTable = map[docs.DocumentType][]keywordRule{
	docs.TypeSummons: {
		{"you are hereby summoned", 0.45},
		{"summons", 0.50},
		{"written answer", 0.30},
		{"twenty (20) days", 0.30},
		{"required to serve", 0.25},
		{"judgment by default", 0.20},
	},
	docs.TypeComplaint: {
		{"eviction action complaint", 0.55},
		{"unlawful detainer", 0.45},
		{"complaint", 0.45},
		{"plaintiff alleges", 0.35},
		{"prays for judgment", 0.30},
		{"cause of action", 0.25},
		{"wherefore", 0.20},
	},
	docs.TypeJudgment: {
		{"judgment is entered", 0.45},
		{"order for judgment", 0.45},
		{"judgment", 0.40},
		{"it is ordered", 0.35},
		{"findings of fact", 0.30},
		{"conclusions of law", 0.30},
	},
	docs.TypeWrit: {
		{"writ of restitution", 0.60},
		{"writ of recovery", 0.60},
		{"sheriff is directed", 0.35},
		{"remove the defendant", 0.35},
		{"restitution of the premises", 0.30},
		{"execute this writ", 0.30},
	},
	docs.TypeMotion: {
		{"notice of motion", 0.45},
		{"moves the court", 0.40},
		{"motion", 0.40},
		{"hereby moves", 0.35},
		{"memorandum in support", 0.30},
		{"relief requested", 0.25},
	},
	docs.TypeHearingNotice: {
		{"notice of hearing", 0.55},
		{"hearing is scheduled", 0.40},
		{"hearing date", 0.35},
		{"appear before", 0.30},
		{"courtroom", 0.25},
		{"remote hearing", 0.25},
	},
	docs.TypeLease: {
		{"residential lease", 0.50},
		{"lease agreement", 0.45},
		{"lease term", 0.30},
		{"monthly rent", 0.30},
		{"security deposit", 0.30},
		{"renewal", 0.15},
		{"landlord", 0.15},
		{"tenant", 0.15},
		{"premises", 0.10},
		{"utilities", 0.10},
	},
	docs.TypeEvictionNotice: {
		{"eviction notice", 0.50},
		{"notice to vacate", 0.40},
		{"notice of termination", 0.35},
		{"terminate your tenancy", 0.35},
		{"you must vacate", 0.30},
		{"lease termination", 0.30},
	},
	docs.TypeNoticeToQuit: {
		{"notice to quit", 0.40},
		{"quit and vacate", 0.30},
		{"vacate the premises", 0.30},
		{"surrender the premises", 0.25},
		{"failure to vacate", 0.25},
		{"possession of the premises", 0.20},
	},
	docs.TypeLateRentNotice: {
		{"rent is past due", 0.45},
		{"late rent", 0.45},
		{"pay or quit", 0.35},
		{"late fee", 0.30},
		{"past due", 0.30},
		{"amount due", 0.25},
		{"outstanding balance", 0.25},
	},
	docs.TypeLeaseViolation: {
		{"violation of your lease", 0.50},
		{"lease violation", 0.50},
		{"breach of lease", 0.40},
		{"cure the violation", 0.35},
		{"unauthorized occupant", 0.30},
		{"noise complaint", 0.20},
	},
	docs.TypeReceipt: {
		{"payment received", 0.45},
		{"receipt", 0.45},
		{"received from", 0.30},
		{"amount paid", 0.30},
		{"paid in full", 0.30},
		{"payment method", 0.20},
	},
	docs.TypeLedger: {
		{"rent ledger", 0.55},
		{"ledger", 0.50},
		{"balance forward", 0.35},
		{"running balance", 0.35},
		{"transaction history", 0.35},
		{"charges and payments", 0.30},
	},
	docs.TypeUtilityBill: {
		{"utility bill", 0.50},
		{"billing period", 0.35},
		{"electric service", 0.30},
		{"gas service", 0.30},
		{"water and sewer", 0.30},
		{"kilowatt", 0.30},
		{"account number", 0.20},
		{"due date", 0.15},
	},
	docs.TypePhotoEvidence: {
		{"photograph", 0.40},
		{"photo", 0.35},
		{"image of", 0.30},
		{"depicts", 0.30},
		{"taken on", 0.20},
	},
	docs.TypeRepairRequest: {
		{"repair request", 0.55},
		{"maintenance request", 0.50},
		{"please repair", 0.40},
		{"request repairs", 0.40},
		{"not working", 0.25},
		{"leak", 0.25},
		{"broken", 0.20},
	},
	docs.TypeInspectionReport: {
		{"inspection report", 0.55},
		{"code violation", 0.35},
		{"inspection", 0.35},
		{"habitability", 0.30},
		{"condition of the property", 0.30},
		{"inspector", 0.30},
	},
	docs.TypeLetter: {
		{"to whom it may concern", 0.35},
		{"i am writing", 0.35},
		{"dear", 0.30},
		{"sincerely", 0.30},
		{"regards", 0.25},
	},
	docs.TypeEmail: {
		{"forwarded message", 0.35},
		{"subject:", 0.40},
		{"wrote:", 0.25},
		{"cc:", 0.25},
		{"from:", 0.25},
		{"to:", 0.20},
	},
	docs.TypeTextMessage: {
		{"text message", 0.45},
		{"text thread", 0.35},
		{"screenshot of messages", 0.35},
		{"sms", 0.35},
		{"sent via", 0.20},
	},
}

// ---------------------------------------------------------------------------
// Structural markers
// ---------------------------------------------------------------------------

// headerMatchWeight is the structural bonus for an ALL-CAPS header line that
// carries one of a type's header phrases.
const headerMatchWeight = 0.15

// headerPhrases lists the UPPER-CASE phrases each type expects to see in an
// ALL-CAPS header line. Most specific phrase first so the reasoning chain
// names the long form.
var headerPhrases = map[docs.DocumentType][]string{
	docs.TypeSummons:          {"SUMMONS"},
	docs.TypeComplaint:        {"EVICTION ACTION COMPLAINT", "UNLAWFUL DETAINER", "COMPLAINT"},
	docs.TypeJudgment:         {"ORDER FOR JUDGMENT", "JUDGMENT"},
	docs.TypeWrit:             {"WRIT OF RESTITUTION", "WRIT OF RECOVERY", "WRIT"},
	docs.TypeMotion:           {"NOTICE OF MOTION", "MOTION"},
	docs.TypeHearingNotice:    {"NOTICE OF HEARING"},
	docs.TypeLease:            {"RESIDENTIAL LEASE", "LEASE AGREEMENT", "LEASE"},
	docs.TypeEvictionNotice:   {"EVICTION NOTICE", "NOTICE TO VACATE", "NOTICE OF TERMINATION"},
	docs.TypeNoticeToQuit:     {"NOTICE TO QUIT"},
	docs.TypeLateRentNotice:   {"NOTICE OF LATE RENT", "LATE RENT", "PAST DUE"},
	docs.TypeLeaseViolation:   {"NOTICE OF LEASE VIOLATION", "LEASE VIOLATION"},
	docs.TypeReceipt:          {"RENT RECEIPT", "RECEIPT"},
	docs.TypeLedger:           {"RENT LEDGER", "LEDGER"},
	docs.TypeUtilityBill:      {"UTILITY"},
	docs.TypePhotoEvidence:    {"PHOTO"},
	docs.TypeRepairRequest:    {"REPAIR REQUEST", "MAINTENANCE REQUEST", "WORK ORDER"},
	docs.TypeInspectionReport: {"INSPECTION"},
}

// courtTypes and landlordTypes are the beneficiary sets for category-wide
// structural and statute boosts.
var courtTypes = []docs.DocumentType{
	docs.TypeSummons, docs.TypeComplaint, docs.TypeJudgment,
	docs.TypeWrit, docs.TypeMotion, docs.TypeHearingNotice,
}

var landlordTypes = []docs.DocumentType{
	docs.TypeLease, docs.TypeEvictionNotice, docs.TypeNoticeToQuit,
	docs.TypeLateRentNotice, docs.TypeLeaseViolation,
}

// structuralRule is a generic layout marker with a fixed beneficiary set.
type structuralRule struct {
	name    string
	types   []docs.DocumentType
	weight  float64
	present func(v *docView) bool
}

var structuralRules = []structuralRule{
	{
		name:    "STATE OF caption",
		types:   courtTypes,
		weight:  0.10,
		present: func(v *docView) bool { return v.contains("state of minnesota") || v.hasLinePrefix("STATE OF") },
	},
	{
		name:   "case caption block",
		types:  courtTypes,
		weight: 0.15,
		present: func(v *docView) bool {
			if v.contains("plaintiff") && v.contains("defendant") {
				return true
			}
			return versusRe.MatchString(v.collapsed)
		},
	},
	{
		name:   "signature block",
		types:  []docs.DocumentType{docs.TypeLease, docs.TypeComplaint, docs.TypeMotion, docs.TypeLetter},
		weight: 0.05,
		present: func(v *docView) bool {
			return v.contains("/s/") || v.contains("____") || v.contains("signature")
		},
	},
	{
		name:   "tabular amount block",
		types:  []docs.DocumentType{docs.TypeReceipt, docs.TypeLedger, docs.TypeUtilityBill, docs.TypeLateRentNotice},
		weight: 0.10,
		present: func(v *docView) bool {
			n := 0
			for _, line := range v.lines {
				if dollarAmountRe.MatchString(line) {
					n++
					if n >= 2 {
						return true
					}
				}
			}
			return false
		},
	},
}

// ---------------------------------------------------------------------------
// Contextual co-occurrence rules
// ---------------------------------------------------------------------------

// contextualRule fires when every companion pattern appears inside the
// window around an anchor occurrence. Anchor occurrences are tried in text
// order until one window satisfies all companions.
type contextualRule struct {
	name       string
	anchor     string
	companions []*regexp.Regexp
	window     int
	types      []docs.DocumentType
	weight     float64
}

var contextualRules = []contextualRule{
	{
		name:       "judgment near dollar amount",
		anchor:     "judgment",
		companions: []*regexp.Regexp{dollarAmountRe},
		window:     120,
		types:      []docs.DocumentType{docs.TypeJudgment},
		weight:     0.20,
	},
	{
		name:       "quit near day count",
		anchor:     "quit",
		companions: []*regexp.Regexp{dayCountRe},
		window:     120,
		types:      []docs.DocumentType{docs.TypeNoticeToQuit},
		weight:     0.15,
	},
	{
		name:       "vacate near day count",
		anchor:     "vacate",
		companions: []*regexp.Regexp{dayCountRe},
		window:     120,
		types:      []docs.DocumentType{docs.TypeNoticeToQuit, docs.TypeEvictionNotice},
		weight:     0.15,
	},
	{
		name:       "summons near answer and day count",
		anchor:     "summons",
		companions: []*regexp.Regexp{answerRe, dayCountRe},
		window:     200,
		types:      []docs.DocumentType{docs.TypeSummons},
		weight:     0.20,
	},
	{
		name:       "hearing near date",
		anchor:     "hearing",
		companions: []*regexp.Regexp{dateLikeRe},
		window:     120,
		types:      []docs.DocumentType{docs.TypeHearingNotice},
		weight:     0.15,
	},
	{
		name:       "rent near dollar amount",
		anchor:     "rent",
		companions: []*regexp.Regexp{dollarAmountRe},
		window:     80,
		types:      []docs.DocumentType{docs.TypeLease, docs.TypeLateRentNotice},
		weight:     0.10,
	},
	{
		name:       "deposit near dollar amount",
		anchor:     "deposit",
		companions: []*regexp.Regexp{dollarAmountRe},
		window:     80,
		types:      []docs.DocumentType{docs.TypeLease},
		weight:     0.10,
	},
}

// ---------------------------------------------------------------------------
// Statute references
// ---------------------------------------------------------------------------

// statuteRefWeight is the per-reference boost applied to every court and
// landlord type; statuteRefCap bounds how many distinct references count.
const (
	statuteRefWeight = 0.15
	statuteRefCap    = 2
)

// statuteRefPatterns are tried in order against the original text; matches
// are deduplicated and surfaced verbatim as key terms. Chapter 504B is the
// Minnesota landlord-tenant statute set.
var statuteRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Minn(?:esota)?\.?\s+Stat(?:utes?)?\.?\s*(?:§|[Ss]ection)?\s*504B\.\d+[a-z]?`),
	regexp.MustCompile(`§\s*504B\.\d+[a-z]?`),
	regexp.MustCompile(`(?i)\bChapter\s+504B\b`),
}

// ---------------------------------------------------------------------------
// Shared expressions
// ---------------------------------------------------------------------------

var (
	// versusRe marks the "A v. B" caption form on the collapsed view.
	versusRe = regexp.MustCompile(`(?:^|\s)vs?\.(?:\s|$)`)

	// dollarAmountRe matches $1,200 and $2,400.00 forms.
	dollarAmountRe = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d{2})?`)

	// dayCountRe matches "14 days", "twenty (20) days", "14-day".
	dayCountRe = regexp.MustCompile(`\b(?:\d{1,3}|seven|ten|fourteen|twenty|thirty|sixty|ninety)\s*(?:\(\d{1,3}\))?[- ]*days?\b`)

	answerRe = regexp.MustCompile(`\banswer\b`)

	// dateLikeRe recognizes the three date shapes the extractor understands,
	// for co-occurrence checks only.
	dateLikeRe = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b|\b\d{4}-\d{2}-\d{2}\b|(?i)\b(?:january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept?|oct|nov|dec)\.?\s+\d{1,2},?\s+\d{4}\b`)
)

// Near-term urgency scan. Calendar validity is enforced by a strict
// time.Parse round trip, so "13/45/9999" never yields a date.
var (
	numericDateRe   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2,4})\b`)
	isoDateRe       = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	monthNameDateRe = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec)\.?\s+(\d{1,2}),?\s+(\d{4})\b`)
)

// ---------------------------------------------------------------------------
// Normalization ceilings
// ---------------------------------------------------------------------------

// typeCeiling fixes the raw-score ceiling each type is normalized by.
// Ceilings are fixed, never the max observed score, so confidence stays
// comparable across documents.
var typeCeiling = map[docs.DocumentType]float64{
	docs.TypeSummons:          1.8,
	docs.TypeComplaint:        1.8,
	docs.TypeJudgment:         1.7,
	docs.TypeWrit:             1.5,
	docs.TypeMotion:           1.5,
	docs.TypeHearingNotice:    1.6,
	docs.TypeLease:            1.8,
	docs.TypeEvictionNotice:   1.6,
	docs.TypeNoticeToQuit:     1.6,
	docs.TypeLateRentNotice:   1.5,
	docs.TypeLeaseViolation:   1.5,
	docs.TypeReceipt:          1.4,
	docs.TypeLedger:           1.4,
	docs.TypeUtilityBill:      1.4,
	docs.TypePhotoEvidence:    1.2,
	docs.TypeRepairRequest:    1.4,
	docs.TypeInspectionReport: 1.4,
	docs.TypeLetter:           1.2,
	docs.TypeEmail:            1.3,
	docs.TypeTextMessage:      1.2,
}

const defaultCeiling = 1.5

// ceilingFor returns the normalization ceiling for a type.
func ceilingFor(dt docs.DocumentType) float64 {
	if c, ok := typeCeiling[dt]; ok {
		return c
	}
	return defaultCeiling
}
