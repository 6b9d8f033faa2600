package docs

import (
	"sort"
	"strings"
	"time"

	"github.com/opentenancy/caseintel/pkg/types/common"
)

// DocumentType identifies the recognized kind of a tenant legal document.
type DocumentType string

const (
	// Court documents.
	TypeSummons       DocumentType = "SUMMONS"
	TypeComplaint     DocumentType = "COMPLAINT"
	TypeJudgment      DocumentType = "JUDGMENT"
	TypeWrit          DocumentType = "WRIT"
	TypeMotion        DocumentType = "MOTION"
	TypeHearingNotice DocumentType = "HEARING_NOTICE"

	// Landlord documents.
	TypeLease          DocumentType = "LEASE"
	TypeEvictionNotice DocumentType = "EVICTION_NOTICE"
	TypeNoticeToQuit   DocumentType = "NOTICE_TO_QUIT"
	TypeLateRentNotice DocumentType = "LATE_RENT_NOTICE"
	TypeLeaseViolation DocumentType = "LEASE_VIOLATION"

	// Financial documents.
	TypeReceipt     DocumentType = "RECEIPT"
	TypeLedger      DocumentType = "LEDGER"
	TypeUtilityBill DocumentType = "UTILITY_BILL"

	// Evidence documents.
	TypePhotoEvidence    DocumentType = "PHOTO_EVIDENCE"
	TypeRepairRequest    DocumentType = "REPAIR_REQUEST"
	TypeInspectionReport DocumentType = "INSPECTION_REPORT"

	// Communication documents.
	TypeLetter      DocumentType = "LETTER"
	TypeEmail       DocumentType = "EMAIL"
	TypeTextMessage DocumentType = "TEXT_MESSAGE"

	// Fallback.
	TypeUnknown DocumentType = "UNKNOWN"
)

// documentTypeOrder fixes the canonical ordering of types: categories in
// priority order, then the intra-category tie-break order. Lower index wins
// a score tie.
var documentTypeOrder = []DocumentType{
	TypeSummons, TypeComplaint, TypeJudgment, TypeWrit, TypeMotion, TypeHearingNotice,
	TypeLease, TypeEvictionNotice, TypeNoticeToQuit, TypeLateRentNotice, TypeLeaseViolation,
	TypeReceipt, TypeLedger, TypeUtilityBill,
	TypePhotoEvidence, TypeRepairRequest, TypeInspectionReport,
	TypeLetter, TypeEmail, TypeTextMessage,
	TypeUnknown,
}

// DocumentTypes returns all document types in canonical order.
func DocumentTypes() []DocumentType {
	out := make([]DocumentType, len(documentTypeOrder))
	copy(out, documentTypeOrder)
	return out
}

// IsValid checks if the DocumentType is one of the known values.
func (t DocumentType) IsValid() bool {
	for _, dt := range documentTypeOrder {
		if t == dt {
			return true
		}
	}
	return false
}

// TieRank returns the position of the type in the canonical order. Lower
// values win score ties. Unknown values rank after every known type.
func (t DocumentType) TieRank() int {
	for i, dt := range documentTypeOrder {
		if t == dt {
			return i
		}
	}
	return len(documentTypeOrder)
}

// Category returns the document category the type belongs to.
func (t DocumentType) Category() Category {
	switch t {
	case TypeSummons, TypeComplaint, TypeJudgment, TypeWrit, TypeMotion, TypeHearingNotice:
		return CategoryCourt
	case TypeLease, TypeEvictionNotice, TypeNoticeToQuit, TypeLateRentNotice, TypeLeaseViolation:
		return CategoryLandlord
	case TypeReceipt, TypeLedger, TypeUtilityBill:
		return CategoryFinancial
	case TypePhotoEvidence, TypeRepairRequest, TypeInspectionReport:
		return CategoryEvidence
	case TypeLetter, TypeEmail, TypeTextMessage:
		return CategoryCommunication
	default:
		return CategoryOther
	}
}

// DisplayName returns the human-readable name used for document titles.
func (t DocumentType) DisplayName() string {
	switch t {
	case TypeSummons:
		return "Summons"
	case TypeComplaint:
		return "Eviction Complaint"
	case TypeJudgment:
		return "Judgment"
	case TypeWrit:
		return "Writ of Restitution"
	case TypeMotion:
		return "Motion"
	case TypeHearingNotice:
		return "Hearing Notice"
	case TypeLease:
		return "Lease Agreement"
	case TypeEvictionNotice:
		return "Eviction Notice"
	case TypeNoticeToQuit:
		return "Notice to Quit"
	case TypeLateRentNotice:
		return "Late Rent Notice"
	case TypeLeaseViolation:
		return "Lease Violation Notice"
	case TypeReceipt:
		return "Rent Receipt"
	case TypeLedger:
		return "Rent Ledger"
	case TypeUtilityBill:
		return "Utility Bill"
	case TypePhotoEvidence:
		return "Photo Evidence"
	case TypeRepairRequest:
		return "Repair Request"
	case TypeInspectionReport:
		return "Inspection Report"
	case TypeLetter:
		return "Letter"
	case TypeEmail:
		return "Email"
	case TypeTextMessage:
		return "Text Message"
	default:
		return "Unknown Document"
	}
}

// DefaultUrgency returns the baseline urgency assigned to the type before
// any date-based escalation.
func (t DocumentType) DefaultUrgency() UrgencyLevel {
	switch t {
	case TypeWrit:
		return UrgencyCritical
	case TypeSummons, TypeComplaint, TypeJudgment, TypeEvictionNotice, TypeNoticeToQuit:
		return UrgencyHigh
	case TypeMotion, TypeHearingNotice, TypeLateRentNotice, TypeLeaseViolation:
		return UrgencyMedium
	default:
		return UrgencyNormal
	}
}

// ParseDocumentType coerces a free-form string into a DocumentType. Unknown
// or empty input maps to TypeUnknown, never an error.
func ParseDocumentType(s string) DocumentType {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	t := DocumentType(normalized)
	if t.IsValid() {
		return t
	}
	return TypeUnknown
}

// Category groups document types by their originating context.
type Category string

const (
	CategoryCourt         Category = "COURT"
	CategoryLandlord      Category = "LANDLORD"
	CategoryFinancial     Category = "FINANCIAL"
	CategoryEvidence      Category = "EVIDENCE"
	CategoryCommunication Category = "COMMUNICATION"
	CategoryOther         Category = "OTHER"
)

// IsValid checks if the Category is one of the known values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryCourt, CategoryLandlord, CategoryFinancial, CategoryEvidence, CategoryCommunication, CategoryOther:
		return true
	default:
		return false
	}
}

// Priority returns the tie-break rank of the category. Higher values win.
func (c Category) Priority() int {
	switch c {
	case CategoryCourt:
		return 6
	case CategoryLandlord:
		return 5
	case CategoryFinancial:
		return 4
	case CategoryEvidence:
		return 3
	case CategoryCommunication:
		return 2
	case CategoryOther:
		return 1
	default:
		return 0
	}
}

// UrgencyLevel expresses how quickly a tenant must act on a document.
type UrgencyLevel string

const (
	UrgencyCritical UrgencyLevel = "critical"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyLow      UrgencyLevel = "low"
	UrgencyNormal   UrgencyLevel = "normal"
)

// IsValid checks if the UrgencyLevel is one of the known values.
func (u UrgencyLevel) IsValid() bool {
	switch u {
	case UrgencyCritical, UrgencyHigh, UrgencyMedium, UrgencyLow, UrgencyNormal:
		return true
	default:
		return false
	}
}

// Severity returns a numerical value for urgency comparison.
func (u UrgencyLevel) Severity() int {
	switch u {
	case UrgencyCritical:
		return 4
	case UrgencyHigh:
		return 3
	case UrgencyMedium:
		return 2
	case UrgencyLow:
		return 1
	default:
		return 0
	}
}

// Escalate returns the urgency one severity step above the receiver.
// Critical stays critical.
func (u UrgencyLevel) Escalate() UrgencyLevel {
	switch u {
	case UrgencyNormal:
		return UrgencyLow
	case UrgencyLow:
		return UrgencyMedium
	case UrgencyMedium:
		return UrgencyHigh
	default:
		return UrgencyCritical
	}
}

// MaxUrgency returns the more severe of two urgency levels.
func MaxUrgency(a, b UrgencyLevel) UrgencyLevel {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// ConfidenceTier grades how certain the extractor is about a field value.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "HIGH"
	TierMedium ConfidenceTier = "MEDIUM"
	TierLow    ConfidenceTier = "LOW"
	TierGuess  ConfidenceTier = "GUESS"
	TierEmpty  ConfidenceTier = "EMPTY"
)

// IsValid checks if the ConfidenceTier is one of the known values.
func (t ConfidenceTier) IsValid() bool {
	switch t {
	case TierHigh, TierMedium, TierLow, TierGuess, TierEmpty:
		return true
	default:
		return false
	}
}

// Weight returns the numeric weight of the tier used for confidence math.
func (t ConfidenceTier) Weight() float64 {
	switch t {
	case TierHigh:
		return 1.0
	case TierMedium:
		return 0.75
	case TierLow:
		return 0.5
	case TierGuess:
		return 0.25
	default:
		return 0.0
	}
}

// EntityKind identifies the kind of value an extracted entity carries.
type EntityKind string

const (
	KindDate       EntityKind = "DATE"
	KindAmount     EntityKind = "AMOUNT"
	KindParty      EntityKind = "PARTY"
	KindAddress    EntityKind = "ADDRESS"
	KindCaseNumber EntityKind = "CASE_NUMBER"
	KindStatute    EntityKind = "STATUTE"
)

// IsValid checks if the EntityKind is one of the known values.
func (k EntityKind) IsValid() bool {
	switch k {
	case KindDate, KindAmount, KindParty, KindAddress, KindCaseNumber, KindStatute:
		return true
	default:
		return false
	}
}

// Classification is the result of recognizing a document. Immutable once
// returned.
type Classification struct {
	Type           DocumentType `json:"type"`
	Category       Category     `json:"category"`
	Confidence     float64      `json:"confidence"`
	Title          string       `json:"title"`
	Urgency        UrgencyLevel `json:"urgency"`
	KeyTerms       []string     `json:"key_terms,omitempty"`
	ReasoningChain []string     `json:"reasoning_chain,omitempty"`
}

// UnknownClassification returns the classification used for empty or
// unrecognizable text.
func UnknownClassification() Classification {
	return Classification{
		Type:       TypeUnknown,
		Category:   CategoryOther,
		Confidence: 0,
		Title:      TypeUnknown.DisplayName(),
		Urgency:    UrgencyNormal,
	}
}

// AssistSignal is the flat, already-coerced response of an unstructured
// model assist call. DocType is a raw string; it may or may not parse to a
// known DocumentType. A nil signal means the assist path was skipped or
// failed, and rule-based results stand alone.
type AssistSignal struct {
	DocType    string   `json:"doc_type"`
	Confidence float64  `json:"confidence"`
	Title      string   `json:"title,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	KeyDates   []string `json:"key_dates,omitempty"`
	KeyParties []string `json:"key_parties,omitempty"`
	KeyAmounts []string `json:"key_amounts,omitempty"`
	KeyTerms   []string `json:"key_terms,omitempty"`
}

// ExtractedEntity is one value located in raw document text. Value always
// carries the canonical string form; Date and Amount carry the typed form
// for their kinds.
type ExtractedEntity struct {
	Kind         EntityKind `json:"kind"`
	Value        string     `json:"value"`
	Date         *time.Time `json:"date,omitempty"`
	Amount       float64    `json:"amount,omitempty"`
	ContextLabel string     `json:"context_label,omitempty"`
	SourceText   string     `json:"source_text,omitempty"`
	Start        int        `json:"start"`
	End          int        `json:"end"`
}

// FieldCategory groups extracted fields the way downstream form fillers
// consume them.
type FieldCategory string

const (
	FieldCategoryCase     FieldCategory = "case"
	FieldCategoryTenant   FieldCategory = "tenant"
	FieldCategoryLandlord FieldCategory = "landlord"
	FieldCategoryProperty FieldCategory = "property"
	FieldCategoryLease    FieldCategory = "lease"
	FieldCategoryDates    FieldCategory = "dates"
	FieldCategoryAmounts  FieldCategory = "amounts"
	FieldCategoryLegal    FieldCategory = "legal"
	FieldCategoryContact  FieldCategory = "contact"
)

// ExtractedField is one named legal-form field resolved from entities.
// Invariant: an empty Value carries TierEmpty and NeedsReview true.
type ExtractedField struct {
	FieldName    string         `json:"field_name"`
	DisplayName  string         `json:"display_name"`
	Category     FieldCategory  `json:"category"`
	Value        string         `json:"value"`
	Tier         ConfidenceTier `json:"tier"`
	Source       string         `json:"source,omitempty"`
	SourceText   string         `json:"source_text,omitempty"`
	Alternatives []string       `json:"alternatives,omitempty"`
	NeedsReview  bool           `json:"needs_review"`
	ReviewReason string         `json:"review_reason,omitempty"`
}

// IsEmpty reports whether the field resolved to no value.
func (f ExtractedField) IsEmpty() bool {
	return f.Value == ""
}

// FieldExtraction is the per-document field arena: every registry field keyed
// by name, plus the aggregate confidence figures. Recomputed wholesale per
// processing pass.
type FieldExtraction struct {
	DocType             DocumentType              `json:"doc_type"`
	FieldSetVersion     string                    `json:"field_set_version"`
	Fields              map[string]ExtractedField `json:"fields"`
	OverallConfidence   float64                   `json:"overall_confidence"`
	FieldsNeedingReview int                       `json:"fields_needing_review"`
}

// Get returns the named field and whether it exists in the arena.
func (fe FieldExtraction) Get(name string) (ExtractedField, bool) {
	f, ok := fe.Fields[name]
	return f, ok
}

// Value returns the named field's value, or "" when absent.
func (fe FieldExtraction) Value(name string) string {
	return fe.Fields[name].Value
}

// ToMap renders the grouped nested-map shape consumed by collaborators:
// category name to field name to field attributes.
func (fe FieldExtraction) ToMap() map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{})
	for name, f := range fe.Fields {
		cat := string(f.Category)
		if cat == "" {
			cat = "other"
		}
		group, ok := out[cat]
		if !ok {
			group = make(map[string]interface{})
			out[cat] = group
		}
		attrs := map[string]interface{}{
			"value":        f.Value,
			"display_name": f.DisplayName,
			"tier":         string(f.Tier),
			"needs_review": f.NeedsReview,
		}
		if f.Source != "" {
			attrs["source"] = f.Source
		}
		if len(f.Alternatives) > 0 {
			attrs["alternatives"] = append([]string(nil), f.Alternatives...)
		}
		if f.ReviewReason != "" {
			attrs["review_reason"] = f.ReviewReason
		}
		group[name] = attrs
	}
	return out
}

// DocumentExtract pairs one document's extraction output with the metadata
// the aggregator folds over.
type DocumentExtract struct {
	DocumentID     common.ID         `json:"document_id"`
	Filename       string            `json:"filename"`
	UploadedAt     time.Time         `json:"uploaded_at"`
	Classification Classification    `json:"classification"`
	Entities       []ExtractedEntity `json:"entities,omitempty"`
	Extraction     FieldExtraction   `json:"extraction"`
}

// CaseDate is one dated value retained in the case-level audit list.
type CaseDate struct {
	Date       string    `json:"date"`
	Label      string    `json:"label,omitempty"`
	DocumentID common.ID `json:"document_id,omitempty"`
}

// CaseParty is one named party retained in the case-level audit list.
type CaseParty struct {
	Name       string    `json:"name"`
	Role       string    `json:"role,omitempty"`
	DocumentID common.ID `json:"document_id,omitempty"`
}

// CaseAmount is one monetary value retained in the case-level audit list.
type CaseAmount struct {
	Amount     float64   `json:"amount"`
	Label      string    `json:"label,omitempty"`
	DocumentID common.ID `json:"document_id,omitempty"`
}

// CaseData is the unified case record folded from every document's
// extraction. Primary scalars follow first-non-empty-wins over the
// caller-supplied document order; the audit lists retain every value seen.
type CaseData struct {
	CaseID common.CaseID `json:"case_id"`

	TenantName      string `json:"tenant_name,omitempty"`
	LandlordName    string `json:"landlord_name,omitempty"`
	HearingDate     string `json:"hearing_date,omitempty"`
	AnswerDeadline  string `json:"answer_deadline,omitempty"`
	PropertyAddress string `json:"property_address,omitempty"`
	CaseNumber      string `json:"case_number,omitempty"`
	CourtName       string `json:"court_name,omitempty"`

	MonthlyRent     float64 `json:"monthly_rent,omitempty"`
	RentClaimed     float64 `json:"rent_claimed,omitempty"`
	SecurityDeposit float64 `json:"security_deposit,omitempty"`
	LateFees        float64 `json:"late_fees,omitempty"`
	Damages         float64 `json:"damages,omitempty"`
	TotalClaimed    float64 `json:"total_claimed,omitempty"`

	AllDates    []CaseDate   `json:"all_dates,omitempty"`
	AllParties  []CaseParty  `json:"all_parties,omitempty"`
	AllAmounts  []CaseAmount `json:"all_amounts,omitempty"`
	Statutes    []string     `json:"statutes,omitempty"`
	CaseNumbers []string     `json:"case_numbers,omitempty"`

	Urgency       UrgencyLevel `json:"urgency"`
	DocumentCount int          `json:"document_count"`
}

// HasParty reports whether the audit list contains the named party.
func (cd CaseData) HasParty(name string) bool {
	for _, p := range cd.AllParties {
		if p.Name == name {
			return true
		}
	}
	return false
}

// ToMap renders the flat nested mapping consumed by collaborators.
func (cd CaseData) ToMap() map[string]interface{} {
	out := map[string]interface{}{
		"case_id":        string(cd.CaseID),
		"urgency":        string(cd.Urgency),
		"document_count": cd.DocumentCount,
	}
	scalars := map[string]string{
		"tenant_name":      cd.TenantName,
		"landlord_name":    cd.LandlordName,
		"hearing_date":     cd.HearingDate,
		"answer_deadline":  cd.AnswerDeadline,
		"property_address": cd.PropertyAddress,
		"case_number":      cd.CaseNumber,
		"court_name":       cd.CourtName,
	}
	for k, v := range scalars {
		if v != "" {
			out[k] = v
		}
	}
	amounts := map[string]float64{
		"monthly_rent":     cd.MonthlyRent,
		"rent_claimed":     cd.RentClaimed,
		"security_deposit": cd.SecurityDeposit,
		"late_fees":        cd.LateFees,
		"damages":          cd.Damages,
		"total_claimed":    cd.TotalClaimed,
	}
	bucket := make(map[string]float64)
	for k, v := range amounts {
		if v > 0 {
			bucket[k] = v
		}
	}
	if len(bucket) > 0 {
		out["amounts"] = bucket
	}
	if len(cd.AllDates) > 0 {
		dates := make([]map[string]string, 0, len(cd.AllDates))
		for _, d := range cd.AllDates {
			dates = append(dates, map[string]string{"date": d.Date, "label": d.Label})
		}
		out["all_dates"] = dates
	}
	if len(cd.AllParties) > 0 {
		parties := make([]map[string]string, 0, len(cd.AllParties))
		for _, p := range cd.AllParties {
			parties = append(parties, map[string]string{"name": p.Name, "role": p.Role})
		}
		out["all_parties"] = parties
	}
	if len(cd.AllAmounts) > 0 {
		vals := make([]map[string]interface{}, 0, len(cd.AllAmounts))
		for _, a := range cd.AllAmounts {
			vals = append(vals, map[string]interface{}{"amount": a.Amount, "label": a.Label})
		}
		out["all_amounts"] = vals
	}
	if len(cd.Statutes) > 0 {
		out["statutes"] = append([]string(nil), cd.Statutes...)
	}
	if len(cd.CaseNumbers) > 0 {
		out["case_numbers"] = append([]string(nil), cd.CaseNumbers...)
	}
	return out
}

// SortEntities orders entities by start offset, then kind, for stable
// presentation. The slice is sorted in place.
func SortEntities(entities []ExtractedEntity) {
	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].Start != entities[j].Start {
			return entities[i].Start < entities[j].Start
		}
		return entities[i].Kind < entities[j].Kind
	})
}
