package casefile

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/opentenancy/caseintel/pkg/types/common"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

func extract(id string, fields map[string]string, entities []docs.ExtractedEntity, urgency docs.UrgencyLevel) docs.DocumentExtract {
	arena := make(map[string]docs.ExtractedField, len(fields))
	for name, value := range fields {
		arena[name] = docs.ExtractedField{FieldName: name, Value: value, Tier: docs.TierMedium}
	}
	return docs.DocumentExtract{
		DocumentID:     common.ID(id),
		Classification: docs.Classification{Urgency: urgency},
		Entities:       entities,
		Extraction:     docs.FieldExtraction{Fields: arena},
	}
}

func TestAggregateFirstNonEmptyWins(t *testing.T) {
	first := extract("doc-1",
		map[string]string{"landlord_name": "ABC LLC", "tenant_name": ""},
		[]docs.ExtractedEntity{{Kind: docs.KindParty, Value: "ABC LLC", ContextLabel: "Landlord"}},
		docs.UrgencyNormal)
	second := extract("doc-2",
		map[string]string{"landlord_name": "XYZ Inc", "tenant_name": "John Q. Tenant"},
		[]docs.ExtractedEntity{{Kind: docs.KindParty, Value: "XYZ Inc", ContextLabel: "Landlord"}},
		docs.UrgencyNormal)

	cd := Aggregate("case-1", []docs.DocumentExtract{first, second})

	if cd.LandlordName != "ABC LLC" {
		t.Errorf("expected ABC LLC, got %q", cd.LandlordName)
	}
	if cd.TenantName != "John Q. Tenant" {
		t.Errorf("expected later tenant to fill empty scalar, got %q", cd.TenantName)
	}
	if !cd.HasParty("XYZ Inc") {
		t.Error("conflicting landlord should be retained in all_parties")
	}
	if !cd.HasParty("ABC LLC") {
		t.Error("winning landlord should also appear in all_parties")
	}
}

func TestAggregateIdempotent(t *testing.T) {
	input := []docs.DocumentExtract{
		extract("doc-1",
			map[string]string{"case_number": "27-CV-25-3456", "hearing_date": "2025-03-03"},
			[]docs.ExtractedEntity{
				{Kind: docs.KindDate, Value: "2025-03-03", ContextLabel: "Hearing Date"},
				{Kind: docs.KindAmount, Value: "1200.00", Amount: 1200, ContextLabel: "Monthly Rent"},
				{Kind: docs.KindStatute, Value: "Minn. Stat. § 504B.291"},
				{Kind: docs.KindCaseNumber, Value: "27-CV-25-3456"},
			},
			docs.UrgencyHigh),
	}

	a := Aggregate("case-1", input)
	b := Aggregate("case-1", input)

	if !reflect.DeepEqual(a, b) {
		t.Fatal("repeated aggregation differs")
	}
	aj, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	bj, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(aj, bj) {
		t.Error("repeated aggregation should serialize byte-identically")
	}
}

func TestAggregateMonetaryBucketsFillIndependently(t *testing.T) {
	first := extract("doc-1", nil,
		[]docs.ExtractedEntity{
			{Kind: docs.KindAmount, Value: "1200.00", Amount: 1200, ContextLabel: "Monthly Rent"},
			{Kind: docs.KindAmount, Value: "2400.00", Amount: 2400, ContextLabel: "Amount Due"},
		},
		docs.UrgencyNormal)
	second := extract("doc-2", nil,
		[]docs.ExtractedEntity{
			{Kind: docs.KindAmount, Value: "1800.00", Amount: 1800, ContextLabel: "Security Deposit"},
			{Kind: docs.KindAmount, Value: "1350.00", Amount: 1350, ContextLabel: "Monthly Rent"},
		},
		docs.UrgencyNormal)

	cd := Aggregate("case-1", []docs.DocumentExtract{first, second})

	if cd.MonthlyRent != 1200 {
		t.Errorf("monthly_rent: expected first value 1200, got %v", cd.MonthlyRent)
	}
	if cd.RentClaimed != 2400 {
		t.Errorf("rent_claimed: expected 2400, got %v", cd.RentClaimed)
	}
	if cd.SecurityDeposit != 1800 {
		t.Errorf("security_deposit: expected 1800, got %v", cd.SecurityDeposit)
	}
	if len(cd.AllAmounts) != 4 {
		t.Errorf("all_amounts should retain every value, got %d", len(cd.AllAmounts))
	}
}

func TestAggregateSetDedupPreservesFirstSeenOrder(t *testing.T) {
	first := extract("doc-1", nil,
		[]docs.ExtractedEntity{
			{Kind: docs.KindStatute, Value: "Minn. Stat. § 504B.291"},
			{Kind: docs.KindStatute, Value: "Minn. Stat. § 504B.135"},
			{Kind: docs.KindCaseNumber, Value: "27-CV-25-3456"},
		},
		docs.UrgencyNormal)
	second := extract("doc-2", nil,
		[]docs.ExtractedEntity{
			{Kind: docs.KindStatute, Value: "Minn. Stat. § 504B.291"},
			{Kind: docs.KindCaseNumber, Value: "27-CV-25-3456"},
			{Kind: docs.KindCaseNumber, Value: "62-HG-CV-24-123"},
		},
		docs.UrgencyNormal)

	cd := Aggregate("case-1", []docs.DocumentExtract{first, second})

	wantStatutes := []string{"Minn. Stat. § 504B.291", "Minn. Stat. § 504B.135"}
	if !reflect.DeepEqual(cd.Statutes, wantStatutes) {
		t.Errorf("statutes: expected %v, got %v", wantStatutes, cd.Statutes)
	}
	wantNumbers := []string{"27-CV-25-3456", "62-HG-CV-24-123"}
	if !reflect.DeepEqual(cd.CaseNumbers, wantNumbers) {
		t.Errorf("case numbers: expected %v, got %v", wantNumbers, cd.CaseNumbers)
	}
}

func TestAggregateUrgencyIsMaxOverDocuments(t *testing.T) {
	input := []docs.DocumentExtract{
		extract("doc-1", nil, nil, docs.UrgencyMedium),
		extract("doc-2", nil, nil, docs.UrgencyCritical),
		extract("doc-3", nil, nil, docs.UrgencyHigh),
	}

	cd := Aggregate("case-1", input)
	if cd.Urgency != docs.UrgencyCritical {
		t.Errorf("expected critical, got %s", cd.Urgency)
	}
	if cd.DocumentCount != 3 {
		t.Errorf("expected 3 documents, got %d", cd.DocumentCount)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	cd := Aggregate("case-1", nil)

	if cd.DocumentCount != 0 {
		t.Errorf("expected zero documents, got %d", cd.DocumentCount)
	}
	if cd.Urgency != docs.UrgencyNormal {
		t.Errorf("expected normal urgency, got %s", cd.Urgency)
	}
	if cd.CaseID != "case-1" {
		t.Errorf("case id should pass through, got %q", cd.CaseID)
	}
}

func TestAggregateAuditListsRetainDuplicates(t *testing.T) {
	ent := docs.ExtractedEntity{Kind: docs.KindDate, Value: "2025-03-03", ContextLabel: "Hearing Date"}
	input := []docs.DocumentExtract{
		extract("doc-1", nil, []docs.ExtractedEntity{ent}, docs.UrgencyNormal),
		extract("doc-2", nil, []docs.ExtractedEntity{ent}, docs.UrgencyNormal),
	}

	cd := Aggregate("case-1", input)
	if len(cd.AllDates) != 2 {
		t.Errorf("all_dates should keep one entry per document, got %d", len(cd.AllDates))
	}
	if cd.AllDates[0].DocumentID == cd.AllDates[1].DocumentID {
		t.Error("entries should carry their source document ids")
	}
}
