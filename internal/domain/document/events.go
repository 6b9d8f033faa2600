package document

import (
	"github.com/opentenancy/caseintel/pkg/types/common"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// Event type names as they appear in the EventType field of published
// envelopes.  Topic routing in the messaging layer keys off these.
const (
	EventTypeIngested   = "document.ingested"
	EventTypeClassified = "document.classified"
)

// DocumentIngestedEvent signals that raw text was archived and a Document
// row created.  The worker consumes it to run the processing pipeline.
type DocumentIngestedEvent struct {
	common.BaseEvent
	CaseID     common.CaseID `json:"case_id"`
	Filename   string        `json:"filename"`
	ContentKey string        `json:"content_key"`
	Version    int           `json:"version"`
}

func NewDocumentIngestedEvent(d *Document) *DocumentIngestedEvent {
	return &DocumentIngestedEvent{
		BaseEvent:  common.NewBaseEvent(string(d.ID)),
		CaseID:     d.CaseID,
		Filename:   d.Filename,
		ContentKey: d.ContentKey,
		Version:    d.Version,
	}
}

// DocumentClassifiedEvent signals that a processing run completed and the
// document's analysis changed.  Consumers invalidate any cached case
// snapshot for CaseID.
type DocumentClassifiedEvent struct {
	common.BaseEvent
	CaseID     common.CaseID     `json:"case_id"`
	DocType    docs.DocumentType `json:"doc_type"`
	Confidence float64           `json:"confidence"`
	Urgency    docs.UrgencyLevel `json:"urgency"`
	Version    int               `json:"version"`
}

func NewDocumentClassifiedEvent(d *Document) *DocumentClassifiedEvent {
	return &DocumentClassifiedEvent{
		BaseEvent:  common.NewBaseEvent(string(d.ID)),
		CaseID:     d.CaseID,
		DocType:    d.Classification.Type,
		Confidence: d.Classification.Confidence,
		Urgency:    d.Classification.Urgency,
		Version:    d.Version,
	}
}
