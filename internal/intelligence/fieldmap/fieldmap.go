// Package fieldmap resolves extracted entities, the document classification,
// and raw text into the named legal-form fields downstream consumers fill
// from. Mapping is pure and idempotent: the same inputs always produce the
// same arena, and re-mapping an already-mapped document changes nothing.
package fieldmap

import (
	"fmt"
	"strings"
	"time"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// Mapper turns entity lists into the per-document field arena.
type Mapper interface {
	MapFields(entities []docs.ExtractedEntity, cls docs.Classification, rawText string) docs.FieldExtraction
}

// Config carries the mapper's tunables.
type Config struct {
	// AnswerOffsetDays is the statutory offset used to derive an answer
	// deadline from a summons date when no explicit deadline was found.
	AnswerOffsetDays int `json:"answer_offset_days" yaml:"answer_offset_days"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{AnswerOffsetDays: 7}
}

type mapperImpl struct {
	cfg    Config
	logger logging.Logger
}

// NewMapper builds a Mapper. A zero config or nil logger falls back to
// defaults.
func NewMapper(cfg Config, logger logging.Logger) Mapper {
	if cfg.AnswerOffsetDays <= 0 {
		cfg.AnswerOffsetDays = DefaultConfig().AnswerOffsetDays
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &mapperImpl{cfg: cfg, logger: logger}
}

// MapFields implements Mapper. Every registry field appears in the arena,
// empty or not, so consumers never probe for key existence.
func (m *mapperImpl) MapFields(entities []docs.ExtractedEntity, cls docs.Classification, rawText string) docs.FieldExtraction {
	arena := make(map[string]docs.ExtractedField, len(fieldRegistry))
	for _, spec := range fieldRegistry {
		switch spec.source {
		case sourceText:
			arena[spec.name] = resolveTextField(spec, rawText)
		case sourceClassification:
			arena[spec.name] = resolveClassificationField(spec, cls)
		default:
			arena[spec.name] = resolveEntityField(spec, entities)
		}
	}
	m.deriveAnswerDeadline(arena)

	total := 0.0
	review := 0
	for _, spec := range fieldRegistry {
		f := arena[spec.name]
		total += f.Tier.Weight()
		if f.NeedsReview {
			review++
		}
	}
	fe := docs.FieldExtraction{
		DocType:             cls.Type,
		FieldSetVersion:     fieldSetVersion,
		Fields:              arena,
		OverallConfidence:   total / float64(len(fieldRegistry)),
		FieldsNeedingReview: review,
	}
	m.logger.Debug("fields mapped",
		logging.String("doc_type", string(cls.Type)),
		logging.Float64("overall_confidence", fe.OverallConfidence),
		logging.Int("needs_review", review),
	)
	return fe
}

// deriveAnswerDeadline fills answer_deadline from summons_date plus the
// statutory offset. An explicitly-found deadline is never overridden.
func (m *mapperImpl) deriveAnswerDeadline(arena map[string]docs.ExtractedField) {
	summons, deadline := arena["summons_date"], arena["answer_deadline"]
	if summons.IsEmpty() || !deadline.IsEmpty() {
		return
	}
	served, err := time.Parse("2006-01-02", summons.Value)
	if err != nil {
		return
	}
	deadline.Value = served.AddDate(0, 0, m.cfg.AnswerOffsetDays).Format("2006-01-02")
	deadline.Tier = docs.TierLow
	deadline.Source = string(sourceDerived)
	deadline.SourceText = summons.SourceText
	deadline.NeedsReview = true
	deadline.ReviewReason = fmt.Sprintf("derived from summons date plus %d days", m.cfg.AnswerOffsetDays)
	arena["answer_deadline"] = deadline
}

// resolveEntityField applies the selection rule: kind filter, label rules in
// order, first entity in document order. Other accepted candidates with
// distinct values become Alternatives in encounter order.
func resolveEntityField(spec fieldSpec, entities []docs.ExtractedEntity) docs.ExtractedField {
	var chosen *docs.ExtractedEntity
	tier := spec.baseTier
	if len(spec.labels) == 0 {
		for i := range entities {
			if entities[i].Kind == spec.kind {
				chosen = &entities[i]
				break
			}
		}
	} else {
	rules:
		for _, rule := range spec.labels {
			for i := range entities {
				if entities[i].Kind == spec.kind && entities[i].ContextLabel == rule.label {
					chosen = &entities[i]
					tier = rule.tier
					break rules
				}
			}
		}
	}
	if chosen == nil {
		return emptyField(spec)
	}

	var alts []string
	seen := map[string]struct{}{strings.ToLower(chosen.Value): {}}
	for i := range entities {
		ent := entities[i]
		if ent.Kind != spec.kind || !labelAccepted(spec, ent.ContextLabel) {
			continue
		}
		key := strings.ToLower(ent.Value)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		alts = append(alts, ent.Value)
	}

	if spec.isoBoost && isoSourceRe.MatchString(chosen.SourceText) {
		tier = docs.TierHigh
	}
	return finishField(docs.ExtractedField{
		FieldName:    spec.name,
		DisplayName:  spec.display,
		Category:     spec.category,
		Value:        chosen.Value,
		Tier:         tier,
		Source:       string(sourceEntity),
		SourceText:   chosen.SourceText,
		Alternatives: alts,
	})
}

// resolveTextField matches a raw-text pattern; the first non-empty capture
// group wins, else the whole match.
func resolveTextField(spec fieldSpec, rawText string) docs.ExtractedField {
	if rawText == "" {
		return emptyField(spec)
	}
	m := spec.textRe.FindStringSubmatch(rawText)
	if m == nil {
		return emptyField(spec)
	}
	value := m[0]
	for _, group := range m[1:] {
		if group != "" {
			value = group
			break
		}
	}
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return emptyField(spec)
	}
	return finishField(docs.ExtractedField{
		FieldName:   spec.name,
		DisplayName: spec.display,
		Category:    spec.category,
		Value:       value,
		Tier:        spec.baseTier,
		Source:      string(sourceText),
		SourceText:  strings.TrimSpace(m[0]),
	})
}

// resolveClassificationField mirrors the classification verdict into the
// arena, tiered by its confidence.
func resolveClassificationField(spec fieldSpec, cls docs.Classification) docs.ExtractedField {
	if cls.Type == "" || cls.Type == docs.TypeUnknown {
		return emptyField(spec)
	}
	tier := docs.TierLow
	switch {
	case cls.Confidence >= 0.7:
		tier = docs.TierHigh
	case cls.Confidence >= 0.4:
		tier = docs.TierMedium
	}
	return finishField(docs.ExtractedField{
		FieldName:   spec.name,
		DisplayName: spec.display,
		Category:    spec.category,
		Value:       cls.Type.DisplayName(),
		Tier:        tier,
		Source:      string(sourceClassification),
	})
}

// labelAccepted reports whether this field's label set admits the label.
func labelAccepted(spec fieldSpec, label string) bool {
	if len(spec.labels) == 0 {
		return true
	}
	for _, r := range spec.labels {
		if r.label == label {
			return true
		}
	}
	return false
}

// finishField applies the review policy: anything at or below medium needs
// human eyes, as does any field with competing candidates.
func finishField(f docs.ExtractedField) docs.ExtractedField {
	switch {
	case len(f.Alternatives) > 0:
		f.NeedsReview = true
		f.ReviewReason = "multiple candidates found"
	case f.Tier.Weight() <= docs.TierMedium.Weight():
		f.NeedsReview = true
		f.ReviewReason = "confidence at or below medium"
	}
	return f
}

func emptyField(spec fieldSpec) docs.ExtractedField {
	return docs.ExtractedField{
		FieldName:    spec.name,
		DisplayName:  spec.display,
		Category:     spec.category,
		Tier:         docs.TierEmpty,
		NeedsReview:  true,
		ReviewReason: "no value found",
	}
}
