// Package extractor pulls typed entities (dates, amounts, parties,
// addresses, case numbers, statute references) out of raw document text.
// Extraction is pure, independent of classification, and total: malformed
// values are silently dropped, never surfaced as errors.
//
// Offsets and source text refer to the NFC-normalized form of the input.
// Entities are never deduplicated across kinds; identical values within
// one kind keep only their first occurrence.
package extractor

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// Extractor locates typed entities in document text.
type Extractor interface {
	ExtractEntities(text string) []docs.ExtractedEntity
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config tunes extraction behaviour.
type Config struct {
	// ContextWindow is how many characters before and after a match are
	// searched for role keywords.
	ContextWindow int `json:"context_window" yaml:"context_window"`

	// DefaultState is appended to addresses that carry no state token.
	DefaultState string `json:"default_state" yaml:"default_state"`
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() Config {
	return Config{
		ContextWindow: 80,
		DefaultState:  "MN",
	}
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type extractorImpl struct {
	cfg    Config
	logger logging.Logger
}

// NewExtractor creates an Extractor. Zero config values fall back to
// defaults; a nil logger falls back to a no-op logger.
func NewExtractor(cfg Config, logger logging.Logger) Extractor {
	def := DefaultConfig()
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = def.ContextWindow
	}
	if strings.TrimSpace(cfg.DefaultState) == "" {
		cfg.DefaultState = def.DefaultState
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &extractorImpl{cfg: cfg, logger: logger}
}

// ExtractEntities implements Extractor. Kinds are emitted in a fixed order
// (dates, amounts, parties, addresses, case numbers, statutes); within a
// kind, entities follow text order.
func (e *extractorImpl) ExtractEntities(text string) []docs.ExtractedEntity {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	t := norm.NFC.String(text)

	var out []docs.ExtractedEntity
	out = append(out, e.extractDates(t)...)
	out = append(out, e.extractAmounts(t)...)
	out = append(out, e.extractParties(t)...)
	out = append(out, e.extractAddresses(t)...)
	out = append(out, e.extractCaseNumbers(t)...)
	out = append(out, e.extractStatutes(t)...)

	e.logger.Debug("entities extracted", logging.Int("count", len(out)))
	return out
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// window returns the lower-cased text surrounding [start,end), clamped to
// the document bounds.
func (e *extractorImpl) window(t string, start, end int) string {
	lo := max(0, start-e.cfg.ContextWindow)
	hi := min(len(t), end+e.cfg.ContextWindow)
	return strings.ToLower(t[lo:hi])
}

// roleRule pairs a context label with the window keywords that select it.
// Rule order is the precedence order.
type roleRule struct {
	label    string
	keywords []string
}

// classifyRole returns the label of the first rule with a keyword present
// in the window, or fallback when none hits.
func classifyRole(window string, rules []roleRule, fallback string) string {
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(window, kw) {
				return r.label
			}
		}
	}
	return fallback
}

// dedupByValue keeps the first entity per distinct value, preserving order.
func dedupByValue(entities []docs.ExtractedEntity) []docs.ExtractedEntity {
	if len(entities) < 2 {
		return entities
	}
	seen := make(map[string]struct{}, len(entities))
	out := entities[:0]
	for _, ent := range entities {
		key := strings.ToLower(ent.Value)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ent)
	}
	return out
}

// lineSpan is one physical line with its byte offsets in the normalized
// text.
type lineSpan struct {
	start int
	end   int
	text  string
}

// lineSpans splits t into lines, keeping offsets. Line text excludes the
// terminating newline.
func lineSpans(t string) []lineSpan {
	var spans []lineSpan
	start := 0
	for i := 0; i < len(t); i++ {
		if t[i] == '\n' {
			spans = append(spans, lineSpan{start: start, end: i, text: t[start:i]})
			start = i + 1
		}
	}
	if start <= len(t) {
		spans = append(spans, lineSpan{start: start, end: len(t), text: t[start:]})
	}
	return spans
}
