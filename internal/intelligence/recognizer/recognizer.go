// Package recognizer classifies tenant legal documents from raw text.
// Five signal layers (structural markers, weighted keywords, contextual
// co-occurrence, filename hints, statute references) are summed per
// candidate type and normalized by a fixed per-type ceiling. Recognition
// is pure and total: any input, including empty or garbage text, yields a
// well-formed Classification instead of an error.
package recognizer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// Recognizer classifies document text into a Classification.
type Recognizer interface {
	// Recognize classifies text using rule signals only. The filename is a
	// weak hint, never ground truth.
	Recognize(text, filename string) docs.Classification

	// RecognizeWithAssist blends one additional weighted signal from a
	// model assist response into the score table before normalization. A
	// nil signal, or one whose doc type does not parse, makes this
	// identical to Recognize.
	RecognizeWithAssist(text, filename string, signal *docs.AssistSignal) docs.Classification
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config tunes the scoring engine.
type Config struct {
	// NearTermDays is the escalation window: a document date falling
	// within this many days of now raises urgency one level.
	NearTermDays int `json:"near_term_days" yaml:"near_term_days"`

	// UnknownThreshold is the minimum normalized score a winner needs;
	// below it the document resolves to UNKNOWN at the observed score.
	UnknownThreshold float64 `json:"unknown_threshold" yaml:"unknown_threshold"`

	// FilenameHintBonus is the fixed bonus for a filename token match,
	// applied only to types that already hold a content score.
	FilenameHintBonus float64 `json:"filename_hint_bonus" yaml:"filename_hint_bonus"`

	// AssistWeight scales the assist signal confidence into a raw score
	// contribution.
	AssistWeight float64 `json:"assist_weight" yaml:"assist_weight"`

	// MaxKeyTerms caps the key terms surfaced on a classification.
	MaxKeyTerms int `json:"max_key_terms" yaml:"max_key_terms"`
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() Config {
	return Config{
		NearTermDays:      14,
		UnknownThreshold:  0.15,
		FilenameHintBonus: 0.05,
		AssistWeight:      0.60,
		MaxKeyTerms:       8,
	}
}

// keywordDecay is the geometric diminishing-returns factor applied to each
// additional distinct keyword match beyond the first.
const keywordDecay = 0.85

// headerScanLines bounds how many leading non-empty lines are inspected
// for ALL-CAPS header candidates.
const headerScanLines = 15

// Option adjusts engine internals at construction time.
type Option func(*engineImpl)

// WithClock overrides the time source used for near-term urgency checks.
func WithClock(now func() time.Time) Option {
	return func(e *engineImpl) {
		if now != nil {
			e.now = now
		}
	}
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

type engineImpl struct {
	cfg    Config
	logger logging.Logger
	now    func() time.Time
}

// NewEngine creates a Recognizer. Zero or negative config values fall back
// to defaults; a nil logger falls back to a no-op logger.
func NewEngine(cfg Config, logger logging.Logger, opts ...Option) Recognizer {
	def := DefaultConfig()
	if cfg.NearTermDays <= 0 {
		cfg.NearTermDays = def.NearTermDays
	}
	if cfg.UnknownThreshold <= 0 || cfg.UnknownThreshold >= 1 {
		cfg.UnknownThreshold = def.UnknownThreshold
	}
	if cfg.FilenameHintBonus <= 0 {
		cfg.FilenameHintBonus = def.FilenameHintBonus
	}
	if cfg.AssistWeight <= 0 {
		cfg.AssistWeight = def.AssistWeight
	}
	if cfg.MaxKeyTerms <= 0 {
		cfg.MaxKeyTerms = def.MaxKeyTerms
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	e := &engineImpl{cfg: cfg, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recognize implements Recognizer.
func (e *engineImpl) Recognize(text, filename string) docs.Classification {
	return e.classify(text, filename, nil)
}

// RecognizeWithAssist implements Recognizer.
func (e *engineImpl) RecognizeWithAssist(text, filename string, signal *docs.AssistSignal) docs.Classification {
	return e.classify(text, filename, signal)
}

func (e *engineImpl) classify(text, filename string, signal *docs.AssistSignal) docs.Classification {
	v := newDocView(text)
	sb := newScoreboard()
	statuteRefs := findStatuteRefs(text)
	statuteBoost := statuteBoostMap(statuteRefs)

	e.scoreStructural(v, sb)
	e.scoreKeywords(v, sb)
	e.scoreContextual(v, sb)
	e.scoreFilename(filename, sb, statuteBoost)
	e.scoreStatutes(statuteRefs, sb)
	e.scoreAssist(signal, sb)

	winner, norm := pickWinner(normalize(sb.scores))
	if winner == docs.TypeUnknown || norm <= 0 {
		cls := docs.UnknownClassification()
		cls.ReasoningChain = []string{"no classification signals matched"}
		return cls
	}

	chain := append([]string(nil), sb.chains[winner]...)
	chain = append(chain, fmt.Sprintf("score %.2f normalized to %.2f (ceiling %.2f)",
		sb.scores[winner], norm, ceilingFor(winner)))

	if norm < e.cfg.UnknownThreshold {
		cls := docs.UnknownClassification()
		cls.Confidence = norm
		cls.ReasoningChain = append(chain,
			fmt.Sprintf("top score below classification threshold %.2f", e.cfg.UnknownThreshold))
		return cls
	}

	urgency := winner.DefaultUrgency()
	if src, ok := e.nearTermDate(text); ok {
		if esc := urgency.Escalate(); esc != urgency {
			chain = append(chain, fmt.Sprintf("urgency escalated to %s (date %s within %d days)",
				esc, src, e.cfg.NearTermDays))
			urgency = esc
		}
	}

	title := sb.headerOf[winner]
	if title == "" {
		title = v.firstHeader()
	}
	if title == "" {
		title = winner.DisplayName()
	}

	cls := docs.Classification{
		Type:           winner,
		Category:       winner.Category(),
		Confidence:     norm,
		Title:          title,
		Urgency:        urgency,
		KeyTerms:       buildKeyTerms(statuteRefs, sb.terms[winner], signal, e.cfg.MaxKeyTerms),
		ReasoningChain: chain,
	}
	e.logger.Debug("document classified",
		logging.String("type", string(winner)),
		logging.Float64("confidence", norm),
		logging.String("urgency", string(urgency)),
	)
	return cls
}

// ---------------------------------------------------------------------------
// Scoring layers
// ---------------------------------------------------------------------------

func (e *engineImpl) scoreStructural(v *docView, sb *scoreboard) {
	for dt, phrases := range headerPhrases {
		for _, p := range phrases {
			line, ok := v.headerContaining(p)
			if !ok {
				continue
			}
			sb.add(dt, headerMatchWeight, fmt.Sprintf("header %q matched (+%.2f)", p, headerMatchWeight))
			if sb.headerOf[dt] == "" {
				sb.headerOf[dt] = line
			}
			break
		}
	}
	for _, r := range structuralRules {
		if !r.present(v) {
			continue
		}
		entry := fmt.Sprintf("structural marker %q matched (+%.2f)", r.name, r.weight)
		for _, dt := range r.types {
			sb.add(dt, r.weight, entry)
		}
	}
}

func (e *engineImpl) scoreKeywords(v *docView, sb *scoreboard) {
	for dt, rules := range keywordTable {
		var matched []keywordRule
		for _, r := range rules {
			if v.contains(r.phrase) {
				matched = append(matched, r)
			}
		}
		if len(matched) == 0 {
			continue
		}
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].weight > matched[j].weight })
		factor := 1.0
		total := 0.0
		for _, r := range matched {
			total += r.weight * factor
			factor *= keywordDecay
			sb.note(dt, fmt.Sprintf("keyword %q matched (+%.2f)", r.phrase, r.weight))
			sb.terms[dt] = append(sb.terms[dt], r.phrase)
		}
		sb.scores[dt] += total
		if len(matched) > 1 {
			sb.note(dt, fmt.Sprintf("%d distinct keyword matches, total +%.2f after diminishing returns",
				len(matched), total))
		}
	}
}

func (e *engineImpl) scoreContextual(v *docView, sb *scoreboard) {
	for _, r := range contextualRules {
		if !v.anchorNear(r.anchor, r.companions, r.window) {
			continue
		}
		entry := fmt.Sprintf("contextual %q matched (+%.2f)", r.name, r.weight)
		for _, dt := range r.types {
			sb.add(dt, r.weight, entry)
		}
	}
}

// scoreFilename adds the hint bonus only to types already holding a content
// score, so a filename alone can never decide a classification.
func (e *engineImpl) scoreFilename(filename string, sb *scoreboard, statuteBoost map[docs.DocumentType]float64) {
	tokens := filenameTokens(filename)
	if len(tokens) == 0 {
		return
	}
	for dt := range keywordTable {
		if sb.scores[dt]+statuteBoost[dt] <= 0 {
			continue
		}
		if !filenameMatches(dt, tokens) {
			continue
		}
		sb.add(dt, e.cfg.FilenameHintBonus, fmt.Sprintf("filename hint matched (+%.2f)", e.cfg.FilenameHintBonus))
	}
}

func (e *engineImpl) scoreStatutes(refs []string, sb *scoreboard) {
	n := min(len(refs), statuteRefCap)
	for i := 0; i < n; i++ {
		entry := fmt.Sprintf("statute reference %q matched (+%.2f)", refs[i], statuteRefWeight)
		for _, dt := range courtTypes {
			sb.add(dt, statuteRefWeight, entry)
		}
		for _, dt := range landlordTypes {
			sb.add(dt, statuteRefWeight, entry)
		}
	}
}

func (e *engineImpl) scoreAssist(signal *docs.AssistSignal, sb *scoreboard) {
	if signal == nil {
		return
	}
	dt := docs.ParseDocumentType(signal.DocType)
	if dt == docs.TypeUnknown {
		return
	}
	conf := signal.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	w := e.cfg.AssistWeight * conf
	if w <= 0 {
		return
	}
	sb.add(dt, w, fmt.Sprintf("assist signal %q applied (+%.2f)", string(dt), w))
}

// nearTermDate reports the first calendar-valid document date that falls
// inside [today, today+NearTermDays]. Invalid dates parse-fail and are
// skipped.
func (e *engineImpl) nearTermDate(text string) (string, bool) {
	today := dateOnly(e.now())
	limit := today.AddDate(0, 0, e.cfg.NearTermDays)
	for _, c := range scanDates(text) {
		if !c.t.Before(today) && !c.t.After(limit) {
			return c.src, true
		}
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Scoreboard
// ---------------------------------------------------------------------------

// scoreboard accumulates per-type raw scores and the reasoning entries that
// produced them.
type scoreboard struct {
	scores   map[docs.DocumentType]float64
	chains   map[docs.DocumentType][]string
	terms    map[docs.DocumentType][]string
	headerOf map[docs.DocumentType]string
}

func newScoreboard() *scoreboard {
	return &scoreboard{
		scores:   make(map[docs.DocumentType]float64),
		chains:   make(map[docs.DocumentType][]string),
		terms:    make(map[docs.DocumentType][]string),
		headerOf: make(map[docs.DocumentType]string),
	}
}

func (sb *scoreboard) add(dt docs.DocumentType, w float64, entry string) {
	sb.scores[dt] += w
	sb.chains[dt] = append(sb.chains[dt], entry)
}

// note records a reasoning entry without changing the score.
func (sb *scoreboard) note(dt docs.DocumentType, entry string) {
	sb.chains[dt] = append(sb.chains[dt], entry)
}

// normalize divides each raw score by its type ceiling, clamped to [0,1].
func normalize(scores map[docs.DocumentType]float64) map[docs.DocumentType]float64 {
	norm := make(map[docs.DocumentType]float64, len(scores))
	for dt, s := range scores {
		n := s / ceilingFor(dt)
		if n > 1 {
			n = 1
		}
		if n < 0 {
			n = 0
		}
		norm[dt] = n
	}
	return norm
}

// pickWinner selects the highest-scoring type. Ties resolve through the
// canonical type order: category priority first, then the fixed
// intra-category order.
func pickWinner(scores map[docs.DocumentType]float64) (docs.DocumentType, float64) {
	winner := docs.TypeUnknown
	best := 0.0
	for _, dt := range docs.DocumentTypes() {
		if dt == docs.TypeUnknown {
			continue
		}
		if s := scores[dt]; s > best {
			best = s
			winner = dt
		}
	}
	return winner, best
}

// ---------------------------------------------------------------------------
// Document view
// ---------------------------------------------------------------------------

// docView pre-computes the matching views of one document: a lower-cased
// whitespace-collapsed body for phrase search, the trimmed non-empty lines,
// and the leading ALL-CAPS header candidates.
type docView struct {
	collapsed string
	lines     []string
	headers   []string
}

func newDocView(text string) *docView {
	v := &docView{
		collapsed: strings.ToLower(strings.Join(strings.Fields(text), " ")),
	}
	scanned := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v.lines = append(v.lines, line)
		if scanned < headerScanLines {
			scanned++
			if isHeaderLine(line) {
				v.headers = append(v.headers, strings.Join(strings.Fields(line), " "))
			}
		}
	}
	return v
}

func (v *docView) contains(s string) bool {
	return strings.Contains(v.collapsed, s)
}

func (v *docView) hasLinePrefix(p string) bool {
	for _, line := range v.lines {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

func (v *docView) headerContaining(phrase string) (string, bool) {
	for _, h := range v.headers {
		if strings.Contains(h, phrase) {
			return h, true
		}
	}
	return "", false
}

func (v *docView) firstHeader() string {
	if len(v.headers) == 0 {
		return ""
	}
	return v.headers[0]
}

// anchorNear reports whether some occurrence of anchor has every companion
// pattern matching inside its surrounding window.
func (v *docView) anchorNear(anchor string, companions []*regexp.Regexp, window int) bool {
	for from := 0; from < len(v.collapsed); {
		i := strings.Index(v.collapsed[from:], anchor)
		if i < 0 {
			return false
		}
		at := from + i
		lo := max(0, at-window)
		hi := min(len(v.collapsed), at+len(anchor)+window)
		win := v.collapsed[lo:hi]
		all := true
		for _, re := range companions {
			if !re.MatchString(win) {
				all = false
				break
			}
		}
		if all {
			return true
		}
		from = at + len(anchor)
	}
	return false
}

// isHeaderLine accepts lines with no lowercase letters and at least four
// uppercase ones, which keeps bare case numbers and "v." lines out.
func isHeaderLine(line string) bool {
	if len(line) < 4 {
		return false
	}
	upper := 0
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return upper >= 4
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// findStatuteRefs returns distinct statute references in first-seen order,
// whitespace-collapsed but otherwise verbatim.
func findStatuteRefs(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, re := range statuteRefPatterns {
		for _, m := range re.FindAllString(text, -1) {
			ref := strings.Join(strings.Fields(m), " ")
			key := strings.ToLower(ref)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, ref)
		}
	}
	return out
}

func statuteBoostMap(refs []string) map[docs.DocumentType]float64 {
	boost := make(map[docs.DocumentType]float64)
	w := statuteRefWeight * float64(min(len(refs), statuteRefCap))
	if w == 0 {
		return boost
	}
	for _, dt := range courtTypes {
		boost[dt] = w
	}
	for _, dt := range landlordTypes {
		boost[dt] = w
	}
	return boost
}

// filenameTokens lower-cases the filename, strips the extension, and splits
// on separators, dropping short and all-digit tokens.
func filenameTokens(filename string) []string {
	base := strings.ToLower(strings.TrimSpace(filename))
	if base == "" {
		return nil
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	base = strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', '.', '/':
			return ' '
		}
		return r
	}, base)
	var tokens []string
	for _, tok := range strings.Fields(base) {
		if len(tok) < 4 {
			continue
		}
		hasLetter := false
		for _, r := range tok {
			if unicode.IsLetter(r) {
				hasLetter = true
				break
			}
		}
		if hasLetter {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func filenameMatches(dt docs.DocumentType, tokens []string) bool {
	for _, tok := range tokens {
		for _, r := range keywordTable[dt] {
			if strings.Contains(r.phrase, tok) || strings.Contains(tok, r.phrase) {
				return true
			}
		}
		for _, p := range headerPhrases[dt] {
			lp := strings.ToLower(p)
			if strings.Contains(lp, tok) || strings.Contains(tok, lp) {
				return true
			}
		}
	}
	return false
}

// buildKeyTerms merges statute references, the winner's matched phrases,
// and assist terms, deduplicated in that order.
func buildKeyTerms(statuteRefs, phrases []string, signal *docs.AssistSignal, limit int) []string {
	var out []string
	seen := make(map[string]struct{})
	push := func(term string) {
		term = strings.TrimSpace(term)
		if term == "" || len(out) >= limit {
			return
		}
		key := strings.ToLower(term)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, term)
	}
	for _, t := range statuteRefs {
		push(t)
	}
	for _, t := range phrases {
		push(t)
	}
	if signal != nil {
		for _, t := range signal.KeyTerms {
			push(t)
		}
	}
	return out
}

// dateCandidate is one calendar-valid date found in text.
type dateCandidate struct {
	t   time.Time
	src string
}

// scanDates finds numeric, ISO, and month-name dates, dropping anything
// time.Parse rejects.
func scanDates(text string) []dateCandidate {
	var out []dateCandidate
	for _, m := range numericDateRe.FindAllString(text, -1) {
		parts := strings.Split(m, "/")
		if len(parts) != 3 {
			continue
		}
		layout := "1/2/2006"
		switch len(parts[2]) {
		case 2:
			layout = "1/2/06"
		case 4:
		default:
			continue
		}
		if t, err := time.Parse(layout, m); err == nil {
			out = append(out, dateCandidate{t: t, src: m})
		}
	}
	for _, m := range isoDateRe.FindAllString(text, -1) {
		if t, err := time.Parse("2006-01-02", m); err == nil {
			out = append(out, dateCandidate{t: t, src: m})
		}
	}
	for _, sub := range monthNameDateRe.FindAllStringSubmatch(text, -1) {
		month := normalizeMonth(sub[1])
		canonical := fmt.Sprintf("%s %s, %s", month, sub[2], sub[3])
		layout := "January 2, 2006"
		if len(month) == 3 {
			layout = "Jan 2, 2006"
		}
		if t, err := time.Parse(layout, canonical); err == nil {
			out = append(out, dateCandidate{t: t, src: sub[0]})
		}
	}
	return out
}

// normalizeMonth title-cases a month token and folds "Sept" to "Sep".
func normalizeMonth(m string) string {
	m = strings.TrimSuffix(m, ".")
	if m == "" {
		return m
	}
	m = strings.ToUpper(m[:1]) + strings.ToLower(m[1:])
	if m == "Sept" {
		return "Sep"
	}
	return m
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
