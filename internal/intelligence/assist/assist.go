// Package assist calls the optional external classification service and
// coerces its flat JSON reply into a typed signal. The caller treats every
// error from this package as an expected condition: log it, drop the
// signal, continue rule-based.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	stdliberrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// Client analyzes raw document text through the external assist service.
// A nil Client is a valid "assist disabled" state for callers.
type Client interface {
	Analyze(ctx context.Context, text string) (*docs.AssistSignal, error)
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config holds connection parameters for the assist service.
type Config struct {
	// BaseURL is the service root; Analyze posts to BaseURL + "/analyze".
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey, when non-empty, is sent as a bearer token.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Timeout bounds each request end to end.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxChars truncates outbound text; the service sees at most this many
	// characters.
	MaxChars int `json:"max_chars" yaml:"max_chars"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:  10 * time.Second,
		MaxChars: 4000,
	}
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type clientImpl struct {
	cfg        Config
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient builds an assist client. BaseURL is required; zero Timeout and
// MaxChars fall back to defaults; a nil logger falls back to a no-op logger.
func NewClient(cfg Config, logger logging.Logger) (Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.InvalidParam("assist base URL must not be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultConfig().MaxChars
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &clientImpl{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// maxResponseBytes caps the reply body read; the expected payload is a few
// kilobytes of flat JSON.
const maxResponseBytes = 1 << 20

type analyzeRequest struct {
	Text string `json:"text"`
}

// Analyze posts the (truncated) text and returns the coerced signal. Any
// transport, status, or decode failure returns a nil signal and an error;
// it never panics and never returns a partially-valid signal on error.
func (c *clientImpl) Analyze(ctx context.Context, text string) (*docs.AssistSignal, error) {
	body, err := json.Marshal(analyzeRequest{Text: truncateRunes(text, c.cfg.MaxChars)})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode assist request")
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/analyze"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAssistUnavailable, "build assist request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if stdliberrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Wrap(err, errors.ErrCodeAssistTimeout, "assist request timed out")
		}
		return nil, errors.Wrap(err, errors.ErrCodeAssistUnavailable, "assist request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, errors.Newf(errors.ErrCodeAssistUnavailable,
			"assist returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAssistUnavailable, "read assist response")
	}

	signal, err := coerceSignal(raw)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("assist analysis completed",
		logging.String("doc_type", signal.DocType),
		logging.Float64("confidence", signal.Confidence),
		logging.Duration("elapsed", time.Since(start)),
	)
	return signal, nil
}

// ---------------------------------------------------------------------------
// Permissive coercion
// ---------------------------------------------------------------------------

// coerceSignal turns the service's flat JSON object into an AssistSignal.
// Field-level sloppiness is tolerated: numbers where strings belong, numeric
// strings where numbers belong, scalars where lists belong, missing keys.
// Only a body that is not a JSON object at all is an error.
func coerceSignal(raw []byte) (*docs.AssistSignal, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAssistInvalidPayload, "decode assist response")
	}

	return &docs.AssistSignal{
		DocType:    string(docs.ParseDocumentType(coerceString(fields["doc_type"]))),
		Confidence: clamp01(coerceFloat(fields["confidence"])),
		Title:      coerceString(fields["title"]),
		Summary:    coerceString(fields["summary"]),
		KeyDates:   coerceStringList(fields["key_dates"]),
		KeyParties: coerceStringList(fields["key_parties"]),
		KeyAmounts: coerceStringList(fields["key_amounts"]),
		KeyTerms:   coerceStringList(fields["key_terms"]),
	}, nil
}

func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func coerceFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// coerceStringList accepts a JSON array of scalars or a bare scalar. Nested
// objects and arrays inside the list are skipped, not stringified.
func coerceStringList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case nil:
		return nil
	default:
		if s := coerceString(t); s != "" {
			return []string{s}
		}
		return nil
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// truncateRunes cuts s to at most max runes without splitting a UTF-8
// sequence.
func truncateRunes(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
