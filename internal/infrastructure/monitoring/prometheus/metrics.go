package prometheus

import (
	"strconv"
	"time"

	"github.com/opentenancy/caseintel/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Bucket presets
// ─────────────────────────────────────────────────────────────────────────────

var (
	// DefaultHTTPDurationBuckets covers interactive request latencies.
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

	// DefaultPipelineDurationBuckets covers document processing, which runs
	// longer than a request when assist round-trips are involved.
	DefaultPipelineDurationBuckets = []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

	// DefaultDBDurationBuckets covers single-statement database latencies.
	DefaultDBDurationBuckets = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}

	// DefaultSizeBuckets covers request and response body sizes in bytes.
	DefaultSizeBuckets = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304}

	// DefaultConfidenceBuckets covers classification scores in [0, 1].
	DefaultConfidenceBuckets = []float64{.1, .2, .3, .4, .5, .6, .7, .8, .9, .95, 1}
)

// ─────────────────────────────────────────────────────────────────────────────
// AppMetrics
// ─────────────────────────────────────────────────────────────────────────────

// AppMetrics is the full instrument set of the platform, registered once at
// startup and shared by every layer. Fields are grouped by the subsystem that
// records into them.
type AppMetrics struct {
	// HTTP interface.
	HTTPRequestsTotal   CounterVec   // method, path, status_code
	HTTPRequestDuration HistogramVec // method, path
	HTTPRequestSize     HistogramVec // method, path
	HTTPResponseSize    HistogramVec // method, path
	HTTPActiveRequests  GaugeVec     // method

	// Document pipeline.
	DocumentsIngestedTotal    CounterVec   // source, status
	DocumentsReprocessedTotal CounterVec   // status
	IngestDuration            HistogramVec // source
	ClassificationsTotal      CounterVec   // category, doc_type
	ClassificationConfidence  HistogramVec // category
	UrgentDocumentsTotal      CounterVec   // urgency
	FieldsExtractedTotal      CounterVec   // doc_type
	AssistRequestsTotal       CounterVec   // status
	AssistRequestDuration     HistogramVec // no labels

	// Case building.
	CaseBuildsTotal   CounterVec   // source
	CaseBuildDuration HistogramVec // no labels
	CacheHitsTotal    CounterVec   // cache
	CacheMissesTotal  CounterVec   // cache

	// Messaging.
	EventsPublishedTotal CounterVec   // topic, status
	EventsConsumedTotal  CounterVec   // topic, status
	EventHandleDuration  HistogramVec // topic
	DeadLettersTotal     CounterVec   // topic

	// Storage infrastructure.
	DBQueryDuration        HistogramVec // operation
	DBPoolConnections      GaugeVec     // state
	SearchOperationsTotal  CounterVec   // operation, status
	StorageOperationsTotal CounterVec   // operation, status

	// Health.
	ComponentUp GaugeVec   // component
	ErrorsTotal CounterVec // component, code
}

// NewAppMetrics registers every instrument on the collector. Safe to call
// twice against the same collector; registration is get-or-create.
func NewAppMetrics(c MetricsCollector) *AppMetrics {
	return &AppMetrics{
		HTTPRequestsTotal: c.RegisterCounter("http_requests_total",
			"Completed HTTP requests.", "method", "path", "status_code"),
		HTTPRequestDuration: c.RegisterHistogram("http_request_duration_seconds",
			"HTTP request latency.", DefaultHTTPDurationBuckets, "method", "path"),
		HTTPRequestSize: c.RegisterHistogram("http_request_size_bytes",
			"HTTP request body size.", DefaultSizeBuckets, "method", "path"),
		HTTPResponseSize: c.RegisterHistogram("http_response_size_bytes",
			"HTTP response body size.", DefaultSizeBuckets, "method", "path"),
		HTTPActiveRequests: c.RegisterGauge("http_active_requests",
			"In-flight HTTP requests.", "method"),

		DocumentsIngestedTotal: c.RegisterCounter("documents_ingested_total",
			"Documents accepted into the pipeline.", "source", "status"),
		DocumentsReprocessedTotal: c.RegisterCounter("documents_reprocessed_total",
			"Documents re-run through the pipeline.", "status"),
		IngestDuration: c.RegisterHistogram("document_ingest_duration_seconds",
			"End-to-end intake latency per document.", DefaultPipelineDurationBuckets, "source"),
		ClassificationsTotal: c.RegisterCounter("classifications_total",
			"Documents classified, by outcome.", "category", "doc_type"),
		ClassificationConfidence: c.RegisterHistogram("classification_confidence",
			"Classifier confidence distribution.", DefaultConfidenceBuckets, "category"),
		UrgentDocumentsTotal: c.RegisterCounter("urgent_documents_total",
			"Documents by assessed urgency.", "urgency"),
		FieldsExtractedTotal: c.RegisterCounter("fields_extracted_total",
			"Fields extracted from documents.", "doc_type"),
		AssistRequestsTotal: c.RegisterCounter("assist_requests_total",
			"Calls to the assist service.", "status"),
		AssistRequestDuration: c.RegisterHistogram("assist_request_duration_seconds",
			"Assist service round-trip latency.", DefaultPipelineDurationBuckets),

		CaseBuildsTotal: c.RegisterCounter("case_builds_total",
			"Case file builds, by data source.", "source"),
		CaseBuildDuration: c.RegisterHistogram("case_build_duration_seconds",
			"Case file build latency.", DefaultHTTPDurationBuckets),
		CacheHitsTotal: c.RegisterCounter("cache_hits_total",
			"Cache lookups that found an entry.", "cache"),
		CacheMissesTotal: c.RegisterCounter("cache_misses_total",
			"Cache lookups that found nothing.", "cache"),

		EventsPublishedTotal: c.RegisterCounter("events_published_total",
			"Events written to the broker.", "topic", "status"),
		EventsConsumedTotal: c.RegisterCounter("events_consumed_total",
			"Events handled from the broker.", "topic", "status"),
		EventHandleDuration: c.RegisterHistogram("event_handle_duration_seconds",
			"Event handler latency.", DefaultPipelineDurationBuckets, "topic"),
		DeadLettersTotal: c.RegisterCounter("dead_letters_total",
			"Events routed to the dead-letter topic.", "topic"),

		DBQueryDuration: c.RegisterHistogram("db_query_duration_seconds",
			"Database statement latency.", DefaultDBDurationBuckets, "operation"),
		DBPoolConnections: c.RegisterGauge("db_pool_connections",
			"Database pool connections by state.", "state"),
		SearchOperationsTotal: c.RegisterCounter("search_operations_total",
			"Search cluster operations.", "operation", "status"),
		StorageOperationsTotal: c.RegisterCounter("storage_operations_total",
			"Object storage operations.", "operation", "status"),

		ComponentUp: c.RegisterGauge("component_up",
			"1 when the component's last probe succeeded.", "component"),
		ErrorsTotal: c.RegisterCounter("errors_total",
			"Errors by component and code.", "component", "code"),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Recording helpers
// ─────────────────────────────────────────────────────────────────────────────
//
// All helpers tolerate a nil *AppMetrics so call sites never need a guard;
// components constructed without metrics simply record nothing.

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordHTTPRequest updates the full HTTP instrument group for one request.
func RecordHTTPRequest(m *AppMetrics, method, path string, statusCode int, duration time.Duration, requestSize, responseSize int64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if requestSize > 0 {
		m.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
	if responseSize > 0 {
		m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// RecordIngest counts one intake attempt. Source is "api" for synchronous
// uploads and "queue" for documents drained from the ingest topic.
func RecordIngest(m *AppMetrics, source string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.DocumentsIngestedTotal.WithLabelValues(source, statusLabel(err)).Inc()
	m.IngestDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordReprocess counts one reprocessing attempt.
func RecordReprocess(m *AppMetrics, err error) {
	if m == nil {
		return
	}
	m.DocumentsReprocessedTotal.WithLabelValues(statusLabel(err)).Inc()
}

// RecordClassification records one classified document.
func RecordClassification(m *AppMetrics, category, docType string, confidence float64, urgency string) {
	if m == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(category, docType).Inc()
	m.ClassificationConfidence.WithLabelValues(category).Observe(confidence)
	if urgency != "" {
		m.UrgentDocumentsTotal.WithLabelValues(urgency).Inc()
	}
}

// RecordFieldsExtracted adds the number of fields pulled from one document.
func RecordFieldsExtracted(m *AppMetrics, docType string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.FieldsExtractedTotal.WithLabelValues(docType).Add(float64(count))
}

// RecordAssistCall counts one assist service round trip.
func RecordAssistCall(m *AppMetrics, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.AssistRequestsTotal.WithLabelValues(statusLabel(err)).Inc()
	m.AssistRequestDuration.WithLabelValues().Observe(duration.Seconds())
}

// RecordCaseBuild counts one case file build. Source is "cache" when the
// snapshot was served from Redis and "store" when it was rebuilt from
// Postgres.
func RecordCaseBuild(m *AppMetrics, fromCache bool, duration time.Duration) {
	if m == nil {
		return
	}
	source := "store"
	if fromCache {
		source = "cache"
	}
	m.CaseBuildsTotal.WithLabelValues(source).Inc()
	m.CaseBuildDuration.WithLabelValues().Observe(duration.Seconds())
}

// RecordCacheAccess counts one cache lookup outcome.
func RecordCacheAccess(m *AppMetrics, cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordEventPublished counts one publish attempt.
func RecordEventPublished(m *AppMetrics, topic string, err error) {
	if m == nil {
		return
	}
	m.EventsPublishedTotal.WithLabelValues(topic, statusLabel(err)).Inc()
}

// RecordEventConsumed counts one handled event including retries that
// eventually succeeded.
func RecordEventConsumed(m *AppMetrics, topic string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.EventsConsumedTotal.WithLabelValues(topic, statusLabel(err)).Inc()
	m.EventHandleDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// RecordDeadLetter counts one event parked on the dead-letter topic. The
// label is the topic the event originally came from.
func RecordDeadLetter(m *AppMetrics, topic string) {
	if m == nil {
		return
	}
	m.DeadLettersTotal.WithLabelValues(topic).Inc()
}

// RecordDBQuery records one statement. Failures also count toward
// errors_total under the postgres component.
func RecordDBQuery(m *AppMetrics, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		RecordError(m, "postgres", err)
	}
}

// SetDBPoolStats publishes pool occupancy gauges.
func SetDBPoolStats(m *AppMetrics, acquired, idle int) {
	if m == nil {
		return
	}
	m.DBPoolConnections.WithLabelValues("acquired").Set(float64(acquired))
	m.DBPoolConnections.WithLabelValues("idle").Set(float64(idle))
}

// RecordSearchOperation counts one search cluster call.
func RecordSearchOperation(m *AppMetrics, operation string, err error) {
	if m == nil {
		return
	}
	m.SearchOperationsTotal.WithLabelValues(operation, statusLabel(err)).Inc()
	if err != nil {
		RecordError(m, "opensearch", err)
	}
}

// RecordStorageOperation counts one object storage call.
func RecordStorageOperation(m *AppMetrics, operation string, err error) {
	if m == nil {
		return
	}
	m.StorageOperationsTotal.WithLabelValues(operation, statusLabel(err)).Inc()
	if err != nil {
		RecordError(m, "minio", err)
	}
}

// SetComponentUp publishes a component health probe result.
func SetComponentUp(m *AppMetrics, component string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1.0
	}
	m.ComponentUp.WithLabelValues(component).Set(v)
}

// RecordError counts one failure labelled with the application error code.
func RecordError(m *AppMetrics, component string, err error) {
	if m == nil || err == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, string(errors.GetCode(err))).Inc()
}
