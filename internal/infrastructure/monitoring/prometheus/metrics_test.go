package prometheus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/opentenancy/caseintel/pkg/errors"
)

func newTestAppMetrics(t *testing.T) (*AppMetrics, MetricsCollector) {
	t.Helper()
	c := newTestCollector(t)
	return NewAppMetrics(c), c
}

func TestNewAppMetrics_RegistersAllGroups(t *testing.T) {
	m, _ := newTestAppMetrics(t)
	require.NotNil(t, m)

	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.DocumentsIngestedTotal)
	assert.NotNil(t, m.ClassificationsTotal)
	assert.NotNil(t, m.AssistRequestsTotal)
	assert.NotNil(t, m.CaseBuildsTotal)
	assert.NotNil(t, m.EventsPublishedTotal)
	assert.NotNil(t, m.DBQueryDuration)
	assert.NotNil(t, m.ComponentUp)
	assert.NotNil(t, m.ErrorsTotal)
}

func TestNewAppMetrics_Reentrant(t *testing.T) {
	c := newTestCollector(t)
	first := NewAppMetrics(c)
	second := NewAppMetrics(c)

	first.DocumentsIngestedTotal.WithLabelValues("api", "ok").Inc()
	second.DocumentsIngestedTotal.WithLabelValues("api", "ok").Inc()

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_documents_ingested_total{source="api",status="ok"} 2`)
}

func TestRecordHTTPRequest(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordHTTPRequest(m, "GET", "/api/v1/documents", 200, 100*time.Millisecond, 1024, 2048)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_http_requests_total{method="GET",path="/api/v1/documents",status_code="200"} 1`)
	assert.Contains(t, output, `test_unit_http_request_duration_seconds_count{method="GET",path="/api/v1/documents"} 1`)
	assert.Contains(t, output, `test_unit_http_request_size_bytes_sum{method="GET",path="/api/v1/documents"} 1024`)
	assert.Contains(t, output, `test_unit_http_response_size_bytes_sum{method="GET",path="/api/v1/documents"} 2048`)
}

func TestRecordHTTPRequest_SkipsZeroSizes(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordHTTPRequest(m, "GET", "/healthz", 200, time.Millisecond, 0, 0)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_http_requests_total{method="GET",path="/healthz",status_code="200"} 1`)
	assert.NotContains(t, output, `test_unit_http_request_size_bytes_count{method="GET",path="/healthz"}`)
}

func TestRecordIngest(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordIngest(m, "api", 250*time.Millisecond, nil)
	RecordIngest(m, "queue", 100*time.Millisecond, assert.AnError)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_documents_ingested_total{source="api",status="ok"} 1`)
	assert.Contains(t, output, `test_unit_documents_ingested_total{source="queue",status="error"} 1`)
	assert.Contains(t, output, `test_unit_document_ingest_duration_seconds_count{source="api"} 1`)
}

func TestRecordReprocess(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordReprocess(m, nil)
	RecordReprocess(m, assert.AnError)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_documents_reprocessed_total{status="ok"} 1`)
	assert.Contains(t, output, `test_unit_documents_reprocessed_total{status="error"} 1`)
}

func TestRecordClassification(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordClassification(m, "COURT", "SUMMONS", 0.85, "critical")

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_classifications_total{category="COURT",doc_type="SUMMONS"} 1`)
	assert.Contains(t, output, `test_unit_classification_confidence_count{category="COURT"} 1`)
	assert.Contains(t, output, `test_unit_urgent_documents_total{urgency="critical"} 1`)
}

func TestRecordClassification_EmptyUrgencySkipsCounter(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordClassification(m, "UNKNOWN", "UNCLASSIFIED", 0.1, "")

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_classifications_total{category="UNKNOWN",doc_type="UNCLASSIFIED"} 1`)
	assert.NotContains(t, output, "test_unit_urgent_documents_total{")
}

func TestRecordFieldsExtracted(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordFieldsExtracted(m, "SUMMONS", 7)
	RecordFieldsExtracted(m, "SUMMONS", 0)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_fields_extracted_total{doc_type="SUMMONS"} 7`)
}

func TestRecordAssistCall(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordAssistCall(m, 2*time.Second, nil)
	RecordAssistCall(m, time.Second, assert.AnError)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_assist_requests_total{status="ok"} 1`)
	assert.Contains(t, output, `test_unit_assist_requests_total{status="error"} 1`)
	assert.Contains(t, output, "test_unit_assist_request_duration_seconds_count 2")
}

func TestRecordCaseBuild(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordCaseBuild(m, true, 2*time.Millisecond)
	RecordCaseBuild(m, false, 40*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_case_builds_total{source="cache"} 1`)
	assert.Contains(t, output, `test_unit_case_builds_total{source="store"} 1`)
	assert.Contains(t, output, "test_unit_case_build_duration_seconds_count 2")
}

func TestRecordCacheAccess(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordCacheAccess(m, "case", true)
	RecordCacheAccess(m, "case", true)
	RecordCacheAccess(m, "case", false)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_cache_hits_total{cache="case"} 2`)
	assert.Contains(t, output, `test_unit_cache_misses_total{cache="case"} 1`)
}

func TestRecordEventPublished(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordEventPublished(m, "caseintel.document.classified", nil)
	RecordEventPublished(m, "caseintel.document.classified", assert.AnError)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_events_published_total{status="error",topic="caseintel.document.classified"} 1`)
	assert.Contains(t, output, `test_unit_events_published_total{status="ok",topic="caseintel.document.classified"} 1`)
}

func TestRecordEventConsumed(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordEventConsumed(m, "caseintel.document.ingested", 30*time.Millisecond, nil)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_events_consumed_total{status="ok",topic="caseintel.document.ingested"} 1`)
	assert.Contains(t, output, `test_unit_event_handle_duration_seconds_count{topic="caseintel.document.ingested"} 1`)
}

func TestRecordDeadLetter(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordDeadLetter(m, "caseintel.document.ingested")

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_dead_letters_total{topic="caseintel.document.ingested"} 1`)
}

func TestRecordDBQuery(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordDBQuery(m, "select", 10*time.Millisecond, nil)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_db_query_duration_seconds_count{operation="select"} 1`)
	assert.NotContains(t, output, "test_unit_errors_total{")
}

func TestRecordDBQuery_ErrorCountsTowardErrors(t *testing.T) {
	m, c := newTestAppMetrics(t)

	err := apperrors.New(apperrors.ErrCodeDatabaseError, "insert failed")
	RecordDBQuery(m, "insert", 5*time.Millisecond, err)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_db_query_duration_seconds_count{operation="insert"} 1`)
	assert.Contains(t, output, `test_unit_errors_total{code="COMMON_012",component="postgres"} 1`)
}

func TestSetDBPoolStats(t *testing.T) {
	m, c := newTestAppMetrics(t)

	SetDBPoolStats(m, 3, 7)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_db_pool_connections{state="acquired"} 3`)
	assert.Contains(t, output, `test_unit_db_pool_connections{state="idle"} 7`)
}

func TestRecordSearchOperation_Error(t *testing.T) {
	m, c := newTestAppMetrics(t)

	err := apperrors.New(apperrors.ErrCodeSearchIndexFailed, "bulk rejected")
	RecordSearchOperation(m, "index", err)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_search_operations_total{operation="index",status="error"} 1`)
	assert.Contains(t, output, `test_unit_errors_total{code="SRCH_003",component="opensearch"} 1`)
}

func TestRecordStorageOperation(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordStorageOperation(m, "put", nil)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_storage_operations_total{operation="put",status="ok"} 1`)
}

func TestSetComponentUp(t *testing.T) {
	m, c := newTestAppMetrics(t)

	SetComponentUp(m, "postgres", true)
	SetComponentUp(m, "kafka", false)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_component_up{component="postgres"} 1`)
	assert.Contains(t, output, `test_unit_component_up{component="kafka"} 0`)
}

func TestRecordError_UnknownCode(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordError(m, "worker", assert.AnError)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_errors_total{code="UNKNOWN",component="worker"} 1`)
}

func TestRecordHelpers_NilMetrics(t *testing.T) {
	RecordHTTPRequest(nil, "GET", "/", 200, 0, 0, 0)
	RecordIngest(nil, "api", 0, nil)
	RecordReprocess(nil, nil)
	RecordClassification(nil, "COURT", "SUMMONS", 1, "critical")
	RecordFieldsExtracted(nil, "SUMMONS", 1)
	RecordAssistCall(nil, 0, nil)
	RecordCaseBuild(nil, true, 0)
	RecordCacheAccess(nil, "case", true)
	RecordEventPublished(nil, "t", nil)
	RecordEventConsumed(nil, "t", 0, nil)
	RecordDeadLetter(nil, "t")
	RecordDBQuery(nil, "select", 0, nil)
	SetDBPoolStats(nil, 0, 0)
	RecordSearchOperation(nil, "index", nil)
	RecordStorageOperation(nil, "put", nil)
	SetComponentUp(nil, "postgres", true)
	RecordError(nil, "worker", assert.AnError)
}

func TestDefaultBuckets(t *testing.T) {
	assert.NotEmpty(t, DefaultHTTPDurationBuckets)
	assert.NotEmpty(t, DefaultPipelineDurationBuckets)
	assert.NotEmpty(t, DefaultDBDurationBuckets)
	assert.NotEmpty(t, DefaultSizeBuckets)
	assert.NotEmpty(t, DefaultConfidenceBuckets)
}

func TestConcurrentMetricRecording(t *testing.T) {
	m, c := newTestAppMetrics(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				RecordHTTPRequest(m, "GET", "/api/v1/cases", 200, time.Millisecond, 10, 10)
			}
		}()
	}
	wg.Wait()

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_http_requests_total{method="GET",path="/api/v1/cases",status_code="200"} 1000`)
}
