package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dipan99/mindmapper/domain/config"
	"github.com/dipan99/mindmapper/domain/core/aggregates"
	"github.com/dipan99/mindmapper/domain/core/entities"
	"github.com/dipan99/mindmapper/domain/core/valueobjects"
)

func TestCollectorEngineMetrics(t *testing.T) {
	c := NewCollector("mindmapper")

	c.MaterializationFinished("completed", 200*time.Millisecond)
	c.MaterializationFinished("completed", time.Second)
	c.MaterializationFinished("failed", time.Second)
	c.MaterializationRetried()
	c.IntentDispatched("expand", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Materializations.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Materializations.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.MaterializationRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Intents.WithLabelValues("expand", "ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.MaterializationSeconds))
}

func TestCollectorObservesGraph(t *testing.T) {
	c := NewCollector("mindmapper")
	graph := aggregates.NewGraph(config.DefaultDomainConfig())
	unsubscribe := graph.Subscribe(c)
	defer unsubscribe()

	pos, err := valueobjects.NewPosition(0, 0)
	require.NoError(t, err)
	queryID, err := valueobjects.NewNodeID(valueobjects.KindQuery, 1)
	require.NoError(t, err)
	answerID, err := valueobjects.NewNodeID(valueobjects.KindAnswer, 2)
	require.NoError(t, err)

	query, err := entities.NewQueryNode(queryID, "q", pos)
	require.NoError(t, err)
	answer, err := entities.NewAnswerNode(answerID, []string{"b"}, pos)
	require.NoError(t, err)
	edge, err := entities.NewEdge(queryID, answerID)
	require.NoError(t, err)

	require.NoError(t, graph.AddNode(query))
	require.NoError(t, graph.AddNode(answer))
	require.NoError(t, graph.AddEdge(edge))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.GraphNodes.WithLabelValues("query")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.GraphNodes.WithLabelValues("answer")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.GraphNodes.WithLabelValues("sources")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.GraphEdges))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.GraphVersion))
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector("mindmapper")
	c.RecordHTTPRequest(http.MethodGet, "/api/graph", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `mindmapper_http_requests_total{method="GET",route="/api/graph",status="OK"} 1`))
}

func TestIndependentCollectors(t *testing.T) {
	a := NewCollector("mindmapper")
	b := NewCollector("mindmapper")
	a.MaterializationRetried()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.MaterializationRetries))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.MaterializationRetries))
}

func TestDisabledTracing(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{})
	require.NoError(t, err)

	_, span := tp.StartSpan(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestTracerProviderRecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp, err := newTracerProvider(TracingConfig{ServiceName: "mindmapper-test", Environment: "test"}, sdktrace.WithSyncer(exporter))
	require.NoError(t, err)

	_, span := tp.Tracer().Start(context.Background(), "materialize")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "materialize", spans[0].Name)

	var service string
	for _, attr := range spans[0].Resource.Attributes() {
		if attr.Key == "service.name" {
			service = attr.Value.AsString()
		}
	}
	assert.Equal(t, "mindmapper-test", service)
	require.NoError(t, tp.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, createSampler(TracingConfig{SampleRate: 0.1}).Description(), "TraceIDRatioBased")
	assert.Equal(t, "AlwaysOnSampler", createSampler(TracingConfig{}).Description())
}
