package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipan99/mindmapper/application/engine"
	"github.com/dipan99/mindmapper/application/ports"
	"github.com/dipan99/mindmapper/domain/config"
	"github.com/dipan99/mindmapper/infrastructure/answering"
	"github.com/dipan99/mindmapper/infrastructure/search"
	"github.com/dipan99/mindmapper/interfaces/http/rest/handlers"
)

type recordedRequest struct {
	method string
	route  string
	status int
}

type fakeRecorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (f *fakeRecorder) RecordHTTPRequest(method, route string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, recordedRequest{method, route, status})
}

func (f *fakeRecorder) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type testServer struct {
	engine   *engine.Engine
	handler  http.Handler
	recorder *fakeRecorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.DefaultDomainConfig()
	cfg.MaterializeDelay = 0

	sources := search.NewStaticSearch().WithFallback(
		ports.SearchResult{URL: "https://www.ipcc.ch", Title: "IPCC"},
	)
	e, err := engine.New(
		engine.WithConfig(cfg),
		engine.WithAnsweringService(answering.NewPlaceholderProvider()),
		engine.WithSearchService(sources),
		engine.WithSeedDemo(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(ctx)
	})

	recorder := &fakeRecorder{}
	router := NewRouter(e, RouterConfig{
		Recorder:       recorder,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) }),
	}, nil)
	return &testServer{engine: e, handler: router.Setup(), recorder: recorder}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.engine.Wait(ctx))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetGraphAndNodes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/graph", "")
	require.Equal(t, http.StatusOK, rec.Code)
	graph := decode[struct {
		Nodes []map[string]interface{} `json:"nodes"`
		Edges []map[string]interface{} `json:"edges"`
	}](t, rec)
	assert.Len(t, graph.Nodes, 2)
	assert.Len(t, graph.Edges, 1)

	rec = s.do(t, http.MethodGet, "/api/v1/nodes/answer-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	node := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "answer", node["type"])
	assert.Equal(t, recordedRequest{http.MethodGet, "/api/v1/nodes/{nodeID}", http.StatusOK}, s.recorder.last())

	rec = s.do(t, http.MethodGet, "/api/v1/nodes/query-99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[handlers.ErrorResponse](t, rec).Type)

	rec = s.do(t, http.MethodGet, "/api/v1/nodes/garbage", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/graph/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, decode[map[string]interface{}](t, rec)["nodeCount"])
}

func TestSubmitQuery(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/queries", `{"text":"What is Climate Change?"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	pending := decode[handlers.MaterializationResponse](t, rec)
	assert.Equal(t, "query-2", pending.QueryID)

	s.wait(t)

	rec = s.do(t, http.MethodGet, "/api/v1/queries/query-2/materialization", "")
	require.Equal(t, http.StatusOK, rec.Code)
	done := decode[handlers.MaterializationResponse](t, rec)
	assert.Equal(t, "completed", done.State)
	assert.Equal(t, "answer-3", done.AnswerID)
	assert.Equal(t, 1, done.Attempts)

	rec = s.do(t, http.MethodDelete, "/api/v1/queries/query-2/materialization", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubmitQueryRejectsBadInput(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		body     string
		wantType string
	}{
		{"missing text", `{}`, "VALIDATION_ERROR"},
		{"blank text", `{"text":"   "}`, "EMPTY_INPUT"},
		{"unknown field", `{"text":"q","extra":1}`, "VALIDATION_ERROR"},
		{"malformed", `{"text":`, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/queries", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantType, decode[handlers.ErrorResponse](t, rec).Type)
		})
	}
	assert.Equal(t, 2, s.engine.Stats().NodeCount)
}

func TestBulletIntents(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/answers/answer-1/bullets/1/expand", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	expanded := decode[handlers.BulletIntentResponse](t, rec)
	assert.Equal(t, "expand", expanded.Action)
	assert.Equal(t, "query-2", expanded.NodeID)
	assert.Equal(t, "e-answer-1-query-2", expanded.EdgeID)
	require.NotNil(t, expanded.Materialization)

	rec = s.do(t, http.MethodPost, "/api/v1/answers/answer-1/bullets/0/sources", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	sourced := decode[handlers.BulletIntentResponse](t, rec)
	assert.Equal(t, "sources", sourced.Action)
	assert.Nil(t, sourced.Materialization)

	rec = s.do(t, http.MethodPost, "/api/v1/answers/answer-1/bullets/2/custom_query", `{"text":"Who signed it?"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	custom := decode[handlers.BulletIntentResponse](t, rec)
	node, err := s.engine.Node(custom.NodeID)
	require.NoError(t, err)
	assert.Equal(t, "Who signed it?", node.Text())

	s.wait(t)
}

func TestBulletIntentErrors(t *testing.T) {
	s := newTestServer(t)
	before := s.engine.Stats()

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantType   string
	}{
		{"index out of range", "/api/v1/answers/answer-1/bullets/5/expand", "", http.StatusUnprocessableEntity, "INVALID_BULLET_REFERENCE"},
		{"non-numeric index", "/api/v1/answers/answer-1/bullets/x/expand", "", http.StatusUnprocessableEntity, "INVALID_BULLET_REFERENCE"},
		{"unknown answer", "/api/v1/answers/answer-9/bullets/0/expand", "", http.StatusUnprocessableEntity, "INVALID_BULLET_REFERENCE"},
		{"stale bullet text", "/api/v1/answers/answer-1/bullets/0/expand", `{"bulletText":"something else"}`, http.StatusUnprocessableEntity, "INVALID_BULLET_REFERENCE"},
		{"unknown action", "/api/v1/answers/answer-1/bullets/0/summarize", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"blank custom query", "/api/v1/answers/answer-1/bullets/0/custom_query", `{"text":" "}`, http.StatusBadRequest, "EMPTY_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantType, decode[handlers.ErrorResponse](t, rec).Type)
		})
	}
	assert.Equal(t, before, s.engine.Stats())
}

func TestCancelMaterializationRoute(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.MaterializeDelay = time.Hour
	e, err := engine.New(
		engine.WithConfig(cfg),
		engine.WithAnsweringService(answering.NewPlaceholderProvider()),
		engine.WithSearchService(search.NewStaticSearch()),
	)
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(ctx)
	}()
	handler := NewRouter(e, RouterConfig{}, nil).Setup()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/queries", strings.NewReader(`{"text":"slow"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/queries/query-1/materialization", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Wait(ctx))

	// a cancelled query can be answered again
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/queries/query-1/materialization", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "pending", decode[handlers.MaterializationResponse](t, rec).State)
}

func TestListNodes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/nodes?kind=answer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	answers := decode[[]map[string]interface{}](t, rec)
	require.Len(t, answers, 1)
	assert.Equal(t, "answer-1", answers[0]["id"])

	rec = s.do(t, http.MethodGet, "/api/v1/nodes?kind=sources", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/nodes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]interface{}](t, rec), 2)

	rec = s.do(t, http.MethodGet, "/api/v1/nodes?kind=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnectRoute(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/edges", `{"source":"answer-1","target":"query-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[handlers.ConnectResponse](t, rec)
	assert.Equal(t, "e-answer-1-query-1", created.EdgeID)

	graph := s.engine.Snapshot()
	edge, ok := graph.Edge("e-answer-1-query-1")
	require.True(t, ok)
	assert.Equal(t, "link", string(edge.Kind()))

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantType   string
	}{
		{"existing edge", `{"source":"answer-1","target":"query-1"}`, http.StatusConflict, "DUPLICATE_ID"},
		{"missing endpoint", `{"source":"query-1","target":"sources-9"}`, http.StatusConflict, "DANGLING_EDGE"},
		{"self link", `{"source":"query-1","target":"query-1"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing target", `{"source":"query-1"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/edges", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantType, decode[handlers.ErrorResponse](t, rec).Type)
		})
	}
	assert.Equal(t, 2, s.engine.Stats().EdgeCount)
}

func TestAppendRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/answers/answer-1/bullets", `{"text":"Oceans absorb most of the extra heat"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 4, decode[handlers.AppendBulletResponse](t, rec).Index)

	rec = s.do(t, http.MethodPost, "/api/v1/answers/query-1/bullets", `{"text":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/answers/answer-1/bullets/4/sources", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	sourcesID := decode[handlers.BulletIntentResponse](t, rec).NodeID

	rec = s.do(t, http.MethodPost, "/api/v1/sources/"+sourcesID+"/items", `{"items":[{"url":"https://climate.nasa.gov/","title":"NASA"}]}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	node, err := s.engine.Node(sourcesID)
	require.NoError(t, err)
	require.Len(t, node.Items(), 2)
	assert.Equal(t, "NASA", node.Items()[1].Title)

	rec = s.do(t, http.MethodPost, "/api/v1/sources/"+sourcesID+"/items", `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetryMaterializationRoute(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/queries/query-1/materialization", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "the demo query is already answered")

	rec = s.do(t, http.MethodPost, "/api/v1/queries/answer-1/materialization", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
