package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"brain2-extractor/application/extraction"
	"brain2-extractor/application/ports"
	"brain2-extractor/application/services"
	"brain2-extractor/domain/config"
	"brain2-extractor/domain/events"
	"brain2-extractor/infrastructure/persistence/memory"
	"brain2-extractor/interfaces/http/rest/handlers"
	"brain2-extractor/pkg/observability"
	"brain2-extractor/pkg/ratelimit"
)

const (
	nodeA1 = `(id: "a1", node_type: "claim", title: "Cells divide", description: "Mitosis splits one cell into two")`
	nodeB2 = `(id: "b2", node_type: "evidence", title: "Microscopy", description: "Observed under a microscope")`
	edgeAB = `(source_id: "b2", target_id: "a1", edge_type: "support")`
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Type    string          `json:"type"`
	Code    string          `json:"code"`
}

type summaryBody struct {
	SessionID    string `json:"session_id"`
	NodesEmitted int    `json:"nodes_emitted"`
	EdgesEmitted int    `json:"edges_emitted"`
	Reason       string `json:"reason"`
}

type graphBody struct {
	Nodes []struct {
		Title    string `json:"title"`
		Category string `json:"category"`
		IsRoot   bool   `json:"is_root"`
	} `json:"nodes"`
	Edges []struct {
		Relationship string `json:"relationship"`
	} `json:"edges"`
	Summary summaryBody `json:"summary"`
}

type fakeOpener struct {
	mu        sync.Mutex
	fragments []string
}

func (f *fakeOpener) Open(ctx context.Context, prompt string) (ports.StreamSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &sliceSource{fragments: append([]string(nil), f.fragments...)}, nil
}

type sliceSource struct {
	fragments []string
}

func (s *sliceSource) Next(ctx context.Context) (string, error) {
	if len(s.fragments) == 0 {
		return "", io.EOF
	}
	next := s.fragments[0]
	s.fragments = s.fragments[1:]
	return next, nil
}

func (s *sliceSource) Close() error { return nil }

type testServer struct {
	handler   http.Handler
	collector *observability.Collector
	manager   *services.SessionManager
}

func newTestServer(t *testing.T, generator *fakeOpener) *testServer {
	t.Helper()
	return newTestServerWithConfig(t, generator, RouterConfig{EnableCORS: true, DefaultChunkSize: 16})
}

func newTestServerWithConfig(t *testing.T, generator *fakeOpener, cfg RouterConfig) *testServer {
	t.Helper()

	cache := memory.NewCache(0)
	t.Cleanup(cache.Close)

	collector := observability.NewCollector("test")
	manager := services.NewSessionManager(services.ManagerConfig{MaxSessions: 2}, services.ManagerDeps{
		Policy:   config.DefaultExtractionPolicy(),
		Sink:     memory.NewGraphSink(),
		Finished: cache,
		Recorder: collector,
		Clock:    extraction.NewManualClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		Logger:   zap.NewNop(),
	})

	var opener handlers.StreamOpener
	if generator != nil {
		opener = generator
	}
	router := NewRouter(cfg, manager, opener, collector, nil, zap.NewNop())
	return &testServer{handler: router.Setup(), collector: collector, manager: manager}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, nil)

	rec, _ := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec, _ = s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, id := range []string{"s1", "s2"} {
		rec, _ = s.do(t, http.MethodPost, "/api/v2/sessions", map[string]string{"session_id": id})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec, _ = s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_SessionLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := s.do(t, http.MethodPost, "/api/v2/sessions", map[string]string{"session_id": "s1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "v2", rec.Header().Get("X-API-Version"))
	var created summaryBody
	decodeData(t, env, &created)
	assert.Equal(t, "s1", created.SessionID)

	for _, fragment := range []string{nodeA1, nodeB2[:30], nodeB2[30:], edgeAB} {
		rec, _ = s.do(t, http.MethodPost, "/api/v2/sessions/s1/fragments", map[string]string{"text": fragment})
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	}

	rec, env = s.do(t, http.MethodGet, "/api/v2/sessions/s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active summaryBody
	decodeData(t, env, &active)
	assert.Equal(t, 2, active.NodesEmitted)
	assert.Equal(t, 1, active.EdgesEmitted)

	rec, env = s.do(t, http.MethodGet, "/api/v2/sessions/s1/graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var partial graphBody
	decodeData(t, env, &partial)
	require.Len(t, partial.Nodes, 2)
	assert.True(t, partial.Nodes[0].IsRoot)
	assert.Equal(t, "evidence", partial.Nodes[1].Category)

	rec, env = s.do(t, http.MethodPost, "/api/v2/sessions/s1/end", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var final summaryBody
	decodeData(t, env, &final)
	assert.Equal(t, "end_of_stream", final.Reason)

	// Finished sessions stay readable and their graph is persisted
	rec, _ = s.do(t, http.MethodGet, "/api/v2/sessions/s1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/api/v2/sessions/s1/graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var persisted graphBody
	decodeData(t, env, &persisted)
	assert.Len(t, persisted.Nodes, 2)
	assert.Len(t, persisted.Edges, 1)

	rec, env = s.do(t, http.MethodPost, "/api/v2/sessions/s1/fragments", map[string]string{"text": nodeA1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SESSION_NOT_ACTIVE", env.Code)

	rec, _ = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_nodes_emitted_total")
}

func TestRouter_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	rec, _ := s.do(t, http.MethodPost, "/api/v2/sessions", map[string]string{"session_id": "dup"})
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"duplicate session", http.MethodPost, "/api/v2/sessions", map[string]string{"session_id": "dup"}, http.StatusConflict, "SESSION_EXISTS"},
		{"unknown session", http.MethodGet, "/api/v2/sessions/nope", nil, http.StatusNotFound, ""},
		{"unknown fields", http.MethodPost, "/api/v2/sessions/dup/fragments", map[string]string{"txt": "x"}, http.StatusBadRequest, "INVALID_BODY"},
		{"missing text", http.MethodPost, "/api/v2/sessions/dup/fragments", map[string]string{"text": ""}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"missing reason", http.MethodPost, "/api/v2/sessions/dup/fail", map[string]string{}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"generation disabled", http.MethodPost, "/api/v2/sessions/dup/generate", map[string]string{"prompt": "x"}, http.StatusServiceUnavailable, "GENERATION_DISABLED"},
		{"negative chunk size", http.MethodPost, "/api/v2/extract", map[string]interface{}{"text": nodeA1, "chunk_size": -1}, http.StatusBadRequest, "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code != "" {
				assert.Equal(t, tt.code, env.Code)
			}
		})
	}
}

func TestRouter_FailSession(t *testing.T) {
	s := newTestServer(t, nil)

	rec, _ := s.do(t, http.MethodPost, "/api/v2/sessions", map[string]string{"session_id": "s1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = s.do(t, http.MethodPost, "/api/v2/sessions/s1/fragments", map[string]string{"text": nodeA1})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/v2/sessions/s1/fail", map[string]string{"reason": "model overloaded"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v2/sessions/s1/graph", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "failed sessions are not persisted")
}

func TestRouter_Extract(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := s.do(t, http.MethodPost, "/api/v2/extract", map[string]interface{}{
		"text": nodeA1 + "\n" + nodeB2 + "\n" + edgeAB,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result graphBody
	decodeData(t, env, &result)
	require.Len(t, result.Nodes, 2)
	assert.Equal(t, "Cells divide", result.Nodes[0].Title)
	require.Len(t, result.Edges, 1)
	assert.Equal(t, "support", result.Edges[0].Relationship)
	assert.Equal(t, "end_of_stream", result.Summary.Reason)
	assert.Equal(t, 0, s.manager.Active())
}

func TestRouter_Generate(t *testing.T) {
	s := newTestServer(t, &fakeOpener{fragments: []string{nodeA1[:20], nodeA1[20:], nodeB2, edgeAB}})

	rec, _ := s.do(t, http.MethodPost, "/api/v2/sessions", map[string]string{"session_id": "g1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/v2/sessions/g1/generate", map[string]string{"prompt": "Explain mitosis"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		rec, env := s.do(t, http.MethodGet, "/api/v2/sessions/g1", nil)
		if rec.Code != http.StatusOK {
			return false
		}
		var summary summaryBody
		decodeData(t, env, &summary)
		return summary.Reason == "end_of_stream" && summary.EdgesEmitted == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRouter_GenerateRateLimit(t *testing.T) {
	s := newTestServerWithConfig(t, &fakeOpener{fragments: []string{nodeA1}}, RouterConfig{
		DefaultChunkSize: 16,
		GenerateLimiter:  ratelimit.NewSlidingWindowLimiter(1, time.Minute),
	})

	for _, id := range []string{"r1", "r2"} {
		rec, _ := s.do(t, http.MethodPost, "/api/v2/sessions", map[string]string{"session_id": id})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, _ := s.do(t, http.MethodPost, "/api/v2/sessions/r1/generate", map[string]string{"prompt": "Explain mitosis"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec, env := s.do(t, http.MethodPost, "/api/v2/sessions/r2/generate", map[string]string{"prompt": "Explain meiosis"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", env.Type)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	rec, _ = s.do(t, http.MethodPost, "/api/v2/sessions/r2/fragments", map[string]string{"text": nodeB2})
	assert.Equal(t, http.StatusAccepted, rec.Code, "only generation is limited")
}

func TestRouter_WebSocketStream(t *testing.T) {
	s := newTestServer(t, nil)
	server := httptest.NewServer(s.handler)
	defer server.Close()

	rec, _ := s.do(t, http.MethodPost, "/api/v2/sessions", map[string]string{"session_id": "ws1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v2/sessions/ws1/ws"
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	for _, fragment := range []string{nodeA1, nodeB2, edgeAB} {
		rec, _ := s.do(t, http.MethodPost, "/api/v2/sessions/ws1/fragments", map[string]string{"text": fragment})
		require.Equal(t, http.StatusAccepted, rec.Code)
	}
	rec, _ = s.do(t, http.MethodPost, "/api/v2/sessions/ws1/end", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	counts := map[string]int{}
	var last string
	for {
		var msg struct {
			Type      string `json:"type"`
			SessionID string `json:"session_id"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			assert.True(t, gorillaws.IsCloseError(err, gorillaws.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		counts[msg.Type]++
		last = msg.Type
	}

	assert.Equal(t, 1, counts["connection.established"])
	assert.Equal(t, 2, counts[events.TypeNodeReady])
	assert.Equal(t, 1, counts[events.TypeEdgeReady])
	assert.Positive(t, counts[events.TypeFieldUpdated])
	assert.Equal(t, events.TypeSessionCompleted, last)
}

func TestRouter_WebSocketUnknownSession(t *testing.T) {
	s := newTestServer(t, nil)
	server := httptest.NewServer(s.handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v2/sessions/missing/ws"
	_, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
