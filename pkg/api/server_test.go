package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dd0wney/cluso-bowtie/pkg/archive"
	"github.com/dd0wney/cluso-bowtie/pkg/auth"
	"github.com/dd0wney/cluso-bowtie/pkg/health"
	"github.com/dd0wney/cluso-bowtie/pkg/metrics"
	"github.com/dd0wney/cluso-bowtie/pkg/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const refinery = `{
  "nodes": [
    {"id": "threat_1", "data": {"baseLabel": "Overfill"}},
    {"id": "barrier_1", "data": {"baseLabel": "High level alarm", "meta": {"failed": true}}},
    {"id": "center_1", "data": {"baseLabel": "Loss of containment"}},
    {"id": "conseq_1", "data": {"baseLabel": "Pool fire"}}
  ],
  "edges": [
    {"source": "threat_1", "target": "barrier_1"},
    {"source": "barrier_1", "target": "center_1"},
    {"source": "center_1", "target": "conseq_1"},
    {"source": "center_1", "target": "ghost"}
  ]
}`

type testServer struct {
	*Server
	handler http.Handler
	events  *pubsub.PubSub
	metrics *metrics.Registry
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	reg := metrics.NewRegistry()
	events := pubsub.NewPubSub(reg)
	t.Cleanup(events.Shutdown)

	s, err := NewServer(opts, events, nil, reg)
	require.NoError(t, err)
	return &testServer{Server: s, handler: s.Handler(), events: events, metrics: reg}
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (ts *testServer) create(t *testing.T, doc string) string {
	t.Helper()
	rr := ts.do(t, "POST", "/diagrams", doc)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[DiagramResponse](t, rr).ID
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Options{Version: "1.2.3"})
	ts.create(t, "")

	rr := ts.do(t, "GET", "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)

	h := decode[HealthResponse](t, rr)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "1.2.3", h.Version)
	assert.Equal(t, 1, h.Diagrams)
	assert.False(t, h.Auth)
	assert.Empty(t, h.Archive)
}

func TestHealthProbes(t *testing.T) {
	ts := newTestServer(t, Options{MaxDiagrams: 1})

	rr := ts.do(t, "GET", "/health/live", "")
	require.Equal(t, http.StatusOK, rr.Code)
	live := decode[health.Response](t, rr)
	assert.Contains(t, live.Checks, "process")
	assert.Contains(t, live.Checks, "memory")

	rr = ts.do(t, "GET", "/health/ready", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, decode[health.Response](t, rr).Checks, "events")

	// A full store refuses creates, so the server is not ready
	ts.create(t, "")
	rr = ts.do(t, "GET", "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	ready := decode[health.Response](t, rr)
	assert.Equal(t, health.StatusUnhealthy, ready.Checks["diagrams"].Status)

	require.True(t, ts.Store().Delete(ts.Store().IDs()[0]))
	sink, err := archive.NewFileSink(t.TempDir())
	require.NoError(t, err)
	ts.SetArchiver(archive.New(sink, archive.Options{}, nil, nil))
	rr = ts.do(t, "GET", "/health/ready", "")
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, decode[health.Response](t, rr).Checks, "archive")

	ts.events.Shutdown()
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, "GET", "/health/ready", "").Code)
}

func TestCreateAndGetDiagram(t *testing.T) {
	ts := newTestServer(t, Options{})

	rr := ts.do(t, "POST", "/diagrams", refinery)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[DiagramResponse](t, rr)

	assert.True(t, strings.HasPrefix(created.ID, "diagram_"))
	assert.Equal(t, "/diagrams/"+created.ID, rr.Header().Get("Location"))
	assert.True(t, created.Report.TopEventBreached)
	assert.Equal(t, "center_1", created.Report.TopEventID)
	require.Len(t, created.Warnings, 1, "dangling edge to ghost")

	rr = ts.do(t, "GET", "/diagrams/"+created.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[DiagramResponse](t, rr)
	n, ok := got.Graph.FindNode("conseq_1")
	require.True(t, ok)
	assert.True(t, n.Data.Meta.Breached)
	assert.NotNil(t, n.Style)

	rr = ts.do(t, "GET", "/diagrams", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[ListResponse](t, rr)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, created.ID, list.Diagrams[0].ID)
	assert.Equal(t, 4, list.Diagrams[0].Nodes)
	assert.True(t, list.Diagrams[0].TopEventBreached)
}

func TestCreateDiagram_Rejects(t *testing.T) {
	ts := newTestServer(t, Options{MaxDiagrams: 1})

	for _, doc := range []string{`[]`, `{"nodes": {}}`, `{"nodes": [], "edges": [{"source": "a"}]}`} {
		rr := ts.do(t, "POST", "/diagrams", doc)
		assert.Equal(t, http.StatusBadRequest, rr.Code, doc)
		assert.Equal(t, 400, decode[ErrorResponse](t, rr).Code)
	}
	assert.Equal(t, 0, ts.Store().Len())

	ts.create(t, "")
	rr := ts.do(t, "POST", "/diagrams", "")
	assert.Equal(t, http.StatusInsufficientStorage, rr.Code)
}

func TestGetDiagram_NotFound(t *testing.T) {
	ts := newTestServer(t, Options{})
	for _, path := range []string{"/diagrams/nope", "/diagrams/nope/export"} {
		rr := ts.do(t, "GET", path, "")
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
	}
}

func TestMutations(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := ts.create(t, "")
	path := "/diagrams/" + id + "/mutations"

	rr := ts.do(t, "POST", path, `{"op": "add_node", "kind": "threat", "label": "Corrosion"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	threat := decode[MutationResponse](t, rr).Node
	require.NotNil(t, threat)
	assert.Equal(t, "Corrosion", threat.Data.BaseLabel)

	rr = ts.do(t, "POST", path, `{"op": "add_node", "kind": "topEvent"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	top := decode[MutationResponse](t, rr).Node

	rr = ts.do(t, "POST", path, `{"op": "connect", "source": "`+threat.ID+`", "target": "`+top.ID+`"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	resp := decode[MutationResponse](t, rr)
	require.NotNil(t, resp.Edge)
	assert.True(t, resp.Report.TopEventBreached, "unguarded threat breaches the top event")

	rr = ts.do(t, "POST", path, `{"op": "insert_into_edge", "edgeId": "`+resp.Edge.ID+`", "kind": "barrier", "label": "Coating"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	resp = decode[MutationResponse](t, rr)
	assert.False(t, resp.Report.TopEventBreached, "active barrier blocks the path")

	rr = ts.do(t, "POST", path, `{"op": "toggle_failed", "nodeId": "`+resp.Node.ID+`"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, decode[MutationResponse](t, rr).Report.TopEventBreached)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown op", `{"op": "explode"}`, http.StatusBadRequest},
		{"missing field", `{"op": "toggle_failed"}`, http.StatusBadRequest},
		{"unknown field", `{"op": "auto_layout", "bogus": 1}`, http.StatusBadRequest},
		{"unknown node", `{"op": "toggle_failed", "nodeId": "barrier_missing"}`, http.StatusNotFound},
		{"second top event", `{"op": "add_node", "kind": "topEvent"}`, http.StatusConflict},
		{"not collapsible", `{"op": "toggle_collapse", "nodeId": "` + top.ID + `"}`, http.StatusUnprocessableEntity},
		{"not a barrier", `{"op": "toggle_failed", "nodeId": "` + threat.ID + `"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, "POST", path, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}

	rr = ts.do(t, "POST", path, `{"op": "auto_layout"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMutations_ResponseViewMatchesEdit(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := ts.create(t, "")
	path := "/diagrams/" + id + "/mutations"

	const n = 16
	var (
		mu     sync.Mutex
		counts = map[int]string{}
		wg     sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rr := ts.do(t, "POST", path, `{"op": "add_node", "kind": "threat"}`)
			if rr.Code != http.StatusCreated {
				t.Errorf("status %d: %s", rr.Code, rr.Body.String())
				return
			}
			var resp MutationResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Error(err)
				return
			}
			if _, ok := resp.Graph.FindNode(resp.Node.ID); !ok {
				t.Errorf("view for %s does not contain it", resp.Node.ID)
			}
			mu.Lock()
			counts[len(resp.Graph.Nodes)] = resp.Node.ID
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Each response reflects the graph right after its own edit
	assert.Len(t, counts, n)
	for i := 1; i <= n; i++ {
		assert.Contains(t, counts, i)
	}
}

func TestExportImport(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := ts.create(t, refinery)

	rr := ts.do(t, "GET", "/diagrams/"+id+"/export", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), id+".json")
	exported := rr.Body.String()
	assert.NotContains(t, exported, `"breached"`)
	assert.NotContains(t, exported, `"style"`)

	// A rejected import leaves the diagram alone
	rr = ts.do(t, "POST", "/diagrams/"+id+"/import", `{"nodes": [{"data": {}}], "edges": []}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = ts.do(t, "GET", "/diagrams/"+id+"/export", "")
	assert.JSONEq(t, exported, rr.Body.String())

	other := ts.create(t, "")
	rr = ts.do(t, "POST", "/diagrams/"+other+"/import", exported)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, decode[DiagramResponse](t, rr).Report.TopEventBreached)
}

func TestDeleteDiagram(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := ts.create(t, "")

	assert.Equal(t, http.StatusNoContent, ts.do(t, "DELETE", "/diagrams/"+id, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, "DELETE", "/diagrams/"+id, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, "GET", "/diagrams/"+id, "").Code)
}

func TestArchive(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := ts.create(t, refinery)

	assert.Equal(t, http.StatusNotImplemented, ts.do(t, "POST", "/diagrams/"+id+"/archive", "").Code)

	dir := t.TempDir()
	sink, err := archive.NewFileSink(dir)
	require.NoError(t, err)
	ts.SetArchiver(archive.New(sink, archive.Options{Compress: true}, nil, ts.metrics))

	rr := ts.do(t, "POST", "/diagrams/"+id+"/archive", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rcpt := decode[archive.Receipt](t, rr)
	assert.Equal(t, id, rcpt.DiagramID)

	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(rcpt.Key)))
	require.NoError(t, err)
	doc, err := sink.Get(rcpt.Key)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "High level alarm")

	assert.Equal(t, "file", decode[HealthResponse](t, ts.do(t, "GET", "/health", "")).Archive)
}

func TestGraphQL(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := ts.create(t, refinery)

	query := `{"query": "{ diagrams { id topEventBreached nodes(breached: true) { id } } }"}`
	rr := ts.do(t, "POST", "/graphql", query)
	require.Equal(t, http.StatusOK, rr.Code)

	var out struct {
		Data struct {
			Diagrams []struct {
				ID               string `json:"id"`
				TopEventBreached bool   `json:"topEventBreached"`
				Nodes            []struct {
					ID string `json:"id"`
				} `json:"nodes"`
			} `json:"diagrams"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	require.Len(t, out.Data.Diagrams, 1)
	assert.Equal(t, id, out.Data.Diagrams[0].ID)
	assert.True(t, out.Data.Diagrams[0].TopEventBreached)
	assert.NotEmpty(t, out.Data.Diagrams[0].Nodes)
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t, Options{})
	m, err := auth.NewJWTManager(strings.Repeat("s", 32), time.Hour)
	require.NoError(t, err)
	ts.SetAuth(m)
	ts.handler = ts.Handler()

	viewer, err := m.GenerateToken("alice", auth.RoleViewer)
	require.NoError(t, err)
	editor, err := m.GenerateToken("bob", auth.RoleEditor)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, ts.do(t, "GET", "/health", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(t, "GET", "/metrics", "").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, "GET", "/diagrams", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(t, "GET", "/diagrams", "", "Authorization", "Bearer "+viewer).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, "POST", "/diagrams", "", "Authorization", "Bearer "+viewer).Code)
	assert.Equal(t, http.StatusCreated, ts.do(t, "POST", "/diagrams", "", "Authorization", "Bearer "+editor).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, "POST", "/graphql", `{"query": "{ health }"}`, "Authorization", "Bearer "+viewer).Code)
}

func TestAPIKeys(t *testing.T) {
	ts := newTestServer(t, Options{})
	assert.Equal(t, http.StatusNotImplemented, ts.do(t, "GET", "/apikeys", "").Code)

	m, err := auth.NewJWTManager(strings.Repeat("s", 32), time.Hour)
	require.NoError(t, err)
	keys, err := auth.NewAPIKeyStore([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)
	ts.SetAuth(m)
	ts.SetAPIKeys(keys)
	ts.handler = ts.Handler()

	admin, err := m.GenerateToken("root", auth.RoleAdmin)
	require.NoError(t, err)
	editor, err := m.GenerateToken("bob", auth.RoleEditor)
	require.NoError(t, err)
	asAdmin := []string{"Authorization", "Bearer " + admin}

	assert.Equal(t, http.StatusForbidden,
		ts.do(t, "POST", "/apikeys", `{"name":"x","role":"viewer"}`, "Authorization", "Bearer "+editor).Code)
	assert.Equal(t, http.StatusBadRequest,
		ts.do(t, "POST", "/apikeys", `{"name":"x","role":"root"}`, asAdmin...).Code)
	assert.Equal(t, http.StatusBadRequest,
		ts.do(t, "POST", "/apikeys", `{"name":"x","role":"viewer","expiresIn":"soon"}`, asAdmin...).Code)

	rr := ts.do(t, "POST", "/apikeys", `{"name":"dashboard","role":"viewer","expiresIn":"24h"}`, asAdmin...)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[CreateAPIKeyResponse](t, rr)
	require.True(t, strings.HasPrefix(created.Key, auth.KeyPrefix))
	assert.False(t, created.ExpiresAt.IsZero())
	asKey := []string{"Authorization", "Bearer " + created.Key}

	// The key is a viewer credential
	assert.Equal(t, http.StatusOK, ts.do(t, "GET", "/diagrams", "", asKey...).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, "POST", "/diagrams", "", asKey...).Code)

	rr = ts.do(t, "GET", "/apikeys", "", asAdmin...)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[APIKeyListResponse](t, rr)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, created.ID, list.Keys[0].ID)
	assert.False(t, list.Keys[0].LastUsed.IsZero())
	assert.NotContains(t, rr.Body.String(), created.Key)

	assert.Equal(t, http.StatusNoContent, ts.do(t, "DELETE", "/apikeys/"+created.ID, "", asAdmin...).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, "DELETE", "/apikeys/key_missing", "", asAdmin...).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, "GET", "/diagrams", "", asKey...).Code)

	// JWTs keep working next to the key store
	assert.Equal(t, http.StatusOK, ts.do(t, "GET", "/diagrams", "", "Authorization", "Bearer "+editor).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.create(t, refinery)

	rr := ts.do(t, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `bowtie_http_requests_total{method="POST",path="POST /diagrams",status="201"} 1`)
	assert.Contains(t, body, "bowtie_diagrams_active 1")
	assert.Contains(t, body, "bowtie_pipeline_runs_total")
}

func TestEvents(t *testing.T) {
	ts := newTestServer(t, Options{KeepAlive: time.Hour})
	id := ts.create(t, "")

	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/diagrams/"+id+"/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readEvents(resp.Body)

	first := <-events
	assert.Equal(t, pubsub.EventView, first.Kind)
	assert.Zero(t, first.Seq, "the snapshot is not a published event")

	// Wait until the stream has subscribed before mutating
	require.Eventually(t, func() bool { return ts.events.GetSubscriberCount(id) == 1 }, time.Second, 10*time.Millisecond)

	rr := ts.do(t, "POST", "/diagrams/"+id+"/mutations", `{"op": "add_node", "kind": "threat"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	second := <-events
	assert.Equal(t, pubsub.EventView, second.Kind)
	assert.Equal(t, uint64(1), second.Seq)
	assert.Equal(t, id, second.DiagramID)

	require.Equal(t, http.StatusNoContent, ts.do(t, "DELETE", "/diagrams/"+id, "").Code)
	third, open := <-events
	require.True(t, open)
	assert.Equal(t, pubsub.EventDeleted, third.Kind)

	_, open = <-events
	assert.False(t, open, "stream ends after delete")
}

// readEvents parses an event stream until it ends
func readEvents(r io.Reader) <-chan pubsub.Event {
	out := make(chan pubsub.Event, 8)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 1<<20), 1<<20)
		var data []byte
		for scanner.Scan() {
			line := scanner.Bytes()
			switch {
			case bytes.HasPrefix(line, []byte("data: ")):
				data = append([]byte(nil), line[len("data: "):]...)
			case len(line) == 0 && data != nil:
				var ev pubsub.Event
				if json.Unmarshal(data, &ev) == nil {
					out <- ev
				}
				data = nil
			}
		}
	}()
	return out
}
