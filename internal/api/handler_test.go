package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/reverie-ai/reverie/internal/engine"
	"github.com/reverie-ai/reverie/internal/extractor"
	"github.com/reverie-ai/reverie/internal/memory"
	"github.com/reverie-ai/reverie/internal/memory/memorytest"
	"github.com/reverie-ai/reverie/internal/persona"
	"github.com/reverie-ai/reverie/internal/provider"
	"github.com/reverie-ai/reverie/internal/session"
)

// memPersonas is a map-backed PersonaStore.
type memPersonas struct {
	mu       sync.Mutex
	profiles map[string]*persona.Profile
}

func newMemPersonas() *memPersonas {
	return &memPersonas{profiles: make(map[string]*persona.Profile)}
}

func (s *memPersonas) SavePersona(_ context.Context, p *persona.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.profiles[p.ID] = &cp
	return nil
}

func (s *memPersonas) GetProfile(_ context.Context, id string) (*persona.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("persona %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (s *memPersonas) ListPersonas(_ context.Context) ([]*persona.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*persona.Profile
	for _, p := range s.profiles {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memPersonas) DeletePersona(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, id)
	return nil
}

// echoProvider replies with a fixed line.
type echoProvider struct{}

func (echoProvider) ID() string   { return "echo" }
func (echoProvider) Name() string { return "echo" }
func (echoProvider) Chat(context.Context, *provider.ChatRequest) (*provider.ChatResponse, error) {
	return &provider.ChatResponse{Content: "It is so good to hear your voice.", FinishReason: "stop"}, nil
}
func (echoProvider) HealthCheck(context.Context) error { return nil }

// newTestHandler creates a Handler wired with lightweight in-memory deps
// (no Postgres/Qdrant/Redis).
func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()

	memStore := memory.NewStore(memorytest.NewCatalog(), memorytest.NewIndex(), memorytest.NewEmbedder(8), logger)
	ext := extractor.New(memStore, 0, logger)

	router := provider.NewRouter(logger)
	router.Register(echoProvider{})
	eng := engine.NewEngine(memStore, router, nil, engine.Config{}, logger)

	personas := newMemPersonas()
	sessions := session.NewManager(eng, personas, nil, nil, session.Config{}, logger)

	h := NewHandler(sessions, memStore, ext, personas, logger)
	return h.Router()
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func deleteReq(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest("DELETE", ts.URL+path, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE %s: %v", path, err)
	}
	return resp
}

func createPersona(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp := postJSON(t, ts, "/api/personas", map[string]interface{}{
		"name":         "Rosa",
		"relationship": "grandmother",
		"traits":       map[string]float64{"warmth": 0.9},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create persona: expected 201, got %d", resp.StatusCode)
	}
	var p persona.Profile
	decodeJSON(t, resp, &p)
	if p.ID == "" {
		t.Fatal("created persona has no id")
	}
	return p.ID
}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := getJSON(t, ts, "/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestPersonaLifecycle(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	id := createPersona(t, ts)

	resp := getJSON(t, ts, "/api/personas/"+id)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get persona: expected 200, got %d", resp.StatusCode)
	}
	var p persona.Profile
	decodeJSON(t, resp, &p)
	if p.Name != "Rosa" || p.Relationship != "grandmother" {
		t.Errorf("unexpected profile %+v", p)
	}

	resp = deleteReq(t, ts, "/api/personas/"+id)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete persona: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = getJSON(t, ts, "/api/personas/"+id)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCreatePersonaRequiresFields(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := postJSON(t, ts, "/api/personas", map[string]string{"name": "Rosa"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestIngestAndMemorySummary(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	id := createPersona(t, ts)

	resp := postJSON(t, ts, "/api/personas/"+id+"/ingest", map[string]interface{}{
		"items": []map[string]string{
			{"content": "Her favorite flower was the tulip.", "source": "text"},
			{"content": "She visited Kyoto with her daughter in autumn.", "source": "image", "source_ref": "album-12"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest: expected 200, got %d", resp.StatusCode)
	}
	var res extractor.BatchResult
	decodeJSON(t, resp, &res)
	if res.Processed != 2 || res.Failed != 0 {
		t.Fatalf("unexpected batch result %+v", res)
	}
	if res.MemoriesExtracted == 0 {
		t.Fatal("expected extracted memories")
	}

	resp = getJSON(t, ts, "/api/personas/"+id+"/memory/summary")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", resp.StatusCode)
	}
	var sum memory.Summary
	decodeJSON(t, resp, &sum)
	if sum.TotalMemories != res.MemoriesExtracted {
		t.Fatalf("summary total %d != extracted %d", sum.TotalMemories, res.MemoriesExtracted)
	}
}

func TestIngestUnknownPersona(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := postJSON(t, ts, "/api/personas/nobody/ingest", map[string]interface{}{
		"items": []map[string]string{{"content": "anything at all here", "source": "text"}},
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSessionTurnFlow(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	id := createPersona(t, ts)

	resp := postJSON(t, ts, "/api/sessions", map[string]string{"persona_id": id})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start session: expected 201, got %d", resp.StatusCode)
	}
	var sess sessionResponse
	decodeJSON(t, resp, &sess)
	if sess.ID == "" {
		t.Fatal("session has no id")
	}

	resp = postJSON(t, ts, "/api/sessions/"+sess.ID+"/turns", map[string]interface{}{
		"text":       "Do you remember me?",
		"confidence": 0.9,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit turn: expected 200, got %d", resp.StatusCode)
	}
	var reply session.Response
	decodeJSON(t, resp, &reply)
	if reply.Text != "It is so good to hear your voice." {
		t.Fatalf("unexpected reply %q", reply.Text)
	}
	if reply.Degraded {
		t.Fatal("expected non-degraded reply")
	}

	resp = deleteReq(t, ts, "/api/sessions/"+sess.ID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end session: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, ts, "/api/sessions/"+sess.ID+"/turns", map[string]interface{}{
		"text": "Still there?",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after session end, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestStartSessionUnknownPersona(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := postJSON(t, ts, "/api/sessions", map[string]string{"persona_id": "nobody"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
