package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/croverlay/croverlay/internal/events"
	"github.com/croverlay/croverlay/internal/knowledge"
	"github.com/croverlay/croverlay/internal/metrics"
	"github.com/croverlay/croverlay/internal/storage"
	"github.com/croverlay/croverlay/internal/tracker"
)

const apiTestKnowledge = `
[phases]
single = 2.8
double = 1.4
triple = 0.9

[cards.knight]
cost = 3
rarity = "common"

[cards.fireball]
cost = 4
rarity = "rare"
`

func newTestServer(t *testing.T, repo *storage.MatchRepository, m *metrics.Tracker) (*Server, *tracker.Session) {
	t.Helper()

	kb, err := knowledge.Parse([]byte(apiTestKnowledge))
	if err != nil {
		t.Fatalf("Failed to parse knowledge fixture: %v", err)
	}
	session, err := tracker.NewSession(kb, tracker.DefaultConfig(), events.NewDispatcher(), m)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	return NewServer(&Config{Addr: ":0"}, session, repo, m), session
}

func doRequest(t *testing.T, s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("Failed to decode envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("Failed to decode data: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	rec := doRequest(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body["status"])
	}
	if body["active"] != false {
		t.Errorf("Expected inactive session, got %v", body["active"])
	}
}

func TestGetSessionState(t *testing.T) {
	s, session := newTestServer(t, nil, nil)
	startMatch(t, session)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/session", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var state struct {
		Active  bool   `json:"active"`
		MatchID string `json:"matchId"`
		Elixir  struct {
			Value float64 `json:"value"`
		} `json:"elixir"`
	}
	decodeData(t, rec, &state)
	if !state.Active {
		t.Error("Expected active session")
	}
	if state.MatchID == "" {
		t.Error("Expected a match ID")
	}
	if state.Elixir.Value != 5.0 {
		t.Errorf("Expected initial elixir 5.0, got %v", state.Elixir.Value)
	}
}

func TestAdjustElixir(t *testing.T) {
	s, session := newTestServer(t, nil, nil)
	// Start at the wall clock: the handler advances regeneration to
	// time.Now() before applying the delta.
	err := session.HandleLifecycle(tracker.MatchLifecycleEvent{
		Kind:      tracker.LifecycleStart,
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("Failed to start match: %v", err)
	}

	rec := doRequest(t, s, http.MethodPost, "/api/v1/session/elixir/adjust", []byte(`{"delta": 2.0}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var snap struct {
		Value float64 `json:"value"`
	}
	decodeData(t, rec, &snap)
	if snap.Value < 7.0 || snap.Value > 7.5 {
		t.Errorf("Expected elixir near 7.0 after adjustment, got %v", snap.Value)
	}
}

func TestAdjustElixirInactiveConflicts(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/session/elixir/adjust", []byte(`{"delta": 1.0}`))
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for inactive session, got %d", rec.Code)
	}
}

func TestAdjustElixirBadBody(t *testing.T) {
	s, session := newTestServer(t, nil, nil)
	startMatch(t, session)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/session/elixir/adjust", []byte(`not json`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestMatchRoutesWithoutRepo(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	for _, path := range []string{
		"/api/v1/matches",
		"/api/v1/matches/m1",
		"/api/v1/matches/m1/plays",
		"/api/v1/matches/m1/counts",
	} {
		rec := doRequest(t, s, http.MethodGet, path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for %s with persistence disabled, got %d", path, rec.Code)
		}
	}
}

func TestMatchRoutes(t *testing.T) {
	repo := setupAPITestRepo(t)
	s, _ := newTestServer(t, repo, nil)

	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.CreateMatch(context.Background(), "m1", started); err != nil {
		t.Fatalf("Failed to seed match: %v", err)
	}
	if err := repo.RecordPlay(context.Background(), storage.Play{
		MatchID: "m1", Seq: 1, PlayedAt: started.Add(10 * time.Second),
		Card: "knight", Cost: 3, Confidence: 0.9,
	}); err != nil {
		t.Fatalf("Failed to seed play: %v", err)
	}

	rec := doRequest(t, s, http.MethodGet, "/api/v1/matches/m1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var match struct {
		ID string `json:"ID"`
	}
	decodeData(t, rec, &match)
	if match.ID != "m1" {
		t.Errorf("Expected match m1, got %q", match.ID)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/matches/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing match, got %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/matches", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 listing matches, got %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/matches?limit=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid limit, got %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/matches/m1/counts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for counts, got %d", rec.Code)
	}
	var counts map[string]int
	decodeData(t, rec, &counts)
	if counts["knight"] != 1 {
		t.Errorf("Expected 1 knight play, got %v", counts)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.NewTracker()
	m.RecordDrop()
	m.ResolveLatencyMs.Observe(2.0)
	m.ResolveLatencyMs.Observe(4.0)

	s, _ := newTestServer(t, nil, m)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var state struct {
		DroppedEvents     int64   `json:"droppedEvents"`
		ResolveLatencyMax float64 `json:"resolveLatencyMaxMs"`
		Resolves          int     `json:"resolves"`
	}
	decodeData(t, rec, &state)
	if state.DroppedEvents != 1 {
		t.Errorf("Expected 1 dropped event, got %d", state.DroppedEvents)
	}
	if state.ResolveLatencyMax != 4.0 {
		t.Errorf("Expected max latency 4.0, got %v", state.ResolveLatencyMax)
	}
	if state.Resolves != 2 {
		t.Errorf("Expected 2 resolves, got %d", state.Resolves)
	}
}

func TestMetricsEndpointWithoutTracker(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 with zeroed metrics, got %d", rec.Code)
	}
}

func startMatch(t *testing.T, session *tracker.Session) {
	t.Helper()
	err := session.HandleLifecycle(tracker.MatchLifecycleEvent{
		Kind:      tracker.LifecycleStart,
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Failed to start match: %v", err)
	}
}

func setupAPITestRepo(t *testing.T) *storage.MatchRepository {
	t.Helper()

	config := storage.DefaultConfig(":memory:")
	config.AutoMigrate = true
	config.MaxOpenConns = 1
	config.MaxIdleConns = 1

	db, err := storage.Open(config)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return storage.NewMatchRepository(db)
}
