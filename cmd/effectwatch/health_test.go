package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rickgao/effectwatch/internal/connection"
	"github.com/rickgao/effectwatch/internal/effect"
	"github.com/rickgao/effectwatch/internal/model"
	"github.com/rickgao/effectwatch/internal/router"
)

// fakeManager reports fixed stats.
type fakeManager struct {
	stats connection.ManagerStats
}

func (f *fakeManager) Start(ctx context.Context) error        { return nil }
func (f *fakeManager) Stop(ctx context.Context) error         { return nil }
func (f *fakeManager) Messages() <-chan connection.RawMessage { return nil }
func (f *fakeManager) State() connection.State                { return f.stats.State }
func (f *fakeManager) Stats() connection.ManagerStats         { return f.stats }

func newTestHandler(state connection.State) (http.Handler, *effect.Store) {
	store := effect.NewStore(effect.DefaultConfig(), nil)
	conn := &fakeManager{stats: connection.ManagerStats{
		State:     state,
		SessionID: "sess-1",
		Attempts:  2,
	}}
	rtr := router.NewRouter(router.DefaultRouterConfig(), nil, store, nil)
	return createHealthHandler(conn, rtr, store, nil, nil, nil), store
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s response: %v (%s)", path, err, rec.Body.String())
	}
	return rec, body
}

func TestHealth_Connected(t *testing.T) {
	h, _ := newTestHandler(connection.StateConnected)

	rec, body := get(t, h, "/health")

	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}

	components := body["components"].(map[string]any)
	conn := components["connection"].(map[string]any)
	if conn["state"] != "connected" || conn["session_id"] != "sess-1" {
		t.Errorf("connection = %v", conn)
	}
	if conn["attempts"] != float64(2) {
		t.Errorf("attempts = %v, want 2", conn["attempts"])
	}
	if _, ok := components["store"]; !ok {
		t.Error("missing store component")
	}
	if _, ok := components["router"]; !ok {
		t.Error("missing router component")
	}
	if _, ok := components["database"]; ok {
		t.Error("database component reported with history disabled")
	}
}

func TestHealth_Degraded(t *testing.T) {
	h, _ := newTestHandler(connection.StateConnecting)

	rec, body := get(t, h, "/health")

	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200 for degraded", rec.Code)
	}
	if body["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", body["status"])
	}
}

func TestEffects(t *testing.T) {
	h, store := newTestHandler(connection.StateConnected)

	now := time.Now()
	for _, id := range []string{"e1", "e2", "e3", "e4", "e5"} {
		store.ApplySchedule(model.ScheduleEvent{ID: id, Title: "Effect " + id, ReceivedAt: now})
	}
	store.ApplyProgress(model.ProgressEvent{ID: "e2", Progress: 0.5, State: model.StateApplied, ReceivedAt: now})

	_, body := get(t, h, "/effects")

	if body["count"] != float64(5) {
		t.Errorf("count = %v, want 5", body["count"])
	}
	if body["showing"] != float64(4) {
		t.Errorf("showing = %v, want 4", body["showing"])
	}

	effects := body["effects"].([]any)
	if len(effects) != 4 {
		t.Fatalf("len(effects) = %d, want 4", len(effects))
	}
	first := effects[0].(map[string]any)
	if first["id"] != "e1" || first["class"] != "effect" {
		t.Errorf("effects[0] = %v, want e1 with class effect", first)
	}
	second := effects[1].(map[string]any)
	if second["state"] != "APPLIED" || second["class"] != "effect applied" || second["progress"] != 0.5 {
		t.Errorf("effects[1] = %v, want e2 applied at 0.5", second)
	}
}
