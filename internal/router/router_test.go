package router

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/effectwatch/internal/connection"
	"github.com/rickgao/effectwatch/internal/model"
)

// recordingSink records calls and reports whether the id is tracked.
type recordingSink struct {
	mu      sync.Mutex
	tracked map[string]bool
	calls   []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{tracked: make(map[string]bool)}
}

func (s *recordingSink) ApplySchedule(ev model.ScheduleEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracked[ev.ID] = true
	s.calls = append(s.calls, "schedule:"+ev.ID)
	return true
}

func (s *recordingSink) ApplyProgress(ev model.ProgressEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "progress:"+ev.ID)
	return s.tracked[ev.ID]
}

func (s *recordingSink) ApplyRemove(ev model.RemoveEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "remove:"+ev.ID)
	ok := s.tracked[ev.ID]
	delete(s.tracked, ev.ID)
	return ok
}

func (s *recordingSink) getCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func msg(topic, body string) connection.RawMessage {
	return connection.RawMessage{
		Topic:      "/topic/" + topic,
		Body:       []byte(body),
		SessionID:  "s-1",
		MessageID:  "m-" + topic,
		ReceivedAt: time.Now(),
	}
}

// waitProcessed waits until n messages have been fully handled.
func waitProcessed(t *testing.T, r Router, n int64) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s := r.Stats()
		if s.EventsApplied+s.EventsIgnored+s.ParseErrors >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d messages", n)
}

func TestDefaultRouterConfig(t *testing.T) {
	cfg := DefaultRouterConfig()

	if cfg.TopicPrefix != "/topic/" {
		t.Errorf("TopicPrefix = %q, want /topic/", cfg.TopicPrefix)
	}
	if cfg.RecordHistory {
		t.Error("RecordHistory should default to false")
	}
	if cfg.HistoryBufferSize != 1000 {
		t.Errorf("HistoryBufferSize = %d, want 1000", cfg.HistoryBufferSize)
	}
	if cfg.HistoryBufferMax != 100000 {
		t.Errorf("HistoryBufferMax = %d, want 100000", cfg.HistoryBufferMax)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     connection.RawMessage
		want    model.Event
		wantErr error
	}{
		{
			name: "schedule",
			raw:  msg("effect/schedule", `{"id":"a","title":"Fog","description":"Stage left","extra":1}`),
			want: model.Event{Kind: model.KindSchedule, ID: "a", Title: "Fog", Description: "Stage left"},
		},
		{
			name: "schedule without title",
			raw:  msg("effect/schedule", `{"id":"a"}`),
			want: model.Event{Kind: model.KindSchedule, ID: "a"},
		},
		{
			name: "progress",
			raw:  msg("effect/progress", `{"id":"a","progress":0.5,"state":"APPLIED"}`),
			want: model.Event{Kind: model.KindProgress, ID: "a", Progress: 0.5, State: model.StateApplied},
		},
		{
			name: "progress null state",
			raw:  msg("effect/progress", `{"id":"a","progress":0.25,"state":null}`),
			want: model.Event{Kind: model.KindProgress, ID: "a", Progress: 0.25},
		},
		{
			name: "progress unknown state passes through",
			raw:  msg("effect/progress", `{"id":"a","progress":0.5,"state":"RUNNING"}`),
			want: model.Event{Kind: model.KindProgress, ID: "a", Progress: 0.5, State: "RUNNING"},
		},
		{
			name: "progress clamped high",
			raw:  msg("effect/progress", `{"id":"a","progress":1.7}`),
			want: model.Event{Kind: model.KindProgress, ID: "a", Progress: 1},
		},
		{
			name: "progress clamped low",
			raw:  msg("effect/progress", `{"id":"a","progress":-0.2}`),
			want: model.Event{Kind: model.KindProgress, ID: "a", Progress: 0},
		},
		{
			name: "remove",
			raw:  msg("effect/remove", `{"id":"a"}`),
			want: model.Event{Kind: model.KindRemove, ID: "a"},
		},
		{
			name:    "not json",
			raw:     msg("effect/schedule", `not json`),
			wantErr: errors.New("any"),
		},
		{
			name:    "schedule missing id",
			raw:     msg("effect/schedule", `{"title":"x"}`),
			wantErr: ErrMissingID,
		},
		{
			name:    "progress missing progress",
			raw:     msg("effect/progress", `{"id":"a","state":"WAITING"}`),
			wantErr: ErrMissingProgress,
		},
		{
			name:    "progress wrong type",
			raw:     msg("effect/progress", `{"id":"a","progress":"half"}`),
			wantErr: errors.New("any"),
		},
		{
			name:    "remove missing id",
			raw:     msg("effect/remove", `{}`),
			wantErr: ErrMissingID,
		},
		{
			name:    "unknown topic",
			raw:     msg("effect/other", `{"id":"a"}`),
			wantErr: ErrUnknownTopic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.raw, "/topic/")
			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("Decode() error = nil, want %v", tt.wantErr)
				}
				if tt.wantErr.Error() != "any" && !errors.Is(err, tt.wantErr) {
					t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			if got.Kind != tt.want.Kind || got.ID != tt.want.ID {
				t.Errorf("Kind/ID = %s/%s, want %s/%s", got.Kind, got.ID, tt.want.Kind, tt.want.ID)
			}
			if got.Title != tt.want.Title || got.Description != tt.want.Description {
				t.Errorf("Title/Description = %q/%q, want %q/%q", got.Title, got.Description, tt.want.Title, tt.want.Description)
			}
			if got.Progress != tt.want.Progress {
				t.Errorf("Progress = %v, want %v", got.Progress, tt.want.Progress)
			}
			if got.State != tt.want.State {
				t.Errorf("State = %q, want %q", got.State, tt.want.State)
			}
			if got.SessionID != "s-1" || got.MessageID != tt.raw.MessageID || !got.ReceivedAt.Equal(tt.raw.ReceivedAt) {
				t.Errorf("SessionID/MessageID/ReceivedAt not carried over: %+v", got)
			}
		})
	}
}

func TestDecode_CustomPrefix(t *testing.T) {
	raw := connection.RawMessage{Topic: "/exchange/fx/effect/remove", Body: []byte(`{"id":"z"}`)}

	ev, err := Decode(raw, "/exchange/fx/")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if ev.Kind != model.KindRemove || ev.ID != "z" {
		t.Errorf("Decode() = %+v, want remove z", ev)
	}

	if _, err := Decode(raw, "/topic/"); !errors.Is(err, ErrUnknownTopic) {
		t.Errorf("Decode() with wrong prefix error = %v, want ErrUnknownTopic", err)
	}
}

func TestRouter_StartStop(t *testing.T) {
	input := make(chan connection.RawMessage, 10)
	r := NewRouter(DefaultRouterConfig(), input, newRecordingSink(), slog.Default())

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := r.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if r.History() != nil {
		t.Error("History() should be nil when recording is disabled")
	}
}

func TestRouter_AppliesInOrder(t *testing.T) {
	input := make(chan connection.RawMessage, 10)
	sink := newRecordingSink()
	cfg := DefaultRouterConfig()
	cfg.RecordHistory = true
	r := NewRouter(cfg, input, sink, nil)

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop(ctx)

	input <- msg("effect/schedule", `{"id":"a","title":"A"}`)
	input <- msg("effect/progress", `{"id":"a","progress":0.5,"state":"APPLIED"}`)
	input <- msg("effect/progress", `{"id":"ghost","progress":0.1}`)
	input <- msg("effect/remove", `{"id":"a"}`)
	input <- msg("effect/remove", `{"id":"a"}`)

	waitProcessed(t, r, 5)

	want := []string{"schedule:a", "progress:a", "progress:ghost", "remove:a", "remove:a"}
	calls := sink.getCalls()
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call[%d] = %s, want %s", i, calls[i], want[i])
		}
	}

	stats := r.Stats()
	if stats.EventsApplied != 3 {
		t.Errorf("EventsApplied = %d, want 3", stats.EventsApplied)
	}
	if stats.EventsIgnored != 2 {
		t.Errorf("EventsIgnored = %d, want 2", stats.EventsIgnored)
	}
	if stats.ParseErrors != 0 {
		t.Errorf("ParseErrors = %d, want 0", stats.ParseErrors)
	}

	// only applied events are recorded
	history := r.History().DrainTo(0)
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	kinds := []model.EventKind{model.KindSchedule, model.KindProgress, model.KindRemove}
	for i, ev := range history {
		if ev.Kind != kinds[i] || ev.ID != "a" {
			t.Errorf("history[%d] = %s %s, want %s a", i, ev.Kind, ev.ID, kinds[i])
		}
	}
}

func TestRouter_MalformedPayloads(t *testing.T) {
	input := make(chan connection.RawMessage, 10)
	sink := newRecordingSink()
	r := NewRouter(DefaultRouterConfig(), input, sink, nil)

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop(ctx)

	input <- msg("effect/schedule", `{`)
	input <- msg("effect/progress", `{"id":"a"}`)
	input <- msg("effect/unknown", `{"id":"a"}`)
	input <- msg("effect/schedule", `{"id":"b"}`)

	waitProcessed(t, r, 4)

	stats := r.Stats()
	if stats.ParseErrors != 3 {
		t.Errorf("ParseErrors = %d, want 3", stats.ParseErrors)
	}
	if stats.UnknownTopics != 1 {
		t.Errorf("UnknownTopics = %d, want 1", stats.UnknownTopics)
	}
	if stats.EventsApplied != 1 {
		t.Errorf("EventsApplied = %d, want 1 (router keeps going after bad input)", stats.EventsApplied)
	}
	if calls := sink.getCalls(); len(calls) != 1 || calls[0] != "schedule:b" {
		t.Errorf("calls = %v, want [schedule:b]", calls)
	}
}

func TestRouter_InputClosed(t *testing.T) {
	input := make(chan connection.RawMessage)
	cfg := DefaultRouterConfig()
	cfg.RecordHistory = true
	r := NewRouter(cfg, input, newRecordingSink(), nil)

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	close(input)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := r.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}

	if _, ok := r.History().Receive(); ok {
		t.Error("history should be closed and empty after Stop")
	}
}
