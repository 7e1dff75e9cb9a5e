package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/rickgao/effectwatch/internal/connection"
	"github.com/rickgao/effectwatch/internal/model"
)

// Router decodes raw topic messages and applies them to a Sink.
type Router interface {
	// Start begins routing messages from the input channel to the sink.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the router and closes the history buffer.
	Stop(ctx context.Context) error

	// History returns the buffer of applied events, or nil when history
	// recording is disabled.
	History() *GrowableBuffer[model.Event]

	// Stats returns current router statistics.
	Stats() RouterStats
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived int64        `json:"messages_received"`
	EventsApplied    int64        `json:"events_applied"`
	EventsIgnored    int64        `json:"events_ignored"` // Decoded but no effect (unknown id)
	ParseErrors      int64        `json:"parse_errors"`
	UnknownTopics    int64        `json:"unknown_topics"`
	History          *BufferStats `json:"history,omitempty"`
}

// router is the internal implementation.
type router struct {
	cfg    RouterConfig
	logger *slog.Logger
	sink   Sink

	// Input from Connection Manager
	input <-chan connection.RawMessage

	// Applied events for the history writer (nil when disabled)
	history *GrowableBuffer[model.Event]

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.RWMutex
	received      int64
	applied       int64
	ignored       int64
	parseErrors   int64
	unknownTopics int64
}

// NewRouter creates a new Message Router.
func NewRouter(cfg RouterConfig, input <-chan connection.RawMessage, sink Sink, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &router{
		cfg:    cfg,
		logger: logger,
		sink:   sink,
		input:  input,
	}
	if cfg.RecordHistory {
		r.history = NewBoundedBuffer[model.Event](cfg.HistoryBufferSize, cfg.HistoryBufferMax)
	}
	return r
}

// Start begins routing messages.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("message router started",
		"topic_prefix", r.cfg.TopicPrefix,
		"record_history", r.cfg.RecordHistory,
	)
	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping message router")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("message router stopped")
	case <-ctx.Done():
		r.logger.Warn("message router stop timed out")
	}

	if r.history != nil {
		r.history.Close()
	}
	return nil
}

// History returns the applied-event buffer.
func (r *router) History() *GrowableBuffer[model.Event] {
	return r.history
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RouterStats{
		MessagesReceived: r.received,
		EventsApplied:    r.applied,
		EventsIgnored:    r.ignored,
		ParseErrors:      r.parseErrors,
		UnknownTopics:    r.unknownTopics,
	}
	if r.history != nil {
		hs := r.history.Stats()
		stats.History = &hs
	}
	return stats
}

// routeLoop is the main routing goroutine. It is the only caller of the
// sink, so events are applied in the order they were received.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case raw, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.route(raw)
		}
	}
}

// route decodes and applies a single message.
func (r *router) route(raw connection.RawMessage) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	ev, err := Decode(raw, r.cfg.TopicPrefix)
	if err != nil {
		r.logger.Warn("dropping message",
			"topic", raw.Topic,
			"message_id", raw.MessageID,
			"error", err,
		)
		r.mu.Lock()
		r.parseErrors++
		if errors.Is(err, ErrUnknownTopic) {
			r.unknownTopics++
		}
		r.mu.Unlock()
		return
	}

	var applied bool
	switch ev.Kind {
	case model.KindSchedule:
		applied = r.sink.ApplySchedule(model.ScheduleEvent{
			ID:          ev.ID,
			Title:       ev.Title,
			Description: ev.Description,
			ReceivedAt:  ev.ReceivedAt,
		})
	case model.KindProgress:
		applied = r.sink.ApplyProgress(model.ProgressEvent{
			ID:         ev.ID,
			Progress:   ev.Progress,
			State:      ev.State,
			ReceivedAt: ev.ReceivedAt,
		})
	case model.KindRemove:
		applied = r.sink.ApplyRemove(model.RemoveEvent{
			ID:         ev.ID,
			ReceivedAt: ev.ReceivedAt,
		})
	}

	r.mu.Lock()
	if applied {
		r.applied++
	} else {
		r.ignored++
	}
	r.mu.Unlock()

	if applied && r.history != nil {
		r.history.Send(ev)
	}
}

// Decode parses a raw message into an event. The topic is matched after
// stripping prefix. Progress values outside [0,1] are clamped.
func Decode(raw connection.RawMessage, prefix string) (model.Event, error) {
	ev := model.Event{
		SessionID:  raw.SessionID,
		MessageID:  raw.MessageID,
		ReceivedAt: raw.ReceivedAt,
	}

	switch strings.TrimPrefix(raw.Topic, prefix) {
	case connection.TopicSchedule:
		var wire scheduleWire
		if err := json.Unmarshal(raw.Body, &wire); err != nil {
			return model.Event{}, fmt.Errorf("decode schedule: %w", err)
		}
		if wire.ID == "" {
			return model.Event{}, fmt.Errorf("schedule: %w", ErrMissingID)
		}
		ev.Kind = model.KindSchedule
		ev.ID = wire.ID
		ev.Title = wire.Title
		ev.Description = wire.Description

	case connection.TopicProgress:
		var wire progressWire
		if err := json.Unmarshal(raw.Body, &wire); err != nil {
			return model.Event{}, fmt.Errorf("decode progress: %w", err)
		}
		if wire.ID == "" {
			return model.Event{}, fmt.Errorf("progress: %w", ErrMissingID)
		}
		if wire.Progress == nil || math.IsNaN(*wire.Progress) {
			return model.Event{}, fmt.Errorf("progress %s: %w", wire.ID, ErrMissingProgress)
		}
		ev.Kind = model.KindProgress
		ev.ID = wire.ID
		ev.Progress = clamp(*wire.Progress)
		if wire.State != nil {
			ev.State = model.State(*wire.State)
		}

	case connection.TopicRemove:
		var wire removeWire
		if err := json.Unmarshal(raw.Body, &wire); err != nil {
			return model.Event{}, fmt.Errorf("decode remove: %w", err)
		}
		if wire.ID == "" {
			return model.Event{}, fmt.Errorf("remove: %w", ErrMissingID)
		}
		ev.Kind = model.KindRemove
		ev.ID = wire.ID

	default:
		return model.Event{}, fmt.Errorf("%w: %q", ErrUnknownTopic, raw.Topic)
	}

	return ev, nil
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
