package router

import (
	"errors"

	"github.com/rickgao/effectwatch/internal/model"
)

// Errors returned by the decoders. All are counted as parse errors.
var (
	ErrUnknownTopic    = errors.New("unknown topic")
	ErrMissingID       = errors.New("missing id")
	ErrMissingProgress = errors.New("missing progress")
)

// Sink receives decoded events, one method per topic.
// Each method reports whether the event changed the sink's state.
type Sink interface {
	ApplySchedule(ev model.ScheduleEvent) bool
	ApplyProgress(ev model.ProgressEvent) bool
	ApplyRemove(ev model.RemoveEvent) bool
}

// RouterConfig holds configuration for the Message Router.
type RouterConfig struct {
	// TopicPrefix is stripped from destinations before matching
	// effect/schedule, effect/progress and effect/remove.
	TopicPrefix string // Default: "/topic/"

	// History buffer (consumed by the history writer).
	RecordHistory     bool
	HistoryBufferSize int // Initial capacity. Default: 1000
	HistoryBufferMax  int // Growth limit, oldest events dropped beyond it. Default: 100000
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		TopicPrefix:       "/topic/",
		HistoryBufferSize: 1000,
		HistoryBufferMax:  100000,
	}
}

// Wire types for JSON parsing. Unknown fields are ignored.

// scheduleWire is the body of effect/schedule messages.
type scheduleWire struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// progressWire is the body of effect/progress messages.
// State may be null or absent.
type progressWire struct {
	ID       string   `json:"id"`
	Progress *float64 `json:"progress"`
	State    *string  `json:"state"`
}

// removeWire is the body of effect/remove messages.
type removeWire struct {
	ID string `json:"id"`
}
