package model

import (
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Effect Records
// -----------------------------------------------------------------------------

// State is the server-defined lifecycle tag of an effect.
// The zero value means no progress event has been received yet.
type State string

// States published by the effect scheduler. Other values are passed through.
const (
	StateNone     State = ""
	StateWaiting  State = "WAITING"
	StateApplied  State = "APPLIED"
	StateReverted State = "REVERTED"
	StateStopped  State = "STOPPED"
)

// Class returns the lower-cased state name used for display styling.
func (s State) Class() string {
	return strings.ToLower(string(s))
}

// Is reports whether s matches other, ignoring case.
func (s State) Is(other State) bool {
	return strings.EqualFold(string(s), string(other))
}

// EffectRecord is one tracked effect.
type EffectRecord struct {
	ID          string  `json:"id"`                    // Server-assigned key, immutable
	Title       string  `json:"title,omitempty"`       // Set at schedule time
	Description string  `json:"description,omitempty"` // Set at schedule time
	Progress    float64 `json:"progress"`              // 0.0 - 1.0
	State       State   `json:"state,omitempty"`       // Empty until first progress event

	ScheduledAt time.Time `json:"scheduled_at"` // Local receive time of the schedule event
	UpdatedAt   time.Time `json:"updated_at"`   // Local receive time of the last event
}

// -----------------------------------------------------------------------------
// Events
// -----------------------------------------------------------------------------

// EventKind identifies which topic an event was decoded from.
type EventKind string

const (
	KindSchedule EventKind = "schedule"
	KindProgress EventKind = "progress"
	KindRemove   EventKind = "remove"
)

// ScheduleEvent announces a new effect (or replaces an existing one).
type ScheduleEvent struct {
	ID          string
	Title       string
	Description string
	ReceivedAt  time.Time
}

// ProgressEvent updates progress and state of a tracked effect.
type ProgressEvent struct {
	ID         string
	Progress   float64
	State      State
	ReceivedAt time.Time
}

// RemoveEvent removes a tracked effect.
type RemoveEvent struct {
	ID         string
	ReceivedAt time.Time
}

// Event is a decoded event of any kind, used where events of all three
// topics travel through a single queue (history recording).
type Event struct {
	Kind        EventKind
	ID          string
	Title       string
	Description string
	Progress    float64
	State       State
	SessionID   string
	MessageID   string // STOMP message-id, empty if the broker omits it
	ReceivedAt  time.Time
}
