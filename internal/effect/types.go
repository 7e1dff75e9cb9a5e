package effect

import (
	"time"

	"github.com/rickgao/effectwatch/internal/model"
)

// DefaultDisplayCap is the maximum number of effects shown at once.
const DefaultDisplayCap = 4

// Config holds Effect Store configuration.
type Config struct {
	DisplayCap int // Max records in the render list

	// Retention of terminal records. Zero RetainTerminal keeps them until
	// a remove event arrives.
	RetainTerminal time.Duration
	TerminalStates []model.State
	PruneInterval  time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DisplayCap:     DefaultDisplayCap,
		TerminalStates: []model.State{model.StateReverted, model.StateStopped},
		PruneInterval:  30 * time.Second,
	}
}

// Stats summarizes the store for health reporting.
type Stats struct {
	Tracked   int    `json:"tracked"`
	Shown     int    `json:"shown"`
	Version   uint64 `json:"version"`
	Schedules int64  `json:"schedules"`
	Progress  int64  `json:"progress"`
	Removes   int64  `json:"removes"`
	Ignored   int64  `json:"ignored"`
	Pruned    int64  `json:"pruned"`
}
