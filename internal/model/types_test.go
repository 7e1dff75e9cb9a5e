package model

import "testing"

func TestState_Class(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateNone, ""},
		{StateWaiting, "waiting"},
		{StateApplied, "applied"},
		{StateReverted, "reverted"},
		{StateStopped, "stopped"},
		{"RUNNING", "running"},
	}

	for _, tt := range tests {
		if got := tt.state.Class(); got != tt.want {
			t.Errorf("State(%q).Class() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestState_Is(t *testing.T) {
	if !State("stopped").Is(StateStopped) {
		t.Error("Is should ignore case")
	}
	if StateApplied.Is(StateWaiting) {
		t.Error("APPLIED should not match WAITING")
	}
	if !StateNone.Is("") {
		t.Error("empty state should match empty")
	}
}
