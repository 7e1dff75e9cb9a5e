// Package effect holds the client-side collection of effect records and the
// bounded view derived from it.
//
// A Store applies schedule, progress and remove events in arrival order and
// publishes each resulting state as an immutable Snapshot. Readers never see
// partial updates: they either hold an older snapshot or the newest one.
//
// Records are kept in schedule arrival order. Re-scheduling a tracked id
// resets its progress and state but keeps its position. The render list is
// the first DisplayCap records of that order; records beyond the cap remain
// tracked and move into view as earlier ones are removed.
//
// Terminal records (REVERTED, STOPPED by default) are kept until removed
// unless Config.RetainTerminal is set, in which case a background loop
// evicts them once they have been idle that long.
package effect
