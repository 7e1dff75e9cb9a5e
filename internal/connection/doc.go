// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Maintains one STOMP session over a WebSocket to the effect scheduler
//   - Subscribes to the effect topics (schedule, progress, remove) on connect
//   - Reconnects after a policy-defined delay (fixed 5s by default)
//   - Forwards MESSAGE frames to the Message Router in transport order
//
// It never reads or writes effect state.
package connection
