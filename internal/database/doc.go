// Package database provides the PostgreSQL connection pool and schema for
// the optional effect event history.
//
// History is append-only: every event the store applied is written to the
// effect_events table, keyed by (session_id, message_id) so broker
// redeliveries within a session are stored once.
package database
