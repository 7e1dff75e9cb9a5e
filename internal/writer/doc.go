// Package writer records applied effect events into PostgreSQL.
//
// EventWriter drains the router's history buffer in batches and inserts
// them with pgx.Batch. Inserts are append-only; a redelivered message
// (same session and message id) is skipped with ON CONFLICT DO NOTHING
// and counted as a conflict.
package writer
