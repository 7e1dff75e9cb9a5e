// Package model defines shared data types used across effectwatch.
//
// Conventions:
//   - IDs: opaque strings assigned by the effect scheduler (UUIDs in practice)
//   - Progress: float64 fraction in [0.0, 1.0]
//   - States: upper-case tags as sent by the server; compare case-insensitively
//   - Timestamps: local receive time (time.Time)
package model
