// Package internal contains helper utilities that are intentionally private to classgate,
// chiefly secure passcode and salt generation.
//
// # Sub-packages
//
//   - httpapi: chi-based HTTP transport over the Engine
//   - config: koanf loader for the service binary
//   - limiters: passcode request throttles
//   - logging: slog setup and oops-aware error logging
//   - rate: core Redis-backed rate limit primitives (login throttle)
//   - stores: Redis persistence for passcode records
//
// # What this package must NOT do
//
//   - Export types that appear in the public classgate API.
//   - Be imported by any package outside the classgate module.
package internal
