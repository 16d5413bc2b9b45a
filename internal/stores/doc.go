// Package stores provides Redis-backed, short-lived record stores for
// security-sensitive passcode flows (registration and classroom join).
//
// # Design
//
// Each record is a versioned, binary-encoded value stored under a key derived
// from its subject with a native TTL. Issuing is a single SET, so a re-issue
// replaces the previous record atomically. Consume runs GET, expiry check,
// comparison and DEL (or the attempt-counter rewrite) inside one WATCH/MULTI
// transaction and is retried on optimistic-lock contention. Records are
// single-use and enforce an attempt cap.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for passcode
// records. It does NOT generate codes, compute hashes, enforce request
// throttles or make authentication decisions. The caller supplies the
// comparison through a match function.
//
// # What this package must NOT do
//
//   - Import classgate or any sibling internal package.
//   - Store or log plaintext codes.
package stores
