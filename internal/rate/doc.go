// Package rate provides Redis-backed fixed-window counters and the login
// throttle built on them.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - cgl:  failed logins per email
//   - cgli: failed logins per IP
//
// Domain-specific request throttles live in internal/limiters and reuse
// [Increment].
package rate
