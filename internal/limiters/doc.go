// Package limiters provides domain-specific rate limiters built on top of the
// internal/rate primitives.
//
// # Limiters
//
//   - [PasscodeRequestLimiter]: per-subject + per-IP throttle for passcode issuance.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
//
// # What this package must NOT do
//
//   - Import classgate or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting; the engine decides consequences.
package limiters
