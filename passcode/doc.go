// Package passcode issues and verifies short-lived, single-use numeric
// passcodes scoped to a subject key.
//
// Codes are never stored in plaintext. Each record keeps a random salt and
// HMAC-SHA256(pepper, salt || subject || code); verification recomputes the
// MAC and compares in constant time. Issuing for a subject supersedes any
// previous code for that subject.
//
// # Architecture boundaries
//
// This package owns the passcode lifecycle only. Delivery of the plaintext,
// request throttling and the domain action gated by a successful verify are
// the caller's responsibility.
package passcode
