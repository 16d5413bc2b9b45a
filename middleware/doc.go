// Package middleware adapts classgate session authentication to net/http.
//
// [Guard] resolves the caller through an [Authenticator] and stores the
// [classgate.Identity] in the request context; [ClientIP] records the
// caller address for per-IP throttling and audit events. Neither parses
// tokens itself.
package middleware
