// Package classgate gates account registration, password login and
// classroom membership behind single-use passcodes and signed session
// tokens.
//
// An [Engine] is assembled with [Builder] from a [Config], a Redis client
// and the directory interfaces ([UserDirectory], [ClassroomDirectory],
// [MembershipStore]) plus a [Notifier] for out-of-band code delivery.
// Engine methods are safe for concurrent use after [Builder.Build].
//
// Passcodes are stored only as salted HMAC-SHA256 digests and are consumed
// on the first successful verification. Session credentials are a pair of
// stateless JWTs signed with independent keys.
//
// Errors returned by Engine methods wrap the sentinels in errors.go; use
// [ReasonOf] to classify them and [PublicMessage] for the text that may be
// shown to end users.
package classgate
