package classgate

import "errors"

var (
	// Validation.
	ErrMissingFields   = errors.New("missing required fields")
	ErrInvalidEmail    = errors.New("invalid email")
	ErrWeakPassword    = errors.New("password does not meet policy")
	ErrInvalidRole     = errors.New("invalid role")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNoCodeRequested = errors.New("no passcode requested")

	// Conflict.
	ErrAlreadyRegistered = errors.New("email already registered")
	ErrAlreadyMember     = errors.New("student already a member")

	// Authentication.
	ErrCodeInvalid        = errors.New("invalid or expired code")
	ErrJoinCodeInvalid    = errors.New("invalid or expired join code")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	// ErrJoinNotPermitted rejects a join call made for another student.
	ErrJoinNotPermitted   = errors.New("caller may not act on this join request")

	// Rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// Not found.
	ErrUserNotFound      = errors.New("user not found")
	ErrClassroomNotFound = errors.New("classroom not found")

	// Dependencies.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrDeliveryFailed   = errors.New("passcode delivery failed")

	// ErrInternal hides unexpected failures from callers. The cause is logged.
	ErrInternal = errors.New("internal error")

	ErrEngineNotReady = errors.New("engine not initialized")
)
