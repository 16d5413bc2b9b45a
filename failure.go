package classgate

import "errors"

// Reason groups the sentinel errors into a closed set of failure classes.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonValidation
	ReasonConflict
	ReasonAuthentication
	ReasonRateLimited
	ReasonDependency
	ReasonNotFound
	ReasonInternal
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonValidation:
		return "validation"
	case ReasonConflict:
		return "conflict"
	case ReasonAuthentication:
		return "authentication"
	case ReasonRateLimited:
		return "rate_limited"
	case ReasonDependency:
		return "dependency"
	case ReasonNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

type reasonEntry struct {
	err     error
	reason  Reason
	message string
}

// Order matters only for errors that wrap more than one sentinel.
var reasonTable = []reasonEntry{
	{ErrMissingFields, ReasonValidation, "All fields are required"},
	{ErrInvalidEmail, ReasonValidation, "Invalid email"},
	{ErrWeakPassword, ReasonValidation, "Password is too short"},
	{ErrInvalidRole, ReasonValidation, "Invalid role"},
	{ErrInvalidInput, ReasonValidation, "Invalid request"},
	{ErrNoCodeRequested, ReasonValidation, "Please request a code first"},
	{ErrAlreadyRegistered, ReasonConflict, "User already exists"},
	{ErrAlreadyMember, ReasonConflict, "Student is already a member"},
	{ErrCodeInvalid, ReasonAuthentication, "Invalid or expired code"},
	{ErrJoinCodeInvalid, ReasonAuthentication, "Invalid or expired code"},
	{ErrInvalidCredentials, ReasonAuthentication, "Invalid credentials"},
	{ErrUnauthenticated, ReasonAuthentication, "Not logged in"},
	{ErrJoinNotPermitted, ReasonAuthentication, "Not allowed"},
	{ErrRateLimited, ReasonRateLimited, "Too many requests, try again later"},
	{ErrUserNotFound, ReasonNotFound, "User not found"},
	{ErrClassroomNotFound, ReasonNotFound, "Classroom not found"},
	{ErrStoreUnavailable, ReasonDependency, "Service temporarily unavailable"},
	{ErrDeliveryFailed, ReasonDependency, "Failed to send code"},
}

// ReasonOf classifies err. Unrecognized non-nil errors are ReasonInternal.
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonNone
	}
	for _, entry := range reasonTable {
		if errors.Is(err, entry.err) {
			return entry.reason
		}
	}
	return ReasonInternal
}

// PublicMessage returns the fixed user-facing message for err. It never
// includes the error text itself.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range reasonTable {
		if errors.Is(err, entry.err) {
			return entry.message
		}
	}
	return "Something went wrong"
}
