package internaldefs

import "github.com/MrEthical07/classgate"

type CounterDef struct {
	ID   classgate.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   classgate.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported alongside the engine counters.
const (
	AuditDroppedName = "classgate_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the buffer was full."
)

var CounterDefs = []CounterDef{
	{ID: classgate.MetricPasscodeIssued, Name: "classgate_passcode_issued_total", Help: "Passcodes issued."},
	{ID: classgate.MetricPasscodeVerified, Name: "classgate_passcode_verified_total", Help: "Passcodes redeemed successfully."},
	{ID: classgate.MetricPasscodeMismatch, Name: "classgate_passcode_mismatch_total", Help: "Passcode candidates that did not match."},
	{ID: classgate.MetricPasscodeExpired, Name: "classgate_passcode_expired_total", Help: "Passcode candidates presented after expiry."},
	{ID: classgate.MetricPasscodeNoActiveCode, Name: "classgate_passcode_no_active_code_total", Help: "Passcode candidates with no code on record."},
	{ID: classgate.MetricPasscodeAttemptsExceeded, Name: "classgate_passcode_attempts_exceeded_total", Help: "Passcodes burned by the attempt cap."},
	{ID: classgate.MetricPasscodeRateLimited, Name: "classgate_passcode_rate_limited_total", Help: "Passcode requests denied by issuance throttling."},
	{ID: classgate.MetricDeliverySuccess, Name: "classgate_delivery_success_total", Help: "Passcode messages delivered."},
	{ID: classgate.MetricDeliveryFailure, Name: "classgate_delivery_failure_total", Help: "Passcode messages that failed to deliver."},
	{ID: classgate.MetricDeliveryFallback, Name: "classgate_delivery_fallback_total", Help: "Passcodes logged instead of delivered outside production."},
	{ID: classgate.MetricRegistrationSuccess, Name: "classgate_registration_success_total", Help: "Completed registrations."},
	{ID: classgate.MetricRegistrationFailure, Name: "classgate_registration_failure_total", Help: "Rejected registrations."},
	{ID: classgate.MetricLoginSuccess, Name: "classgate_login_success_total", Help: "Successful logins."},
	{ID: classgate.MetricLoginFailure, Name: "classgate_login_failure_total", Help: "Failed logins."},
	{ID: classgate.MetricLoginRateLimited, Name: "classgate_login_rate_limited_total", Help: "Logins denied by the failure throttle."},
	{ID: classgate.MetricRefreshSuccess, Name: "classgate_refresh_success_total", Help: "Successful session refreshes."},
	{ID: classgate.MetricRefreshFailure, Name: "classgate_refresh_failure_total", Help: "Rejected session refreshes."},
	{ID: classgate.MetricAuthenticateSuccess, Name: "classgate_authenticate_success_total", Help: "Requests authenticated."},
	{ID: classgate.MetricAuthenticateFailure, Name: "classgate_authenticate_failure_total", Help: "Requests that failed authentication."},
	{ID: classgate.MetricJoinRequested, Name: "classgate_join_requested_total", Help: "Join approval codes issued."},
	{ID: classgate.MetricJoinApproved, Name: "classgate_join_approved_total", Help: "Join codes redeemed."},
	{ID: classgate.MetricJoinRejected, Name: "classgate_join_rejected_total", Help: "Join codes rejected."},
	{ID: classgate.MetricJoinAlreadyMember, Name: "classgate_join_already_member_total", Help: "Join redemptions for existing members."},
	{ID: classgate.MetricJoinCancelled, Name: "classgate_join_cancelled_total", Help: "Cancelled join requests."},
	{ID: classgate.MetricStoreFailure, Name: "classgate_store_failure_total", Help: "Calls to Redis or a directory that failed."},
}

var HistogramDefs = []HistogramDef{
	{ID: classgate.MetricAuthenticateLatency, Name: "classgate_authenticate_latency_seconds", Help: "Authenticate latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's
// first seven latency buckets. The eighth bucket is +Inf.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf last, for exporters that
// cannot carry an le label.
var HistogramBoundSuffix = []string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
