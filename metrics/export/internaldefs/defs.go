package internaldefs

import (
	"github.com/gestionlocal/cuenta"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   cuenta.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   cuenta.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: cuenta.MetricLoginSuccess, Name: "cuenta_login_success_total", Help: "Successful logins."},
	{ID: cuenta.MetricLoginFailure, Name: "cuenta_login_failure_total", Help: "Failed logins."},
	{ID: cuenta.MetricLogout, Name: "cuenta_logout_total", Help: "Logouts."},
	{ID: cuenta.MetricEditStarted, Name: "cuenta_edit_started_total", Help: "Verified edits started."},
	{ID: cuenta.MetricEditCancelled, Name: "cuenta_edit_cancelled_total", Help: "Verified edits cancelled."},
	{ID: cuenta.MetricPinRequested, Name: "cuenta_pin_requested_total", Help: "PINs sent, including resends."},
	{ID: cuenta.MetricPinRequestFailed, Name: "cuenta_pin_request_failed_total", Help: "PIN requests the backend failed."},
	{ID: cuenta.MetricPinVerified, Name: "cuenta_pin_verified_total", Help: "PINs accepted."},
	{ID: cuenta.MetricPinRejected, Name: "cuenta_pin_rejected_total", Help: "PINs rejected as wrong or expired."},
	{ID: cuenta.MetricPinRateLimited, Name: "cuenta_pin_rate_limited_total", Help: "PIN requests or attempts refused by the local limiter."},
	{ID: cuenta.MetricSubmitSuccess, Name: "cuenta_submit_success_total", Help: "Verified mutations applied."},
	{ID: cuenta.MetricSubmitFailure, Name: "cuenta_submit_failure_total", Help: "Verified mutations the backend refused."},
	{ID: cuenta.MetricSubmitConflict, Name: "cuenta_submit_conflict_total", Help: "Mutations refused with a conflict."},
	{ID: cuenta.MetricStaleDiscarded, Name: "cuenta_stale_discarded_total", Help: "Responses dropped because the flow moved on."},
	{ID: cuenta.MetricAccountSuspended, Name: "cuenta_account_suspended_total", Help: "Accounts deactivated."},
	{ID: cuenta.MetricAvailabilityChecked, Name: "cuenta_availability_checked_total", Help: "Username availability answers applied."},
	{ID: cuenta.MetricAvailabilityFailed, Name: "cuenta_availability_failed_total", Help: "Username availability lookups that failed."},
	{ID: cuenta.MetricRecoveryIdentified, Name: "cuenta_recovery_identified_total", Help: "Recoveries that found the account."},
	{ID: cuenta.MetricRecoveryFailed, Name: "cuenta_recovery_failed_total", Help: "Recovery steps that failed."},
	{ID: cuenta.MetricRecoveryUsernameSent, Name: "cuenta_recovery_username_sent_total", Help: "Usernames emailed by recovery."},
	{ID: cuenta.MetricRecoveryPasswordReset, Name: "cuenta_recovery_password_reset_total", Help: "Passwords reset by recovery."},
	{ID: cuenta.MetricRecoveryCancelled, Name: "cuenta_recovery_cancelled_total", Help: "Recoveries abandoned."},
	{ID: cuenta.MetricAvatarUpdated, Name: "cuenta_avatar_updated_total", Help: "Profile photos updated."},
	{ID: cuenta.MetricAvatarFailed, Name: "cuenta_avatar_failed_total", Help: "Profile photo updates that failed."},
	{ID: cuenta.MetricSecurityBroadcast, Name: "cuenta_security_broadcast_total", Help: "Security updates broadcast to the congregation."},
	{ID: cuenta.MetricSessionWriteFailure, Name: "cuenta_session_write_failure_total", Help: "Session store writes that failed after a successful mutation."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: cuenta.MetricAPILatency, Name: "cuenta_api_latency_seconds", Help: "Backend call latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the eight buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds spelled for metric names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into the running totals both
// exporters publish.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
