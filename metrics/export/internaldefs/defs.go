package internaldefs

import (
	sessionguard "github.com/retailcore/sessionguard"
)

// CounterDef binds one engine counter to its exported metric name.
type CounterDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

// CounterDefs is the shared counter table. Both exporters iterate it so
// the Prometheus and OTel surfaces stay name-compatible.
var CounterDefs = []CounterDef{
	{ID: sessionguard.MetricLoginSuccess, Name: "sessionguard_login_success_total", Help: "Successful login attempts."},
	{ID: sessionguard.MetricLoginFailure, Name: "sessionguard_login_failure_total", Help: "Failed login attempts."},
	{ID: sessionguard.MetricLoginLocked, Name: "sessionguard_login_locked_total", Help: "Login attempts blocked by the lockout policy."},
	{ID: sessionguard.MetricValidateSuccess, Name: "sessionguard_validate_success_total", Help: "Successful session validations."},
	{ID: sessionguard.MetricValidateRejected, Name: "sessionguard_validate_rejected_total", Help: "Rejected session validations."},
	{ID: sessionguard.MetricSessionExpired, Name: "sessionguard_session_expired_total", Help: "Sessions expired by the absolute lifetime rule."},
	{ID: sessionguard.MetricRefreshSuccess, Name: "sessionguard_refresh_success_total", Help: "Successful refresh operations."},
	{ID: sessionguard.MetricRefreshDegraded, Name: "sessionguard_refresh_degraded_total", Help: "Refreshes that kept prior claims after an identity fetch failure."},
	{ID: sessionguard.MetricLogout, Name: "sessionguard_logout_total", Help: "Logout operations."},
	{ID: sessionguard.MetricRateLimitBlocked, Name: "sessionguard_rate_limit_blocked_total", Help: "Rate-limit checks that denied requests."},
	{ID: sessionguard.MetricRateLimitDegraded, Name: "sessionguard_rate_limit_degraded_total", Help: "Rate-limit checks served by the in-memory fallback."},
	{ID: sessionguard.MetricBlacklistDegraded, Name: "sessionguard_blacklist_degraded_total", Help: "Blacklist reads that failed open."},
}
