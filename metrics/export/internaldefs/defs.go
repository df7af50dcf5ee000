package internaldefs

import (
	authkit "github.com/ferrytech/authkit"
)

// CounterDef binds one coordinator counter to its exported name.
type CounterDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// CounterDefs enumerates every exported counter in a fixed order.
var CounterDefs = []CounterDef{
	{ID: authkit.MetricLoginSuccess, Name: "authkit_login_success_total", Help: "Successful logins."},
	{ID: authkit.MetricLoginFailure, Name: "authkit_login_failure_total", Help: "Logins rejected by the backend or failed in transit."},
	{ID: authkit.MetricLoginLockedOut, Name: "authkit_login_locked_out_total", Help: "Logins denied by the lockout limiter before any network call."},
	{ID: authkit.MetricRefreshSuccess, Name: "authkit_refresh_success_total", Help: "Successful token renewals."},
	{ID: authkit.MetricRefreshFailure, Name: "authkit_refresh_failure_total", Help: "Token renewals that forced a logout."},
	{ID: authkit.MetricRefreshCollapsed, Name: "authkit_refresh_collapsed_total", Help: "Refresh calls that joined an in-flight attempt."},
	{ID: authkit.MetricLogout, Name: "authkit_logout_total", Help: "Explicit logouts."},
	{ID: authkit.MetricForcedLogout, Name: "authkit_forced_logout_total", Help: "Logouts forced by expiry or refresh failure."},
	{ID: authkit.MetricSessionResumed, Name: "authkit_session_resumed_total", Help: "Sessions restored from the credential store at startup."},
	{ID: authkit.MetricSessionExpired, Name: "authkit_session_expired_total", Help: "Stored sessions discarded because the refresh token had expired."},
}
