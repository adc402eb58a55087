package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - Login, Two-Factor & Logout
	RouteAPILogin     = "/api/auth/login"
	RouteAPITwoFactor = "/api/auth/two-factor"
	RouteAPILogout    = "/api/auth/logout"

	// Auth Routes - Session Introspection & Authorization
	RouteAPISession = "/api/auth/session"
	RouteAPIAccess  = "/api/auth/access/{module}"
	RouteAPIModules = "/api/auth/modules"

	// Auth Routes - Registration
	RouteAPIRegister = "/api/auth/register"

	// Operational Routes
	RouteHealthz = "/healthz"
	RouteMetrics = "/metrics"
)
