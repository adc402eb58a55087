package server

import (
	"github.com/medflow/medflow-auth/internal/obs"
)

func (s *Server) initRoutes() {
	// LOGIN
	s.RegisterRouteHandler("POST "+RouteAPILogin, ChainMiddleware(s.LoginHandler(), append(s.APIMiddleware(), s.RateLimitMiddleware(s.loginLimiter))...))
	s.RegisterRouteHandler("POST "+RouteAPITwoFactor, ChainMiddleware(s.TwoFactorHandler(), append(s.APIMiddleware(), s.RateLimitMiddleware(s.loginLimiter))...))
	s.RegisterRouteHandler("POST "+RouteAPILogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// Session-scoped routes (require a session id via bearer token or header)
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionHandler(), append(s.APIMiddleware(), s.RequireSession())...))
	s.RegisterRouteHandler("GET "+RouteAPIAccess, ChainMiddleware(s.AccessHandler(), append(s.APIMiddleware(), s.RequireSession())...))
	s.RegisterRouteHandler("GET "+RouteAPIModules, ChainMiddleware(s.ModulesHandler(), append(s.APIMiddleware(), s.RequireSession())...))

	// Registration
	s.RegisterRouteHandler("POST "+RouteAPIRegister, ChainMiddleware(s.RegisterHandler(), append(s.APIMiddleware(), s.RateLimitMiddleware(s.loginLimiter))...))

	// Operational
	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, obs.Handler())
}
