package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medflow/medflow-auth/auth"
	"github.com/medflow/medflow-auth/internal/config"
	"github.com/medflow/medflow-auth/token"
)

type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	mux    *http.ServeMux
	routes []string
	config config.Config
	auth   *auth.Service
	tokens *token.Creator
	log    zerolog.Logger

	loginLimiter *RateLimiter
}

func New(config config.Config, authService *auth.Service, tokens *token.Creator, log zerolog.Logger) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		config: config,
		auth:   authService,
		tokens: tokens,
		log:    log,
		loginLimiter: NewRateLimiter(
			perMinute(config.GetLoginRatePerMinute()),
			config.GetLoginRateBurst(),
		),
	}
	s.env = config.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			s.log.Info().Str("method", parts[0]).Str("path", parts[1]).Msg("route")
		} else {
			s.log.Info().Str("path", parts[0]).Msg("route")
		}
	}
}
