package server

import (
	"context"
	"net/http"
	"strings"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySessionID stores the authenticated session id
	ContextKeySessionID ContextKey = "session_id"
)

// HeaderSessionToken carries the opaque session id for clients that do not
// hold a signed access token.
const HeaderSessionToken = "X-Session-Token"

// RequireSession is middleware for API routes that resolves the session id
// from the request: a bearer access token if one is presented, otherwise the
// X-Session-Token header. It only resolves identity; the handlers decide
// what the session may do.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			sessionID, ok := s.sessionIDFromRequest(r)
			if !ok {
				writeJSONError(w, "unauthorized", "missing or invalid credentials", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySessionID, sessionID)
			next(w, r.WithContext(ctx))
		}
	}
}

func (s *Server) sessionIDFromRequest(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || s.tokens == nil {
			return "", false
		}
		claims, err := s.tokens.Parse(parts[1])
		if err != nil {
			return "", false
		}
		return claims.SessionID, claims.SessionID != ""
	}

	if sessionID := r.Header.Get(HeaderSessionToken); sessionID != "" {
		return sessionID, true
	}
	return "", false
}

// SessionIDFromContext returns the session id resolved by RequireSession.
func SessionIDFromContext(ctx context.Context) string {
	sessionID, _ := ctx.Value(ContextKeySessionID).(string)
	return sessionID
}
