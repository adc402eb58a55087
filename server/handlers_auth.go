package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/medflow/medflow-auth/access"
	"github.com/medflow/medflow-auth/auth"
	"github.com/medflow/medflow-auth/internal/obs"
)

const contentTypeJSON = "application/json; charset=utf-8"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type twoFactorRequest struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
}

type logoutRequest struct {
	SessionID string `json:"session_id"`
}

// LoginHandler verifies credentials and returns either an active session
// with an access token or a pending one awaiting a two-factor code. All
// credential failures get the same response.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "malformed JSON body", http.StatusBadRequest)
			return
		}

		result, err := s.auth.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			obs.LoginsTotal.WithLabelValues(loginResultLabel(err)).Inc()
			s.writeAuthError(w, err)
			return
		}

		obs.LoginsTotal.WithLabelValues(string(result.Status)).Inc()
		writeJSON(w, http.StatusOK, result)
	}
}

// TwoFactorHandler finalizes a pending session with a one-time code.
func (s *Server) TwoFactorHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req twoFactorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "malformed JSON body", http.StatusBadRequest)
			return
		}

		result, err := s.auth.SubmitTwoFactorCode(r.Context(), req.SessionID, req.Code)
		if err != nil {
			obs.TwoFactorTotal.WithLabelValues(twoFactorResultLabel(err)).Inc()
			s.writeAuthError(w, err)
			return
		}

		obs.TwoFactorTotal.WithLabelValues("success").Inc()
		writeJSON(w, http.StatusOK, result)
	}
}

// LogoutHandler revokes the session named by the request credentials or
// body. Idempotent: unknown and already revoked sessions also get 204.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := s.sessionIDFromRequest(r)
		if !ok {
			var req logoutRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
				sessionID = req.SessionID
			}
		}
		if sessionID == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if err := s.auth.Logout(r.Context(), sessionID); err != nil {
			s.writeAuthError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	State     string `json:"state"`
	IssuedAt  string `json:"issued_at"`
	ExpiresAt string `json:"expires_at"`
}

// SessionHandler returns the session snapshot for UI introspection.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := SessionIDFromContext(r.Context())

		session, err := s.auth.Session(r.Context(), sessionID)
		if err != nil {
			s.writeAuthError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, sessionResponse{
			SessionID: session.ID,
			UserID:    session.UserID,
			Role:      string(session.Role),
			State:     string(session.State),
			IssuedAt:  session.IssuedAt.UTC().Format(time.RFC3339),
			ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
}

type accessResponse struct {
	Module  string `json:"module"`
	Allowed bool   `json:"allowed"`
}

// AccessHandler answers whether the session may use the named module.
func (s *Server) AccessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := SessionIDFromContext(r.Context())
		module := access.Module(r.PathValue("module"))

		allowed, err := s.auth.CheckAccess(r.Context(), sessionID, module)
		if err != nil {
			s.writeAuthError(w, err)
			return
		}

		outcome := "denied"
		if allowed {
			outcome = "allowed"
		}
		obs.AccessChecksTotal.WithLabelValues(outcome).Inc()

		writeJSON(w, http.StatusOK, accessResponse{Module: string(module), Allowed: allowed})
	}
}

type modulesResponse struct {
	Modules []access.Module `json:"modules"`
}

// ModulesHandler lists the modules the session's role may reach, for
// building navigation.
func (s *Server) ModulesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := SessionIDFromContext(r.Context())

		modules, err := s.auth.Modules(r.Context(), sessionID)
		if err != nil {
			s.writeAuthError(w, err)
			return
		}
		if modules == nil {
			modules = []access.Module{}
		}
		writeJSON(w, http.StatusOK, modulesResponse{Modules: modules})
	}
}

// RegisterHandler creates a new account.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "malformed JSON body", http.StatusBadRequest)
			return
		}

		user, err := s.auth.Register(r.Context(), req)
		if err != nil {
			s.writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, user)
	}
}

// HealthzHandler reports liveness.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// writeAuthError maps service errors onto HTTP responses. Credential and
// session failures stay deliberately vague; only the two-factor mismatch
// carries detail (the remaining attempt count) because the UI needs it.
func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	var mismatch *auth.CodeMismatchError
	switch {
	case errors.As(err, &mismatch):
		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":              "invalid_code",
			"error_description":  "incorrect code",
			"attempts_remaining": mismatch.AttemptsRemaining,
		})
	case errors.Is(err, auth.InvalidCredentialsErr):
		writeJSONError(w, "invalid_credentials", "invalid email or password", http.StatusUnauthorized)
	case errors.Is(err, auth.SessionExpiredErr):
		writeJSONError(w, "session_expired", "session has expired, log in again", http.StatusUnauthorized)
	case errors.Is(err, auth.ChallengeExpiredErr):
		writeJSONError(w, "challenge_expired", "code has expired, log in again", http.StatusUnauthorized)
	case errors.Is(err, auth.ChallengeAttemptsExhaustedErr):
		writeJSONError(w, "attempts_exhausted", "too many incorrect codes, log in again", http.StatusUnauthorized)
	case errors.Is(err, auth.SessionNotFoundErr), errors.Is(err, auth.ChallengeNotFoundErr):
		writeJSONError(w, "unauthorized", "missing or invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, auth.DuplicateEmailErr):
		writeJSONError(w, "duplicate_email", "an account with this email already exists", http.StatusConflict)
	case errors.Is(err, auth.InvalidRoleErr):
		writeJSONError(w, "invalid_role", "unknown role", http.StatusBadRequest)
	case errors.Is(err, auth.StoreUnavailableErr):
		s.log.Error().Err(err).Msg("store unavailable")
		writeJSONError(w, "temporarily_unavailable", "please retry", http.StatusServiceUnavailable)
	default:
		s.log.Error().Err(err).Msg("unhandled auth error")
		writeJSONError(w, "server_error", "internal server error", http.StatusInternalServerError)
	}
}

func loginResultLabel(err error) string {
	if errors.Is(err, auth.InvalidCredentialsErr) {
		return "invalid_credentials"
	}
	return "error"
}

func twoFactorResultLabel(err error) string {
	var mismatch *auth.CodeMismatchError
	switch {
	case errors.As(err, &mismatch):
		return "mismatch"
	case errors.Is(err, auth.ChallengeAttemptsExhaustedErr):
		return "exhausted"
	case errors.Is(err, auth.ChallengeExpiredErr), errors.Is(err, auth.SessionExpiredErr):
		return "expired"
	case errors.Is(err, auth.SessionNotFoundErr), errors.Is(err, auth.ChallengeNotFoundErr):
		return "not_found"
	default:
		return "error"
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
