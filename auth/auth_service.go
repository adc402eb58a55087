// Package auth orchestrates the session and authorization core: credential
// verification, session issuance, two-factor finalization and module access
// checks. The session store is the single source of truth for session state;
// this service only reads snapshots and requests transitions through it.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/medflow/medflow-auth/access"
	"github.com/medflow/medflow-auth/internal/audit"
	"github.com/medflow/medflow-auth/sessions"
	"github.com/medflow/medflow-auth/token"
	"github.com/medflow/medflow-auth/twofactor"
	"github.com/medflow/medflow-auth/users"
)

const (
	sessionIDLength          = 32
	defaultSessionTTL        = 12 * time.Hour
	defaultChallengeTTL      = 5 * time.Minute
	defaultChallengeAttempts = 3
)

// LoginStatus is the outcome of a successful credential check.
type LoginStatus string

const (
	StatusActive           LoginStatus = "active"
	StatusPendingTwoFactor LoginStatus = "pending_two_factor"
)

// LoginResult is returned by Login and SubmitTwoFactorCode. AccessToken is
// only set once the session is active and a token creator is configured.
type LoginResult struct {
	Status      LoginStatus `json:"status"`
	SessionID   string      `json:"session_id"`
	AccessToken string      `json:"access_token,omitempty"`
	ExpiresAt   time.Time   `json:"expires_at,omitempty"`
}

// RegisterRequest carries the fields of the registration form.
type RegisterRequest struct {
	Email            string     `json:"email"`
	Password         string     `json:"password"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Phone            string     `json:"phone"`
	Role             users.Role `json:"role"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
}

// CodeDelivery hands a freshly generated one-time code to the user, e.g. by
// SMS or email. The default logs it at debug level for local development.
type CodeDelivery func(ctx context.Context, user *users.User, code string) error

// Repos holds all repository dependencies for the Service.
type Repos struct {
	Users      users.UserRepo // Account records
	Sessions   sessions.Store // Session state, single source of truth
	Challenges twofactor.Repo // One-time codes for pending sessions
}

// Service provides the login, two-factor, logout and access-check operations.
type Service struct {
	repos        Repos
	capabilities access.Table
	tokens       *token.Creator // optional
	trail        *audit.Trail   // optional
	deliverCode  CodeDelivery
	log          zerolog.Logger
	nowTime      func() time.Time // nowTime function (injectable for testing)

	sessionTTL        time.Duration
	challengeTTL      time.Duration
	challengeAttempts int
}

// Option defines a function type to modify the Service instance.
type Option func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithTokenCreator enables signed access tokens for active sessions.
func WithTokenCreator(tc *token.Creator) Option {
	return func(s *Service) {
		s.tokens = tc
	}
}

// WithAuditTrail records auth events to the given trail.
func WithAuditTrail(trail *audit.Trail) Option {
	return func(s *Service) {
		s.trail = trail
	}
}

// WithCodeDelivery sets how one-time codes reach the user.
func WithCodeDelivery(deliver CodeDelivery) Option {
	return func(s *Service) {
		s.deliverCode = deliver
	}
}

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// WithSessionTTL sets how long issued sessions live.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.sessionTTL = ttl
	}
}

// WithChallengeTTL sets how long a one-time code stays valid.
func WithChallengeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.challengeTTL = ttl
	}
}

// WithChallengeAttempts sets how many wrong codes revoke the pending session.
func WithChallengeAttempts(attempts int) Option {
	return func(s *Service) {
		s.challengeAttempts = attempts
	}
}

// NewService initializes a new Service with required dependencies. The
// capability table must carry a row for every defined role.
func NewService(repos Repos, capabilities access.Table, options ...Option) (*Service, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewService] Sessions store is required")
	}
	if repos.Challenges == nil {
		return nil, errors.New("[NewService] Challenges repo is required")
	}
	for _, role := range users.Roles() {
		if _, ok := capabilities[role]; !ok {
			return nil, errors.Errorf("[NewService] capability table is missing role %q", role)
		}
	}

	s := &Service{
		repos:             repos,
		capabilities:      capabilities,
		log:               zerolog.Nop(),
		nowTime:           time.Now,
		sessionTTL:        defaultSessionTTL,
		challengeTTL:      defaultChallengeTTL,
		challengeAttempts: defaultChallengeAttempts,
	}

	for _, opt := range options {
		opt(s)
	}

	if s.deliverCode == nil {
		s.deliverCode = func(_ context.Context, user *users.User, code string) error {
			s.log.Debug().Str("email", user.Email).Str("code", code).Msg("two-factor code generated")
			return nil
		}
	}

	return s, nil
}

// VerifyCredentials checks an email/password pair without creating any
// session. Unknown user and wrong password both come back as
// InvalidCredentialsErr; a deactivated account as AccountInactiveErr.
func (s *Service) VerifyCredentials(_ context.Context, email, password string) (*users.User, error) {
	if users.ValidateEmail(email) != nil || password == "" {
		return nil, InvalidCredentialsErr
	}

	user, err := s.repos.Users.GetByEmail(users.NormalizeEmail(email))
	if errors.Is(err, users.ErrNotFound) {
		return nil, InvalidCredentialsErr
	}
	if err != nil {
		return nil, storeUnavailable("VerifyCredentials", err)
	}

	if !users.CheckPasswordHash(password, user.PasswordHash) {
		return nil, InvalidCredentialsErr
	}
	if !user.CanAuthenticate() {
		return nil, AccountInactiveErr
	}
	return user, nil
}

// Login verifies credentials and issues a session. Accounts with two-factor
// enabled get a pending session plus a one-time code; everyone else is
// active immediately. All credential failures surface as the same generic
// error.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.VerifyCredentials(ctx, email, password)
	if err != nil {
		if errors.Is(err, InvalidCredentialsErr) {
			s.record(ctx, audit.Event{Type: audit.EventLoginFailed, Detail: "invalid credentials"})
			return nil, InvalidCredentialsErr
		}
		if errors.Is(err, AccountInactiveErr) {
			// Folded into the generic error so the response cannot be used
			// to probe for deactivated accounts; the trail keeps the cause.
			s.record(ctx, audit.Event{Type: audit.EventLoginFailed, Detail: "account inactive"})
			return nil, InvalidCredentialsErr
		}
		return nil, err
	}

	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user *users.User) (*LoginResult, error) {
	now := s.nowTime()

	sessionID, err := newSessionID()
	if err != nil {
		return nil, errors.Wrap(err, "[issueSession] session id generation")
	}

	session := sessions.Session{
		ID:         sessionID,
		UserID:     user.ID,
		Role:       user.Role,
		State:      sessions.StateActive,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.sessionTTL),
		LastSeenAt: now,
	}

	if user.TwoFactorEnabled {
		session.State = sessions.StatePendingTwoFactor
		if err := s.repos.Sessions.Create(ctx, session); err != nil {
			return nil, storeUnavailable("issueSession", err)
		}

		code, err := twofactor.GenerateCode()
		if err != nil {
			return nil, errors.Wrap(err, "[issueSession] code generation")
		}
		challenge := twofactor.Challenge{
			SessionID:         sessionID,
			Code:              code,
			ExpiresAt:         now.Add(s.challengeTTL),
			AttemptsRemaining: s.challengeAttempts,
		}
		if err := s.repos.Challenges.Put(ctx, challenge); err != nil {
			_ = s.repos.Sessions.Revoke(ctx, sessionID)
			return nil, storeUnavailable("issueSession", err)
		}
		if err := s.deliverCode(ctx, user, code); err != nil {
			_ = s.repos.Challenges.Delete(ctx, sessionID)
			_ = s.repos.Sessions.Revoke(ctx, sessionID)
			return nil, errors.Wrap(err, "[issueSession] code delivery")
		}

		s.record(ctx, audit.Event{Type: audit.EventLoginPendingCode, UserID: user.ID, SessionID: sessionID})
		return &LoginResult{Status: StatusPendingTwoFactor, SessionID: sessionID}, nil
	}

	if err := s.repos.Sessions.Create(ctx, session); err != nil {
		return nil, storeUnavailable("issueSession", err)
	}
	if err := s.repos.Users.SetLastLogin(user.Email, now); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	}

	s.record(ctx, audit.Event{Type: audit.EventLoginSucceeded, UserID: user.ID, SessionID: sessionID})
	return s.activeResult(user, session)
}

// SubmitTwoFactorCode finalizes a pending session. Submitting the correct
// code to an already active session is a no-op success. Exhausting the
// attempt budget revokes the session and destroys the challenge, forcing a
// full re-login.
func (s *Service) SubmitTwoFactorCode(ctx context.Context, sessionID, code string) (*LoginResult, error) {
	session, err := s.repos.Sessions.Get(ctx, sessionID)
	if errors.Is(err, sessions.ErrNotFound) {
		return nil, SessionNotFoundErr
	}
	if err != nil {
		return nil, storeUnavailable("SubmitTwoFactorCode", err)
	}

	switch session.State {
	case sessions.StateActive:
		return s.resultForSession(session)
	case sessions.StateExpired:
		return nil, SessionExpiredErr
	case sessions.StateRevoked:
		return nil, SessionNotFoundErr
	}

	challenge, err := s.repos.Challenges.Get(ctx, sessionID)
	if errors.Is(err, twofactor.ErrNotFound) {
		return nil, ChallengeNotFoundErr
	}
	if err != nil {
		return nil, storeUnavailable("SubmitTwoFactorCode", err)
	}

	if challenge.ExpiredAt(s.nowTime()) {
		_ = s.repos.Challenges.Delete(ctx, sessionID)
		_ = s.repos.Sessions.Revoke(ctx, sessionID)
		s.record(ctx, audit.Event{Type: audit.EventTwoFactorFailed, UserID: session.UserID, SessionID: sessionID, Detail: "challenge expired"})
		return nil, ChallengeExpiredErr
	}

	if !challenge.Matches(code) {
		remaining, err := s.repos.Challenges.DecrementAttempts(ctx, sessionID)
		if errors.Is(err, twofactor.ErrNotFound) {
			return nil, ChallengeNotFoundErr
		}
		if err != nil {
			return nil, storeUnavailable("SubmitTwoFactorCode", err)
		}

		if remaining <= 0 {
			_ = s.repos.Challenges.Delete(ctx, sessionID)
			_ = s.repos.Sessions.Revoke(ctx, sessionID)
			s.record(ctx, audit.Event{Type: audit.EventSessionRevoked, UserID: session.UserID, SessionID: sessionID, Detail: "two-factor attempts exhausted"})
			return nil, ChallengeAttemptsExhaustedErr
		}

		s.record(ctx, audit.Event{Type: audit.EventTwoFactorFailed, UserID: session.UserID, SessionID: sessionID, Detail: "code mismatch"})
		return nil, &CodeMismatchError{AttemptsRemaining: remaining}
	}

	session, err = s.repos.Sessions.Transition(ctx, sessionID, sessions.StateActive)
	if errors.Is(err, sessions.ErrIllegalTransition) {
		// A parallel submission won the transition; success either way.
		if session.State == sessions.StateActive {
			_ = s.repos.Challenges.Delete(ctx, sessionID)
			return s.resultForSession(session)
		}
		return nil, SessionNotFoundErr
	}
	if err != nil {
		return nil, storeUnavailable("SubmitTwoFactorCode", err)
	}

	if err := s.repos.Challenges.Delete(ctx, sessionID); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to destroy challenge")
	}

	s.record(ctx, audit.Event{Type: audit.EventTwoFactorSucceeded, UserID: session.UserID, SessionID: sessionID})
	return s.resultForSession(session)
}

// Logout revokes the session. Idempotent: logging out a revoked, expired or
// unknown session is not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	err := s.repos.Sessions.Revoke(ctx, sessionID)
	if errors.Is(err, sessions.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storeUnavailable("Logout", err)
	}

	_ = s.repos.Challenges.Delete(ctx, sessionID)
	s.record(ctx, audit.Event{Type: audit.EventLogout, SessionID: sessionID})
	return nil
}

// CheckAccess reports whether the session may use the module right now.
// Pending, expired, revoked and unknown sessions are allowed nothing; a role
// the capability table does not know fails closed. The returned error is
// only ever infrastructure trouble, never a denial.
func (s *Service) CheckAccess(ctx context.Context, sessionID string, module access.Module) (bool, error) {
	session, err := s.repos.Sessions.Get(ctx, sessionID)
	if errors.Is(err, sessions.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeUnavailable("CheckAccess", err)
	}

	now := s.nowTime()
	if !session.Authorizable(now) {
		return false, nil
	}

	allowed := s.capabilities.Allowed(session.Role, module)
	if allowed {
		if err := s.repos.Sessions.Touch(ctx, sessionID, now); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to touch session")
		}
	}
	return allowed, nil
}

// Session returns the current snapshot for UI introspection. Expired
// sessions come back as SessionExpiredErr so the UI can prompt a re-login.
func (s *Service) Session(ctx context.Context, sessionID string) (sessions.Session, error) {
	session, err := s.repos.Sessions.Get(ctx, sessionID)
	if errors.Is(err, sessions.ErrNotFound) {
		return sessions.Session{}, SessionNotFoundErr
	}
	if err != nil {
		return sessions.Session{}, storeUnavailable("Session", err)
	}
	if session.State == sessions.StateExpired {
		return session, SessionExpiredErr
	}
	return session, nil
}

// Modules lists the modules the session's role may access, for building
// navigation. Only active sessions get a non-empty list.
func (s *Service) Modules(ctx context.Context, sessionID string) ([]access.Module, error) {
	session, err := s.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Authorizable(s.nowTime()) {
		return nil, nil
	}
	return s.capabilities.ModulesFor(session.Role), nil
}

// Register creates a new account. The user can log in immediately; email
// verification remains a future extension of the state machine.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*users.User, error) {
	if err := users.ValidateEmail(req.Email); err != nil {
		return nil, errors.Wrap(InvalidCredentialsErr, err.Error())
	}
	if err := users.ValidatePasswordStrength(req.Password); err != nil {
		return nil, err
	}
	if !req.Role.Valid() {
		return nil, InvalidRoleErr
	}

	email := users.NormalizeEmail(req.Email)
	if _, err := s.repos.Users.GetByEmail(email); err == nil {
		return nil, DuplicateEmailErr
	} else if !errors.Is(err, users.ErrNotFound) {
		return nil, storeUnavailable("Register", err)
	}

	hash, err := users.HashPassword(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[Register] password hashing")
	}

	user := &users.User{
		ID:               uuid.New().String(),
		Email:            email,
		PasswordHash:     hash,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Phone:            req.Phone,
		Role:             req.Role,
		Active:           true,
		TwoFactorEnabled: req.TwoFactorEnabled,
		CreatedAt:        s.nowTime(),
	}
	if err := s.repos.Users.Upsert(user); err != nil {
		return nil, storeUnavailable("Register", err)
	}

	s.record(ctx, audit.Event{Type: audit.EventUserRegistered, UserID: user.ID})
	return user, nil
}

// PurgeExpiredSessions removes sessions past their deadline. Housekeeping,
// meant for a periodic ticker rather than the request path.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int, error) {
	purged, err := s.repos.Sessions.PurgeExpired(ctx, s.nowTime())
	if err != nil {
		return 0, storeUnavailable("PurgeExpiredSessions", err)
	}
	return purged, nil
}

func (s *Service) activeResult(user *users.User, session sessions.Session) (*LoginResult, error) {
	result := &LoginResult{
		Status:    StatusActive,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
	}
	if s.tokens == nil {
		return result, nil
	}

	accessToken, err := s.tokens.AccessToken(user.ID, user.Email, string(user.Role), session.ID, session.ExpiresAt)
	if err != nil {
		return nil, errors.Wrap(err, "[activeResult] access token")
	}
	result.AccessToken = accessToken
	return result, nil
}

func (s *Service) resultForSession(session sessions.Session) (*LoginResult, error) {
	user, err := s.repos.Users.GetByID(session.UserID)
	if err != nil {
		return nil, storeUnavailable("resultForSession", err)
	}
	return s.activeResult(user, session)
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.trail == nil {
		return
	}
	s.trail.Record(ctx, event)
}

func newSessionID() (string, error) {
	bytes := make([]byte, sessionIDLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

func storeUnavailable(op string, err error) error {
	return errors.Wrapf(StoreUnavailableErr, "[%s] %v", op, err)
}
