package auth

import (
	"errors"
	"fmt"
)

var (
	// InvalidCredentialsErr covers unknown user, wrong password and inactive
	// account alike so callers cannot enumerate accounts.
	InvalidCredentialsErr = errors.New("invalid email or password")

	// AccountInactiveErr is surfaced by VerifyCredentials for internal
	// callers; Login folds it into InvalidCredentialsErr.
	AccountInactiveErr = errors.New("account is deactivated")

	ChallengeNotFoundErr          = errors.New("challenge not found")
	ChallengeExpiredErr           = errors.New("challenge expired")
	ChallengeAttemptsExhaustedErr = errors.New("challenge attempts exhausted")

	SessionNotFoundErr = errors.New("session not found")
	SessionExpiredErr  = errors.New("session expired")

	DuplicateEmailErr = errors.New("email already registered")
	InvalidRoleErr    = errors.New("invalid role")

	// StoreUnavailableErr wraps infrastructure failures. Retryable, unlike
	// the validation errors above.
	StoreUnavailableErr = errors.New("store unavailable")
)

// CodeMismatchError reports an incorrect one-time code together with how
// many attempts remain, so the UI can show "2 attempts remaining" without
// leaking anything about account existence.
type CodeMismatchError struct {
	AttemptsRemaining int
}

func (e *CodeMismatchError) Error() string {
	return fmt.Sprintf("incorrect code, %d attempts remaining", e.AttemptsRemaining)
}
