package users

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Role is a coarse-grained user category. It is the sole key used for
// capability lookups when authorizing module access.
type Role string

const (
	RoleProvider Role = "provider"
	RoleStaff    Role = "staff"
	RolePatient  Role = "patient"
	RoleAdmin    Role = "admin"
)

// Roles lists every defined role. The capability table must carry a row for
// each of these.
func Roles() []Role {
	return []Role{RoleProvider, RoleStaff, RolePatient, RoleAdmin}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleProvider, RoleStaff, RolePatient, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID               string    `json:"id,omitempty"`         // Unique identifier for the user
	Email            string    `json:"email,omitempty"`      // Normalized (lower-cased) email address
	PasswordHash     string    `json:"-"`                    // Hashed version of the user's password - never serialize
	FirstName        string    `json:"first_name,omitempty"` // First name of the user
	LastName         string    `json:"last_name,omitempty"`  // Last name of the user
	Phone            string    `json:"phone,omitempty"`      // Contact phone number
	Role             Role      `json:"role,omitempty"`       // provider, staff, patient or admin
	Active           bool      `json:"active"`               // Inactive users cannot authenticate
	Verified         bool      `json:"verified,omitempty"`   // Has the user verified their email address
	TwoFactorEnabled bool      `json:"two_factor_enabled"`   // Login must be finalized with a one-time code
	CreatedAt        time.Time `json:"created_at,omitempty"`
	LastLogin        time.Time `json:"last_login,omitempty"`
}

// NormalizeEmail lower-cases and trims an email address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that the address is syntactically valid.
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("email is not valid")
	}
	return nil
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CanAuthenticate reports whether the account is allowed to start a login.
func (u *User) CanAuthenticate() bool {
	return u.Active
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
