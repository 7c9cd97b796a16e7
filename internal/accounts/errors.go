package accounts

import "strings"

// SignupError wraps a backend signup failure with a message fit for users.
type SignupError struct {
	Err error
}

func (e *SignupError) Error() string { return FriendlySignupError(e.Err) }
func (e *SignupError) Unwrap() error { return e.Err }

// FriendlySignupError maps backend signup errors onto user-facing text.
func FriendlySignupError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "already registered"), strings.Contains(msg, "already exists"):
		return "An account with this email already exists. Please sign in."
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "profiles_pkey"):
		return "Account already exists. Please sign in instead."
	case strings.Contains(msg, "password"):
		return "Password must be at least 6 characters."
	default:
		return "Signup failed. Please try again."
	}
}
