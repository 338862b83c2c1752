package service

import "errors"

// Error kinds. Handlers map them to HTTP status codes.
var (
	ErrValidation  = errors.New("validation failed")
	ErrAuth        = errors.New("authentication failed")
	ErrForbidden   = errors.New("forbidden")
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("service unavailable")
)

// Error carries a client-facing message together with its kind, so that
// errors.Is(err, ErrValidation) etc. work on it.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

var (
	errCredentialsRequired = newError(ErrValidation, "Email and password are required")
	errPasswordTooShort    = newError(ErrValidation, "Password must be at least 6 characters")
	errEmailTaken          = newError(ErrValidation, "Email already registered")
	errInvalidInvite       = newError(ErrForbidden, "Invalid invite code")
	errInvalidCredentials  = newError(ErrAuth, "Invalid email or password")
	errUserNotFound        = newError(ErrNotFound, "User not found")
)
