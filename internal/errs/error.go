package errs

import (
	"errors"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateEmail     = errors.New("email already registered")
	// ErrPartialRegistration: the identity row exists without a
	// profile. Session resolution treats such identities as anonymous.
	ErrPartialRegistration = errors.New("registration incomplete: profile not created")

	ErrNotEligible     = errors.New("user may not borrow books")
	ErrAlreadyBorrowed = errors.New("user already has an active loan for this book")
	ErrUnavailable     = errors.New("no copies available")
	ErrAlreadyReturned = errors.New("loan already returned")
	ErrBookOnLoan      = errors.New("book has loan records")

	// ErrInvariantViolation signals a bookkeeping bug (e.g. a return
	// that would push available copies past total copies), not a user
	// mistake. It is logged and surfaced distinctly.
	ErrInvariantViolation = errors.New("availability invariant violated")
)

type ValidationErrorResponse struct {
	Message string `json:"message"`
	Errors  struct {
		AdditionalProperties string `json:"additionalProperties"`
	} `json:"errors"`
}
