package services

import "errors"

var (
	// ErrInvalidCredentials covers unknown accounts, accounts without
	// a password (OAuth-only), and failed password comparison. The
	// three cases are indistinguishable to the caller on purpose.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotVerified is returned when a local account has not
	// consumed its email verification token yet.
	ErrNotVerified = errors.New("email not verified")

	// ErrUniversityPending is returned when the account's university
	// has not been verified by an admin yet.
	ErrUniversityPending = errors.New("university not verified")

	// ErrInvalidToken covers unknown, already-used, and expired
	// verification or reset tokens.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrPasswordMismatch is returned when the current password given
	// for a password change does not match.
	ErrPasswordMismatch = errors.New("current password is incorrect")

	// ErrNoReport is returned when a challenge is filed against a
	// university that has no generated report.
	ErrNoReport = errors.New("no report to challenge")

	// ErrNotOwned is returned when a university admin acts on a user
	// outside their own university.
	ErrNotOwned = errors.New("user belongs to another university")
)
