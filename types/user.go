package types

import "time"

// Auth providers accepted for an account.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// Roles understood by the authorization layer.
const (
	RoleUser       = "user"
	RoleUniversity = "university"
	RoleAdmin      = "admin"
)

// User represents an account in the system.
// It contains identity, credential, and verification state.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address, stored lowercased.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// Empty for accounts created through an OAuth provider.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Provider records how the account authenticates:
	// "local", "google", or "github".
	Provider string `json:"provider" db:"provider"`

	// ProviderID is the external account identifier assigned by the
	// OAuth provider. Empty for local accounts.
	ProviderID string `json:"-" db:"provider_id"`

	// ProfilePicture is an optional avatar URL.
	ProfilePicture string `json:"profile_picture" db:"profile_picture"`

	// IsVerified reports whether the user proved control of their
	// email address. OAuth accounts are verified on creation.
	IsVerified bool `json:"is_verified" db:"is_verified"`

	// VerificationToken is the single-use token mailed at
	// registration and cleared once consumed.
	VerificationToken string `json:"-" db:"verification_token"`

	// ResetPasswordToken and ResetPasswordExpires track an in-flight
	// password reset.
	ResetPasswordToken   string    `json:"-" db:"reset_password_token"`
	ResetPasswordExpires time.Time `json:"-" db:"reset_password_expires"`

	// Role indicates the user's authorization level:
	// "user", "university", or "admin".
	Role string `json:"role" db:"role"`

	// UniversityID links the user to a university, when set.
	UniversityID int `json:"university_id,omitempty" db:"university_id"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
