// Package oauth implements the third-party login handshake with
// explicit provider objects constructed from configuration. Providers
// are injected where needed; nothing is registered globally.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
)

var (
	// ErrAuthFailed covers a rejected code exchange or state mismatch.
	ErrAuthFailed = errors.New("oauth authentication failed")
	// ErrNoEmail is returned when the provider did not share an email
	// address for the account.
	ErrNoEmail = errors.New("oauth profile has no email")
)

// Profile is the normalized identity returned by a provider after a
// successful handshake.
type Profile struct {
	ID          string
	Email       string
	DisplayName string
	Picture     string
}

// Provider drives one third-party login flow.
type Provider interface {
	// Name identifies the provider ("google", "github").
	Name() string
	// LoginURL builds the authorization redirect for the given state.
	LoginURL(state string) string
	// Exchange trades the callback code for a normalized profile.
	Exchange(ctx context.Context, code string) (Profile, error)
}

const stateCookiePrefix = "oauth_state_"

// NewState generates a random state value for a handshake.
func NewState() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// SaveState stores the handshake state in a short-lived cookie scoped
// to the provider.
func SaveState(w http.ResponseWriter, provider, state string) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookiePrefix + provider,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
	})
}

// CheckState compares the state echoed by the provider against the
// cookie saved at the start of the handshake, and clears the cookie.
func CheckState(w http.ResponseWriter, r *http.Request, provider, state string) error {
	cookie, err := r.Cookie(stateCookiePrefix + provider)
	if err != nil || state == "" || cookie.Value != state {
		return ErrAuthFailed
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookiePrefix + provider,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	return nil
}
