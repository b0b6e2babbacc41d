package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/TaichKarna/levlelup/internal/token"
)

type contextKey string

// contextAuthKey carries the verified identity of the request.
const contextAuthKey contextKey = "auth"

const refreshCookieName = "refresh_token"

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the uniform informational body.
type MessageResponse struct {
	Message string `json:"message"`
}

// authFromContext returns the identity attached by RequireAuth.
func authFromContext(ctx context.Context) (token.Claims, error) {
	claims, ok := ctx.Value(contextAuthKey).(token.Claims)
	if !ok || claims.UserID < 1 {
		return token.Claims{}, errors.New("missing auth context")
	}
	return claims, nil
}

func withAuthContext(ctx context.Context, claims token.Claims) context.Context {
	return context.WithValue(ctx, contextAuthKey, claims)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

// setRefreshCookie delivers the refresh token. The cookie is httpOnly
// always and Secure in production.
func setRefreshCookie(w http.ResponseWriter, refreshToken string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearRefreshCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
