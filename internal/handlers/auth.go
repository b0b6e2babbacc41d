package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/TaichKarna/levlelup/internal/mail"
	"github.com/TaichKarna/levlelup/internal/oauth"
	"github.com/TaichKarna/levlelup/internal/services"
	"github.com/TaichKarna/levlelup/internal/store"
	"github.com/TaichKarna/levlelup/internal/token"
	"github.com/TaichKarna/levlelup/types"
	"github.com/go-chi/chi/v5"
)

// AuthHandler provides registration, login, token, and OAuth
// endpoints.
type AuthHandler struct {
	users         *services.UserService
	issuer        *token.Issuer
	mailer        *mail.Mailer
	providers     map[string]oauth.Provider
	clientURL     string
	secureCookies bool
}

// AuthHandlerConfig carries the dependencies for NewAuthHandler.
type AuthHandlerConfig struct {
	Users         *services.UserService
	Issuer        *token.Issuer
	Mailer        *mail.Mailer
	Providers     []oauth.Provider
	ClientURL     string
	SecureCookies bool
}

// NewAuthHandler constructs an AuthHandler with the provided
// dependencies. OAuth providers are injected explicitly; a provider
// absent from the list simply has no routes.
func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	providers := make(map[string]oauth.Provider, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providers[p.Name()] = p
	}
	return &AuthHandler{
		users:         cfg.Users,
		issuer:        cfg.Issuer,
		mailer:        cfg.Mailer,
		providers:     providers,
		clientURL:     strings.TrimRight(cfg.ClientURL, "/"),
		secureCookies: cfg.SecureCookies,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/refresh", handler.Refresh)
	r.With(handler.RequireAuth).Post("/logout", handler.Logout)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
	r.Get("/verify-email/{token}", handler.VerifyEmail)
	r.Post("/forgot-password", handler.ForgotPassword)
	r.Post("/reset-password/{token}", handler.ResetPassword)

	for name := range handler.providers {
		r.Get("/"+name, handler.OAuthBegin(name))
		r.Get("/"+name+"/callback", handler.OAuthCallback(name))
	}
}

// RequireAuth enforces a valid bearer token and attaches the decoded
// identity to the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		claims, err := h.issuer.VerifyAccess(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(withAuthContext(r.Context(), claims)))
	})
}

// RequireRole gates a route on the role carried by the access token.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if claims.Role != role {
				writeError(w, http.StatusForbidden, "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type RegisterRequest struct {
	Username   string            `json:"username"`
	Email      string            `json:"email"`
	Password   string            `json:"password"`
	University UniversityPayload `json:"university"`
}

type UniversityPayload struct {
	InstitutionName     string `json:"institutionName"`
	InstitutionType     string `json:"institutionType"`
	Affiliation         string `json:"affiliation"`
	RegistrationNumber  string `json:"registrationNumber"`
	YearOfEstablishment int    `json:"yearOfEstablishment"`
	Website             string `json:"website"`
	Logo                string `json:"logo"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the sanitized user projection returned by auth
// endpoints. It never carries credential material.
type UserResponse struct {
	ID             int    `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	Provider       string `json:"provider"`
	ProfilePicture string `json:"profile_picture,omitempty"`
	Role           string `json:"role"`
	University     string `json:"university,omitempty"`
	IsVerified     bool   `json:"is_verified"`
}

type LoginResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"accessToken"`
}

type AccessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

func sanitizeUser(user types.User, universityName string) UserResponse {
	return UserResponse{
		ID:             user.ID,
		Username:       user.Username,
		Email:          user.Email,
		Provider:       user.Provider,
		ProfilePicture: user.ProfilePicture,
		Role:           user.Role,
		University:     universityName,
		IsVerified:     user.IsVerified,
	}
}

// Register creates a local account and queues the verification email.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.University.InstitutionName = strings.TrimSpace(req.University.InstitutionName)
	if req.Username == "" || req.Email == "" || req.Password == "" || req.University.InstitutionName == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	if !types.ValidUniversityType(req.University.InstitutionType) {
		writeError(w, http.StatusBadRequest, "invalid institution type")
		return
	}

	user, uni, err := h.users.Register(r.Context(), services.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		University: services.UniversityDetails{
			Name:                req.University.InstitutionName,
			InstitutionType:     req.University.InstitutionType,
			Affiliation:         req.University.Affiliation,
			RegistrationNumber:  req.University.RegistrationNumber,
			YearOfEstablishment: req.University.YearOfEstablishment,
			Website:             req.University.Website,
			Logo:                req.University.Logo,
		},
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "user with this email or username already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	if err := h.mailer.SendVerification(r.Context(), user.Email, user.VerificationToken); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to send verification email")
		return
	}

	message := "University is pending admin approval. Login after approval."
	if uni.IsVerified {
		message = "User registered. Please verify your email."
	}
	writeMessage(w, http.StatusCreated, message)
}

// Login validates credentials, mints the token pair, and delivers the
// refresh token as a cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, uni, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, "invalid credentials")
		case errors.Is(err, services.ErrUniversityPending):
			writeError(w, http.StatusForbidden, "university not verified yet, contact admin")
		case errors.Is(err, services.ErrNotVerified):
			writeError(w, http.StatusForbidden, "please verify your email before logging in")
		default:
			writeError(w, http.StatusInternalServerError, "failed to authenticate")
		}
		return
	}

	accessToken, refreshToken, err := h.mintTokens(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	setRefreshCookie(w, refreshToken, h.issuer.RefreshTTL(), h.secureCookies)
	writeJSON(w, http.StatusOK, LoginResponse{
		User:        sanitizeUser(user, uni.Name),
		AccessToken: accessToken,
	})
}

// Refresh exchanges a valid refresh cookie for a new access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID, err := h.issuer.VerifyRefresh(cookie.Value)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	accessToken, err := h.issuer.IssueAccess(token.Claims{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}
	writeJSON(w, http.StatusOK, AccessTokenResponse{AccessToken: accessToken})
}

// Logout clears the refresh cookie. Access tokens stay valid until
// expiry; no revocation list is kept.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clearRefreshCookie(w, h.secureCookies)
	writeMessage(w, http.StatusOK, "logged out successfully")
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, err := authFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, sanitizeUser(user, ""))
}

// VerifyEmail consumes a verification token from the emailed link.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if _, err := h.users.VerifyEmail(r.Context(), chi.URLParam(r, "token")); err != nil {
		if errors.Is(err, services.ErrInvalidToken) {
			writeError(w, http.StatusBadRequest, "invalid verification token")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to verify email")
		return
	}
	writeMessage(w, http.StatusOK, "email verified successfully, you can now login")
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword issues a reset token and queues the reset email. The
// response is the same whether or not the email exists, so the
// endpoint cannot be used to enumerate accounts.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	resetToken, err := h.users.ForgotPassword(r.Context(), req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to process request")
		return
	}
	if err == nil {
		if err := h.mailer.SendPasswordReset(r.Context(), strings.ToLower(req.Email), resetToken); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to send reset email")
			return
		}
	}
	writeMessage(w, http.StatusOK, "if that email exists, a password reset link has been sent")
}

type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// ResetPassword consumes a reset token from the emailed link.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	if err := h.users.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		if errors.Is(err, services.ErrInvalidToken) {
			writeError(w, http.StatusBadRequest, "invalid or expired token")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}
	writeMessage(w, http.StatusOK, "password reset successful")
}

// OAuthBegin starts the handshake for the named provider.
func (h *AuthHandler) OAuthBegin(name string) http.HandlerFunc {
	provider := h.providers[name]
	return func(w http.ResponseWriter, r *http.Request) {
		state := oauth.NewState()
		oauth.SaveState(w, name, state)
		http.Redirect(w, r, provider.LoginURL(state), http.StatusFound)
	}
}

// OAuthCallback completes the handshake: the code is exchanged, the
// profile linked or created, and the access token handed to the
// frontend via a redirect parameter. The refresh token travels as the
// usual cookie.
func (h *AuthHandler) OAuthCallback(name string) http.HandlerFunc {
	provider := h.providers[name]
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")
		if code == "" || oauth.CheckState(w, r, name, state) != nil {
			h.redirectLoginError(w, r)
			return
		}

		profile, err := provider.Exchange(r.Context(), code)
		if err != nil {
			h.redirectLoginError(w, r)
			return
		}

		user, err := h.users.CreateOrLinkOAuth(r.Context(), name, profile)
		if err != nil {
			h.redirectLoginError(w, r)
			return
		}

		accessToken, refreshToken, err := h.mintTokens(user)
		if err != nil {
			h.redirectLoginError(w, r)
			return
		}

		setRefreshCookie(w, refreshToken, h.issuer.RefreshTTL(), h.secureCookies)
		redirect := fmt.Sprintf("%s/oauth-callback?token=%s", h.clientURL, url.QueryEscape(accessToken))
		http.Redirect(w, r, redirect, http.StatusFound)
	}
}

func (h *AuthHandler) redirectLoginError(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.clientURL+"/login?error=authentication_failed", http.StatusFound)
}

func (h *AuthHandler) mintTokens(user types.User) (accessToken, refreshToken string, err error) {
	accessToken, err = h.issuer.IssueAccess(token.Claims{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return "", "", err
	}
	refreshToken, err = h.issuer.IssueRefresh(user.ID)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return "", errors.New("invalid authorization")
	}
	return tokenString, nil
}
