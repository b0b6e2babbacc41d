package token

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTTL bounds how long a bearer token is honored.
	DefaultAccessTTL = 15 * time.Minute
	// DefaultRefreshTTL matches the refresh cookie max-age.
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the identity carried by an access token and attached to
// authenticated requests.
type Claims struct {
	UserID int
	Email  string
	Role   string
}

type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Issuer mints and verifies the access/refresh token pair. Access and
// refresh tokens are signed with separate secrets so one can never be
// presented in place of the other.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// Config holds the secrets and lifetimes for an Issuer.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// NewIssuer constructs an Issuer with the provided configuration.
func NewIssuer(cfg Config) *Issuer {
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Issuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// RefreshTTL returns the configured refresh token lifetime.
func (i *Issuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

// IssueAccess mints a short-lived access token carrying the subject
// id, email, and role.
func (i *Issuer) IssueAccess(claims Claims) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(claims.UserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
		Email: claims.Email,
		Role:  claims.Role,
	})
	return token.SignedString(i.accessSecret)
}

// IssueRefresh mints a long-lived refresh token carrying the subject
// id only.
func (i *Issuer) IssueRefresh(userID int) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
	})
	return token.SignedString(i.refreshSecret)
}

// VerifyAccess checks signature and expiry of an access token and
// returns the identity it carries.
func (i *Issuer) VerifyAccess(tokenString string) (Claims, error) {
	claims := accessClaims{}
	if err := parse(tokenString, &claims, i.accessSecret); err != nil {
		return Claims{}, err
	}
	userID, err := subjectID(claims.Subject)
	if err != nil {
		return Claims{}, err
	}
	return Claims{UserID: userID, Email: claims.Email, Role: claims.Role}, nil
}

// VerifyRefresh checks signature and expiry of a refresh token and
// returns the subject id.
func (i *Issuer) VerifyRefresh(tokenString string) (int, error) {
	claims := jwt.RegisteredClaims{}
	if err := parse(tokenString, &claims, i.refreshSecret); err != nil {
		return 0, err
	}
	return subjectID(claims.Subject)
}

func parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

func subjectID(subject string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(subject))
	if err != nil || id < 1 {
		return 0, ErrInvalidToken
	}
	return id, nil
}
