package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const googleIssuerURL = "https://accounts.google.com"

// Google implements Provider using Google's OIDC flow. The profile is
// read from the verified ID token rather than a userinfo call.
type Google struct {
	cfg      *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// GoogleConfig holds the client credentials for the Google provider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type googleClaims struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// NewGoogle constructs the Google provider, performing OIDC discovery.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuerURL)
	if err != nil {
		return nil, fmt.Errorf("new oidc provider: %w", err)
	}

	return &Google{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			Endpoint:     endpoints.Google,
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

func (g *Google) Name() string {
	return "google"
}

func (g *Google) LoginURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

func (g *Google) Exchange(ctx context.Context, code string) (Profile, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return Profile{}, ErrAuthFailed
		}
		return Profile{}, fmt.Errorf("exchange: %w", err)
	}

	raw, ok := tok.Extra("id_token").(string)
	if !ok {
		return Profile{}, ErrAuthFailed
	}
	idToken, err := g.verifier.Verify(ctx, raw)
	if err != nil {
		return Profile{}, fmt.Errorf("verify id token: %w", err)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return Profile{}, fmt.Errorf("read claims: %w", err)
	}
	if claims.Email == "" {
		return Profile{}, ErrNoEmail
	}

	return Profile{
		ID:          claims.Sub,
		Email:       claims.Email,
		DisplayName: claims.Name,
		Picture:     claims.Picture,
	}, nil
}
