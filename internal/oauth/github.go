package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const githubAPIBase = "https://api.github.com"

// GitHub implements Provider using GitHub's OAuth flow. GitHub has no
// ID token, so the profile and the primary email are fetched from the
// REST API with the exchanged token.
type GitHub struct {
	cfg     *oauth2.Config
	apiBase string
}

// GitHubConfig holds the client credentials for the GitHub provider.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// NewGitHub constructs the GitHub provider.
func NewGitHub(cfg GitHubConfig) *GitHub {
	return &GitHub{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"user:email"},
			Endpoint:     endpoints.GitHub,
		},
		apiBase: githubAPIBase,
	}
}

func (g *GitHub) Name() string {
	return "github"
}

func (g *GitHub) LoginURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *GitHub) Exchange(ctx context.Context, code string) (Profile, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return Profile{}, ErrAuthFailed
		}
		return Profile{}, fmt.Errorf("exchange: %w", err)
	}

	client := g.cfg.Client(ctx, tok)

	var user githubUser
	if err := getJSON(ctx, client, g.apiBase+"/user", &user); err != nil {
		return Profile{}, fmt.Errorf("fetch profile: %w", err)
	}

	email := user.Email
	if email == "" {
		email, err = g.primaryEmail(ctx, client)
		if err != nil {
			return Profile{}, err
		}
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	return Profile{
		ID:          strconv.FormatInt(user.ID, 10),
		Email:       email,
		DisplayName: name,
		Picture:     user.AvatarURL,
	}, nil
}

// primaryEmail resolves the account email when the public profile
// hides it. Requires the user:email scope.
func (g *GitHub) primaryEmail(ctx context.Context, client *http.Client) (string, error) {
	var emails []githubEmail
	if err := getJSON(ctx, client, g.apiBase+"/user/emails", &emails); err != nil {
		return "", fmt.Errorf("fetch emails: %w", err)
	}
	for _, e := range emails {
		if e.Primary {
			return e.Email, nil
		}
	}
	if len(emails) > 0 {
		return emails[0].Email, nil
	}
	return "", ErrNoEmail
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
