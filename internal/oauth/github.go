package oauth

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"project_archive/internal/config"
	"project_archive/internal/models"
)

const (
	githubTokenURL  = "https://github.com/login/oauth/access_token"
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
)

// GitHub validates an authorization code: exchanges it for an access token,
// then fetches the profile and the email list with that token.
type GitHub struct {
	client       *resty.Client
	clientID     string
	clientSecret string

	tokenURL  string
	userURL   string
	emailsURL string
}

func NewGitHub(cfg config.OAuthProvider) (*GitHub, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("github: %w", ErrNotConfigured)
	}

	return &GitHub{
		client:       newClient(),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		tokenURL:     githubTokenURL,
		userURL:      githubUserURL,
		emailsURL:    githubEmailsURL,
	}, nil
}

func (g *GitHub) Validate(ctx context.Context, code string) (models.UserInfo, error) {
	const op = "oauth.GitHub.Validate"

	accessToken, err := g.exchangeCode(ctx, code)
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("%s: %w", op, err)
	}

	var profile struct {
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&profile).
		Get(g.userURL)
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("%s: user: %w: %v", op, ErrUpstream, err)
	}
	if resp.IsError() {
		return models.UserInfo{}, fmt.Errorf("%s: user: %w: status %d", op, ErrUpstream, resp.StatusCode())
	}

	email, err := g.primaryEmail(ctx, accessToken)
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("%s: %w", op, err)
	}

	firstName, lastName := splitName(profile.Name)

	return models.UserInfo{
		Provider:  models.ProviderGitHub,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Photo:     profile.AvatarURL,
	}, nil
}

func (g *GitHub) exchangeCode(ctx context.Context, code string) (string, error) {
	var tokenData struct {
		AccessToken string `json:"access_token"`
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetFormData(map[string]string{
			"client_id":     g.clientID,
			"client_secret": g.clientSecret,
			"code":          code,
		}).
		SetResult(&tokenData).
		Post(g.tokenURL)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w: %v", ErrUpstream, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("token exchange: %w: status %d", ErrUpstream, resp.StatusCode())
	}

	if tokenData.AccessToken == "" {
		return "", ErrNoAccessToken
	}

	return tokenData.AccessToken, nil
}

// primaryEmail selects the primary verified email, falling back to the first
// listed one.
func (g *GitHub) primaryEmail(ctx context.Context, accessToken string) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&emails).
		Get(g.emailsURL)
	if err != nil {
		return "", fmt.Errorf("emails: %w: %v", ErrUpstream, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("emails: %w: status %d", ErrUpstream, resp.StatusCode())
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	if len(emails) > 0 {
		return emails[0].Email, nil
	}

	return "", ErrNoEmail
}

func splitName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}

	first, rest, found := strings.Cut(name, " ")
	if !found {
		return first, ""
	}
	return first, rest
}
