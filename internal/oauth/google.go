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
	googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"
	googleUserInfoURL  = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// Google validates an access token: introspects it to confirm the audience
// matches our client id, then fetches the user's profile with the same token.
type Google struct {
	client   *resty.Client
	clientID string

	tokenInfoURL string
	userInfoURL  string
}

func NewGoogle(cfg config.OAuthProvider) (*Google, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("google: %w", ErrNotConfigured)
	}

	return &Google{
		client:       newClient(),
		clientID:     cfg.ClientID,
		tokenInfoURL: googleTokenInfoURL,
		userInfoURL:  googleUserInfoURL,
	}, nil
}

func (g *Google) Validate(ctx context.Context, token string) (models.UserInfo, error) {
	const op = "oauth.Google.Validate"

	var tokenInfo struct {
		Aud string `json:"aud"`
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParam("access_token", token).
		SetResult(&tokenInfo).
		Get(g.tokenInfoURL)
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("%s: tokeninfo: %w: %v", op, ErrUpstream, err)
	}
	if resp.IsError() {
		return models.UserInfo{}, fmt.Errorf("%s: tokeninfo: %w: status %d", op, ErrUpstream, resp.StatusCode())
	}

	if tokenInfo.Aud != g.clientID {
		return models.UserInfo{}, fmt.Errorf("%s: %w", op, ErrInvalidAudience)
	}

	var userInfo struct {
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
	}

	resp, err = g.client.R().
		SetContext(ctx).
		SetQueryParam("access_token", token).
		SetResult(&userInfo).
		Get(g.userInfoURL)
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("%s: userinfo: %w: %v", op, ErrUpstream, err)
	}
	if resp.IsError() {
		return models.UserInfo{}, fmt.Errorf("%s: userinfo: %w: status %d", op, ErrUpstream, resp.StatusCode())
	}

	return models.UserInfo{
		Provider:  models.ProviderGoogle,
		Email:     strings.ToLower(strings.TrimSpace(userInfo.Email)),
		FirstName: userInfo.GivenName,
		LastName:  userInfo.FamilyName,
	}, nil
}
