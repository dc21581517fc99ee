// Package oauth validates third-party sign-in credentials and normalizes the
// identity claims each provider returns.
package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"

	"project_archive/internal/config"
	"project_archive/internal/models"
)

const requestTimeout = 10 * time.Second

var (
	ErrUnsupportedProvider = errors.New("unsupported oauth provider")
	ErrNotConfigured       = errors.New("oauth provider is not configured")
	ErrInvalidAudience     = errors.New("token audience does not match client id")
	ErrNoAccessToken       = errors.New("no access token in provider response")
	ErrNoEmail             = errors.New("no email available for account")

	// ErrUpstream marks provider HTTP or network failures. They surface to
	// the caller immediately; there is no retry policy.
	ErrUpstream = errors.New("provider request failed")
)

type Validator interface {
	Validate(ctx context.Context, token string) (models.UserInfo, error)
}

// New dispatches on the provider key. Unknown keys and missing credentials
// fail before any network call.
func New(provider string, cfg config.OAuth) (Validator, error) {
	switch provider {
	case models.ProviderGoogle:
		return NewGoogle(cfg.Google)
	case models.ProviderGitHub:
		return NewGitHub(cfg.GitHub)
	default:
		return nil, ErrUnsupportedProvider
	}
}

func newClient() *resty.Client {
	return resty.New().SetTimeout(requestTimeout)
}
