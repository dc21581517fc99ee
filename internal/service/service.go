package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"project_archive/internal/auth"
	"project_archive/internal/config"
	"project_archive/internal/mailer"
	"project_archive/internal/models"
	"project_archive/internal/oauth"
	"project_archive/internal/storage"
)

const tokenType = "bearer"

var (
	ErrInvalidOTP         = errors.New("invalid or expired otp")
	ErrInvalidCredentials = errors.New("wrong email or password")
	ErrNoFieldsToUpdate   = errors.New("no fields to update")
)

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// LoginResult is the token bundle returned by every login modality.
type LoginResult struct {
	Tokens
	FullName string  `json:"full_name"`
	Role     string  `json:"role"`
	Photo    *string `json:"photo,omitempty"`
}

type Service interface {
	RequestOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (LoginResult, error)
	OAuthLogin(ctx context.Context, provider, token string) (LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
	AdminLogin(ctx context.Context, email, password string) (LoginResult, error)
	Profile(ctx context.Context, userID int64) (models.User, error)
	UpdateProfile(ctx context.Context, userID int64, update storage.ProfileUpdate) error
}

type service struct {
	storage     storage.Storage
	issuer      *auth.Issuer
	mailer      mailer.Sender
	otpLifetime time.Duration

	newValidator func(provider string) (oauth.Validator, error)
}

func NewService(st storage.Storage, issuer *auth.Issuer, sender mailer.Sender, otpLifetime time.Duration, oauthCfg config.OAuth) *service {
	return &service{
		storage:     st,
		issuer:      issuer,
		mailer:      sender,
		otpLifetime: otpLifetime,
		newValidator: func(provider string) (oauth.Validator, error) {
			return oauth.New(provider, oauthCfg)
		},
	}
}

// RequestOTP creates the user on first login. The caller's response must not
// reveal whether the user already existed.
func (s *service) RequestOTP(ctx context.Context, email string) error {
	const op = "service.RequestOTP"

	email = normalizeEmail(email)

	userID, err := s.getOrCreateUser(ctx, email, "", "")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	code, err := auth.GenerateOTP()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.CreateOTP(ctx, userID, code); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.mailer.SendOTP(ctx, email, code); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// VerifyOTP consumes every stored code for the user, whether or not the
// check passes. A second attempt with the same code always fails.
func (s *service) VerifyOTP(ctx context.Context, email, code string) (LoginResult, error) {
	const op = "service.VerifyOTP"

	user, err := s.storage.GetUserByEmail(ctx, normalizeEmail(email), false)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	valid := false
	record, err := s.storage.GetOTP(ctx, user.ID, code)
	switch {
	case err == nil:
		valid = record.CreatedAt.Add(s.otpLifetime).After(time.Now())
	case errors.Is(err, storage.ErrOTPNotFound):
	default:
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.DeleteOTPsForUser(ctx, user.ID); err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if !valid {
		return LoginResult{}, fmt.Errorf("%s: %w", op, ErrInvalidOTP)
	}

	result, err := s.loginResult(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

func (s *service) OAuthLogin(ctx context.Context, provider, token string) (LoginResult, error) {
	const op = "service.OAuthLogin"

	validator, err := s.newValidator(provider)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	info, err := validator.Validate(ctx, token)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	userID, err := s.getOrCreateUser(ctx, info.Email, info.FirstName, info.LastName)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	result, err := s.loginResult(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if result.Photo == nil && info.Photo != "" {
		result.Photo = &info.Photo
	}

	return result, nil
}

// Refresh issues a new access token for the subject. The refresh token is
// returned unchanged, there is no rotation.
func (s *service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	const op = "service.Refresh"

	userID, err := s.issuer.Decode(refreshToken)
	if err != nil {
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	access, err := s.issuer.IssueAccess(userID)
	if err != nil {
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	return Tokens{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    tokenType,
	}, nil
}

func (s *service) AdminLogin(ctx context.Context, email, password string) (LoginResult, error) {
	const op = "service.AdminLogin"

	user, err := s.storage.GetUserByEmail(ctx, normalizeEmail(email), true)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.storage.GetPasswordHash(ctx, user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if ok := auth.CheckPasswordHash(hash, password); !ok {
		return LoginResult{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	result, err := s.loginResult(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

func (s *service) Profile(ctx context.Context, userID int64) (models.User, error) {
	const op = "service.Profile"

	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *service) UpdateProfile(ctx context.Context, userID int64, update storage.ProfileUpdate) error {
	const op = "service.UpdateProfile"

	if update.Empty() {
		return fmt.Errorf("%s: %w", op, ErrNoFieldsToUpdate)
	}

	if err := s.storage.UpdateUserProfile(ctx, userID, update); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *service) getOrCreateUser(ctx context.Context, email, firstName, lastName string) (int64, error) {
	user, err := s.storage.GetUserByEmail(ctx, email, false)
	if err == nil {
		return user.ID, nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return 0, err
	}

	username, err := auth.GenerateUsername(email)
	if err != nil {
		return 0, err
	}

	return s.storage.CreateUser(ctx, email, username, firstName, lastName)
}

func (s *service) loginResult(user models.User) (LoginResult, error) {
	access, err := s.issuer.IssueAccess(user.ID)
	if err != nil {
		return LoginResult{}, err
	}

	refresh, err := s.issuer.IssueRefresh(user.ID)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		Tokens: Tokens{
			AccessToken:  access,
			RefreshToken: refresh,
			TokenType:    tokenType,
		},
		FullName: user.FullName(),
		Role:     user.Role,
		Photo:    user.Photo,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
