package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project_archive/internal/auth"
	"project_archive/internal/config"
	"project_archive/internal/models"
	"project_archive/internal/oauth"
	"project_archive/internal/storage"
)

const testOTPLifetime = 10 * time.Minute

type fakeStorage struct {
	users     map[int64]models.User
	passwords map[int64]string
	otps      []models.OTPRecord
	nextID    int64
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		users:     make(map[int64]models.User),
		passwords: make(map[int64]string),
		nextID:    1,
	}
}

func (f *fakeStorage) GetUserByEmail(_ context.Context, email string, adminOnly bool) (models.User, error) {
	for _, u := range f.users {
		if u.Email != email || u.IsArchived {
			continue
		}
		if adminOnly && u.Role != models.RoleAdmin && u.Role != models.RoleStaff {
			continue
		}
		return u, nil
	}
	return models.User{}, storage.ErrUserNotFound
}

func (f *fakeStorage) GetUserByID(_ context.Context, userID int64) (models.User, error) {
	u, ok := f.users[userID]
	if !ok || u.IsArchived {
		return models.User{}, storage.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStorage) CreateUser(_ context.Context, email, username, firstName, lastName string) (int64, error) {
	id := f.nextID
	f.nextID++
	now := time.Now()
	f.users[id] = models.User{
		ID:         id,
		Username:   username,
		Email:      email,
		FirstName:  firstName,
		LastName:   lastName,
		Role:       models.RoleVisitor,
		IsActive:   true,
		DateJoined: now,
		UpdatedAt:  now,
	}
	return id, nil
}

func (f *fakeStorage) UpdateUserProfile(_ context.Context, userID int64, update storage.ProfileUpdate) error {
	u, ok := f.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	if update.FirstName != nil {
		u.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		u.LastName = *update.LastName
	}
	if update.PhoneNo != nil {
		u.PhoneNo = *update.PhoneNo
	}
	if update.Photo != nil {
		u.Photo = update.Photo
	}
	u.UpdatedAt = time.Now()
	f.users[userID] = u
	return nil
}

func (f *fakeStorage) GetPasswordHash(_ context.Context, userID int64) (string, error) {
	hash, ok := f.passwords[userID]
	if !ok {
		return "", storage.ErrUserNotFound
	}
	return hash, nil
}

func (f *fakeStorage) CreateOTP(_ context.Context, userID int64, code string) error {
	f.otps = append(f.otps, models.OTPRecord{
		ID:        int64(len(f.otps) + 1),
		UserID:    userID,
		Code:      code,
		CreatedAt: time.Now(),
	})
	return nil
}

func (f *fakeStorage) GetOTP(_ context.Context, userID int64, code string) (models.OTPRecord, error) {
	for _, r := range f.otps {
		if r.UserID == userID && r.Code == code {
			return r, nil
		}
	}
	return models.OTPRecord{}, storage.ErrOTPNotFound
}

func (f *fakeStorage) DeleteOTPsForUser(_ context.Context, userID int64) error {
	kept := f.otps[:0]
	for _, r := range f.otps {
		if r.UserID != userID {
			kept = append(kept, r)
		}
	}
	f.otps = kept
	return nil
}

func (f *fakeStorage) Close() {}

type fakeMailer struct {
	sentTo    []string
	sentCodes []string
	err       error
}

func (f *fakeMailer) SendOTP(_ context.Context, recipient, code string) error {
	if f.err != nil {
		return f.err
	}
	f.sentTo = append(f.sentTo, recipient)
	f.sentCodes = append(f.sentCodes, code)
	return nil
}

type fakeValidator struct {
	info models.UserInfo
	err  error
}

func (f *fakeValidator) Validate(context.Context, string) (models.UserInfo, error) {
	return f.info, f.err
}

func newTestService(st storage.Storage, sender *fakeMailer) *service {
	issuer := auth.NewIssuer("test-secret", time.Hour, 24*time.Hour)
	return NewService(st, issuer, sender, testOTPLifetime, config.OAuth{})
}

func TestRequestOTPCreatesUser(t *testing.T) {
	t.Parallel()

	st := newFakeStorage()
	sender := &fakeMailer{}
	svc := newTestService(st, sender)

	err := svc.RequestOTP(context.Background(), " New.User@Example.com ")
	require.NoError(t, err)

	user, err := st.GetUserByEmail(context.Background(), "new.user@example.com", false)
	require.NoError(t, err)
	assert.Equal(t, models.RoleVisitor, user.Role)
	assert.True(t, strings.HasPrefix(user.Username, "new.user_"))

	require.Len(t, sender.sentCodes, 1)
	assert.Regexp(t, regexp.MustCompile(`^[0-9]{6}$`), sender.sentCodes[0])
	assert.Equal(t, []string{"new.user@example.com"}, sender.sentTo)

	record, err := st.GetOTP(context.Background(), user.ID, sender.sentCodes[0])
	require.NoError(t, err)
	assert.Equal(t, user.ID, record.UserID)
}

func TestRequestOTPExistingUser(t *testing.T) {
	t.Parallel()

	st := newFakeStorage()
	sender := &fakeMailer{}
	svc := newTestService(st, sender)

	require.NoError(t, svc.RequestOTP(context.Background(), "repeat@example.com"))
	require.NoError(t, svc.RequestOTP(context.Background(), "repeat@example.com"))

	assert.Len(t, st.users, 1, "a second login request must not create a second user")
	assert.Len(t, sender.sentCodes, 2)
}

func TestVerifyOTPSucceedsExactlyOnce(t *testing.T) {
	t.Parallel()

	st := newFakeStorage()
	sender := &fakeMailer{}
	svc := newTestService(st, sender)

	require.NoError(t, svc.RequestOTP(context.Background(), "once@example.com"))
	code := sender.sentCodes[0]

	result, err := svc.VerifyOTP(context.Background(), "once@example.com", code)
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, "bearer", result.TokenType)
	assert.Equal(t, models.RoleVisitor, result.Role)

	_, err = svc.VerifyOTP(context.Background(), "once@example.com", code)
	assert.ErrorIs(t, err, ErrInvalidOTP, "a consumed code must not verify a second time")
}

func TestVerifyOTPExpired(t *testing.T) {
	t.Parallel()

	st := newFakeStorage()
	svc := newTestService(st, &fakeMailer{})

	userID, err := st.CreateUser(context.Background(), "late@example.com", "late_abcd", "", "")
	require.NoError(t, err)

	st.otps = append(st.otps, models.OTPRecord{
		ID:        1,
		UserID:    userID,
		Code:      "123456",
		CreatedAt: time.Now().Add(-testOTPLifetime - time.Minute),
	})

	_, err = svc.VerifyOTP(context.Background(), "late@example.com", "123456")
	assert.ErrorIs(t, err, ErrInvalidOTP)
	assert.Empty(t, st.otps, "expired codes are still consumed")
}

func TestVerifyOTPWrongCodeConsumesAll(t *testing.T) {
	t.Parallel()

	st := newFakeStorage()
	sender := &fakeMailer{}
	svc := newTestService(st, sender)

	require.NoError(t, svc.RequestOTP(context.Background(), "wrong@example.com"))

	_, err := svc.VerifyOTP(context.Background(), "wrong@example.com", "000000")
	assert.ErrorIs(t, err, ErrInvalidOTP)
	assert.Empty(t, st.otps, "a failed attempt deletes every stored code for the user")

	_, err = svc.VerifyOTP(context.Background(), "wrong@example.com", sender.sentCodes[0])
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestVerifyOTPUnknownUser(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStorage(), &fakeMailer{})

	_, err := svc.VerifyOTP(context.Background(), "ghost@example.com", "123456")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestOAuthLoginCreatesUser(t *testing.T) {
	t.Parallel()

	st := newFakeStorage()
	svc := newTestService(st, &fakeMailer{})
	svc.newValidator = func(string) (oauth.Validator, error) {
		return &fakeValidator{info: models.UserInfo{
			Provider:  models.ProviderGitHub,
			Email:     "ada@example.com",
			FirstName: "Ada",
			LastName:  "Lovelace",
			Photo:     "https://avatars.example.com/u/1",
		}}, nil
	}

	result, err := svc.OAuthLogin(context.Background(), models.ProviderGitHub, "auth-code")
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", result.FullName)
	assert.Equal(t, models.RoleVisitor, result.Role)
	require.NotNil(t, result.Photo)
	assert.Equal(t, "https://avatars.example.com/u/1", *result.Photo)

	user, err := st.GetUserByEmail(context.Background(), "ada@example.com", false)
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.FirstName)
}

func TestOAuthLoginExistingUser(t *testing.T) {
	t.Parallel()

	st := newFakeStorage()
	svc := newTestService(st, &fakeMailer{})

	userID, err := st.CreateUser(context.Background(), "known@example.com", "known_1234", "Old", "Name")
	require.NoError(t, err)

	svc.newValidator = func(string) (oauth.Validator, error) {
		return &fakeValidator{info: models.UserInfo{
			Provider:  models.ProviderGoogle,
			Email:     "known@example.com",
			FirstName: "New",
			LastName:  "Claims",
		}}, nil
	}

	result, err := svc.OAuthLogin(context.Background(), models.ProviderGoogle, "tok")
	require.NoError(t, err)

	assert.Equal(t, "Old Name", result.FullName, "existing profile wins over provider claims")
	assert.Len(t, st.users, 1)

	user, err := st.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "Old", user.FirstName)
}

func TestOAuthLoginUnsupportedProvider(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStorage(), &fakeMailer{})

	_, err := svc.OAuthLogin(context.Background(), "FACEBOOK", "tok")
	assert.ErrorIs(t, err, oauth.ErrUnsupportedProvider)
}

func TestOAuthLoginValidatorFailure(t *testing.T) {
	t.Parallel()

	st := newFakeStorage()
	svc := newTestService(st, &fakeMailer{})
	svc.newValidator = func(string) (oauth.Validator, error) {
		return &fakeValidator{err: fmt.Errorf("tokeninfo: %w", oauth.ErrInvalidAudience)}, nil
	}

	_, err := svc.OAuthLogin(context.Background(), models.ProviderGoogle, "tok")
	assert.ErrorIs(t, err, oauth.ErrInvalidAudience)
	assert.Empty(t, st.users, "no user is created when validation fails")
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	st := newFakeStorage()
	svc := newTestService(st, &fakeMailer{})

	refresh, err := svc.issuer.IssueRefresh(17)
	require.NoError(t, err)

	tokens, err := svc.Refresh(context.Background(), refresh)
	require.NoError(t, err)

	assert.Equal(t, refresh, tokens.RefreshToken, "refresh token is returned unchanged")
	assert.NotEmpty(t, tokens.AccessToken)

	subject, err := svc.issuer.Decode(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(17), subject)
}

func TestRefreshExpired(t *testing.T) {
	t.Parallel()

	st := newFakeStorage()
	svc := newTestService(st, &fakeMailer{})

	expired := auth.NewIssuer("test-secret", -time.Minute, -time.Minute)
	token, err := expired.IssueRefresh(17)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestAdminLogin(t *testing.T) {
	t.Parallel()

	st := newFakeStorage()
	svc := newTestService(st, &fakeMailer{})

	userID, err := st.CreateUser(context.Background(), "staff@example.com", "staff_1234", "Sam", "Staff")
	require.NoError(t, err)

	u := st.users[userID]
	u.Role = models.RoleStaff
	st.users[userID] = u

	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	st.passwords[userID] = hash

	result, err := svc.AdminLogin(context.Background(), "staff@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, result.Role)
	assert.Equal(t, "Sam Staff", result.FullName)

	_, err = svc.AdminLogin(context.Background(), "staff@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdminLoginVisitorRejected(t *testing.T) {
	t.Parallel()

	st := newFakeStorage()
	svc := newTestService(st, &fakeMailer{})

	_, err := st.CreateUser(context.Background(), "visitor@example.com", "visitor_1234", "", "")
	require.NoError(t, err)

	_, err = svc.AdminLogin(context.Background(), "visitor@example.com", "anything")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestUpdateProfilePartial(t *testing.T) {
	t.Parallel()

	st := newFakeStorage()
	svc := newTestService(st, &fakeMailer{})

	userID, err := st.CreateUser(context.Background(), "partial@example.com", "partial_1234", "First", "Last")
	require.NoError(t, err)
	before := st.users[userID]

	phone := "555-0100"
	err = svc.UpdateProfile(context.Background(), userID, storage.ProfileUpdate{PhoneNo: &phone})
	require.NoError(t, err)

	after := st.users[userID]
	assert.Equal(t, "555-0100", after.PhoneNo)
	assert.Equal(t, "First", after.FirstName)
	assert.Equal(t, "Last", after.LastName)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt) || after.UpdatedAt.Equal(before.UpdatedAt))
}

func TestUpdateProfileNoFields(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStorage(), &fakeMailer{})

	err := svc.UpdateProfile(context.Background(), 1, storage.ProfileUpdate{})
	assert.ErrorIs(t, err, ErrNoFieldsToUpdate)
}

func TestRequestOTPMailFailure(t *testing.T) {
	t.Parallel()

	st := newFakeStorage()
	sender := &fakeMailer{err: errors.New("smtp: connection refused")}
	svc := newTestService(st, sender)

	err := svc.RequestOTP(context.Background(), "unlucky@example.com")
	assert.Error(t, err)
}
