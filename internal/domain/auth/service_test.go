package auth

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/medimind/medimind-api/pkg/errors"
)

func newTestService(repo *memoryRepo, cache *memoryCache) Service {
	return NewService(Config{
		Secret:          "test-secret",
		TokenTTL:        time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		ResetTokenTTL:   time.Hour,
	}, repo, cache, newTestLogger())
}

func TestService_RegisterLoginAndRefresh(t *testing.T) {
	repo := newMemoryRepo()
	cache := newMemoryCache()
	svc := newTestService(repo, cache)

	view, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "Pat.Doe@Example.com",
		Password: "pass1234",
		FullName: "Pat Doe",
		UserType: "Patient",
	})
	require.NoError(t, err)
	require.Equal(t, "pat.doe@example.com", view.Email)
	require.Equal(t, "Pat Doe", view.FullName)
	require.Equal(t, UserTypePatient, view.UserType)
	require.NotZero(t, view.ID)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "pat.doe@example.com",
		Password: "pass1234",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, view.Email, resp.User.Email)

	claims, err := svc.ValidateToken(context.Background(), resp.Token)
	require.NoError(t, err)
	require.Equal(t, view.ID, claims.UserID)
	require.Equal(t, view.Email, claims.Email)
	require.Equal(t, UserTypePatient, claims.UserType)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)

	refreshed, err := svc.Refresh(context.Background(), resp.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, resp.Token, refreshed.Token)
	require.Equal(t, resp.User.Email, refreshed.User.Email)
	require.Equal(t, "Pat Doe", refreshed.User.FullName)
}

func TestService_DoctorRoleCarriesIntoToken(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, newMemoryCache())

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "doc@example.com",
		Password: "pass1234",
		FullName: "Dr Sam Roe",
		UserType: UserTypeDoctor,
	})
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "doc@example.com", Password: "pass1234"})
	require.NoError(t, err)
	require.Equal(t, UserTypeDoctor, resp.User.UserType)

	claims, err := svc.ValidateToken(context.Background(), resp.Token)
	require.NoError(t, err)
	require.Equal(t, UserTypeDoctor, claims.UserType)
}

func TestService_RejectsUnknownUserType(t *testing.T) {
	svc := newTestService(newMemoryRepo(), newMemoryCache())

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "user@example.com",
		Password: "pass1234",
		FullName: "Pat Doe",
		UserType: "admin",
	})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "invalid_input"))
}

func TestService_DuplicateEmail(t *testing.T) {
	svc := newTestService(newMemoryRepo(), newMemoryCache())

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "user@example.com",
		Password: "pass1234",
		FullName: "First User",
		UserType: UserTypePatient,
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{
		Email:    "user@example.com",
		Password: "pass12345",
		FullName: "Second User",
		UserType: UserTypePatient,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "already registered")
}

func TestService_RefreshTokenNotAcceptedAsAccess(t *testing.T) {
	svc := newTestService(newMemoryRepo(), newMemoryCache())

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "user@example.com",
		Password: "pass1234",
		FullName: "Pat Doe",
		UserType: UserTypePatient,
	})
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "user@example.com", Password: "pass1234"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), resp.RefreshToken)
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "invalid_token"))
}

func TestService_PasswordResetFlow(t *testing.T) {
	repo := newMemoryRepo()
	cache := newMemoryCache()
	svc := newTestService(repo, cache)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "user@example.com",
		Password: "original-pass",
		FullName: "Pat Doe",
		UserType: UserTypePatient,
	})
	require.NoError(t, err)

	require.NoError(t, svc.ForgotPassword(context.Background(), ForgotPasswordRequest{Email: "user@example.com"}))

	token := cache.findResetToken(t)
	require.NoError(t, svc.ResetPassword(context.Background(), ResetPasswordRequest{
		Token:    token,
		Password: "brand-new-pass",
	}))

	_, err = svc.Login(context.Background(), LoginRequest{Email: "user@example.com", Password: "original-pass"})
	require.Error(t, err)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "user@example.com", Password: "brand-new-pass"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)

	// The token is single use.
	err = svc.ResetPassword(context.Background(), ResetPasswordRequest{Token: token, Password: "another-pass9"})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "invalid_token"))
}

func TestService_ForgotPasswordHidesUnknownEmail(t *testing.T) {
	cache := newMemoryCache()
	svc := newTestService(newMemoryRepo(), cache)

	err := svc.ForgotPassword(context.Background(), ForgotPasswordRequest{Email: "nobody@example.com"})
	require.NoError(t, err)
	require.Empty(t, cache.keysWithPrefix("pwreset:"))
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

type memoryRepo struct {
	users      map[int64]User
	identities map[string]Identity
	seq        int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users:      make(map[int64]User),
		identities: make(map[string]Identity),
	}
}

func (m *memoryRepo) Create(_ context.Context, user User) (User, error) {
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return User{}, ErrEmailExists
		}
	}
	m.seq++
	user.ID = m.seq
	user.CreatedAt = time.Now()
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryRepo) GetByEmail(_ context.Context, email string) (User, bool, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, true, nil
		}
	}
	return User{}, false, nil
}

func (m *memoryRepo) GetByID(_ context.Context, id int64) (User, bool, error) {
	user, ok := m.users[id]
	return user, ok, nil
}

func (m *memoryRepo) UpdatePassword(_ context.Context, userID int64, passwordHash string) error {
	user, ok := m.users[userID]
	if !ok {
		return nil
	}
	user.PasswordHash = passwordHash
	m.users[userID] = user
	return nil
}

func (m *memoryRepo) GetIdentity(_ context.Context, provider, providerSubject string) (Identity, bool, error) {
	identity, ok := m.identities[provider+"/"+providerSubject]
	return identity, ok, nil
}

func (m *memoryRepo) GetIdentityByUser(_ context.Context, userID int64, provider string) (Identity, bool, error) {
	for _, identity := range m.identities {
		if identity.UserID == userID && identity.Provider == provider {
			return identity, true, nil
		}
	}
	return Identity{}, false, nil
}

func (m *memoryRepo) UpsertIdentity(_ context.Context, identity Identity) (Identity, error) {
	m.identities[identity.Provider+"/"+identity.ProviderSubject] = identity
	return identity, nil
}

type memoryCache struct {
	entries map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]string)}
}

func (m *memoryCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.entries[key] = value
	return nil
}

func (m *memoryCache) Get(_ context.Context, key string) (string, bool, error) {
	value, ok := m.entries[key]
	return value, ok, nil
}

func (m *memoryCache) Del(_ context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func (m *memoryCache) keysWithPrefix(prefix string) []string {
	var keys []string
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys
}

func (m *memoryCache) findResetToken(t *testing.T) string {
	t.Helper()
	keys := m.keysWithPrefix("pwreset:")
	require.Len(t, keys, 1)
	return strings.TrimPrefix(keys[0], "pwreset:")
}
