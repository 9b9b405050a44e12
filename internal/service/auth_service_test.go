package service

import (
	"context"
	"testing"
	"time"

	"bazap-service/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) (*AuthService, *memStore) {
	t.Helper()
	ms := newMemStore()
	svc := NewAuthService(ms, "test-secret", 15*time.Minute, 24*time.Hour)
	require.NoError(t, svc.Bootstrap(context.Background(), "admin", "admin123"))
	return svc, ms
}

func TestLogin(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), &LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "admin", resp.User.Username)

	claims, err := svc.ValidateAccess(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
}

func TestLoginBadCredentials(t *testing.T) {
	svc, ms := newAuthFixture(t)

	_, err := svc.Login(context.Background(), &LoginRequest{Username: "admin", Password: "wrong"})
	assert.True(t, IsInvalid(err))

	_, err = svc.Login(context.Background(), &LoginRequest{Username: "nobody", Password: "admin123"})
	assert.True(t, IsInvalid(err))

	// Inactive users are rejected with the same message
	for _, u := range ms.users {
		u.IsActive = false
	}
	_, err = svc.Login(context.Background(), &LoginRequest{Username: "admin", Password: "admin123"})
	assert.True(t, IsInvalid(err))
}

func TestBootstrapIsIdempotent(t *testing.T) {
	svc, ms := newAuthFixture(t)

	require.NoError(t, svc.Bootstrap(context.Background(), "admin", "admin123"))
	assert.Len(t, ms.users, 1)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _ := newAuthFixture(t)

	login, err := svc.Login(context.Background(), &LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), &RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The old refresh token is revoked by the rotation
	_, err = svc.Refresh(context.Background(), &RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	assert.True(t, IsInvalid(err))
}

func TestRefreshRejectsMismatchedUser(t *testing.T) {
	svc, ms := newAuthFixture(t)

	login, err := svc.Login(context.Background(), &LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)

	other := ms.addUser("someone-else")
	foreign, err := auth.GenerateAccessToken("test-secret", other.ID, other.Username, other.Role, time.Minute)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), &RefreshRequest{
		AccessToken:  foreign,
		RefreshToken: login.RefreshToken,
	})
	assert.True(t, IsInvalid(err))
}

func TestRefreshRejectsUnknownToken(t *testing.T) {
	svc, _ := newAuthFixture(t)

	login, err := svc.Login(context.Background(), &LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), &RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: "never-issued",
	})
	assert.True(t, IsInvalid(err))

	_, err = svc.Refresh(context.Background(), &RefreshRequest{
		AccessToken:  "garbage",
		RefreshToken: login.RefreshToken,
	})
	assert.True(t, IsInvalid(err))
}
