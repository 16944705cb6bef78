package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"scr-miner/internal/model"
	"scr-miner/internal/pkg/lock"
	"scr-miner/internal/store"
)

func authEnv(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	svc := NewService(st, lock.NewKeyLock(), "test-secret", time.Hour, bcrypt.MinCost, nil)
	return svc, st
}

func TestRegisterAndLogin(t *testing.T) {
	svc, st := authEnv(t)
	ctx := context.Background()

	auth, err := svc.Register(ctx, "Miner@Example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "miner@example.com", auth.Email, "email is normalized")
	assert.NotEqual(t, "hunter22", auth.PasswordHash, "password is never stored in plaintext")
	assert.Contains(t, auth.ReferralCode, "SCR-")
	assert.True(t, auth.LoggedIn)

	// Second registration is rejected
	_, err = svc.Register(ctx, "other@example.com", "pw")
	assert.ErrorIs(t, err, ErrAccountExists)

	token, err := svc.Login(ctx, "miner@example.com", "hunter22")
	require.NoError(t, err)

	sub, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "miner@example.com", sub)

	_, err = svc.Login(ctx, "miner@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "stranger@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Store holds the hash, not the password
	stored, ok := st.LoadAuth(ctx)
	require.True(t, ok)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter22")))
}

func TestLoginWithoutRegistration(t *testing.T) {
	svc, _ := authEnv(t)
	_, err := svc.Login(context.Background(), "a@b.c", "pw")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestParseTokenRejectsGarbageAndExpiry(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	clock := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(st, lock.NewKeyLock(), "test-secret", time.Hour, bcrypt.MinCost,
		func() time.Time { return clock })
	ctx := context.Background()

	_, err = svc.Register(ctx, "miner@example.com", "pw")
	require.NoError(t, err)
	token, err := svc.Login(ctx, "miner@example.com", "pw")
	require.NoError(t, err)

	_, err = svc.ParseToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Valid now, expired two hours later
	_, err = svc.ParseToken(token)
	require.NoError(t, err)
	clock = clock.Add(2 * time.Hour)
	_, err = svc.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogoutKeepsCredentials(t *testing.T) {
	svc, st := authEnv(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "miner@example.com", "pw")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx))

	stored, ok := st.LoadAuth(ctx)
	require.True(t, ok, "logout must not delete the account")
	assert.False(t, stored.LoggedIn)

	_, err = svc.Login(ctx, "miner@example.com", "pw")
	assert.NoError(t, err, "user can log back in after logout")
}

func TestDeleteAccountResetsDataAndRemovesAuth(t *testing.T) {
	svc, st := authEnv(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "miner@example.com", "pw")
	require.NoError(t, err)

	data := st.Load(ctx)
	data.UserStats.Scoins = 50
	require.NoError(t, st.Save(ctx, data))

	require.NoError(t, svc.DeleteAccount(ctx))

	_, ok := st.LoadAuth(ctx)
	assert.False(t, ok)
	got := st.Load(ctx)
	assert.Zero(t, got.UserStats.Scoins)
	assert.Equal(t, model.DefaultLevel, got.UserStats.Level)
}

func TestChangePassword(t *testing.T) {
	svc, _ := authEnv(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "miner@example.com", "old-pw")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(ctx, "wrong", "new-pw"), ErrInvalidCredentials)
	require.NoError(t, svc.ChangePassword(ctx, "old-pw", "new-pw"))

	_, err = svc.Login(ctx, "miner@example.com", "old-pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "miner@example.com", "new-pw")
	assert.NoError(t, err)
}
