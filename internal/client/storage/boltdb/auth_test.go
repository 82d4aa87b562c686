package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/routesync/internal/client/storage"
)

func TestAuth_SaveAndGet(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	auth := &storage.AuthData{
		Username:     "courier",
		UserID:       "user-1",
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}

	require.NoError(t, store.SaveAuth(ctx, auth))

	got, err := store.GetAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, auth, got)
}

func TestAuth_GetNotFound(t *testing.T) {
	store := newTestStorage(t)

	auth, err := store.GetAuth(context.Background())
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)
	assert.Nil(t, auth)
}

func TestAuth_Delete(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	auth := &storage.AuthData{
		Username:  "courier",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}
	require.NoError(t, store.SaveAuth(ctx, auth))
	require.NoError(t, store.DeleteAuth(ctx))

	_, err := store.GetAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)

	// Повторный logout без сохраненной авторизации
	err = store.DeleteAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)
}

func TestIsAuthenticated(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	// Без авторизации
	ok, err := store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// Действующий токен
	require.NoError(t, store.SaveAuth(ctx, &storage.AuthData{
		Username:  "courier",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}))

	ok, err = store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// Истекший токен
	require.NoError(t, store.SaveAuth(ctx, &storage.AuthData{
		Username:  "courier",
		ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	}))

	ok, err = store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
