package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/routesync/internal/models"
	"github.com/iudanet/routesync/internal/server/storage"
)

func makeToken(userID, hash string, expiresAt time.Time) *models.RefreshToken {
	return &models.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
}

func TestSaveAndGetRefreshToken(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	user := makeUser("worker_1")
	require.NoError(t, store.CreateUser(ctx, user))

	token := makeToken(user.ID, "hash-1", time.Now().Add(time.Hour))
	require.NoError(t, store.SaveRefreshToken(ctx, token))

	got, err := store.GetRefreshToken(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, token.ID, got.ID)
	assert.Equal(t, user.ID, got.UserID)
}

func TestGetRefreshToken_NotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.GetRefreshToken(context.Background(), "unknown-hash")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func TestDeleteRefreshToken(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	user := makeUser("worker_1")
	require.NoError(t, store.CreateUser(ctx, user))
	require.NoError(t, store.SaveRefreshToken(ctx, makeToken(user.ID, "hash-1", time.Now().Add(time.Hour))))

	require.NoError(t, store.DeleteRefreshToken(ctx, "hash-1"))

	_, err := store.GetRefreshToken(ctx, "hash-1")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)

	// повторное удаление
	err = store.DeleteRefreshToken(ctx, "hash-1")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func TestDeleteUserTokens(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	user := makeUser("worker_1")
	other := makeUser("worker_2")
	require.NoError(t, store.CreateUser(ctx, user))
	require.NoError(t, store.CreateUser(ctx, other))

	require.NoError(t, store.SaveRefreshToken(ctx, makeToken(user.ID, "hash-1", time.Now().Add(time.Hour))))
	require.NoError(t, store.SaveRefreshToken(ctx, makeToken(user.ID, "hash-2", time.Now().Add(time.Hour))))
	require.NoError(t, store.SaveRefreshToken(ctx, makeToken(other.ID, "hash-3", time.Now().Add(time.Hour))))

	deleted, err := store.DeleteUserTokens(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	// чужой токен не тронут
	_, err = store.GetRefreshToken(ctx, "hash-3")
	assert.NoError(t, err)
}

func TestDeleteExpiredTokens(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	user := makeUser("worker_1")
	require.NoError(t, store.CreateUser(ctx, user))

	require.NoError(t, store.SaveRefreshToken(ctx, makeToken(user.ID, "expired", time.Now().Add(-time.Hour))))
	require.NoError(t, store.SaveRefreshToken(ctx, makeToken(user.ID, "valid", time.Now().Add(time.Hour))))

	deleted, err := store.DeleteExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.GetRefreshToken(ctx, "expired")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
	_, err = store.GetRefreshToken(ctx, "valid")
	assert.NoError(t, err)
}
