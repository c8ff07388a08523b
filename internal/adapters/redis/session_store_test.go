package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/jobmatch/internal/domain/auth"
	"github.com/target/jobmatch/internal/testutil"
)

// setupTestRedis skips when Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func testSession(id string, expires time.Time) domainauth.Session {
	return domainauth.Session{
		ID:          id,
		AccountID:   "5b0f7f0e-8f6a-4a8b-9d64-0d8d1b7e2a11",
		Subject:     "sub-123",
		Email:       "user@example.com",
		DisplayName: "Test User",
		Role:        domainauth.RoleUser,
		ExpiresAt:   expires,
	}
}

func TestSessionStore_SaveAndGet(t *testing.T) {
	client := setupTestRedis(t)
	store := NewSessionStore(client, SessionStoreOptions{})
	ctx := context.Background()

	session := testSession("test-session-1", time.Now().Add(30*time.Minute))
	require.NoError(t, store.Save(ctx, session))

	got, err := store.Get(ctx, "test-session-1")
	require.NoError(t, err)
	assert.Equal(t, session.AccountID, got.AccountID)
	assert.Equal(t, session.Subject, got.Subject)
	assert.Equal(t, session.Role, got.Role)
	assert.WithinDuration(t, session.ExpiresAt, got.ExpiresAt, time.Second)

	ttl := client.TTL(ctx, DefaultSessionPrefix+"test-session-1").Val()
	assert.Greater(t, ttl, 29*time.Minute)
}

func TestSessionStore_GetMissing(t *testing.T) {
	client := setupTestRedis(t)
	store := NewSessionStore(client, SessionStoreOptions{})

	_, err := store.Get(context.Background(), "non-existent")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(context.Background(), "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStore_Delete(t *testing.T) {
	client := setupTestRedis(t)
	store := NewSessionStore(client, SessionStoreOptions{})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("test-session-delete", time.Now().Add(time.Hour))))
	require.NoError(t, store.Delete(ctx, "test-session-delete"))

	_, err := store.Get(ctx, "test-session-delete")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Delete(ctx, ""))
}

func TestSessionStore_ExpiredOnRead(t *testing.T) {
	client := setupTestRedis(t)
	now := time.Now()
	clock := now
	store := NewSessionStore(client, SessionStoreOptions{Prefix: "test-prefix:", Now: func() time.Time { return clock }})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("expiring", now.Add(time.Hour))))
	assert.Equal(t, int64(1), client.Exists(ctx, "test-prefix:expiring").Val())

	clock = now.Add(2 * time.Hour)
	_, err := store.Get(ctx, "expiring")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(0), client.Exists(ctx, "test-prefix:expiring").Val())
}

func TestSessionStore_SaveRejectsInvalid(t *testing.T) {
	client := setupTestRedis(t)
	store := NewSessionStore(client, SessionStoreOptions{})
	ctx := context.Background()

	err := store.Save(ctx, testSession("", time.Now().Add(time.Hour)))
	require.ErrorContains(t, err, "session ID cannot be empty")

	err = store.Save(ctx, testSession("old", time.Now().Add(-time.Hour)))
	require.ErrorContains(t, err, "session is expired")
}
