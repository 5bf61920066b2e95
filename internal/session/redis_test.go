package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRepository(client), mr
}

func redisSession(hash string, identityID int64, expiresAt time.Time) Session {
	return Session{
		ID:         "sess-" + hash,
		TokenHash:  hash,
		IdentityID: identityID,
		CreatedAt:  expiresAt.Add(-DefaultTTL),
		ExpiresAt:  expiresAt,
		IP:         "127.0.0.1",
	}
}

func TestRedisRepositoryRoundTrip(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	require.NoError(t, repo.Create(ctx, redisSession("h1", 7, expires)))
	assert.ErrorIs(t, repo.Create(ctx, redisSession("h1", 8, expires)), ErrTokenCollision)

	got, err := repo.FindByTokenHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.IdentityID)
	assert.True(t, expires.Equal(got.ExpiresAt))
	assert.Equal(t, "127.0.0.1", got.IP)
	assert.True(t, mr.TTL(tokenKey("h1")) > 0)
	assert.True(t, mr.Exists(identityKey(7)))

	_, err = repo.FindByTokenHash(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisRepositoryDeleteExpiredIsConditional(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)
	require.NoError(t, repo.Create(ctx, redisSession("h1", 7, expires)))

	removed, err := repo.DeleteExpired(ctx, "h1", expires.Add(-time.Second))
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = repo.DeleteExpired(ctx, "h1", expires)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRedisRepositoryDeleteByIdentity(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)
	require.NoError(t, repo.Create(ctx, redisSession("a", 1, expires)))
	require.NoError(t, repo.Create(ctx, redisSession("b", 1, expires)))
	require.NoError(t, repo.Create(ctx, redisSession("c", 2, expires)))

	n, err := repo.DeleteByIdentity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.False(t, mr.Exists(identityKey(1)))

	_, err = repo.FindByTokenHash(ctx, "c")
	assert.NoError(t, err)

	n, err = repo.DeleteByIdentity(ctx, 99)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisRepositoryNativeExpiry(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, redisSession("h1", 7, time.Now().Add(time.Minute))))

	mr.FastForward(2 * time.Minute)

	_, err := repo.FindByTokenHash(ctx, "h1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisRepositorySweep(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()
	soon := time.Now().Add(time.Hour)
	later := time.Now().Add(3 * time.Hour)
	require.NoError(t, repo.Create(ctx, redisSession("old", 1, soon)))
	require.NoError(t, repo.Create(ctx, redisSession("new", 1, later)))

	n, err := repo.DeleteAllExpired(ctx, soon.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.FindByTokenHash(ctx, "new")
	assert.NoError(t, err)
}

func TestRedisRepositoryPrunesNativelyExpiredIndexEntries(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()
	soon := time.Now().Add(time.Hour)
	later := time.Now().Add(3 * time.Hour)
	require.NoError(t, repo.Create(ctx, redisSession("a", 9, soon)))
	require.NoError(t, repo.Create(ctx, redisSession("b", 9, soon)))
	require.NoError(t, repo.Create(ctx, redisSession("c", 9, later)))
	assert.True(t, mr.TTL(identityKey(9)) > 2*time.Hour)

	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists(tokenKey("a")))

	n, err := repo.DeleteAllExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	members, err := mr.Members(identityKey(9))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, members)
	assert.True(t, mr.TTL(identityKey(9)) > 0)
}

func TestRedisRepositoryIdentitySetExpiresWithLastSession(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, redisSession("a", 4, time.Now().Add(2*time.Hour))))
	require.NoError(t, repo.Create(ctx, redisSession("b", 4, time.Now().Add(time.Hour))))

	ttl := mr.TTL(identityKey(4))
	assert.True(t, ttl > time.Hour+30*time.Minute, "ttl=%s", ttl)
	assert.True(t, mr.TTL(tokenKey("b")) > 0)

	mr.FastForward(3 * time.Hour)
	assert.False(t, mr.Exists(identityKey(4)))
}

func TestStoreOverRedis(t *testing.T) {
	repo, _ := newRedisRepo(t)
	store := NewStore(repo, time.Hour)
	ctx := context.Background()

	issued, err := store.Issue(ctx, 3, Meta{UserAgent: "test"})
	require.NoError(t, err)

	sess, err := store.Resolve(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, sess.ID)

	removed, err := store.Revoke(ctx, issued.Token)
	require.NoError(t, err)
	assert.True(t, removed)
}
