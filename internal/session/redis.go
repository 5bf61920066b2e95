package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix    = "session:token:"
	identityKeyPrefix = "session:identity:"
)

// RedisRepository stores each session as a JSON value that Redis expires
// at ExpiresAt, plus a per-identity set of token hashes for bulk revocation.
type RedisRepository struct {
	client redis.UniversalClient
}

type redisPayload struct {
	ID         string    `json:"id"`
	IdentityID int64     `json:"identity_id"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
}

// NewRedisRepository constructs a Redis repository.
func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{client: client}
}

func tokenKey(hash string) string {
	return tokenKeyPrefix + hash
}

func identityKey(id int64) string {
	return identityKeyPrefix + strconv.FormatInt(id, 10)
}

// Create stores the session only if the hash is unused.
func (r *RedisRepository) Create(ctx context.Context, s Session) error {
	data, err := json.Marshal(redisPayload{
		ID:         s.ID,
		IdentityID: s.IdentityID,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
		IP:         s.IP,
		UserAgent:  s.UserAgent,
	})
	if err != nil {
		return err
	}
	err = r.client.SetArgs(ctx, tokenKey(s.TokenHash), data, redis.SetArgs{Mode: "NX", ExpireAt: s.ExpiresAt}).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrTokenCollision
		}
		return err
	}
	return r.index(ctx, s)
}

// index adds the hash to the identity set and keeps the set alive until
// its latest member expires.
func (r *RedisRepository) index(ctx context.Context, s Session) error {
	key := identityKey(s.IdentityID)
	var ttl *redis.DurationCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, s.TokenHash)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return err
	}
	if current := ttl.Val(); current < 0 || time.Now().Add(current).Before(s.ExpiresAt) {
		return r.client.ExpireAt(ctx, key, s.ExpiresAt).Err()
	}
	return nil
}

// FindByTokenHash loads a session. Keys Redis already expired are reported
// as not found.
func (r *RedisRepository) FindByTokenHash(ctx context.Context, hash string) (Session, error) {
	data, err := r.client.Get(ctx, tokenKey(hash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	var stored redisPayload
	if err := json.Unmarshal(data, &stored); err != nil {
		return Session{}, err
	}
	return Session{
		ID:         stored.ID,
		TokenHash:  hash,
		IdentityID: stored.IdentityID,
		CreatedAt:  stored.CreatedAt,
		ExpiresAt:  stored.ExpiresAt,
		IP:         stored.IP,
		UserAgent:  stored.UserAgent,
	}, nil
}

// DeleteExpired removes the key only if the stored expiry has passed.
func (r *RedisRepository) DeleteExpired(ctx context.Context, hash string, now time.Time) (bool, error) {
	s, err := r.FindByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if s.LiveAt(now) {
		return false, nil
	}
	return r.remove(ctx, s)
}

// Delete removes a session by token hash.
func (r *RedisRepository) Delete(ctx context.Context, hash string) (bool, error) {
	s, err := r.FindByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return r.remove(ctx, s)
}

// DeleteByIdentity removes every session listed in the identity set.
func (r *RedisRepository) DeleteByIdentity(ctx context.Context, identityID int64) (int64, error) {
	key := identityKey(identityID)
	hashes, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(hashes))
	for _, h := range hashes {
		keys = append(keys, tokenKey(h))
	}
	var removed int64
	if len(keys) > 0 {
		removed, err = r.client.Del(ctx, keys...).Result()
		if err != nil {
			return 0, err
		}
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return removed, err
	}
	return removed, nil
}

// DeleteAllExpired scans session keys and removes those expired at now.
// Redis drops most of them on its own; this catches clock skew between
// the application and the server. Identity set members whose token key is
// gone are pruned and counted as swept.
func (r *RedisRepository) DeleteAllExpired(ctx context.Context, now time.Time) (int64, error) {
	var removed int64
	err := r.scan(ctx, tokenKeyPrefix+"*", func(key string) error {
		ok, err := r.DeleteExpired(ctx, key[len(tokenKeyPrefix):], now)
		if ok {
			removed++
		}
		return err
	})
	if err != nil {
		return removed, err
	}
	err = r.scan(ctx, identityKeyPrefix+"*", func(key string) error {
		n, err := r.pruneIndex(ctx, key)
		removed += n
		return err
	})
	return removed, err
}

// pruneIndex drops hashes from an identity set whose token key no longer exists.
func (r *RedisRepository) pruneIndex(ctx context.Context, key string) (int64, error) {
	hashes, err := r.client.SMembers(ctx, key).Result()
	if err != nil || len(hashes) == 0 {
		return 0, err
	}
	exists := make([]*redis.IntCmd, len(hashes))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, h := range hashes {
			exists[i] = pipe.Exists(ctx, tokenKey(h))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	stale := make([]any, 0, len(hashes))
	for i, h := range hashes {
		if exists[i].Val() == 0 {
			stale = append(stale, h)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	return r.client.SRem(ctx, key, stale...).Result()
}

func (r *RedisRepository) scan(ctx context.Context, match string, fn func(key string) error) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := fn(key); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (r *RedisRepository) remove(ctx context.Context, s Session) (bool, error) {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, tokenKey(s.TokenHash))
		pipe.SRem(ctx, identityKey(s.IdentityID), s.TokenHash)
		return nil
	})
	if err != nil {
		return false, err
	}
	return del.Val() > 0, nil
}

var _ Repository = (*RedisRepository)(nil)
