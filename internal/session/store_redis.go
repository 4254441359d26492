package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "gatehouse:"

// RedisStore implements Store on Redis.
//
// Each session is a hash under <prefix>session:<digest> with a matching
// <prefix>csrf:<token> key enforcing CSRF uniqueness. Mutations run as Lua
// scripts so a concurrent delete cannot be resurrected by a touch, and
// exactly one of N racing deletes observes the record. Timestamps are kept
// as unix milliseconds; Lua numbers cannot carry nanosecond precision.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix overrides the key prefix (default "gatehouse:").
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, db int, opts ...RedisOption) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("session: redis connection failed: %w", err)
	}

	return NewRedisStoreFromClient(client, opts...), nil
}

// NewRedisStoreFromClient wraps an existing client (used by tests).
func NewRedisStoreFromClient(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: defaultRedisPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) sessionKey(digest string) string { return s.prefix + "session:" + digest }
func (s *RedisStore) csrfKey(token string) string     { return s.prefix + "csrf:" + token }

// createScript inserts the session hash and the CSRF uniqueness key only if
// neither exists. Returns 1 on success, 0 on identifier collision, -1 on
// CSRF collision.
var createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
if redis.call("EXISTS", KEYS[2]) == 1 then
	return -1
end
redis.call("HSET", KEYS[1],
	"csrf_token", ARGV[1],
	"owner_credential_id", ARGV[2],
	"created_at", ARGV[3],
	"last_refreshed_at", ARGV[4],
	"expires_at", ARGV[5])
redis.call("PEXPIREAT", KEYS[1], ARGV[5])
redis.call("SET", KEYS[2], ARGV[6])
redis.call("PEXPIREAT", KEYS[2], ARGV[5])
return 1
`)

// touchScript advances refresh/expiry on a record that is still live at
// ARGV[1] (now, ms). Returns 1 on success, 0 when the record is gone.
var touchScript = redis.NewScript(`
local exp = redis.call("HGET", KEYS[1], "expires_at")
if not exp then
	return 0
end
if tonumber(exp) <= tonumber(ARGV[1]) then
	return 0
end
redis.call("HSET", KEYS[1], "last_refreshed_at", ARGV[2], "expires_at", ARGV[3])
redis.call("PEXPIREAT", KEYS[1], ARGV[3])
return 1
`)

// deleteScript removes a live record and hands back its CSRF token so the
// caller can drop the uniqueness key. Returns false when the record is gone,
// which makes delete races resolve to exactly one winner.
var deleteScript = redis.NewScript(`
local exp = redis.call("HGET", KEYS[1], "expires_at")
if not exp then
	return false
end
if tonumber(exp) <= tonumber(ARGV[1]) then
	return false
end
local csrf = redis.call("HGET", KEYS[1], "csrf_token")
redis.call("DEL", KEYS[1])
return csrf
`)

type redisRecord struct {
	CSRFToken         string `redis:"csrf_token"`
	OwnerCredentialID string `redis:"owner_credential_id"`
	CreatedAtMs       int64  `redis:"created_at"`
	LastRefreshedAtMs int64  `redis:"last_refreshed_at"`
	ExpiresAtMs       int64  `redis:"expires_at"`
}

// Create inserts a new session atomically.
func (s *RedisStore) Create(ctx context.Context, rec Record) error {
	res, err := createScript.Run(ctx, s.client,
		[]string{s.sessionKey(rec.IdentifierDigest), s.csrfKey(rec.CSRFToken)},
		rec.CSRFToken,
		rec.OwnerCredentialID,
		rec.CreatedAt.UnixMilli(),
		rec.LastRefreshedAt.UnixMilli(),
		rec.ExpiresAt.UnixMilli(),
		rec.IdentifierDigest,
	).Int64()
	if err != nil {
		return err
	}
	switch res {
	case 1:
		return nil
	case 0:
		return ErrDuplicateIdentifier
	default:
		return ErrDuplicateCSRFToken
	}
}

// Get loads a live record.
func (s *RedisStore) Get(ctx context.Context, digest string, now time.Time) (Record, error) {
	var rr redisRecord
	if err := s.client.HGetAll(ctx, s.sessionKey(digest)).Scan(&rr); err != nil {
		return Record{}, err
	}
	if rr.CSRFToken == "" {
		return Record{}, ErrNotFound
	}

	rec := rr.toRecord(digest)
	// Redis TTL reaps on its own clock; enforce ours too.
	if !rec.ExpiresAt.After(now) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Touch advances refresh/expiry atomically, then re-reads the record.
func (s *RedisStore) Touch(ctx context.Context, digest string, now, expiresAt time.Time) (Record, error) {
	key := s.sessionKey(digest)

	res, err := touchScript.Run(ctx, s.client, []string{key},
		now.UnixMilli(), now.UnixMilli(), expiresAt.UnixMilli(),
	).Int64()
	if err != nil {
		return Record{}, err
	}
	if res == 0 {
		return Record{}, ErrNotFound
	}

	rec, err := s.Get(ctx, digest, now)
	if errors.Is(err, ErrNotFound) {
		// Deleted between the touch and the read; the delete wins.
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	// Keep the CSRF uniqueness key alive as long as the session.
	_ = s.client.PExpireAt(ctx, s.csrfKey(rec.CSRFToken), expiresAt).Err()

	return rec, nil
}

// Delete removes a live record and its CSRF key.
func (s *RedisStore) Delete(ctx context.Context, digest string, now time.Time) error {
	csrf, err := deleteScript.Run(ctx, s.client,
		[]string{s.sessionKey(digest)}, now.UnixMilli(),
	).Text()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	return s.client.Del(ctx, s.csrfKey(csrf)).Err()
}

// Sweep is a no-op: Redis TTLs reap expired records.
func (s *RedisStore) Sweep(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

// Ping checks Redis reachability.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (rr redisRecord) toRecord(digest string) Record {
	return Record{
		IdentifierDigest:  digest,
		CSRFToken:         rr.CSRFToken,
		OwnerCredentialID: rr.OwnerCredentialID,
		CreatedAt:         time.UnixMilli(rr.CreatedAtMs).UTC(),
		LastRefreshedAt:   time.UnixMilli(rr.LastRefreshedAtMs).UTC(),
		ExpiresAt:         time.UnixMilli(rr.ExpiresAtMs).UTC(),
	}
}
