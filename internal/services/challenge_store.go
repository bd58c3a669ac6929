package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/erni27/imcache"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

// ErrChallengeNotFound is returned when a session is missing, expired or
// already consumed.
var ErrChallengeNotFound = errors.New("challenge not found")

const (
	purposeRegister = "register"
	purposeLogin    = "login"

	challengeKeyPrefix = "bvs:webauthn:"
)

//go:generate mockgen -source=challenge_store.go -destination=mocks/mocks.go -package=mocks

// ChallengeStore holds WebAuthn ceremony sessions between the options and
// verify calls. Take removes the session, so each challenge verifies once.
type ChallengeStore interface {
	Put(ctx context.Context, key string, session *webauthn.SessionData, ttl time.Duration) error
	Take(ctx context.Context, key string) (*webauthn.SessionData, error)
}

// ChallengeKey builds the lookup key for a ceremony session.
func ChallengeKey(purpose, userID, challenge string) string {
	return strings.Join([]string{purpose, userID, challenge}, ":")
}

// MemoryChallengeStore keeps sessions in process. Suitable for a single
// instance; use RedisChallengeStore when running several.
type MemoryChallengeStore struct {
	mu    sync.Mutex
	cache *imcache.Cache[string, webauthn.SessionData]
}

func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{
		cache: imcache.New[string, webauthn.SessionData](
			imcache.WithCleanerOption[string, webauthn.SessionData](time.Minute),
		),
	}
}

func (m *MemoryChallengeStore) Put(_ context.Context, key string, session *webauthn.SessionData, ttl time.Duration) error {
	m.cache.Set(key, *session, imcache.WithExpiration(ttl))
	return nil
}

func (m *MemoryChallengeStore) Take(_ context.Context, key string) (*webauthn.SessionData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.cache.Get(key)
	if !ok {
		return nil, ErrChallengeNotFound
	}
	m.cache.Remove(key)
	return &session, nil
}

func (m *MemoryChallengeStore) Close() {
	m.cache.Close()
}

// RedisChallengeStore shares sessions across instances. GETDEL makes the
// read and the delete one atomic step.
type RedisChallengeStore struct {
	client *redis.Client
}

func NewRedisChallengeStore(client *redis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{client: client}
}

func (r *RedisChallengeStore) Put(ctx context.Context, key string, session *webauthn.SessionData, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return r.client.Set(ctx, challengeKeyPrefix+key, data, ttl).Err()
}

func (r *RedisChallengeStore) Take(ctx context.Context, key string) (*webauthn.SessionData, error) {
	data, err := r.client.GetDel(ctx, challengeKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: challenge store: %w", ErrUnavailable, err)
	}

	var session webauthn.SessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// NewRedisClient parses url and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
