package accesscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tokenforge/jwtguard/internal/logging"
)

// RedisMirrorConfig configures the optional distributed second tier.
// Pool/timeout defaults are lifted directly from the teacher's
// internal/cache.NewCache.
type RedisMirrorConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisMirrorConfig) withDefaults() RedisMirrorConfig {
	return c
}

// RedisMirror is an optional distributed mirror of the in-process Cache,
// used when multiple jwtguard instances should share validation-result
// cache state. It is best-effort: any Redis error degrades to a cache
// miss rather than surfacing to the caller, per spec.md §7's requirement
// that cache errors never cause a false accept or reject.
type RedisMirror struct {
	client *redis.Client
}

// NewRedisMirror constructs a RedisMirror. It does not ping the server;
// the first real operation will surface connectivity problems, which this
// package swallows into a miss.
func NewRedisMirror(cfg RedisMirrorConfig) *RedisMirror {
	cfg = cfg.withDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     25,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &RedisMirror{client: client}
}

type mirrorEnvelope struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Get attempts a mirror lookup. On any error (including key-not-found)
// it returns a plain miss; it never returns the error to the caller.
func (m *RedisMirror) Get(ctx context.Context, fingerprint string) (interface{}, bool) {
	raw, err := m.client.Get(ctx, mirrorKey(fingerprint)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logging.Cache().Warn().Err(err).Msg("access token cache mirror get failed, degrading to miss")
		}
		return nil, false
	}
	var env mirrorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logging.Cache().Warn().Err(err).Msg("access token cache mirror envelope corrupt, degrading to miss")
		return nil, false
	}
	if time.Now().After(env.ExpiresAt) {
		return nil, false
	}
	var value map[string]interface{}
	if err := json.Unmarshal(env.Value, &value); err != nil {
		return nil, false
	}
	return value, true
}

// Put best-effort writes value to the mirror with a TTL matching exp.
// Failures are logged and swallowed.
func (m *RedisMirror) Put(ctx context.Context, fingerprint string, value interface{}, exp time.Time) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	env := mirrorEnvelope{Value: payload, ExpiresAt: exp}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	ttl := time.Until(exp)
	if ttl <= 0 {
		return
	}
	if err := m.client.Set(ctx, mirrorKey(fingerprint), data, ttl).Err(); err != nil {
		logging.Cache().Warn().Err(err).Msg("access token cache mirror put failed")
	}
}

func mirrorKey(fingerprint string) string {
	return "jwtguard:accesscache:" + encodeKey(fingerprint)
}

func encodeKey(fingerprint string) string {
	const hex = "0123456789abcdef"
	out := make([]byte, 0, len(fingerprint)*2)
	for i := 0; i < len(fingerprint); i++ {
		b := fingerprint[i]
		out = append(out, hex[b>>4], hex[b&0x0f])
	}
	return string(out)
}
