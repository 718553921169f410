// Package idempotency implements the two dedup levels the orchestrator
// relies on (spec §4.J): initiation dedup via an in-process waiter map
// (so concurrent requests for the same snapshot attach to one in-flight
// build instead of racing the TriadJob insert), and response idempotency
// via a Redis-backed cache of terminal HTTP outcomes.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/vecto-pilot/pilot-core/pkg/model"
	sharederrors "github.com/vecto-pilot/pilot-core/pkg/shared/errors"
)

// DefaultTTL is the default window a terminal response stays replayable.
const DefaultTTL = 60 * time.Second

// Service owns both dedup levels. The zero value is not usable; use New.
type Service struct {
	redis *redis.Client
	group singleflight.Group
	ttl   time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{redis: client, ttl: ttl}
}

// AttachOrRun is the initiation-dedup entry point: only one caller per key
// actually invokes build; every concurrent caller with the same key blocks
// until that call returns and receives the same result (spec §4.G step 1,
// §4.J "attach to the in-flight result via the in-process waiter map").
func (s *Service) AttachOrRun(ctx context.Context, key string, build func(context.Context) (interface{}, error)) (interface{}, error, bool) {
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		return build(ctx)
	})
	return v, err, shared
}

func redisKey(key string) string { return "idempotency:" + key }

// Get returns the cached terminal response for key, if any and still
// within its TTL window.
func (s *Service) Get(ctx context.Context, key string) (model.IdempotencyRecord, bool, error) {
	raw, err := s.redis.Get(ctx, redisKey(key)).Bytes()
	if err == redis.Nil {
		return model.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return model.IdempotencyRecord{}, false, sharederrors.NetworkError("read idempotency cache", "redis", err)
	}

	rec, decodeErr := decodeRecord(key, raw)
	if decodeErr != nil {
		return model.IdempotencyRecord{}, false, decodeErr
	}
	return rec, true, nil
}

// Put caches a terminal response for key for the service's TTL.
func (s *Service) Put(ctx context.Context, key string, status int, body []byte) error {
	rec := model.IdempotencyRecord{Key: key, Status: status, Body: body, CreatedAt: time.Now()}
	payload := encodeRecord(rec)
	if err := s.redis.Set(ctx, redisKey(key), payload, s.ttl).Err(); err != nil {
		return sharederrors.NetworkError("write idempotency cache", "redis", err)
	}
	return nil
}

// encodeRecord/decodeRecord use a tiny fixed binary layout (status as 4
// ASCII digits, then the raw body) rather than JSON, since the body itself
// is already the serialized HTTP response we're asked to replay
// byte-for-byte.
func encodeRecord(rec model.IdempotencyRecord) []byte {
	header := fmt.Sprintf("%04d:", rec.Status)
	return append([]byte(header), rec.Body...)
}

func decodeRecord(key string, raw []byte) (model.IdempotencyRecord, error) {
	if len(raw) < 5 || raw[4] != ':' {
		return model.IdempotencyRecord{}, fmt.Errorf("idempotency: malformed cache entry for key %q", key)
	}
	var status int
	if _, err := fmt.Sscanf(string(raw[:4]), "%04d", &status); err != nil {
		return model.IdempotencyRecord{}, fmt.Errorf("idempotency: malformed status prefix for key %q: %w", key, err)
	}
	return model.IdempotencyRecord{Key: key, Status: status, Body: raw[5:]}, nil
}
