package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/llmrank/internal/db"
)

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.client.B().Get().Key(key).Build()
	data, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// GetInt retrieves a counter. A missing key reads as db.ErrKeyNotFound.
func (s *Store) GetInt(ctx context.Context, key string) (int64, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, &db.Error{Op: db.OpGet, Err: err}
	}
	return v, nil
}

// IncrByWithTTL increments a key and sets its TTL only if it has none yet
// (EXPIRE NX), so the first write of a period fixes the expiry.
// Both commands go out in one round trip.
func (s *Store) IncrByWithTTL(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error) {
	res := s.client.DoMulti(ctx,
		s.client.B().Incrby().Key(key).Increment(val).Build(),
		s.client.B().Expire().Key(key).Seconds(int64(ttl.Seconds())).Nx().Build(),
	)

	n, err := res[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpIncrBy, Err: err}
	}
	if err := res[1].Error(); err != nil {
		return n, &db.Error{Op: db.OpExpire, Err: err}
	}
	return n, nil
}
