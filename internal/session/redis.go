package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/guard-registry/internal/common"
	"github.com/joseph-ayodele/guard-registry/internal/identity"
)

const defaultKeyPrefix = "guardbot:pending:"

// Redis keeps pending records in Redis with SET EX, so several bot replicas share state.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedis(rdb *redis.Client, ttl time.Duration, prefix string) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Redis{rdb: rdb, ttl: ttl, prefix: prefix}
}

// Dial parses a redis:// URL and pings the server.
func Dial(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (r *Redis) key(sender string) string { return r.prefix + sender }

func (r *Redis) Put(ctx context.Context, sender string, rec identity.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return common.NewAppError(common.CodeInternal, "encode pending record", err)
	}
	if err := r.rdb.Set(ctx, r.key(sender), b, r.ttl).Err(); err != nil {
		return common.NewStoreError("save pending record", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, sender string) (identity.Record, bool, error) {
	b, err := r.rdb.Get(ctx, r.key(sender)).Bytes()
	if errors.Is(err, redis.Nil) {
		return identity.Record{}, false, nil
	}
	if err != nil {
		return identity.Record{}, false, common.NewStoreError("load pending record", err)
	}
	rec, err := decode(b)
	return rec, err == nil, err
}

func (r *Redis) Take(ctx context.Context, sender string) (identity.Record, error) {
	b, err := r.rdb.GetDel(ctx, r.key(sender)).Bytes()
	if errors.Is(err, redis.Nil) {
		return identity.Record{}, ErrNoPending
	}
	if err != nil {
		return identity.Record{}, common.NewStoreError("take pending record", err)
	}
	return decode(b)
}

func (r *Redis) Delete(ctx context.Context, sender string) error {
	if err := r.rdb.Del(ctx, r.key(sender)).Err(); err != nil {
		return common.NewStoreError("delete pending record", err)
	}
	return nil
}

func decode(b []byte) (identity.Record, error) {
	var rec identity.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return identity.Record{}, common.NewStoreError("decode pending record", err)
	}
	return rec, nil
}
