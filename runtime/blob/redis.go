package blob

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis hash fields.
const (
	fieldMIME    = "mime"
	fieldData    = "data"
	fieldCreated = "created"

	defaultRedisPrefix = "studio"
)

// RedisStore keeps objects in Redis so any replica serving the HTTP API can
// stream a handle's bytes. Each object is one hash; an index set tracks ids.
//
// The optional TTL is a backstop for owners that never revoke. It does not
// replace RevokeObjectURL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL expires objects after ttl. Zero (the default) keeps them until deleted.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix. Default is "studio".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a Redis-backed store.
//
//	store := blob.NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    blob.WithTTL(time.Hour),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: defaultRedisPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) objectKey(id string) string {
	return s.prefix + ":blob:" + id
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":blobs"
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, id string, obj *Object) error {
	created := int64(0)
	if !obj.CreatedAt.IsZero() {
		created = obj.CreatedAt.UnixNano()
	}

	key := s.objectKey(id)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		fieldMIME, obj.MIMEType,
		fieldData, obj.Data,
		fieldCreated, strconv.FormatInt(created, 10),
	)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	pipe.SAdd(ctx, s.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put failed: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (*Object, error) {
	fields, err := s.client.HGetAll(ctx, s.objectKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	if len(fields) == 0 {
		// Expired by TTL; drop the stale index entry.
		s.client.SRem(ctx, s.indexKey(), id)
		return nil, ErrNotFound
	}

	obj := &Object{
		MIMEType: fields[fieldMIME],
		Data:     []byte(fields[fieldData]),
	}
	if ns, err := strconv.ParseInt(fields[fieldCreated], 10, 64); err == nil && ns != 0 {
		obj.CreatedAt = time.Unix(0, ns)
	}
	return obj, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.objectKey(id))
	pipe.SRem(ctx, s.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Len implements Store. Ids whose hashes expired are still counted until
// the next Get notices them.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis len failed: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
