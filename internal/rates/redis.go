package rates

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RedisStore is a DurableStore on a redis server, records expire through EX.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key, defaults to "rates:".
	Prefix string
}

func NewRedisStore(opts RedisOptions) RedisStore {
	if opts.Prefix == "" {
		opts.Prefix = "rates:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return RedisStore{client: client, prefix: opts.Prefix, ttl: DurableTTL}
}

func (s RedisStore) Get(ctx context.Context, key string) (Record, error) {
	ctx, span := tracer.Start(ctx, "redis:get")
	defer span.End()
	span.SetAttributes(attribute.String("cache_key", key))

	serialized, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read key from redis")
		return Record{}, err
	}

	var record Record
	err = json.Unmarshal(serialized, &record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deserialize cached item")
		return Record{}, err
	}
	return record, nil
}

func (s RedisStore) Put(ctx context.Context, record Record) error {
	ctx, span := tracer.Start(ctx, "redis:put")
	defer span.End()

	key := record.Key()
	span.SetAttributes(attribute.String("cache_key", key))

	serialized, err := json.Marshal(record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize record")
		return err
	}
	err = s.client.Set(ctx, s.prefix+key, serialized, s.ttl).Err()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to set redis key")
		return err
	}
	return nil
}

// Ping checks that the redis server is reachable.
func (s RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s RedisStore) Close() error {
	return s.client.Close()
}
