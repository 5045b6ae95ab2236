package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Client struct {
	rdb        *redis.Client
	KeyBuilder *KeyBuilder
	log        *zap.Logger
}

// Cache key constants
const (
	KeyPollsAll      = "polls:all"
	KeyPollsByStatus = "polls:status:%s"
	KeyUserVoted     = "polls:user:%s:voted" // set of poll IDs
	KeyPollsGen      = "polls:generation"    // bumped on every invalidation
)

// ChannelPollEvents carries poll list updates between instances
const ChannelPollEvents = "polls:events"

// TTL constants
const (
	TTLPolls     = 30 * time.Second // poll list, short so vote counts stay fresh
	TTLUserVoted = 24 * time.Hour
)

// ErrNil is returned by Get when the key does not exist
var ErrNil = redis.Nil

// NewClient creates a new Redis client
func NewClient(redisURL string, environment string, log *zap.Logger) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 20
	opts.MinIdleConns = 2
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Client{rdb: rdb, KeyBuilder: NewKeyBuilder(environment), log: log}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// observe logs a finished command: failures at info, successes at debug
func (c *Client) observe(op, key string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("key_prefix", prefixForLog(key)),
		zap.Duration("duration", time.Since(start)))
	if err != nil && !errors.Is(err, redis.Nil) {
		c.log.Info(op, append(fields, zap.Error(err))...)
		return
	}
	c.log.Debug(op, fields...)
}

// Get retrieves a value from Redis. A missing key returns ErrNil.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	val, err := c.rdb.Get(ctx, key).Result()
	c.observe("redis_get", key, start, err)
	return val, err
}

// Set stores a value in Redis with TTL
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	err := c.rdb.Set(ctx, key, value, ttl).Err()
	c.observe("redis_set", key, start, err)
	return err
}

// Delete removes keys from Redis
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	start := time.Now()
	err := c.rdb.Del(ctx, keys...).Err()
	c.observe("redis_del", keys[0], start, err, zap.Int("keys", len(keys)))
	return err
}

// setIfGeneration writes KEYS[2] only while the counter at KEYS[1] still reads ARGV[1]
var setIfGeneration = redis.NewScript(`
local gen = redis.call('GET', KEYS[1]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Generation reads the counter at genKey; a missing counter reads as zero
func (c *Client) Generation(ctx context.Context, genKey string) (int64, error) {
	start := time.Now()
	gen, err := c.rdb.Get(ctx, genKey).Int64()
	c.observe("redis_get", genKey, start, err)
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// SetIfGeneration stores value under key unless genKey moved past gen since it was read.
// It reports whether the value was written.
func (c *Client) SetIfGeneration(ctx context.Context, genKey string, gen int64, key string, value interface{}, ttl time.Duration) (bool, error) {
	start := time.Now()
	written, err := setIfGeneration.Run(ctx, c.rdb, []string{genKey, key}, gen, value, ttl.Milliseconds()).Int()
	c.observe("redis_set_if_generation", key, start, err, zap.Bool("written", written == 1))
	return written == 1, err
}

// BumpGeneration increments genKey and removes keys in one transaction
func (c *Client) BumpGeneration(ctx context.Context, genKey string, keys ...string) error {
	start := time.Now()
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, genKey)
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	_, err := pipe.Exec(ctx)
	c.observe("redis_bump_generation", genKey, start, err, zap.Int("keys", len(keys)))
	return err
}

// SAdd adds members to a set and refreshes its TTL in one round trip
func (c *Client) SAdd(ctx context.Context, key string, ttl time.Duration, members ...interface{}) error {
	start := time.Now()
	pipe := c.rdb.TxPipeline()
	pipe.SAdd(ctx, key, members...)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	c.observe("redis_sadd", key, start, err, zap.Int("members", len(members)))
	return err
}

// SIsMember reports whether member is in the set
func (c *Client) SIsMember(ctx context.Context, key string, member interface{}) (bool, error) {
	start := time.Now()
	ok, err := c.rdb.SIsMember(ctx, key, member).Result()
	c.observe("redis_sismember", key, start, err, zap.Bool("result", ok))
	return ok, err
}

// SMembers returns every member of the set
func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	start := time.Now()
	members, err := c.rdb.SMembers(ctx, key).Result()
	c.observe("redis_smembers", key, start, err, zap.Int("members", len(members)))
	return members, err
}

// Publish sends payload to every subscriber of channel
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	start := time.Now()
	err := c.rdb.Publish(ctx, channel, payload).Err()
	c.observe("PUBLISH", channel, start, err, zap.Int("bytes", len(payload)))
	return err
}

// Subscribe blocks delivering messages on channel to handler until ctx ends
func (c *Client) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error {
	sub := c.rdb.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return errors.New("subscription closed")
			}
			handler([]byte(msg.Payload))
		}
	}
}

// Health checks the Redis connection
func (c *Client) Health(ctx context.Context) error {
	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	c.observe("redis_ping", "", start, err)
	return err
}

// prefixForLog returns a safe prefix of a key to avoid logging PII
func prefixForLog(key string) string {
	if len(key) <= 24 {
		return key
	}
	return key[:24] + "…"
}
