package memory

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const (
	redisKeyPrefix   = "memory:summary:"
	redisPingTimeout = 5 * time.Second
)

// appendScript joins the new turn onto the stored summary in one round trip.
var appendScript = redis.NewScript(`
local previous = redis.call('HGET', KEYS[1], 'summary')
local combined = ARGV[1]
if previous and previous ~= '' then
	combined = previous .. ARGV[2] .. ARGV[1]
end
redis.call('HSET', KEYS[1], 'summary', combined, 'updated_at', ARGV[3])
redis.call('HSETNX', KEYS[1], 'created_at', ARGV[3])
return {combined, redis.call('HGET', KEYS[1], 'created_at'), ARGV[3]}
`)

// RedisOptions configures the Redis connection used by the redis memory backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient dials Redis and verifies the connection with a PING.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, eris.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrapf(err, "connecting to redis at %s", opts.Addr)
	}

	return client, nil
}

// RedisRepository keeps one hash per user holding summary, created_at and updated_at.
type RedisRepository struct {
	client redis.UniversalClient
	logger *logrus.Logger
	now    func() time.Time
}

var _ Repository = (*RedisRepository)(nil)

// NewRedisRepository constructs a Redis-backed repository implementation.
func NewRedisRepository(client redis.UniversalClient, logger *logrus.Logger) (*RedisRepository, error) {
	if client == nil {
		return nil, eris.New("redis client is required")
	}

	return &RedisRepository{client: client, logger: logger, now: time.Now}, nil
}

func redisKey(userID string) string {
	return redisKeyPrefix + userID
}

// Get returns the memory hash for the user or nil when not found.
func (r *RedisRepository) Get(ctx context.Context, userID string) (*Summary, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return nil, ErrUserIDRequired
	}

	fields, err := r.client.HGetAll(ctx, redisKey(trimmed)).Result()
	if err != nil {
		r.logWarn(logrus.Fields{"user_id": trimmed}, err, "fetching memory")
		return nil, eris.Wrapf(err, "fetching memory for user: %s", trimmed)
	}

	if len(fields) == 0 {
		return nil, nil
	}

	return decodeRedisSummary(trimmed, fields["summary"], fields["created_at"], fields["updated_at"])
}

// Append joins the turn onto the stored summary atomically via a Lua script.
func (r *RedisRepository) Append(ctx context.Context, userID, turn string) (*Summary, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return nil, ErrUserIDRequired
	}

	now := r.now().UTC().Format(time.RFC3339Nano)
	values, err := appendScript.Run(ctx, r.client, []string{redisKey(trimmed)}, turn, Separator, now).StringSlice()
	if err != nil {
		r.logWarn(logrus.Fields{"user_id": trimmed}, err, "appending memory")
		return nil, eris.Wrapf(err, "appending memory for user: %s", trimmed)
	}

	if len(values) != 3 {
		return nil, eris.Errorf("append script returned %d values", len(values))
	}

	return decodeRedisSummary(trimmed, values[0], values[1], values[2])
}

// Delete removes the user's hash. Deleting a missing key is not an error.
func (r *RedisRepository) Delete(ctx context.Context, userID string) error {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return ErrUserIDRequired
	}

	if err := r.client.Del(ctx, redisKey(trimmed)).Err(); err != nil {
		r.logWarn(logrus.Fields{"user_id": trimmed}, err, "deleting memory")
		return eris.Wrapf(err, "deleting memory for user: %s", trimmed)
	}

	return nil
}

// Ping checks that Redis answers.
func (r *RedisRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return eris.Wrap(err, "pinging redis")
	}
	return nil
}

func decodeRedisSummary(userID, text, createdAt, updatedAt string) (*Summary, error) {
	record := &Summary{UserID: userID, Text: text}

	if createdAt != "" {
		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, eris.Wrapf(err, "parsing created_at for user: %s", userID)
		}
		record.CreatedAt = parsed
	}

	if updatedAt != "" {
		parsed, err := time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			return nil, eris.Wrapf(err, "parsing updated_at for user: %s", userID)
		}
		record.UpdatedAt = parsed
	}

	return record, nil
}

func (r *RedisRepository) logWarn(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Warn(message)
}
