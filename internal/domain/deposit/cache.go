package deposit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	historyKeyPrefix = "deposit:history:"

	// CommitChannel is the pub/sub channel the archiver listens on.
	CommitChannel = "deposit:commits"
)

// RedisHistoryCache keeps loaded history in Redis so recomputing a session does not
// hit Postgres on every change. Commits always re-read the store, never the cache.
type RedisHistoryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisHistoryCache(client *redis.Client, ttl time.Duration) *RedisHistoryCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisHistoryCache{client: client, ttl: ttl}
}

func (c *RedisHistoryCache) Get(ctx context.Context, customerID string) ([]DepositLine, bool) {
	data, err := c.client.Get(ctx, historyKeyPrefix+customerID).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("customer_id", customerID).Msg("history cache read failed")
		}
		return nil, false
	}

	var lines []DepositLine
	if err := json.Unmarshal(data, &lines); err != nil {
		log.Warn().Err(err).Str("customer_id", customerID).Msg("history cache entry corrupt")
		return nil, false
	}
	return lines, true
}

func (c *RedisHistoryCache) Set(ctx context.Context, customerID string, lines []DepositLine) {
	data, err := json.Marshal(lines)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, historyKeyPrefix+customerID, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("customer_id", customerID).Msg("history cache write failed")
	}
}

func (c *RedisHistoryCache) Invalidate(ctx context.Context, customerID string) {
	if err := c.client.Del(ctx, historyKeyPrefix+customerID).Err(); err != nil {
		log.Warn().Err(err).Str("customer_id", customerID).Msg("history cache invalidate failed")
	}
}

// RedisCommitNotifier publishes the fingerprint of every recorded commit.
type RedisCommitNotifier struct {
	client *redis.Client
}

func NewRedisCommitNotifier(client *redis.Client) *RedisCommitNotifier {
	return &RedisCommitNotifier{client: client}
}

func (n *RedisCommitNotifier) CommitRecorded(ctx context.Context, rec *CommitRecord) {
	if err := n.client.Publish(ctx, CommitChannel, rec.Fingerprint).Err(); err != nil {
		log.Warn().Err(err).Str("fingerprint", rec.Fingerprint).Msg("commit notification failed")
	}
}
