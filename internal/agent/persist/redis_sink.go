package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	errx "github.com/mozo-virtual-core/server/internal/core/error"
	logx "github.com/mozo-virtual-core/server/pkg/logger"
)

// RedisSink stores conversation blocks in a Redis list per session.
type RedisSink struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisSink(rdb redis.Cmdable, ttl time.Duration) *RedisSink {
	return &RedisSink{rdb: rdb, ttl: ttl}
}

func (r *RedisSink) blocksKey(sessionID string) string {
	return fmt.Sprintf("robino:session:%s:blocks", sessionID)
}

func (r *RedisSink) Append(ctx context.Context, b Block) error {
	raw, err := json.Marshal(b)
	if err != nil {
		logx.Error().Err(err).Str("session_id", b.SessionID).Msg("failed to marshal block")
		return fmt.Errorf("marshal block: %w", err)
	}
	key := r.blocksKey(b.SessionID)

	if err := r.rdb.RPush(ctx, key, raw).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push block to redis")
		return errx.WrapRedis(err)
	}
	// extend TTL on touch
	if r.ttl > 0 {
		if ok, err := r.rdb.Expire(ctx, key, r.ttl).Result(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
			return errx.WrapRedis(err)
		} else if !ok {
			logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on session key")
		}
	}
	return nil
}

// Load returns every block of a session in append order.
func (r *RedisSink) Load(ctx context.Context, sessionID string) ([]Block, error) {
	key := r.blocksKey(sessionID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Block{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load blocks from redis")
		return nil, errx.WrapRedis(err)
	}

	blocks := make([]Block, 0, len(rows))
	for i, s := range rows {
		var b Block
		if err := json.Unmarshal([]byte(s), &b); err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Int("index", i).Msg("failed to unmarshal block")
			return nil, fmt.Errorf("unmarshal block at index %d: %w", i, err)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func (r *RedisSink) Clear(ctx context.Context, sessionID string) error {
	key := r.blocksKey(sessionID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete blocks from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSink) Count(ctx context.Context, sessionID string) (int, error) {
	key := r.blocksKey(sessionID)
	n, err := r.rdb.LLen(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to count blocks in redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

var _ Sink = (*RedisSink)(nil)
