package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds the connection settings for RedisPublisher.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisPublisher fans events out over Redis pub/sub. Every event goes to
// Channel and to Channel:agent:<id>.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	log     zerolog.Logger
}

func NewRedisPublisher(ctx context.Context, cfg RedisConfig, log zerolog.Logger) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info().Str("addr", cfg.Addr).Str("channel", cfg.Channel).Msg("connected to redis")
	return &RedisPublisher{rdb: rdb, channel: cfg.Channel, log: log}, nil
}

func AgentChannel(base string, agentID int) string {
	return fmt.Sprintf("%s:agent:%d", base, agentID)
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := p.rdb.Pipeline()
	pipe.Publish(ctx, p.channel, b)
	pipe.Publish(ctx, AgentChannel(p.channel, e.AgentID), b)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", e.Kind, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error { return p.rdb.Close() }
