// Package redis publishes crawl output to Redis streams.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Config describes the target streams.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Stream is the stream name, or the prefix when StreamCount > 1.
	Stream string
	// StreamCount spreads messages over Stream:0 .. Stream:N-1.
	StreamCount int
	// MaxLen approximately caps each stream. Zero leaves streams unbounded.
	MaxLen int64
}

type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// attributed payloads contribute extra stream fields.
type attributed interface {
	Attributes() map[string]string
}

// Publisher implements crawler.Publisher with XADD.
type Publisher struct {
	client streamClient
	cfg    Config
}

// New connects a Publisher to the configured Redis server.
func New(cfg Config) (*Publisher, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis.addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(client, cfg)
}

// NewWithClient builds a Publisher on an existing client (primarily for testing).
func NewWithClient(client streamClient, cfg Config) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Stream == "" {
		cfg.Stream = "mixtapes"
	}
	if cfg.StreamCount <= 0 {
		cfg.StreamCount = 1
	}
	return &Publisher{client: client, cfg: cfg}, nil
}

// Publish appends the JSON payload to a stream and returns the entry ID. A
// non-empty topic overrides the configured stream name. Payloads are spread
// over shards by a hash of their bytes, so a record always lands on the same
// shard.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	values := map[string]any{"payload": string(data)}
	if a, ok := payload.(attributed); ok {
		for k, v := range a.Attributes() {
			values[k] = v
		}
	}

	args := &redis.XAddArgs{
		Stream: p.stream(topic, data),
		Values: values,
	}
	if p.cfg.MaxLen > 0 {
		args.MaxLen = p.cfg.MaxLen
		args.Approx = true
	}
	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", args.Stream, err)
	}
	return id, nil
}

func (p *Publisher) stream(topic string, data []byte) string {
	name := p.cfg.Stream
	if topic != "" {
		name = topic
	}
	if p.cfg.StreamCount == 1 {
		return name
	}
	h := fnv.New32a()
	_, _ = h.Write(data)
	return name + ":" + strconv.Itoa(int(h.Sum32()%uint32(p.cfg.StreamCount)))
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}
