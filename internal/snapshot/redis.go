package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/rueidis"
)

// RedisConfig holds connection parameters for a redis snapshot sink.
type RedisConfig struct {
	Addrs    []string
	Password string
	Key      string
}

// RedisSink stores the latest snapshot under a single key. A plain SET is
// atomic, so this sink is overwrite-latest by construction.
type RedisSink struct {
	client rueidis.Client
	key    string
}

// NewRedisSink creates a redis snapshot sink.
func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Password:     cfg.Password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &RedisSink{client: client, key: cfg.Key}, nil
}

// Write implements Sink.
func (s *RedisSink) Write(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	cmd := s.client.B().Set().Key(s.key).Value(string(data)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}

// Close implements Sink.
func (s *RedisSink) Close() error {
	s.client.Close()
	return nil
}
