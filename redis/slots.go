// Package redis keeps the urgency slot counter in Redis so several API
// instances share one inventory.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultKey = "slotleads:urgency_slots"

// take decrements only while the value is positive. A missing key counts as zero.
var take = goredis.NewScript(`
local n = tonumber(redis.call("GET", KEYS[1]) or "0")
if n > 0 then
	return redis.call("DECR", KEYS[1])
end
return 0
`)

// Config holds Redis connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

type SlotCounter struct {
	client *goredis.Client
	key    string
}

// Open connects to Redis and checks the connection.
func Open(cfg Config) (*SlotCounter, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewSlotCounter(client, cfg.Key), nil
}

// NewSlotCounter uses an existing client. An empty key selects the default.
func NewSlotCounter(client *goredis.Client, key string) *SlotCounter {
	if key == "" {
		key = defaultKey
	}
	return &SlotCounter{
		client: client,
		key:    key,
	}
}

// Seed sets the counter to initial unless it already exists.
func (c *SlotCounter) Seed(ctx context.Context, initial int) error {
	if initial < 0 {
		initial = 0
	}
	if err := c.client.SetNX(ctx, c.key, initial, 0).Err(); err != nil {
		return fmt.Errorf("seeding slots: %w", err)
	}
	return nil
}

func (c *SlotCounter) Remaining(ctx context.Context) (int, error) {
	n, err := c.client.Get(ctx, c.key).Int()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading slots: %w", err)
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

func (c *SlotCounter) Take(ctx context.Context) (int, error) {
	n, err := take.Run(ctx, c.client, []string{c.key}).Int()
	if err != nil {
		return 0, fmt.Errorf("taking slot: %w", err)
	}
	return n, nil
}

func (c *SlotCounter) StatusCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *SlotCounter) Close() error {
	return c.client.Close()
}
