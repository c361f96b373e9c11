package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache fronts the flight inventory service for read-only flight lookups.
// History responses fetch one flight per ticket, so a short TTL here keeps
// that from turning into a remote call storm.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func (c *Cache) GetFlight(ctx context.Context, flightID string, out interface{}) (bool, error) {
	val, err := c.client.Get(ctx, "flight:"+flightID).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) SetFlight(ctx context.Context, flightID string, flight interface{}) error {
	data, err := json.Marshal(flight)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "flight:"+flightID, data, c.ttl).Err()
}
