package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"inapp-messaging/internal/campaign"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "inapp:cache:"

var _ campaign.Cache = (*Cache)(nil)

// Cache stores one JSON document per user partition. Every write refreshes
// the partition's TTL; a zero TTL keeps it forever.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func cacheKey(userKey string) string {
	return keyPrefix + userKey
}

// GetUserData returns nil, nil when the partition does not exist.
func (c *Cache) GetUserData(ctx context.Context, key string) (*campaign.UserData, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user data %s: %w", key, err)
	}

	var data campaign.UserData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode user data %s: %w", key, err)
	}
	return &data, nil
}

func (c *Cache) CacheCampaignData(ctx context.Context, key string, list []campaign.Campaign) error {
	raw, err := json.Marshal(campaign.UserData{CampaignData: list})
	if err != nil {
		return fmt.Errorf("failed to encode user data %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, cacheKey(key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write user data %s: %w", key, err)
	}
	return nil
}
