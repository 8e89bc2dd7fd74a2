package memory

import (
	"context"
	"slices"
	"sync"

	"inapp-messaging/internal/campaign"
)

var _ campaign.Cache = (*Cache)(nil)

// Cache keeps user partitions in process memory. It is the default when no
// external store is configured and is lost on restart.
type Cache struct {
	mu    sync.RWMutex
	users map[string][]campaign.Campaign
}

func NewCache() *Cache {
	return &Cache{users: make(map[string][]campaign.Campaign)}
}

func (c *Cache) GetUserData(_ context.Context, key string) (*campaign.UserData, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list, ok := c.users[key]
	if !ok {
		return nil, nil
	}
	return &campaign.UserData{CampaignData: slices.Clone(list)}, nil
}

func (c *Cache) CacheCampaignData(_ context.Context, key string, list []campaign.Campaign) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[key] = slices.Clone(list)
	return nil
}
