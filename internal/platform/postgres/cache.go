package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"inapp-messaging/internal/campaign"
)

const schema = `
	CREATE TABLE IF NOT EXISTS user_campaign_cache (
		user_key   TEXT PRIMARY KEY,
		payload    JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

var _ campaign.Cache = (*Cache)(nil)

// Cache keeps one row per user partition in user_campaign_cache.
type Cache struct {
	db *sql.DB
}

func NewCache(db *sql.DB) *Cache {
	return &Cache{db: db}
}

// EnsureSchema creates the cache table if it does not exist.
func (c *Cache) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create cache table: %w", err)
	}
	return nil
}

func (c *Cache) GetUserData(ctx context.Context, key string) (*campaign.UserData, error) {
	query := `SELECT payload FROM user_campaign_cache WHERE user_key = $1`

	var raw []byte
	err := c.db.QueryRowContext(ctx, query, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
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

	query := `
		INSERT INTO user_campaign_cache (user_key, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
	`
	if _, err := c.db.ExecContext(ctx, query, key, raw); err != nil {
		return fmt.Errorf("failed to write user data %s: %w", key, err)
	}
	return nil
}
