package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"inapp-messaging/internal/campaign"
)

const maxErrorBody = 512

type Config struct {
	PingURL        string
	PermissionURL  string
	ImpressionURL  string
	SubscriptionID string
	DeviceID       string
	AppVersion     string
	HTTPClient     *http.Client
	// Identity returns the active user identifiers sent with permission and
	// impression requests. Nil sends none.
	Identity func() []campaign.UserIdentifier
}

var (
	_ campaign.PingSource       = (*Client)(nil)
	_ campaign.PermissionSource = (*Client)(nil)
	_ campaign.ImpressionSink   = (*Client)(nil)
	_ campaign.ResourceLoader   = (*Client)(nil)
)

// Client talks to the messaging backend. It implements campaign.PingSource,
// campaign.PermissionSource, campaign.ImpressionSink and campaign.ResourceLoader.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{cfg: cfg, http: httpClient}
}

type pingRequest struct {
	AppVersion      string                    `json:"appVersion"`
	UserIdentifiers []campaign.UserIdentifier `json:"userIdentifiers"`
}

type pingResponse struct {
	Data []struct {
		CampaignData campaign.CampaignData `json:"campaignData"`
	} `json:"data"`
	NextPingMillis    int64 `json:"nextPingMillis"`
	CurrentPingMillis int64 `json:"currentPingMillis"`
}

func (c *Client) Ping(ctx context.Context, ids []campaign.UserIdentifier) (campaign.PingResponse, error) {
	body := pingRequest{AppVersion: c.cfg.AppVersion, UserIdentifiers: nonNil(ids)}
	var resp pingResponse
	if err := c.post(ctx, c.cfg.PingURL, body, &resp); err != nil {
		return campaign.PingResponse{}, fmt.Errorf("ping: %w", err)
	}

	out := campaign.PingResponse{
		Data:              make([]campaign.CampaignData, 0, len(resp.Data)),
		NextPingMillis:    resp.NextPingMillis,
		CurrentPingMillis: resp.CurrentPingMillis,
	}
	for _, d := range resp.Data {
		out.Data = append(out.Data, d.CampaignData)
	}
	return out, nil
}

type permissionRequest struct {
	CampaignID      string                    `json:"campaignId"`
	AppVersion      string                    `json:"appVersion"`
	UserIdentifiers []campaign.UserIdentifier `json:"userIdentifiers"`
}

func (c *Client) CheckPermission(ctx context.Context, data campaign.CampaignData) (campaign.DisplayPermission, error) {
	body := permissionRequest{
		CampaignID:      data.CampaignID,
		AppVersion:      c.cfg.AppVersion,
		UserIdentifiers: c.identity(),
	}
	var resp campaign.DisplayPermission
	if err := c.post(ctx, c.cfg.PermissionURL, body, &resp); err != nil {
		return campaign.DisplayPermission{}, fmt.Errorf("display permission %s: %w", data.CampaignID, err)
	}
	return resp, nil
}

type impressionRequest struct {
	CampaignID      string                    `json:"campaignId"`
	IsTest          bool                      `json:"isTest"`
	AppVersion      string                    `json:"appVersion"`
	Impressions     []campaign.Impression     `json:"impressions"`
	UserIdentifiers []campaign.UserIdentifier `json:"userIdentifiers"`
}

func (c *Client) PingImpression(ctx context.Context, impressions []campaign.Impression, data campaign.CampaignData) error {
	body := impressionRequest{
		CampaignID:      data.CampaignID,
		IsTest:          data.IsTest,
		AppVersion:      c.cfg.AppVersion,
		Impressions:     impressions,
		UserIdentifiers: c.identity(),
	}
	if err := c.post(ctx, c.cfg.ImpressionURL, body, nil); err != nil {
		return fmt.Errorf("impression %s: %w", data.CampaignID, err)
	}
	return nil
}

// Fetch downloads a message resource such as an image.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", campaign.ErrResourceFetch, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", campaign.ErrResourceFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status=%d", campaign.ErrResourceFetch, url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", campaign.ErrResourceFetch, err)
	}
	return data, nil
}

func (c *Client) identity() []campaign.UserIdentifier {
	if c.cfg.Identity == nil {
		return []campaign.UserIdentifier{}
	}
	return nonNil(c.cfg.Identity())
}

// post sends body as JSON and decodes the answer into out when out is not nil.
// Failures wrap the campaign error kinds the list manager dispatches on.
func (c *Client) post(ctx context.Context, url string, body, out any) error {
	if url == "" {
		return fmt.Errorf("%w: endpoint not configured", campaign.ErrInvalidConfiguration)
	}
	if c.cfg.SubscriptionID == "" {
		return fmt.Errorf("%w: subscription id not configured", campaign.ErrInvalidConfiguration)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", campaign.ErrInvalidConfiguration, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", campaign.ErrInvalidConfiguration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Subscription-Id", c.cfg.SubscriptionID)
	if c.cfg.DeviceID != "" {
		req.Header.Set("device_id", c.cfg.DeviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", campaign.ErrRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return campaign.ErrTooManyRequests
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: status=%d body=%s", campaign.ErrRequest, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", campaign.ErrJSONDecoding, err)
	}
	return nil
}

func nonNil(ids []campaign.UserIdentifier) []campaign.UserIdentifier {
	if ids == nil {
		return []campaign.UserIdentifier{}
	}
	return ids
}
