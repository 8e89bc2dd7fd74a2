package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"inapp-messaging/internal/campaign"
)

// Display is what the demo router recorded for one shown campaign.
type Display struct {
	CampaignID  string     `json:"campaignId"`
	Title       string     `json:"title"`
	Contexts    []string   `json:"contexts,omitempty"`
	ImageBytes  int        `json:"imageBytes"`
	ShownAt     time.Time  `json:"shownAt"`
	DismissedAt *time.Time `json:"dismissedAt,omitempty"`
	OptedOut    bool       `json:"optedOut"`
}

type activeDisplay struct {
	index      int
	timer      *time.Timer
	completion func(campaign.DisplayResult)
}

// displayRouter stands in for a UI. Every campaign stays "on screen" for a
// fixed duration unless dismissed through the API first.
type displayRouter struct {
	duration time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	displays []Display
	active   map[string]*activeDisplay
}

func newDisplayRouter(duration time.Duration, logger *slog.Logger) *displayRouter {
	return &displayRouter{duration: duration, logger: logger, active: make(map[string]*activeDisplay)}
}

func (r *displayRouter) DisplayCampaign(ctx context.Context, c campaign.Campaign, image []byte, completion func(campaign.DisplayResult)) {
	if ctx.Err() != nil {
		completion(campaign.DisplayResult{Cancelled: true})
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.displays = append(r.displays, Display{
		CampaignID: c.ID(),
		Title:      c.Data.MessagePayload.Title,
		Contexts:   c.Contexts(),
		ImageBytes: len(image),
		ShownAt:    time.Now(),
	})
	id := c.ID()
	a := &activeDisplay{index: len(r.displays) - 1, completion: completion}
	a.timer = time.AfterFunc(r.duration, func() { r.close(id, campaign.ImpressionTypeExit, false) })
	r.active[id] = a

	r.logger.Info("campaign displayed",
		"module", "api.router",
		"campaign_id", id,
		"type", c.Data.Type.String(),
	)
}

// Dismiss closes the campaign on screen. It reports false when nothing with
// that id is displayed.
func (r *displayRouter) Dismiss(id string, optOut bool) bool {
	action := campaign.ImpressionTypeActionOne
	if optOut {
		action = campaign.ImpressionTypeOptOut
	}
	return r.close(id, action, optOut)
}

func (r *displayRouter) close(id string, action campaign.ImpressionType, optOut bool) bool {
	r.mu.Lock()
	a, ok := r.active[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.active, id)
	a.timer.Stop()
	now := time.Now()
	r.displays[a.index].DismissedAt = &now
	r.displays[a.index].OptedOut = optOut
	r.mu.Unlock()

	ts := now.UnixMilli()
	a.completion(campaign.DisplayResult{
		OptedOut: optOut,
		Impressions: []campaign.Impression{
			{Type: campaign.ImpressionTypeImpression, Timestamp: ts},
			{Type: action, Timestamp: ts},
		},
	})
	return true
}

func (r *displayRouter) Displays() []Display {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Display, len(r.displays))
	copy(out, r.displays)
	return out
}
