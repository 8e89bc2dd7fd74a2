package campaign

import (
	"regexp"
	"strings"
	"time"
)

type CampaignType int

const (
	CampaignTypeInvalid CampaignType = 0
	CampaignTypeModal   CampaignType = 1
	CampaignTypeFull    CampaignType = 2
	CampaignTypeSlide   CampaignType = 3
	CampaignTypeHTML    CampaignType = 4
)

func (t CampaignType) String() string {
	switch t {
	case CampaignTypeModal:
		return "modal"
	case CampaignTypeFull:
		return "full"
	case CampaignTypeSlide:
		return "slide"
	case CampaignTypeHTML:
		return "html"
	default:
		return "invalid"
	}
}

type TriggerType int

const (
	TriggerTypeInvalid TriggerType = 0
	TriggerTypeEvent   TriggerType = 1
)

// CampaignData is the payload received from the backend. It is never mutated locally.
type CampaignData struct {
	CampaignID          string         `json:"campaignId"`
	Type                CampaignType   `json:"type"`
	IsTest              bool           `json:"isTest"`
	MaxImpressions      int            `json:"maxImpressions"`
	InfiniteImpressions bool           `json:"infiniteImpressions,omitempty"`
	HasNoEndDate        bool           `json:"hasNoEndDate,omitempty"`
	Triggers            []Trigger      `json:"triggers"`
	MessagePayload      MessagePayload `json:"messagePayload"`
}

type MessagePayload struct {
	Title           string          `json:"title"`
	MessageBody     string          `json:"messageBody,omitempty"`
	Header          string          `json:"header,omitempty"`
	Resource        Resource        `json:"resource"`
	MessageSettings MessageSettings `json:"messageSettings"`
}

type Resource struct {
	ImageURL string `json:"imageUrl,omitempty"`
}

type MessageSettings struct {
	DisplaySettings DisplaySettings `json:"displaySettings"`
}

type DisplaySettings struct {
	EndTimeMillis int64 `json:"endTimeMillis"`
	Delay         int   `json:"delay"` // milliseconds before the next queued campaign
	OptOut        bool  `json:"optOut"`
}

type Trigger struct {
	Type       TriggerType        `json:"type"`
	EventType  EventType          `json:"eventType"`
	EventName  string             `json:"eventName"`
	Attributes []TriggerAttribute `json:"attributes"`
}

type TriggerAttribute struct {
	Name     string        `json:"name"`
	Value    string        `json:"value"`
	Type     AttributeType `json:"type"`
	Operator Operator      `json:"operator"`
}

// Campaign layers local consumption state on top of the backend payload.
type Campaign struct {
	Data            CampaignData `json:"campaignData"`
	ImpressionsLeft int          `json:"impressionsLeft"`
	IsOptedOut      bool         `json:"isOptedOut"`
}

// NewCampaign returns a campaign with a full impression budget.
func NewCampaign(data CampaignData) Campaign {
	return Campaign{Data: data, ImpressionsLeft: max(data.MaxImpressions, 0)}
}

func (c Campaign) ID() string { return c.Data.CampaignID }

// IsOutdated reports whether the display end time has passed.
func (c Campaign) IsOutdated(now time.Time) bool {
	if c.Data.HasNoEndDate {
		return false
	}
	end := c.Data.MessagePayload.MessageSettings.DisplaySettings.EndTimeMillis
	return now.UnixMilli() > end
}

// HasImpressionsLeft is true for infinite campaigns regardless of the counter.
func (c Campaign) HasImpressionsLeft() bool {
	return c.Data.InfiniteImpressions || c.ImpressionsLeft > 0
}

func (c Campaign) Delay() time.Duration {
	return time.Duration(c.Data.MessagePayload.MessageSettings.DisplaySettings.Delay) * time.Millisecond
}

var contextPattern = regexp.MustCompile(`\[([^\[\]]+)\]`)

// Contexts returns the bracketed tags found in the message title, e.g. "[ctx1] Hi [ctx2]".
func (c Campaign) Contexts() []string {
	matches := contextPattern.FindAllStringSubmatch(c.Data.MessagePayload.Title, -1)
	var out []string
	for _, m := range matches {
		if strings.TrimSpace(m[1]) == "" {
			continue
		}
		out = append(out, m[1])
	}
	return out
}

type UserIdentifierType int

const (
	UserIdentifierRakutenID  UserIdentifierType = 1
	UserIdentifierUserID     UserIdentifierType = 3
	UserIdentifierTrackingID UserIdentifierType = 4
)

type UserIdentifier struct {
	Type  UserIdentifierType `json:"type"`
	Value string             `json:"id"`
}

// UserData is what a Cache stores per user partition.
type UserData struct {
	CampaignData []Campaign `json:"campaignData"`
}

type ImpressionType int

const (
	ImpressionTypeInvalid      ImpressionType = 0
	ImpressionTypeActionOne    ImpressionType = 1
	ImpressionTypeActionTwo    ImpressionType = 2
	ImpressionTypeExit         ImpressionType = 3
	ImpressionTypeImpression   ImpressionType = 4
	ImpressionTypeClickContent ImpressionType = 5
	ImpressionTypeOptOut       ImpressionType = 6
)

type Impression struct {
	Type      ImpressionType `json:"type"`
	Timestamp int64          `json:"timestamp"`
}

// DisplayPermission is the backend answer to a display permission check.
type DisplayPermission struct {
	Display     bool `json:"display"`
	PerformPing bool `json:"performPing"`
}

// PingResponse carries a campaign list snapshot.
type PingResponse struct {
	Data              []CampaignData `json:"data"`
	NextPingMillis    int64          `json:"nextPingMillis"`
	CurrentPingMillis int64          `json:"currentPingMillis"`
}

// DisplayResult is reported by the Router when a message is dismissed.
type DisplayResult struct {
	// Cancelled means the message was never shown.
	Cancelled   bool
	OptedOut    bool
	Impressions []Impression
}
