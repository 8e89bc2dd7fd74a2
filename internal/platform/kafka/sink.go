package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"inapp-messaging/internal/campaign"

	"github.com/segmentio/kafka-go"
)

// NewWriter returns a synchronous writer keyed by campaign id.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 50 * time.Millisecond,
		BatchSize:    1,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ImpressionRecord is the value published for every dismissed message.
type ImpressionRecord struct {
	CampaignID      string                    `json:"campaignId"`
	IsTest          bool                      `json:"isTest"`
	Impressions     []campaign.Impression     `json:"impressions"`
	UserIdentifiers []campaign.UserIdentifier `json:"userIdentifiers"`
	SentAt          int64                     `json:"sentAt"`
}

var _ campaign.ImpressionSink = (*ImpressionSink)(nil)

// ImpressionSink publishes impressions to a topic instead of the HTTP
// endpoint. It implements campaign.ImpressionSink.
type ImpressionSink struct {
	writer   messageWriter
	identity func() []campaign.UserIdentifier
	now      func() time.Time
}

func NewImpressionSink(writer messageWriter, identity func() []campaign.UserIdentifier) *ImpressionSink {
	return &ImpressionSink{writer: writer, identity: identity, now: time.Now}
}

func (s *ImpressionSink) PingImpression(ctx context.Context, impressions []campaign.Impression, data campaign.CampaignData) error {
	record := ImpressionRecord{
		CampaignID:  data.CampaignID,
		IsTest:      data.IsTest,
		Impressions: impressions,
		SentAt:      s.now().UnixMilli(),
	}
	if s.identity != nil {
		record.UserIdentifiers = s.identity()
	}
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode impression record %s: %w", data.CampaignID, err)
	}

	msg := kafka.Message{Key: []byte(data.CampaignID), Value: value, Time: s.now()}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish impressions %s: %w", data.CampaignID, err)
	}
	return nil
}
