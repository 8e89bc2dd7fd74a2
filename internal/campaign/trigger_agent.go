package campaign

import (
	"errors"
	"log/slog"
)

// campaignQueue is the dispatcher surface the trigger agent feeds.
type campaignQueue interface {
	AddToQueue(id string)
	DispatchAllIfNeeded()
}

// TriggerAgent turns validated campaigns into consumed event sets and queued campaigns.
type TriggerAgent struct {
	campaigns campaignLister
	validator *Validator
	matcher   *EventMatcher
	queue     campaignQueue
	metrics   *Metrics
	logger    *slog.Logger
}

func NewTriggerAgent(campaigns campaignLister, validator *Validator, matcher *EventMatcher, queue campaignQueue, metrics *Metrics, logger *slog.Logger) *TriggerAgent {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TriggerAgent{
		campaigns: campaigns,
		validator: validator,
		matcher:   matcher,
		queue:     queue,
		metrics:   metrics,
		logger:    logger,
	}
}

// ValidateAndTriggerCampaigns validates the current list and queues every
// campaign whose event set could be consumed. Validation and consumption run
// in one matcher transaction.
func (a *TriggerAgent) ValidateAndTriggerCampaigns() {
	list := a.campaigns.List()
	var ready []string
	a.matcher.Transaction(func(tx *MatchTx) {
		a.validator.validate(list, tx, func(c Campaign, events []Event) {
			if err := tx.RemoveSetOfMatchedEvents(events, c); err != nil {
				a.rejected(c, err)
				return
			}
			ready = append(ready, c.ID())
		})
	})
	a.enqueue(ready)
}

// Trigger queues c when its already known event set can still be consumed.
func (a *TriggerAgent) Trigger(c Campaign, events []Event) {
	if err := a.matcher.RemoveSetOfMatchedEvents(events, c); err != nil {
		a.rejected(c, err)
		return
	}
	a.enqueue([]string{c.ID()})
}

func (a *TriggerAgent) enqueue(ids []string) {
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		a.queue.AddToQueue(id)
	}
	a.queue.DispatchAllIfNeeded()
}

func (a *TriggerAgent) rejected(c Campaign, err error) {
	reason := "not_found"
	if errors.Is(err, ErrSetAlreadyUsed) {
		reason = "already_used"
	}
	a.metrics.MatcherRejections.WithLabelValues(reason).Inc()
	a.logger.Debug("campaign skipped",
		"module", "campaign.trigger_agent",
		"campaign_id", c.ID(),
		"reason", reason,
	)
}
