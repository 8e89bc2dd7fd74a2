package campaign

import "time"

// matchSource resolves the events satisfying a campaign's triggers.
// Both EventMatcher and MatchTx implement it.
type matchSource interface {
	MatchedEvents(c Campaign) ([]Event, bool)
}

// Validator selects the campaigns whose display conditions currently hold.
type Validator struct {
	campaigns campaignLister
	matcher   *EventMatcher
	now       func() time.Time
}

func NewValidator(campaigns campaignLister, matcher *EventMatcher, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{campaigns: campaigns, matcher: matcher, now: now}
}

// Validate calls handler for every eligible campaign with the events that
// satisfied its triggers. Nothing is consumed or mutated.
func (v *Validator) Validate(handler func(c Campaign, events []Event)) {
	v.validate(v.campaigns.List(), v.matcher, handler)
}

func (v *Validator) validate(list []Campaign, src matchSource, handler func(Campaign, []Event)) {
	now := v.now()
	for _, c := range list {
		if c.IsOptedOut || !c.HasImpressionsLeft() {
			continue
		}
		if c.Data.IsTest {
			handler(c, nil)
			continue
		}
		if c.IsOutdated(now) || len(c.Data.Triggers) == 0 {
			continue
		}
		events, ok := src.MatchedEvents(c)
		if !ok {
			continue
		}
		handler(c, events)
	}
}
