package campaign

import (
	"log/slog"
	"slices"

	"github.com/google/uuid"
)

const (
	defaultMaxPersistentEvents = 10
	// maxConsumedCustomEvents bounds the consumed custom event ids kept per campaign.
	maxConsumedCustomEvents = 64
)

// campaignLister is the slice of Repository the matcher depends on.
type campaignLister interface {
	List() []Campaign
}

type matcherState struct {
	// matched holds custom events per campaign id, oldest first.
	matched map[string][]Event
	// persistent holds built-in events per type, oldest first, bounded.
	persistent map[EventType][]Event
	// used records stored persistent event ids already consumed per campaign
	// id. Ids leave it when the event is evicted from the store.
	used map[string]map[uuid.UUID]struct{}
	// consumed records custom event ids consumed per campaign id, newest last.
	consumed map[string][]uuid.UUID
}

// EventMatcher stores observed events and resolves them against campaign triggers.
type EventMatcher struct {
	campaigns     campaignLister
	state         *Lockable[matcherState]
	maxPersistent int
	logger        *slog.Logger
}

func NewEventMatcher(campaigns campaignLister, maxPersistent int, logger *slog.Logger) *EventMatcher {
	if maxPersistent <= 0 {
		maxPersistent = defaultMaxPersistentEvents
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventMatcher{
		campaigns: campaigns,
		state: NewLockable(matcherState{
			matched:    make(map[string][]Event),
			persistent: make(map[EventType][]Event),
			used:       make(map[string]map[uuid.UUID]struct{}),
			consumed:   make(map[string][]uuid.UUID),
		}),
		maxPersistent: maxPersistent,
		logger:        logger,
	}
}

// MatchAndStore records the event. Persistent events are kept for every
// campaign; custom events are kept only for campaigns with a matching trigger.
func (m *EventMatcher) MatchAndStore(e Event) {
	if e.Type == EventTypeInvalid {
		return
	}
	// Repository snapshot is taken before the matcher lock.
	var campaigns []Campaign
	if !e.Type.IsPersistent() {
		campaigns = m.campaigns.List()
	}

	stored := 0
	m.state.WithLock(func(s *matcherState) {
		if e.Type.IsPersistent() {
			events := append(s.persistent[e.Type], e)
			if len(events) > m.maxPersistent {
				evicted := events[:len(events)-m.maxPersistent]
				events = slices.Clone(events[len(events)-m.maxPersistent:])
				s.forget(evicted)
			}
			s.persistent[e.Type] = events
			stored = 1
			return
		}
		for _, c := range campaigns {
			if slices.ContainsFunc(c.Data.Triggers, func(t Trigger) bool { return t.Matches(e) }) {
				s.matched[c.ID()] = append(s.matched[c.ID()], e)
				stored++
			}
		}
	})
	m.logger.Debug("event stored",
		"module", "campaign.matcher",
		"event_type", e.Type.String(),
		"event_name", e.Name,
		"campaigns", stored,
	)
}

// MatchedEvents returns one distinct stored event per trigger, in trigger order.
func (m *EventMatcher) MatchedEvents(c Campaign) ([]Event, bool) {
	var (
		events []Event
		ok     bool
	)
	m.state.Read(func(s *matcherState) { events, ok = s.assign(c) })
	return events, ok
}

func (m *EventMatcher) ContainsAllMatchedEvents(c Campaign) bool {
	_, ok := m.MatchedEvents(c)
	return ok
}

// RemoveSetOfMatchedEvents consumes the events that satisfied c. Persistent
// events stay stored. See MatchTx.RemoveSetOfMatchedEvents for errors.
func (m *EventMatcher) RemoveSetOfMatchedEvents(events []Event, c Campaign) error {
	var err error
	m.state.WithLock(func(s *matcherState) { err = s.remove(events, c) })
	return err
}

// Transaction runs fn inside the matcher's critical section so that a
// check-then-consume sequence cannot interleave with another consumer.
// tx must not be retained after fn returns.
func (m *EventMatcher) Transaction(fn func(tx *MatchTx)) {
	m.state.WithLock(func(s *matcherState) { fn(&MatchTx{s: s}) })
}

// ClearNonPersistentEvents drops custom events and consumption history.
func (m *EventMatcher) ClearNonPersistentEvents() {
	m.state.WithLock(func(s *matcherState) {
		s.matched = make(map[string][]Event)
		s.used = make(map[string]map[uuid.UUID]struct{})
		s.consumed = make(map[string][]uuid.UUID)
	})
}

// RetainCampaigns forgets stored events of campaigns no longer listed.
func (m *EventMatcher) RetainCampaigns(ids []string) {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	m.state.WithLock(func(s *matcherState) {
		for id := range s.matched {
			if _, ok := keep[id]; !ok {
				delete(s.matched, id)
			}
		}
		for id := range s.used {
			if _, ok := keep[id]; !ok {
				delete(s.used, id)
			}
		}
		for id := range s.consumed {
			if _, ok := keep[id]; !ok {
				delete(s.consumed, id)
			}
		}
	})
}

// MatchTx is the matcher view available inside Transaction.
type MatchTx struct {
	s *matcherState
}

func (tx *MatchTx) MatchedEvents(c Campaign) ([]Event, bool) {
	return tx.s.assign(c)
}

// RemoveSetOfMatchedEvents fails with ErrSetAlreadyUsed when a custom event
// of the set was consumed by c before, or when a set made only of persistent
// events was consumed before and none of them has been logged again since.
// It fails with ErrCouldNotFindRequestedSetOfEvents when an event is no
// longer stored.
func (tx *MatchTx) RemoveSetOfMatchedEvents(events []Event, c Campaign) error {
	return tx.s.remove(events, c)
}

func (s *matcherState) candidates(id string) []Event {
	out := slices.Clone(s.matched[id])
	for _, t := range []EventType{EventTypeAppStart, EventTypeLoginSuccessful, EventTypePurchaseSuccessful} {
		events := s.persistent[t]
		// newest first so a fresh instance wins over one already consumed
		for i := len(events) - 1; i >= 0; i-- {
			out = append(out, events[i])
		}
	}
	return out
}

func (s *matcherState) assign(c Campaign) ([]Event, bool) {
	triggers := c.Data.Triggers
	if len(triggers) == 0 {
		return nil, true
	}
	candidates := s.candidates(c.ID())
	if len(candidates) < len(triggers) {
		return nil, false
	}

	fits := make([][]bool, len(triggers))
	for t, trigger := range triggers {
		fits[t] = make([]bool, len(candidates))
		for i, e := range candidates {
			fits[t][i] = trigger.Matches(e)
		}
	}

	// Augmenting-path bipartite matching, trigger -> distinct event.
	owner := make([]int, len(candidates))
	for i := range owner {
		owner[i] = -1
	}
	var augment func(t int, seen []bool) bool
	augment = func(t int, seen []bool) bool {
		for i := range candidates {
			if seen[i] || !fits[t][i] {
				continue
			}
			seen[i] = true
			if owner[i] < 0 || augment(owner[i], seen) {
				owner[i] = t
				return true
			}
		}
		return false
	}
	for t := range triggers {
		if !augment(t, make([]bool, len(candidates))) {
			return nil, false
		}
	}

	out := make([]Event, len(triggers))
	for i, t := range owner {
		if t >= 0 {
			out[t] = candidates[i]
		}
	}
	return out, true
}

func (s *matcherState) remove(events []Event, c Campaign) error {
	id := c.ID()
	used := s.used[id]

	var custom, persistent []Event
	for _, e := range events {
		if e.Type.IsPersistent() {
			persistent = append(persistent, e)
		} else {
			custom = append(custom, e)
		}
	}

	for _, e := range custom {
		if slices.Contains(s.consumed[id], e.ID) {
			return ErrSetAlreadyUsed
		}
	}
	if len(custom) == 0 && len(persistent) > 0 {
		allUsed := true
		for _, e := range persistent {
			if _, ok := used[e.ID]; !ok {
				allUsed = false
				break
			}
		}
		if allUsed {
			return ErrSetAlreadyUsed
		}
	}

	stored := s.matched[id]
	for _, e := range custom {
		if !containsEvent(stored, e.ID) {
			return ErrCouldNotFindRequestedSetOfEvents
		}
	}
	for _, e := range persistent {
		if !containsEvent(s.persistent[e.Type], e.ID) {
			return ErrCouldNotFindRequestedSetOfEvents
		}
	}

	if len(persistent) > 0 {
		if used == nil {
			used = make(map[uuid.UUID]struct{}, len(persistent))
			s.used[id] = used
		}
		for _, e := range persistent {
			used[e.ID] = struct{}{}
		}
	}
	if len(custom) > 0 {
		ids := s.consumed[id]
		for _, e := range custom {
			ids = append(ids, e.ID)
		}
		if len(ids) > maxConsumedCustomEvents {
			ids = slices.Clone(ids[len(ids)-maxConsumedCustomEvents:])
		}
		s.consumed[id] = ids

		remaining := slices.DeleteFunc(slices.Clone(stored), func(e Event) bool {
			return slices.ContainsFunc(custom, func(x Event) bool { return x.ID == e.ID })
		})
		if len(remaining) == 0 {
			delete(s.matched, id)
		} else {
			s.matched[id] = remaining
		}
	}
	return nil
}

// forget drops evicted persistent events from every campaign's used set.
func (s *matcherState) forget(evicted []Event) {
	for id, used := range s.used {
		for _, e := range evicted {
			delete(used, e.ID)
		}
		if len(used) == 0 {
			delete(s.used, id)
		}
	}
}

func containsEvent(events []Event, id uuid.UUID) bool {
	return slices.ContainsFunc(events, func(e Event) bool { return e.ID == id })
}
