package campaign

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func futureMillis() int64 {
	return time.Now().Add(24 * time.Hour).UnixMilli()
}

func campaignData(id string, maxImpressions int, triggers ...Trigger) CampaignData {
	return CampaignData{
		CampaignID:     id,
		Type:           CampaignTypeModal,
		MaxImpressions: maxImpressions,
		Triggers:       triggers,
		MessagePayload: MessagePayload{
			Title: "title " + id,
			MessageSettings: MessageSettings{
				DisplaySettings: DisplaySettings{EndTimeMillis: futureMillis()},
			},
		},
	}
}

func eventTrigger(t EventType, name string, attrs ...TriggerAttribute) Trigger {
	return Trigger{Type: TriggerTypeEvent, EventType: t, EventName: name, Attributes: attrs}
}

func customTrigger(name string, attrs ...TriggerAttribute) Trigger {
	return eventTrigger(EventTypeCustom, name, attrs...)
}

type fakeCache struct {
	mu        sync.Mutex
	data      map[string][]Campaign
	failRead  bool
	failWrite bool
	writes    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]Campaign)}
}

func (c *fakeCache) GetUserData(_ context.Context, key string) (*UserData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failRead {
		return nil, errors.New("disk unavailable")
	}
	list, ok := c.data[key]
	if !ok {
		return nil, nil
	}
	return &UserData{CampaignData: append([]Campaign(nil), list...)}, nil
}

func (c *fakeCache) CacheCampaignData(_ context.Context, key string, list []Campaign) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrite {
		return errors.New("disk full")
	}
	c.writes++
	c.data[key] = append([]Campaign(nil), list...)
	return nil
}

func (c *fakeCache) get(key string) []Campaign {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key]
}

type display struct {
	id string
	at time.Time
}

// fakeRouter records displays. With hold set, completions are stored and
// released by finish instead of being called immediately.
type fakeRouter struct {
	mu       sync.Mutex
	displays []display
	hold     bool
	pending  []func(DisplayResult)
	result   DisplayResult
}

func (r *fakeRouter) DisplayCampaign(_ context.Context, c Campaign, _ []byte, completion func(DisplayResult)) {
	r.mu.Lock()
	r.displays = append(r.displays, display{id: c.ID(), at: time.Now()})
	if r.hold {
		r.pending = append(r.pending, completion)
		r.mu.Unlock()
		return
	}
	result := r.result
	r.mu.Unlock()
	completion(result)
}

func (r *fakeRouter) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.displays))
	for _, d := range r.displays {
		out = append(out, d.id)
	}
	return out
}

func (r *fakeRouter) shown() []display {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]display(nil), r.displays...)
}

func (r *fakeRouter) finish() {
	r.mu.Lock()
	if len(r.pending) == 0 {
		r.mu.Unlock()
		return
	}
	completion := r.pending[0]
	r.pending = r.pending[1:]
	r.mu.Unlock()
	completion(DisplayResult{Impressions: []Impression{{Type: ImpressionTypeImpression, Timestamp: time.Now().UnixMilli()}}})
}

func (r *fakeRouter) waiting() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

type permissionFunc func(CampaignData) (DisplayPermission, error)

func (f permissionFunc) CheckPermission(_ context.Context, data CampaignData) (DisplayPermission, error) {
	return f(data)
}

func allowAll() permissionFunc {
	return func(CampaignData) (DisplayPermission, error) { return DisplayPermission{Display: true}, nil }
}

type delegateFunc func(title string, contexts []string) bool

func (f delegateFunc) ShouldShowCampaignMessage(title string, contexts []string) bool {
	return f(title, contexts)
}

type loaderFunc func(url string) ([]byte, error)

func (f loaderFunc) Fetch(_ context.Context, url string) ([]byte, error) {
	return f(url)
}

type recordedError struct {
	sender string
	err    error
}

type errorRecorder struct {
	mu   sync.Mutex
	errs []recordedError
}

func (r *errorRecorder) DidReceiveError(sender string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, recordedError{sender: sender, err: err})
}

func (r *errorRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

type pingFunc func(ids []UserIdentifier) (PingResponse, error)

func (f pingFunc) Ping(_ context.Context, ids []UserIdentifier) (PingResponse, error) {
	return f(ids)
}

type impressionRecorder struct {
	mu    sync.Mutex
	calls map[string][]Impression
}

func (r *impressionRecorder) PingImpression(_ context.Context, impressions []Impression, data CampaignData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string][]Impression)
	}
	r.calls[data.CampaignID] = append(r.calls[data.CampaignID], impressions...)
	return nil
}

func (r *impressionRecorder) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls[id])
}
