package campaign

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// campaignStore is the slice of Repository the dispatcher mutates.
type campaignStore interface {
	Campaign(id string) (Campaign, bool)
	DecrementImpressionsLeftInCampaign(id string) (Campaign, bool)
	IncrementImpressionsLeftInCampaign(id string) (Campaign, bool)
}

type DispatcherConfig struct {
	Campaigns  campaignStore
	Permission PermissionSource
	Loader     ResourceLoader
	Router     Router
	Delegate   Delegate
	Errors     ErrorDelegate

	// OnPerformPing is called on its own goroutine when the backend asks for a refresh.
	OnPerformPing func()
	// OnDismissed is called after a shown campaign was dismissed.
	OnDismissed func(c Campaign, result DisplayResult)

	// AdvanceOnAssetFailure moves on to the next queued campaign when an image
	// cannot be fetched. By default the dispatcher goes idle and keeps the rest
	// of the queue for the next DispatchAllIfNeeded.
	AdvanceOnAssetFailure bool

	Metrics *Metrics
	Logger  *slog.Logger
}

type dispatchState int

const (
	stateIdle dispatchState = iota
	stateDispatching
	stateScheduled
)

type step int

const (
	stepNext step = iota
	stepHandedOff
	stepStop
)

// Dispatcher displays queued campaigns one at a time, in FIFO order.
type Dispatcher struct {
	cfg DispatcherConfig
	ctx context.Context

	mu         sync.Mutex
	queue      []string
	state      dispatchState
	generation uint64
	timer      *time.Timer
}

// NewDispatcher creates an idle dispatcher. ctx bounds permission checks,
// resource fetches and displays.
func NewDispatcher(ctx context.Context, cfg DispatcherConfig) *Dispatcher {
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{cfg: cfg, ctx: ctx}
}

func (d *Dispatcher) AddToQueue(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, id)
}

// Queue returns a snapshot of the pending campaign ids.
func (d *Dispatcher) Queue() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.queue))
	copy(out, d.queue)
	return out
}

// IsDispatching is true from DispatchAllIfNeeded until the queue is drained,
// including the delay scheduled after a displayed campaign.
func (d *Dispatcher) IsDispatching() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state != stateIdle
}

// DispatchAllIfNeeded starts draining the queue unless a drain is in progress.
func (d *Dispatcher) DispatchAllIfNeeded() {
	d.mu.Lock()
	if d.state != stateIdle {
		d.mu.Unlock()
		return
	}
	d.state = stateDispatching
	d.mu.Unlock()

	go d.drain()
}

// ResetQueue drops pending campaigns and cancels a scheduled drain. A
// campaign being checked is given up; one already displayed finishes, and
// only campaigns queued after the reset follow it.
func (d *Dispatcher) ResetQueue() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = nil
	d.generation++
	if d.state == stateScheduled {
		if d.timer != nil {
			d.timer.Stop()
			d.timer = nil
		}
		d.state = stateIdle
	}
}

func (d *Dispatcher) drain() {
	for {
		id, gen, ok := d.pop()
		if !ok {
			return
		}
		switch d.dispatch(gen, id) {
		case stepNext:
			continue
		case stepHandedOff:
			return
		case stepStop:
			d.mu.Lock()
			d.state = stateIdle
			d.mu.Unlock()
			return
		}
	}
}

// pop takes the next id with the generation it was popped in, or goes idle
// when the queue is empty.
func (d *Dispatcher) pop() (string, uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		d.state = stateIdle
		return "", 0, false
	}
	id := d.queue[0]
	d.queue = d.queue[1:]
	return id, d.generation, true
}

func (d *Dispatcher) current(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gen == d.generation
}

func (d *Dispatcher) dispatch(gen uint64, id string) step {
	c, ok := d.cfg.Campaigns.Campaign(id)
	if !ok || c.IsOptedOut || !c.HasImpressionsLeft() {
		d.cfg.Metrics.Dispatches.WithLabelValues(outcomeSkipped).Inc()
		return stepNext
	}

	// One impression is reserved up front and given back if the campaign is not shown.
	reserved := !c.Data.InfiniteImpressions
	if reserved {
		d.cfg.Campaigns.DecrementImpressionsLeftInCampaign(id)
	}
	restore := func() {
		if reserved {
			d.cfg.Campaigns.IncrementImpressionsLeftInCampaign(id)
		}
	}

	if !c.Data.IsTest {
		if !d.permitted(c) {
			restore()
			d.cfg.Metrics.Dispatches.WithLabelValues(outcomeDenied).Inc()
			return stepNext
		}
		if contexts := c.Contexts(); len(contexts) > 0 && d.cfg.Delegate != nil &&
			!d.cfg.Delegate.ShouldShowCampaignMessage(c.Data.MessagePayload.Title, contexts) {
			restore()
			d.cfg.Metrics.Dispatches.WithLabelValues(outcomeContextRejected).Inc()
			return stepNext
		}
	}

	var image []byte
	if url := c.Data.MessagePayload.Resource.ImageURL; url != "" && d.cfg.Loader != nil {
		data, err := d.cfg.Loader.Fetch(d.ctx, url)
		if err != nil {
			d.cfg.Metrics.Dispatches.WithLabelValues(outcomeAssetFailed).Inc()
			d.cfg.Logger.Warn("campaign image fetch failed",
				"module", "campaign.dispatcher",
				"operation", "fetch_resource",
				"campaign_id", id,
				"error", err,
			)
			if d.cfg.AdvanceOnAssetFailure {
				return stepNext
			}
			return stepStop
		}
		image = data
	}

	if !d.current(gen) {
		restore()
		return stepNext
	}

	var once sync.Once
	d.cfg.Router.DisplayCampaign(d.ctx, c, image, func(result DisplayResult) {
		once.Do(func() { d.displayFinished(gen, c, reserved, result) })
	})
	return stepHandedOff
}

func (d *Dispatcher) permitted(c Campaign) bool {
	if d.cfg.Permission == nil {
		return true
	}
	resp, err := d.cfg.Permission.CheckPermission(d.ctx, c.Data)
	if err != nil {
		d.cfg.Logger.Warn("display permission check failed",
			"module", "campaign.dispatcher",
			"operation", "check_permission",
			"campaign_id", c.ID(),
			"error", err,
		)
		if d.cfg.Errors != nil {
			d.cfg.Errors.DidReceiveError("campaign.dispatcher", err)
		}
		return false
	}
	if resp.PerformPing && d.cfg.OnPerformPing != nil {
		go d.cfg.OnPerformPing()
	}
	return resp.Display
}

func (d *Dispatcher) displayFinished(gen uint64, c Campaign, reserved bool, result DisplayResult) {
	if result.Cancelled {
		if reserved {
			d.cfg.Campaigns.IncrementImpressionsLeftInCampaign(c.ID())
		}
		d.cfg.Metrics.Dispatches.WithLabelValues(outcomeCancelled).Inc()
	} else {
		d.cfg.Metrics.Dispatches.WithLabelValues(outcomeDisplayed).Inc()
		if d.cfg.OnDismissed != nil {
			d.cfg.OnDismissed(c, result)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.generation || result.Cancelled {
		go d.drain()
		return
	}
	d.state = stateScheduled
	d.timer = time.AfterFunc(c.Delay(), func() { d.resume(gen) })
}

func (d *Dispatcher) resume(gen uint64) {
	d.mu.Lock()
	if gen != d.generation || d.state != stateScheduled {
		d.mu.Unlock()
		return
	}
	d.state = stateDispatching
	d.timer = nil
	d.mu.Unlock()

	d.drain()
}
