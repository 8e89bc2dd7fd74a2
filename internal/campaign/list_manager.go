package campaign

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
)

const defaultNextPing = time.Hour

type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	b.RandomizationFactor = p.Jitter
	// keep retrying until a ping succeeds or the manager stops
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

type ListManagerConfig struct {
	Ping       PingSource
	Repository *Repository
	// OnSynced runs after every successful sync, typically pruning the
	// matcher and running the trigger agent.
	OnSynced func()
	Errors   ErrorDelegate
	Retry    RetryPolicy
	Metrics  *Metrics
	Logger   *slog.Logger
}

// ListManager keeps the repository in sync with the backend campaign list.
type ListManager struct {
	cfg ListManagerConfig

	mu      sync.Mutex
	ctx     context.Context
	pinging bool
	stopped bool
	timer   *time.Timer
	backoff *backoff.ExponentialBackOff
}

func NewListManager(cfg ListManagerConfig) *ListManager {
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ListManager{
		cfg:     cfg,
		ctx:     context.Background(),
		backoff: cfg.Retry.backOff(),
	}
}

// Start performs the first refresh. Scheduled refreshes use ctx.
func (m *ListManager) Start(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	m.stopped = false
	m.mu.Unlock()
	m.RefreshList(ctx)
}

// Stop cancels any scheduled refresh or retry.
func (m *ListManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// RefreshList pings the backend unless a ping is already in flight. A
// response that arrives after the user identifiers changed is discarded and
// the backend is pinged again with the new identifiers.
func (m *ListManager) RefreshList(ctx context.Context) {
	m.mu.Lock()
	if m.pinging {
		m.mu.Unlock()
		return
	}
	m.pinging = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()

	var (
		resp PingResponse
		err  error
		key  string
	)
	for {
		ids := m.cfg.Repository.UserIdentifiers()
		key = UserKey(ids)
		resp, err = m.cfg.Ping.Ping(ctx, ids)
		if err == nil && m.cfg.Repository.syncFor(key, resp.Data, resp.CurrentPingMillis) {
			break
		}
		if err != nil && UserKey(m.cfg.Repository.UserIdentifiers()) == key {
			m.handleError(ctx, err)
			m.refreshIfUserChanged(ctx, key)
			return
		}
		m.cfg.Metrics.Pings.WithLabelValues("stale").Inc()
		m.cfg.Logger.DebugContext(ctx, "user changed during ping, pinging again",
			"module", "campaign.list_manager",
			"operation", "refresh_list",
		)
		if ctx.Err() != nil || m.isStopped() {
			m.mu.Lock()
			m.pinging = false
			m.mu.Unlock()
			return
		}
	}

	m.cfg.Metrics.Pings.WithLabelValues("success").Inc()
	m.cfg.Metrics.CampaignsSynced.Set(float64(len(resp.Data)))
	m.cfg.Logger.InfoContext(ctx, "campaign list synced",
		"module", "campaign.list_manager",
		"operation", "refresh_list",
		"campaigns", len(resp.Data),
	)
	if m.cfg.OnSynced != nil {
		m.cfg.OnSynced()
	}

	next := time.Duration(resp.NextPingMillis) * time.Millisecond
	if next <= 0 {
		next = defaultNextPing
	}
	m.mu.Lock()
	m.backoff.Reset()
	m.pinging = false
	m.schedule(next)
	m.mu.Unlock()

	m.refreshIfUserChanged(ctx, key)
}

// refreshIfUserChanged runs after pinging is cleared. A refresh requested
// for a new user while the previous ping was finishing was dropped, so it is
// issued here instead.
func (m *ListManager) refreshIfUserChanged(ctx context.Context, key string) {
	if UserKey(m.cfg.Repository.UserIdentifiers()) != key && !m.isStopped() {
		m.RefreshList(ctx)
	}
}

func (m *ListManager) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *ListManager) handleError(ctx context.Context, err error) {
	if isFatalPingError(err) {
		m.cfg.Metrics.Pings.WithLabelValues("fatal").Inc()
		m.cfg.Logger.ErrorContext(ctx, "campaign list refresh failed",
			"module", "campaign.list_manager",
			"operation", "refresh_list",
			"outcome", "failure",
			"error", err,
		)
		if m.cfg.Errors != nil {
			m.cfg.Errors.DidReceiveError("campaign.list_manager", err)
		}
		m.mu.Lock()
		m.pinging = false
		m.mu.Unlock()
		return
	}

	outcome := "retry"
	if errors.Is(err, ErrTooManyRequests) {
		outcome = "throttled"
	}
	m.cfg.Metrics.Pings.WithLabelValues(outcome).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pinging = false
	delay := m.backoff.NextBackOff()
	if delay == backoff.Stop {
		delay = m.backoff.MaxInterval
	}
	m.cfg.Logger.WarnContext(ctx, "campaign list refresh will be retried",
		"module", "campaign.list_manager",
		"operation", "refresh_list",
		"retry_in", delay.String(),
		"error", err,
	)
	m.schedule(delay)
}

// schedule must be called with m.mu held.
func (m *ListManager) schedule(after time.Duration) {
	if m.stopped {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	ctx := m.ctx
	m.timer = time.AfterFunc(after, func() { m.RefreshList(ctx) })
}
