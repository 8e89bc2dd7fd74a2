package campaign

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Options struct {
	MaxPersistentEvents   int
	Retry                 RetryPolicy
	AdvanceOnAssetFailure bool
	// Now overrides the clock used to detect outdated campaigns.
	Now func() time.Time
}

type Deps struct {
	Ping        PingSource
	Permission  PermissionSource
	Impressions ImpressionSink
	Cache       Cache
	Loader      ResourceLoader
	Router      Router
	Delegate    Delegate
	Errors      ErrorDelegate
	Metrics     *Metrics
	Logger      *slog.Logger
}

// Service owns one engine instance: repository, matcher, validator, trigger
// agent, dispatcher and list manager.
type Service struct {
	repo       *Repository
	matcher    *EventMatcher
	validator  *Validator
	agent      *TriggerAgent
	dispatcher *Dispatcher
	lists      *ListManager

	impressions ImpressionSink
	errs        ErrorDelegate
	metrics     *Metrics
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	pending []Event
}

func NewService(deps Deps, opts Options) *Service {
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		impressions: deps.Impressions,
		errs:        deps.Errors,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		ctx:         ctx,
		cancel:      cancel,
	}
	s.repo = NewRepository(deps.Cache, deps.Logger)
	s.matcher = NewEventMatcher(s.repo, opts.MaxPersistentEvents, deps.Logger)
	s.validator = NewValidator(s.repo, s.matcher, opts.Now)
	s.dispatcher = NewDispatcher(ctx, DispatcherConfig{
		Campaigns:             s.repo,
		Permission:            deps.Permission,
		Loader:                deps.Loader,
		Router:                deps.Router,
		Delegate:              deps.Delegate,
		Errors:                deps.Errors,
		OnPerformPing:         func() { s.lists.RefreshList(s.ctx) },
		OnDismissed:           s.dismissed,
		AdvanceOnAssetFailure: opts.AdvanceOnAssetFailure,
		Metrics:               deps.Metrics,
		Logger:                deps.Logger,
	})
	s.agent = NewTriggerAgent(s.repo, s.validator, s.matcher, s.dispatcher, deps.Metrics, deps.Logger)
	s.lists = NewListManager(ListManagerConfig{
		Ping:       deps.Ping,
		Repository: s.repo,
		OnSynced:   s.synced,
		Errors:     deps.Errors,
		Retry:      opts.Retry,
		Metrics:    deps.Metrics,
		Logger:     deps.Logger,
	})
	return s
}

func (s *Service) Repository() *Repository { return s.repo }
func (s *Service) Matcher() *EventMatcher  { return s.matcher }
func (s *Service) Dispatcher() *Dispatcher { return s.dispatcher }

// Start loads cached campaigns, performs the first refresh and then replays
// the events logged so far.
func (s *Service) Start() {
	s.repo.LoadCachedData(s.ctx, false)
	s.lists.Start(s.ctx)

	s.mu.Lock()
	s.started = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, e := range pending {
		s.store(e)
	}
	s.agent.ValidateAndTriggerCampaigns()
}

// Close stops scheduled work and cancels in-flight collaborator calls.
func (s *Service) Close() {
	s.lists.Stop()
	s.dispatcher.ResetQueue()
	s.cancel()
}

// LogEvent feeds an event to the matcher and triggers any campaign it completes.
// Events logged before Start are buffered.
func (s *Service) LogEvent(e Event) {
	s.mu.Lock()
	if !s.started {
		s.pending = append(s.pending, e)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.store(e)
	s.agent.ValidateAndTriggerCampaigns()
}

func (s *Service) store(e Event) {
	s.metrics.EventsLogged.WithLabelValues(e.Type.String()).Inc()
	s.matcher.MatchAndStore(e)
}

// SetUserIdentifiers switches the active user. Pending displays are dropped,
// custom events forgotten and the new user's cached campaigns loaded. Going
// from anonymous to a known user keeps campaigns only the anonymous user had.
func (s *Service) SetUserIdentifiers(ids []UserIdentifier) {
	previous := s.repo.UserIdentifiers()
	if UserKey(previous) == UserKey(ids) {
		return
	}
	s.dispatcher.ResetQueue()
	s.matcher.ClearNonPersistentEvents()
	s.repo.SetUserIdentifiers(ids)
	s.repo.LoadCachedData(s.ctx, len(previous) == 0 && len(ids) > 0)

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		go s.lists.RefreshList(s.ctx)
	}
}

// Refresh pings the backend now.
func (s *Service) Refresh(ctx context.Context) {
	s.lists.RefreshList(ctx)
}

func (s *Service) Campaigns() []Campaign {
	return s.repo.List()
}

func (s *Service) OptOut(id string) (Campaign, bool) {
	return s.repo.OptOutCampaign(id)
}

func (s *Service) synced() {
	list := s.repo.List()
	ids := make([]string, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID())
	}
	s.matcher.RetainCampaigns(ids)
	s.agent.ValidateAndTriggerCampaigns()
}

func (s *Service) dismissed(c Campaign, result DisplayResult) {
	if result.OptedOut {
		s.repo.OptOutCampaign(c.ID())
	}
	if s.impressions == nil || len(result.Impressions) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		defer cancel()
		if err := s.impressions.PingImpression(ctx, result.Impressions, c.Data); err != nil {
			s.logger.ErrorContext(ctx, "impression report failed",
				"module", "campaign.service",
				"operation", "ping_impression",
				"campaign_id", c.ID(),
				"error", err,
			)
			if s.errs != nil {
				s.errs.DidReceiveError("campaign.impressions", err)
			}
		}
	}()
}
