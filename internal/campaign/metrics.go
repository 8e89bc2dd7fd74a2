package campaign

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the engine's Prometheus collectors.
type Metrics struct {
	EventsLogged      *prometheus.CounterVec
	CampaignsSynced   prometheus.Gauge
	Dispatches        *prometheus.CounterVec
	Pings             *prometheus.CounterVec
	MatcherRejections *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsLogged: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inapp_events_logged_total",
			Help: "Events passed to the matcher",
		}, []string{"type"}),
		CampaignsSynced: factory.NewGauge(prometheus.GaugeOpts{
			Name: "inapp_campaigns_synced",
			Help: "Campaigns in the last synced list",
		}),
		Dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inapp_dispatch_total",
			Help: "Dispatcher outcomes per queue item",
		}, []string{"outcome"}),
		Pings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inapp_ping_total",
			Help: "Campaign list refresh outcomes",
		}, []string{"outcome"}),
		MatcherRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inapp_matcher_rejections_total",
			Help: "Validated campaigns skipped because their event set could not be consumed",
		}, []string{"reason"}),
	}
}

const (
	outcomeDisplayed       = "displayed"
	outcomeDenied          = "denied"
	outcomeContextRejected = "context_rejected"
	outcomeAssetFailed     = "asset_failed"
	outcomeCancelled       = "cancelled"
	outcomeSkipped         = "skipped"
)
