// Package metrics exposes ownership lifecycle metrics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks resource lifecycles and the lease table.
type Metrics struct {
	ResourcesCreated   *prometheus.CounterVec
	ResourcesDestroyed prometheus.Counter
	BlocksFreed        prometheus.Counter
	ConstructFailures  prometheus.Counter
	DeleterErrors      prometheus.Counter
	TrackerDropped     prometheus.Counter
	LiveResources      prometheus.Gauge
	LiveBlocks         prometheus.Gauge
	LeasesOutstanding  prometheus.Gauge
	WatchesOutstanding prometheus.Gauge
	Reclaimed          prometheus.Counter
	ReclaimDeferred    prometheus.Counter
	ReclaimDropped     prometheus.Counter
	EventsPublished    prometheus.Counter
	PublishFailures    prometheus.Counter
}

// New registers every metric with reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ResourcesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ownkit_resources_created_total",
			Help: "Resources brought under management, by ownership kind",
		}, []string{"kind"}),
		ResourcesDestroyed: f.NewCounter(prometheus.CounterOpts{
			Name: "ownkit_resources_destroyed_total",
			Help: "Resources torn down by their deleter",
		}),
		BlocksFreed: f.NewCounter(prometheus.CounterOpts{
			Name: "ownkit_control_blocks_freed_total",
			Help: "Control blocks released after their last strong and weak reference",
		}),
		ConstructFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "ownkit_construct_failures_total",
			Help: "Factory constructors that returned an error",
		}),
		DeleterErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "ownkit_deleter_errors_total",
			Help: "Default teardowns whose Close returned an error",
		}),
		TrackerDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "ownkit_tracker_events_dropped_total",
			Help: "Lifecycle events not persisted because the ledger queue was full",
		}),
		LiveResources: f.NewGauge(prometheus.GaugeOpts{
			Name: "ownkit_live_resources",
			Help: "Resources not yet torn down",
		}),
		LiveBlocks: f.NewGauge(prometheus.GaugeOpts{
			Name: "ownkit_live_control_blocks",
			Help: "Control blocks not yet freed",
		}),
		LeasesOutstanding: f.NewGauge(prometheus.GaugeOpts{
			Name: "ownkit_leases_outstanding",
			Help: "Strong buffer leases held by clients",
		}),
		WatchesOutstanding: f.NewGauge(prometheus.GaugeOpts{
			Name: "ownkit_watches_outstanding",
			Help: "Weak buffer watches held by clients",
		}),
		Reclaimed: f.NewCounter(prometheus.CounterOpts{
			Name: "ownkit_reclaimed_total",
			Help: "Retired buffers returned to the pool",
		}),
		ReclaimDeferred: f.NewCounter(prometheus.CounterOpts{
			Name: "ownkit_reclaim_deferred_total",
			Help: "Reclamation passes stopped by an active reader",
		}),
		ReclaimDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "ownkit_reclaim_dropped_total",
			Help: "Retired buffers left to the garbage collector",
		}),
		EventsPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "ownkit_events_published_total",
			Help: "Lifecycle events acknowledged by the broker",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "ownkit_publish_failures_total",
			Help: "Lifecycle event publish attempts that failed",
		}),
	}
}
