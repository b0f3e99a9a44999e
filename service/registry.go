package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ownkit/domain/ownership"
	"ownkit/infra/ledger"
	"ownkit/infra/metrics"
	"ownkit/snapshot"
)

// Sink persists transitions. *ledger.Ledger satisfies it.
type Sink interface {
	Apply(tr ledger.Transition) (uint64, error)
}

// Stats are cumulative counters plus the current live totals.
type Stats struct {
	Created         uint64
	Promoted        uint64
	Destroyed       uint64
	Freed           uint64
	Detached        uint64
	ConstructFailed uint64
	DeleterErrors   uint64
	Dropped         uint64
	LiveObjects     int64
	LiveBlocks      int64
}

// Registry is an ownership.Tracker. Track never blocks: transitions are
// queued for the ledger and dropped (and counted) when the queue is full.
type Registry struct {
	log     *zap.Logger
	metrics *metrics.Metrics
	queue   chan ledger.Transition
	seq     atomic.Uint64

	created, promoted, destroyed, freed   atomic.Uint64
	detached, constructFailed, deleterErr atomic.Uint64
	dropped                               atomic.Uint64
	liveObjects, liveBlocks               atomic.Int64

	mu   sync.Mutex
	live map[uint64]snapshot.BlockEntry
}

func NewRegistry(log *zap.Logger, m *metrics.Metrics, queueSize int) *Registry {
	if queueSize <= 0 {
		queueSize = 4096
	}
	return &Registry{
		log:     log.Named("registry"),
		metrics: m,
		queue:   make(chan ledger.Transition, queueSize),
		live:    make(map[uint64]snapshot.BlockEntry),
	}
}

var _ ownership.Tracker = (*Registry)(nil)

func (r *Registry) Track(e ownership.Event) {
	r.seq.Add(1)

	switch e.Kind {
	case ownership.EventCreated:
		r.created.Add(1)
		r.liveObjects.Add(1)
		kind := "exclusive"
		if e.Shared {
			kind = "shared"
			r.liveBlocks.Add(1)
			r.metrics.LiveBlocks.Inc()
		}
		r.metrics.ResourcesCreated.WithLabelValues(kind).Inc()
		r.metrics.LiveResources.Inc()

		r.mu.Lock()
		r.live[e.ID] = snapshot.BlockEntry{
			ID:     e.ID,
			Type:   e.Type,
			Shared: e.Shared,
			Array:  e.Array,
			Len:    e.Len,
			Since:  e.At,
		}
		r.mu.Unlock()

	case ownership.EventPromoted:
		r.promoted.Add(1)
		r.liveBlocks.Add(1)
		r.metrics.LiveBlocks.Inc()

		r.mu.Lock()
		if b, ok := r.live[e.ID]; ok {
			b.Shared = true
			r.live[e.ID] = b
		}
		r.mu.Unlock()

	case ownership.EventObjectDestroyed:
		r.destroyed.Add(1)
		r.liveObjects.Add(-1)
		r.metrics.ResourcesDestroyed.Inc()
		r.metrics.LiveResources.Dec()

		r.mu.Lock()
		if b, ok := r.live[e.ID]; ok {
			if e.Shared {
				b.Destroyed = true
				r.live[e.ID] = b
			} else {
				delete(r.live, e.ID)
			}
		}
		r.mu.Unlock()

	case ownership.EventBlockFreed:
		r.freed.Add(1)
		r.liveBlocks.Add(-1)
		r.metrics.BlocksFreed.Inc()
		r.metrics.LiveBlocks.Dec()

		r.mu.Lock()
		delete(r.live, e.ID)
		r.mu.Unlock()

	case ownership.EventDetached:
		r.detached.Add(1)
		r.liveObjects.Add(-1)
		r.metrics.LiveResources.Dec()

		r.mu.Lock()
		delete(r.live, e.ID)
		r.mu.Unlock()

	case ownership.EventConstructFailed:
		r.constructFailed.Add(1)
		r.metrics.ConstructFailures.Inc()
		r.log.Warn("constructor failed", zap.String("type", e.Type), zap.Error(e.Err))

	case ownership.EventDeleterError:
		r.deleterErr.Add(1)
		r.metrics.DeleterErrors.Inc()
		r.log.Warn("teardown failed",
			zap.Uint64("id", e.ID),
			zap.String("type", e.Type),
			zap.Error(e.Err))
	}

	if ce := r.log.Check(zap.DebugLevel, "lifecycle"); ce != nil {
		ce.Write(zap.Stringer("kind", e.Kind), zap.Uint64("id", e.ID), zap.String("type", e.Type))
	}

	select {
	case r.queue <- toTransition(e):
	default:
		r.dropped.Add(1)
		r.metrics.TrackerDropped.Inc()
	}
}

// Run applies queued transitions to sink until ctx is done, then drains
// whatever is already queued.
func (r *Registry) Run(ctx context.Context, sink Sink) error {
	for {
		select {
		case <-ctx.Done():
			r.drain(sink)
			return nil
		case tr := <-r.queue:
			r.apply(sink, tr)
		}
	}
}

func (r *Registry) drain(sink Sink) {
	for {
		select {
		case tr := <-r.queue:
			r.apply(sink, tr)
		default:
			return
		}
	}
}

func (r *Registry) apply(sink Sink, tr ledger.Transition) {
	if _, err := sink.Apply(tr); err != nil {
		r.log.Error("ledger apply failed",
			zap.Uint64("id", tr.ID),
			zap.String("kind", tr.Kind),
			zap.Error(err))
	}
}

func (r *Registry) Stats() Stats {
	return Stats{
		Created:         r.created.Load(),
		Promoted:        r.promoted.Load(),
		Destroyed:       r.destroyed.Load(),
		Freed:           r.freed.Load(),
		Detached:        r.detached.Load(),
		ConstructFailed: r.constructFailed.Load(),
		DeleterErrors:   r.deleterErr.Load(),
		Dropped:         r.dropped.Load(),
		LiveObjects:     r.liveObjects.Load(),
		LiveBlocks:      r.liveBlocks.Load(),
	}
}

// Live lists resources whose lifecycle has not finished.
func (r *Registry) Live() []snapshot.BlockEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]snapshot.BlockEntry, 0, len(r.live))
	for _, b := range r.live {
		out = append(out, b)
	}
	return out
}

// Report is Live as a leak report.
func (r *Registry) Report() snapshot.Report {
	rep := snapshot.Report{
		Seq:     r.seq.Load(),
		Created: time.Now(),
		Blocks:  r.Live(),
	}
	rep.Sort()
	return rep
}

func toTransition(e ownership.Event) ledger.Transition {
	tr := ledger.Transition{
		ID:     e.ID,
		Kind:   e.Kind.String(),
		Type:   e.Type,
		Shared: e.Shared,
		Array:  e.Array,
		Len:    e.Len,
		At:     e.At,
	}
	if e.Err != nil {
		tr.Err = e.Err.Error()
	}
	return tr
}
