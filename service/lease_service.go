package service

import (
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"ownkit/domain/ownership"
	"ownkit/infra/memory"
	"ownkit/infra/metrics"
	"ownkit/infra/sequence"
	"ownkit/snapshot"
)

type LeaseConfig struct {
	MaxSize     int    `mapstructure:"max_size"`
	BufferCap   int    `mapstructure:"buffer_cap"`
	RetireSlots uint64 `mapstructure:"retire_slots"`
	// Immediate returns released buffers straight to the pool, skipping
	// the epoch wait. Every buffer access holds a strong handle, so this
	// only changes when a buffer becomes reusable, never what a reader sees.
	Immediate bool `mapstructure:"immediate"`
}

// LeaseInfo describes one strong lease.
type LeaseInfo struct {
	Lease    uint64
	Resource uint64 // control block ID, shared by every lease on the buffer
	Size     int
	UseCount int64
	Acquired time.Time
}

// WatchInfo describes one weak watch.
type WatchInfo struct {
	Watch    uint64
	Resource uint64
	Expired  bool
}

type lease struct {
	buf      ownership.Shared[Buffer]
	acquired time.Time
}

type watch struct {
	ref ownership.Weak[Buffer]
}

/*
LeaseService is the ONLY write entry point for buffers.

Every lease is a strong owner, every watch a weak observer of the same
control block. The last lease to go retires the buffer into the ring;
AdvanceEpoch hands retired buffers back to the pool once every snapshot
pinned before the retirement has ended.

Buffers are only ever touched through a strong handle (a lease, or the
private clone taken by Read and Write), so a retired buffer is never
reachable by a reader. The epoch orders pool reuse against in-flight
snapshots: a buffer released during a Snapshot is not handed to a new
Acquire until that Snapshot returns.
*/
type LeaseService struct {
	cfg     LeaseConfig
	log     *zap.Logger
	metrics *metrics.Metrics
	tracker ownership.Tracker

	ids     *sequence.Sequencer
	pool    *memory.Pool[Buffer]
	ring    *memory.RetireRing
	clock   *memory.Epochs
	retirer *memory.Retirer[Buffer]
	release ownership.Deleter[Buffer]
	reader  *snapshot.Reader
	readMu  sync.Mutex

	mu      sync.Mutex
	leases  map[uint64]*lease
	watches map[uint64]*watch
	closed  bool
}

func NewLeaseService(
	cfg LeaseConfig,
	tracker ownership.Tracker,
	log *zap.Logger,
	m *metrics.Metrics,
) *LeaseService {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1 << 20
	}
	if cfg.BufferCap <= 0 {
		cfg.BufferCap = 4096
	}
	switch {
	case cfg.RetireSlots == 0:
		cfg.RetireSlots = 1 << 12
	case cfg.RetireSlots < 2:
		cfg.RetireSlots = 2
	}

	clock := &memory.Epochs{}
	ring := memory.NewRetireRing(cfg.RetireSlots)

	s := &LeaseService{
		cfg:     cfg,
		log:     log.Named("leases"),
		metrics: m,
		tracker: tracker,
		ids:     sequence.New(0),
		pool:    memory.NewPool(newBuffer(cfg.BufferCap), resetBuffer),
		ring:    ring,
		clock:   clock,
		retirer: memory.NewRetirer[Buffer](ring, clock),
		reader:  snapshot.NewReader(clock),
		leases:  make(map[uint64]*lease),
		watches: make(map[uint64]*watch),
	}
	s.release = s.retirer.Retire
	if cfg.Immediate {
		s.release = s.pool.Recycler()
	}
	return s
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// Acquire takes a zeroed buffer of size bytes from the pool.
func (s *LeaseService) Acquire(size int) (LeaseInfo, error) {
	if size <= 0 || size > s.cfg.MaxSize {
		return LeaseInfo{}, errors.Wrapf(ErrInvalidSize, "%d (max %d)", size, s.cfg.MaxSize)
	}

	b := s.pool.Get()
	b.resize(size)

	opts := []ownership.Option[Buffer]{ownership.WithDeleter(s.release)}
	if s.tracker != nil {
		opts = append(opts, ownership.WithTracker[Buffer](s.tracker))
	}
	l := &lease{buf: ownership.NewShared(b, opts...), acquired: time.Now()}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		l.buf.Release()
		return LeaseInfo{}, ErrClosed
	}
	id := s.ids.Next()
	s.leases[id] = l
	info := s.infoLocked(id, l)
	s.gaugesLocked()
	s.mu.Unlock()

	s.log.Debug("acquired", zap.Uint64("lease", id), zap.Uint64("resource", info.Resource), zap.Int("size", size))
	return info, nil
}

// Share adds another strong lease on the same buffer.
func (s *LeaseService) Share(leaseID uint64) (LeaseInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.leaseLocked(leaseID)
	if err != nil {
		return LeaseInfo{}, err
	}
	nl := &lease{buf: l.buf.Clone(), acquired: time.Now()}
	id := s.ids.Next()
	s.leases[id] = nl
	s.gaugesLocked()
	return s.infoLocked(id, nl), nil
}

// Observe opens a weak watch on a lease's buffer.
func (s *LeaseService) Observe(leaseID uint64) (WatchInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.leaseLocked(leaseID)
	if err != nil {
		return WatchInfo{}, err
	}
	w := &watch{ref: l.buf.Weak()}
	id := s.ids.Next()
	s.watches[id] = w
	s.gaugesLocked()
	return WatchInfo{Watch: id, Resource: w.ref.ID()}, nil
}

// Promote turns a watch into a new strong lease if the buffer is still
// alive. The watch stays open.
func (s *LeaseService) Promote(watchID uint64) (LeaseInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return LeaseInfo{}, ErrClosed
	}
	w, ok := s.watches[watchID]
	if !ok {
		return LeaseInfo{}, errors.Wrapf(ErrUnknownWatch, "watch %d", watchID)
	}
	nl := &lease{buf: w.ref.Lock(), acquired: time.Now()}
	if nl.buf.IsEmpty() {
		return LeaseInfo{}, errors.Wrapf(ErrExpired, "watch %d", watchID)
	}
	id := s.ids.Next()
	s.leases[id] = nl
	s.gaugesLocked()
	return s.infoLocked(id, nl), nil
}

// Release drops one strong lease. The last one retires the buffer.
func (s *LeaseService) Release(leaseID uint64) error {
	s.mu.Lock()
	l, err := s.leaseLocked(leaseID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	delete(s.leases, leaseID)
	s.gaugesLocked()
	s.mu.Unlock()

	l.buf.Release()
	return nil
}

// Forget closes a watch.
func (s *LeaseService) Forget(watchID uint64) error {
	s.mu.Lock()
	w, ok := s.watches[watchID]
	if !ok {
		s.mu.Unlock()
		return errors.Wrapf(ErrUnknownWatch, "watch %d", watchID)
	}
	delete(s.watches, watchID)
	s.gaugesLocked()
	s.mu.Unlock()

	w.ref.Release()
	return nil
}

// Read copies n bytes at off out of the lease's buffer.
func (s *LeaseService) Read(leaseID uint64, off, n int) ([]byte, error) {
	h, err := s.hold(leaseID)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	return h.Get().ReadAt(off, n)
}

// Write copies p into the lease's buffer at off.
func (s *LeaseService) Write(leaseID uint64, off int, p []byte) error {
	h, err := s.hold(leaseID)
	if err != nil {
		return err
	}
	defer h.Release()

	return h.Get().WriteAt(off, p)
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// Snapshot lists every lease, ordered by lease ID, under a pinned epoch.
// Buffers released while it runs stay out of the pool until it returns.
func (s *LeaseService) Snapshot() []LeaseInfo {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	s.reader.Begin()
	defer s.reader.End()

	s.mu.Lock()
	out := make([]LeaseInfo, 0, len(s.leases))
	for id, l := range s.leases {
		out = append(out, s.infoLocked(id, l))
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Lease < out[j].Lease })
	return out
}

// Watch reports on one watch without promoting it.
func (s *LeaseService) Watch(watchID uint64) (WatchInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.watches[watchID]
	if !ok {
		return WatchInfo{}, errors.Wrapf(ErrUnknownWatch, "watch %d", watchID)
	}
	return WatchInfo{Watch: watchID, Resource: w.ref.ID(), Expired: w.ref.Expired()}, nil
}

//
// ──────────────────────────────────────────────────────────
// Reclamation
// ──────────────────────────────────────────────────────────
//

// AdvanceEpoch returns retired buffers to the pool. Intended to be called
// periodically by a background job.
func (s *LeaseService) AdvanceEpoch() memory.ReclaimStats {
	st := s.clock.AdvanceAndReclaim(s.ring, s.pool, s.reader.Epoch())

	s.metrics.Reclaimed.Add(float64(st.Reclaimed))
	s.metrics.ReclaimDeferred.Add(float64(st.Deferred))
	s.metrics.ReclaimDropped.Add(float64(st.Dropped))
	if st.Dropped > 0 {
		s.log.Warn("retired buffers left to the GC", zap.Int("dropped", st.Dropped))
	}
	return st
}

// Retired is the number of buffers waiting for reclamation.
func (s *LeaseService) Retired() int {
	return s.ring.Len()
}

// RetireDropped counts released buffers that found the retire ring full
// and were left to the garbage collector.
func (s *LeaseService) RetireDropped() uint64 {
	return s.retirer.Dropped()
}

// Close releases every lease and watch and reclaims what it can.
// Further calls fail with ErrClosed.
func (s *LeaseService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	leases, watches := s.leases, s.watches
	s.leases = make(map[uint64]*lease)
	s.watches = make(map[uint64]*watch)
	s.gaugesLocked()
	s.mu.Unlock()

	for _, w := range watches {
		w.ref.Release()
	}
	for _, l := range leases {
		l.buf.Release()
	}
	st := s.AdvanceEpoch()

	s.log.Info("closed",
		zap.Int("leases", len(leases)),
		zap.Int("watches", len(watches)),
		zap.Int("reclaimed", st.Reclaimed))
	return nil
}

//
// ──────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────
//

// hold returns a private strong handle so the buffer outlives a
// concurrent Release of the lease.
func (s *LeaseService) hold(leaseID uint64) (ownership.Shared[Buffer], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.leaseLocked(leaseID)
	if err != nil {
		return ownership.Shared[Buffer]{}, err
	}
	return l.buf.Clone(), nil
}

func (s *LeaseService) leaseLocked(id uint64) (*lease, error) {
	if s.closed {
		return nil, ErrClosed
	}
	l, ok := s.leases[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownLease, "lease %d", id)
	}
	return l, nil
}

func (s *LeaseService) infoLocked(id uint64, l *lease) LeaseInfo {
	return LeaseInfo{
		Lease:    id,
		Resource: l.buf.ID(),
		Size:     l.buf.Get().Len(),
		UseCount: l.buf.UseCount(),
		Acquired: l.acquired,
	}
}

func (s *LeaseService) gaugesLocked() {
	s.metrics.LeasesOutstanding.Set(float64(len(s.leases)))
	s.metrics.WatchesOutstanding.Set(float64(len(s.watches)))
}
