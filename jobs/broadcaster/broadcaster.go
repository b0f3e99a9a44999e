// Package broadcaster drains the ledger outbox to the broker.
package broadcaster

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"ownkit/infra/ledger"
	"ownkit/infra/metrics"
)

// Outbox is the part of the ledger the broadcaster drives.
type Outbox interface {
	ScanPending(fn func(seq uint64, rec ledger.OutboxRecord) error) error
	MarkSent(seq uint64) error
	MarkAcked(seq uint64) error
	MarkFailed(seq uint64) error
}

type Config struct {
	Interval   time.Duration `mapstructure:"interval"`
	MaxRetries uint32        `mapstructure:"max_retries"`
}

type Broadcaster struct {
	outbox  Outbox
	pub     Publisher
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Metrics
}

var errStopPass = errors.New("broadcaster: stop pass")

func New(outbox Outbox, pub Publisher, cfg Config, log *zap.Logger, m *metrics.Metrics) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	return &Broadcaster{
		outbox:  outbox,
		pub:     pub,
		cfg:     cfg,
		log:     log.Named("broadcaster"),
		metrics: m,
	}
}

// Run replays the outbox every interval until ctx is done. A final pass
// runs on the way out so a clean shutdown leaves nothing pending that the
// broker could have taken.
func (b *Broadcaster) Run(ctx context.Context) error {
	b.log.Info("started", zap.Duration("interval", b.cfg.Interval))

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flush, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			b.ReplayOnce(flush)
			cancel()
			b.log.Info("stopped")
			return nil
		case <-ticker.C:
			b.ReplayOnce(ctx)
		}
	}
}

// ReplayOnce publishes pending entries oldest first. The pass stops at the
// first publish failure so later transitions never overtake earlier ones.
// It returns the number of entries acknowledged.
func (b *Broadcaster) ReplayOnce(ctx context.Context) int {
	acked := 0
	err := b.outbox.ScanPending(func(seq uint64, rec ledger.OutboxRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.outbox.MarkSent(seq); err != nil {
			return err
		}

		if err := b.pub.Publish(ctx, keyOf(rec.Payload, seq), rec.Payload); err != nil {
			b.metrics.PublishFailures.Inc()
			attempts := rec.Retries + 1
			if attempts >= b.cfg.MaxRetries {
				b.log.Error("giving up on event",
					zap.Uint64("seq", seq),
					zap.Uint32("attempts", attempts),
					zap.Error(err))
				if err := b.outbox.MarkFailed(seq); err != nil {
					return err
				}
				return nil
			}
			b.log.Warn("publish failed, will retry",
				zap.Uint64("seq", seq),
				zap.Uint32("attempts", attempts),
				zap.Error(err))
			return errStopPass
		}

		if err := b.outbox.MarkAcked(seq); err != nil {
			return err
		}
		b.metrics.EventsPublished.Inc()
		acked++
		return nil
	})
	if err != nil && !errors.Is(err, errStopPass) && !errors.Is(err, context.Canceled) {
		b.log.Error("replay pass aborted", zap.Error(err))
	}
	return acked
}

func (b *Broadcaster) Close() error {
	return b.pub.Close()
}

// keyOf routes every transition of one resource to the same partition.
func keyOf(payload []byte, seq uint64) []byte {
	var tr struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(payload, &tr); err != nil || tr.ID == 0 {
		return []byte("seq-" + strconv.FormatUint(seq, 10))
	}
	return []byte(strconv.FormatUint(tr.ID, 10))
}
