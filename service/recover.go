package service

import (
	"time"

	"go.uber.org/zap"

	"ownkit/infra/ledger"
	"ownkit/snapshot"
)

/*
Recover clears what a previous process left in the ledger.

IMPORTANT:
- This MUST run before accepting traffic
- Control block IDs restart with every process, so stale block records
  would collide with new ones
- The outbox is NOT touched; the broadcaster still publishes it
*/
func Recover(led *ledger.Ledger, w *snapshot.Writer, log *zap.Logger) (snapshot.Report, error) {
	rep := snapshot.Report{Seq: led.LastSeq(), Created: time.Now()}

	err := led.ScanBlocks(func(id uint64, rec ledger.BlockRecord) error {
		rep.Blocks = append(rep.Blocks, snapshot.BlockEntry{
			ID:        id,
			Type:      rec.Type,
			Shared:    rec.Shared,
			Array:     rec.Array,
			Len:       int(rec.Len),
			Destroyed: rec.State == ledger.BlockDestroyed,
			Since:     time.Unix(0, rec.Created),
		})
		return nil
	})
	if err != nil {
		return snapshot.Report{}, err
	}
	if len(rep.Blocks) == 0 {
		return rep, nil
	}

	if w != nil {
		if err := w.Write(rep); err != nil {
			return snapshot.Report{}, err
		}
	}
	if _, err := led.PurgeBlocks(); err != nil {
		return snapshot.Report{}, err
	}

	log.Warn("previous run left resources behind",
		zap.Int("blocks", len(rep.Blocks)),
		zap.Int("leaks", rep.Leaks()))
	return rep, nil
}
