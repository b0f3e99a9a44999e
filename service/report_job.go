package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ownkit/snapshot"
)

// RunReports writes the live table to w every interval until ctx is done.
func (r *Registry) RunReports(ctx context.Context, w *snapshot.Writer, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := w.Write(r.Report()); err != nil {
				r.log.Warn("periodic report failed", zap.Error(err))
			}
		}
	}
}
