package service

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"ownkit/infra/metrics"
)

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func newTestService(t *testing.T, cfg LeaseConfig) (*LeaseService, *Registry) {
	t.Helper()
	m := newTestMetrics()
	reg := NewRegistry(zap.NewNop(), m, 1024)
	svc := NewLeaseService(cfg, reg, zap.NewNop(), m)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, reg
}
