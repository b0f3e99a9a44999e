package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"ownkit/api/grpcserver"
	"ownkit/infra/kafka"
	"ownkit/infra/ledger"
	"ownkit/infra/logging"
	"ownkit/infra/metrics"
	"ownkit/jobs/broadcaster"
	"ownkit/service"
	"ownkit/snapshot"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the lease server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		log, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, log)
	},
}

func serve(ctx context.Context, cfg *Config, log *zap.Logger) error {
	// ---------------- Metrics ----------------

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	// ---------------- Ledger ----------------

	led, err := ledger.Open(cfg.Ledger.Dir, ledger.Options{Sync: cfg.Ledger.Sync})
	if err != nil {
		return err
	}
	defer led.Close()
	log.Info("ledger open", zap.String("dir", cfg.Ledger.Dir), zap.Uint64("last_seq", led.LastSeq()))

	// ---------------- Recovery ----------------

	if _, err := service.Recover(led, &snapshot.Writer{Dir: cfg.Report.Dir, Name: "previous.bin"}, log); err != nil {
		return err
	}

	// ---------------- Service ----------------

	registry := service.NewRegistry(log, m, cfg.Ledger.Queue)
	leases := service.NewLeaseService(cfg.Lease, registry, log, m)

	pub, err := newPublisher(cfg.Broker)
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		if pub != nil {
			_ = pub.Close()
		}
		return errors.Wrapf(err, "listen %s", cfg.Server.GRPCAddr)
	}

	// ---------------- Background: ledger + broker ----------------

	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()
	bg, bgCtx := errgroup.WithContext(bgCtx)

	bg.Go(func() error { return registry.Run(bgCtx, led) })

	reports := &snapshot.Writer{Dir: cfg.Report.Dir}
	if cfg.Report.Interval > 0 {
		bg.Go(func() error { return registry.RunReports(bgCtx, reports, cfg.Report.Interval) })
	}

	if pub != nil {
		bc := broadcaster.New(led, pub, broadcaster.Config{
			Interval:   cfg.Broker.Interval,
			MaxRetries: cfg.Broker.MaxRetries,
		}, log, m)
		defer bc.Close()
		bg.Go(func() error { return bc.Run(bgCtx) })
	} else {
		log.Info("no broker configured, events stay in the ledger")
	}

	// ---------------- Serving ----------------

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(cfg.Memory.EpochInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				leases.AdvanceEpoch()
			}
		}
	})

	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.UnaryLogger(log)))
	grpcserver.Register(grpcSrv, grpcserver.NewServer(leases, registry))

	g.Go(func() error {
		log.Info("gRPC listening", zap.String("addr", lis.Addr().String()))
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		stopped := make(chan struct{})
		go func() {
			grpcSrv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(cfg.Server.ShutdownTimeout):
			grpcSrv.Stop()
		}
		return nil
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.MetricsAddr,
		Handler:           metricsMux(promReg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		log.Info("metrics listening", zap.String("addr", cfg.Server.MetricsAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})

	serveErr := g.Wait()

	// ---------------- Shutdown ----------------

	if err := leases.Close(); err != nil {
		log.Error("close leases", zap.Error(err))
	}

	cancelBg()
	if err := bg.Wait(); err != nil {
		log.Error("background jobs", zap.Error(err))
	}

	report := registry.Report()
	if err := reports.Write(report); err != nil {
		log.Error("write leak report", zap.Error(err))
	} else if n := report.Leaks(); n > 0 {
		log.Warn("resources still alive at shutdown", zap.Int("leaks", n), zap.String("report", reports.Path()))
	} else {
		log.Info("no leaks", zap.String("report", reports.Path()))
	}

	st := registry.Stats()
	log.Info("stopped",
		zap.Uint64("created", st.Created),
		zap.Uint64("destroyed", st.Destroyed),
		zap.Uint64("freed", st.Freed),
		zap.Uint64("dropped", st.Dropped))
	return serveErr
}

func newPublisher(cfg BrokerConfig) (broadcaster.Publisher, error) {
	switch cfg.Driver {
	case "sarama":
		return broadcaster.NewSaramaPublisher(cfg.Brokers, cfg.Topic)
	case "kafka-go":
		return kafka.NewProducer(kafka.Config{
			Brokers:      cfg.Brokers,
			Topic:        cfg.Topic,
			BatchTimeout: cfg.BatchTimeout,
		})
	default:
		return nil, nil
	}
}

func metricsMux(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
