package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"orderledger/api/grpcserver"
	"orderledger/api/httpapi"
	"orderledger/config"
	"orderledger/infra/kafka"
	"orderledger/infra/logging"
	entrywal "orderledger/infra/wal/entry"
	exitwal "orderledger/infra/wal/exit"
	"orderledger/jobs/broadcaster"
	"orderledger/metrics"
	"orderledger/service"
	"orderledger/snapshot"
)

func main() {
	envFile := flag.String("env", "", "path to .env file (default: ./.env)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.File != "" {
		return logging.NewWithFile(cfg.Level, cfg.File)
	}
	return logging.New(cfg.Level)
}

// run serves until ctx is done or the ledger loop exits. Background
// goroutines are joined before the journal, outbox and publisher close.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	opts := service.Options{
		Metrics: m,
		Logger:  logger,
		Buffer:  cfg.Service.CommandBuffer,
	}

	// ---------------- Journal ----------------

	if cfg.Journal.Enabled {
		journal, err := entrywal.Open(entrywal.Config{
			Dir:         cfg.Journal.Dir,
			SegmentSize: cfg.Journal.SegmentBytes,
		})
		if err != nil {
			return err
		}
		defer journal.Close()
		opts.Journal = journal
		logger.Info("journal opened",
			zap.String("dir", cfg.Journal.Dir),
			zap.Uint64("last_seq", journal.LastSeq()),
		)
	}

	// ---------------- Outbox ----------------

	var outbox *exitwal.Outbox
	if cfg.Outbox.Enabled {
		var err error
		outbox, err = exitwal.Open(cfg.Outbox.Dir)
		if err != nil {
			return err
		}
		defer outbox.Close()
		opts.Outbox = outbox
		logger.Info("outbox opened", zap.String("dir", cfg.Outbox.Dir), zap.Uint64("run", outbox.Run()))
	}

	// ---------------- Publisher ----------------

	var pub kafka.Publisher
	if cfg.Kafka.Enabled {
		if outbox == nil {
			return errors.New("KAFKA_ENABLED requires OUTBOX_ENABLED")
		}
		var err error
		pub, err = kafka.NewPublisher(cfg.Kafka.Client, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer pub.Close()
	}

	// Registered after the Close defers above, so it runs before them.
	var wg sync.WaitGroup
	defer func() {
		stop()
		wg.Wait()
	}()

	// ---------------- Service ----------------

	svc := service.New(opts)
	loopDone := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		loopDone <- svc.Run(ctx)
	}()

	if cfg.Snapshot.Interval > 0 {
		jobDone := svc.StartSnapshotJob(ctx, &snapshot.Writer{Dir: cfg.Snapshot.Dir}, cfg.Snapshot.Interval)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-jobDone
		}()
	}

	// ---------------- Broadcaster ----------------

	if pub != nil {
		b := broadcaster.New(outbox, pub, broadcaster.Config{
			Interval:   cfg.Broadcast.Interval,
			MaxRetries: uint32(cfg.Broadcast.MaxRetries),
		}, m, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Run(ctx)
		}()
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return err
	}
	gs := grpcserver.New(svc, logger)
	logger.Info("grpc listening", zap.String("addr", lis.Addr().String()))
	go func() {
		if err := gs.Serve(lis); err != nil {
			logger.Error("grpc serve", zap.Error(err))
			stop()
		}
	}()

	// ---------------- HTTP ----------------

	hs := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(svc, reg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
	go func() {
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(err))
			stop()
		}
	}()

	var (
		loopErr     error
		loopStopped bool
	)
	select {
	case <-ctx.Done():
	case loopErr = <-loopDone:
		loopStopped = true
		if loopErr != nil {
			logger.Error("ledger loop exited", zap.Error(loopErr))
		}
	}
	logger.Info("shutting down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = hs.Shutdown(shutdownCtx)
	gs.GracefulStop()

	if !loopStopped {
		loopErr = <-loopDone
	}
	return loopErr
}
