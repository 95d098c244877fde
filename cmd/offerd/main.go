package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	jobs "github.com/madelhuette/carvitra-sub001/internal/async"
	"github.com/madelhuette/carvitra-sub001/internal/bootstrap"
	"github.com/madelhuette/carvitra-sub001/internal/common"
	"github.com/madelhuette/carvitra-sub001/internal/core/async"
	"github.com/madelhuette/carvitra-sub001/internal/entity"
	"github.com/madelhuette/carvitra-sub001/internal/ingest"
	repo "github.com/madelhuette/carvitra-sub001/internal/repository"
	svc "github.com/madelhuette/carvitra-sub001/internal/server"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	addr := cfg.Server.GRPCAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// Ping DB to ensure connectivity
	if err := repo.HealthCheck(ctx, app.DB, cfg.Database.DialTimeout, logger); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(svc.LoggingInterceptor(logger)))

	extraction := svc.NewExtractionService(app.Offers, app.Mapper, app.Checker, app.Options, logger)
	svc.RegisterExtractionServer(grpcServer, extraction)

	// Register gRPC health service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	// Set the service as serving (empty string means overall server health)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(svc.ExtractionServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	logger.Info("offerd listening", "addr", addr, "llm_provider", cfg.LLM.Provider, "db_driver", cfg.Database.Driver)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	var queue *async.ProcessorQueue
	if cfg.Pipeline.InboxDir != "" {
		queue = async.NewProcessorQueue(app.Processor, logger,
			async.WithWorkers(cfg.Pipeline.Workers),
			async.WithQueueSize(cfg.Pipeline.QueueSize),
			async.WithProcessTimeout(cfg.Pipeline.JobTimeout),
			async.WithResultHandler(logResult(logger)),
		)
		if err := watchInbox(ctx, cfg.Pipeline.InboxDir, queue, logger); err != nil {
			logger.Error("failed to watch inbox", "dir", cfg.Pipeline.InboxDir, "error", err)
			os.Exit(1)
		}
	}

	<-ctx.Done()
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	if queue != nil {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.JobTimeout)
		queue.Shutdown(sctx)
		cancel()
	}
}

// watchInbox enqueues every offer PDF written below dir until ctx is done.
func watchInbox(ctx context.Context, dir string, queue *async.ProcessorQueue, logger *slog.Logger) error {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
		Debounce:    500 * time.Millisecond,
	}, logger)
	if err != nil {
		return err
	}
	logger.Info("watching inbox", "dir", dir)

	go func() {
		for errs != nil || events != nil {
			select {
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				logger.Warn("inbox watcher error", "error", err)
			case path, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				doc, hash, err := ingest.LoadDocument(path)
				if err != nil {
					logger.Warn("inbox document unreadable", "path", path, "error", err)
					continue
				}
				if err := queue.Enqueue(ctx, jobs.Job{Document: doc, TraceID: hash[:16]}); err != nil {
					logger.Warn("inbox document not queued", "path", path, "error", err)
				}
			}
		}
	}()
	return nil
}

func logResult(logger *slog.Logger) async.ResultFunc {
	return func(job jobs.Job, res entity.OfferResult) {
		logger.Info("offer.result",
			"req_id", job.TraceID,
			"source", res.Source,
			"accepted", res.Accepted,
			"confidence", res.Result.Metadata.ConfidenceScore,
			"valid", res.Report.IsValid,
			"errors", len(res.Report.Errors),
			"warnings", len(res.Report.Warnings),
			"resolved", res.Resolved,
			"elapsed_ms", res.Elapsed.Milliseconds(),
		)
	}
}
