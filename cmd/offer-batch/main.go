package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	jobs "github.com/madelhuette/carvitra-sub001/internal/async"
	"github.com/madelhuette/carvitra-sub001/internal/bootstrap"
	"github.com/madelhuette/carvitra-sub001/internal/common"
	"github.com/madelhuette/carvitra-sub001/internal/core/async"
	"github.com/madelhuette/carvitra-sub001/internal/entity"
	"github.com/madelhuette/carvitra-sub001/internal/export"
	"github.com/madelhuette/carvitra-sub001/internal/ingest"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem   = flag.Bool("inmem", false, "use an in-memory seeded SQLite vocabulary")
		dir     = flag.String("dir", "", "directory to process offer PDFs from (required)")
		out     = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		workers = flag.Int("workers", 0, "concurrent documents (defaults to PIPELINE_WORKERS)")
		hidden  = flag.Bool("hidden", false, "include hidden files and directories")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "offers.xlsx")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *inmem {
		cfg.Database.Driver = "sqlite"
		cfg.Database.DSN = ":memory:"
		cfg.Database.Seed = true
	}
	if *workers > 0 {
		cfg.Pipeline.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	start := time.Now()

	files, stats, err := ingest.ScanDirectory(ctx, *dir, !*hidden, logger)
	if err != nil {
		printError("Error: failed to scan %s: %v\n", *dir, err)
		os.Exit(1)
	}
	if stats.Succeeded == 0 {
		logger.Warn("no offer documents found", "dir", *dir)
		os.Exit(0)
	}

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		printError("Error: failed to build pipeline: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	var mu sync.Mutex
	var results []entity.OfferResult
	queue := async.NewProcessorQueue(app.Processor, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
		async.WithProcessTimeout(cfg.Pipeline.JobTimeout),
		async.WithResultHandler(func(_ jobs.Job, res entity.OfferResult) {
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}),
	)

	for _, f := range files {
		if f.Err != "" || f.Deduplicated {
			continue
		}
		job := jobs.Job{Document: f.Document, TraceID: uuid.NewString()}
		if err := queue.Enqueue(ctx, job); err != nil {
			logger.Error("failed to enqueue document", "path", f.Path, "error", err)
		}
	}
	queue.Shutdown(ctx)

	// keep the sheet order stable across runs
	sort.Slice(results, func(i, j int) bool { return results[i].Source < results[j].Source })

	xlsxBytes, err := export.NewService(logger).OffersXLSX(results)
	if err != nil {
		printError("Error: failed to generate XLSX: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		printError("Error: failed to write output file: %v\n", err)
		os.Exit(1)
	}

	accepted := 0
	for _, r := range results {
		if r.Accepted {
			accepted++
		}
	}
	logger.Info("batch processing complete",
		"dir", *dir,
		"output", *out,
		"documents", len(results),
		"accepted", accepted,
		"rejected", len(results)-accepted,
		"deduplicated", stats.Deduplicated,
		"scan_failures", stats.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}
