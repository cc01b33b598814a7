// Command datafinance wires the download engine, the two extractors and
// the shared resource monitor into a runnable process. It intentionally
// does not parse arguments or expose a CLI surface; a presentation façade
// built on top of internal/ would call App's exported methods directly.
// What's here demonstrates the wiring end to end.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brfin/datafinance/internal/config"
	"github.com/brfin/datafinance/internal/cvmzip"
	"github.com/brfin/datafinance/internal/download"
	"github.com/brfin/datafinance/internal/extraction"
	"github.com/brfin/datafinance/internal/parquetio"
	"github.com/brfin/datafinance/internal/resource"
)

// App holds the fully-wired components a caller drives.
type App struct {
	Config      *config.Config
	Monitor     *resource.Monitor
	Downloader  *download.Engine
	CVMExtract  *cvmzip.Extractor
	Orchestrate *extraction.Orchestrator
}

// NewApp loads configuration, sets up logging and wires every component
// against a single shared resource.Monitor, so backpressure decisions in
// the downloader and the orchestrator observe the same process state.
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	config.SetupLogger(cfg)

	limits := resource.DefaultLimits()
	limits.MemoryWarningPct = cfg.MemWarningPct
	limits.MemoryCriticalPct = cfg.MemCriticalPct
	limits.MemoryExhaustedPct = cfg.MemExhaustedPct
	limits.CPUWarningPct = cfg.CPUWarningPct
	limits.CPUCriticalPct = cfg.CPUCriticalPct
	limits.MinFreeMemoryMB = cfg.MinFreeMemoryMB
	limits.AutoGCOnWarning = cfg.AutoGCOnWarning
	limits.CircuitBreakerCooldown = cfg.BreakerCooldown
	limits.CircuitBreakerEnabled = cfg.BreakerEnabled

	monitor := resource.New(limits, nil, nil, nil, slog.Default())

	dlCfg := download.DefaultConfig()
	dlCfg.MaxWorkers = cfg.MaxWorkers
	dlCfg.MaxRetries = cfg.NetworkMaxRetries
	dlCfg.ChunkSizeKiB = cfg.ChunkSizeKiB
	dlCfg.ReadTimeout = cfg.NetworkReadTimeout
	dlCfg.TotalTimeout = cfg.NetworkTimeout
	dlCfg.RetryStrategy.Multiplier = cfg.NetworkRetryBackoff

	writer := parquetio.New(monitor)

	app := &App{
		Config:      cfg,
		Monitor:     monitor,
		Downloader:  download.New(dlCfg, nil, monitor, slog.Default()),
		CVMExtract:  cvmzip.New(monitor, slog.Default()),
		Orchestrate: extraction.New(monitor, writer, slog.Default()),
	}
	return app, nil
}

func main() {
	app, err := NewApp()
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	slog.Info("datafinance wiring ready",
		"download_dir", app.Config.DownloadDir,
		"output_dir", app.Config.OutputDir,
		"max_workers", app.Config.MaxWorkers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	slog.Info("shutdown signal received")
}
