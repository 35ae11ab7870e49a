// Command waveforcing runs the event-forcing pipeline once: it loads the
// hourly reanalysis fields, reduces them to daily anomaly series, flags the
// extreme dates, and writes the event table.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AnurovaPrykhodko/Atmospheric-ocean-coupling-analysis-extreme-wave-event/internal/adapter/csvexport"
	httpadapter "github.com/AnurovaPrykhodko/Atmospheric-ocean-coupling-analysis-extreme-wave-event/internal/adapter/http"
	"github.com/AnurovaPrykhodko/Atmospheric-ocean-coupling-analysis-extreme-wave-event/internal/adapter/netcdf"
	"github.com/AnurovaPrykhodko/Atmospheric-ocean-coupling-analysis-extreme-wave-event/internal/config"
	"github.com/AnurovaPrykhodko/Atmospheric-ocean-coupling-analysis-extreme-wave-event/internal/observability"
	"github.com/AnurovaPrykhodko/Atmospheric-ocean-coupling-analysis-extreme-wave-event/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "waveforcing.yaml", "path to the run configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	metrics := observability.NewMetrics()

	if err := run(cfg, logger, metrics); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	start, end, err := cfg.Period.Range()
	if err != nil {
		return err
	}
	rule, err := cfg.Selector.ThresholdRule()
	if err != nil {
		return err
	}

	source, err := netcdf.Open(cfg.Input.Path, netcdf.Options{
		Region:   cfg.Region.Domain(),
		Start:    start,
		End:      end,
		VarNames: cfg.Input.Variables,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer source.Close()

	exporter := csvexport.NewFileExporter(cfg.Output.Path, pipeline.Columns(), cfg.Output.IncludeLocations)

	p := pipeline.New(source, exporter, logger, metrics, pipeline.Settings{
		Baseline:       pipeline.BaselineMethod(cfg.Baseline.Method),
		WindowHours:    cfg.Baseline.WindowHours,
		Reference:      cfg.Baseline.Reference,
		SelectorDriver: cfg.Selector.Driver,
		Rule:           rule,
		Location:       cfg.Input.Location,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional debug listener for long runs.
	var srv *httpadapter.Server
	if cfg.Metrics.Addr != "" {
		srv = httpadapter.NewServer(cfg.Metrics.Addr, metrics.Registry(), logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				logger.Error("debug listener error", "error", err)
			}
		}()
	}

	result, runErr := p.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("debug listener shutdown error", "error", err)
		}
	}

	if runErr != nil {
		return runErr
	}

	metrics.LogSummary(logger)
	logger.Info("events exported",
		"output", cfg.Output.Path,
		"events", len(result.Records),
		"location", cfg.Input.Location,
	)
	return nil
}
