// Package pipeline orchestrates the single-pass run: load hourly fields,
// derive wind speed, aggregate to daily anomalies, reduce over the grid,
// select extreme dates, and export the table.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AnurovaPrykhodko/Atmospheric-ocean-coupling-analysis-extreme-wave-event/internal/domain"
	"github.com/AnurovaPrykhodko/Atmospheric-ocean-coupling-analysis-extreme-wave-event/internal/observability"
)

// FieldLoader reads one hourly gridded variable from the source dataset.
type FieldLoader interface {
	Load(name string) (*domain.Field, error)
}

// Exporter writes the selected event records to their destination.
type Exporter interface {
	Export(records []domain.EventRecord) error
}

// BaselineMethod names the anomaly reference.
type BaselineMethod string

const (
	BaselineRolling    BaselineMethod = "rolling"
	BaselinePeriodMean BaselineMethod = "period_mean"
	BaselineScalar     BaselineMethod = "scalar"
)

// Settings are the run parameters the pipeline needs beyond its adapters.
type Settings struct {
	Baseline       BaselineMethod
	WindowHours    int     // rolling baseline
	Reference      float64 // scalar baseline
	SelectorDriver string  // tracked variable name
	Rule           domain.ThresholdRule
	Location       string // run label carried into every record
}

// Result is what a completed run produced.
type Result struct {
	Series  []domain.Series
	Flagged []time.Time
	Records []domain.EventRecord
}

// Pipeline runs the seven stages once over one dataset.
type Pipeline struct {
	loader   FieldLoader
	exporter Exporter
	logger   *slog.Logger
	metrics  *observability.Metrics
	settings Settings
}

// New creates a Pipeline with the given adapters and observability.
func New(loader FieldLoader, exporter Exporter, logger *slog.Logger, metrics *observability.Metrics, settings Settings) *Pipeline {
	return &Pipeline{
		loader:   loader,
		exporter: exporter,
		logger:   logger,
		metrics:  metrics,
		settings: settings,
	}
}

// Columns returns the export column order: one anomaly series per tracked
// variable, in the fixed variable order.
func Columns() []string {
	specs := domain.TrackedVariables()
	cols := make([]string, len(specs))
	for i, spec := range specs {
		cols[i] = seriesName(spec)
	}
	return cols
}

// seriesName is the stable name of a variable's anomaly series regardless of
// the baseline method, e.g. "msl_min_anomaly".
func seriesName(spec domain.VariableSpec) string {
	return fmt.Sprintf("%s_%s_anomaly", spec.Name, spec.Daily)
}

// Run executes the full pass. Any stage error aborts the run; there are no
// retries, a failure means bad data or configuration.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	p.logger.Info("run started",
		"baseline", p.settings.Baseline,
		"driver", p.settings.SelectorDriver,
		"rule", p.settings.Rule.Kind,
		"location", p.settings.Location,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var series []domain.Series
	for _, spec := range domain.TrackedVariables() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := p.seriesFor(spec)
		if err != nil {
			return nil, err
		}
		// The hourly grid for this variable is unreferenced from here on;
		// only the daily series survives.
		series = append(series, s)
		p.metrics.DaysReduced.Add(float64(len(s.Dates)))
	}

	driver, spec, err := p.driverSeries(series)
	if err != nil {
		return nil, err
	}

	var flagged []time.Time
	err = p.timedStage("select", func() error {
		var err error
		flagged, err = domain.SelectEvents(driver, spec.Direction, p.settings.Rule)
		return err
	})
	if err != nil {
		return nil, err
	}
	p.metrics.EventsFlagged.Set(float64(len(flagged)))
	for _, d := range flagged {
		v, _ := driver.ValueOn(d)
		cell, _ := driver.CellOn(d)
		p.logger.Info("extreme date flagged",
			"date", d.Format("2006-01-02"),
			"driver", driver.Name,
			"value", v,
			"lat", cell.Lat,
			"lon", cell.Lon,
		)
	}

	records, err := domain.BuildEvents(flagged, series, p.settings.Location)
	if err != nil {
		return nil, err
	}

	err = p.timedStage("export", func() error {
		return p.exporter.Export(records)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("run finished", "series", len(series), "events", len(records))
	return &Result{Series: series, Flagged: flagged, Records: records}, nil
}

// seriesFor carries one variable from hourly grid to reduced anomaly series.
func (p *Pipeline) seriesFor(spec domain.VariableSpec) (domain.Series, error) {
	var hourly *domain.Field
	err := p.timedStage("load", func() error {
		var err error
		hourly, err = p.loadHourly(spec)
		return err
	})
	if err != nil {
		return domain.Series{}, err
	}
	nt, nlat, nlon := hourly.Shape()
	p.metrics.SamplesRead.Add(float64(nt * nlat * nlon))

	var daily *domain.DailyField
	err = p.timedStage("anomaly", func() error {
		var err error
		daily, err = p.dailyAnomaly(hourly, spec)
		return err
	})
	if err != nil {
		return domain.Series{}, err
	}

	var s domain.Series
	err = p.timedStage("reduce", func() error {
		var err error
		s, err = domain.SpatialReduce(daily, spec.Spatial)
		return err
	})
	if err != nil {
		return domain.Series{}, err
	}

	s.Name = seriesName(spec)
	p.logger.Debug("series ready", "series", s.Name, "days", len(s.Dates))
	return s, nil
}

// loadHourly loads the variable's hourly field, deriving wind speed from its
// components when the variable has no file counterpart.
func (p *Pipeline) loadHourly(spec domain.VariableSpec) (*domain.Field, error) {
	if !spec.Derived() {
		f, err := p.loader.Load(spec.DataVar)
		if err != nil {
			return nil, err
		}
		p.metrics.FieldsLoaded.Inc()
		return f, nil
	}

	// Wind speed is the only derived variable.
	u, err := p.loader.Load("u10")
	if err != nil {
		return nil, err
	}
	v, err := p.loader.Load("v10")
	if err != nil {
		return nil, err
	}
	p.metrics.FieldsLoaded.Add(2)
	return domain.WindSpeed(u, v)
}

// dailyAnomaly applies the configured baseline. The rolling baseline removes
// a centered rolling mean from the hourly signal before aggregation; the
// other two aggregate first and subtract a reference from the daily grid.
// Days at the record edges where the rolling window never fits have no
// background and drop out of the rolling result.
func (p *Pipeline) dailyAnomaly(hourly *domain.Field, spec domain.VariableSpec) (*domain.DailyField, error) {
	switch p.settings.Baseline {
	case BaselineRolling:
		smooth, err := domain.SmoothCentered(hourly, p.settings.WindowHours)
		if err != nil {
			return nil, err
		}
		anom, err := domain.Subtract(hourly, smooth)
		if err != nil {
			return nil, err
		}
		agg, err := domain.AggregateDaily(anom, spec.Daily)
		if err != nil {
			return nil, err
		}
		trimmed := domain.TrimEmptyEdges(agg)
		if len(trimmed.Dates) == 0 {
			return nil, fmt.Errorf("rolling window of %d hours leaves no day with a valid anomaly", p.settings.WindowHours)
		}
		if dropped := len(agg.Dates) - len(trimmed.Dates); dropped > 0 {
			p.logger.Debug("edge days without background dropped",
				"variable", spec.Name, "days", dropped, "window_hours", p.settings.WindowHours)
		}
		return trimmed, nil

	case BaselinePeriodMean:
		agg, err := domain.AggregateDaily(hourly, spec.Daily)
		if err != nil {
			return nil, err
		}
		return domain.AnomalyFromPeriodMean(agg)

	case BaselineScalar:
		agg, err := domain.AggregateDaily(hourly, spec.Daily)
		if err != nil {
			return nil, err
		}
		return domain.AnomalyFromScalar(agg, p.settings.Reference), nil

	default:
		return nil, fmt.Errorf("unknown baseline method %q", p.settings.Baseline)
	}
}

// driverSeries finds the selector's driver among the computed series.
func (p *Pipeline) driverSeries(series []domain.Series) (domain.Series, domain.VariableSpec, error) {
	spec, ok := domain.TrackedVariable(p.settings.SelectorDriver)
	if !ok {
		return domain.Series{}, spec, fmt.Errorf("selector driver %q is not a tracked variable", p.settings.SelectorDriver)
	}
	want := seriesName(spec)
	for _, s := range series {
		if s.Name == want {
			return s, spec, nil
		}
	}
	return domain.Series{}, spec, fmt.Errorf("driver series %s was not computed", want)
}

func (p *Pipeline) timedStage(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		p.logger.Error("stage failed", "stage", stage, "error", err)
		return fmt.Errorf("%s stage: %w", stage, err)
	}
	return nil
}
