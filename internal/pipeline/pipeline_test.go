package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnurovaPrykhodko/Atmospheric-ocean-coupling-analysis-extreme-wave-event/internal/domain"
	"github.com/AnurovaPrykhodko/Atmospheric-ocean-coupling-analysis-extreme-wave-event/internal/observability"
	"github.com/AnurovaPrykhodko/Atmospheric-ocean-coupling-analysis-extreme-wave-event/internal/pipeline"
)

var (
	runStart = time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)
	gridLats = []float64{50.0, 49.5}
	gridLons = []float64{-30.0, -29.5}
)

// mockLoader serves synthetic hourly fields keyed by variable name.
type mockLoader struct {
	fields map[string]*domain.Field
	err    error
}

func (m *mockLoader) Load(name string) (*domain.Field, error) {
	if m.err != nil {
		return nil, m.err
	}
	f, ok := m.fields[name]
	if !ok {
		return nil, fmt.Errorf("variable %s not in dataset", name)
	}
	return f, nil
}

// mockExporter captures records instead of writing a file.
type mockExporter struct {
	records []domain.EventRecord
	err     error
}

func (m *mockExporter) Export(records []domain.EventRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = records
	return nil
}

// hourlyField builds an hourly field spanning the given number of days, with
// the value at each hour coming from valueAt(day, hour).
func hourlyField(t *testing.T, name string, days int, valueAt func(day, hour int) float64) *domain.Field {
	t.Helper()
	n := days * 24
	times := make([]time.Time, n)
	values := make([]float64, 0, n*len(gridLats)*len(gridLons))
	for h := 0; h < n; h++ {
		times[h] = runStart.Add(time.Duration(h) * time.Hour)
		v := valueAt(h/24, h%24)
		for range gridLats {
			for range gridLons {
				values = append(values, v)
			}
		}
	}
	f, err := domain.NewField(name, "", times, gridLats, gridLons, values)
	require.NoError(t, err)
	return f
}

// toyDataset is a 3-day grid with known pressure minima of 1000, 980, and
// 1005 hPa on days one through three; everything else is flat.
func toyDataset(t *testing.T) *mockLoader {
	t.Helper()
	dayMin := []float64{1000, 980, 1005}
	fields := map[string]*domain.Field{
		"msl": hourlyField(t, "msl", 3, func(day, hour int) float64 {
			if hour == 12 {
				return dayMin[day]
			}
			return dayMin[day] + 6
		}),
		"u10":  hourlyField(t, "u10", 3, func(_, _ int) float64 { return 3 }),
		"v10":  hourlyField(t, "v10", 3, func(_, _ int) float64 { return 4 }),
		"swh":  hourlyField(t, "swh", 3, func(_, _ int) float64 { return 5 }),
		"shww": hourlyField(t, "shww", 3, func(_, _ int) float64 { return 2 }),
		"shts": hourlyField(t, "shts", 3, func(_, _ int) float64 { return 4 }),
		"mwp":  hourlyField(t, "mwp", 3, func(_, _ int) float64 { return 11 }),
	}
	return &mockLoader{fields: fields}
}

// monthDataset is a 30-day grid of flat fields, long enough for a multi-day
// rolling window.
func monthDataset(t *testing.T) *mockLoader {
	t.Helper()
	flat := func(v float64) func(int, int) float64 {
		return func(_, _ int) float64 { return v }
	}
	fields := map[string]*domain.Field{
		"msl":  hourlyField(t, "msl", 30, flat(101325)),
		"u10":  hourlyField(t, "u10", 30, flat(3)),
		"v10":  hourlyField(t, "v10", 30, flat(4)),
		"swh":  hourlyField(t, "swh", 30, flat(5)),
		"shww": hourlyField(t, "shww", 30, flat(2)),
		"shts": hourlyField(t, "shts", 30, flat(4)),
		"mwp":  hourlyField(t, "mwp", 30, flat(11)),
	}
	return &mockLoader{fields: fields}
}

func newPipeline(loader pipeline.FieldLoader, exp pipeline.Exporter, settings pipeline.Settings) *pipeline.Pipeline {
	logger := observability.NewLoggerTo(testWriter{}, "error", "text")
	return pipeline.New(loader, exp, logger, observability.NewMetrics(), settings)
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestPipeline_Run_FlagsPressureAnomaly(t *testing.T) {
	// Period mean of the daily minima is 995 hPa, so the day-two anomaly is
	// -15 and only it breaches a -10 cutoff.
	exp := &mockExporter{}
	p := newPipeline(toyDataset(t), exp, pipeline.Settings{
		Baseline:       pipeline.BaselinePeriodMean,
		SelectorDriver: "msl",
		Rule:           domain.ThresholdRule{Kind: domain.RuleAbsolute, Cutoff: -10},
		Location:       "toy-basin",
	})

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []time.Time{runStart.Add(24 * time.Hour)}, result.Flagged)
	require.Len(t, exp.records, 1)

	rec := exp.records[0]
	assert.Equal(t, "toy-basin", rec.Location)
	assert.InDelta(t, -15, rec.Values["msl_min_anomaly"], 1e-9)
	// Flat fields have zero anomaly everywhere.
	assert.InDelta(t, 0, rec.Values["swh_max_anomaly"], 1e-9)
	assert.InDelta(t, 0, rec.Values["wind_speed_max_anomaly"], 1e-9)

	// One series per tracked variable, each covering all three days.
	require.Len(t, result.Series, len(domain.TrackedVariables()))
	for _, s := range result.Series {
		assert.Len(t, s.Dates, 3, s.Name)
	}
}

func TestPipeline_Run_RollingBaseline(t *testing.T) {
	exp := &mockExporter{}
	p := newPipeline(toyDataset(t), exp, pipeline.Settings{
		Baseline:       pipeline.BaselineRolling,
		WindowHours:    5,
		SelectorDriver: "swh",
		Rule:           domain.ThresholdRule{Kind: domain.RuleTopN, N: 1},
		Location:       "toy-basin",
	})

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Flagged, 1)
	require.Len(t, exp.records, 1)
	// Flat swh has zero anomaly on every day; the tie resolves to the
	// earliest date.
	assert.Equal(t, runStart, result.Flagged[0])
}

func TestPipeline_Run_RollingBaselineDefaultWindow(t *testing.T) {
	// A 72 h centered window never fits on the first and last days of the
	// record, so those days drop out of every series instead of failing
	// the run.
	exp := &mockExporter{}
	p := newPipeline(monthDataset(t), exp, pipeline.Settings{
		Baseline:       pipeline.BaselineRolling,
		WindowHours:    72,
		SelectorDriver: "swh",
		Rule:           domain.ThresholdRule{Kind: domain.RuleTopN, N: 1},
		Location:       "toy-basin",
	})

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Series, len(domain.TrackedVariables()))
	for _, s := range result.Series {
		require.Len(t, s.Dates, 28, s.Name)
		assert.Equal(t, runStart.Add(24*time.Hour), s.Dates[0], s.Name)
		assert.Equal(t, runStart.Add(28*24*time.Hour), s.Dates[len(s.Dates)-1], s.Name)
	}

	// Flat swh has zero anomaly on every surviving day; the tie resolves to
	// the earliest of them, never the trimmed edges.
	require.Len(t, result.Flagged, 1)
	assert.Equal(t, runStart.Add(24*time.Hour), result.Flagged[0])
	require.Len(t, exp.records, 1)
}

func TestPipeline_Run_RollingWindowWiderThanRecord(t *testing.T) {
	p := newPipeline(toyDataset(t), &mockExporter{}, pipeline.Settings{
		Baseline:       pipeline.BaselineRolling,
		WindowHours:    200,
		SelectorDriver: "swh",
		Rule:           domain.ThresholdRule{Kind: domain.RuleTopN, N: 1},
	})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rolling window")
	assert.Contains(t, err.Error(), "200")
}

func TestPipeline_Run_Deterministic(t *testing.T) {
	settings := pipeline.Settings{
		Baseline:       pipeline.BaselinePeriodMean,
		SelectorDriver: "msl",
		Rule:           domain.ThresholdRule{Kind: domain.RuleTopN, N: 2},
		Location:       "toy-basin",
	}

	first := &mockExporter{}
	_, err := newPipeline(toyDataset(t), first, settings).Run(context.Background())
	require.NoError(t, err)

	second := &mockExporter{}
	_, err = newPipeline(toyDataset(t), second, settings).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, first.records, 2)
	require.Len(t, second.records, 2)
	for i := range first.records {
		assert.Equal(t, first.records[i].Date, second.records[i].Date)
		assert.Equal(t, first.records[i].Values, second.records[i].Values)
	}
}

func TestPipeline_Run_MissingVariable(t *testing.T) {
	loader := toyDataset(t)
	delete(loader.fields, "shts")

	p := newPipeline(loader, &mockExporter{}, pipeline.Settings{
		Baseline:       pipeline.BaselinePeriodMean,
		SelectorDriver: "swh",
		Rule:           domain.ThresholdRule{Kind: domain.RuleTopN, N: 1},
	})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shts")
	assert.Contains(t, err.Error(), "load stage")
}

func TestPipeline_Run_ExportFailure(t *testing.T) {
	exp := &mockExporter{err: errors.New("disk full")}
	p := newPipeline(toyDataset(t), exp, pipeline.Settings{
		Baseline:       pipeline.BaselinePeriodMean,
		SelectorDriver: "swh",
		Rule:           domain.ThresholdRule{Kind: domain.RuleTopN, N: 1},
	})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export stage")
	assert.Contains(t, err.Error(), "disk full")
}

func TestPipeline_Run_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newPipeline(toyDataset(t), &mockExporter{}, pipeline.Settings{
		Baseline:       pipeline.BaselinePeriodMean,
		SelectorDriver: "swh",
		Rule:           domain.ThresholdRule{Kind: domain.RuleTopN, N: 1},
	})

	_, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_Run_UnknownBaseline(t *testing.T) {
	p := newPipeline(toyDataset(t), &mockExporter{}, pipeline.Settings{
		Baseline:       pipeline.BaselineMethod("detrend"),
		SelectorDriver: "swh",
		Rule:           domain.ThresholdRule{Kind: domain.RuleTopN, N: 1},
	})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detrend")
}

func TestColumns(t *testing.T) {
	assert.Equal(t, []string{
		"msl_min_anomaly",
		"wind_speed_max_anomaly",
		"swh_max_anomaly",
		"shww_max_anomaly",
		"shts_max_anomaly",
		"mwp_max_anomaly",
	}, pipeline.Columns())
}
