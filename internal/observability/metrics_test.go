package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	// Two runs in one process must not collide on registration.
	a := NewMetrics()
	b := NewMetrics()
	a.FieldsLoaded.Inc()

	families, err := b.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "waveforcing_fields_loaded_total" {
			assert.Equal(t, 0.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
}

func TestLogSummary(t *testing.T) {
	m := NewMetrics()
	m.FieldsLoaded.Inc()
	m.EventsFlagged.Set(3)
	m.StageDuration.WithLabelValues("load").Observe(0.25)

	var buf bytes.Buffer
	m.LogSummary(NewLoggerTo(&buf, "info", "text"))

	out := buf.String()
	assert.Contains(t, out, "waveforcing_fields_loaded_total")
	assert.Contains(t, out, "waveforcing_events_flagged")
	assert.Contains(t, out, "waveforcing_stage_duration_seconds")
	assert.Contains(t, out, "stage=load")
}
