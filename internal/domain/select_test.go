package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2023, 11, d, 0, 0, 0, 0, time.UTC)
}

func testSeries(name string, values ...float64) Series {
	s := Series{Name: name, Values: values}
	for i := range values {
		s.Dates = append(s.Dates, day(i+1))
		s.Cells = append(s.Cells, Geo{Lat: 45, Lon: -30})
	}
	return s
}

func TestSelectEvents_TopN(t *testing.T) {
	driver := testSeries("swh_max_anomaly", 1.0, 4.5, 0.2, 3.1, 4.5)

	t.Run("highest", func(t *testing.T) {
		dates, err := SelectEvents(driver, Highest, ThresholdRule{Kind: RuleTopN, N: 2})
		require.NoError(t, err)
		// 4.5 appears twice; the earlier date wins the tie.
		assert.Equal(t, []time.Time{day(2), day(5)}, dates)
	})

	t.Run("lowest", func(t *testing.T) {
		dates, err := SelectEvents(driver, Lowest, ThresholdRule{Kind: RuleTopN, N: 2})
		require.NoError(t, err)
		assert.Equal(t, []time.Time{day(1), day(3)}, dates)
	})

	t.Run("n larger than series returns all days in date order", func(t *testing.T) {
		dates, err := SelectEvents(driver, Highest, ThresholdRule{Kind: RuleTopN, N: 50})
		require.NoError(t, err)
		assert.Equal(t, []time.Time{day(1), day(2), day(3), day(4), day(5)}, dates)
	})

	t.Run("deterministic across runs", func(t *testing.T) {
		rule := ThresholdRule{Kind: RuleTopN, N: 3}
		first, err := SelectEvents(driver, Highest, rule)
		require.NoError(t, err)
		second, err := SelectEvents(driver, Highest, rule)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("invalid n", func(t *testing.T) {
		_, err := SelectEvents(driver, Highest, ThresholdRule{Kind: RuleTopN})
		require.Error(t, err)
	})
}

func TestSelectEvents_Percentile(t *testing.T) {
	driver := testSeries("wind_speed_max_anomaly", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	t.Run("highest tail", func(t *testing.T) {
		dates, err := SelectEvents(driver, Highest, ThresholdRule{Kind: RulePercentile, Quantile: 0.8})
		require.NoError(t, err)
		assert.Equal(t, []time.Time{day(8), day(9), day(10)}, dates)
	})

	t.Run("lowest tail", func(t *testing.T) {
		dates, err := SelectEvents(driver, Lowest, ThresholdRule{Kind: RulePercentile, Quantile: 0.8})
		require.NoError(t, err)
		assert.Equal(t, []time.Time{day(1), day(2)}, dates)
	})

	t.Run("quantile out of range", func(t *testing.T) {
		_, err := SelectEvents(driver, Highest, ThresholdRule{Kind: RulePercentile, Quantile: 1})
		require.Error(t, err)
	})
}

func TestSelectEvents_Absolute(t *testing.T) {
	// Pressure-minimum anomalies against a 995 hPa period mean:
	// days hold +5, -15, +10 and only the -15 day breaches a -10 cutoff.
	driver := testSeries("msl_min_anomaly", 5, -15, 10)

	dates, err := SelectEvents(driver, Lowest, ThresholdRule{Kind: RuleAbsolute, Cutoff: -10})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2)}, dates)
}

func TestSelectEvents_DateRange(t *testing.T) {
	driver := testSeries("swh_max_anomaly", 9, 1, 8, 2, 7)

	dates, err := SelectEvents(driver, Highest, ThresholdRule{
		Kind:  RuleTopN,
		N:     1,
		Start: day(2),
		End:   day(4),
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(3)}, dates)
}

func TestSelectEvents_EmptyRange(t *testing.T) {
	driver := testSeries("swh_max_anomaly", 1, 2)
	_, err := SelectEvents(driver, Highest, ThresholdRule{
		Kind:  RuleTopN,
		N:     1,
		Start: day(20),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "swh_max_anomaly")
}

func TestSelectEvents_UnknownRule(t *testing.T) {
	driver := testSeries("swh_max_anomaly", 1, 2)
	_, err := SelectEvents(driver, Highest, ThresholdRule{Kind: RuleKind("zscore")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zscore")
}

func TestBuildEvents(t *testing.T) {
	frozen := time.Date(2023, 12, 24, 10, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(frozen))
	defer SetClock(nil)

	msl := testSeries("msl_min_anomaly", 5, -15, 10)
	swh := testSeries("swh_max_anomaly", 0.3, 2.8, 0.1)

	t.Run("one record per flagged date", func(t *testing.T) {
		records, err := BuildEvents([]time.Time{day(2)}, []Series{msl, swh}, "storm-pia")
		require.NoError(t, err)

		want := []EventRecord{{
			Date:     day(2),
			Location: "storm-pia",
			Values:   map[string]float64{"msl_min_anomaly": -15, "swh_max_anomaly": 2.8},
			Cells: map[string]Geo{
				"msl_min_anomaly": {Lat: 45, Lon: -30},
				"swh_max_anomaly": {Lat: 45, Lon: -30},
			},
			ProcessedAt: frozen,
		}}
		if diff := cmp.Diff(want, records); diff != "" {
			t.Errorf("records mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("series missing a flagged date", func(t *testing.T) {
		short := testSeries("mwp_max_anomaly", 1)
		_, err := BuildEvents([]time.Time{day(3)}, []Series{short}, "storm-pia")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mwp_max_anomaly")
		assert.Contains(t, err.Error(), "2023-11-03")
	})
}
