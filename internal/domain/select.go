package domain

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// RuleKind names an event-selection policy.
type RuleKind string

const (
	// RuleTopN flags the n most extreme days of the driver series.
	RuleTopN RuleKind = "top_n"
	// RulePercentile flags days beyond an empirical quantile of the driver.
	RulePercentile RuleKind = "percentile"
	// RuleAbsolute flags days at or beyond a fixed cutoff.
	RuleAbsolute RuleKind = "absolute"
)

// ThresholdRule is the configured selection policy. Start/End optionally
// restrict selection to a sub-range of the run period; zero values mean
// unrestricted.
type ThresholdRule struct {
	Kind     RuleKind
	N        int
	Quantile float64 // e.g. 0.95 flags the top 5% of the driver
	Cutoff   float64

	Start, End time.Time
}

// SelectEvents applies the rule to the driver series and returns the flagged
// dates in ascending order. Selection is deterministic: value ties are broken
// by earlier date. dir is the driver's extremum sense; for Lowest the rule
// flags the smallest values and an absolute cutoff flags values at or below it.
func SelectEvents(driver Series, dir Direction, rule ThresholdRule) ([]time.Time, error) {
	idx := rangeIndices(driver, rule.Start, rule.End)
	if len(idx) == 0 {
		return nil, fmt.Errorf("select events: driver series %s has no days in range", driver.Name)
	}

	var flagged []int
	switch rule.Kind {
	case RuleTopN:
		if rule.N < 1 {
			return nil, fmt.Errorf("select events: top_n needs n >= 1, got %d", rule.N)
		}
		ranked := slices.Clone(idx)
		sort.SliceStable(ranked, func(a, b int) bool {
			va, vb := driver.Values[ranked[a]], driver.Values[ranked[b]]
			if va != vb {
				if dir == Lowest {
					return va < vb
				}
				return va > vb
			}
			return driver.Dates[ranked[a]].Before(driver.Dates[ranked[b]])
		})
		if rule.N < len(ranked) {
			ranked = ranked[:rule.N]
		}
		flagged = ranked

	case RulePercentile:
		if rule.Quantile <= 0 || rule.Quantile >= 1 {
			return nil, fmt.Errorf("select events: quantile must be in (0,1), got %g", rule.Quantile)
		}
		vals := make([]float64, len(idx))
		for i, k := range idx {
			vals[i] = driver.Values[k]
		}
		slices.Sort(vals)
		q := rule.Quantile
		if dir == Lowest {
			q = 1 - rule.Quantile
		}
		cutoff := stat.Quantile(q, stat.Empirical, vals, nil)
		flagged = beyondCutoff(driver, idx, dir, cutoff)

	case RuleAbsolute:
		flagged = beyondCutoff(driver, idx, dir, rule.Cutoff)

	default:
		return nil, fmt.Errorf("select events: unknown rule %q", rule.Kind)
	}

	dates := make([]time.Time, len(flagged))
	for i, k := range flagged {
		dates[i] = driver.Dates[k]
	}
	slices.SortFunc(dates, time.Time.Compare)
	return dates, nil
}

func rangeIndices(s Series, start, end time.Time) []int {
	var idx []int
	for i, d := range s.Dates {
		if !start.IsZero() && d.Before(start) {
			continue
		}
		if !end.IsZero() && d.After(end) {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

// beyondCutoff flags values at or beyond the cutoff in the extremity
// direction. Inclusive, so a percentile cutoff always flags the day that
// defined it.
func beyondCutoff(s Series, idx []int, dir Direction, cutoff float64) []int {
	var out []int
	for _, k := range idx {
		v := s.Values[k]
		if (dir == Lowest && v <= cutoff) || (dir == Highest && v >= cutoff) {
			out = append(out, k)
		}
	}
	return out
}

// BuildEvents assembles one EventRecord per flagged date from the tracked
// series. Every series must cover every flagged date; the series all descend
// from the same daily grids, so a gap means upstream corruption.
func BuildEvents(dates []time.Time, series []Series, location string) ([]EventRecord, error) {
	records := make([]EventRecord, 0, len(dates))
	for _, date := range dates {
		rec := EventRecord{
			Date:        date,
			Location:    location,
			Values:      make(map[string]float64, len(series)),
			Cells:       make(map[string]Geo, len(series)),
			ProcessedAt: clock.Now(),
		}
		for _, s := range series {
			v, ok := s.ValueOn(date)
			if !ok {
				return nil, fmt.Errorf("build events: series %s has no value on %s",
					s.Name, date.Format("2006-01-02"))
			}
			cell, _ := s.CellOn(date)
			rec.Values[s.Name] = v
			rec.Cells[s.Name] = cell
		}
		records = append(records, rec)
	}
	return records, nil
}
