package domain

import (
	"fmt"
	"math"
	"time"
)

// WindSpeed derives the wind-speed magnitude sqrt(u²+v²) from the two 10 m
// wind components. The inputs must share a grid; the result carries it.
func WindSpeed(u, v *Field) (*Field, error) {
	if !u.sameGrid(v) {
		return nil, fmt.Errorf("wind speed: %w", shapeErr(u, v))
	}
	out := make([]float64, len(u.values))
	for i, uu := range u.values {
		out[i] = math.Hypot(uu, v.values[i])
	}
	return &Field{
		Name:  "wind_speed",
		Units: "m/s",
		Times: u.Times,
		Lats:  u.Lats,
		Lons:  u.Lons,

		values: out,
	}, nil
}

// SmoothCentered returns the centered rolling mean of the field along time,
// window samples wide. Timesteps where the window does not fit entirely
// inside the record are NaN, so the smoothed signal only exists where the
// full background is known. For an even window the extra sample is taken
// after the center.
func SmoothCentered(f *Field, window int) (*Field, error) {
	if window < 1 {
		return nil, fmt.Errorf("smooth %s: window must be positive, got %d", f.Name, window)
	}
	nt, nlat, nlon := f.Shape()
	left := (window - 1) / 2
	right := window / 2

	out := make([]float64, len(f.values))
	for i := range out {
		out[i] = math.NaN()
	}
	stride := nlat * nlon
	for t := left; t < nt-right; t++ {
		for c := 0; c < stride; c++ {
			sum, n := 0.0, 0
			for w := t - left; w <= t+right; w++ {
				v := f.values[w*stride+c]
				if !math.IsNaN(v) {
					sum += v
					n++
				}
			}
			if n > 0 {
				out[t*stride+c] = sum / float64(n)
			}
		}
	}
	return &Field{
		Name:  f.Name + "_smooth",
		Units: f.Units,
		Times: f.Times,
		Lats:  f.Lats,
		Lons:  f.Lons,

		values: out,
	}, nil
}

// Subtract returns a−b per cell, the hourly anomaly when b is the smoothed
// background of a.
func Subtract(a, b *Field) (*Field, error) {
	if !a.sameGrid(b) {
		return nil, fmt.Errorf("subtract: %w", shapeErr(a, b))
	}
	out := make([]float64, len(a.values))
	for i, v := range a.values {
		out[i] = v - b.values[i]
	}
	return &Field{
		Name:  a.Name + "_anomaly",
		Units: a.Units,
		Times: a.Times,
		Lats:  a.Lats,
		Lons:  a.Lons,

		values: out,
	}, nil
}

// AggregateDaily reduces an hourly field to one value per UTC calendar day
// per cell. NaN samples are skipped; a cell whose day holds only NaNs stays
// NaN. Partial days at the period boundary aggregate over whatever samples
// exist.
func AggregateDaily(f *Field, r Reduction) (*DailyField, error) {
	if r != ReduceMin && r != ReduceMax && r != ReduceMean {
		return nil, fmt.Errorf("aggregate %s: unknown reduction %q", f.Name, r)
	}
	nt, nlat, nlon := f.Shape()
	if nt == 0 {
		return nil, fmt.Errorf("aggregate %s: %w: field has no timesteps", f.Name, ErrEmptyReduction)
	}

	dates := distinctDays(f.Times)
	dayIdx := make([]int, nt)
	for t, ts := range f.Times {
		day := ts.UTC().Truncate(24 * time.Hour)
		for d, dd := range dates {
			if dd.Equal(day) {
				dayIdx[t] = d
				break
			}
		}
	}

	stride := nlat * nlon
	acc := make([]float64, len(dates)*stride)
	cnt := make([]int, len(dates)*stride)
	for t := 0; t < nt; t++ {
		base := dayIdx[t] * stride
		for c := 0; c < stride; c++ {
			v := f.values[t*stride+c]
			if math.IsNaN(v) {
				continue
			}
			k := base + c
			if cnt[k] == 0 {
				acc[k] = v
			} else {
				switch r {
				case ReduceMin:
					if v < acc[k] {
						acc[k] = v
					}
				case ReduceMax:
					if v > acc[k] {
						acc[k] = v
					}
				case ReduceMean:
					acc[k] += v
				}
			}
			cnt[k]++
		}
	}
	for k := range acc {
		switch {
		case cnt[k] == 0:
			acc[k] = math.NaN()
		case r == ReduceMean:
			acc[k] /= float64(cnt[k])
		}
	}

	return &DailyField{
		Name:  fmt.Sprintf("%s_%s", f.Name, r),
		Units: f.Units,
		Dates: dates,
		Lats:  f.Lats,
		Lons:  f.Lons,

		values: acc,
	}, nil
}

// distinctDays returns the distinct UTC calendar days of the timestamps, in
// ascending order. The hourly record is time-ordered, so days come out
// ordered too.
func distinctDays(times []time.Time) []time.Time {
	var days []time.Time
	for _, ts := range times {
		day := ts.UTC().Truncate(24 * time.Hour)
		if len(days) == 0 || !days[len(days)-1].Equal(day) {
			days = append(days, day)
		}
	}
	return days
}

// AnomalyFromPeriodMean subtracts the per-cell mean over the run period from
// each day, the period-mean climatology baseline.
func AnomalyFromPeriodMean(d *DailyField) (*DailyField, error) {
	nd, nlat, nlon := d.Shape()
	if nd == 0 {
		return nil, fmt.Errorf("anomaly %s: %w: no days", d.Name, ErrEmptyReduction)
	}
	stride := nlat * nlon
	mean := make([]float64, stride)
	n := make([]int, stride)
	for t := 0; t < nd; t++ {
		for c := 0; c < stride; c++ {
			v := d.values[t*stride+c]
			if !math.IsNaN(v) {
				mean[c] += v
				n[c]++
			}
		}
	}
	for c := range mean {
		if n[c] > 0 {
			mean[c] /= float64(n[c])
		} else {
			mean[c] = math.NaN()
		}
	}

	out := make([]float64, len(d.values))
	for t := 0; t < nd; t++ {
		for c := 0; c < stride; c++ {
			out[t*stride+c] = d.values[t*stride+c] - mean[c]
		}
	}
	return &DailyField{
		Name:  d.Name + "_anomaly",
		Units: d.Units,
		Dates: d.Dates,
		Lats:  d.Lats,
		Lons:  d.Lons,

		values: out,
	}, nil
}

// AnomalyFromScalar subtracts a fixed reference value from every cell.
func AnomalyFromScalar(d *DailyField, ref float64) *DailyField {
	out := make([]float64, len(d.values))
	for i, v := range d.values {
		out[i] = v - ref
	}
	return &DailyField{
		Name:  d.Name + "_anomaly",
		Units: d.Units,
		Dates: d.Dates,
		Lats:  d.Lats,
		Lons:  d.Lons,

		values: out,
	}
}

// TrimEmptyEdges drops leading and trailing days whose grid holds no valid
// cell. A centered rolling background leaves such days at both ends of the
// record. Interior all-NaN days are kept, so missing data inside the record
// still fails the reduction.
func TrimEmptyEdges(d *DailyField) *DailyField {
	nd, nlat, nlon := d.Shape()
	stride := nlat * nlon
	blank := func(t int) bool {
		for c := 0; c < stride; c++ {
			if !math.IsNaN(d.values[t*stride+c]) {
				return false
			}
		}
		return true
	}

	lo, hi := 0, nd
	for lo < hi && blank(lo) {
		lo++
	}
	for hi > lo && blank(hi-1) {
		hi--
	}
	if lo == 0 && hi == nd {
		return d
	}
	return &DailyField{
		Name:  d.Name,
		Units: d.Units,
		Dates: d.Dates[lo:hi],
		Lats:  d.Lats,
		Lons:  d.Lons,

		values: d.values[lo*stride : hi*stride],
	}
}

// SpatialReduce collapses the grid to one value per day, keeping the cell
// that achieved it. Ties keep the first cell in grid order, so output is
// deterministic. A day with no valid cell fails the run.
func SpatialReduce(d *DailyField, r Reduction) (Series, error) {
	if r != ReduceMin && r != ReduceMax {
		return Series{}, fmt.Errorf("spatial reduce %s: unknown reduction %q", d.Name, r)
	}
	nd, nlat, nlon := d.Shape()
	s := Series{
		Name:   d.Name,
		Dates:  d.Dates,
		Values: make([]float64, nd),
		Cells:  make([]Geo, nd),
	}
	for t := 0; t < nd; t++ {
		best := math.NaN()
		bj, bi := -1, -1
		for j := 0; j < nlat; j++ {
			for i := 0; i < nlon; i++ {
				v := d.At(t, j, i)
				if math.IsNaN(v) {
					continue
				}
				if bj < 0 || (r == ReduceMax && v > best) || (r == ReduceMin && v < best) {
					best, bj, bi = v, j, i
				}
			}
		}
		if bj < 0 {
			return Series{}, fmt.Errorf("spatial reduce %s on %s: %w",
				d.Name, d.Dates[t].Format("2006-01-02"), ErrEmptyReduction)
		}
		s.Values[t] = best
		s.Cells[t] = Geo{Lat: d.Lats[bj], Lon: d.Lons[bi]}
	}
	return s, nil
}
