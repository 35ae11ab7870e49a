// Package netcdf loads ERA5-style NetCDF files into domain fields.
//
// Both CDS output generations are handled: the classic format with an int32
// "time" axis in hours since 1900 and packed int16 variables, and the current
// format with an int64 "valid_time" axis in seconds since 1970 and float32
// variables. Packed variables are unpacked with scale_factor/add_offset and
// fill values become NaN.
package netcdf

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/AnurovaPrykhodko/Atmospheric-ocean-coupling-analysis-extreme-wave-event/internal/domain"
)

// ErrMissingVariable reports a variable or coordinate absent from the file.
var ErrMissingVariable = errors.New("variable not found in dataset")

// Options control how a Source subsets the file.
type Options struct {
	// Region clips the grid; zero value keeps the full grid.
	Region domain.Region

	// Start and End clip the time axis to [Start, End of End's day];
	// zero values keep the full record.
	Start, End time.Time

	// VarNames maps canonical variable names to the names used in this
	// file, for downloads with nonstandard naming. Unmapped names are
	// used as-is.
	VarNames map[string]string

	Logger *slog.Logger
}

// Source reads hourly gridded variables from one NetCDF file.
type Source struct {
	nc     api.Group
	path   string
	opts   Options
	logger *slog.Logger

	times  []time.Time
	lats   []float64
	lons   []float64
	t0, t1 int // time index range, [t0, t1)
	j0, j1 int // latitude index range
	i0, i1 int // longitude index range
}

// Open opens the file and resolves the coordinate axes and subset ranges.
func Open(path string, opts Options) (*Source, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Source{nc: nc, path: path, opts: opts, logger: logger}
	if err := s.resolveAxes(); err != nil {
		nc.Close()
		return nil, err
	}

	logger.Info("dataset opened",
		"path", path,
		"timesteps", s.t1-s.t0,
		"lats", s.j1-s.j0,
		"lons", s.i1-s.i0,
		"from", s.times[0],
		"to", s.times[len(s.times)-1],
	)
	return s, nil
}

// Close releases the underlying file handle.
func (s *Source) Close() error {
	s.nc.Close()
	return nil
}

// Load reads one variable, clipped to the configured region and period.
// name is canonical; the file-level name comes from Options.VarNames.
func (s *Source) Load(name string) (*domain.Field, error) {
	fileVar := name
	if mapped, ok := s.opts.VarNames[name]; ok && mapped != "" {
		fileVar = mapped
	}

	vg, err := s.nc.GetVarGetter(fileVar)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (file variable %q in %s)", ErrMissingVariable, name, fileVar, s.path)
	}

	attrs := vg.Attributes()
	scale, hasScale := attrFloat(attrs, "scale_factor")
	offset, _ := attrFloat(attrs, "add_offset")
	fill, hasFill := attrFloat(attrs, "_FillValue")
	if !hasFill {
		fill, hasFill = attrFloat(attrs, "missing_value")
	}
	units, _ := attrString(attrs, "units")
	if !hasScale {
		scale = 1
	}

	raw, err := vg.GetSlice(int64(s.t0), int64(s.t1))
	if err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", fileVar, s.path, err)
	}

	values, err := s.unpack(raw, scale, offset, fill, hasFill)
	if err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", fileVar, s.path, err)
	}

	field, err := domain.NewField(name, units, s.times, s.lats, s.lons, values)
	if err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", fileVar, s.path, err)
	}
	s.logger.Debug("variable loaded", "variable", name, "file_variable", fileVar, "units", units)
	return field, nil
}

// Summary returns dataset facts suitable for logging.
func (s *Source) Summary() []any {
	return []any{
		"path", s.path,
		"timesteps", len(s.times),
		"lats", len(s.lats),
		"lons", len(s.lons),
		"from", s.times[0],
		"to", s.times[len(s.times)-1],
		"lat_range", fmt.Sprintf("%g..%g", s.lats[len(s.lats)-1], s.lats[0]),
		"lon_range", fmt.Sprintf("%g..%g", s.lons[0], s.lons[len(s.lons)-1]),
	}
}

// Variables lists the variable names present in the file.
func (s *Source) Variables() []string {
	return s.nc.ListVariables()
}

func (s *Source) resolveAxes() error {
	lats, err := coordValues(s.nc, "latitude")
	if err != nil {
		return err
	}
	lons, err := coordValues(s.nc, "longitude")
	if err != nil {
		return err
	}
	times, err := timeValues(s.nc)
	if err != nil {
		return err
	}

	s.j0, s.j1 = clipCoord(lats, s.opts.Region.MinLat, s.opts.Region.MaxLat)
	s.i0, s.i1 = clipCoord(lons, s.opts.Region.MinLon, s.opts.Region.MaxLon)
	if s.j0 >= s.j1 {
		return fmt.Errorf("dataset %s: no latitudes inside %g..%g", s.path, s.opts.Region.MinLat, s.opts.Region.MaxLat)
	}
	if s.i0 >= s.i1 {
		return fmt.Errorf("dataset %s: no longitudes inside %g..%g", s.path, s.opts.Region.MinLon, s.opts.Region.MaxLon)
	}

	s.t0, s.t1 = clipTimes(times, s.opts.Start, s.opts.End)
	if s.t0 >= s.t1 {
		return fmt.Errorf("dataset %s: no timesteps inside the configured period", s.path)
	}

	s.lats = lats[s.j0:s.j1]
	s.lons = lons[s.i0:s.i1]
	s.times = times[s.t0:s.t1]
	return nil
}

// unpack flattens the (time, lat, lon) block into the subset grid, applying
// packing and fill-value conventions.
func (s *Source) unpack(raw any, scale, offset, fill float64, hasFill bool) ([]float64, error) {
	switch data := raw.(type) {
	case [][][]int16:
		return unpack3D(data, s.j0, s.j1, s.i0, s.i1, scale, offset, fill, hasFill)
	case [][][]int32:
		return unpack3D(data, s.j0, s.j1, s.i0, s.i1, scale, offset, fill, hasFill)
	case [][][]float32:
		return unpack3D(data, s.j0, s.j1, s.i0, s.i1, scale, offset, fill, hasFill)
	case [][][]float64:
		return unpack3D(data, s.j0, s.j1, s.i0, s.i1, scale, offset, fill, hasFill)
	default:
		return nil, fmt.Errorf("unsupported variable layout %T (want a 3-D time/lat/lon block)", raw)
	}
}

func unpack3D[T int16 | int32 | float32 | float64](
	data [][][]T, j0, j1, i0, i1 int, scale, offset, fill float64, hasFill bool,
) ([]float64, error) {
	nlat, nlon := j1-j0, i1-i0
	out := make([]float64, 0, len(data)*nlat*nlon)
	for t := range data {
		if len(data[t]) < j1 {
			return nil, fmt.Errorf("ragged latitude dimension at timestep %d: %d rows", t, len(data[t]))
		}
		for j := j0; j < j1; j++ {
			row := data[t][j]
			if len(row) < i1 {
				return nil, fmt.Errorf("ragged longitude dimension at timestep %d row %d: %d columns", t, j, len(row))
			}
			for i := i0; i < i1; i++ {
				v := float64(row[i])
				if hasFill && v == fill || math.IsNaN(v) {
					out = append(out, math.NaN())
					continue
				}
				out = append(out, v*scale+offset)
			}
		}
	}
	return out, nil
}

// coordValues reads a 1-D coordinate variable as float64.
func coordValues(nc api.Group, name string) ([]float64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("%w: coordinate %s", ErrMissingVariable, name)
	}
	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("read coordinate %s: %w", name, err)
	}
	switch vals := v.(type) {
	case []float64:
		return vals, nil
	case []float32:
		out := make([]float64, len(vals))
		for i, x := range vals {
			out[i] = float64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("coordinate %s has unsupported type %T", name, v)
	}
}

// timeValues reads the time axis under either of its CDS names and converts
// it to UTC instants using the units attribute.
func timeValues(nc api.Group) ([]time.Time, error) {
	var vg api.VarGetter
	var err error
	for _, name := range []string{"valid_time", "time"} {
		if vg, err = nc.GetVarGetter(name); err == nil {
			break
		}
	}
	if vg == nil || err != nil {
		return nil, fmt.Errorf("%w: time axis (tried valid_time, time)", ErrMissingVariable)
	}

	unitsAttr, ok := attrString(vg.Attributes(), "units")
	if !ok {
		return nil, errors.New("time axis has no units attribute")
	}
	epoch, step, err := parseTimeUnits(unitsAttr)
	if err != nil {
		return nil, err
	}

	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("read time axis: %w", err)
	}
	ticks, err := toInt64s(v)
	if err != nil {
		return nil, fmt.Errorf("time axis: %w", err)
	}

	out := make([]time.Time, len(ticks))
	for i, n := range ticks {
		out[i] = epoch.Add(time.Duration(n) * step)
	}
	return out, nil
}

// parseTimeUnits handles CF-style "<unit> since <date>[ <time>]" strings.
func parseTimeUnits(units string) (time.Time, time.Duration, error) {
	parts := strings.SplitN(units, " since ", 2)
	if len(parts) != 2 {
		return time.Time{}, 0, fmt.Errorf("unsupported time units %q", units)
	}

	var step time.Duration
	switch strings.TrimSpace(parts[0]) {
	case "seconds":
		step = time.Second
	case "hours":
		step = time.Hour
	case "days":
		step = 24 * time.Hour
	default:
		return time.Time{}, 0, fmt.Errorf("unsupported time units %q", units)
	}

	datePart := strings.TrimSpace(parts[1])
	if len(datePart) > 10 {
		datePart = datePart[:10]
	}
	epoch, err := time.Parse("2006-01-02", datePart)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("unsupported time epoch in %q: %w", units, err)
	}
	return epoch.UTC(), step, nil
}

func toInt64s(v any) ([]int64, error) {
	switch vals := v.(type) {
	case []int64:
		return vals, nil
	case []int32:
		out := make([]int64, len(vals))
		for i, x := range vals {
			out[i] = int64(x)
		}
		return out, nil
	case []float64:
		out := make([]int64, len(vals))
		for i, x := range vals {
			out[i] = int64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

// clipCoord returns the index range of coordinates inside [lo, hi]. A zero
// box keeps everything. The range is contiguous because the axis is
// monotonic (latitude descending, longitude ascending in ERA5 files).
func clipCoord(coords []float64, lo, hi float64) (int, int) {
	if lo == 0 && hi == 0 {
		return 0, len(coords)
	}
	first, last := -1, -1
	for i, c := range coords {
		if c >= lo && c <= hi {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return 0, 0
	}
	return first, last + 1
}

// clipTimes returns the index range of timestamps inside the period. End is
// a date: everything through the end of that UTC day stays in.
func clipTimes(times []time.Time, start, end time.Time) (int, int) {
	cutoff := time.Time{}
	if !end.IsZero() {
		cutoff = end.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	}
	first, last := -1, -1
	for i, ts := range times {
		if !start.IsZero() && ts.Before(start) {
			continue
		}
		if !cutoff.IsZero() && !ts.Before(cutoff) {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 {
		return 0, 0
	}
	return first, last + 1
}

func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	v, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case []float64:
		if len(x) == 1 {
			return x[0], true
		}
	case []float32:
		if len(x) == 1 {
			return float64(x[0]), true
		}
	}
	return 0, false
}

func attrString(attrs api.AttributeMap, key string) (string, bool) {
	if attrs == nil {
		return "", false
	}
	v, ok := attrs.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
