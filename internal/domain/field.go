package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrShapeMismatch reports fields whose grids disagree.
	ErrShapeMismatch = errors.New("field shape mismatch")

	// ErrEmptyReduction reports a reduction over zero valid samples.
	ErrEmptyReduction = errors.New("reduction over zero valid samples")
)

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Region is a latitude/longitude bounding box, degrees north and east.
type Region struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// StudyDomain is the North Atlantic box the reanalysis download covers.
var StudyDomain = Region{MinLat: 10, MaxLat: 60, MinLon: -60, MaxLon: 10}

// Valid reports whether the box has positive extent in both axes.
func (r Region) Valid() bool {
	return r.MinLat < r.MaxLat && r.MinLon < r.MaxLon
}

// Reduction names a fixed reduction operator.
type Reduction string

const (
	ReduceMin  Reduction = "min"
	ReduceMax  Reduction = "max"
	ReduceMean Reduction = "mean"
)

// Direction is the extremum sense of a variable: whether large positive or
// large negative values count as extreme.
type Direction string

const (
	Highest Direction = "highest"
	Lowest  Direction = "lowest"
)

// Field is an hourly gridded variable with dimensions (time, lat, lon),
// time-major in memory. Fields are immutable once built; every transform
// allocates a new one.
type Field struct {
	Name  string
	Units string
	Times []time.Time
	Lats  []float64
	Lons  []float64

	values []float64
}

// NewField builds a Field, validating that values has exactly
// len(times)*len(lats)*len(lons) entries.
func NewField(name, units string, times []time.Time, lats, lons, values []float64) (*Field, error) {
	want := len(times) * len(lats) * len(lons)
	if len(values) != want {
		return nil, fmt.Errorf("field %s: %d values for %dx%dx%d grid (want %d)",
			name, len(values), len(times), len(lats), len(lons), want)
	}
	return &Field{Name: name, Units: units, Times: times, Lats: lats, Lons: lons, values: values}, nil
}

// Shape returns the (time, lat, lon) extents.
func (f *Field) Shape() (nt, nlat, nlon int) {
	return len(f.Times), len(f.Lats), len(f.Lons)
}

// At returns the value at time index t, latitude index j, longitude index i.
func (f *Field) At(t, j, i int) float64 {
	return f.values[(t*len(f.Lats)+j)*len(f.Lons)+i]
}

func (f *Field) sameGrid(g *Field) bool {
	return len(f.Times) == len(g.Times) && len(f.Lats) == len(g.Lats) && len(f.Lons) == len(g.Lons)
}

func shapeErr(a, b *Field) error {
	at, aj, ai := a.Shape()
	bt, bj, bi := b.Shape()
	return fmt.Errorf("%w: %s is %dx%dx%d, %s is %dx%dx%d",
		ErrShapeMismatch, a.Name, at, aj, ai, b.Name, bt, bj, bi)
}

// DailyField is a Field reduced along time to one value per UTC calendar day
// per grid cell. Dates are midnight UTC, ascending.
type DailyField struct {
	Name  string
	Units string
	Dates []time.Time
	Lats  []float64
	Lons  []float64

	values []float64
}

// Shape returns the (day, lat, lon) extents.
func (d *DailyField) Shape() (nd, nlat, nlon int) {
	return len(d.Dates), len(d.Lats), len(d.Lons)
}

// At returns the value at day index t, latitude index j, longitude index i.
func (d *DailyField) At(t, j, i int) float64 {
	return d.values[(t*len(d.Lats)+j)*len(d.Lons)+i]
}

// Series is a spatially reduced daily time series: one value per date plus
// the grid cell that achieved it.
type Series struct {
	Name   string
	Dates  []time.Time
	Values []float64
	Cells  []Geo
}

// ValueOn returns the series value on the given date.
func (s Series) ValueOn(date time.Time) (float64, bool) {
	for i, d := range s.Dates {
		if d.Equal(date) {
			return s.Values[i], true
		}
	}
	return 0, false
}

// CellOn returns the extreme-achieving cell on the given date.
func (s Series) CellOn(date time.Time) (Geo, bool) {
	for i, d := range s.Dates {
		if d.Equal(date) {
			return s.Cells[i], true
		}
	}
	return Geo{}, false
}

// EventRecord is one flagged date with the values of every tracked series on
// that date. It is the unit of tabular output.
type EventRecord struct {
	Date     time.Time
	Location string // run label, e.g. the storm or site name

	// Values and Cells are keyed by series name.
	Values map[string]float64
	Cells  map[string]Geo

	ProcessedAt time.Time
}
