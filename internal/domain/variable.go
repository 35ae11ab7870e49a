package domain

// VariableSpec fixes how one tracked variable is reduced and what counts as
// extreme for it.
type VariableSpec struct {
	Name    string // canonical name used in series, config, and CSV columns
	DataVar string // variable name inside the NetCDF file; empty for derived
	Units   string

	Daily     Reduction // hourly -> daily reduction
	Spatial   Reduction // daily grid -> series reduction
	Direction Direction // extremum sense for event selection
}

// Derived reports whether the variable is computed rather than loaded.
func (v VariableSpec) Derived() bool { return v.DataVar == "" }

// InputVariables are the seven fields expected in the source file.
// u10 and v10 feed the wind-speed derivation and are not tracked themselves.
var InputVariables = []string{"msl", "u10", "v10", "swh", "shww", "shts", "mwp"}

// TrackedVariables returns the series the pipeline carries through to the
// export, in stable column order.
func TrackedVariables() []VariableSpec {
	return []VariableSpec{
		{Name: "msl", DataVar: "msl", Units: "Pa", Daily: ReduceMin, Spatial: ReduceMin, Direction: Lowest},
		{Name: "wind_speed", Units: "m/s", Daily: ReduceMax, Spatial: ReduceMax, Direction: Highest},
		{Name: "swh", DataVar: "swh", Units: "m", Daily: ReduceMax, Spatial: ReduceMax, Direction: Highest},
		{Name: "shww", DataVar: "shww", Units: "m", Daily: ReduceMax, Spatial: ReduceMax, Direction: Highest},
		{Name: "shts", DataVar: "shts", Units: "m", Daily: ReduceMax, Spatial: ReduceMax, Direction: Highest},
		{Name: "mwp", DataVar: "mwp", Units: "s", Daily: ReduceMax, Spatial: ReduceMax, Direction: Highest},
	}
}

// TrackedVariable looks up a tracked variable by canonical name.
func TrackedVariable(name string) (VariableSpec, bool) {
	for _, v := range TrackedVariables() {
		if v.Name == name {
			return v, true
		}
	}
	return VariableSpec{}, false
}
