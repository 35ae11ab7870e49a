// Command inspect summarizes a reanalysis NetCDF file before a run: the
// time span, grid extent, and whether the seven expected variables are
// present. Useful for checking a CDS download against the run configuration.
//
// Usage:
//
//	go run ./cmd/inspect -input data/era5_nov2023.nc
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"slices"

	"github.com/AnurovaPrykhodko/Atmospheric-ocean-coupling-analysis-extreme-wave-event/internal/adapter/netcdf"
	"github.com/AnurovaPrykhodko/Atmospheric-ocean-coupling-analysis-extreme-wave-event/internal/domain"
)

func main() {
	input := flag.String("input", "", "path to the NetCDF file to inspect")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect -input <file.nc>")
		os.Exit(2)
	}

	if err := inspect(*input); err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
}

func inspect(path string) error {
	source, err := netcdf.Open(path, netcdf.Options{})
	if err != nil {
		return err
	}
	defer source.Close()

	summary := source.Summary()
	fmt.Printf("dataset %s\n", path)
	for i := 2; i+1 < len(summary); i += 2 {
		fmt.Printf("  %-10v %v\n", summary[i], summary[i+1])
	}

	present := source.Variables()
	fmt.Println("variables:")
	missing := 0
	for _, name := range domain.InputVariables {
		if slices.Contains(present, name) {
			stats, err := variableStats(source, name)
			if err != nil {
				return err
			}
			fmt.Printf("  %-6s %s\n", name, stats)
			continue
		}
		fmt.Printf("  %-6s MISSING\n", name)
		missing++
	}

	if missing > 0 {
		return fmt.Errorf("%d of %d expected variables missing", missing, len(domain.InputVariables))
	}
	return nil
}

// variableStats loads the variable and reports its range and missing-cell
// share, enough to spot a corrupt or land-masked download.
func variableStats(source *netcdf.Source, name string) (string, error) {
	field, err := source.Load(name)
	if err != nil {
		return "", err
	}

	nt, nlat, nlon := field.Shape()
	lo, hi := math.Inf(1), math.Inf(-1)
	valid := 0
	for t := 0; t < nt; t++ {
		for j := 0; j < nlat; j++ {
			for i := 0; i < nlon; i++ {
				v := field.At(t, j, i)
				if math.IsNaN(v) {
					continue
				}
				valid++
				lo = math.Min(lo, v)
				hi = math.Max(hi, v)
			}
		}
	}

	total := nt * nlat * nlon
	if valid == 0 {
		return "all cells missing", nil
	}
	return fmt.Sprintf("%s range %.3g..%.3g, %.1f%% valid",
		field.Units, lo, hi, 100*float64(valid)/float64(total)), nil
}
