// Package domain models ERA5 reanalysis fields and the reductions used to
// isolate the forcing of a single extreme wave event.
//
// # Data Source
//
// Input data is an hourly ERA5 single-levels download (Copernicus CDS) for one
// calendar month over the North Atlantic study domain, 10°N–60°N, 60°W–10°E.
// The file carries seven variables on the same (valid_time, latitude,
// longitude) grid:
//
//	msl   mean sea level pressure          Pa
//	u10   10 m eastward wind component     m/s
//	v10   10 m northward wind component    m/s
//	swh   significant wave height          m
//	shww  significant height of wind waves m
//	shts  significant height of swell      m
//	mwp   mean wave period                 s
//
// ERA5 latitude runs north to south and longitude west to east; coordinates
// are kept in file order throughout so a (day, lat, lon) triple in the output
// can be matched back to the source grid. Packed int16 variables are unpacked
// by the loader; missing cells are NaN everywhere in this package.
//
// # Processing Conventions
//
// Wind speed is derived as sqrt(u10²+v10²) before any reduction. Each tracked
// variable has a fixed extremum sense: minimum for pressure (a deep low is the
// forcing signature), maximum for wind speed, the wave heights, and the wave
// period. Daily grouping is by UTC calendar day of the valid time; a partial
// day at the period boundary aggregates over the samples present.
//
// Anomalies support two baselines. The rolling baseline subtracts a centered
// rolling mean of the hourly signal before daily aggregation, which removes
// the synoptic-scale background and leaves the storm signal. The period-mean
// baseline subtracts the per-cell mean of the daily aggregates over the run
// period. Both keep the field shape; only the spatial reducer collapses the
// grid, and it records which cell achieved each day's extremum so the forcing
// region can be located afterwards.
package domain
