// Package config loads and validates the run configuration. Every pipeline
// parameter (input file, bounding box, period, baseline, threshold rule) is
// explicit here so a run can be reproduced from its config file alone.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/AnurovaPrykhodko/Atmospheric-ocean-coupling-analysis-extreme-wave-event/internal/domain"
)

const dateLayout = "2006-01-02"

// Config holds all run settings, populated from a config file with
// WAVEFORCING_-prefixed environment overrides.
type Config struct {
	Input    InputConfig    `mapstructure:"input"`
	Region   RegionConfig   `mapstructure:"region"`
	Period   PeriodConfig   `mapstructure:"period"`
	Baseline BaselineConfig `mapstructure:"baseline"`
	Selector SelectorConfig `mapstructure:"selector"`
	Output   OutputConfig   `mapstructure:"output"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// InputConfig names the source dataset.
type InputConfig struct {
	Path     string `mapstructure:"path"`
	Location string `mapstructure:"location"` // run label carried into the export, e.g. the storm name

	// Variables maps canonical variable names to nonstandard names in the
	// file; unmapped variables are read under their canonical name.
	Variables map[string]string `mapstructure:"variables"`
}

// RegionConfig is the bounding box of the study domain, degrees north/east.
type RegionConfig struct {
	LatMin float64 `mapstructure:"lat_min"`
	LatMax float64 `mapstructure:"lat_max"`
	LonMin float64 `mapstructure:"lon_min"`
	LonMax float64 `mapstructure:"lon_max"`
}

// Domain converts the box to its domain representation.
func (r RegionConfig) Domain() domain.Region {
	return domain.Region{MinLat: r.LatMin, MaxLat: r.LatMax, MinLon: r.LonMin, MaxLon: r.LonMax}
}

// PeriodConfig bounds the run period by calendar date (UTC, inclusive).
// Empty strings keep the file's full record.
type PeriodConfig struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// Range parses the period bounds. Zero times mean unbounded.
func (p PeriodConfig) Range() (start, end time.Time, err error) {
	if p.Start != "" {
		if start, err = time.Parse(dateLayout, p.Start); err != nil {
			return start, end, fmt.Errorf("period.start: %w", err)
		}
	}
	if p.End != "" {
		if end, err = time.Parse(dateLayout, p.End); err != nil {
			return start, end, fmt.Errorf("period.end: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, fmt.Errorf("period.end %s is before period.start %s", p.End, p.Start)
	}
	return start, end, nil
}

// Baseline methods.
const (
	BaselineRolling    = "rolling"     // centered rolling mean of the hourly signal
	BaselinePeriodMean = "period_mean" // per-cell mean of the daily aggregates
	BaselineScalar     = "scalar"      // fixed reference value
)

// BaselineConfig chooses the anomaly reference.
type BaselineConfig struct {
	Method      string  `mapstructure:"method"`
	WindowHours int     `mapstructure:"window_hours"` // rolling only
	Reference   float64 `mapstructure:"reference"`    // scalar only
}

// SelectorConfig chooses the event-selection policy, applied to one driver
// series.
type SelectorConfig struct {
	Driver   string  `mapstructure:"driver"` // tracked variable name, e.g. "swh"
	Rule     string  `mapstructure:"rule"`
	N        int     `mapstructure:"n"`
	Quantile float64 `mapstructure:"quantile"`
	Cutoff   float64 `mapstructure:"cutoff"`

	// Optional sub-range restriction inside the run period.
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// ThresholdRule converts the selector settings to a domain threshold rule.
func (s SelectorConfig) ThresholdRule() (domain.ThresholdRule, error) {
	start, end, err := PeriodConfig{Start: s.Start, End: s.End}.Range()
	if err != nil {
		return domain.ThresholdRule{}, fmt.Errorf("selector: %w", err)
	}
	return domain.ThresholdRule{
		Kind:     domain.RuleKind(s.Rule),
		N:        s.N,
		Quantile: s.Quantile,
		Cutoff:   s.Cutoff,
		Start:    start,
		End:      end,
	}, nil
}

// OutputConfig names the export target.
type OutputConfig struct {
	Path             string `mapstructure:"path"`
	IncludeLocations bool   `mapstructure:"include_locations"` // add extreme-cell lat/lon columns
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig optionally exposes a debug metrics listener during the run.
// Empty addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configuration from the file at path and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("WAVEFORCING")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Study domain of the event analysis.
	v.SetDefault("region.lat_min", 10.0)
	v.SetDefault("region.lat_max", 60.0)
	v.SetDefault("region.lon_min", -60.0)
	v.SetDefault("region.lon_max", 10.0)

	v.SetDefault("baseline.method", BaselineRolling)
	v.SetDefault("baseline.window_hours", 72)

	v.SetDefault("selector.driver", "swh")
	v.SetDefault("selector.rule", string(domain.RuleTopN))
	v.SetDefault("selector.n", 5)
	v.SetDefault("selector.quantile", 0.95)

	v.SetDefault("output.path", "events.csv")
	v.SetDefault("output.include_locations", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are usable together.
func (c *Config) Validate() error {
	if c.Input.Path == "" {
		return fmt.Errorf("input.path is required")
	}
	if !c.Region.Domain().Valid() {
		return fmt.Errorf("region must have positive extent, got lat %g..%g lon %g..%g",
			c.Region.LatMin, c.Region.LatMax, c.Region.LonMin, c.Region.LonMax)
	}
	if _, _, err := c.Period.Range(); err != nil {
		return err
	}

	switch c.Baseline.Method {
	case BaselineRolling:
		if c.Baseline.WindowHours < 1 {
			return fmt.Errorf("baseline.window_hours must be at least 1, got %d", c.Baseline.WindowHours)
		}
	case BaselinePeriodMean, BaselineScalar:
	default:
		return fmt.Errorf("baseline.method must be one of: %s, %s, %s", BaselineRolling, BaselinePeriodMean, BaselineScalar)
	}

	if _, ok := domain.TrackedVariable(c.Selector.Driver); !ok {
		return fmt.Errorf("selector.driver %q is not a tracked variable", c.Selector.Driver)
	}
	switch domain.RuleKind(c.Selector.Rule) {
	case domain.RuleTopN:
		if c.Selector.N < 1 {
			return fmt.Errorf("selector.n must be at least 1, got %d", c.Selector.N)
		}
	case domain.RulePercentile:
		if c.Selector.Quantile <= 0 || c.Selector.Quantile >= 1 {
			return fmt.Errorf("selector.quantile must be in (0,1), got %g", c.Selector.Quantile)
		}
	case domain.RuleAbsolute:
	default:
		return fmt.Errorf("selector.rule must be one of: %s, %s, %s",
			domain.RuleTopN, domain.RulePercentile, domain.RuleAbsolute)
	}
	if _, err := c.Selector.ThresholdRule(); err != nil {
		return err
	}

	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
