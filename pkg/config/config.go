// Package config defines the combine pipeline's tunable configuration and
// the providers that load it.
package config

// Config holds every tunable of a combine run. The segmentation gap
// threshold and minimum session length deliberately live here rather than
// as constants in the segmenter: their right values depend on firmware
// timing behavior and should be set per fleet.
type Config struct {
	// Glob pattern for raw log files and path substrings to exclude
	// (previously combined/trimmed output).
	Pattern  string   `yaml:"pattern"`
	SkipStrs []string `yaml:"skip_strs"`

	// An inter-sample gap larger than MaxGapFactor times the expected
	// sample interval opens a new session.
	MaxGapFactor float64 `yaml:"max_gap_factor"`

	// Candidate sessions shorter than this many seconds are discarded.
	MinSessionSeconds float64 `yaml:"min_session_seconds"`

	// Width, in seconds, of the centered rolling-mean window for total
	// acceleration.
	RollingWindowSeconds float64 `yaml:"rolling_window_seconds"`

	// Ground-level pressure in Pascals for pressure altitude.
	GroundPressurePa float64 `yaml:"ground_pressure_pa"`

	// Counts-per-unit sensitivity overrides by sensor name ("Accel",
	// "Gyro", "Mag"), for firmware whose headers declare wrong constants.
	SensitivityOverride map[string]int `yaml:"sensitivity_override,omitempty"`

	// Path of the combine-run catalog database; empty disables the
	// catalog.
	CatalogPath string `yaml:"catalog_path,omitempty"`
}

// Provider loads a complete pipeline configuration from some backend.
type Provider interface {
	LoadConfig() (*Config, error)
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Pattern:              "*.CSV",
		SkipStrs:             []string{"processed", "trimmed", "combined"},
		MaxGapFactor:         10,
		MinSessionSeconds:    1,
		RollingWindowSeconds: 0.2,
		GroundPressurePa:     101325,
	}
}
