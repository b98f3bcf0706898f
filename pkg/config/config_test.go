package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xbmini.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestYAMLProviderLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
max_gap_factor: 25
ground_pressure_pa: 99000
sensitivity_override:
  Accel: 2000
catalog_path: /var/lib/xbmini/catalog.db
`)

	cfg, err := NewYAMLProvider(path).LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.MaxGapFactor != 25 {
		t.Errorf("max_gap_factor = %v, want 25", cfg.MaxGapFactor)
	}
	if cfg.GroundPressurePa != 99000 {
		t.Errorf("ground_pressure_pa = %v, want 99000", cfg.GroundPressurePa)
	}
	if cfg.SensitivityOverride["Accel"] != 2000 {
		t.Errorf("sensitivity_override = %v", cfg.SensitivityOverride)
	}
	if cfg.CatalogPath != "/var/lib/xbmini/catalog.db" {
		t.Errorf("catalog_path = %q", cfg.CatalogPath)
	}

	// Everything the file omits keeps its default.
	if cfg.Pattern != "*.CSV" {
		t.Errorf("pattern = %q, want default *.CSV", cfg.Pattern)
	}
	if cfg.MinSessionSeconds != 1 {
		t.Errorf("min_session_seconds = %v, want default 1", cfg.MinSessionSeconds)
	}
	if cfg.RollingWindowSeconds != 0.2 {
		t.Errorf("rolling_window_seconds = %v, want default 0.2", cfg.RollingWindowSeconds)
	}
}

func TestYAMLProviderValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "zero gap factor", body: "max_gap_factor: 0\n", want: "max_gap_factor"},
		{name: "negative gap factor", body: "max_gap_factor: -3\n", want: "max_gap_factor"},
		{name: "negative min session", body: "min_session_seconds: -1\n", want: "min_session_seconds"},
		{name: "bad yaml", body: "pattern: [\n", want: "parsing config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.body)
			_, err := NewYAMLProvider(path).LoadConfig()
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestYAMLProviderMissingFile(t *testing.T) {
	_, err := NewYAMLProvider(filepath.Join(t.TempDir(), "nope.yaml")).LoadConfig()
	if !os.IsNotExist(err) {
		t.Fatalf("got %v, want a not-exist error", err)
	}
}

func TestStaticProvider(t *testing.T) {
	cfg := Default()
	cfg.Pattern = "*.log"

	got, err := NewStaticProvider(cfg).LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfg {
		t.Error("static provider did not return the wrapped config")
	}
}
