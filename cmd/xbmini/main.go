// Command xbmini batch-combines raw XBM logger files: it discovers raw
// logs under a directory tree, reconstructs each logger's sessions, and
// writes one combined CSV per logger directory.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/skydive-data/xbmini/internal/catalog"
	"github.com/skydive-data/xbmini/internal/combine"
	"github.com/skydive-data/xbmini/internal/header"
	"github.com/skydive-data/xbmini/internal/log"
	"github.com/skydive-data/xbmini/pkg/config"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	topDir := flag.String("top-dir", "", "Top-level directory to search for raw log files")
	pattern := flag.String("pattern", "", "Raw log filename glob pattern (default from config, *.CSV)")
	skip := flag.String("skip", "", "Comma-separated path substrings to exclude (default from config)")
	dryRun := flag.Bool("dry-run", false, "List planned logger groupings without combining")
	cfgFile := flag.String("config", "", "Path to YAML pipeline configuration")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("xbmini %s\n", version)
		os.Exit(0)
	}

	if *topDir == "" {
		fmt.Fprintln(os.Stderr, "the -top-dir flag is required. Run with -h for help")
		os.Exit(1)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := loadConfig(*cfgFile)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	if *pattern != "" {
		cfg.Pattern = *pattern
	}
	if *skip != "" {
		cfg.SkipStrs = strings.Split(*skip, ",")
	}

	if err := run(*topDir, *dryRun, cfg); err != nil {
		log.Errorf("Combine failed: %v", err)
		os.Exit(1)
	}
}

func loadConfig(cfgFile string) (*config.Config, error) {
	var provider config.Provider
	if cfgFile == "" {
		provider = config.NewStaticProvider(config.Default())
	} else {
		provider = config.NewYAMLProvider(cfgFile)
	}
	return provider.LoadConfig()
}

func run(topDir string, dryRun bool, cfg *config.Config) error {
	opts := combine.Options{
		Pattern:             cfg.Pattern,
		SkipStrs:            cfg.SkipStrs,
		DryRun:              dryRun,
		MaxGapFactor:        cfg.MaxGapFactor,
		MinSessionSeconds:   cfg.MinSessionSeconds,
		RollingWindow:       cfg.RollingWindowSeconds,
		GroundPressure:      cfg.GroundPressurePa,
		SensitivityOverride: sensitivityOverride(cfg),
	}

	result, err := combine.Combine(topDir, opts)
	if err != nil {
		return err
	}

	fmt.Printf("Found %d logger(s) to combine.\n", len(result.Groups))

	if dryRun {
		for _, g := range result.Groups {
			fmt.Printf("Would combine %d log(s) from %s\n", len(g.Files), g.Dir)
		}
		return nil
	}

	var cat *catalog.Catalog
	if cfg.CatalogPath != "" {
		cat, err = catalog.Open(cfg.CatalogPath)
		if err != nil {
			return err
		}
		defer cat.Close()
		log.Debugf("recording combine run %s in catalog %s", cat.RunID(), cfg.CatalogPath)
	}

	for _, g := range result.Groups {
		xbm, ok := result.Logs[g.Dir]
		if !ok {
			continue
		}

		out, err := combine.WriteGroup(xbm, g.Dir)
		if err != nil {
			return err
		}
		fmt.Printf("Combined %d log(s) from %s into %d session(s): %s\n",
			len(xbm.SourceFiles), g.Dir, len(xbm.Sessions), out)

		if cat != nil {
			if err := cat.RecordLog(g.Dir, xbm, out); err != nil {
				return err
			}
		}
	}

	for _, s := range result.Skipped {
		log.Warnf("no output for %s: %s", s.Dir, s.Reason)
	}

	return nil
}

func sensitivityOverride(cfg *config.Config) header.SensorSpec {
	if len(cfg.SensitivityOverride) == 0 {
		return nil
	}

	spec := make(header.SensorSpec, len(cfg.SensitivityOverride))
	for name, sens := range cfg.SensitivityOverride {
		spec[name] = header.SensorInfo{Name: name, Sensitivity: sens}
	}
	return spec
}
