package combine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/skydive-data/xbmini/internal/channel"
	"github.com/skydive-data/xbmini/internal/header"
	"github.com/skydive-data/xbmini/internal/log"
	"github.com/skydive-data/xbmini/internal/session"
	"github.com/skydive-data/xbmini/internal/types"
)

// Default combine policy, matching the logger's own file conventions.
var (
	DefaultPattern  = "*.CSV"
	DefaultSkipStrs = []string{"processed", "trimmed", "combined"}

	// Standard atmosphere ground pressure in Pascals, used for pressure
	// altitude when no site-specific value is configured.
	DefaultGroundPressure = 101325.0

	// Width of the centered rolling-mean window for total acceleration.
	DefaultRollingWindow = 0.2
)

// Options tunes a combine run. Zero values select the documented defaults.
type Options struct {
	Pattern  string
	SkipStrs []string
	DryRun   bool

	// MaxGapFactor and MinSessionSeconds are passed through to the session
	// segmenter; see session.Params.
	MaxGapFactor      float64
	MinSessionSeconds float64

	// SensitivityOverride replaces the counts-per-unit constants declared
	// in file headers, for firmware known to declare wrong values.
	SensitivityOverride header.SensorSpec

	RollingWindow  float64
	GroundPressure float64
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.Pattern == "" {
		out.Pattern = DefaultPattern
	}
	if out.SkipStrs == nil {
		out.SkipStrs = DefaultSkipStrs
	}
	if out.MaxGapFactor == 0 {
		out.MaxGapFactor = session.DefaultMaxGapFactor
	}
	if out.MinSessionSeconds == 0 {
		out.MinSessionSeconds = session.DefaultMinSessionSeconds
	}
	if out.RollingWindow == 0 {
		out.RollingWindow = DefaultRollingWindow
	}
	if out.GroundPressure == 0 {
		out.GroundPressure = DefaultGroundPressure
	}
	return out
}

// SkippedGroup reports a logger directory for which no file could be
// parsed; the group produced no XBMLog but did not abort the batch.
type SkippedGroup struct {
	Dir    string
	Reason string
}

// Result is the outcome of one combine run. Logs maps logger identity
// (the group's directory) to its reconstructed XBMLog. In dry-run mode
// only Groups is populated.
type Result struct {
	Groups  []Group
	Logs    map[string]*types.XBMLog
	Skipped []SkippedGroup
}

// Combine discovers raw log files under topDir and produces one XBMLog
// per logger group. A parse failure on one file is recorded as a fault on
// its group's XBMLog and that file's records are excluded; the group
// still produces an XBMLog as long as at least one file parsed. Only a
// discovery failure aborts the run.
func Combine(topDir string, opts Options) (*Result, error) {
	o := opts.withDefaults()

	groups, err := Discover(topDir, o.Pattern, o.SkipStrs)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Groups: groups,
		Logs:   make(map[string]*types.XBMLog),
	}
	if o.DryRun {
		return result, nil
	}

	for _, g := range groups {
		xbm, err := combineGroup(g, o)
		if err != nil {
			log.Warnf("skipping logger directory %s: %v", g.Dir, err)
			result.Skipped = append(result.Skipped, SkippedGroup{Dir: g.Dir, Reason: err.Error()})
			continue
		}
		result.Logs[g.Dir] = xbm
	}

	return result, nil
}

// combineGroup runs the parse → normalize → segment pipeline over one
// logger group. Headers are parsed per file, channels normalized per
// file, then a single segmentation pass runs across the concatenated
// stream so a session split across two files is merged while two
// unrelated sessions in one file are split.
func combineGroup(g Group, o Options) (*types.XBMLog, error) {
	var (
		fileRecs []session.FileRecords
		faults   []types.Fault
		hdr      *header.Header
		sources  []string
	)

	for _, f := range g.Files {
		h, recs, boundary, fs, err := loadFile(f.Path, o)
		if err != nil {
			faults = append(faults, types.Fault{
				Field:  filepath.Base(f.Path),
				Reason: fmt.Sprintf("file excluded: %v", err),
			})
			continue
		}
		faults = append(faults, fs...)

		if hdr == nil {
			hdr = h
		}
		sources = append(sources, f.Path)
		fileRecs = append(fileRecs, session.FileRecords{Path: f.Path, Records: recs, Boundary: boundary})
	}

	if hdr == nil {
		return nil, fmt.Errorf("no parseable log files among %d candidates", len(g.Files))
	}

	params := session.Params{
		MaxGapFactor:      o.MaxGapFactor,
		MinSessionSeconds: o.MinSessionSeconds,
		SampleRate:        hdr.SampleRate,
	}
	sessions := session.Segment(fileRecs, params)
	for i := range sessions {
		channel.Derive(sessions[i].Records, o.RollingWindow, o.GroundPressure)
	}

	xbm := &types.XBMLog{
		Serial:          hdr.Serial,
		LoggerType:      hdr.LoggerType,
		FirmwareVersion: hdr.FirmwareVersion,
		HeaderSpec:      hdr.Columns,
		Sessions:        sessions,
		Faults:          faults,
		SourceFiles:     sources,
	}

	log.Debugf("combined %d file(s) from %s into %d session(s), %d fault(s)",
		len(sources), g.Dir, len(sessions), len(faults))

	return xbm, nil
}

// loadFile reads and normalizes a single raw log file. The file handle is
// released as soon as the raw content is captured; nothing downstream
// holds it. Per-field header faults are namespaced with the file's base
// name so group-level audits stay attributable.
func loadFile(path string, o Options) (*header.Header, []types.Record, bool, []types.Fault, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, false, nil, err
	}
	h, raw, err := header.ParseFile(f)
	f.Close()
	if err != nil {
		return nil, nil, false, nil, err
	}

	recs, normFaults := channel.Normalize(raw.DataLines, h, o.SensitivityOverride)
	recs = channel.NormalizeGPS(recs)

	base := filepath.Base(path)
	faults := make([]types.Fault, 0, len(h.Faults)+len(normFaults))
	for _, fault := range h.Faults {
		faults = append(faults, types.Fault{Field: base + ":" + fault.Field, Reason: fault.Reason})
	}
	for _, fault := range normFaults {
		faults = append(faults, types.Fault{Field: base + ":" + fault.Field, Reason: fault.Reason})
	}

	return h, recs, raw.Shutdown(), faults, nil
}
