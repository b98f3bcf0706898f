package channel

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/skydive-data/xbmini/internal/header"
	"github.com/skydive-data/xbmini/internal/types"
)

// compiledRule is a Rule bound to a source column index and a resolved
// sensitivity divisor for one specific file.
type compiledRule struct {
	col   int
	dest  types.Channel
	scale float64
	off   float64
	sens  float64
}

// Normalize converts raw sample rows onto the canonical channel schema
// using the mapping table selected by the header's hardware identity. Any
// canonical channel with no mapped source column is left at the missing
// sentinel. The sensitivity override, when non-nil, replaces the header's
// declared counts-per-unit constants; this works around firmware whose
// sensor headers carry wrong values.
//
// Normalize is deterministic: identical (rows, header, override) inputs
// always produce identical output.
func Normalize(dataLines []string, h *header.Header, override header.SensorSpec) ([]types.Record, []types.Fault) {
	var faults []types.Fault

	table, fault := SelectTable(h.LoggerType, h.FirmwareVersion)
	if fault != nil {
		faults = append(faults, *fault)
	}

	colIndex := make(map[string]int, len(h.Columns))
	for i, name := range h.Columns {
		colIndex[name] = i
	}
	timeIdx, hasTime := colIndex["time"]
	if !hasTime {
		faults = append(faults, types.Fault{Field: "time", Reason: "no time column found, synthesizing from row position"})
	}

	sensors := h.Sensors
	if override != nil {
		sensors = override
	}

	var rules []compiledRule
	missingSens := make(map[string]bool)
	for _, r := range table.Rules {
		col, ok := colIndex[r.Source]
		if !ok {
			continue
		}

		sens := 1.0
		if r.Sensor != "" {
			info, ok := sensors[r.Sensor]
			if ok && info.Sensitivity != 0 {
				sens = float64(info.Sensitivity)
			} else if !missingSens[r.Sensor] {
				missingSens[r.Sensor] = true
				faults = append(faults, types.Fault{
					Field:  r.Sensor,
					Reason: "no counts-per-unit sensitivity available, values left in raw counts",
				})
			}
		}

		rules = append(rules, compiledRule{col: col, dest: r.Dest, scale: r.Scale, off: r.Offset, sens: sens})
	}

	sampleInterval := 0.0
	if h.SampleRate > 0 {
		sampleInterval = 1 / h.SampleRate
	}

	records := make([]types.Record, 0, len(dataLines))
	badRows := 0
	for i, line := range dataLines {
		fields := strings.Split(line, ",")

		t := float64(i) * sampleInterval
		if hasTime {
			v, err := parseField(fields, timeIdx)
			if err != nil {
				badRows++
				continue
			}
			t = v
		}

		rec := types.NewRecord(t)
		for _, cr := range rules {
			v, err := parseField(fields, cr.col)
			if err != nil {
				continue
			}
			rec.Values[cr.dest] = v/cr.sens*cr.scale + cr.off
		}

		if table.QuatCounts {
			normalizeQuat(&rec)
		}

		records = append(records, rec)
	}
	if badRows > 0 {
		faults = append(faults, types.Fault{
			Field:  "data",
			Reason: fmt.Sprintf("%d unparseable data rows skipped", badRows),
		})
	}

	return records, faults
}

// normalizeQuat RMS-normalizes the quaternion components of a record.
// Revisions logging quaternions as 16-bit counts land here after the
// table's 1/65536 scaling.
func normalizeQuat(rec *types.Record) {
	quats := []types.Channel{types.QuatW, types.QuatX, types.QuatY, types.QuatZ}

	var sum float64
	for _, c := range quats {
		v := rec.Values[c]
		if types.IsMissing(v) {
			return
		}
		sum += v * v
	}
	rms := math.Sqrt(sum)
	if rms == 0 {
		return
	}

	for _, c := range quats {
		rec.Values[c] /= rms
	}
}

// Derive fills the derived canonical channels for one session's records:
// total acceleration (vector sum of the accelerometer components), its
// centered rolling mean over rollingWindow seconds, and pressure altitude
// in meters and feet from the given ground-level pressure in Pascals.
func Derive(records []types.Record, rollingWindow, groundPressure float64) {
	for i := range records {
		ax := records[i].Values[types.AccelX]
		ay := records[i].Values[types.AccelY]
		az := records[i].Values[types.AccelZ]
		if !types.IsMissing(ax) && !types.IsMissing(ay) && !types.IsMissing(az) {
			records[i].Values[types.TotalAccel] = math.Sqrt(ax*ax + ay*ay + az*az)
		}

		p := records[i].Values[types.Pressure]
		if !types.IsMissing(p) && groundPressure > 0 {
			altM := 44330 * (1 - math.Pow(p/groundPressure, 1/5.225))
			records[i].Values[types.PressAltM] = altM
			records[i].Values[types.PressAltFt] = altM * 3.2808
		}
	}

	if rollingWindow <= 0 {
		return
	}

	half := rollingWindow / 2
	lo := 0
	for i := range records {
		for lo < len(records) && records[lo].Time < records[i].Time-half {
			lo++
		}

		var window []float64
		for j := lo; j < len(records) && records[j].Time <= records[i].Time+half; j++ {
			if v := records[j].Values[types.TotalAccel]; !types.IsMissing(v) {
				window = append(window, v)
			}
		}
		if len(window) > 0 {
			records[i].Values[types.TotalAccelRolling] = stat.Mean(window, nil)
		}
	}
}

func parseField(fields []string, idx int) (float64, error) {
	if idx >= len(fields) {
		return 0, fmt.Errorf("row has no column %d", idx)
	}
	return strconv.ParseFloat(strings.TrimSpace(fields[idx]), 64)
}
