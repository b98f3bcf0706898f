// Package channel normalizes raw logger columns onto the canonical channel
// schema. Per-revision behavior is expressed as data: a lookup table of
// immutable mapping rules keyed by hardware family and firmware range, so
// supporting a new revision is a table change rather than new branching in
// the normalizer.
package channel

import (
	"fmt"

	"github.com/skydive-data/xbmini/internal/header"
	"github.com/skydive-data/xbmini/internal/types"
)

// Rule maps one source column onto a canonical channel. Value conversion
// is v*Scale + Offset, optionally divided first by the counts-per-unit
// sensitivity the header declares for the named sensor. Override marks
// rules for revisions that report a physical quantity through an atypical
// column or encoding.
type Rule struct {
	Source   string
	Dest     types.Channel
	Scale    float64
	Offset   float64
	Sensor   string
	Override bool
}

// Table is the channel-mapping table for one hardware family over a
// firmware range. MaxFirmware of 0 leaves the range open-ended.
type Table struct {
	Name        string
	LoggerType  string
	MinFirmware int
	MaxFirmware int

	// QuatCounts marks revisions logging quaternions as 16-bit counts that
	// must be RMS-normalized after scaling.
	QuatCounts bool

	Rules []Rule
}

func (t *Table) matches(loggerType string, firmware int) bool {
	if t.LoggerType != loggerType {
		return false
	}
	if firmware < t.MinFirmware {
		return false
	}
	if t.MaxFirmware != 0 && firmware > t.MaxFirmware {
		return false
	}
	return true
}

// distance scores how far a header's identity is from this table, for the
// nearest-revision fallback. Same hardware family always beats a family
// mismatch regardless of firmware spread.
func (t *Table) distance(loggerType string, firmware int) int {
	const familyPenalty = 1 << 20

	d := 0
	if t.LoggerType != loggerType {
		d += familyPenalty
	}
	if firmware < t.MinFirmware {
		d += t.MinFirmware - firmware
	} else if t.MaxFirmware != 0 && firmware > t.MaxFirmware {
		d += firmware - t.MaxFirmware
	}
	return d
}

var hamIMURules = []Rule{
	{Source: "accel_x", Dest: types.AccelX, Scale: 1, Sensor: "Accel"},
	{Source: "accel_y", Dest: types.AccelY, Scale: 1, Sensor: "Accel"},
	{Source: "accel_z", Dest: types.AccelZ, Scale: 1, Sensor: "Accel"},
	{Source: "gyro_x", Dest: types.GyroX, Scale: 1, Sensor: "Gyro"},
	{Source: "gyro_y", Dest: types.GyroY, Scale: 1, Sensor: "Gyro"},
	{Source: "gyro_z", Dest: types.GyroZ, Scale: 1, Sensor: "Gyro"},
	{Source: "mag_x", Dest: types.MagX, Scale: 1, Sensor: "Mag"},
	{Source: "mag_y", Dest: types.MagY, Scale: 1, Sensor: "Mag"},
	{Source: "mag_z", Dest: types.MagZ, Scale: 1, Sensor: "Mag"},
	{Source: "quat_w", Dest: types.QuatW, Scale: 1.0 / 65536},
	{Source: "quat_x", Dest: types.QuatX, Scale: 1.0 / 65536},
	{Source: "quat_y", Dest: types.QuatY, Scale: 1.0 / 65536},
	{Source: "quat_z", Dest: types.QuatZ, Scale: 1.0 / 65536},
	{Source: "pressure", Dest: types.Pressure, Scale: 1},
	// Temperature is recorded in milli-degree Celsius
	{Source: "temperature", Dest: types.Temperature, Scale: 0.001},
}

// legacyHAMRules covers HAM-IMU firmware below 2108: same column layout,
// but the T column carries the MPU die temperature in raw counts rather
// than BMP280 milli-degC, converted per the MPU-9250 datasheet.
var legacyHAMRules = func() []Rule {
	rules := make([]Rule, len(hamIMURules))
	copy(rules, hamIMURules)
	for i, r := range rules {
		if r.Dest == types.Temperature {
			rules[i] = Rule{Source: r.Source, Dest: types.Temperature, Scale: 1.0 / 333.87, Offset: 21.0, Override: true}
		}
	}
	return rules
}()

var imuGPSRules = []Rule{
	// IMU-GPS devices report measured values in milli-units, not counts
	{Source: "accel_x", Dest: types.AccelX, Scale: 0.001},
	{Source: "accel_y", Dest: types.AccelY, Scale: 0.001},
	{Source: "accel_z", Dest: types.AccelZ, Scale: 0.001},
	{Source: "gyro_x", Dest: types.GyroX, Scale: 0.001},
	{Source: "gyro_y", Dest: types.GyroY, Scale: 0.001},
	{Source: "gyro_z", Dest: types.GyroZ, Scale: 0.001},
	{Source: "mag_x", Dest: types.MagX, Scale: 1},
	{Source: "mag_y", Dest: types.MagY, Scale: 1},
	{Source: "mag_z", Dest: types.MagZ, Scale: 1},
	{Source: "pressure", Dest: types.Pressure, Scale: 1},
	{Source: "temperature", Dest: types.Temperature, Scale: 0.001},
	{Source: "time_of_week", Dest: types.TimeOfWeek, Scale: 1},
	{Source: "latitude", Dest: types.Latitude, Scale: 1},
	{Source: "longitude", Dest: types.Longitude, Scale: 1},
	{Source: "height_ellipsoid", Dest: types.HeightEllipsoid, Scale: 1},
	{Source: "height_msl", Dest: types.HeightMSL, Scale: 1},
	{Source: "hdop", Dest: types.HDOP, Scale: 1},
	{Source: "vdop", Dest: types.VDOP, Scale: 1},
}

// tables holds every known (hardware family, firmware range) mapping, in
// selection-priority order.
var tables = []Table{
	{
		Name:        "ham-imu-2108",
		LoggerType:  header.TypeHAMIMU,
		MinFirmware: 2108,
		QuatCounts:  true,
		Rules:       hamIMURules,
	},
	{
		Name:        "ham-imu-legacy",
		LoggerType:  header.TypeHAMIMU,
		MinFirmware: 0,
		MaxFirmware: 2107,
		QuatCounts:  true,
		Rules:       legacyHAMRules,
	},
	{
		Name:        "imu-gps-2570",
		LoggerType:  header.TypeIMUGPS,
		MinFirmware: 2500,
		Rules:       imuGPSRules,
	},
}

// SelectTable picks the mapping table for the given hardware identity. If
// no table matches exactly, the closest known revision's table is returned
// along with a fault describing the fallback; the second return is nil for
// an exact match.
func SelectTable(loggerType string, firmware int) (*Table, *types.Fault) {
	for i := range tables {
		if tables[i].matches(loggerType, firmware) {
			return &tables[i], nil
		}
	}

	best := 0
	bestDist := tables[0].distance(loggerType, firmware)
	for i := 1; i < len(tables); i++ {
		if d := tables[i].distance(loggerType, firmware); d < bestDist {
			best = i
			bestDist = d
		}
	}

	fault := &types.Fault{
		Field: "channel_table",
		Reason: fmt.Sprintf("no channel table for hardware %q firmware %d, falling back to %q",
			loggerType, firmware, tables[best].Name),
	}
	return &tables[best], fault
}
