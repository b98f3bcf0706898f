// Package types defines the canonical data model shared by the log
// ingestion pipeline: normalized records, reconstructed sessions, and the
// per-logger XBMLog aggregate.
package types

import "math"

// Channel indexes one canonical sensor field in the normalized schema.
// The channel set is fixed and hardware-independent: every Record carries
// every channel regardless of the source hardware revision, with NaN
// standing in for channels the source never reported.
type Channel int

const (
	AccelX Channel = iota
	AccelY
	AccelZ
	GyroX
	GyroY
	GyroZ
	MagX
	MagY
	MagZ
	QuatW
	QuatX
	QuatY
	QuatZ
	Pressure
	Temperature
	TotalAccel
	TotalAccelRolling
	PressAltM
	PressAltFt
	TimeOfWeek
	Latitude
	Longitude
	HeightEllipsoid
	HeightMSL
	HDOP
	VDOP
	FixQuality

	// NumChannels is the size of the canonical channel set.
	NumChannels
)

var channelNames = [NumChannels]string{
	AccelX:            "accel_x",
	AccelY:            "accel_y",
	AccelZ:            "accel_z",
	GyroX:             "gyro_x",
	GyroY:             "gyro_y",
	GyroZ:             "gyro_z",
	MagX:              "mag_x",
	MagY:              "mag_y",
	MagZ:              "mag_z",
	QuatW:             "quat_w",
	QuatX:             "quat_x",
	QuatY:             "quat_y",
	QuatZ:             "quat_z",
	Pressure:          "pressure",
	Temperature:       "temperature",
	TotalAccel:        "total_accel",
	TotalAccelRolling: "total_accel_rolling",
	PressAltM:         "press_alt_m",
	PressAltFt:        "press_alt_ft",
	TimeOfWeek:        "time_of_week",
	Latitude:          "latitude",
	Longitude:         "longitude",
	HeightEllipsoid:   "height_ellipsoid",
	HeightMSL:         "height_msl",
	HDOP:              "hdop",
	VDOP:              "vdop",
	FixQuality:        "fix_quality",
}

// String returns the canonical column name for the channel.
func (c Channel) String() string {
	if c < 0 || c >= NumChannels {
		return "unknown"
	}
	return channelNames[c]
}

// ChannelByName resolves a canonical column name back to its Channel. The
// second return is false if the name is not part of the canonical set.
func ChannelByName(name string) (Channel, bool) {
	for i, n := range channelNames {
		if n == name {
			return Channel(i), true
		}
	}
	return 0, false
}

// ChannelNames returns the canonical column names in channel order.
func ChannelNames() []string {
	names := make([]string, NumChannels)
	copy(names, channelNames[:])
	return names
}

// Missing is the sentinel recorded for any canonical channel the source
// hardware did not report. IsMissing is the only supported test for it.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether a channel value is the missing sentinel.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Record is one normalized reading: a timestamp expressed as elapsed
// seconds plus a value for every canonical channel.
type Record struct {
	Time   float64
	Values [NumChannels]float64
}

// NewRecord returns a Record at the given elapsed time with every channel
// set to the missing sentinel.
func NewRecord(t float64) Record {
	r := Record{Time: t}
	for i := range r.Values {
		r.Values[i] = math.NaN()
	}
	return r
}
