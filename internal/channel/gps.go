package channel

import (
	"github.com/skydive-data/xbmini/internal/types"
)

// GPS no-fix sentinel: the CAM-M8 reports zeroed coordinates until it has
// acquired a fix, which would otherwise look like a plausible position on
// the equator/prime meridian.
func noFix(lat, lon float64) bool {
	return lat == 0 && lon == 0
}

// gpsChannels are the position channels blanked for no-fix rows. Time of
// week is kept since it is valid without a position solution.
var gpsChannels = []types.Channel{
	types.Latitude,
	types.Longitude,
	types.HeightEllipsoid,
	types.HeightMSL,
	types.HDOP,
	types.VDOP,
}

// NormalizeGPS canonicalizes GPS channels in place and returns the same
// slice. Coordinates from known firmware are already signed decimal
// degrees (positive north/east) and heights are already meters, so for
// canonical input this is a no-op; revisions deviating from that
// convention are corrected by their channel table before reaching here.
// Rows carrying the logger's no-fix sentinel have their position channels
// replaced with the canonical missing sentinel and fix quality zero, while
// rows with a valid position get fix quality one.
//
// NormalizeGPS is idempotent: re-applying it to already-canonical records
// changes nothing.
func NormalizeGPS(records []types.Record) []types.Record {
	for i := range records {
		lat := records[i].Values[types.Latitude]
		lon := records[i].Values[types.Longitude]

		// No GPS hardware: position channels stay at the missing sentinel.
		if types.IsMissing(lat) && types.IsMissing(lon) {
			continue
		}

		if noFix(lat, lon) {
			for _, c := range gpsChannels {
				records[i].Values[c] = types.Missing()
			}
			records[i].Values[types.FixQuality] = 0
			continue
		}

		records[i].Values[types.FixQuality] = 1
	}
	return records
}
