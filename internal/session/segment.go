// Package session reconstructs logical logging sessions from normalized
// record streams. A single raw file may hold several independent captures
// (power cycles, re-arms) and a single capture may span several rollover
// files; the segmenter splits and merges on time continuity and on the
// logger's explicit shutdown markers.
package session

import (
	"sort"

	"github.com/skydive-data/xbmini/internal/types"
)

// Default segmentation policy. The gap threshold and minimum session
// length were not pinned down by available firmware timing material, so
// both are explicit parameters with these as starting points.
const (
	DefaultMaxGapFactor      = 10.0
	DefaultMinSessionSeconds = 1.0
)

// Params controls segmentation. MaxGapFactor expresses the maximum
// tolerated inter-sample gap as a multiple of the expected sample
// interval: a larger gap signals a power cycle or re-arm rather than a
// dropped sample. Sessions shorter than MinSessionSeconds are discarded
// as too short to be a meaningful capture. SampleRate is the declared
// rate in Hz; when zero the expected interval is inferred from the median
// observed interval of the stream.
type Params struct {
	MaxGapFactor      float64
	MinSessionSeconds float64
	SampleRate        float64
}

// DefaultParams returns the default segmentation policy for the given
// declared sample rate.
func DefaultParams(sampleRate float64) Params {
	return Params{
		MaxGapFactor:      DefaultMaxGapFactor,
		MinSessionSeconds: DefaultMinSessionSeconds,
		SampleRate:        sampleRate,
	}
}

// FileRecords is one source file's contribution to a logger group's
// stream, in discovery order. Boundary marks a file whose footer carries
// an explicit shutdown marker: the session cannot continue into the next
// file.
type FileRecords struct {
	Path     string
	Records  []types.Record
	Boundary bool
}

type annotated struct {
	rec           types.Record
	src           string
	boundaryAfter bool
}

// Segment partitions the ordered, concatenated record stream of one
// logger group into sessions. Segmentation is deterministic and
// idempotent: the same input and parameters always yield the same session
// boundaries, and re-segmenting an already-contiguous session is a no-op.
func Segment(files []FileRecords, p Params) []types.Session {
	stream := concatenate(files)
	if len(stream) == 0 {
		return nil
	}

	interval := expectedInterval(stream, p.SampleRate)
	maxGap := p.MaxGapFactor * interval

	var sessions []types.Session
	begin := 0
	for i := 1; i <= len(stream); i++ {
		split := i == len(stream) ||
			stream[i-1].boundaryAfter ||
			stream[i].rec.Time-stream[i-1].rec.Time > maxGap ||
			stream[i].rec.Time < stream[i-1].rec.Time
		if !split {
			continue
		}

		if s, ok := build(stream[begin:i], p.MinSessionSeconds); ok {
			s.Index = len(sessions)
			sessions = append(sessions, s)
		}
		begin = i
	}

	return sessions
}

// concatenate merges the per-file record streams into one annotated
// stream, applying the overlap policy: when a later file's records
// overlap the earlier file's in time (clock re-sync producing duplicate
// timestamps), the later file's overlapping records are dropped in favor
// of the earlier file's. A backward jump directly after an explicit
// shutdown marker is not an overlap but a logger restart whose uptime
// clock began again; those records are kept and the marker forces the
// session split.
func concatenate(files []FileRecords) []annotated {
	var stream []annotated
	prevBoundary := false

	for _, f := range files {
		recs := make([]types.Record, len(f.Records))
		copy(recs, f.Records)
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].Time < recs[j].Time })

		if len(stream) > 0 && !prevBoundary {
			lastTime := stream[len(stream)-1].rec.Time
			trimmed := recs[:0]
			for _, r := range recs {
				if r.Time > lastTime {
					trimmed = append(trimmed, r)
				}
			}
			recs = trimmed
		}

		for _, r := range recs {
			stream = append(stream, annotated{rec: r, src: f.Path})
		}
		if f.Boundary {
			if len(stream) > 0 {
				stream[len(stream)-1].boundaryAfter = true
			}
			prevBoundary = true
		} else if len(f.Records) > 0 {
			prevBoundary = false
		}
	}

	return stream
}

// build turns one candidate run of records into a Session, re-zeroing
// record times to the session start. Runs shorter than the minimum
// session length are rejected rather than emitted as degenerate sessions.
func build(run []annotated, minSeconds float64) (types.Session, bool) {
	if len(run) == 0 {
		return types.Session{}, false
	}

	start := run[0].rec.Time
	end := run[len(run)-1].rec.Time
	if end-start < minSeconds {
		return types.Session{}, false
	}

	s := types.Session{
		Start:   start,
		End:     end,
		Records: make([]types.Record, len(run)),
	}

	seen := make(map[string]bool)
	for i, a := range run {
		rec := a.rec
		rec.Time -= start
		s.Records[i] = rec

		if !seen[a.src] {
			seen[a.src] = true
			s.Sources = append(s.Sources, a.src)
		}
	}

	return s, true
}

func expectedInterval(stream []annotated, sampleRate float64) float64 {
	if sampleRate > 0 {
		return 1 / sampleRate
	}

	var diffs []float64
	for i := 1; i < len(stream); i++ {
		if d := stream[i].rec.Time - stream[i-1].rec.Time; d > 0 {
			diffs = append(diffs, d)
		}
	}
	return median(diffs)
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		// Degenerate stream; fall back to a nominal 200 Hz interval.
		return 0.005
	}

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
