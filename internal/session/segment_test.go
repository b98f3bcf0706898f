package session

import (
	"testing"

	"github.com/skydive-data/xbmini/internal/types"
)

// run builds a contiguous record run at the given rate.
func run(start float64, n int, rate float64) []types.Record {
	recs := make([]types.Record, n)
	for i := range recs {
		recs[i] = types.NewRecord(start + float64(i)/rate)
	}
	return recs
}

func params() Params {
	return Params{
		MaxGapFactor:      10,
		MinSessionSeconds: 0.5,
		SampleRate:        100,
	}
}

func TestSegmentSingleContiguousFile(t *testing.T) {
	files := []FileRecords{{Path: "a_001.CSV", Records: run(0, 200, 100)}}

	sessions := Segment(files, params())
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if n := len(sessions[0].Records); n != 200 {
		t.Errorf("got %d records, want 200", n)
	}
	if sessions[0].Index != 0 {
		t.Errorf("got session index %d, want 0", sessions[0].Index)
	}
}

func TestSegmentSpanningFilesMerged(t *testing.T) {
	// Rollover: second file continues the stream with no gap over threshold
	files := []FileRecords{
		{Path: "a_001.CSV", Records: run(0, 100, 100)},
		{Path: "a_002.CSV", Records: run(1.0, 100, 100)},
	}

	sessions := Segment(files, params())
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1 spanning both files", len(sessions))
	}
	if n := len(sessions[0].Records); n != 200 {
		t.Errorf("got %d records, want 200", n)
	}
	if len(sessions[0].Sources) != 2 {
		t.Errorf("got sources %v, want both files", sessions[0].Sources)
	}
}

func TestSegmentGapSplits(t *testing.T) {
	// Gap of 60s at 100Hz is far over 10x the 10ms expected interval
	files := []FileRecords{
		{Path: "a_001.CSV", Records: run(0, 100, 100)},
		{Path: "a_002.CSV", Records: run(61, 100, 100)},
	}

	sessions := Segment(files, params())
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}

	// No boundary overlap: each session owns exactly one file's records
	if len(sessions[0].Records) != 100 || len(sessions[1].Records) != 100 {
		t.Errorf("got %d+%d records, want 100+100", len(sessions[0].Records), len(sessions[1].Records))
	}
	if sessions[0].Index != 0 || sessions[1].Index != 1 {
		t.Errorf("session indices not sequential: %d, %d", sessions[0].Index, sessions[1].Index)
	}
}

func TestSegmentGapWithinOneFile(t *testing.T) {
	recs := append(run(0, 100, 100), run(300, 100, 100)...)
	files := []FileRecords{{Path: "a_001.CSV", Records: recs}}

	sessions := Segment(files, params())
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2 from a single file", len(sessions))
	}
}

func TestSegmentShutdownMarkerSplits(t *testing.T) {
	// Two captures, close in logged time because the uptime clock restarted,
	// separated only by the first file's shutdown footer.
	files := []FileRecords{
		{Path: "a_001.CSV", Records: run(0, 100, 100), Boundary: true},
		{Path: "a_002.CSV", Records: run(1.05, 100, 100)},
	}

	sessions := Segment(files, params())
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2 split on the shutdown marker", len(sessions))
	}
}

func TestSegmentRecordTimesRezeroed(t *testing.T) {
	files := []FileRecords{{Path: "a_001.CSV", Records: run(500, 200, 100)}}

	sessions := Segment(files, params())
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}

	if sessions[0].Records[0].Time != 0 {
		t.Errorf("first record time %v, want 0", sessions[0].Records[0].Time)
	}
	if sessions[0].Start != 500 {
		t.Errorf("session start %v, want original offset 500", sessions[0].Start)
	}
}

func TestSegmentShortRunsDiscarded(t *testing.T) {
	// 10 samples at 100Hz is 0.09s, under the 0.5s minimum
	files := []FileRecords{
		{Path: "a_001.CSV", Records: run(0, 10, 100)},
		{Path: "a_002.CSV", Records: run(100, 200, 100)},
	}

	sessions := Segment(files, params())
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1 after discarding the degenerate run", len(sessions))
	}
	if sessions[0].Index != 0 {
		t.Errorf("surviving session should be re-indexed to 0, got %d", sessions[0].Index)
	}
	if len(sessions[0].Records) != 200 {
		t.Errorf("got %d records, want 200", len(sessions[0].Records))
	}
}

func TestSegmentOverlapDropsLaterFile(t *testing.T) {
	// Clock re-sync: the second file repeats the earlier file's last 50
	// timestamps before continuing.
	files := []FileRecords{
		{Path: "a_001.CSV", Records: run(0, 100, 100)},
		{Path: "a_002.CSV", Records: run(0.5, 100, 100)},
	}

	sessions := Segment(files, params())
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}

	// 100 from the first file plus the second file's non-overlapping half
	if n := len(sessions[0].Records); n != 150 {
		t.Errorf("got %d records, want 150 after overlap drop", n)
	}

	// The merged stream must stay strictly monotonic
	recs := sessions[0].Records
	for i := 1; i < len(recs); i++ {
		if recs[i].Time <= recs[i-1].Time {
			t.Fatalf("non-monotonic timestamps at %d: %v then %v", i, recs[i-1].Time, recs[i].Time)
		}
	}
}

func TestSegmentIdempotent(t *testing.T) {
	files := []FileRecords{
		{Path: "a_001.CSV", Records: run(0, 100, 100)},
		{Path: "a_002.CSV", Records: run(61, 100, 100)},
	}

	first := Segment(files, params())

	// Re-segment each produced session: boundaries must not move
	for _, s := range first {
		again := Segment([]FileRecords{{Path: "re", Records: s.Records}}, params())
		if len(again) != 1 {
			t.Fatalf("re-segmenting session %d split it into %d", s.Index, len(again))
		}
		if len(again[0].Records) != len(s.Records) {
			t.Errorf("re-segmenting session %d changed record count: %d vs %d",
				s.Index, len(again[0].Records), len(s.Records))
		}
	}
}

func TestSegmentInferredInterval(t *testing.T) {
	p := params()
	p.SampleRate = 0 // no declared rate; infer from the stream

	files := []FileRecords{
		{Path: "a_001.CSV", Records: run(0, 100, 100)},
		{Path: "a_002.CSV", Records: run(61, 100, 100)},
	}

	sessions := Segment(files, p)
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions with inferred interval, want 2", len(sessions))
	}
}

func TestSegmentEmptyInput(t *testing.T) {
	if got := Segment(nil, params()); got != nil {
		t.Errorf("got %v, want nil for empty input", got)
	}
	if got := Segment([]FileRecords{{Path: "empty.CSV"}}, params()); got != nil {
		t.Errorf("got %v, want nil for a file with no records", got)
	}
}
