package types

// Fault records one non-fatal parsing or normalization anomaly. Faults are
// accumulated and attached to the value they affected rather than raised,
// so a single bad header field or unreadable sibling file never aborts a
// combine run.
type Fault struct {
	Field  string
	Reason string
}

func (f Fault) String() string {
	return f.Field + ": " + f.Reason
}

// Session is one contiguous physical capture interval reconstructed from
// one or more raw files. Record times are re-zeroed so each session starts
// at zero seconds; Start and End preserve the session's bounds in the
// original concatenated stream.
type Session struct {
	Index   int
	Start   float64
	End     float64
	Records []Record
	Sources []string
}

// Duration returns the elapsed length of the session in seconds.
func (s *Session) Duration() float64 {
	return s.End - s.Start
}

// XBMLog owns the sessions reconstructed from one logger's file group,
// plus the aggregate metadata needed to audit data quality without
// re-parsing the raw files. Instances are immutable after construction.
type XBMLog struct {
	Serial          string
	LoggerType      string
	FirmwareVersion int
	HeaderSpec      []string
	Sessions        []Session
	Faults          []Fault
	SourceFiles     []string
}

// RecordCount returns the total number of records across all sessions.
func (x *XBMLog) RecordCount() int {
	var n int
	for i := range x.Sessions {
		n += len(x.Sessions[i].Records)
	}
	return n
}
