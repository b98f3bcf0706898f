package combine

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/skydive-data/xbmini/internal/header"
	"github.com/skydive-data/xbmini/internal/types"
)

// metadata is the JSON document serialized into the single ";"-prefixed
// line at the top of a combined output file. The downstream trimming tool
// reads it back verbatim, so field names are part of the output contract.
type metadata struct {
	Serial          string        `json:"serial"`
	LoggerType      string        `json:"logger_type"`
	FirmwareVersion int           `json:"firmware_version"`
	HeaderSpec      []string      `json:"header_spec"`
	SourceFiles     []string      `json:"source_files"`
	Faults          []faultRecord `json:"faults"`
}

type faultRecord struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// OutputPath returns the combined output filename for a logger group's
// directory, alongside the source files.
func OutputPath(groupDir string) string {
	return filepath.Join(groupDir, filepath.Base(groupDir)+"_processed.CSV")
}

// WriteGroup serializes an XBMLog to its group directory's combined
// output file, overwriting any pre-existing combined file there.
func WriteGroup(xbm *types.XBMLog, groupDir string) (string, error) {
	out := OutputPath(groupDir)

	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("creating combined output: %w", err)
	}
	defer f.Close()

	if err := Write(xbm, f); err != nil {
		return "", err
	}
	return out, nil
}

// Write serializes an XBMLog: one ";"-prefixed JSON metadata line, then
// CSV rows of the canonical channel schema with a session index column
// and an elapsed-seconds timestamp column. Serialization is deterministic
// so combining the same group twice yields byte-identical output; missing
// channel values are written as empty fields.
func Write(xbm *types.XBMLog, w io.Writer) error {
	bw := bufio.NewWriter(w)

	meta := metadata{
		Serial:          xbm.Serial,
		LoggerType:      xbm.LoggerType,
		FirmwareVersion: xbm.FirmwareVersion,
		HeaderSpec:      xbm.HeaderSpec,
		SourceFiles:     baseNames(xbm.SourceFiles),
		Faults:          make([]faultRecord, 0, len(xbm.Faults)),
	}
	for _, f := range xbm.Faults {
		meta.Faults = append(meta.Faults, faultRecord{Field: f.Field, Reason: f.Reason})
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("serializing log metadata: %w", err)
	}
	if _, err := fmt.Fprintf(bw, "%s%s\n", header.Prefix, metaJSON); err != nil {
		return err
	}

	cw := csv.NewWriter(bw)
	cols := append([]string{"session", "time"}, types.ChannelNames()...)
	if err := cw.Write(cols); err != nil {
		return err
	}

	row := make([]string, len(cols))
	for _, s := range xbm.Sessions {
		row[0] = strconv.Itoa(s.Index)
		for _, rec := range s.Records {
			row[1] = formatValue(rec.Time)
			for c, v := range rec.Values {
				row[2+c] = formatValue(v)
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	return bw.Flush()
}

// ReadCombined rebuilds an XBMLog's metadata and records from a combined
// output file, the same format the external trimming tool consumes.
func ReadCombined(r io.Reader) (*types.XBMLog, error) {
	br := bufio.NewReader(r)

	metaLine, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading metadata line: %w", err)
	}
	if len(metaLine) == 0 || metaLine[:1] != header.Prefix {
		return nil, fmt.Errorf("combined file has no metadata line")
	}

	var meta metadata
	if err := json.Unmarshal([]byte(metaLine[1:]), &meta); err != nil {
		return nil, fmt.Errorf("parsing metadata line: %w", err)
	}

	cr := csv.NewReader(br)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing combined rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("combined file has no column header row")
	}

	xbm := &types.XBMLog{
		Serial:          meta.Serial,
		LoggerType:      meta.LoggerType,
		FirmwareVersion: meta.FirmwareVersion,
		HeaderSpec:      meta.HeaderSpec,
		SourceFiles:     meta.SourceFiles,
	}
	for _, f := range meta.Faults {
		xbm.Faults = append(xbm.Faults, types.Fault{Field: f.Field, Reason: f.Reason})
	}

	for _, row := range rows[1:] {
		if len(row) != int(types.NumChannels)+2 {
			return nil, fmt.Errorf("combined row has %d columns, want %d", len(row), types.NumChannels+2)
		}

		idx, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("bad session index %q: %w", row[0], err)
		}
		if len(xbm.Sessions) == 0 || xbm.Sessions[len(xbm.Sessions)-1].Index != idx {
			xbm.Sessions = append(xbm.Sessions, types.Session{Index: idx})
		}
		cur := &xbm.Sessions[len(xbm.Sessions)-1]

		rec := types.NewRecord(parseValue(row[1]))
		for c := 0; c < int(types.NumChannels); c++ {
			rec.Values[c] = parseValue(row[2+c])
		}
		cur.Records = append(cur.Records, rec)
		cur.End = rec.Time
	}

	return xbm, nil
}

func formatValue(v float64) string {
	if types.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseValue(s string) float64 {
	if s == "" {
		return types.Missing()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return types.Missing()
	}
	return v
}

func baseNames(paths []string) []string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return names
}
