// Package header implements fault-tolerant parsing of the metadata block
// at the top of a raw XBM logger file.
//
// Raw files open with a run of ";"-prefixed comment lines (device identity,
// firmware, sensor configuration, column names) followed by the tabular
// sample data, optionally closed by a ";"-prefixed shutdown footer. A
// malformed or unrecognized metadata field is recorded as a fault and
// replaced with a sentinel so downstream stages can proceed; only a file
// with no recognizable header structure is rejected outright.
package header

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/skydive-data/xbmini/internal/types"
)

// Prefix marks header and footer comment lines in raw and processed logs.
const Prefix = ";"

// Logger hardware families from the Title header line.
const (
	TypeHAMIMU = "HAM-IMU+alt"
	TypeIMUGPS = "GPS"
)

// Sentinel values substituted when a header field cannot be parsed.
const (
	UnknownFirmware = -1
	UnknownSerial   = "unknown"
)

// ErrMalformedLogFile is returned when a file lacks the minimum structure
// needed to locate its data section. It is the only unrecoverable header
// parsing condition; everything else degrades to recorded faults.
type ErrMalformedLogFile struct {
	Reason string
}

func (e *ErrMalformedLogFile) Error() string {
	return "malformed log file: " + e.Reason
}

var versionRe = regexp.MustCompile(`Version,\s+(\d+)[\w\s,]+SN:(\w+)`)

// headerMap translates the logger's short column names to canonical names.
// Unmapped columns are kept as-is and recorded as faults.
var headerMap = map[string]string{
	"Time":      "time",
	"Ax":        "accel_x",
	"Ay":        "accel_y",
	"Az":        "accel_z",
	"Gx":        "gyro_x",
	"Gy":        "gyro_y",
	"Gz":        "gyro_z",
	"Qw":        "quat_w",
	"Qx":        "quat_x",
	"Qy":        "quat_y",
	"Qz":        "quat_z",
	"Mx":        "mag_x",
	"My":        "mag_y",
	"Mz":        "mag_z",
	"P":         "pressure",
	"T":         "temperature",
	"TOW":       "time_of_week",
	"Lat":       "latitude",
	"Lon":       "longitude",
	"Height(m)": "height_ellipsoid",
	"MSL(m)":    "height_msl",
	"hdop(m)":   "hdop",
	"vdop(m)":   "vdop",
}

// SensorInfo is the configuration of one on-board sensor as declared by a
// header line of the form "<name>, <sample rate>, <counts/unit>, <full
// scale>, <units>", e.g. ";Accel, 225, 1000, 16, g".
type SensorInfo struct {
	Name        string
	SampleRate  int
	Sensitivity int
	FullScale   int
	Units       string
}

// SensorSpec maps sensor names ("Accel", "Gyro", "Mag") to their declared
// configuration. Callers may supply one as an override for firmware whose
// headers carry wrong counts-per-unit constants.
type SensorSpec map[string]SensorInfo

// Header is the parsed metadata block of one raw log file. A Header with
// faults is still usable: every field a fault refers to holds a documented
// sentinel instead of aborting the parse.
type Header struct {
	NumLines        int
	LoggerType      string
	FirmwareVersion int
	Serial          string
	StartTime       time.Time
	SampleRate      float64
	Columns         []string
	Sensors         SensorSpec
	Faults          []types.Fault
}

// Fault appends a recoverable per-field fault to the header.
func (h *Header) Fault(field, reason string) {
	h.Faults = append(h.Faults, types.Fault{Field: field, Reason: reason})
}

// RawLog is one raw file split into its structural sections. DataLines
// hold the unparsed sample rows; FooterLines hold any trailing comment
// lines, which carry the logger's shutdown markers.
type RawLog struct {
	HeaderLines []string
	DataLines   []string
	FooterLines []string
}

// Shutdown reports whether the file ends with an explicit logger shutdown
// footer (power switch or low battery). A file without one was closed due
// to a size rollover, so its successor continues the same session.
func (r *RawLog) Shutdown() bool {
	for _, line := range r.FooterLines {
		if strings.Contains(line, "shutdown") {
			return true
		}
	}
	return false
}

// ExtractSections splits a raw log file into header, data, and footer
// sections. It fails only when the file carries no recognizable header
// block or when the device aborted logging during self-test, printing a
// sensor fault (e.g. "MPU Fault") in place of data.
func ExtractSections(r io.Reader) (*RawLog, error) {
	var raw RawLog
	inData := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if strings.HasPrefix(line, Prefix) {
			stripped := strings.TrimSpace(strings.TrimLeft(line, Prefix))
			if inData {
				raw.FooterLines = append(raw.FooterLines, stripped)
			} else {
				raw.HeaderLines = append(raw.HeaderLines, stripped)
			}
			continue
		}

		// During self-test the device may detect a sensor fault, printed as
		// a bare non-comment line that pre-empts the data section.
		if strings.Contains(line, "Fault") {
			return nil, &ErrMalformedLogFile{Reason: fmt.Sprintf("sensor fault encountered: %q", strings.TrimSpace(line))}
		}

		inData = true
		raw.DataLines = append(raw.DataLines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading log file: %w", err)
	}

	if len(raw.HeaderLines) == 0 {
		return nil, &ErrMalformedLogFile{Reason: "no header lines found"}
	}

	return &raw, nil
}

// Parse builds a Header from the extracted header lines. Individual
// malformed or unrecognized fields are recorded as faults with sentinel
// substitutions; Parse fails only when the column-name line that locates
// the data section cannot be identified.
func Parse(headerLines []string) (*Header, error) {
	h := &Header{
		NumLines:        len(headerLines),
		FirmwareVersion: UnknownFirmware,
		Serial:          UnknownSerial,
		Sensors:         make(SensorSpec),
	}

	sawVersion := false
	sawSensor := make(map[string]bool)
	for _, line := range headerLines {
		switch {
		case strings.HasPrefix(line, "Title"):
			h.parseTitle(line)
		case strings.HasPrefix(line, "Version"):
			sawVersion = true
			h.parseVersion(line)
		case strings.HasPrefix(line, "Start_time"):
			h.parseStartTime(line)
		case strings.HasPrefix(line, "Accel"), strings.HasPrefix(line, "Gyro"), strings.HasPrefix(line, "Mag,"):
			sawSensor[splitTrim(line)[0]] = true
			h.parseSensor(line)
		case strings.HasPrefix(line, "LSM6DSM"):
			h.parseLSMRate(line)
		}
	}

	if h.LoggerType == "" {
		h.Fault("Title", "no Title line found, hardware revision unknown")
	}
	if !sawVersion {
		h.Fault("Version", "no Version line found")
	}

	// The column-name line is the last header line; without it there is no
	// way to interpret the data section.
	colLine := headerLines[len(headerLines)-1]
	if !strings.HasPrefix(colLine, "Time") {
		return nil, &ErrMalformedLogFile{Reason: "no column-name header line found"}
	}
	h.Columns = h.mapColumns(colLine)

	if h.LoggerType == TypeHAMIMU || h.LoggerType == "" {
		for _, name := range []string{"Accel", "Gyro", "Mag"} {
			if _, ok := h.Sensors[name]; !ok && !sawSensor[name] {
				h.Fault(name, "no sensor configuration header line found")
			}
		}
	}

	if h.SampleRate == 0 {
		if accel, ok := h.Sensors["Accel"]; ok {
			h.SampleRate = float64(accel.SampleRate)
		}
	}

	return h, nil
}

// ParseFile is a helper pipeline from a raw reader to a parsed header plus
// the file's data and footer sections.
func ParseFile(r io.Reader) (*Header, *RawLog, error) {
	raw, err := ExtractSections(r)
	if err != nil {
		return nil, nil, err
	}

	h, err := Parse(raw.HeaderLines)
	if err != nil {
		return nil, nil, err
	}

	return h, raw, nil
}

func (h *Header) parseTitle(line string) {
	// Expected like "Title, http://www.gcdataconcepts.com, HAM-IMU+alt, MPU9250 BMP280"
	chunks := splitTrim(line)
	if len(chunks) < 3 {
		h.Fault("Title", fmt.Sprintf("unexpected Title line formatting: %q", line))
		return
	}

	declared := chunks[2]
	switch {
	case declared == TypeHAMIMU:
		h.LoggerType = TypeHAMIMU
	case declared == TypeIMUGPS || contains(chunks[2:], TypeIMUGPS):
		h.LoggerType = TypeIMUGPS
	default:
		// Preserve the raw declaration; the channel normalizer falls back
		// to the nearest known revision's table.
		h.LoggerType = declared
		h.Fault("Title", fmt.Sprintf("unrecognized hardware revision: %q", declared))
	}
}

func (h *Header) parseVersion(line string) {
	m := versionRe.FindStringSubmatch(line)
	if m == nil {
		h.Fault("Version", fmt.Sprintf("unexpected Version line formatting: %q", line))
		return
	}

	fw, err := strconv.Atoi(m[1])
	if err != nil {
		h.Fault("Version", fmt.Sprintf("non-numeric firmware version: %q", m[1]))
		return
	}

	h.FirmwareVersion = fw
	h.Serial = m[2]
}

func (h *Header) parseStartTime(line string) {
	// Expected like "Start_time, 2022-09-26, 08:13:29.030"
	chunks := splitTrim(line)
	if len(chunks) < 3 {
		h.Fault("Start_time", fmt.Sprintf("unexpected Start_time line formatting: %q", line))
		return
	}

	ts, err := time.Parse("2006-01-02 15:04:05.000", chunks[1]+" "+chunks[2])
	if err != nil {
		h.Fault("Start_time", fmt.Sprintf("unparseable start timestamp: %q", chunks[1]+" "+chunks[2]))
		return
	}
	h.StartTime = ts
}

func (h *Header) parseSensor(line string) {
	// Expected like "Accel, 225, 1000, 16, g"
	chunks := splitTrim(line)
	if len(chunks) < 5 {
		h.Fault(chunks[0], fmt.Sprintf("unexpected sensor line formatting: %q", line))
		return
	}

	sr, err1 := strconv.Atoi(chunks[1])
	sens, err2 := strconv.Atoi(chunks[2])
	fs, err3 := strconv.Atoi(chunks[3])
	if err1 != nil || err2 != nil || err3 != nil {
		h.Fault(chunks[0], fmt.Sprintf("non-numeric sensor configuration: %q", line))
		return
	}

	h.Sensors[chunks[0]] = SensorInfo{
		Name:        chunks[0],
		SampleRate:  sr,
		Sensitivity: sens,
		FullScale:   fs,
		Units:       chunks[4],
	}
}

func (h *Header) parseLSMRate(line string) {
	// Expected like "LSM6DSM, SR,104,Hz, Units, mG, mdps, fullscale gyro 250dps, accel 4g"
	chunks := splitTrim(line)
	for i, chunk := range chunks {
		if chunk == "SR" && i+1 < len(chunks) {
			sr, err := strconv.ParseFloat(chunks[i+1], 64)
			if err != nil {
				h.Fault("LSM6DSM", fmt.Sprintf("non-numeric sample rate: %q", chunks[i+1]))
				return
			}
			h.SampleRate = sr
			return
		}
	}
	h.Fault("LSM6DSM", fmt.Sprintf("no sample rate found in sensor line: %q", line))
}

func (h *Header) mapColumns(line string) []string {
	var cols []string
	for _, shortname := range splitTrim(line) {
		mapped, ok := headerMap[shortname]
		if !ok {
			h.Fault(shortname, "could not map column header to a canonical channel")
			cols = append(cols, shortname)
			continue
		}
		cols = append(cols, mapped)
	}
	return cols
}

func splitTrim(line string) []string {
	chunks := strings.Split(line, ",")
	for i := range chunks {
		chunks[i] = strings.TrimSpace(chunks[i])
	}
	return chunks
}

func contains(chunks []string, want string) bool {
	for _, c := range chunks {
		if c == want {
			return true
		}
	}
	return false
}
