package rinex

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/de-bkg/tosmeta/pkg/gnss"
)

// Header labels.
const (
	LabelVersion      = "RINEX VERSION / TYPE"
	LabelPgm          = "PGM / RUN BY / DATE"
	LabelComment      = "COMMENT"
	LabelMarkerName   = "MARKER NAME"
	LabelMarkerNumber = "MARKER NUMBER"
	LabelMarkerType   = "MARKER TYPE"
	LabelObserver     = "OBSERVER / AGENCY"
	LabelReceiver     = "REC # / TYPE / VERS"
	LabelAntenna      = "ANT # / TYPE"
	LabelPosition     = "APPROX POSITION XYZ"
	LabelDelta        = "ANTENNA: DELTA H/E/N"
	LabelInterval     = "INTERVAL"
	LabelFirstObs     = "TIME OF FIRST OBS"
	LabelEndOfHeader  = "END OF HEADER"
)

// Labels are the header labels whose fields are extracted, in file order.
var Labels = []string{
	LabelMarkerName,
	LabelMarkerNumber,
	LabelObserver,
	LabelReceiver,
	LabelAntenna,
	LabelPosition,
	LabelDelta,
	LabelInterval,
	LabelFirstObs,
}

// RequiredLabels must be present in an observation header.
var RequiredLabels = []string{
	LabelVersion,
	LabelMarkerName,
	LabelReceiver,
	LabelAntenna,
	LabelPosition,
	LabelDelta,
	LabelFirstObs,
	LabelEndOfHeader,
}

// headerOrder is the usual order of the labels in a header, used for inserting missing lines.
var headerOrder = []string{
	LabelVersion,
	LabelPgm,
	LabelComment,
	LabelMarkerName,
	LabelMarkerNumber,
	LabelMarkerType,
	LabelObserver,
	LabelReceiver,
	LabelAntenna,
	LabelPosition,
	LabelDelta,
	LabelInterval,
	LabelFirstObs,
}

// Kind is the data type of a header field.
type Kind int

// Field kinds.
const (
	KindString Kind = iota
	KindFloat
	KindInt
	KindSpace // blank columns, no value
)

// Column describes one fixed-width field.
type Column struct {
	Kind  Kind
	Width int
	Prec  int // decimals for floats
}

// Format is the column layout of the value part of a header line.
type Format []Column

// Width returns the number of columns used by the format.
func (f Format) Width() int {
	w := 0
	for _, c := range f {
		w += c.Width
	}
	return w
}

// NumValues returns the number of values a line holds.
func (f Format) NumValues() int {
	n := 0
	for _, c := range f {
		if c.Kind != KindSpace {
			n++
		}
	}
	return n
}

func strCol(w int) Column      { return Column{Kind: KindString, Width: w} }
func floatCol(w, p int) Column { return Column{Kind: KindFloat, Width: w, Prec: p} }
func intCol(w int) Column      { return Column{Kind: KindInt, Width: w} }
func blankCol(w int) Column    { return Column{Kind: KindSpace, Width: w} }

// Formats holds the layout of every extracted label.
var Formats = map[string]Format{
	LabelMarkerName:   {strCol(60)},
	LabelMarkerNumber: {strCol(20)},
	LabelObserver:     {strCol(20), strCol(40)},
	LabelReceiver:     {strCol(20), strCol(20), strCol(20)},
	LabelAntenna:      {strCol(20), strCol(20)},
	LabelPosition:     {floatCol(14, 4), floatCol(14, 4), floatCol(14, 4)},
	LabelDelta:        {floatCol(14, 4), floatCol(14, 4), floatCol(14, 4)},
	LabelInterval:     {floatCol(10, 3)},
	LabelFirstObs:     {intCol(6), intCol(6), intCol(6), intCol(6), intCol(6), floatCol(13, 7), blankCol(5), strCol(3)},
}

// Value is a single header field.
type Value struct {
	Kind  Kind
	Str   string  // the field text, trailing blanks removed
	Num   float64 // numeric kinds only
	Valid bool    // false for empty or unparsable numbers
}

// StringValue returns a string field.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s, Valid: true} }

// FloatValue returns a float field.
func FloatValue(v float64) Value {
	return Value{Kind: KindFloat, Str: strconv.FormatFloat(v, 'f', -1, 64), Num: v, Valid: true}
}

// String returns the trimmed field text.
func (v Value) String() string {
	return strings.TrimSpace(v.Str)
}

// MarshalJSON implements json.Marshaler. Numbers are written as numbers, invalid numbers as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.Kind == KindString:
		return json.Marshal(v.String())
	case !v.Valid:
		return []byte("null"), nil
	}
	return json.Marshal(v.Num)
}

// Fields holds the extracted values per label. Labels not found in a header are absent.
type Fields map[string][]Value

// Strings returns the trimmed texts of a label's values.
func (fs Fields) Strings(label string) []string {
	vals, ok := fs[label]
	if !ok {
		return nil
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.String()
	}
	return out
}

// Header is the header of a RINEX observation file.
type Header struct {
	Lines     []string // header lines up to and including END OF HEADER
	Fields    Fields
	Version   float32
	Type      string
	SatSystem gnss.System
	Warnings  []error
}

// ReadHeader reads the header from r. The reader is consumed up to END OF HEADER.
// If the header is incomplete, the fields found so far are returned together with ErrNoHeader.
func ReadHeader(r io.Reader) (*Header, error) {
	const maxLines = 900
	hdr := &Header{Fields: Fields{}}
	sc := bufio.NewScanner(r)
	lineNum := 0
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		lineNum++

		if lineNum == 1 && !strings.Contains(line, "RINEX VERS") { // "CRINEX VERS   / TYPE" or "RINEX VERSION / TYPE"
			return hdr, ErrNoHeader
		}
		hdr.Lines = append(hdr.Lines, line)

		label := lineLabel(line)
		switch label {
		case LabelEndOfHeader:
			return hdr, nil
		case LabelVersion:
			hdr.parseVersion(line)
		case "":
		default:
			format, ok := Formats[label]
			if !ok {
				break
			}
			if _, ok := hdr.Fields[label]; ok {
				hdr.Warnings = append(hdr.Warnings, fmt.Errorf("line %d: %s repeated, using the first one", lineNum, label))
				break
			}
			vals, err := format.Parse(line)
			if err != nil {
				hdr.Warnings = append(hdr.Warnings, fmt.Errorf("line %d: %s: %v", lineNum, label, err))
			}
			hdr.Fields[label] = vals
		}

		if lineNum >= maxLines {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return hdr, fmt.Errorf("read header: %w", err)
	}
	return hdr, ErrNoHeader
}

// ParseHeader parses the header text of a RINEX file.
func ParseHeader(text string) (*Header, error) {
	return ReadHeader(strings.NewReader(text))
}

func (hdr *Header) parseVersion(line string) {
	val := padRight(line, 60)
	if f64, err := strconv.ParseFloat(strings.TrimSpace(val[:20]), 32); err == nil {
		hdr.Version = float32(f64)
	} else {
		hdr.Warnings = append(hdr.Warnings, fmt.Errorf("parse RINEX VERSION: %v", err))
	}
	hdr.Type = strings.TrimSpace(val[20:21])
	abbr := strings.TrimSpace(val[40:41])
	if abbr == "" {
		abbr = "G" // RINEX 2 default
	}
	if sys, ok := sysPerAbbr[abbr]; ok {
		hdr.SatSystem = sys
	} else {
		hdr.Warnings = append(hdr.Warnings, fmt.Errorf("invalid satellite system %q", abbr))
	}
}

// Parse extracts the values of a header line.
// Unparsable numbers are returned as invalid values together with an error.
func (f Format) Parse(line string) ([]Value, error) {
	line = padRight(line, f.Width())
	vals := make([]Value, 0, f.NumValues())
	var errs []string
	pos := 0
	for _, col := range f {
		text := line[pos : pos+col.Width]
		pos += col.Width
		if col.Kind == KindSpace {
			continue
		}

		v := Value{Kind: col.Kind, Str: strings.TrimRight(text, " ")}
		switch col.Kind {
		case KindString:
			v.Valid = true
		case KindFloat, KindInt:
			s := strings.TrimSpace(text)
			if s == "" {
				break
			}
			num, err := strconv.ParseFloat(strings.Replace(s, "D", "E", 1), 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("not a number: %q", s))
				break
			}
			v.Num, v.Valid = num, true
		}
		vals = append(vals, v)
	}
	if len(errs) > 0 {
		return vals, fmt.Errorf("%s", strings.Join(errs, ", "))
	}
	return vals, nil
}

// TimeOfFirstObs returns the epoch of the first observation, rounded to the nearest second.
func (hdr *Header) TimeOfFirstObs() (time.Time, bool) {
	vals, ok := hdr.Fields[LabelFirstObs]
	if !ok || len(vals) < 6 {
		return time.Time{}, false
	}
	for _, v := range vals[:6] {
		if !v.Valid {
			return time.Time{}, false
		}
	}
	t := time.Date(int(vals[0].Num), time.Month(vals[1].Num), int(vals[2].Num), int(vals[3].Num), int(vals[4].Num), 0, 0, time.UTC)
	return t.Add(time.Duration(math.Round(vals[5].Num)) * time.Second), true
}

// Missing returns the required labels not found in the header.
func (hdr *Header) Missing() []string {
	var missing []string
	for _, label := range RequiredLabels {
		if hdr.index(label) < 0 {
			missing = append(missing, label)
		}
	}
	return missing
}

// Complete returns true if the header was read up to END OF HEADER.
func (hdr *Header) Complete() bool {
	return hdr.index(LabelEndOfHeader) >= 0
}

// index returns the line number of the label or -1.
func (hdr *Header) index(label string) int {
	return findLabel(hdr.Lines, label)
}

func findLabel(lines []string, label string) int {
	for i, line := range lines {
		if lineLabel(line) == label {
			return i
		}
	}
	return -1
}

// lineLabel returns the label in columns 61-80.
func lineLabel(line string) string {
	if len(line) <= 60 {
		return ""
	}
	return strings.TrimSpace(line[60:])
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}
