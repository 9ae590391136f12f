package rinex

import (
	"fmt"
	"strings"
)

// Correction holds the new values of one header line. A nil entry keeps the value of the file.
type Correction []*Value

// Corrections holds corrections per label.
type Corrections map[string]Correction

// Encode writes the values into fixed columns. Strings are left-justified and cut to the
// column width, numbers are right-justified.
func (f Format) Encode(vals []Value) (string, error) {
	if len(vals) != f.NumValues() {
		return "", fmt.Errorf("got %d values for %d fields", len(vals), f.NumValues())
	}
	var buf strings.Builder
	n := 0
	for _, col := range f {
		if col.Kind == KindSpace {
			buf.WriteString(strings.Repeat(" ", col.Width))
			continue
		}
		s, err := encodeValue(col, vals[n])
		if err != nil {
			return "", fmt.Errorf("field %d: %w", n+1, err)
		}
		buf.WriteString(s)
		n++
	}
	return buf.String(), nil
}

func encodeValue(col Column, v Value) (string, error) {
	if col.Kind == KindString {
		return fmt.Sprintf("%-*.*s", col.Width, col.Width, v.Str), nil
	}
	if !v.Valid {
		s := strings.TrimSpace(v.Str)
		if len(s) > col.Width {
			s = s[:col.Width]
		}
		return fmt.Sprintf("%*s", col.Width, s), nil
	}

	var s string
	if col.Kind == KindInt {
		s = fmt.Sprintf("%*d", col.Width, int(v.Num))
	} else {
		s = fmt.Sprintf("%*.*f", col.Width, col.Prec, v.Num)
	}
	if len(s) > col.Width {
		return "", fmt.Errorf("%s does not fit into %d columns", strings.TrimSpace(s), col.Width)
	}
	return s, nil
}

// Line returns a new header line with the values and the label.
func (f Format) Line(label string, vals []Value) (string, error) {
	s, err := f.Encode(vals)
	if err != nil {
		return "", err
	}
	return padRight(s, 60) + label, nil
}

// merge fills the unset entries of the correction with the given values.
func (c Correction) merge(orig []Value, f Format) ([]Value, error) {
	if len(c) > f.NumValues() {
		return nil, fmt.Errorf("got %d values for %d fields", len(c), f.NumValues())
	}
	out := make([]Value, f.NumValues())
	copy(out, orig)
	for i, v := range c {
		if v != nil {
			out[i] = *v
		}
	}
	return out, nil
}

// Apply returns the header lines with the corrections written in. The columns behind the values,
// which hold the label, are kept as they are. Labels missing in the header are inserted after
// the closest preceding label.
func (hdr *Header) Apply(corr Corrections) ([]string, error) {
	lines := make([]string, len(hdr.Lines))
	copy(lines, hdr.Lines)

	for label := range corr {
		if _, ok := Formats[label]; !ok {
			return nil, fmt.Errorf("can not correct %q", label)
		}
	}

	for _, label := range Labels {
		c, ok := corr[label]
		if !ok {
			continue
		}
		format := Formats[label]
		vals, err := c.merge(hdr.Fields[label], format)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", label, err)
		}

		idx := findLabel(lines, label)
		if idx < 0 {
			line, err := format.Line(label, vals)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", label, err)
			}
			lines = insertLine(lines, insertPos(lines, label), line)
			continue
		}

		s, err := format.Encode(vals)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", label, err)
		}
		orig := padRight(lines[idx], len(s))
		lines[idx] = s + orig[len(s):]
	}
	return lines, nil
}

// insertPos returns the index for a new line with the label.
func insertPos(lines []string, label string) int {
	pos := -1
	for i, l := range headerOrder {
		if l == label {
			pos = i
			break
		}
	}
	for i := pos - 1; i >= 0; i-- {
		if idx := lastLabel(lines, headerOrder[i]); idx >= 0 {
			return idx + 1
		}
	}
	if idx := findLabel(lines, LabelEndOfHeader); idx >= 0 {
		return idx
	}
	return len(lines)
}

func lastLabel(lines []string, label string) int {
	for i := len(lines) - 1; i >= 0; i-- {
		if lineLabel(lines[i]) == label {
			return i
		}
	}
	return -1
}

func insertLine(lines []string, idx int, line string) []string {
	lines = append(lines, "")
	copy(lines[idx+1:], lines[idx:])
	lines[idx] = line
	return lines
}
