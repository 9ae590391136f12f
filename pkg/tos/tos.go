// Package tos provides a client for the TOS entity/attribute/history REST API
// and the data types it delivers.
//
// TOS stores stations and devices as entities. Every fact about an entity is an
// attribute with its own validity window, devices are attached to stations by
// connections with a separate mount window.
package tos

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeFormat is the timestamp format used by the TOS API. Timestamps carry no timezone and are UTC.
const TimeFormat = "2006-01-02T15:04:05"

// Entity subtypes of the GNSS devices attached to a station.
const (
	SubtypeReceiver = "gnss_receiver"
	SubtypeAntenna  = "antenna"
	SubtypeRadome   = "radome"
	SubtypeMonument = "monument"
)

// SubtypePlatform is the entity subtype of remote sensing platforms, which are placed at a parent location.
const SubtypePlatform = "remote_sensing_platform"

// DeviceSubtypes lists the device subtypes relevant for GNSS stations.
var DeviceSubtypes = []string{SubtypeReceiver, SubtypeAntenna, SubtypeRadome, SubtypeMonument}

// layouts accepted when decoding timestamps, legacy records are not consistent.
var timeLayouts = []string{
	TimeFormat,
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Time is a TOS timestamp. The zero value stands for null, e.g. an open window end.
// A timestamp in none of the known layouts is kept in Raw and the time is left zero.
type Time struct {
	time.Time
	Raw string
}

// Malformed returns true if the timestamp could not be parsed.
func (t Time) Malformed() bool {
	return t.Raw != ""
}

// ParseTime parses a TOS timestamp. An empty string returns the zero time.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse timestamp %q", s)
}

// UnmarshalJSON implements json.Unmarshaler. Unparsable timestamps do not fail the decoding,
// they are marked malformed so that single records can be skipped.
func (t *Time) UnmarshalJSON(b []byte) error {
	*t = Time{}
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		t.Raw = string(b)
		return nil
	}
	parsed, err := ParseTime(s)
	if err != nil {
		t.Raw = s
		return nil
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.Malformed() {
		return json.Marshal(t.Raw)
	}
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(TimeFormat))
}

// Value is an attribute value. Numbers are kept in their textual form, Valid is false for null.
type Value struct {
	Str   string
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(b []byte) error {
	*v = Value{}
	switch {
	case string(b) == "null":
		return nil
	case len(b) > 0 && b[0] == '"':
		if err := json.Unmarshal(b, &v.Str); err != nil {
			return err
		}
	case string(b) == "true" || string(b) == "false":
		v.Str = string(b)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("unsupported attribute value %s", b)
		}
		v.Str = n.String()
	}
	v.Valid = true
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Str)
}

// Float returns the value as float.
func (v Value) Float() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
}

// Attribute is a single timestamped fact about an entity.
type Attribute struct {
	Code     string `json:"code"`
	Value    Value  `json:"value"`
	DateFrom Time   `json:"date_from"`
	DateTo   Time   `json:"date_to"`
}

// Malformed returns true if one of the validity dates could not be parsed.
func (a Attribute) Malformed() bool {
	return a.DateFrom.Malformed() || a.DateTo.Malformed()
}

// badDate returns the unparsable date text.
func (a Attribute) badDate() string {
	if a.DateFrom.Malformed() {
		return strconv.Quote(a.DateFrom.Raw)
	}
	return strconv.Quote(a.DateTo.Raw)
}

// IsCurrent returns true if the attribute has no end of validity.
func (a Attribute) IsCurrent() bool {
	return a.DateTo.IsZero()
}

// Connection links a child entity, e.g. a device, to its parent for the time it was mounted.
type Connection struct {
	IDEntityChild  int  `json:"id_entity_child"`
	IDEntityParent int  `json:"id_entity_parent"`
	TimeFrom       Time `json:"time_from"`
	TimeTo         Time `json:"time_to"`
}

// Malformed returns true if one of the mount dates could not be parsed.
func (c Connection) Malformed() bool {
	return c.TimeFrom.Malformed() || c.TimeTo.Malformed()
}

// IsZeroDuration returns true for connections which start and end at the same instant.
func (c Connection) IsZeroDuration() bool {
	return !c.TimeTo.IsZero() && c.TimeFrom.Equal(c.TimeTo.Time)
}

// Entity is an entity summary as returned by the search endpoint.
type Entity struct {
	ID        int         `json:"id_entity"`
	ParentID  int         `json:"id_entity_parent"`
	Subtype   string      `json:"code_entity_subtype"`
	Attrs     []Attribute `json:"attributes"`
	Location  *Location   `json:"location,omitempty"`
	Domain    string      `json:"-"`
	Variant   string      `json:"-"`
	SearchKey string      `json:"-"`
}

// Location is the current name and position of the parent entity of a platform.
// The coordinates are kept as delivered.
type Location struct {
	ID   int    `json:"id_entity"`
	Name string `json:"name"`
	Lat  string `json:"lat"`
	Lon  string `json:"lon"`
}

// Attr returns the current value of the attribute with the given code.
func (e Entity) Attr(code string) (string, bool) {
	return currentValue(e.Attrs, code)
}

// History is the full attribute history of an entity including its children connections.
type History struct {
	ID                  int          `json:"id_entity"`
	Subtype             string       `json:"code_entity_subtype"`
	Attributes          []Attribute  `json:"attributes"`
	ChildrenConnections []Connection `json:"children_connections"`
}

// Attr returns the current value of the attribute with the given code.
func (h History) Attr(code string) (string, bool) {
	return currentValue(h.Attributes, code)
}

// currentValue picks the value of code, preferring an open window over closed ones
// and a later start over an earlier one. Attributes with malformed dates are ignored.
func currentValue(attrs []Attribute, code string) (string, bool) {
	var best *Attribute
	for i := range attrs {
		a := &attrs[i]
		if a.Code != code || !a.Value.Valid || a.Malformed() {
			continue
		}
		if best == nil {
			best = a
			continue
		}
		switch {
		case a.IsCurrent() && !best.IsCurrent():
			best = a
		case a.IsCurrent() == best.IsCurrent() && !a.DateFrom.Before(best.DateFrom.Time):
			best = a
		}
	}
	if best == nil {
		return "", false
	}
	return best.Value.Str, true
}
