package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/de-bkg/tosmeta/pkg/tos"
)

// ErrDataInconsistency is returned if the attribute history of a device can not be resolved.
var ErrDataInconsistency = errors.New("data inconsistency")

// trackedCodes are the device attributes carried into sub-sessions.
var trackedCodes = map[string]bool{
	"serial_number":           true,
	"model":                   true,
	"date_start":              true,
	"firmware_version":        true,
	"software_version":        true,
	"antenna_height":          true,
	"monument_height":         true,
	"antenna_offset_north":    true,
	"antenna_offset_east":     true,
	"monument_offset_north":   true,
	"monument_offset_east":    true,
	"antenna_reference_point": true,
}

// Window is a time interval. A zero To means the interval is open, the device is still mounted.
type Window struct {
	From time.Time `json:"time_from"`
	To   time.Time `json:"time_to"`
}

// IsOpen returns true if the window has no end.
func (w Window) IsOpen() bool {
	return w.To.IsZero()
}

// Equal reports whether both windows cover the same interval.
func (w Window) Equal(o Window) bool {
	return w.From.Equal(o.From) && w.To.Equal(o.To)
}

// Contains returns true if t lies within [From, To).
func (w Window) Contains(t time.Time) bool {
	if t.Before(w.From) {
		return false
	}
	return w.IsOpen() || t.Before(w.To)
}

func (w Window) String() string {
	to := "open"
	if !w.IsOpen() {
		to = w.To.Format(tos.TimeFormat)
	}
	return fmt.Sprintf("[%s, %s)", w.From.Format(tos.TimeFormat), to)
}

// MarshalJSON implements json.Marshaler. An open end is written as null.
func (w Window) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		From tos.Time `json:"time_from"`
		To   tos.Time `json:"time_to"`
	}{tos.Time{Time: w.From}, tos.Time{Time: w.To}})
}

// less orders windows by start, then by end with an open end last.
func (w Window) less(o Window) bool {
	if !w.From.Equal(o.From) {
		return w.From.Before(o.From)
	}
	return endBefore(w.To, o.To)
}

// endBefore compares two window ends, the zero time is the latest end.
func endBefore(a, b time.Time) bool {
	switch {
	case a.IsZero():
		return false
	case b.IsZero():
		return true
	default:
		return a.Before(b)
	}
}

// SubSession is the state of one device during a part of its connection window.
type SubSession struct {
	Window
	Type     DeviceType        `json:"code_entity_subtype"`
	EntityID int               `json:"id_entity"`
	Attrs    map[string]string `json:"attributes"`
}

// MarshalJSON implements json.Marshaler. The embedded window would hide the other fields otherwise.
func (s SubSession) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		From     tos.Time          `json:"time_from"`
		To       tos.Time          `json:"time_to"`
		Type     DeviceType        `json:"code_entity_subtype"`
		EntityID int               `json:"id_entity"`
		Attrs    map[string]string `json:"attributes"`
	}{tos.Time{Time: s.From}, tos.Time{Time: s.To}, s.Type, s.EntityID, s.Attrs})
}

// Device is a device entity with its attribute history.
type Device struct {
	ID         int
	Type       DeviceType
	Attributes []tos.Attribute
}

// DeviceFromHistory converts an entity history into a Device.
func DeviceFromHistory(h *tos.History) Device {
	return Device{ID: h.ID, Type: DeviceType(h.Subtype), Attributes: h.Attributes}
}

// Normalizer collapses the attribute history of devices into sub-sessions.
type Normalizer struct {
	Logger   *log.Logger
	Warnings []error
}

func (n *Normalizer) warn(err error) {
	if n.Logger != nil {
		n.Logger.Printf("WARN: %v", err)
	}
	n.Warnings = append(n.Warnings, err)
}

// candidate is a distinct attribute window of a device with its values.
type candidate struct {
	span    Window // own window
	clipped Window // clipped to the connection window
	attrs   map[string]string
}

// Normalize splits the device's attribute history into sub-sessions covering the connection window.
// Every distinct attribute window overlapping the connection is a candidate. The candidates covering the
// whole window provide the baseline values. The window is split wherever another candidate starts or
// ends, each part takes the values of the candidates covering it on top of the values carried from
// earlier parts. Null values, zero-duration attribute windows and attributes with malformed dates are skipped.
// ErrDataInconsistency is returned if no candidate covers the whole window.
func (n *Normalizer) Normalize(dev Device, window Window) ([]SubSession, error) {
	attrs := make([]tos.Attribute, 0, len(dev.Attributes))
	for _, a := range dev.Attributes {
		if a.Malformed() {
			n.warn(fmt.Errorf("device %d: skip attribute %s with malformed date (from %q, to %q)", dev.ID, a.Code, a.DateFrom.Raw, a.DateTo.Raw))
			continue
		}
		attrs = append(attrs, a)
	}

	// distinct windows in deterministic order
	var spans []Window
	for _, a := range attrs {
		span := Window{From: a.DateFrom.Time, To: a.DateTo.Time}
		dup := false
		for _, s := range spans {
			if s.Equal(span) {
				dup = true
				break
			}
		}
		if !dup {
			spans = append(spans, span)
		}
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].less(spans[j]) })

	var cands []candidate
	for _, span := range spans {
		if !window.IsOpen() && !span.From.Before(window.To) {
			continue
		}
		if !span.IsOpen() && !span.To.After(window.From) {
			continue
		}
		if !span.IsOpen() && !span.From.Before(span.To) {
			n.warn(fmt.Errorf("device %d: skip zero-duration attribute window %s", dev.ID, span))
			continue
		}

		c := candidate{span: span, clipped: clip(span, window), attrs: make(map[string]string)}
		for _, a := range attrs {
			if !trackedCodes[a.Code] || !a.Value.Valid {
				continue
			}
			if !a.DateFrom.Equal(span.From) || !a.DateTo.Equal(span.To) {
				continue
			}
			c.attrs[a.Code] = a.Value.Str
		}
		if len(c.attrs) == 0 {
			continue
		}
		cands = append(cands, c)
	}

	baseline := make(map[string]string)
	foundFull := false
	for _, c := range cands {
		if c.clipped.Equal(window) {
			merge(baseline, c.attrs)
			foundFull = true
		}
	}
	if !foundFull {
		return nil, fmt.Errorf("%w: device %d: no attribute window covers %s", ErrDataInconsistency, dev.ID, window)
	}

	// sub-session boundaries are all candidate starts and ends inside the window
	bounds := []time.Time{window.From}
	for _, c := range cands {
		bounds = addBound(bounds, c.clipped.From, window)
		if !c.clipped.IsOpen() {
			bounds = addBound(bounds, c.clipped.To, window)
		}
	}
	if len(bounds) == 1 {
		return []SubSession{{Window: window, Type: dev.Type, EntityID: dev.ID, Attrs: baseline}}, nil
	}
	sort.Slice(bounds, func(i, j int) bool { return bounds[i].Before(bounds[j]) })

	collection := merge(make(map[string]string), baseline)
	subs := make([]SubSession, 0, len(bounds))
	for i, from := range bounds {
		part := Window{From: from, To: window.To}
		if i+1 < len(bounds) {
			part.To = bounds[i+1]
		}
		for _, c := range cands {
			if !c.clipped.Equal(window) && covers(c.clipped, part) {
				merge(collection, c.attrs)
			}
		}
		subs = append(subs, SubSession{Window: part, Type: dev.Type, EntityID: dev.ID, Attrs: merge(make(map[string]string), collection)})
	}
	return subs, nil
}

// addBound adds t if it lies strictly inside the window and is not yet known.
func addBound(bounds []time.Time, t time.Time, window Window) []time.Time {
	if !t.After(window.From) || (!window.IsOpen() && !t.Before(window.To)) {
		return bounds
	}
	for _, b := range bounds {
		if b.Equal(t) {
			return bounds
		}
	}
	return append(bounds, t)
}

// covers returns true if w lies within span.
func covers(span, w Window) bool {
	if span.From.After(w.From) {
		return false
	}
	if span.IsOpen() {
		return true
	}
	return !w.IsOpen() && !span.To.Before(w.To)
}

// clip restricts span to the window.
func clip(span, window Window) Window {
	res := Window{From: span.From, To: span.To}
	if span.From.Before(window.From) {
		res.From = window.From
	}
	if !window.IsOpen() && (span.IsOpen() || window.To.Before(span.To)) {
		res.To = window.To
	}
	return res
}

func merge(dst, src map[string]string) map[string]string {
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
