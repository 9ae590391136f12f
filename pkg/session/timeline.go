package session

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/de-bkg/tosmeta/pkg/tos"
)

// Session is an interval during which one combination of devices was in effect at a station.
// A nil device means there is no data for that slot, not that the device was removed.
type Session struct {
	Window
	Receiver *Receiver `json:"gnss_receiver,omitempty"`
	Antenna  *Antenna  `json:"antenna,omitempty"`
	Radome   *Radome   `json:"radome,omitempty"`
	Monument *Monument `json:"monument,omitempty"`
}

// Has returns true if the session holds a device of the given type.
func (s Session) Has(typ DeviceType) bool {
	switch typ {
	case TypeReceiver:
		return s.Receiver != nil
	case TypeAntenna:
		return s.Antenna != nil
	case TypeRadome:
		return s.Radome != nil
	case TypeMonument:
		return s.Monument != nil
	}
	return false
}

// MarshalJSON implements json.Marshaler.
func (s Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		From     tos.Time  `json:"time_from"`
		To       tos.Time  `json:"time_to"`
		Receiver *Receiver `json:"gnss_receiver,omitempty"`
		Antenna  *Antenna  `json:"antenna,omitempty"`
		Radome   *Radome   `json:"radome,omitempty"`
		Monument *Monument `json:"monument,omitempty"`
	}{tos.Time{Time: s.From}, tos.Time{Time: s.To}, s.Receiver, s.Antenna, s.Radome, s.Monument})
}

// set stores the snapshot in its slot and reports whether the slot was already taken.
func (s *Session) set(snap Snapshot) bool {
	taken := s.Has(snap.Type())
	switch v := snap.(type) {
	case Receiver:
		s.Receiver = &v
	case Antenna:
		s.Antenna = &v
	case Radome:
		s.Radome = &v
	case Monument:
		s.Monument = &v
	}
	return taken
}

// Timeline is the ordered sequence of station sessions.
type Timeline struct {
	Sessions []Session `json:"device_history"`
	Warnings []error   `json:"-"`
}

// Builder merges device sub-sessions into a station timeline.
type Builder struct {
	Logger *log.Logger
}

// Build merges the sub-sessions of all devices into sessions.
//
// Session starts are the distinct sub-session starts, session ends the distinct closed sub-session ends.
// An end at which a device continues is also a start, a start inside a running sub-session is also an end.
// The i-th start is paired with the i-th end, starts left over give open sessions. A sub-session is attached
// to a session if it covers the session; only open sub-sessions are attached to an open session.
func (b *Builder) Build(subs []SubSession) *Timeline {
	tl := &Timeline{}
	warn := func(err error) {
		if b.Logger != nil {
			b.Logger.Printf("WARN: %v", err)
		}
		tl.Warnings = append(tl.Warnings, err)
	}

	if len(subs) == 0 {
		return tl
	}

	sorted := make([]SubSession, len(subs))
	copy(sorted, subs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Window.less(sorted[j].Window) })

	var starts, ends []time.Time
	for _, s := range sorted {
		starts = addTime(starts, s.From)
		if !s.IsOpen() {
			ends = addTime(ends, s.To)
		}
	}
	for _, e := range append([]time.Time(nil), ends...) {
		if activeAfter(sorted, e) {
			starts = addTime(starts, e)
		}
	}
	for _, st := range append([]time.Time(nil), starts...) {
		if activeAcross(sorted, st) {
			ends = addTime(ends, st)
		}
	}
	sortTimes(starts)
	sortTimes(ends)

	if len(starts) != len(ends) && len(starts) != len(ends)+1 {
		warn(fmt.Errorf("session starts (%d) and ends (%d) do not match", len(starts), len(ends)))
	}

	mapper := &Mapper{Logger: b.Logger}
	for i, start := range starts {
		w := Window{From: start}
		if i < len(ends) {
			w.To = ends[i]
		}
		if !w.IsOpen() && !w.To.After(w.From) {
			warn(fmt.Errorf("skip session %s: end not after start", w))
			continue
		}
		if n := len(tl.Sessions); n > 0 {
			prev := tl.Sessions[n-1].Window
			if prev.IsOpen() || prev.To.After(w.From) {
				warn(fmt.Errorf("session %s overlaps %s", w, prev))
			}
		}

		sess := Session{Window: w}
		for _, s := range sorted {
			if !s.attachesTo(w) {
				continue
			}
			if sess.set(mapper.Map(s.Type, s.Attrs)) {
				warn(fmt.Errorf("session %s: more than one %s, using device %d", w, s.Type, s.EntityID))
			}
		}
		tl.Sessions = append(tl.Sessions, sess)
	}
	tl.Warnings = append(tl.Warnings, mapper.Warnings...)
	return tl
}

// attachesTo checks whether the sub-session is attached to the session window.
func (s SubSession) attachesTo(w Window) bool {
	if w.IsOpen() {
		return s.IsOpen() && !s.From.After(w.From)
	}
	return !s.From.After(w.From) && (s.IsOpen() || !s.To.Before(w.To))
}

// activeAfter returns true if a sub-session is running right after t.
func activeAfter(subs []SubSession, t time.Time) bool {
	for _, s := range subs {
		if !s.From.After(t) && (s.IsOpen() || s.To.After(t)) {
			return true
		}
	}
	return false
}

// activeAcross returns true if a sub-session started before t and runs past it.
func activeAcross(subs []SubSession, t time.Time) bool {
	for _, s := range subs {
		if s.From.Before(t) && (s.IsOpen() || s.To.After(t)) {
			return true
		}
	}
	return false
}

func addTime(list []time.Time, t time.Time) []time.Time {
	for _, have := range list {
		if have.Equal(t) {
			return list
		}
	}
	return append(list, t)
}

func sortTimes(list []time.Time) {
	sort.Slice(list, func(i, j int) bool { return list[i].Before(list[j]) })
}

// SessionAt returns the session in effect at t.
func (tl *Timeline) SessionAt(t time.Time) (Session, bool) {
	for i := len(tl.Sessions) - 1; i >= 0; i-- {
		if tl.Sessions[i].Contains(t) {
			return tl.Sessions[i], true
		}
	}
	return Session{}, false
}
