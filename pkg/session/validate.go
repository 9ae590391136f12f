package session

import (
	"fmt"
	"time"
)

// Issues lists consistency problems of a timeline.
type Issues struct {
	Gaps           []Window
	Overlaps       []Window
	MissingDevices []string
}

// OK returns true if no issue was found.
func (is Issues) OK() bool {
	return len(is.Gaps) == 0 && len(is.Overlaps) == 0 && len(is.MissingDevices) == 0
}

// Validate checks the timeline for gaps and overlaps between consecutive sessions
// and for sessions without receiver or antenna.
func (tl *Timeline) Validate() Issues {
	var is Issues
	for i, sess := range tl.Sessions {
		if !sess.Has(TypeReceiver) {
			is.MissingDevices = append(is.MissingDevices, fmt.Sprintf("session %d %s: no %s", i+1, sess.Window, TypeReceiver))
		}
		if !sess.Has(TypeAntenna) {
			is.MissingDevices = append(is.MissingDevices, fmt.Sprintf("session %d %s: no %s", i+1, sess.Window, TypeAntenna))
		}
		if i == 0 {
			continue
		}

		prev := tl.Sessions[i-1]
		switch {
		case prev.IsOpen() || prev.To.After(sess.From):
			is.Overlaps = append(is.Overlaps, Window{From: sess.From, To: minEnd(prev.To, sess.To)})
		case prev.To.Before(sess.From):
			is.Gaps = append(is.Gaps, Window{From: prev.To, To: sess.From})
		}
	}
	return is
}

// minEnd returns the earlier of two window ends, the zero time being open.
func minEnd(a, b time.Time) time.Time {
	if endBefore(a, b) {
		return a
	}
	return b
}
