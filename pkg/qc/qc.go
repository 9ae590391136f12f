// Package qc compares the headers of RINEX files with the station metadata held in TOS.
package qc

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/de-bkg/tosmeta/pkg/gnss"
	"github.com/de-bkg/tosmeta/pkg/rinex"
	"github.com/de-bkg/tosmeta/pkg/session"
	"github.com/de-bkg/tosmeta/pkg/tos"
)

// Tolerances in meters.
const (
	DeltaTolerance    = 0.0001
	PositionTolerance = 60.0
)

// Keys of structural failures.
const (
	KeyMarker        = "TOS marker"
	KeyFirstObs      = rinex.LabelFirstObs
	KeySessionPeriod = "session period"
)

// Agencies maps the name of the station owner in TOS to the RINEX OBSERVER / AGENCY fields.
var Agencies = map[string][2]string{
	tos.OrgIMO: {"BGO/HMF", "Vedurstofa Islands"},
	tos.OrgLMI: {"LMI", "Landmaelingar Islands"},
}

// Discrepancy holds the differing values of a header line.
type Discrepancy struct {
	Rinex interface{} `json:"rinex" msgpack:"rinex"`
	TOS   interface{} `json:"tos" msgpack:"tos"`
}

// Report is the result of comparing one RINEX header with TOS.
type Report struct {
	File          string                 `json:"rinex_file,omitempty"`
	Observed      time.Time              `json:"observation_time"` // first observation or date of the file
	Matches       map[string]interface{} `json:"matches"`
	Discrepancies map[string]Discrepancy `json:"discrepancies"`
	Corrections   rinex.Corrections      `json:"corrections"`
	MissingTOS    []string               `json:"missing_tos"`
	MissingRinex  []string               `json:"missing_rinex"`

	// Structural failures, e.g. a file of another station. If set, no fields were compared.
	Structural map[string]Discrepancy `json:"structural,omitempty"`

	// Partial is set if the header has no END OF HEADER. Only the fields found were compared.
	Partial bool `json:"partial_header,omitempty"`
}

func newReport(file string) *Report {
	return &Report{
		File:          file,
		Matches:       map[string]interface{}{},
		Discrepancies: map[string]Discrepancy{},
		Corrections:   rinex.Corrections{},
		MissingTOS:    []string{},
		MissingRinex:  []string{},
	}
}

// Passed returns true if the header agrees with TOS.
func (r *Report) Passed() bool {
	return len(r.Structural) == 0 && len(r.Discrepancies) == 0 && len(r.MissingRinex) == 0
}

// Fixable returns true if the header can be corrected.
func (r *Report) Fixable() bool {
	return len(r.Structural) == 0 && !r.Partial && len(r.Corrections) > 0
}

// Options for the Comparator.
type Options struct {
	Logger *log.Logger
	Now    func() time.Time // current time, used for sessions without end
}

// Comparator compares RINEX headers with TOS station sessions.
type Comparator struct {
	logger *log.Logger
	now    func() time.Time
}

// NewComparator returns a new Comparator.
func NewComparator(opts Options) *Comparator {
	c := &Comparator{logger: opts.Logger, now: opts.Now}
	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// CheckFile reads the header of the file and compares it with the session of the station
// in effect at the first observation. A header without END OF HEADER is compared as far as
// it was read, the report is then not fixable.
func (c *Comparator) CheckFile(path string, st *session.Station) (*Report, *rinex.Header, error) {
	fil, err := rinex.NewFile(path)
	if err != nil {
		return nil, nil, err
	}
	hdr, err := rinex.ReadFileHeader(path)
	if err != nil {
		if hdr == nil || !errors.Is(err, rinex.ErrNoHeader) {
			return nil, hdr, err
		}
		c.logger.Printf("WARN: %v, comparing the %d fields found", err, len(hdr.Fields))
	}
	if w := hdr.Warnings; len(w) > 0 {
		for _, err := range w {
			c.logger.Printf("WARN: %s: %v", path, err)
		}
	}

	at := fil.Date()
	if t, ok := hdr.TimeOfFirstObs(); ok {
		at = t
	}
	sess, ok := st.SessionAt(at)
	if !ok {
		rep := newReport(path)
		rep.Observed = at
		rep.Partial = !hdr.Complete()
		rep.Structural = map[string]Discrepancy{KeySessionPeriod: {Rinex: at, TOS: nil}}
		c.logger.Printf("WARN: %s: no session of %s at %s", path, st.Marker, at.Format(time.RFC3339))
		return rep, hdr, nil
	}
	return c.Compare(fil, hdr, st, sess), hdr, nil
}

// Compare compares the header fields with the station and its session.
// The file name is checked first when fil is not nil: marker and date of the name must match
// the station, the first observation and the session period. A failure ends the comparison.
// Required labels missing in the header are listed in MissingRinex, fields not found are not checked.
func (c *Comparator) Compare(fil *rinex.RnxFil, hdr *rinex.Header, st *session.Station, sess session.Session) *Report {
	rep := newReport("")
	rep.Partial = !hdr.Complete()
	if t, ok := hdr.TimeOfFirstObs(); ok {
		rep.Observed = t
	}
	if fil != nil {
		rep.File = fil.Path
		if rep.Observed.IsZero() {
			rep.Observed = fil.Date()
		}
		if structural := c.checkFile(fil, hdr, st, sess); len(structural) > 0 {
			rep.Structural = structural
			return rep
		}
	}

	for _, label := range hdr.Missing() {
		c.logger.Printf("WARN: %s: %s not in RINEX header", rep.File, label)
		rep.missingRinex(label)
	}

	fields := hdr.Fields
	for _, label := range rinex.Labels {
		vals, ok := fields[label]
		if !ok {
			if label == rinex.LabelMarkerNumber {
				c.logger.Printf("%s not in RINEX header, adding %s", label, markerNumber(st))
				rep.missingRinex(label)
				rep.Corrections[label] = rinex.Correction{strVal(markerNumber(st))}
			}
			continue
		}

		switch label {
		case rinex.LabelMarkerName:
			tosMarker := strings.ToUpper(st.Marker)
			if tosMarker == "" {
				rep.missingTOS(label)
				break
			}
			if strings.EqualFold(vals[0].String(), tosMarker) {
				rep.Matches[label] = tosMarker
				break
			}
			rep.differs(label, vals[0].String(), tosMarker, rinex.Correction{strVal(tosMarker)})

		case rinex.LabelMarkerNumber:
			rep.compareStrings(label, vals, []string{markerNumber(st)})

		case rinex.LabelObserver:
			owner := st.Contacts.Owner().Name
			agency, ok := Agencies[owner]
			if !ok {
				c.logger.Printf("WARN: no OBSERVER / AGENCY known for owner %q", owner)
				rep.MissingTOS = append(rep.MissingTOS, label)
				break
			}
			rep.compareStrings(label, vals, agency[:])

		case rinex.LabelReceiver:
			if sess.Receiver == nil {
				rep.MissingTOS = append(rep.MissingTOS, string(session.TypeReceiver))
				break
			}
			rec := sess.Receiver
			rep.compareStrings(label, vals, []string{rec.SerialNumber, rec.Model, rec.SoftwareVersion})

		case rinex.LabelAntenna:
			if sess.Antenna == nil {
				rep.MissingTOS = append(rep.MissingTOS, string(session.TypeAntenna))
				break
			}
			rep.compareStrings(label, vals, []string{sess.Antenna.SerialNumber, AntennaType(sess)})

		case rinex.LabelDelta:
			if sess.Antenna == nil {
				rep.MissingTOS = append(rep.MissingTOS, string(session.TypeAntenna))
				break
			}
			rep.compareFloats(label, vals, Delta(sess), DeltaTolerance)

		case rinex.LabelPosition:
			c.comparePosition(rep, vals, st)
		}
	}

	c.logger.Printf("%s: %d matches, %d discrepancies", rep.File, len(rep.Matches), len(rep.Discrepancies))
	return rep
}

// checkFile checks that the file belongs to the station and session.
func (c *Comparator) checkFile(fil *rinex.RnxFil, hdr *rinex.Header, st *session.Station, sess session.Session) map[string]Discrepancy {
	failed := map[string]Discrepancy{}
	fileDate := fil.Date()

	first, ok := hdr.TimeOfFirstObs()
	if !ok {
		c.logger.Printf("ERROR: %s: no %s", fil.Path, rinex.LabelFirstObs)
		failed[KeyFirstObs] = Discrepancy{Rinex: nil, TOS: fileDate}
		return failed
	}

	tosMarker := strings.ToUpper(st.Marker)
	if fil.FourCharID != tosMarker {
		c.logger.Printf("ERROR: %s: file name does not match marker %s", fil.Path, tosMarker)
		failed[KeyMarker] = Discrepancy{Rinex: fil.FourCharID, TOS: tosMarker}
	}
	if !sameDay(fileDate, first) {
		c.logger.Printf("ERROR: %s: file date does not match first observation %s", fil.Path, first)
		failed[KeyFirstObs] = Discrepancy{Rinex: first, TOS: fileDate}
	}
	if len(failed) > 0 {
		return failed
	}

	end := sess.To
	if sess.IsOpen() {
		end = c.now().UTC().AddDate(0, 0, -1)
	}
	if fileDate.Before(sess.From) || fileDate.After(end) {
		c.logger.Printf("ERROR: %s: %s not within session %s", fil.Path, fileDate.Format("2006-01-02"), sess.Window)
		failed[KeySessionPeriod] = Discrepancy{Rinex: fileDate, TOS: []time.Time{sess.From, end}}
	}
	return failed
}

func (c *Comparator) comparePosition(rep *Report, vals []rinex.Value, st *session.Station) {
	const label = rinex.LabelPosition
	pos := gnss.GeodeticToECEF(st.Lat, st.Lon, st.Altitude)
	for _, v := range vals {
		if !v.Valid {
			rep.differs(label, valueFloats(vals), pos.Array(), positionCorrection(pos))
			return
		}
	}

	dist := pos.Distance(gnss.ECEF{X: vals[0].Num, Y: vals[1].Num, Z: vals[2].Num})
	c.logger.Printf("%s: distance to TOS coordinates %.4f m", label, dist)
	if dist > PositionTolerance {
		rep.differs(label, valueFloats(vals), pos.Array(), positionCorrection(pos))
		return
	}
	rep.Matches[label] = valueFloats(vals)
}

func (rep *Report) differs(label string, rnx, want interface{}, corr rinex.Correction) {
	rep.Discrepancies[label] = Discrepancy{Rinex: rnx, TOS: want}
	rep.Corrections[label] = corr
}

// compareStrings compares the fields one by one. Only differing fields get a correction.
// A field without value in TOS is not checked, it keeps the value of the file and the label
// is listed as missing in TOS.
func (rep *Report) compareStrings(label string, vals []rinex.Value, want []string) {
	corr := make(rinex.Correction, len(want))
	got := make([]string, len(want))
	differ, incomplete := false, false
	for i, w := range want {
		if i < len(vals) {
			got[i] = vals[i].String()
		}
		if w == "" {
			incomplete = true
			continue
		}
		if got[i] != w {
			corr[i] = strVal(w)
			differ = true
		}
	}
	if incomplete {
		rep.missingTOS(label)
	}
	if !differ {
		rep.Matches[label] = want
		return
	}
	rep.differs(label, got, want, corr)
}

func (rep *Report) missingTOS(label string) {
	for _, l := range rep.MissingTOS {
		if l == label {
			return
		}
	}
	rep.MissingTOS = append(rep.MissingTOS, label)
}

func (rep *Report) missingRinex(label string) {
	for _, l := range rep.MissingRinex {
		if l == label {
			return
		}
	}
	rep.MissingRinex = append(rep.MissingRinex, label)
}

func (rep *Report) compareFloats(label string, vals []rinex.Value, want []float64, tol float64) {
	corr := make(rinex.Correction, len(want))
	differ := false
	for i, w := range want {
		if i < len(vals) && vals[i].Valid && math.Abs(vals[i].Num-w) <= tol {
			continue
		}
		v := rinex.FloatValue(w)
		corr[i] = &v
		differ = true
	}
	if !differ {
		rep.Matches[label] = want
		return
	}
	rep.differs(label, valueFloats(vals), want, corr)
}

// AntennaType returns the RINEX antenna type of the session: the model padded to 16 characters
// followed by the radome code, or the plain model without radome.
func AntennaType(sess session.Session) string {
	if sess.Antenna == nil {
		return ""
	}
	if sess.Radome == nil || sess.Radome.Model == "" {
		return sess.Antenna.Model
	}
	return fmt.Sprintf("%-16.16s%4.4s", sess.Antenna.Model, sess.Radome.Model)
}

// Delta returns the antenna eccentricity H/E/N of the session.
// Monument offsets are not applied to east and north.
func Delta(sess session.Session) []float64 {
	h := 0.0
	if sess.Antenna != nil {
		h += sess.Antenna.Height
	}
	if sess.Monument != nil {
		h += sess.Monument.Height
	}
	return []float64{h, 0, 0}
}

func markerNumber(st *session.Station) string {
	if st.DomesNumber != "" {
		return st.DomesNumber
	}
	return strings.ToUpper(st.Marker)
}

func positionCorrection(pos gnss.ECEF) rinex.Correction {
	x, y, z := rinex.FloatValue(pos.X), rinex.FloatValue(pos.Y), rinex.FloatValue(pos.Z)
	return rinex.Correction{&x, &y, &z}
}

func strVal(s string) *rinex.Value {
	v := rinex.StringValue(s)
	return &v
}

// valueFloats returns the numbers of the values, nil for invalid ones.
func valueFloats(vals []rinex.Value) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		if v.Valid {
			out[i] = v.Num
		}
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
