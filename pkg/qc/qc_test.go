package qc

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/de-bkg/tosmeta/pkg/gnss"
	"github.com/de-bkg/tosmeta/pkg/rinex"
	"github.com/de-bkg/tosmeta/pkg/session"
	"github.com/de-bkg/tosmeta/pkg/tos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = log.New(io.Discard, "", 0)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func station() *session.Station {
	return &session.Station{
		StationIdentity: tos.StationIdentity{
			Marker:      "RHOF",
			DomesNumber: "10225M001",
			Lat:         66.4612,
			Lon:         -15.9469,
			Altitude:    85.8,
		},
		Contacts: tos.BuildContacts(nil, discard),
		Timeline: session.Timeline{Sessions: []session.Session{
			{
				Window:   session.Window{From: day(2001, 7, 1), To: day(2018, 5, 3)},
				Receiver: &session.Receiver{Model: "ASHTECH UZ-12", SerialNumber: "UC2200303016", SoftwareVersion: "CQ00"},
				Antenna:  &session.Antenna{Model: "ASH701945C_M", SerialNumber: "CR620012101", Height: 0.0083},
				Radome:   &session.Radome{Model: "SNOW"},
				Monument: &session.Monument{Height: 1.0},
			},
			{
				Window:   session.Window{From: day(2018, 5, 3)},
				Receiver: &session.Receiver{Model: "TRIMBLE NETR9", SerialNumber: "5128K40283", SoftwareVersion: "5.45"},
				Antenna:  &session.Antenna{Model: "ASH701945C_M", SerialNumber: "CR620012101", Height: 0.0083},
				Radome:   &session.Radome{Model: "SNOW"},
				Monument: &session.Monument{Height: 1.0},
			},
		}},
	}
}

// header returns a header which agrees with the second session of station(), moved by dx meters in X.
func header(t *testing.T, dx float64, drop ...string) string {
	st := station()
	pos := gnss.GeodeticToECEF(st.Lat, st.Lon, st.Altitude)
	lines := []string{
		"     2.11           OBSERVATION DATA    M (MIXED)           RINEX VERSION / TYPE",
		"RHOF                                                        MARKER NAME",
		"10225M001                                                   MARKER NUMBER",
		"BGO/HMF             Vedurstofa Islands                      OBSERVER / AGENCY",
		"5128K40283          TRIMBLE NETR9       5.45                REC # / TYPE / VERS",
		"CR620012101         ASH701945C_M    SNOW                    ANT # / TYPE",
		fmt.Sprintf("%14.4f%14.4f%14.4f                  APPROX POSITION XYZ", pos.X+dx, pos.Y, pos.Z),
		"        1.0083        0.0000        0.0000                  ANTENNA: DELTA H/E/N",
		"  2022     9     2     0     0    0.0000000     GPS         TIME OF FIRST OBS",
		"                                                            END OF HEADER",
	}
	var out []string
	for _, line := range lines {
		keep := true
		for _, label := range drop {
			if strings.HasSuffix(line, label) {
				keep = false
			}
		}
		if keep {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n") + "\n"
}

func parse(t *testing.T, text string) *rinex.Header {
	hdr, err := rinex.ParseHeader(text)
	require.NoError(t, err)
	return hdr
}

func newComparator() *Comparator {
	return NewComparator(Options{Logger: discard, Now: func() time.Time { return day(2022, 10, 1) }})
}

func rhofFile(t *testing.T, name string) *rinex.RnxFil {
	fil, err := rinex.NewFile(name)
	require.NoError(t, err)
	return fil
}

func TestCompare_Match(t *testing.T) {
	st := station()
	rep := newComparator().Compare(rhofFile(t, "rhof2450.22d.Z"), parse(t, header(t, 0)), st, st.Sessions[1])

	assert.True(t, rep.Passed(), "%+v", rep.Discrepancies)
	assert.False(t, rep.Fixable())
	assert.Empty(t, rep.Structural)
	assert.Empty(t, rep.Corrections)
	assert.Empty(t, rep.MissingTOS)
	assert.Empty(t, rep.MissingRinex)
	assert.Len(t, rep.Matches, 7)
	assert.Equal(t, []string{"BGO/HMF", "Vedurstofa Islands"}, rep.Matches[rinex.LabelObserver])
	delta, ok := rep.Matches[rinex.LabelDelta].([]float64)
	require.True(t, ok)
	assert.InDelta(t, 1.0083, delta[0], 1e-9)

	_, err := json.Marshal(rep)
	assert.NoError(t, err)
}

func TestCompare_PositionTolerance(t *testing.T) {
	st := station()
	c := newComparator()

	rep := c.Compare(nil, parse(t, header(t, 59)), st, st.Sessions[1])
	assert.Contains(t, rep.Matches, rinex.LabelPosition)
	assert.NotContains(t, rep.Discrepancies, rinex.LabelPosition)

	rep = c.Compare(nil, parse(t, header(t, 61)), st, st.Sessions[1])
	assert.NotContains(t, rep.Matches, rinex.LabelPosition)
	require.Contains(t, rep.Discrepancies, rinex.LabelPosition)

	pos := gnss.GeodeticToECEF(st.Lat, st.Lon, st.Altitude)
	corr := rep.Corrections[rinex.LabelPosition]
	require.Len(t, corr, 3)
	assert.Equal(t, pos.X, corr[0].Num)
	assert.Equal(t, pos.Y, corr[1].Num)
	assert.Equal(t, pos.Z, corr[2].Num)

	_, err := json.Marshal(rep)
	assert.NoError(t, err)
}

func TestAntennaType(t *testing.T) {
	st := station()
	assert.Equal(t, "ASH701945C_M    SNOW", AntennaType(st.Sessions[0]))

	sess := st.Sessions[0]
	sess.Radome = nil
	assert.Equal(t, "ASH701945C_M", AntennaType(sess))

	sess.Antenna = nil
	assert.Equal(t, "", AntennaType(sess))
}

func TestCompare_Receiver(t *testing.T) {
	st := station()
	hdr := parse(t, strings.Replace(header(t, 0), "5.45                REC", "5.20                REC", 1))

	rep := newComparator().Compare(nil, hdr, st, st.Sessions[1])
	assert.False(t, rep.Passed())
	assert.True(t, rep.Fixable())
	require.Contains(t, rep.Discrepancies, rinex.LabelReceiver)
	assert.Equal(t, Discrepancy{
		Rinex: []string{"5128K40283", "TRIMBLE NETR9", "5.20"},
		TOS:   []string{"5128K40283", "TRIMBLE NETR9", "5.45"},
	}, rep.Discrepancies[rinex.LabelReceiver])

	corr := rep.Corrections[rinex.LabelReceiver]
	require.Len(t, corr, 3)
	assert.Nil(t, corr[0])
	assert.Nil(t, corr[1])
	assert.Equal(t, "5.45", corr[2].Str)

	lines, err := hdr.Apply(rep.Corrections)
	require.NoError(t, err)
	assert.Equal(t, "5128K40283          TRIMBLE NETR9       5.45                REC # / TYPE / VERS", lines[4])
}

func TestCompare_EmptyTOSValue(t *testing.T) {
	st := station()
	sess := st.Sessions[1]
	sess.Receiver = &session.Receiver{Model: "TRIMBLE NETR9", SerialNumber: "5128K40284"}
	hdr := parse(t, header(t, 0))

	rep := newComparator().Compare(nil, hdr, st, sess)
	assert.Equal(t, []string{rinex.LabelReceiver}, rep.MissingTOS)
	require.Contains(t, rep.Discrepancies, rinex.LabelReceiver)
	corr := rep.Corrections[rinex.LabelReceiver]
	require.Len(t, corr, 3)
	assert.Equal(t, "5128K40284", corr[0].Str)
	assert.Nil(t, corr[1])
	assert.Nil(t, corr[2], "an empty TOS value must not blank the header")

	lines, err := hdr.Apply(rep.Corrections)
	require.NoError(t, err)
	assert.Equal(t, "5128K40284          TRIMBLE NETR9       5.45                REC # / TYPE / VERS", lines[4])

	// only the firmware is unknown
	sess.Receiver.SerialNumber = "5128K40283"
	rep = newComparator().Compare(nil, hdr, st, sess)
	assert.Equal(t, []string{rinex.LabelReceiver}, rep.MissingTOS)
	assert.Contains(t, rep.Matches, rinex.LabelReceiver)
	assert.NotContains(t, rep.Discrepancies, rinex.LabelReceiver)
	assert.NotContains(t, rep.Corrections, rinex.LabelReceiver)
	assert.True(t, rep.Passed())
}

func TestCompare_MissingRequiredLabel(t *testing.T) {
	st := station()
	hdr := parse(t, header(t, 0, rinex.LabelAntenna))

	rep := newComparator().Compare(nil, hdr, st, st.Sessions[1])
	assert.Equal(t, []string{rinex.LabelAntenna}, rep.MissingRinex)
	assert.NotContains(t, rep.Discrepancies, rinex.LabelAntenna)
	assert.Contains(t, rep.Matches, rinex.LabelReceiver)
	assert.False(t, rep.Passed())
	assert.False(t, rep.Partial)
}

func TestCompare_AntennaAndDelta(t *testing.T) {
	st := station()
	sess := st.Sessions[1]
	sess.Radome = &session.Radome{Model: "SCIS"}
	sess.Monument = &session.Monument{Height: 0.5, OffsetNorth: 0.1}

	hdr := parse(t, header(t, 0))
	rep := newComparator().Compare(nil, hdr, st, sess)

	require.Contains(t, rep.Discrepancies, rinex.LabelAntenna)
	assert.Equal(t, "ASH701945C_M    SCIS", rep.Corrections[rinex.LabelAntenna][1].Str)
	assert.Nil(t, rep.Corrections[rinex.LabelAntenna][0])

	require.Contains(t, rep.Discrepancies, rinex.LabelDelta)
	corr := rep.Corrections[rinex.LabelDelta]
	require.Len(t, corr, 3)
	assert.InDelta(t, 0.5083, corr[0].Num, 1e-9)
	assert.Nil(t, corr[1]) // monument offsets are not applied
	assert.Nil(t, corr[2])

	lines, err := hdr.Apply(rep.Corrections)
	require.NoError(t, err)
	assert.Equal(t, "        0.5083        0.0000        0.0000                  ANTENNA: DELTA H/E/N", lines[7])
	assert.Equal(t, "CR620012101         ASH701945C_M    SCIS                    ANT # / TYPE", lines[5])
}

func TestCompare_MarkerName(t *testing.T) {
	st := station()
	c := newComparator()

	hdr := parse(t, strings.Replace(header(t, 0), "RHOF      ", "rhof      ", 1))
	rep := c.Compare(nil, hdr, st, st.Sessions[1])
	assert.Equal(t, "RHOF", rep.Matches[rinex.LabelMarkerName])

	hdr = parse(t, strings.Replace(header(t, 0), "RHOF      ", "RHOFN     ", 1))
	rep = c.Compare(nil, hdr, st, st.Sessions[1])
	assert.Equal(t, Discrepancy{Rinex: "RHOFN", TOS: "RHOF"}, rep.Discrepancies[rinex.LabelMarkerName])
	assert.Equal(t, "RHOF", rep.Corrections[rinex.LabelMarkerName][0].Str)
}

func TestCompare_MissingMarkerNumber(t *testing.T) {
	st := station()
	hdr := parse(t, header(t, 0, rinex.LabelMarkerNumber))

	rep := newComparator().Compare(nil, hdr, st, st.Sessions[1])
	assert.Equal(t, []string{rinex.LabelMarkerNumber}, rep.MissingRinex)
	assert.False(t, rep.Passed())
	require.True(t, rep.Fixable())

	lines, err := hdr.Apply(rep.Corrections)
	require.NoError(t, err)
	assert.Equal(t, "10225M001                                                   MARKER NUMBER", lines[2])

	st.DomesNumber = ""
	rep = newComparator().Compare(nil, hdr, st, st.Sessions[1])
	assert.Equal(t, "RHOF", rep.Corrections[rinex.LabelMarkerNumber][0].Str)
}

func TestCompare_UnknownAgency(t *testing.T) {
	st := station()
	st.Contacts = tos.BuildContacts([]tos.ContactRecord{{Role: tos.RoleOwner, Name: "Jarðvísindastofnun Háskólans"}}, discard)

	rep := newComparator().Compare(nil, parse(t, header(t, 0)), st, st.Sessions[1])
	assert.Equal(t, []string{rinex.LabelObserver}, rep.MissingTOS)
	assert.NotContains(t, rep.Discrepancies, rinex.LabelObserver)
	assert.NotContains(t, rep.Corrections, rinex.LabelObserver)

	st.Contacts = tos.BuildContacts([]tos.ContactRecord{{Role: tos.RoleOwner, Name: tos.OrgLMI}}, discard)
	rep = newComparator().Compare(nil, parse(t, header(t, 0)), st, st.Sessions[1])
	corr := rep.Corrections[rinex.LabelObserver]
	require.Len(t, corr, 2)
	assert.Equal(t, "LMI", corr[0].Str)
	assert.Equal(t, "Landmaelingar Islands", corr[1].Str)
}

func TestCompare_MissingDevices(t *testing.T) {
	st := station()
	sess := st.Sessions[1]
	sess.Receiver = nil
	sess.Antenna = nil

	rep := newComparator().Compare(nil, parse(t, header(t, 0)), st, sess)
	assert.Equal(t, []string{"gnss_receiver", "antenna", "antenna"}, rep.MissingTOS)
	assert.Empty(t, rep.Discrepancies)
}

func TestCompare_Structural(t *testing.T) {
	st := station()
	c := newComparator()
	hdr := parse(t, header(t, 61))

	rep := c.Compare(rhofFile(t, "vmey2450.22d.Z"), hdr, st, st.Sessions[1])
	assert.Contains(t, rep.Structural, KeyMarker)
	assert.Empty(t, rep.Matches)
	assert.Empty(t, rep.Discrepancies)
	assert.False(t, rep.Passed())
	assert.False(t, rep.Fixable())

	rep = c.Compare(rhofFile(t, "rhof2460.22d.Z"), hdr, st, st.Sessions[1])
	assert.Equal(t, Discrepancy{Rinex: day(2022, 9, 2), TOS: day(2022, 9, 3)}, rep.Structural[KeyFirstObs])

	rep = c.Compare(rhofFile(t, "rhof2450.22d.Z"), hdr, st, st.Sessions[0])
	assert.Contains(t, rep.Structural, KeySessionPeriod)

	rep = c.Compare(rhofFile(t, "rhof2450.22d.Z"), parse(t, header(t, 0, rinex.LabelFirstObs)), st, st.Sessions[1])
	assert.Contains(t, rep.Structural, KeyFirstObs)
}

func TestCompare_OpenSessionEndsYesterday(t *testing.T) {
	st := station()
	hdr := parse(t, header(t, 0))
	fil := rhofFile(t, "rhof2450.22d.Z")

	c := NewComparator(Options{Logger: discard, Now: func() time.Time { return time.Date(2022, 9, 2, 12, 0, 0, 0, time.UTC) }})
	rep := c.Compare(fil, hdr, st, st.Sessions[1])
	assert.Contains(t, rep.Structural, KeySessionPeriod)

	c = NewComparator(Options{Logger: discard, Now: func() time.Time { return time.Date(2022, 9, 3, 12, 0, 0, 0, time.UTC) }})
	rep = c.Compare(fil, hdr, st, st.Sessions[1])
	assert.Empty(t, rep.Structural)
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rhof2450.22o")
	require.NoError(t, os.WriteFile(path, []byte(header(t, 0)), 0o644))

	st := station()
	rep, hdr, err := newComparator().CheckFile(path, st)
	require.NoError(t, err)
	require.NotNil(t, hdr)
	assert.True(t, rep.Passed())
	assert.Equal(t, path, rep.File)

	st.Sessions = st.Sessions[:1]
	rep, _, err = newComparator().CheckFile(path, st)
	require.NoError(t, err)
	assert.Contains(t, rep.Structural, KeySessionPeriod)

	_, _, err = newComparator().CheckFile(filepath.Join(dir, "rhof2460.22o"), st)
	assert.Error(t, err)
}

func TestCheckFile_TruncatedHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rhof2450.22o")
	require.NoError(t, os.WriteFile(path, []byte(header(t, 0, rinex.LabelEndOfHeader)), 0o644))

	st := station()
	rep, hdr, err := newComparator().CheckFile(path, st)
	require.NoError(t, err)
	require.NotNil(t, hdr)
	assert.False(t, hdr.Complete())
	assert.True(t, rep.Partial)
	assert.Equal(t, []string{rinex.LabelEndOfHeader}, rep.MissingRinex)
	assert.Equal(t, "RHOF", rep.Matches[rinex.LabelMarkerName])
	assert.Contains(t, rep.Matches, rinex.LabelReceiver)
	assert.False(t, rep.Passed())
	assert.False(t, rep.Fixable())

	text := strings.Replace(header(t, 0, rinex.LabelEndOfHeader), "5.45                REC", "5.20                REC", 1)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	rep, _, err = newComparator().CheckFile(path, st)
	require.NoError(t, err)
	assert.Contains(t, rep.Corrections, rinex.LabelReceiver)
	assert.False(t, rep.Fixable(), "a truncated header is not rewritten")

	b, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"partial_header":true`)
}

func TestArchiveFiles(t *testing.T) {
	st := station()
	ar := rinex.Archive{Root: "/data", Frequency: "15s_24hr", RawDir: "rinex", Compression: "Z"}

	files, err := ArchiveFiles(st, ar, day(2018, 5, 1), time.Time{}, time.Date(2018, 5, 6, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, st.Sessions[0].Window, files[0].Session)
	assert.Equal(t, []string{
		"/data/2018/may/RHOF/15s_24hr/rinex/RHOF1210.18D.Z",
		"/data/2018/may/RHOF/15s_24hr/rinex/RHOF1220.18D.Z",
	}, files[0].Files)

	// the open session runs until yesterday
	assert.Equal(t, []string{
		"/data/2018/may/RHOF/15s_24hr/rinex/RHOF1230.18D.Z",
		"/data/2018/may/RHOF/15s_24hr/rinex/RHOF1240.18D.Z",
		"/data/2018/may/RHOF/15s_24hr/rinex/RHOF1250.18D.Z",
	}, files[1].Files)

	files, err = ArchiveFiles(st, ar, day(2019, 1, 1), day(2019, 1, 3), time.Now())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Len(t, files[0].Files, 2)
}
