package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math/rand"
	"testing"
	"time"

	"github.com/de-bkg/tosmeta/pkg/tos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = log.New(io.Discard, "", 0)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func attr(code, value string, from, to time.Time) tos.Attribute {
	return tos.Attribute{Code: code, Value: tos.Value{Str: value, Valid: true}, DateFrom: tos.Time{Time: from}, DateTo: tos.Time{Time: to}}
}

func nullAttr(code string, from, to time.Time) tos.Attribute {
	return tos.Attribute{Code: code, DateFrom: tos.Time{Time: from}, DateTo: tos.Time{Time: to}}
}

var open = time.Time{}

func TestNormalize_FullWindowOnly(t *testing.T) {
	assert := assert.New(t)
	dev := Device{ID: 1, Type: TypeReceiver, Attributes: []tos.Attribute{
		attr("model", "TRIMBLE NETR9", day(2001, 1, 1), open),
		attr("serial_number", "5036K69713", day(2001, 1, 1), open),
		nullAttr("firmware_version", day(2001, 1, 1), open),
		attr("comment", "ignored", day(2003, 1, 1), open),
	}}

	n := &Normalizer{Logger: discard}
	subs, err := n.Normalize(dev, Window{From: day(2005, 1, 1), To: day(2010, 1, 1)})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(Window{From: day(2005, 1, 1), To: day(2010, 1, 1)}, subs[0].Window)
	assert.Equal(map[string]string{"model": "TRIMBLE NETR9", "serial_number": "5036K69713"}, subs[0].Attrs)
	assert.Equal(TypeReceiver, subs[0].Type)
}

func TestNormalize_SubSessions(t *testing.T) {
	assert := assert.New(t)
	dev := Device{ID: 2, Type: TypeReceiver, Attributes: []tos.Attribute{
		attr("firmware_version", "4.85", day(2012, 6, 1), open),
		attr("model", "TRIMBLE NETR9", day(2010, 1, 1), open),
		attr("serial_number", "5036K69713", day(2010, 1, 1), open),
		attr("firmware_version", "4.17", day(2010, 1, 1), day(2012, 6, 1)),
	}}

	n := &Normalizer{Logger: discard}
	window := Window{From: day(2011, 1, 1)}
	subs, err := n.Normalize(dev, window)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	assert.Equal(Window{From: day(2011, 1, 1), To: day(2012, 6, 1)}, subs[0].Window)
	assert.Equal("4.17", subs[0].Attrs["firmware_version"])
	assert.Equal("5036K69713", subs[0].Attrs["serial_number"])

	assert.Equal(Window{From: day(2012, 6, 1)}, subs[1].Window)
	assert.Equal("4.85", subs[1].Attrs["firmware_version"])
	assert.Equal("TRIMBLE NETR9", subs[1].Attrs["model"])
	assertCoverage(t, subs, window)
}

func TestNormalize_CarryForward(t *testing.T) {
	assert := assert.New(t)
	dev := Device{ID: 3, Type: TypeAntenna, Attributes: []tos.Attribute{
		attr("model", "TRM57971.00", day(2010, 1, 1), open),
		attr("antenna_height", "0.0", day(2010, 1, 1), open),
		attr("serial_number", "A1", day(2010, 1, 1), day(2014, 1, 1)),
		attr("antenna_height", "0.05", day(2012, 1, 1), day(2016, 1, 1)),
	}}

	n := &Normalizer{Logger: discard}
	window := Window{From: day(2010, 1, 1), To: day(2018, 1, 1)}
	subs, err := n.Normalize(dev, window)
	require.NoError(t, err)
	require.Len(t, subs, 4)

	assert.Equal(Window{From: day(2010, 1, 1), To: day(2012, 1, 1)}, subs[0].Window)
	assert.Equal("A1", subs[0].Attrs["serial_number"])
	assert.Equal("0.0", subs[0].Attrs["antenna_height"])

	assert.Equal(Window{From: day(2012, 1, 1), To: day(2014, 1, 1)}, subs[1].Window)
	assert.Equal("0.05", subs[1].Attrs["antenna_height"])

	// serial number is carried
	assert.Equal(Window{From: day(2014, 1, 1), To: day(2016, 1, 1)}, subs[2].Window)
	assert.Equal("A1", subs[2].Attrs["serial_number"])
	assert.Equal("0.05", subs[2].Attrs["antenna_height"])

	assert.Equal(Window{From: day(2016, 1, 1), To: day(2018, 1, 1)}, subs[3].Window)
	assertCoverage(t, subs, window)
}

func TestNormalize_Idempotence(t *testing.T) {
	attrs := []tos.Attribute{
		attr("model", "LEIAR25.R4", day(2009, 1, 1), open),
		attr("serial_number", "726", day(2009, 1, 1), open),
		attr("antenna_height", "0.0083", day(2009, 1, 1), day(2013, 5, 2)),
		attr("antenna_height", "0.0100", day(2013, 5, 2), day(2019, 8, 1)),
		attr("antenna_height", "0.0120", day(2019, 8, 1), open),
		attr("antenna_reference_point", "BPA", day(2009, 1, 1), open),
		attr("antenna_offset_north", "0.001", day(2015, 1, 1), day(2015, 1, 1)),
	}
	window := Window{From: day(2010, 1, 1)}

	n := &Normalizer{Logger: discard}
	want, err := n.Normalize(Device{ID: 4, Type: TypeAntenna, Attributes: attrs}, window)
	require.NoError(t, err)
	assertCoverage(t, want, window)

	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]tos.Attribute(nil), attrs...)
		rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got, err := n.Normalize(Device{ID: 4, Type: TypeAntenna, Attributes: shuffled}, window)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestNormalize_ZeroDurationAttribute(t *testing.T) {
	dev := Device{ID: 5, Type: TypeRadome, Attributes: []tos.Attribute{
		attr("model", "SCIS", day(2001, 1, 1), open),
		attr("serial_number", "bad", day(2005, 1, 1), day(2005, 1, 1)),
	}}
	n := &Normalizer{Logger: discard}
	subs, err := n.Normalize(dev, Window{From: day(2001, 1, 1)})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, map[string]string{"model": "SCIS"}, subs[0].Attrs)
	assert.Len(t, n.Warnings, 1)
}

func TestNormalize_NoFullWindow(t *testing.T) {
	dev := Device{ID: 6, Type: TypeReceiver, Attributes: []tos.Attribute{
		attr("model", "TRIMBLE NETR9", day(2012, 1, 1), open),
	}}
	n := &Normalizer{Logger: discard}
	_, err := n.Normalize(dev, Window{From: day(2010, 1, 1)})
	assert.True(t, errors.Is(err, ErrDataInconsistency))
}

func TestMapDevice(t *testing.T) {
	assert := assert.New(t)

	ant := MapDevice(TypeAntenna, map[string]string{"model": "TRM59800.00", "antenna_height": ""})
	assert.Equal(Antenna{Model: "TRM59800.00"}, ant)
	assert.Equal(0.0, ant.(Antenna).Height)

	m := &Mapper{}
	ant = m.Map(TypeAntenna, map[string]string{"antenna_height": "0.0345", "antenna_offset_north": "x", "antenna_reference_point": "BPA"})
	assert.Equal(Antenna{Height: 0.0345, ReferencePoint: "BPA"}, ant)
	assert.Len(m.Warnings, 1)

	mon := MapDevice(TypeMonument, map[string]string{"serial_number": "M1", "antenna_height": "1.5", "antenna_offset_east": "0.2"})
	assert.Equal(Monument{SerialNumber: "M1", Height: 1.5, OffsetEast: 0.2}, mon)

	mon = MapDevice(TypeMonument, map[string]string{"monument_height": "2.0", "antenna_height": "1.5"})
	assert.Equal(2.0, mon.(Monument).Height)

	rec := MapDevice(TypeReceiver, map[string]string{"model": "SEPT POLARX5", "serial_number": "3001", "firmware_version": "5.3.2"})
	assert.Equal(Receiver{Model: "SEPT POLARX5", SerialNumber: "3001", FirmwareVersion: "5.3.2"}, rec)

	assert.Equal(Radome{Model: "SCIS"}, MapDevice(TypeRadome, map[string]string{"model": "SCIS"}))

	unknown := MapDevice("seismometer", map[string]string{"model": "STS-2"})
	assert.Equal(DeviceType("seismometer"), unknown.Type())
	assert.IsType(Unknown{}, unknown)
}

func TestBuild_BasicSession(t *testing.T) {
	assert := assert.New(t)
	subs := []SubSession{
		{Window: Window{From: day(2001, 1, 1), To: day(2010, 1, 1)}, Type: TypeReceiver, EntityID: 1,
			Attrs: map[string]string{"model": "ASHTECH UZ-12", "serial_number": "UC2200303016"}},
		{Window: Window{From: day(2001, 1, 1)}, Type: TypeAntenna, EntityID: 2,
			Attrs: map[string]string{"model": "ASH701945C_M", "antenna_height": "0.0"}},
	}

	tl := (&Builder{Logger: discard}).Build(subs)
	require.Len(t, tl.Sessions, 2)

	assert.Equal(Window{From: day(2001, 1, 1), To: day(2010, 1, 1)}, tl.Sessions[0].Window)
	assert.NotNil(tl.Sessions[0].Receiver)
	assert.NotNil(tl.Sessions[0].Antenna)
	assert.Equal("ASHTECH UZ-12", tl.Sessions[0].Receiver.Model)

	assert.Equal(Window{From: day(2010, 1, 1)}, tl.Sessions[1].Window)
	assert.Nil(tl.Sessions[1].Receiver)
	assert.NotNil(tl.Sessions[1].Antenna)
	assert.Empty(tl.Warnings)
	assertPartition(t, tl)
}

func TestSessionJSON(t *testing.T) {
	sess := Session{
		Window:  Window{From: day(2010, 1, 1)},
		Antenna: &Antenna{Model: "ASH701945C_M", Height: 0.0083},
	}
	b, err := json.Marshal(sess)
	require.NoError(t, err)
	assert.JSONEq(t, `{"time_from": "2010-01-01T00:00:00", "time_to": null,
		"antenna": {"model": "ASH701945C_M", "serial_number": "", "antenna_height": 0.0083,
			"antenna_offset_north": 0, "antenna_offset_east": 0, "antenna_reference_point": ""}}`, string(b))

	b, err = json.Marshal(Window{From: day(2001, 1, 1), To: day(2010, 1, 1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"time_from": "2001-01-01T00:00:00", "time_to": "2010-01-01T00:00:00"}`, string(b))

	b, err = json.Marshal(SubSession{Window: Window{From: day(2001, 1, 1)}, Type: TypeRadome, EntityID: 6, Attrs: map[string]string{"model": "SCIS"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"time_from": "2001-01-01T00:00:00", "time_to": null, "code_entity_subtype": "radome",
		"id_entity": 6, "attributes": {"model": "SCIS"}}`, string(b))
}

func TestBuild_DeviceChanges(t *testing.T) {
	assert := assert.New(t)
	subs := []SubSession{
		{Window: Window{From: day(2001, 1, 1), To: day(2005, 3, 1)}, Type: TypeReceiver, EntityID: 1, Attrs: map[string]string{"serial_number": "R1"}},
		{Window: Window{From: day(2005, 3, 1)}, Type: TypeReceiver, EntityID: 2, Attrs: map[string]string{"serial_number": "R2"}},
		{Window: Window{From: day(2001, 1, 1), To: day(2008, 7, 1)}, Type: TypeAntenna, EntityID: 3, Attrs: map[string]string{"serial_number": "A1"}},
		{Window: Window{From: day(2008, 7, 1)}, Type: TypeAntenna, EntityID: 4, Attrs: map[string]string{"serial_number": "A2"}},
		{Window: Window{From: day(2001, 1, 1)}, Type: TypeMonument, EntityID: 5, Attrs: map[string]string{"monument_height": "1.0"}},
		{Window: Window{From: day(2003, 1, 1), To: day(2008, 7, 1)}, Type: TypeRadome, EntityID: 6, Attrs: map[string]string{"model": "SCIS"}},
	}

	tl := (&Builder{Logger: discard}).Build(subs)
	assertPartition(t, tl)
	require.Len(t, tl.Sessions, 4)

	assert.Equal(Window{From: day(2001, 1, 1), To: day(2003, 1, 1)}, tl.Sessions[0].Window)
	assert.Nil(tl.Sessions[0].Radome)
	assert.Equal(Window{From: day(2003, 1, 1), To: day(2005, 3, 1)}, tl.Sessions[1].Window)
	assert.Equal("R1", tl.Sessions[1].Receiver.SerialNumber)
	assert.Equal("SCIS", tl.Sessions[1].Radome.Model)
	assert.Equal(Window{From: day(2005, 3, 1), To: day(2008, 7, 1)}, tl.Sessions[2].Window)
	assert.Equal("R2", tl.Sessions[2].Receiver.SerialNumber)
	assert.Equal("A1", tl.Sessions[2].Antenna.SerialNumber)
	assert.Equal(Window{From: day(2008, 7, 1)}, tl.Sessions[3].Window)
	assert.Equal("A2", tl.Sessions[3].Antenna.SerialNumber)
	assert.Equal(1.0, tl.Sessions[3].Monument.Height)
	assert.Nil(tl.Sessions[3].Radome)

	sess, ok := tl.SessionAt(day(2006, 1, 1))
	assert.True(ok)
	assert.Equal(day(2005, 3, 1), sess.From)
	_, ok = tl.SessionAt(day(1999, 1, 1))
	assert.False(ok)

	assert.True(tl.Validate().OK())
}

func TestBuild_GapAndOverlap(t *testing.T) {
	assert := assert.New(t)
	subs := []SubSession{
		{Window: Window{From: day(2001, 1, 1), To: day(2003, 1, 1)}, Type: TypeReceiver, EntityID: 1, Attrs: map[string]string{}},
		{Window: Window{From: day(2001, 1, 1), To: day(2003, 1, 1)}, Type: TypeAntenna, EntityID: 2, Attrs: map[string]string{}},
		{Window: Window{From: day(2005, 1, 1)}, Type: TypeReceiver, EntityID: 3, Attrs: map[string]string{}},
		{Window: Window{From: day(2006, 1, 1)}, Type: TypeReceiver, EntityID: 4, Attrs: map[string]string{}},
	}

	tl := (&Builder{Logger: discard}).Build(subs)
	assertPartition(t, tl)
	require.Len(t, tl.Sessions, 3)
	assert.NotEmpty(tl.Warnings) // two receivers from 2006 on

	is := tl.Validate()
	assert.Equal([]Window{{From: day(2003, 1, 1), To: day(2005, 1, 1)}}, is.Gaps)
	assert.Empty(is.Overlaps)
	assert.Len(is.MissingDevices, 2) // no antenna after 2005
}

func TestBuild_PartitionRandom(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	types := []DeviceType{TypeReceiver, TypeAntenna, TypeRadome, TypeMonument}
	for run := 0; run < 50; run++ {
		var subs []SubSession
		for i, typ := range types {
			from := day(2000+rnd.Intn(5), time.Month(1+rnd.Intn(12)), 1)
			for k := 0; k < 1+rnd.Intn(4); k++ {
				to := from.AddDate(0, 1+rnd.Intn(40), 0)
				w := Window{From: from, To: to}
				if rnd.Intn(4) == 0 {
					w.To = time.Time{}
				}
				subs = append(subs, SubSession{Window: w, Type: typ, EntityID: i*10 + k, Attrs: map[string]string{}})
				if w.IsOpen() {
					break
				}
				from = to.AddDate(0, rnd.Intn(3), 0)
			}
		}
		tl := (&Builder{}).Build(subs)
		assertPartition(t, tl)
	}
}

type fakeSource struct {
	found     []tos.Entity
	histories map[int]*tos.History
}

func (f *fakeSource) SearchStation(ctx context.Context, identifier, code string, domains ...string) ([]tos.Entity, error) {
	return f.found, nil
}

func (f *fakeSource) History(ctx context.Context, id int) (*tos.History, error) {
	h, ok := f.histories[id]
	if !ok {
		return nil, tos.ErrTransport
	}
	return h, nil
}

func (f *fakeSource) Contacts(ctx context.Context, id int) tos.Contacts {
	return tos.BuildContacts(nil, discard)
}

func conn(child int, from, to time.Time) tos.Connection {
	return tos.Connection{IDEntityChild: child, IDEntityParent: 1, TimeFrom: tos.Time{Time: from}, TimeTo: tos.Time{Time: to}}
}

func TestLoader_Load(t *testing.T) {
	assert := assert.New(t)
	src := &fakeSource{
		found: []tos.Entity{{ID: 1}},
		histories: map[int]*tos.History{
			1: {ID: 1, Attributes: []tos.Attribute{
				attr("marker", "RHOF", day(2001, 1, 1), open),
				attr("lat", "66.4612", day(2001, 1, 1), open),
				attr("lon", "-15.9469", day(2001, 1, 1), open),
				attr("altitude", "85.8", day(2001, 1, 1), open),
			}, ChildrenConnections: []tos.Connection{
				conn(10, day(2001, 1, 1), day(2010, 1, 1)),
				conn(11, day(2001, 1, 1), open),
				conn(12, day(2004, 1, 1), day(2004, 1, 1)), // zero duration
				conn(13, day(2001, 1, 1), open),            // not a GNSS device
				conn(14, day(2001, 1, 1), open),            // inconsistent
			}},
			10: {ID: 10, Subtype: tos.SubtypeReceiver, Attributes: []tos.Attribute{attr("model", "ASHTECH UZ-12", day(2001, 1, 1), open)}},
			11: {ID: 11, Subtype: tos.SubtypeAntenna, Attributes: []tos.Attribute{attr("model", "ASH701945C_M", day(2001, 1, 1), open)}},
			13: {ID: 13, Subtype: "seismometer"},
			14: {ID: 14, Subtype: tos.SubtypeRadome, Attributes: []tos.Attribute{attr("model", "SCIS", day(2007, 1, 1), open)}},
		},
	}

	l := &Loader{Source: src, Logger: discard}
	st, ok, err := l.Load(context.Background(), "RHOF")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal("RHOF", st.Marker)
	assert.Equal(85.8, st.Altitude)
	assert.Equal(tos.OrgIMO, st.Contacts.Owner().Name)
	require.Len(t, st.Sessions, 2)
	assert.Equal("ASHTECH UZ-12", st.Sessions[0].Receiver.Model)
	assert.Nil(st.Sessions[1].Receiver)
	assert.Len(st.Warnings, 2) // zero duration, inconsistency

	sess, ok := st.SessionAt(day(2020, 1, 1))
	assert.True(ok)
	assert.Equal("ASH701945C_M", sess.Antenna.Model)
}

func TestLoader_MalformedDates(t *testing.T) {
	assert := assert.New(t)
	var receiver tos.History
	require.NoError(t, json.Unmarshal([]byte(`{"id_entity": 10, "code_entity_subtype": "gnss_receiver", "attributes": [
		{"code": "model", "value": "TRIMBLE NETR9", "date_from": "2001-01-01T00:00:00", "date_to": null},
		{"code": "serial_number", "value": "5036K69713", "date_from": "2001-01-01T00:00:00", "date_to": null},
		{"code": "firmware_version", "value": "4.17", "date_from": "01.05.2003", "date_to": null}]}`), &receiver))

	bad := conn(11, day(2001, 1, 1), open)
	bad.TimeFrom = tos.Time{Raw: "2001/13/01"}
	src := &fakeSource{
		found: []tos.Entity{{ID: 1}},
		histories: map[int]*tos.History{
			1: {ID: 1, Attributes: []tos.Attribute{attr("marker", "RHOF", day(2001, 1, 1), open)},
				ChildrenConnections: []tos.Connection{conn(10, day(2001, 1, 1), open), bad}},
			10: &receiver,
		},
	}

	st, ok, err := (&Loader{Source: src, Logger: discard}).Load(context.Background(), "RHOF")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, st.Sessions, 1)
	assert.Equal(Receiver{Model: "TRIMBLE NETR9", SerialNumber: "5036K69713"}, *st.Sessions[0].Receiver)
	assert.Len(st.Warnings, 2) // attribute date, connection date
}

func TestLoader_NotFound(t *testing.T) {
	l := &Loader{Source: &fakeSource{}, Logger: discard}
	st, ok, err := l.Load(context.Background(), "XXXX")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, st)
}

func TestLoader_TransportFailure(t *testing.T) {
	l := &Loader{Source: &fakeSource{found: []tos.Entity{{ID: 99}}}, Logger: discard}
	_, _, err := l.Load(context.Background(), "RHOF")
	assert.True(t, errors.Is(err, tos.ErrTransport))
}

// assertCoverage checks that the sub-sessions partition the window.
func assertCoverage(t *testing.T, subs []SubSession, window Window) {
	t.Helper()
	require.NotEmpty(t, subs)
	assert.Equal(t, window.From, subs[0].From, "first sub-session starts with the window")
	for i := 1; i < len(subs); i++ {
		assert.Equal(t, subs[i-1].To, subs[i].From, "sub-sessions %d and %d are contiguous", i-1, i)
	}
	assert.Equal(t, window.To, subs[len(subs)-1].To, "last sub-session ends with the window")
}

// assertPartition checks that sessions are ordered, do not overlap and only the last one is open.
func assertPartition(t *testing.T, tl *Timeline) {
	t.Helper()
	for i, s := range tl.Sessions {
		if !s.IsOpen() {
			assert.True(t, s.To.After(s.From), "session %d %s has positive duration", i, s.Window)
		}
		if i == 0 {
			continue
		}
		prev := tl.Sessions[i-1]
		assert.True(t, prev.From.Before(s.From), "sessions sorted by start")
		assert.False(t, prev.IsOpen(), "only the last session may be open")
		assert.False(t, prev.To.After(s.From), "session %s overlaps %s", prev.Window, s.Window)
	}
}
