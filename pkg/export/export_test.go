package export

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/de-bkg/tosmeta/pkg/session"
	"github.com/de-bkg/tosmeta/pkg/tos"
	"github.com/jszwec/csvutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testStation() *session.Station {
	st := &session.Station{
		StationIdentity: tos.StationIdentity{
			ID: 42, Marker: "RHOF", Name: "Raufarhöfn", DomesNumber: "10225M001",
			Lat: 66.4612, Lon: -15.9469, Altitude: 85.8,
		},
		Contacts: tos.BuildContacts(nil, log.New(io.Discard, "", 0)),
	}
	st.Sessions = []session.Session{
		{
			Window:   session.Window{From: day(2001, 7, 12), To: day(2010, 1, 1)},
			Receiver: &session.Receiver{Model: "ASHTECH UZ-12", SerialNumber: "UC2200303010", FirmwareVersion: "CQ00"},
			Antenna:  &session.Antenna{Model: "ASH701945C_M", SerialNumber: "CR620023301", Height: 0.0083},
			Monument: &session.Monument{Height: 1},
		},
		{
			Window:   session.Window{From: day(2010, 1, 1)},
			Receiver: &session.Receiver{Model: "TRIMBLE NETR9", SerialNumber: "5033K69574"},
			Radome:   &session.Radome{Model: "SCIS"},
		},
	}
	return st
}

func TestRows(t *testing.T) {
	rows := Rows(testStation())
	require.Len(t, rows, 2)
	assert.Equal(t, "2001-07-12T00:00:00", rows[0].TimeFrom)
	assert.Equal(t, "2010-01-01T00:00:00", rows[0].TimeTo)
	assert.Equal(t, 0.0083, rows[0].AntennaHeight)
	assert.Equal(t, 1.0, rows[0].MonumentHeight)
	assert.Empty(t, rows[1].TimeTo, "open end")
	assert.Empty(t, rows[1].AntennaModel)
	assert.Equal(t, "SCIS", rows[1].RadomeModel)
}

func TestWriteCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteCSV(buf, testStation()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "marker,time_from,time_to,receiver_model,"))

	var rows []SessionRow
	require.NoError(t, csvutil.Unmarshal(buf.Bytes(), &rows))
	assert.Equal(t, Rows(testStation()), rows)
}

func TestWriteCSV_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteCSV(buf))
	assert.True(t, strings.HasPrefix(buf.String(), "marker,time_from,"))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestWriteJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteJSON(buf, testStation()))

	var docs []struct {
		Marker   string           `json:"marker"`
		Location json.RawMessage  `json:"location"`
		Contact  map[string]any   `json:"contact"`
		History  []map[string]any `json:"device_history"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &docs))
	require.Len(t, docs, 1)
	doc := docs[0]
	assert.Equal(t, "RHOF", doc.Marker)
	assert.JSONEq(t, `{"type":"Point","coordinates":[-15.9469,66.4612,85.8]}`, string(doc.Location))
	assert.Contains(t, doc.Contact, tos.RoleOwner)
	require.Len(t, doc.History, 2)
	assert.Contains(t, doc.History[1], "time_to")
	assert.Nil(t, doc.History[1]["time_to"], "open end")
	assert.NotContains(t, doc.History[1], "antenna")
}

func TestLocation(t *testing.T) {
	g, err := Location(tos.StationIdentity{Lat: 64.1, Lon: -21.9, Altitude: 50})
	require.NoError(t, err)
	b, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Point","coordinates":[-21.9,64.1,50]}`, string(b))
}

func TestWriteTable(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteTable(buf, testStation()))
	out := buf.String()

	assert.Contains(t, out, "RHOF")
	assert.Contains(t, out, "Hlutverk")
	assert.Contains(t, out, tos.OrgIMO)
	assert.Contains(t, out, "2001-07-12 00:00:00")
	assert.Contains(t, out, "None")
	assert.Contains(t, out, "| ASHTECH UZ-12")
	assert.Contains(t, out, "0.0083")
	assert.Contains(t, out, "| SCIS")
}
