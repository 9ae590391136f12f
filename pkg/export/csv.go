// Package export renders station metadata as CSV, JSON and text tables.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/de-bkg/tosmeta/pkg/session"
	"github.com/de-bkg/tosmeta/pkg/tos"
	"github.com/jszwec/csvutil"
)

// SessionRow is one session of a station flattened into a table row. An open end is empty.
type SessionRow struct {
	Marker           string  `csv:"marker"`
	TimeFrom         string  `csv:"time_from"`
	TimeTo           string  `csv:"time_to"`
	ReceiverModel    string  `csv:"receiver_model"`
	ReceiverSerial   string  `csv:"receiver_serial_number"`
	ReceiverFirmware string  `csv:"receiver_firmware_version"`
	AntennaModel     string  `csv:"antenna_model"`
	AntennaSerial    string  `csv:"antenna_serial_number"`
	AntennaHeight    float64 `csv:"antenna_height"`
	AntennaRefPoint  string  `csv:"antenna_reference_point"`
	RadomeModel      string  `csv:"radome_model"`
	MonumentHeight   float64 `csv:"monument_height"`
	MonumentNorth    float64 `csv:"monument_offset_north"`
	MonumentEast     float64 `csv:"monument_offset_east"`
}

// Rows flattens the sessions of the station. Missing devices leave their columns empty.
func Rows(st *session.Station) []SessionRow {
	rows := make([]SessionRow, 0, len(st.Sessions))
	for _, sess := range st.Sessions {
		row := SessionRow{
			Marker:   st.Marker,
			TimeFrom: formatTime(sess.From),
		}
		if !sess.IsOpen() {
			row.TimeTo = formatTime(sess.To)
		}
		if r := sess.Receiver; r != nil {
			row.ReceiverModel = r.Model
			row.ReceiverSerial = r.SerialNumber
			row.ReceiverFirmware = r.FirmwareVersion
		}
		if a := sess.Antenna; a != nil {
			row.AntennaModel = a.Model
			row.AntennaSerial = a.SerialNumber
			row.AntennaHeight = a.Height
			row.AntennaRefPoint = a.ReferencePoint
		}
		if r := sess.Radome; r != nil {
			row.RadomeModel = r.Model
		}
		if m := sess.Monument; m != nil {
			row.MonumentHeight = m.Height
			row.MonumentNorth = m.OffsetNorth
			row.MonumentEast = m.OffsetEast
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteCSV writes the sessions of all stations as CSV with a header line.
func WriteCSV(w io.Writer, stations ...*session.Station) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	var rows []SessionRow
	for _, st := range stations {
		rows = append(rows, Rows(st)...)
	}
	if len(rows) == 0 {
		if err := enc.EncodeHeader(SessionRow{}); err != nil {
			return fmt.Errorf("encode csv header: %w", err)
		}
	} else if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(tos.TimeFormat)
}
