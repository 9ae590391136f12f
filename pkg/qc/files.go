package qc

import (
	"time"

	"github.com/de-bkg/tosmeta/pkg/rinex"
	"github.com/de-bkg/tosmeta/pkg/session"
)

// SessionFiles lists the archive files of one session.
type SessionFiles struct {
	Session session.Window `json:"session"`
	Files   []string       `json:"files"`
}

// ArchiveFiles returns the daily archive files of every session of the station, clipped to
// [start, end). A zero start or end does not clip. Sessions without end run until yesterday.
func ArchiveFiles(st *session.Station, ar rinex.Archive, start, end, now time.Time) ([]SessionFiles, error) {
	yesterday := now.UTC().AddDate(0, 0, -1)
	var out []SessionFiles
	for _, sess := range st.Sessions {
		from, to := sess.From, sess.To
		if sess.IsOpen() {
			to = yesterday
		}
		if !start.IsZero() && from.Before(start) {
			from = start
		}
		if !end.IsZero() && to.After(end) {
			to = end
		}
		if !from.Before(to) {
			continue
		}

		files, err := ar.DailyFiles(st.Marker, from, to)
		if err != nil {
			return nil, err
		}
		out = append(out, SessionFiles{Session: sess.Window, Files: files})
	}
	return out, nil
}
