// Package session reconstructs the equipment history of a GNSS station from the TOS attribute history
// of its devices: device sub-sessions, the station timeline and the typed device snapshots.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/de-bkg/tosmeta/pkg/tos"
)

// Source provides the remote data needed to assemble a station. It is implemented by *tos.Client.
type Source interface {
	SearchStation(ctx context.Context, identifier, code string, domains ...string) ([]tos.Entity, error)
	History(ctx context.Context, id int) (*tos.History, error)
	Contacts(ctx context.Context, id int) tos.Contacts
}

// Station is a GNSS station with its identity, contacts and equipment timeline.
type Station struct {
	tos.StationIdentity
	Contacts tos.Contacts `json:"contact"`
	Timeline
}

// SessionAt returns the session in effect at t.
func (st *Station) SessionAt(t time.Time) (Session, bool) {
	return st.Timeline.SessionAt(t)
}

// Loader assembles stations.
type Loader struct {
	Source Source
	Logger *log.Logger
}

// Load searches the station by its marker in the geophysical domain and assembles identity, contacts
// and timeline. The returned bool is false if no station was found, which is not an error.
// Malformed device data is skipped and reported in the warnings of the timeline.
func (l *Loader) Load(ctx context.Context, marker string) (*Station, bool, error) {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}

	found, err := l.Source.SearchStation(ctx, marker, "marker", tos.DomainGeophysical)
	if err != nil {
		return nil, false, err
	}
	if len(found) == 0 {
		return nil, false, nil
	}
	if len(found) > 1 {
		logger.Printf("WARN: %d stations found for %q, using entity %d", len(found), marker, found[0].ID)
	}

	hist, err := l.Source.History(ctx, found[0].ID)
	if err != nil {
		return nil, false, err
	}

	st := &Station{}
	var warnings []error
	st.StationIdentity, warnings = hist.Identity(logger)
	st.Contacts = l.Source.Contacts(ctx, hist.ID)

	subs, subWarnings, err := l.deviceSessions(ctx, hist, logger)
	if err != nil {
		return nil, false, err
	}

	b := &Builder{Logger: logger}
	st.Timeline = *b.Build(subs)
	st.Warnings = append(append(warnings, subWarnings...), st.Warnings...)
	return st, true, nil
}

// deviceSessions normalizes every GNSS device connected to the station.
func (l *Loader) deviceSessions(ctx context.Context, station *tos.History, logger *log.Logger) ([]SubSession, []error, error) {
	norm := &Normalizer{Logger: logger}
	var subs []SubSession
	for _, conn := range station.ChildrenConnections {
		if conn.Malformed() {
			norm.warn(fmt.Errorf("skip connection of device %d: malformed mount dates (from %q, to %q)", conn.IDEntityChild, conn.TimeFrom.Raw, conn.TimeTo.Raw))
			continue
		}
		if conn.IsZeroDuration() {
			norm.warn(fmt.Errorf("skip zero-duration connection of device %d at %s", conn.IDEntityChild, conn.TimeFrom.Format(tos.TimeFormat)))
			continue
		}
		if !conn.TimeTo.IsZero() && conn.TimeTo.Before(conn.TimeFrom.Time) {
			norm.warn(fmt.Errorf("skip connection of device %d: ends before it starts", conn.IDEntityChild))
			continue
		}

		dev, err := l.Source.History(ctx, conn.IDEntityChild)
		if err != nil {
			return nil, nil, err
		}
		if !isGNSSDevice(dev.Subtype) {
			continue
		}

		window := Window{From: conn.TimeFrom.Time, To: conn.TimeTo.Time}
		res, err := norm.Normalize(DeviceFromHistory(dev), window)
		if errors.Is(err, ErrDataInconsistency) {
			norm.warn(err)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		subs = append(subs, res...)
	}
	return subs, norm.Warnings, nil
}

func isGNSSDevice(subtype string) bool {
	for _, s := range tos.DeviceSubtypes {
		if s == subtype {
			return true
		}
	}
	return false
}
