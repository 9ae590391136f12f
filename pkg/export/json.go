package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/de-bkg/tosmeta/pkg/session"
	"github.com/de-bkg/tosmeta/pkg/tos"
	"github.com/peterstace/simplefeatures/geom"
)

// Document is the JSON representation of a station.
type Document struct {
	tos.StationIdentity
	Location geom.Geometry     `json:"location"`
	Contacts tos.Contacts      `json:"contact"`
	Sessions []session.Session `json:"device_history"`
}

// Location returns the station position as 3D point with longitude, latitude and altitude.
func Location(id tos.StationIdentity) (geom.Geometry, error) {
	wkt := fmt.Sprintf("POINT Z(%v %v %v)", id.Lon, id.Lat, id.Altitude)
	g, err := geom.UnmarshalWKT(wkt)
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("station %s location: %w", id.Marker, err)
	}
	return g, nil
}

// NewDocument builds the JSON document of the station.
func NewDocument(st *session.Station) (*Document, error) {
	loc, err := Location(st.StationIdentity)
	if err != nil {
		return nil, err
	}
	sessions := st.Sessions
	if sessions == nil {
		sessions = []session.Session{}
	}
	return &Document{StationIdentity: st.StationIdentity, Location: loc, Contacts: st.Contacts, Sessions: sessions}, nil
}

// WriteJSON writes the stations as indented JSON array.
func WriteJSON(w io.Writer, stations ...*session.Station) error {
	docs := make([]*Document, 0, len(stations))
	for _, st := range stations {
		doc, err := NewDocument(st)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}
