// Package monitor builds the monitoring messages published for RINEX/TOS consistency checks.
package monitor

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/de-bkg/tosmeta/pkg/qc"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// KeyRinexTOSConflict is the check key of a RINEX header contradicting TOS.
const KeyRinexTOSConflict = "monitoring.quality.gps.metadata.consistency.rinex_tos_conflict"

// SeverityCritical is the severity of a caught conflict.
const SeverityCritical = "critical"

// Check is the outcome of one check on one RINEX file.
type Check struct {
	Severity        string                    `json:"severity" msgpack:"severity"`
	ObservationTime time.Time                 `json:"observation_time" msgpack:"observation_time"`
	File            string                    `json:"rinex_file" msgpack:"rinex_file"`
	Discrepancies   map[string]qc.Discrepancy `json:"discrepancies,omitempty" msgpack:"discrepancies,omitempty"`
	Structural      map[string]qc.Discrepancy `json:"structural,omitempty" msgpack:"structural,omitempty"`
	MissingTOS      []string                  `json:"missing_tos,omitempty" msgpack:"missing_tos,omitempty"`
	MissingRinex    []string                  `json:"missing_rinex,omitempty" msgpack:"missing_rinex,omitempty"`
}

// Monitoring holds the passed and the caught checks, each keyed by the check key.
type Monitoring struct {
	Passed []map[string]Check `json:"passed" msgpack:"passed"`
	Caught []map[string]Check `json:"caught" msgpack:"caught"`
}

// Message is the monitoring message of a station.
type Message struct {
	ID                string     `json:"id" msgpack:"id"`
	StationIdentifier string     `json:"station_identifier" msgpack:"station_identifier"`
	SensorLocation    string     `json:"sensor_location" msgpack:"sensor_location"`
	SensorIdentifier  string     `json:"sensor_identifier" msgpack:"sensor_identifier"`
	ObservationTime   time.Time  `json:"observation_time" msgpack:"observation_time"`
	Monitoring        Monitoring `json:"monitoring" msgpack:"monitoring"`
}

// New returns the message for the comparison report of a RINEX file of the station.
// A report with discrepancies, structural failures or lines missing in RINEX is caught.
func New(rep *qc.Report, marker string) *Message {
	msg := &Message{
		ID:                uuid.New().String(),
		StationIdentifier: strings.ToLower(marker),
		SensorLocation:    "metadata",
		SensorIdentifier:  "gps",
		ObservationTime:   time.Now().UTC(),
		Monitoring: Monitoring{
			Passed: []map[string]Check{},
			Caught: []map[string]Check{},
		},
	}

	check := Check{
		Severity:        SeverityCritical,
		ObservationTime: rep.Observed,
		File:            rep.File,
		Discrepancies:   rep.Discrepancies,
		Structural:      rep.Structural,
		MissingTOS:      rep.MissingTOS,
		MissingRinex:    rep.MissingRinex,
	}
	result := map[string]Check{KeyRinexTOSConflict: check}
	if rep.Passed() {
		msg.Monitoring.Passed = append(msg.Monitoring.Passed, result)
	} else {
		msg.Monitoring.Caught = append(msg.Monitoring.Caught, result)
	}
	return msg
}

// Caught returns true if the message reports a conflict.
func (m *Message) Caught() bool {
	return len(m.Monitoring.Caught) > 0
}

// MarshalMsgpack encodes the message as MessagePack.
func (m *Message) MarshalMsgpack() ([]byte, error) {
	type message Message
	b, err := msgpack.Marshal((*message)(m))
	if err != nil {
		return nil, fmt.Errorf("encode message %s: %w", m.ID, err)
	}
	return b, nil
}

// UnmarshalMsgpack decodes a MessagePack encoded message.
func (m *Message) UnmarshalMsgpack(b []byte) error {
	type message Message
	return msgpack.Unmarshal(b, (*message)(m))
}

// WriteJSON writes the message as indented JSON.
func (m *Message) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
