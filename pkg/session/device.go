package session

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/de-bkg/tosmeta/pkg/tos"
)

// DeviceType is the TOS entity subtype of a device.
type DeviceType string

// The device types making up a GNSS station.
const (
	TypeReceiver DeviceType = tos.SubtypeReceiver
	TypeAntenna  DeviceType = tos.SubtypeAntenna
	TypeRadome   DeviceType = tos.SubtypeRadome
	TypeMonument DeviceType = tos.SubtypeMonument
)

// Snapshot is the typed state of one device during a session.
type Snapshot interface {
	Type() DeviceType
}

// Receiver is a GNSS receiver.
type Receiver struct {
	Model           string `json:"model" msgpack:"model"`
	SerialNumber    string `json:"serial_number" msgpack:"serial_number"`
	FirmwareVersion string `json:"firmware_version" msgpack:"firmware_version"`
	SoftwareVersion string `json:"software_version" msgpack:"software_version"`
}

// Antenna is a GNSS antenna with its eccentricities.
type Antenna struct {
	Model          string  `json:"model" msgpack:"model"`
	SerialNumber   string  `json:"serial_number" msgpack:"serial_number"`
	Height         float64 `json:"antenna_height" msgpack:"antenna_height"`
	OffsetNorth    float64 `json:"antenna_offset_north" msgpack:"antenna_offset_north"`
	OffsetEast     float64 `json:"antenna_offset_east" msgpack:"antenna_offset_east"`
	ReferencePoint string  `json:"antenna_reference_point" msgpack:"antenna_reference_point"`
}

// Radome is an antenna radome.
type Radome struct {
	Model        string `json:"model" msgpack:"model"`
	SerialNumber string `json:"serial_number" msgpack:"serial_number"`
}

// Monument is the station monument.
type Monument struct {
	SerialNumber string  `json:"serial_number" msgpack:"serial_number"`
	Height       float64 `json:"monument_height" msgpack:"monument_height"`
	OffsetNorth  float64 `json:"monument_offset_north" msgpack:"monument_offset_north"`
	OffsetEast   float64 `json:"monument_offset_east" msgpack:"monument_offset_east"`
}

// Unknown is returned for device types which are not part of a GNSS station. It has no fields.
type Unknown struct {
	Kind DeviceType `json:"-"`
}

func (Receiver) Type() DeviceType  { return TypeReceiver }
func (Antenna) Type() DeviceType   { return TypeAntenna }
func (Radome) Type() DeviceType    { return TypeRadome }
func (Monument) Type() DeviceType  { return TypeMonument }
func (u Unknown) Type() DeviceType { return u.Kind }

// Mapper converts raw device attributes into typed snapshots.
type Mapper struct {
	Logger   *log.Logger
	Warnings []error
}

// MapDevice converts the raw attributes of a device into its typed snapshot.
// Numeric fields default to 0 if they are missing or not parsable.
func MapDevice(typ DeviceType, attrs map[string]string) Snapshot {
	m := &Mapper{}
	return m.Map(typ, attrs)
}

// Map converts the raw attributes of a device into its typed snapshot and
// records a warning for every value that is not a number.
func (m *Mapper) Map(typ DeviceType, attrs map[string]string) Snapshot {
	switch typ {
	case TypeReceiver:
		return Receiver{
			Model:           attrs["model"],
			SerialNumber:    attrs["serial_number"],
			FirmwareVersion: attrs["firmware_version"],
			SoftwareVersion: attrs["software_version"],
		}
	case TypeAntenna:
		return Antenna{
			Model:          attrs["model"],
			SerialNumber:   attrs["serial_number"],
			Height:         m.float(attrs, "antenna_height"),
			OffsetNorth:    m.float(attrs, "antenna_offset_north"),
			OffsetEast:     m.float(attrs, "antenna_offset_east"),
			ReferencePoint: attrs["antenna_reference_point"],
		}
	case TypeRadome:
		return Radome{
			Model:        attrs["model"],
			SerialNumber: attrs["serial_number"],
		}
	case TypeMonument:
		return Monument{
			SerialNumber: attrs["serial_number"],
			Height:       m.float(attrs, "monument_height", "antenna_height"),
			OffsetNorth:  m.float(attrs, "monument_offset_north", "antenna_offset_north"),
			OffsetEast:   m.float(attrs, "monument_offset_east", "antenna_offset_east"),
		}
	default:
		return Unknown{Kind: typ}
	}
}

// float returns the first present of the codes as float.
func (m *Mapper) float(attrs map[string]string, codes ...string) float64 {
	for _, code := range codes {
		s, ok := attrs[code]
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			err = fmt.Errorf("%s: not a number: %q", code, s)
			if m.Logger != nil {
				m.Logger.Printf("WARN: %v", err)
			}
			m.Warnings = append(m.Warnings, err)
			return 0
		}
		return f
	}
	return 0
}
