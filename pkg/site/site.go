// Package site handles a GNSS site with its antenna, receiver etc. including the history.
package site

import (
	"fmt"
	"strings"
	"time"

	"github.com/de-bkg/tosmeta/pkg/gnss"
	"github.com/go-playground/validator/v10"
)

// timeShift used if chronological items e.g. receivers have identical start/end time.
var timeShift = time.Second

// use a single instance of Validate, it caches struct info
var validate = validator.New()

// Site specifies a GNSS site.
type Site struct {
	FormInfo FormInformation `json:"formInformation"`
	Ident    Identification  `json:"siteIdentification"`
	Location Location        `json:"siteLocation"`

	Receivers []*Receiver `json:"gnssReceivers" validate:"required,min=1,dive,required"`
	Antennas  []*Antenna  `json:"gnssAntennas" validate:"required,min=1,dive,required"`

	Contacts            []Party         `json:"siteContacts"`       // 11. On-Site, Point of Contact Agency Information
	ResponsibleAgencies []Party         `json:"responsibleParties"` // 12. Responsible Agency
	MoreInformation     MoreInformation `json:"moreInformation"`    // 13

	Warnings []error `json:"-"`
}

// FormInformation stores sitelog metdadata.
type FormInformation struct {
	PreparedBy   string    `json:"preparedBy"`
	DatePrepared time.Time `json:"datePrepared" validate:"required"`
	ReportType   string    `json:"reportType"` // NEW/UPDATE
}

// Identification holds common fields about this site.
type Identification struct {
	Name                   string    `json:"siteName" validate:"required"` // City or nearest town
	FourCharacterID        string    `json:"fourCharacterId" validate:"required,len=4"`
	NineCharacterID        string    `json:"nineCharacterId"`
	MonumentInscription    string    `json:"monumentInscription"`
	DOMESNumber            string    `json:"iersDOMESNumber"` // A9
	CDPNumber              string    `json:"cdpNumber"`       // A4
	MonumentDescription    string    `json:"monumentDescription"`
	HeightOfMonument       float64   `json:"heightOfMonument"` // m
	MonumentFoundation     string    `json:"monumentFoundation"`
	FoundationDepth        float64   `json:"foundationDepth"` // m
	MarkerDescription      string    `json:"markerDescription"`
	DateInstalled          time.Time `json:"dateInstalled"`
	GeologicCharacteristic string    `json:"geologicCharacteristic"` // BEDROCK/CLAY/CONGLOMERATE/GRAVEL/SAND/etc
	BedrockType            string    `json:"bedrockType"`            // IGNEOUS/METAMORPHIC/SEDIMENTARY
	BedrockCondition       string    `json:"bedrockCondition"`       // FRESH/JOINTED/WEATHERED
	FractureSpacing        string    `json:"fractureSpacing"`
	FaultZonesNearby       string    `json:"faultZonesNearby"` // YES/NO/Name of the zone
	DistanceActivity       string    `json:"distanceActivity"`
	Notes                  string    `json:"notes"`
}

// Location holds information about the location.
type Location struct {
	City                string              `json:"city"`
	State               string              `json:"state"`
	Country             string              `json:"country"`
	TectonicPlate       string              `json:"tectonicPlate"`
	ApproximatePosition ApproximatePosition `json:"approximatePosition" validate:"required"` // ITRF
	Notes               string              `json:"notes"`
}

// Receiver is a GNSS receiver.
type Receiver struct {
	Type                string       `json:"type" validate:"required"`
	SatSystems          gnss.Systems `json:"satelliteSystem" validate:"required"`
	SerialNum           string       `json:"serialNumber" validate:"required"`
	Firmware            string       `json:"firmwareVersion"`
	ElevationCutoff     float64      `json:"elevationCutoffSetting"`   // degree
	TemperatureStabiliz string       `json:"temperatureStabilization"` // none or tolerance in degrees C
	DateInstalled       time.Time    `json:"dateInstalled" validate:"required"`
	DateRemoved         time.Time    `json:"dateRemoved"`
	Notes               string       `json:"notes"`
}

// Antenna is a GNSS antenna.
type Antenna struct {
	Type                   string    `json:"type" validate:"required"`
	Radome                 string    `json:"antennaRadomeType"`
	RadomeSerialNum        string    `json:"radomeSerialNumber"`
	SerialNum              string    `json:"serialNumber" validate:"required"`
	ReferencePoint         string    `json:"antennaReferencePoint"`
	EccUp                  float64   `json:"markerArpUpEcc"`
	EccNorth               float64   `json:"markerArpNorthEcc"`
	EccEast                float64   `json:"markerArpEastEcc"`
	AlignmentFromTrueNorth float64   `json:"alignmentFromTrueNorth"` // in deg; + is clockwise/east
	CableType              string    `json:"antennaCableType"`
	CableLength            float32   `json:"antennaCableLength"` // in meter
	DateInstalled          time.Time `json:"dateInstalled" validate:"required"`
	DateRemoved            time.Time `json:"dateRemoved"`
	Notes                  string    `json:"notes"`
}

// CartesianPosition is a point specified by its XYZ-coordinates.
type CartesianPosition struct {
	Type        string     `json:"type"` // "Point"
	Coordinates [3]float64 `json:"coordinates"`
}

// GeodeticPosition is a point specified by lat,lon and ellipsoid height.
type GeodeticPosition struct {
	Type        string     `json:"type"` // "Point"
	Coordinates [3]float64 `json:"coordinates"`
}

// ApproximatePosition stores the approximate position of the site.
type ApproximatePosition struct {
	CartesianPosition CartesianPosition `json:"cartesianPosition"`
	GeodeticPosition  GeodeticPosition  `json:"geodeticPosition"`
}

// NewApproximatePosition returns the position for WGS84 latitude, longitude and ellipsoidal height.
func NewApproximatePosition(lat, lon, height float64) ApproximatePosition {
	return ApproximatePosition{
		CartesianPosition: CartesianPosition{Type: "Point", Coordinates: gnss.GeodeticToECEF(lat, lon, height).Array()},
		GeodeticPosition:  GeodeticPosition{Type: "Point", Coordinates: [3]float64{lat, lon, height}},
	}
}

// MoreInformation about data centers, pictures etc., sitelog block 13
type MoreInformation struct {
	PrimaryDataCenter     string `json:"primaryDataCenter"`
	SecondaryDataCenter   string `json:"secondaryDataCenter"`
	URLForMoreInformation string `json:"urlForMoreInformation"`
	Notes                 string `json:"notes"`
}

// Party describes an organisation with its contact person.
type Party struct {
	IndividualName   string `json:"individualName"`
	OrganisationName string `json:"organisationName"`
	Abbreviation     string `json:"abbreviation"`
	Address          string `json:"address"`
	Phone            string `json:"phone"`
	Email            string `json:"email" validate:"omitempty,email"`
}

// Validate validates the site data.
// As often having lousy input, the values are cleaned as much as possible before, missing fields e.g. dates are set if possible.
func (site *Site) Validate() error {
	if err := site.cleanReceivers(); err != nil {
		return err
	}
	if err := site.cleanAntennas(); err != nil {
		return err
	}
	return validate.Struct(site)
}

// period points to the installation dates of a receiver or antenna.
type period struct {
	installed *time.Time
	removed   *time.Time
}

func (site *Site) cleanReceivers() error {
	list := make([]period, 0, len(site.Receivers))
	for _, r := range site.Receivers {
		list = append(list, period{&r.DateInstalled, &r.DateRemoved})
	}
	return site.cleanDates("receiver", list)
}

func (site *Site) cleanAntennas() error {
	list := make([]period, 0, len(site.Antennas))
	for i, curr := range site.Antennas {
		// ANT TYPE should be 20 char long
		if len(curr.Type) != 20 {
			parts := strings.Fields(curr.Type)
			if len(parts) == 2 && len(parts[1]) == 4 {
				curr.Type = fmt.Sprintf("%-15s %4s", parts[0], parts[1])
				if curr.Radome == "" {
					curr.Radome = parts[1]
				} else if curr.Radome != parts[1] {
					return fmt.Errorf("antenna %d Antenna Radome Type %q differs from Antenna Type %q", i+1, curr.Radome, curr.Type)
				}
			} else if len(parts) == 1 && curr.Radome != "" {
				curr.Type = fmt.Sprintf("%-15s %4s", parts[0], curr.Radome)
			}
		}
		list = append(list, period{&curr.DateInstalled, &curr.DateRemoved})
	}
	return site.cleanDates("antenna", list)
}

// cleanDates fills missing installation dates from the neighbours and makes them chronological.
func (site *Site) cleanDates(item string, list []period) error {
	for i, curr := range list {
		n := i + 1

		// check date installed
		if curr.installed.IsZero() {
			site.Warnings = append(site.Warnings, fmt.Errorf("%s %d with empty %q", item, n, "Date Installed"))
			if i == 0 {
				return fmt.Errorf("%s %d with empty %q", item, n, "Date Installed")
			}
			if list[i-1].removed.IsZero() {
				return fmt.Errorf("empty %q from %s %d could not be corrected", "Date Installed", item, n)
			}
			*curr.installed = list[i-1].removed.Add(timeShift)
		}

		// check date removed
		if curr.removed.IsZero() && n < len(list) {
			site.Warnings = append(site.Warnings, fmt.Errorf("%s %d with empty %q", item, n, "Date Removed"))
			next := list[i+1]
			if next.installed.IsZero() {
				return fmt.Errorf("empty %q from %s %d could not be corrected", "Date Removed", item, n)
			}
			*curr.removed = next.installed.Add(timeShift * -1)
		}

		if i > 0 {
			prev := list[i-1]
			if prev.removed.After(*curr.installed) {
				return fmt.Errorf("%s %d and %d are not chronological", item, n-1, n)
			} else if prev.removed.Equal(*curr.installed) {
				// dates must be unique, so we introduce a small shift
				*prev.removed = prev.removed.Add(timeShift * -1)
			}
		}
	}
	return nil
}
