package site

import (
	"fmt"
	"strings"
	"time"

	"github.com/de-bkg/tosmeta/pkg/gnss"
	"github.com/de-bkg/tosmeta/pkg/session"
	"github.com/de-bkg/tosmeta/pkg/tos"
)

const (
	noRadome       = "NONE"
	defaultCountry = "Iceland"
	defaultARP     = "BPA"
)

// FromStation builds the site from the station metadata. Consecutive sessions with the same
// receiver, or the same antenna and radome, become one receiver or antenna entry.
// The site is not validated.
func FromStation(st *session.Station, prepared time.Time) *Site {
	site := &Site{
		FormInfo: FormInformation{
			PreparedBy:   st.Contacts.Owner().PrimaryContact,
			DatePrepared: prepared.UTC(),
			ReportType:   "UPDATE",
		},
		Ident: Identification{
			Name:                   st.Name,
			FourCharacterID:        strings.ToUpper(st.Marker),
			DOMESNumber:            st.DomesNumber,
			GeologicCharacteristic: strings.ToUpper(st.GeologicalCharacteristic),
			BedrockType:            strings.ToUpper(st.BedrockType),
			BedrockCondition:       strings.ToUpper(st.BedrockCondition),
			FaultZonesNearby:       strings.ToUpper(st.IsNearFaultZones),
		},
		Location: Location{
			Country:             defaultCountry,
			ApproximatePosition: NewApproximatePosition(st.Lat, st.Lon, st.Altitude),
		},
		MoreInformation: MoreInformation{URLForMoreInformation: st.Contacts.Owner().MainURLEn},
	}
	if st.Marker != "" {
		site.Ident.NineCharacterID = strings.ToUpper(st.Marker) + "00ISL"
	}

	if st.DateStart != "" {
		installed, err := tos.ParseTime(st.DateStart)
		if err != nil {
			site.Warnings = append(site.Warnings, fmt.Errorf("station %s: date_start: %w", st.Marker, err))
		}
		site.Ident.DateInstalled = installed
	}

	if n := len(st.Sessions); n > 0 {
		if mon := st.Sessions[n-1].Monument; mon != nil {
			site.Ident.HeightOfMonument = mon.Height
		}
	}

	site.Receivers = receivers(st.Sessions)
	site.Antennas = antennas(st.Sessions)

	if c, ok := st.Contacts[tos.RoleContact]; ok {
		site.Contacts = append(site.Contacts, party(c))
	}
	if c, ok := st.Contacts[tos.RoleOwner]; ok {
		site.ResponsibleAgencies = append(site.ResponsibleAgencies, party(c))
	}
	return site
}

func receivers(sessions []session.Session) []*Receiver {
	var list []*Receiver
	var last *session.Receiver
	for _, sess := range sessions {
		rec := sess.Receiver
		if rec == nil {
			last = nil
			continue
		}
		if last != nil && *last == *rec && list[len(list)-1].DateRemoved.Equal(sess.From) {
			list[len(list)-1].DateRemoved = sess.To
			continue
		}

		firmware := rec.FirmwareVersion
		if firmware == "" {
			firmware = rec.SoftwareVersion
		}
		list = append(list, &Receiver{
			Type:          rec.Model,
			SatSystems:    gnss.Systems{gnss.SysGPS},
			SerialNum:     rec.SerialNumber,
			Firmware:      firmware,
			DateInstalled: sess.From,
			DateRemoved:   sess.To,
		})
		last = rec
	}
	return list
}

// antennaSetup is the antenna with its radome as installed during a session.
type antennaSetup struct {
	antenna session.Antenna
	radome  session.Radome
}

func setupOf(sess session.Session) antennaSetup {
	setup := antennaSetup{antenna: *sess.Antenna}
	if sess.Radome != nil {
		setup.radome = *sess.Radome
	}
	return setup
}

func antennas(sessions []session.Session) []*Antenna {
	var list []*Antenna
	var last *antennaSetup
	for _, sess := range sessions {
		if sess.Antenna == nil {
			last = nil
			continue
		}
		setup := setupOf(sess)
		if last != nil && *last == setup && list[len(list)-1].DateRemoved.Equal(sess.From) {
			list[len(list)-1].DateRemoved = sess.To
			continue
		}

		radome := setup.radome.Model
		if radome == "" {
			radome = noRadome
		}
		arp := setup.antenna.ReferencePoint
		if arp == "" {
			arp = defaultARP
		}
		list = append(list, &Antenna{
			Type:            fmt.Sprintf("%-15s %4s", setup.antenna.Model, radome),
			Radome:          radome,
			RadomeSerialNum: setup.radome.SerialNumber,
			SerialNum:       setup.antenna.SerialNumber,
			ReferencePoint:  arp,
			EccUp:           setup.antenna.Height,
			EccNorth:        setup.antenna.OffsetNorth,
			EccEast:         setup.antenna.OffsetEast,
			DateInstalled:   sess.From,
			DateRemoved:     sess.To,
		})
		last = &setup
	}
	return list
}

func party(c tos.Contact) Party {
	name := c.Name
	if c.NameEn != "" {
		name = c.NameEn
	}
	addr := c.Address
	if c.AddressEn != "" {
		addr = c.AddressEn
	}
	return Party{
		IndividualName:   c.PrimaryContact,
		OrganisationName: name,
		Abbreviation:     c.Abbreviation,
		Address:          addr,
		Phone:            c.PhonePrimary,
		Email:            c.Email,
	}
}
