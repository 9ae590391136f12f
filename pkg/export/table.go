package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/de-bkg/tosmeta/pkg/session"
)

const tableTimeFormat = "2006-01-02 15:04:05"

// WriteTable writes the station identity, its contacts and the session history as text table.
func WriteTable(w io.Writer, st *session.Station) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "marker\tname\tiers_domes_number\tlat\tlon\taltitude\tdate_start")
	fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%.4f\t%.1f\t%s\n", st.Marker, st.Name, st.DomesNumber, st.Lat, st.Lon, st.Altitude, st.DateStart)
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	roles := make([]string, 0, len(st.Contacts))
	for role := range st.Contacts {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	fmt.Fprintln(tw, "Hlutverk\tNafn")
	for _, role := range roles {
		c := st.Contacts[role]
		fmt.Fprintf(tw, "%s\t%s\n", c.RoleIs, c.Name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w, strings.Repeat("-", 100))

	fmt.Fprintln(tw, "Start time\tEnd time\t| Receiver\tSN\tFirmware\t| Antenna\tSN\tHeight\tRef.\t| Radome\t| Monument\tNorth\tEast")
	for _, sess := range st.Sessions {
		fmt.Fprintf(tw, "%s\t%s\t", tableTime(sess.From), tableTime(sess.To))
		if r := sess.Receiver; r != nil {
			fmt.Fprintf(tw, "| %s\t%s\t%s\t", r.Model, r.SerialNumber, r.FirmwareVersion)
		} else {
			fmt.Fprint(tw, "| -\t\t\t")
		}
		if a := sess.Antenna; a != nil {
			fmt.Fprintf(tw, "| %s\t%s\t%.4f\t%s\t", a.Model, a.SerialNumber, a.Height, a.ReferencePoint)
		} else {
			fmt.Fprint(tw, "| -\t\t\t\t")
		}
		if r := sess.Radome; r != nil {
			fmt.Fprintf(tw, "| %s\t", r.Model)
		} else {
			fmt.Fprint(tw, "| -\t")
		}
		if m := sess.Monument; m != nil {
			fmt.Fprintf(tw, "| %.4f\t%.4f\t%.4f\n", m.Height, m.OffsetNorth, m.OffsetEast)
		} else {
			fmt.Fprint(tw, "| -\t\t\n")
		}
	}
	return tw.Flush()
}

func tableTime(t time.Time) string {
	if t.IsZero() {
		return "None"
	}
	return t.UTC().Format(tableTimeFormat)
}
