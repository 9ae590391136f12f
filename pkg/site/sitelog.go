package site

import (
	"fmt"
	"io"
	"math"
	"text/template"
	"time"
)

const (
	sitelogDateFormat = "2006-01-02T15:04Z"
	sitelogNoDate     = "(CCYY-MM-DDThh:mmZ)"
)

var sitelogFuncs = template.FuncMap{
	"day": func(t time.Time) string { return t.UTC().Format("2006-01-02") },
	"date": func(t time.Time) string {
		if t.IsZero() {
			return sitelogNoDate
		}
		return t.UTC().Format(sitelogDateFormat)
	},
	"section": func(block, i int) string { return fmt.Sprintf("%-5s", fmt.Sprintf("%d.%d", block, i+1)) },
	"lat":     func(deg float64) string { return dms(deg, 2) },
	"lon":     func(deg float64) string { return dms(deg, 3) },
}

var sitelogTmpl = template.Must(template.New("sitelog").Funcs(sitelogFuncs).Parse(sitelogTempl))

// EncodeSitelog writes the site as IGS site log with the sections 0 to 4 and 11 to 13.
func EncodeSitelog(w io.Writer, site *Site) error {
	return sitelogTmpl.Execute(w, site)
}

// dms formats decimal degrees as signed DDMMSS.SS with the given number of degree digits.
func dms(deg float64, digits int) string {
	sign := "+"
	if deg < 0 {
		sign = "-"
		deg = -deg
	}
	d := math.Floor(deg)
	m := math.Floor((deg - d) * 60)
	s := ((deg-d)*60 - m) * 60
	if s >= 59.995 {
		s = 0
		m++
	}
	if m >= 60 {
		m = 0
		d++
	}
	return fmt.Sprintf("%s%0*d%02d%05.2f", sign, digits, int(d), int(m), s)
}
