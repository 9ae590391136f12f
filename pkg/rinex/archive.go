package rinex

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Archive describes the directory layout of the daily RINEX archive:
// Root/YYYY/mon/STAT/Frequency/RawDir/STATDDD0.YYD.Z
type Archive struct {
	Root        string `yaml:"root" validate:"required"`
	Frequency   string `yaml:"frequency"`
	RawDir      string `yaml:"rawdir"`
	Compression string `yaml:"compression"`
}

// DailyFile returns the path of the daily Hatanaka compressed observation file of the station.
func (ar Archive) DailyFile(marker string, day time.Time) (string, error) {
	day = day.UTC()
	fil := &RnxFil{
		FourCharID:  strings.ToUpper(marker),
		StartTime:   day,
		FilePeriod:  "01D",
		DataFreq:    "15S",
		DataType:    "MO",
		Format:      "crx",
		Compression: ar.Compression,
	}
	name, err := fil.Rnx2Filename()
	if err != nil {
		return "", fmt.Errorf("archive file for %s: %w", marker, err)
	}
	name = strings.ToUpper(name)
	if ar.Compression != "" {
		name += "." + ar.Compression
	}

	return filepath.Join(ar.Root, day.Format("2006"), strings.ToLower(day.Format("Jan")),
		fil.FourCharID, ar.Frequency, ar.RawDir, name), nil
}

// DailyFiles returns the daily files for every day whose midnight lies in [from, to).
func (ar Archive) DailyFiles(marker string, from, to time.Time) ([]string, error) {
	day := from.UTC().Truncate(24 * time.Hour)
	if day.Before(from) {
		day = day.Add(24 * time.Hour)
	}

	var files []string
	for ; day.Before(to); day = day.Add(24 * time.Hour) {
		path, err := ar.DailyFile(marker, day)
		if err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, nil
}
