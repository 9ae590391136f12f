package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/de-bkg/tosmeta/pkg/export"
	"github.com/de-bkg/tosmeta/pkg/monitor"
	"github.com/de-bkg/tosmeta/pkg/qc"
	"github.com/de-bkg/tosmeta/pkg/rinex"
	"github.com/de-bkg/tosmeta/pkg/session"
	"github.com/de-bkg/tosmeta/pkg/site"
	"github.com/urfave/cli/v2"
)

const dateFormat = "2006-01-02"

// station loads the station or returns an exit error if it does not exist.
func (e *env) station(ctx context.Context, marker string) (*session.Station, error) {
	st, ok, err := e.loader.Load(ctx, marker)
	if err != nil {
		return nil, fmt.Errorf("station %s: %w", marker, err)
	}
	if !ok {
		return nil, cli.Exit(fmt.Sprintf("station %s not found in TOS", marker), 1)
	}
	if is := st.Validate(); !is.OK() {
		for _, w := range is.Gaps {
			e.logger.Printf("WARN: %s: gap in the session history %s", st.Marker, w)
		}
		for _, w := range is.Overlaps {
			e.logger.Printf("WARN: %s: overlapping sessions %s", st.Marker, w)
		}
		for _, m := range is.MissingDevices {
			e.logger.Printf("WARN: %s: %s", st.Marker, m)
		}
	}
	e.infof("%s: %d sessions", st.Marker, len(st.Sessions))
	return st, nil
}

func printCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "print",
		Usage:     "Print the equipment history of stations",
		ArgsUsage: "STATION...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "output format: table, json, csv"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("no station given", 1)
			}
			format := c.String("format")
			switch format {
			case "table", "json", "csv":
			default:
				return cli.Exit(fmt.Sprintf("unknown format %q", format), 1)
			}

			var stations []*session.Station
			for _, marker := range c.Args().Slice() {
				st, err := e.station(c.Context, marker)
				if err != nil {
					return err
				}
				stations = append(stations, st)
			}

			switch format {
			case "json":
				return export.WriteJSON(os.Stdout, stations...)
			case "csv":
				return export.WriteCSV(os.Stdout, stations...)
			}
			for _, st := range stations {
				if err := export.WriteTable(os.Stdout, st); err != nil {
					return err
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func rinexCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "rinex",
		Usage:     "Compare RINEX headers with TOS and optionally write corrected files",
		ArgsUsage: "STATION FILE...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "fix", Usage: "write corrected files into the output directory"},
			&cli.BoolFlag{Name: "backup", Usage: "keep a copy of the original file in OUTDIR/backup"},
			&cli.BoolFlag{Name: "overwrite", Usage: "replace existing corrected files"},
			&cli.StringFlag{Name: "outdir", Aliases: []string{"o"}, Usage: "output directory for corrected files (default from config)"},
			&cli.BoolFlag{Name: "report", Usage: "print the full comparison report as JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return cli.Exit("need a station and at least one RINEX file", 1)
			}
			st, err := e.station(c.Context, c.Args().First())
			if err != nil {
				return err
			}

			opts := rinex.FixOptions{OutDir: e.cfg.OutputDir, Backup: c.Bool("backup"), Overwrite: c.Bool("overwrite")}
			if c.IsSet("outdir") {
				opts.OutDir = c.String("outdir")
			}

			cmp := qc.NewComparator(qc.Options{Logger: e.logger})
			var reports []*qc.Report
			failed := 0
			for _, path := range c.Args().Tail() {
				rep, hdr, err := cmp.CheckFile(path, st)
				if err != nil {
					e.logger.Printf("%s: %v", path, err)
					failed++
					continue
				}
				reports = append(reports, rep)
				if !c.Bool("report") {
					printSummary(rep)
				}

				if !c.Bool("fix") || !rep.Fixable() {
					continue
				}
				lines, err := hdr.Apply(rep.Corrections)
				if err != nil {
					e.logger.Printf("%s: %v", path, err)
					failed++
					continue
				}
				out, err := rinex.WriteFixed(path, lines, opts)
				if err != nil {
					e.logger.Printf("%s: %v", path, err)
					failed++
					continue
				}
				e.logger.Printf("corrected %s written to %s", filepath.Base(path), out)
			}

			if c.Bool("report") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(reports); err != nil {
					return err
				}
			}
			if failed > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d files failed", failed, c.NArg()-1), 1)
			}
			return nil
		},
	}
}

func printSummary(rep *qc.Report) {
	name := filepath.Base(rep.File)
	if rep.Passed() {
		fmt.Printf("%s: OK\n", name)
		return
	}
	for key, d := range rep.Structural {
		fmt.Printf("%s: %s: RINEX %v, TOS %v\n", name, key, d.Rinex, d.TOS)
	}
	for label, d := range rep.Discrepancies {
		fmt.Printf("%s: %s: RINEX %v, TOS %v\n", name, label, d.Rinex, d.TOS)
	}
	if len(rep.MissingRinex) > 0 {
		fmt.Printf("%s: missing in RINEX: %s\n", name, strings.Join(rep.MissingRinex, ", "))
	}
	if len(rep.MissingTOS) > 0 {
		fmt.Printf("%s: missing in TOS: %s\n", name, strings.Join(rep.MissingTOS, ", "))
	}
}

func filesCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "files",
		Usage:     "List the daily archive files of every session of a station",
		ArgsUsage: "STATION",
		Flags: []cli.Flag{
			&cli.TimestampFlag{Name: "start", Layout: dateFormat, Usage: "first day (YYYY-MM-DD)"},
			&cli.TimestampFlag{Name: "end", Layout: dateFormat, Usage: "day after the last day (YYYY-MM-DD)"},
			&cli.BoolFlag{Name: "existing", Usage: "list only files found in the archive"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("need exactly one station", 1)
			}
			st, err := e.station(c.Context, c.Args().First())
			if err != nil {
				return err
			}

			var start, end time.Time
			if t := c.Timestamp("start"); t != nil {
				start = *t
			}
			if t := c.Timestamp("end"); t != nil {
				end = *t
			}
			list, err := qc.ArchiveFiles(st, e.cfg.Archive, start, end, time.Now())
			if err != nil {
				return err
			}

			for _, sf := range list {
				fmt.Printf("# session %s\n", sf.Session)
				for _, path := range sf.Files {
					if c.Bool("existing") {
						if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
							e.infof("%s: not in archive", path)
							continue
						}
					}
					fmt.Println(path)
				}
			}
			return nil
		},
	}
}

func sitelogCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "sitelog",
		Usage:     "Write IGS site logs",
		ArgsUsage: "STATION...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "directory for the site logs, stdout if not set"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("no station given", 1)
			}
			now := time.Now().UTC()
			for _, marker := range c.Args().Slice() {
				st, err := e.station(c.Context, marker)
				if err != nil {
					return err
				}

				s := site.FromStation(st, now)
				if err := s.Validate(); err != nil {
					e.logger.Printf("WARN: %s: %v", st.Marker, err)
				}
				for _, w := range s.Warnings {
					e.logger.Printf("WARN: %s: %v", st.Marker, w)
				}

				if !c.IsSet("output") {
					if err := site.EncodeSitelog(os.Stdout, s); err != nil {
						return err
					}
					continue
				}
				if err := writeSitelog(c.String("output"), s, now); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func writeSitelog(dir string, s *site.Site, now time.Time) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s_%s.log", strings.ToLower(s.Ident.NineCharacterID), now.Format("20060102"))
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	if err := site.EncodeSitelog(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func monitorCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "monitor",
		Usage:     "Print the monitoring message of the check of a RINEX file",
		ArgsUsage: "STATION FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "msgpack", Usage: "write the message MessagePack encoded to this file"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("need a station and a RINEX file", 1)
			}
			st, err := e.station(c.Context, c.Args().Get(0))
			if err != nil {
				return err
			}
			rep, _, err := qc.NewComparator(qc.Options{Logger: e.logger}).CheckFile(c.Args().Get(1), st)
			if err != nil {
				return err
			}

			msg := monitor.New(rep, st.Marker)
			if !c.IsSet("msgpack") {
				return msg.WriteJSON(os.Stdout)
			}
			b, err := msg.MarshalMsgpack()
			if err != nil {
				return err
			}
			return os.WriteFile(c.String("msgpack"), b, 0o644)
		},
	}
}
