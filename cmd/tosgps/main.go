// tosgps reads the metadata of GNSS stations from TOS, prints the equipment history
// and checks RINEX files against it.
package main

import (
	"io"
	"log"
	"os"

	"github.com/de-bkg/tosmeta/pkg/config"
	"github.com/de-bkg/tosmeta/pkg/session"
	"github.com/de-bkg/tosmeta/pkg/tos"
	"github.com/urfave/cli/v2"
)

const version = "0.1.0"

// env is shared by all commands.
type env struct {
	cfg     *config.Config
	logger  *log.Logger
	verbose bool
	loader  *session.Loader
}

func (e *env) infof(format string, v ...interface{}) {
	if e.verbose {
		e.logger.Printf(format, v...)
	}
}

func main() {
	e := &env{}
	app := &cli.App{
		Name:    "tosgps",
		Usage:   "GNSS station metadata from TOS and RINEX header checks",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "TOS API base URL"},
			&cli.DurationFlag{Name: "timeout", Usage: "timeout of a single TOS request"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file (default: " + config.DefaultFile + " if present)"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "no log output"},
			&cli.BoolFlag{Name: "verbose", Usage: "more log output"},
		},
		Before: e.setup,
		Commands: []*cli.Command{
			printCommand(e),
			rinexCommand(e),
			filesCommand(e),
			sitelogCommand(e),
			monitorCommand(e),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// setup loads the config, applies the global flags and creates the TOS client.
func (e *env) setup(c *cli.Context) error {
	e.logger = log.New(os.Stderr, "", log.LstdFlags)
	if c.Bool("quiet") {
		e.logger.SetOutput(io.Discard)
	}
	e.verbose = c.Bool("verbose")

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("url") {
		cfg.TOS.URL = c.String("url")
	}
	if c.IsSet("timeout") {
		cfg.TOS.Timeout = c.Duration("timeout")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg = cfg

	client, err := tos.NewClient(cfg.TOS.URL, tos.Options{
		Timeout:   cfg.TOS.Timeout,
		UserAgent: "tosgps/" + version,
		Logger:    e.logger,
	})
	if err != nil {
		return err
	}
	e.loader = &session.Loader{Source: client, Logger: e.logger}
	e.infof("using TOS at %s", cfg.TOS.URL)
	return nil
}
