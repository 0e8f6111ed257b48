package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/robo-predictor/internal/config"
	"github.com/danielpatrickdp/robo-predictor/internal/journal"
	"github.com/danielpatrickdp/robo-predictor/internal/logging"
)

const roboLongDesc string = `Robo predicts whether the next planet it lands on is in day or night,
using a small bounded memory of past visits and an external guess.

Commands:
  robo run       Predict planets read from stdin
  robo serve     Run the predictor gRPC service and /metrics
  robo oracle    Serve a static or table-driven oracle`

const roboShortDesc string = "Robo - day/night planet predictor"

// globalKeys maps persistent flags to config keys.
var globalKeys = map[string]string{
	"debug":            "log.debug",
	"json":             "log.json",
	"pretty":           "log.pretty",
	"journal":          "journal.path",
	"capacity-singles": "capacity.singles",
	"capacity-pairs":   "capacity.pairs",
	"capacity-triples": "capacity.triples",
	"capacity-budget":  "capacity.budget",
}

type roboCommander struct {
	configFile string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	cmder := &roboCommander{}

	cmd := &cobra.Command{
		Use:          "robo",
		Short:        roboShortDesc,
		Long:         roboLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.StringVarP(&cmder.configFile, "config", "c", "", "Config file (default: ./robo.toml when present)")
	pf.BoolP("debug", "d", false, "Enable debug logging")
	pf.Bool("json", false, "Log as JSON")
	pf.Bool("pretty", false, "Colorized terminal logs")
	pf.String("journal", "", "Path to SQLite step journal (empty disables)")
	pf.Int("capacity-singles", 0, "Max single-planet entries (0: unbounded)")
	pf.Int("capacity-pairs", 0, "Max pair entries (0: unbounded)")
	pf.Int("capacity-triples", 0, "Max triple entries (0: unbounded)")
	pf.Int("capacity-budget", 0, "Byte budget split across all tables; overrides per-table values")

	cmd.AddCommand(newRunCmd(cmder))
	cmd.AddCommand(newServeCmd(cmder))
	cmd.AddCommand(newOracleCmd(cmder))

	return cmd
}

// load resolves the configuration for cmd, binding the global flags plus the
// command's own flags in keys, and builds the logger.
func (c *roboCommander) load(cmd *cobra.Command, keys map[string]string) error {
	v, err := config.InitViper(c.configFile)
	if err != nil {
		return err
	}
	if err := config.BindFlags(v, cmd.Flags(), globalKeys); err != nil {
		return err
	}
	if err := config.BindFlags(v, cmd.Flags(), keys); err != nil {
		return err
	}

	c.cfg, err = config.Load(v)
	if err != nil {
		return err
	}

	// Pretty logs by default on a terminal, unless JSON was asked for.
	pretty := c.cfg.Log.Pretty
	if !pretty && !c.cfg.Log.JSON && !cmd.Flags().Changed("pretty") {
		pretty = isatty.IsTerminal(os.Stderr.Fd())
	}
	c.logger = logging.New(
		logging.WithDebug(c.cfg.Log.Debug),
		logging.WithJSON(c.cfg.Log.JSON),
		logging.WithPretty(pretty),
		logging.WithWriter(cmd.ErrOrStderr()),
	)
	return nil
}

// openJournal returns nil when no journal path is configured.
func (c *roboCommander) openJournal() (*journal.Store, error) {
	if c.cfg.Journal.Path == "" {
		return nil, nil
	}
	store, err := journal.NewStore(c.cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	c.logger.Info("using SQLite journal", "path", c.cfg.Journal.Path)
	return store, nil
}
