// Package chainstatecli is the command line front end of the chainstate node. It runs the daemon
// and offers offline commands to audit the ledger and to inspect or maintain the double spend
// registry, the block index and UTXO set snapshots.
package chainstatecli

import (
	"context"
	"net/url"
	"os"

	"github.com/bsv-blockchain/chainstate/daemon"
	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/settings"
	"github.com/bsv-blockchain/chainstate/ulogger"
	"github.com/ordishs/gocore"
	"github.com/urfave/cli/v2"
)

const (
	flagDataFolder        = "data-folder"
	flagChainstateStore   = "chainstate-store"
	flagDoubleSpendsStore = "doublespends-store"
	flagBlockIndexStore   = "blockindex-store"
	flagLogLevel          = "log-level"
)

// NewApp builds the command tree. Settings come from gocore config and can be overridden by the
// global flags.
func NewApp(progname, version, commit string) *cli.App {
	return &cli.App{
		Name:    progname,
		Usage:   "UTXO set auditor and double spend registry",
		Version: version + " (" + commit + ")",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagDataFolder, Usage: "folder for leveldb, bolt and sqlite stores"},
			&cli.StringFlag{Name: flagChainstateStore, Usage: "chainstate store url"},
			&cli.StringFlag{Name: flagDoubleSpendsStore, Usage: "double spend registry store url"},
			&cli.StringFlag{Name: flagBlockIndexStore, Usage: "block index store url"},
			&cli.StringFlag{Name: flagLogLevel, Usage: "DEBUG, INFO, WARN or ERROR"},
		},
		Commands: []*cli.Command{
			serveCommand(progname, version, commit),
			auditCommand(),
			doubleSpendsCommand(),
			chainstateCommand(),
			blockIndexCommand(),
		},
	}
}

// Run executes the command line in args and exits with status 1 on failure.
func Run(progname, version, commit string, args []string) {
	if err := NewApp(progname, version, commit).Run(args); err != nil {
		ulogger.New(progname).Errorf("%v", err)
		os.Exit(1)
	}
}

func serveCommand(progname, version, commit string) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the audit and double spend registry API",
		Action: func(c *cli.Context) error {
			tSettings, err := loadSettings(c)
			if err != nil {
				return err
			}

			gocore.SetInfo(progname, version, commit)

			logger := ulogger.InitLogger(progname, tSettings)

			stats := gocore.Config().Stats()
			logger.Infof("STATS\n%s\nVERSION\n-------\n%s (%s)\n\n", stats, version, commit)

			return daemon.New(
				daemon.WithContext(c.Context),
				daemon.WithLoggerFactory(ulogger.NewFactory(tSettings)),
			).Start(logger, tSettings)
		},
	}
}

func loadSettings(c *cli.Context) (*settings.Settings, error) {
	tSettings := settings.NewSettings()

	if v := c.String(flagDataFolder); v != "" {
		tSettings.DataFolder = v
	}

	if v := c.String(flagLogLevel); v != "" {
		tSettings.LogLevel = v
	}

	for _, o := range []struct {
		flag string
		dst  **url.URL
	}{
		{flagChainstateStore, &tSettings.Chainstate.StoreURL},
		{flagDoubleSpendsStore, &tSettings.DoubleSpends.StoreURL},
		{flagBlockIndexStore, &tSettings.BlockIndex.StoreURL},
	} {
		v := c.String(o.flag)
		if v == "" {
			continue
		}

		u, err := url.Parse(v)
		if err != nil {
			return nil, errors.NewConfigurationError("invalid --%s %q", o.flag, v, err)
		}

		*o.dst = u
	}

	return tSettings, nil
}

// withStores opens the configured stores for the duration of fn.
func withStores(c *cli.Context, fn func(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, stores *daemon.Stores) error) error {
	tSettings, err := loadSettings(c)
	if err != nil {
		return err
	}

	loggerFactory := ulogger.NewFactory(tSettings)
	logger := loggerFactory(c.App.Name)

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	stores, err := daemon.OpenStores(ctx, loggerFactory, tSettings)
	if err != nil {
		return err
	}

	defer stores.Close(logger)

	return fn(ctx, logger, tSettings, stores)
}
