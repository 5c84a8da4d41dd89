package chainstatecli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/bsv-blockchain/chainstate/daemon"
	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/model"
	"github.com/bsv-blockchain/chainstate/services/doublespends"
	"github.com/bsv-blockchain/chainstate/services/utxoaudit"
	"github.com/bsv-blockchain/chainstate/settings"
	"github.com/bsv-blockchain/chainstate/ulogger"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/urfave/cli/v2"
)

func printJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.NewProcessingError("failed to encode output", err)
	}

	_, err = fmt.Fprintln(w, string(b))

	return err
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "compute the utxo set statistics and digest",
		Action: func(c *cli.Context) error {
			return withStores(c, func(ctx context.Context, logger ulogger.Logger, _ *settings.Settings, stores *daemon.Stores) error {
				stats, err := utxoaudit.New(logger).ComputeUTXOStats(ctx, stores.Chainstate)
				if err != nil {
					return err
				}

				return printJSON(c.App.Writer, stats)
			})
		},
	}
}

func doubleSpendsCommand() *cli.Command {
	return &cli.Command{
		Name:  "doublespends",
		Usage: "inspect and maintain the double spend registry",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "print every record",
				Action: func(c *cli.Context) error {
					return withRegistry(c, func(_ context.Context, registry *doublespends.Registry) error {
						records := registry.GetAllRecords()

						sort.Slice(records, func(i, j int) bool {
							return records[i].Outpoint.Compare(records[j].Outpoint) < 0
						})

						return printJSON(c.App.Writer, records)
					})
				},
			},
			{
				Name:  "register",
				Usage: "record a transaction trying to spend a contested outpoint",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "outpoint", Usage: "<txid>:<vout>", Required: true},
					&cli.StringFlag{Name: "txid", Usage: "conflicting transaction id", Required: true},
					&cli.UintFlag{Name: "height", Usage: "block height the conflict was seen at", Required: true},
				},
				Action: func(c *cli.Context) error {
					outpoint, err := model.NewOutpointFromString(c.String("outpoint"))
					if err != nil {
						return err
					}

					txID, err := chainhash.NewHashFromStr(c.String("txid"))
					if err != nil {
						return errors.NewInvalidArgumentError("invalid txid %q", c.String("txid"), err)
					}

					height, err := heightFlag(c)
					if err != nil {
						return err
					}

					return withRegistry(c, func(ctx context.Context, registry *doublespends.Registry) error {
						if err := registry.RegisterDoubleSpendAttempt(ctx, outpoint, *txID, height); err != nil {
							return err
						}

						return printJSON(c.App.Writer, registry.GetRecord(outpoint))
					})
				},
			},
			{
				Name:  "prune",
				Usage: "delete the records buried six or more blocks below --height",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "height", Usage: "current block height", Required: true},
				},
				Action: func(c *cli.Context) error {
					height, err := heightFlag(c)
					if err != nil {
						return err
					}

					return withRegistry(c, func(ctx context.Context, registry *doublespends.Registry) error {
						deleted, remaining, err := registry.PruneOldRecords(ctx, height)
						if err != nil {
							return err
						}

						_, err = fmt.Fprintf(c.App.Writer, "deleted %d records, %d remaining\n", deleted, remaining)

						return err
					})
				},
			},
		},
	}
}

func withRegistry(c *cli.Context, fn func(ctx context.Context, registry *doublespends.Registry) error) error {
	return withStores(c, func(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, stores *daemon.Stores) error {
		registry, err := doublespends.New(ctx, logger, stores.DoubleSpends, tSettings)
		if err != nil {
			return err
		}

		return fn(ctx, registry)
	})
}

func heightFlag(c *cli.Context) (uint32, error) {
	h := c.Uint("height")
	if uint64(h) > uint64(^uint32(0)) {
		return 0, errors.NewInvalidArgumentError("height %d out of range", h)
	}

	return uint32(h), nil
}

func chainstateCommand() *cli.Command {
	fileFlag := &cli.StringFlag{Name: "file", Usage: "utxo set file", Required: true}

	return &cli.Command{
		Name:  "chainstate",
		Usage: "import and export utxo set snapshots",
		Subcommands: []*cli.Command{
			{
				Name:  "import",
				Usage: "load a utxo set file into the chainstate store",
				Flags: []cli.Flag{fileFlag},
				Action: func(c *cli.Context) error {
					f, err := os.Open(c.String("file"))
					if err != nil {
						return errors.NewProcessingError("failed to open %s", c.String("file"), err)
					}

					defer f.Close()

					return withStores(c, func(ctx context.Context, _ ulogger.Logger, _ *settings.Settings, stores *daemon.Stores) error {
						txs, utxos, err := stores.Chainstate.ImportUTXOSet(ctx, f)
						if err != nil {
							return err
						}

						_, err = fmt.Fprintf(c.App.Writer, "imported %d transactions with %d utxos\n", txs, utxos)

						return err
					})
				},
			},
			{
				Name:  "export",
				Usage: "write the chainstate store to a utxo set file",
				Flags: []cli.Flag{fileFlag},
				Action: func(c *cli.Context) error {
					f, err := os.Create(c.String("file"))
					if err != nil {
						return errors.NewProcessingError("failed to create %s", c.String("file"), err)
					}

					defer f.Close()

					return withStores(c, func(ctx context.Context, _ ulogger.Logger, _ *settings.Settings, stores *daemon.Stores) error {
						txs, utxos, err := stores.Chainstate.ExportUTXOSet(ctx, f)
						if err != nil {
							return err
						}

						if err = f.Sync(); err != nil {
							return errors.NewProcessingError("failed to sync %s", c.String("file"), err)
						}

						_, err = fmt.Fprintf(c.App.Writer, "exported %d transactions with %d utxos\n", txs, utxos)

						return err
					})
				},
			},
		},
	}
}

func blockIndexCommand() *cli.Command {
	return &cli.Command{
		Name:  "blockindex",
		Usage: "maintain the block hash to height index",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "store a block at a height",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "hash", Usage: "block hash", Required: true},
					&cli.UintFlag{Name: "height", Usage: "block height", Required: true},
				},
				Action: func(c *cli.Context) error {
					hash, err := chainhash.NewHashFromStr(c.String("hash"))
					if err != nil {
						return errors.NewInvalidArgumentError("invalid hash %q", c.String("hash"), err)
					}

					height, err := heightFlag(c)
					if err != nil {
						return err
					}

					return withStores(c, func(ctx context.Context, _ ulogger.Logger, _ *settings.Settings, stores *daemon.Stores) error {
						return stores.StoreBlock(ctx, *hash, height)
					})
				},
			},
			{
				Name:  "best",
				Usage: "print the best block",
				Action: func(c *cli.Context) error {
					return withStores(c, func(ctx context.Context, _ ulogger.Logger, _ *settings.Settings, stores *daemon.Stores) error {
						hash, height, err := stores.BlockIndex.GetBestBlock(ctx)
						if err != nil {
							return err
						}

						_, err = fmt.Fprintf(c.App.Writer, "%s %d\n", hash, height)

						return err
					})
				},
			},
		},
	}
}
