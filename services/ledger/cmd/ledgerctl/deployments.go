package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"deployledger/pkg/bus"
	"deployledger/pkg/deployment"
	gos3 "deployledger/pkg/s3"
	"deployledger/services/ledger"
)

func (c *cli) resolver() *ledger.Resolver {
	return ledger.NewResolver(ledger.ResolverConfig{Logger: &c.tel.Logger})
}

func (c *cli) newResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <contract>",
		Short: "Print the most recent deployment of a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := c.resolver().MostRecent(cmd.Context(), args[0], c.chainID(), c.cfg.BroadcastDir)
			if err != nil {
				return err
			}
			return c.print("record.tmpl", c.view(rec))
		},
	}
}

func (c *cli) newExistsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exists <contract>",
		Short: "Report whether a contract has been deployed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok := c.resolver().Exists(cmd.Context(), args[0], c.chainID(), c.cfg.BroadcastDir)
			_, err := fmt.Fprintln(c.out, ok)
			return err
		},
	}
}

func (c *cli) newListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list <contract>",
		Short: "List every deployment of a contract across all chains",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records := ledger.Collect(c.resolver().All(cmd.Context(), args[0], c.cfg.BroadcastDir), limit)
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			views := make([]recordView, 0, len(records))
			for _, rec := range records {
				views = append(views, c.view(rec))
			}
			return c.print("records.tmpl", views)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", ledger.DefaultListLimit, "Maximum records to print (0 for no limit)")
	return cmd
}

func (c *cli) newSaveCommand() *cobra.Command {
	var (
		block     uint64
		timestamp uint64
	)

	cmd := &cobra.Command{
		Use:   "save <contract> <address>",
		Short: "Record a contract address as the current deployment on the active chain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !common.IsHexAddress(args[1]) {
				return fmt.Errorf("%w: %q is not an address", deployment.ErrInvalidRecord, args[1])
			}

			cfg := ledger.PersisterConfig{
				Chain: ledger.StaticChain{
					ID:      c.chainID(),
					Block:   block,
					Time:    timestamp,
					Account: c.cfg.DeployerAddress(),
				},
				Logger: &c.tel.Logger,
			}

			if c.cfg.NATSURL != "" {
				b, err := bus.New(c.cfg.NATSURL)
				if err != nil {
					return fmt.Errorf("nats: %w", err)
				}
				defer b.Close()
				notifier, err := ledger.NewBusNotifier(b, c.cfg.NATSSubject)
				if err != nil {
					return err
				}
				cfg.Notifier = notifier
			}

			if c.cfg.S3Bucket != "" {
				mirror, err := c.mirror(cmd)
				if err != nil {
					return err
				}
				cfg.Recorders = append(cfg.Recorders, mirror)
			}

			if c.cfg.DBDSN != "" {
				store, closeStore, err := c.openIndex(cmd)
				if err != nil {
					return err
				}
				defer closeStore()
				cfg.Recorders = append(cfg.Recorders, store)
			}

			persister, err := ledger.NewPersister(cfg)
			if err != nil {
				return err
			}
			rec, err := persister.Save(ctx, args[0], common.HexToAddress(args[1]), c.cfg.DeploymentsDir)
			if err != nil && !rec.Found() {
				return err
			}
			if printErr := c.print("record.tmpl", c.view(rec)); printErr != nil {
				return printErr
			}
			return err
		},
	}

	cmd.Flags().Uint64Var(&block, "block", 0, "Block number the deployment landed in")
	cmd.Flags().Uint64Var(&timestamp, "timestamp", 0, "Block timestamp (defaults to now)")
	return cmd
}

func (c *cli) newShowCommand() *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "show <contract>",
		Short: "Print the canonical record of a contract on the active chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				rec deployment.Record
				err error
			)
			if remote {
				mirror, mErr := c.mirror(cmd)
				if mErr != nil {
					return mErr
				}
				rec, err = mirror.Fetch(cmd.Context(), c.chainID(), args[0])
			} else {
				persister, pErr := ledger.NewPersister(ledger.PersisterConfig{
					Chain:  ledger.StaticChain{ID: c.chainID()},
					Logger: &c.tel.Logger,
				})
				if pErr != nil {
					return pErr
				}
				rec, err = persister.Load(c.cfg.DeploymentsDir, c.chainID(), args[0])
			}
			if err != nil {
				return err
			}
			return c.print("record.tmpl", c.view(rec))
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Read the record mirrored to S3_BUCKET instead of the local tree")
	return cmd
}

func (c *cli) mirror(cmd *cobra.Command) (*ledger.S3Mirror, error) {
	if c.cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is not set")
	}
	client, err := gos3.NewClientFromEnv(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return ledger.NewS3Mirror(client, c.cfg.S3Bucket, c.cfg.S3Prefix)
}
