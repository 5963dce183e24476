package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"deployledger/pkg/db"
	"deployledger/services/ledger"
	"deployledger/services/ledger/index"
)

// openIndex connects to DB_DSN, applies migrations and returns the index store.
func (c *cli) openIndex(cmd *cobra.Command) (*index.Store, func(), error) {
	if c.cfg.DBDSN == "" {
		return nil, nil, fmt.Errorf("DB_DSN is not set")
	}
	ctx := cmd.Context()

	pool, err := db.Open(ctx, c.cfg.DBDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	orm, err := db.OpenORM(ctx, c.cfg.DBDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("open orm: %w", err)
	}

	store, err := index.New(pool, orm, c.tel.Logger)
	if err != nil {
		pool.Close()
		_ = db.CloseORM(orm)
		return nil, nil, err
	}
	closeFn := func() {
		pool.Close()
		_ = db.CloseORM(orm)
	}
	return store, closeFn, nil
}

func (c *cli) newIndexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Maintain the Postgres deployment index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Index every canonical record under the deployments root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := c.openIndex(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			persister, err := ledger.NewPersister(ledger.PersisterConfig{
				Chain:  ledger.StaticChain{ID: c.chainID()},
				Logger: &c.tel.Logger,
			})
			if err != nil {
				return err
			}
			count, err := store.Sync(cmd.Context(), persister.Records(c.cfg.DeploymentsDir))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.out, "indexed %d records\n", count)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list [contract]",
		Short: "List indexed deployments",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := c.openIndex(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			rows, err := store.List(cmd.Context(), name)
			if err != nil {
				return err
			}
			return c.printJSON(rows)
		},
	})
	return cmd
}
