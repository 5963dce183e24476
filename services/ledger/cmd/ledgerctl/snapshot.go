package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"deployledger/services/ledger/snapshot"
)

func (c *cli) newSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Create and restore signed snapshots of the deployments root",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(c.newSnapshotCreateCommand())
	cmd.AddCommand(c.newSnapshotRestoreCommand())
	return cmd
}

func (c *cli) newSnapshotCreateCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Pack every canonical record into a signed tar.zst",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := snapshot.NewSignerFromEnv()
			if err != nil {
				return err
			}
			manifest, err := snapshot.Create(cmd.Context(), snapshot.CreateConfig{
				Root:   c.cfg.DeploymentsDir,
				Output: file,
				Signer: signer,
				Logger: c.tel.Logger,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.out, "wrote snapshot %s (%d records)\n", file, len(manifest.Records))
			return err
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Destination snapshot file (tar.zst)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (c *cli) newSnapshotRestoreCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Verify a snapshot and restore its records into the deployments root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := snapshot.NewSignerFromEnv()
			if err != nil {
				return err
			}
			manifest, err := snapshot.Restore(cmd.Context(), snapshot.RestoreConfig{
				Archive: file,
				Root:    c.cfg.DeploymentsDir,
				Signer:  signer,
				Logger:  c.tel.Logger,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.out, "restored %d records signed at %s\n", len(manifest.Records), manifest.CreatedAt.Format(time.RFC3339))
			return err
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the snapshot tar.zst")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
