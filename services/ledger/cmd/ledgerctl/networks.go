package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"deployledger/pkg/deployment"
	"deployledger/pkg/networks"
)

func (c *cli) newNetworksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "networks",
		Short: "Inspect the network registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := c.registry()
			if err != nil {
				return err
			}
			return c.print("networks.tmpl", reg.All())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <chain-id|name>",
		Short: "Show one network by chain id or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := c.registry()
			if err != nil {
				return err
			}
			n, err := findNetwork(reg, args[0])
			if err != nil {
				return err
			}
			if c.output == "text" {
				return c.print("networks.tmpl", []networks.Network{n})
			}
			return c.printJSON(n)
		},
	})
	return cmd
}

func findNetwork(reg *networks.Registry, key string) (networks.Network, error) {
	if id, err := deployment.ParseChainID(key); err == nil {
		return reg.Lookup(id)
	}
	if n, ok := reg.ByName(key); ok {
		return n, nil
	}
	return networks.Network{}, fmt.Errorf("%w: %q", deployment.ErrUnsupportedNetwork, key)
}
