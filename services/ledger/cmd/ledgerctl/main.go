package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"deployledger/pkg/config"
	"deployledger/pkg/deployment"
	"deployledger/pkg/networks"
	"deployledger/pkg/render"
	"deployledger/pkg/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries the configuration and telemetry shared by every subcommand.
type cli struct {
	cfg config.Config
	tel *telemetry.Telemetry
	out io.Writer

	chain          uint64
	broadcastDir   string
	deploymentsDir string
	output         string
}

func newRootCommand(out io.Writer) *cobra.Command {
	c := &cli{out: out}
	cmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Resolve and record smart contract deployments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return c.tel.Shutdown(cmd.Context())
		},
	}

	flags := cmd.PersistentFlags()
	flags.Uint64Var(&c.chain, "chain", 0, "Chain id (defaults to LEDGER_CHAIN_ID, 0 matches any chain)")
	flags.StringVar(&c.broadcastDir, "broadcast-dir", "", "Broadcast log root (defaults to LEDGER_BROADCAST_DIR)")
	flags.StringVar(&c.deploymentsDir, "deployments-dir", "", "Canonical record root (defaults to LEDGER_DEPLOYMENTS_DIR)")
	flags.StringVarP(&c.output, "output", "o", "json", "Output format: json or text")

	cmd.AddCommand(
		c.newResolveCommand(),
		c.newExistsCommand(),
		c.newListCommand(),
		c.newSaveCommand(),
		c.newShowCommand(),
		c.newNetworksCommand(),
		c.newIndexCommand(),
		c.newSnapshotCommand(),
	)
	return cmd
}

func (c *cli) init(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("chain") {
		cfg.ChainID = c.chain
	}
	if flags.Changed("broadcast-dir") {
		cfg.BroadcastDir = c.broadcastDir
	}
	if flags.Changed("deployments-dir") {
		cfg.DeploymentsDir = c.deploymentsDir
	}
	c.cfg = cfg

	switch c.output {
	case "json", "text":
	default:
		return fmt.Errorf("invalid --output %q", c.output)
	}

	tel, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName:  "ledgerctl",
		OTLPEndpoint: cfg.OTLPEndpoint,
		LogFormat:    cfg.LogFormat,
		LogLevel:     cfg.LogLevel,
		Out:          os.Stderr,
	})
	if err != nil {
		return err
	}
	c.tel = tel
	return nil
}

func (c *cli) chainID() deployment.ChainID {
	return deployment.ChainID(c.cfg.ChainID)
}

func (c *cli) registry() (*networks.Registry, error) {
	return networks.Load(c.cfg.NetworksFile)
}

// recordView decorates a record with its explorer link when the network is known.
type recordView struct {
	deployment.Record
	Network  string `json:"network,omitempty"`
	Explorer string `json:"explorer,omitempty"`
}

func (c *cli) view(rec deployment.Record) recordView {
	v := recordView{Record: rec}
	reg, err := c.registry()
	if err != nil {
		return v
	}
	if n, err := reg.Lookup(rec.ChainID); err == nil {
		v.Network = n.Name
		v.Explorer = n.AddressURL(rec.Address)
	}
	return v
}

// print writes v as indented JSON, or through the named text template when
// --output=text.
func (c *cli) print(tmpl string, v any) error {
	if c.output != "text" {
		return c.printJSON(v)
	}
	engine, err := render.New()
	if err != nil {
		return err
	}
	out, err := engine.Render(tmpl, v)
	if err != nil {
		return err
	}
	_, err = io.WriteString(c.out, out)
	return err
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
