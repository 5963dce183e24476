package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration shared by ledgerctl and ledger-api.
type Config struct {
	BroadcastDir   string `env:"LEDGER_BROADCAST_DIR,default=broadcast"`
	DeploymentsDir string `env:"LEDGER_DEPLOYMENTS_DIR,default=deployments"`
	ChainID        uint64 `env:"LEDGER_CHAIN_ID,default=31337"`
	Deployer       string `env:"LEDGER_DEPLOYER"`
	NetworksFile   string `env:"LEDGER_NETWORKS_FILE"`
	Addr           string `env:"LEDGER_ADDR,default=:8080"`

	NATSURL     string `env:"NATS_URL"`
	NATSSubject string `env:"LEDGER_NATS_SUBJECT,default=deployledger.deployments.saved"`
	S3Bucket    string `env:"S3_BUCKET"`
	S3Prefix    string `env:"LEDGER_S3_PREFIX,default=deployments"`
	DBDSN       string `env:"DB_DSN"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LogFormat    string `env:"LEDGER_LOG_FORMAT,default=json"`
	LogLevel     string `env:"LEDGER_LOG_LEVEL,default=info"`
}

// Load reads an optional .env file and returns a Config populated from the environment.
func Load(ctx context.Context) (Config, error) {
	_ = godotenv.Load()
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.DeploymentsDir) == "" {
		return fmt.Errorf("LEDGER_DEPLOYMENTS_DIR must not be empty")
	}
	if c.Deployer != "" && !common.IsHexAddress(c.Deployer) {
		return fmt.Errorf("invalid LEDGER_DEPLOYER: %q", c.Deployer)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid LEDGER_LOG_FORMAT: %q", c.LogFormat)
	}
	return nil
}

// DeployerAddress returns the configured deployer account, or the zero address.
func (c Config) DeployerAddress() common.Address {
	if c.Deployer == "" {
		return common.Address{}
	}
	return common.HexToAddress(c.Deployer)
}
