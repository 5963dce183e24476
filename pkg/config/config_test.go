package config

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sethvargo/go-envconfig"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		check   func(t *testing.T, cfg Config)
		wantErr bool
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			check: func(t *testing.T, cfg Config) {
				if cfg.BroadcastDir != "broadcast" || cfg.DeploymentsDir != "deployments" {
					t.Fatalf("unexpected dirs %q %q", cfg.BroadcastDir, cfg.DeploymentsDir)
				}
				if cfg.ChainID != 31337 {
					t.Fatalf("ChainID = %d", cfg.ChainID)
				}
				if cfg.DeployerAddress() != (common.Address{}) {
					t.Fatalf("expected zero deployer")
				}
			},
		},
		{
			name: "overrides",
			env: map[string]string{
				"LEDGER_CHAIN_ID":   "8453",
				"LEDGER_DEPLOYER":   "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
				"LEDGER_LOG_FORMAT": "console",
			},
			check: func(t *testing.T, cfg Config) {
				if cfg.ChainID != 8453 {
					t.Fatalf("ChainID = %d", cfg.ChainID)
				}
				want := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
				if cfg.DeployerAddress() != want {
					t.Fatalf("DeployerAddress = %s", cfg.DeployerAddress().Hex())
				}
			},
		},
		{
			name:    "bad deployer",
			env:     map[string]string{"LEDGER_DEPLOYER": "not-an-address"},
			wantErr: true,
		},
		{
			name:    "bad chain id",
			env:     map[string]string{"LEDGER_CHAIN_ID": "mainnet"},
			wantErr: true,
		},
		{
			name:    "bad log format",
			env:     map[string]string{"LEDGER_LOG_FORMAT": "xml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := load(context.Background(), envconfig.MapLookuper(tt.env))
			if (err != nil) != tt.wantErr {
				t.Fatalf("load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			tt.check(t, cfg)
		})
	}
}
