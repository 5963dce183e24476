package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deployledger/pkg/deployment"
	"deployledger/pkg/networks"
)

const broadcastLog = `{
  "transactions": [
    {
      "hash": "0x2f1b4b5c0b8d7b3a7e0c3f0e6a1d9b2c4e5f60718293a4b5c6d7e8f901234567",
      "transactionType": "CREATE",
      "blockNumber": 42,
      "contractName": "MyToken",
      "contractAddress": "0x5FbDB2315678afecb367f032d93F642f64180aa3"
    }
  ],
  "timestamp": 1700000000
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LEDGER_LOG_LEVEL", "error")
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestResolveAndExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Deploy.s.sol", "11155111", "run-latest.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(broadcastLog), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "resolve", "MyToken", "--chain", "11155111", "--broadcast-dir", dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var got recordView
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if got.Name != "MyToken" || got.ChainID != 11155111 || got.Network != "sepolia" {
		t.Fatalf("unexpected record %+v", got)
	}
	if !strings.HasSuffix(got.Explorer, "/address/0x5FbDB2315678afecb367f032d93F642f64180aa3") {
		t.Fatalf("explorer = %q", got.Explorer)
	}

	out, err = run(t, "exists", "MyToken", "--chain", "1", "--broadcast-dir", dir)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if strings.TrimSpace(out) != "false" {
		t.Fatalf("exists on another chain = %q", out)
	}

	_, err = run(t, "resolve", "Missing", "--chain", "11155111", "--broadcast-dir", dir)
	if !errors.Is(err, deployment.ErrDeploymentNotFound) {
		t.Fatalf("resolve missing = %v", err)
	}
}

func TestSaveThenShow(t *testing.T) {
	root := t.TempDir()
	t.Setenv("NATS_URL", "")
	t.Setenv("S3_BUCKET", "")
	t.Setenv("DB_DSN", "")

	if _, err := run(t, "save", "Vault", "0x5FbDB2315678afecb367f032d93F642f64180aa3", "--chain", "10", "--block", "9", "--timestamp", "99", "--deployments-dir", root); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := run(t, "show", "Vault", "--chain", "10", "--deployments-dir", root)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var got recordView
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if got.BlockNumber != 9 || got.Timestamp != 99 || got.Network != "optimism" {
		t.Fatalf("unexpected record %+v", got)
	}

	if _, err := run(t, "save", "Vault", "not-an-address", "--deployments-dir", root); !errors.Is(err, deployment.ErrInvalidRecord) {
		t.Fatalf("save with bad address = %v", err)
	}
}

func TestFindNetwork(t *testing.T) {
	reg := networks.Default()
	tests := []struct {
		key     string
		want    deployment.ChainID
		wantErr bool
	}{
		{key: "8453", want: 8453},
		{key: "Base", want: 8453},
		{key: "999999", wantErr: true},
		{key: "nowhere", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			n, err := findNetwork(reg, tt.key)
			if tt.wantErr {
				if !errors.Is(err, deployment.ErrUnsupportedNetwork) {
					t.Fatalf("err = %v, want ErrUnsupportedNetwork", err)
				}
				return
			}
			if err != nil || n.ChainID != tt.want {
				t.Fatalf("findNetwork(%q) = %+v, %v", tt.key, n, err)
			}
		})
	}
}

func TestTextOutput(t *testing.T) {
	out, err := run(t, "networks", "show", "sepolia", "-o", "text")
	if err != nil {
		t.Fatalf("networks show: %v", err)
	}
	if !strings.HasPrefix(out, "11155111\tsepolia\tETH\ttestnet") {
		t.Fatalf("text output = %q", out)
	}

	if _, err := run(t, "networks", "list", "-o", "yaml"); err == nil {
		t.Fatalf("expected error for unknown output format")
	}
}
