package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

const (
	tokenAddrA = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	tokenAddrB = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
	tokenAddrC = "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"
	txHash     = "0x2f1b4b5c0b8d7b3a7e0c3f0e6a1d9b2c4e5f60718293a4b5c6d7e8f901234567"
)

func write(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

type txEntry struct {
	ContractName    string `json:"contractName,omitempty"`
	ContractAddress string `json:"contractAddress,omitempty"`
	BlockNumber     any    `json:"blockNumber,omitempty"`
	Hash            string `json:"hash,omitempty"`
}

func broadcastJSON(t *testing.T, timestamp uint64, txs ...txEntry) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"transactions": txs,
		"timestamp":    timestamp,
		"chain":        31337,
	})
	if err != nil {
		t.Fatalf("marshal broadcast: %v", err)
	}
	return string(data)
}
