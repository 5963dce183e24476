package ledger

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tidwall/jsonc"

	"deployledger/pkg/deployment"
)

// broadcastDoc is the subset of a forge broadcast log the ledger reads.
// Canonical records share the top-level field names, so one struct decodes both.
type broadcastDoc struct {
	Transactions []json.RawMessage `json:"transactions"`
	Timestamp    quantity          `json:"timestamp"`

	ContractName    *string  `json:"contractName"`
	ContractAddress string   `json:"contractAddress"`
	BlockNumber     quantity `json:"blockNumber"`
	Deployer        string   `json:"deployer"`
	ChainID         quantity `json:"chainId"`
}

// broadcastTx keeps the per-entry fields raw so only contractName has to
// decode before the entry is matched.
type broadcastTx struct {
	ContractName    string          `json:"contractName"`
	ContractAddress json.RawMessage `json:"contractAddress"`
	BlockNumber     json.RawMessage `json:"blockNumber"`
	Hash            json.RawMessage `json:"hash"`
}

// Parse extracts the deployment of name from one broadcast-log document.
//
// Transactions are visited in index order and the first entry whose
// contractName equals name byte for byte decides the result: later
// duplicates are never consulted. Missing or malformed optional fields
// decode to zero, while a missing or zero address on that entry reports
// found=false. Malformed documents report found=false instead of an error.
// A canonical record file is accepted as a single-entry document.
func Parse(data []byte, name string) (deployment.Record, bool) {
	if name == "" {
		return deployment.Record{}, false
	}

	var doc broadcastDoc
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return deployment.Record{}, false
	}

	if doc.Transactions == nil {
		return parseCanonical(doc, name)
	}

	for _, raw := range doc.Transactions {
		var tx broadcastTx
		if err := json.Unmarshal(raw, &tx); err != nil || tx.ContractName != name {
			continue
		}
		addr, ok := parseAddress(rawString(tx.ContractAddress))
		if !ok {
			return deployment.Record{}, false
		}
		return deployment.Record{
			Address:     addr,
			Name:        name,
			BlockNumber: rawQuantity(tx.BlockNumber),
			Timestamp:   uint64(doc.Timestamp),
			TxHash:      parseHash(rawString(tx.Hash)),
		}, true
	}
	return deployment.Record{}, false
}

// rawString decodes a JSON string field, or returns "" for anything else.
func rawString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// rawQuantity decodes a quantity field, or returns 0 when it is malformed.
func rawQuantity(raw json.RawMessage) uint64 {
	var q quantity
	if len(raw) == 0 || json.Unmarshal(raw, &q) != nil {
		return 0
	}
	return uint64(q)
}

func parseCanonical(doc broadcastDoc, name string) (deployment.Record, bool) {
	if doc.ContractName == nil || *doc.ContractName != name {
		return deployment.Record{}, false
	}
	addr, ok := parseAddress(doc.ContractAddress)
	if !ok {
		return deployment.Record{}, false
	}
	deployer, _ := parseAddress(doc.Deployer)
	return deployment.Record{
		Address:     addr,
		Name:        name,
		BlockNumber: uint64(doc.BlockNumber),
		Timestamp:   uint64(doc.Timestamp),
		Deployer:    deployer,
		ChainID:     deployment.ChainID(doc.ChainID),
	}, true
}

// parseAddress accepts a 0x-prefixed or bare 20-byte hex address. The zero
// address is rejected: a found record always points at real code.
func parseAddress(raw string) (common.Address, bool) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	addr := common.HexToAddress(raw)
	if addr == (common.Address{}) {
		return common.Address{}, false
	}
	return addr, true
}

func parseHash(raw string) common.Hash {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return common.Hash{}
	}
	b := common.FromHex(raw)
	if len(b) != common.HashLength {
		return common.Hash{}
	}
	return common.BytesToHash(b)
}

// quantity decodes an unsigned integer written either as a JSON number or
// as a decimal or 0x-prefixed hex string. Null and absent values stay zero.
type quantity uint64

func (q *quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return q.parse(s)
	}
	return q.parse(string(data))
}

func (q *quantity) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*q = 0
		return nil
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return err
	}
	*q = quantity(v)
	return nil
}
