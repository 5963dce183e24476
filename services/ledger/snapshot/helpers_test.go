package snapshot

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"

	"deployledger/pkg/deployment"
)

func ledgerRecord() deployment.Record {
	return deployment.Record{
		Address:     common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		Name:        "MyToken",
		BlockNumber: 3,
		Timestamp:   9,
		ChainID:     10,
	}
}

func entryFor(data []byte) ManifestEntry {
	sum := sha256.Sum256(data)
	return ManifestEntry{
		Path:     "10/MyToken.json",
		ChainID:  10,
		Contract: "MyToken",
		Address:  "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		Size:     int64(len(data)),
		SHA256:   hex.EncodeToString(sum[:]),
	}
}
