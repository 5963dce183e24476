package deployment

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// ChainID identifies a target network. It carries no structure beyond equality.
type ChainID uint64

// AnyChain is the scanner wildcard matching every network.
const AnyChain ChainID = 0

// String renders the decimal form used as a path segment in the on-disk layout.
func (c ChainID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// ParseChainID parses a decimal chain id.
func ParseChainID(raw string) (ChainID, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return ChainID(v), nil
}

// Record is one observed or persisted deployment event.
type Record struct {
	Address     common.Address `json:"contractAddress"`
	Name        string         `json:"contractName"`
	BlockNumber uint64         `json:"blockNumber"`
	Timestamp   uint64         `json:"timestamp"`
	TxHash      common.Hash    `json:"transactionHash"`
	Deployer    common.Address `json:"deployer"`
	ChainID     ChainID        `json:"chainId"`
}

// Found reports whether r looks like a resolved deployment:
// a non-empty name and a non-zero address.
func (r Record) Found() bool {
	return r.Name != "" && r.Address != (common.Address{})
}

// NewerThan reports whether r is strictly more recent than other.
// An unset timestamp counts as epoch 0.
func (r Record) NewerThan(other Record) bool {
	return r.Timestamp > other.Timestamp
}

// BroadcastArtifact is a discovered broadcast-log file together with the
// chain id inferred from its path.
type BroadcastArtifact struct {
	Path    string
	ChainID ChainID
}
