package ledger

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"deployledger/pkg/deployment"
)

// ChainContext describes the execution context a deployment is recorded
// from: the active network, its current height and time, and the calling
// account.
type ChainContext interface {
	ChainID() deployment.ChainID
	BlockNumber() uint64
	Timestamp() uint64
	Caller() common.Address
}

// StaticChain is a ChainContext with fixed values. Timestamp falls back to
// the wall clock when Time is zero.
type StaticChain struct {
	ID      deployment.ChainID
	Block   uint64
	Time    uint64
	Account common.Address
	Now     func() time.Time
}

func (c StaticChain) ChainID() deployment.ChainID { return c.ID }
func (c StaticChain) BlockNumber() uint64         { return c.Block }
func (c StaticChain) Caller() common.Address      { return c.Account }

func (c StaticChain) Timestamp() uint64 {
	if c.Time != 0 {
		return c.Time
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return uint64(now().Unix())
}
