package deployment

import (
	"errors"
	"fmt"
)

var (
	// ErrDeploymentNotFound is returned when no record matches a query.
	ErrDeploymentNotFound = errors.New("deployment not found")
	// ErrUnsupportedNetwork is returned by the network registry for unknown chain ids.
	ErrUnsupportedNetwork = errors.New("unsupported network")
	// ErrInvalidPath is returned for a malformed ledger root.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidRecord is returned when a record cannot be persisted.
	ErrInvalidRecord = errors.New("invalid deployment record")
)

// NotFoundError names the artifact and network a lookup failed for.
type NotFoundError struct {
	Name    string
	ChainID ChainID
}

func (e *NotFoundError) Error() string {
	if e.ChainID == AnyChain {
		return fmt.Sprintf("deployment not found: %s", e.Name)
	}
	return fmt.Sprintf("deployment not found: %s on chain %s", e.Name, e.ChainID)
}

// Is lets errors.Is match ErrDeploymentNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrDeploymentNotFound
}

// UnsupportedNetworkError names the chain id the registry does not know.
type UnsupportedNetworkError struct {
	ChainID ChainID
}

func (e *UnsupportedNetworkError) Error() string {
	return fmt.Sprintf("unsupported network: chain %s", e.ChainID)
}

func (e *UnsupportedNetworkError) Is(target error) bool {
	return target == ErrUnsupportedNetwork
}
