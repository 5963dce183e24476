// Package networks is the static table of per-network constants the ledger
// tooling consults: display names, RPC endpoints, explorers and native
// currencies. Lookups are pure; nothing here dials a network.
package networks

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"deployledger/pkg/deployment"
)

// Currency describes a network's native currency.
type Currency struct {
	Name     string `yaml:"name" json:"name"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	Decimals uint8  `yaml:"decimals" json:"decimals"`
}

// Network holds the constants for one chain.
type Network struct {
	ChainID   deployment.ChainID        `yaml:"chain_id" json:"chain_id"`
	Name      string                    `yaml:"name" json:"name"`
	RPCURL    string                    `yaml:"rpc_url" json:"rpc_url"`
	Explorer  string                    `yaml:"explorer,omitempty" json:"explorer,omitempty"`
	Currency  Currency                  `yaml:"currency" json:"currency"`
	Testnet   bool                      `yaml:"testnet" json:"testnet"`
	Contracts map[string]common.Address `yaml:"contracts,omitempty" json:"contracts,omitempty"`
}

// AddressURL returns the explorer link for addr, or "" when the network has no explorer.
func (n Network) AddressURL(addr common.Address) string {
	if n.Explorer == "" {
		return ""
	}
	return strings.TrimRight(n.Explorer, "/") + "/address/" + addr.Hex()
}

var ether = Currency{Name: "Ether", Symbol: "ETH", Decimals: 18}

// multicall3 is deployed at the same address on every network in the default table.
var multicall3 = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

func defaults() []Network {
	return []Network{
		{ChainID: 1, Name: "mainnet", RPCURL: "https://eth.llamarpc.com", Explorer: "https://etherscan.io", Currency: ether},
		{ChainID: 11155111, Name: "sepolia", RPCURL: "https://rpc.sepolia.org", Explorer: "https://sepolia.etherscan.io", Currency: ether, Testnet: true},
		{ChainID: 17000, Name: "holesky", RPCURL: "https://ethereum-holesky-rpc.publicnode.com", Explorer: "https://holesky.etherscan.io", Currency: ether, Testnet: true},
		{ChainID: 10, Name: "optimism", RPCURL: "https://mainnet.optimism.io", Explorer: "https://optimistic.etherscan.io", Currency: ether},
		{ChainID: 8453, Name: "base", RPCURL: "https://mainnet.base.org", Explorer: "https://basescan.org", Currency: ether},
		{ChainID: 42161, Name: "arbitrum", RPCURL: "https://arb1.arbitrum.io/rpc", Explorer: "https://arbiscan.io", Currency: ether},
		{ChainID: 137, Name: "polygon", RPCURL: "https://polygon-rpc.com", Explorer: "https://polygonscan.com", Currency: Currency{Name: "POL", Symbol: "POL", Decimals: 18}},
		{ChainID: 31337, Name: "anvil", RPCURL: "http://127.0.0.1:8545", Currency: ether, Testnet: true},
	}
}

// Registry resolves chain ids to network metadata.
type Registry struct {
	byID map[deployment.ChainID]Network
}

// Default returns a registry populated with the built-in table.
func Default() *Registry {
	r := &Registry{byID: make(map[deployment.ChainID]Network)}
	for _, n := range defaults() {
		n.Contracts = map[string]common.Address{"Multicall3": multicall3}
		r.byID[n.ChainID] = n
	}
	return r
}

// Load returns the default registry overlaid with the networks in the YAML
// file at path. An empty path yields the defaults.
func Load(path string) (*Registry, error) {
	r := Default()
	if strings.TrimSpace(path) == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read networks file: %w", err)
	}
	if err := r.Overlay(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

type networksFile struct {
	Networks []Network `yaml:"networks"`
}

// Overlay merges YAML-encoded networks into the registry. Entries replace
// built-ins with the same chain id; contract maps are merged.
func (r *Registry) Overlay(data []byte) error {
	var file networksFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse networks: %w", err)
	}
	for i, n := range file.Networks {
		if n.ChainID == deployment.AnyChain {
			return fmt.Errorf("network %d: chain_id is required", i)
		}
		if strings.TrimSpace(n.Name) == "" {
			return fmt.Errorf("network %d: name is required", i)
		}
		if prev, ok := r.byID[n.ChainID]; ok {
			merged := make(map[string]common.Address, len(prev.Contracts)+len(n.Contracts))
			for k, v := range prev.Contracts {
				merged[k] = v
			}
			for k, v := range n.Contracts {
				merged[k] = v
			}
			n.Contracts = merged
		}
		r.byID[n.ChainID] = n
	}
	return nil
}

// Lookup returns the metadata for id, failing with ErrUnsupportedNetwork when unknown.
func (r *Registry) Lookup(id deployment.ChainID) (Network, error) {
	if r == nil {
		return Network{}, errors.New("nil registry")
	}
	n, ok := r.byID[id]
	if !ok {
		return Network{}, &deployment.UnsupportedNetworkError{ChainID: id}
	}
	return n, nil
}

// ByName finds a network by its case-insensitive name.
func (r *Registry) ByName(name string) (Network, bool) {
	if r == nil {
		return Network{}, false
	}
	for _, n := range r.byID {
		if strings.EqualFold(n.Name, name) {
			return n, true
		}
	}
	return Network{}, false
}

// All returns every known network ordered by chain id.
func (r *Registry) All() []Network {
	if r == nil {
		return nil
	}
	out := make([]Network, 0, len(r.byID))
	for _, n := range r.byID {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ChainID < out[j].ChainID
	})
	return out
}
