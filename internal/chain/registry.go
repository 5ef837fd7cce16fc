package chain

import (
	"errors"
	"fmt"
	"sort"
)

// ErrChainNotFound is returned when a chain ID is not in the registry.
var ErrChainNotFound = errors.New("chain not found")

// Network holds display metadata for a single EVM network.
type Network struct {
	ChainID        uint64 `json:"chain_id"`
	Name           string `json:"name"`
	DisplayName    string `json:"display_name"`
	NativeCurrency string `json:"native_currency"`
	Explorer       string `json:"explorer,omitempty"`
	Local          bool   `json:"local,omitempty"` // dev node such as anvil or hardhat
}

// Registry is the network registry.
type Registry struct {
	networks []Network
	byID     map[uint64]*Network
}

// NewRegistry creates the registry of well-known EVM networks.
func NewRegistry() *Registry {
	networks := allNetworks()
	r := &Registry{
		networks: networks,
		byID:     make(map[uint64]*Network, len(networks)),
	}
	for i := range r.networks {
		n := &r.networks[i]
		r.byID[n.ChainID] = n
	}
	return r
}

// All returns every network sorted by chain ID.
func (r *Registry) All() []Network {
	out := make([]Network, len(r.networks))
	copy(out, r.networks)
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

// GetByChainID finds a network by its numeric chain ID.
func (r *Registry) GetByChainID(id uint64) (*Network, error) {
	n, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrChainNotFound, id)
	}
	return n, nil
}

// Describe returns known metadata for id, or a placeholder named "Chain <id>"
// with currency ETH.
func (r *Registry) Describe(id uint64) Network {
	if n, err := r.GetByChainID(id); err == nil {
		return *n
	}
	name := fmt.Sprintf("Chain %d", id)
	return Network{ChainID: id, Name: name, DisplayName: name, NativeCurrency: "ETH"}
}

func allNetworks() []Network {
	return []Network{
		{ChainID: 1, Name: "ethereum", DisplayName: "Ethereum", NativeCurrency: "ETH", Explorer: "https://etherscan.io"},
		{ChainID: 11155111, Name: "sepolia", DisplayName: "Sepolia", NativeCurrency: "ETH", Explorer: "https://sepolia.etherscan.io"},
		{ChainID: 17000, Name: "holesky", DisplayName: "Holesky", NativeCurrency: "ETH", Explorer: "https://holesky.etherscan.io"},
		{ChainID: 8453, Name: "base", DisplayName: "Base", NativeCurrency: "ETH", Explorer: "https://basescan.org"},
		{ChainID: 84532, Name: "base-sepolia", DisplayName: "Base Sepolia", NativeCurrency: "ETH", Explorer: "https://sepolia.basescan.org"},
		{ChainID: 137, Name: "polygon", DisplayName: "Polygon", NativeCurrency: "POL", Explorer: "https://polygonscan.com"},
		{ChainID: 42161, Name: "arbitrum", DisplayName: "Arbitrum", NativeCurrency: "ETH", Explorer: "https://arbiscan.io"},
		{ChainID: 10, Name: "optimism", DisplayName: "Optimism", NativeCurrency: "ETH", Explorer: "https://optimistic.etherscan.io"},
		{ChainID: 56, Name: "bnb", DisplayName: "BNB Chain", NativeCurrency: "BNB", Explorer: "https://bscscan.com"},
		{ChainID: 43114, Name: "avalanche", DisplayName: "Avalanche", NativeCurrency: "AVAX", Explorer: "https://snowtrace.io"},
		{ChainID: 250, Name: "fantom", DisplayName: "Fantom", NativeCurrency: "FTM", Explorer: "https://ftmscan.com"},
		{ChainID: 59144, Name: "linea", DisplayName: "Linea", NativeCurrency: "ETH", Explorer: "https://lineascan.build"},
		{ChainID: 324, Name: "zksync", DisplayName: "zkSync Era", NativeCurrency: "ETH", Explorer: "https://explorer.zksync.io"},
		{ChainID: 534352, Name: "scroll", DisplayName: "Scroll", NativeCurrency: "ETH", Explorer: "https://scrollscan.com"},
		{ChainID: 5000, Name: "mantle", DisplayName: "Mantle", NativeCurrency: "MNT", Explorer: "https://mantlescan.xyz"},
		{ChainID: 42220, Name: "celo", DisplayName: "Celo", NativeCurrency: "CELO", Explorer: "https://celoscan.io"},
		{ChainID: 100, Name: "gnosis", DisplayName: "Gnosis", NativeCurrency: "xDAI", Explorer: "https://gnosisscan.io"},
		{ChainID: 81457, Name: "blast", DisplayName: "Blast", NativeCurrency: "ETH", Explorer: "https://blastscan.io"},
		{ChainID: 34443, Name: "mode", DisplayName: "Mode", NativeCurrency: "ETH", Explorer: "https://modescan.io"},
		{ChainID: 7777777, Name: "zora", DisplayName: "Zora", NativeCurrency: "ETH", Explorer: "https://explorer.zora.energy"},
		{ChainID: 1284, Name: "moonbeam", DisplayName: "Moonbeam", NativeCurrency: "GLMR", Explorer: "https://moonscan.io"},
		{ChainID: 25, Name: "cronos", DisplayName: "Cronos", NativeCurrency: "CRO", Explorer: "https://cronoscan.com"},
		{ChainID: 8217, Name: "kaia", DisplayName: "Kaia", NativeCurrency: "KAIA", Explorer: "https://kaiascan.io"},
		{ChainID: 31337, Name: "anvil", DisplayName: "Anvil", NativeCurrency: "ETH", Local: true},
		{ChainID: 1337, Name: "dev", DisplayName: "Local Dev", NativeCurrency: "ETH", Local: true},
	}
}
