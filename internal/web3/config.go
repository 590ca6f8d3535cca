package web3

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// ChainDefinitions models the structure of configs/chains.yaml.
type ChainDefinitions struct {
	Chains map[string]ChainDefinition `yaml:"chains"`
}

// ChainDefinition describes a single chain endpoint definition. Fields left
// empty inherit the built-in value for the same network name.
type ChainDefinition struct {
	ChainID      int64    `yaml:"chain_id"`
	RPCURL       string   `yaml:"rpc_url"`
	NativeSymbol string   `yaml:"native_symbol"`
	ENSRegistry  string   `yaml:"ens_registry"`
	Aliases      []string `yaml:"aliases"`
	Description  string   `yaml:"description"`
}

// Network is the resolved configuration of one EVM chain.
type Network struct {
	Name         string
	ChainID      int64
	RPCURL       string
	NativeSymbol string
	// ENSRegistry is the zero address on chains without name resolution.
	ENSRegistry common.Address
	Aliases     []string
	Description string
}

// SupportsENS reports whether names can be resolved on this network.
func (n Network) SupportsENS() bool {
	return n.ENSRegistry != (common.Address{})
}

var mainnetENSRegistry = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

var builtinNetworks = []Network{
	{Name: "ethereum", ChainID: 1, RPCURL: "https://eth.llamarpc.com", NativeSymbol: "ETH", ENSRegistry: mainnetENSRegistry, Aliases: []string{"mainnet", "eth"}},
	{Name: "sepolia", ChainID: 11155111, RPCURL: "https://rpc.sepolia.org", NativeSymbol: "ETH", ENSRegistry: mainnetENSRegistry},
	{Name: "bsc", ChainID: 56, RPCURL: "https://bsc-dataseed.binance.org", NativeSymbol: "BNB", Aliases: []string{"binance", "bnb"}},
	{Name: "bsc-testnet", ChainID: 97, RPCURL: "https://data-seed-prebsc-1-s1.binance.org:8545", NativeSymbol: "tBNB", Aliases: []string{"bsctestnet"}},
	{Name: "polygon", ChainID: 137, RPCURL: "https://polygon-rpc.com", NativeSymbol: "POL", Aliases: []string{"matic"}},
	{Name: "arbitrum", ChainID: 42161, RPCURL: "https://arb1.arbitrum.io/rpc", NativeSymbol: "ETH", Aliases: []string{"arb"}},
	{Name: "optimism", ChainID: 10, RPCURL: "https://mainnet.optimism.io", NativeSymbol: "ETH", Aliases: []string{"op"}},
	{Name: "base", ChainID: 8453, RPCURL: "https://mainnet.base.org", NativeSymbol: "ETH"},
}

// Networks is the network configuration lookup: key → endpoint and chain id.
// It is immutable after construction.
type Networks struct {
	byName  map[string]Network
	aliases map[string]string
	byChain map[int64]string
}

// NewNetworks indexes the given networks. Later entries win on name clashes.
func NewNetworks(list ...Network) *Networks {
	n := &Networks{
		byName:  make(map[string]Network, len(list)),
		aliases: make(map[string]string),
		byChain: make(map[int64]string, len(list)),
	}
	for _, network := range list {
		name := normalizeKey(network.Name)
		if name == "" {
			continue
		}
		network.Name = name
		n.byName[name] = network
		for _, alias := range network.Aliases {
			n.aliases[normalizeKey(alias)] = name
		}
		if network.ChainID != 0 {
			n.byChain[network.ChainID] = name
		}
	}
	return n
}

// DefaultNetworks returns the built-in network table.
func DefaultNetworks() *Networks {
	return NewNetworks(builtinNetworks...)
}

// LoadNetworks merges the YAML chain definitions at path onto the built-in
// table. An empty path yields the built-in table alone.
func LoadNetworks(path string) (*Networks, error) {
	defs, err := LoadChainDefinitions(path)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]Network, len(builtinNetworks)+len(defs.Chains))
	for _, network := range builtinNetworks {
		merged[network.Name] = network
	}
	for rawName, def := range defs.Chains {
		name := normalizeKey(rawName)
		network := merged[name]
		network.Name = name
		if def.ChainID != 0 {
			network.ChainID = def.ChainID
		}
		if strings.TrimSpace(def.RPCURL) != "" {
			network.RPCURL = strings.TrimSpace(def.RPCURL)
		}
		if def.NativeSymbol != "" {
			network.NativeSymbol = def.NativeSymbol
		}
		if def.ENSRegistry != "" {
			if !common.IsHexAddress(def.ENSRegistry) {
				return nil, fmt.Errorf("链 %s 的 ens_registry 不是合法地址: %s", name, def.ENSRegistry)
			}
			network.ENSRegistry = common.HexToAddress(def.ENSRegistry)
		}
		if len(def.Aliases) > 0 {
			network.Aliases = def.Aliases
		}
		if def.Description != "" {
			network.Description = def.Description
		}
		if network.ChainID == 0 || network.RPCURL == "" {
			return nil, fmt.Errorf("链 %s 缺少 chain_id 或 rpc_url", name)
		}
		merged[name] = network
	}

	list := make([]Network, 0, len(merged))
	for _, network := range merged {
		list = append(list, network)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return NewNetworks(list...), nil
}

// LoadChainDefinitions parses the YAML file containing chain metadata.
func LoadChainDefinitions(path string) (ChainDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return ChainDefinitions{Chains: map[string]ChainDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ChainDefinitions{}, fmt.Errorf("读取链配置失败: %w", err)
	}

	var defs ChainDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return ChainDefinitions{}, fmt.Errorf("解析链配置失败: %w", err)
	}
	if defs.Chains == nil {
		defs.Chains = map[string]ChainDefinition{}
	}
	return defs, nil
}

// Lookup resolves a network name, alias or decimal chain id.
func (n *Networks) Lookup(key string) (Network, bool) {
	if n == nil {
		return Network{}, false
	}
	normalized := normalizeKey(key)
	if network, ok := n.byName[normalized]; ok {
		return network, true
	}
	if name, ok := n.aliases[normalized]; ok {
		return n.byName[name], true
	}
	if id, err := strconv.ParseInt(normalized, 10, 64); err == nil {
		if name, ok := n.byChain[id]; ok {
			return n.byName[name], true
		}
	}
	return Network{}, false
}

// Names returns the canonical network names in sorted order.
func (n *Networks) Names() []string {
	if n == nil {
		return nil
	}
	names := make([]string, 0, len(n.byName))
	for name := range n.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
