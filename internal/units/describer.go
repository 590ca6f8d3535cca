package units

import (
	"context"
	"strings"
	"sync"

	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/internal/web3"
	"OpenMCP-EVM/internal/web3/abis"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// TokenDescriptor is the on-chain identity of a fungible token.
type TokenDescriptor struct {
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol"`
}

// Connections hands out shared read connections per network key.
type Connections interface {
	Connection(ctx context.Context, key string) (web3.Client, error)
}

// DescriptorCache stores descriptors per network and token.
type DescriptorCache interface {
	Get(ctx context.Context, network string, token common.Address) (TokenDescriptor, bool)
	Set(ctx context.Context, network string, desc TokenDescriptor)
}

// DescriberOption customises a Describer.
type DescriberOption func(*Describer)

// WithCache enables descriptor caching. Without it every Describe reads the chain.
func WithCache(cache DescriptorCache) DescriberOption {
	return func(d *Describer) {
		d.cache = cache
	}
}

// Describer reads decimals() and symbol() from token contracts.
type Describer struct {
	conns Connections
	cache DescriptorCache
}

// NewDescriber creates a describer over the connection cache.
func NewDescriber(conns Connections, opts ...DescriberOption) *Describer {
	d := &Describer{conns: conns}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Describe eagerly reads the descriptor of token on network. Targets that do
// not answer decimals() and symbol() fail with CONTRACT_READ.
func (d *Describer) Describe(ctx context.Context, token common.Address, network string) (TokenDescriptor, error) {
	client, err := d.conns.Connection(ctx, network)
	if err != nil {
		return TokenDescriptor{}, err
	}
	cacheKey := client.Network().Name
	if d.cache != nil {
		if desc, ok := d.cache.Get(ctx, cacheKey, token); ok {
			return desc, nil
		}
	}

	decimalsOut, err := callView(ctx, client, token, "decimals")
	if err != nil {
		return TokenDescriptor{}, contractReadError(token, "decimals", err)
	}
	decimals, ok := decimalsOut.(uint8)
	if !ok {
		return TokenDescriptor{}, contractReadError(token, "decimals", nil)
	}
	symbolOut, err := callView(ctx, client, token, "symbol")
	if err != nil {
		return TokenDescriptor{}, contractReadError(token, "symbol", err)
	}
	symbol, ok := symbolOut.(string)
	if !ok {
		return TokenDescriptor{}, contractReadError(token, "symbol", nil)
	}

	desc := TokenDescriptor{Address: token, Decimals: decimals, Symbol: symbol}
	if d.cache != nil {
		d.cache.Set(ctx, cacheKey, desc)
	}
	return desc, nil
}

func callView(ctx context.Context, client web3.Client, token common.Address, method string) (any, error) {
	data, err := abis.ERC20.Pack(method)
	if err != nil {
		return nil, err
	}
	out, err := client.CallContract(ctx, gethcore.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	values, err := abis.ERC20.Unpack(method, out)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values[0], nil
}

func contractReadError(token common.Address, method string, cause error) error {
	msg := "failed to read " + method + "() from " + token.Hex()
	opt := xerrors.WithMetadata("token", token.Hex())
	if cause != nil {
		return xerrors.Wrap(xerrors.CodeContractRead, cause, msg, opt)
	}
	return xerrors.New(xerrors.CodeContractRead, msg, opt)
}

// MemoryCache is an in-process DescriptorCache. Descriptors never expire.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]TokenDescriptor
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]TokenDescriptor)}
}

func (c *MemoryCache) Get(_ context.Context, network string, token common.Address) (TokenDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	desc, ok := c.items[CacheKey(network, token)]
	return desc, ok
}

func (c *MemoryCache) Set(_ context.Context, network string, desc TokenDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[CacheKey(network, desc.Address)] = desc
}

// CacheKey is the shared "<network>_<token>_descriptor" key layout.
func CacheKey(network string, token common.Address) string {
	return strings.ToLower(network) + "_" + strings.ToLower(token.Hex()) + "_descriptor"
}
