package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"OpenMCP-EVM/internal/web3"
	"OpenMCP-EVM/internal/web3/ethereum"
	"OpenMCP-EVM/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// dialTimeout bounds a shared dial. The dial outlives the caller that
// started it, so other waiters are not failed by its cancellation.
const dialTimeout = 30 * time.Second

var errRegistryClosed = errors.New("链客户端注册表已关闭")

// Dialer builds a connection for one network.
type Dialer func(ctx context.Context, network web3.Network) (web3.Client, error)

// Option customises a Registry.
type Option func(*Registry)

// WithDialer replaces the JSON-RPC dialer, typically with a simulated chain.
func WithDialer(dialer Dialer) Option {
	return func(r *Registry) {
		if dialer != nil {
			r.dial = dialer
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// Registry lazily builds and caches one read connection per network. Two keys
// naming the same network share a single entry. Entries live until Close.
// Dials run outside the lock, at most one in flight per network.
type Registry struct {
	networks *web3.Networks
	dial     Dialer
	log      *slog.Logger
	dials    singleflight.Group

	mu      sync.RWMutex
	clients map[string]web3.Client
	closed  bool
}

// NewRegistry creates an empty connection cache over the given network table.
func NewRegistry(networks *web3.Networks, opts ...Option) *Registry {
	if networks == nil {
		networks = web3.DefaultNetworks()
	}
	r := &Registry{
		networks: networks,
		dial:     dialEthereum,
		log:      logger.Named("provider"),
		clients:  make(map[string]web3.Client),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func dialEthereum(ctx context.Context, network web3.Network) (web3.Client, error) {
	return ethereum.NewClient(ctx, network)
}

// Connection returns the cached connection for key, dialing it on first use.
// Unknown keys fail with UNKNOWN_NETWORK.
func (r *Registry) Connection(ctx context.Context, key string) (web3.Client, error) {
	if r == nil {
		return nil, errors.New("未初始化的链客户端注册表")
	}
	network, err := r.networks.Resolve(key)
	if err != nil {
		return nil, err
	}

	if client, ok, err := r.cached(network.Name); ok || err != nil {
		return client, err
	}

	ch := r.dials.DoChan(network.Name, func() (any, error) {
		return r.connect(ctx, network)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(web3.Client), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) cached(name string) (web3.Client, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, false, errRegistryClosed
	}
	client, ok := r.clients[name]
	return client, ok, nil
}

func (r *Registry) connect(ctx context.Context, network web3.Network) (web3.Client, error) {
	// 上一次拨号可能在本次未命中之后才写入缓存
	if client, ok, err := r.cached(network.Name); ok || err != nil {
		return client, err
	}

	dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dialTimeout)
	defer cancel()
	client, err := r.dial(dialCtx, network)
	if err != nil {
		return nil, fmt.Errorf("初始化链 %s 失败: %w", network.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		client.Close()
		return nil, errRegistryClosed
	}
	r.clients[network.Name] = client
	r.log.Debug("connection established", slog.String("network", network.Name), slog.Int64("chain_id", network.ChainID))
	return client, nil
}

// Network resolves key without dialing.
func (r *Registry) Network(key string) (web3.Network, error) {
	return r.networks.Resolve(key)
}

// Networks returns the supported network names.
func (r *Registry) Networks() []string {
	if r == nil {
		return nil
	}
	return r.networks.Names()
}

// Table exposes the underlying network configuration.
func (r *Registry) Table() *web3.Networks {
	return r.networks
}

// Close releases all clients managed by the registry.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, client := range r.clients {
		if client != nil {
			client.Close()
		}
		delete(r.clients, name)
	}
	r.closed = true
}
