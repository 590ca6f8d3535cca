package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"OpenMCP-EVM/internal/web3"

	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Client implements web3.Client for EVM compatible chains. All RPC methods are
// promoted from the embedded backend; only chain id lookup, broadcast and
// shutdown are specialised here.
type Client struct {
	web3.Backend

	network   web3.Network
	rpcClient *gethrpc.Client

	mu      sync.Mutex
	chainID *big.Int
	closed  bool
}

// committer is implemented by simulated chains that mine on demand.
type committer interface {
	Commit() common.Hash
}

// NewClient dials the network's RPC endpoint and returns a ready-to-use client.
func NewClient(ctx context.Context, network web3.Network) (*Client, error) {
	rpcURL := strings.TrimSpace(network.RPCURL)
	if rpcURL == "" {
		return nil, fmt.Errorf("网络 %s 未配置 RPC 地址", network.Name)
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接 %s 节点失败: %w", network.Name, err)
	}

	return &Client{
		Backend:   ethclient.NewClient(rpcClient),
		network:   network,
		rpcClient: rpcClient,
	}, nil
}

// NewSimulatedClient wraps a go-ethereum simulated backend for testing purposes.
// Broadcast transactions are mined immediately.
func NewSimulatedClient(network web3.Network, backend *backends.SimulatedBackend) *Client {
	return NewBackendClient(network, backend)
}

// NewBackendClient wraps an arbitrary backend, typically a test double.
func NewBackendClient(network web3.Network, backend web3.Backend) *Client {
	return &Client{Backend: backend, network: network}
}

// Network returns the configuration the client was built from.
func (c *Client) Network() web3.Network {
	return c.network
}

// ChainID queries the node once and checks it against the configured chain id.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	if c == nil || c.Backend == nil {
		return nil, errors.New("未初始化的以太坊客户端")
	}
	c.mu.Lock()
	if c.chainID != nil {
		id := new(big.Int).Set(c.chainID)
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	id, err := c.Backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取链 ID 失败: %w", err)
	}
	if c.network.ChainID != 0 && id.Int64() != c.network.ChainID {
		return nil, fmt.Errorf("节点链 ID %s 与网络 %s 的配置 %d 不一致", id, c.network.Name, c.network.ChainID)
	}

	c.mu.Lock()
	c.chainID = new(big.Int).Set(id)
	c.mu.Unlock()
	return id, nil
}

// SendTransaction broadcasts a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *coretypes.Transaction) error {
	if c == nil || c.Backend == nil {
		return errors.New("未初始化的以太坊客户端")
	}
	if err := c.Backend.SendTransaction(ctx, tx); err != nil {
		return err
	}
	if sim, ok := c.Backend.(committer); ok {
		sim.Commit()
	}
	return nil
}

// Snapshot gathers lightweight metadata from the chain.
func (c *Client) Snapshot(ctx context.Context) (web3.ChainSnapshot, error) {
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, err
	}
	blockNumber, err := c.BlockNumber(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, fmt.Errorf("获取最新区块高度失败: %w", err)
	}
	return web3.ChainSnapshot{
		Network:     c.network.Name,
		ChainID:     chainID.Int64(),
		BlockNumber: blockNumber,
		RPCURL:      c.network.RPCURL,
	}, nil
}

// Close releases network connections held by the client. It is safe to call
// more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	if c.rpcClient != nil {
		c.rpcClient.Close()
		c.rpcClient = nil
	}
	if closer, ok := c.Backend.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
