package web3

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainSnapshot represents summarized network metadata for reporting.
type ChainSnapshot struct {
	Network     string `json:"network"`
	ChainID     int64  `json:"chainId"`
	BlockNumber uint64 `json:"blockNumber"`
	RPCURL      string `json:"rpcUrl"`
}

// Backend is the JSON-RPC surface the pipeline relies on. ethclient, the
// simulated backend and test fakes all satisfy it.
type Backend interface {
	bind.ContractBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client is a read-only connection to one network. Instances are shared by
// every caller once cached, so implementations must not carry per-call state.
type Client interface {
	Backend
	Network() Network
	Snapshot(ctx context.Context) (ChainSnapshot, error)
	Close()
}
