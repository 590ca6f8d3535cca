// Package web3test provides a programmable in-memory chain backend. Contract
// reads are answered per 4-byte selector with ABI-packed results and every
// broadcast transaction is recorded for inspection.
package web3test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"OpenMCP-EVM/internal/web3"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrReverted is returned for calls nobody registered a handler for.
var ErrReverted = errors.New("execution reverted")

// MethodFunc computes the outputs of one contract method from its decoded inputs.
type MethodFunc func(args []any) ([]any, error)

type handler struct {
	method abi.Method
	fn     MethodFunc
}

// Backend is a fake web3.Backend.
type Backend struct {
	mu sync.Mutex

	chainID  *big.Int
	baseFee  *big.Int
	gasPrice *big.Int
	tipCap   *big.Int
	gas      uint64
	block    uint64
	sendErr  error

	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	code     map[common.Address][]byte
	handlers map[common.Address]map[[4]byte]handler

	calls []gethcore.CallMsg
	sent  []*types.Transaction
}

var _ web3.Backend = (*Backend)(nil)

// NewBackend returns a London-enabled fake chain with the given id.
func NewBackend(chainID int64) *Backend {
	return &Backend{
		chainID:  big.NewInt(chainID),
		baseFee:  big.NewInt(1_000_000_000),
		gasPrice: big.NewInt(3_000_000_000),
		tipCap:   big.NewInt(1_000_000_000),
		gas:      60_000,
		block:    100,
		balances: make(map[common.Address]*big.Int),
		nonces:   make(map[common.Address]uint64),
		code:     make(map[common.Address][]byte),
		handlers: make(map[common.Address]map[[4]byte]handler),
	}
}

// SetLegacy removes the base fee so signers fall back to legacy transactions.
func (b *Backend) SetLegacy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.baseFee = nil
}

// SetBalance sets the native balance of an account.
func (b *Backend) SetBalance(account common.Address, wei *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] = new(big.Int).Set(wei)
}

// FailSends makes every subsequent SendTransaction return err.
func (b *Backend) FailSends(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sendErr = err
}

// Handle registers fn as the implementation of method on contract.
func (b *Backend) Handle(contract common.Address, contractABI abi.ABI, method string, fn MethodFunc) {
	m, ok := contractABI.Methods[method]
	if !ok {
		panic(fmt.Sprintf("web3test: method %s not in ABI", method))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[contract] == nil {
		b.handlers[contract] = make(map[[4]byte]handler)
	}
	var selector [4]byte
	copy(selector[:], m.ID)
	b.handlers[contract][selector] = handler{method: m, fn: fn}
	b.code[contract] = []byte{0x60, 0x80}
}

// Returns registers a handler that always yields the given outputs.
func (b *Backend) Returns(contract common.Address, contractABI abi.ABI, method string, outputs ...any) {
	b.Handle(contract, contractABI, method, func([]any) ([]any, error) { return outputs, nil })
}

// Calls returns every eth_call received so far.
func (b *Backend) Calls() []gethcore.CallMsg {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]gethcore.CallMsg(nil), b.calls...)
}

// Sent returns every broadcast transaction in order.
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

// DecodeCall splits calldata into the method name and its decoded arguments.
func DecodeCall(contractABI abi.ABI, data []byte) (string, []any, error) {
	if len(data) < 4 {
		return "", nil, errors.New("calldata shorter than a selector")
	}
	method, err := contractABI.MethodById(data[:4])
	if err != nil {
		return "", nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return "", nil, err
	}
	return method.Name, args, nil
}

func (b *Backend) CallContract(_ context.Context, call gethcore.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	b.calls = append(b.calls, call)
	var h handler
	var found bool
	if call.To != nil && len(call.Data) >= 4 {
		var selector [4]byte
		copy(selector[:], call.Data[:4])
		h, found = b.handlers[*call.To][selector]
	}
	b.mu.Unlock()

	if !found {
		return nil, ErrReverted
	}
	args, err := h.method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}
	outputs, err := h.fn(args)
	if err != nil {
		return nil, err
	}
	return h.method.Outputs.Pack(outputs...)
}

func (b *Backend) CodeAt(_ context.Context, contract common.Address, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.code[contract], nil
}

func (b *Backend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return b.CodeAt(ctx, account, nil)
}

func (b *Backend) HeaderByNumber(_ context.Context, _ *big.Int) (*types.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	header := &types.Header{Number: new(big.Int).SetUint64(b.block), GasLimit: 30_000_000, Time: 1_700_000_000}
	if b.baseFee != nil {
		header.BaseFee = new(big.Int).Set(b.baseFee)
	}
	return header, nil
}

func (b *Backend) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	header, err := b.HeaderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return types.NewBlockWithHeader(header), nil
}

func (b *Backend) BlockNumber(context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.block, nil
}

func (b *Backend) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.chainID), nil
}

func (b *Backend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if balance, ok := b.balances[account]; ok {
		return new(big.Int).Set(balance), nil
	}
	return new(big.Int), nil
}

func (b *Backend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

func (b *Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.gasPrice), nil
}

func (b *Backend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.tipCap), nil
}

func (b *Backend) EstimateGas(context.Context, gethcore.CallMsg) (uint64, error) {
	return b.gas, nil
}

func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	from, err := types.Sender(types.LatestSignerForChainID(b.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}
	if tx.Nonce() != b.nonces[from] {
		return fmt.Errorf("nonce mismatch: have %d want %d", tx.Nonce(), b.nonces[from])
	}
	b.nonces[from]++
	b.sent = append(b.sent, tx)
	b.block++
	return nil
}

func (b *Backend) TransactionByHash(_ context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, tx := range b.sent {
		if tx.Hash() == hash {
			return tx, false, nil
		}
	}
	return nil, false, gethcore.NotFound
}

func (b *Backend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, tx := range b.sent {
		if tx.Hash() == hash {
			return &types.Receipt{
				Type:              tx.Type(),
				Status:            types.ReceiptStatusSuccessful,
				TxHash:            hash,
				GasUsed:           b.gas,
				CumulativeGasUsed: b.gas,
				BlockNumber:       new(big.Int).SetUint64(b.block - uint64(len(b.sent)-1-i)),
				Logs:              []*types.Log{},
			}, nil
		}
	}
	return nil, gethcore.NotFound
}

func (b *Backend) FilterLogs(context.Context, gethcore.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (b *Backend) SubscribeFilterLogs(context.Context, gethcore.FilterQuery, chan<- types.Log) (gethcore.Subscription, error) {
	return nil, errors.New("web3test: subscriptions not supported")
}
