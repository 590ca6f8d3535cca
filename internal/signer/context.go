package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/internal/web3"
	"OpenMCP-EVM/pkg/logger"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Call is one state-changing contract invocation or value transfer.
type Call struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// Context binds a connection to a signing account for a single operation.
type Context struct {
	client  web3.Client
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
}

func newContext(client web3.Client, key *ecdsa.PrivateKey, chainID *big.Int) *Context {
	return &Context{
		client:  client,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: new(big.Int).Set(chainID),
	}
}

// Address is the signing account.
func (c *Context) Address() common.Address { return c.from }

// Client is the shared read connection.
func (c *Context) Client() web3.Client { return c.client }

// Network is the network the context was resolved for.
func (c *Context) Network() web3.Network { return c.client.Network() }

// ChainID is the replay-protection id used when signing.
func (c *Context) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// Call runs a read-only eth_call from the signing account.
func (c *Context) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return c.client.CallContract(ctx, gethcore.CallMsg{From: c.from, To: &to, Data: data}, nil)
}

// Submit signs and broadcasts call. The returned hash does not imply inclusion.
func (c *Context) Submit(ctx context.Context, call Call) (common.Hash, error) {
	if c == nil || c.key == nil || c.client == nil {
		return common.Hash{}, xerrors.New(xerrors.CodeInitializationFailure, "signer account is not initialised")
	}
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	to := call.To

	nonce, err := c.client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("获取 nonce 失败: %w", err)
	}
	head, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("获取最新区块头失败: %w", err)
	}
	gas, err := c.client.EstimateGas(ctx, gethcore.CallMsg{From: c.from, To: &to, Value: value, Data: call.Data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("估算 gas 失败: %w", err)
	}

	var tx *types.Transaction
	if head.BaseFee != nil {
		tip, err := c.client.SuggestGasTipCap(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("获取小费建议失败: %w", err)
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   c.chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        &to,
			Value:     value,
			Data:      call.Data,
		})
	} else {
		price, err := c.client.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("获取 gas 价格失败: %w", err)
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: price,
			Gas:      gas,
			To:       &to,
			Value:    value,
			Data:     call.Data,
		})
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("签名交易失败: %w", err)
	}
	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("广播交易失败: %w", err)
	}

	logger.Audit().Info("tx_broadcast",
		"network", c.client.Network().Name,
		"from", c.from.Hex(),
		"to", to.Hex(),
		"nonce", nonce,
		"value", value.String(),
		"hash", signed.Hash().Hex(),
	)
	return signed.Hash(), nil
}
