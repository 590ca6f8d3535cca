// Package chainread answers read-only questions about a network: chain
// metadata, blocks, balances, transactions and receipts.
package chainread

import (
	"context"
	"errors"
	"math/big"
	"regexp"
	"strings"

	"OpenMCP-EVM/internal/ens"
	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/internal/units"
	"OpenMCP-EVM/internal/web3"
	"OpenMCP-EVM/internal/web3/abis"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultNetwork is used when a request leaves the network empty.
const DefaultNetwork = "bsc"

var hashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// Connections hands out the shared per-network client and lists networks.
type Connections interface {
	Connection(ctx context.Context, key string) (web3.Client, error)
	Networks() []string
}

// NameResolver maps a name or hex address to an address.
type NameResolver interface {
	Resolve(ctx context.Context, nameOrAddress string, network string) (common.Address, error)
}

// TokenDescriber reads token decimals and symbol.
type TokenDescriber interface {
	Describe(ctx context.Context, token common.Address, network string) (units.TokenDescriptor, error)
}

// Service runs the read queries.
type Service struct {
	conns          Connections
	names          NameResolver
	tokens         TokenDescriber
	defaultNetwork string
}

// NewService wires the read collaborators. An empty defaultNetwork selects
// DefaultNetwork.
func NewService(conns Connections, names NameResolver, tokens TokenDescriber, defaultNetwork string) *Service {
	if strings.TrimSpace(defaultNetwork) == "" {
		defaultNetwork = DefaultNetwork
	}
	return &Service{conns: conns, names: names, tokens: tokens, defaultNetwork: strings.TrimSpace(defaultNetwork)}
}

func (s *Service) client(ctx context.Context, network string) (web3.Client, string, error) {
	if strings.TrimSpace(network) == "" {
		network = s.defaultNetwork
	}
	client, err := s.conns.Connection(ctx, network)
	if err != nil {
		return nil, "", err
	}
	return client, client.Network().Name, nil
}

// ChainInfo returns the chain id, head height and RPC endpoint of network.
func (s *Service) ChainInfo(ctx context.Context, network string) (web3.ChainSnapshot, error) {
	client, _, err := s.client(ctx, network)
	if err != nil {
		return web3.ChainSnapshot{}, err
	}
	return client.Snapshot(ctx)
}

// SupportedNetworks lists the canonical network names.
func (s *Service) SupportedNetworks() []string {
	return s.conns.Networks()
}

// NameResult is a resolved ENS name.
type NameResult struct {
	Name       string         `json:"ensName"`
	Normalized string         `json:"normalizedName"`
	Address    common.Address `json:"resolvedAddress"`
	Network    string         `json:"network"`
}

// ResolveName resolves an ENS name. Unlike the transfer path, a bare address
// is rejected here because the caller asked for a lookup.
func (s *Service) ResolveName(ctx context.Context, name, network string) (NameResult, error) {
	normalized, err := ens.Normalize(name)
	if err != nil {
		return NameResult{}, err
	}
	if strings.TrimSpace(network) == "" {
		network = s.defaultNetwork
	}
	addr, err := s.names.Resolve(ctx, normalized, network)
	if err != nil {
		return NameResult{}, err
	}
	return NameResult{Name: name, Normalized: normalized, Address: addr, Network: network}, nil
}

// Block summarises a block header.
type Block struct {
	Network    string `json:"network"`
	Number     uint64 `json:"number"`
	Hash       string `json:"hash"`
	ParentHash string `json:"parentHash"`
	Timestamp  uint64 `json:"timestamp"`
	GasUsed    uint64 `json:"gasUsed"`
	GasLimit   uint64 `json:"gasLimit"`
	BaseFee    string `json:"baseFeePerGas,omitempty"`
	TxCount    int    `json:"transactionCount"`
}

// LatestBlock reads the head block.
func (s *Service) LatestBlock(ctx context.Context, network string) (Block, error) {
	client, name, err := s.client(ctx, network)
	if err != nil {
		return Block{}, err
	}
	block, err := client.BlockByNumber(ctx, nil)
	if err != nil {
		return Block{}, err
	}
	out := Block{
		Network:    name,
		Number:     block.NumberU64(),
		Hash:       block.Hash().Hex(),
		ParentHash: block.ParentHash().Hex(),
		Timestamp:  block.Time(),
		GasUsed:    block.GasUsed(),
		GasLimit:   block.GasLimit(),
		TxCount:    len(block.Transactions()),
	}
	if fee := block.BaseFee(); fee != nil {
		out.BaseFee = fee.String()
	}
	return out, nil
}

// Balance is a native balance in both units.
type Balance struct {
	Address common.Address `json:"address"`
	Network string         `json:"network"`
	Wei     string         `json:"wei"`
	Ether   string         `json:"ether"`
	Symbol  string         `json:"symbol"`
}

// NativeBalance reads the native balance of an address or ENS name.
func (s *Service) NativeBalance(ctx context.Context, account, network string) (Balance, error) {
	client, name, err := s.client(ctx, network)
	if err != nil {
		return Balance{}, err
	}
	addr, err := s.names.Resolve(ctx, account, name)
	if err != nil {
		return Balance{}, err
	}
	wei, err := client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		Address: addr,
		Network: name,
		Wei:     wei.String(),
		Ether:   units.ToHumanUnits(wei, units.NativeDecimals),
		Symbol:  client.Network().NativeSymbol,
	}, nil
}

// TokenBalance is an ERC20 balance scaled by the token's decimals.
type TokenBalance struct {
	Token     common.Address `json:"tokenAddress"`
	Owner     common.Address `json:"owner"`
	Network   string         `json:"network"`
	Raw       string         `json:"raw"`
	Formatted string         `json:"formatted"`
	Symbol    string         `json:"symbol"`
	Decimals  uint8          `json:"decimals"`
}

// TokenBalance reads balanceOf(owner) on token.
func (s *Service) TokenBalance(ctx context.Context, tokenRef, ownerRef, network string) (TokenBalance, error) {
	client, name, err := s.client(ctx, network)
	if err != nil {
		return TokenBalance{}, err
	}
	token, err := s.names.Resolve(ctx, tokenRef, name)
	if err != nil {
		return TokenBalance{}, err
	}
	owner, err := s.names.Resolve(ctx, ownerRef, name)
	if err != nil {
		return TokenBalance{}, err
	}
	desc, err := s.tokens.Describe(ctx, token, name)
	if err != nil {
		return TokenBalance{}, err
	}
	data, err := abis.ERC20.Pack("balanceOf", owner)
	if err != nil {
		return TokenBalance{}, err
	}
	out, err := client.CallContract(ctx, gethcore.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return TokenBalance{}, xerrors.Wrap(xerrors.CodeContractRead, err, "failed to read balanceOf on "+token.Hex())
	}
	values, err := abis.ERC20.Unpack("balanceOf", out)
	if err != nil {
		return TokenBalance{}, xerrors.Wrap(xerrors.CodeContractRead, err, "failed to decode balanceOf on "+token.Hex())
	}
	raw, _ := values[0].(*big.Int)
	if raw == nil {
		raw = new(big.Int)
	}
	return TokenBalance{
		Token:     token,
		Owner:     owner,
		Network:   name,
		Raw:       raw.String(),
		Formatted: units.ToHumanUnits(raw, desc.Decimals),
		Symbol:    desc.Symbol,
		Decimals:  desc.Decimals,
	}, nil
}

// Transaction is a decoded transaction.
type Transaction struct {
	Hash     string  `json:"hash"`
	Network  string  `json:"network"`
	Pending  bool    `json:"pending"`
	Type     uint8   `json:"type"`
	From     string  `json:"from"`
	To       *string `json:"to"`
	Nonce    uint64  `json:"nonce"`
	Value    string  `json:"value"`
	Gas      uint64  `json:"gas"`
	GasPrice string  `json:"gasPrice"`
	Input    string  `json:"input"`
	ChainID  string  `json:"chainId"`
}

// Transaction looks up a transaction by hash.
func (s *Service) Transaction(ctx context.Context, rawHash, network string) (Transaction, error) {
	hash, err := parseHash(rawHash)
	if err != nil {
		return Transaction{}, err
	}
	client, name, err := s.client(ctx, network)
	if err != nil {
		return Transaction{}, err
	}
	tx, pending, err := client.TransactionByHash(ctx, hash)
	if err != nil {
		return Transaction{}, notFound("transaction", hash, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return Transaction{}, err
	}

	view := Transaction{
		Hash:     tx.Hash().Hex(),
		Network:  name,
		Pending:  pending,
		Type:     tx.Type(),
		Nonce:    tx.Nonce(),
		Value:    tx.Value().String(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice().String(),
		Input:    "0x" + common.Bytes2Hex(tx.Data()),
		ChainID:  chainID.String(),
	}
	if from, err := types.Sender(types.LatestSignerForChainID(chainID), tx); err == nil {
		view.From = from.Hex()
	}
	if to := tx.To(); to != nil {
		hex := to.Hex()
		view.To = &hex
	}
	return view, nil
}

// Receipt is a decoded transaction receipt.
type Receipt struct {
	TxHash            string  `json:"transactionHash"`
	Network           string  `json:"network"`
	Status            string  `json:"status"`
	BlockNumber       string  `json:"blockNumber"`
	GasUsed           uint64  `json:"gasUsed"`
	CumulativeGasUsed uint64  `json:"cumulativeGasUsed"`
	EffectiveGasPrice string  `json:"effectiveGasPrice,omitempty"`
	ContractAddress   *string `json:"contractAddress"`
	Logs              int     `json:"logCount"`
}

// Receipt looks up the receipt of an included transaction.
func (s *Service) Receipt(ctx context.Context, rawHash, network string) (Receipt, error) {
	hash, err := parseHash(rawHash)
	if err != nil {
		return Receipt{}, err
	}
	client, name, err := s.client(ctx, network)
	if err != nil {
		return Receipt{}, err
	}
	receipt, err := client.TransactionReceipt(ctx, hash)
	if err != nil {
		return Receipt{}, notFound("receipt", hash, err)
	}

	view := Receipt{
		TxHash:            receipt.TxHash.Hex(),
		Network:           name,
		Status:            "reverted",
		GasUsed:           receipt.GasUsed,
		CumulativeGasUsed: receipt.CumulativeGasUsed,
		Logs:              len(receipt.Logs),
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		view.Status = "success"
	}
	if receipt.BlockNumber != nil {
		view.BlockNumber = receipt.BlockNumber.String()
	}
	if receipt.EffectiveGasPrice != nil {
		view.EffectiveGasPrice = receipt.EffectiveGasPrice.String()
	}
	if receipt.ContractAddress != (common.Address{}) {
		hex := receipt.ContractAddress.Hex()
		view.ContractAddress = &hex
	}
	return view, nil
}

func parseHash(raw string) (common.Hash, error) {
	trimmed := strings.TrimSpace(raw)
	if !hashPattern.MatchString(trimmed) {
		return common.Hash{}, xerrors.New(xerrors.CodeInvalidArgument, "invalid transaction hash: "+raw)
	}
	return common.HexToHash(trimmed), nil
}

func notFound(what string, hash common.Hash, err error) error {
	if errors.Is(err, gethcore.NotFound) {
		return xerrors.Wrap(xerrors.CodeNotFound, err, what+" not found: "+hash.Hex())
	}
	return err
}
