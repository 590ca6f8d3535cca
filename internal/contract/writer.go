// Package contract sends arbitrary state-changing calls described by a
// caller-supplied ABI, plus the fixed liquidity-lock call built on top of it.
package contract

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"strings"

	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/internal/events"
	"OpenMCP-EVM/internal/signer"
	"OpenMCP-EVM/internal/units"
	"OpenMCP-EVM/pkg/logger"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultNetwork is used when a request leaves the network empty.
const DefaultNetwork = "bsc"

// LockContract is the UniswapV2-style LP locker used by LockLPToken.
var LockContract = common.HexToAddress("0xc765bddb93b0d1c1a88282ba0fa6b2d00e3e0c83")

// LockFee is the native fee attached to every lockLPToken call (0.2).
var LockFee = big.NewInt(200_000_000_000_000_000)

const lockJSON = `[{"type":"function","name":"lockLPToken","stateMutability":"payable","inputs":[
	{"name":"_lpToken","type":"address"},
	{"name":"_amount","type":"uint256"},
	{"name":"_unlock_date","type":"uint256"},
	{"name":"_referral","type":"address"},
	{"name":"_fee_in_eth","type":"bool"},
	{"name":"_withdrawer","type":"address"}],"outputs":[]}]`

var lockABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(lockJSON))
	if err != nil {
		panic("contract: " + err.Error())
	}
	return parsed
}()

// SignerSource resolves an identity into a signing context.
type SignerSource interface {
	Resolve(ctx context.Context, id signer.Identity, network string) (*signer.Context, error)
}

// Writer builds, signs and broadcasts contract calls.
type Writer struct {
	signers        SignerSource
	recorder       *events.Recorder
	defaultNetwork string
	log            *slog.Logger
}

// NewWriter constructs a Writer. recorder may be nil.
func NewWriter(signers SignerSource, recorder *events.Recorder, defaultNetwork string) *Writer {
	if strings.TrimSpace(defaultNetwork) == "" {
		defaultNetwork = DefaultNetwork
	}
	return &Writer{
		signers:        signers,
		recorder:       recorder,
		defaultNetwork: strings.TrimSpace(defaultNetwork),
		log:            logger.Named("contract"),
	}
}

// WriteRequest is a generic contract call.
type WriteRequest struct {
	Signer   signer.Identity
	Contract string
	ABI      json.RawMessage
	Function string
	Args     []any
	// Value is an optional native amount in human units.
	Value   string
	Network string
}

// WriteResult describes a broadcast contract call.
type WriteResult struct {
	TxHash   common.Hash
	Network  string
	From     common.Address
	Contract common.Address
	Function string
	Value    *big.Int
}

// Write coerces Args against the named function of ABI and submits the call.
func (w *Writer) Write(ctx context.Context, req WriteRequest) (WriteResult, error) {
	contractABI, err := ParseABI(req.ABI)
	if err != nil {
		return WriteResult{}, err
	}
	contract := strings.TrimSpace(req.Contract)
	if !common.IsHexAddress(contract) {
		return WriteResult{}, invalidArgument("invalid contract address: " + req.Contract)
	}
	method, ok := contractABI.Methods[req.Function]
	if !ok {
		return WriteResult{}, invalidArgument("function " + req.Function + " not found in abi")
	}
	args, err := CoerceArgs(method.Inputs, req.Args)
	if err != nil {
		return WriteResult{}, err
	}
	data, err := contractABI.Pack(method.Name, args...)
	if err != nil {
		return WriteResult{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "failed to encode "+method.Name)
	}
	value := new(big.Int)
	if strings.TrimSpace(req.Value) != "" {
		amount, err := units.NewAmount(req.Value, units.NativeDecimals)
		if err != nil {
			return WriteResult{}, err
		}
		value = amount.Base
	}
	if value.Sign() > 0 && !method.IsPayable() {
		return WriteResult{}, invalidArgument("function " + method.Name + " is not payable")
	}

	network := req.Network
	if strings.TrimSpace(network) == "" {
		network = w.defaultNetwork
	}
	sc, err := w.signers.Resolve(ctx, req.Signer, network)
	if err != nil {
		return WriteResult{}, err
	}
	to := common.HexToAddress(contract)
	hash, err := sc.Submit(ctx, signer.Call{To: to, Value: value, Data: data})
	if err != nil {
		return WriteResult{}, err
	}

	w.log.Info("contract call broadcast",
		slog.String("function", method.Name),
		slog.String("network", sc.Network().Name),
		slog.String("hash", hash.Hex()),
	)
	w.recorder.Record(ctx, events.Event{
		Kind:     events.KindContractWrite,
		Network:  sc.Network().Name,
		From:     sc.Address().Hex(),
		To:       to.Hex(),
		Hash:     hash.Hex(),
		Metadata: map[string]string{"function": method.Name},
	})
	return WriteResult{
		TxHash:   hash,
		Network:  sc.Network().Name,
		From:     sc.Address(),
		Contract: to,
		Function: method.Name,
		Value:    value,
	}, nil
}

// LockRequest locks LP tokens until UnlockDate.
type LockRequest struct {
	Signer  signer.Identity
	LPToken string
	// Amount is in LP token base units.
	Amount     string
	UnlockDate int64
	Network    string
}

// LockLPToken calls lockLPToken on LockContract with the fee paid in native
// currency, no referral and the signer as withdrawer.
func (w *Writer) LockLPToken(ctx context.Context, req LockRequest) (WriteResult, error) {
	if !common.IsHexAddress(strings.TrimSpace(req.LPToken)) {
		return WriteResult{}, invalidArgument("invalid LP token address: " + req.LPToken)
	}
	amount, err := units.ParseInteger(req.Amount)
	if err != nil {
		return WriteResult{}, err
	}
	if amount.Sign() <= 0 {
		return WriteResult{}, invalidArgument("amount must be positive")
	}
	if req.UnlockDate <= 0 {
		return WriteResult{}, invalidArgument("unlockDate must be a unix timestamp")
	}

	network := req.Network
	if strings.TrimSpace(network) == "" {
		network = w.defaultNetwork
	}
	sc, err := w.signers.Resolve(ctx, req.Signer, network)
	if err != nil {
		return WriteResult{}, err
	}
	lp := common.HexToAddress(strings.TrimSpace(req.LPToken))
	data, err := lockABI.Pack("lockLPToken", lp, amount, big.NewInt(req.UnlockDate), common.Address{}, true, sc.Address())
	if err != nil {
		return WriteResult{}, err
	}
	hash, err := sc.Submit(ctx, signer.Call{To: LockContract, Value: new(big.Int).Set(LockFee), Data: data})
	if err != nil {
		return WriteResult{}, err
	}

	w.log.Info("lp tokens locked",
		slog.String("lp_token", lp.Hex()),
		slog.String("network", sc.Network().Name),
		slog.String("hash", hash.Hex()),
	)
	w.recorder.Record(ctx, events.Event{
		Kind:    events.KindLiquidityLocked,
		Network: sc.Network().Name,
		From:    sc.Address().Hex(),
		To:      LockContract.Hex(),
		Hash:    hash.Hex(),
		Metadata: map[string]string{
			"lp_token":    lp.Hex(),
			"amount":      amount.String(),
			"unlock_date": big.NewInt(req.UnlockDate).String(),
		},
	})
	return WriteResult{
		TxHash:   hash,
		Network:  sc.Network().Name,
		From:     sc.Address(),
		Contract: LockContract,
		Function: "lockLPToken",
		Value:    new(big.Int).Set(LockFee),
	}, nil
}
