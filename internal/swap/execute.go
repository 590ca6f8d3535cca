package swap

import (
	"context"
	"log/slog"
	"math/big"
	"strings"

	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/internal/events"
	"OpenMCP-EVM/internal/signer"
	"OpenMCP-EVM/internal/units"
	"OpenMCP-EVM/internal/web3/abis"

	"github.com/ethereum/go-ethereum/common"
)

// Request describes a buy (Amount is the stable output wanted) or a sell
// (Amount is the stable input offered).
type Request struct {
	Signer   signer.Identity
	Amount   string
	Slippage string
	Network  string
}

// Result describes a broadcast swap.
type Result struct {
	TxHash   common.Hash
	Network  string
	From     common.Address
	Bound    Bound
	Deadline *big.Int
	// Value is the native currency attached to the transaction.
	Value *big.Int
}

// Buy swaps native currency for the requested amount of the stable token.
// The native input is the router's getAmountsIn quote and the stable output
// is bounded by slippage.
func (e *Engine) Buy(ctx context.Context, req Request) (Result, error) {
	slippage, err := ParseSlippage(req.Slippage)
	if err != nil {
		return Result{}, err
	}
	amount, err := parseAmount(req.Amount, e.stableDecimals)
	if err != nil {
		return Result{}, err
	}
	network := e.network(req.Network)

	sc, err := e.signers.Resolve(ctx, req.Signer, network)
	if err != nil {
		return Result{}, err
	}
	q, err := e.quoteIn(ctx, sc.Client(), amount.Base)
	if err != nil {
		return Result{}, err
	}
	b, err := e.bound(q, amount.Base, slippage)
	if err != nil {
		return Result{}, err
	}

	deadline := e.Deadline()
	data, err := abis.Router.Pack("swapExactETHForTokens", b.Minimum, q.Path, sc.Address(), deadline)
	if err != nil {
		return Result{}, executionError("build", err)
	}
	hash, err := sc.Submit(ctx, signer.Call{To: e.router, Value: q.AmountIn, Data: data})
	if err != nil {
		return Result{}, executionError("submit", err)
	}

	e.record(ctx, events.KindSwapBuy, sc, e.router, hash, map[string]string{
		"amount_out":     amount.Human,
		"min_amount_out": b.Minimum.String(),
		"value":          q.AmountIn.String(),
		"slippage":       slippage.String(),
	})
	return Result{
		TxHash:   hash,
		Network:  sc.Network().Name,
		From:     sc.Address(),
		Bound:    b,
		Deadline: deadline,
		Value:    new(big.Int).Set(q.AmountIn),
	}, nil
}

// Sell swaps the given amount of the stable token for native currency. The
// router must already hold an allowance for the amount.
func (e *Engine) Sell(ctx context.Context, req Request) (Result, error) {
	slippage, err := ParseSlippage(req.Slippage)
	if err != nil {
		return Result{}, err
	}
	amount, err := parseAmount(req.Amount, e.stableDecimals)
	if err != nil {
		return Result{}, err
	}
	network := e.network(req.Network)

	sc, err := e.signers.Resolve(ctx, req.Signer, network)
	if err != nil {
		return Result{}, err
	}
	q, err := e.quoteOut(ctx, sc.Client(), amount.Base)
	if err != nil {
		return Result{}, err
	}
	b, err := e.bound(q, q.AmountOut, slippage)
	if err != nil {
		return Result{}, err
	}

	deadline := e.Deadline()
	data, err := abis.Router.Pack("swapExactTokensForETH", amount.Base, b.Minimum, q.Path, sc.Address(), deadline)
	if err != nil {
		return Result{}, executionError("build", err)
	}
	hash, err := sc.Submit(ctx, signer.Call{To: e.router, Data: data})
	if err != nil {
		return Result{}, executionError("submit", err)
	}

	e.record(ctx, events.KindSwapSell, sc, e.router, hash, map[string]string{
		"amount_in":      amount.Human,
		"min_amount_out": b.Minimum.String(),
		"slippage":       slippage.String(),
	})
	return Result{
		TxHash:   hash,
		Network:  sc.Network().Name,
		From:     sc.Address(),
		Bound:    b,
		Deadline: deadline,
		Value:    new(big.Int),
	}, nil
}

// LiquidityRequest adds a token/native pair to a router pool.
type LiquidityRequest struct {
	Signer       signer.Identity
	Router       string
	Token        string
	AmountToken  string
	AmountNative string
	Slippage     string
	Network      string
}

// LiquidityResult describes a broadcast addLiquidityETH call.
type LiquidityResult struct {
	TxHash       common.Hash
	Network      string
	From         common.Address
	Router       common.Address
	Token        units.TokenDescriptor
	AmountToken  units.Amount
	AmountNative units.Amount
	MinToken     *big.Int
	MinNative    *big.Int
	Deadline     *big.Int
}

// AddLiquidityETH provides token and native liquidity through router. Both
// minimums are the desired amounts narrowed by slippage.
func (e *Engine) AddLiquidityETH(ctx context.Context, req LiquidityRequest) (LiquidityResult, error) {
	slippage, err := ParseSlippage(req.Slippage)
	if err != nil {
		return LiquidityResult{}, err
	}
	router, err := parseAddress("router", req.Router)
	if err != nil {
		return LiquidityResult{}, err
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		return LiquidityResult{}, err
	}
	native, err := parseAmount(req.AmountNative, units.NativeDecimals)
	if err != nil {
		return LiquidityResult{}, err
	}
	if _, err := units.ParseHuman(req.AmountToken); err != nil {
		return LiquidityResult{}, invalidParameter("Invalid amount: must be a positive number")
	}
	if e.tokens == nil {
		return LiquidityResult{}, xerrors.New(xerrors.CodeInitializationFailure, "token describer is not configured")
	}
	network := e.network(req.Network)

	sc, err := e.signers.Resolve(ctx, req.Signer, network)
	if err != nil {
		return LiquidityResult{}, err
	}
	desc, err := e.tokens.Describe(ctx, token, network)
	if err != nil {
		return LiquidityResult{}, err
	}
	tokenAmount, err := parseAmount(req.AmountToken, desc.Decimals)
	if err != nil {
		return LiquidityResult{}, err
	}

	minToken := ApplySlippage(tokenAmount.Base, slippage)
	minNative := ApplySlippage(native.Base, slippage)
	deadline := e.Deadline()
	data, err := abis.Router.Pack("addLiquidityETH", token, tokenAmount.Base, minToken, minNative, sc.Address(), deadline)
	if err != nil {
		return LiquidityResult{}, executionError("build", err)
	}
	hash, err := sc.Submit(ctx, signer.Call{To: router, Value: native.Base, Data: data})
	if err != nil {
		return LiquidityResult{}, executionError("submit", err)
	}

	e.record(ctx, events.KindAddLiquidity, sc, router, hash, map[string]string{
		"router":        router.Hex(),
		"token":         token.Hex(),
		"amount_token":  tokenAmount.Human,
		"amount_native": native.Human,
	})
	return LiquidityResult{
		TxHash:       hash,
		Network:      sc.Network().Name,
		From:         sc.Address(),
		Router:       router,
		Token:        desc,
		AmountToken:  tokenAmount,
		AmountNative: native,
		MinToken:     minToken,
		MinNative:    minNative,
		Deadline:     deadline,
	}, nil
}

func parseAddress(field, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, invalidParameter("Invalid " + field + " address: " + raw)
	}
	return common.HexToAddress(trimmed), nil
}

func (e *Engine) record(ctx context.Context, kind string, sc *signer.Context, to common.Address, hash common.Hash, meta map[string]string) {
	e.log.Info("swap broadcast",
		slog.String("kind", kind),
		slog.String("network", sc.Network().Name),
		slog.String("hash", hash.Hex()),
	)
	e.recorder.Record(ctx, events.Event{
		Kind:     kind,
		Network:  sc.Network().Name,
		From:     sc.Address().Hex(),
		To:       to.Hex(),
		Hash:     hash.Hex(),
		Metadata: meta,
	})
}
