package swap

import (
	"context"
	"math/big"
	"strings"

	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/internal/units"
	"OpenMCP-EVM/internal/web3"
	"OpenMCP-EVM/internal/web3/abis"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Quote is the router's answer for one path.
type Quote struct {
	Path      []common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
}

// Bound is a quote narrowed by the caller's slippage tolerance. Minimum is
// the smallest acceptable output in base units.
type Bound struct {
	Quote           Quote
	SlippagePercent decimal.Decimal
	Minimum         *big.Int
}

// ParseSlippage accepts a percentage in [0, 100].
func ParseSlippage(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Decimal{}, invalidParameter("Invalid slippage: must be between 0 and 100")
	}
	s, err := decimal.NewFromString(trimmed)
	if err != nil || s.IsNegative() || s.GreaterThan(hundred) {
		return decimal.Decimal{}, invalidParameter("Invalid slippage: must be between 0 and 100")
	}
	return s, nil
}

// parseAmount accepts a strictly positive human amount representable at
// decimals.
func parseAmount(raw string, decimals uint8) (units.Amount, error) {
	amount, err := units.NewAmount(raw, decimals)
	if err != nil || amount.Base.Sign() <= 0 {
		return units.Amount{}, invalidParameter("Invalid amount: must be a positive number")
	}
	return amount, nil
}

// ApplySlippage returns floor(quoted × (1 − slippage/100)) exactly.
func ApplySlippage(quoted *big.Int, slippage decimal.Decimal) *big.Int {
	if quoted == nil {
		return new(big.Int)
	}
	return decimal.NewFromBigInt(quoted, 0).
		Mul(hundred.Sub(slippage)).
		Shift(-2).
		Floor().
		BigInt()
}

// EthNeededForOutput asks the router how much native currency buys
// amountOut of the stable token.
func (e *Engine) EthNeededForOutput(ctx context.Context, amountOut *big.Int, network string) (Quote, error) {
	client, err := e.conns.Connection(ctx, e.network(network))
	if err != nil {
		return Quote{}, executionError("quote", err)
	}
	return e.quoteIn(ctx, client, amountOut)
}

// EthReceivableForInput asks the router how much native currency selling
// amountIn of the stable token yields.
func (e *Engine) EthReceivableForInput(ctx context.Context, amountIn *big.Int, network string) (Quote, error) {
	client, err := e.conns.Connection(ctx, e.network(network))
	if err != nil {
		return Quote{}, executionError("quote", err)
	}
	return e.quoteOut(ctx, client, amountIn)
}

func (e *Engine) quoteIn(ctx context.Context, client web3.Client, amountOut *big.Int) (Quote, error) {
	path := e.buyPath()
	amounts, err := e.callAmounts(ctx, client, "getAmountsIn", amountOut, path)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Path: path, AmountIn: amounts[0], AmountOut: new(big.Int).Set(amountOut)}, nil
}

func (e *Engine) quoteOut(ctx context.Context, client web3.Client, amountIn *big.Int) (Quote, error) {
	path := e.sellPath()
	amounts, err := e.callAmounts(ctx, client, "getAmountsOut", amountIn, path)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Path: path, AmountIn: new(big.Int).Set(amountIn), AmountOut: amounts[len(amounts)-1]}, nil
}

func (e *Engine) callAmounts(ctx context.Context, client web3.Client, method string, amount *big.Int, path []common.Address) ([]*big.Int, error) {
	data, err := abis.Router.Pack(method, amount, path)
	if err != nil {
		return nil, executionError("quote", err)
	}
	router := e.router
	out, err := client.CallContract(ctx, gethcore.CallMsg{To: &router, Data: data}, nil)
	if err != nil {
		return nil, executionError("quote", err)
	}
	values, err := abis.Router.Unpack(method, out)
	if err != nil {
		return nil, executionError("quote", err)
	}
	amounts, _ := values[0].([]*big.Int)
	if len(amounts) == 0 {
		return nil, executionError("quote", xerrors.New(xerrors.CodeSwapExecution, "router returned an empty quote"))
	}
	for _, a := range amounts {
		if a == nil || a.Sign() <= 0 {
			return nil, executionError("quote", xerrors.New(xerrors.CodeSwapExecution, "router returned a zero quote"))
		}
	}
	return amounts, nil
}

// bound narrows quoted by slippage and enforces the zero and floor checks.
func (e *Engine) bound(q Quote, quoted *big.Int, slippage decimal.Decimal) (Bound, error) {
	minimum := ApplySlippage(quoted, slippage)
	if minimum.Sign() <= 0 {
		return Bound{}, executionError("bound", xerrors.New(xerrors.CodeSwapExecution, "minimum output rounds to zero"))
	}
	if e.minFloor != nil && minimum.Cmp(e.minFloor) < 0 {
		return Bound{}, executionError("bound", xerrors.New(xerrors.CodeSwapExecution,
			"minimum output "+minimum.String()+" is below the configured floor "+e.minFloor.String()))
	}
	return Bound{Quote: q, SlippagePercent: slippage, Minimum: minimum}, nil
}

// Side selects the swap direction for Estimate.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// EstimateRequest prices a swap without signing anything.
type EstimateRequest struct {
	Side     Side
	Amount   string
	Slippage string
	Network  string
}

// Estimate is the human-readable result of a dry-run quote.
type Estimate struct {
	Side    Side
	Network string
	Bound   Bound
	// NativeAmount is the native currency spent (buy) or received (sell).
	NativeAmount string
	// MinimumOut is the bounded output in human units.
	MinimumOut string
}

// Estimate quotes and bounds a buy or sell using the read-only helpers.
func (e *Engine) Estimate(ctx context.Context, req EstimateRequest) (Estimate, error) {
	slippage, err := ParseSlippage(req.Slippage)
	if err != nil {
		return Estimate{}, err
	}
	amount, err := parseAmount(req.Amount, e.stableDecimals)
	if err != nil {
		return Estimate{}, err
	}
	network := e.network(req.Network)

	switch req.Side {
	case SideBuy, "":
		q, err := e.EthNeededForOutput(ctx, amount.Base, network)
		if err != nil {
			return Estimate{}, err
		}
		b, err := e.bound(q, amount.Base, slippage)
		if err != nil {
			return Estimate{}, err
		}
		return Estimate{
			Side:         SideBuy,
			Network:      network,
			Bound:        b,
			NativeAmount: units.ToHumanUnits(q.AmountIn, units.NativeDecimals),
			MinimumOut:   units.ToHumanUnits(b.Minimum, e.stableDecimals),
		}, nil
	case SideSell:
		q, err := e.EthReceivableForInput(ctx, amount.Base, network)
		if err != nil {
			return Estimate{}, err
		}
		b, err := e.bound(q, q.AmountOut, slippage)
		if err != nil {
			return Estimate{}, err
		}
		return Estimate{
			Side:         SideSell,
			Network:      network,
			Bound:        b,
			NativeAmount: units.ToHumanUnits(q.AmountOut, units.NativeDecimals),
			MinimumOut:   units.ToHumanUnits(b.Minimum, units.NativeDecimals),
		}, nil
	default:
		return Estimate{}, invalidParameter("Invalid side: must be buy or sell")
	}
}
