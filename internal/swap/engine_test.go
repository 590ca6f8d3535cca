package swap

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/internal/signer"
	"OpenMCP-EVM/internal/units"
	"OpenMCP-EVM/internal/web3"
	"OpenMCP-EVM/internal/web3/abis"
	"OpenMCP-EVM/internal/web3/ethereum"
	"OpenMCP-EVM/internal/web3/provider"
	"OpenMCP-EVM/internal/web3/web3test"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var (
	testAddress = common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	fixedNow    = time.Unix(1_700_000_000, 0)
)

type walletMap map[string]string

func (w walletMap) CredentialByName(_ context.Context, name string) (string, error) {
	raw, ok := w[name]
	if !ok {
		return "", xerrors.New(xerrors.CodeWalletNotFound, "Wallet not found: "+name)
	}
	return raw, nil
}

type fixture struct {
	backend *web3test.Backend
	engine  *Engine
	dials   *atomic.Int32
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()

	backend := web3test.NewBackend(97)
	dials := new(atomic.Int32)
	registry := provider.NewRegistry(web3.DefaultNetworks(), provider.WithDialer(func(_ context.Context, network web3.Network) (web3.Client, error) {
		dials.Add(1)
		return ethereum.NewBackendClient(network, backend), nil
	}))
	t.Cleanup(registry.Close)

	signers := signer.NewResolver(registry, walletMap{"alice": testKey})
	base := []Option{WithClock(func() time.Time { return fixedNow }), WithTokenDescriber(units.NewDescriber(registry))}
	return fixture{
		backend: backend,
		engine:  NewEngine(registry, signers, append(base, opts...)...),
		dials:   dials,
	}
}

func ether(s string) *big.Int {
	d := decimal.RequireFromString(s)
	return d.Shift(18).BigInt()
}

// quoteRouter answers getAmountsIn with nativeIn and getAmountsOut with nativeOut.
func quoteRouter(b *web3test.Backend, nativeIn, nativeOut *big.Int) {
	b.Handle(DefaultRouter, abis.Router, "getAmountsIn", func(args []any) ([]any, error) {
		out := args[0].(*big.Int)
		return []any{[]*big.Int{nativeIn, out}}, nil
	})
	b.Handle(DefaultRouter, abis.Router, "getAmountsOut", func(args []any) ([]any, error) {
		in := args[0].(*big.Int)
		return []any{[]*big.Int{in, nativeOut}}, nil
	})
}

func TestApplySlippage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		quoted   *big.Int
		slippage string
		want     *big.Int
	}{
		{ether("100"), "0.5", ether("99.5")},
		{ether("2.0"), "1", ether("1.98")},
		{big.NewInt(999), "0.5", big.NewInt(994)},
		{big.NewInt(1000), "0", big.NewInt(1000)},
		{big.NewInt(1000), "100", big.NewInt(0)},
	}
	for _, tc := range cases {
		got := ApplySlippage(tc.quoted, decimal.RequireFromString(tc.slippage))
		if got.Cmp(tc.want) != 0 {
			t.Fatalf("ApplySlippage(%s, %s) = %s, want %s", tc.quoted, tc.slippage, got, tc.want)
		}
	}
}

func TestBuyBoundsRequestedOutput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	quoteRouter(f.backend, ether("0.3"), nil)

	res, err := f.engine.Buy(context.Background(), Request{
		Signer:   signer.Wallet("alice"),
		Amount:   "100",
		Slippage: "0.5",
	})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if res.Network != DefaultNetwork || res.Bound.Minimum.Cmp(ether("99.5")) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Deadline.Int64() != fixedNow.Unix()+1200 {
		t.Fatalf("expected deadline T+1200, got %s", res.Deadline)
	}

	sent := f.backend.Sent()
	if len(sent) != 1 || *sent[0].To() != DefaultRouter || sent[0].Value().Cmp(ether("0.3")) != 0 {
		t.Fatalf("unexpected broadcast %+v", sent)
	}
	name, args, err := web3test.DecodeCall(abis.Router, sent[0].Data())
	if err != nil {
		t.Fatalf("decode calldata: %v", err)
	}
	path := args[1].([]common.Address)
	if name != "swapExactETHForTokens" ||
		args[0].(*big.Int).Cmp(ether("99.5")) != 0 ||
		len(path) != 2 || path[0] != DefaultWrappedNative || path[1] != DefaultStable ||
		args[2].(common.Address) != testAddress ||
		args[3].(*big.Int).Int64() != fixedNow.Unix()+1200 {
		t.Fatalf("unexpected call %s%v", name, args)
	}
}

func TestSellBoundsQuotedProceeds(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	quoteRouter(f.backend, nil, ether("2.0"))

	res, err := f.engine.Sell(context.Background(), Request{
		Signer:   signer.Wallet("alice"),
		Amount:   "500",
		Slippage: "1",
	})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if res.Bound.Minimum.Cmp(ether("1.98")) != 0 || res.Value.Sign() != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	name, args, err := web3test.DecodeCall(abis.Router, f.backend.Sent()[0].Data())
	if err != nil {
		t.Fatalf("decode calldata: %v", err)
	}
	path := args[2].([]common.Address)
	if name != "swapExactTokensForETH" ||
		args[0].(*big.Int).Cmp(ether("500")) != 0 ||
		args[1].(*big.Int).Cmp(ether("1.98")) != 0 ||
		path[0] != DefaultStable || path[1] != DefaultWrappedNative {
		t.Fatalf("unexpected call %s%v", name, args)
	}
}

func TestValidationFailsBeforeAnyNetworkWork(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	quoteRouter(f.backend, ether("0.3"), ether("2"))

	cases := []Request{
		{Signer: signer.Wallet("alice"), Amount: "100", Slippage: "101"},
		{Signer: signer.Wallet("alice"), Amount: "100", Slippage: "-1"},
		{Signer: signer.Wallet("alice"), Amount: "100", Slippage: "abc"},
		{Signer: signer.Wallet("alice"), Amount: "0", Slippage: "1"},
		{Signer: signer.Wallet("alice"), Amount: "-5", Slippage: "1"},
		{Signer: signer.Wallet("alice"), Amount: "ten", Slippage: "1"},
	}
	for _, req := range cases {
		if _, err := f.engine.Buy(context.Background(), req); xerrors.CodeOf(err) != xerrors.CodeInvalidParameter {
			t.Fatalf("buy %+v: expected INVALID_PARAMETER, got %v", req, err)
		}
		if _, err := f.engine.Sell(context.Background(), req); xerrors.CodeOf(err) != xerrors.CodeInvalidParameter {
			t.Fatalf("sell %+v: expected INVALID_PARAMETER, got %v", req, err)
		}
	}
	if f.dials.Load() != 0 || len(f.backend.Calls()) != 0 {
		t.Fatalf("expected no network work, dials=%d calls=%d", f.dials.Load(), len(f.backend.Calls()))
	}
}

func TestQuoteFailureIsSwapExecution(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.engine.Buy(context.Background(), Request{Signer: signer.Wallet("alice"), Amount: "1", Slippage: "1"})
	if xerrors.CodeOf(err) != xerrors.CodeSwapExecution {
		t.Fatalf("expected SWAP_EXECUTION, got %v", err)
	}
	if !errors.Is(err, web3test.ErrReverted) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
	if len(f.backend.Sent()) != 0 {
		t.Fatal("expected nothing broadcast")
	}
}

func TestZeroQuoteAndFloorAreRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	quoteRouter(f.backend, ether("0.3"), big.NewInt(0))
	_, err := f.engine.Sell(context.Background(), Request{Signer: signer.Wallet("alice"), Amount: "1", Slippage: "1"})
	if xerrors.CodeOf(err) != xerrors.CodeSwapExecution {
		t.Fatalf("expected SWAP_EXECUTION for zero quote, got %v", err)
	}

	floored := newFixture(t, WithMinOutputFloor(ether("1000")))
	quoteRouter(floored.backend, ether("0.3"), ether("2"))
	_, err = floored.engine.Buy(context.Background(), Request{Signer: signer.Wallet("alice"), Amount: "100", Slippage: "0.5"})
	if xerrors.CodeOf(err) != xerrors.CodeSwapExecution {
		t.Fatalf("expected SWAP_EXECUTION below floor, got %v", err)
	}
	if len(floored.backend.Sent()) != 0 {
		t.Fatal("expected nothing broadcast")
	}
}

func TestSignerFailuresSurfaceUnwrapped(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	quoteRouter(f.backend, ether("0.3"), ether("2"))
	ctx := context.Background()

	_, err := f.engine.Buy(ctx, Request{Signer: signer.Wallet("mallory"), Amount: "1", Slippage: "1"})
	if xerrors.CodeOf(err) != xerrors.CodeWalletNotFound {
		t.Fatalf("buy: expected WALLET_NOT_FOUND, got %v", err)
	}
	_, err = f.engine.Sell(ctx, Request{Signer: signer.Wallet("mallory"), Amount: "1", Slippage: "1"})
	if xerrors.CodeOf(err) != xerrors.CodeWalletNotFound {
		t.Fatalf("sell: expected WALLET_NOT_FOUND, got %v", err)
	}
	_, err = f.engine.Buy(ctx, Request{Signer: signer.Wallet("alice"), Amount: "1", Slippage: "1", Network: "atlantis"})
	if xerrors.CodeOf(err) != xerrors.CodeUnknownNetwork {
		t.Fatalf("expected UNKNOWN_NETWORK, got %v", err)
	}
	if len(f.backend.Sent()) != 0 {
		t.Fatal("expected nothing broadcast")
	}
}

func TestSubmitFailureIsWrapped(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	quoteRouter(f.backend, ether("0.3"), ether("2"))
	boom := errors.New("insufficient funds for gas * price + value")
	f.backend.FailSends(boom)

	_, err := f.engine.Buy(context.Background(), Request{Signer: signer.Wallet("alice"), Amount: "1", Slippage: "1"})
	if xerrors.CodeOf(err) != xerrors.CodeSwapExecution || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped submit failure, got %v", err)
	}
}

func TestEstimate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	quoteRouter(f.backend, ether("0.3"), ether("2"))

	buy, err := f.engine.Estimate(context.Background(), EstimateRequest{Side: SideBuy, Amount: "100", Slippage: "0.5"})
	if err != nil {
		t.Fatalf("estimate buy: %v", err)
	}
	if buy.NativeAmount != "0.3" || buy.MinimumOut != "99.5" {
		t.Fatalf("unexpected buy estimate %+v", buy)
	}

	sell, err := f.engine.Estimate(context.Background(), EstimateRequest{Side: SideSell, Amount: "100", Slippage: "1"})
	if err != nil {
		t.Fatalf("estimate sell: %v", err)
	}
	if sell.NativeAmount != "2" || sell.MinimumOut != "1.98" {
		t.Fatalf("unexpected sell estimate %+v", sell)
	}
	if len(f.backend.Sent()) != 0 {
		t.Fatal("estimates must not broadcast")
	}
}

func TestAddLiquidityETH(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	token := common.HexToAddress("0x00000000000000000000000000000000000000c0")
	router := common.HexToAddress("0x00000000000000000000000000000000000000e0")
	f.backend.Returns(token, abis.ERC20, "decimals", uint8(6))
	f.backend.Returns(token, abis.ERC20, "symbol", "TKN")

	res, err := f.engine.AddLiquidityETH(context.Background(), LiquidityRequest{
		Signer:       signer.Wallet("alice"),
		Router:       router.Hex(),
		Token:        token.Hex(),
		AmountToken:  "50",
		AmountNative: "1",
		Slippage:     "0.5",
	})
	if err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if res.MinToken.Int64() != 49_750_000 || res.MinNative.Cmp(ether("0.995")) != 0 {
		t.Fatalf("unexpected minimums token=%s native=%s", res.MinToken, res.MinNative)
	}

	sent := f.backend.Sent()
	if len(sent) != 1 || *sent[0].To() != router || sent[0].Value().Cmp(ether("1")) != 0 {
		t.Fatalf("unexpected broadcast %+v", sent)
	}
	name, args, err := web3test.DecodeCall(abis.Router, sent[0].Data())
	if err != nil {
		t.Fatalf("decode calldata: %v", err)
	}
	if name != "addLiquidityETH" || args[0].(common.Address) != token || args[1].(*big.Int).Int64() != 50_000_000 {
		t.Fatalf("unexpected call %s%v", name, args)
	}

	_, err = f.engine.AddLiquidityETH(context.Background(), LiquidityRequest{
		Signer: signer.Wallet("alice"), Router: "pancake", Token: token.Hex(), AmountToken: "1", AmountNative: "1", Slippage: "1",
	})
	if xerrors.CodeOf(err) != xerrors.CodeInvalidParameter {
		t.Fatalf("expected INVALID_PARAMETER for bad router, got %v", err)
	}

	notToken := common.HexToAddress("0x00000000000000000000000000000000000000d0")
	_, err = f.engine.AddLiquidityETH(context.Background(), LiquidityRequest{
		Signer: signer.Wallet("alice"), Router: router.Hex(), Token: notToken.Hex(), AmountToken: "1", AmountNative: "1", Slippage: "1",
	})
	if xerrors.CodeOf(err) != xerrors.CodeContractRead {
		t.Fatalf("expected unwrapped CONTRACT_READ, got %v", err)
	}
}
