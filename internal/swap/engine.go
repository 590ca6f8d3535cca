// Package swap quotes and executes slippage-bounded swaps between the native
// currency and a stable token through a UniswapV2-style router.
//
// Every execution runs the same stages: validate the request, quote against
// the router, bound the quote by the slippage tolerance, build the router
// call with a deadline and submit it through the signer. Validation errors
// are reported as INVALID_PARAMETER before any network traffic; everything
// after that is reported as SWAP_EXECUTION with the cause preserved.
package swap

import (
	"context"
	"log/slog"
	"math/big"
	"strings"
	"time"

	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/internal/events"
	"OpenMCP-EVM/internal/signer"
	"OpenMCP-EVM/internal/units"
	"OpenMCP-EVM/internal/web3"
	"OpenMCP-EVM/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
)

// PancakeSwap testnet deployment.
var (
	DefaultRouter        = common.HexToAddress("0xD99D1c33F9fC3444f8101754aBC46c52416550D1")
	DefaultWrappedNative = common.HexToAddress("0xae13d989dac2f0debff460ac112a837c89baa7cd")
	DefaultStable        = common.HexToAddress("0x337610d27c682e347c9cd60bd4b3b107c9d34ddd")
)

const (
	DefaultNetwork        = "bsc-testnet"
	DefaultStableDecimals = uint8(18)
	DefaultDeadlineWindow = 1200 * time.Second
)

var (
	// ErrInvalidParameter is the sentinel for rejected amounts and slippage.
	ErrInvalidParameter = xerrors.New(xerrors.CodeInvalidParameter, "invalid swap parameter")
	// ErrSwapExecution is the sentinel for failures after validation.
	ErrSwapExecution = xerrors.New(xerrors.CodeSwapExecution, "swap execution failed")
)

// Connections hands out the shared per-network client.
type Connections interface {
	Connection(ctx context.Context, key string) (web3.Client, error)
}

// SignerSource resolves an identity into a signing context.
type SignerSource interface {
	Resolve(ctx context.Context, id signer.Identity, network string) (*signer.Context, error)
}

// TokenDescriber reads token decimals and symbol.
type TokenDescriber interface {
	Describe(ctx context.Context, token common.Address, network string) (units.TokenDescriptor, error)
}

// Option customises an Engine.
type Option func(*Engine)

// WithContracts overrides the router, wrapped-native and stable addresses.
// Zero addresses keep the defaults.
func WithContracts(router, wrappedNative, stable common.Address) Option {
	return func(e *Engine) {
		if router != (common.Address{}) {
			e.router = router
		}
		if wrappedNative != (common.Address{}) {
			e.wrappedNative = wrappedNative
		}
		if stable != (common.Address{}) {
			e.stable = stable
		}
	}
}

// WithStableDecimals sets the precision used to scale stable amounts.
func WithStableDecimals(decimals uint8) Option {
	return func(e *Engine) {
		e.stableDecimals = decimals
	}
}

// WithDefaultNetwork overrides DefaultNetwork.
func WithDefaultNetwork(network string) Option {
	return func(e *Engine) {
		if strings.TrimSpace(network) != "" {
			e.defaultNetwork = strings.TrimSpace(network)
		}
	}
}

// WithDeadlineWindow sets how far in the future router deadlines are placed.
func WithDeadlineWindow(window time.Duration) Option {
	return func(e *Engine) {
		if window > 0 {
			e.window = window
		}
	}
}

// WithClock replaces time.Now for deadline computation.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithMinOutputFloor rejects any swap whose bounded minimum falls below floor
// base units.
func WithMinOutputFloor(floor *big.Int) Option {
	return func(e *Engine) {
		if floor != nil && floor.Sign() > 0 {
			e.minFloor = new(big.Int).Set(floor)
		}
	}
}

// WithRecorder publishes an event for every broadcast.
func WithRecorder(recorder *events.Recorder) Option {
	return func(e *Engine) {
		e.recorder = recorder
	}
}

// WithTokenDescriber enables AddLiquidityETH, which scales the token amount
// by the token's decimals.
func WithTokenDescriber(tokens TokenDescriber) Option {
	return func(e *Engine) {
		e.tokens = tokens
	}
}

// Engine quotes and executes router swaps.
type Engine struct {
	conns   Connections
	signers SignerSource
	tokens  TokenDescriber

	router         common.Address
	wrappedNative  common.Address
	stable         common.Address
	stableDecimals uint8
	defaultNetwork string
	window         time.Duration
	minFloor       *big.Int
	now            func() time.Time

	recorder *events.Recorder
	log      *slog.Logger
}

// NewEngine builds an Engine with the testnet defaults.
func NewEngine(conns Connections, signers SignerSource, opts ...Option) *Engine {
	e := &Engine{
		conns:          conns,
		signers:        signers,
		router:         DefaultRouter,
		wrappedNative:  DefaultWrappedNative,
		stable:         DefaultStable,
		stableDecimals: DefaultStableDecimals,
		defaultNetwork: DefaultNetwork,
		window:         DefaultDeadlineWindow,
		now:            time.Now,
		log:            logger.Named("swap"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Router returns the configured router address.
func (e *Engine) Router() common.Address { return e.router }

// Deadline returns now + window in UNIX seconds.
func (e *Engine) Deadline() *big.Int {
	return big.NewInt(e.now().Add(e.window).Unix())
}

func (e *Engine) network(requested string) string {
	if strings.TrimSpace(requested) == "" {
		return e.defaultNetwork
	}
	return strings.TrimSpace(requested)
}

func (e *Engine) buyPath() []common.Address {
	return []common.Address{e.wrappedNative, e.stable}
}

func (e *Engine) sellPath() []common.Address {
	return []common.Address{e.stable, e.wrappedNative}
}

func invalidParameter(message string) error {
	return xerrors.New(xerrors.CodeInvalidParameter, message)
}

func executionError(stage string, cause error) error {
	if cause == nil {
		return xerrors.New(xerrors.CodeSwapExecution, "Swap failed: "+stage)
	}
	return xerrors.Wrap(xerrors.CodeSwapExecution, cause, "Swap failed: "+stage,
		xerrors.WithMetadata("stage", stage))
}
