// Package ens resolves human-readable names to account addresses through the
// ENS registry of the target network. Hex addresses pass through untouched.
package ens

import (
	"context"
	"strings"

	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/internal/web3"
	"OpenMCP-EVM/internal/web3/abis"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ErrNameResolution is the sentinel for every resolution failure.
var ErrNameResolution = xerrors.New(xerrors.CodeNameResolution, "name could not be resolved")

// Connections hands out shared read connections per network key.
type Connections interface {
	Connection(ctx context.Context, key string) (web3.Client, error)
}

// Resolver maps names or addresses to addresses.
type Resolver struct {
	conns Connections
}

// NewResolver creates a resolver over the connection cache.
func NewResolver(conns Connections) *Resolver {
	return &Resolver{conns: conns}
}

// Resolve returns the address for nameOrAddress on network. A valid hex
// address is returned as-is without touching the network.
func (r *Resolver) Resolve(ctx context.Context, nameOrAddress string, network string) (common.Address, error) {
	input := strings.TrimSpace(nameOrAddress)
	if common.IsHexAddress(input) {
		return common.HexToAddress(input), nil
	}

	name, err := Normalize(input)
	if err != nil {
		return common.Address{}, err
	}

	client, err := r.conns.Connection(ctx, network)
	if err != nil {
		return common.Address{}, err
	}
	registry := client.Network().ENSRegistry
	if registry == (common.Address{}) {
		return common.Address{}, resolutionError(name, "network "+client.Network().Name+" has no ENS registry", nil)
	}

	node := Namehash(name)
	resolver, err := callAddress(ctx, client, registry, "resolver", node)
	if err != nil {
		return common.Address{}, resolutionError(name, "registry lookup failed", err)
	}
	if resolver == (common.Address{}) {
		return common.Address{}, resolutionError(name, "no resolver set", nil)
	}
	addr, err := callAddress(ctx, client, resolver, "addr", node)
	if err != nil {
		return common.Address{}, resolutionError(name, "resolver lookup failed", err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, resolutionError(name, "no address record", nil)
	}
	return addr, nil
}

// Normalize case-folds and NFC-normalizes name and rejects empty labels.
// Single-label names such as "eth" are left for the registry to decide.
func Normalize(name string) (string, error) {
	normalized := norm.NFC.String(cases.Fold().String(strings.TrimSpace(name)))
	if normalized == "" {
		return "", resolutionError(name, "empty name", nil)
	}
	if strings.HasPrefix(normalized, "0x") && !strings.Contains(normalized, ".") {
		return "", resolutionError(name, "malformed address", nil)
	}
	for _, label := range strings.Split(normalized, ".") {
		if label == "" {
			return "", resolutionError(name, "empty label", nil)
		}
		if strings.ContainsAny(label, " \t\r\n") {
			return "", resolutionError(name, "labels cannot contain whitespace", nil)
		}
	}
	return normalized, nil
}

// Namehash computes the EIP-137 node of a normalized name.
func Namehash(name string) [32]byte {
	var node [32]byte
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		copy(node[:], crypto.Keccak256(node[:], labelHash))
	}
	return node
}

func callAddress(ctx context.Context, client web3.Client, contract common.Address, method string, node [32]byte) (common.Address, error) {
	data, err := abis.ENS.Pack(method, node)
	if err != nil {
		return common.Address{}, err
	}
	out, err := client.CallContract(ctx, gethcore.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return common.Address{}, err
	}
	values, err := abis.ENS.Unpack(method, out)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, xerrors.New(xerrors.CodeNameResolution, "unexpected "+method+" return type")
	}
	return addr, nil
}

func resolutionError(name, reason string, cause error) error {
	msg := "ENS name " + name + " could not be resolved: " + reason
	opt := xerrors.WithMetadata("name", name)
	if cause != nil {
		return xerrors.Wrap(xerrors.CodeNameResolution, cause, msg, opt)
	}
	return xerrors.New(xerrors.CodeNameResolution, msg, opt)
}
