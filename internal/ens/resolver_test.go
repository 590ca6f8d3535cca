package ens

import (
	"context"
	"errors"
	"testing"

	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/internal/web3"
	"OpenMCP-EVM/internal/web3/abis"
	"OpenMCP-EVM/internal/web3/ethereum"
	"OpenMCP-EVM/internal/web3/provider"
	"OpenMCP-EVM/internal/web3/web3test"

	"github.com/ethereum/go-ethereum/common"
)

var (
	registryAddress = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")
	publicResolver  = common.HexToAddress("0x4976fb03C32e5B8cfe2b6cCB31c09Ba78EBaBa41")
	vitalik         = common.HexToAddress("0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045")
)

func setup(t *testing.T) (*Resolver, *web3test.Backend) {
	t.Helper()
	backend := web3test.NewBackend(1)
	registry := provider.NewRegistry(web3.DefaultNetworks(), provider.WithDialer(func(_ context.Context, network web3.Network) (web3.Client, error) {
		return ethereum.NewBackendClient(network, backend), nil
	}))
	t.Cleanup(registry.Close)
	return NewResolver(registry), backend
}

func TestNamehash(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":        "0x0000000000000000000000000000000000000000000000000000000000000000",
		"eth":     "0x93cdeb708b7545dc668eb9280176169d1c33cfd8ed6f04690a0bcc88a93fc4ae",
		"foo.eth": "0xde9b09fd7c5f901e23a3f19fecc54828e9c848539801e86591bd9801b019f84f",
	}
	for name, want := range cases {
		got := Namehash(name)
		if common.Hash(got).Hex() != want {
			t.Fatalf("namehash(%q) = %s want %s", name, common.Hash(got).Hex(), want)
		}
	}
}

func TestAddressPassesThroughWithoutCalls(t *testing.T) {
	t.Parallel()

	resolver, backend := setup(t)
	addr, err := resolver.Resolve(context.Background(), vitalik.Hex(), "ethereum")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if addr != vitalik {
		t.Fatalf("unexpected address %s", addr.Hex())
	}
	if len(backend.Calls()) != 0 {
		t.Fatalf("expected no backend calls, got %d", len(backend.Calls()))
	}
}

func TestResolveName(t *testing.T) {
	t.Parallel()

	resolver, backend := setup(t)
	want := Namehash("vitalik.eth")
	backend.Handle(registryAddress, abis.ENS, "resolver", func(args []any) ([]any, error) {
		if args[0].([32]byte) != want {
			return nil, errors.New("unexpected node")
		}
		return []any{publicResolver}, nil
	})
	backend.Returns(publicResolver, abis.ENS, "addr", vitalik)

	addr, err := resolver.Resolve(context.Background(), "  Vitalik.ETH ", "mainnet")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if addr != vitalik {
		t.Fatalf("unexpected address %s", addr.Hex())
	}
}

func TestSingleLabelNameAsksRegistry(t *testing.T) {
	t.Parallel()

	resolver, backend := setup(t)
	want := Namehash("eth")
	backend.Handle(registryAddress, abis.ENS, "resolver", func(args []any) ([]any, error) {
		if args[0].([32]byte) != want {
			return nil, errors.New("unexpected node")
		}
		return []any{publicResolver}, nil
	})
	backend.Returns(publicResolver, abis.ENS, "addr", vitalik)

	addr, err := resolver.Resolve(context.Background(), "ETH", "ethereum")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if addr != vitalik {
		t.Fatalf("unexpected address %s", addr.Hex())
	}
}

func TestResolveFailures(t *testing.T) {
	t.Parallel()

	resolver, backend := setup(t)
	ctx := context.Background()

	for _, input := range []string{"", "foo..eth", ".eth", "0x1234", "bad name.eth"} {
		if _, err := resolver.Resolve(ctx, input, "ethereum"); !errors.Is(err, ErrNameResolution) {
			t.Fatalf("expected NAME_RESOLUTION for %q, got %v", input, err)
		}
	}
	if len(backend.Calls()) != 0 {
		t.Fatalf("malformed names must not reach the registry, got %d calls", len(backend.Calls()))
	}

	if _, err := resolver.Resolve(ctx, "nobody.eth", "ethereum"); xerrors.CodeOf(err) != xerrors.CodeNameResolution {
		t.Fatalf("expected NAME_RESOLUTION on revert, got %v", err)
	} else if errors.Unwrap(err) == nil {
		t.Fatal("expected transport cause to be preserved")
	}

	backend.Returns(registryAddress, abis.ENS, "resolver", common.Address{})
	if _, err := resolver.Resolve(ctx, "nobody.eth", "ethereum"); xerrors.CodeOf(err) != xerrors.CodeNameResolution {
		t.Fatalf("expected NAME_RESOLUTION for zero resolver, got %v", err)
	}

	if _, err := resolver.Resolve(ctx, "vitalik.eth", "bsc"); xerrors.CodeOf(err) != xerrors.CodeNameResolution {
		t.Fatalf("expected NAME_RESOLUTION without registry, got %v", err)
	}
}
