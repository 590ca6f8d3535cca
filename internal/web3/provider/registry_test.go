package provider

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/internal/web3"
	"OpenMCP-EVM/internal/web3/ethereum"
	"OpenMCP-EVM/internal/web3/web3test"
)

func countingDialer(count *int32) Dialer {
	return func(_ context.Context, network web3.Network) (web3.Client, error) {
		atomic.AddInt32(count, 1)
		return ethereum.NewBackendClient(network, web3test.NewBackend(network.ChainID)), nil
	}
}

func TestConnectionIsCachedPerNetwork(t *testing.T) {
	t.Parallel()

	var dials int32
	registry := NewRegistry(web3.DefaultNetworks(), WithDialer(countingDialer(&dials)))
	t.Cleanup(registry.Close)

	ctx := context.Background()
	first, err := registry.Connection(ctx, "bsc")
	if err != nil {
		t.Fatalf("connection: %v", err)
	}
	second, err := registry.Connection(ctx, "BSC")
	if err != nil {
		t.Fatalf("connection: %v", err)
	}
	byChainID, err := registry.Connection(ctx, "56")
	if err != nil {
		t.Fatalf("connection by chain id: %v", err)
	}
	if first != second || first != byChainID {
		t.Fatal("expected the same connection for every key naming bsc")
	}
	if dials != 1 {
		t.Fatalf("expected a single dial, got %d", dials)
	}
}

func TestConnectionConcurrentMissesDialOnce(t *testing.T) {
	t.Parallel()

	var dials int32
	registry := NewRegistry(web3.DefaultNetworks(), WithDialer(countingDialer(&dials)))
	t.Cleanup(registry.Close)

	var wg sync.WaitGroup
	clients := make([]web3.Client, 16)
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client, err := registry.Connection(context.Background(), "ethereum")
			if err != nil {
				t.Errorf("connection: %v", err)
				return
			}
			clients[i] = client
		}(i)
	}
	wg.Wait()

	for _, client := range clients[1:] {
		if client != clients[0] {
			t.Fatal("expected identical connections")
		}
	}
	if dials != 1 {
		t.Fatalf("expected a single dial, got %d", dials)
	}
}

func TestConnectionUnknownNetwork(t *testing.T) {
	t.Parallel()

	var dials int32
	registry := NewRegistry(web3.DefaultNetworks(), WithDialer(countingDialer(&dials)))

	_, err := registry.Connection(context.Background(), "polygn")
	if !errors.Is(err, web3.ErrUnknownNetwork) {
		t.Fatalf("expected UNKNOWN_NETWORK, got %v", err)
	}
	if xerrors.CodeOf(err) != xerrors.CodeUnknownNetwork {
		t.Fatalf("unexpected code %s", xerrors.CodeOf(err))
	}
	typed, _ := xerrors.From(err)
	if !strings.Contains(typed.Metadata()["suggestions"], "polygon") {
		t.Fatalf("expected polygon suggestion, got %v", typed.Metadata())
	}
	if dials != 0 {
		t.Fatal("unknown networks must not dial")
	}
}

func TestNetworksListsSupportedNames(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(nil)
	names := registry.Networks()
	want := map[string]bool{"bsc": false, "bsc-testnet": false, "ethereum": false}
	for _, name := range names {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("expected %s in %v", name, names)
		}
	}
}

func TestClosedRegistryRefusesConnections(t *testing.T) {
	t.Parallel()

	var dials int32
	registry := NewRegistry(web3.DefaultNetworks(), WithDialer(countingDialer(&dials)))
	if _, err := registry.Connection(context.Background(), "bsc"); err != nil {
		t.Fatalf("connection: %v", err)
	}
	registry.Close()
	if _, err := registry.Connection(context.Background(), "bsc"); err == nil {
		t.Fatal("expected error after close")
	}
}

func TestSlowDialDoesNotBlockCachedNetworks(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	dialer := func(ctx context.Context, network web3.Network) (web3.Client, error) {
		if network.Name == "ethereum" {
			once.Do(func() { close(started) })
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return ethereum.NewBackendClient(network, web3test.NewBackend(network.ChainID)), nil
	}
	registry := NewRegistry(web3.DefaultNetworks(), WithDialer(dialer))
	t.Cleanup(registry.Close)

	bsc, err := registry.Connection(context.Background(), "bsc")
	if err != nil {
		t.Fatalf("connection: %v", err)
	}

	slow := make(chan error, 1)
	go func() {
		_, err := registry.Connection(context.Background(), "ethereum")
		slow <- err
	}()
	<-started

	done := make(chan web3.Client, 1)
	go func() {
		client, _ := registry.Connection(context.Background(), "bsc")
		done <- client
	}()
	select {
	case client := <-done:
		if client != bsc {
			t.Fatal("expected the cached bsc connection")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cached lookup blocked behind a pending dial")
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := registry.Connection(waitCtx, "ethereum"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected waiter to give up with its context, got %v", err)
	}

	close(release)
	if err := <-slow; err != nil {
		t.Fatalf("slow dial: %v", err)
	}
}
