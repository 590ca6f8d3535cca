package tools

import (
	"context"
	"encoding/json"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"OpenMCP-EVM/internal/chainread"
	"OpenMCP-EVM/internal/contract"
	"OpenMCP-EVM/internal/ens"
	"OpenMCP-EVM/internal/events"
	"OpenMCP-EVM/internal/signer"
	"OpenMCP-EVM/internal/swap"
	"OpenMCP-EVM/internal/transfer"
	"OpenMCP-EVM/internal/units"
	"OpenMCP-EVM/internal/wallet"
	"OpenMCP-EVM/internal/web3"
	"OpenMCP-EVM/internal/web3/abis"
	"OpenMCP-EVM/internal/web3/ethereum"
	"OpenMCP-EVM/internal/web3/provider"
	"OpenMCP-EVM/internal/web3/web3test"

	"github.com/ethereum/go-ethereum/common"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var (
	testAddress = common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	recipient   = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	tokenAddr   = common.HexToAddress("0x00000000000000000000000000000000000000c0")
)

type toolFixture struct {
	backend  *web3test.Backend
	registry *Registry
	journal  *events.JournalPublisher
}

func newToolFixture(t *testing.T) toolFixture {
	t.Helper()

	backend := web3test.NewBackend(56)
	conns := provider.NewRegistry(web3.DefaultNetworks(), provider.WithDialer(func(_ context.Context, network web3.Network) (web3.Client, error) {
		return ethereum.NewBackendClient(network, backend), nil
	}))
	t.Cleanup(conns.Close)

	journal, err := events.NewJournalPublisher(filepath.Join(t.TempDir(), "transactions.log"))
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	recorder := events.NewRecorder(journal)
	wallets := wallet.NewService(wallet.NewMemoryStore())
	signers := signer.NewResolver(conns, wallets,
		signer.WithEnvLookup(func(name string) (string, bool) {
			if name == signer.DefaultCredentialEnv {
				return testKey, true
			}
			return "", false
		}))
	names := ens.NewResolver(conns)
	tokens := units.NewDescriber(conns)

	reg := NewRegistry()
	err = RegisterBuiltins(reg, Deps{
		Chain:     chainread.NewService(conns, names, tokens, ""),
		Transfers: transfer.NewService(signers, names, tokens, transfer.WithRecorder(recorder)),
		Swaps:     swap.NewEngine(conns, signers, swap.WithRecorder(recorder), swap.WithTokenDescriber(tokens)),
		Wallets:   wallets,
		Contracts: contract.NewWriter(signers, recorder, ""),
	})
	if err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	return toolFixture{backend: backend, registry: reg, journal: journal}
}

func (f toolFixture) call(t *testing.T, name string, args map[string]any) (map[string]any, Result) {
	t.Helper()
	res, err := f.registry.Call(context.Background(), name, args)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	if res.IsError {
		return nil, res
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(res.Text()), &payload); err != nil {
		t.Fatalf("%s: payload is not JSON: %v", name, err)
	}
	return payload, res
}

func TestRegisterBuiltinsRequiresDeps(t *testing.T) {
	t.Parallel()

	if err := RegisterBuiltins(NewRegistry(), Deps{}); err == nil {
		t.Fatal("expected missing deps to be rejected")
	}
}

func TestBuiltinCatalogue(t *testing.T) {
	t.Parallel()

	f := newToolFixture(t)
	want := []string{
		"add_liquidity", "approve", "buy_usdt_from_wallet", "create_wallet",
		"get_address_from_private_key", "get_balance", "get_chain_info", "get_latest_block",
		"get_stored_wallet", "get_supported_networks", "get_token_balance", "get_transaction",
		"get_transaction_receipt", "import_private_key", "list_wallets", "lock_lp_token",
		"quote_usdt", "resolve_ens", "sell_usdt_from_wallet", "transfer_erc1155", "transfer_erc20",
		"transfer_eth", "transfer_eth_from_wallet", "transfer_nft", "transfer_token_from_wallet",
		"write_contract",
	}
	list := f.registry.List()
	if len(list) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(list))
	}
	for i, d := range list {
		if d.Name != want[i] {
			t.Fatalf("tool %d: got %s want %s", i, d.Name, want[i])
		}
	}
}

func TestWalletToolsNeverEchoKeys(t *testing.T) {
	t.Parallel()

	f := newToolFixture(t)
	payload, res := f.call(t, "import_private_key", map[string]any{"name": "alice", "privateKey": "0x" + testKey})
	if payload == nil {
		t.Fatalf("import failed: %s", res.Text())
	}
	if strings.Contains(res.Text(), testKey) {
		t.Fatal("import result leaked the private key")
	}
	w := payload["wallet"].(map[string]any)
	if w["address"] != testAddress.Hex() {
		t.Fatalf("unexpected address %v", w["address"])
	}

	_, res = f.call(t, "import_private_key", map[string]any{"name": "alice", "privateKey": testKey})
	if !res.IsError || !strings.HasPrefix(res.Text(), "Error importing private key: ") {
		t.Fatalf("expected duplicate name failure, got %q", res.Text())
	}

	payload, res = f.call(t, "get_stored_wallet", map[string]any{"identifier": strings.ToLower(testAddress.Hex()), "lookupBy": "address"})
	if payload == nil || payload["name"] != "alice" || strings.Contains(res.Text(), testKey) {
		t.Fatalf("unexpected lookup %s", res.Text())
	}

	_, res = f.call(t, "get_stored_wallet", map[string]any{"identifier": "alice", "lookupBy": "id"})
	if !res.IsError || !strings.HasPrefix(res.Text(), "Error retrieving wallet: ") {
		t.Fatalf("expected lookupBy failure, got %q", res.Text())
	}

	payload, res = f.call(t, "get_address_from_private_key", map[string]any{"privateKey": testKey})
	if payload == nil || payload["address"] != testAddress.Hex() || strings.Contains(res.Text(), testKey) {
		t.Fatalf("unexpected derive result %s", res.Text())
	}

	payload, _ = f.call(t, "create_wallet", map[string]any{"name": "bob"})
	if payload == nil {
		t.Fatal("create_wallet failed")
	}
	payload, _ = f.call(t, "list_wallets", nil)
	if list := payload["wallets"].([]any); len(list) != 2 {
		t.Fatalf("expected two wallets, got %v", list)
	}
}

func TestTransferFromStoredWallet(t *testing.T) {
	t.Parallel()

	f := newToolFixture(t)
	if payload, res := f.call(t, "import_private_key", map[string]any{"name": "alice", "privateKey": testKey}); payload == nil {
		t.Fatalf("import failed: %s", res.Text())
	}

	payload, res := f.call(t, "transfer_eth_from_wallet", map[string]any{
		"walletName": "alice",
		"toAddress":  recipient.Hex(),
		"amount":     0.25,
	})
	if payload == nil {
		t.Fatalf("transfer failed: %s", res.Text())
	}
	if payload["fromWallet"] != "alice" || payload["amountWei"] != "250000000000000000" || payload["network"] != "bsc" {
		t.Fatalf("unexpected payload %v", payload)
	}
	sent := f.backend.Sent()
	if len(sent) != 1 || payload["transactionHash"] != sent[0].Hash().Hex() {
		t.Fatalf("unexpected broadcast %v", sent)
	}
	if recorded := f.journal.Latest(10); len(recorded) != 1 || recorded[0].Kind != events.KindNativeTransfer {
		t.Fatalf("unexpected journal %v", recorded)
	}

	_, res = f.call(t, "transfer_eth_from_wallet", map[string]any{
		"walletName": "ghost",
		"toAddress":  recipient.Hex(),
		"amount":     "1",
	})
	if !res.IsError || res.Text() != "Error transferring ETH: Wallet not found: ghost" {
		t.Fatalf("unexpected failure text %q", res.Text())
	}
}

func TestTransferERC20WithDefaultCredential(t *testing.T) {
	t.Parallel()

	f := newToolFixture(t)
	f.backend.Returns(tokenAddr, abis.ERC20, "decimals", uint8(6))
	f.backend.Returns(tokenAddr, abis.ERC20, "symbol", "USDC")

	payload, res := f.call(t, "transfer_erc20", map[string]any{
		"tokenAddress": tokenAddr.Hex(),
		"toAddress":    recipient.Hex(),
		"amount":       "2.5",
	})
	if payload == nil {
		t.Fatalf("transfer failed: %s", res.Text())
	}
	if payload["fromWallet"] != signer.DefaultCredentialEnv || payload["from"] != testAddress.Hex() {
		t.Fatalf("unexpected sender %v", payload)
	}
	amount := payload["amount"].(map[string]any)
	if amount["raw"] != "2500000" || amount["formatted"] != "2.5" {
		t.Fatalf("unexpected amount %v", amount)
	}
	sent := f.backend.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(sent))
	}
	method, decoded, err := web3test.DecodeCall(abis.ERC20, sent[0].Data())
	if err != nil || method != "transfer" || decoded[1].(*big.Int).Int64() != 2_500_000 {
		t.Fatalf("unexpected calldata %s %v %v", method, decoded, err)
	}
}

func TestReadTools(t *testing.T) {
	t.Parallel()

	f := newToolFixture(t)
	wei, _ := new(big.Int).SetString("3000000000000000000", 10)
	f.backend.SetBalance(recipient, wei)

	payload, res := f.call(t, "get_balance", map[string]any{"address": recipient.Hex()})
	if payload == nil || payload["ether"] != "3" || payload["symbol"] != "BNB" {
		t.Fatalf("unexpected balance %s", res.Text())
	}

	payload, _ = f.call(t, "get_chain_info", map[string]any{"network": "bsc"})
	if payload == nil || payload["chainId"] != float64(56) {
		t.Fatalf("unexpected chain info %v", payload)
	}

	payload, _ = f.call(t, "get_supported_networks", nil)
	if list := payload["supportedNetworks"].([]any); len(list) == 0 {
		t.Fatal("expected networks")
	}

	_, res = f.call(t, "get_transaction", map[string]any{"txHash": "0x1234"})
	if !res.IsError || !strings.HasPrefix(res.Text(), "Error fetching transaction: ") {
		t.Fatalf("expected hash validation failure, got %q", res.Text())
	}

	_, res = f.call(t, "get_chain_info", map[string]any{"network": "polygn"})
	if !res.IsError || !strings.HasPrefix(res.Text(), "Error fetching chain info: ") {
		t.Fatalf("expected unknown network failure, got %q", res.Text())
	}
}

func TestSwapToolValidatesBeforeNetwork(t *testing.T) {
	t.Parallel()

	f := newToolFixture(t)
	_, res := f.call(t, "buy_usdt_from_wallet", map[string]any{
		"walletName":      "alice",
		"amountWantToBuy": "10",
		"slippagePercent": "150",
	})
	if !res.IsError || !strings.HasPrefix(res.Text(), "Error executing swap: ") {
		t.Fatalf("unexpected result %q", res.Text())
	}
	if calls := f.backend.Calls(); len(calls) != 0 {
		t.Fatalf("expected no chain traffic, got %d calls", len(calls))
	}

	_, res = f.call(t, "sell_usdt_from_wallet", map[string]any{
		"walletName":      "alice",
		"slippagePercent": "1",
	})
	if !res.IsError || res.Text() != "Error executing swap: missing required parameter: amountToSell" {
		t.Fatalf("unexpected result %q", res.Text())
	}
}

func TestWriteContractTool(t *testing.T) {
	t.Parallel()

	f := newToolFixture(t)
	if payload, res := f.call(t, "import_private_key", map[string]any{"name": "alice", "privateKey": testKey}); payload == nil {
		t.Fatalf("import failed: %s", res.Text())
	}

	abiJSON := `[{"type":"function","name":"setValue","stateMutability":"nonpayable","inputs":[{"name":"v","type":"uint256"}],"outputs":[]}]`
	payload, res := f.call(t, "write_contract", map[string]any{
		"walletName":      "alice",
		"contractAddress": tokenAddr.Hex(),
		"abi":             abiJSON,
		"functionName":    "setValue",
		"args":            []any{"42"},
	})
	if payload == nil {
		t.Fatalf("write failed: %s", res.Text())
	}
	if payload["functionName"] != "setValue" || payload["contract"] != tokenAddr.Hex() {
		t.Fatalf("unexpected payload %v", payload)
	}
	if sent := f.backend.Sent(); len(sent) != 1 || *sent[0].To() != tokenAddr {
		t.Fatalf("unexpected broadcast %v", sent)
	}
}
