package wallet

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	xerrors "OpenMCP-EVM/internal/errors"
)

const importKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func steppingClock() func() time.Time {
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
}

func TestServiceLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(NewMemoryStore(), WithClock(steppingClock()))

	created, err := svc.CreateWallet(ctx, "trading")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || !strings.HasPrefix(created.Address, "0x") {
		t.Fatalf("unexpected summary %+v", created)
	}

	imported, err := svc.ImportWallet(ctx, "ops", importKey)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imported.Address != "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23" {
		t.Fatalf("unexpected imported address %s", imported.Address)
	}

	byAddress, err := svc.WalletByAddress(ctx, strings.ToUpper(imported.Address[2:]))
	if err == nil {
		t.Fatalf("expected lookup without 0x prefix to miss, got %+v", byAddress.Summary())
	}
	byAddress, err = svc.WalletByAddress(ctx, "0x2C7536E3605D9C16A7A3D7B1898E529396A65C23")
	if err != nil {
		t.Fatalf("by address: %v", err)
	}
	if byAddress.Name != "ops" || byAddress.Credential != importKey {
		t.Fatalf("unexpected wallet %+v", byAddress.Summary())
	}

	credential, err := svc.CredentialByName(ctx, "ops")
	if err != nil || credential != importKey {
		t.Fatalf("unexpected credential lookup result: %v", err)
	}

	list, err := svc.ListWallets(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "ops" || list[1].Name != "trading" {
		t.Fatalf("expected newest first, got %+v", list)
	}
	encoded, _ := json.Marshal(list)
	if strings.Contains(string(encoded), importKey[2:]) {
		t.Fatal("summaries must not carry credentials")
	}
}

func TestServiceErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(NewMemoryStore())

	if _, err := svc.ImportWallet(ctx, "ops", importKey); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := svc.ImportWallet(ctx, "ops-2", importKey); xerrors.CodeOf(err) != xerrors.CodeConflict {
		t.Fatalf("expected CONFLICT for duplicate address, got %v", err)
	}
	if _, err := svc.CreateWallet(ctx, "ops"); xerrors.CodeOf(err) != xerrors.CodeConflict {
		t.Fatalf("expected CONFLICT for duplicate name, got %v", err)
	}
	if _, err := svc.ImportWallet(ctx, "bad", "1234"); xerrors.CodeOf(err) != xerrors.CodeInvalidCredential {
		t.Fatalf("expected INVALID_CREDENTIAL, got %v", err)
	}
	if _, err := svc.CreateWallet(ctx, "  "); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}

	_, err := svc.WalletByName(ctx, "ghost")
	if xerrors.CodeOf(err) != xerrors.CodeWalletNotFound {
		t.Fatalf("expected WALLET_NOT_FOUND, got %v", err)
	}
	typed, _ := xerrors.From(err)
	if typed.Message() != "Wallet not found: ghost" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestFileStorePersists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", DefaultFileName)

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	svc := NewService(store, WithClock(steppingClock()))
	if _, err := svc.ImportWallet(ctx, "ops", importKey); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := svc.CreateWallet(ctx, "ops"); xerrors.CodeOf(err) != xerrors.CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected file mode %v", info.Mode().Perm())
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	w, err := NewService(reopened).WalletByName(ctx, "ops")
	if err != nil {
		t.Fatalf("by name after reopen: %v", err)
	}
	if w.Credential != importKey {
		t.Fatal("credential not persisted")
	}
	list, _ := reopened.List(ctx)
	if len(list) != 1 {
		t.Fatalf("expected one wallet, got %d", len(list))
	}
}
