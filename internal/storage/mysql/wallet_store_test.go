package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/internal/wallet"

	gomysql "github.com/go-sql-driver/mysql"
)

var walletRowColumns = []string{"id", "name", "address", "private_key", "created_at", "updated_at"}

func TestWalletStoreCreate(t *testing.T) {
	t.Parallel()

	duplicate := &gomysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ops' for key 'uniq_wallets_name'"}
	db, s := openScript(t,
		expectExec(insertWallet),
		expectExec(insertWallet).failing(duplicate),
		expectExec(insertWallet).failing(errors.New("connection reset")),
	)

	store := &WalletStore{db: db}
	now := time.UnixMilli(1_700_000_000_000)
	w := wallet.Wallet{ID: "id-1", Name: "ops", Address: "0xABC", Credential: "0x01", CreatedAt: now, UpdatedAt: now}
	if err := store.Create(context.Background(), w); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if args := s.argsAt(0); len(args) != 6 || args[2] != "0xabc" || args[4] != int64(1_700_000_000_000) {
		t.Fatalf("unexpected insert args %v", args)
	}
	if err := store.Create(context.Background(), w); !errors.Is(err, wallet.ErrDuplicateWallet) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := store.Create(context.Background(), w); xerrors.CodeOf(err) != xerrors.CodeStorageFailure {
		t.Fatalf("expected STORAGE_FAILURE, got %v", err)
	}
}

func TestWalletStoreLookups(t *testing.T) {
	t.Parallel()

	found := []driver.Value{"id-1", "ops", "0xabc", "0x01", int64(1_700_000_000_000), int64(1_700_000_000_000)}
	db, s := openScript(t,
		expectQuery(selectWalletByName, walletRowColumns, found),
		expectQuery(selectWalletByAddress, walletRowColumns, found),
		expectQuery(selectWalletByName, walletRowColumns),
	)

	store := &WalletStore{db: db}
	ctx := context.Background()

	w, err := store.ByName(ctx, "ops")
	if err != nil {
		t.Fatalf("by name failed: %v", err)
	}
	if w.ID != "id-1" || w.Credential != "0x01" || w.CreatedAt.UnixMilli() != 1_700_000_000_000 {
		t.Fatalf("unexpected wallet: %+v", w.Summary())
	}
	if _, err := store.ByAddress(ctx, "0xABC"); err != nil {
		t.Fatalf("by address failed: %v", err)
	}
	if args := s.argsAt(1); len(args) != 1 || args[0] != "0xabc" {
		t.Fatalf("address lookup must be lowercased, got %v", args)
	}
	if _, err := store.ByName(ctx, "ghost"); !errors.Is(err, wallet.ErrWalletNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestWalletStoreList(t *testing.T) {
	t.Parallel()

	db, _ := openScript(t,
		expectQuery(selectWallets, walletRowColumns,
			[]driver.Value{"id-2", "b", "0x02", "0x02", int64(20), int64(20)},
			[]driver.Value{"id-1", "a", "0x01", "0x01", int64(10), int64(10)},
		),
	)

	list, err := (&WalletStore{db: db}).List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 || list[0].Name != "b" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestWalletStoreListFailure(t *testing.T) {
	t.Parallel()

	db, _ := openScript(t, expectQuery(selectWallets, nil).failing(errors.New("gone away")))
	if _, err := (&WalletStore{db: db}).List(context.Background()); xerrors.CodeOf(err) != xerrors.CodeStorageFailure {
		t.Fatalf("expected STORAGE_FAILURE, got %v", err)
	}
}
