package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/internal/wallet"

	gomysql "github.com/go-sql-driver/mysql"
)

const (
	walletColumns         = `id, name, address, private_key, created_at, updated_at`
	insertWallet          = `INSERT INTO wallets (` + walletColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	selectWalletByName    = `SELECT ` + walletColumns + ` FROM wallets WHERE name = ?`
	selectWalletByAddress = `SELECT ` + walletColumns + ` FROM wallets WHERE address = ?`
	selectWallets         = `SELECT ` + walletColumns + ` FROM wallets ORDER BY created_at DESC, id DESC`
)

// WalletStore persists wallets in the wallets table.
type WalletStore struct {
	db *sql.DB
}

var _ wallet.Store = (*WalletStore)(nil)

// NewWalletStore opens the pool and applies pending migrations.
func NewWalletStore(ctx context.Context, cfg Config) (*WalletStore, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化钱包存储失败")
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "执行钱包表迁移失败")
	}
	return &WalletStore{db: db}, nil
}

// Close releases the underlying database connection pool.
func (s *WalletStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create implements wallet.Store. Duplicate names or addresses map to
// wallet.ErrDuplicateWallet.
func (s *WalletStore) Create(ctx context.Context, w wallet.Wallet) error {
	_, err := s.db.ExecContext(ctx, insertWallet,
		w.ID,
		w.Name,
		strings.ToLower(w.Address),
		w.Credential,
		w.CreatedAt.UnixMilli(),
		w.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		var mysqlErr *gomysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return wallet.ErrDuplicateWallet
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入钱包失败")
	}
	return nil
}

// ByName implements wallet.Store.
func (s *WalletStore) ByName(ctx context.Context, name string) (wallet.Wallet, error) {
	return s.queryOne(ctx, selectWalletByName, name)
}

// ByAddress implements wallet.Store.
func (s *WalletStore) ByAddress(ctx context.Context, address string) (wallet.Wallet, error) {
	return s.queryOne(ctx, selectWalletByAddress, strings.ToLower(address))
}

// List implements wallet.Store.
func (s *WalletStore) List(ctx context.Context) ([]wallet.Wallet, error) {
	rows, err := s.db.QueryContext(ctx, selectWallets)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询钱包列表失败")
	}
	defer rows.Close()

	var out []wallet.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历钱包列表失败")
	}
	return out, nil
}

func (s *WalletStore) queryOne(ctx context.Context, query string, arg string) (wallet.Wallet, error) {
	row := s.db.QueryRowContext(ctx, query, arg)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return wallet.Wallet{}, wallet.ErrWalletNotFound
		}
		return wallet.Wallet{}, err
	}
	return w, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWallet(row scanner) (wallet.Wallet, error) {
	var (
		w                    wallet.Wallet
		createdAt, updatedAt int64
	)
	if err := row.Scan(&w.ID, &w.Name, &w.Address, &w.Credential, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return wallet.Wallet{}, err
		}
		return wallet.Wallet{}, xerrors.Wrap(xerrors.CodeStorageFailure, fmt.Errorf("解析钱包记录失败: %w", err), "读取钱包失败")
	}
	w.CreatedAt = time.UnixMilli(createdAt).UTC()
	w.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return w, nil
}
