package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
)

// driverConfig parses dsn and pins the options the wallet table relies on:
// utf8mb4 for wallet names, UTC and a bounded dial timeout.
func driverConfig(dsn string) (*gomysql.Config, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("MySQL DSN 不能为空")
	}
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("解析 MySQL DSN 失败: %w", err)
	}
	if cfg.Collation == "" {
		cfg.Collation = "utf8mb4_unicode_ci"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultDialTimeout
	}
	cfg.Loc = time.UTC
	cfg.MultiStatements = false
	return cfg, nil
}

func openDatabase(ctx context.Context, cfg Config) (*sql.DB, error) {
	dcfg, err := driverConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	connector, err := gomysql.NewConnector(dcfg)
	if err != nil {
		return nil, fmt.Errorf("创建 MySQL 连接器失败: %w", err)
	}

	pool := cfg.withDefaults()
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	if pool.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("无法连接到 MySQL %s: %w", dcfg.Addr, err)
	}
	return db, nil
}
