package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	"OpenMCP-EVM/internal/api"
	"OpenMCP-EVM/internal/auth"
	"OpenMCP-EVM/internal/chainread"
	"OpenMCP-EVM/internal/config"
	"OpenMCP-EVM/internal/contract"
	"OpenMCP-EVM/internal/ens"
	"OpenMCP-EVM/internal/events"
	"OpenMCP-EVM/internal/observability/metrics"
	"OpenMCP-EVM/internal/signer"
	"OpenMCP-EVM/internal/storage/mysql"
	"OpenMCP-EVM/internal/storage/redis"
	"OpenMCP-EVM/internal/swap"
	"OpenMCP-EVM/internal/tools"
	"OpenMCP-EVM/internal/transfer"
	"OpenMCP-EVM/internal/units"
	"OpenMCP-EVM/internal/wallet"
	"OpenMCP-EVM/internal/web3"
	"OpenMCP-EVM/internal/web3/provider"
	"OpenMCP-EVM/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
)

// app 持有一次运行所需的全部组件，Close 按创建的逆序释放资源。
type app struct {
	providers *provider.Registry
	registry  *tools.Registry
	auth      *auth.Service
	metrics   *metrics.Collector
	journal   *events.JournalPublisher
	server    *api.Server

	closers []func() error
}

// buildApp wires every component from cfg. Nothing dials an RPC endpoint
// here; connections are opened on first use.
func buildApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	networks := web3.DefaultNetworks()
	if cfg.Web3.ChainConfig != "" {
		networks, err = web3.LoadNetworks(cfg.Web3.ChainConfig)
		if err != nil {
			return nil, err
		}
	}
	a.providers = provider.NewRegistry(networks, provider.WithLogger(logger.Named("provider")))
	a.closers = append(a.closers, func() error { a.providers.Close(); return nil })

	store, err := openWalletStore(ctx, cfg.Storage.Wallets)
	if err != nil {
		return nil, err
	}
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
	wallets := wallet.NewService(store)

	var describerOpts []units.DescriberOption
	switch cfg.Cache.Driver {
	case "memory":
		describerOpts = append(describerOpts, units.WithCache(units.NewMemoryCache()))
	case "redis":
		cache, err := redis.NewDescriptorCache(ctx, redis.Config{
			Address:  cfg.Cache.Redis.Address,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
			TTL:      time.Duration(cfg.Cache.Redis.TTLSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, cache.Close)
		describerOpts = append(describerOpts, units.WithCache(cache))
	}
	tokens := units.NewDescriber(a.providers, describerOpts...)

	publisher, err := a.openPublisher(ctx, cfg.Events)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, publisher.Close)
	recorder := events.NewRecorder(publisher)

	signers := signer.NewResolver(a.providers, wallets, signer.WithCredentialEnv(cfg.Signer.CredentialEnv))
	names := ens.NewResolver(a.providers)

	swapOpts, err := swapOptions(cfg.Swap)
	if err != nil {
		return nil, err
	}
	swapOpts = append(swapOpts, swap.WithRecorder(recorder), swap.WithTokenDescriber(tokens))

	a.registry = tools.NewRegistry()
	if err := tools.RegisterBuiltins(a.registry, tools.Deps{
		Chain:     chainread.NewService(a.providers, names, tokens, cfg.Web3.DefaultNetwork),
		Transfers: transfer.NewService(signers, names, tokens, transfer.WithRecorder(recorder), transfer.WithDefaultNetwork(cfg.Web3.DefaultNetwork)),
		Swaps:     swap.NewEngine(a.providers, signers, swapOpts...),
		Wallets:   wallets,
		Contracts: contract.NewWriter(signers, recorder, cfg.Web3.DefaultNetwork),
	}); err != nil {
		return nil, err
	}

	tokenConfigs := make([]auth.TokenConfig, 0, len(cfg.Server.AuthTokens))
	for _, t := range cfg.Server.AuthTokens {
		tokenConfigs = append(tokenConfigs, auth.TokenConfig{Name: t.Name, Token: t.Token, Permissions: t.Permissions, Tools: t.Tools})
	}
	a.auth, err = auth.NewService(tokenConfigs)
	if err != nil {
		return nil, err
	}

	a.metrics = metrics.NewCollector()
	opts := []api.Option{api.WithAuth(a.auth), api.WithMetrics(a.metrics)}
	if a.journal != nil {
		opts = append(opts, api.WithEvents(a.journal))
	}
	a.server = api.NewServer(cfg.Server.Address, a.registry, opts...)
	return a, nil
}

// openPublisher 总是先挂本地日志（driver=none 除外），再按需叠加消息中间件。
func (a *app) openPublisher(ctx context.Context, cfg config.EventsConfig) (events.Publisher, error) {
	if cfg.Driver == "none" {
		return events.Noop{}, nil
	}

	journal, err := events.NewJournalPublisher(cfg.JournalPath)
	if err != nil {
		return nil, err
	}
	a.journal = journal
	pubs := events.Multi{journal}

	switch cfg.Driver {
	case "redis":
		pub, err := events.NewRedisPublisher(ctx, events.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			List:     cfg.Redis.List,
		})
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, pub)
	case "rabbitmq":
		pub, err := events.NewRabbitMQPublisher(events.RabbitMQConfig{
			URL:     cfg.RabbitMQ.URL,
			Queue:   cfg.RabbitMQ.Queue,
			Durable: cfg.RabbitMQ.Durable,
		})
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

func openWalletStore(ctx context.Context, cfg config.WalletStoreConfig) (wallet.Store, error) {
	switch cfg.Driver {
	case "memory":
		return wallet.NewMemoryStore(), nil
	case "file":
		return wallet.NewFileStore(cfg.Path)
	case "mysql":
		return mysql.NewWalletStore(ctx, mysql.Config{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeSeconds) * time.Second,
		})
	default:
		return nil, fmt.Errorf("不支持的钱包存储驱动: %s", cfg.Driver)
	}
}

func swapOptions(cfg config.SwapConfig) ([]swap.Option, error) {
	opts := []swap.Option{
		swap.WithContracts(optionalAddress(cfg.Router), optionalAddress(cfg.WrappedNative), optionalAddress(cfg.Stable)),
		swap.WithDeadlineWindow(time.Duration(cfg.DeadlineSeconds) * time.Second),
	}
	if cfg.Network != "" {
		opts = append(opts, swap.WithDefaultNetwork(cfg.Network))
	}
	if cfg.StableDecimals > 0 {
		opts = append(opts, swap.WithStableDecimals(uint8(cfg.StableDecimals)))
	}
	if floor := strings.TrimSpace(cfg.MinOutputFloor); floor != "" {
		v, ok := new(big.Int).SetString(floor, 10)
		if !ok || v.Sign() < 0 {
			return nil, fmt.Errorf("swap.min_output_floor 必须是非负整数: %s", floor)
		}
		opts = append(opts, swap.WithMinOutputFloor(v))
	}
	return opts, nil
}

func optionalAddress(raw string) common.Address {
	if raw == "" {
		return common.Address{}
	}
	return common.HexToAddress(raw)
}

// Close releases resources in reverse creation order.
func (a *app) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
