package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量覆盖配置时使用的前缀，例如 OPENMCP_SERVER_ADDRESS。
const EnvPrefix = "OPENMCP"

// Config 描述了 OpenMCP EVM 在启动阶段需要加载的核心配置。
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Events  EventsConfig  `mapstructure:"events"`
	Web3    Web3Config    `mapstructure:"web3"`
	Signer  SignerConfig  `mapstructure:"signer"`
	Swap    SwapConfig    `mapstructure:"swap"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址与访问令牌。
type ServerConfig struct {
	Address string `mapstructure:"address"`
	// AuthToken 是只通过环境变量设置单个全权限令牌时的简写。
	AuthToken  string            `mapstructure:"auth_token"`
	AuthTokens []AuthTokenConfig `mapstructure:"auth_tokens"`
}

// AuthTokenConfig 声明一个静态 Bearer 令牌。
type AuthTokenConfig struct {
	Name        string   `mapstructure:"name"`
	Token       string   `mapstructure:"token"`
	Permissions []string `mapstructure:"permissions"`
	// Tools 限制令牌可调用的工具，支持 "get_*" 这类通配模式。
	Tools []string `mapstructure:"tools"`
}

// LogConfig 对应 pkg/logger 的初始化参数。
type LogConfig struct {
	Level   string         `mapstructure:"level"`
	Format  string         `mapstructure:"format"`
	Outputs []string       `mapstructure:"outputs"`
	Audit   AuditLogConfig `mapstructure:"audit"`
}

// AuditLogConfig 控制审计日志的落盘与轮转。
type AuditLogConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// StorageConfig 描述钱包存储后端。
type StorageConfig struct {
	Wallets WalletStoreConfig `mapstructure:"wallets"`
}

// WalletStoreConfig 支持 memory、file 与 mysql 三种驱动。
type WalletStoreConfig struct {
	Driver                 string `mapstructure:"driver"`
	DSN                    string `mapstructure:"dsn"`
	Path                   string `mapstructure:"path"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `mapstructure:"conn_max_idle_time_seconds"`
}

// CacheConfig 控制代币精度与符号的缓存，driver 取 memory、redis 或 none。
type CacheConfig struct {
	Driver string           `mapstructure:"driver"`
	Redis  RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig 描述 Redis 缓存连接。
type RedisCacheConfig struct {
	Address    string `mapstructure:"address"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	Prefix     string `mapstructure:"prefix"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// EventsConfig 控制交易事件的投递。本地日志始终开启，driver 为 redis 或
// rabbitmq 时额外投递到对应的消息中间件。
type EventsConfig struct {
	Driver      string              `mapstructure:"driver"`
	JournalPath string              `mapstructure:"journal_path"`
	Redis       RedisEventsConfig   `mapstructure:"redis"`
	RabbitMQ    RabbitMQEventConfig `mapstructure:"rabbitmq"`
}

// RedisEventsConfig 描述 Redis 事件列表。
type RedisEventsConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	List     string `mapstructure:"list"`
}

// RabbitMQEventConfig 描述 RabbitMQ 事件队列。
type RabbitMQEventConfig struct {
	URL     string `mapstructure:"url"`
	Queue   string `mapstructure:"queue"`
	Durable bool   `mapstructure:"durable"`
}

// Web3Config 指定链定义文件与默认网络。
type Web3Config struct {
	ChainConfig    string `mapstructure:"chain_config"`
	DefaultNetwork string `mapstructure:"default_network"`
}

// SignerConfig 指定默认签名私钥所在的环境变量。
type SignerConfig struct {
	CredentialEnv string `mapstructure:"credential_env"`
}

// SwapConfig 覆盖兑换引擎使用的合约与参数，留空则使用内置默认值。
type SwapConfig struct {
	Router          string `mapstructure:"router"`
	WrappedNative   string `mapstructure:"wrapped_native"`
	Stable          string `mapstructure:"stable"`
	StableDecimals  int    `mapstructure:"stable_decimals"`
	Network         string `mapstructure:"network"`
	DeadlineSeconds int    `mapstructure:"deadline_seconds"`
	MinOutputFloor  string `mapstructure:"min_output_floor"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// Load 读取 JSON 或 YAML 配置文件并叠加 OPENMCP_ 前缀的环境变量。
// path 为空或文件不存在时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	baseDir := "."
	if path != "" {
		baseDir = filepath.Dir(path)
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("解析配置失败: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("打开配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.applyDefaults(baseDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys the
// file never mentions.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.auth_token", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.outputs", []string{"stdout"})
	v.SetDefault("log.audit.enabled", false)
	v.SetDefault("log.audit.path", "")
	v.SetDefault("log.audit.max_size_mb", 100)
	v.SetDefault("log.audit.max_backups", 7)
	v.SetDefault("log.audit.max_age_days", 30)
	v.SetDefault("storage.wallets.driver", "file")
	v.SetDefault("storage.wallets.dsn", "")
	v.SetDefault("storage.wallets.path", "")
	v.SetDefault("storage.wallets.max_open_conns", 10)
	v.SetDefault("storage.wallets.max_idle_conns", 5)
	v.SetDefault("storage.wallets.conn_max_lifetime_seconds", 300)
	v.SetDefault("storage.wallets.conn_max_idle_time_seconds", 60)
	v.SetDefault("cache.driver", "none")
	v.SetDefault("cache.redis.address", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "openmcp:tokens:")
	v.SetDefault("cache.redis.ttl_seconds", 86400)
	v.SetDefault("events.driver", "journal")
	v.SetDefault("events.journal_path", "")
	v.SetDefault("events.redis.address", "")
	v.SetDefault("events.redis.password", "")
	v.SetDefault("events.redis.db", 0)
	v.SetDefault("events.redis.list", "openmcp:transactions")
	v.SetDefault("events.rabbitmq.url", "")
	v.SetDefault("events.rabbitmq.queue", "openmcp.transactions")
	v.SetDefault("events.rabbitmq.durable", true)
	v.SetDefault("web3.chain_config", "")
	v.SetDefault("web3.default_network", "bsc")
	v.SetDefault("signer.credential_env", "PRIVATE_KEY")
	v.SetDefault("swap.router", "")
	v.SetDefault("swap.wrapped_native", "")
	v.SetDefault("swap.stable", "")
	v.SetDefault("swap.stable_decimals", 18)
	v.SetDefault("swap.network", "bsc-testnet")
	v.SetDefault("swap.deadline_seconds", 1200)
	v.SetDefault("swap.min_output_floor", "")
	v.SetDefault("runtime.data_dir", "")
}

// applyDefaults 在用户未填写路径类字段时，基于配置文件目录补全默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}

	if c.Storage.Wallets.Path == "" {
		c.Storage.Wallets.Path = filepath.Join(c.Runtime.DataDir, "wallets.json")
	} else if !filepath.IsAbs(c.Storage.Wallets.Path) {
		c.Storage.Wallets.Path = filepath.Join(baseDir, c.Storage.Wallets.Path)
	}

	if c.Events.JournalPath == "" {
		c.Events.JournalPath = filepath.Join(c.Runtime.DataDir, "transactions.log")
	} else if !filepath.IsAbs(c.Events.JournalPath) {
		c.Events.JournalPath = filepath.Join(baseDir, c.Events.JournalPath)
	}

	if c.Web3.ChainConfig != "" && !filepath.IsAbs(c.Web3.ChainConfig) {
		c.Web3.ChainConfig = filepath.Join(baseDir, c.Web3.ChainConfig)
	}

	if c.Log.Audit.Enabled && c.Log.Audit.Path == "" {
		c.Log.Audit.Path = filepath.Join(c.Runtime.DataDir, "audit.log")
	}

	c.Storage.Wallets.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Wallets.Driver))
	c.Cache.Driver = strings.ToLower(strings.TrimSpace(c.Cache.Driver))
	c.Events.Driver = strings.ToLower(strings.TrimSpace(c.Events.Driver))

	if token := strings.TrimSpace(c.Server.AuthToken); token != "" {
		c.Server.AuthTokens = append(c.Server.AuthTokens, AuthTokenConfig{Name: "default", Token: token})
	}
}

// Validate 校验驱动名称、依赖的连接参数与合约地址。
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Wallets.Driver {
	case "memory", "file":
	case "mysql":
		if c.Storage.Wallets.DSN == "" {
			errs = append(errs, errors.New("storage.wallets.dsn 不能为空 (driver=mysql)"))
		}
	default:
		errs = append(errs, fmt.Errorf("不支持的钱包存储驱动: %s", c.Storage.Wallets.Driver))
	}

	switch c.Cache.Driver {
	case "memory", "none":
	case "redis":
		if c.Cache.Redis.Address == "" {
			errs = append(errs, errors.New("cache.redis.address 不能为空 (driver=redis)"))
		}
	default:
		errs = append(errs, fmt.Errorf("不支持的缓存驱动: %s", c.Cache.Driver))
	}

	switch c.Events.Driver {
	case "journal", "none":
	case "redis":
		if c.Events.Redis.Address == "" {
			errs = append(errs, errors.New("events.redis.address 不能为空 (driver=redis)"))
		}
	case "rabbitmq":
		if c.Events.RabbitMQ.URL == "" {
			errs = append(errs, errors.New("events.rabbitmq.url 不能为空 (driver=rabbitmq)"))
		}
	default:
		errs = append(errs, fmt.Errorf("不支持的事件驱动: %s", c.Events.Driver))
	}

	for key, addr := range map[string]string{
		"swap.router":         c.Swap.Router,
		"swap.wrapped_native": c.Swap.WrappedNative,
		"swap.stable":         c.Swap.Stable,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Errorf("%s 不是合法地址: %s", key, addr))
		}
	}
	if c.Swap.StableDecimals < 0 || c.Swap.StableDecimals > 36 {
		errs = append(errs, fmt.Errorf("swap.stable_decimals 超出范围: %d", c.Swap.StableDecimals))
	}
	if c.Swap.DeadlineSeconds <= 0 {
		errs = append(errs, errors.New("swap.deadline_seconds 必须为正数"))
	}

	for i, t := range c.Server.AuthTokens {
		if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.Token) == "" {
			errs = append(errs, fmt.Errorf("server.auth_tokens[%d] 需要 name 与 token", i))
		}
	}
	return errors.Join(errs...)
}
