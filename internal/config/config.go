package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Log         LogConfig         `mapstructure:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Chain       ChainConfig       `mapstructure:"chain"`
	Operator    OperatorConfig    `mapstructure:"operator"`
	Contracts   ContractsConfig   `mapstructure:"contracts"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	Fees        FeesConfig        `mapstructure:"fees"`
}

type ServerConfig struct {
	Port      string  `mapstructure:"port"`
	RateLimit float64 `mapstructure:"rate_limit"` // requests per second on /v1, 0 = unlimited
	RateBurst int     `mapstructure:"rate_burst"`
}

type AuthConfig struct {
	AdminKey string `mapstructure:"admin_key"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr           string `mapstructure:"addr"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	LockTTLSeconds int    `mapstructure:"lock_ttl_seconds"`
	LockPrefix     string `mapstructure:"lock_prefix"`
}

type ChainConfig struct {
	RPCURL                string `mapstructure:"rpc_url"`
	ChainID               int64  `mapstructure:"chain_id"` // 0 = ask the node
	ReadRetryAttempts     int    `mapstructure:"read_retry_attempts"`
	ReadRetryDelayMs      int    `mapstructure:"read_retry_delay_ms"`
	ConfirmTimeoutSeconds int    `mapstructure:"confirm_timeout_seconds"`
}

type OperatorConfig struct {
	// Hex private key of the operator; it owns every Safe it deploys.
	PrivateKey string `mapstructure:"private_key"`
	// Address granted the role on the Roles module. Defaults to the operator.
	RoleMember string `mapstructure:"role_member"`
}

// ContractsConfig overrides the built-in per-chain deployment table.
type ContractsConfig struct {
	SafeSingleton      string `mapstructure:"safe_singleton"`
	SafeProxyFactory   string `mapstructure:"safe_proxy_factory"`
	FallbackHandler    string `mapstructure:"fallback_handler"`
	MultiSend          string `mapstructure:"multi_send"`
	ModuleProxyFactory string `mapstructure:"module_proxy_factory"`
	RolesMastercopy    string `mapstructure:"roles_mastercopy"`
	FeeRouterFactory   string `mapstructure:"fee_router_factory"`
}

type PermissionsConfig struct {
	RoleKey        string `mapstructure:"role_key"`        // 0x-prefixed bytes32 or a short ASCII label
	DepositMethod  string `mapstructure:"deposit_method"`  // method name or full signature
	WithdrawMethod string `mapstructure:"withdraw_method"` // method name or full signature
}

type FeesConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
	// nil selects the built-in default; an explicit 0 is kept.
	DefaultDepositBps *uint64 `mapstructure:"default_deposit_bps"`
	DefaultProfitBps  *uint64 `mapstructure:"default_profit_bps"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. SAFEBOARD_OPERATOR_PRIVATE_KEY
	viper.SetEnvPrefix("safeboard")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.rate_limit", 2)
	v.SetDefault("server.rate_burst", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("redis.lock_ttl_seconds", 600)
	v.SetDefault("redis.lock_prefix", "safeboard:operator:")
	v.SetDefault("chain.read_retry_attempts", DefaultReadRetryAttempts)
	v.SetDefault("chain.read_retry_delay_ms", 1000)
	v.SetDefault("chain.confirm_timeout_seconds", 180)
	v.SetDefault("permissions.role_key", DefaultRoleLabel)
	v.SetDefault("permissions.deposit_method", "deposit")
	v.SetDefault("permissions.withdraw_method", "withdraw")
	v.SetDefault("fees.timeout_ms", 3000)
	v.SetDefault("fees.default_deposit_bps", DefaultDepositBps)
	v.SetDefault("fees.default_profit_bps", DefaultProfitBps)
}
