package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Configs struct {
	Env string `mapstructure:"env"`

	// NodeID distinguishes replicas in generated snowflake ids, in [0, 1023].
	NodeID int64 `mapstructure:"node_id"`

	Log              LogConfigs       `mapstructure:"log"`
	Database         DatabaseConfigs  `mapstructure:"database"`
	ApiServer        APIServerConfigs `mapstructure:"api_server"`
	PrometheusServer ServerConfigs    `mapstructure:"prometheus_server"`
	Auth             AuthConfigs      `mapstructure:"auth"`
	Session          SessionConfigs   `mapstructure:"session"`
	Redis            RedisConfigs     `mapstructure:"redis"`
	Kafka            KafkaConfigs     `mapstructure:"kafka"`
	Chain            ChainConfigs     `mapstructure:"chain"`
	Ens              EnsConfigs       `mapstructure:"ens"`
	Reward           RewardConfigs    `mapstructure:"reward"`
	Payout           PayoutConfigs    `mapstructure:"payout"`
	RateLimit        RateLimitConfigs `mapstructure:"rate_limit"`
	QRImage          QRImageConfigs   `mapstructure:"qr_image"`
}

type LogConfigs struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfigs struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfigs) ConnectionString() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local&multiStatements=true",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Database,
	)
}

type ServerConfigs struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

func (c ServerConfigs) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

type APIServerConfigs struct {
	ServerConfigs `mapstructure:",squash"`

	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxLimit       int      `mapstructure:"max_limit"`
	DefaultLimit   int      `mapstructure:"default_limit"`
}

type AuthConfigs struct {
	AccessToken TokenConfigs `mapstructure:"access_token"`
}

type TokenConfigs struct {
	Name       string        `mapstructure:"name"`
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type SessionConfigs struct {
	Secret string `mapstructure:"secret"`
	Name   string `mapstructure:"name"`
}

type RedisConfigs struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type KafkaConfigs struct {
	// Addr is a comma separated list of brokers.
	Addr     string `mapstructure:"addr"`
	ClientID string `mapstructure:"client_id"`
}

type ChainConfigs struct {
	Name           string   `mapstructure:"name"`
	ID             int64    `mapstructure:"id"`
	Rpcs           []string `mapstructure:"rpcs"`
	UseExternalRPC bool     `mapstructure:"use_external_rpc"`

	RefreshConnectionFrequency time.Duration `mapstructure:"refresh_connection_frequency"`

	USDCAddress  string `mapstructure:"usdc_address"`
	USDCDecimals int32  `mapstructure:"usdc_decimals"`

	// Seed of the custody wallet key. The custody address receives deposits
	// and signs payouts.
	CustodySecret string `mapstructure:"custody_secret"`

	HistoryLookbackBlocks uint64        `mapstructure:"history_lookback_blocks"`
	HistoryCacheTTL       time.Duration `mapstructure:"history_cache_ttl"`
}

type EnsConfigs struct {
	Rpcs            []string      `mapstructure:"rpcs"`
	RegistryAddress string        `mapstructure:"registry_address"`
	CacheSize       int           `mapstructure:"cache_size"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
}

type RewardConfigs struct {
	Operators []string `mapstructure:"operators"`
}

type PayoutConfigs struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`

	// DispatchTimeout is how long a dispatched payout may stay without a
	// receipt before the custody nonce is checked.
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
}

type RateLimitConfigs struct {
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	Burst             int     `mapstructure:"burst"`

	// MaxClients bounds the number of buckets kept in memory. A bucket idle
	// for IdleTTL is forgotten.
	MaxClients int           `mapstructure:"max_clients"`
	IdleTTL    time.Duration `mapstructure:"idle_ttl"`

	// TrustedProxies lists the IPs or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type QRImageConfigs struct {
	MaxDimension uint `mapstructure:"max_dimension"`
	DefaultSize  int  `mapstructure:"default_size"`
}

// Load reads the configuration file at path (if any), applies environment
// overrides prefixed by SCANPAY_ and fills in defaults.
func Load(path string) (*Configs, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("scanpay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Configs{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("node_id", 1)
	v.SetDefault("log.level", "info")

	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.database", "scanpay")
	v.SetDefault("database.user", "scanpay")
	v.SetDefault("database.password", "")
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("api_server.host", "")
	v.SetDefault("api_server.port", "8080")
	v.SetDefault("api_server.allowed_origins", []string{"*"})
	v.SetDefault("api_server.max_limit", 50)
	v.SetDefault("api_server.default_limit", 10)
	v.SetDefault("prometheus_server.host", "")
	v.SetDefault("prometheus_server.port", "9090")

	v.SetDefault("auth.access_token.name", "access_token")
	v.SetDefault("auth.access_token.secret", "change-this-secret")
	v.SetDefault("auth.access_token.expiration", 24*time.Hour)
	v.SetDefault("session.name", "scanpay_session")
	v.SetDefault("session.secret", "change-this-session-secret")

	v.SetDefault("redis.pool_size", 5)

	v.SetDefault("kafka.client_id", "scanpay")

	v.SetDefault("chain.name", "base")
	v.SetDefault("chain.id", 8453)
	v.SetDefault("chain.refresh_connection_frequency", time.Minute)
	v.SetDefault("chain.usdc_address", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	v.SetDefault("chain.usdc_decimals", 6)
	v.SetDefault("chain.history_lookback_blocks", 5000)
	v.SetDefault("chain.history_cache_ttl", 30*time.Second)

	v.SetDefault("ens.registry_address", "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")
	v.SetDefault("ens.cache_size", 1024)
	v.SetDefault("ens.cache_ttl", time.Hour)

	v.SetDefault("payout.interval", 10*time.Second)
	v.SetDefault("payout.batch_size", 20)
	v.SetDefault("payout.dispatch_timeout", 10*time.Minute)

	v.SetDefault("rate_limit.requests_per_minute", 120)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.max_clients", 100_000)
	v.SetDefault("rate_limit.idle_ttl", 5*time.Minute)
	v.SetDefault("rate_limit.trusted_proxies", []string{})

	v.SetDefault("qr_image.max_dimension", 1024)
	v.SetDefault("qr_image.default_size", 256)
}
