package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	AES           AESConfig           `mapstructure:"aes"`
	Log           LogConfig           `mapstructure:"log"`
	Payments      PaymentsConfig      `mapstructure:"payments"`
	MobileMoney   MobileMoneyConfig   `mapstructure:"mobile_money"`
	RedirectOrder RedirectOrderConfig `mapstructure:"redirect_order"`
	CardIssuer    CardIssuerConfig    `mapstructure:"card_issuer"`
	Reconciler    ReconcilerConfig    `mapstructure:"reconciler"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// LockTimeout bounds how long a transaction waits on a card row lock.
	LockTimeout     time.Duration `mapstructure:"lock_timeout"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

type PaymentsConfig struct {
	Currency        string        `mapstructure:"currency"`
	MaxAmount       float64       `mapstructure:"max_amount"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval"` // min gap between provider status polls per transaction
	IdempotencyTTL  time.Duration `mapstructure:"idempotency_ttl"`
}

// MobileMoneyConfig configures the S3P mobile-money aggregator.
type MobileMoneyConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	APISecret     string        `mapstructure:"api_secret"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	NotifyPhone   string        `mapstructure:"notify_phone"`
	NotifyEmail   string        `mapstructure:"notify_email"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// RedirectOrderConfig configures the hosted-checkout aggregator.
type RedirectOrderConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	ConsumerKey     string        `mapstructure:"consumer_key"`
	ConsumerSecret  string        `mapstructure:"consumer_secret"`
	ReturnURL       string        `mapstructure:"return_url"`
	NotificationURL string        `mapstructure:"notification_url"`
	Lang            string        `mapstructure:"lang"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type CardIssuerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ReconcilerConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	MinAge    time.Duration `mapstructure:"min_age"`
	BatchSize int           `mapstructure:"batch_size"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: VCG_ (Virtual Card Gateway).
// Nested keys use underscore: VCG_DATABASE_HOST, VCG_MOBILE_MONEY_API_KEY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "vcard_gateway")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.lock_timeout", "5s")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "3s")
	v.SetDefault("redis.read_timeout", "1s")
	v.SetDefault("redis.write_timeout", "1s")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "vcard-gateway")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("payments.currency", "XAF")
	v.SetDefault("payments.max_amount", 1000000)
	v.SetDefault("payments.provider_timeout", "30s")
	v.SetDefault("payments.poll_interval", "5s")
	v.SetDefault("payments.idempotency_ttl", "24h")

	v.SetDefault("mobile_money.base_url", "https://s3p.smobilpay.staging.maviance.info/v2")
	v.SetDefault("mobile_money.api_key", "")
	v.SetDefault("mobile_money.api_secret", "")
	v.SetDefault("mobile_money.webhook_secret", "")
	v.SetDefault("mobile_money.notify_phone", "")
	v.SetDefault("mobile_money.notify_email", "")
	v.SetDefault("mobile_money.timeout", "30s")

	v.SetDefault("redirect_order.base_url", "https://api-v2.enkap.cm")
	v.SetDefault("redirect_order.consumer_key", "")
	v.SetDefault("redirect_order.consumer_secret", "")
	v.SetDefault("redirect_order.return_url", "")
	v.SetDefault("redirect_order.notification_url", "")
	v.SetDefault("redirect_order.lang", "fr")
	v.SetDefault("redirect_order.timeout", "30s")

	v.SetDefault("card_issuer.base_url", "")
	v.SetDefault("card_issuer.api_key", "")
	v.SetDefault("card_issuer.timeout", "30s")

	v.SetDefault("reconciler.enabled", true)
	v.SetDefault("reconciler.interval", "1m")
	v.SetDefault("reconciler.min_age", "2m")
	v.SetDefault("reconciler.batch_size", 50)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: VCG_DATABASE_HOST -> database.host
	v.SetEnvPrefix("VCG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
