package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Protocol  ProtocolConfig  `mapstructure:"protocol"`
	Relayer   RelayerConfig   `mapstructure:"relayer"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

type AuthConfig struct {
	RequireAPIKey bool     `mapstructure:"require_api_key"`
	APIKeys       []string `mapstructure:"api_keys"`
	AdminKey      string   `mapstructure:"admin_key"`
	RateQPS       float64  `mapstructure:"rate_qps"`
	RateBurst     int      `mapstructure:"rate_burst"`
}

type DatabaseConfig struct {
	DSN                string `mapstructure:"dsn"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
}

type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	JobTTLSeconds int    `mapstructure:"job_ttl_seconds"`
}

// ProtocolConfig carries the on-ledger policy knobs. The owner address is the
// account that controls the authorization registry; the signing domain fields
// pin payloads to this deployment.
type ProtocolConfig struct {
	OwnerAddress      string `mapstructure:"owner_address"`
	FeeRecipient      string `mapstructure:"fee_recipient"`
	FeeBps            int64  `mapstructure:"fee_bps"`
	MinDeposit        string `mapstructure:"min_deposit"`
	MaxPayloadAgeSecs int64  `mapstructure:"max_payload_age_secs"`
	ChainID           int64  `mapstructure:"chain_id"`
	VerifyingContract string `mapstructure:"verifying_contract"`
}

type RelayerConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

type OptimizerConfig struct {
	SignerKey           string  `mapstructure:"signer_key"`
	PayloadTTLSeconds   int64   `mapstructure:"payload_ttl_seconds"`
	AnnualizationFactor float64 `mapstructure:"annualization_factor"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. VAULTPILOT_PROTOCOL_FEE_BPS
	viper.SetEnvPrefix("vaultpilot")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("auth.require_api_key", false)
	viper.SetDefault("auth.admin_key", "")
	viper.SetDefault("auth.rate_qps", 50)
	viper.SetDefault("auth.rate_burst", 100)
	viper.SetDefault("database.audit_retention_days", 30)
	viper.SetDefault("redis.job_ttl_seconds", 86400)
	viper.SetDefault("protocol.owner_address", "0xA0Ee7A142d267C1f36714E4a8F75612F20a79720")
	viper.SetDefault("protocol.fee_recipient", "0x14dC79964da2C08b23698B3D3cc7Ca32193d9955")
	viper.SetDefault("protocol.fee_bps", 50)
	viper.SetDefault("protocol.min_deposit", "1000")
	viper.SetDefault("protocol.max_payload_age_secs", 300)
	viper.SetDefault("protocol.chain_id", 137)
	viper.SetDefault("protocol.verifying_contract", "0x5Cb5B4E98E1F1C58E9C3F0c7d3779E79Bf9a5b21")
	viper.SetDefault("relayer.workers", 1)
	viper.SetDefault("relayer.queue_size", 256)
	viper.SetDefault("optimizer.payload_ttl_seconds", 120)
	viper.SetDefault("optimizer.annualization_factor", 8760)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

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
