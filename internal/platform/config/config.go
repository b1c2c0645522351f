// Package config loads process configuration from an optional config.yaml
// and MEDISHIFT_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// DevJWTSigningKey is the fallback signing key. Load refuses it when
// Server.Production is set.
const DevJWTSigningKey = "dev-secret-key-change-in-production"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Saga       SagaConfig       `mapstructure:"saga"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Remote     RemoteConfig     `mapstructure:"remote"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Education  EducationConfig  `mapstructure:"education"`
	Leave      LeaveConfig      `mapstructure:"leave"`
	Compliance ComplianceConfig `mapstructure:"compliance"`
	Workforce  WorkforceConfig  `mapstructure:"workforce"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// AdminToken guards /metrics and the outbox replay route. Empty disables them.
	AdminToken string `mapstructure:"admin_token"`
	Production bool   `mapstructure:"production"`
}

type AuthConfig struct {
	JWTSigningKey string        `mapstructure:"jwt_signing_key"`
	Issuer        string        `mapstructure:"issuer"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
}

// DatabaseConfig points at the postgres audit outbox. An empty URL keeps
// audit events in memory.
type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// SagaConfig points at the sqlite intent journal. An empty path keeps
// intents in memory.
type SagaConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
}

// RedisConfig configures the blocklist cache. An empty URL disables it.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// KafkaConfig configures the audit relay and notification topics. No
// brokers keeps both in process.
type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	NotifyTopic  string   `mapstructure:"notify_topic"`
	AuditGroupID string   `mapstructure:"audit_group_id"`
	Partitions   int32    `mapstructure:"partitions"`
	Replication  int16    `mapstructure:"replication"`
	EnsureTopics bool     `mapstructure:"ensure_topics"`
}

// RemoteConfig configures calls to the fiduciary export procedure.
type RemoteConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	RetryAttempts uint          `mapstructure:"retry_attempts"`
	CBMaxRequests uint32        `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
	CBFailures    uint32        `mapstructure:"cb_failures"`
}

type AuditConfig struct {
	// AsyncBuffer > 0 buffers events; HIGH risk actions still write through
	// when SyncHighRisk is set.
	AsyncBuffer      int           `mapstructure:"async_buffer"`
	SyncHighRisk     bool          `mapstructure:"sync_high_risk"`
	FallbackCapacity int           `mapstructure:"fallback_capacity"`
	RelayInterval    time.Duration `mapstructure:"relay_interval"`
	RelayBatchSize   int           `mapstructure:"relay_batch_size"`
}

type DispatchConfig struct {
	SerialTimeout time.Duration `mapstructure:"serial_timeout"`
}

type LeaveConfig struct {
	AnnualEntitlementDays int `mapstructure:"annual_entitlement_days"`
}

type ComplianceConfig struct {
	ExpiredCertificationPenalty int `mapstructure:"expired_certification_penalty"`
	MissingContractPenalty      int `mapstructure:"missing_contract_penalty"`
}

type EducationConfig struct {
	RequiredAnnualCredits int `mapstructure:"required_annual_credits"`
}

// WorkforceConfig points at the directory snapshot loaded at boot.
type WorkforceConfig struct {
	SeedPath string `mapstructure:"seed_path"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config.yaml from "." or "./configs" when present, then applies
// environment overrides: MEDISHIFT_SERVER_ADDR overrides server.addr.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.SetEnvPrefix("MEDISHIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that must never reach production.
func (c *Config) Validate() error {
	if c.Server.Production && c.Auth.JWTSigningKey == DevJWTSigningKey {
		return errors.New("config: auth.jwt_signing_key must be set in production")
	}
	if c.Leave.AnnualEntitlementDays < 0 {
		return errors.New("config: leave.annual_entitlement_days must not be negative")
	}
	if c.Education.RequiredAnnualCredits <= 0 {
		return errors.New("config: education.required_annual_credits must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.production", false)

	v.SetDefault("auth.jwt_signing_key", DevJWTSigningKey)
	v.SetDefault("auth.issuer", "medishift")
	v.SetDefault("auth.token_ttl", 15*time.Minute)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("saga.sqlite_path", "")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 2*time.Second)
	v.SetDefault("redis.read_timeout", time.Second)
	v.SetDefault("redis.write_timeout", time.Second)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.notify_topic", "notifications")
	v.SetDefault("kafka.audit_group_id", "medishift-audit-materializer")
	v.SetDefault("kafka.partitions", 3)
	v.SetDefault("kafka.replication", 1)
	v.SetDefault("kafka.ensure_topics", true)

	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.timeout", 10*time.Second)
	v.SetDefault("remote.rate_per_second", 5.0)
	v.SetDefault("remote.burst", 5)
	v.SetDefault("remote.retry_attempts", 3)
	v.SetDefault("remote.cb_max_requests", 1)
	v.SetDefault("remote.cb_interval", time.Minute)
	v.SetDefault("remote.cb_timeout", 30*time.Second)
	v.SetDefault("remote.cb_failures", 5)

	v.SetDefault("audit.async_buffer", 0)
	v.SetDefault("audit.fallback_capacity", 10000)
	v.SetDefault("audit.relay_interval", time.Second)
	v.SetDefault("audit.relay_batch_size", 100)

	v.SetDefault("dispatch.serial_timeout", 5*time.Second)
	v.SetDefault("education.required_annual_credits", 20)
	v.SetDefault("leave.annual_entitlement_days", 25)
	v.SetDefault("compliance.expired_certification_penalty", 10)
	v.SetDefault("compliance.missing_contract_penalty", 15)
	v.SetDefault("audit.sync_high_risk", true)
	v.SetDefault("workforce.seed_path", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}
