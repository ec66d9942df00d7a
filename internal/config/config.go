package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/postop-monitor/internal/vitals"
)

type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Database   DatabaseConfig    `mapstructure:"database"`
	JWT        JWTConfig         `mapstructure:"jwt"`
	Redis      RedisConfig       `mapstructure:"redis"`
	SMTP       SMTPConfig        `mapstructure:"smtp"`
	Log        LogConfig         `mapstructure:"log"`
	Ingestion  IngestionConfig   `mapstructure:"ingestion"`
	ThingSpeak ThingSpeakConfig  `mapstructure:"thingspeak"`
	Alerts     AlertsConfig      `mapstructure:"alerts"`
	Escalation EscalationConfig  `mapstructure:"escalation"`
	Outbox     OutboxConfig      `mapstructure:"outbox"`
	Thresholds vitals.Thresholds `mapstructure:"thresholds"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	WorkerPort     int      `mapstructure:"worker_port"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type RedisConfig struct {
	URL        string `mapstructure:"url"`
	PoolSize   int    `mapstructure:"pool_size"`
	MaxRetries int    `mapstructure:"max_retries"`
	Channel    string `mapstructure:"channel"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Vitals source names
const (
	SourceMock       = "mock"
	SourceThingSpeak = "thingspeak"
)

type IngestionConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	Source      string        `mapstructure:"source"`
	UseMockData bool          `mapstructure:"use_mock_data"`
	SpikeRate   float64       `mapstructure:"spike_rate"`
	Seed        int64         `mapstructure:"seed"`
}

// EffectiveSource is the source the scheduler reads from; USE_MOCK_DATA
// always wins
func (c IngestionConfig) EffectiveSource() string {
	if c.UseMockData {
		return SourceMock
	}
	return c.Source
}

type ThingSpeakConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	DefaultChannel string        `mapstructure:"default_channel"`
	ReadAPIKey     string        `mapstructure:"read_api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type AlertsConfig struct {
	DedupWindow time.Duration `mapstructure:"dedup_window"`
}

type EscalationConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	After      time.Duration `mapstructure:"after"`
	Interval   time.Duration `mapstructure:"interval"`
	Severities []string      `mapstructure:"severities"`
	BatchSize  int           `mapstructure:"batch_size"`
}

type OutboxConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	MaxRetries    int           `mapstructure:"max_retries"`
	Retention     time.Duration `mapstructure:"retention"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.worker_port", 8081)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("server.rate_limit_burst", 40)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "postop_monitor")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry_hours", 24)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.channel", "alerts")

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "alerts@postop.local")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("ingestion.enabled", true)
	v.SetDefault("ingestion.interval", 30*time.Second)
	v.SetDefault("ingestion.source", SourceMock)
	v.SetDefault("ingestion.use_mock_data", false)
	v.SetDefault("ingestion.spike_rate", vitals.DefaultSpikeRate)
	v.SetDefault("ingestion.seed", 0)

	v.SetDefault("thingspeak.base_url", "https://api.thingspeak.com")
	v.SetDefault("thingspeak.default_channel", "")
	v.SetDefault("thingspeak.read_api_key", "")
	v.SetDefault("thingspeak.timeout", 10*time.Second)

	v.SetDefault("alerts.dedup_window", 60*time.Minute)

	v.SetDefault("escalation.enabled", true)
	v.SetDefault("escalation.after", 15*time.Minute)
	v.SetDefault("escalation.interval", time.Minute)
	v.SetDefault("escalation.severities", []string{"critical"})
	v.SetDefault("escalation.batch_size", 100)

	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", time.Second)
	v.SetDefault("outbox.max_retries", 5)
	v.SetDefault("outbox.retention", 7*24*time.Hour)

	t := vitals.DefaultThresholds()
	v.SetDefault("thresholds.heart_rate_low", t.HeartRateLow)
	v.SetDefault("thresholds.heart_rate_high", t.HeartRateHigh)
	v.SetDefault("thresholds.heart_rate_critical", t.HeartRateCritical)
	v.SetDefault("thresholds.systolic_high", t.SystolicHigh)
	v.SetDefault("thresholds.systolic_critical", t.SystolicCritical)
	v.SetDefault("thresholds.diastolic_high", t.DiastolicHigh)
	v.SetDefault("thresholds.diastolic_critical", t.DiastolicCritical)
	v.SetDefault("thresholds.temperature_high", t.TemperatureHigh)
	v.SetDefault("thresholds.temperature_critical", t.TemperatureCritical)
	v.SetDefault("thresholds.spo2_low", t.SpO2Low)
	v.SetDefault("thresholds.spo2_critical", t.SpO2Critical)
}

// LoadConfig reads config.yml when present, then environment overrides.
// Nested keys map to env vars with dots replaced by underscores
// (ingestion.interval -> INGESTION_INTERVAL). Threshold overrides are also
// read from VITALS_* variables.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("ingestion.use_mock_data", "USE_MOCK_DATA"); err != nil {
		return nil, fmt.Errorf("failed to bind USE_MOCK_DATA: %w", err)
	}
	if err := v.BindEnv("ingestion.interval", "INGESTION_INTERVAL"); err != nil {
		return nil, fmt.Errorf("failed to bind INGESTION_INTERVAL: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("VITALS", &cfg.Thresholds); err != nil {
		return nil, fmt.Errorf("failed to read threshold overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the services cannot run with
func (c *Config) Validate() error {
	if c.Ingestion.Interval <= 0 {
		return fmt.Errorf("ingestion.interval must be positive")
	}
	switch c.Ingestion.Source {
	case SourceMock, SourceThingSpeak:
	default:
		return fmt.Errorf("ingestion.source must be %q or %q, got %q", SourceMock, SourceThingSpeak, c.Ingestion.Source)
	}
	if c.Ingestion.SpikeRate < 0 || c.Ingestion.SpikeRate > 1 {
		return fmt.Errorf("ingestion.spike_rate must be within [0,1]")
	}
	if c.Alerts.DedupWindow <= 0 {
		return fmt.Errorf("alerts.dedup_window must be positive")
	}
	if c.Escalation.Enabled && (c.Escalation.After <= 0 || c.Escalation.Interval <= 0) {
		return fmt.Errorf("escalation.after and escalation.interval must be positive")
	}
	if c.Outbox.PollInterval <= 0 || c.Outbox.BatchSize <= 0 || c.Outbox.RetryAttempts <= 0 {
		return fmt.Errorf("outbox poll_interval, batch_size and retry_attempts must be positive")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}
	return nil
}
