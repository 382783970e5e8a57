package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	OTP       OTPSettings       `mapstructure:"otp"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	Security  SecuritySettings  `mapstructure:"security"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and key prefixes
type RedisSettings struct {
	Host                    string        `mapstructure:"host"`
	Port                    int           `mapstructure:"port"`
	DB                      int           `mapstructure:"db"`
	Password                string        `mapstructure:"password"`
	TLSEnabled              bool          `mapstructure:"tls_enabled"`
	OTPPrefix               string        `mapstructure:"otp_prefix"`
	RateLimitPrefix         string        `mapstructure:"rate_limit_prefix"`
	SessionRevocationPrefix string        `mapstructure:"session_revocation_prefix"`
	SessionRevocationTTL    time.Duration `mapstructure:"session_revocation_ttl"`
}

// KafkaSettings configures the outbound event relay producer
type KafkaSettings struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

// JWTSettings configures signing secrets and token lifetimes. Access, refresh,
// and reset tokens use distinct secrets.
type JWTSettings struct {
	AccessSecret    string        `mapstructure:"access_secret"`
	RefreshSecret   string        `mapstructure:"refresh_secret"`
	ResetSecret     string        `mapstructure:"reset_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	ResetTokenTTL   time.Duration `mapstructure:"reset_token_ttl"`
	ClockTolerance  time.Duration `mapstructure:"clock_tolerance"`
}

// OTPSettings configures verification challenge issuance
type OTPSettings struct {
	CodeLength   int           `mapstructure:"code_length"`
	ChallengeTTL time.Duration `mapstructure:"challenge_ttl"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	SendLimit    int           `mapstructure:"send_limit"`
	SendWindow   time.Duration `mapstructure:"send_window"`
}

// RateLimitSettings configures sliding windows for authentication endpoints
type RateLimitSettings struct {
	WindowDuration   time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts int           `mapstructure:"login_max_attempts"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// SecuritySettings carries the PII encryption and identity hashing secrets
type SecuritySettings struct {
	EncryptionSecret string `mapstructure:"encryption_secret"`
	PhoneHashSecret  string `mapstructure:"phone_hash_secret"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("LIANXIN")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.otp_prefix",
		"redis.rate_limit_prefix",
		"redis.session_revocation_prefix",
		"redis.session_revocation_ttl",
		"kafka.enabled",
		"kafka.brokers",
		"kafka.topic_prefix",
		"jwt.access_secret",
		"jwt.refresh_secret",
		"jwt.reset_secret",
		"jwt.access_token_ttl",
		"jwt.refresh_token_ttl",
		"jwt.reset_token_ttl",
		"jwt.clock_tolerance",
		"otp.code_length",
		"otp.challenge_ttl",
		"otp.max_attempts",
		"otp.send_limit",
		"otp.send_window",
		"rate_limit.window_duration",
		"rate_limit.login_max_attempts",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"security.encryption_secret",
		"security.phone_hash_secret",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *AppConfig) error {
	if cfg.App.Env != "production" {
		return nil
	}
	for name, secret := range map[string]string{
		"jwt.access_secret":          cfg.JWT.AccessSecret,
		"jwt.refresh_secret":         cfg.JWT.RefreshSecret,
		"jwt.reset_secret":           cfg.JWT.ResetSecret,
		"security.encryption_secret": cfg.Security.EncryptionSecret,
		"security.phone_hash_secret": cfg.Security.PhoneHashSecret,
	} {
		if len(secret) < 32 || strings.HasPrefix(secret, "dev-") {
			return fmt.Errorf("config: %s must be set to a non-development value of at least 32 bytes in production", name)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "lianxin-identity")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "lianxin")
	v.SetDefault("postgres.password", "lianxin_password")
	v.SetDefault("postgres.database", "lianxin")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.otp_prefix", "lianxin:otp")
	v.SetDefault("redis.rate_limit_prefix", "lianxin:ratelimit")
	v.SetDefault("redis.session_revocation_prefix", "lianxin:session_revoked")
	v.SetDefault("redis.session_revocation_ttl", "168h")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "lianxin")

	// Development-only secrets; production requires explicit values.
	v.SetDefault("jwt.access_secret", "dev-access-secret-dev-access-secret-dev")
	v.SetDefault("jwt.refresh_secret", "dev-refresh-secret-dev-refresh-secret-x")
	v.SetDefault("jwt.reset_secret", "dev-reset-secret-dev-reset-secret-dev-x")
	v.SetDefault("jwt.access_token_ttl", "30m")
	v.SetDefault("jwt.refresh_token_ttl", "168h")
	v.SetDefault("jwt.reset_token_ttl", "10m")
	v.SetDefault("jwt.clock_tolerance", "30s")

	v.SetDefault("otp.code_length", 6)
	v.SetDefault("otp.challenge_ttl", "5m")
	v.SetDefault("otp.max_attempts", 3)
	v.SetDefault("otp.send_limit", 5)
	v.SetDefault("otp.send_window", "1h")

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 10)

	v.SetDefault("argon2.memory", 65536)
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("security.encryption_secret", "dev-encryption-secret-dev-encryption-sec")
	v.SetDefault("security.phone_hash_secret", "dev-phone-hash-secret-dev-phone-hash-sec")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "LIANXIN_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
