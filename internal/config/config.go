package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const envPrefix = "PRACTICE"

type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Reminders ReminderConfig  `mapstructure:"reminders"`
	Log       LogConfig       `mapstructure:"log"`
	Practice  PracticeConfig  `mapstructure:"practice"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type CORSConfig struct {
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	MaxAge         time.Duration `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CacheConfig struct {
	DoctorTTL       time.Duration `mapstructure:"doctor_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	ChannelPrefix string        `mapstructure:"channel_prefix"`
	Retention     time.Duration `mapstructure:"retention"`
}

type ReminderConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	LeadTime    time.Duration `mapstructure:"lead_time"`
	Window      time.Duration `mapstructure:"window"`
	NoShowGrace time.Duration `mapstructure:"no_show_grace"`
}

type LogConfig struct {
	Level          string        `mapstructure:"level"`
	Format         string        `mapstructure:"format"`
	AuditFile      string        `mapstructure:"audit_file"`
	AuditRetention time.Duration `mapstructure:"audit_retention"`
}

type PracticeConfig struct {
	Name     string `mapstructure:"name"`
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the practice timezone, falling back to UTC.
func (c PracticeConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || c.Timezone == "" {
		return time.UTC
	}
	return loc
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

type WorkerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// envOverrides are the secrets and connection settings that deployments
// supply through PRACTICE_* environment variables.
type envOverrides struct {
	Env        string `envconfig:"ENV"`
	Port       int    `envconfig:"PORT"`
	DBHost     string `envconfig:"DB_HOST"`
	DBPort     int    `envconfig:"DB_PORT"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME"`
	DBSSLMode  string `envconfig:"DB_SSLMODE"`
	JWTSecret  string `envconfig:"JWT_SECRET"`
	RedisURL   string `envconfig:"REDIS_URL"`
	SMTPHost   string `envconfig:"SMTP_HOST"`
	SMTPPort   int    `envconfig:"SMTP_PORT"`
	SMTPUser   string `envconfig:"SMTP_USERNAME"`
	SMTPPass   string `envconfig:"SMTP_PASSWORD"`
	LogLevel   string `envconfig:"LOG_LEVEL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "practice")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("jwt.issuer", "practice-api")
	v.SetDefault("jwt.access_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("jwt.bcrypt_cost", 12)

	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.max_age", 12*time.Hour)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("cache.doctor_ttl", 5*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "no-reply@practice.local")

	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", 2*time.Second)
	v.SetDefault("outbox.max_attempts", 5)
	v.SetDefault("outbox.retry_delay", 5*time.Second)
	v.SetDefault("outbox.channel_prefix", "practice.")
	v.SetDefault("outbox.retention", 7*24*time.Hour)

	v.SetDefault("reminders.enabled", true)
	v.SetDefault("reminders.interval", time.Minute)
	v.SetDefault("reminders.lead_time", 24*time.Hour)
	v.SetDefault("reminders.window", 15*time.Minute)
	v.SetDefault("reminders.no_show_grace", 30*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.audit_retention", 365*24*time.Hour)

	v.SetDefault("practice.name", "Medidesk Practice")
	v.SetDefault("practice.timezone", "UTC")

	v.SetDefault("metrics.namespace", "practice")
	v.SetDefault("worker.health_port", 8081)
}

// Load reads config.yml (optional), then .env (optional), then applies
// PRACTICE_* environment overrides.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
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

	// .env is a development convenience; it never overrides real env vars.
	_ = godotenv.Load()

	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	applyOverrides(&cfg, env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyOverrides(cfg *Config, env envOverrides) {
	setString(&cfg.Env, env.Env)
	setInt(&cfg.Server.Port, env.Port)
	setString(&cfg.Database.Host, env.DBHost)
	setInt(&cfg.Database.Port, env.DBPort)
	setString(&cfg.Database.User, env.DBUser)
	setString(&cfg.Database.Password, env.DBPassword)
	setString(&cfg.Database.Name, env.DBName)
	setString(&cfg.Database.SSLMode, env.DBSSLMode)
	setString(&cfg.JWT.Secret, env.JWTSecret)
	setString(&cfg.Redis.URL, env.RedisURL)
	setString(&cfg.SMTP.Host, env.SMTPHost)
	setInt(&cfg.SMTP.Port, env.SMTPPort)
	setString(&cfg.SMTP.Username, env.SMTPUser)
	setString(&cfg.SMTP.Password, env.SMTPPass)
	setString(&cfg.Log.Level, env.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func (c *Config) Validate() error {
	var problems []string
	if len(c.JWT.Secret) < 32 {
		problems = append(problems, "jwt.secret must be at least 32 characters")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		problems = append(problems, "jwt token lifetimes must be positive")
	}
	if c.Server.Port <= 0 {
		problems = append(problems, "server.port must be positive")
	}
	if c.Outbox.BatchSize <= 0 {
		problems = append(problems, "outbox.batch_size must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
