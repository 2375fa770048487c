// internal/pkg/config/config.go
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Document store drivers
const (
	StoreDriverFile     = "file"
	StoreDriverPostgres = "postgres"
)

// Backup storage drivers
const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

// BotTokenKey names the bot credential in the environment and in the secret store
const BotTokenKey = "BOT_TOKEN"

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Bot      BotConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Asynq    AsynqConfig
	AWS      AWSConfig
	Storage  StorageConfig
	Security SecurityConfig
	Server   ServerConfig
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Version     string
	LogLevel    string
	LogFormat   string // json, text
	Debug       bool
}

// BotConfig holds the conversation and inventory settings
type BotConfig struct {
	Token                string
	DataFile             string
	StoreDriver          string
	DefaultThreshold     int
	BootstrapAdmins      []int64
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	WebhookPath          string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxConnections     int32
	MinConnections     int32
	MaxConnLifetime    time.Duration
	MaxConnIdleTime    time.Duration
	HealthCheckPeriod  time.Duration
	ConnectTimeout     time.Duration
	EnableQueryLogging bool
	DocumentName       string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

// AsynqConfig holds Asynq configuration
type AsynqConfig struct {
	Enabled         bool
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	Concurrency     int
	Queues          map[string]int // queue name -> priority
	Queue           string         // queue export tasks are enqueued on
	StrictPriority  bool
	ShutdownTimeout time.Duration
	BackupCron      string
	RetentionCron   string
	BackupRetention int
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	S3Endpoint      string // MinIO in development
	UsePathStyle    bool
	SecretName      string
}

// StorageConfig selects where backups and reports are kept
type StorageConfig struct {
	Driver   string
	LocalDir string
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimitRequests int
	RateLimitDuration time.Duration
	RequesterLimit    int
	RequesterWindow   time.Duration
	DedupeTTL         time.Duration
	AllowedOrigins    []string
	SecureHeaders     bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
	HandlerTimeout  time.Duration // per-request budget for the webhook, below WriteTimeout
	TLSEnabled      bool
	TLSCertFile     string
	TLSKeyFile      string
}

// Load loads configuration from the environment
func Load(logger *slog.Logger) (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" || env == "local" {
		if err := godotenv.Load(); err != nil {
			logger.Warn("no .env file found, using environment variables",
				slog.String("error", err.Error()))
		} else {
			logger.Info(".env file loaded successfully")
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v, env)

	admins, err := parseIDs(v.GetString("BOT_BOOTSTRAP_ADMINS"))
	if err != nil {
		return nil, fmt.Errorf("invalid BOT_BOOTSTRAP_ADMINS: %w", err)
	}

	redisAddr := fmt.Sprintf("%s:%s", v.GetString("REDIS_HOST"), v.GetString("REDIS_PORT"))

	cfg := &Config{
		App: AppConfig{
			Name:        v.GetString("APP_NAME"),
			Environment: env,
			Version:     v.GetString("APP_VERSION"),
			LogLevel:    v.GetString("LOG_LEVEL"),
			LogFormat:   v.GetString("LOG_FORMAT"),
			Debug:       v.GetBool("APP_DEBUG"),
		},
		Bot: BotConfig{
			Token:                v.GetString(BotTokenKey),
			DataFile:             v.GetString("BOT_DATA_FILE"),
			StoreDriver:          strings.ToLower(v.GetString("BOT_STORE_DRIVER")),
			DefaultThreshold:     v.GetInt("BOT_DEFAULT_THRESHOLD"),
			BootstrapAdmins:      admins,
			SessionTTL:           v.GetDuration("BOT_SESSION_TTL"),
			SessionSweepInterval: v.GetDuration("BOT_SESSION_SWEEP_INTERVAL"),
			WebhookPath:          v.GetString("BOT_WEBHOOK_PATH"),
		},
		Database: DatabaseConfig{
			Host:               v.GetString("DB_HOST"),
			Port:               v.GetString("DB_PORT"),
			User:               v.GetString("DB_USER"),
			Password:           v.GetString("DB_PASSWORD"),
			Name:               v.GetString("DB_NAME"),
			SSLMode:            v.GetString("DB_SSL_MODE"),
			MaxConnections:     v.GetInt32("DB_MAX_CONNECTIONS"),
			MinConnections:     v.GetInt32("DB_MIN_CONNECTIONS"),
			MaxConnLifetime:    v.GetDuration("DB_CONNECTION_LIFETIME"),
			MaxConnIdleTime:    v.GetDuration("DB_IDLE_TIME"),
			HealthCheckPeriod:  v.GetDuration("DB_HEALTH_CHECK_PERIOD"),
			ConnectTimeout:     v.GetDuration("DB_CONNECT_TIMEOUT"),
			EnableQueryLogging: v.GetBool("DB_QUERY_LOGGING"),
			DocumentName:       v.GetString("DB_DOCUMENT_NAME"),
		},
		Redis: RedisConfig{
			Enabled:      v.GetBool("REDIS_ENABLED"),
			Host:         v.GetString("REDIS_HOST"),
			Port:         v.GetString("REDIS_PORT"),
			Password:     v.GetString("REDIS_PASSWORD"),
			DB:           v.GetInt("REDIS_DB"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
		},
		Asynq: AsynqConfig{
			Enabled:         v.GetBool("ASYNQ_ENABLED"),
			RedisAddr:       redisAddr,
			RedisPassword:   v.GetString("REDIS_PASSWORD"),
			RedisDB:         v.GetInt("ASYNQ_REDIS_DB"),
			Concurrency:     v.GetInt("ASYNQ_CONCURRENCY"),
			Queues:          parseQueues(v.GetString("ASYNQ_QUEUES")),
			Queue:           v.GetString("ASYNQ_QUEUE"),
			StrictPriority:  v.GetBool("ASYNQ_STRICT_PRIORITY"),
			ShutdownTimeout: v.GetDuration("ASYNQ_SHUTDOWN_TIMEOUT"),
			BackupCron:      v.GetString("ASYNQ_BACKUP_CRON"),
			RetentionCron:   v.GetString("ASYNQ_RETENTION_CRON"),
			BackupRetention: v.GetInt("ASYNQ_BACKUP_RETENTION"),
		},
		AWS: AWSConfig{
			Region:          v.GetString("AWS_REGION"),
			AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
			S3Bucket:        v.GetString("AWS_S3_BUCKET"),
			S3Endpoint:      v.GetString("AWS_S3_ENDPOINT"),
			UsePathStyle:    v.GetBool("AWS_S3_PATH_STYLE"),
			SecretName:      v.GetString("AWS_SECRET_NAME"),
		},
		Storage: StorageConfig{
			Driver:   strings.ToLower(v.GetString("STORAGE_DRIVER")),
			LocalDir: v.GetString("STORAGE_LOCAL_DIR"),
		},
		Security: SecurityConfig{
			RateLimitRequests: v.GetInt("RATE_LIMIT_REQUESTS"),
			RateLimitDuration: v.GetDuration("RATE_LIMIT_DURATION"),
			RequesterLimit:    v.GetInt("REQUESTER_RATE_LIMIT"),
			RequesterWindow:   v.GetDuration("REQUESTER_RATE_WINDOW"),
			DedupeTTL:         v.GetDuration("EVENT_DEDUPE_TTL"),
			AllowedOrigins:    splitList(v.GetString("ALLOWED_ORIGINS")),
			SecureHeaders:     v.GetBool("SECURE_HEADERS"),
		},
		Server: ServerConfig{
			Host:            v.GetString("SERVER_HOST"),
			Port:            v.GetString("SERVER_PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     v.GetDuration("SERVER_IDLE_TIMEOUT"),
			GracefulTimeout: v.GetDuration("SERVER_GRACEFUL_TIMEOUT"),
			HandlerTimeout:  v.GetDuration("SERVER_HANDLER_TIMEOUT"),
			TLSEnabled:      v.GetBool("TLS_ENABLED"),
			TLSCertFile:     v.GetString("TLS_CERT_FILE"),
			TLSKeyFile:      v.GetString("TLS_KEY_FILE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if cfg.IsProduction() {
		if err := (&ProductionValidator{}).Validate(cfg); err != nil {
			return nil, fmt.Errorf("production validation failed: %w", err)
		}
	}

	return cfg, nil
}

// ResolveBotToken fills Bot.Token from the secrets manager when it is not set directly
func (c *Config) ResolveBotToken(ctx context.Context, sm SecretsManager) error {
	if c.Bot.Token != "" || sm == nil {
		return nil
	}
	token, err := sm.GetSecret(ctx, BotTokenKey)
	if err != nil {
		return fmt.Errorf("failed to resolve bot token: %w", err)
	}
	c.Bot.Token = token
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Bot.StoreDriver {
	case StoreDriverFile:
		if c.Bot.DataFile == "" {
			return fmt.Errorf("%w: BOT_DATA_FILE", ErrMissingRequiredConfig)
		}
	case StoreDriverPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("%w: database host and name", ErrMissingRequiredConfig)
		}
		if c.Database.MaxConnections < c.Database.MinConnections {
			return fmt.Errorf("max connections must be >= min connections")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Bot.StoreDriver)
	}

	switch c.Storage.Driver {
	case StorageDriverLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("%w: STORAGE_LOCAL_DIR", ErrMissingRequiredConfig)
		}
	case StorageDriverS3:
		if c.AWS.S3Bucket == "" {
			return fmt.Errorf("%w: AWS_S3_BUCKET", ErrMissingRequiredConfig)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Bot.DefaultThreshold < 0 {
		return fmt.Errorf("default threshold cannot be negative")
	}
	if c.Bot.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HandlerTimeout <= 0 {
		return fmt.Errorf("server handler timeout must be positive")
	}
	if c.Security.RateLimitRequests <= 0 {
		return fmt.Errorf("rate limit requests must be positive")
	}
	return nil
}

// GetServerAddress returns the formatted server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// GetRedisAddress returns the host:port of the Redis server
func (c *Config) GetRedisAddress() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "local"
}

func setDefaults(v *viper.Viper, env string) {
	dev := env == "development" || env == "local"

	v.SetDefault("APP_NAME", "inventory-bot")
	v.SetDefault("APP_VERSION", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("APP_DEBUG", dev)

	v.SetDefault("BOT_DATA_FILE", "data.json")
	v.SetDefault("BOT_STORE_DRIVER", StoreDriverFile)
	v.SetDefault("BOT_DEFAULT_THRESHOLD", 50)
	v.SetDefault("BOT_SESSION_TTL", 30*time.Minute)
	v.SetDefault("BOT_SESSION_SWEEP_INTERVAL", time.Minute)
	v.SetDefault("BOT_WEBHOOK_PATH", "/api/v1/webhook")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "inventory")
	v.SetDefault("DB_PASSWORD", "inventory_dev")
	v.SetDefault("DB_NAME", "inventory_bot")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_CONNECTIONS", 10)
	v.SetDefault("DB_MIN_CONNECTIONS", 2)
	v.SetDefault("DB_CONNECTION_LIFETIME", time.Hour)
	v.SetDefault("DB_IDLE_TIME", 30*time.Minute)
	v.SetDefault("DB_HEALTH_CHECK_PERIOD", time.Minute)
	v.SetDefault("DB_CONNECT_TIMEOUT", 10*time.Second)
	v.SetDefault("DB_QUERY_LOGGING", false)
	v.SetDefault("DB_DOCUMENT_NAME", "inventory")

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)

	v.SetDefault("ASYNQ_ENABLED", true)
	v.SetDefault("ASYNQ_REDIS_DB", 0)
	v.SetDefault("ASYNQ_CONCURRENCY", 5)
	v.SetDefault("ASYNQ_QUEUES", "critical:6,default:3,low:1")
	v.SetDefault("ASYNQ_QUEUE", "default")
	v.SetDefault("ASYNQ_STRICT_PRIORITY", false)
	v.SetDefault("ASYNQ_SHUTDOWN_TIMEOUT", 30*time.Second)
	v.SetDefault("ASYNQ_BACKUP_CRON", "0 3 * * *")
	v.SetDefault("ASYNQ_RETENTION_CRON", "30 3 * * *")
	v.SetDefault("ASYNQ_BACKUP_RETENTION", 14)

	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_S3_BUCKET", "inventory-backups")
	v.SetDefault("AWS_S3_PATH_STYLE", dev)

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_LOCAL_DIR", "backups")

	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_DURATION", time.Minute)
	v.SetDefault("REQUESTER_RATE_LIMIT", 30)
	v.SetDefault("REQUESTER_RATE_WINDOW", time.Minute)
	v.SetDefault("EVENT_DEDUPE_TTL", 24*time.Hour)
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("SECURE_HEADERS", !dev)

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("SERVER_GRACEFUL_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_HANDLER_TIMEOUT", 10*time.Second)
	v.SetDefault("TLS_ENABLED", false)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(s) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a numeric id", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseQueues(queuesStr string) map[string]int {
	queues := make(map[string]int)
	for _, pair := range splitList(queuesStr) {
		parts := strings.Split(pair, ":")
		if len(parts) != 2 {
			continue
		}
		priority, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err == nil {
			queues[strings.TrimSpace(parts[0])] = priority
		}
	}
	if len(queues) == 0 {
		queues["default"] = 1
	}
	return queues
}
