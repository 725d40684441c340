package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ai_orchestrator/internal/models"
)

// Config holds configuration for the orchestrator.
type Config struct {
	HTTPPort        string
	JWTSecret       []byte
	EncryptionKey   string // base64, 32 bytes once decoded
	DefaultsFile    string
	ShutdownTimeout time.Duration
	Database        DatabaseConfig
	Cache           CacheConfig
	Redis           RedisConfig
	Provider        ProviderConfig
	Queue           QueueConfig
	Archive         ArchiveConfig
	OrgConfig       OrgConfigConfig
	RateLimit       RateLimitConfig
}

// DatabaseConfig holds database connection settings. An empty URL runs the
// orchestrator without persistence.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// CacheConfig holds cache settings
type CacheConfig struct {
	MembershipCacheSize int
	MembershipCacheTTL  time.Duration
}

// RedisConfig holds Redis connection settings. An empty address selects
// in-memory queues and disables spend tracking.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// ProviderConfig holds provider-related settings
type ProviderConfig struct {
	ReloadInterval time.Duration // How often to reload providers from database
	RequestTimeout time.Duration // Per-attempt timeout for provider requests
	ProbeTimeout   time.Duration // Local provider reachability probe, at most 5s
}

// QueueConfig holds the usage and billing worker settings
type QueueConfig struct {
	BatchSize    int
	BatchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// ArchiveConfig holds configuration for the S3 usage archive
type ArchiveConfig struct {
	Enabled   bool   // Whether to archive usage batches to S3
	S3Bucket  string // S3 bucket name
	S3Region  string // AWS region
	S3Prefix  string // Prefix for S3 keys (e.g., "usage/")
	Endpoint  string // Custom endpoint for S3-compatible stores
	AccessKey string // Static credentials, used with Endpoint
	SecretKey string
	PodName   string // Pod identifier for multi-pod deployments
}

// RateLimitConfig holds analysis requests per minute for each tier; zero
// means unlimited. Limits are only enforced when Redis is configured.
type RateLimitConfig struct {
	PerMinute map[models.Tier]int
}

// OrgConfigConfig holds organization configuration rules
type OrgConfigConfig struct {
	MinimumPlan models.Tier // Lowest plan allowed to configure custom providers
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:        getEnvString("HTTP_PORT", "8080"),
		JWTSecret:       []byte(getEnvString("JWT_SECRET", "supersecretkey")),
		EncryptionKey:   getEnvString("ENCRYPTION_KEY", ""),
		DefaultsFile:    getEnvString("DEFAULTS_FILE", ""),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		Database: DatabaseConfig{
			URL:             getEnvString("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Cache: CacheConfig{
			MembershipCacheSize: getEnvInt("CACHE_MEMBERSHIP_SIZE", 1000),
			MembershipCacheTTL:  getEnvDuration("CACHE_MEMBERSHIP_TTL", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:  getEnvString("REDIS_ADDRESS", ""),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Provider: ProviderConfig{
			ReloadInterval: getEnvDuration("PROVIDER_RELOAD_INTERVAL", 5*time.Minute),
			RequestTimeout: getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 60*time.Second),
			ProbeTimeout:   getEnvDuration("LOCAL_PROBE_TIMEOUT", 5*time.Second),
		},
		Queue: QueueConfig{
			BatchSize:    getEnvInt("QUEUE_BATCH_SIZE", 100),
			BatchTimeout: getEnvDuration("QUEUE_BATCH_TIMEOUT", 5*time.Second),
			MaxRetries:   getEnvInt("QUEUE_MAX_RETRIES", 3),
			RetryBackoff: getEnvDuration("QUEUE_RETRY_BACKOFF", 1*time.Second),
		},
		Archive: ArchiveConfig{
			Enabled:   getEnvBool("USAGE_ARCHIVE_ENABLED", false),
			S3Bucket:  getEnvString("USAGE_ARCHIVE_S3_BUCKET", ""),
			S3Region:  getEnvString("USAGE_ARCHIVE_S3_REGION", "us-east-1"),
			S3Prefix:  getEnvString("USAGE_ARCHIVE_S3_PREFIX", "usage/"),
			Endpoint:  getEnvString("USAGE_ARCHIVE_S3_ENDPOINT", ""),
			AccessKey: getEnvString("USAGE_ARCHIVE_S3_ACCESS_KEY", ""),
			SecretKey: getEnvString("USAGE_ARCHIVE_S3_SECRET_KEY", ""),
			PodName:   getEnvString("POD_NAME", "orchestrator-0"),
		},
		OrgConfig: OrgConfigConfig{
			MinimumPlan: models.Tier(strings.ToLower(getEnvString("ORG_CONFIG_MIN_PLAN", string(models.TierProfessional)))),
		},
		RateLimit: RateLimitConfig{
			PerMinute: map[models.Tier]int{
				models.TierTrial:        getEnvInt("RATE_LIMIT_TRIAL", 10),
				models.TierStandard:     getEnvInt("RATE_LIMIT_STANDARD", 60),
				models.TierProfessional: getEnvInt("RATE_LIMIT_PROFESSIONAL", 300),
				models.TierEnterprise:   getEnvInt("RATE_LIMIT_ENTERPRISE", 0),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.JWTSecret) == 0 {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.Provider.ProbeTimeout <= 0 || c.Provider.ProbeTimeout > 5*time.Second {
		return fmt.Errorf("LOCAL_PROBE_TIMEOUT must be between 0 and 5s, got %s", c.Provider.ProbeTimeout)
	}
	if !c.OrgConfig.MinimumPlan.IsValid() {
		return fmt.Errorf("ORG_CONFIG_MIN_PLAN: unknown tier %q", c.OrgConfig.MinimumPlan)
	}
	if c.Database.URL != "" && c.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required when DATABASE_URL is set")
	}
	if c.Archive.Enabled && c.Archive.S3Bucket == "" {
		return fmt.Errorf("USAGE_ARCHIVE_S3_BUCKET is required when the usage archive is enabled")
	}
	if c.Archive.Enabled && c.Database.URL == "" {
		return fmt.Errorf("the usage archive requires DATABASE_URL")
	}
	return nil
}
