package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	strutil "erasure/pkg/platform/strings"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devJWTSigningKey       = "dev-secret-key-change-in-production"
	devAnonymizationSecret = "dev-anonymization-secret-change-in-production"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Deletion DeletionConfig
	Gate     GateConfig
	LogLevel string
	Env      string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr               string
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
}

// DatabaseConfig selects the Postgres backend. An empty URL runs on in-memory stores.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig configures the status cache and token revocation list.
// An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables the audit stream relay when Brokers is non-empty.
type KafkaConfig struct {
	Brokers       []string
	AuditTopic    string
	RelayInterval time.Duration
	RelayBatch    int

	// Used only when the relay creates the topic on startup.
	TopicPartitions  int
	TopicReplication int
}

type AuthConfig struct {
	JWTSigningKey  string
	JWTIssuer      string
	JWTAudience    string
	AdminTokenHash string
}

type DeletionConfig struct {
	GracePeriod         time.Duration
	BatchSize           int
	Workers             int
	JobInterval         time.Duration
	TxTimeout           time.Duration
	SchedulerEnabled    bool
	AnonymizationSecret string
}

type GateConfig struct {
	ExtraAllowedRoutes []string
	StatusCacheTTL     time.Duration
}

// FromEnv builds the config from environment variables and validates it.
func FromEnv() (Config, error) {
	var errs []error
	cfg := Config{
		Env:      getString("ENVIRONMENT", EnvDevelopment),
		LogLevel: getString("LOG_LEVEL", "info"),
		Server: Server{
			Addr:               getString("ADDR", ":8080"),
			CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS"),
			ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: getInt("DATABASE_MAX_OPEN_CONNS", 20, &errs),
			MaxIdleConns: getInt("DATABASE_MAX_IDLE_CONNS", 5, &errs),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10, &errs),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2, &errs),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second, &errs),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 500*time.Millisecond, &errs),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 500*time.Millisecond, &errs),
		},
		Kafka: KafkaConfig{
			Brokers:          getList("KAFKA_BROKERS"),
			AuditTopic:       getString("KAFKA_AUDIT_TOPIC", "account.lifecycle.audit"),
			RelayInterval:    getDuration("KAFKA_RELAY_INTERVAL", 2*time.Second, &errs),
			RelayBatch:       getInt("KAFKA_RELAY_BATCH", 100, &errs),
			TopicPartitions:  getInt("KAFKA_AUDIT_TOPIC_PARTITIONS", 3, &errs),
			TopicReplication: getInt("KAFKA_AUDIT_TOPIC_REPLICATION", 1, &errs),
		},
		Auth: AuthConfig{
			JWTSigningKey:  getString("JWT_SIGNING_KEY", devJWTSigningKey),
			JWTIssuer:      getString("JWT_ISSUER", "erasure"),
			JWTAudience:    getString("JWT_AUDIENCE", "erasure-api"),
			AdminTokenHash: os.Getenv("ADMIN_TOKEN_HASH"),
		},
		Deletion: DeletionConfig{
			GracePeriod:         getDuration("DELETION_GRACE_PERIOD", 7*24*time.Hour, &errs),
			BatchSize:           getInt("DELETION_BATCH_SIZE", 200, &errs),
			Workers:             getInt("DELETION_WORKERS", 4, &errs),
			JobInterval:         getDuration("DELETION_JOB_INTERVAL", time.Hour, &errs),
			TxTimeout:           getDuration("DELETION_TX_TIMEOUT", 30*time.Second, &errs),
			SchedulerEnabled:    getBool("SCHEDULER_ENABLED", true, &errs),
			AnonymizationSecret: getString("ANONYMIZATION_SECRET", devAnonymizationSecret),
		},
		Gate: GateConfig{
			ExtraAllowedRoutes: getList("GATE_EXTRA_ALLOWED_ROUTES"),
			StatusCacheTTL:     getDuration("STATUS_CACHE_TTL", 30*time.Second, &errs),
		},
	}

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func (c Config) IsProduction() bool { return c.Env == EnvProduction }

func (c Config) validate() []error {
	var errs []error
	if c.Deletion.GracePeriod <= 0 {
		errs = append(errs, errors.New("DELETION_GRACE_PERIOD must be positive"))
	}
	if c.Deletion.BatchSize <= 0 {
		errs = append(errs, errors.New("DELETION_BATCH_SIZE must be positive"))
	}
	if c.Deletion.Workers <= 0 {
		errs = append(errs, errors.New("DELETION_WORKERS must be positive"))
	}
	if c.Deletion.JobInterval <= 0 {
		errs = append(errs, errors.New("DELETION_JOB_INTERVAL must be positive"))
	}
	if c.Deletion.AnonymizationSecret == "" {
		errs = append(errs, errors.New("ANONYMIZATION_SECRET is required"))
	}
	if c.Kafka.TopicPartitions < 1 || c.Kafka.TopicPartitions > math.MaxInt32 {
		errs = append(errs, errors.New("KAFKA_AUDIT_TOPIC_PARTITIONS is out of range"))
	}
	if c.Kafka.TopicReplication < 1 || c.Kafka.TopicReplication > math.MaxInt16 {
		errs = append(errs, errors.New("KAFKA_AUDIT_TOPIC_REPLICATION is out of range"))
	}
	if c.IsProduction() {
		if c.Auth.JWTSigningKey == devJWTSigningKey {
			errs = append(errs, errors.New("JWT_SIGNING_KEY must be set in production"))
		}
		if c.Deletion.AnonymizationSecret == devAnonymizationSecret {
			errs = append(errs, errors.New("ANONYMIZATION_SECRET must be set in production"))
		}
		if c.Auth.AdminTokenHash == "" {
			errs = append(errs, errors.New("ADMIN_TOKEN_HASH must be set in production"))
		}
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL must be set in production"))
		}
		if len(c.Kafka.Brokers) > 0 && c.Kafka.TopicReplication < 3 {
			errs = append(errs, errors.New("KAFKA_AUDIT_TOPIC_REPLICATION must be at least 3 in production"))
		}
	}
	return errs
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getList(key string) []string {
	return strutil.SplitList(os.Getenv(key))
}

func getInt(key string, fallback int, errs *[]error) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func getBool(key string, fallback bool, errs *[]error) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}
