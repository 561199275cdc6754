package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	LogLevel        string
	JWTSigningKey   string
	JWTIssuer       string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	Database     Database
	Redis        RedisConfig
	Kafka        Kafka
	Keys         Keys
	Verification Verification
	Content      Content
	Documents    Documents
}

// Database configures the Postgres connection. An empty URL selects the
// in-memory stores.
type Database struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// AutoMigrate applies the embedded schema at startup.
	AutoMigrate bool
}

// RedisConfig configures the Redis client. An empty URL disables caching.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the outbox relay and notification producer. No brokers
// disables publishing.
type Kafka struct {
	Brokers            []string
	AuditTopic         string
	NotificationTopic  string
	RelayInterval      time.Duration
	RelayBatchSize     int
	EnsureTopics       bool
	TopicPartitions    int32
	TopicReplicaFactor int16
}

// Keys configures key generation and key policy.
type Keys struct {
	Policy      string
	KeySize     int
	Concurrency int64
	// MasterKey is a base64 32-byte key that seals private keys at rest.
	MasterKey string
}

// Verification configures the public verification surface.
type Verification struct {
	BaseURL        string
	PublicKeyTTL   time.Duration
	RecorderBuffer int
}

// Content configures where document bytes referenced by fileUrl are read from.
type Content struct {
	Root string
}

// Documents configures document orchestration.
type Documents struct {
	BatchConcurrency int
	MaxBatchSize     int
	AuditBuffer      int
	NotifyBuffer     int
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present.
func FromEnv() Server {
	_ = godotenv.Load()

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:            envString("DOCSIGN_ADDR", ":8080"),
		LogLevel:        envString("LOG_LEVEL", "info"),
		JWTSigningKey:   jwtSigningKey,
		JWTIssuer:       envString("JWT_ISSUER", "docsign"),
		RequestTimeout:  envDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Database: Database{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			AutoMigrate:     os.Getenv("DATABASE_AUTO_MIGRATE") == "true",
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:            envList("KAFKA_BROKERS"),
			AuditTopic:         envString("KAFKA_AUDIT_TOPIC", "docsign.audit"),
			NotificationTopic:  envString("KAFKA_NOTIFICATION_TOPIC", "docsign.notifications"),
			RelayInterval:      envDuration("OUTBOX_RELAY_INTERVAL", time.Second),
			RelayBatchSize:     envInt("OUTBOX_RELAY_BATCH_SIZE", 100),
			EnsureTopics:       os.Getenv("KAFKA_ENSURE_TOPICS") != "false",
			TopicPartitions:    int32(envInt("KAFKA_TOPIC_PARTITIONS", 3)),
			TopicReplicaFactor: int16(envInt("KAFKA_TOPIC_REPLICATION", 1)),
		},
		Keys: Keys{
			Policy:      envString("KEY_POLICY", "single_active"),
			KeySize:     envInt("KEY_SIZE", 4096),
			Concurrency: int64(envInt("KEYGEN_CONCURRENCY", 2)),
			MasterKey:   os.Getenv("KEY_MASTER_KEY"),
		},
		Verification: Verification{
			BaseURL:        strings.TrimRight(envString("VERIFICATION_BASE_URL", "http://localhost:8080"), "/"),
			PublicKeyTTL:   envDuration("PUBLIC_KEY_CACHE_TTL", 10*time.Minute),
			RecorderBuffer: envInt("VERIFICATION_RECORD_BUFFER", 1024),
		},
		Content: Content{
			Root: envString("CONTENT_ROOT", "./data/content"),
		},
		Documents: Documents{
			BatchConcurrency: envInt("BATCH_CONCURRENCY", 8),
			MaxBatchSize:     envInt("BATCH_MAX_SIZE", 100),
			AuditBuffer:      envInt("AUDIT_BUFFER", 1024),
			NotifyBuffer:     envInt("NOTIFY_BUFFER", 256),
		},
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
