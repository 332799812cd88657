package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string `env:"APP_NAME" env-default:"gomapping-api"`
	Port                          int    `env:"PORT" env-default:"3005"`
	Version                       string `env:"APP_VERSION" env-default:"dev"`
	LogLevel                      string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool   `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int    `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"60"`
	HttpServerReadTimeoutSeconds  int    `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int    `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`

	// PostgreSQL
	DatabaseHost                string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName            string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword            string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                string        `env:"DB_NAME" env-default:"gomapping"`
	DatabaseSSLMode             string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns        int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns        int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime     time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion    int           `env:"DB_MIGRATION_VERSION" env-default:"0"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Cache
	CacheTTL time.Duration `env:"CACHE_TTL" env-default:"10m"`

	// Upstream CSV feeds
	GlobalOrgFeedURL   string        `env:"GLOBAL_ORG_FEED_URL" env-default:""`
	OrgMappingFeedURL  string        `env:"ORG_MAPPING_FEED_URL" env-default:""`
	FeedUsername       string        `env:"FEED_USERNAME" env-default:""`
	FeedPassword       string        `env:"FEED_PASSWORD" env-default:""`
	FeedTimeout        time.Duration `env:"FEED_TIMEOUT" env-default:"60s"`
	SyncMinInterval    time.Duration `env:"SYNC_MIN_INTERVAL" env-default:"30m"`
	SyncChecksumSample int64         `env:"SYNC_CHECKSUM_SAMPLE_BYTES" env-default:"10240"`
	SyncLockTTL        time.Duration `env:"SYNC_LOCK_TTL" env-default:"10m"`

	// Similarity engine
	SimilarityThreshold float64 `env:"SIMILARITY_THRESHOLD" env-default:"70"`
	SimilarityMaxBucket int     `env:"SIMILARITY_MAX_BUCKET" env-default:"250"`

	// Kafka Producer settings
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"registry-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Advice endpoint (OpenAI-compatible chat completions)
	AdvisorEndpoint    string  `env:"ADVISOR_ENDPOINT" env-default:""`
	AdvisorAPIKey      string  `env:"ADVISOR_API_KEY" env-default:""`
	AdvisorModel       string  `env:"ADVISOR_MODEL" env-default:"gpt-4.1"`
	AdvisorTemperature float64 `env:"ADVISOR_TEMPERATURE" env-default:"0.3"`
	AdvisorMaxTokens   int     `env:"ADVISOR_MAX_TOKENS" env-default:"1024"`

	// Tracing
	TracingEnabled  bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingEndpoint string `env:"TRACING_ENDPOINT" env-default:"localhost:4317"`
}

// Load reads configuration from the environment, honoring a local .env
// file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
