package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Storage StorageConfig
	Server  ServerConfig
	Cache   CacheConfig
	Events  EventsConfig
	Log     LogConfig
	Seed    bool
}

// StorageConfig holds storage-related configuration
type StorageConfig struct {
	Type           string // "mongodb", "dynamodb", "postgresql"
	MongoDBURI     string
	Database       string
	Collection     string
	Region         string // For AWS DynamoDB
	TableName      string
	Endpoint       string // Custom endpoint for local testing
	PostgresURI    string
	ConnectTimeout time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	StaticDir    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CacheConfig holds Redis cache configuration. An empty address disables the cache.
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// EventsConfig holds NATS configuration. An empty URL disables publishing.
type EventsConfig struct {
	NATSURL       string
	SubjectPrefix string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string // "json" or "console"
}

// Load loads configuration from a .env file (if any) and environment variables with defaults
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Storage: StorageConfig{
			Type:           getEnv("STORAGE_TYPE", "mongodb"),
			MongoDBURI:     getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "restful_blog_app"),
			Collection:     getEnv("MONGODB_COLLECTION", "blogs"),
			Region:         getEnv("AWS_REGION", "us-west-2"),
			TableName:      getEnv("TABLE_NAME", "blogs"),
			Endpoint:       getEnv("DYNAMODB_ENDPOINT", ""), // For local DynamoDB
			PostgresURI:    getEnv("POSTGRES_URI", ""),
			ConnectTimeout: getEnvDuration("STORAGE_CONNECT_TIMEOUT", 10*time.Second),
		},
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 3000),
			StaticDir:    getEnv("STATIC_DIR", "public"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		},
		Cache: CacheConfig{
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			TTL:           getEnvDuration("CACHE_TTL", 5*time.Minute),
		},
		Events: EventsConfig{
			NATSURL:       getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "blog"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Seed: getEnvBool("SEED_SAMPLE_POST", false),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
