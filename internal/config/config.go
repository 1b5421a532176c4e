package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Драйверы хранилища
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// Режимы рассылки событий
const (
	BroadcastModeLocal = "local"
	BroadcastModeRedis = "redis"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBMaxConns  int    `env:"DB_MAX_CONNS" envDefault:"10"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// Mongo Config
	MongoURI      string `env:"MONGODB_URI"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"civic"`

	// Redis Config
	RedisAddr string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string        `env:"REDIS_PASSWORD"`
	RedisDB   int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	// Auth Config
	JWTSecret   string   `env:"JWT_SECRET"`
	CORSOrigins []string `env:"CORS_ORIGINS"`

	// Лимит создания обращений на пользователя за сутки, 0 - без лимита
	IssueRateLimit int `env:"ISSUE_RATE_LIMIT" envDefault:"20"`

	// Push Config
	PushAPIURL           string        `env:"PUSH_API_URL" envDefault:"https://exp.host/--/api/v2/push/send"`
	PushAccessToken      string        `env:"PUSH_ACCESS_TOKEN"`
	PushTimeout          time.Duration `env:"PUSH_TIMEOUT" envDefault:"5s"`
	PushMaxRetries       int           `env:"PUSH_MAX_RETRIES" envDefault:"3"`
	PushBaseDelay        time.Duration `env:"PUSH_BASE_DELAY" envDefault:"500ms"`
	NotifyEnqueueTimeout time.Duration `env:"NOTIFY_ENQUEUE_TIMEOUT" envDefault:"2s"`

	// AI Config, пустой адрес отключает классификацию
	AIServiceURL string        `env:"AI_SERVICE_URL"`
	AITimeout    time.Duration `env:"AI_TIMEOUT" envDefault:"5s"`

	// Broadcast Config
	BroadcastMode    string `env:"BROADCAST_MODE" envDefault:"local"`
	BroadcastChannel string `env:"BROADCAST_CHANNEL" envDefault:"issue_events"`
	HubBufferSize    int    `env:"HUB_BUFFER_SIZE" envDefault:"256"`

	// Upload Config (S3-совместимое хранилище)
	S3Bucket        string `env:"S3_BUCKET"`
	S3Region        string `env:"S3_REGION" envDefault:"auto"`
	S3Endpoint      string `env:"S3_ENDPOINT"`
	S3AccessKey     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey     string `env:"S3_SECRET_ACCESS_KEY"`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
	MaxUploadBytes  int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		StoreDriver:          getEnv("STORE_DRIVER", StoreDriverPostgres),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		DBMaxConns:           getEnvAsInt("DB_MAX_CONNS", 10),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
		MongoURI:             os.Getenv("MONGODB_URI"),
		MongoDatabase:        getEnv("MONGODB_DATABASE", "civic"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getEnvAsInt("REDIS_DB", 0),
		CacheTTL:             getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		CORSOrigins:          getEnvAsList("CORS_ORIGINS"),
		IssueRateLimit:       getEnvAsInt("ISSUE_RATE_LIMIT", 20),
		PushAPIURL:           getEnv("PUSH_API_URL", "https://exp.host/--/api/v2/push/send"),
		PushAccessToken:      os.Getenv("PUSH_ACCESS_TOKEN"),
		PushTimeout:          getEnvAsDuration("PUSH_TIMEOUT", 5*time.Second),
		PushMaxRetries:       getEnvAsInt("PUSH_MAX_RETRIES", 3),
		PushBaseDelay:        getEnvAsDuration("PUSH_BASE_DELAY", 500*time.Millisecond),
		NotifyEnqueueTimeout: getEnvAsDuration("NOTIFY_ENQUEUE_TIMEOUT", 2*time.Second),
		AIServiceURL:         os.Getenv("AI_SERVICE_URL"),
		AITimeout:            getEnvAsDuration("AI_TIMEOUT", 5*time.Second),
		BroadcastMode:        getEnv("BROADCAST_MODE", BroadcastModeLocal),
		BroadcastChannel:     getEnv("BROADCAST_CHANNEL", "issue_events"),
		HubBufferSize:        getEnvAsInt("HUB_BUFFER_SIZE", 256),
		S3Bucket:             os.Getenv("S3_BUCKET"),
		S3Region:             getEnv("S3_REGION", "auto"),
		S3Endpoint:           os.Getenv("S3_ENDPOINT"),
		S3AccessKey:          os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey:          os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3PublicBaseURL:      os.Getenv("S3_PUBLIC_BASE_URL"),
		MaxUploadBytes:       int64(getEnvAsInt("MAX_UPLOAD_BYTES", 10<<20)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность обязательных параметров
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
	case StoreDriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI environment variable is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.BroadcastMode {
	case BroadcastModeLocal, BroadcastModeRedis:
	default:
		return fmt.Errorf("unknown BROADCAST_MODE %q", c.BroadcastMode)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	return nil
}

// AnalysisEnabled сообщает, задан ли сервис классификации обращений
func (c *Config) AnalysisEnabled() bool {
	return c.AIServiceURL != ""
}

// UploadsEnabled сообщает, настроено ли хранилище изображений
func (c *Config) UploadsEnabled() bool {
	return c.S3Bucket != ""
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}

// getEnvAsList разбирает список значений через запятую
func getEnvAsList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
