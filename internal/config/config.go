package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Memory backends understood by MEMORY_BACKEND.
const (
	MemoryBackendSQLite   = "sqlite"
	MemoryBackendPostgres = "postgres"
	MemoryBackendRedis    = "redis"
)

// Config holds runtime configuration values for the DineBot server and keyword tool.
type Config struct {
	ServerPort    int
	LogLevel      string
	Environment   string
	SentryDSN     string
	ShutdownGrace time.Duration

	LLMEndpoint string
	LLMAPIKey   string
	LLMModels   []string

	Memory MemorySettings

	CORSAllowedOrigins []string

	KeywordWorkers int
	NATSURL        string
	NATSSubject    string
}

// MemorySettings selects and configures the conversation memory store.
type MemorySettings struct {
	Backend       string
	DBPath        string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

const (
	defaultServerPort     = 5000
	defaultLogLevel       = "info"
	defaultEnvironment    = "development"
	defaultShutdownGrace  = 10 * time.Second
	defaultLLMModel       = "gemini-1.5-flash"
	defaultMemoryBackend  = MemoryBackendSQLite
	defaultDBPath         = "./data/chatbot_memory.db"
	defaultRedisAddr      = "localhost:6379"
	defaultCORSOrigins    = "*"
	defaultKeywordWorkers = 4
	defaultNATSURL        = "nats://127.0.0.1:4222"
	defaultNATSSubject    = "keywords.extract"
)

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:      getEnv("LOG_LEVEL", defaultLogLevel),
		Environment:   getEnv("ENV", defaultEnvironment),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		ShutdownGrace: defaultShutdownGrace,
		LLMEndpoint:   os.Getenv("LLM_ENDPOINT"),
		LLMAPIKey:     getEnv("LLM_API_KEY", os.Getenv("GOOGLE_GEMINI_API_KEY")),
		LLMModels:     []string{defaultLLMModel},
		Memory: MemorySettings{
			Backend:       strings.ToLower(getEnv("MEMORY_BACKEND", defaultMemoryBackend)),
			DBPath:        getEnv("DB_PATH", defaultDBPath),
			DatabaseURL:   os.Getenv("DATABASE_URL"),
			RedisAddr:     getEnv("REDIS_ADDR", defaultRedisAddr),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
		},
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", defaultCORSOrigins)),
		NATSURL:            getEnv("NATS_URL", defaultNATSURL),
		NATSSubject:        getEnv("NATS_SUBJECT", defaultNATSSubject),
	}

	if modelsJSON := os.Getenv("LLM_MODELS"); modelsJSON != "" {
		models, err := parseModels(modelsJSON)
		if err != nil {
			return nil, eris.Wrap(err, "parsing LLM_MODELS")
		}
		cfg.LLMModels = models
	}

	port, err := getInt("SERVER_PORT", defaultServerPort)
	if err != nil {
		return nil, err
	}
	cfg.ServerPort = port

	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	cfg.Memory.RedisDB = redisDB

	workers, err := getInt("KEYWORD_WORKERS", defaultKeywordWorkers)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		return nil, eris.Errorf("KEYWORD_WORKERS must be positive, got %d", workers)
	}
	cfg.KeywordWorkers = workers

	if err := cfg.Memory.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (m MemorySettings) validate() error {
	switch m.Backend {
	case MemoryBackendSQLite:
		if strings.TrimSpace(m.DBPath) == "" {
			return eris.New("DB_PATH is required for the sqlite memory backend")
		}
	case MemoryBackendPostgres:
		if strings.TrimSpace(m.DatabaseURL) == "" {
			return eris.New("DATABASE_URL is required for the postgres memory backend")
		}
	case MemoryBackendRedis:
		if strings.TrimSpace(m.RedisAddr) == "" {
			return eris.New("REDIS_ADDR is required for the redis memory backend")
		}
	default:
		return eris.Errorf("unsupported MEMORY_BACKEND value: %s", m.Backend)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, strconv.Itoa(fallback))
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func parseModels(raw string) ([]string, error) {
	// Accept either a JSON array of strings or an object with a `models` field.
	var arrayInput []string
	if err := json.Unmarshal([]byte(raw), &arrayInput); err == nil {
		if len(arrayInput) == 0 {
			return nil, eris.New("models list is empty")
		}
		return arrayInput, nil
	}

	var objectInput struct {
		Models []string `json:"models"`
	}
	if err := json.Unmarshal([]byte(raw), &objectInput); err != nil {
		return nil, eris.Wrap(err, "decoding JSON")
	}

	if len(objectInput.Models) == 0 {
		return nil, eris.New("models list is empty")
	}

	return objectInput.Models, nil
}
