package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Logging
	LogLevel  string
	LogFormat string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisTimeout  time.Duration

	// Kafka
	KafkaBrokers []string
	KafkaGroupID string
	CasesTopic   string

	// LLM
	LLMAPIKey        string
	LLMBaseURL       string
	LLMModelName     string
	LLMTimeout       time.Duration
	LLMRetryAttempts int

	// Triage
	NarrativeMinLength    int
	QuestionTemplatesPath string
	RedactionRulesPath    string
	DrugCatalogPath       string
	DraftTTL              time.Duration

	// Gateway
	GatewayRateLimitRPS   int
	GatewayRateLimitBurst int
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 90*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "safetyflow"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "safetyflow"),
		PostgresDB:       getEnv("POSTGRES_DB", "safetyflow"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisTimeout:  getDuration("REDIS_TIMEOUT", 2*time.Second),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "icsr-triage"),
		CasesTopic:   getEnv("CASES_TOPIC", "cases"),

		LLMAPIKey:        getEnv("LLM_API_KEY", ""),
		LLMBaseURL:       getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModelName:     getEnv("LLM_MODEL_NAME", "gpt-4o-mini"),
		LLMTimeout:       getDuration("LLM_TIMEOUT", 60*time.Second),
		LLMRetryAttempts: getIntEnv("LLM_RETRY_ATTEMPTS", 2),

		NarrativeMinLength:    getIntEnv("NARRATIVE_MIN_LENGTH", 50),
		QuestionTemplatesPath: getEnv("QUESTION_TEMPLATES_PATH", ""),
		RedactionRulesPath:    getEnv("REDACTION_RULES_PATH", ""),
		DrugCatalogPath:       getEnv("DRUG_CATALOG_PATH", ""),
		DraftTTL:              getDuration("DRAFT_TTL", 72*time.Hour),

		GatewayRateLimitRPS:   getIntEnv("GATEWAY_RATE_LIMIT_RPS", 20),
		GatewayRateLimitBurst: getIntEnv("GATEWAY_RATE_LIMIT_BURST", 40),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
