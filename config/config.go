package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the complaint service.
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port           string
	TrustedProxies []string

	// Auth collaborator
	AuthServiceURL string

	// Classifier configuration
	ClassifierURL     string
	ClassifierTimeout time.Duration
	ConfidenceFloor   float64
	ClassifierWorkers int
	ClassifierQueue   int

	// RabbitMQ configuration (optional out-of-process classification)
	AMQPURL             string
	AMQPExchange        string
	AMQPRoutingKey      string
	AMQPClassifyQueue   string
	PublishClassifyJobs bool

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables, with an optional
// .env file for local runs.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "civiceye"),

		Port: getEnv("PORT", "8080"),

		AuthServiceURL: getEnv("AUTH_SERVICE_URL", ""),

		ClassifierURL:     getEnv("CLASSIFIER_URL", ""),
		ClassifierTimeout: getDurationEnv("CLASSIFIER_TIMEOUT", 30*time.Second),
		ConfidenceFloor:   getFloatEnv("CLASSIFIER_CONFIDENCE_FLOOR", 0.6),
		ClassifierWorkers: getIntEnv("CLASSIFIER_WORKERS", 4),
		ClassifierQueue:   getIntEnv("CLASSIFIER_QUEUE_SIZE", 256),

		AMQPURL:             getEnv("AMQP_URL", ""),
		AMQPExchange:        getEnv("AMQP_EXCHANGE", "civiceye-exchange"),
		AMQPRoutingKey:      getEnv("AMQP_ROUTING_KEY", "complaint.submitted"),
		AMQPClassifyQueue:   getEnv("AMQP_CLASSIFY_QUEUE", "civiceye-classify"),
		PublishClassifyJobs: getBoolEnv("AMQP_PUBLISH_CLASSIFY_JOBS", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if tp := os.Getenv("TRUSTED_PROXIES"); tp != "" {
		for _, p := range strings.Split(tp, ",") {
			cfg.TrustedProxies = append(cfg.TrustedProxies, strings.TrimSpace(p))
		}
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
