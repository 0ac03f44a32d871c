package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion           string
	GraphTable          string
	EventBusName        string
	EventSource         string
	CloudWatchNamespace string

	// Lambda configuration
	IsLambda           bool
	LambdaFunctionName string

	// Extraction
	PolicyFile       string
	GraphSink        string // "memory" or "dynamodb"
	GraphTTL         time.Duration
	MaxSessions      int
	SessionRetention time.Duration
	DefaultChunkSize int
	SubscriberBuffer int

	// Upstream generation
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	UpstreamTimeout   time.Duration
	BreakerMaxFailure int
	BreakerCooldown   time.Duration
	GenerateRateLimit int

	// Logging
	LogLevel string

	// Feature flags
	EnableMetrics    bool
	EnableTracing    bool
	EnableCORS       bool
	EnableEventBus   bool
	EnableCloudWatch bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress:       getEnv("SERVER_ADDRESS", ":8080"),
		Environment:         getEnv("ENVIRONMENT", "development"),
		AWSRegion:           getEnv("AWS_REGION", "us-west-2"),
		GraphTable:          getEnv("GRAPH_TABLE", getEnv("TABLE_NAME", "brain2-extractions")),
		EventBusName:        getEnv("EVENT_BUS_NAME", "brain2-events"),
		EventSource:         getEnv("EVENT_SOURCE", "brain2.extractor"),
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "Brain2/Extractor"),

		// Lambda configuration
		IsLambda:           getEnvBool("IS_LAMBDA", false),
		LambdaFunctionName: getEnv("AWS_LAMBDA_FUNCTION_NAME", ""),

		// Extraction
		PolicyFile:       getEnv("EXTRACTION_POLICY_FILE", ""),
		GraphSink:        getEnv("GRAPH_SINK", "memory"),
		GraphTTL:         getEnvDuration("GRAPH_TTL", 0),
		MaxSessions:      getEnvInt("MAX_SESSIONS", 1000),
		SessionRetention: getEnvDuration("SESSION_RETENTION", 5*time.Minute),
		DefaultChunkSize: getEnvInt("DEFAULT_CHUNK_SIZE", 64),
		SubscriberBuffer: getEnvInt("SUBSCRIBER_BUFFER", 256),

		// Upstream generation
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		UpstreamTimeout:   getEnvDuration("UPSTREAM_TIMEOUT", 2*time.Minute),
		BreakerMaxFailure: getEnvInt("BREAKER_MAX_FAILURES", 5),
		BreakerCooldown:   getEnvDuration("BREAKER_COOLDOWN", 30*time.Second),
		GenerateRateLimit: getEnvInt("GENERATE_RATE_LIMIT", 10),

		// Logging and features
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		EnableMetrics:    getEnvBool("ENABLE_METRICS", true),
		EnableTracing:    getEnvBool("ENABLE_TRACING", false),
		EnableCORS:       getEnvBool("ENABLE_CORS", true),
		EnableEventBus:   getEnvBool("ENABLE_EVENT_BUS", false),
		EnableCloudWatch: getEnvBool("ENABLE_CLOUDWATCH", false),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.GraphSink {
	case "memory", "dynamodb":
	default:
		return fmt.Errorf("GRAPH_SINK must be memory or dynamodb, got %q", c.GraphSink)
	}

	if c.GraphSink == "dynamodb" && c.GraphTable == "" {
		return fmt.Errorf("GRAPH_TABLE is required for the dynamodb sink")
	}
	if c.EnableEventBus && c.EventBusName == "" {
		return fmt.Errorf("EVENT_BUS_NAME is required when the event bus is enabled")
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("MAX_SESSIONS must be positive")
	}
	if c.GenerateRateLimit < 0 {
		return fmt.Errorf("GENERATE_RATE_LIMIT must not be negative")
	}
	if c.DefaultChunkSize < 1 {
		return fmt.Errorf("DEFAULT_CHUNK_SIZE must be positive")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
