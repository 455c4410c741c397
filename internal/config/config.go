// Package config loads application configuration from environment variables
// with an optional YAML overlay for engine tunables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// EngineConfig holds the tunables of the relevance and prediction engine.
type EngineConfig struct {
	// CandidatePoolSize is the k used for similarity searches
	CandidatePoolSize int `yaml:"candidate_pool_size"`
	// DefaultMinSimilarity is the candidate floor when a request omits one
	DefaultMinSimilarity float64 `yaml:"default_min_similarity"`
	// DefaultMaxItems caps a selection when a request omits the cap
	DefaultMaxItems int `yaml:"default_max_items"`
	// EventWindowDays is the trailing window mined for predictions
	EventWindowDays int `yaml:"event_window_days"`
	// StrategyTimeoutMS bounds each prediction strategy
	StrategyTimeoutMS int `yaml:"strategy_timeout_ms"`
	// DefaultSuggestionLimit caps prediction output when a request omits it
	DefaultSuggestionLimit int `yaml:"default_suggestion_limit"`
	// GraphMinSimilarity is the similarity floor for graph edges
	GraphMinSimilarity float64 `yaml:"graph_min_similarity"`
	// GraphMaxEdgesPerNode is the soft degree bound per graph node
	GraphMaxEdgesPerNode int `yaml:"graph_max_edges_per_node"`
}

// EmbeddingConfig holds settings for the embedding provider.
type EmbeddingConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"-"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	TimeoutMS  int    `yaml:"timeout_ms"`
	UseMock    bool   `yaml:"use_mock"`
}

// Config holds all application configuration.
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion     string
	DynamoDBTable string
	TypeIndexName string // GSI1 - owner+type fragment queries
	EventBusName  string

	// Lambda configuration
	IsLambda bool

	// Authentication
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// Logging and features
	LogLevel      string
	EnableMetrics bool
	EnableTracing bool
	EnableCORS    bool
	OTLPEndpoint  string

	// EngineConfigPath points at the optional YAML overlay watched for
	// hot reloads; empty disables the overlay.
	EngineConfigPath string

	Engine    EngineConfig
	Embedding EmbeddingConfig
}

// LoadConfig loads configuration from environment variables and, when
// configured, applies the YAML engine overlay on top.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable: getEnv("TABLE_NAME", "promptvault"),
		TypeIndexName: getEnv("TYPE_INDEX_NAME", "TypeIndex"),
		EventBusName:  getEnv("EVENT_BUS_NAME", "promptvault-events"),

		IsLambda: getEnvBool("IS_LAMBDA", false),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "promptvault-backend"),
		JWTAudience: getEnv("JWT_AUDIENCE", "promptvault"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
		OTLPEndpoint:  getEnv("OTLP_ENDPOINT", "localhost:4317"),

		EngineConfigPath: getEnv("ENGINE_CONFIG_PATH", ""),

		Engine: EngineConfig{
			CandidatePoolSize:      getEnvInt("ENGINE_CANDIDATE_POOL_SIZE", 50),
			DefaultMinSimilarity:   getEnvFloat("ENGINE_DEFAULT_MIN_SIMILARITY", 0.65),
			DefaultMaxItems:        getEnvInt("ENGINE_DEFAULT_MAX_ITEMS", 10),
			EventWindowDays:        getEnvInt("ENGINE_EVENT_WINDOW_DAYS", 30),
			StrategyTimeoutMS:      getEnvInt("ENGINE_STRATEGY_TIMEOUT_MS", 2000),
			DefaultSuggestionLimit: getEnvInt("ENGINE_DEFAULT_SUGGESTION_LIMIT", 5),
			GraphMinSimilarity:     getEnvFloat("ENGINE_GRAPH_MIN_SIMILARITY", 0.70),
			GraphMaxEdgesPerNode:   getEnvInt("ENGINE_GRAPH_MAX_EDGES_PER_NODE", 10),
		},
		Embedding: EmbeddingConfig{
			BaseURL:    getEnv("EMBEDDING_BASE_URL", ""),
			APIKey:     getEnv("EMBEDDING_API_KEY", ""),
			Model:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 256),
			TimeoutMS:  getEnvInt("EMBEDDING_TIMEOUT_MS", 10000),
			UseMock:    getEnvBool("EMBEDDING_USE_MOCK", false),
		},
	}

	if cfg.EngineConfigPath != "" {
		if err := cfg.applyOverlay(cfg.EngineConfigPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlay is the YAML shape of the hot-reloadable engine file.
type overlay struct {
	Engine    *EngineConfig    `yaml:"engine"`
	Embedding *EmbeddingConfig `yaml:"embedding"`
}

// applyOverlay merges the YAML file's engine and embedding sections over the
// current values.
func (c *Config) applyOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read engine config %s: %w", path, err)
	}

	var o overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("failed to parse engine config %s: %w", path, err)
	}

	if o.Engine != nil {
		c.Engine = *o.Engine
	}
	if o.Embedding != nil {
		apiKey := c.Embedding.APIKey
		c.Embedding = *o.Embedding
		c.Embedding.APIKey = apiKey
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.DynamoDBTable == "" {
		return fmt.Errorf("TABLE_NAME is required")
	}
	if c.Environment == "production" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.Engine.DefaultMinSimilarity < 0 || c.Engine.DefaultMinSimilarity > 1 {
		return fmt.Errorf("ENGINE_DEFAULT_MIN_SIMILARITY must be between 0 and 1")
	}
	if c.Engine.GraphMinSimilarity < 0 || c.Engine.GraphMinSimilarity > 1 {
		return fmt.Errorf("ENGINE_GRAPH_MIN_SIMILARITY must be between 0 and 1")
	}
	if c.Engine.CandidatePoolSize <= 0 {
		return fmt.Errorf("ENGINE_CANDIDATE_POOL_SIZE must be positive")
	}
	if c.Engine.EventWindowDays <= 0 {
		return fmt.Errorf("ENGINE_EVENT_WINDOW_DAYS must be positive")
	}
	if !c.Embedding.UseMock && c.Embedding.BaseURL == "" && c.Environment == "production" {
		return fmt.Errorf("EMBEDDING_BASE_URL is required unless EMBEDDING_USE_MOCK is set")
	}
	return nil
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
