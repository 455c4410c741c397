package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.ServerAddress)
		assert.Equal(t, "promptvault", cfg.DynamoDBTable)
		assert.Equal(t, 50, cfg.Engine.CandidatePoolSize)
		assert.Equal(t, 0.65, cfg.Engine.DefaultMinSimilarity)
		assert.Equal(t, 30, cfg.Engine.EventWindowDays)
		assert.Equal(t, 0.70, cfg.Engine.GraphMinSimilarity)
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		t.Setenv("TABLE_NAME", "custom-table")
		t.Setenv("ENGINE_DEFAULT_MIN_SIMILARITY", "0.8")
		t.Setenv("ENABLE_CORS", "false")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "custom-table", cfg.DynamoDBTable)
		assert.Equal(t, 0.8, cfg.Engine.DefaultMinSimilarity)
		assert.False(t, cfg.EnableCORS)
	})

	t.Run("YAMLOverlayApplied", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "engine.yaml")
		overlay := `
engine:
  candidate_pool_size: 25
  default_min_similarity: 0.5
  default_max_items: 4
  event_window_days: 14
  strategy_timeout_ms: 1500
  default_suggestion_limit: 3
  graph_min_similarity: 0.75
  graph_max_edges_per_node: 6
`
		require.NoError(t, os.WriteFile(path, []byte(overlay), 0o600))
		t.Setenv("ENGINE_CONFIG_PATH", path)

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, 25, cfg.Engine.CandidatePoolSize)
		assert.Equal(t, 0.5, cfg.Engine.DefaultMinSimilarity)
		assert.Equal(t, 14, cfg.Engine.EventWindowDays)
	})

	t.Run("OverlayNeverLeaksAPIKeyFromEnv", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "engine.yaml")
		overlay := `
embedding:
  base_url: http://embeddings.internal:8081/v1
  model: text-embedding-3-small
  dimensions: 256
  timeout_ms: 5000
`
		require.NoError(t, os.WriteFile(path, []byte(overlay), 0o600))
		t.Setenv("ENGINE_CONFIG_PATH", path)
		t.Setenv("EMBEDDING_API_KEY", "secret-key")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "http://embeddings.internal:8081/v1", cfg.Embedding.BaseURL)
		assert.Equal(t, "secret-key", cfg.Embedding.APIKey)
	})

	t.Run("MalformedOverlayFails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "engine.yaml")
		require.NoError(t, os.WriteFile(path, []byte("engine: [not a map"), 0o600))
		t.Setenv("ENGINE_CONFIG_PATH", path)

		_, err := LoadConfig()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DynamoDBTable: "promptvault",
			Environment:   "development",
			Engine: EngineConfig{
				CandidatePoolSize:    50,
				DefaultMinSimilarity: 0.65,
				EventWindowDays:      30,
				GraphMinSimilarity:   0.70,
			},
			Embedding: EmbeddingConfig{UseMock: true},
		}
	}

	t.Run("ValidConfigPasses", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("TableRequired", func(t *testing.T) {
		cfg := valid()
		cfg.DynamoDBTable = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("JWTSecretRequiredInProduction", func(t *testing.T) {
		cfg := valid()
		cfg.Environment = "production"
		cfg.JWTSecret = ""
		assert.Error(t, cfg.Validate())

		cfg.JWTSecret = "secret"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("SimilarityBounds", func(t *testing.T) {
		cfg := valid()
		cfg.Engine.DefaultMinSimilarity = 1.2
		assert.Error(t, cfg.Validate())

		cfg = valid()
		cfg.Engine.GraphMinSimilarity = -0.1
		assert.Error(t, cfg.Validate())
	})

	t.Run("EmbeddingURLRequiredInProductionWithoutMock", func(t *testing.T) {
		cfg := valid()
		cfg.Environment = "production"
		cfg.JWTSecret = "secret"
		cfg.Embedding.UseMock = false
		cfg.Embedding.BaseURL = ""
		assert.Error(t, cfg.Validate())
	})
}
