//go:build !wireinject
// +build !wireinject

// Package di wires the application's dependency graph.
package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"promptvault-backend/internal/config"
	ddbstore "promptvault-backend/internal/infrastructure/dynamodb"
	"promptvault-backend/internal/infrastructure/messaging/eventbridge"
	"promptvault-backend/internal/infrastructure/observability"
	"promptvault-backend/internal/infrastructure/tracing"
	"promptvault-backend/internal/infrastructure/vectorindex"
	httpiface "promptvault-backend/internal/interfaces/http"
	"promptvault-backend/internal/repository"
	"promptvault-backend/internal/service/embedding"
	"promptvault-backend/internal/service/engine"
	"promptvault-backend/pkg/auth"
)

// Container holds the application's wired dependencies.
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Collector
	Tracer  *tracing.TracerProvider
	Engine  engine.Service
	Router  http.Handler
	Watcher *config.Watcher
}

// NewContainer builds the full dependency graph from configuration.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	metrics := observability.NewCollector("promptvault")

	var tracer *tracing.TracerProvider
	if cfg.EnableTracing {
		tracer, err = tracing.InitTracing("promptvault-backend", cfg.Environment, cfg.OTLPEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to init tracing: %w", err)
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	store := ddbstore.NewStore(awsdynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, cfg.TypeIndexName, logger)
	publisher := eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger)
	index := vectorindex.NewIndex(store)
	provider := newEmbeddingProvider(cfg, logger)

	engineService := engine.NewService(engineConfig(cfg), engine.Dependencies{
		Fragments:     store,
		Relationships: store,
		Events:        store,
		Embeddings:    store,
		Index:         index,
		Provider:      provider,
		Publisher:     publisher,
		Logger:        logger,
		Metrics:       metrics,
	})
	if tracer != nil {
		engineService = tracing.TraceEngine(engineService, tracer.Tracer())
	}

	validator, err := newJWTValidator(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT validator: %w", err)
	}

	router := httpiface.NewRouter(httpiface.RouterDeps{
		Config:    cfg,
		Engine:    engineService,
		Validator: validator,
		Metrics:   metrics,
		Logger:    logger,
	})

	watcher, err := config.NewWatcher(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	watcher.OnReload(func(updated *config.Config) {
		engineService.UpdateConfig(engineConfig(updated))
	})

	return &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Tracer:  tracer,
		Engine:  engineService,
		Router:  router,
		Watcher: watcher,
	}, nil
}

// Shutdown releases the container's background resources.
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Watcher != nil {
		c.Watcher.Stop()
	}
	if c.Tracer != nil {
		if err := c.Tracer.Shutdown(ctx); err != nil {
			return err
		}
	}
	_ = c.Logger.Sync()
	return nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == "production" {
		zapCfg := zap.NewProductionConfig()
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.LogLevel)); err == nil {
			return zapCfg.Build()
		}
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func newJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" && cfg.Environment != "production" {
		// Validate() already rejects an empty secret in production.
		secret = "local-development-secret"
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     secret,
		Issuer:        cfg.JWTIssuer,
		Audience:      []string{cfg.JWTAudience},
	})
}

func newEmbeddingProvider(cfg *config.Config, logger *zap.Logger) embedding.Provider {
	if cfg.Embedding.UseMock {
		return embedding.NewMockProvider(cfg.Embedding.Dimensions)
	}
	inner := embedding.NewHTTPProvider(&embedding.HTTPConfig{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.Embedding.TimeoutMS) * time.Millisecond,
	})
	return embedding.NewBreakerProvider(inner, logger)
}

func engineConfig(cfg *config.Config) *engine.Config {
	return &engine.Config{
		CandidatePoolSize:      cfg.Engine.CandidatePoolSize,
		DefaultMinSimilarity:   cfg.Engine.DefaultMinSimilarity,
		DefaultMaxItems:        cfg.Engine.DefaultMaxItems,
		EventWindow:            time.Duration(cfg.Engine.EventWindowDays) * 24 * time.Hour,
		StrategyTimeout:        time.Duration(cfg.Engine.StrategyTimeoutMS) * time.Millisecond,
		DefaultSuggestionLimit: cfg.Engine.DefaultSuggestionLimit,
		SequentialWindow:       time.Minute,
		GraphMinSimilarity:     cfg.Engine.GraphMinSimilarity,
		GraphMaxEdgesPerNode:   cfg.Engine.GraphMaxEdgesPerNode,
	}
}

// Interface guards for the single-table store.
var (
	_ repository.FragmentReader     = (*ddbstore.Store)(nil)
	_ repository.RelationshipReader = (*ddbstore.Store)(nil)
	_ repository.UsageEventStore    = (*ddbstore.Store)(nil)
	_ repository.EmbeddingReader    = (*ddbstore.Store)(nil)
	_ repository.SimilarityIndex    = (*vectorindex.Index)(nil)
)
