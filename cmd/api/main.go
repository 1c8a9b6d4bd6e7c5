package main

import (
	"context"
	"fmt"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"forkful/internal/api"
	"forkful/internal/basket"
	"forkful/internal/config"
	"forkful/internal/platform/gemini"
	"forkful/internal/platform/localllm"
	"forkful/internal/recipe"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		panic(fmt.Errorf("failed to build logger: %w", err))
	}
	defer logger.Sync()
	log := logger.Sugar()

	if cfg.Database.URL == "" {
		panic("database url is required (set FORKFUL_DATABASE_URL or database.url in config.yaml)")
	}

	classifier, err := buildClassifier(cfg.Categories)
	if err != nil {
		panic(fmt.Errorf("failed to build category classifier: %w", err))
	}
	aggregator := basket.NewAggregator(classifier)

	recipeStore, err := recipe.NewPostgresStore(cfg.Database.URL)
	if err != nil {
		panic(fmt.Errorf("failed to create recipe store: %w", err))
	}

	basketStore, err := basket.NewPostgresStore(cfg.Database.URL, aggregator)
	if err != nil {
		panic(fmt.Errorf("failed to create basket store: %w", err))
	}

	var extractor api.Extractor
	var translator api.Translator
	switch cfg.AI.Provider {
	case "local":
		client := localllm.NewClient(cfg.AI.LocalLLMURL, cfg.AI.LocalLLMModel)
		extractor, translator = client, client
	default:
		client, err := gemini.NewClient(ctx, cfg.AI.GeminiAPIKey, cfg.AI.GeminiModel)
		if err != nil {
			panic(fmt.Errorf("failed to create gemini client: %w", err))
		}
		extractor, translator = client, client
	}

	images, err := api.NewImageCache(cfg.Images.Dir)
	if err != nil {
		panic(fmt.Errorf("failed to create image cache: %w", err))
	}

	handler := api.NewHandler(extractor, translator, recipeStore, basketStore, images, log)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           cfg.Server.CORSMaxAge,
	}))

	handler.RegisterRoutes(r)
	r.Static("/images", cfg.Images.Dir)

	log.Infow("starting server", "addr", cfg.Server.Addr, "provider", cfg.AI.Provider)
	if err := r.Run(cfg.Server.Addr); err != nil {
		log.Fatalw("server stopped", "error", err)
	}
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func buildClassifier(rules []config.CategoryRule) (*basket.Classifier, error) {
	if len(rules) == 0 {
		return basket.NewClassifier(basket.DefaultKeywordRules())
	}
	keyword := make([]basket.KeywordRule, 0, len(rules))
	for _, r := range rules {
		keyword = append(keyword, basket.KeywordRule{
			Category: basket.Category(r.Category),
			Pattern:  r.Pattern,
		})
	}
	return basket.NewClassifier(keyword)
}
