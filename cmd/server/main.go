package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/khroma-labs/khroma/internal/api"
	"github.com/khroma-labs/khroma/internal/config"
	"github.com/khroma-labs/khroma/internal/core"
	"github.com/khroma-labs/khroma/internal/pricing"
	"github.com/khroma-labs/khroma/internal/ratelimit"
	"github.com/khroma-labs/khroma/internal/store"
	"github.com/khroma-labs/khroma/internal/vectorindex"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	var logger *zap.Logger
	var err error
	if config.AppConfig.LogLevel == "DEBUG" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	defer logger.Sync()

	// Initialize LLM service
	llmService, err := core.NewLLMService(logger)
	if err != nil {
		logger.Fatal("failed to initialize LLM service", zap.Error(err))
	}
	defer llmService.Close()

	// Initialize conversation store
	dbStore, err := store.NewStore(config.AppConfig.DatabaseURL, llmService, logger)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.Error(err),
			zap.String("dbPath", config.AppConfig.DatabaseURL))
	}
	defer dbStore.Close()

	// Remote capability clients, constructed once and shared by all turns
	indexClient := vectorindex.NewClient(vectorindex.Config{
		URL:    config.AppConfig.VectorIndexURL,
		APIKey: config.AppConfig.VectorIndexAPIKey,
		Index:  config.AppConfig.VectorIndexName,
	})
	priceClient := pricing.NewClient(pricing.Config{
		URL: config.AppConfig.PriceServiceURL,
	})

	limiter := ratelimit.NewDailyLimiter(config.AppConfig.DailyMessageQuota)
	classifier := core.NewClassifier(llmService, config.RouterModel, logger)

	chatService := core.NewChatService(
		dbStore,
		classifier,
		llmService,
		indexClient,
		priceClient,
		llmService,
		limiter,
		logger,
	)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService, dbStore, llmService, logger)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // streamed generations can run long
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("could not listen", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting gracefully")
}
