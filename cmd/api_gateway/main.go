package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/invoice-reconciliation/internal/api_gateway"
	"github.com/invoice-reconciliation/internal/api_gateway/service"
	"github.com/invoice-reconciliation/internal/config"
	"github.com/invoice-reconciliation/internal/data/mongo"
	"github.com/invoice-reconciliation/internal/data/postgres"
	"github.com/invoice-reconciliation/internal/logger"
	"github.com/invoice-reconciliation/internal/platform/messaging/producers"
	"github.com/invoice-reconciliation/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Publishes reconciliation requests for the processor
	requestProducer, err := producers.NewJSONProducer(log, &cfg.Kafka, cfg.Kafka.RequestTopic)
	if err != nil {
		log.Error("Failed to initialize API Gateway Kafka producer", "error", err)
		os.Exit(1)
	}

	ruleRepo := postgres.NewRuleRepository(log, postgresDB)
	mappingRepo := postgres.NewHMSMappingRepository(log, postgresDB)
	resultRepo := mongo.NewResultRepository(log, mongoDB.Database())

	ruleService := service.NewRuleService(log, ruleRepo, mappingRepo)
	server := api_gateway.NewServer(log, cfg, api_gateway.Services{
		Reconciliation: service.NewReconciliationService(log, resultRepo, requestProducer),
		Rules:          ruleService,
		Mappings:       ruleService,
		HealthChecks: map[string]api_gateway.HealthChecker{
			"postgres": postgresDB,
			"mongodb":  mongoDB,
		},
	})
	log.Info("REST server initialized")

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// stop accepting requests before closing what they use
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = requestProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
		os.Exit(1)
	}
	log.Info("Server shutdown completed")
}
