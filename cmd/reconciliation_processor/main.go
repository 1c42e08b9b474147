package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/invoice-reconciliation/internal/config"
	"github.com/invoice-reconciliation/internal/data/mongo"
	"github.com/invoice-reconciliation/internal/data/postgres"
	redisdata "github.com/invoice-reconciliation/internal/data/redis"
	"github.com/invoice-reconciliation/internal/logger"
	"github.com/invoice-reconciliation/internal/platform/messaging/consumers"
	"github.com/invoice-reconciliation/internal/platform/messaging/producers"
	"github.com/invoice-reconciliation/internal/platform/persistence"
	"github.com/invoice-reconciliation/internal/reconciliation_processor/components"
	"github.com/invoice-reconciliation/internal/reconciliation_processor/consumer"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("reconciliation_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Reconciliation Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Rule store and HMS mappings
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	// Invoices, line items and results
	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	ruleRepo := postgres.NewRuleRepository(log, postgresDB)
	mappingRepo := postgres.NewHMSMappingRepository(log, postgresDB)
	invoiceRepo := mongo.NewInvoiceRepository(log, mongoDB.Database())
	resultRepo := mongo.NewResultRepository(log, mongoDB.Database())

	if err := resultRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to create result indexes", "error", err)
		os.Exit(1)
	}

	// HMS mapping cache is optional
	var cache redisdata.Cache
	var closeCache func() error
	if cfg.Redis.Enabled {
		redisClient, err := persistence.NewRedisClient(appCtx, log, &cfg.Redis)
		if err != nil {
			log.Error("Failed to initialize Redis", "error", err)
			os.Exit(1)
		}
		cache = redisClient
		closeCache = redisClient.Close
	}

	hmsLookup := components.CreateHMSLookup(log, mappingRepo, cache, cfg)

	batchService, err := components.CreateBatchService(log, ruleRepo, invoiceRepo, resultRepo, hmsLookup, cfg)
	if err != nil {
		log.Error("Failed to create batch service", "error", err)
		os.Exit(1)
	}

	resultProducer, err := producers.NewJSONProducer(log, &cfg.Kafka, cfg.Kafka.ResultTopic)
	if err != nil {
		log.Error("Failed to initialize result Kafka producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	kafkaConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka)

	requestHandler := consumer.NewRequestHandler(log, batchService, resultProducer, dlqProducer)

	errChan := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.RequestTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, requestHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	batchService.Shutdown()

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}
	if err = resultProducer.Close(); err != nil {
		log.Error("Error closing result Kafka producer", "error", err)
	}
	// nil when no DLQ topic is configured; Close is nil-safe
	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}
	if closeCache != nil {
		if err = closeCache(); err != nil {
			log.Error("Error closing Redis client", "error", err)
		}
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serviceErr != nil {
		log.Error("Reconciliation Processor shutdown with errors", "error", serviceErr)
		os.Exit(1)
	}
	log.Info("Reconciliation Processor shutdown completed")
}
