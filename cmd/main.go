package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"irrigation-control/internal/api"
	"irrigation-control/internal/config"
	"irrigation-control/internal/db"
	"irrigation-control/internal/engine"
	"irrigation-control/internal/kafka"
	"irrigation-control/internal/logging"
	"irrigation-control/pkg/downlink"
	"irrigation-control/pkg/telegram"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Connect to database
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	// Build the entity store with its boundary collaborators
	hub := api.NewHub(logger)
	notifier := telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatIDs, logger)
	store := engine.NewStore(dbConn, hub, notifier, logger)
	defer store.Close()

	// Re-hydrate the fleet
	seeds, err := dbConn.LoadFleet(context.Background())
	if err != nil {
		logger.Errorf("Fleet load failed: %v", err)
		log.Fatalf("Fleet load failed: %v", err)
	}
	for _, seed := range seeds {
		store.RegisterActuator(seed)
	}
	logger.Infof("Loaded %d actuators", len(seeds))

	// Command dispatcher over the downlink transport
	transport := downlink.NewClient(cfg.Downlink.BaseURL, cfg.Downlink.APIKey)
	dispatcher := engine.NewDispatcher(store, transport, cfg.Downlink.Timeout, logger)

	// Start uplink consumer
	var wg sync.WaitGroup
	consumer := kafka.NewConsumer(kafka.Config{
		Broker:  cfg.Kafka.Broker,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	}, store, logger)
	consumer.Start(&wg)

	// Start API server
	handler := api.NewHandler(store, dispatcher, logger)
	router := api.NewRouter(handler, hub, logger, cfg)
	go func() {
		logger.Infof("API started on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Errorf("API run failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")
	consumer.Close()
	wg.Wait()
	logger.Infof("Service stopped")
}
