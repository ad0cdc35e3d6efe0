package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fulfillment-service/config"
	"fulfillment-service/internal/api"
	"fulfillment-service/internal/broker"
	"fulfillment-service/internal/catalog"
	"fulfillment-service/internal/marketplace"
	"fulfillment-service/internal/redisclient"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"
	"fulfillment-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting fulfillment service")

	tp, err := util.InitTracer("fulfillment-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.InitSchema(context.Background()); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	eventProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicShipments)
	defer eventProducer.Close()
	notifProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications)
	defer notifProducer.Close()
	log.Println("Kafka producers initialized")

	eventPublisher := broker.NewEventPublisher(eventProducer)

	tokens := marketplace.NewTokenProvider(cfg.Marketplace.APIBase, cfg.Marketplace.ClientID, cfg.Marketplace.ClientSecret, cfg.Marketplace.TokenPath)
	market := marketplace.NewClient(cfg.Marketplace.APIBase, cfg.Marketplace.CDNBase, cfg.Marketplace.PlaceholderImg, cfg.Marketplace.SellerID, tokens)
	vendorCatalog := catalog.NewClient(catalog.Config{
		URL:          cfg.Catalog.URL,
		Username:     cfg.Catalog.Username,
		Password:     cfg.Catalog.Password,
		CompanyID:    cfg.Catalog.CompanyID,
		WebserviceID: cfg.Catalog.WebserviceID,
		AuthPath:     cfg.Catalog.AuthPath,
	})

	resolver := service.NewResolver(market)
	enricher := service.NewEnricher(market, redisClient, vendorCatalog, db, cfg.Fulfillment.EnrichConcurrency)
	fulfillment := service.NewFulfillmentService(db, redisClient, resolver, enricher, eventPublisher, market, cfg.Fulfillment.CacheTTL, cfg.Fulfillment.ResolveLockTTL)
	picking := service.NewPickingService(db, db, market, eventPublisher)
	dashboard := service.NewDashboardService(db, cfg.Fulfillment.DashboardWindow)
	notifications := service.NewNotificationService(db, market, picking, fulfillment)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	notifConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications, cfg.Kafka.ConsumerGroup)
	notifWorker := worker.NewNotificationWorker(notifConsumer, notifications)
	go func() {
		if err := notifWorker.Start(workerCtx); err != nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	go runRetentionSweep(workerCtx, db, cfg.Fulfillment.CacheRetention)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(fulfillment, picking, dashboard, notifications, enricher, notifProducer)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	notifWorker.Stop()

	log.Println("Server exited")
}

// runRetentionSweep purges cache entries past the retention window
// once an hour until the context ends.
func runRetentionSweep(ctx context.Context, db *store.Store, retention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := db.PurgeOlderThan(ctx, retention)
			if err != nil {
				log.Printf("Retention sweep failed: %v", err)
				continue
			}
			if purged > 0 {
				log.Printf("Retention sweep purged %d cache entries", purged)
			}
		}
	}
}
