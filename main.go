package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pos-service/clients"
	"pos-service/common/logger"
	"pos-service/config"
	"pos-service/controllers"
	"pos-service/database"
	"pos-service/kafka"
	"pos-service/routes"
	"pos-service/services"
	"pos-service/session"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.Env)
	defer log.Sync()

	redisClient := database.NewRedisClient(cfg.RedisURL)
	repo := database.NewCartRepository(redisClient, cfg.CartTTL, log)

	catalog := clients.NewCatalogClient(cfg.CatalogBaseURL, cfg.RequestTimeout)
	inventory := clients.NewInventoryClient(clients.InventoryConfig{
		BaseURL:    cfg.InventoryBaseURL,
		Timeout:    cfg.RequestTimeout,
		MaxRetries: cfg.ReserveRetries,
	}, log)
	billing := clients.NewBillingClient(cfg.BillingBaseURL, cfg.RequestTimeout)

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	manager := session.NewManager(repo, catalog, inventory, cfg.SearchDebounce, log)
	resolver := services.NewPrescriptionResolver(catalog, inventory, log)
	checkout := services.NewCheckoutService(catalog, inventory, billing, repo, producer, log)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.RequestLogger(log))

	controller := controllers.NewPOSController(manager, catalog, inventory, resolver, checkout, log)
	routes.RegisterPOSRoutes(router, controller)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("POS service is running", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down gracefully...")

	// Fire-and-forget release of every outstanding hold. Responses are not
	// awaited; the inventory service expires anything we miss.
	inventory.ReleaseAll(manager.LiveReservationIDs())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Shutdown error", zap.Error(err))
	}
	log.Info("Server shutdown complete")
}
