package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marc100s/store-core/internal/cache"
	storehttp "github.com/marc100s/store-core/internal/http"
	"github.com/marc100s/store-core/internal/payment"
	"github.com/marc100s/store-core/internal/publisher"
	"github.com/marc100s/store-core/internal/repository"
	"github.com/marc100s/store-core/internal/service"
	"github.com/marc100s/store-core/internal/webhook"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	log.Println("store-core starting...")

	// Configuration
	httpPort := getEnv("HTTP_PORT", "8080")
	requestTimeout := 5 * time.Second

	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbName := getEnv("DB_NAME", "store")

	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	kafkaBrokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")

	stripeKey := getEnv("STRIPE_API_KEY", "")
	webhookSecret := getEnv("STRIPE_WEBHOOK_SECRET", "")
	currency := strings.ToLower(getEnv("PAYMENT_CURRENCY", "eur"))

	if stripeKey == "" || webhookSecret == "" {
		log.Fatal("STRIPE_API_KEY and STRIPE_WEBHOOK_SECRET must be set")
	}

	port, err := strconv.Atoi(dbPort)
	if err != nil {
		log.Fatalf("Invalid DB_PORT: %v", err)
	}

	// Database setup
	repo, err := repository.NewRepository(&repository.Credentials{
		Host:     dbHost,
		Port:     port,
		User:     dbUser,
		Password: dbPass,
		DBName:   dbName,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Cache
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	cartCache := cache.NewRedisCache(redisClient)

	// Services
	carts := service.NewCartService(repo, repo, cartCache)
	orders := service.NewOrderService(repo, repo, repo, cartCache)
	stripeClient := payment.NewStripeClient(stripeKey)
	intents := service.NewPaymentIntentService(repo, stripeClient, currency)
	webhookHandler := webhook.NewHandler(webhookSecret, repo)

	// Outbox publisher
	pollerCtx, stopPoller := context.WithCancel(context.Background())
	defer stopPoller()
	poller := publisher.NewOutboxPoller(repo, kafkaBrokers...)
	go poller.Run(pollerCtx)

	router := storehttp.NewRouter(carts, orders, intents, webhookHandler, requestTimeout)

	server := &http.Server{
		Addr:    ":" + httpPort,
		Handler: router,
	}

	go func() {
		log.Printf("HTTP server listening on :%s", httpPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	stopPoller()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	if err := redisClient.Close(); err != nil {
		log.Printf("redis close error: %v", err)
	}
	log.Println("stopped")
}
