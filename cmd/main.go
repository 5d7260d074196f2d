package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	c "github.com/fjod/zapit-cart/internal/cache"
	"github.com/fjod/zapit-cart/internal/catalog"
	"github.com/fjod/zapit-cart/internal/checkout"
	"github.com/fjod/zapit-cart/internal/config"
	h "github.com/fjod/zapit-cart/internal/http"
	"github.com/fjod/zapit-cart/internal/poller"
	"github.com/fjod/zapit-cart/internal/repository"
	"github.com/fjod/zapit-cart/internal/session"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)

	cfg, err := config.Load("cart")
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	ctx := context.Background()

	// Set up MongoDB connection
	mongoDB, err := repository.ConnectMongoDB(ctx, repository.MongoSettings{
		URI:                    cfg.MongoURI,
		Database:               cfg.MongoDatabase,
		AppName:                "storefront-cart",
		MaxPoolSize:            cfg.MongoMaxPoolSize,
		MinPoolSize:            cfg.MongoMinPoolSize,
		ConnectTimeout:         cfg.MongoConnectTimeout,
		ServerSelectionTimeout: cfg.MongoSelectTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MongoDB")
	}
	repo := repository.NewMongoRepository(mongoDB, cfg.SessionTTL)
	if err := repo.CreateIndexes(ctx); err != nil {
		log.WithError(err).Fatal("failed to create indexes")
	}
	log.WithField("database", cfg.MongoDatabase).Info("connected to MongoDB")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("redis connection failed")
	}
	log.Info("redis ping succeeded")

	publisher := checkout.NewKafkaPublisher(cfg.CheckoutTopic, cfg.KafkaBrokers...)
	sessions := session.NewManager(c.NewRedisCache(redisClient, cfg.CacheTTL), repo, publisher, cfg.WriteTimeout)

	evictCtx, stopEviction := context.WithCancel(ctx)
	go sessions.RunEviction(evictCtx, time.Minute, cfg.SessionIdle)

	pollerCtx, stopPoller := context.WithCancel(ctx)
	completed := poller.NewPoller(sessions, cfg.CompletedTopic, cfg.ConsumerGroup, cfg.KafkaBrokers...)
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		completed.Run(pollerCtx)
	}()

	productCatalog := catalog.NewClient(cfg.CatalogURL, catalog.Settings{
		RequestTimeout:   cfg.CatalogTimeout,
		FailureThreshold: cfg.CatalogFailureThreshold,
		OpenTimeout:      cfg.CatalogOpenTimeout,
		HalfOpenRequests: cfg.CatalogHalfOpenRequests,
	})

	cartHandler := h.NewCartHandler(sessions, productCatalog, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.NewRouter(cartHandler, cfg.RequestTimeout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.HTTPPort).Info("cart service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down cart service...")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	stopEviction()
	stopPoller()
	<-pollerDone
	completed.Close()

	// Flush pending cart writes before the stores they go to disappear
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("failed to flush cart state")
	}
	if err := publisher.Close(); err != nil {
		log.WithError(err).Error("failed to close checkout publisher")
	}
	if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
		log.WithError(err).Error("failed to disconnect from MongoDB")
	}
	log.Info("cart service stopped")
}
