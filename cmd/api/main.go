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

	"github.com/SystAttic/TraversiumNotificationService/internal/application/notification"
	"github.com/SystAttic/TraversiumNotificationService/internal/bundling"
	"github.com/SystAttic/TraversiumNotificationService/internal/config"
	"github.com/SystAttic/TraversiumNotificationService/internal/infrastructure/dynamo"
	jwtinfra "github.com/SystAttic/TraversiumNotificationService/internal/infrastructure/jwt"
	snsinfra "github.com/SystAttic/TraversiumNotificationService/internal/infrastructure/sns"
	"github.com/SystAttic/TraversiumNotificationService/internal/ingest"
	"github.com/SystAttic/TraversiumNotificationService/internal/scheduler"
	"github.com/SystAttic/TraversiumNotificationService/internal/stream"
	transporthttp "github.com/SystAttic/TraversiumNotificationService/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Root context for the background loops (sweeper, consumer, heartbeat).
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// JWT provider (optional — graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	tenantRepo := dynamo.NewTenantRepo(dynamoClient, cfg.DynamoTables.Tenants)
	unseenRepo := dynamo.NewUnseenRepo(dynamoClient, cfg.DynamoTables.UnseenNotifications)
	bundleRepo := dynamo.NewBundleRepo(dynamoClient, cfg.DynamoTables.NotificationBundles, cfg.DynamoTables.UnseenNotifications)

	engine := bundling.NewEngine(unseenRepo, bundleRepo)

	// Live distribution channel with its heartbeat loop.
	broadcaster := stream.NewBroadcaster(cfg.StreamBufferSize, cfg.HeartbeatInterval)
	go broadcaster.Run(ctx)

	// SNS bundle-update fan-out (optional — graceful fallback).
	var fanout snsinfra.BundlePublisher
	if cfg.SNSTopicARN != "" {
		if pub, err := snsinfra.NewPublisher(cfg); err == nil {
			fanout = pub
		} else {
			log.Printf("WARN: SNS publisher not available: %v", err)
		}
	}

	notifSvc := notification.NewService(unseenRepo, bundleRepo, engine, tenantRepo, broadcaster)

	// Bundling sweeper over all tenants.
	announcer := &notification.Announcer{Live: broadcaster, Fanout: fanout}
	sweeper := scheduler.NewSweeper(tenantRepo, engine, announcer, cfg.BundlingInterval)
	go sweeper.Run(ctx)

	// SQS queue consumer (optional — only when a queue URL is configured).
	if cfg.SQSQueueURL != "" {
		consumer := ingest.NewConsumer(ingest.NewClient(cfg), cfg.SQSQueueURL, cfg.DefaultTenant, notifSvc)
		go consumer.Run(ctx)
	}

	deps := &transporthttp.Deps{
		NotificationSvc: notifSvc,
		Live:            broadcaster,
		JWTProvider:     jwtProvider,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.AppPort),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: SSE connections stay open indefinitely.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
