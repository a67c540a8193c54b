package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"consult-queue-backend/config"
	"consult-queue-backend/internal/api"
	"consult-queue-backend/internal/db"
	"consult-queue-backend/internal/model"
	"consult-queue-backend/internal/notification"
	"consult-queue-backend/internal/queue"
	"consult-queue-backend/internal/realtime"
	"consult-queue-backend/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "consult-queue ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded from %s", configPath)

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}
	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	err = appStore.EnsureSettings(ctx, &model.Settings{
		IsQueueOpen:        cfg.Queue.OpenByDefault,
		MaxQueueNumber:     cfg.Queue.MaxQueueNumber,
		MinutesPerCustomer: cfg.Queue.MinutesPerCustomer,
		NextSessionDate:    cfg.Queue.NextSessionDate,
	})
	if err != nil {
		logger.Fatalf("failed to seed queue settings: %v", err)
	}

	hub := realtime.NewHub()
	go hub.Run(ctx)

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions)
	pool.Start(ctx)

	engine := queue.NewEngine(appStore, realtime.NewNotifier(hub), pool)

	router := api.NewRouter(engine, appStore, hub, &webpushOptions, &cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
