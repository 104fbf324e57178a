package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"tvicl/server/internal/api"
	"tvicl/server/internal/cache"
	"tvicl/server/internal/config"
	"tvicl/server/internal/db"
	"tvicl/server/internal/email"
	"tvicl/server/internal/storage"
	"tvicl/server/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (email delivery), 'img' (media processing), 'all' (default)")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database (indexes are ensured on connect)
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	ctxS3, cancelS3 := context.WithTimeout(context.Background(), 30*time.Second)
	s3Storage, err := storage.NewS3Storage(ctxS3, cfg)
	cancelS3()
	if err != nil {
		log.Fatalf("Failed to initialize S3 storage: %v", err)
	}

	// Initialize Email Sender
	var primaryEmailSender email.Sender
	if os.Getenv("MOCK_SERVICES") == "true" {
		log.Println("MOCK_SERVICES enabled: Using Redis email sender.")
		primaryEmailSender = email.NewRedisSender(redisClient, cfg.SmtpFromAddress)
	} else {
		primaryEmailSender = email.NewSMTPSender(cfg)
	}
	compositeSender := email.NewCompositeEmailSender(primaryEmailSender)

	if logEmailsPath := os.Getenv("LOG_EMAILS"); logEmailsPath != "" {
		fileSender, err := email.NewFileEmailSender(logEmailsPath)
		if err != nil {
			log.Printf("WARNING: Failed to initialize file email sender (LOG_EMAILS='%s'): %v", logEmailsPath, err)
		} else {
			compositeSender.AddSender(fileSender)
			log.Printf("Emails are also written to %s", logEmailsPath)
		}
	}

	// Task client and processor
	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()
	dispatcher := tasks.NewDispatcher(taskClient)
	taskProcessor := tasks.NewTaskProcessor(cfg, compositeSender, s3Storage)

	var wg sync.WaitGroup

	// Channel to signal shutdown from Service API
	shutdownChan := make(chan struct{}, 1)
	// Closed on exit to stop background housekeeping in the API
	stopChan := make(chan struct{})

	// Service API always runs
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(redisClient, shutdownChan),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		fmt.Printf("Service API listening on :%s\n", cfg.ServiceApiPort)
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Service API ListenAndServe error: %v", err)
		}
	}()

	var mainApiSrv *http.Server
	var workers []*asynq.Server

	fmt.Printf("Starting application in '%s' mode...\n", cfg.RunMode)

	apiMode := func() {
		router := api.SetupRouter(cfg, api.Deps{
			DB:      mongoDb,
			Queue:   dispatcher,
			Storage: s3Storage,
			Stop:    stopChan,
		})
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: router,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Printf("Main API listening on :%s\n", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
			fmt.Println("Main API server stopped.")
		}()
	}

	workerMode := func(name string, isMediaWorker, isBgWorker bool) {
		srv, mux := tasks.SetupServer(redisClient, taskProcessor, isMediaWorker, isBgWorker)
		if srv == nil {
			return
		}
		// Stopped below together with the HTTP servers.
		if err := srv.Start(mux); err != nil {
			log.Fatalf("%s worker error: %v", name, err)
		}
		fmt.Printf("%s worker started.\n", name)
		workers = append(workers, srv)
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		workerMode("Email", false, true)
	case "img":
		workerMode("Media", true, false)
	case "all":
		apiMode()
		workerMode("Email", false, true)
		workerMode("Media", true, false)
	default:
		log.Fatalf("Invalid run mode specified in config: %s.", cfg.RunMode)
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		fmt.Printf("\nReceived signal: %s. Shutting down gracefully...\n", sig)
	case <-shutdownChan:
		fmt.Println("\nShutdown requested via Service API. Shutting down gracefully...")
	}
	close(stopChan)

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Service API server shutdown error: %v", err)
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
	}
	for _, srv := range workers {
		srv.Shutdown()
	}

	fmt.Println("Waiting for servers to stop...")
	wg.Wait()

	fmt.Println("Server gracefully stopped")
}
