package app

import (
	"context"
	"database/sql"
	"go-bankaccount-api/config"
	"go-bankaccount-api/db"
	"go-bankaccount-api/handler"
	"go-bankaccount-api/logger"
	"go-bankaccount-api/repository"
	"go-bankaccount-api/router"
	"go-bankaccount-api/service"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

func Run() {
	config.LoadConfig(".")
	logger.Init()
	logger.Log.Info("Logger initialized")
	logger.Log.Info("Configuration loaded successfully")

	database, err := db.Connect()
	if err != nil {
		logger.Log.Fatalf("Error connecting to the database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations("file://db/migrations"); err != nil {
		logger.Log.Fatalf("Error applying migrations: %v", err)
	}

	redisClient, err := db.ConnectRedis()
	if err != nil {
		logger.Log.Fatalf("Error connecting to redis: %v", err)
	}
	defer redisClient.Close()

	authService, err := service.NewAuthService(config.AppConfig.Auth.Users)
	if err != nil {
		logger.Log.Fatalf("Error seeding credentials: %v", err)
	}

	accountRepo := repository.NewAccountRepository(database)
	accountService := service.NewAccountService(database, accountRepo, redisClient)
	accountHandler := handler.NewAccountHandler(accountService)

	r := router.NewRouter(accountHandler, authService)

	port := config.AppConfig.Server.Port
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		logger.Log.Infof("Server starting on port :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Log.Info("Server exited properly")
}

// TestApp bundles a fully wired router for tests that drive the HTTP surface
// against real (or test-double) backing stores.
type TestApp struct {
	Router http.Handler
}

func NewTestApp(database *sql.DB, redisClient *redis.Client, verifier service.CredentialVerifier) *TestApp {
	accountRepo := repository.NewAccountRepository(database)
	accountService := service.NewAccountService(database, accountRepo, redisClient)
	accountHandler := handler.NewAccountHandler(accountService)

	return &TestApp{
		Router: router.NewRouter(accountHandler, verifier),
	}
}
