package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"homly-notify/internal/api"
	"homly-notify/internal/config"
	"homly-notify/internal/job"
	"homly-notify/internal/logging"
	"homly-notify/internal/svc"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "./etc/config.yaml", "path to the YAML config file")
	flag.Parse()

	printBuildInfo()

	if _, err := os.Stat(*configPath); err != nil {
		fmt.Printf("Config file %s not found, using defaults and environment\n", *configPath)
		*configPath = ""
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Printf("Failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	logger.AddHook(&logging.SensitiveHook{})
	logging.AddGlobalFields(logger, "homly-notify", version).Info("logger initialized")

	svcCtx, err := svc.NewServiceContext(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize services: %v", err)
	}

	scheduler := job.NewScheduler(logger)
	if cfg.Retention.MaxAge > 0 {
		scheduler.AddJob(job.NewPruneHistoryJob(
			svcCtx.Repository,
			cfg.Retention.MaxAge,
			cfg.Retention.PruneDelay,
			cfg.Retention.PrunePeriod,
			logger,
		))
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	server := setupServer(cfg, svcCtx, logger)

	go func() {
		logger.Infof("Starting server on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	gracefulShutdown(server, scheduler, svcCtx, logger)
}

func setupServer(cfg *config.Config, svcCtx *svc.ServiceContext, logger *logrus.Logger) *http.Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(api.RequestIDMiddleware())
	engine.Use(api.RecoveryMiddleware(logger))
	engine.Use(api.LoggerMiddleware(logger))
	engine.Use(api.ValidationMiddleware())

	if cfg.Server.CORS.Enabled {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.CORS.AllowOrigins,
			AllowMethods:     cfg.Server.CORS.AllowMethods,
			AllowHeaders:     cfg.Server.CORS.AllowHeaders,
			ExposeHeaders:    cfg.Server.CORS.ExposeHeaders,
			AllowCredentials: cfg.Server.CORS.AllowCredentials,
			MaxAge:           time.Duration(cfg.Server.CORS.MaxAge) * time.Second,
		}))
	}

	if cfg.Security.RateLimit.Enabled {
		engine.Use(api.RateLimitMiddleware(cfg.Security.RateLimit.Rate, cfg.Security.RateLimit.Burst))
	}

	handlers := api.NewHandlers(svcCtx.NotificationService, svcCtx.Repository, logger)
	adminHandlers := api.NewAdminHandlers(svcCtx.AuthService, svcCtx.NotificationService, svcCtx.Repository, logger)
	if cfg.Security.TriggerToken == "" {
		logger.Warn("security.trigger_token not set, /api/notify endpoints will reject requests")
	}
	api.RegisterRoutes(engine, handlers, adminHandlers, svcCtx.AuthService, cfg.Security.TriggerToken, logger)

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

// gracefulShutdown stops accepting requests, stops the scheduler, then
// lets triggered notifications finish before closing the database.
func gracefulShutdown(server *http.Server, scheduler *job.Scheduler, svcCtx *svc.ServiceContext, logger *logrus.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	if err := scheduler.Stop(); err != nil {
		logger.Errorf("Failed to stop scheduler: %v", err)
	}

	if err := svcCtx.Close(); err != nil {
		logger.Errorf("Failed to close services: %v", err)
	}

	logger.Info("Server exited")
}

func printBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		fmt.Println("Failed to read build info")
		return
	}

	fmt.Println("\n=== Build Info ===")
	fmt.Printf("Go Version: %s\n", info.GoVersion)
	fmt.Printf("Main Module: %s\n", info.Main.Path)
	fmt.Printf("Main Version: %s\n", info.Main.Version)

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			fmt.Printf("Git Commit: %s\n", setting.Value)
		case "vcs.time":
			fmt.Printf("Build Time: %s\n", setting.Value)
		case "vcs.modified":
			if setting.Value == "true" {
				fmt.Println("Git Status: dirty (modified)")
			} else {
				fmt.Println("Git Status: clean")
			}
		}
	}
}
