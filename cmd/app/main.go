package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"geolink-go/internal/cache"
	"geolink-go/internal/classify"
	"geolink-go/internal/handler"
	"geolink-go/internal/i18n"
	"geolink-go/internal/middleware"
	"geolink-go/internal/queue"
	"geolink-go/internal/render"
	"geolink-go/internal/repository"
	"geolink-go/internal/service"
	"geolink-go/internal/workflow"
	"geolink-go/pkg/logging"
)

func initConfig() {
	wd, _ := os.Getwd()
	log.Printf("Loading config from: %s/config.yaml", wd)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}
}

func startServer(r *gin.Engine, logger *zap.Logger, onShutdown func()) {
	addr := viper.GetString("server.addr")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logger.Info("Server is running on " + addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	onShutdown()

	logger.Info("Server exiting")
}

func main() {
	initConfig()

	logger, atomicLevel, err := logging.NewFromConfig()
	if err != nil {
		log.Fatalf("Failed to init logging: %v", err)
	}
	logger.Info("Application started")

	db, err := repository.NewDB(logger, atomicLevel)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}

	redisPool := repository.NewRedisPool(logger)

	bundle, err := i18n.InitI18n([]string{
		"./i18n/en.toml",
		"./i18n/zh.toml",
	}, "en")
	if err != nil {
		logger.Fatal("Failed to init i18n", zap.Error(err))
	}

	// Core components, wired by explicit injection.
	linkCache := cache.NewLinkCache(redisPool, logger, viper.GetInt("cache.link_ttl"))
	publisher := queue.NewPublisher(redisPool, logger)
	linkService := service.NewLinkService(db, linkCache, logger)
	redirectService := service.NewRedirectService(db, linkCache, publisher, logger)
	evaluationService := service.NewEvaluationService(db, logger)

	renderer := render.NewChromeRenderer(logger, viper.GetDuration("evaluation.render_settle"))
	classifier := classify.NewAnthropicClassifier(
		viper.GetString("anthropic.api_key"),
		viper.GetString("anthropic.model"),
		logger,
	)
	orchestrator := workflow.NewOrchestrator(db, renderer, classifier, logger)
	sweeper := workflow.NewSweeper(db, orchestrator, logger)

	linkHandler := handler.NewLinkHandler(linkService, logger)
	redirectHandler := handler.NewRedirectHandler(redirectService, viper.GetString("server.country_header"))
	evaluationHandler := handler.NewEvaluationHandler(orchestrator, evaluationService, logger)

	// Click consumer runs until shutdown; unacknowledged messages survive a
	// restart and are reclaimed from the stream.
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	hostname, _ := os.Hostname()
	consumer := queue.NewConsumer(redisPool, db, logger, hostname)
	if err := consumer.EnsureGroup(consumerCtx); err != nil {
		logger.Fatal("Failed to create click consumer group", zap.Error(err))
	}
	go consumer.Run(consumerCtx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.GlobalErrorMiddleware())
	r.Use(middleware.ZapGinLogger(logger))
	r.Use(middleware.CorsMiddleware())
	r.Use(middleware.I18nMiddleware(bundle))

	api := r.Group("/api")
	{
		api.POST("/links", linkHandler.Create)
		api.GET("/links", linkHandler.List)
		api.GET("/links/:linkId", linkHandler.Get)
		api.PUT("/links/:linkId", linkHandler.Update)
		api.GET("/links/:linkId/evaluations", evaluationHandler.ListByLink)

		api.POST("/evaluations", evaluationHandler.Trigger)
		api.GET("/evaluations/:runId", evaluationHandler.GetRun)
	}

	// Catch-all GET redirect, registered after the API group so /api never
	// resolves as a link identifier.
	r.Use(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		redirectHandler.Redirect(c)
	})

	c := cron.New()

	cronSpec := viper.GetString("evaluation.cron")
	if cronSpec == "" {
		cronSpec = "0 */6 * * *"
	}
	_, addErr := c.AddFunc(cronSpec, func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		if err := sweeper.Sweep(sweepCtx); err != nil {
			logger.Error("Evaluation sweep failed", zap.Error(err))
		}
	})
	if addErr != nil {
		logger.Fatal("Failed to schedule evaluation sweep", zap.Error(addErr))
	}

	c.Start()

	startServer(r, logger, func() {
		c.Stop()
		stopConsumer()
		if err := redisPool.Close(); err != nil {
			logger.Warn("Redis pool close failed", zap.Error(err))
		}
	})
}
