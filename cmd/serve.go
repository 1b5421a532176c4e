package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shenikar/civic_reporting_system/internal/analysis"
	"github.com/shenikar/civic_reporting_system/internal/config"
	v1 "github.com/shenikar/civic_reporting_system/internal/handler/http/v1"
	"github.com/shenikar/civic_reporting_system/internal/notification"
	"github.com/shenikar/civic_reporting_system/internal/realtime"
	"github.com/shenikar/civic_reporting_system/internal/repository"
	"github.com/shenikar/civic_reporting_system/internal/service"
	"github.com/shenikar/civic_reporting_system/internal/upload"
	redisclient "github.com/shenikar/civic_reporting_system/pkg/redis"
	"github.com/spf13/cobra"

	_ "github.com/shenikar/civic_reporting_system/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

var skipMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, push worker and realtime hub",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply migrations on start")
	serveCmd.Flags().StringVar(&migrationsPath, "migrations", "migrations", "Directory with migration files")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запуск миграций
	if cfg.StoreDriver == config.StoreDriverPostgres && !skipMigrations {
		if err := runMigrations(cfg, log, true); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	// Инициализация Redis клиента
	redisClient, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisClient.Close()
	log.Info("Successfully connected to Redis")

	// Очередь и воркер push-уведомлений
	queue := notification.NewRedisQueue(redisClient)
	sender := notification.NewExpoSender(cfg.PushAPIURL, cfg.PushAccessToken, cfg.PushTimeout)
	workerDone := notification.NewWorker(redisClient, sender, log, cfg).Start(ctx)

	// Хаб websocket и источник событий
	hub := realtime.NewHub(log, cfg.HubBufferSize, cfg.CORSOrigins)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()

	var events service.EventSink = hub
	var relayDone <-chan struct{} = closedChan()
	if cfg.BroadcastMode == config.BroadcastModeRedis {
		relayDone, err = realtime.NewRelay(redisClient, cfg.BroadcastChannel, hub, log).Run(ctx)
		if err != nil {
			return err
		}
		events = realtime.NewRedisSink(redisClient, cfg.BroadcastChannel)
	}

	// Хранилище изображений
	var images service.ImageStore
	if cfg.UploadsEnabled() {
		images = upload.NewS3Store(cfg)
	} else {
		log.Warn("S3_BUCKET is not set, image uploads are disabled")
	}

	// Классификация новых обращений
	var analyzer service.Analyzer
	if cfg.AnalysisEnabled() {
		analyzer = analysis.NewClient(cfg.AIServiceURL, cfg.AITimeout)
	} else {
		log.Warn("AI_SERVICE_URL is not set, issue analysis is disabled")
	}

	// Инициализация сервисов
	cache := repository.NewIssueCache(redisClient, cfg.CacheTTL)
	issueService := service.NewIssueService(st.issues, cache, events, queue, analyzer, log, cfg)
	userService := service.NewUserService(st.users, cache, log)

	// Инициализация хэндлеров
	handler := v1.NewHandler(issueService, userService, images, redisClient, hub.ServeWS, log, cfg)

	// Настройка Gin роутера
	router := gin.Default()
	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AddAllowHeaders("Authorization")
	router.Use(cors.New(corsCfg))

	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Запуск HTTP-сервера
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info("Received shutdown signal, shutting down server...")
	case err := <-serverErr:
		log.WithError(err).Error("Error starting HTTP server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	// Останавливаем фоновые компоненты после того, как запросы завершены
	cancel()
	for _, done := range []<-chan struct{}{workerDone, hubDone, relayDone} {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			log.Warn("Background component did not stop in time")
		}
	}

	log.Info("Server gracefully stopped")
	return nil
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
