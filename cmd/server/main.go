package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"tower-detector-go/internal/batch"
	"tower-detector-go/internal/client"
	"tower-detector-go/internal/config"
	"tower-detector-go/internal/database"
	"tower-detector-go/internal/handler"
	"tower-detector-go/internal/render"
	"tower-detector-go/internal/repository"
	"tower-detector-go/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.LoadConfig()

	// Инициализируем логгер
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.Info("Запуск Tower Detector API Server")

	// Фоновая обработка партий живет до остановки сервера
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Архив партий необязателен
	var archive repository.BatchRepository
	logger.Infof("Подключение к базе данных (%s)...", cfg.Database.Driver)
	switch err := database.Connect(cfg.Database); {
	case errors.Is(err, database.ErrDisabled):
		logger.Warn("База данных отключена, архив партий недоступен")
	case err != nil:
		logger.Fatalf("Ошибка подключения к базе данных: %v", err)
	default:
		logger.Info("Выполнение миграций базы данных...")
		if err := database.Migrate(database.DB); err != nil {
			logger.Fatalf("Ошибка выполнения миграций: %v", err)
		}
		if err := database.HealthCheck(); err != nil {
			logger.Fatalf("База данных недоступна: %v", err)
		}
		defer database.Close()
		archive = repository.NewBatchRepository(database.DB)
		logger.Info("База данных успешно подключена и готова к работе")
	}

	// Инициализируем сервисы
	renderer := render.NewRenderer()
	detector := client.NewDetectionAPIClient(cfg.DetectionAPI.BaseURL, cfg.DetectionTimeout(), logger)
	detectionService := service.NewDetectionService(
		ctx,
		batch.NewController(renderer),
		batch.NewProcessor(detector, logger),
		renderer,
		detector,
		archive,
		logger,
	)

	// Инициализируем обработчики
	batchHandler := handler.NewBatchHandler(detectionService, logger, cfg.Server.MaxUploadMB)

	// Настраиваем Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = int64(cfg.Server.MaxUploadMB) << 20

	// Добавляем middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
		AllowOriginFunc: func(_ string) bool {
			return true
		},
	}))

	// Регистрируем маршруты
	batchHandler.RegisterRoutes(router)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":      "Tower Detector API Server",
			"version":      "1.0.0",
			"status":       "running",
			"detectionApi": cfg.DetectionAPI.BaseURL,
		})
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		logger.Infof("Сервер запущен на %s", serverAddr)
		logger.Infof("API доступно по адресу: http://localhost:%d/api/v1", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Ошибка запуска сервера: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Остановка сервера...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Ошибка остановки сервера: %v", err)
	}

	// Оставшиеся карточки получают отметку об отмене
	detectionService.Wait()
	logger.Info("Сервер остановлен")
}
