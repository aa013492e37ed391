package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "backend/api/swagger" // swagger docs
	"backend/internal/database"
	"backend/internal/handler"
	"backend/internal/integration/bitrix"
	"backend/internal/integration/telegram"
	"backend/internal/middleware"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/internal/websocket"
	"backend/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           OTK Workflow API
// @version         1.0
// @description     Quality control workflow: inspection applications, discrepancy resolution and CRM synchronization.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	log := logger.Get()

	if err := godotenv.Load("configs/.env"); err != nil {
		log.Info("No configs/.env file found or error loading it")
	}

	dbHost := envOr("DB_HOST", "localhost")
	dbPort := envOr("DB_PORT", "5432")
	dbUser := envOr("DB_USER", "postgres")
	dbPassword := envOr("DB_PASSWORD", "postgres")
	dbName := envOr("DB_NAME", "otk")
	dbSslMode := envOr("DB_SSLMODE", "disable")

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.WithError(err).Fatal("Database connection failed")
	}
	log.Info("Connected to PostgreSQL successfully.")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Outbound integrations. Both clients degrade to no-ops when their
	// credentials are absent, so a local setup runs without either.
	tgClient := telegram.NewClient(telegram.Config{
		Token:     os.Getenv("TELEGRAM_BOT_TOKEN"),
		ChannelID: os.Getenv("TELEGRAM_CHANNEL_ID"),
	})
	crmClient, err := bitrix.NewClient(bitrix.Config{
		WebhookURL:   os.Getenv("BITRIX24_WEBHOOK_URL"),
		EntityTypeID: envInt("BITRIX24_ENTITY_TYPE_ID", 0),
		FieldMapJSON: os.Getenv("BITRIX24_FIELD_MAP"),
	})
	if err != nil {
		log.WithError(err).Fatal("Bitrix24 client configuration is invalid")
	}

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	lotRepo := repository.NewLotRepository(db)
	productRepo := repository.NewProductRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	discrepancyRepo := repository.NewDiscrepancyRepository(db)
	syncTaskRepo := repository.NewSyncTaskRepository(db)

	syncService := service.NewSyncService(syncTaskRepo, applicationRepo, lotRepo, productRepo, crmClient, 0)
	userService := service.NewUserService(userRepo)
	lotService := service.NewLotService(lotRepo, syncService)
	productService := service.NewProductService(productRepo, lotRepo, syncService)
	applicationService := service.NewApplicationService(applicationRepo, lotRepo, productRepo, txManager, syncService, tgClient, wsHub)
	discrepancyService := service.NewDiscrepancyService(discrepancyRepo, applicationRepo, txManager, syncService, tgClient, wsHub)
	statisticsService := service.NewStatisticsService(applicationRepo, discrepancyRepo, syncTaskRepo)

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService)
	lotHandler := handler.NewLotHandler(lotService)
	productHandler := handler.NewProductHandler(productService)
	applicationHandler := handler.NewApplicationHandler(applicationService)
	discrepancyHandler := handler.NewDiscrepancyHandler(discrepancyService)
	syncHandler := handler.NewSyncHandler(syncService)
	statisticsHandler := handler.NewStatisticsHandler(statisticsService)

	// Background delivery of queued CRM tasks
	workerCtx, stopWorker := context.WithCancel(context.Background())
	worker := service.NewSyncWorker(syncService, time.Duration(envInt("SYNC_INTERVAL_SECONDS", 30))*time.Second, envInt("SYNC_BATCH_SIZE", 20))
	go worker.Run(workerCtx)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:5174"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	api := router.Group("/api/v1")
	userHandler.RegisterRoutes(api)
	lotHandler.RegisterRoutes(api)
	productHandler.RegisterRoutes(api)
	applicationHandler.RegisterRoutes(api)
	discrepancyHandler.RegisterRoutes(api)
	syncHandler.RegisterRoutes(api)
	statisticsHandler.RegisterRoutes(api)

	port := envOr("PORT", "8080")

	// Stop the sync worker on SIGINT/SIGTERM so an in-flight batch finishes.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		stopWorker()
		os.Exit(0)
	}()

	log.Infof("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.WithError(err).Fatal("Server failed")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
