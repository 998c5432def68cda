package main

import (
	"log"

	"cart-service/internal/clients"
	"cart-service/internal/config"
	"cart-service/internal/events"
	"cart-service/internal/handlers"
	"cart-service/internal/middleware"
	"cart-service/internal/models"
	"cart-service/internal/repository"
	"cart-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logrus logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.App.LogLevel); err == nil {
		logger.SetLevel(level)
	} else if cfg.IsProduction() {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize database
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Feature{},
		&models.Value{},
		&models.GroupProduct{},
		&models.Cart{},
		&models.CartItem{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis catalog cache (optional - degrades to DB-only reads)
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		log.Println("✓ Redis catalog cache configured")
	} else {
		log.Println("REDIS_ADDR not configured, catalog cache disabled")
	}

	// Initialize NATS event publisher (optional - graceful degradation)
	var publisher *events.Publisher
	if cfg.NATS.URL != "" {
		publisher, err = events.NewPublisher(cfg.NATS.URL, logger)
		if err != nil {
			log.Printf("Warning: Failed to initialize NATS event publisher: %v", err)
			log.Println("Continuing without event publishing...")
		} else {
			log.Println("✓ Connected to NATS JetStream for event publishing")
			defer publisher.Close()
		}
	} else {
		log.Println("NATS_URL not configured, event publishing disabled")
	}

	// Repositories
	catalogRepo := repository.NewCatalogRepository(db, redisClient)
	cartRepo := repository.NewCartRepository(db)

	// Clients
	productsClient := clients.NewProductsClient(cfg.Clients.ProductsServiceURL)

	// Services
	resolver := services.NewBindResolver(catalogRepo, logger)
	cartService := services.NewCartService(cartRepo, resolver, productsClient, publisher, logger)
	mergeService := services.NewGuestMergeService(cartRepo, resolver, cartService, publisher, logger)
	tokenService := services.NewGuestTokenService()

	// Handlers
	cartHandler := handlers.NewCartHandler(cartService, mergeService, tokenService, logger)
	healthHandler := handlers.NewHealthHandler(db, catalogRepo)

	router := setupRouter(cfg, cartHandler, healthHandler)

	log.Printf("Starting Cart Service on %s", cfg.GetServerAddress())
	if err := router.Run(cfg.GetServerAddress()); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// initDatabase initializes the database connection pool
func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseDSN()), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	return db, nil
}

// setupRouter configures the Gin router with middleware and routes
func setupRouter(cfg *config.Config, cartHandler *handlers.CartHandler, healthHandler *handlers.HealthHandler) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RequestID())
	router.Use(middleware.SetupCORS())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/health/ready", healthHandler.ReadyCheck)

	api := router.Group("/api/v1")
	api.Use(middleware.TenantID())
	api.Use(middleware.RequireTenantID())
	api.Use(middleware.UserID())

	cartHandler.RegisterRoutes(api)

	return router
}
