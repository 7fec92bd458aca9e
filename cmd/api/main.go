package main

import (
	"fmt"
	"log"
	"time"

	_ "backend/api/swagger" // swagger docs
	"backend/internal/config"
	"backend/internal/database"
	"backend/internal/external/auditengine"
	"backend/internal/external/budget"
	"backend/internal/handler"
	"backend/internal/logger"
	"backend/internal/middleware"
	"backend/internal/permission"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/internal/websocket"
	"backend/internal/workflow"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Expense Approval API
// @version         1.0
// @description     Multi-tenant expense report approval workflow with confidentiality controls and tax processing.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config loading failed: %v", err)
	}

	zapLog, err := logger.New(logger.Config{Level: cfg.Logger.Level, Format: cfg.Logger.Format})
	if err != nil {
		log.Fatalf("Logger setup failed: %v", err)
	}
	defer func() { _ = zapLog.Sync() }()

	db, err := database.NewConnection(cfg.ConnectionString())
	if err != nil {
		zapLog.Fatal("database connection failed", zap.Error(err))
	}
	zapLog.Info("connected to PostgreSQL")

	jwtSecret := []byte(cfg.JWT.Secret)

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	reportRepo := repository.NewReportRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	resolver := permission.NewResolver(membershipRepo, companyRepo)
	chain := workflow.NewChainResolver(resolver, membershipRepo)

	budgetChecker := budget.NewClient(cfg.Budget.BaseURL, time.Duration(cfg.Budget.Timeout)*time.Second, zapLog)
	auditEngine := auditengine.NewClient(cfg.Audit.BaseURL, time.Duration(cfg.Audit.Timeout)*time.Second, zapLog)

	userService := service.NewUserService(userRepo, jwtSecret)
	companyService := service.NewCompanyService(companyRepo, membershipRepo, userRepo, auditRepo, txManager, resolver, zapLog)
	reportService := service.NewReportService(reportRepo, auditRepo, txManager, resolver, chain, budgetChecker, auditEngine, zapLog, wsHub)
	taxService := service.NewTaxService(reportRepo, auditRepo, txManager, resolver, zapLog)
	auditService := service.NewAuditService(auditRepo, resolver)

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService)
	companyHandler := handler.NewCompanyHandler(companyService)
	reportHandler := handler.NewReportHandler(reportService)
	taxHandler := handler.NewTaxHandler(taxService)
	auditHandler := handler.NewAuditHandler(auditService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.App.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Company-ID"}
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
		websocket.ServeWs(wsHub, c, jwtSecret)
	})

	// Public auth routes
	userHandler.RegisterPublicRoutes(router.Group(""))

	// Authenticated API routes
	api := router.Group("")
	api.Use(middleware.RequireAuth(jwtSecret))
	userHandler.RegisterRoutes(api)
	companyHandler.RegisterRoutes(api)
	reportHandler.RegisterRoutes(api)
	taxHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)

	addr := fmt.Sprintf(":%d", cfg.App.Port)
	zapLog.Info("server listening", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		zapLog.Fatal("server failed", zap.Error(err))
	}
}
