package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"finwatch/internal/config"
	"finwatch/internal/database"
	"finwatch/internal/handlers"
	"finwatch/internal/logger"
	"finwatch/internal/mailer"
	"finwatch/internal/metrics"
	"finwatch/internal/middleware"
	"finwatch/internal/scheduler"
	"finwatch/internal/services"
	"finwatch/internal/validator"

	_ "finwatch/internal/docs" // Import swagger docs
)

// @title           Finwatch API
// @version         1.0
// @description     Finwatch watches budgets, savings goals, and recurring expenses and notifies users when they need attention.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

const shutdownTimeout = 30 * time.Second

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	dbManager, err := database.NewManager(appConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	// Services
	db := dbManager.DB()
	clock := services.Clock(services.SystemClock)
	aggregator := services.NewMetricAggregator(db)
	notificationService := services.NewNotificationService(db, mailer.New(appConfig), clock)
	budgetService := services.NewBudgetService(db, aggregator)
	goalService := services.NewGoalService(db, notificationService, clock)
	recurringService := services.NewRecurringExpenseService(db, clock)
	auditService := services.NewAuditService(db)
	monitorService := services.NewMonitorService(db, aggregator, notificationService, appConfig.ScanWorkers, clock)

	sched, err := scheduler.New(monitorService, scheduler.SchedulesFromConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	// Handlers
	notificationHandler := handlers.NewNotificationHandler(notificationService, auditService)
	budgetHandler := handlers.NewBudgetHandler(budgetService)
	goalHandler := handlers.NewGoalHandler(goalService, auditService)
	recurringHandler := handlers.NewRecurringExpenseHandler(recurringService, auditService)
	pipelineHandler := handlers.NewPipelineHandler(recurringService, sched, auditService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.GET("/api/health", func(c *gin.Context) {
		if err := dbManager.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	notifications := protected.Group("/notifications")
	notifications.GET("", notificationHandler.ListNotifications)
	notifications.PUT("/read-all", notificationHandler.MarkAllRead)
	notifications.PUT("/:id/read", notificationHandler.MarkRead)
	notifications.DELETE("/:id", notificationHandler.DeleteNotification)

	budgets := protected.Group("/budgets")
	budgets.GET("/alerts", budgetHandler.GetBudgetAlerts)
	budgets.GET("/:id/progress", budgetHandler.GetBudgetProgress)

	goals := protected.Group("/goals")
	goals.POST("/:id/contributions", goalHandler.AddContribution)

	recurring := protected.Group("/recurring-expenses")
	recurring.POST("/process-due", recurringHandler.ProcessDue)

	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(appConfig.PipelineAPIKey))
	pipeline.POST("/recurring-expenses/process-due", pipelineHandler.ProcessAllDue)
	pipeline.POST("/sweeps/:kind", pipelineHandler.RunSweep)

	if appConfig.SchedulerEnabled {
		sched.Start()
	} else {
		log.Info("Scheduler disabled; sweeps run only through the pipeline endpoints")
	}

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Starting Finwatch server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		log.Infow("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warnf("http shutdown error: %v", err)
	}
	if err := sched.Stop(ctx); err != nil {
		log.Warnf("scheduler stop error: %v", err)
	}
	log.Info("Shutdown complete")
	return nil
}
