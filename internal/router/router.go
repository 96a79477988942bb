// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/thesisflow/thesisflow-backend/internal/config"
	"github.com/thesisflow/thesisflow-backend/internal/handlers"
	"github.com/thesisflow/thesisflow-backend/internal/middleware"
	"github.com/thesisflow/thesisflow-backend/internal/scheduler"
	"github.com/thesisflow/thesisflow-backend/internal/services"
	"github.com/thesisflow/thesisflow-backend/internal/utils"
)

// Initialize wires services, handlers and routes. The returned scheduler is
// not started; the caller owns its lifecycle.
func Initialize(db *gorm.DB, cfg *config.Config, clock clockwork.Clock) (*gin.Engine, *scheduler.Scheduler, error) {
	// Initialize services
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		return nil, nil, err
	}

	authService := services.NewAuthService(db, cfg)
	sessionService := services.NewSessionService(db, clock)
	applicationService := services.NewApplicationService(db, storageService, clock)
	cleanupService := services.NewCleanupService(db, storageService, cfg.Cleanup, clock)
	sched := scheduler.New(cleanupService, cfg.Cleanup, clock)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	sessionHandler := handlers.NewSessionHandler(sessionService, applicationService)
	applicationHandler := handlers.NewApplicationHandler(applicationService, storageService)
	maintenanceHandler := handlers.NewMaintenanceHandler(cleanupService, sched)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()
	limits := middleware.NewRateLimits()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.StructuredLogger())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.Metrics())
	r.Use(limits.General.Middleware())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(limits.Auth.Middleware())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", middleware.AuthRequired(), authHandler.Logout)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Session browsing (public)
		sessions := v1.Group("/sessions")
		{
			sessions.GET("", middleware.OptionalAuth(), sessionHandler.ListSessions)
			sessions.GET("/:id", middleware.OptionalAuth(), sessionHandler.GetSession)
		}

		// Single application, visible to its student and its professor
		v1.GET("/applications/:id", middleware.AuthRequired(), applicationHandler.GetApplication)

		// Professor routes
		professor := v1.Group("/professor")
		professor.Use(middleware.AuthRequired(), middleware.ProfessorRequired())
		{
			professorSessions := professor.Group("/sessions")
			{
				professorSessions.GET("", sessionHandler.ListMySessions)
				professorSessions.POST("", sessionHandler.CreateSession)
				professorSessions.PUT("/:id", sessionHandler.UpdateSession)
				professorSessions.DELETE("/:id", sessionHandler.DeleteSession)
				professorSessions.GET("/:id/applications", sessionHandler.ListSessionApplications)
			}

			professorApplications := professor.Group("/applications")
			{
				professorApplications.POST("/:id/approve", applicationHandler.ApproveApplication)
				professorApplications.POST("/:id/reject", applicationHandler.RejectApplication)
				professorApplications.POST("/:id/unapprove", applicationHandler.UnapproveApplication)
				professorApplications.POST("/:id/response-file", limits.Upload.Middleware(), applicationHandler.UploadResponseFile)
			}
		}

		// Student routes
		student := v1.Group("/student")
		student.Use(middleware.AuthRequired(), middleware.StudentRequired())
		{
			studentApplications := student.Group("/applications")
			{
				studentApplications.GET("", applicationHandler.ListMyApplications)
				studentApplications.POST("", applicationHandler.SubmitApplication)
				studentApplications.DELETE("/:id", applicationHandler.WithdrawApplication)
				studentApplications.POST("/:id/signed-request", limits.Upload.Middleware(), applicationHandler.UploadSignedRequest)
			}
		}

		// Maintenance routes
		maintenance := v1.Group("/maintenance")
		maintenance.Use(middleware.MaintenanceAuth(cfg.Cleanup.MaintenanceToken))
		{
			maintenance.POST("/cleanup", maintenanceHandler.TriggerCleanup)
			maintenance.GET("/cleanup/status", maintenanceHandler.CleanupStatus)
		}
	}

	// Static file serving (for development)
	if cfg.Environment == "development" {
		r.Static("/uploads", "./uploads")
	}

	return r, sched, nil
}
