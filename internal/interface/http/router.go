package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medimind/medimind-api/internal/domain/auth"
	"github.com/medimind/medimind-api/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, authSvc auth.Service) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger),
		errorHandlingMiddleware(handler.logger),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", handler.Register)
			authGroup.POST("/login", handler.Login)
			authGroup.POST("/refresh", handler.Refresh)
			authGroup.POST("/forgot-password", handler.ForgotPassword)
			authGroup.POST("/reset-password", handler.ResetPassword)
			authGroup.GET("/google", handler.GoogleStart)
			authGroup.GET("/google/callback", handler.GoogleCallback)
			authGroup.POST("/logout", authMiddleware(authSvc), handler.Logout)
		}

		authed := api.Group("", authMiddleware(authSvc))
		{
			authed.POST("/analyses", handler.Analyze)
			authed.GET("/analyses", handler.AnalysisHistory)
			authed.GET("/analyses/progress", handler.AnalysisProgress)

			authed.GET("/profile", handler.GetProfile)
			authed.PATCH("/profile", handler.UpdateProfile)
			authed.POST("/profile/avatar", handler.UploadAvatar)

			doctor := authed.Group("/doctor", requireDoctor())
			{
				doctor.GET("/stats", handler.RecordsStats)
				doctor.GET("/analyses/recent", handler.RecentAnalyses)
				doctor.GET("/patients", handler.Patients)
				doctor.GET("/patients/:id", handler.Patient)
				doctor.GET("/severe-cases", handler.SevereCases)
			}
		}
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, handler.logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds())
	}
}
