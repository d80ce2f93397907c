package handlers

import (
	"context"
	"net/http"
	"time"

	"courseplatform/internal/infrastructure/logger"
	"courseplatform/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth    *AuthHandler
	User    *UserHandler
	Course  *CourseHandler
	Payment *PaymentHandler
	Admin   *AdminHandler
}

type RouterDeps struct {
	Handlers       Handlers
	Tokens         middleware.TokenValidator
	Profiles       middleware.ProfileGetter
	Limiter        *middleware.RateLimiter
	Metrics        prometheus.Gatherer
	Health         func(ctx context.Context) error
	AllowedOrigins []string
	Logger         *zap.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestLogger(d.Logger))

	config := cors.DefaultConfig()
	config.AllowOrigins = d.AllowedOrigins
	if len(config.AllowOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowCredentials = true
	}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}
	r.Use(cors.New(config))

	r.GET("/healthz", healthz(d.Health))
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{})))
	}

	h := d.Handlers
	requireAuth := middleware.AuthMiddleware(d.Tokens)
	limit := func(key string, n int, window time.Duration) gin.HandlerFunc {
		if d.Limiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return d.Limiter.Limit(key, n, window)
	}

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", limit("login", 5, 1*time.Minute), h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.POST("/logout", h.Auth.Logout)
			auth.POST("/forgot-password", limit("forgot_pass", 1, 5*time.Minute), h.Auth.ForgotPassword)
			auth.POST("/reset-password", h.Auth.ResetPassword)
		}
		api.GET("/user/email/confirm", h.Auth.ConfirmEmailChange)
		user := api.Group("/user")
		user.Use(requireAuth)
		{
			user.GET("/profile", h.User.GetProfile)
			user.PUT("/profile", h.User.UpdateProfile)
			user.POST("/avatar", h.User.SetAvatar)
			user.POST("/email/change", h.Auth.RequestEmailChange)
			user.GET("/devices", h.User.GetDevices)
			user.DELETE("/devices/:id", h.User.RemoveDevice)
		}
		courses := api.Group("/courses")
		{
			courses.GET("", middleware.OptionalAuth(d.Tokens), h.Course.List)
			courses.GET("/:id", middleware.OptionalAuth(d.Tokens), h.Course.GetOne)
			courses.POST("/:id/start", requireAuth, h.Course.Start)
			courses.POST("/:id/lessons/:lessonId/complete", requireAuth, h.Course.CompleteLesson)
		}
		payments := api.Group("/payments")
		{
			payments.GET("/plans", h.Payment.GetPlans)
			payments.POST("/redeem", requireAuth, h.Payment.Redeem)
			payments.POST("/purchase", requireAuth, h.Payment.Purchase)
		}
		admin := api.Group("/admin")
		admin.Use(requireAuth, middleware.AdminOnly(d.Profiles, d.Logger))
		{
			admin.POST("/courses", h.Course.Create)
			admin.DELETE("/courses/:id", h.Course.Delete)
			admin.GET("/users/:id/devices", h.Admin.UserDevices)
			admin.DELETE("/devices/:id", h.Admin.DeleteDevice)
			admin.PUT("/users/:id/device-policy", h.Admin.SetDevicePolicy)
		}
	}

	return r
}

func healthz(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				_ = c.Error(err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
