package routes

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rchan/rchan-web/controllers"
	"github.com/rchan/rchan-web/middleware"
	"github.com/rchan/rchan-web/session"
	"github.com/rchan/rchan-web/utils"
	"github.com/rchan/rchan-web/views"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(env *controllers.Env, sessions *session.Manager) (*gin.Engine, error) {
	cfg := env.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// handlers pass *gin.Context to the backend client; let it carry the request's cancellation
	r.ContextWithFallback = true

	tmpl, err := views.Load()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	r.SetHTMLTemplate(tmpl)

	r.Use(middleware.RequestID())
	// Access log goes to its own rolling file; the application logger is the fallback.
	access := utils.Logger
	if cfg.GinPath != "" {
		if gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress); err == nil {
			access = gl
		} else {
			utils.Logger.Warn("access log disabled", zap.Error(err))
		}
	}
	r.Use(utils.Ginzap(access, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(access, false))

	r.StaticFS("/static", views.Static())
	r.GET("/health", controllers.NewConfigController(env).Health)

	r.Use(middleware.Session(sessions, cfg.CookieSecure))
	r.Use(middleware.CSRF(env.Signer))

	submissions := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
	logins := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	postController := controllers.NewPostController(env)
	configController := controllers.NewConfigController(env)
	authController := controllers.NewAuthController(env)
	resetController := controllers.NewResetController(env)
	statsController := controllers.NewStatsController(env)
	profileController := controllers.NewProfileController(env)
	moderationController := controllers.NewModerationController(env)
	userController := controllers.NewUserController(env)

	r.GET("/", postController.Home)
	r.POST("/post", submissions.Middleware(), postController.CreatePost)
	r.GET("/thread/:id", postController.Thread)
	r.POST("/thread/:id/repost", submissions.Middleware(), postController.CreateRepost)
	r.GET("/files/view", postController.ViewFile)
	r.POST("/theme", configController.Theme)

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", middleware.CSRFHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		// credentials cannot be combined with a wildcard origin
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	api := r.Group("/api", cors.New(corsCfg))
	api.GET("/sections", configController.Sections)

	forgot := r.Group("/forgot-password")
	forgot.GET("", resetController.ForgotPage)
	forgot.POST("", logins.Middleware(), resetController.Forgot)
	forgot.GET("/verify", resetController.VerifyPage)
	forgot.POST("/verify", logins.Middleware(), resetController.Verify)
	forgot.POST("/resend", logins.Middleware(), resetController.Resend)
	forgot.GET("/reset", resetController.ResetPage)
	forgot.POST("/reset", resetController.Reset)

	admin := r.Group("/administrator")
	admin.GET("/login", authController.LoginPage)
	admin.POST("/login", logins.Middleware(), authController.Login)
	admin.GET("/captcha", authController.Captcha)
	admin.POST("/logout", authController.Logout)

	authed := admin.Group("", middleware.RequireLogin())
	authed.GET("", statsController.Dashboard)
	authed.GET("/logs", statsController.Logs)
	authed.GET("/profile", profileController.Show)
	authed.POST("/profile/password", profileController.ChangePassword)
	authed.POST("/profile/delete", profileController.DeleteAccount)

	board := authed.Group("/all-posts")
	board.GET("", moderationController.Board)
	board.GET("/post/:id/replies", moderationController.Replies)
	board.POST("/post/:id/status", moderationController.PostStatus)
	board.POST("/post/:id/delete", moderationController.DeletePost)
	board.POST("/post/:id/edit", moderationController.EditPost)
	board.POST("/repost/:id/status", moderationController.RepostStatus)
	board.POST("/repost/:id/delete", moderationController.DeleteRepost)
	board.POST("/repost/:id/edit", moderationController.EditRepost)

	users := authed.Group("/users", middleware.RequireAdmin())
	users.GET("", userController.List)
	users.POST("", userController.Create)
	users.GET("/lookup", userController.Lookup)
	users.POST("/verify", userController.Verify)
	users.POST("/resend", userController.Resend)
	users.POST("/:id/role", userController.ToggleRole)
	users.POST("/:id/delete", userController.Delete)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		configController.NotFound(ctx)
	})

	return r, nil
}
