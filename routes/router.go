package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tidyapp/tidy/config"
	"github.com/tidyapp/tidy/controllers"
	"github.com/tidyapp/tidy/events"
	"github.com/tidyapp/tidy/gamification"
	"github.com/tidyapp/tidy/middleware"
	"github.com/tidyapp/tidy/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, bus *events.Bus, catalog *gamification.Catalog) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	noteController := controllers.NewNoteController(db, bus)
	alarmController := controllers.NewAlarmController(db, bus)
	calendarController := controllers.NewCalendarController(db, bus)
	objetivoController := controllers.NewObjetivoController(db, bus)
	metaController := controllers.NewMetaController(db, bus)
	accountController := controllers.NewAccountController(db)
	actionController := controllers.NewActionController(db, catalog)
	statsController := controllers.NewStatsController(db)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/send-email-code", authController.SendEmailCode)
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)

	// Public leaderboard
	api.GET("/leaderboard", accountController.Leaderboard)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())

	protected.POST("/notes", noteController.CreateNote)
	protected.GET("/notes", noteController.ListNotes)
	protected.GET("/notes/:id", noteController.GetNote)
	protected.PUT("/notes/:id", noteController.UpdateNote)
	protected.DELETE("/notes/:id", noteController.DeleteNote)

	protected.POST("/alarms", alarmController.CreateAlarm)
	protected.GET("/alarms", alarmController.ListAlarms)
	protected.PUT("/alarms/:id", alarmController.UpdateAlarm)
	protected.DELETE("/alarms/:id", alarmController.DeleteAlarm)

	protected.POST("/events", calendarController.CreateEvent)
	protected.GET("/events", calendarController.ListEvents)
	protected.PUT("/events/:id", calendarController.UpdateEvent)
	protected.DELETE("/events/:id", calendarController.DeleteEvent)

	protected.POST("/objetivos", objetivoController.CreateObjetivo)
	protected.GET("/objetivos", objetivoController.ListObjetivos)
	protected.GET("/objetivos/:id", objetivoController.GetObjetivo)
	protected.PUT("/objetivos/:id", objetivoController.UpdateObjetivo)
	protected.DELETE("/objetivos/:id", objetivoController.DeleteObjetivo)

	protected.POST("/objetivos/:id/metas", metaController.CreateMeta)
	protected.GET("/objetivos/:id/metas", metaController.ListMetas)
	protected.PUT("/objetivos/:id/metas/:meta_id", metaController.UpdateMeta)
	protected.DELETE("/objetivos/:id/metas/:meta_id", metaController.DeleteMeta)

	protected.GET("/account", accountController.GetAccount)
	protected.GET("/stats", statsController.GetStats)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
	admin.GET("/actions", actionController.ListActions)
	admin.PATCH("/actions/:key", actionController.UpdateAction)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		ctx.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})

	return r
}
