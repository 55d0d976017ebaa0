package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/hfcache-go/api/handlers"
	"github.com/yourusername/hfcache-go/api/middleware"
	"github.com/yourusername/hfcache-go/internal/app"
	"github.com/yourusername/hfcache-go/internal/infrastructure"
	"github.com/yourusername/hfcache-go/internal/metrics"
	"github.com/yourusername/hfcache-go/pkg/logger"
)

// Services holds everything the HTTP layer talks to
type Services struct {
	Cache     *app.CacheService
	Downloads *app.DownloadManager
	Events    *infrastructure.Broadcaster
	Sweeper   *app.Sweeper // nil when record expiry is disabled
	Log       *logger.LoggerAdapter
	CacheRoot string
	LogsDir   string // empty disables the log endpoints
}

// SetupRouter sets up the HTTP router
func SetupRouter(svc Services) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	// Match on the raw path so an encoded repository name stays one segment
	router.UseRawPath = true
	router.UnescapePathValues = true

	router.Use(middleware.Metrics())
	router.Use(middleware.LoggerWithAdapter(svc.Log))
	router.Use(middleware.Recovery(svc.Log))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(svc.Downloads, svc.Sweeper, svc.CacheRoot)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	cacheHandler := handlers.NewCacheHandler(svc.Cache)
	downloadHandler := handlers.NewDownloadHandler(svc.Downloads, svc.Log.General())
	progressWS := handlers.NewProgressWebSocketHandler(svc.Downloads, svc.Events, svc.Log.General())

	cache := router.Group("/api/cache")
	{
		cache.GET("/stats", cacheHandler.GetStats)
		cache.GET("/files", cacheHandler.ListFiles)
		cache.POST("/clear", cacheHandler.Clear)
		cache.DELETE("/remove/:repoName", cacheHandler.Remove)

		cache.POST("/download", downloadHandler.StartDownload)
		cache.GET("/downloads", downloadHandler.ListDownloads)
		cache.GET("/download/:id/progress", downloadHandler.GetProgress)
		cache.GET("/download/:id/ws", progressWS.HandleWebSocket)
		cache.DELETE("/download/:id", downloadHandler.CancelDownload)
		cache.POST("/download/:id/cancel", downloadHandler.CancelDownload)
	}

	if svc.LogsDir != "" {
		logHandler := handlers.NewLogHandler(svc.LogsDir)
		logs := router.Group("/api/v1/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
			logs.GET("/:category/export", logHandler.ExportLogs)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
