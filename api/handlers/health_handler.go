package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/hfcache-go/internal/app"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	downloadMgr *app.DownloadManager
	sweeper     *app.Sweeper
	cacheRoot   string
}

// NewHealthHandler creates a new health handler. sweeper may be nil when
// record expiry is disabled.
func NewHealthHandler(downloadMgr *app.DownloadManager, sweeper *app.Sweeper, cacheRoot string) *HealthHandler {
	return &HealthHandler{
		downloadMgr: downloadMgr,
		sweeper:     sweeper,
		cacheRoot:   cacheRoot,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	CacheRoot string `json:"cache_root"`
	Downloads struct {
		Accepting bool `json:"accepting"`
	} `json:"downloads"`
	Sweeper struct {
		Running bool `json:"running"`
	} `json:"sweeper"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Version:   Version,
		CacheRoot: h.cacheRoot,
	}
	response.Downloads.Accepting = h.downloadMgr.Accepting()
	response.Sweeper.Running = h.sweeper != nil && h.sweeper.IsRunning()

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.downloadMgr.Accepting() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "download manager is shutting down",
		})
		return
	}
	if h.sweeper != nil && !h.sweeper.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "record sweeper not running",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
