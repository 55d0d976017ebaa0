package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/hfcache-go/internal/app"
	"github.com/yourusername/hfcache-go/internal/domain"
	"go.uber.org/zap"
)

// DownloadHandler handles download-related HTTP requests
type DownloadHandler struct {
	downloadMgr *app.DownloadManager
	logger      *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(downloadMgr *app.DownloadManager, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		downloadMgr: downloadMgr,
		logger:      logger,
	}
}

// StartDownloadRequest represents a request to fetch one file into the cache
type StartDownloadRequest struct {
	RepoID   string `json:"repo_id"`
	Filename string `json:"filename"`
}

// StartDownload handles POST /api/cache/download
func (h *DownloadHandler) StartDownload(c *gin.Context) {
	var req StartDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.ErrInvalidRequestf("invalid request body: %v", err))
		return
	}

	id, err := h.downloadMgr.Start(req.RepoID, req.Filename)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"download_id": id,
		"message":     "Download started",
	})
}

// GetProgress handles GET /api/cache/download/:id/progress
func (h *DownloadHandler) GetProgress(c *gin.Context) {
	download, err := h.downloadMgr.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, download)
}

// ListDownloads handles GET /api/cache/downloads
func (h *DownloadHandler) ListDownloads(c *gin.Context) {
	downloads, err := h.downloadMgr.List()
	if err != nil {
		respondError(c, err)
		return
	}
	if downloads == nil {
		downloads = []*domain.Download{}
	}
	c.JSON(http.StatusOK, gin.H{"downloads": downloads})
}

// CancelDownload handles DELETE /api/cache/download/:id and
// POST /api/cache/download/:id/cancel
func (h *DownloadHandler) CancelDownload(c *gin.Context) {
	id := c.Param("id")
	if err := h.downloadMgr.Cancel(id); err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("Download cancel requested", zap.String("id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Download cancelled"})
}
