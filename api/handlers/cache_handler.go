package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/hfcache-go/internal/app"
	"github.com/yourusername/hfcache-go/internal/domain"
)

// CacheHandler handles cache inspection and removal requests
type CacheHandler struct {
	cache *app.CacheService
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(cache *app.CacheService) *CacheHandler {
	return &CacheHandler{cache: cache}
}

// GetStats handles GET /api/cache/stats
func (h *CacheHandler) GetStats(c *gin.Context) {
	stats, err := h.cache.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListFiles handles GET /api/cache/files
func (h *CacheHandler) ListFiles(c *gin.Context) {
	files, err := h.cache.ListFiles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"files":       files,
		"total_count": len(files),
	})
}

// Clear handles POST /api/cache/clear
func (h *CacheHandler) Clear(c *gin.Context) {
	if _, err := h.cache.Clear(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cache cleared successfully"})
}

// Remove handles DELETE /api/cache/remove/:repoName
func (h *CacheHandler) Remove(c *gin.Context) {
	repoName := c.Param("repoName")
	if repoName == "" {
		respondError(c, domain.ErrInvalidRequest("repository name is required"))
		return
	}

	if _, err := h.cache.Remove(c.Request.Context(), repoName); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Repository %s removed successfully", repoName)})
}
