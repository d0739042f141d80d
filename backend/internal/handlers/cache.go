package handlers

import (
	"net/http"
	"strings"

	"task-tracker/backend/internal/cache"

	"github.com/gin-gonic/gin"
)

type CacheHandler struct {
	Cache cache.Cache
}

func NewCacheHandler(cacheInstance cache.Cache) *CacheHandler {
	return &CacheHandler{Cache: cacheInstance}
}

// EvictCacheKey evicts a key, or every key matching a trailing-wildcard
// pattern such as task:*
// DELETE /cache/keys/:key
func (h *CacheHandler) EvictCacheKey(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key parameter is required"})
		return
	}

	ctx := c.Request.Context()
	if strings.HasSuffix(key, "*") {
		if err := h.Cache.DeletePattern(ctx, key); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to evict cache pattern", "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "pattern": key})
		return
	}

	if err := h.Cache.Delete(ctx, key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to evict cache key", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "key": key})
}

// GET /cache/health
func (h *CacheHandler) GetCacheHealth(c *gin.Context) {
	if err := h.Cache.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "degraded", "healthy": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "healthy": true})
}

// GET /cache/stats
func (h *CacheHandler) GetCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cache": h.Cache.Stats()})
}
