package media

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/abduss/mediagate/internal/auth"
	"github.com/abduss/mediagate/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterRoutes mounts the proxy and cache admin endpoints under /media,
// all behind the session gate. The debug endpoint answers 404 unless enabled.
func RegisterRoutes(group *gin.RouterGroup, service *Service, authn auth.Authenticator, debugEnabled bool) {
	handler := &httpHandler{service: service, debugEnabled: debugEnabled}
	mediaGroup := group.Group("/media", auth.RequireSession(authn))
	{
		mediaGroup.GET("/file/*filename", handler.serveFile)
		mediaGroup.GET("/cache", handler.cacheStats)
		mediaGroup.DELETE("/cache", handler.clearCache)
		mediaGroup.POST("/preload", handler.preload)
		mediaGroup.GET("/debug/*filename", handler.debug)
	}
}

type httpHandler struct {
	service      *Service
	debugEnabled bool
}

type preloadRequest struct {
	Files []string `json:"files"`
	Limit int      `json:"limit"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func filenameParam(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("filename"), "/")
}

func (h *httpHandler) serveFile(c *gin.Context) {
	download, err := h.service.Open(c.Request.Context(), filenameParam(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrMediaNotFound):
			c.String(http.StatusNotFound, "Not Found")
		case errors.Is(err, ErrUpstreamUnavailable):
			c.String(http.StatusServiceUnavailable, "Service Unavailable")
		default:
			logger.FromContext(c.Request.Context()).Error("serve media failed", zap.Error(err))
			c.String(http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}
	defer download.Body.Close()

	c.Header("Content-Type", download.Record.ContentType())
	c.Header("Content-Disposition", contentDisposition(download.Record.Filename))
	c.Header("Cache-Control", "private, no-cache")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	if download.ContentLength >= 0 {
		c.Header("Content-Length", strconv.FormatInt(download.ContentLength, 10))
	}
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, download.Body); err != nil {
		// headers are already sent; the client sees a truncated body
		logger.FromContext(c.Request.Context()).Warn("media stream interrupted",
			zap.String("filename", download.Record.Filename), zap.String("step", "stream"), zap.Error(err))
	}
}

func contentDisposition(filename string) string {
	if v := mime.FormatMediaType("inline", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "inline"
}

func (h *httpHandler) cacheStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("cache stats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to read cache", "timestamp": timestamp()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cache": stats, "timestamp": timestamp()})
}

func (h *httpHandler) clearCache(c *gin.Context) {
	if err := h.service.Clear(c.Request.Context()); err != nil {
		logger.FromContext(c.Request.Context()).Error("cache clear failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to clear cache", "timestamp": timestamp()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Blob URL cache cleared", "timestamp": timestamp()})
}

func (h *httpHandler) preload(c *gin.Context) {
	var req preloadRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body", "timestamp": timestamp()})
			return
		}
	}

	results, err := h.service.Preload(c.Request.Context(), req.Files, req.Limit)
	if errors.Is(err, ErrPreloadTooLarge) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     "at most " + strconv.Itoa(MaxPreloadFiles) + " files per preload",
			"timestamp": timestamp(),
		})
		return
	}
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("preload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to preload media", "timestamp": timestamp()})
		return
	}

	resolved := 0
	for _, r := range results {
		if r.Resolved {
			resolved++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Preloaded " + strconv.Itoa(resolved) + " of " + strconv.Itoa(len(results)) + " files",
		"files":     results,
		"timestamp": timestamp(),
	})
}

func (h *httpHandler) debug(c *gin.Context) {
	if !h.debugEnabled {
		c.String(http.StatusNotFound, "Not Found")
		return
	}

	report, err := h.service.Debug(c.Request.Context(), filenameParam(c))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrUpstreamUnavailable) {
			status = http.StatusServiceUnavailable
		}
		logger.FromContext(c.Request.Context()).Error("media debug failed", zap.Error(err))
		c.JSON(status, gin.H{"success": false, "error": "failed to inspect storage", "timestamp": timestamp()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"record":        report.Record,
		"total_objects": report.TotalObjects,
		"candidates":    report.Candidates,
		"match":         report.Match,
		"timestamp":     timestamp(),
	})
}
