package handlers

import (
	"errors"
	"net/http"
	"time"

	"cosmicam/internal/logger"
	"cosmicam/internal/repository"
	"cosmicam/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler wires the HTTP layer to the monitoring surface and logging. The
// core loops never see this package; it only reads what they publish.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", h.health)

	api := router.Group("/api/v1")
	{
		api.GET("/status", h.getStatus)
		api.GET("/images", h.listImages)
		api.GET("/images/latest", h.latestImage)
		api.GET("/events", h.listEvents)
	}

	// Live status stream (HTTP upgrade) on the same port.
	router.GET("/ws", h.wsConnect)

	return router
}

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// getStatus returns the last published snapshot. Before the first capture
// or thermal cycle there is nothing to show; that is a defined state, not
// an error.
func (h *Handler) getStatus(c *gin.Context) {
	snap, ok := h.services.Status()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"available": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": true, "status": snap})
}

// latestImage streams the most recent image file by the path recorded in
// the snapshot; the core hands out references, the web layer serves bytes.
// Before the first capture of this run, the metadata index still knows the
// newest image from previous runs.
func (h *Handler) latestImage(c *gin.Context) {
	if snap, ok := h.services.Status(); ok && snap.LatestImage != nil {
		c.Header("Cache-Control", "no-cache")
		c.File(snap.LatestImage.Path)
		return
	}

	img, err := h.services.LatestImage(c.Request.Context())
	if err != nil {
		if errors.Is(err, repository.ErrNoImages) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no image captured yet"})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load latest image", "latest_image_failed", err)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.File(img.Path)
}

func (h *Handler) listImages(c *gin.Context) {
	images, err := h.services.Images(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to list images", "list_images_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images, "count": len(images)})
}

// listEvents returns the system event log, optionally filtered with
// ?from=RFC3339&to=RFC3339&type=NAME.
func (h *Handler) listEvents(c *gin.Context) {
	var f service.LogFilter
	var err error

	if s := c.Query("from"); s != "" {
		if f.From, err = time.Parse(time.RFC3339, s); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from: " + err.Error()})
			return
		}
	}
	if s := c.Query("to"); s != "" {
		if f.To, err = time.Parse(time.RFC3339, s); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to: " + err.Error()})
			return
		}
	}
	f.Type = c.Query("type")

	events, err := h.services.Events(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}
