package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/cadence/internal/channel"
	"github.com/stwalsh4118/cadence/internal/db"
	"github.com/stwalsh4118/cadence/internal/logger"
	"github.com/stwalsh4118/cadence/internal/models"
	"github.com/stwalsh4118/cadence/internal/source"
)

const (
	defaultMediaLimit = 20
	maxMediaLimit     = 10000
)

// CreateMediaRequest registers a media source. Live .m3u8 sources take their
// duration from the manifest.
type CreateMediaRequest struct {
	FilePath   string `json:"file_path" binding:"required"`
	Title      string `json:"title" binding:"required"`
	DurationUs int64  `json:"duration_us" binding:"gte=0"`
	IsSeekable *bool  `json:"is_seekable,omitempty"`
}

// UpdateMediaRequest represents a request to update media metadata
type UpdateMediaRequest struct {
	Title      *string `json:"title,omitempty"`
	DurationUs *int64  `json:"duration_us,omitempty" binding:"omitempty,gte=0"`
	IsSeekable *bool   `json:"is_seekable,omitempty"`
}

// MediaListResponse represents a paginated list of media items
type MediaListResponse struct {
	Items  []*models.Media `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// MediaResponse is a media item with the manifest state of live sources
type MediaResponse struct {
	*models.Media
	Live     bool             `json:"live"`
	Manifest *source.Manifest `json:"manifest,omitempty"`
}

// MediaHandler handles media-related API requests
type MediaHandler struct {
	repos           *db.Repositories
	playlistService *channel.PlaylistService
}

// NewMediaHandler creates a new media handler instance
func NewMediaHandler(repos *db.Repositories, playlistService *channel.PlaylistService) *MediaHandler {
	return &MediaHandler{
		repos:           repos,
		playlistService: playlistService,
	}
}

func toMediaResponse(m *models.Media) *MediaResponse {
	resp := &MediaResponse{Media: m, Live: m.IsLive()}
	if resp.Live {
		// A missing manifest is reported as live without manifest details
		if manifest, err := source.ReadManifest(m.FilePath); err == nil {
			resp.Manifest = manifest
		}
	}
	return resp
}

// CreateMedia handles POST /api/media
func (h *MediaHandler) CreateMedia(c *gin.Context) {
	var req CreateMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	mediaItem := models.NewMedia(req.FilePath, req.Title, req.DurationUs)
	if req.IsSeekable != nil {
		mediaItem.IsSeekable = *req.IsSeekable
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.repos.Media.Create(ctx, mediaItem); err != nil {
		if db.IsDuplicate(err) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "duplicate_path",
				Message: "Media with this file path already exists",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("file_path", req.FilePath).
			Msg("Failed to create media")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "create_failed",
			Message: "Failed to create media",
		})
		return
	}

	logger.Log.Info().
		Str("id", mediaItem.ID.String()).
		Str("file_path", mediaItem.FilePath).
		Bool("live", mediaItem.IsLive()).
		Msg("Media created successfully")

	c.JSON(http.StatusCreated, toMediaResponse(mediaItem))
}

// ListMedia handles GET /api/media
func (h *MediaHandler) ListMedia(c *gin.Context) {
	limit := defaultMediaLimit
	unlimitedFetch := false

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			if l == -1 {
				// Special case: fetch all items
				unlimitedFetch = true
				limit = 0
			} else if l > 0 {
				limit = min(l, maxMediaLimit)
			}
		}
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	mediaItems, err := h.repos.Media.List(ctx, limit, offset)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("Failed to list media")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve media list",
		})
		return
	}

	totalCount, err := h.repos.Media.Count(ctx)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to count media")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve media count",
		})
		return
	}

	responseLimit := limit
	if unlimitedFetch {
		responseLimit = int(totalCount)
	}

	c.JSON(http.StatusOK, MediaListResponse{
		Items:  mediaItems,
		Total:  int(totalCount),
		Limit:  responseLimit,
		Offset: offset,
	})
}

// GetMedia handles GET /api/media/:id
func (h *MediaHandler) GetMedia(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "Invalid media ID format")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	mediaItem, err := h.repos.Media.GetByID(ctx, id)
	if err != nil {
		h.respondLookupError(c, err, "Failed to get media by ID")
		return
	}

	c.JSON(http.StatusOK, toMediaResponse(mediaItem))
}

// UpdateMedia handles PUT /api/media/:id
func (h *MediaHandler) UpdateMedia(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "Invalid media ID format")
	if !ok {
		return
	}

	var req UpdateMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	mediaItem, err := h.repos.Media.GetByID(ctx, id)
	if err != nil {
		h.respondLookupError(c, err, "Failed to get media for update")
		return
	}

	// Apply partial updates
	if req.Title != nil {
		mediaItem.Title = *req.Title
	}
	if req.DurationUs != nil {
		mediaItem.DurationUs = *req.DurationUs
	}
	if req.IsSeekable != nil {
		mediaItem.IsSeekable = *req.IsSeekable
	}

	if err := h.playlistService.UpdateMedia(ctx, mediaItem); err != nil {
		logger.Log.Error().
			Err(err).
			Str("id", id.String()).
			Msg("Failed to update media")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "update_failed",
			Message: "Failed to update media",
		})
		return
	}

	logger.Log.Info().
		Str("id", id.String()).
		Msg("Media updated successfully")

	c.JSON(http.StatusOK, toMediaResponse(mediaItem))
}

// DeleteMedia handles DELETE /api/media/:id
func (h *MediaHandler) DeleteMedia(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "Invalid media ID format")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	// Playlists referencing the media are notified by the service
	if err := h.playlistService.DeleteMedia(ctx, id); err != nil {
		if channel.IsMediaNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Media not found",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("id", id.String()).
			Msg("Failed to delete media")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "delete_failed",
			Message: "Failed to delete media",
		})
		return
	}

	logger.Log.Info().
		Str("id", id.String()).
		Msg("Media deleted successfully")

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Media deleted successfully",
	})
}

func (h *MediaHandler) respondLookupError(c *gin.Context, err error, msg string) {
	if db.IsNotFound(err) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Media not found",
		})
		return
	}

	logger.Log.Error().
		Err(err).
		Str("id", c.Param("id")).
		Msg(msg)

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "query_failed",
		Message: "Failed to retrieve media",
	})
}

// SetupMediaRoutes registers media-related routes
func SetupMediaRoutes(apiGroup *gin.RouterGroup, repos *db.Repositories, playlistService *channel.PlaylistService) {
	handler := NewMediaHandler(repos, playlistService)

	apiGroup.POST("/media", handler.CreateMedia)
	apiGroup.GET("/media", handler.ListMedia)
	apiGroup.GET("/media/:id", handler.GetMedia)
	apiGroup.PUT("/media/:id", handler.UpdateMedia)
	apiGroup.DELETE("/media/:id", handler.DeleteMedia)
}
