package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/cadence/internal/channel"
	"github.com/stwalsh4118/cadence/internal/db"
	"github.com/stwalsh4118/cadence/internal/logger"
	"github.com/stwalsh4118/cadence/internal/models"
)

// Request/Response DTOs

// CreateChannelRequest represents a request to create a new channel
type CreateChannelRequest struct {
	Name        string `json:"name" binding:"required"`
	RepeatMode  string `json:"repeat_mode,omitempty"`
	Shuffle     bool   `json:"shuffle,omitempty"`
	ShuffleSeed *int64 `json:"shuffle_seed,omitempty"`
}

// UpdateChannelRequest represents a request to update a channel (partial update)
type UpdateChannelRequest struct {
	Name        *string `json:"name,omitempty"`
	RepeatMode  *string `json:"repeat_mode,omitempty"`
	Shuffle     *bool   `json:"shuffle,omitempty"`
	ShuffleSeed *int64  `json:"shuffle_seed,omitempty"`
}

// ChannelListResponse represents a list of channels
type ChannelListResponse struct {
	Channels []*models.Channel `json:"channels"`
}

// AddToPlaylistRequest adds media to a playlist. Without a position the item is appended.
type AddToPlaylistRequest struct {
	MediaID  string `json:"media_id" binding:"required"`
	Position *int   `json:"position,omitempty" binding:"omitempty,gte=0"`
}

// BulkAddToPlaylistRequest represents a request to add multiple media items to a playlist
type BulkAddToPlaylistRequest struct {
	Items []BulkAddItem `json:"items" binding:"required,min=1,dive"`
}

// BulkAddItem is one entry of a bulk add request
type BulkAddItem struct {
	MediaID  string `json:"media_id" binding:"required"`
	Position int    `json:"position" binding:"gte=0"`
}

// BulkRemoveFromPlaylistRequest represents a request to remove multiple items
type BulkRemoveFromPlaylistRequest struct {
	ItemIDs []string `json:"item_ids" binding:"required,min=1"`
}

// ReorderPlaylistRequest represents a request to reorder playlist items
type ReorderPlaylistRequest struct {
	Items []ReorderItem `json:"items" binding:"required,min=1,dive"`
}

// ReorderItem represents an item position in reorder request
type ReorderItem struct {
	ItemID   string `json:"item_id" binding:"required"`
	Position int    `json:"position" binding:"gte=0"`
}

// PlaylistResponse represents a channel's playlist. The total duration is
// incomplete when an item has an unknown or live duration.
type PlaylistResponse struct {
	Items            []*models.PlaylistItem `json:"items"`
	TotalDurationUs  int64                  `json:"total_duration_us"`
	DurationComplete bool                   `json:"duration_complete"`
}

// ChannelHandler handles channel and playlist API requests
type ChannelHandler struct {
	channelService  *channel.ChannelService
	playlistService *channel.PlaylistService
}

// NewChannelHandler creates a new channel handler instance
func NewChannelHandler(channelService *channel.ChannelService, playlistService *channel.PlaylistService) *ChannelHandler {
	return &ChannelHandler{
		channelService:  channelService,
		playlistService: playlistService,
	}
}

// respondError maps service errors to HTTP responses
func respondError(c *gin.Context, err error, code, message string) {
	switch {
	case channel.IsDuplicateName(err):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "duplicate_name",
			Message: "A channel with this name already exists",
		})
	case channel.IsChannelNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "channel_not_found",
			Message: "Channel not found",
		})
	case channel.IsMediaNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "media_not_found",
			Message: "Media not found",
		})
	case channel.IsPlaylistItemNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "item_not_found",
			Message: "Playlist item not found",
		})
	case channel.IsAdBreakNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "ad_break_not_found",
			Message: "Ad break not found",
		})
	case channel.IsValidationError(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_failed",
			Message: err.Error(),
		})
	default:
		logger.Log.Error().
			Err(err).
			Str("request_path", c.Request.URL.Path).
			Msg(message)

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   code,
			Message: message,
		})
	}
}

// CreateChannel handles POST /api/channels
func (h *ChannelHandler) CreateChannel(c *gin.Context) {
	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	// Without a seed every channel gets its own shuffle order
	seed := time.Now().UnixNano()
	if req.ShuffleSeed != nil {
		seed = *req.ShuffleSeed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	newChannel, err := h.channelService.CreateChannel(ctx, req.Name, req.RepeatMode, req.Shuffle, seed)
	if err != nil {
		respondError(c, err, "create_failed", "Failed to create channel")
		return
	}

	c.JSON(http.StatusCreated, newChannel)
}

// ListChannels handles GET /api/channels
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	channels, err := h.channelService.List(ctx)
	if err != nil {
		respondError(c, err, "query_failed", "Failed to retrieve channel list")
		return
	}

	c.JSON(http.StatusOK, ChannelListResponse{
		Channels: channels,
	})
}

// GetChannel handles GET /api/channels/:id
func (h *ChannelHandler) GetChannel(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "Invalid channel ID format")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	ch, err := h.channelService.GetByID(ctx, id)
	if err != nil {
		respondError(c, err, "query_failed", "Failed to retrieve channel")
		return
	}

	c.JSON(http.StatusOK, ch)
}

// UpdateChannel handles PUT /api/channels/:id
func (h *ChannelHandler) UpdateChannel(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "Invalid channel ID format")
	if !ok {
		return
	}

	var req UpdateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	ch, err := h.channelService.GetByID(ctx, id)
	if err != nil {
		respondError(c, err, "query_failed", "Failed to retrieve channel")
		return
	}

	// Apply partial updates
	if req.Name != nil {
		ch.Name = *req.Name
	}
	if req.RepeatMode != nil {
		ch.RepeatMode = *req.RepeatMode
	}
	if req.Shuffle != nil {
		ch.Shuffle = *req.Shuffle
	}
	if req.ShuffleSeed != nil {
		ch.ShuffleSeed = *req.ShuffleSeed
	}

	if err := h.channelService.UpdateChannel(ctx, ch); err != nil {
		respondError(c, err, "update_failed", "Failed to update channel")
		return
	}

	c.JSON(http.StatusOK, ch)
}

// DeleteChannel handles DELETE /api/channels/:id
func (h *ChannelHandler) DeleteChannel(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "Invalid channel ID format")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.channelService.DeleteChannel(ctx, id); err != nil {
		respondError(c, err, "delete_failed", "Failed to delete channel")
		return
	}

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Channel deleted successfully",
	})
}

// GetPlaylist handles GET /api/channels/:id/playlist
func (h *ChannelHandler) GetPlaylist(c *gin.Context) {
	channelID, ok := parseIDParam(c, "id", "Invalid channel ID format")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	// Verify channel exists
	if _, err := h.channelService.GetByID(ctx, channelID); err != nil {
		respondError(c, err, "query_failed", "Failed to retrieve channel")
		return
	}

	items, err := h.playlistService.GetPlaylist(ctx, channelID)
	if err != nil {
		respondError(c, err, "query_failed", "Failed to retrieve playlist")
		return
	}

	total, complete := h.playlistService.CalculateDuration(items)
	c.JSON(http.StatusOK, PlaylistResponse{
		Items:            items,
		TotalDurationUs:  total,
		DurationComplete: complete,
	})
}

// AddToPlaylist handles POST /api/channels/:id/playlist
func (h *ChannelHandler) AddToPlaylist(c *gin.Context) {
	channelID, ok := parseIDParam(c, "id", "Invalid channel ID format")
	if !ok {
		return
	}

	var req AddToPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	mediaID, err := uuid.Parse(req.MediaID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_media_id",
			Message: "Invalid media ID format",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	var item *models.PlaylistItem
	if req.Position == nil {
		item, err = h.playlistService.AppendToPlaylist(ctx, channelID, mediaID)
	} else {
		item, err = h.playlistService.AddToPlaylist(ctx, channelID, mediaID, *req.Position)
	}
	if err != nil {
		respondError(c, err, "add_failed", "Failed to add media to playlist")
		return
	}

	c.JSON(http.StatusCreated, item)
}

// BulkAddToPlaylist handles POST /api/channels/:id/playlist/bulk
func (h *ChannelHandler) BulkAddToPlaylist(c *gin.Context) {
	channelID, ok := parseIDParam(c, "id", "Invalid channel ID format")
	if !ok {
		return
	}

	var req BulkAddToPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	bulkItems := make([]channel.BulkAddItem, 0, len(req.Items))
	for _, item := range req.Items {
		mediaID, err := uuid.Parse(item.MediaID)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_media_id",
				Message: fmt.Sprintf("Invalid media ID format: %s", item.MediaID),
			})
			return
		}
		bulkItems = append(bulkItems, channel.BulkAddItem{
			MediaID:  mediaID,
			Position: item.Position,
		})
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	items, err := h.playlistService.BulkAddToPlaylist(ctx, channelID, bulkItems)
	if err != nil {
		respondError(c, err, "bulk_add_failed", "Failed to add items to playlist")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"items": items,
		"added": len(items),
	})
}

// RemoveFromPlaylist handles DELETE /api/channels/:id/playlist/:item_id
func (h *ChannelHandler) RemoveFromPlaylist(c *gin.Context) {
	if _, ok := parseIDParam(c, "id", "Invalid channel ID format"); !ok {
		return
	}
	itemID, ok := parseIDParam(c, "item_id", "Invalid item ID format")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.playlistService.RemoveFromPlaylist(ctx, itemID); err != nil {
		respondError(c, err, "remove_failed", "Failed to remove item from playlist")
		return
	}

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Playlist item removed successfully",
	})
}

// BulkRemoveFromPlaylist handles DELETE /api/channels/:id/playlist/bulk
func (h *ChannelHandler) BulkRemoveFromPlaylist(c *gin.Context) {
	channelID, ok := parseIDParam(c, "id", "Invalid channel ID format")
	if !ok {
		return
	}

	var req BulkRemoveFromPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	itemIDs := make([]uuid.UUID, 0, len(req.ItemIDs))
	for _, idStr := range req.ItemIDs {
		itemID, err := uuid.Parse(idStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_item_id",
				Message: fmt.Sprintf("Invalid item ID format: %s", idStr),
			})
			return
		}
		itemIDs = append(itemIDs, itemID)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if err := h.playlistService.BulkRemoveFromPlaylist(ctx, channelID, itemIDs); err != nil {
		respondError(c, err, "bulk_remove_failed", "Failed to remove items from playlist")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"removed": len(itemIDs),
		"message": "Items removed successfully",
	})
}

// ReorderPlaylist handles POST /api/channels/:id/playlist/reorder
func (h *ChannelHandler) ReorderPlaylist(c *gin.Context) {
	channelID, ok := parseIDParam(c, "id", "Invalid channel ID format")
	if !ok {
		return
	}

	var req ReorderPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	reorderItems := make([]db.ReorderItem, len(req.Items))
	for i, item := range req.Items {
		itemID, err := uuid.Parse(item.ItemID)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_item_id",
				Message: fmt.Sprintf("Invalid item ID format at index %d", i),
			})
			return
		}
		reorderItems[i] = db.ReorderItem{
			ID:       itemID,
			Position: item.Position,
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.playlistService.ReorderPlaylist(ctx, channelID, reorderItems); err != nil {
		respondError(c, err, "reorder_failed", "Failed to reorder playlist")
		return
	}

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Playlist reordered successfully",
	})
}

// SetupChannelRoutes registers channel and playlist routes
func SetupChannelRoutes(apiGroup *gin.RouterGroup, channelService *channel.ChannelService, playlistService *channel.PlaylistService) {
	handler := NewChannelHandler(channelService, playlistService)

	// Channel CRUD endpoints
	apiGroup.POST("/channels", handler.CreateChannel)
	apiGroup.GET("/channels", handler.ListChannels)
	apiGroup.GET("/channels/:id", handler.GetChannel)
	apiGroup.PUT("/channels/:id", handler.UpdateChannel)
	apiGroup.DELETE("/channels/:id", handler.DeleteChannel)

	// Playlist endpoints
	apiGroup.GET("/channels/:id/playlist", handler.GetPlaylist)
	apiGroup.POST("/channels/:id/playlist/bulk", handler.BulkAddToPlaylist)
	apiGroup.POST("/channels/:id/playlist", handler.AddToPlaylist)
	apiGroup.DELETE("/channels/:id/playlist/bulk", handler.BulkRemoveFromPlaylist)
	apiGroup.DELETE("/channels/:id/playlist/:item_id", handler.RemoveFromPlaylist)
	apiGroup.POST("/channels/:id/playlist/reorder", handler.ReorderPlaylist)
}
