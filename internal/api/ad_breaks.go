package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/cadence/internal/channel"
	"github.com/stwalsh4118/cadence/internal/models"
)

// CreateAdBreakRequest schedules an ad break in a playlist item. A post-roll ignores
// time_us; a missing ad_count means the number of ads is not known yet.
type CreateAdBreakRequest struct {
	TimeUs                int64 `json:"time_us" binding:"gte=0"`
	PostRoll              bool  `json:"post_roll"`
	AdCount               *int  `json:"ad_count,omitempty" binding:"omitempty,gte=0"`
	AdDurationUs          int64 `json:"ad_duration_us" binding:"gte=0"`
	ServerSideInserted    bool  `json:"server_side_inserted"`
	ContentResumeOffsetUs int64 `json:"content_resume_offset_us" binding:"gte=0"`
}

// SetAdStateRequest sets the playback state of one ad
type SetAdStateRequest struct {
	State string `json:"state" binding:"required"`
}

// AdBreakHandler handles ad break API requests
type AdBreakHandler struct {
	playlistService *channel.PlaylistService
}

// NewAdBreakHandler creates a new ad break handler instance
func NewAdBreakHandler(playlistService *channel.PlaylistService) *AdBreakHandler {
	return &AdBreakHandler{playlistService: playlistService}
}

// CreateAdBreak handles POST /api/playlist/:item_id/ad-breaks
func (h *AdBreakHandler) CreateAdBreak(c *gin.Context) {
	itemID, ok := parseIDParam(c, "item_id", "Invalid item ID format")
	if !ok {
		return
	}

	var req CreateAdBreakRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	adBreak := models.NewAdBreak(itemID, req.TimeUs)
	adBreak.PostRoll = req.PostRoll
	adBreak.AdCount = req.AdCount
	adBreak.AdDurationUs = req.AdDurationUs
	adBreak.ServerSideInserted = req.ServerSideInserted
	adBreak.ContentResumeOffsetUs = req.ContentResumeOffsetUs

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	created, err := h.playlistService.AddAdBreak(ctx, itemID, adBreak)
	if err != nil {
		respondError(c, err, "create_failed", "Failed to add ad break")
		return
	}

	c.JSON(http.StatusCreated, created)
}

// SetAdState handles PUT /api/ad-breaks/:break_id/ads/:index
func (h *AdBreakHandler) SetAdState(c *gin.Context) {
	breakID, ok := parseIDParam(c, "break_id", "Invalid ad break ID format")
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_index",
			Message: "Ad index must be a non-negative integer",
		})
		return
	}

	var req SetAdStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	updated, err := h.playlistService.SetAdState(ctx, breakID, index, req.State)
	if err != nil {
		respondError(c, err, "update_failed", "Failed to set ad state")
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteAdBreak handles DELETE /api/ad-breaks/:break_id
func (h *AdBreakHandler) DeleteAdBreak(c *gin.Context) {
	breakID, ok := parseIDParam(c, "break_id", "Invalid ad break ID format")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.playlistService.RemoveAdBreak(ctx, breakID); err != nil {
		respondError(c, err, "delete_failed", "Failed to delete ad break")
		return
	}

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Ad break deleted successfully",
	})
}

// SetupAdBreakRoutes registers ad break routes
func SetupAdBreakRoutes(apiGroup *gin.RouterGroup, playlistService *channel.PlaylistService) {
	handler := NewAdBreakHandler(playlistService)

	apiGroup.POST("/playlist/:item_id/ad-breaks", handler.CreateAdBreak)
	apiGroup.PUT("/ad-breaks/:break_id/ads/:index", handler.SetAdState)
	apiGroup.DELETE("/ad-breaks/:break_id", handler.DeleteAdBreak)
}
