package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/cadence/internal/channel"
	"github.com/stwalsh4118/cadence/internal/logger"
	"github.com/stwalsh4118/cadence/internal/playback"
	"github.com/stwalsh4118/cadence/internal/queue"
	"github.com/stwalsh4118/cadence/internal/timeline"
)

// TickRequest reports the renderer positions. A missing max read position means
// nothing has been read ahead yet.
type TickRequest struct {
	RendererPositionUs int64  `json:"renderer_position_us"`
	MaxReadPositionUs  *int64 `json:"max_read_position_us,omitempty"`
}

// AdvanceRequest moves the reading or the playing holder forward
type AdvanceRequest struct {
	Target string `json:"target" binding:"required,oneof=reading playing"`
}

// ModeRequest changes the repeat and/or shuffle mode of a session
type ModeRequest struct {
	RepeatMode *string `json:"repeat_mode,omitempty"`
	Shuffle    *bool   `json:"shuffle,omitempty"`
}

// SeekRequest seeks to a position in a window. A missing position selects the
// window's default position.
type SeekRequest struct {
	WindowIndex int    `json:"window_index" binding:"gte=0"`
	PositionUs  *int64 `json:"position_us,omitempty" binding:"omitempty,gte=0"`
}

// PeriodResponse names the media period a command acted on
type PeriodResponse struct {
	PeriodID *queue.MediaPeriodID `json:"period_id"`
}

// ModeResponse reports what a mode change removed from the queue
type ModeResponse struct {
	Reconcile queue.ReconcileResult `json:"reconcile"`
	State     playback.State        `json:"state"`
}

// SessionListResponse represents a list of sessions
type SessionListResponse struct {
	Sessions []playback.State `json:"sessions"`
}

// SessionHandler handles playback session API requests
type SessionHandler struct {
	manager *playback.Manager
}

// NewSessionHandler creates a new session handler instance
func NewSessionHandler(manager *playback.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

// respondSessionError maps playback and queue errors to HTTP responses
func respondSessionError(c *gin.Context, err error, message string) {
	switch {
	case playback.IsSessionNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "session_not_found",
			Message: "Session not found",
		})
	case channel.IsChannelNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "channel_not_found",
			Message: "Channel not found",
		})
	case errors.Is(err, playback.ErrSessionStopped):
		c.JSON(http.StatusGone, ErrorResponse{
			Error:   "session_stopped",
			Message: "Session has stopped",
		})
	case playback.IsConflict(err):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "invalid_state",
			Message: err.Error(),
		})
	case errors.Is(err, queue.ErrPeriodNotFound):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_window",
			Message: err.Error(),
		})
	case queue.IsNotYetResolvable(err):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "not_yet_resolvable",
			Message: err.Error(),
		})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{
			Error:   "timeout",
			Message: "Session did not respond in time",
		})
	default:
		logger.Log.Error().
			Err(err).
			Str("session_id", c.Param("id")).
			Msg(message)

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "session_failed",
			Message: message,
		})
	}
}

func (h *SessionHandler) session(c *gin.Context) (*playback.Session, bool) {
	id, ok := parseIDParam(c, "id", "Invalid session ID format")
	if !ok {
		return nil, false
	}
	s, err := h.manager.Get(id)
	if err != nil {
		respondSessionError(c, err, "Failed to get session")
		return nil, false
	}
	return s, true
}

// CreateSession handles POST /api/channels/:id/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	channelID, ok := parseIDParam(c, "id", "Invalid channel ID format")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	s, err := h.manager.Create(ctx, channelID)
	if err != nil {
		respondSessionError(c, err, "Failed to create session")
		return
	}

	state, err := s.Snapshot(ctx)
	if err != nil {
		respondSessionError(c, err, "Failed to get session state")
		return
	}

	c.JSON(http.StatusCreated, state)
}

// ListSessions handles GET /api/sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	sessions := h.manager.List()
	states := make([]playback.State, 0, len(sessions))
	for _, s := range sessions {
		state, err := s.Snapshot(ctx)
		if errors.Is(err, playback.ErrSessionStopped) {
			continue
		}
		if err != nil {
			respondSessionError(c, err, "Failed to get session state")
			return
		}
		states = append(states, state)
	}

	c.JSON(http.StatusOK, SessionListResponse{Sessions: states})
}

// GetSession handles GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	state, err := s.Snapshot(ctx)
	if err != nil {
		respondSessionError(c, err, "Failed to get session state")
		return
	}

	c.JSON(http.StatusOK, state)
}

// Tick handles POST /api/sessions/:id/tick
func (h *SessionHandler) Tick(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req TickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	maxRead := timeline.TimeUnset
	if req.MaxReadPositionUs != nil {
		maxRead = *req.MaxReadPositionUs
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result, err := s.Tick(ctx, req.RendererPositionUs, maxRead)
	if err != nil {
		respondSessionError(c, err, "Failed to tick session")
		return
	}

	c.JSON(http.StatusOK, result)
}

// MarkLoaded handles POST /api/sessions/:id/loaded
func (h *SessionHandler) MarkLoaded(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	id, err := s.MarkLoaded(ctx)
	if err != nil {
		respondSessionError(c, err, "Failed to mark period loaded")
		return
	}

	c.JSON(http.StatusOK, PeriodResponse{PeriodID: &id})
}

// Advance handles POST /api/sessions/:id/advance
func (h *SessionHandler) Advance(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	var resp PeriodResponse
	if req.Target == "reading" {
		id, err := s.AdvanceReading(ctx)
		if err != nil {
			respondSessionError(c, err, "Failed to advance reading period")
			return
		}
		resp.PeriodID = &id
	} else {
		id, err := s.AdvancePlaying(ctx)
		if err != nil {
			respondSessionError(c, err, "Failed to advance playing period")
			return
		}
		resp.PeriodID = id
	}

	c.JSON(http.StatusOK, resp)
}

// SetMode handles PUT /api/sessions/:id/mode
func (h *SessionHandler) SetMode(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req ModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var repeatMode *timeline.RepeatMode
	if req.RepeatMode != nil {
		mode, err := timeline.ParseRepeatMode(*req.RepeatMode)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_repeat_mode",
				Message: err.Error(),
			})
			return
		}
		repeatMode = &mode
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result, err := s.SetMode(ctx, repeatMode, req.Shuffle)
	if err != nil {
		respondSessionError(c, err, "Failed to set playback mode")
		return
	}
	state, err := s.Snapshot(ctx)
	if err != nil {
		respondSessionError(c, err, "Failed to get session state")
		return
	}

	c.JSON(http.StatusOK, ModeResponse{Reconcile: result, State: state})
}

// Seek handles POST /api/sessions/:id/seek
func (h *SessionHandler) Seek(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req SeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	position := timeline.TimeUnset
	if req.PositionUs != nil {
		position = *req.PositionUs
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	id, err := s.Seek(ctx, req.WindowIndex, position)
	if err != nil {
		respondSessionError(c, err, "Failed to seek")
		return
	}

	c.JSON(http.StatusOK, PeriodResponse{PeriodID: &id})
}

// DeleteSession handles DELETE /api/sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "Invalid session ID format")
	if !ok {
		return
	}

	if err := h.manager.Stop(id); err != nil {
		respondSessionError(c, err, "Failed to stop session")
		return
	}

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Session stopped successfully",
	})
}

// SetupSessionRoutes registers playback session routes
func SetupSessionRoutes(apiGroup *gin.RouterGroup, manager *playback.Manager) {
	handler := NewSessionHandler(manager)

	apiGroup.POST("/channels/:id/sessions", handler.CreateSession)
	apiGroup.GET("/sessions", handler.ListSessions)
	apiGroup.GET("/sessions/:id", handler.GetSession)
	apiGroup.POST("/sessions/:id/tick", handler.Tick)
	apiGroup.POST("/sessions/:id/loaded", handler.MarkLoaded)
	apiGroup.POST("/sessions/:id/advance", handler.Advance)
	apiGroup.PUT("/sessions/:id/mode", handler.SetMode)
	apiGroup.POST("/sessions/:id/seek", handler.Seek)
	apiGroup.DELETE("/sessions/:id", handler.DeleteSession)
}
