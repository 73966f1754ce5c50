package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestTimeout = 5 * time.Second

// DeleteResponse represents a successful delete operation
type DeleteResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// parseIDParam parses a UUID path parameter, writing a 400 response when invalid
func parseIDParam(c *gin.Context, param, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		code := "invalid_id"
		if param != "id" {
			code = "invalid_" + param
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   code,
			Message: message,
		})
		return uuid.Nil, false
	}
	return id, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: "Invalid request body: " + err.Error(),
	})
}
