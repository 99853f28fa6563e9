package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/ecolehub/presence-api/pkg/errors"
)

// Envelope is the response contract consumed by the mobile and web clients.
type Envelope struct {
	Success     bool        `json:"success"`
	Data        interface{} `json:"data,omitempty"`
	Message     string      `json:"message,omitempty"`
	Error       string      `json:"error,omitempty"`
	Count       *int        `json:"count,omitempty"`
	Total       *int        `json:"total,omitempty"`
	TotalPages  *int        `json:"totalPages,omitempty"`
	CurrentPage *int        `json:"currentPage,omitempty"`
}

// JSON sends a success response with optional message.
func JSON(c *gin.Context, status int, data interface{}, message string) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, Envelope{Success: true, Data: data, Message: message})
}

// OK responds with HTTP 200 OK.
func OK(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data, "")
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}, message string) {
	JSON(c, http.StatusCreated, data, message)
}

// Paginated sends a page of results with the pagination metadata fields
// (count/total/totalPages/currentPage) the clients rely on.
func Paginated(c *gin.Context, data interface{}, count, total, page, limit int) {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, Envelope{
		Success:     true,
		Data:        data,
		Count:       &count,
		Total:       &total,
		TotalPages:  &totalPages,
		CurrentPage: &page,
	})
}

// Error sends an error response converting the error to the common structure.
// The user-facing message comes from the typed error; the underlying cause is
// exposed in the debug `error` field only.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	envelope := Envelope{Success: false, Message: appErr.Message}
	if appErr.Err != nil {
		envelope.Error = appErr.Err.Error()
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(appErr.Status, envelope)
}
