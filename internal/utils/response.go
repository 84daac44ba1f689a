package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ResponseData is the envelope of every JSON response.
type ResponseData struct {
	Status    int         `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
}

// requestID is set by the request logger middleware.
func requestID(c *gin.Context) string {
	return c.GetString("requestID")
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, ResponseData{
		Status:    status,
		Message:   message,
		Data:      data,
		RequestID: requestID(c),
	})
}

func Success(c *gin.Context, message string, data interface{}) {
	respond(c, http.StatusOK, message, data)
}

func Created(c *gin.Context, message string, data interface{}) {
	respond(c, http.StatusCreated, message, data)
}

// Error writes an error envelope and aborts the handler chain, so
// middleware can answer without calling c.Abort itself.
func Error(c *gin.Context, statusCode int, errorMessage string) {
	c.AbortWithStatusJSON(statusCode, ResponseData{
		Status:    statusCode,
		Message:   http.StatusText(statusCode),
		Error:     errorMessage,
		RequestID: requestID(c),
	})
}

func BadRequest(c *gin.Context, errorMessage string) {
	Error(c, http.StatusBadRequest, errorMessage)
}

func Unauthorized(c *gin.Context, errorMessage string) {
	Error(c, http.StatusUnauthorized, errorMessage)
}

func Forbidden(c *gin.Context, errorMessage string) {
	Error(c, http.StatusForbidden, errorMessage)
}

func NotFound(c *gin.Context, errorMessage string) {
	Error(c, http.StatusNotFound, errorMessage)
}

func Conflict(c *gin.Context, errorMessage string) {
	Error(c, http.StatusConflict, errorMessage)
}

func TooManyRequests(c *gin.Context, errorMessage string) {
	Error(c, http.StatusTooManyRequests, errorMessage)
}

func InternalServerError(c *gin.Context, errorMessage string) {
	Error(c, http.StatusInternalServerError, errorMessage)
}

// Attachment streams a generated document as a download.
func Attachment(c *gin.Context, filename, contentType string, body []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, contentType, body)
}
