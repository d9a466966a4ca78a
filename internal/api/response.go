package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/dns"
)

// Response is the JSON body of every reconcile answer.
type Response struct {
	Changed bool           `json:"changed"`
	Action  string         `json:"action,omitempty"`
	Record  *dns.Recordset `json:"record"`
}

// ErrorResponse is the JSON body of a failed request. StatusCode carries the
// upstream API status when the failure came from the DNS server.
type ErrorResponse struct {
	Failed     bool   `json:"failed"`
	Message    string `json:"msg"`
	StatusCode int    `json:"status_code,omitempty"`
}

// Fail sends an error response with the given HTTP status and message.
func Fail(c *gin.Context, httpStatus int, message string, upstreamStatus int) {
	c.JSON(httpStatus, ErrorResponse{Failed: true, Message: message, StatusCode: upstreamStatus})
}

// HealthHandler handles GET /healthz.
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
