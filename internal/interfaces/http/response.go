package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
	domainwf "github.com/garyjia/vehicle-service-tracker/internal/domain/workflow"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	// Code is a stable machine-readable error kind
	Code string `json:"code,omitempty"`
}

// errorKind maps a domain error to its HTTP status and code
type errorKind struct {
	target error
	status int
	code   string
}

// Order matters only for errors wrapping more than one sentinel.
var errorKinds = []errorKind{
	{domainwf.ErrStateNotFound, http.StatusNotFound, "state_not_found"},
	{domainwf.ErrNoCommentsForState, http.StatusNotFound, "no_comments_for_state"},
	{domainwf.ErrNotFound, http.StatusNotFound, "not_found"},
	{entity.ErrNotFound, http.StatusNotFound, "not_found"},
	{domainwf.ErrInvalidState, http.StatusBadRequest, "invalid_state"},
	{domainwf.ErrInvalidTransition, http.StatusBadRequest, "invalid_transition"},
	{domainwf.ErrInvalidComment, http.StatusBadRequest, "invalid_comment"},
	{entity.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domainwf.ErrConcurrentModification, http.StatusConflict, "concurrent_modification"},
	{domainwf.ErrAlreadyInitialized, http.StatusConflict, "already_initialized"},
	{entity.ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{entity.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domainwf.ErrBrokenHistory, http.StatusConflict, "broken_history"},
	{domainwf.ErrConfiguration, http.StatusInternalServerError, "configuration_error"},
}

// classify returns the status and code for err. Unknown errors are internal.
func classify(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Error: message, Code: code})
}

// respondError writes err as an envelope. Internal failures are logged and
// their detail is withheld from the client.
func (h *Handlers) respondError(c *gin.Context, msg string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "path", c.FullPath(), "error", err)
		fail(c, status, code, msg)
		return
	}
	fail(c, status, code, err.Error())
}

// pathID parses a positive integer path parameter
func pathID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid_input", "invalid "+name+": "+raw)
		return 0, false
	}
	return id, true
}

// bindJSON decodes the request body, answering 400 on failure
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, "invalid_input", "invalid request body: "+err.Error())
		return false
	}
	return true
}
