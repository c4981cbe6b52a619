package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/vehicle-service-tracker/internal/application/workflow"
	domainwf "github.com/garyjia/vehicle-service-tracker/internal/domain/workflow"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{services: services, logger: logger}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CredentialsRequest is the body of register and login
type CredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token for rotation or logout
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ChangeStateRequest is the body of PUT /api/vehicles/:id/state
type ChangeStateRequest struct {
	NewStateID int64  `json:"new_state_id" binding:"required"`
	CommentID  *int64 `json:"comment_id"`
}

// HistoryVerification reports whether a vehicle ledger is consistent
type HistoryVerification struct {
	VehicleID  int64  `json:"vehicle_id"`
	Consistent bool   `json:"consistent"`
	Detail     string `json:"detail,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// Register handles POST /auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req CredentialsRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.services.Auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, "failed to register user", err)
		return
	}
	ok(c, http.StatusCreated, user)
}

// Login handles POST /auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req CredentialsRequest
	if !bindJSON(c, &req) {
		return
	}

	pair, err := h.services.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, "failed to log in", err)
		return
	}
	ok(c, http.StatusOK, pair)
}

// Refresh handles POST /auth/refresh
func (h *Handlers) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	pair, err := h.services.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(c, "failed to refresh token", err)
		return
	}
	ok(c, http.StatusOK, pair)
}

// Logout handles POST /auth/logout
func (h *Handlers) Logout(c *gin.Context) {
	var req RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.services.Auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.respondError(c, "failed to log out", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"logged_out": true})
}

// Me handles GET /auth/me
func (h *Handlers) Me(c *gin.Context) {
	user, err := h.services.Auth.CurrentUser(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, "failed to load current user", err)
		return
	}
	ok(c, http.StatusOK, user)
}

// ListStates handles GET /api/states
func (h *Handlers) ListStates(c *gin.Context) {
	states, err := h.services.Lifecycle.GetAllStates(c.Request.Context())
	if err != nil {
		h.respondError(c, "failed to list states", err)
		return
	}
	ok(c, http.StatusOK, states)
}

// GetStateComments handles GET /api/states/:id/comments
func (h *Handlers) GetStateComments(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	comments, err := h.services.Lifecycle.GetStateComments(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "failed to get state comments", err)
		return
	}
	ok(c, http.StatusOK, comments)
}

// ListTransitionsFrom handles GET /api/states/:id/transitions
func (h *Handlers) ListTransitionsFrom(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	transitions, err := h.services.Lifecycle.ListTransitionsFrom(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "failed to list transitions", err)
		return
	}
	ok(c, http.StatusOK, transitions)
}

// GetAllowedTransitions handles GET /api/vehicles/:id/allowed_transitions
func (h *Handlers) GetAllowedTransitions(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	transitions, err := h.services.Lifecycle.GetAllowedTransitions(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "failed to get allowed transitions", err)
		return
	}
	ok(c, http.StatusOK, transitions)
}

// GetCurrentState handles GET /api/vehicles/:id/state
func (h *Handlers) GetCurrentState(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	state, err := h.services.Lifecycle.GetCurrentState(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "failed to get current state", err)
		return
	}
	ok(c, http.StatusOK, state)
}

// ChangeState handles PUT /api/vehicles/:id/state
func (h *Handlers) ChangeState(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req ChangeStateRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.services.Lifecycle.ChangeState(c.Request.Context(), workflow.ChangeStateRequest{
		VehicleID:  id,
		NewStateID: req.NewStateID,
		UserID:     currentUser(c),
		CommentID:  req.CommentID,
	})
	if err != nil {
		h.respondError(c, "failed to change vehicle state", err)
		return
	}
	ok(c, http.StatusOK, entry)
}

// GetStateHistory handles GET /api/vehicles/:id/state_history
func (h *Handlers) GetStateHistory(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	entries, err := h.services.Lifecycle.GetHistory(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "failed to get state history", err)
		return
	}
	ok(c, http.StatusOK, entries)
}

// VerifyStateHistory handles GET /api/vehicles/:id/state_history/verify.
// A broken chain is a successful answer with Consistent=false.
func (h *Handlers) VerifyStateHistory(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	err := h.services.Lifecycle.VerifyHistory(c.Request.Context(), id)
	switch {
	case err == nil:
		ok(c, http.StatusOK, HistoryVerification{VehicleID: id, Consistent: true})
	case errors.Is(err, domainwf.ErrBrokenHistory):
		h.logger.Error("Inconsistent state history", "vehicle_id", id, "error", err)
		ok(c, http.StatusOK, HistoryVerification{VehicleID: id, Consistent: false, Detail: err.Error()})
	default:
		h.respondError(c, "failed to verify state history", err)
	}
}

// ExportStateHistory handles GET /api/vehicles/:id/state_history/export
func (h *Handlers) ExportStateHistory(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	// Buffered so a failure can still be reported as JSON
	var buf bytes.Buffer
	if err := h.services.Export.ExportHistory(c.Request.Context(), id, &buf); err != nil {
		h.respondError(c, "failed to export state history", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="vehicle-%d-history.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
