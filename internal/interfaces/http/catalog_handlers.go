package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/vehicle-service-tracker/internal/application/service"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
)

// NameRequest is the body for catalog entries identified only by name
type NameRequest struct {
	Name string `json:"name" binding:"required"`
}

// ModelRequest is the body of POST and PUT /api/models
type ModelRequest struct {
	Name    string `json:"name" binding:"required"`
	BrandID int64  `json:"brand_id" binding:"required"`
	TypeID  int64  `json:"vehicle_type_id" binding:"required"`
}

// ColorRequest is the body of POST and PUT /api/colors
type ColorRequest struct {
	Name    string `json:"name" binding:"required"`
	HexCode string `json:"hex_code" binding:"required"`
}

// CommentRequest is the body of POST /api/states/:id/comments
type CommentRequest struct {
	Comment string `json:"comment" binding:"required"`
}

// ListVehiclesQuery holds query parameters for listing vehicles
type ListVehiclesQuery struct {
	InProgress bool   `form:"in_progress"`
	VIN        string `form:"vin"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}

// RegistrationsQuery selects the start of the registrations window (YYYY-MM-DD)
type RegistrationsQuery struct {
	Since string `form:"since"`
}

// CountResponse wraps a single count
type CountResponse struct {
	Count int `json:"count"`
}

// CreateState handles POST /api/states
func (h *Handlers) CreateState(c *gin.Context) {
	var req service.StateInput
	if !bindJSON(c, &req) {
		return
	}

	state, err := h.services.Catalog.CreateState(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, "failed to create state", err)
		return
	}
	ok(c, http.StatusCreated, state)
}

// CreateStateComment handles POST /api/states/:id/comments
func (h *Handlers) CreateStateComment(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req CommentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.services.Catalog.CreateStateComment(c.Request.Context(), id, req.Comment)
	if err != nil {
		h.respondError(c, "failed to create state comment", err)
		return
	}
	ok(c, http.StatusCreated, comment)
}

// ListTransitions handles GET /api/transitions
func (h *Handlers) ListTransitions(c *gin.Context) {
	transitions, err := h.services.Catalog.ListTransitions(c.Request.Context())
	if err != nil {
		h.respondError(c, "failed to list transitions", err)
		return
	}
	ok(c, http.StatusOK, transitions)
}

// CreateTransition handles POST /api/transitions
func (h *Handlers) CreateTransition(c *gin.Context) {
	var req service.TransitionInput
	if !bindJSON(c, &req) {
		return
	}

	transition, err := h.services.Catalog.CreateTransition(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, "failed to create transition", err)
		return
	}
	ok(c, http.StatusCreated, transition)
}

// ListVehicles handles GET /api/vehicles
func (h *Handlers) ListVehicles(c *gin.Context) {
	var q ListVehiclesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "invalid_input", "invalid query parameters")
		return
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	vehicles, err := h.services.Vehicles.List(c.Request.Context(), entity.VehicleFilter{
		InProgress: q.InProgress,
		VIN:        q.VIN,
		Limit:      q.Limit,
		Offset:     q.Offset,
	})
	if err != nil {
		h.respondError(c, "failed to list vehicles", err)
		return
	}
	ok(c, http.StatusOK, vehicles)
}

// CreateVehicle handles POST /api/vehicles and places the vehicle in the initial state
func (h *Handlers) CreateVehicle(c *gin.Context) {
	var req service.CreateVehicleInput
	if !bindJSON(c, &req) {
		return
	}

	vehicle, err := h.services.Vehicles.Create(c.Request.Context(), req, currentUser(c))
	if err != nil {
		h.respondError(c, "failed to create vehicle", err)
		return
	}
	ok(c, http.StatusCreated, vehicle)
}

// GetVehicle handles GET /api/vehicles/:id
func (h *Handlers) GetVehicle(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	vehicle, err := h.services.Vehicles.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "failed to get vehicle", err)
		return
	}
	ok(c, http.StatusOK, vehicle)
}

// UpdateVehicle handles PUT /api/vehicles/:id. The state is not writable here.
func (h *Handlers) UpdateVehicle(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req service.UpdateVehicleInput
	if !bindJSON(c, &req) {
		return
	}

	vehicle, err := h.services.Vehicles.Update(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, "failed to update vehicle", err)
		return
	}
	ok(c, http.StatusOK, vehicle)
}

// DeleteVehicle handles DELETE /api/vehicles/:id
func (h *Handlers) DeleteVehicle(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	if err := h.services.Vehicles.Delete(c.Request.Context(), id, currentUser(c)); err != nil {
		h.respondError(c, "failed to delete vehicle", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) ListBrands(c *gin.Context) {
	brands, err := h.services.Catalog.ListBrands(c.Request.Context())
	if err != nil {
		h.respondError(c, "failed to list brands", err)
		return
	}
	ok(c, http.StatusOK, brands)
}

func (h *Handlers) CreateBrand(c *gin.Context) {
	var req NameRequest
	if !bindJSON(c, &req) {
		return
	}
	brand, err := h.services.Catalog.CreateBrand(c.Request.Context(), req.Name)
	if err != nil {
		h.respondError(c, "failed to create brand", err)
		return
	}
	ok(c, http.StatusCreated, brand)
}

func (h *Handlers) GetBrand(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	brand, err := h.services.Catalog.GetBrand(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "failed to get brand", err)
		return
	}
	ok(c, http.StatusOK, brand)
}

func (h *Handlers) UpdateBrand(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req NameRequest
	if !bindJSON(c, &req) {
		return
	}
	brand, err := h.services.Catalog.UpdateBrand(c.Request.Context(), id, req.Name)
	if err != nil {
		h.respondError(c, "failed to update brand", err)
		return
	}
	ok(c, http.StatusOK, brand)
}

func (h *Handlers) DeleteBrand(c *gin.Context) {
	h.deleteByID(c, "failed to delete brand", h.services.Catalog.DeleteBrand)
}

func (h *Handlers) ListVehicleTypes(c *gin.Context) {
	types, err := h.services.Catalog.ListVehicleTypes(c.Request.Context())
	if err != nil {
		h.respondError(c, "failed to list vehicle types", err)
		return
	}
	ok(c, http.StatusOK, types)
}

func (h *Handlers) CreateVehicleType(c *gin.Context) {
	var req NameRequest
	if !bindJSON(c, &req) {
		return
	}
	vt, err := h.services.Catalog.CreateVehicleType(c.Request.Context(), req.Name)
	if err != nil {
		h.respondError(c, "failed to create vehicle type", err)
		return
	}
	ok(c, http.StatusCreated, vt)
}

func (h *Handlers) GetVehicleType(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	vt, err := h.services.Catalog.GetVehicleType(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "failed to get vehicle type", err)
		return
	}
	ok(c, http.StatusOK, vt)
}

func (h *Handlers) UpdateVehicleType(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req NameRequest
	if !bindJSON(c, &req) {
		return
	}
	vt, err := h.services.Catalog.UpdateVehicleType(c.Request.Context(), id, req.Name)
	if err != nil {
		h.respondError(c, "failed to update vehicle type", err)
		return
	}
	ok(c, http.StatusOK, vt)
}

func (h *Handlers) DeleteVehicleType(c *gin.Context) {
	h.deleteByID(c, "failed to delete vehicle type", h.services.Catalog.DeleteVehicleType)
}

func (h *Handlers) ListVehicleModels(c *gin.Context) {
	models, err := h.services.Catalog.ListVehicleModels(c.Request.Context())
	if err != nil {
		h.respondError(c, "failed to list models", err)
		return
	}
	ok(c, http.StatusOK, models)
}

func (h *Handlers) CreateVehicleModel(c *gin.Context) {
	var req ModelRequest
	if !bindJSON(c, &req) {
		return
	}
	model, err := h.services.Catalog.CreateVehicleModel(c.Request.Context(), req.Name, req.BrandID, req.TypeID)
	if err != nil {
		h.respondError(c, "failed to create model", err)
		return
	}
	ok(c, http.StatusCreated, model)
}

func (h *Handlers) GetVehicleModel(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	model, err := h.services.Catalog.GetVehicleModel(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "failed to get model", err)
		return
	}
	ok(c, http.StatusOK, model)
}

func (h *Handlers) UpdateVehicleModel(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req ModelRequest
	if !bindJSON(c, &req) {
		return
	}
	model, err := h.services.Catalog.UpdateVehicleModel(c.Request.Context(), id, req.Name, req.BrandID, req.TypeID)
	if err != nil {
		h.respondError(c, "failed to update model", err)
		return
	}
	ok(c, http.StatusOK, model)
}

func (h *Handlers) DeleteVehicleModel(c *gin.Context) {
	h.deleteByID(c, "failed to delete model", h.services.Catalog.DeleteVehicleModel)
}

func (h *Handlers) ListColors(c *gin.Context) {
	colors, err := h.services.Catalog.ListColors(c.Request.Context())
	if err != nil {
		h.respondError(c, "failed to list colors", err)
		return
	}
	ok(c, http.StatusOK, colors)
}

func (h *Handlers) CreateColor(c *gin.Context) {
	var req ColorRequest
	if !bindJSON(c, &req) {
		return
	}
	color, err := h.services.Catalog.CreateColor(c.Request.Context(), req.Name, req.HexCode)
	if err != nil {
		h.respondError(c, "failed to create color", err)
		return
	}
	ok(c, http.StatusCreated, color)
}

func (h *Handlers) GetColor(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	color, err := h.services.Catalog.GetColor(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "failed to get color", err)
		return
	}
	ok(c, http.StatusOK, color)
}

func (h *Handlers) UpdateColor(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req ColorRequest
	if !bindJSON(c, &req) {
		return
	}
	color, err := h.services.Catalog.UpdateColor(c.Request.Context(), id, req.Name, req.HexCode)
	if err != nil {
		h.respondError(c, "failed to update color", err)
		return
	}
	ok(c, http.StatusOK, color)
}

func (h *Handlers) DeleteColor(c *gin.Context) {
	h.deleteByID(c, "failed to delete color", h.services.Catalog.DeleteColor)
}

// DashboardSummary handles GET /api/dashboard
func (h *Handlers) DashboardSummary(c *gin.Context) {
	summary, err := h.services.Dashboard.Summary(c.Request.Context())
	if err != nil {
		h.respondError(c, "failed to build dashboard", err)
		return
	}
	ok(c, http.StatusOK, summary)
}

// CountVehicles handles GET /api/dashboard/vehicles/count
func (h *Handlers) CountVehicles(c *gin.Context) {
	n, err := h.services.Dashboard.CountVehicles(c.Request.Context())
	if err != nil {
		h.respondError(c, "failed to count vehicles", err)
		return
	}
	ok(c, http.StatusOK, CountResponse{Count: n})
}

// CountInProgress handles GET /api/dashboard/vehicles/in_progress
func (h *Handlers) CountInProgress(c *gin.Context) {
	n, err := h.services.Dashboard.CountInProgress(c.Request.Context())
	if err != nil {
		h.respondError(c, "failed to count vehicles in progress", err)
		return
	}
	ok(c, http.StatusOK, CountResponse{Count: n})
}

// RegistrationsByMonth handles GET /api/dashboard/vehicles/registrations.
// Without ?since the window is the last twelve months.
func (h *Handlers) RegistrationsByMonth(c *gin.Context) {
	var q RegistrationsQuery
	_ = c.ShouldBindQuery(&q)

	since := time.Now().UTC().AddDate(-1, 0, 0)
	if q.Since != "" {
		parsed, err := time.Parse(time.DateOnly, q.Since)
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid_input", "since must be YYYY-MM-DD")
			return
		}
		since = parsed
	}

	counts, err := h.services.Dashboard.RegistrationsByMonth(c.Request.Context(), since)
	if err != nil {
		h.respondError(c, "failed to count registrations", err)
		return
	}
	ok(c, http.StatusOK, counts)
}

func (h *Handlers) deleteByID(c *gin.Context, msg string, del func(ctx context.Context, id int64) error) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := del(c.Request.Context(), id); err != nil {
		h.respondError(c, msg, err)
		return
	}
	c.Status(http.StatusNoContent)
}
