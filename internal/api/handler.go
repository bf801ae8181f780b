package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fipeline/internal/catalog"
	"fipeline/internal/logger"
	"fipeline/pkg/errors"
)

type Handler struct {
	service *catalog.Service
	logger  logger.Logger
}

func NewHandler(service *catalog.Service, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		brands := v1.Group("/brands")
		{
			brands.GET("", h.ListBrands)
			brands.GET("/:brand/vehicles", h.ListVehiclesByBrand)
		}

		vehicles := v1.Group("/vehicles")
		{
			vehicles.PUT("/:id", h.UpdateVehicle)
		}
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

func (h *Handler) ListBrands(c *gin.Context) {
	brands, err := h.service.ListBrands(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	if brands == nil {
		brands = []catalog.Brand{}
	}
	c.JSON(http.StatusOK, brands)
}

// ListVehiclesByBrand resolves the path segment as a brand name. Listings are
// served through the cache.
func (h *Handler) ListVehiclesByBrand(c *gin.Context) {
	brand := c.Param("brand")

	vehicles, err := h.service.ListVehiclesByBrandName(c.Request.Context(), brand)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if vehicles == nil {
		vehicles = []catalog.Vehicle{}
	}
	c.JSON(http.StatusOK, vehicles)
}

type UpdateVehicleRequest struct {
	Model        string `json:"model"`
	Observations string `json:"observations"`
}

func (h *Handler) UpdateVehicle(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
			errors.ErrValidation.WithDetail("message", "vehicle id must be numeric").WithCause(err),
		))
		return
	}

	var req UpdateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	vehicle, err := h.service.UpdateVehicle(c.Request.Context(), id, req.Model, req.Observations)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, vehicle)
}
