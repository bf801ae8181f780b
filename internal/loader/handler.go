package loader

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fipeline/internal/logger"
	"fipeline/pkg/errors"
)

// Handler exposes the load trigger. Loads run inline on the request; the
// summary in the response tells the operator what actually happened.
type Handler struct {
	loader *Loader
	logger logger.Logger
}

func NewHandler(l *Loader, log logger.Logger) *Handler {
	return &Handler{loader: l, logger: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/load", h.Load)
	}
}

func (h *Handler) Load(c *gin.Context) {
	summary, err := h.loader.Load(c.Request.Context())
	if err != nil {
		h.logger.ErrorwCtx(c.Request.Context(), "Brand load failed", "error", err)
		c.JSON(errors.ToHTTPStatus(err), gin.H{
			"error":   errors.ToErrorResponse(err),
			"partial": summary,
		})
		return
	}

	c.JSON(http.StatusOK, summary)
}
