package jobs

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Statuses *StatusStore
}

func NewHandler(statuses *StatusStore) *Handler {
	return &Handler{Statuses: statuses}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id", h.get) // GET /jobs/:id
}

func (h *Handler) get(c *gin.Context) {
	st, ok := h.Statuses.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, st)
}
