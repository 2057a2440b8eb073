package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
)

// UniverseHandler maintains the index_constituents table the db universe source reads.
type UniverseHandler struct {
	Repo repository.Repository
}

func (h *UniverseHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/universe")
	g.GET("/:index", h.list)
	g.PUT("/:index", h.replace)
}

// @Summary List index constituents
// @Tags universe
// @Param index path string true "index code"
// @Success 200 {object} apiResponse
// @Router /api/v1/universe/{index} [get]
func (h *UniverseHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	index := strings.ToUpper(strings.TrimSpace(c.Param("index")))
	items, err := h.Repo.ListConstituents(c.Request.Context(), []string{index})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"count": len(items)})
}

type replaceConstituentsRequest struct {
	Items []models.IndexConstituent `json:"items"`
}

// @Summary Replace index constituents
// @Description Swaps the whole membership of one index.
// @Tags universe
// @Accept json
// @Param index path string true "index code"
// @Param body body replaceConstituentsRequest true "constituents"
// @Success 200 {object} apiResponse
// @Router /api/v1/universe/{index} [put]
func (h *UniverseHandler) replace(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	index := strings.ToUpper(strings.TrimSpace(c.Param("index")))
	if index == "" {
		Error(c, http.StatusBadRequest, "invalid index", nil)
		return
	}
	var req replaceConstituentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	for _, it := range req.Items {
		if strings.TrimSpace(it.Symbol) == "" {
			Error(c, http.StatusBadRequest, "symbol is required for every item", nil)
			return
		}
	}
	if err := h.Repo.ReplaceConstituents(c.Request.Context(), index, req.Items); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	items, _ := h.Repo.ListConstituents(c.Request.Context(), []string{index})
	Ok(c, items, map[string]any{"count": len(items)})
}
