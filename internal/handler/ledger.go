package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
)

// LedgerHandler serves the read side: positions, orders and the decision log.
type LedgerHandler struct {
	Repo repository.Repository
}

func (h *LedgerHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/positions", h.positions)
	r.GET("/api/v1/orders", h.orders)
	r.GET("/api/v1/orders/:id", h.order)
	r.GET("/api/v1/decisions", h.decisions)
}

// @Summary List positions
// @Tags ledger
// @Param rule_id query int false "rule id"
// @Param symbol query string false "symbol"
// @Param status query string false "open|closed|void"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/positions [get]
func (h *LedgerHandler) positions(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	items, err := h.Repo.ListPositions(c.Request.Context(), repository.ListPositionsParams{
		RuleID: uint64QueryPtr(c, "rule_id"),
		Symbol: strQueryPtr(c, "symbol"),
		Status: strQueryPtr(c, "status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, listMeta(limit, offset, len(items)))
}

// @Summary List orders
// @Tags ledger
// @Param rule_id query int false "rule id"
// @Param symbol query string false "symbol"
// @Param status query string false "pending|filled|rejected|failed"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/orders [get]
func (h *LedgerHandler) orders(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	items, err := h.Repo.ListOrders(c.Request.Context(), repository.ListOrdersParams{
		RuleID:  uint64QueryPtr(c, "rule_id"),
		Symbol:  strQueryPtr(c, "symbol"),
		Status:  strQueryPtr(c, "status"),
		Limit:   limit,
		Offset:  offset,
		OrderBy: "created_at",
		Asc:     boolPtr(false),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, listMeta(limit, offset, len(items)))
}

// @Summary Get an order
// @Tags ledger
// @Param id path int true "order id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/orders/{id} [get]
func (h *LedgerHandler) order(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetOrderByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "order not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Rolling decision log
// @Tags ledger
// @Param rule_id query int false "rule id"
// @Param tick_id query string false "tick id"
// @Param outcome query string false "accepted|skipped|failed|data_gap|error|hold"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/decisions [get]
func (h *LedgerHandler) decisions(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	items, err := h.Repo.ListDecisionLogs(c.Request.Context(), repository.ListDecisionLogsParams{
		RuleID:  uint64QueryPtr(c, "rule_id"),
		TickID:  strQueryPtr(c, "tick_id"),
		Outcome: strQueryPtr(c, "outcome"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, listMeta(limit, offset, len(items)))
}
