package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/position"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
	"github.com/gnidc/Sheet-Manager-sub001/internal/runner"
	"github.com/gnidc/Sheet-Manager-sub001/internal/strategy"
	"github.com/gnidc/Sheet-Manager-sub001/internal/universe"
)

// TickRunner is the part of the strategy runner the API triggers.
type TickRunner interface {
	RunRule(ctx context.Context, ruleID uint64, opts runner.TickOptions) (runner.TickReport, error)
	RunActive(ctx context.Context, opts runner.TickOptions) ([]runner.TickReport, error)
	Liquidate(ctx context.Context, ruleID uint64) (runner.TickReport, error)
}

type RuleHandler struct {
	Repo   repository.Repository
	Runner TickRunner
}

func (h *RuleHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/rules")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.GET("/:id/status", h.status)
	g.PUT("/:id/params", h.putParams)
	g.PUT("/:id/caps", h.putCaps)
	g.POST("/:id/activate", h.activate)
	g.POST("/:id/pause", h.pause)
	g.POST("/:id/tick", h.tick)
	g.POST("/:id/liquidate", h.liquidate)

	r.POST("/api/v1/ticks", h.tickAll)
}

// @Summary List strategy rules
// @Tags rules
// @Param status query string false "active|paused|error"
// @Param kind query string false "gap_momentum|multi_factor"
// @Param owner query string false "owner"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/rules [get]
func (h *RuleHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	items, err := h.Repo.ListRules(c.Request.Context(), repository.ListRulesParams{
		Status:  strQueryPtr(c, "status"),
		Kind:    strQueryPtr(c, "kind"),
		Owner:   strQueryPtr(c, "owner"),
		Limit:   limit,
		Offset:  offset,
		OrderBy: "id",
		Asc:     boolPtr(true),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, listMeta(limit, offset, len(items)))
}

type createRuleRequest struct {
	Name             string          `json:"name"`
	Kind             string          `json:"kind"`
	Owner            string          `json:"owner"`
	UniverseFilter   json.RawMessage `json:"universe_filter"`
	Params           json.RawMessage `json:"params"`
	AllocatedBalance *string         `json:"allocated_balance"`
	PerSymbolCapPct  *string         `json:"per_symbol_cap_pct"`
	PortfolioCapPct  *string         `json:"portfolio_cap_pct"`
	Paused           bool            `json:"paused"`
}

// @Summary Create a strategy rule
// @Tags rules
// @Accept json
// @Param body body createRuleRequest true "rule"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/v1/rules [post]
func (h *RuleHandler) create(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		Error(c, http.StatusBadRequest, "name is required", nil)
		return
	}
	kind := strings.TrimSpace(req.Kind)
	params, err := strategy.NormalizeParams(kind, req.Params)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	filter, err := normalizeFilter(req.UniverseFilter)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	caps, err := parseCaps(req.AllocatedBalance, req.PerSymbolCapPct, req.PortfolioCapPct)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	item := &models.StrategyRule{
		Name:             name,
		Kind:             kind,
		Owner:            strings.TrimSpace(req.Owner),
		UniverseFilter:   filter,
		Params:           datatypes.JSON(params),
		AllocatedBalance: decimal.Zero,
		PerSymbolCapPct:  decimal.NewFromFloat(0.10),
		PortfolioCapPct:  decimal.NewFromFloat(0.50),
		Status:           models.RuleStatusActive,
	}
	if req.Paused {
		item.Status = models.RuleStatusPaused
	}
	if caps.AllocatedBalance != nil {
		item.AllocatedBalance = *caps.AllocatedBalance
	}
	if caps.PerSymbolCapPct != nil {
		item.PerSymbolCapPct = *caps.PerSymbolCapPct
	}
	if caps.PortfolioCapPct != nil {
		item.PortfolioCapPct = *caps.PortfolioCapPct
	}
	if item.PerSymbolCapPct.GreaterThan(item.PortfolioCapPct) {
		Error(c, http.StatusBadRequest, "per_symbol_cap_pct must not exceed portfolio_cap_pct", nil)
		return
	}
	if err := h.Repo.CreateRule(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *RuleHandler) load(c *gin.Context) (*models.StrategyRule, bool) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return nil, false
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return nil, false
	}
	item, err := h.Repo.GetRule(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return nil, false
	}
	if item == nil {
		Error(c, http.StatusNotFound, "rule not found", nil)
		return nil, false
	}
	return item, true
}

// @Summary Get a strategy rule
// @Tags rules
// @Param id path int true "rule id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/rules/{id} [get]
func (h *RuleHandler) get(c *gin.Context) {
	item, ok := h.load(c)
	if !ok {
		return
	}
	Ok(c, item, nil)
}

type ruleStatusResponse struct {
	Rule          *models.StrategyRule `json:"rule"`
	OpenPositions []models.Position    `json:"open_positions"`
	Exposure      position.Snapshot    `json:"exposure"`
	PendingOrders []models.Order       `json:"pending_orders"`
	Decisions     []models.DecisionLog `json:"recent_decisions"`
}

// @Summary Rule status, exposure and recent decisions
// @Tags rules
// @Param id path int true "rule id"
// @Param decisions query int false "number of recent decisions"
// @Success 200 {object} apiResponse
// @Router /api/v1/rules/{id}/status [get]
func (h *RuleHandler) status(c *gin.Context) {
	item, ok := h.load(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	open, err := h.Repo.ListOpenPositions(ctx, item.ID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	pending, err := h.Repo.ListPendingOrders(ctx, &item.ID, 100)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	decisions, err := h.Repo.ListDecisionLogs(ctx, repository.ListDecisionLogsParams{
		RuleID: &item.ID,
		Limit:  intQuery(c, "decisions", 20),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, ruleStatusResponse{
		Rule:          item,
		OpenPositions: open,
		Exposure:      position.NewLedger(item.ID, open).Snapshot(),
		PendingOrders: pending,
		Decisions:     decisions,
	}, nil)
}

// @Summary Replace rule parameters
// @Description Parameters are validated for the rule's kind; unknown fields are rejected.
// @Tags rules
// @Accept json
// @Param id path int true "rule id"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/v1/rules/{id}/params [put]
func (h *RuleHandler) putParams(c *gin.Context) {
	item, ok := h.load(c)
	if !ok {
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	params, err := strategy.NormalizeParams(item.Kind, raw)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Repo.UpdateRuleParams(c.Request.Context(), item.ID, params); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	next, _ := h.Repo.GetRule(c.Request.Context(), item.ID)
	Ok(c, next, nil)
}

type putCapsRequest struct {
	AllocatedBalance *string `json:"allocated_balance"`
	PerSymbolCapPct  *string `json:"per_symbol_cap_pct"`
	PortfolioCapPct  *string `json:"portfolio_cap_pct"`
}

// @Summary Update rule exposure caps
// @Tags rules
// @Accept json
// @Param id path int true "rule id"
// @Param body body putCapsRequest true "caps"
// @Success 200 {object} apiResponse
// @Router /api/v1/rules/{id}/caps [put]
func (h *RuleHandler) putCaps(c *gin.Context) {
	item, ok := h.load(c)
	if !ok {
		return
	}
	var req putCapsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	caps, err := parseCaps(req.AllocatedBalance, req.PerSymbolCapPct, req.PortfolioCapPct)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	sym, port := item.PerSymbolCapPct, item.PortfolioCapPct
	if caps.PerSymbolCapPct != nil {
		sym = *caps.PerSymbolCapPct
	}
	if caps.PortfolioCapPct != nil {
		port = *caps.PortfolioCapPct
	}
	if sym.GreaterThan(port) {
		Error(c, http.StatusBadRequest, "per_symbol_cap_pct must not exceed portfolio_cap_pct", nil)
		return
	}
	if err := h.Repo.UpdateRuleCaps(c.Request.Context(), item.ID, caps); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	next, _ := h.Repo.GetRule(c.Request.Context(), item.ID)
	Ok(c, next, nil)
}

// @Summary Activate a rule
// @Description Re-validates parameters and clears the review flag.
// @Tags rules
// @Param id path int true "rule id"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/v1/rules/{id}/activate [post]
func (h *RuleHandler) activate(c *gin.Context) {
	item, ok := h.load(c)
	if !ok {
		return
	}
	if _, err := strategy.NormalizeParams(item.Kind, item.Params); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if _, err := universe.ParseFilter(item.UniverseFilter); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	h.setStatus(c, item.ID, models.RuleStatusActive, "")
}

// @Summary Pause a rule
// @Description New entries stop from the next tick. Open positions are kept; use liquidate to exit them.
// @Tags rules
// @Param id path int true "rule id"
// @Success 200 {object} apiResponse
// @Router /api/v1/rules/{id}/pause [post]
func (h *RuleHandler) pause(c *gin.Context) {
	item, ok := h.load(c)
	if !ok {
		return
	}
	h.setStatus(c, item.ID, models.RuleStatusPaused, strings.TrimSpace(c.Query("reason")))
}

func (h *RuleHandler) setStatus(c *gin.Context, id uint64, status, reason string) {
	if err := h.Repo.SetRuleStatus(c.Request.Context(), id, status, reason, false); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	next, _ := h.Repo.GetRule(c.Request.Context(), id)
	Ok(c, next, nil)
}

type tickRequest struct {
	TickID string `json:"tick_id"`
}

// @Summary Run one tick for a rule
// @Tags ticks
// @Accept json
// @Param id path int true "rule id"
// @Param body body tickRequest false "optional tick id for idempotent retries"
// @Success 200 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/rules/{id}/tick [post]
func (h *RuleHandler) tick(c *gin.Context) {
	if h.Runner == nil {
		Error(c, http.StatusServiceUnavailable, "runner unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req tickRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid body", nil)
			return
		}
	}
	rep, err := h.Runner.RunRule(c.Request.Context(), id, runner.TickOptions{TickID: strings.TrimSpace(req.TickID), Trigger: "api"})
	if err != nil {
		Error(c, runErrorStatus(err), err.Error(), map[string]any{"report": rep})
		return
	}
	Ok(c, rep, nil)
}

// @Summary Run one tick for every active rule
// @Tags ticks
// @Accept json
// @Param body body tickRequest false "optional tick id"
// @Success 200 {object} apiResponse
// @Router /api/v1/ticks [post]
func (h *RuleHandler) tickAll(c *gin.Context) {
	if h.Runner == nil {
		Error(c, http.StatusServiceUnavailable, "runner unavailable", nil)
		return
	}
	var req tickRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid body", nil)
			return
		}
	}
	reports, err := h.Runner.RunActive(c.Request.Context(), runner.TickOptions{TickID: strings.TrimSpace(req.TickID), Trigger: "api"})
	if err != nil {
		Error(c, runErrorStatus(err), err.Error(), nil)
		return
	}
	Ok(c, reports, map[string]any{"rules": len(reports)})
}

// @Summary Liquidate all open positions of a rule
// @Tags rules
// @Param id path int true "rule id"
// @Success 200 {object} apiResponse
// @Router /api/v1/rules/{id}/liquidate [post]
func (h *RuleHandler) liquidate(c *gin.Context) {
	if h.Runner == nil {
		Error(c, http.StatusServiceUnavailable, "runner unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	rep, err := h.Runner.Liquidate(c.Request.Context(), id)
	if err != nil {
		Error(c, runErrorStatus(err), err.Error(), map[string]any{"report": rep})
		return
	}
	Ok(c, rep, nil)
}

func runErrorStatus(err error) int {
	var cfgErr *strategy.ConfigError
	switch {
	case errors.Is(err, runner.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, runner.ErrRuleBusy), errors.Is(err, runner.ErrRuleInactive):
		return http.StatusConflict
	case errors.Is(err, runner.ErrRunnerDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &cfgErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func normalizeFilter(raw json.RawMessage) (datatypes.JSON, error) {
	f, err := universe.ParseFilter(raw)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}

func parseCaps(allocated, perSymbol, portfolio *string) (repository.RuleCaps, error) {
	var caps repository.RuleCaps
	if allocated != nil {
		v, err := decimal.NewFromString(strings.TrimSpace(*allocated))
		if err != nil || v.IsNegative() {
			return caps, errors.New("invalid allocated_balance")
		}
		caps.AllocatedBalance = &v
	}
	one := decimal.NewFromInt(1)
	if perSymbol != nil {
		v, err := decimal.NewFromString(strings.TrimSpace(*perSymbol))
		if err != nil || !v.IsPositive() || v.GreaterThan(one) {
			return caps, errors.New("per_symbol_cap_pct must be in (0,1]")
		}
		caps.PerSymbolCapPct = &v
	}
	if portfolio != nil {
		v, err := decimal.NewFromString(strings.TrimSpace(*portfolio))
		if err != nil || !v.IsPositive() || v.GreaterThan(one) {
			return caps, errors.New("portfolio_cap_pct must be in (0,1]")
		}
		caps.PortfolioCapPct = &v
	}
	return caps, nil
}
