package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gnidc/Sheet-Manager-sub001/internal/journal"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
)

type RouterDeps struct {
	Env     string
	DB      *gorm.DB
	Cache   Pinger
	Repo    repository.Repository
	Runner  TickRunner
	Journal *journal.Journal
	Origins []string
	Logger  *zap.Logger
}

// NewRouter wires every handler onto a gin engine.
func NewRouter(d RouterDeps) *gin.Engine {
	if strings.EqualFold(d.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else if strings.EqualFold(d.Env, "test") {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	(&HealthHandler{DB: d.DB, Cache: d.Cache}).Register(engine)
	(&RuleHandler{Repo: d.Repo, Runner: d.Runner}).Register(engine)
	(&LedgerHandler{Repo: d.Repo}).Register(engine)
	(&StreamHandler{Journal: d.Journal, Logger: d.Logger, Origins: d.Origins}).Register(engine)
	(&SettingsHandler{Repo: d.Repo}).Register(engine)
	(&UniverseHandler{Repo: d.Repo}).Register(engine)
	registerDocs(engine)
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return engine
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func registerDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# Equity Strategy Engine

Runs laddered gap-momentum and multi-factor rules against an index universe.
An external scheduler calls POST /api/v1/ticks; the in-process cron is optional.

## Routes

- GET /healthz, GET /readyz
- GET /swagger/index.html
- GET|POST /api/v1/rules
- GET /api/v1/rules/:id, GET /api/v1/rules/:id/status
- PUT /api/v1/rules/:id/params, PUT /api/v1/rules/:id/caps
- POST /api/v1/rules/:id/activate, POST /api/v1/rules/:id/pause
- POST /api/v1/rules/:id/tick, POST /api/v1/rules/:id/liquidate
- POST /api/v1/ticks
- GET /api/v1/positions, GET /api/v1/orders, GET /api/v1/decisions
- GET /api/v1/decisions/stream (websocket)
- GET|PUT /api/v1/settings/:key
- GET|PUT /api/v1/universe/:index

## Pausing a rule

Pausing stops new entries and exits from the next tick. Open positions stay
open until POST /api/v1/rules/:id/liquidate is called.
`)
	})
}
