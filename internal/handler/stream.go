package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/gnidc/Sheet-Manager-sub001/internal/journal"
)

const streamWriteTimeout = 5 * time.Second

// StreamHandler pushes new decision log entries over a websocket.
type StreamHandler struct {
	Journal *journal.Journal
	Logger  *zap.Logger
	// Origins allowed besides the request host; "*" allows any.
	Origins []string
}

func (h *StreamHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/decisions/stream", h.stream)
}

// @Summary Live decision feed (websocket)
// @Tags ledger
// @Param rule_id query int false "only decisions of this rule"
// @Success 101
// @Router /api/v1/decisions/stream [get]
func (h *StreamHandler) stream(c *gin.Context) {
	if h.Journal == nil {
		Error(c, http.StatusServiceUnavailable, "journal unavailable", nil)
		return
	}
	var ruleID uint64
	if v := uint64QueryPtr(c, "rule_id"); v != nil {
		ruleID = *v
	}
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{OriginPatterns: h.Origins})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("decision stream upgrade failed", zap.Error(err))
		}
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	items, cancel := h.Journal.Subscribe(ruleID)
	defer cancel()

	// Clients only listen; CloseRead handles their close frames and cancels ctx.
	ctx := conn.CloseRead(c.Request.Context())
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case it, ok := <-items:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			payload, err := json.Marshal(it)
			if err != nil {
				continue
			}
			if err := writeWithTimeout(ctx, conn, payload); err != nil {
				return
			}
		}
	}
}

func writeWithTimeout(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
