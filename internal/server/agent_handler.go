package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Nohyunjin/omni-secretary/internal/agentloop"
	"github.com/Nohyunjin/omni-secretary/internal/async"
	"github.com/Nohyunjin/omni-secretary/internal/llm"
	"github.com/Nohyunjin/omni-secretary/internal/metrics"
	"github.com/Nohyunjin/omni-secretary/internal/redaction"
)

// AgentRunner answers one query over a stream emitter. The agent loop
// implements it.
type AgentRunner interface {
	Run(ctx context.Context, history []llm.Message, query string, em *agentloop.StreamEmitter) error
}

type queryRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
	Stream    bool   `json:"stream"`
}

// agentQuery answers a user query, either as one JSON document or as an SSE
// stream of content chunks.
func (h *Handler) agentQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	history := h.history.Get(req.SessionID)
	em := agentloop.NewStreamEmitter(256, h.redactor())

	ctx := c.Request.Context()
	async.Go(h.logger, "server.agentQuery", func() {
		h.runner.Run(ctx, history, req.Message, em)
	})

	if req.Stream {
		h.streamResponse(c, req, em)
		return
	}

	content, errMsg, failed := agentloop.Collect(em.Events())
	if failed {
		metrics.AgentQueries.WithLabelValues("sync", metrics.OutcomeError).Inc()
		c.JSON(http.StatusBadGateway, gin.H{"error": errMsg})
		return
	}
	metrics.AgentQueries.WithLabelValues("sync", metrics.OutcomeOK).Inc()

	h.history.AppendTurn(req.SessionID, req.Message, content)
	c.JSON(http.StatusOK, gin.H{"agent_response": content})
}

// streamResponse relays the event stream as server-sent events. Every frame
// is a data line with one JSON payload; the stream always ends with a
// terminal frame.
func (h *Handler) streamResponse(c *gin.Context, req queryRequest, em *agentloop.StreamEmitter) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	var answer []byte
	failed := false
	for ev := range em.Events() {
		payload, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("marshal event: %v", err)
			continue
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			h.logger.Warn("client dropped SSE stream: %v", err)
			return
		}
		flusher.Flush()

		if ev.IsError() {
			failed = true
		} else if !ev.Terminal() {
			answer = append(answer, ev.Content()...)
		}
	}

	if failed {
		metrics.AgentQueries.WithLabelValues("stream", metrics.OutcomeError).Inc()
		return
	}
	metrics.AgentQueries.WithLabelValues("stream", metrics.OutcomeOK).Inc()
	h.history.AppendTurn(req.SessionID, req.Message, string(answer))
}

// redactor builds the caller-secret scrubber for outgoing streams.
func (h *Handler) redactor() *redaction.Redactor {
	return redaction.NewRedactor(h.cfg.LLM.APIKey)
}
