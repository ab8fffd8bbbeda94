package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Nohyunjin/omni-secretary/internal/config"
	"github.com/Nohyunjin/omni-secretary/internal/logging"
	"github.com/Nohyunjin/omni-secretary/internal/metrics"
	"github.com/Nohyunjin/omni-secretary/internal/redaction"
	"github.com/Nohyunjin/omni-secretary/internal/toolserver"
)

// Handler carries the dependencies every route needs.
type Handler struct {
	cfg      *config.Config
	sup      *toolserver.Supervisor
	registry *toolserver.Registry
	runner   AgentRunner
	history  *HistoryStore
	logger   logging.Logger
}

func NewHandler(cfg *config.Config, sup *toolserver.Supervisor, registry *toolserver.Registry, runner AgentRunner) *Handler {
	return &Handler{
		cfg:      cfg,
		sup:      sup,
		registry: registry,
		runner:   runner,
		history:  NewHistoryStore(),
		logger:   logging.NewComponentLogger("HTTPHandler"),
	}
}

// listServers reports every configured server's status.
func (h *Handler) listServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"servers": h.sup.StatusAll()})
}

// serverStatus reports one server's status plus its sanitized configuration.
// Environment values are redacted before they leave the process.
func (h *Handler) serverStatus(c *gin.Context) {
	name := c.Param("name")
	st, err := h.sup.Status(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	sc, _ := h.cfg.Server(name)
	c.JSON(http.StatusOK, gin.H{
		"server": st,
		"config": gin.H{
			"transport": st.Transport,
			"command":   sc.Command,
			"args":      sc.Args,
			"env":       redaction.RedactEnv(sc.Env),
			"url":       sc.URL,
			"enabled":   sc.Enabled,
		},
	})
}

// connectServer starts a tool server. Repeating the request while the server
// is up succeeds without a respawn.
func (h *Handler) connectServer(c *gin.Context) {
	name := c.Param("name")
	if _, ok := h.cfg.Server(name); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown server: " + name})
		return
	}

	if err := h.sup.Start(c.Request.Context(), name); err != nil {
		metrics.ServerStarts.WithLabelValues(name, metrics.OutcomeError).Inc()
		h.logger.Error("start %s: %v", name, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	metrics.ServerStarts.WithLabelValues(name, metrics.OutcomeOK).Inc()

	st, _ := h.sup.Status(name)
	c.JSON(http.StatusOK, gin.H{"server": st})
}

// disconnectServer stops a tool server. Stopping a stopped server succeeds.
func (h *Handler) disconnectServer(c *gin.Context) {
	name := c.Param("name")
	if _, ok := h.cfg.Server(name); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown server: " + name})
		return
	}

	if err := h.sup.Stop(name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped", "server": name})
}

// serverTools lists one server's tool catalog.
func (h *Handler) serverTools(c *gin.Context) {
	name := c.Param("name")
	tools, err := h.registry.ServerTools(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"server": name, "tools": tools})
}

// allTools lists every connected server's catalog.
func (h *Handler) allTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": h.registry.AllTools()})
}

type executeRequest struct {
	Server string         `json:"server"`
	Tool   string         `json:"tool" binding:"required"`
	Args   map[string]any `json:"args"`
}

// executeTool runs one tool directly, outside the agent loop. With a server
// given, the call is pinned to it; otherwise resolution picks the earliest
// started server providing the tool.
func (h *Handler) executeTool(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var ok bool
	var result string
	if req.Server != "" {
		ok, result = h.registry.ExecuteOn(c.Request.Context(), req.Server, req.Tool, req.Args)
	} else {
		ok, result = h.registry.Execute(c.Request.Context(), req.Tool, req.Args)
	}

	outcome := metrics.OutcomeOK
	if !ok {
		outcome = metrics.OutcomeError
	}
	metrics.ToolCalls.WithLabelValues(req.Server, req.Tool, outcome).Inc()

	c.JSON(http.StatusOK, gin.H{"success": ok, "result": result})
}

// clearHistory drops one session's conversation history.
func (h *Handler) clearHistory(c *gin.Context) {
	h.history.Clear(c.Param("session_id"))
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
