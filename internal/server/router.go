package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every route onto a fresh engine.
func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = allowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", h.healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		tools := api.Group("/tools")
		{
			tools.GET("", h.allTools)
			tools.POST("/execute", h.executeTool)
			tools.GET("/servers", h.listServers)
			tools.GET("/servers/:name/status", h.serverStatus)
			tools.POST("/servers/:name/connect", h.connectServer)
			tools.POST("/servers/:name/disconnect", h.disconnectServer)
			tools.GET("/servers/:name/tools", h.serverTools)
		}

		agent := api.Group("/agent")
		{
			agent.POST("/query", h.agentQuery)
			agent.DELETE("/history/:session_id", h.clearHistory)
		}
	}

	return r
}
