// Package route wires the HTTP hosting surface: health and metrics endpoints
// plus the streamable MCP mount.
package route

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/oculairmedia/Bookstack-MCP/internal/api/middleware"
	"github.com/oculairmedia/Bookstack-MCP/internal/app"
)

// SetupRoutes builds the gin engine serving the MCP endpoint at /mcp along
// with health and metrics routes.
func SetupRoutes(appCtx *app.App, server *mcp.Server) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Honeybadger())
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "UP",
		})
	})

	r.GET("/readyz", func(c *gin.Context) {
		// Readiness only asserts configuration: BookStack itself may be down
		// and individual tool calls will report that per-request.
		if appCtx.Config.BookStack.URL == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "missing bookstack configuration"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"counters":   appCtx.Metrics.Snapshot(),
			"cache_size": appCtx.Cache.Len(),
		})
	})

	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
	r.Any("/mcp", gin.WrapH(mcpHandler))
	r.Any("/mcp/*path", gin.WrapH(mcpHandler))

	return r
}
