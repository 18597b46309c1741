package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/xilian/asset-registry/cmd/assetd/container"
	"github.com/xilian/asset-registry/cmd/assetd/handlers"
)

// RegisterNodeRoutes registers the hierarchy CRUD and query routes
func RegisterNodeRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewNodeHandler(c.Hierarchy, c.Components.Logger)

	nodes := e.Group("/api/v1/nodes")
	{
		nodes.POST("", h.CreateNode)       // POST /api/v1/nodes
		nodes.GET("", h.ListNodes)         // GET /api/v1/nodes?level=2 | ?parent_id=...
		nodes.GET("/:id", h.GetNode)       // GET /api/v1/nodes/:id
		nodes.PATCH("/:id", h.UpdateNode)  // PATCH /api/v1/nodes/:id
		nodes.DELETE("/:id", h.DeleteNode) // DELETE /api/v1/nodes/:id
	}
}
