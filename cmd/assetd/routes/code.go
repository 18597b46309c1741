package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/xilian/asset-registry/cmd/assetd/container"
	"github.com/xilian/asset-registry/cmd/assetd/handlers"
)

// RegisterCodeRoutes registers the code preview/generation routes
func RegisterCodeRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewCodeHandler(c.Generator, c.Hierarchy, c.Components.Logger)

	codes := e.Group("/api/v1/codes")
	{
		codes.POST("/preview", h.PreviewCode)   // POST /api/v1/codes/preview
		codes.POST("/generate", h.GenerateCode) // POST /api/v1/codes/generate
	}
}
