package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/xilian/asset-registry/cmd/assetd/container"
	"github.com/xilian/asset-registry/cmd/assetd/handlers"
)

// RegisterRuleRoutes registers rule administration and vocabulary routes
func RegisterRuleRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewRuleHandler(c.Registry, c.Resolver, c.Components.Logger)

	rules := e.Group("/api/v1/rules")
	{
		rules.POST("", h.RegisterRule) // POST /api/v1/rules
		rules.GET("", h.ListRules)     // GET /api/v1/rules
		rules.GET("/:code", h.GetRule) // GET /api/v1/rules/DEVICE_CODE
	}

	e.GET("/api/v1/dictionaries/:category", h.GetVocabulary)
}
