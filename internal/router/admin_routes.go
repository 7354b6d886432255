package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-room-booking/internal/handler"
	"github.com/iliyamo/campus-room-booking/internal/middleware"
)

// RegisterAdmin registers restriction, policy, stats and equipment
// management under /v1/admin, limited to the ADMIN role.
func RegisterAdmin(e *echo.Echo, ad *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("ADMIN"))

	g.PUT("/restrictions", ad.SetRestriction)
	g.PUT("/restrictions/mass", ad.SetRestrictionsMass)
	g.PUT("/policy/group", ad.SetGroupPolicy)
	g.GET("/stats", ad.Stats)
	g.POST("/rooms/:room/equipment", ad.ToggleEquipment)
}
