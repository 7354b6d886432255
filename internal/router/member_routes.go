package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/campus-room-booking/internal/config"
	"github.com/iliyamo/campus-room-booking/internal/handler"
	"github.com/iliyamo/campus-room-booking/internal/middleware"
)

// RegisterMember registers the member-facing availability and booking
// endpoints.  Every route requires a valid access token; availability
// GETs additionally go through the short-TTL redis response cache.
func RegisterMember(e *echo.Echo, av *handler.AvailabilityHandler, bk *handler.BookingHandler,
	jwtSecret string, cacheCfg config.CacheConfig, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("MEMBER", "ADMIN"))

	cached := g.Group("/rooms")
	cached.Use(middleware.NewRedisCache(cacheCfg, rdb))
	cached.GET("/availability", av.Grid)
	cached.GET("/:room/slot", av.Slot)

	g.POST("/bookings", bk.Create)
	g.POST("/bookings/group", bk.GroupAction)
	g.GET("/my-reservations", bk.MyReservations)
	g.POST("/reservations/:id/checkin", bk.Checkin)
	g.GET("/quota", bk.MyQuota)
}
