package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/marvelstay/room-reservation/internal/handler"    // import the handlers that implement business logic
	"github.com/marvelstay/room-reservation/internal/middleware" // import middleware for JWT authentication and rate limiting
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring systems use /healthz to verify that the
	// service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the staff authentication routes.  Unauthenticated
// operations live under /v1/auth; register returns an access token directly
// so a fresh staff account can start working without a second call.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
}

// RegisterReservations registers the reservation endpoints under /v1.  All
// of them require a valid staff access token; reservation creation is
// additionally rate limited because it can fan out to the payment gateway.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))

	g.POST("/reservations", h.Create, limiter)
	g.GET("/reservations/:id", h.GetByID)
}
