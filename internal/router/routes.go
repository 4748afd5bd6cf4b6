package router

import (
	"github.com/labstack/echo/v4"

	"github.com/octobees/turmeric-buyers/internal/auth"
	"github.com/octobees/turmeric-buyers/internal/config"
	"github.com/octobees/turmeric-buyers/internal/handler"
	middlewarepkg "github.com/octobees/turmeric-buyers/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Auth   *handler.AuthHandler
	Buyers *handler.BuyersHandler
}

// Register wires all HTTP routes for the API.
func Register(e *echo.Echo, collectLimit config.RateLimitConfig, jwtManager *auth.JWTManager, handlers Handlers) {
	e.Validator = handler.NewRequestValidator()

	e.GET("/healthz", handler.Health)
	e.POST("/auth/login", handlers.Auth.Login)

	secured := e.Group("")
	secured.Use(middlewarepkg.JWT(jwtManager))

	readers := secured.Group("", middlewarepkg.RequireRole(auth.RoleViewer, auth.RoleOperator))
	readers.POST("/validate", handlers.Buyers.Validate)
	readers.POST("/validate/csv", handlers.Buyers.ValidateUpload)
	readers.GET("/buyers", handlers.Buyers.List)
	readers.GET("/buyers/export", handlers.Buyers.Export)

	operators := secured.Group("", middlewarepkg.RequireRole(auth.RoleOperator))
	operators.POST("/collect", handlers.Buyers.Collect, middlewarepkg.PathRateLimiter(collectLimit, "/collect"))
}
