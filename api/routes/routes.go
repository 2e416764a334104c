package routes

import (
	"net/http"
	"time"

	"sitecms/api/handler"
	"sitecms/api/middleware"
	"sitecms/internal/entity"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type Router struct {
	Echo           *echo.Echo
	Users          *handler.UserHandler
	Roles          *handler.RoleHandler
	Sessions       *handler.SessionHandler
	Passwords      *handler.PasswordHandler
	Health         *handler.HealthHandler
	Metrics        http.Handler
	AuthMiddleware middleware.AuthMiddleware
	RoleLookup     middleware.RoleLookup
	LoginRate      *middleware.RateLimiter
	CodeRate       *middleware.RedisRateLimiter
	ChangeRate     *middleware.RedisRateLimiter
}

func NewRouter(
	e *echo.Echo,
	users *handler.UserHandler,
	roles *handler.RoleHandler,
	sessions *handler.SessionHandler,
	passwords *handler.PasswordHandler,
	authMiddleware middleware.AuthMiddleware,
	roleLookup middleware.RoleLookup,
) *Router {
	return &Router{
		Echo:           e,
		Users:          users,
		Roles:          roles,
		Sessions:       sessions,
		Passwords:      passwords,
		AuthMiddleware: authMiddleware,
		RoleLookup:     roleLookup,
		LoginRate:      middleware.NewRateLimiter("login", rate.Limit(2), 4, 10*time.Minute),
		CodeRate: &middleware.RedisRateLimiter{
			Prefix:   "password_code",
			Limit:    10,
			Window:   time.Minute,
			Fallback: middleware.NewRateLimiter("password_code", rate.Limit(0.2), 3, 10*time.Minute),
		},
		// A handful of guesses per caller for each code lifetime.
		ChangeRate: &middleware.RedisRateLimiter{
			Prefix:   "password_change",
			Limit:    5,
			Window:   10 * time.Minute,
			Fallback: middleware.NewRateLimiter("password_change", rate.Every(2*time.Minute), 5, 30*time.Minute),
		},
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo
	auth := r.AuthMiddleware
	admin := middleware.RequireRole(r.RoleLookup, entity.RoleSuperAdmin, entity.RoleAdmin)

	if r.Health != nil {
		e.GET("/healthz", r.Health.Check)
	}
	if r.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(r.Metrics))
	}

	e.POST("/setup", r.Users.Setup, r.LoginRate.Middleware())
	e.POST("/auth/login", r.Sessions.Login, r.LoginRate.Middleware())
	e.POST("/auth/logout", r.Sessions.Logout)

	e.GET("/me", r.Users.Me, auth.RequireAuth)
	e.GET("/roles", r.Roles.List, auth.RequireAuth)

	users := e.Group("/users", auth.RequireAuth, admin)
	users.GET("", r.Users.List)
	users.POST("", r.Users.Create)
	users.GET("/:id", r.Users.Get)
	users.PUT("/:id", r.Users.Update)
	users.DELETE("/:id", r.Users.Delete)
	users.GET("/:id/audit", r.Users.AuditTrail)

	e.POST("/password/request-code", r.Passwords.RequestCode, auth.OptionalAuth, r.CodeRate.Middleware())
	e.POST("/password/change", r.Passwords.Change, auth.OptionalAuth, r.ChangeRate.Middleware())
}
