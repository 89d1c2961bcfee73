package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/sorewa/gatehouse/internal/domain/auth"
	"github.com/sorewa/gatehouse/internal/domain/token"
	"github.com/sorewa/gatehouse/internal/domain/user"
	"github.com/sorewa/gatehouse/internal/push"
)

// Routes bundles the handlers the router wires up
type Routes struct {
	Auth          *auth.Handler
	Tokens        *token.Handler
	Users         *user.Handler
	Push          *push.Gateway
	Signer        *auth.Signer
	AdminUsername string
}

// SetupRoutes sets up the routes for the application
func SetupRoutes(app *fiber.App, r *Routes) {
	api := app.Group("/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	})

	authGroup := api.Group("/auth")
	authGroup.Post("/login", r.Auth.Login)
	authGroup.Post("/register", r.Auth.Register)

	authed := auth.Middleware(r.Signer)
	authGroup.Get("/session", authed, r.Auth.Session)
	authGroup.Post("/logout", authed, r.Auth.Logout)

	// The watch socket authenticates via query token inside the gateway.
	api.Get("/session/watch", adaptor.HTTPHandler(r.Push))

	admin := api.Group("/admin", authed, auth.AdminMiddleware(r.AdminUsername))
	admin.Post("/tokens", r.Tokens.Create)
	admin.Get("/tokens", r.Tokens.List)
	admin.Delete("/tokens/:value", r.Tokens.Delete)

	admin.Get("/users", r.Users.List)
	admin.Delete("/users/:username", r.Users.Delete)
	admin.Post("/users/:username/force-logout", r.Users.ForceLogout)
	admin.Post("/users/:username/renew", r.Users.Renew)
}
