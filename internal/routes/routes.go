package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unibvs/bvs-backend/internal/config"
	"github.com/unibvs/bvs-backend/internal/handlers"
	"github.com/unibvs/bvs-backend/internal/middleware"
	"gorm.io/gorm"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	electionHandler *handlers.ElectionHandler,
	adminHandler *handlers.AdminHandler,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// General API rate limiter: 120 req/min per IP. Campus NAT puts many
	// voters behind one address, so this stays loose.
	api.Use(limiter.New(limiter.Config{
		Max:               120,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Public auth endpoints get a stricter limit against PIN guessing.
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               20,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/login-pin", authHandler.LoginPIN)
	auth.Post("/biometric/options", authHandler.BiometricOptions)
	auth.Post("/biometric/verify", authHandler.BiometricVerify)

	protected := []fiber.Handler{middleware.JWTProtected(cfg), middleware.ResolveAdmin(db, cfg)}
	withAuth := func(h fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, protected...), h)
	}

	// Authenticated account endpoints
	auth.Get("/me", withAuth(authHandler.Me)...)
	auth.Put("/pin", withAuth(authHandler.SetPIN)...)
	auth.Post("/register/options", withAuth(authHandler.RegisterOptions)...)
	auth.Post("/register/verify", withAuth(authHandler.RegisterVerify)...)

	// Voting. Static paths are registered before /:id.
	elections := api.Group("/elections", protected...)
	elections.Get("/active-ballot", electionHandler.ActiveBallot)
	elections.Post("/vote", electionHandler.Vote)
	elections.Get("/:id/results", electionHandler.Results)

	// Election administration
	elections.Post("/", middleware.AdminRequired(), electionHandler.Create)
	elections.Get("/", middleware.AdminRequired(), electionHandler.List)
	elections.Get("/:id", middleware.AdminRequired(), electionHandler.Get)
	elections.Patch("/:id/status", middleware.AdminRequired(), electionHandler.UpdateStatus)

	admin := api.Group("/admin", append(protected, middleware.AdminRequired())...)
	admin.Post("/candidates", adminHandler.AddCandidate)
	admin.Delete("/candidates/:id", adminHandler.RemoveCandidate)
	admin.Post("/voters/import", adminHandler.ImportVoters)
	admin.Get("/voters", adminHandler.ListVoters)
}
