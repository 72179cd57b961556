// Package main is the entry point for the CoTask backend.
// It initializes the database, the security stack and the JSON API routes.
package main

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/joho/godotenv"

	"github.com/flvvius/cotask/internal/database"
	"github.com/flvvius/cotask/internal/handlers"
	"github.com/flvvius/cotask/internal/middleware"
	"github.com/flvvius/cotask/internal/security"
	"github.com/flvvius/cotask/internal/services"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := database.DefaultConfig()
	if err != nil {
		log.Fatalf("Failed to load database configuration: %v", err)
	}
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Security stack: config, structured logger, middleware suite.
	securityConfig := security.DefaultSecurityConfig()
	securityLogger := security.NewLogger()
	alerter := security.NewLogAlerter(securityLogger)

	securityMiddleware := middleware.NewSecurityMiddleware(securityLogger, securityConfig, alerter)

	loginRateLimiter := security.NewRateLimiter(securityConfig.RateLimitLogin, 12*time.Second)
	defer loginRateLimiter.Stop()

	mutationRateLimiter := security.NewRateLimiter(securityConfig.RateLimitMutation, time.Second)
	defer mutationRateLimiter.Stop()

	keyGrantRateLimiter := security.NewRateLimiter(securityConfig.RateLimitKeyGrant, 2*time.Second)
	defer keyGrantRateLimiter.Stop()

	app := fiber.New(fiber.Config{
		AppName: "CoTask",
	})

	// Panic recovery first, then request logging and headers on everything.
	app.Use(recover.New())
	app.Use(securityMiddleware.RequestLogger())
	app.Use(securityMiddleware.SecureHeaders())

	store := session.New(session.Config{
		Expiration:     securityConfig.SessionTimeout,
		CookieSecure:   securityConfig.SessionSecure,
		CookieHTTPOnly: securityConfig.SessionHTTPOnly,
		CookieSameSite: securityConfig.SessionSameSite,
		CookieName:     securityConfig.SessionCookieName,
		CookiePath:     "/",
	})

	// Services. The notification emitter is shared so every service reports
	// through the same best-effort channel.
	notificationService := services.NewNotificationService(securityLogger)
	membershipService := services.NewMembershipService(notificationService)
	delegationService := services.NewDelegationService(notificationService)
	taskService := services.NewTaskService(notificationService)
	subtaskService := services.NewSubtaskService(notificationService)
	commentService := services.NewCommentService()
	identityService := services.NewIdentityService()
	auditService := services.NewAuditService()

	authHandler := handlers.NewAuthHandler(store, securityMiddleware, securityLogger)
	groupHandler := handlers.NewGroupHandler(membershipService, securityMiddleware)
	taskHandler := handlers.NewTaskHandler(taskService, delegationService, securityMiddleware, securityLogger)
	subtaskHandler := handlers.NewSubtaskHandler(subtaskService, securityMiddleware, securityLogger)
	commentHandler := handlers.NewCommentHandler(commentService, securityMiddleware)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	auditHandler := handlers.NewAuditHandler(auditService)
	profileHandler := handlers.NewProfileHandler(identityService, securityLogger)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if !database.IsConnected() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Public auth routes, login behind the brute-force limiter.
	auth := app.Group("/api/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login",
		securityMiddleware.RateLimit(loginRateLimiter, "login"),
		authHandler.Login,
	)
	auth.Post("/logout", authHandler.Logout)
	auth.Get("/me", middleware.AuthRequired(store), authHandler.Me)

	// Everything below requires an authenticated session.
	api := app.Group("/api", middleware.AuthRequired(store))

	api.Get("/users", profileHandler.ListUsers)
	api.Patch("/profile", profileHandler.Update)
	api.Put("/profile/public-key", profileHandler.PublishKey)

	api.Post("/groups", securityMiddleware.RateLimit(mutationRateLimiter, "groups"), groupHandler.Create)
	api.Get("/groups", groupHandler.List)
	api.Get("/groups/:groupID", groupHandler.Get)
	api.Patch("/groups/:groupID", groupHandler.Update)
	api.Get("/groups/:groupID/members", groupHandler.Members)
	api.Post("/groups/:groupID/members", groupHandler.AddMember)
	api.Delete("/groups/:groupID/members/:userID", groupHandler.RemoveMember)
	api.Put("/groups/:groupID/members/:userID/role", groupHandler.SetRole)
	api.Get("/groups/:groupID/statuses", groupHandler.Statuses)
	api.Get("/groups/:groupID/tasks", taskHandler.ListByGroup)
	api.Get("/groups/:groupID/audit", auditHandler.ListByGroup)

	mutate := securityMiddleware.RateLimit(mutationRateLimiter, "tasks")
	api.Post("/tasks", mutate, taskHandler.Create)
	api.Get("/tasks/:taskID", taskHandler.Get)
	api.Put("/tasks/:taskID", mutate, taskHandler.Update)
	api.Post("/tasks/:taskID/delegate", mutate, taskHandler.Delegate)
	api.Get("/tasks/:taskID/chain", taskHandler.Chain)
	api.Put("/tasks/:taskID/status", mutate, taskHandler.UpdateStatus)
	api.Post("/tasks/:taskID/toggle-self", mutate, taskHandler.ToggleSelf)
	api.Post("/tasks/:taskID/access",
		securityMiddleware.RateLimit(keyGrantRateLimiter, "key-grant"),
		taskHandler.GrantAccess,
	)
	api.Get("/tasks/:taskID/key", taskHandler.GetKey)
	api.Post("/tasks/:taskID/subtasks", mutate, subtaskHandler.Create)
	api.Get("/tasks/:taskID/subtasks", subtaskHandler.List)
	api.Post("/tasks/:taskID/comments", mutate, commentHandler.Add)
	api.Get("/tasks/:taskID/comments", commentHandler.List)

	api.Put("/comments/:commentID", mutate, commentHandler.Edit)

	api.Put("/subtasks/:subtaskID/completion", mutate, subtaskHandler.ToggleCompletion)
	api.Post("/subtasks/:subtaskID/delegate", mutate, subtaskHandler.Delegate)

	api.Get("/notifications", notificationHandler.List)
	api.Get("/notifications/unread-count", notificationHandler.UnreadCount)
	api.Put("/notifications/read-all", notificationHandler.MarkAllRead)
	api.Put("/notifications/:notificationID/read", notificationHandler.MarkRead)
	api.Delete("/notifications/:notificationID", notificationHandler.Delete)

	api.Get("/audit", auditHandler.ListAll)
	api.Get("/audit/mine", auditHandler.ListMine)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	securityLogger.Info("CoTask server starting on :" + port)
	if err := app.Listen(":" + port); err != nil {
		securityLogger.Critical("Failed to start server", err)
		log.Fatalf("Failed to start server: %v", err)
	}
}
