// Package middleware provides HTTP middleware for authentication,
// authorization and request security.
// This file implements the security middleware stack: rate limiting,
// login tracking, request logging and response headers.
package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/flvvius/cotask/internal/security"
)

// SecurityMiddleware provides centralized security functionality.
type SecurityMiddleware struct {
	logger            *security.Logger
	config            *security.SecurityConfig
	rateLimiter       *security.RateLimiter
	accountLockout    *security.AccountLockout
	validationService *security.ValidationService
	securityMonitor   *security.SecurityMonitor
}

// NewSecurityMiddleware creates a new security middleware instance.
func NewSecurityMiddleware(logger *security.Logger, config *security.SecurityConfig, alerter security.Alerter) *SecurityMiddleware {
	return &SecurityMiddleware{
		logger:            logger,
		config:            config,
		rateLimiter:       security.NewRateLimiter(config.LoginRateLimit, 12*time.Second),
		accountLockout:    security.NewAccountLockout(config.AccountLockoutThreshold, config.AccountLockoutDuration),
		validationService: security.NewValidationService(config),
		securityMonitor:   security.NewSecurityMonitor(logger, config, alerter),
	}
}

// Validation exposes the shared validation service to handlers.
func (sm *SecurityMiddleware) Validation() *security.ValidationService {
	return sm.validationService
}

// LoginRateLimit guards the login endpoint against brute force.
// Returns an error when the IP is rate limited or the account is locked.
func (sm *SecurityMiddleware) LoginRateLimit(email, ipAddress string) error {
	if !sm.rateLimiter.Allow(ipAddress) {
		sm.logger.SecurityEvent(security.EventRateLimitExceeded, nil, email, ipAddress, "",
			map[string]interface{}{
				"endpoint": "/api/auth/login",
				"limit":    sm.config.LoginRateLimit,
			})

		return fmt.Errorf("too many login attempts, please try again later")
	}

	if sm.accountLockout.IsLocked(email) {
		remaining := sm.accountLockout.GetLockoutTimeRemaining(email)

		sm.logger.SecurityEvent(security.EventAccountLocked, nil, email, ipAddress, "",
			map[string]interface{}{
				"locked_for": remaining.String(),
			})

		return fmt.Errorf("account is locked due to too many failed attempts, try again in %d minutes", int(remaining.Minutes())+1)
	}

	return nil
}

// RecordLoginFailure records a failed login attempt.
func (sm *SecurityMiddleware) RecordLoginFailure(email, ipAddress string) {
	locked := sm.accountLockout.RecordFailedAttempt(email)

	sm.logger.SecurityEvent(security.EventLoginFailure, nil, email, ipAddress, "",
		map[string]interface{}{
			"locked": locked,
		})

	sm.securityMonitor.MonitorLoginFailure(ipAddress)
}

// RecordLoginSuccess resets lockout counters on successful login.
func (sm *SecurityMiddleware) RecordLoginSuccess(email, ipAddress string, userID int) {
	sm.accountLockout.ResetAttempts(email)

	sm.logger.SecurityEvent(security.EventLoginSuccess, &userID, email, ipAddress, "",
		map[string]interface{}{
			"success": true,
		})
}

// RateLimit applies a limiter to an endpoint group. Authenticated requests
// are limited per user, anonymous ones per IP.
func (sm *SecurityMiddleware) RateLimit(limiter *security.RateLimiter, endpointName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.IP()
		if userID := c.Locals("user_id"); userID != nil {
			identifier = fmt.Sprintf("user_%v", userID)
		}

		if !limiter.Allow(identifier) {
			sm.logger.SecurityEvent(security.EventRateLimitExceeded, nil, "", c.IP(), c.Get("User-Agent"),
				map[string]interface{}{
					"endpoint":   endpointName,
					"identifier": identifier,
				})

			c.Set("Retry-After", "60")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded, please try again later",
			})
		}

		return c.Next()
	}
}

// RequestLogger tags each request with an id and logs it on completion.
// 403 responses additionally produce an unauthorized-access security event.
func (sm *SecurityMiddleware) RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID := uuid.NewString()
		c.Locals("request_id", requestID)
		c.Set("X-Request-ID", requestID)

		err := c.Next()

		latency := time.Since(start)

		sm.logger.HTTPRequest(
			c.Method(),
			c.Path(),
			c.Response().StatusCode(),
			latency.Milliseconds(),
			c.IP(),
			c.Get("User-Agent"),
		)

		if c.Response().StatusCode() == fiber.StatusForbidden {
			var actorID *int
			if id, ok := c.Locals("user_id").(int); ok {
				actorID = &id
			}
			var actorEmail string
			if email, ok := c.Locals("user_email").(string); ok {
				actorEmail = email
			}

			sm.logger.SecurityEvent(security.EventUnauthorizedAccess, actorID, actorEmail, c.IP(), c.Get("User-Agent"),
				map[string]interface{}{
					"method":     c.Method(),
					"path":       c.Path(),
					"request_id": requestID,
				})
		}

		return err
	}
}

// SecureHeaders adds security headers to every response.
func (sm *SecurityMiddleware) SecureHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		return c.Next()
	}
}
