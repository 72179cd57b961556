// Package security provides centralized security configuration, structured
// logging, input validation and rate limiting for the CoTask backend.
package security

import (
	"time"
)

// SecurityConfig holds all security-related configuration values.
// These values are tuned based on OWASP ASVS and NIST guidelines.
type SecurityConfig struct {
	// Secure password storage
	BcryptCost int // Cost factor for bcrypt hashing (recommended: 12)

	// Secure session management
	SessionTimeout    time.Duration // Session inactivity timeout
	SessionCookieName string        // Name of session cookie
	SessionSecure     bool          // Require HTTPS for session cookies
	SessionHTTPOnly   bool          // Prevent JavaScript access to session cookies
	SessionSameSite   string        // CSRF protection via SameSite attribute

	// Brute force protection
	LoginRateLimit          int           // Max login attempts per minute per IP
	AccountLockoutThreshold int           // Failed attempts before account lockout
	AccountLockoutDuration  time.Duration // How long account stays locked

	// Input validation
	MaxGroupNameLength int // Maximum characters in a group name
	MaxCiphertextSize  int // Maximum bytes of encrypted title/description payload
	MaxSubtasksPerTask int // Maximum subtasks under one task
	MaxAuditPageSize   int // Maximum rows per audit listing
	QueryTimeout       time.Duration

	// Rate limiting (requests per time window)
	RateLimitLogin    int // Login endpoint, per minute per IP
	RateLimitMutation int // Task/subtask mutations, per minute per user
	RateLimitKeyGrant int // Wrapped-key grants, per minute per user

	// Security monitoring
	MonitoringInterval     time.Duration // Counter reset interval
	AlertThresholdFailures int           // Failed logins before alerting
	AlertThresholdExport   int           // Rows in one read before alerting
}

// DefaultSecurityConfig returns security configuration with recommended defaults.
// These values comply with OWASP ASVS 4.0 and NIST SP 800-53 guidelines.
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		// Bcrypt cost 12 = 2^12 = 4096 iterations
		BcryptCost: 12,

		// Session configuration
		SessionTimeout:    8 * time.Hour,
		SessionCookieName: "cotask_session",
		SessionSecure:     true,     // Requires HTTPS
		SessionHTTPOnly:   true,     // No JavaScript access
		SessionSameSite:   "Strict", // Strong CSRF protection

		// Brute force protection
		LoginRateLimit:          5,
		AccountLockoutThreshold: 10,
		AccountLockoutDuration:  30 * time.Minute,

		// Input validation limits
		MaxGroupNameLength: 100,
		MaxCiphertextSize:  64 * 1024, // 64KB of base64 ciphertext per field
		MaxSubtasksPerTask: 200,
		MaxAuditPageSize:   100,
		QueryTimeout:       30 * time.Second,

		// Rate limits
		RateLimitLogin:    5,  // per minute per IP
		RateLimitMutation: 60, // per minute per user
		RateLimitKeyGrant: 30, // per minute per user

		// Security monitoring
		MonitoringInterval:     5 * time.Minute,
		AlertThresholdFailures: 5,
		AlertThresholdExport:   1000,
	}
}
