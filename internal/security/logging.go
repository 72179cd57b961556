// Package security provides centralized security configuration, structured
// logging, input validation and rate limiting for the CoTask backend.
// This file implements structured JSON logging and security monitoring.
package security

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// LogLevel indicates the severity of a log entry.
type LogLevel string

// Log levels in increasing severity. SECURITY is a separate channel for
// events that feed the security monitor regardless of severity.
const (
	LogLevelInfo     LogLevel = "INFO"
	LogLevelWarning  LogLevel = "WARNING"
	LogLevelError    LogLevel = "ERROR"
	LogLevelCritical LogLevel = "CRITICAL"
	LogLevelSecurity LogLevel = "SECURITY"
)

// SecurityEventType classifies a security-relevant event.
type SecurityEventType string

// Security event types emitted by the handlers and middleware.
const (
	EventLoginSuccess        SecurityEventType = "login_success"
	EventLoginFailure        SecurityEventType = "login_failure"
	EventLogout              SecurityEventType = "logout"
	EventAccountLocked       SecurityEventType = "account_locked"
	EventUnauthorizedAccess  SecurityEventType = "unauthorized_access"
	EventPrivilegeEscalation SecurityEventType = "privilege_escalation"

	EventTaskCreate      SecurityEventType = "task_create"
	EventTaskDelegate    SecurityEventType = "task_delegate"
	EventTaskStatusMove  SecurityEventType = "task_status_move"
	EventTaskAutoDone    SecurityEventType = "task_auto_done"
	EventSubtaskCreate   SecurityEventType = "subtask_create"
	EventSubtaskComplete SecurityEventType = "subtask_complete"
	EventKeyGrant        SecurityEventType = "key_grant"
	EventKeyRevoke       SecurityEventType = "key_revoke"
	EventPublicKeyChange SecurityEventType = "public_key_change"

	EventUserCreate        SecurityEventType = "user_create"
	EventUserUpdate        SecurityEventType = "user_update"
	EventUserRoleChange    SecurityEventType = "user_role_change"
	EventGroupCreate       SecurityEventType = "group_create"
	EventGroupUpdate       SecurityEventType = "group_update"
	EventGroupMemberAdd    SecurityEventType = "group_member_add"
	EventGroupMemberRemove SecurityEventType = "group_member_remove"

	EventRateLimitExceeded SecurityEventType = "rate_limit_exceeded"
	EventDecryptionFailure SecurityEventType = "decryption_failure"
	EventLargeExport       SecurityEventType = "large_export"
)

// LogEntry is one structured log record. Every entry is emitted as a single
// JSON line so log aggregators can parse the stream without heuristics.
type LogEntry struct {
	Timestamp  time.Time              `json:"timestamp"`
	Level      LogLevel               `json:"level"`
	Message    string                 `json:"message"`
	EventType  SecurityEventType      `json:"event_type,omitempty"`
	ActorID    *int                   `json:"actor_id,omitempty"`
	ActorEmail string                 `json:"actor_email,omitempty"`
	IPAddress  string                 `json:"ip_address,omitempty"`
	UserAgent  string                 `json:"user_agent,omitempty"`
	Method     string                 `json:"method,omitempty"`
	Path       string                 `json:"path,omitempty"`
	Status     int                    `json:"status,omitempty"`
	LatencyMS  int64                  `json:"latency_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

// Logger emits structured JSON log entries.
// Safe for concurrent use; output defaults to stdout.
type Logger struct {
	output *log.Logger
	mu     sync.Mutex
}

// NewLogger creates a logger writing JSON lines to stdout.
func NewLogger() *Logger {
	return &Logger{
		output: log.New(os.Stdout, "", 0),
	}
}

func (l *Logger) emit(entry LogEntry) {
	entry.Timestamp = time.Now().UTC()

	data, err := json.Marshal(entry)
	if err != nil {
		// Marshal failure should never silence the message itself.
		l.output.Printf(`{"timestamp":%q,"level":"ERROR","message":"log marshal failed: %s"}`,
			entry.Timestamp.Format(time.RFC3339), err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Println(string(data))
}

// Info logs an informational message.
func (l *Logger) Info(message string) {
	l.emit(LogEntry{Level: LogLevelInfo, Message: message})
}

// Warn logs a warning message.
func (l *Logger) Warn(message string) {
	l.emit(LogEntry{Level: LogLevelWarning, Message: message})
}

// Error logs an error message with its cause, if any.
func (l *Logger) Error(message string, err error) {
	entry := LogEntry{Level: LogLevelError, Message: message}
	if err != nil {
		entry.Error = err.Error()
	}
	l.emit(entry)
}

// Critical logs a critical failure with its cause, if any.
func (l *Logger) Critical(message string, err error) {
	entry := LogEntry{Level: LogLevelCritical, Message: message}
	if err != nil {
		entry.Error = err.Error()
	}
	l.emit(entry)
}

// SecurityEvent logs one security-relevant event with actor and request
// context. Never log credentials, key material or decrypted content here.
func (l *Logger) SecurityEvent(eventType SecurityEventType, actorID *int, actorEmail, ipAddress, userAgent string, extra map[string]interface{}) {
	l.emit(LogEntry{
		Level:      LogLevelSecurity,
		Message:    fmt.Sprintf("security event: %s", eventType),
		EventType:  eventType,
		ActorID:    actorID,
		ActorEmail: actorEmail,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Extra:      extra,
	})
}

// HTTPRequest logs one completed HTTP request.
func (l *Logger) HTTPRequest(method, path string, status int, latencyMS int64, ipAddress, userAgent string) {
	l.emit(LogEntry{
		Level:     LogLevelInfo,
		Message:   fmt.Sprintf("%s %s %d (%dms)", method, path, status, latencyMS),
		Method:    method,
		Path:      path,
		Status:    status,
		LatencyMS: latencyMS,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	})
}

// Alerter delivers security alerts to an external channel.
type Alerter interface {
	SendAlert(ctx context.Context, severity, title, message string) error
}

// LogAlerter is the default Alerter: it writes alerts to the logger as
// critical entries. Deployments can swap in a pager or chat integration.
type LogAlerter struct {
	logger *Logger
}

// NewLogAlerter creates an alerter backed by the given logger.
func NewLogAlerter(logger *Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

// SendAlert implements Alerter.
func (a *LogAlerter) SendAlert(_ context.Context, severity, title, message string) error {
	a.logger.Critical(fmt.Sprintf("ALERT [%s] %s: %s", severity, title, message), nil)
	return nil
}

// SecurityMonitor watches security events and raises alerts when thresholds
// are crossed. Counters reset on a fixed interval.
type SecurityMonitor struct {
	logger  *Logger
	config  *SecurityConfig
	alerter Alerter

	mu           sync.Mutex
	failedLogins map[string]int // IP address -> failures this window
	lastReset    time.Time
}

// NewSecurityMonitor creates a security monitor.
func NewSecurityMonitor(logger *Logger, config *SecurityConfig, alerter Alerter) *SecurityMonitor {
	return &SecurityMonitor{
		logger:       logger,
		config:       config,
		alerter:      alerter,
		failedLogins: make(map[string]int),
		lastReset:    time.Now(),
	}
}

// MonitorLoginFailure records a failed login from the given IP and alerts
// when the failure threshold for the window is reached.
func (m *SecurityMonitor) MonitorLoginFailure(ipAddress string) {
	m.mu.Lock()
	m.failedLogins[ipAddress]++
	count := m.failedLogins[ipAddress]
	m.mu.Unlock()

	m.logger.SecurityEvent(EventLoginFailure, nil, "", ipAddress, "", map[string]interface{}{
		"failure_count": count,
	})

	if count == m.config.AlertThresholdFailures {
		_ = m.alerter.SendAlert(context.Background(), "HIGH",
			"Repeated login failures",
			fmt.Sprintf("%d failed login attempts from %s", count, ipAddress))
	}
}

// MonitorLargeExport records a bulk data read and alerts when the row count
// meets the export threshold.
func (m *SecurityMonitor) MonitorLargeExport(actorEmail string, rowCount int, details map[string]string) {
	extra := map[string]interface{}{"row_count": rowCount}
	for k, v := range details {
		extra[k] = v
	}
	m.logger.SecurityEvent(EventLargeExport, nil, actorEmail, "", "", extra)

	if rowCount >= m.config.AlertThresholdExport {
		_ = m.alerter.SendAlert(context.Background(), "MEDIUM",
			"Large data export",
			fmt.Sprintf("%s exported %d rows", actorEmail, rowCount))
	}
}

// ResetCounters clears the per-window counters once the monitoring interval
// has elapsed. Calling it early is a no-op.
func (m *SecurityMonitor) ResetCounters() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastReset) < m.config.MonitoringInterval {
		return
	}
	m.failedLogins = make(map[string]int)
	m.lastReset = time.Now()
}
