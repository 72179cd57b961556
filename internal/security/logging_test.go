// Package security provides security tests for logging and monitoring.
package security

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"strings"
	"testing"
)

// TestLogger_JSONFormat tests that logs are output in valid JSON format.
func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.output = log.New(&buf, "", 0)

	logger.Info("Test message")

	output := buf.String()

	// Should be valid JSON
	var entry LogEntry
	if err := json.Unmarshal([]byte(output), &entry); err != nil {
		t.Errorf("Log output is not valid JSON: %v", err)
	}

	if entry.Message != "Test message" {
		t.Errorf("Expected message 'Test message', got %q", entry.Message)
	}

	if entry.Level != LogLevelInfo {
		t.Errorf("Expected level INFO, got %q", entry.Level)
	}

	if entry.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
}

// TestLogger_Levels tests different log levels.
func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		logFunc  func(*Logger, string)
		expected LogLevel
	}{
		{"Info", func(l *Logger, m string) { l.Info(m) }, LogLevelInfo},
		{"Warn", func(l *Logger, m string) { l.Warn(m) }, LogLevelWarning},
		{"Error", func(l *Logger, m string) { l.Error(m, nil) }, LogLevelError},
		{"Critical", func(l *Logger, m string) { l.Critical(m, nil) }, LogLevelCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger()
			logger.output = log.New(&buf, "", 0)

			tt.logFunc(logger, "test message")

			var entry LogEntry
			json.Unmarshal(buf.Bytes(), &entry)

			if entry.Level != tt.expected {
				t.Errorf("Expected level %q, got %q", tt.expected, entry.Level)
			}
		})
	}
}

// TestLogger_SecurityEvent tests security event logging.
func TestLogger_SecurityEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.output = log.New(&buf, "", 0)

	actorID := 123
	extra := map[string]interface{}{
		"task_id": 456,
		"success": true,
	}

	logger.SecurityEvent(
		EventTaskDelegate,
		&actorID,
		"owner@example.com",
		"192.168.1.100",
		"Mozilla/5.0",
		extra,
	)

	var entry LogEntry
	json.Unmarshal(buf.Bytes(), &entry)

	if entry.Level != LogLevelSecurity {
		t.Errorf("Expected SECURITY level, got %q", entry.Level)
	}

	if entry.EventType != EventTaskDelegate {
		t.Errorf("Expected event type %q, got %q", EventTaskDelegate, entry.EventType)
	}

	if entry.ActorID == nil || *entry.ActorID != 123 {
		t.Errorf("Expected actor_id 123, got %v", entry.ActorID)
	}

	if entry.ActorEmail != "owner@example.com" {
		t.Errorf("Expected actor_email owner@example.com, got %q", entry.ActorEmail)
	}

	if entry.IPAddress != "192.168.1.100" {
		t.Errorf("Expected ip_address 192.168.1.100, got %q", entry.IPAddress)
	}

	if entry.UserAgent != "Mozilla/5.0" {
		t.Errorf("Expected user_agent Mozilla/5.0, got %q", entry.UserAgent)
	}

	if entry.Extra["task_id"] != float64(456) { // JSON unmarshals numbers as float64
		t.Errorf("Expected extra.task_id 456, got %v", entry.Extra["task_id"])
	}
}

// TestLogger_HTTPRequest tests HTTP request logging.
func TestLogger_HTTPRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.output = log.New(&buf, "", 0)

	logger.HTTPRequest(
		"POST",
		"/api/tasks/42/delegate",
		200,
		245,
		"192.168.1.100",
		"Mozilla/5.0",
	)

	var entry LogEntry
	json.Unmarshal(buf.Bytes(), &entry)

	if entry.Method != "POST" {
		t.Errorf("Expected method POST, got %q", entry.Method)
	}

	if entry.Path != "/api/tasks/42/delegate" {
		t.Errorf("Expected path /api/tasks/42/delegate, got %q", entry.Path)
	}

	if entry.Status != 200 {
		t.Errorf("Expected status 200, got %d", entry.Status)
	}

	if entry.LatencyMS != 245 {
		t.Errorf("Expected latency 245ms, got %d", entry.LatencyMS)
	}

	if !strings.Contains(entry.Message, "POST") {
		t.Error("Message should contain method")
	}

	if !strings.Contains(entry.Message, "200") {
		t.Error("Message should contain status")
	}
}

// TestLogger_ErrorWithException tests error logging with exception.
func TestLogger_ErrorWithException(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.output = log.New(&buf, "", 0)

	testErr := &customError{"database connection failed"}
	logger.Error("Failed to connect", testErr)

	var entry LogEntry
	json.Unmarshal(buf.Bytes(), &entry)

	if entry.Error != "database connection failed" {
		t.Errorf("Expected error message, got %q", entry.Error)
	}
}

// customError for testing error logging.
type customError struct {
	message string
}

func (e *customError) Error() string {
	return e.message
}

// mockAlerter for testing security monitoring.
type mockAlerter struct {
	alerts []mockAlert
}

type mockAlert struct {
	severity string
	title    string
	message  string
}

func (m *mockAlerter) SendAlert(ctx context.Context, severity, title, message string) error {
	m.alerts = append(m.alerts, mockAlert{severity, title, message})
	return nil
}

// TestSecurityMonitor_FailedLogins tests monitoring of failed login attempts.
func TestSecurityMonitor_FailedLogins(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.output = log.New(&buf, "", 0)

	config := DefaultSecurityConfig()
	config.AlertThresholdFailures = 3

	alerter := &mockAlerter{}
	monitor := NewSecurityMonitor(logger, config, alerter)

	ipAddress := "192.168.1.100"

	// Record 2 failed attempts (below threshold)
	monitor.MonitorLoginFailure(ipAddress)
	monitor.MonitorLoginFailure(ipAddress)

	if len(alerter.alerts) != 0 {
		t.Error("Should not alert below threshold")
	}

	// 3rd attempt should trigger alert
	monitor.MonitorLoginFailure(ipAddress)

	if len(alerter.alerts) != 1 {
		t.Errorf("Expected 1 alert, got %d", len(alerter.alerts))
	}

	alert := alerter.alerts[0]
	if alert.severity != "HIGH" {
		t.Errorf("Expected HIGH severity, got %q", alert.severity)
	}

	if !strings.Contains(alert.message, ipAddress) {
		t.Error("Alert message should contain IP address")
	}
}

// TestSecurityMonitor_LargeExport tests monitoring of large data reads.
func TestSecurityMonitor_LargeExport(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.output = log.New(&buf, "", 0)

	config := DefaultSecurityConfig()
	config.AlertThresholdExport = 1000

	alerter := &mockAlerter{}
	monitor := NewSecurityMonitor(logger, config, alerter)

	// Small read (below threshold)
	monitor.MonitorLargeExport("owner@example.com", 500, map[string]string{"scope": "audit"})

	if len(alerter.alerts) != 0 {
		t.Error("Should not alert for small export")
	}

	// Large read (meets threshold)
	monitor.MonitorLargeExport("owner@example.com", 1500, map[string]string{"scope": "audit"})

	if len(alerter.alerts) != 1 {
		t.Errorf("Expected 1 alert, got %d", len(alerter.alerts))
	}

	alert := alerter.alerts[0]
	if alert.severity != "MEDIUM" {
		t.Errorf("Expected MEDIUM severity, got %q", alert.severity)
	}

	if !strings.Contains(alert.message, "1500") {
		t.Error("Alert message should contain row count")
	}
}

// TestSecurityMonitor_ResetCounters tests periodic counter reset.
func TestSecurityMonitor_ResetCounters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.output = log.New(&buf, "", 0)

	config := DefaultSecurityConfig()
	alerter := &mockAlerter{}
	monitor := NewSecurityMonitor(logger, config, alerter)

	monitor.MonitorLoginFailure("192.168.1.100")
	monitor.MonitorLoginFailure("192.168.1.100")

	if monitor.failedLogins["192.168.1.100"] != 2 {
		t.Errorf("Expected 2 failures, got %d", monitor.failedLogins["192.168.1.100"])
	}

	// Reset shouldn't happen before the monitoring interval elapses
	monitor.ResetCounters()
	if monitor.failedLogins["192.168.1.100"] != 2 {
		t.Error("Counters should not reset immediately")
	}
}

// TestSecurityEvent_AllTypes verifies all security event types are defined.
func TestSecurityEvent_AllTypes(t *testing.T) {
	events := []SecurityEventType{
		EventLoginSuccess,
		EventLoginFailure,
		EventLogout,
		EventAccountLocked,
		EventUnauthorizedAccess,
		EventPrivilegeEscalation,
		EventTaskCreate,
		EventTaskDelegate,
		EventTaskStatusMove,
		EventTaskAutoDone,
		EventSubtaskCreate,
		EventSubtaskComplete,
		EventKeyGrant,
		EventKeyRevoke,
		EventPublicKeyChange,
		EventUserCreate,
		EventUserUpdate,
		EventUserRoleChange,
		EventGroupCreate,
		EventGroupUpdate,
		EventGroupMemberAdd,
		EventGroupMemberRemove,
		EventRateLimitExceeded,
		EventDecryptionFailure,
		EventLargeExport,
	}

	for _, event := range events {
		if string(event) == "" {
			t.Errorf("Event type %v has empty string value", event)
		}
	}

	t.Logf("Verified %d security event types", len(events))
}

// BenchmarkLogger_Info benchmarks info logging performance.
func BenchmarkLogger_Info(b *testing.B) {
	logger := NewLogger()
	logger.output = log.New(&bytes.Buffer{}, "", 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("Benchmark test message")
	}
}

// BenchmarkLogger_SecurityEvent benchmarks security event logging.
func BenchmarkLogger_SecurityEvent(b *testing.B) {
	logger := NewLogger()
	logger.output = log.New(&bytes.Buffer{}, "", 0)

	actorID := 123
	extra := map[string]interface{}{"test": "value"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.SecurityEvent(EventLoginSuccess, &actorID, "owner@example.com", "192.168.1.100", "Mozilla/5.0", extra)
	}
}
