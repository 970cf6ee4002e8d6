package client

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event types, following the NIST SP 800-92 categories.
const (
	EventAuthentication   = "authentication"
	EventSessionLifecycle = "session_lifecycle"
	EventCommand          = "command"
	EventConnection       = "connection"
	EventFileTransfer     = "file_transfer"
)

// Event subtypes.
const (
	SubtypeAuthAttempt = "attempt"
	SubtypeAuthSuccess = "success"
	SubtypeAuthFailure = "failure"

	SubtypeSessionOpen        = "open"
	SubtypeSessionInvalidated = "invalidated"
	SubtypeSessionClosed      = "closed"

	SubtypeCommandExecute  = "execute"
	SubtypeCommandComplete = "complete"
	SubtypeCommandFailed   = "failed"

	SubtypeConnAdded   = "added"
	SubtypeConnRemoved = "removed"

	SubtypeTransferStart    = "start"
	SubtypeTransferComplete = "complete"
	SubtypeTransferFailed   = "failed"
)

// Event outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
	OutcomeAttempt = "attempt"
)

// Event severities.
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityError    = "ERROR"
	SeverityCritical = "CRITICAL"
)

// SecurityEvent is a structured security log record.
type SecurityEvent struct {
	Timestamp string `json:"timestamp"` // ISO 8601 UTC
	EventType string `json:"event_type"`
	Subtype   string `json:"subtype"`
	Severity  string `json:"severity"`

	AuthType      string `json:"auth_type,omitempty"`
	Source        string `json:"source"`
	Target        string `json:"target"`         // daemon base URL
	CorrelationID string `json:"correlation_id"` // client-scoped UUID

	Action  string         `json:"action"`
	Outcome string         `json:"outcome"`
	Details map[string]any `json:"details,omitempty"`
}

// String returns the JSON representation of the event.
func (e *SecurityEvent) String() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// SecurityLogger writes security events for one client.
type SecurityLogger struct {
	logger        *slog.Logger
	authType      string
	target        string
	correlationID string
}

// NewSecurityLogger creates a logger with a fresh correlation ID.
// A nil logger discards all events.
func NewSecurityLogger(logger *slog.Logger, authType, target string) *SecurityLogger {
	return &SecurityLogger{
		logger:        logger,
		authType:      authType,
		target:        target,
		correlationID: uuid.New().String(),
	}
}

// CorrelationID returns the ID attached to every event of this logger.
func (l *SecurityLogger) CorrelationID() string {
	return l.correlationID
}

// LogEvent constructs and logs a security event.
func (l *SecurityLogger) LogEvent(eventType, subtype, severity, outcome, action string, details map[string]any) {
	if l == nil || l.logger == nil {
		return
	}
	if details == nil {
		details = make(map[string]any)
	}

	event := &SecurityEvent{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		EventType:     eventType,
		Subtype:       subtype,
		Severity:      severity,
		AuthType:      l.authType,
		Source:        "go-xpipe",
		Target:        l.target,
		CorrelationID: l.correlationID,
		Action:        action,
		Outcome:       outcome,
		Details:       details,
	}

	switch severity {
	case SeverityWarning:
		l.logger.Warn("SecurityEvent", "event", event)
	case SeverityError, SeverityCritical:
		l.logger.Error("SecurityEvent", "event", event)
	default:
		l.logger.Info("SecurityEvent", "event", event)
	}
}

// LogAuthentication logs handshake events.
func (l *SecurityLogger) LogAuthentication(subtype, outcome, severity string, details map[string]any) {
	l.LogEvent(EventAuthentication, subtype, severity, outcome, "Handshake", details)
}

// LogSession logs session lifecycle events.
func (l *SecurityLogger) LogSession(subtype, outcome, severity string, details map[string]any) {
	l.LogEvent(EventSessionLifecycle, subtype, severity, outcome, "Session", details)
}

// LogCommand logs remote shell command events.
func (l *SecurityLogger) LogCommand(subtype, outcome, severity string, details map[string]any) {
	l.LogEvent(EventCommand, subtype, severity, outcome, "ShellExec", details)
}

// LogConnection logs changes to the connection store.
func (l *SecurityLogger) LogConnection(subtype, outcome, severity string, details map[string]any) {
	l.LogEvent(EventConnection, subtype, severity, outcome, "ConnectionStore", details)
}

// LogFileTransfer logs file transfer events.
func (l *SecurityLogger) LogFileTransfer(action, subtype, outcome, severity string, details map[string]any) {
	l.LogEvent(EventFileTransfer, subtype, severity, outcome, action, details)
}
