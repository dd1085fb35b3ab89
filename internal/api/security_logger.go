package api

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/MJE43/mapgame-session-go/internal/engine"
)

// SecurityLogger handles security-conscious logging with no raw token exposure
type SecurityLogger struct {
	logger *log.Logger
}

// NewSecurityLogger creates a new security logger
func NewSecurityLogger() *SecurityLogger {
	return NewSecurityLoggerTo(log.New(os.Stdout, "[SECURITY] ", log.LstdFlags|log.LUTC))
}

// NewSecurityLoggerTo wraps an existing logger.
func NewSecurityLoggerTo(logger *log.Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger}
}

// LogSessionOperation logs session lifecycle operations by token fingerprint
func (sl *SecurityLogger) LogSessionOperation(
	requestID string,
	operation string,
	token string,
	definitionID string,
	outcome string,
) {
	sl.logger.Printf(
		"session_operation request_id=%s operation=%s token=%s definition=%s outcome=%s engine_version=%s timestamp=%s",
		requestID,
		operation,
		engine.Fingerprint(token),
		definitionID,
		outcome,
		EngineVersion,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// LogSecurityEvent logs security-related events (failed validations, policy violations)
func (sl *SecurityLogger) LogSecurityEvent(
	requestID string,
	eventType string,
	description string,
	context map[string]interface{},
	remoteAddr string,
) {
	sl.logger.Printf(
		"security_event request_id=%s type=%s description=%q context=%+v remote_addr=%s engine_version=%s timestamp=%s",
		requestID,
		eventType,
		description,
		sl.sanitizeContext(context),
		remoteAddr,
		EngineVersion,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// LogAuditEvent logs audit events for compliance and debugging
func (sl *SecurityLogger) LogAuditEvent(
	requestID string,
	action string,
	resource string,
	outcome string,
	details map[string]interface{},
) {
	sl.logger.Printf(
		"audit_event request_id=%s action=%s resource=%s outcome=%s details=%+v engine_version=%s timestamp=%s",
		requestID,
		action,
		resource,
		outcome,
		sl.sanitizeContext(details),
		EngineVersion,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// sanitizeContext fingerprints tokens and redacts credentials
func (sl *SecurityLogger) sanitizeContext(context map[string]interface{}) map[string]interface{} {
	if context == nil {
		return nil
	}

	sanitized := make(map[string]interface{}, len(context))
	for key, value := range context {
		switch key {
		case "token", "session_token", "sessionToken":
			if strVal, ok := value.(string); ok {
				sanitized[key+"_hash"] = engine.Fingerprint(strVal)
			} else {
				sanitized[key+"_hash"] = fmt.Sprintf("non_string_value_%T", value)
			}
		case "password", "secret", "api_key", "authorization", "dsn", "redis_password":
			sanitized[key] = "[REDACTED]"
		default:
			sanitized[key] = value
		}
	}
	return sanitized
}

// LogSystemStartup logs system startup information
func (sl *SecurityLogger) LogSystemStartup(addr string, config map[string]interface{}) {
	sl.logger.Printf(
		"system_startup addr=%s config=%+v engine_version=%s git_commit=%s build_time=%s timestamp=%s",
		addr,
		sl.sanitizeContext(config),
		EngineVersion,
		GitCommit,
		BuildTime,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// LogSystemShutdown logs system shutdown information
func (sl *SecurityLogger) LogSystemShutdown(reason string, uptime time.Duration) {
	sl.logger.Printf(
		"system_shutdown reason=%s uptime=%v engine_version=%s timestamp=%s",
		reason,
		uptime,
		EngineVersion,
		time.Now().UTC().Format(time.RFC3339),
	)
}
