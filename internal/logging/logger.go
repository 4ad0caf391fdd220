// Package logging provides the structured logger used by the provisioning
// packages. Provisioning code logs through the Logger interface so the same
// components can run under the Terraform provider (tflog) and the operator
// CLI (zerolog).
package logging

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/rs/zerolog"
)

// Logger interface for provisioning operations.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
	Trace(msg string, fields map[string]any)
}

// TFLogger wraps tflog subsystem logging.
type TFLogger struct {
	ctx       context.Context
	subsystem string
}

// NewTFLogger creates a logger writing to the given tflog subsystem. The
// subsystem must already be registered on ctx (see tflog.NewSubsystem).
func NewTFLogger(ctx context.Context, subsystem string) *TFLogger {
	return &TFLogger{
		ctx:       ctx,
		subsystem: subsystem,
	}
}

func (l *TFLogger) Debug(msg string, fields map[string]any) {
	tflog.SubsystemDebug(l.ctx, l.subsystem, msg, SanitizeFields(fields))
}

func (l *TFLogger) Info(msg string, fields map[string]any) {
	tflog.SubsystemInfo(l.ctx, l.subsystem, msg, SanitizeFields(fields))
}

func (l *TFLogger) Warn(msg string, fields map[string]any) {
	tflog.SubsystemWarn(l.ctx, l.subsystem, msg, SanitizeFields(fields))
}

func (l *TFLogger) Error(msg string, fields map[string]any) {
	tflog.SubsystemError(l.ctx, l.subsystem, msg, SanitizeFields(fields))
}

func (l *TFLogger) Trace(msg string, fields map[string]any) {
	tflog.SubsystemTrace(l.ctx, l.subsystem, msg, SanitizeFields(fields))
}

// ZerologLogger adapts a zerolog.Logger.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a Logger backed by zerolog.
func NewZerologLogger(log zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: log}
}

func (l *ZerologLogger) Debug(msg string, fields map[string]any) {
	l.log.Debug().Fields(SanitizeFields(fields)).Msg(msg)
}

func (l *ZerologLogger) Info(msg string, fields map[string]any) {
	l.log.Info().Fields(SanitizeFields(fields)).Msg(msg)
}

func (l *ZerologLogger) Warn(msg string, fields map[string]any) {
	l.log.Warn().Fields(SanitizeFields(fields)).Msg(msg)
}

func (l *ZerologLogger) Error(msg string, fields map[string]any) {
	l.log.Error().Fields(SanitizeFields(fields)).Msg(msg)
}

func (l *ZerologLogger) Trace(msg string, fields map[string]any) {
	l.log.Trace().Fields(SanitizeFields(fields)).Msg(msg)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Debug(string, map[string]any) {}
func (Nop) Info(string, map[string]any)  {}
func (Nop) Warn(string, map[string]any)  {}
func (Nop) Error(string, map[string]any) {}
func (Nop) Trace(string, map[string]any) {}

// OrNop returns l, or a Nop logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop{}
	}
	return l
}

// With returns a logger that adds fields to every record.
func With(l Logger, fields map[string]any) Logger {
	return &fieldLogger{next: OrNop(l), fields: fields}
}

type fieldLogger struct {
	next   Logger
	fields map[string]any
}

func (l *fieldLogger) merge(fields map[string]any) map[string]any {
	out := make(map[string]any, len(l.fields)+len(fields))
	maps.Copy(out, l.fields)
	maps.Copy(out, fields)
	return out
}

func (l *fieldLogger) Debug(msg string, fields map[string]any) { l.next.Debug(msg, l.merge(fields)) }
func (l *fieldLogger) Info(msg string, fields map[string]any)  { l.next.Info(msg, l.merge(fields)) }
func (l *fieldLogger) Warn(msg string, fields map[string]any)  { l.next.Warn(msg, l.merge(fields)) }
func (l *fieldLogger) Error(msg string, fields map[string]any) { l.next.Error(msg, l.merge(fields)) }
func (l *fieldLogger) Trace(msg string, fields map[string]any) { l.next.Trace(msg, l.merge(fields)) }

// LogOperation is a helper function to log an operation with timing.
func LogOperation(l Logger, operation string, fields map[string]any, fn func() error) error {
	l = OrNop(l)
	start := time.Now()

	entry := make(map[string]any, len(fields)+3)
	maps.Copy(entry, fields)
	entry["operation"] = operation

	l.Debug("Starting operation", entry)

	err := fn()

	entry["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		entry["error"] = err.Error()
		l.Error("Operation failed", entry)
	} else {
		l.Debug("Operation completed successfully", entry)
	}

	return err
}

// SanitizeFields removes sensitive information from log fields.
func SanitizeFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}

	sanitized := make(map[string]any, len(fields))

	sensitiveKeys := map[string]bool{
		"password":       true,
		"passwd":         true,
		"secret":         true,
		"token":          true,
		"key":            true,
		"admin_password": true,
		"adminpass":      true,
		"credential":     true,
		"credentials":    true,
	}

	for k, v := range fields {
		if sensitiveKeys[k] {
			sanitized[k] = Redacted
			continue
		}
		if str, ok := v.(string); ok && containsSensitivePattern(str) {
			sanitized[k] = Redacted
			continue
		}
		sanitized[k] = v
	}

	return sanitized
}

// containsSensitivePattern checks if a string contains patterns that might be sensitive.
func containsSensitivePattern(s string) bool {
	patterns := []string{
		"password=",
		"passwd=",
		"adminpass=",
		"secret=",
		"token=",
	}

	lower := strings.ToLower(s)
	for _, pattern := range patterns {
		rest := lower
		for {
			idx := strings.Index(rest, pattern)
			if idx < 0 {
				break
			}
			rest = rest[idx+len(pattern):]
			// Values already masked by the command runner are safe to log.
			if !strings.HasPrefix(rest, strings.ToLower(Redacted)) {
				return true
			}
		}
	}

	return false
}

// Redacted replaces secret values in log output.
const Redacted = "[REDACTED]"
