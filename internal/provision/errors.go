package provision

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned when another run holds the host lock.
var ErrRunInProgress = errors.New("another provisioning run is in progress on this host")

// StageError describes a failed stage.
type StageError struct {
	Stage    StageID // Stage that failed
	Resource string  // File or command the stage could not apply
	Message  string  // User-facing message
	Detail   string  // Tool output, if any
	Cause    error   // Underlying error
}

// Error returns the user-facing message.
func (e *StageError) Error() string {
	return e.Message
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// LogFields returns the error as structured log fields.
func (e *StageError) LogFields() map[string]any {
	fields := map[string]any{
		"stage": string(e.Stage),
	}
	if e.Resource != "" {
		fields["resource"] = e.Resource
	}
	if e.Detail != "" {
		fields["detail"] = e.Detail
	}
	if e.Cause != nil {
		fields["error"] = e.Cause.Error()
	}
	return fields
}

// CannotWriteSettings returns the error for a configuration file that could
// not be written.
func CannotWriteSettings(stage StageID, path string, cause error) *StageError {
	return &StageError{
		Stage:    stage,
		Resource: path,
		Message:  fmt.Sprintf("Cannot write settings to %s.", path),
		Cause:    cause,
	}
}

const (
	msgProvisionFailed = "Error provisioning database. Check logs for details."
	msgJoinFailed      = "Error joining to domain. Check logs for details."
)

func provisionFailed(detail string) *StageError {
	return &StageError{
		Stage:   StageProvisionOrJoin,
		Message: msgProvisionFailed,
		Detail:  detail,
	}
}

func joinFailed(detail string) *StageError {
	return &StageError{
		Stage:   StageProvisionOrJoin,
		Message: msgJoinFailed,
		Detail:  detail,
	}
}

func networkUpdateFailed(command string, cause error) *StageError {
	return &StageError{
		Stage:    StageUpdateNetwork,
		Resource: command,
		Message:  fmt.Sprintf("Cannot update network configuration: %s failed.", command),
		Cause:    cause,
	}
}

func cancelled(stage StageID, cause error) *StageError {
	return &StageError{
		Stage:   stage,
		Message: "Provisioning was cancelled.",
		Cause:   cause,
	}
}
