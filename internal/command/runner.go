// Package command runs external programs for the provisioning stages.
package command

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/isometry/terraform-provider-sambadc/internal/logging"
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec, without a shell.
type ExecRunner struct {
	Logger logging.Logger
}

// NewExecRunner creates a Runner that logs every invocation to logger.
func NewExecRunner(logger logging.Logger) *ExecRunner {
	return &ExecRunner{Logger: logging.OrNop(logger)}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	logger := logging.OrNop(r.Logger)
	cmdline := Format(name, args...)

	logger.Debug("Running command", map[string]any{
		"command": cmdline,
	})

	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	output := string(out)

	fields := map[string]any{
		"command":     cmdline,
		"duration_ms": time.Since(start).Milliseconds(),
	}

	if err != nil {
		fields["error"] = err.Error()
		if exitErr, ok := err.(*exec.ExitError); ok {
			fields["exit_code"] = exitErr.ExitCode()
		}
		logger.Error("Command failed", fields)
		return output, fmt.Errorf("%s: %w", name, err)
	}

	logger.Debug("Command completed", fields)
	return output, nil
}

// secretFlags are flag prefixes whose values never reach the logs.
var secretFlags = []string{
	"--password=",
	"--adminpass=",
	"--krbtgtpass=",
	"--machinepass=",
	"--dnspass=",
}

func secretFlag(arg string) (string, bool) {
	for _, flag := range secretFlags {
		if strings.HasPrefix(arg, flag) {
			return flag, true
		}
	}
	return "", false
}

// Redact masks the values of secret-bearing flags.
func Redact(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = arg
		if flag, ok := secretFlag(arg); ok {
			out[i] = flag + logging.Redacted
		}
	}
	return out
}

// Format renders a redacted, shell-quoted command line for logs and messages.
func Format(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellquote.Join(name))
	for _, arg := range args {
		if flag, ok := secretFlag(arg); ok {
			parts = append(parts, flag+logging.Redacted)
			continue
		}
		parts = append(parts, shellquote.Join(arg))
	}
	return strings.Join(parts, " ")
}
