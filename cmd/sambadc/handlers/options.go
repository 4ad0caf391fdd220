// Package handlers implements the business logic of the CLI commands.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/isometry/terraform-provider-sambadc/internal/command"
	"github.com/isometry/terraform-provider-sambadc/internal/ldap"
	"github.com/isometry/terraform-provider-sambadc/internal/logging"
	"github.com/isometry/terraform-provider-sambadc/internal/provision"
)

// ErrRunFailed is returned when a provisioning run did not complete.
var ErrRunFailed = errors.New("provisioning did not complete")

// Passwords are read from these variables, then prompted for. They are never
// taken from the command line.
const (
	EnvAdminPassword = "SAMBADC_ADMIN_PASSWORD"
	EnvJoinPassword  = "SAMBADC_JOIN_PASSWORD"
	EnvBindPassword  = "SAMBADC_BIND_PASSWORD"
)

// Options are the settings shared by every command.
type Options struct {
	LogLevel string
	Paths    provision.Paths

	Out io.Writer
	Err io.Writer
}

func (o *Options) stdout() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

func (o *Options) stderr() io.Writer {
	if o.Err == nil {
		return os.Stderr
	}
	return o.Err
}

// logger builds the console logger at the configured level.
func (o *Options) logger() (logging.Logger, error) {
	level := zerolog.WarnLevel
	if o.LogLevel != "" {
		parsed, err := zerolog.ParseLevel(o.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", o.LogLevel, err)
		}
		level = parsed
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: o.stderr(), TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().
		Logger()
	return logging.NewZerologLogger(log), nil
}

// hostLock serializes runs on the host.
type hostLock interface {
	Acquire() error
	Release() error
}

// Factory function variables - can be replaced in tests.
var (
	newFs = afero.NewOsFs

	newRunner = func(logger logging.Logger) command.Runner {
		return command.NewExecRunner(logger)
	}

	newHostLock = func(path string) hostLock {
		return provision.NewHostLock(path)
	}

	// newResolver returns nil for the system resolver.
	newResolver = func() ldap.Resolver {
		return nil
	}

	newVerifier = func(logger logging.Logger) *ldap.Verifier {
		return ldap.NewVerifier(logger, ldap.WithDiscovery(ldap.NewSRVDiscovery(newResolver(), logger)))
	}

	askPassword = func(message string) (string, error) {
		var value string
		err := survey.AskOne(&survey.Password{Message: message}, &value, survey.WithValidator(survey.Required))
		return value, err
	}

	askInput = func(message, def string) (string, error) {
		var value string
		err := survey.AskOne(&survey.Input{Message: message, Default: def}, &value, survey.WithValidator(survey.Required))
		return value, err
	}
)

// readPassword returns the value of env, prompting with message when it is
// unset.
func readPassword(env, message string) (string, error) {
	if value := os.Getenv(env); value != "" {
		return value, nil
	}
	value, err := askPassword(message)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return value, nil
}
