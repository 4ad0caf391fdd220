package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-sambadc/internal/logging"
)

const (
	subsystemProvision = "provision"
	subsystemLDAP      = "ldap"
)

// initializeLogging registers the provider subsystems on ctx.
// This should be called at the beginning of each data source Read method
// and resource Create/Read/Update/Delete methods.
func initializeLogging(ctx context.Context) context.Context {
	// Pattern: TF_LOG_PROVIDER_SAMBADC_<SUBSYSTEM>
	ctx = tflog.NewSubsystem(ctx, subsystemProvision,
		tflog.WithLevelFromEnv("TF_LOG_PROVIDER_SAMBADC_PROVISION"))
	ctx = tflog.NewSubsystem(ctx, subsystemLDAP,
		tflog.WithLevelFromEnv("TF_LOG_PROVIDER_SAMBADC_LDAP"))
	return ctx
}

func provisionLogger(ctx context.Context) logging.Logger {
	return logging.NewTFLogger(ctx, subsystemProvision)
}

func ldapLogger(ctx context.Context) logging.Logger {
	return logging.NewTFLogger(ctx, subsystemLDAP)
}
