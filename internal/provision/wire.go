package provision

import (
	"github.com/spf13/afero"

	"github.com/isometry/terraform-provider-sambadc/internal/command"
	"github.com/isometry/terraform-provider-sambadc/internal/krb5conf"
	"github.com/isometry/terraform-provider-sambadc/internal/logging"
	"github.com/isometry/terraform-provider-sambadc/internal/netconfig"
	"github.com/isometry/terraform-provider-sambadc/internal/sambatool"
)

// NewDependencies builds the system collaborators for a run against config.
// Progress and Reporter are left for the caller to set.
func NewDependencies(config ServiceConfig, fsys afero.Fs, paths Paths, runner command.Runner, logger logging.Logger) Dependencies {
	paths = paths.WithDefaults()
	logger = logging.OrNop(logger)

	return Dependencies{
		Config:        config,
		LocalSettings: NewLocalSettingsWriter(config, fsys, paths.SysvolRoot, logger),
		DC: sambatool.NewProvisioner(
			sambatool.NewExecTool(paths.SambaTool, runner),
			logger,
		),
		Kerberos: krb5conf.NewWriter(fsys, paths.Krb5Conf, runner, logger,
			krb5conf.WithPAMConfig(paths.PAMConfigCommand),
		),
		Resolver: netconfig.NewResolverWriter(netconfig.NewStore(fsys, paths.NetworkConfig), logger),
		Network:  netconfig.NewReconfigurer(paths.NetconfigCommand, runner),
		Logger:   logger,
	}
}
