package commands

import (
	"github.com/spf13/cobra"

	"github.com/isometry/terraform-provider-sambadc/cmd/sambadc/handlers"
	"github.com/isometry/terraform-provider-sambadc/internal/provision"
)

// Provision returns the provision command.
//
// The provision command creates a new forest with this host as its first
// domain controller.
func Provision(opts *handlers.Options) *cobra.Command {
	var (
		run handlers.RunOptions
		rf  requestFlags
	)

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision a new forest with this host as its first domain controller",
		Long: `Provision writes the Samba service configuration, runs
"samba-tool domain provision", writes krb5.conf and, unless --dns-managed=false,
points the resolver at this host.

Fields are taken from the command line, then the --request file, then the
defaults. The administrator password is read from $SAMBADC_ADMIN_PASSWORD or
the request file, and prompted for otherwise.

Example:
  sambadc provision --realm SAMDOM.EXAMPLE.COM --dns-backend SAMBA_INTERNAL`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			run.Overrides = func(req *provision.Request) {
				rf.apply(cmd.Flags(), req)
			}
			return handlers.Provision(cmd.Context(), opts, run)
		},
	}

	rf.bind(cmd, &run)

	return cmd
}
