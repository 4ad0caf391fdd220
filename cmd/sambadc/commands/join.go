package commands

import (
	"github.com/spf13/cobra"

	"github.com/isometry/terraform-provider-sambadc/cmd/sambadc/handlers"
	"github.com/isometry/terraform-provider-sambadc/internal/provision"
)

// Join returns the join command.
//
// The join command adds this host to an existing domain as an additional
// domain controller.
func Join(opts *handlers.Options) *cobra.Command {
	var (
		run      handlers.RunOptions
		rf       requestFlags
		readOnly bool
		username string
	)

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join an existing domain as an additional domain controller",
		Long: `Join writes the Samba service configuration, runs "samba-tool domain join"
against the realm and writes krb5.conf. A failed join is reported but the
remaining stages still run. The password of --username is read from
$SAMBADC_JOIN_PASSWORD or the request file, and prompted for otherwise.

Example:
  sambadc join --realm SAMDOM.EXAMPLE.COM --username Administrator`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			run.Overrides = func(req *provision.Request) {
				rf.apply(cmd.Flags(), req)
				if cmd.Flags().Changed("read-only") {
					req.ReadOnlyDC = readOnly
				}
				if cmd.Flags().Changed("username") {
					req.Credentials.Username = username
				}
			}
			return handlers.Join(cmd.Context(), opts, run)
		},
	}

	rf.bind(cmd, &run)
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "Join as a read-only domain controller")
	cmd.Flags().StringVarP(&username, "username", "u", "", "User allowed to join domain controllers (prompted when empty)")

	return cmd
}
