// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/isometry/terraform-provider-sambadc/cmd/sambadc/handlers"
)

// Root returns the root command for the sambadc CLI.
func Root() *cobra.Command {
	opts := &handlers.Options{}

	cmd := &cobra.Command{
		Use:           "sambadc",
		Short:         "Provision a Samba Active Directory domain controller",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.Out = cmd.OutOrStdout()
			opts.Err = cmd.ErrOrStderr()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.LogLevel, "log-level", "warn", "Log level (trace, debug, info, warn, error)")
	flags.StringVar(&opts.Paths.SMBConf, "smb-conf", "", "Samba configuration file (default /etc/samba/smb.conf)")
	flags.StringVar(&opts.Paths.Krb5Conf, "krb5-conf", "", "Kerberos configuration file (default /etc/krb5.conf)")
	flags.StringVar(&opts.Paths.NetworkConfig, "network-config", "", "Network configuration holding the static DNS servers (default /etc/sysconfig/network/config)")
	flags.StringVar(&opts.Paths.SambaTool, "samba-tool", "", "samba-tool executable")
	flags.StringVar(&opts.Paths.NetconfigCommand, "netconfig-command", "", "Command that applies the network configuration (default \"/sbin/netconfig update\")")
	flags.StringVar(&opts.Paths.PAMConfigCommand, "pam-config", "", "pam-config executable (default /usr/sbin/pam-config)")
	flags.StringVar(&opts.Paths.SysvolRoot, "sysvol-root", "", "Directory of the sysvol share (default /var/locks/sysvol)")
	flags.StringVar(&opts.Paths.LockFile, "lock-file", "", "Lock file serializing provisioning runs (default /run/sambadc.lock)")

	cmd.AddCommand(Provision(opts))
	cmd.AddCommand(Join(opts))
	cmd.AddCommand(Verify(opts))
	cmd.AddCommand(Version())

	return cmd
}
