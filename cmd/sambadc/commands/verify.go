package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/isometry/terraform-provider-sambadc/cmd/sambadc/handlers"
	"github.com/isometry/terraform-provider-sambadc/internal/ldap"
)

// Verify returns the verify command.
func Verify(opts *handlers.Options) *cobra.Command {
	var cfg ldap.Config

	cmd := &cobra.Command{
		Use:   "verify [domain]",
		Short: "Check that a domain controller answers LDAP",
		Long: `Verify binds to a domain controller and prints its root DSE facts and the
domain SID. Without --url the servers of the domain are discovered through DNS
SRV records. A simple bind reads its password from $SAMBADC_BIND_PASSWORD and
prompts for it otherwise.

Example:
  sambadc verify samdom.example.com -u Administrator@SAMDOM.EXAMPLE.COM`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cfg.Domain = args[0]
			}
			return handlers.Verify(cmd.Context(), opts, &cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.URL, "url", "", "LDAP URL of a specific server")
	flags.BoolVar(&cfg.StartTLS, "start-tls", false, "Upgrade ldap:// connections with StartTLS")
	flags.BoolVarP(&cfg.TLSInsecureSkipVerify, "insecure", "k", false, "Skip verification of the server certificate")
	flags.StringVarP(&cfg.Username, "username", "u", "", "Bind user (anonymous when empty)")
	flags.StringVar(&cfg.KerberosRealm, "kerberos-realm", "", "Bind with GSSAPI in this realm")
	flags.StringVar(&cfg.KerberosKeytab, "keytab", "", "Keytab for the GSSAPI bind")
	flags.StringVar(&cfg.KerberosCCache, "ccache", "", "Credential cache for the GSSAPI bind")
	flags.StringVar(&cfg.KerberosSPN, "spn", "", "Service principal of the server (default ldap/<host>)")
	flags.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "Connection and search timeout")

	cmd.MarkFlagsMutuallyExclusive("keytab", "ccache")

	return cmd
}
