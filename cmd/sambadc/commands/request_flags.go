package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/isometry/terraform-provider-sambadc/cmd/sambadc/handlers"
	"github.com/isometry/terraform-provider-sambadc/internal/provision"
)

// requestFlags are the request fields shared by provision and join. Only
// flags set on the command line override the request file.
type requestFlags struct {
	dnsManaged  bool
	useRFC2307  bool
	forestLevel string
	dnsBackend  string
}

func (f *requestFlags) bind(cmd *cobra.Command, run *handlers.RunOptions) {
	defaults := provision.NewRequest("")

	flags := cmd.Flags()
	flags.StringVarP(&run.RequestFile, "request", "f", "", "YAML file with the request fields")
	flags.StringVar(&run.Realm, "realm", "", "Kerberos realm of the domain (default: the realm in smb.conf)")
	flags.StringVar(&run.Workgroup, "workgroup", "", "NetBIOS domain name (default: first label of the realm)")
	flags.BoolVar(&f.dnsManaged, "dns-managed", defaults.DNSManaged, "Point the resolver at this host and apply the network configuration")
	flags.BoolVar(&f.useRFC2307, "use-rfc2307", defaults.UseRFC2307, "Store POSIX attributes in the directory")
	flags.StringVar(&f.forestLevel, "forest-level", defaults.ForestLevel,
		"Functional level ("+strings.Join(provision.ForestLevels, ", ")+")")
	flags.StringVar(&f.dnsBackend, "dns-backend", defaults.DNSBackend,
		"DNS backend ("+strings.Join(provision.DNSBackends, ", ")+")")
}

func (f *requestFlags) apply(flags *pflag.FlagSet, req *provision.Request) {
	if flags.Changed("dns-managed") {
		req.DNSManaged = f.dnsManaged
	}
	if flags.Changed("use-rfc2307") {
		req.UseRFC2307 = f.useRFC2307
	}
	if flags.Changed("forest-level") {
		req.ForestLevel = strings.ToUpper(f.forestLevel)
	}
	if flags.Changed("dns-backend") {
		req.DNSBackend = strings.ToUpper(f.dnsBackend)
	}
}
