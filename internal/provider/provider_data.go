package provider

import (
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/spf13/afero"

	"github.com/isometry/terraform-provider-sambadc/internal/command"
	"github.com/isometry/terraform-provider-sambadc/internal/ldap"
	"github.com/isometry/terraform-provider-sambadc/internal/logging"
	"github.com/isometry/terraform-provider-sambadc/internal/netconfig"
	"github.com/isometry/terraform-provider-sambadc/internal/provision"
	"github.com/isometry/terraform-provider-sambadc/internal/smbconf"
)

// ProviderData is handed to every resource and data source.
type ProviderData struct {
	Paths provision.Paths
	Fs    afero.Fs

	// Runner executes external commands. Nil runs them on the host.
	Runner command.Runner

	// Resolver answers SRV queries for domain controller discovery. Nil uses
	// the system resolver.
	Resolver ldap.Resolver

	// VerifierOptions configure the LDAP verifier of the domain controller
	// data source.
	VerifierOptions []ldap.VerifierOption
}

// NewProviderData creates provider data operating on the host filesystem.
func NewProviderData(paths provision.Paths) *ProviderData {
	return &ProviderData{
		Paths: paths.WithDefaults(),
		Fs:    afero.NewOsFs(),
	}
}

func (pd *ProviderData) runner(logger logging.Logger) command.Runner {
	if pd.Runner != nil {
		return pd.Runner
	}
	return command.NewExecRunner(logger)
}

// LoadServiceConfig reads smb.conf.
func (pd *ProviderData) LoadServiceConfig() (*smbconf.Config, error) {
	return smbconf.Load(pd.Fs, pd.Paths.SMBConf)
}

// NetworkStore opens the network configuration.
func (pd *ProviderData) NetworkStore() *netconfig.Store {
	return netconfig.NewStore(pd.Fs, pd.Paths.NetworkConfig)
}

// Discovery creates an SRV discovery logging to logger.
func (pd *ProviderData) Discovery(logger logging.Logger) *ldap.SRVDiscovery {
	return ldap.NewSRVDiscovery(pd.Resolver, logger)
}

// Verifier creates an LDAP verifier logging to logger.
func (pd *ProviderData) Verifier(logger logging.Logger) *ldap.Verifier {
	opts := append([]ldap.VerifierOption{ldap.WithDiscovery(pd.Discovery(logger))}, pd.VerifierOptions...)
	return ldap.NewVerifier(logger, opts...)
}

// providerDataFrom extracts ProviderData in Configure methods. A nil result
// with no diagnostics means the provider is not configured yet.
func providerDataFrom(data any, kind string) (*ProviderData, diag.Diagnostics) {
	var diags diag.Diagnostics
	if data == nil {
		return nil, diags
	}

	providerData, ok := data.(*ProviderData)
	if !ok {
		diags.AddError(
			fmt.Sprintf("Unexpected %s Configure Type", kind),
			fmt.Sprintf("Expected *provider.ProviderData, got: %T. Please report this issue to the provider developers.", data),
		)
		return nil, diags
	}
	return providerData, diags
}
