package provider

import (
	"context"
	"os"

	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/ephemeral"
	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-sambadc/internal/provision"
)

// Ensure SambaDCProvider satisfies various provider interfaces.
var _ provider.Provider = &SambaDCProvider{}
var _ provider.ProviderWithFunctions = &SambaDCProvider{}
var _ provider.ProviderWithEphemeralResources = &SambaDCProvider{}

// SambaDCProvider defines the provider implementation.
type SambaDCProvider struct {
	// version is set to the provider version on release, "dev" when the
	// provider is built and ran locally, and "test" when running acceptance
	// testing.
	version string
}

// SambaDCProviderModel describes the provider data model.
type SambaDCProviderModel struct {
	SMBConfPath       types.String `tfsdk:"smb_conf_path"`
	Krb5ConfPath      types.String `tfsdk:"krb5_conf_path"`
	NetworkConfigPath types.String `tfsdk:"network_config_path"`
	SambaToolPath     types.String `tfsdk:"samba_tool_path"`
	NetconfigCommand  types.String `tfsdk:"netconfig_command"`
	PAMConfigCommand  types.String `tfsdk:"pam_config_command"`
	SysvolRoot        types.String `tfsdk:"sysvol_root"`
	LockFile          types.String `tfsdk:"lock_file"`
}

func (p *SambaDCProvider) Metadata(ctx context.Context, req provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "sambadc"
	resp.Version = p.version
}

func pathAttribute(description, envVar, def string) schema.StringAttribute {
	return schema.StringAttribute{
		MarkdownDescription: description + " Defaults to `" + def + "`. " +
			"Can be set via the `" + envVar + "` environment variable.",
		Optional: true,
		Validators: []validator.String{
			stringvalidator.LengthAtLeast(1),
		},
	}
}

func (p *SambaDCProvider) Schema(ctx context.Context, req provider.SchemaRequest, resp *provider.SchemaResponse) {
	defaults := provision.DefaultPaths()

	resp.Schema = schema.Schema{
		MarkdownDescription: "The Samba DC provider turns the host Terraform runs on into a Samba Active Directory domain controller. " +
			"It writes the Samba, Kerberos and resolver configuration and drives `samba-tool` to provision a new forest or join an existing domain.",
		Attributes: map[string]schema.Attribute{
			"smb_conf_path": pathAttribute(
				"Path of the Samba configuration file.", "SAMBADC_SMB_CONF_PATH", defaults.SMBConf),
			"krb5_conf_path": pathAttribute(
				"Path of the Kerberos client configuration file.", "SAMBADC_KRB5_CONF_PATH", defaults.Krb5Conf),
			"network_config_path": pathAttribute(
				"Path of the sysconfig network configuration holding the static DNS server list.", "SAMBADC_NETWORK_CONFIG_PATH", defaults.NetworkConfig),
			"samba_tool_path": pathAttribute(
				"The `samba-tool` executable.", "SAMBADC_SAMBA_TOOL_PATH", defaults.SambaTool),
			"netconfig_command": pathAttribute(
				"Command that applies the network configuration after the resolver list changes.", "SAMBADC_NETCONFIG_COMMAND", defaults.NetconfigCommand),
			"pam_config_command": pathAttribute(
				"The `pam-config` executable used to remove the `pam_krb5` module. Skipped when not installed.", "SAMBADC_PAM_CONFIG_COMMAND", defaults.PAMConfigCommand),
			"sysvol_root": pathAttribute(
				"Directory holding the `sysvol` share; `netlogon` is `<sysvol_root>/<realm>/scripts`.", "SAMBADC_SYSVOL_ROOT", defaults.SysvolRoot),
			"lock_file": pathAttribute(
				"Lock file that serializes provisioning runs on the host.", "SAMBADC_LOCK_FILE", defaults.LockFile),
		},
	}
}

func (p *SambaDCProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var data SambaDCProviderModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	ctx = p.configureLogging(ctx)

	paths := p.buildPaths(&data)

	tflog.Info(ctx, "Configuring Samba DC provider", map[string]any{
		"version":   p.version,
		"smb_conf":  paths.SMBConf,
		"krb5_conf": paths.Krb5Conf,
		"lock_file": paths.LockFile,
	})

	providerData := NewProviderData(paths)

	resp.DataSourceData = providerData
	resp.ResourceData = providerData
}

// configureLogging adds the provider fields to every log record.
func (p *SambaDCProvider) configureLogging(ctx context.Context) context.Context {
	ctx = tflog.SetField(ctx, "provider", "sambadc")
	ctx = tflog.SetField(ctx, "provider_version", p.version)
	return ctx
}

// buildPaths resolves each path from configuration, then environment, then default.
func (p *SambaDCProvider) buildPaths(data *SambaDCProviderModel) provision.Paths {
	paths := provision.Paths{
		SMBConf:          p.getStringValue(data.SMBConfPath, "SAMBADC_SMB_CONF_PATH"),
		Krb5Conf:         p.getStringValue(data.Krb5ConfPath, "SAMBADC_KRB5_CONF_PATH"),
		NetworkConfig:    p.getStringValue(data.NetworkConfigPath, "SAMBADC_NETWORK_CONFIG_PATH"),
		SambaTool:        p.getStringValue(data.SambaToolPath, "SAMBADC_SAMBA_TOOL_PATH"),
		NetconfigCommand: p.getStringValue(data.NetconfigCommand, "SAMBADC_NETCONFIG_COMMAND"),
		PAMConfigCommand: p.getStringValue(data.PAMConfigCommand, "SAMBADC_PAM_CONFIG_COMMAND"),
		SysvolRoot:       p.getStringValue(data.SysvolRoot, "SAMBADC_SYSVOL_ROOT"),
		LockFile:         p.getStringValue(data.LockFile, "SAMBADC_LOCK_FILE"),
	}
	return paths.WithDefaults()
}

func (p *SambaDCProvider) getStringValue(configValue types.String, envVar string) string {
	if !configValue.IsNull() && configValue.ValueString() != "" {
		return configValue.ValueString()
	}
	return os.Getenv(envVar)
}

func (p *SambaDCProvider) Resources(ctx context.Context) []func() resource.Resource {
	return []func() resource.Resource{
		NewDomainControllerResource,
	}
}

func (p *SambaDCProvider) EphemeralResources(ctx context.Context) []func() ephemeral.EphemeralResource {
	return []func() ephemeral.EphemeralResource{}
}

func (p *SambaDCProvider) DataSources(ctx context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		NewDomainControllerDataSource,
		NewLocalConfigDataSource,
	}
}

func (p *SambaDCProvider) Functions(ctx context.Context) []func() function.Function {
	return []func() function.Function{
		NewRealmToBaseDNFunction,
	}
}

func New(version string) func() provider.Provider {
	return func() provider.Provider {
		return &SambaDCProvider{
			version: version,
		}
	}
}
