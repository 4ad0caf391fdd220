package provider

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/hashicorp/terraform-plugin-framework-validators/datasourcevalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-sambadc/internal/ldap"
	"github.com/isometry/terraform-provider-sambadc/internal/logging"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &DomainControllerDataSource{}
var _ datasource.DataSourceWithConfigure = &DomainControllerDataSource{}
var _ datasource.DataSourceWithConfigValidators = &DomainControllerDataSource{}

var ldapURLRegex = regexp.MustCompile(`^ldaps?://`)

func NewDomainControllerDataSource() datasource.DataSource {
	return &DomainControllerDataSource{}
}

// DomainControllerDataSource verifies that a domain controller answers LDAP.
type DomainControllerDataSource struct {
	data *ProviderData
}

// DomainControllerDataSourceModel describes the data source data model.
type DomainControllerDataSourceModel struct {
	// Connection
	URL                   types.String `tfsdk:"url"`
	Domain                types.String `tfsdk:"domain"`
	StartTLS              types.Bool   `tfsdk:"start_tls"`
	TLSInsecureSkipVerify types.Bool   `tfsdk:"tls_insecure_skip_verify"`
	TimeoutSeconds        types.Int64  `tfsdk:"timeout_seconds"`

	// Authentication
	Username       types.String `tfsdk:"username"`
	Password       types.String `tfsdk:"password"`
	KerberosRealm  types.String `tfsdk:"kerberos_realm"`
	KerberosKeytab types.String `tfsdk:"kerberos_keytab"`
	KerberosCCache types.String `tfsdk:"kerberos_ccache"`
	KerberosSPN    types.String `tfsdk:"kerberos_spn"`

	// Computed attributes
	ID                            types.String `tfsdk:"id"`
	Server                        types.String `tfsdk:"server"`
	DNSHostName                   types.String `tfsdk:"dns_host_name"`
	ServerName                    types.String `tfsdk:"server_name"`
	DefaultNamingContext          types.String `tfsdk:"default_naming_context"`
	DomainSID                     types.String `tfsdk:"domain_sid"`
	DomainFunctionality           types.String `tfsdk:"domain_functionality"`
	ForestFunctionality           types.String `tfsdk:"forest_functionality"`
	DomainControllerFunctionality types.String `tfsdk:"domain_controller_functionality"`
	IsSynchronized                types.Bool   `tfsdk:"is_synchronized"`
}

func (d *DomainControllerDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_domain_controller"
}

func (d *DomainControllerDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Connects to a domain controller over LDAP and reads its root DSE and domain SID. " +
			"Use it after provisioning to check that the new DC serves the directory, or before a join to check the existing domain. " +
			"Without `url`, the servers of `domain` are discovered through DNS SRV records.",

		Attributes: map[string]schema.Attribute{
			"url": schema.StringAttribute{
				MarkdownDescription: "LDAP URL of a specific server (e.g., `ldaps://dc1.samdom.example.com`). Takes precedence over `domain`.",
				Optional:            true,
				Validators: []validator.String{
					stringvalidator.RegexMatches(ldapURLRegex, "must be an ldap:// or ldaps:// URL"),
				},
			},
			"domain": schema.StringAttribute{
				MarkdownDescription: "DNS domain whose domain controllers are discovered through `_ldaps._tcp`, `_ldap._tcp` and `_gc._tcp` SRV records.",
				Optional:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"start_tls": schema.BoolAttribute{
				MarkdownDescription: "Upgrade plain `ldap://` connections with StartTLS before binding.",
				Optional:            true,
			},
			"tls_insecure_skip_verify": schema.BoolAttribute{
				MarkdownDescription: "Skip verification of the server certificate. A freshly provisioned DC presents a self-signed certificate.",
				Optional:            true,
			},
			"timeout_seconds": schema.Int64Attribute{
				MarkdownDescription: "Connection and search timeout in seconds. Defaults to `30`.",
				Optional:            true,
				Validators: []validator.Int64{
					int64validator.Between(1, 300),
				},
			},
			"username": schema.StringAttribute{
				MarkdownDescription: "Bind user (e.g., `Administrator@SAMDOM.EXAMPLE.COM`). Without a username the bind is anonymous and `domain_sid` is null.",
				Optional:            true,
			},
			"password": schema.StringAttribute{
				MarkdownDescription: "Bind password.",
				Optional:            true,
				Sensitive:           true,
			},
			"kerberos_realm": schema.StringAttribute{
				MarkdownDescription: "Selects a GSSAPI bind in this realm. The Kerberos configuration is the provider's `krb5_conf_path`.",
				Optional:            true,
			},
			"kerberos_keytab": schema.StringAttribute{
				MarkdownDescription: "Keytab holding the key of `username`.",
				Optional:            true,
			},
			"kerberos_ccache": schema.StringAttribute{
				MarkdownDescription: "Credential cache to authenticate from.",
				Optional:            true,
			},
			"kerberos_spn": schema.StringAttribute{
				MarkdownDescription: "Service principal of the server. Defaults to `ldap/<host>`.",
				Optional:            true,
			},
			"id": schema.StringAttribute{
				MarkdownDescription: "The default naming context of the domain.",
				Computed:            true,
			},
			"server": schema.StringAttribute{
				MarkdownDescription: "URL of the server that answered.",
				Computed:            true,
			},
			"dns_host_name": schema.StringAttribute{
				MarkdownDescription: "DNS name of the server.",
				Computed:            true,
			},
			"server_name": schema.StringAttribute{
				MarkdownDescription: "DN of the server object in the configuration partition.",
				Computed:            true,
			},
			"default_naming_context": schema.StringAttribute{
				MarkdownDescription: "DN of the domain (e.g., `DC=samdom,DC=example,DC=com`).",
				Computed:            true,
			},
			"domain_sid": schema.StringAttribute{
				MarkdownDescription: "SID of the domain. Null for anonymous binds.",
				Computed:            true,
			},
			"domain_functionality": schema.StringAttribute{
				MarkdownDescription: "Domain functional level (e.g., `2008_R2`).",
				Computed:            true,
			},
			"forest_functionality": schema.StringAttribute{
				MarkdownDescription: "Forest functional level.",
				Computed:            true,
			},
			"domain_controller_functionality": schema.StringAttribute{
				MarkdownDescription: "Functional level of the server itself.",
				Computed:            true,
			},
			"is_synchronized": schema.BoolAttribute{
				MarkdownDescription: "Whether the server has completed its initial replication.",
				Computed:            true,
			},
		},
	}
}

func (d *DomainControllerDataSource) ConfigValidators(ctx context.Context) []datasource.ConfigValidator {
	return []datasource.ConfigValidator{
		datasourcevalidator.AtLeastOneOf(
			path.MatchRoot("url"),
			path.MatchRoot("domain"),
		),
		datasourcevalidator.Conflicting(
			path.MatchRoot("kerberos_keytab"),
			path.MatchRoot("kerberos_ccache"),
		),
	}
}

func (d *DomainControllerDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	data, diags := providerDataFrom(req.ProviderData, "Data Source")
	resp.Diagnostics.Append(diags...)
	if data != nil {
		d.data = data
	}
}

func (d *DomainControllerDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data DomainControllerDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if d.data == nil {
		resp.Diagnostics.AddError(
			"Unconfigured Provider",
			"The provider has not been configured. Please report this issue to the provider developers.",
		)
		return
	}

	cfg := data.toConfig(d.data.Paths.Krb5Conf)

	tflog.Debug(ctx, "Verifying domain controller", logging.SanitizeFields(cfg.LogFields()))

	info, err := d.data.Verifier(ldapLogger(ctx)).Verify(ctx, cfg)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Verifying Domain Controller",
			fmt.Sprintf("Could not verify domain controller (%s): %s", ldap.GetErrorCategory(err), err.Error()),
		)
		return
	}

	data.fromInfo(info)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (m *DomainControllerDataSourceModel) toConfig(krb5conf string) *ldap.Config {
	cfg := &ldap.Config{
		URL:                   m.URL.ValueString(),
		Domain:                m.Domain.ValueString(),
		StartTLS:              m.StartTLS.ValueBool(),
		TLSInsecureSkipVerify: m.TLSInsecureSkipVerify.ValueBool(),
		Username:              m.Username.ValueString(),
		Password:              m.Password.ValueString(),
		KerberosRealm:         m.KerberosRealm.ValueString(),
		KerberosConfig:        krb5conf,
		KerberosKeytab:        m.KerberosKeytab.ValueString(),
		KerberosCCache:        m.KerberosCCache.ValueString(),
		KerberosSPN:           m.KerberosSPN.ValueString(),
	}
	if !m.TimeoutSeconds.IsNull() {
		cfg.Timeout = time.Duration(m.TimeoutSeconds.ValueInt64()) * time.Second
	}
	return cfg.WithDefaults()
}

func (m *DomainControllerDataSourceModel) fromInfo(info *ldap.DomainControllerInfo) {
	m.ID = types.StringValue(info.DefaultNamingContext)
	m.Server = types.StringValue(info.Server)
	m.DNSHostName = optionalString(info.DNSHostName)
	m.ServerName = optionalString(info.ServerName)
	m.DefaultNamingContext = types.StringValue(info.DefaultNamingContext)
	m.DomainSID = optionalString(info.DomainSID)
	m.DomainFunctionality = optionalString(info.DomainFunctionality)
	m.ForestFunctionality = optionalString(info.ForestFunctionality)
	m.DomainControllerFunctionality = optionalString(info.DomainControllerFunctionality)
	m.IsSynchronized = types.BoolValue(info.IsSynchronized)
}
