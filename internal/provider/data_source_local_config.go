package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-sambadc/internal/netconfig"
	"github.com/isometry/terraform-provider-sambadc/internal/smbconf"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &LocalConfigDataSource{}
var _ datasource.DataSourceWithConfigure = &LocalConfigDataSource{}

func NewLocalConfigDataSource() datasource.DataSource {
	return &LocalConfigDataSource{}
}

// LocalConfigDataSource reports the Samba and resolver settings on the host.
type LocalConfigDataSource struct {
	data *ProviderData
}

// LocalConfigDataSourceModel describes the data source data model.
type LocalConfigDataSourceModel struct {
	ID                 types.String `tfsdk:"id"` // smb.conf path
	Realm              types.String `tfsdk:"realm"`
	Workgroup          types.String `tfsdk:"workgroup"`
	ServerRole         types.String `tfsdk:"server_role"`
	Include            types.String `tfsdk:"include"`
	IsDomainController types.Bool   `tfsdk:"is_domain_controller"`
	NetlogonPath       types.String `tfsdk:"netlogon_path"`
	SysvolPath         types.String `tfsdk:"sysvol_path"`
	Shares             types.List   `tfsdk:"shares"`
	DNSStaticServers   types.List   `tfsdk:"dns_static_servers"`
}

func (d *LocalConfigDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_local_config"
}

func (d *LocalConfigDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Reads the Samba service configuration and the static DNS resolver list as they currently are on the host. " +
			"Unset values are null.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "Path of the `smb.conf` that was read.",
				Computed:            true,
			},
			"realm": schema.StringAttribute{
				MarkdownDescription: "The `realm` parameter of the `[global]` section.",
				Computed:            true,
			},
			"workgroup": schema.StringAttribute{
				MarkdownDescription: "The `workgroup` parameter of the `[global]` section.",
				Computed:            true,
			},
			"server_role": schema.StringAttribute{
				MarkdownDescription: "The `server role` parameter of the `[global]` section.",
				Computed:            true,
			},
			"include": schema.StringAttribute{
				MarkdownDescription: "The `include` parameter of the `[global]` section.",
				Computed:            true,
			},
			"is_domain_controller": schema.BoolAttribute{
				MarkdownDescription: "Whether the configuration describes an Active Directory domain controller.",
				Computed:            true,
			},
			"netlogon_path": schema.StringAttribute{
				MarkdownDescription: "Path of the `netlogon` share.",
				Computed:            true,
			},
			"sysvol_path": schema.StringAttribute{
				MarkdownDescription: "Path of the `sysvol` share.",
				Computed:            true,
			},
			"shares": schema.ListAttribute{
				MarkdownDescription: "Names of the shares defined in `smb.conf`, in file order.",
				Computed:            true,
				ElementType:         types.StringType,
			},
			"dns_static_servers": schema.ListAttribute{
				MarkdownDescription: "The static DNS servers of the network configuration, in resolver order.",
				Computed:            true,
				ElementType:         types.StringType,
			},
		},
	}
}

func (d *LocalConfigDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	data, diags := providerDataFrom(req.ProviderData, "Data Source")
	resp.Diagnostics.Append(diags...)
	if data != nil {
		d.data = data
	}
}

func (d *LocalConfigDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data LocalConfigDataSourceModel

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

	config, err := d.data.LoadServiceConfig()
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Reading Samba Configuration",
			fmt.Sprintf("Could not read %s: %s", d.data.Paths.SMBConf, err.Error()),
		)
		return
	}

	servers, err := d.data.NetworkStore().Get(netconfig.KeyDNSStaticServers)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Reading Network Configuration",
			err.Error(),
		)
		return
	}

	resp.Diagnostics.Append(mapLocalConfig(ctx, config, servers, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	tflog.Debug(ctx, "Read local configuration", map[string]any{
		"smb_conf":             config.Path(),
		"is_domain_controller": data.IsDomainController.ValueBool(),
	})

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func mapLocalConfig(ctx context.Context, config *smbconf.Config, servers string, data *LocalConfigDataSourceModel) diag.Diagnostics {
	var diags diag.Diagnostics

	data.ID = types.StringValue(config.Path())
	data.Realm = optionalString(config.Realm())
	data.Workgroup = optionalString(config.Workgroup())
	data.ServerRole = optionalString(config.GlobalGet(smbconf.KeyServerRole, ""))
	data.Include = optionalString(config.GlobalGet(smbconf.KeyInclude, ""))
	data.IsDomainController = types.BoolValue(config.IsDomainController())

	netlogon, err := sharePath(config, "netlogon")
	if err != nil {
		diags.AddError("Error Reading Samba Configuration", err.Error())
		return diags
	}
	data.NetlogonPath = netlogon

	sysvol, err := sharePath(config, "sysvol")
	if err != nil {
		diags.AddError("Error Reading Samba Configuration", err.Error())
		return diags
	}
	data.SysvolPath = sysvol

	shares, sharesDiags := types.ListValueFrom(ctx, types.StringType, config.Shares())
	diags.Append(sharesDiags...)
	data.Shares = shares

	list, listDiags := types.ListValueFrom(ctx, types.StringType, strings.Fields(servers))
	diags.Append(listDiags...)
	data.DNSStaticServers = list

	return diags
}

func sharePath(config *smbconf.Config, name string) (types.String, error) {
	share, err := config.Share(name)
	if errors.Is(err, smbconf.ErrNotFound) {
		return types.StringNull(), nil
	}
	if err != nil {
		return types.StringNull(), err
	}
	return optionalString(share["path"]), nil
}

func optionalString(s string) types.String {
	if s == "" {
		return types.StringNull()
	}
	return types.StringValue(s)
}
