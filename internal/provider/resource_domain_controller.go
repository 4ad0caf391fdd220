package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/booldefault"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/boolplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/listplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringdefault"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-sambadc/internal/logging"
	"github.com/isometry/terraform-provider-sambadc/internal/provider/planmodifiers"
	customtypes "github.com/isometry/terraform-provider-sambadc/internal/provider/types"
	"github.com/isometry/terraform-provider-sambadc/internal/provider/validators"
	"github.com/isometry/terraform-provider-sambadc/internal/provision"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ resource.Resource = &DomainControllerResource{}
var _ resource.ResourceWithConfigure = &DomainControllerResource{}
var _ resource.ResourceWithValidateConfig = &DomainControllerResource{}

func NewDomainControllerResource() resource.Resource {
	return &DomainControllerResource{}
}

// DomainControllerResource provisions the host as a Samba AD domain controller.
type DomainControllerResource struct {
	data *ProviderData
}

// DomainControllerResourceModel describes the resource data model.
type DomainControllerResourceModel struct {
	ID            types.String                 `tfsdk:"id"` // Run ID of the provisioning run (computed)
	Operation     types.String                 `tfsdk:"operation"`
	Realm         customtypes.RealmStringValue `tfsdk:"realm"`
	Workgroup     types.String                 `tfsdk:"workgroup"` // Optional+Computed from realm
	DNSManaged    types.Bool                   `tfsdk:"dns_managed"`
	ReadOnly      types.Bool                   `tfsdk:"read_only"`
	UseRFC2307    types.Bool                   `tfsdk:"use_rfc2307"`
	ForestLevel   types.String                 `tfsdk:"forest_level"`
	DNSBackend    types.String                 `tfsdk:"dns_backend"`
	AdminPassword types.String                 `tfsdk:"admin_password"`
	JoinUsername  types.String                 `tfsdk:"join_username"`
	JoinPassword  types.String                 `tfsdk:"join_password"`
	// Computed attributes
	Stages types.List `tfsdk:"stages"`
}

func (r *DomainControllerResource) Metadata(ctx context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_domain_controller"
}

func (r *DomainControllerResource) Schema(ctx context.Context, req resource.SchemaRequest, resp *resource.SchemaResponse) {
	defaults := provision.NewRequest(provision.OperationNewForest)

	resp.Schema = schema.Schema{
		MarkdownDescription: "Provisions the host as a Samba Active Directory domain controller, either as the first DC of a new forest or as an additional DC of an existing domain. " +
			"The run writes `smb.conf`, provisions or joins with `samba-tool`, writes `krb5.conf` and, when DNS is managed, points the resolver at the local DC.\n\n" +
			"Every attribute forces a new run. Destroying the resource only removes it from state: the host is not demoted.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The ID of the provisioning run that created the domain controller.",
				Computed:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"operation": schema.StringAttribute{
				MarkdownDescription: "`new_forest` provisions a new forest with this host as its first DC. `new_dc` joins an existing domain. Defaults to `new_forest`.",
				Optional:            true,
				Computed:            true,
				Default:             stringdefault.StaticString(string(provision.OperationNewForest)),
				Validators: []validator.String{
					stringvalidator.OneOf(string(provision.OperationNewForest), string(provision.OperationNewDC)),
				},
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
			},
			"realm": schema.StringAttribute{
				MarkdownDescription: "The Kerberos realm, which is also the DNS domain of the AD domain (e.g., `SAMDOM.EXAMPLE.COM`). Compared case-insensitively.",
				Required:            true,
				CustomType:          customtypes.RealmStringType{},
				Validators: []validator.String{
					validators.IsValidRealm(),
				},
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
			},
			"workgroup": schema.StringAttribute{
				MarkdownDescription: "The NetBIOS domain name, at most 15 characters. Defaults to the upper-cased first label of `realm`.",
				Optional:            true,
				Computed:            true,
				Validators: []validator.String{
					validators.IsValidWorkgroup(),
				},
				PlanModifiers: []planmodifier.String{
					planmodifiers.WorkgroupFromRealm(),
					stringplanmodifier.RequiresReplace(),
				},
			},
			"dns_managed": schema.BoolAttribute{
				MarkdownDescription: "Whether to register the local DC as the host's DNS resolver and apply the network configuration. Defaults to `true`.",
				Optional:            true,
				Computed:            true,
				Default:             booldefault.StaticBool(defaults.DNSManaged),
				PlanModifiers: []planmodifier.Bool{
					boolplanmodifier.RequiresReplace(),
				},
			},
			"read_only": schema.BoolAttribute{
				MarkdownDescription: "Join as a read-only domain controller (RODC). Only used with `new_dc`. Defaults to `false`.",
				Optional:            true,
				Computed:            true,
				Default:             booldefault.StaticBool(defaults.ReadOnlyDC),
				PlanModifiers: []planmodifier.Bool{
					boolplanmodifier.RequiresReplace(),
				},
			},
			"use_rfc2307": schema.BoolAttribute{
				MarkdownDescription: "Store POSIX attributes (RFC 2307) in the directory. Only used with `new_forest`. Defaults to `true`.",
				Optional:            true,
				Computed:            true,
				Default:             booldefault.StaticBool(defaults.UseRFC2307),
				PlanModifiers: []planmodifier.Bool{
					boolplanmodifier.RequiresReplace(),
				},
			},
			"forest_level": schema.StringAttribute{
				MarkdownDescription: "The domain and forest functional level. Only used with `new_forest`. Defaults to `" + defaults.ForestLevel + "`.",
				Optional:            true,
				Computed:            true,
				Default:             stringdefault.StaticString(defaults.ForestLevel),
				Validators: []validator.String{
					validators.CaseInsensitiveOneOf(provision.ForestLevels...),
				},
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
			},
			"dns_backend": schema.StringAttribute{
				MarkdownDescription: "The DNS backend of the DC. Defaults to `" + defaults.DNSBackend + "`.",
				Optional:            true,
				Computed:            true,
				Default:             stringdefault.StaticString(defaults.DNSBackend),
				Validators: []validator.String{
					validators.CaseInsensitiveOneOf(provision.DNSBackends...),
				},
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
			},
			"admin_password": schema.StringAttribute{
				MarkdownDescription: "Password of the domain Administrator. Required with `new_forest`.",
				Optional:            true,
				Sensitive:           true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
			},
			"join_username": schema.StringAttribute{
				MarkdownDescription: "Account used to join the domain. Required with `new_dc`.",
				Optional:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
			},
			"join_password": schema.StringAttribute{
				MarkdownDescription: "Password of `join_username`.",
				Optional:            true,
				Sensitive:           true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
			},
			"stages": schema.ListAttribute{
				MarkdownDescription: "The stages executed by the provisioning run, in order.",
				Computed:            true,
				ElementType:         types.StringType,
				PlanModifiers: []planmodifier.List{
					listplanmodifier.UseStateForUnknown(),
				},
			},
		},
	}
}

func (r *DomainControllerResource) Configure(ctx context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	data, diags := providerDataFrom(req.ProviderData, "Resource")
	resp.Diagnostics.Append(diags...)
	if data != nil {
		r.data = data
	}
}

func (r *DomainControllerResource) ValidateConfig(ctx context.Context, req resource.ValidateConfigRequest, resp *resource.ValidateConfigResponse) {
	var data DomainControllerResourceModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(validateOperationAttributes(&data)...)
}

// validateOperationAttributes checks the attributes each operation requires.
// Unknown values are accepted.
func validateOperationAttributes(data *DomainControllerResourceModel) diag.Diagnostics {
	var diags diag.Diagnostics

	if data.Operation.IsUnknown() {
		return diags
	}

	operation := provision.OperationNewForest
	if !data.Operation.IsNull() {
		operation = provision.Operation(data.Operation.ValueString())
	}

	switch operation {
	case provision.OperationNewForest:
		if data.AdminPassword.IsNull() || (!data.AdminPassword.IsUnknown() && data.AdminPassword.ValueString() == "") {
			diags.AddAttributeError(
				path.Root("admin_password"),
				"Missing Administrator Password",
				"admin_password is required when operation is \"new_forest\".",
			)
		}
	case provision.OperationNewDC:
		if data.JoinUsername.IsNull() || (!data.JoinUsername.IsUnknown() && data.JoinUsername.ValueString() == "") {
			diags.AddAttributeError(
				path.Root("join_username"),
				"Missing Join Username",
				"join_username is required when operation is \"new_dc\".",
			)
		}
	}

	return diags
}

// toRequest converts the model into a provisioning request.
func (m *DomainControllerResourceModel) toRequest() provision.Request {
	req := provision.NewRequest(provision.Operation(m.Operation.ValueString()))

	if !m.DNSManaged.IsNull() && !m.DNSManaged.IsUnknown() {
		req.DNSManaged = m.DNSManaged.ValueBool()
	}
	if !m.ReadOnly.IsNull() && !m.ReadOnly.IsUnknown() {
		req.ReadOnlyDC = m.ReadOnly.ValueBool()
	}
	if !m.UseRFC2307.IsNull() && !m.UseRFC2307.IsUnknown() {
		req.UseRFC2307 = m.UseRFC2307.ValueBool()
	}
	if level := m.ForestLevel.ValueString(); level != "" {
		req.ForestLevel = strings.ToUpper(strings.TrimSpace(level))
	}
	if backend := m.DNSBackend.ValueString(); backend != "" {
		req.DNSBackend = strings.ToUpper(strings.TrimSpace(backend))
	}

	req.AdminPassword = m.AdminPassword.ValueString()
	req.Credentials = provision.Credentials{
		Username: m.JoinUsername.ValueString(),
		Password: m.JoinPassword.ValueString(),
	}
	return req
}

func (r *DomainControllerResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var data DomainControllerResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if r.data == nil {
		resp.Diagnostics.AddError(
			"Unconfigured Provider",
			"The provider has not been configured. Please report this issue to the provider developers.",
		)
		return
	}

	request := data.toRequest()
	if err := request.Validate(); err != nil {
		resp.Diagnostics.AddError("Invalid Provisioning Request", err.Error())
		return
	}

	realm := customtypes.NormalizeRealm(data.Realm.ValueString())
	workgroup := strings.ToUpper(data.Workgroup.ValueString())

	tflog.Info(ctx, "Provisioning Samba domain controller", logging.SanitizeFields(map[string]any{
		"realm":     realm,
		"workgroup": workgroup,
		"operation": string(request.Operation),
	}))

	outcome, err := r.provision(ctx, realm, workgroup, request)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Starting Provisioning Run",
			fmt.Sprintf("Could not start provisioning run: %s", err.Error()),
		)
		return
	}

	resp.Diagnostics.Append(outcomeDiagnostics(request, outcome)...)
	if !outcome.Success {
		return
	}

	data.ID = types.StringValue(outcome.RunID)

	stages, diags := stagesValue(ctx, outcome.Executed)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}
	data.Stages = stages

	tflog.Info(ctx, "Provisioned Samba domain controller", map[string]any{
		"run_id": outcome.RunID,
		"stages": len(outcome.Executed),
	})

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// provision serializes the run on the host lock, seeds smb.conf and runs the
// stage plan.
func (r *DomainControllerResource) provision(ctx context.Context, realm, workgroup string, request provision.Request) (provision.Outcome, error) {
	lock := provision.NewHostLock(r.data.Paths.LockFile)
	if err := lock.Acquire(); err != nil {
		return provision.Outcome{}, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			tflog.Warn(ctx, "Failed to release host lock", map[string]any{
				"path":  lock.Path(),
				"error": err.Error(),
			})
		}
	}()

	config, err := r.data.LoadServiceConfig()
	if err != nil {
		return provision.Outcome{}, err
	}
	config.Seed(realm, workgroup)

	if request.Operation == provision.OperationNewDC {
		r.preflight(ctx, realm)
	}

	logger := provisionLogger(ctx)
	deps := provision.NewDependencies(config, r.data.Fs, r.data.Paths, r.data.runner(logger), logger)
	deps.Progress = provision.NewLogProgress(logger)
	deps.Reporter = &provision.Messages{}

	return provision.NewOrchestrator(deps).Execute(ctx, request), nil
}

// preflight logs a warning when the domain to join publishes no domain
// controllers. The join itself decides whether that is fatal.
func (r *DomainControllerResource) preflight(ctx context.Context, realm string) {
	servers, err := r.data.Discovery(ldapLogger(ctx)).Lookup(ctx, realm)
	switch {
	case err != nil:
		tflog.Warn(ctx, "Domain controller discovery failed", map[string]any{
			"realm": realm,
			"error": err.Error(),
		})
	case len(servers) == 0:
		tflog.Warn(ctx, "No domain controllers published for the domain to join", map[string]any{
			"realm": realm,
		})
	default:
		tflog.Debug(ctx, "Discovered domain controllers", map[string]any{
			"realm":   realm,
			"servers": len(servers),
		})
	}
}

// outcomeDiagnostics turns the stage errors of a run into diagnostics. A
// failed join does not fail the run and is reported as a warning.
func outcomeDiagnostics(request provision.Request, outcome provision.Outcome) diag.Diagnostics {
	var diags diag.Diagnostics

	for _, stageErr := range outcome.Errors {
		detail := stageErr.Message
		if stageErr.Detail != "" {
			detail += "\n\n" + stageErr.Detail
		}

		if outcome.Success && stageErr.Stage == provision.StageProvisionOrJoin && request.Operation == provision.OperationNewDC {
			diags.AddWarning("Domain Join Failed", detail+"\n\nThe remaining stages were still applied.")
			continue
		}

		if errors.Is(stageErr, context.Canceled) || errors.Is(stageErr, context.DeadlineExceeded) {
			diags.AddError("Provisioning Cancelled", detail)
			continue
		}

		diags.AddError(fmt.Sprintf("Provisioning Failed at Stage %q", stageErr.Stage), detail)
	}

	if !outcome.Success && !diags.HasError() {
		diags.AddError("Provisioning Failed", "The provisioning run did not complete.")
	}

	return diags
}

func stagesValue(ctx context.Context, executed []provision.StageID) (types.List, diag.Diagnostics) {
	ids := make([]string, len(executed))
	for i, id := range executed {
		ids[i] = string(id)
	}
	return types.ListValueFrom(ctx, types.StringType, ids)
}

func (r *DomainControllerResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	var data DomainControllerResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if r.data == nil {
		return
	}

	config, err := r.data.LoadServiceConfig()
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Reading Samba Configuration",
			fmt.Sprintf("Could not read %s: %s", r.data.Paths.SMBConf, err.Error()),
		)
		return
	}

	if !config.IsDomainController() {
		tflog.Info(ctx, "Host is no longer an AD domain controller, removing from state", map[string]any{
			"smb_conf": config.Path(),
		})
		resp.State.RemoveResource(ctx)
		return
	}

	refreshFromServiceConfig(&data, config.Realm(), config.Workgroup())

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// refreshFromServiceConfig records realm or workgroup changes made outside
// Terraform. Case differences are not changes.
func refreshFromServiceConfig(data *DomainControllerResourceModel, realm, workgroup string) {
	if realm != "" && customtypes.NormalizeRealm(realm) != customtypes.NormalizeRealm(data.Realm.ValueString()) {
		data.Realm = customtypes.RealmString(realm)
	}
	if workgroup != "" && !strings.EqualFold(workgroup, data.Workgroup.ValueString()) {
		data.Workgroup = types.StringValue(workgroup)
	}
}

func (r *DomainControllerResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	// Every configurable attribute requires replacement, so only computed
	// values can reach here.
	var data DomainControllerResourceModel

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *DomainControllerResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	var data DomainControllerResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	tflog.Warn(ctx, "Removing domain controller from state; the host is not demoted", map[string]any{
		"realm":  data.Realm.ValueString(),
		"run_id": data.ID.ValueString(),
	})
}
