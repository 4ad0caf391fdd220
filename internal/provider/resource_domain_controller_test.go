package provider

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/tfsdk"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customtypes "github.com/isometry/terraform-provider-sambadc/internal/provider/types"
	"github.com/isometry/terraform-provider-sambadc/internal/provision"
	"github.com/isometry/terraform-provider-sambadc/internal/smbconf"
)

type fakeRunner struct {
	calls []string
	fail  map[string]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, strings.Join(append([]string{name}, args...), " "))
	if out, ok := f.fail[name]; ok {
		return out, errors.New("exit status 1")
	}
	return "", nil
}

type fakeResolver struct {
	records map[string][]*net.SRV
	queried []string
}

func (r *fakeResolver) LookupSRV(_ context.Context, _, _, name string) (string, []*net.SRV, error) {
	r.queried = append(r.queried, name)
	if records, ok := r.records[name]; ok {
		return name, records, nil
	}
	return "", nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

func testProviderData(t *testing.T, runner *fakeRunner) *ProviderData {
	t.Helper()
	data := NewProviderData(provision.Paths{
		LockFile: filepath.Join(t.TempDir(), "sambadc.lock"),
	})
	data.Fs = afero.NewMemMapFs()
	data.Runner = runner
	data.Resolver = &fakeResolver{}
	return data
}

func newForestModel() DomainControllerResourceModel {
	return DomainControllerResourceModel{
		ID:            types.StringUnknown(),
		Operation:     types.StringValue("new_forest"),
		Realm:         customtypes.RealmString("samdom.example.com"),
		Workgroup:     types.StringValue("SAMDOM"),
		DNSManaged:    types.BoolValue(true),
		ReadOnly:      types.BoolValue(false),
		UseRFC2307:    types.BoolValue(true),
		ForestLevel:   types.StringValue("2008_R2"),
		DNSBackend:    types.StringValue("SAMBA_INTERNAL"),
		AdminPassword: types.StringValue("Passw0rd!"),
		JoinUsername:  types.StringNull(),
		JoinPassword:  types.StringNull(),
		Stages:        types.ListUnknown(types.StringType),
	}
}

func resourceSchema(t *testing.T, r resource.Resource) resource.SchemaResponse {
	t.Helper()
	var resp resource.SchemaResponse
	r.Schema(context.Background(), resource.SchemaRequest{}, &resp)
	require.False(t, resp.Diagnostics.HasError(), "schema: %v", resp.Diagnostics)
	return resp
}

// runCreate drives Create through the framework types.
func runCreate(t *testing.T, r *DomainControllerResource, model DomainControllerResourceModel) (*resource.CreateResponse, DomainControllerResourceModel) {
	t.Helper()
	ctx := context.Background()
	s := resourceSchema(t, r).Schema
	nullObject := tftypes.NewValue(s.Type().TerraformType(ctx), nil)

	plan := tfsdk.Plan{Schema: s, Raw: nullObject}
	require.False(t, plan.Set(ctx, &model).HasError())

	resp := &resource.CreateResponse{State: tfsdk.State{Schema: s, Raw: nullObject}}
	r.Create(ctx, resource.CreateRequest{Plan: plan}, resp)

	var state DomainControllerResourceModel
	if !resp.Diagnostics.HasError() {
		require.False(t, resp.State.Get(ctx, &state).HasError())
	}
	return resp, state
}

func TestDomainControllerResourceCreate(t *testing.T) {
	t.Run("new forest with managed DNS", func(t *testing.T) {
		runner := &fakeRunner{}
		data := testProviderData(t, runner)
		r := &DomainControllerResource{data: data}

		resp, state := runCreate(t, r, newForestModel())
		require.False(t, resp.Diagnostics.HasError(), "create: %v", resp.Diagnostics)

		assert.NotEmpty(t, state.ID.ValueString())

		var stages []string
		require.False(t, state.Stages.ElementsAs(context.Background(), &stages, false).HasError())
		assert.Equal(t, []string{
			"write-local-settings", "provision-or-join", "write-kerberos", "write-dns", "update-network",
		}, stages)

		config, err := smbconf.Load(data.Fs, data.Paths.SMBConf)
		require.NoError(t, err)
		assert.Equal(t, "SAMDOM.EXAMPLE.COM", config.Realm())
		assert.Equal(t, "SAMDOM", config.Workgroup())
		assert.True(t, config.IsDomainController())

		krb5, err := afero.ReadFile(data.Fs, data.Paths.Krb5Conf)
		require.NoError(t, err)
		assert.Contains(t, string(krb5), "default_realm = SAMDOM.EXAMPLE.COM")

		require.NotEmpty(t, runner.calls)
		assert.True(t, strings.HasPrefix(runner.calls[0], "samba-tool domain provision"), runner.calls[0])
		assert.Contains(t, runner.calls, "/sbin/netconfig update")
	})

	t.Run("provision failure aborts", func(t *testing.T) {
		runner := &fakeRunner{fail: map[string]string{"samba-tool": "ERROR: realm already provisioned"}}
		r := &DomainControllerResource{data: testProviderData(t, runner)}

		resp, _ := runCreate(t, r, newForestModel())
		require.True(t, resp.Diagnostics.HasError())

		detail := resp.Diagnostics.Errors()[0].Detail()
		assert.Contains(t, detail, "Error provisioning database")
		assert.Contains(t, detail, "realm already provisioned")
		assert.Len(t, runner.calls, 1)
	})

	t.Run("join failure is a warning", func(t *testing.T) {
		runner := &fakeRunner{fail: map[string]string{"samba-tool": "Failed to bind"}}
		data := testProviderData(t, runner)
		resolver := &fakeResolver{}
		data.Resolver = resolver
		r := &DomainControllerResource{data: data}

		model := newForestModel()
		model.Operation = types.StringValue("new_dc")
		model.AdminPassword = types.StringNull()
		model.JoinUsername = types.StringValue("Administrator")
		model.JoinPassword = types.StringValue("secret")
		model.DNSManaged = types.BoolValue(false)

		resp, state := runCreate(t, r, model)
		require.False(t, resp.Diagnostics.HasError(), "create: %v", resp.Diagnostics)
		require.Len(t, resp.Diagnostics.Warnings(), 1)
		assert.Equal(t, "Domain Join Failed", resp.Diagnostics.Warnings()[0].Summary())

		assert.Equal(t, 3, len(state.Stages.Elements()))
		assert.NotEmpty(t, resolver.queried, "preflight discovery should run before a join")
	})

	t.Run("host lock held", func(t *testing.T) {
		data := testProviderData(t, &fakeRunner{})
		held := provision.NewHostLock(data.Paths.LockFile)
		require.NoError(t, held.Acquire())
		t.Cleanup(func() { _ = held.Release() })

		r := &DomainControllerResource{data: data}
		resp, _ := runCreate(t, r, newForestModel())
		require.True(t, resp.Diagnostics.HasError())
		assert.Contains(t, resp.Diagnostics.Errors()[0].Detail(), "another provisioning run is in progress")
	})

	t.Run("unconfigured provider", func(t *testing.T) {
		resp, _ := runCreate(t, &DomainControllerResource{}, newForestModel())
		require.True(t, resp.Diagnostics.HasError())
		assert.Equal(t, "Unconfigured Provider", resp.Diagnostics.Errors()[0].Summary())
	})
}

func TestDomainControllerResourceRead(t *testing.T) {
	ctx := context.Background()

	read := func(t *testing.T, data *ProviderData, model DomainControllerResourceModel) *resource.ReadResponse {
		t.Helper()
		r := &DomainControllerResource{data: data}
		s := resourceSchema(t, r).Schema

		state := tfsdk.State{Schema: s, Raw: tftypes.NewValue(s.Type().TerraformType(ctx), nil)}
		require.False(t, state.Set(ctx, &model).HasError())

		resp := &resource.ReadResponse{State: state}
		r.Read(ctx, resource.ReadRequest{State: state}, resp)
		return resp
	}

	model := newForestModel()
	model.ID = types.StringValue("run-1")
	model.Stages = types.ListNull(types.StringType)

	t.Run("still a domain controller", func(t *testing.T) {
		data := testProviderData(t, &fakeRunner{})
		require.NoError(t, afero.WriteFile(data.Fs, data.Paths.SMBConf, []byte(
			"[global]\n\trealm = SAMDOM.EXAMPLE.COM\n\tworkgroup = SAMDOM\n\tserver role = active directory domain controller\n"), 0o644))

		resp := read(t, data, model)
		require.False(t, resp.Diagnostics.HasError(), "read: %v", resp.Diagnostics)
		require.False(t, resp.State.Raw.IsNull())

		var got DomainControllerResourceModel
		require.False(t, resp.State.Get(ctx, &got).HasError())
		assert.Equal(t, "samdom.example.com", got.Realm.ValueString(), "case-only differences keep the configured value")
	})

	t.Run("no longer a domain controller", func(t *testing.T) {
		data := testProviderData(t, &fakeRunner{})
		require.NoError(t, afero.WriteFile(data.Fs, data.Paths.SMBConf, []byte(
			"[global]\n\tworkgroup = WORKGROUP\n\tserver role = standalone server\n"), 0o644))

		resp := read(t, data, model)
		require.False(t, resp.Diagnostics.HasError())
		assert.True(t, resp.State.Raw.IsNull())
	})
}

func TestValidateOperationAttributes(t *testing.T) {
	tests := map[string]struct {
		mutate   func(*DomainControllerResourceModel)
		wantPath string
	}{
		"new forest with password": {
			mutate: func(*DomainControllerResourceModel) {},
		},
		"new forest without password": {
			mutate:   func(m *DomainControllerResourceModel) { m.AdminPassword = types.StringNull() },
			wantPath: "admin_password",
		},
		"default operation without password": {
			mutate: func(m *DomainControllerResourceModel) {
				m.Operation = types.StringNull()
				m.AdminPassword = types.StringValue("")
			},
			wantPath: "admin_password",
		},
		"password not yet known": {
			mutate: func(m *DomainControllerResourceModel) { m.AdminPassword = types.StringUnknown() },
		},
		"new dc without username": {
			mutate: func(m *DomainControllerResourceModel) {
				m.Operation = types.StringValue("new_dc")
				m.AdminPassword = types.StringNull()
			},
			wantPath: "join_username",
		},
		"new dc with username": {
			mutate: func(m *DomainControllerResourceModel) {
				m.Operation = types.StringValue("new_dc")
				m.JoinUsername = types.StringValue("Administrator")
			},
		},
		"operation unknown": {
			mutate: func(m *DomainControllerResourceModel) {
				m.Operation = types.StringUnknown()
				m.AdminPassword = types.StringNull()
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			model := newForestModel()
			tt.mutate(&model)

			diags := validateOperationAttributes(&model)
			if tt.wantPath == "" {
				assert.False(t, diags.HasError(), "%v", diags)
				return
			}
			require.Len(t, diags.Errors(), 1)
			withPath, ok := diags.Errors()[0].(diag.DiagnosticWithPath)
			require.True(t, ok)
			assert.Equal(t, tt.wantPath, withPath.Path().String())
		})
	}
}

func TestModelToRequest(t *testing.T) {
	model := newForestModel()
	model.ForestLevel = types.StringValue(" 2012_r2 ")
	model.DNSBackend = types.StringValue("bind9_dlz")
	model.DNSManaged = types.BoolValue(false)

	req := model.toRequest()

	assert.Equal(t, provision.OperationNewForest, req.Operation)
	assert.Equal(t, "2012_R2", req.ForestLevel)
	assert.Equal(t, "BIND9_DLZ", req.DNSBackend)
	assert.False(t, req.DNSManaged)
	assert.True(t, req.UseRFC2307)
	assert.Equal(t, "Passw0rd!", req.AdminPassword)
	assert.NoError(t, req.Validate())

	model.Operation = types.StringValue("new_dc")
	model.ReadOnly = types.BoolValue(true)
	model.JoinUsername = types.StringValue("Administrator")
	model.JoinPassword = types.StringValue("secret")
	req = model.toRequest()

	assert.Equal(t, "RODC", req.JoinRole())
	assert.Equal(t, provision.Credentials{Username: "Administrator", Password: "secret"}, req.Credentials)
}

func TestOutcomeDiagnostics(t *testing.T) {
	joinErr := &provision.StageError{Stage: provision.StageProvisionOrJoin, Message: "Error joining to domain. Check logs for details.", Detail: "Failed to bind"}
	persistErr := &provision.StageError{Stage: provision.StageWriteKerberos, Message: "Cannot write settings to /etc/krb5.conf."}

	t.Run("success", func(t *testing.T) {
		diags := outcomeDiagnostics(provision.NewRequest(provision.OperationNewForest), provision.Outcome{Success: true})
		assert.Empty(t, diags)
	})

	t.Run("join failure on a completed run", func(t *testing.T) {
		diags := outcomeDiagnostics(provision.NewRequest(provision.OperationNewDC), provision.Outcome{
			Success: true,
			Errors:  []*provision.StageError{joinErr},
		})
		require.False(t, diags.HasError())
		require.Len(t, diags.Warnings(), 1)
		assert.Contains(t, diags.Warnings()[0].Detail(), "Failed to bind")
	})

	t.Run("join failure then persist failure", func(t *testing.T) {
		diags := outcomeDiagnostics(provision.NewRequest(provision.OperationNewDC), provision.Outcome{
			Errors: []*provision.StageError{joinErr, persistErr},
		})
		require.Len(t, diags.Errors(), 2)
		assert.Equal(t, `Provisioning Failed at Stage "write-kerberos"`, diags.Errors()[1].Summary())
	})

	t.Run("cancelled", func(t *testing.T) {
		diags := outcomeDiagnostics(provision.NewRequest(provision.OperationNewForest), provision.Outcome{
			Errors: []*provision.StageError{{Stage: provision.StageWriteLocalSettings, Message: "Provisioning was cancelled.", Cause: context.Canceled}},
		})
		require.Len(t, diags.Errors(), 1)
		assert.Equal(t, "Provisioning Cancelled", diags.Errors()[0].Summary())
	})

	t.Run("failure without errors", func(t *testing.T) {
		diags := outcomeDiagnostics(provision.NewRequest(provision.OperationNewForest), provision.Outcome{})
		assert.True(t, diags.HasError())
	})
}

func TestRefreshFromServiceConfig(t *testing.T) {
	model := newForestModel()
	refreshFromServiceConfig(&model, "SAMDOM.EXAMPLE.COM", "samdom")
	assert.Equal(t, "samdom.example.com", model.Realm.ValueString())
	assert.Equal(t, "SAMDOM", model.Workgroup.ValueString())

	refreshFromServiceConfig(&model, "OTHER.EXAMPLE.COM", "OTHER")
	assert.Equal(t, "OTHER.EXAMPLE.COM", model.Realm.ValueString())
	assert.Equal(t, "OTHER", model.Workgroup.ValueString())

	refreshFromServiceConfig(&model, "", "")
	assert.Equal(t, "OTHER.EXAMPLE.COM", model.Realm.ValueString())
}
