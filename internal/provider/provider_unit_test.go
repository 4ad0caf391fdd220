package provider_test

import (
	"context"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/providerserver"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/tfsdk"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	this "github.com/isometry/terraform-provider-sambadc/internal/provider"
	"github.com/isometry/terraform-provider-sambadc/internal/provision"
)

func newProvider(version string) provider.Provider {
	return this.New(version)()
}

// TestProviderMetadata tests the provider metadata.
func TestProviderMetadata(t *testing.T) {
	p := newProvider("test")

	resp := &provider.MetadataResponse{}
	p.Metadata(t.Context(), provider.MetadataRequest{}, resp)

	assert.Equal(t, "sambadc", resp.TypeName)
	assert.Equal(t, "test", resp.Version)
}

// TestProviderSchema tests the provider schema.
func TestProviderSchema(t *testing.T) {
	p := newProvider("test")

	resp := &provider.SchemaResponse{}
	p.Schema(t.Context(), provider.SchemaRequest{}, resp)
	require.False(t, resp.Diagnostics.HasError(), "schema: %v", resp.Diagnostics)

	attributes := []string{
		"smb_conf_path", "krb5_conf_path", "network_config_path", "samba_tool_path",
		"netconfig_command", "pam_config_command", "sysvol_root", "lock_file",
	}
	for _, attr := range attributes {
		a, exists := resp.Schema.Attributes[attr]
		if assert.True(t, exists, "attribute %s", attr) {
			assert.True(t, a.IsOptional(), "attribute %s should be optional", attr)
		}
	}
	assert.Len(t, resp.Schema.Attributes, len(attributes))
}

// TestProviderResources tests the provider resources.
func TestProviderResources(t *testing.T) {
	p := newProvider("test")

	var names []string
	for _, factory := range p.Resources(t.Context()) {
		r := factory()
		require.NotNil(t, r)

		resp := &resource.MetadataResponse{}
		r.Metadata(t.Context(), resource.MetadataRequest{ProviderTypeName: "sambadc"}, resp)
		names = append(names, resp.TypeName)
	}

	assert.Equal(t, []string{"sambadc_domain_controller"}, names)
}

// TestProviderDataSources tests the provider data sources.
func TestProviderDataSources(t *testing.T) {
	p := newProvider("test")

	var names []string
	for _, factory := range p.DataSources(t.Context()) {
		d := factory()
		require.NotNil(t, d)

		resp := &datasource.MetadataResponse{}
		d.Metadata(t.Context(), datasource.MetadataRequest{ProviderTypeName: "sambadc"}, resp)
		names = append(names, resp.TypeName)
	}

	assert.ElementsMatch(t, []string{"sambadc_domain_controller", "sambadc_local_config"}, names)
}

// TestProviderFunctions tests the provider functions.
func TestProviderFunctions(t *testing.T) {
	p, ok := newProvider("test").(provider.ProviderWithFunctions)
	require.True(t, ok)

	functions := p.Functions(t.Context())
	require.Len(t, functions, 1)
	assert.NotNil(t, functions[0]())
}

// TestProviderEphemeralResources tests the provider ephemeral resources.
func TestProviderEphemeralResources(t *testing.T) {
	p, ok := newProvider("test").(provider.ProviderWithEphemeralResources)
	require.True(t, ok)

	assert.Empty(t, p.EphemeralResources(t.Context()))
}

// TestProviderServer tests provider server creation.
func TestProviderServer(t *testing.T) {
	server, err := providerserver.NewProtocol6WithError(newProvider("test"))()
	require.NoError(t, err)
	assert.NotNil(t, server)
}

func configureProvider(t *testing.T, values map[string]string) (*this.ProviderData, *provider.ConfigureResponse) {
	t.Helper()
	ctx := context.Background()
	p := newProvider("test")

	schemaResp := &provider.SchemaResponse{}
	p.Schema(ctx, provider.SchemaRequest{}, schemaResp)

	attrTypes := map[string]tftypes.Type{}
	attrValues := map[string]tftypes.Value{}
	for name := range schemaResp.Schema.Attributes {
		attrTypes[name] = tftypes.String
		if v, ok := values[name]; ok {
			attrValues[name] = tftypes.NewValue(tftypes.String, v)
		} else {
			attrValues[name] = tftypes.NewValue(tftypes.String, nil)
		}
	}

	req := provider.ConfigureRequest{
		Config: tfsdk.Config{
			Schema: schemaResp.Schema,
			Raw:    tftypes.NewValue(tftypes.Object{AttributeTypes: attrTypes}, attrValues),
		},
	}
	resp := &provider.ConfigureResponse{}
	p.Configure(ctx, req, resp)

	data, _ := resp.ResourceData.(*this.ProviderData)
	return data, resp
}

func TestProviderConfigure(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		data, resp := configureProvider(t, nil)
		require.False(t, resp.Diagnostics.HasError(), "configure: %v", resp.Diagnostics)
		require.NotNil(t, data)

		assert.Equal(t, provision.DefaultPaths(), data.Paths)
		assert.Same(t, data, resp.DataSourceData)
	})

	t.Run("attribute overrides environment", func(t *testing.T) {
		t.Setenv("SAMBADC_SMB_CONF_PATH", "/env/smb.conf")
		t.Setenv("SAMBADC_LOCK_FILE", "/env/sambadc.lock")

		data, resp := configureProvider(t, map[string]string{
			"smb_conf_path": "/attr/smb.conf",
			"sysvol_root":   "/srv/sysvol",
		})
		require.False(t, resp.Diagnostics.HasError(), "configure: %v", resp.Diagnostics)

		assert.Equal(t, "/attr/smb.conf", data.Paths.SMBConf)
		assert.Equal(t, "/env/sambadc.lock", data.Paths.LockFile)
		assert.Equal(t, "/srv/sysvol", data.Paths.SysvolRoot)
		assert.Equal(t, provision.DefaultPaths().Krb5Conf, data.Paths.Krb5Conf)
	})
}

// TestNewProvider tests the New provider function.
func TestNewProvider(t *testing.T) {
	for _, version := range []string{"test", "dev", "1.0.0", ""} {
		t.Run("version "+version, func(t *testing.T) {
			p := newProvider(version)
			require.NotNil(t, p)

			_, ok := p.(*this.SambaDCProvider)
			assert.True(t, ok)

			resp := &provider.MetadataResponse{}
			p.Metadata(t.Context(), provider.MetadataRequest{}, resp)
			assert.Equal(t, version, resp.Version)
		})
	}
}
