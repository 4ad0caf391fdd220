package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/function"

	"github.com/isometry/terraform-provider-sambadc/internal/ldap"
)

var _ function.Function = &RealmToBaseDNFunction{}

func NewRealmToBaseDNFunction() function.Function {
	return &RealmToBaseDNFunction{}
}

// RealmToBaseDNFunction implements the realm_to_base_dn function.
type RealmToBaseDNFunction struct{}

func (f RealmToBaseDNFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "realm_to_base_dn"
}

func (f RealmToBaseDNFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary:             "Convert a realm to the DN of its domain",
		Description:         "Returns the base DN of the AD domain named by a Kerberos realm, one DC component per label. SAMDOM.EXAMPLE.COM becomes DC=samdom,DC=example,DC=com.",
		MarkdownDescription: "Returns the base DN of the AD domain named by a Kerberos realm, one `DC` component per label: `SAMDOM.EXAMPLE.COM` becomes `DC=samdom,DC=example,DC=com`.",
		Parameters: []function.Parameter{
			function.StringParameter{
				Name:                "realm",
				Description:         "Kerberos realm or DNS domain name.",
				MarkdownDescription: "Kerberos realm or DNS domain name.",
			},
		},
		Return: function.StringReturn{},
	}
}

func (f RealmToBaseDNFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var realm string

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &realm))
	if resp.Error != nil {
		return
	}

	dn, err := ldap.RealmToBaseDN(realm)
	if err != nil {
		resp.Error = function.NewArgumentFuncError(0, err.Error())
		return
	}

	resp.Error = function.ConcatFuncErrors(resp.Error, resp.Result.Set(ctx, dn))
}
