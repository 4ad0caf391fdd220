package planmodifiers

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/types"

	customtypes "github.com/isometry/terraform-provider-sambadc/internal/provider/types"
	"github.com/isometry/terraform-provider-sambadc/internal/provider/validators"
)

// workgroupFromRealm implements the plan modifier.
type workgroupFromRealm struct{}

// WorkgroupFromRealm returns a plan modifier that sets workgroup to the
// upper-cased first label of realm when workgroup is not configured. The
// derived name must fit the NetBIOS limit; longer labels need an explicit
// workgroup.
func WorkgroupFromRealm() planmodifier.String {
	return workgroupFromRealm{}
}

func (m workgroupFromRealm) Description(_ context.Context) string {
	return "uses the first label of realm if workgroup is not explicitly configured"
}

func (m workgroupFromRealm) MarkdownDescription(_ context.Context) string {
	return "uses the first label of `realm` if `workgroup` is not explicitly configured"
}

func (m workgroupFromRealm) PlanModifyString(ctx context.Context, req planmodifier.StringRequest, resp *planmodifier.StringResponse) {
	if !req.ConfigValue.IsNull() {
		return
	}

	var realm customtypes.RealmStringValue
	resp.Diagnostics.Append(req.Plan.GetAttribute(ctx, path.Root("realm"), &realm)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if realm.IsUnknown() || realm.IsNull() {
		return
	}

	workgroup := DeriveWorkgroup(realm.ValueString())
	if err := validators.ValidateWorkgroup(workgroup); err != nil {
		resp.Diagnostics.AddAttributeError(
			req.Path,
			"Workgroup Required",
			fmt.Sprintf(
				"The workgroup %q derived from realm %q is not usable: %s. "+
					"Please explicitly specify a 'workgroup' of %d characters or less.",
				workgroup, realm.ValueString(), err, validators.MaxWorkgroupLength,
			),
		)
		return
	}

	resp.PlanValue = types.StringValue(workgroup)
}

// DeriveWorkgroup returns the upper-cased first label of realm.
func DeriveWorkgroup(realm string) string {
	label, _, _ := strings.Cut(strings.TrimSpace(realm), ".")
	return strings.ToUpper(label)
}
