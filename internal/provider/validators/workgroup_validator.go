package validators

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
)

var _ validator.String = workgroupValidator{}

// MaxWorkgroupLength is the NetBIOS name limit.
const MaxWorkgroupLength = 15

// workgroupInvalidChars are rejected in NetBIOS domain names.
const workgroupInvalidChars = `\/:*?"<>|. `

type workgroupValidator struct{}

func (v workgroupValidator) Description(_ context.Context) string {
	return fmt.Sprintf("value must be a NetBIOS domain name of 1 to %d characters without dots or spaces", MaxWorkgroupLength)
}

func (v workgroupValidator) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

func (v workgroupValidator) ValidateString(_ context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()
	if err := ValidateWorkgroup(value); err != nil {
		response.Diagnostics.AddAttributeError(
			request.Path,
			"Invalid Workgroup",
			fmt.Sprintf("The value %q is not a valid workgroup: %s", value, err.Error()),
		)
	}
}

// ValidateWorkgroup checks a NetBIOS domain name.
func ValidateWorkgroup(value string) error {
	switch {
	case value == "":
		return fmt.Errorf("workgroup cannot be empty")
	case len(value) > MaxWorkgroupLength:
		return fmt.Errorf("workgroup is %d characters long, the limit is %d", len(value), MaxWorkgroupLength)
	}
	for _, r := range value {
		for _, bad := range workgroupInvalidChars {
			if r == bad {
				return fmt.Errorf("workgroup cannot contain %q", r)
			}
		}
	}
	return nil
}

// IsValidWorkgroup returns a validator for NetBIOS domain names.
//
// Unknown values and null values are skipped from validation.
func IsValidWorkgroup() validator.String {
	return workgroupValidator{}
}
