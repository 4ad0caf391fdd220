package validators

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/schema/validator"

	"github.com/isometry/terraform-provider-sambadc/internal/ldap"
)

// Ensure the implementation satisfies the expected interface.
var _ validator.String = realmValidator{}

var realmLabelRegex = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)

// realmValidator validates that a string is a Kerberos realm usable as an AD
// DNS domain.
type realmValidator struct{}

// Description describes the validation in plain text.
func (v realmValidator) Description(_ context.Context) string {
	return "value must be a DNS domain name with at least two labels, such as SAMDOM.EXAMPLE.COM"
}

// MarkdownDescription describes the validation in Markdown.
func (v realmValidator) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

// ValidateString performs the validation.
func (v realmValidator) ValidateString(ctx context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()

	if err := validateRealm(value); err != nil {
		response.Diagnostics.AddAttributeError(
			request.Path,
			"Invalid Realm",
			fmt.Sprintf("The value %q is not a valid realm: %s", value, err.Error()),
		)
	}
}

func validateRealm(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("realm cannot be empty")
	}
	if len(value) > 253 {
		return fmt.Errorf("realm is longer than 253 characters")
	}
	if _, err := ldap.RealmToBaseDN(value); err != nil {
		return err
	}

	labels := strings.Split(strings.TrimSuffix(value, "."), ".")
	if len(labels) < 2 {
		return fmt.Errorf("realm must contain at least two labels")
	}
	for _, label := range labels {
		if !realmLabelRegex.MatchString(label) {
			return fmt.Errorf("label %q may only contain letters, digits and inner hyphens", label)
		}
	}
	return nil
}

// IsValidRealm returns a validator which ensures that any configured
// attribute value is a realm name.
//
// Unknown values and null values are skipped from validation.
func IsValidRealm() validator.String {
	return realmValidator{}
}
