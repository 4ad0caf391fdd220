package validators

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
)

var _ validator.String = caseInsensitiveOneOfValidator{}

// caseInsensitiveOneOfValidator accepts any of validValues regardless of case.
// samba-tool itself matches levels and backends this way.
type caseInsensitiveOneOfValidator struct {
	validValues []string
}

func (v caseInsensitiveOneOfValidator) Description(_ context.Context) string {
	return fmt.Sprintf("value must be one of: %s (case-insensitive)", strings.Join(v.validValues, ", "))
}

func (v caseInsensitiveOneOfValidator) MarkdownDescription(_ context.Context) string {
	quoted := make([]string, len(v.validValues))
	for i, value := range v.validValues {
		quoted[i] = "`" + value + "`"
	}
	return fmt.Sprintf("value must be one of: %s (case-insensitive)", strings.Join(quoted, ", "))
}

func (v caseInsensitiveOneOfValidator) ValidateString(_ context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()
	trimmed := strings.TrimSpace(value)

	for _, valid := range v.validValues {
		if strings.EqualFold(trimmed, valid) {
			return
		}
	}

	response.Diagnostics.AddAttributeError(
		request.Path,
		"Invalid Value",
		fmt.Sprintf("The value %q is not valid. Must be one of: %s (case-insensitive)",
			value, strings.Join(v.validValues, ", ")),
	)
}

// CaseInsensitiveOneOf returns a validator which ensures that any configured
// attribute value matches one of values, ignoring case and surrounding
// whitespace.
//
// Unknown values and null values are skipped from validation.
func CaseInsensitiveOneOf(values ...string) validator.String {
	return caseInsensitiveOneOfValidator{
		validValues: values,
	}
}
