package types

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/types/basetypes"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
)

var (
	_ basetypes.StringTypable                    = RealmStringType{}
	_ basetypes.StringValuable                   = RealmStringValue{}
	_ basetypes.StringValuableWithSemanticEquals = RealmStringValue{}
)

// RealmStringType is a string type for Kerberos realms. smb.conf stores the
// realm upper-cased, so realms compare without regard to case or a trailing
// dot.
type RealmStringType struct {
	basetypes.StringType
}

func (t RealmStringType) String() string {
	return "RealmStringType"
}

func (t RealmStringType) ValueType(ctx context.Context) attr.Value {
	return RealmStringValue{}
}

func (t RealmStringType) Equal(o attr.Type) bool {
	other, ok := o.(RealmStringType)
	if !ok {
		return false
	}
	return t.StringType.Equal(other.StringType)
}

func (t RealmStringType) ValueFromString(ctx context.Context, in basetypes.StringValue) (basetypes.StringValuable, diag.Diagnostics) {
	return RealmStringValue{StringValue: in}, nil
}

func (t RealmStringType) ValueFromTerraform(ctx context.Context, in tftypes.Value) (attr.Value, error) {
	attrValue, err := t.StringType.ValueFromTerraform(ctx, in)
	if err != nil {
		return nil, err
	}

	stringValue, ok := attrValue.(basetypes.StringValue)
	if !ok {
		return nil, fmt.Errorf("expected basetypes.StringValue, got: %T", attrValue)
	}

	stringValuable, diags := t.ValueFromString(ctx, stringValue)
	if diags.HasError() {
		return nil, fmt.Errorf("could not create RealmStringValue: %v", diags.Errors())
	}

	return stringValuable, nil
}

// RealmStringValue is a realm with case-insensitive semantic equality.
type RealmStringValue struct {
	basetypes.StringValue
}

func (v RealmStringValue) Equal(o attr.Value) bool {
	other, ok := o.(RealmStringValue)
	if !ok {
		return false
	}
	return v.StringValue.Equal(other.StringValue)
}

func (v RealmStringValue) Type(ctx context.Context) attr.Type {
	return RealmStringType{}
}

// StringSemanticEquals treats SAMDOM.EXAMPLE.COM and samdom.example.com. as
// the same realm.
func (v RealmStringValue) StringSemanticEquals(ctx context.Context, newValuable basetypes.StringValuable) (bool, diag.Diagnostics) {
	var diags diag.Diagnostics

	newValue, ok := newValuable.(RealmStringValue)
	if !ok {
		diags.AddError(
			"Semantic Equality Check Error",
			"An unexpected value type was received while attempting to perform semantic equality checks. "+
				"This is always an error in the provider. Please report the following to the provider developer:\n\n"+
				fmt.Sprintf("Expected RealmStringValue, but got: %T", newValuable),
		)
		return false, diags
	}

	if v.IsNull() || v.IsUnknown() || newValue.IsNull() || newValue.IsUnknown() {
		return v.Equal(newValue), diags
	}

	return NormalizeRealm(v.ValueString()) == NormalizeRealm(newValue.ValueString()), diags
}

// NormalizeRealm upper-cases realm and drops a trailing dot.
func NormalizeRealm(realm string) string {
	return strings.ToUpper(strings.TrimSuffix(strings.TrimSpace(realm), "."))
}

// RealmString creates a known RealmStringValue.
func RealmString(value string) RealmStringValue {
	return RealmStringValue{StringValue: basetypes.NewStringValue(value)}
}

// RealmStringNull creates a null RealmStringValue.
func RealmStringNull() RealmStringValue {
	return RealmStringValue{StringValue: basetypes.NewStringNull()}
}

// RealmStringUnknown creates an unknown RealmStringValue.
func RealmStringUnknown() RealmStringValue {
	return RealmStringValue{StringValue: basetypes.NewStringUnknown()}
}
