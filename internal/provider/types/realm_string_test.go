package types_test

import (
	"context"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/types/basetypes"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customtypes "github.com/isometry/terraform-provider-sambadc/internal/provider/types"
)

func TestRealmStringSemanticEquals(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		old, new customtypes.RealmStringValue
		want     bool
	}{
		{"identical", customtypes.RealmString("SAMDOM.EXAMPLE.COM"), customtypes.RealmString("SAMDOM.EXAMPLE.COM"), true},
		{"case differs", customtypes.RealmString("samdom.example.com"), customtypes.RealmString("SAMDOM.EXAMPLE.COM"), true},
		{"trailing dot", customtypes.RealmString("samdom.example.com."), customtypes.RealmString("SAMDOM.EXAMPLE.COM"), true},
		{"different realm", customtypes.RealmString("samdom.example.com"), customtypes.RealmString("other.example.com"), false},
		{"both null", customtypes.RealmStringNull(), customtypes.RealmStringNull(), true},
		{"null and known", customtypes.RealmStringNull(), customtypes.RealmString("SAMDOM.EXAMPLE.COM"), false},
		{"unknown and known", customtypes.RealmStringUnknown(), customtypes.RealmString("SAMDOM.EXAMPLE.COM"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diags := tt.old.StringSemanticEquals(ctx, tt.new)
			require.False(t, diags.HasError())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRealmStringSemanticEqualsWrongType(t *testing.T) {
	_, diags := customtypes.RealmString("SAMDOM.EXAMPLE.COM").
		StringSemanticEquals(context.Background(), basetypes.NewStringValue("SAMDOM.EXAMPLE.COM"))
	assert.True(t, diags.HasError())
}

func TestRealmStringTypeValueFromTerraform(t *testing.T) {
	ctx := context.Background()

	value, err := customtypes.RealmStringType{}.ValueFromTerraform(ctx, tftypes.NewValue(tftypes.String, "samdom.example.com"))
	require.NoError(t, err)

	realm, ok := value.(customtypes.RealmStringValue)
	require.True(t, ok)
	assert.Equal(t, "samdom.example.com", realm.ValueString())
	assert.True(t, realm.Type(ctx).Equal(customtypes.RealmStringType{}))
	assert.False(t, realm.Equal(basetypes.NewStringValue("samdom.example.com")))
}

func TestNormalizeRealm(t *testing.T) {
	assert.Equal(t, "SAMDOM.EXAMPLE.COM", customtypes.NormalizeRealm(" samdom.example.com. "))
}
