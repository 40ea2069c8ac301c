package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resourceNameCase struct {
	Name string `validate:"required,resourcename"`
}

func TestResourceNameValidation(t *testing.T) {
	valid := New()

	for _, name := range []string{"C1-Isle", "Crossplay_Cluster.1", "a"} {
		assert.NoError(t, valid.Struct(resourceNameCase{Name: name}), "expected %q to be valid", name)
	}

	for _, name := range []string{"", "has space", "slash/es"} {
		assert.Error(t, valid.Struct(resourceNameCase{Name: name}), "expected %q to be rejected", name)
	}
}

type modIdCase struct {
	ModId string `validate:"required,modid"`
}

func TestModIdValidation(t *testing.T) {
	valid := New()

	require.NoError(t, valid.Struct(modIdCase{ModId: "2430930"}))

	for _, id := range []string{"", "abc123", "123abc"} {
		assert.Error(t, valid.Struct(modIdCase{ModId: id}), "expected %q to be rejected", id)
	}
}

type noSpaceCase struct {
	Value string `validate:"nospace"`
}

func TestNoSpaceValidation(t *testing.T) {
	valid := New()

	assert.NoError(t, valid.Struct(noSpaceCase{Value: "no-spaces-here"}))
	assert.Error(t, valid.Struct(noSpaceCase{Value: "has a space"}))
}

// namedStringCase exercises the validators against a named string type
// (mirroring model.ModId), since a naive type assertion to string fails
// for such fields.
type namedString string

type namedStringCase struct {
	Value namedString `validate:"required,modid"`
}

func TestModIdValidationOnNamedStringType(t *testing.T) {
	valid := New()

	assert.NoError(t, valid.Struct(namedStringCase{Value: "2430930"}))
	assert.Error(t, valid.Struct(namedStringCase{Value: "not-a-modid"}))
}
