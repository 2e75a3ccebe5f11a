package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateParameters_RequiredListShapes(t *testing.T) {
	params := map[string]any{}

	// JSON-decoded schemas carry []any.
	err := ValidateParameters(params, map[string]any{
		"type":       "object",
		"properties": map[string]any{"x": map[string]any{"type": "string"}},
		"required":   []any{"x"},
	})
	assert.Error(t, err)

	// Go-authored schemas carry []string.
	err = ValidateParameters(params, map[string]any{
		"type":       "object",
		"properties": map[string]any{"x": map[string]any{"type": "string"}},
		"required":   []string{"x"},
	})
	assert.Error(t, err)

	err = ValidateParameters(map[string]any{"x": "here"}, map[string]any{
		"type":       "object",
		"properties": map[string]any{"x": map[string]any{"type": "string"}},
		"required":   []string{"x"},
	})
	assert.NoError(t, err)
}

func TestValidateParameters_IntegerAcceptsWholeFloats(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"n": map[string]any{"type": "integer"}},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"n": float64(5)}, schema))
	assert.Error(t, ValidateParameters(map[string]any{"n": 5.5}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"n": 5}, schema))
}

func TestValidateParameters_ExtraFieldsAllowed(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	assert.NoError(t, ValidateParameters(map[string]any{"anything": true}, schema))
}

type schemaFixture struct {
	Name     string  `json:"name" description:"Display name"`
	Optional *string `json:"optional"`
	Skipped  string  `json:"-"`
	Count    int     `json:"count,omitempty"`
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(schemaFixture{})

	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "name")
	assert.Contains(t, props, "optional")
	assert.Contains(t, props, "count")
	assert.NotContains(t, props, "-")
	assert.NotContains(t, props, "Skipped")

	name := props["name"].(map[string]any)
	assert.Equal(t, "string", name["type"])
	assert.Equal(t, "Display name", name["description"])

	required := schema["required"].([]string)
	assert.ElementsMatch(t, []string{"name"}, required)
}
