package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate_FastPathWithoutMarkers(t *testing.T) {
	out, err := RenderTemplate("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)
}

func TestRenderTemplate_SubstitutesVariables(t *testing.T) {
	out, err := RenderTemplate("{{.prompt}}", map[string]any{"prompt": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestRenderTemplate_NoHTMLEscaping(t *testing.T) {
	out, err := RenderTemplate("{{.prompt}}", map[string]any{"prompt": `a < b && "c"`})
	require.NoError(t, err)
	assert.Equal(t, `a < b && "c"`, out)
}

func TestRenderTemplate_InvalidTemplate(t *testing.T) {
	_, err := RenderTemplate("{{.prompt", nil)
	assert.Error(t, err)
}

func TestCreateSchema_RequiredAndOptionalFields(t *testing.T) {
	type Args struct {
		Name  string  `json:"name" description:"A name"`
		Count int     `json:"count,omitempty"`
		Ratio float64 `json:"ratio"`
	}

	schema := CreateSchema(Args{})

	assert.Equal(t, "object", schema["type"])
	props := schema["properties"].(map[string]any)
	assert.Equal(t, "string", props["name"].(map[string]any)["type"])
	assert.Equal(t, "A name", props["name"].(map[string]any)["description"])
	assert.Equal(t, "integer", props["count"].(map[string]any)["type"])
	assert.Equal(t, "number", props["ratio"].(map[string]any)["type"])
	assert.Equal(t, []string{"name", "ratio"}, schema["required"])
}

func TestValidateParameters_MissingRequired(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "integer"}},
		"required":   []string{"a"},
	}

	err := ValidateParameters(map[string]any{}, schema)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "a", verr.Field)
}

func TestValidateParameters_TypeChecks(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"n": map[string]any{"type": "integer"},
			"s": map[string]any{"type": "string"},
		},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"n": float64(3), "s": "ok"}, schema))
	assert.Error(t, ValidateParameters(map[string]any{"n": 3.5}, schema))
	assert.Error(t, ValidateParameters(map[string]any{"s": 1}, schema))
}

func TestValidateParameters_ExtraFieldsAllowed(t *testing.T) {
	schema := map[string]any{"type": "object", "properties": map[string]any{}}
	assert.NoError(t, ValidateParameters(map[string]any{"anything": true}, schema))
}
