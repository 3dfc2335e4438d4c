package modelgate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var permissiveSchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{},
}

func TestParseStructured_Direct(t *testing.T) {
	obj, err := parseStructured(`{"a": 1, "b": "two"}`, permissiveSchema)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1), "b": "two"}, obj)
}

func TestParseStructured_StripsCodeFences(t *testing.T) {
	raw := "```json\n{\"a\": 1}\n```"
	obj, err := parseStructured(raw, permissiveSchema)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, obj)
}

func TestParseStructured_ExtractsEmbeddedObject(t *testing.T) {
	raw := `Sure! Here is the JSON you asked for: {"a": {"nested": true}} Hope that helps.`
	obj, err := parseStructured(raw, permissiveSchema)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": map[string]any{"nested": true}}, obj)
}

func TestParseStructured_BracesInsideStrings(t *testing.T) {
	raw := `prefix {"text": "curly } brace"} suffix`
	obj, err := parseStructured(raw, permissiveSchema)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"text": "curly } brace"}, obj)
}

func TestParseStructured_RepairsSingleQuotesAndTrailingComma(t *testing.T) {
	obj, err := parseStructured(`{'a': 1,}`, permissiveSchema)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, obj)
}

func TestParseStructured_RepairsPythonLiterals(t *testing.T) {
	obj, err := parseStructured(`{"flag": True, "missing": None, "off": False}`, permissiveSchema)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"flag": true, "missing": nil, "off": false}, obj)
}

func TestParseStructured_RepairsTrailingCommaInArray(t *testing.T) {
	obj, err := parseStructured(`{"items": [1, 2,]}`, permissiveSchema)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"items": []any{float64(1), float64(2)}}, obj)
}

func TestParseStructured_SchemaViolation(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "integer"}},
		"required":   []string{"a"},
	}

	_, err := parseStructured(`{"b": 2}`, schema)

	var schemaErr *SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, `{"b": 2}`, schemaErr.Raw)
}

func TestParseStructured_TypeMismatch(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "integer"}},
	}

	_, err := parseStructured(`{"a": "not a number"}`, schema)

	var schemaErr *SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
}

func TestParseStructured_NoJSONAtAll(t *testing.T) {
	_, err := parseStructured("I cannot answer that.", permissiveSchema)

	var schemaErr *SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "I cannot answer that.", schemaErr.Raw)
}

func TestAppendSchemaInstructions(t *testing.T) {
	out := appendSchemaInstructions("What is 2+2?", map[string]any{"type": "object"})
	assert.Contains(t, out, "What is 2+2?")
	assert.Contains(t, out, "Respond with valid JSON only")
	assert.Contains(t, out, `"type": "object"`)
}

func TestSchemaFor(t *testing.T) {
	type Answer struct {
		Result int    `json:"result" description:"The numeric answer"`
		Note   string `json:"note,omitempty"`
	}

	schema := SchemaFor(Answer{})

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "result")
	assert.Contains(t, props, "note")
	assert.Equal(t, []string{"result"}, schema["required"])
}
