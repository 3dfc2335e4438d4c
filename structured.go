package modelgate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/hupe1980/modelgate/internal/util"
)

// SchemaFor derives a JSON schema from a struct for use as a CallOptions
// OutputSchema. Field names follow json tags; `description` tags become
// schema descriptions.
func SchemaFor(structType any) map[string]any {
	return util.CreateSchema(structType)
}

// appendSchemaInstructions augments the user prompt so the model emits a bare
// JSON object conforming to the schema.
func appendSchemaInstructions(prompt string, schema map[string]any) string {
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return prompt
	}
	return fmt.Sprintf(
		"%s\n\nIMPORTANT: Respond with valid JSON only. No markdown, no explanations, just the JSON object.\nFollow this exact schema:\n```json\n%s\n```",
		prompt, schemaJSON,
	)
}

// parseStructured recovers a JSON object from raw model output and validates
// it against the schema. Models wrap JSON in prose or code fences often
// enough that a single json.Unmarshal is not sufficient; strategies are tried
// in order of strictness.
func parseStructured(raw string, schema map[string]any) (map[string]any, error) {
	strategies := []func(string) (map[string]any, error){
		parseDirect,
		parseStripFences,
		parseExtractObject,
		parseRepair,
	}

	var lastErr error
	for _, strategy := range strategies {
		obj, err := strategy(raw)
		if err != nil {
			lastErr = err
			continue
		}
		if err := util.ValidateParameters(obj, schema); err != nil {
			lastErr = err
			continue
		}
		return obj, nil
	}

	return nil, &SchemaValidationError{Raw: raw, Err: lastErr}
}

// parseDirect parses the trimmed output as a JSON object.
func parseDirect(raw string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// parseStripFences removes a surrounding markdown code fence and parses the body.
func parseStripFences(raw string) (map[string]any, error) {
	cleaned := strings.TrimSpace(raw)
	if !strings.HasPrefix(cleaned, "```") {
		return nil, fmt.Errorf("no code fence found")
	}

	lines := strings.Split(cleaned, "\n")
	if strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}

	return parseDirect(strings.Join(lines, "\n"))
}

// parseExtractObject extracts the first balanced JSON object embedded in the
// output. Braces inside string literals are accounted for.
func parseExtractObject(raw string) (map[string]any, error) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON object found in output")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return parseDirect(raw[start : i+1])
			}
		}
	}

	return nil, fmt.Errorf("unbalanced JSON object in output")
}

// repairRules rewrite almost-JSON constructs models emit: single-quoted
// strings, trailing commas, and Python literals.
var repairRules = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`'`), `"`},
	{regexp.MustCompile(`,\s*}`), "}"},
	{regexp.MustCompile(`,\s*]`), "]"},
	{regexp.MustCompile(`:\s*None`), ": null"},
	{regexp.MustCompile(`:\s*True`), ": true"},
	{regexp.MustCompile(`:\s*False`), ": false"},
}

// parseRepair is the last resort: take everything from the first '{' to the
// last '}', apply the repair rules and parse the result.
func parseRepair(raw string) (map[string]any, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON-like content found")
	}

	candidate := raw[start : end+1]
	for _, rule := range repairRules {
		candidate = rule.pattern.ReplaceAllString(candidate, rule.replacement)
	}

	return parseDirect(candidate)
}
